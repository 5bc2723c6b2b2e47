package domain

import "fmt"

// Pipeline stages a candidate can be in. Persisted verbatim in
// candidates.current_status and accepted by the status override endpoint.
const (
	StageApplied              = "Applied"
	StageAssessmentScheduled  = "Assessment Scheduled"
	StageAssessmentInProgress = "Assessment In Progress"
	StageAssessmentCompleted  = "Assessment Completed"
	StageAssessmentEvaluated  = "Assessment Evaluated"
	StageInterviewScheduled   = "Interview Scheduled"
	StageInterviewInProgress  = "Interview In Progress"
	StageInterviewCompleted   = "Interview Completed"
	StageInterviewEvaluated   = "Interview Evaluated"
	StageOfferExtended        = "Offer Extended"
	StageOfferAccepted        = "Offer Accepted"
	StageHired                = "Hired"
	StageRejected             = "Rejected"
	StageWithdrawn            = "Withdrawn"
)

// Stages lists every valid pipeline stage in funnel order.
var Stages = []string{
	StageApplied,
	StageAssessmentScheduled,
	StageAssessmentInProgress,
	StageAssessmentCompleted,
	StageAssessmentEvaluated,
	StageInterviewScheduled,
	StageInterviewInProgress,
	StageInterviewCompleted,
	StageInterviewEvaluated,
	StageOfferExtended,
	StageOfferAccepted,
	StageHired,
	StageRejected,
	StageWithdrawn,
}

// ParseStage validates a raw stage value, returning an error for unknown ones.
func ParseStage(s string) (string, error) {
	for _, stage := range Stages {
		if s == stage {
			return stage, nil
		}
	}
	return "", fmt.Errorf("unknown pipeline stage %q", s)
}

// Per-item statuses for nested assessments and interviews.
const (
	ItemScheduled  = "Scheduled"
	ItemInProgress = "In Progress"
	ItemCompleted  = "Completed"
	ItemEvaluated  = "Evaluated"
	ItemCancelled  = "Cancelled"
)

// Offer statuses.
const (
	OfferPending  = "Pending"
	OfferAccepted = "Accepted"
	OfferRejected = "Rejected"
)

type Candidate struct {
	ID               string                `json:"id"`
	FirstName        string                `json:"first_name"`
	LastName         string                `json:"last_name"`
	Email            string                `json:"email"`
	Phone            string                `json:"phone,omitempty"`
	CurrentStatus    string                `json:"current_status"`
	Assessments      []CandidateAssessment `json:"assessments,omitempty"`
	Interviews       []CandidateInterview  `json:"interviews,omitempty"`
	Offer            *Offer                `json:"offer,omitempty"`
	HiredDetails     *HireRecord           `json:"hired_details,omitempty"`
	RejectionDetails *RejectionRecord      `json:"rejection_details,omitempty"`
	Version          int64                 `json:"version"`
	CreatedAt        string                `json:"created_at" format:"date-time"`
	UpdatedAt        string                `json:"updated_at" format:"date-time"`
}

// CandidateAssessment is one attached assessment. Name and max score are
// copied from the definition at attach time so later catalog edits do not
// rewrite history.
type CandidateAssessment struct {
	ID             string  `json:"id"`
	AssessmentID   string  `json:"assessment_id"`
	AssessmentName string  `json:"assessment_name"`
	MaxScore       int     `json:"max_score"`
	EvaluatorID    string  `json:"evaluator_id,omitempty"`
	Sequence       int     `json:"sequence"`
	ScheduledDate  string  `json:"scheduled_date" format:"date-time"`
	Status         string  `json:"status" enum:"Scheduled,In Progress,Completed,Evaluated,Cancelled"`
	Score          *int    `json:"score,omitempty"`
	Remarks        *string `json:"remarks,omitempty"`
	CompletionDate *string `json:"completion_date,omitempty" format:"date-time"`
	EvaluationDate *string `json:"evaluation_date,omitempty" format:"date-time"`
}

type CandidateInterview struct {
	ID                string  `json:"id"`
	InterviewType     string  `json:"interview_type"`
	InterviewLocation string  `json:"interview_location,omitempty"`
	EvaluatorID       string  `json:"evaluator_id,omitempty"`
	Sequence          int     `json:"sequence"`
	ScheduledDatetime string  `json:"scheduled_datetime" format:"date-time"`
	Status            string  `json:"status" enum:"Scheduled,In Progress,Completed,Evaluated,Cancelled"`
	Score             *int    `json:"score,omitempty"`
	Remarks           *string `json:"remarks,omitempty"`
	ConductedDate     *string `json:"conducted_date,omitempty" format:"date-time"`
	EvaluationDate    *string `json:"evaluation_date,omitempty" format:"date-time"`
}

type Offer struct {
	OfferedPositionID string  `json:"offered_position_id"`
	Salary            float64 `json:"salary"`
	Benefits          string  `json:"benefits,omitempty"`
	OfferStatus       string  `json:"offer_status" enum:"Pending,Accepted,Rejected"`
	OfferDate         string  `json:"offer_date" format:"date-time"`
	AcceptanceDate    *string `json:"acceptance_date,omitempty" format:"date-time"`
	RejectionDate     *string `json:"rejection_date,omitempty" format:"date-time"`
}

type HireRecord struct {
	PositionID   string  `json:"position_id"`
	HiringDate   string  `json:"hiring_date" format:"date-time"`
	StartDate    string  `json:"start_date" format:"date-time"`
	AgreedSalary float64 `json:"agreed_salary"`
}

type RejectionRecord struct {
	Reason        string `json:"reason"`
	RejectionDate string `json:"rejection_date" format:"date-time"`
	RejectedBy    string `json:"rejected_by"`
}

// AssessmentDefinition is a catalog entry candidates get assessed against.
type AssessmentDefinition struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	MaxScore    int    `json:"max_score"`
	CreatedAt   string `json:"created_at" format:"date-time"`
}

type Position struct {
	ID         string `json:"id"`
	Title      string `json:"title"`
	Department string `json:"department,omitempty"`
	CreatedAt  string `json:"created_at" format:"date-time"`
}

type Evaluator struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Email     string `json:"email,omitempty"`
	CreatedAt string `json:"created_at" format:"date-time"`
}

type Event struct {
	ID          int64  `json:"id"`
	TS          string `json:"ts" format:"date-time"`
	Type        string `json:"type"`
	CandidateID string `json:"candidate_id,omitempty"`
	EntityKind  string `json:"entity_kind"`
	EntityID    string `json:"entity_id,omitempty"`
	ActorID     string `json:"actor_id"`
	Payload     string `json:"payload_json"`
}

type APIKey struct {
	ID        string `json:"id"`
	ActorID   string `json:"actor_id"`
	Name      string `json:"name,omitempty"`
	KeyHash   string `json:"key_hash"`
	CreatedAt string `json:"created_at" format:"date-time"`
}
