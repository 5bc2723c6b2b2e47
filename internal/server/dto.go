package server

import "talentline/internal/domain"

type CreateCandidateRequest struct {
	FirstName string `json:"first_name" example:"Ada"`
	LastName  string `json:"last_name" example:"Lovelace"`
	Email     string `json:"email" format:"email"`
	Phone     string `json:"phone,omitempty"`
}

type AttachAssessmentRequest struct {
	AssessmentID  string `json:"assessment_id"`
	EvaluatorID   string `json:"evaluator_id,omitempty"`
	ScheduledDate string `json:"scheduled_date" format:"date-time"`
}

type AttachInterviewRequest struct {
	InterviewType     string `json:"interview_type" example:"Technical"`
	InterviewLocation string `json:"interview_location,omitempty"`
	EvaluatorID       string `json:"evaluator_id,omitempty"`
	ScheduledDatetime string `json:"scheduled_datetime" format:"date-time"`
}

// EvaluateRequest carries the evaluation outcome; both fields are optional
// so score and remarks can land in separate calls.
type EvaluateRequest struct {
	Score   *int    `json:"score,omitempty" minimum:"0"`
	Remarks *string `json:"remarks,omitempty"`
}

type MakeOfferRequest struct {
	PositionID string  `json:"position_id"`
	Salary     float64 `json:"salary"`
	Benefits   string  `json:"benefits,omitempty"`
}

type UpdateOfferRequest struct {
	Status string `json:"status" enum:"Pending,Accepted,Rejected"`
}

type HireRequest struct {
	PositionID   string  `json:"position_id"`
	AgreedSalary float64 `json:"agreed_salary"`
	StartDate    string  `json:"start_date" format:"date-time"`
}

type RejectRequest struct {
	Reason string `json:"reason"`
}

type OverrideStatusRequest struct {
	Status string `json:"status"`
}

type CreateDefinitionRequest struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	MaxScore    int    `json:"max_score" minimum:"1"`
}

type CreatePositionRequest struct {
	Title      string `json:"title"`
	Department string `json:"department,omitempty"`
}

type CreateEvaluatorRequest struct {
	Name  string `json:"name"`
	Email string `json:"email,omitempty" format:"email"`
}

type CandidateListResponse struct {
	Items []domain.Candidate `json:"items"`
}

type EventListResponse struct {
	Items      []domain.Event `json:"items"`
	NextCursor int64          `json:"next_cursor,omitempty"`
}

type DevLoginRequest struct {
	ActorID string   `json:"actor_id"`
	Roles   []string `json:"roles,omitempty"`
}

type DevLoginResponse struct {
	Token string `json:"token"`
}
