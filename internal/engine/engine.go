package engine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"talentline/internal/config"
	"talentline/internal/domain"
	"talentline/internal/events"
	"talentline/internal/repo"
)

type Engine struct {
	DB     *sql.DB
	Repo   repo.Repo
	Events events.Writer
	Config *config.Config
	Now    func() time.Time
}

func New(db *sql.DB, cfg *config.Config) Engine {
	if cfg == nil {
		cfg = config.Default()
	}
	return Engine{
		DB:     db,
		Repo:   repo.Repo{DB: db},
		Events: events.Writer{DB: db},
		Config: cfg,
		Now:    time.Now,
	}
}

func (e Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

func (e Engine) nowString() string {
	return e.now().UTC().Format(time.RFC3339)
}

// CandidateCreateOptions are parameters for intake of a new application.
type CandidateCreateOptions struct {
	ID        string
	FirstName string
	LastName  string
	Email     string
	Phone     string
	ActorID   string
}

func (e Engine) CreateCandidate(ctx context.Context, opts CandidateCreateOptions) (domain.Candidate, error) {
	var issues []string
	if opts.FirstName == "" {
		issues = append(issues, "first_name is required")
	}
	if opts.LastName == "" {
		issues = append(issues, "last_name is required")
	}
	if opts.Email == "" {
		issues = append(issues, "email is required")
	}
	if len(issues) > 0 {
		return domain.Candidate{}, ValidationError{Issues: issues}
	}
	now := e.nowString()
	id := opts.ID
	if id == "" {
		id = uuid.New().String()
	}
	c := domain.Candidate{
		ID:            id,
		FirstName:     opts.FirstName,
		LastName:      opts.LastName,
		Email:         opts.Email,
		Phone:         opts.Phone,
		CurrentStatus: domain.StageApplied,
		Version:       1,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Candidate{}, err
	}
	defer tx.Rollback()
	if err := e.Repo.InsertCandidate(ctx, tx, c); err != nil {
		return domain.Candidate{}, fmt.Errorf("insert candidate: %w", err)
	}
	if err := e.Events.Append(ctx, tx, "candidate.created", c.ID, "candidate", c.ID, opts.ActorID, events.EventPayload{"status": c.CurrentStatus}); err != nil {
		return domain.Candidate{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Candidate{}, err
	}
	return c, nil
}

// GetCandidate loads a candidate with nested statuses re-derived against the
// current clock. If the lazy derivation changed anything, the refreshed
// aggregate is persisted before being returned.
func (e Engine) GetCandidate(ctx context.Context, id string) (domain.Candidate, error) {
	c, err := e.Repo.GetCandidate(ctx, id)
	if err != nil {
		return c, err
	}
	return e.refreshCandidate(ctx, c)
}

// ListCandidates lists all candidates with the same lazy refresh as GetCandidate.
func (e Engine) ListCandidates(ctx context.Context) ([]domain.Candidate, error) {
	items, err := e.Repo.ListCandidates(ctx)
	if err != nil {
		return nil, err
	}
	for i := range items {
		items[i], err = e.refreshCandidate(ctx, items[i])
		if err != nil {
			return nil, err
		}
	}
	return items, nil
}

func (e Engine) refreshCandidate(ctx context.Context, c domain.Candidate) (domain.Candidate, error) {
	now := e.now()
	p := e.Config.Pipeline
	changed := false
	for i, a := range c.Assessments {
		derived := DeriveAssessmentStatus(a, now, p.AssessmentStartWindow(), p.CompletionAfter())
		if derived.Status != a.Status {
			c.Assessments[i] = derived
			changed = true
		}
	}
	for i, iv := range c.Interviews {
		derived := DeriveInterviewStatus(iv, now, p.InterviewStartWindow(), p.CompletionAfter())
		if derived.Status != iv.Status {
			c.Interviews[i] = derived
			changed = true
		}
	}
	if !changed {
		return c, nil
	}
	if next := ResolveOverallStatus(c); next != c.CurrentStatus {
		c.CurrentStatus = next
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return c, err
	}
	defer tx.Rollback()
	c.UpdatedAt = e.nowString()
	if err := e.Repo.SaveCandidateTx(ctx, tx, c); err != nil {
		// A concurrent writer refreshed first; serve the state we derived.
		if errors.Is(err, repo.ErrVersionConflict) {
			return c, nil
		}
		return c, err
	}
	if err := tx.Commit(); err != nil {
		return c, err
	}
	c.Version++
	return c, nil
}

// CanScheduleAssessment exposes the scheduling gate as a read operation.
func (e Engine) CanScheduleAssessment(ctx context.Context, candidateID string) (Eligibility, error) {
	c, err := e.Repo.GetCandidate(ctx, candidateID)
	if err != nil {
		return Eligibility{}, err
	}
	return CanScheduleAssessment(c), nil
}

func (e Engine) CanScheduleInterview(ctx context.Context, candidateID string) (Eligibility, error) {
	c, err := e.Repo.GetCandidate(ctx, candidateID)
	if err != nil {
		return Eligibility{}, err
	}
	return CanScheduleInterview(c), nil
}

// AttachAssessmentOptions are parameters for scheduling an assessment.
type AttachAssessmentOptions struct {
	CandidateID   string
	AssessmentID  string
	EvaluatorID   string
	ScheduledDate string
	ActorID       string
}

func (e Engine) AttachAssessment(ctx context.Context, opts AttachAssessmentOptions) (domain.Candidate, error) {
	if _, ok := parseTime(opts.ScheduledDate); !ok {
		return domain.Candidate{}, ValidationError{Issues: []string{"scheduled_date must be RFC3339"}}
	}
	c, err := e.Repo.GetCandidate(ctx, opts.CandidateID)
	if err != nil {
		return c, err
	}
	def, err := e.Repo.GetAssessmentDefinition(ctx, opts.AssessmentID)
	if err != nil {
		return c, err
	}
	if opts.EvaluatorID != "" {
		if _, err := e.Repo.GetEvaluator(ctx, opts.EvaluatorID); err != nil {
			return c, err
		}
	}
	for _, a := range c.Assessments {
		if a.AssessmentID == def.ID {
			return c, InvalidStateError{Reason: fmt.Sprintf("assessment %q is already attached", def.Name)}
		}
	}
	if el := CanScheduleAssessment(c); !el.OK {
		return c, InvalidStateError{Reason: el.Reason}
	}
	entry := domain.CandidateAssessment{
		ID:             uuid.New().String(),
		AssessmentID:   def.ID,
		AssessmentName: def.Name,
		MaxScore:       def.MaxScore,
		EvaluatorID:    opts.EvaluatorID,
		Sequence:       nextAssessmentSequence(c.Assessments),
		ScheduledDate:  opts.ScheduledDate,
		Status:         domain.ItemScheduled,
	}
	c.Assessments = append(c.Assessments, entry)
	// Direct assignment, not the resolver: attaching always lands here.
	c.CurrentStatus = domain.StageAssessmentScheduled
	return e.save(ctx, c, "assessment.attached", entry.ID, opts.ActorID, events.EventPayload{
		"assessment": def.Name,
		"sequence":   entry.Sequence,
	})
}

func (e Engine) CompleteAssessment(ctx context.Context, candidateID, assessmentID, actorID string) (domain.Candidate, error) {
	c, err := e.Repo.GetCandidate(ctx, candidateID)
	if err != nil {
		return c, err
	}
	a := findAssessment(&c, assessmentID)
	if a == nil {
		return c, fmt.Errorf("assessment %s for candidate %s: %w", assessmentID, candidateID, repo.ErrNotFound)
	}
	// Evaluated is guarded too: completion must never regress an item that
	// already carries its evaluation.
	switch a.Status {
	case domain.ItemCompleted:
		return c, InvalidStateError{Reason: fmt.Sprintf("assessment %q is already completed", a.AssessmentName)}
	case domain.ItemEvaluated:
		return c, InvalidStateError{Reason: fmt.Sprintf("assessment %q is already evaluated", a.AssessmentName)}
	}
	now := e.nowString()
	a.Status = domain.ItemCompleted
	a.CompletionDate = &now
	c.CurrentStatus = ResolveOverallStatus(c)
	return e.save(ctx, c, "assessment.completed", a.ID, actorID, events.EventPayload{"assessment": a.AssessmentName})
}

// EvaluateAssessmentOptions carry score/remarks; each is independently
// optional, but Evaluated is only reached once both are present.
type EvaluateAssessmentOptions struct {
	CandidateID  string
	AssessmentID string
	Score        *int
	Remarks      *string
	ActorID      string
}

func (e Engine) EvaluateAssessment(ctx context.Context, opts EvaluateAssessmentOptions) (domain.Candidate, error) {
	c, err := e.Repo.GetCandidate(ctx, opts.CandidateID)
	if err != nil {
		return c, err
	}
	if c.CurrentStatus == domain.StageRejected {
		return c, InvalidStateError{Reason: "candidate has been rejected"}
	}
	a := findAssessment(&c, opts.AssessmentID)
	if a == nil {
		return c, fmt.Errorf("assessment %s for candidate %s: %w", opts.AssessmentID, opts.CandidateID, repo.ErrNotFound)
	}
	if opts.Score != nil && (*opts.Score < 0 || *opts.Score > a.MaxScore) {
		return c, ValidationError{Issues: []string{fmt.Sprintf("score must be between 0 and %d", a.MaxScore)}}
	}
	prev := a.Status
	touched := false
	if opts.Score != nil {
		a.Score = opts.Score
		touched = true
		if prev == domain.ItemScheduled {
			a.Status = domain.ItemInProgress
		}
	}
	if opts.Remarks != nil {
		a.Remarks = opts.Remarks
		touched = true
	}
	if touched {
		now := e.nowString()
		a.EvaluationDate = &now
	}
	if a.Score != nil && a.Remarks != nil && a.Status != domain.ItemEvaluated {
		a.Status = domain.ItemEvaluated
	}
	if a.Status != prev {
		c.CurrentStatus = ResolveOverallStatus(c)
	}
	return e.save(ctx, c, "assessment.evaluated", a.ID, opts.ActorID, events.EventPayload{
		"assessment": a.AssessmentName,
		"status":     a.Status,
	})
}

// AttachInterviewOptions are parameters for scheduling an interview.
type AttachInterviewOptions struct {
	CandidateID       string
	InterviewType     string
	InterviewLocation string
	EvaluatorID       string
	ScheduledDatetime string
	ActorID           string
}

func (e Engine) AttachInterview(ctx context.Context, opts AttachInterviewOptions) (domain.Candidate, error) {
	var issues []string
	if opts.InterviewType == "" {
		issues = append(issues, "interview_type is required")
	}
	if _, ok := parseTime(opts.ScheduledDatetime); !ok {
		issues = append(issues, "scheduled_datetime must be RFC3339")
	}
	if len(issues) > 0 {
		return domain.Candidate{}, ValidationError{Issues: issues}
	}
	c, err := e.Repo.GetCandidate(ctx, opts.CandidateID)
	if err != nil {
		return c, err
	}
	if opts.EvaluatorID != "" {
		if _, err := e.Repo.GetEvaluator(ctx, opts.EvaluatorID); err != nil {
			return c, err
		}
	}
	if el := CanScheduleInterview(c); !el.OK {
		return c, InvalidStateError{Reason: el.Reason}
	}
	entry := domain.CandidateInterview{
		ID:                uuid.New().String(),
		InterviewType:     opts.InterviewType,
		InterviewLocation: opts.InterviewLocation,
		EvaluatorID:       opts.EvaluatorID,
		Sequence:          nextInterviewSequence(c.Interviews),
		ScheduledDatetime: opts.ScheduledDatetime,
		Status:            domain.ItemScheduled,
	}
	c.Interviews = append(c.Interviews, entry)
	c.CurrentStatus = domain.StageInterviewScheduled
	return e.save(ctx, c, "interview.attached", entry.ID, opts.ActorID, events.EventPayload{
		"interview_type": entry.InterviewType,
		"sequence":       entry.Sequence,
	})
}

func (e Engine) CompleteInterview(ctx context.Context, candidateID, interviewID, actorID string) (domain.Candidate, error) {
	c, err := e.Repo.GetCandidate(ctx, candidateID)
	if err != nil {
		return c, err
	}
	iv := findInterview(&c, interviewID)
	if iv == nil {
		return c, fmt.Errorf("interview %s for candidate %s: %w", interviewID, candidateID, repo.ErrNotFound)
	}
	switch iv.Status {
	case domain.ItemCompleted:
		return c, InvalidStateError{Reason: fmt.Sprintf("interview %q is already completed", iv.InterviewType)}
	case domain.ItemEvaluated:
		return c, InvalidStateError{Reason: fmt.Sprintf("interview %q is already evaluated", iv.InterviewType)}
	}
	now := e.nowString()
	iv.Status = domain.ItemCompleted
	iv.ConductedDate = &now
	c.CurrentStatus = ResolveOverallStatus(c)
	return e.save(ctx, c, "interview.completed", iv.ID, actorID, events.EventPayload{"interview_type": iv.InterviewType})
}

type EvaluateInterviewOptions struct {
	CandidateID string
	InterviewID string
	Score       *int
	Remarks     *string
	ActorID     string
}

func (e Engine) EvaluateInterview(ctx context.Context, opts EvaluateInterviewOptions) (domain.Candidate, error) {
	c, err := e.Repo.GetCandidate(ctx, opts.CandidateID)
	if err != nil {
		return c, err
	}
	if c.CurrentStatus == domain.StageRejected {
		return c, InvalidStateError{Reason: "candidate has been rejected"}
	}
	iv := findInterview(&c, opts.InterviewID)
	if iv == nil {
		return c, fmt.Errorf("interview %s for candidate %s: %w", opts.InterviewID, opts.CandidateID, repo.ErrNotFound)
	}
	prev := iv.Status
	touched := false
	if opts.Score != nil {
		iv.Score = opts.Score
		touched = true
		if prev == domain.ItemScheduled {
			iv.Status = domain.ItemInProgress
		}
	}
	if opts.Remarks != nil {
		iv.Remarks = opts.Remarks
		touched = true
	}
	if touched {
		now := e.nowString()
		iv.EvaluationDate = &now
	}
	if iv.Score != nil && iv.Remarks != nil && iv.Status != domain.ItemEvaluated {
		iv.Status = domain.ItemEvaluated
	}
	if iv.Status != prev {
		c.CurrentStatus = ResolveOverallStatus(c)
	}
	return e.save(ctx, c, "interview.evaluated", iv.ID, opts.ActorID, events.EventPayload{
		"interview_type": iv.InterviewType,
		"status":         iv.Status,
	})
}

// MakeOfferOptions are parameters for extending an offer.
type MakeOfferOptions struct {
	CandidateID string
	PositionID  string
	Salary      float64
	Benefits    string
	ActorID     string
}

func (e Engine) MakeOffer(ctx context.Context, opts MakeOfferOptions) (domain.Candidate, error) {
	c, err := e.Repo.GetCandidate(ctx, opts.CandidateID)
	if err != nil {
		return c, err
	}
	if c.Offer != nil {
		return c, InvalidStateError{Reason: "candidate already has an offer"}
	}
	pos, err := e.Repo.GetPosition(ctx, opts.PositionID)
	if err != nil {
		return c, err
	}
	c.Offer = &domain.Offer{
		OfferedPositionID: pos.ID,
		Salary:            opts.Salary,
		Benefits:          opts.Benefits,
		OfferStatus:       domain.OfferPending,
		OfferDate:         e.nowString(),
	}
	c.CurrentStatus = domain.StageOfferExtended
	return e.save(ctx, c, "offer.extended", c.ID, opts.ActorID, events.EventPayload{
		"position": pos.Title,
		"salary":   opts.Salary,
	})
}

func (e Engine) UpdateOfferStatus(ctx context.Context, candidateID, status, actorID string) (domain.Candidate, error) {
	c, err := e.Repo.GetCandidate(ctx, candidateID)
	if err != nil {
		return c, err
	}
	if c.Offer == nil {
		return c, InvalidStateError{Reason: "candidate has no offer"}
	}
	switch status {
	case domain.OfferPending, domain.OfferAccepted, domain.OfferRejected:
	default:
		return c, ValidationError{Issues: []string{fmt.Sprintf("offer status must be one of Pending, Accepted, Rejected; got %q", status)}}
	}
	now := e.nowString()
	c.Offer.OfferStatus = status
	switch status {
	case domain.OfferAccepted:
		c.Offer.AcceptanceDate = &now
		c.CurrentStatus = domain.StageOfferAccepted
	case domain.OfferRejected:
		c.Offer.RejectionDate = &now
		c.CurrentStatus = domain.StageRejected
	}
	return e.save(ctx, c, "offer.updated", c.ID, actorID, events.EventPayload{"offer_status": status})
}

// HireOptions are parameters for recording a hire.
type HireOptions struct {
	CandidateID  string
	PositionID   string
	AgreedSalary float64
	StartDate    string
	ActorID      string
}

func (e Engine) Hire(ctx context.Context, opts HireOptions) (domain.Candidate, error) {
	if _, ok := parseTime(opts.StartDate); !ok {
		return domain.Candidate{}, ValidationError{Issues: []string{"start_date must be RFC3339"}}
	}
	c, err := e.Repo.GetCandidate(ctx, opts.CandidateID)
	if err != nil {
		return c, err
	}
	if c.CurrentStatus == domain.StageHired {
		return c, InvalidStateError{Reason: "candidate is already hired"}
	}
	pos, err := e.Repo.GetPosition(ctx, opts.PositionID)
	if err != nil {
		return c, err
	}
	c.HiredDetails = &domain.HireRecord{
		PositionID:   pos.ID,
		HiringDate:   e.nowString(),
		StartDate:    opts.StartDate,
		AgreedSalary: opts.AgreedSalary,
	}
	c.CurrentStatus = domain.StageHired
	return e.save(ctx, c, "candidate.hired", c.ID, opts.ActorID, events.EventPayload{"position": pos.Title})
}

// Reject moves the candidate to Rejected and cancels every assessment and
// interview still Scheduled or In Progress; settled items keep their status.
func (e Engine) Reject(ctx context.Context, candidateID, reason, actorID string) (domain.Candidate, error) {
	c, err := e.Repo.GetCandidate(ctx, candidateID)
	if err != nil {
		return c, err
	}
	if c.CurrentStatus == domain.StageHired {
		return c, InvalidStateError{Reason: "candidate is already hired"}
	}
	cancelled := 0
	for i, a := range c.Assessments {
		if a.Status == domain.ItemScheduled || a.Status == domain.ItemInProgress {
			c.Assessments[i].Status = domain.ItemCancelled
			cancelled++
		}
	}
	for i, iv := range c.Interviews {
		if iv.Status == domain.ItemScheduled || iv.Status == domain.ItemInProgress {
			c.Interviews[i].Status = domain.ItemCancelled
			cancelled++
		}
	}
	c.RejectionDetails = &domain.RejectionRecord{
		Reason:        reason,
		RejectionDate: e.nowString(),
		RejectedBy:    actorID,
	}
	c.CurrentStatus = domain.StageRejected
	return e.save(ctx, c, "candidate.rejected", c.ID, actorID, events.EventPayload{
		"reason":    reason,
		"cancelled": cancelled,
	})
}

// OverrideStatus sets the pipeline stage verbatim, bypassing the resolver.
// Administrative escape hatch; the only gate is the stage enum itself.
func (e Engine) OverrideStatus(ctx context.Context, candidateID, status, actorID string) (domain.Candidate, error) {
	stage, err := domain.ParseStage(status)
	if err != nil {
		return domain.Candidate{}, ValidationError{Issues: []string{err.Error()}}
	}
	c, err := e.Repo.GetCandidate(ctx, candidateID)
	if err != nil {
		return c, err
	}
	from := c.CurrentStatus
	c.CurrentStatus = stage
	return e.save(ctx, c, "candidate.status.overridden", c.ID, actorID, events.EventPayload{
		"from": from,
		"to":   stage,
	})
}

// ListEvents returns the candidate's audit trail, newest first.
func (e Engine) ListEvents(ctx context.Context, candidateID string, limit int, cursor int64) ([]domain.Event, error) {
	if _, err := e.Repo.GetCandidate(ctx, candidateID); err != nil {
		return nil, err
	}
	return e.Repo.ListEvents(ctx, candidateID, limit, cursor)
}

// save writes the aggregate and its audit event in one transaction.
func (e Engine) save(ctx context.Context, c domain.Candidate, evtType, entityID, actorID string, payload events.EventPayload) (domain.Candidate, error) {
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return c, err
	}
	defer tx.Rollback()
	c.UpdatedAt = e.nowString()
	if err := e.Repo.SaveCandidateTx(ctx, tx, c); err != nil {
		return c, err
	}
	if err := e.Events.Append(ctx, tx, evtType, c.ID, "candidate", entityID, actorID, payload); err != nil {
		return c, err
	}
	if err := tx.Commit(); err != nil {
		return c, err
	}
	c.Version++
	return c, nil
}

func nextAssessmentSequence(list []domain.CandidateAssessment) int {
	max := 0
	for _, a := range list {
		if a.Sequence > max {
			max = a.Sequence
		}
	}
	return max + 1
}

func nextInterviewSequence(list []domain.CandidateInterview) int {
	max := 0
	for _, iv := range list {
		if iv.Sequence > max {
			max = iv.Sequence
		}
	}
	return max + 1
}

// findAssessment matches by entry id or by the referenced definition id;
// the attach-time duplicate check keeps definition ids unique per candidate.
func findAssessment(c *domain.Candidate, id string) *domain.CandidateAssessment {
	for i := range c.Assessments {
		if c.Assessments[i].ID == id || c.Assessments[i].AssessmentID == id {
			return &c.Assessments[i]
		}
	}
	return nil
}

func findInterview(c *domain.Candidate, id string) *domain.CandidateInterview {
	for i := range c.Interviews {
		if c.Interviews[i].ID == id {
			return &c.Interviews[i]
		}
	}
	return nil
}
