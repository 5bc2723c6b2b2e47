package talentlinesdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client is a minimal Talentline HTTP API client.
type Client struct {
	BaseURL     string
	APIKey      string
	BearerToken string
	HTTPClient  *http.Client
	Timeout     time.Duration
}

// New creates a client with sane defaults.
func New(baseURL string) *Client {
	return &Client{
		BaseURL: baseURL,
		Timeout: 10 * time.Second,
	}
}

// Candidate represents the API candidate model (partial).
type Candidate struct {
	ID            string       `json:"id"`
	FirstName     string       `json:"first_name"`
	LastName      string       `json:"last_name"`
	Email         string       `json:"email"`
	CurrentStatus string       `json:"current_status"`
	Assessments   []Assessment `json:"assessments,omitempty"`
	Interviews    []Interview  `json:"interviews,omitempty"`
	Version       int64        `json:"version"`
}

// Assessment is a scheduled assessment entry on a candidate.
type Assessment struct {
	ID            string  `json:"id"`
	AssessmentID  string  `json:"assessment_id"`
	Sequence      int     `json:"sequence"`
	Status        string  `json:"status"`
	ScheduledDate string  `json:"scheduled_date"`
	Score         *int    `json:"score,omitempty"`
	Remarks       *string `json:"remarks,omitempty"`
}

// Interview is a scheduled interview entry on a candidate.
type Interview struct {
	ID                string  `json:"id"`
	InterviewType     string  `json:"interview_type"`
	Sequence          int     `json:"sequence"`
	Status            string  `json:"status"`
	ScheduledDatetime string  `json:"scheduled_datetime"`
	Score             *int    `json:"score,omitempty"`
	Remarks           *string `json:"remarks,omitempty"`
}

// Eligibility reports whether scheduling is currently allowed.
type Eligibility struct {
	CanSchedule bool   `json:"can_schedule"`
	Reason      string `json:"reason,omitempty"`
}

// Event represents an audit log entry.
type Event struct {
	ID          int64  `json:"id"`
	TS          string `json:"ts"`
	Type        string `json:"type"`
	CandidateID string `json:"candidate_id"`
	EntityKind  string `json:"entity_kind"`
	EntityID    string `json:"entity_id"`
	ActorID     string `json:"actor_id"`
	Payload     string `json:"payload_json"`
}

// APIError wraps non-2xx responses.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error: status=%d body=%s", e.StatusCode, e.Body)
}

// PaginatedEvents wraps event listings with cursors. The cursor is the
// numeric event id to page past, matching the server's next_cursor field.
type PaginatedEvents struct {
	Items      []Event `json:"items"`
	NextCursor int64   `json:"next_cursor"`
}

// CreateCandidate registers a new application.
func (c *Client) CreateCandidate(ctx context.Context, firstName, lastName, email, phone string) (Candidate, error) {
	body := map[string]any{
		"first_name": firstName,
		"last_name":  lastName,
		"email":      email,
		"phone":      phone,
	}
	var resp Candidate
	err := c.do(ctx, http.MethodPost, "v0/candidates", body, &resp)
	return resp, err
}

// GetCandidate fetches a candidate with refreshed statuses.
func (c *Client) GetCandidate(ctx context.Context, id string) (Candidate, error) {
	var resp Candidate
	err := c.do(ctx, http.MethodGet, c.candidatePath(id, ""), nil, &resp)
	return resp, err
}

// ListCandidates returns all candidates.
func (c *Client) ListCandidates(ctx context.Context) ([]Candidate, error) {
	var resp struct {
		Items []Candidate `json:"items"`
	}
	err := c.do(ctx, http.MethodGet, "v0/candidates", nil, &resp)
	return resp.Items, err
}

// AttachAssessment schedules an assessment for a candidate.
func (c *Client) AttachAssessment(ctx context.Context, candidateID, assessmentID, evaluatorID, scheduledDate string) (Candidate, error) {
	body := map[string]any{
		"assessment_id":  assessmentID,
		"evaluator_id":   evaluatorID,
		"scheduled_date": scheduledDate,
	}
	var resp Candidate
	err := c.do(ctx, http.MethodPost, c.candidatePath(candidateID, "assessments"), body, &resp)
	return resp, err
}

// CompleteAssessment marks an assessment completed.
func (c *Client) CompleteAssessment(ctx context.Context, candidateID, assessmentID string) (Candidate, error) {
	var resp Candidate
	endpoint := c.candidatePath(candidateID, fmt.Sprintf("assessments/%s/complete", url.PathEscape(assessmentID)))
	err := c.do(ctx, http.MethodPost, endpoint, nil, &resp)
	return resp, err
}

// EvaluateAssessment records score and remarks for an assessment.
func (c *Client) EvaluateAssessment(ctx context.Context, candidateID, assessmentID string, score *int, remarks *string) (Candidate, error) {
	body := map[string]any{}
	if score != nil {
		body["score"] = *score
	}
	if remarks != nil {
		body["remarks"] = *remarks
	}
	var resp Candidate
	endpoint := c.candidatePath(candidateID, fmt.Sprintf("assessments/%s/evaluation", url.PathEscape(assessmentID)))
	err := c.do(ctx, http.MethodPost, endpoint, body, &resp)
	return resp, err
}

// AssessmentEligibility reports whether another assessment may be scheduled.
func (c *Client) AssessmentEligibility(ctx context.Context, candidateID string) (Eligibility, error) {
	var resp Eligibility
	err := c.do(ctx, http.MethodGet, c.candidatePath(candidateID, "assessments/eligibility"), nil, &resp)
	return resp, err
}

// AttachInterview schedules an interview for a candidate.
func (c *Client) AttachInterview(ctx context.Context, candidateID, interviewType, location, evaluatorID, scheduledDatetime string) (Candidate, error) {
	body := map[string]any{
		"interview_type":     interviewType,
		"interview_location": location,
		"evaluator_id":       evaluatorID,
		"scheduled_datetime": scheduledDatetime,
	}
	var resp Candidate
	err := c.do(ctx, http.MethodPost, c.candidatePath(candidateID, "interviews"), body, &resp)
	return resp, err
}

// CompleteInterview marks an interview conducted.
func (c *Client) CompleteInterview(ctx context.Context, candidateID, interviewID string) (Candidate, error) {
	var resp Candidate
	endpoint := c.candidatePath(candidateID, fmt.Sprintf("interviews/%s/complete", url.PathEscape(interviewID)))
	err := c.do(ctx, http.MethodPost, endpoint, nil, &resp)
	return resp, err
}

// EvaluateInterview records interview score and remarks.
func (c *Client) EvaluateInterview(ctx context.Context, candidateID, interviewID string, score *int, remarks *string) (Candidate, error) {
	body := map[string]any{}
	if score != nil {
		body["score"] = *score
	}
	if remarks != nil {
		body["remarks"] = *remarks
	}
	var resp Candidate
	endpoint := c.candidatePath(candidateID, fmt.Sprintf("interviews/%s/evaluation", url.PathEscape(interviewID)))
	err := c.do(ctx, http.MethodPost, endpoint, body, &resp)
	return resp, err
}

// InterviewEligibility reports whether an interview may be scheduled.
func (c *Client) InterviewEligibility(ctx context.Context, candidateID string) (Eligibility, error) {
	var resp Eligibility
	err := c.do(ctx, http.MethodGet, c.candidatePath(candidateID, "interviews/eligibility"), nil, &resp)
	return resp, err
}

// MakeOffer extends an offer.
func (c *Client) MakeOffer(ctx context.Context, candidateID, positionID string, salary float64, benefits string) (Candidate, error) {
	body := map[string]any{
		"position_id": positionID,
		"salary":      salary,
		"benefits":    benefits,
	}
	var resp Candidate
	err := c.do(ctx, http.MethodPost, c.candidatePath(candidateID, "offer"), body, &resp)
	return resp, err
}

// UpdateOffer updates offer status (Pending, Accepted, Rejected).
func (c *Client) UpdateOffer(ctx context.Context, candidateID, status string) (Candidate, error) {
	body := map[string]any{"status": status}
	var resp Candidate
	err := c.do(ctx, http.MethodPatch, c.candidatePath(candidateID, "offer"), body, &resp)
	return resp, err
}

// Hire records a hire.
func (c *Client) Hire(ctx context.Context, candidateID, positionID string, salary float64, startDate string) (Candidate, error) {
	body := map[string]any{
		"position_id":   positionID,
		"agreed_salary": salary,
		"start_date":    startDate,
	}
	var resp Candidate
	err := c.do(ctx, http.MethodPost, c.candidatePath(candidateID, "hire"), body, &resp)
	return resp, err
}

// Reject rejects a candidate.
func (c *Client) Reject(ctx context.Context, candidateID, reason string) (Candidate, error) {
	body := map[string]any{"reason": reason}
	var resp Candidate
	err := c.do(ctx, http.MethodPost, c.candidatePath(candidateID, "rejection"), body, &resp)
	return resp, err
}

// Events returns recent events for a candidate.
func (c *Client) Events(ctx context.Context, candidateID string, limit int) ([]Event, error) {
	page, err := c.EventsPage(ctx, candidateID, limit, 0)
	return page.Items, err
}

// EventsPage returns a paginated event listing.
func (c *Client) EventsPage(ctx context.Context, candidateID string, limit int, cursor int64) (PaginatedEvents, error) {
	endpoint := c.candidatePath(candidateID, "events")
	if limit > 0 {
		endpoint = fmt.Sprintf("%s?limit=%d", endpoint, limit)
	}
	if cursor > 0 {
		sep := "?"
		if strings.Contains(endpoint, "?") {
			sep = "&"
		}
		endpoint = fmt.Sprintf("%s%scursor=%d", endpoint, sep, cursor)
	}
	var resp PaginatedEvents
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any, out any) error {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
	url := c.base() + "/" + strings.TrimLeft(endpoint, "/")
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, url, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	switch {
	case c.BearerToken != "":
		req.Header.Set("Authorization", "Bearer "+c.BearerToken)
	case c.APIKey != "":
		req.Header.Set("X-Api-Key", c.APIKey)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return &APIError{StatusCode: resp.StatusCode, Body: string(b)}
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func (c *Client) candidatePath(candidateID, p string) string {
	base := fmt.Sprintf("v0/candidates/%s", url.PathEscape(candidateID))
	if p == "" {
		return base
	}
	return base + "/" + strings.TrimLeft(p, "/")
}

func (c *Client) base() string {
	return strings.TrimRight(c.BaseURL, "/")
}
