package server

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"
	humachi "github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"talentline/internal/domain"
	"talentline/internal/engine"
	"talentline/internal/repo"
)

// Config for the HTTP API handler.
type Config struct {
	Engine   engine.Engine
	BasePath string
	Auth     AuthConfig
}

type apiErrorBody struct {
	Code    string         `json:"code" example:"invalid_state"`
	Message string         `json:"message" example:"candidate has been rejected"`
	Details map[string]any `json:"details,omitempty" jsonschema:"type=object,additionalProperties=true"`
}

// apiError models the error envelope.
type apiError struct {
	status int
	Body   apiErrorBody `json:"error"`
}

func (e *apiError) GetStatus() int { return e.status }
func (e *apiError) Error() string  { return e.Body.Message }

// New returns an HTTP handler exposing the Talentline API.
func New(cfg Config) (http.Handler, error) {
	basePath := cfg.BasePath
	if basePath == "" {
		basePath = "/v0"
	}
	if !strings.HasPrefix(basePath, "/") {
		basePath = "/" + basePath
	}
	huma.DefaultArrayNullable = false
	huma.NewError = func(status int, msg string, errs ...error) huma.StatusError {
		return newAPIError(status, "", msg, nil)
	}
	huma.NewErrorWithContext = func(_ huma.Context, status int, msg string, errs ...error) huma.StatusError {
		if status == http.StatusUnprocessableEntity && strings.Contains(strings.ToLower(msg), "validation") {
			status = http.StatusBadRequest
		}
		var details map[string]any
		if len(errs) > 0 {
			details = map[string]any{"errors": errs}
		}
		return newAPIError(status, "", msg, details)
	}

	router := chi.NewRouter()
	router.Use(newAuthMiddleware(basePath, cfg.Auth, cfg.Engine.Repo))
	hcfg := huma.DefaultConfig("Talentline API", "0.1.0")
	hcfg.OpenAPIPath = "/openapi"
	api := humachi.New(router, hcfg)
	group := huma.NewGroup(api, basePath)

	registerHealth(group)
	registerCandidates(group, cfg.Engine)
	registerAssessments(group, cfg.Engine)
	registerInterviews(group, cfg.Engine)
	registerOffers(group, cfg.Engine)
	registerCatalog(group, cfg.Engine)
	registerEvents(group, cfg.Engine)
	registerDevAuth(group, cfg.Auth)

	return router, nil
}

func newAPIError(status int, code, message string, details map[string]any) huma.StatusError {
	if code == "" {
		code = defaultCodeForStatus(status)
	}
	return &apiError{
		status: status,
		Body: apiErrorBody{
			Code:    code,
			Message: message,
			Details: details,
		},
	}
}

// handleError maps engine errors to the wire envelope. NotFound, invalid
// state, validation and concurrency conflicts each keep a distinct code so
// consumers can match on them.
func handleError(err error) huma.StatusError {
	if err == nil {
		return nil
	}
	if se, ok := err.(huma.StatusError); ok {
		return se
	}
	if errors.Is(err, repo.ErrNotFound) {
		return newAPIError(http.StatusNotFound, "not_found", err.Error(), nil)
	}
	if errors.Is(err, repo.ErrVersionConflict) {
		return newAPIError(http.StatusConflict, "conflict", err.Error(), nil)
	}
	var ise engine.InvalidStateError
	if errors.As(err, &ise) {
		return newAPIError(http.StatusConflict, "invalid_state", ise.Reason, nil)
	}
	var ve engine.ValidationError
	if errors.As(err, &ve) {
		issues := make([]any, 0, len(ve.Issues))
		for _, i := range ve.Issues {
			issues = append(issues, i)
		}
		return newAPIError(http.StatusBadRequest, "bad_request", ve.Error(), map[string]any{"issues": issues})
	}
	return newAPIError(http.StatusInternalServerError, "internal_error", "internal error", map[string]any{"error": err.Error()})
}

func defaultCodeForStatus(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "bad_request"
	case http.StatusNotFound:
		return "not_found"
	case http.StatusConflict:
		return "conflict"
	case http.StatusForbidden:
		return "forbidden"
	case http.StatusInternalServerError:
		return "internal_error"
	default:
		return strings.ToLower(strings.ReplaceAll(http.StatusText(status), " ", "_"))
	}
}

type candidateOutput struct {
	Body domain.Candidate `json:"body"`
}

type CandidatePath struct {
	CandidateID string `path:"candidate_id"`
}

func registerHealth(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "health",
		Method:      http.MethodGet,
		Path:        "/health",
		Summary:     "Health check",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body map[string]string `json:"body"`
	}, error) {
		return &struct {
			Body map[string]string `json:"body"`
		}{Body: map[string]string{"status": "ok"}}, nil
	})
}

func registerCandidates(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "list-candidates",
		Method:      http.MethodGet,
		Path:        "/candidates",
		Summary:     "List candidates with refreshed statuses",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body CandidateListResponse `json:"body"`
	}, error) {
		items, err := e.ListCandidates(ctx)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body CandidateListResponse `json:"body"`
		}{Body: CandidateListResponse{Items: items}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "create-candidate",
		Method:        http.MethodPost,
		Path:          "/candidates",
		Summary:       "Register an application",
		DefaultStatus: http.StatusCreated,
	}, func(ctx context.Context, input *struct {
		Body CreateCandidateRequest `json:"body"`
	}) (*candidateOutput, error) {
		actor, aerr := actorIDFromContext(ctx)
		if aerr != nil {
			return nil, aerr
		}
		c, err := e.CreateCandidate(ctx, engine.CandidateCreateOptions{
			FirstName: input.Body.FirstName,
			LastName:  input.Body.LastName,
			Email:     input.Body.Email,
			Phone:     input.Body.Phone,
			ActorID:   actor,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &candidateOutput{Body: c}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-candidate",
		Method:      http.MethodGet,
		Path:        "/candidates/{candidate_id}",
		Summary:     "Get candidate with refreshed statuses",
	}, func(ctx context.Context, input *CandidatePath) (*candidateOutput, error) {
		c, err := e.GetCandidate(ctx, input.CandidateID)
		if err != nil {
			return nil, handleError(err)
		}
		return &candidateOutput{Body: c}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "override-candidate-status",
		Method:      http.MethodPut,
		Path:        "/candidates/{candidate_id}/status",
		Summary:     "Administrative status override",
	}, func(ctx context.Context, input *struct {
		CandidatePath
		Body OverrideStatusRequest `json:"body"`
	}) (*candidateOutput, error) {
		actor, aerr := actorIDFromContext(ctx)
		if aerr != nil {
			return nil, aerr
		}
		c, err := e.OverrideStatus(ctx, input.CandidateID, input.Body.Status, actor)
		if err != nil {
			return nil, handleError(err)
		}
		return &candidateOutput{Body: c}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "candidate-hire",
		Method:      http.MethodPost,
		Path:        "/candidates/{candidate_id}/hire",
		Summary:     "Record a hire",
	}, func(ctx context.Context, input *struct {
		CandidatePath
		Body HireRequest `json:"body"`
	}) (*candidateOutput, error) {
		actor, aerr := actorIDFromContext(ctx)
		if aerr != nil {
			return nil, aerr
		}
		c, err := e.Hire(ctx, engine.HireOptions{
			CandidateID:  input.CandidateID,
			PositionID:   input.Body.PositionID,
			AgreedSalary: input.Body.AgreedSalary,
			StartDate:    input.Body.StartDate,
			ActorID:      actor,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &candidateOutput{Body: c}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "candidate-reject",
		Method:      http.MethodPost,
		Path:        "/candidates/{candidate_id}/rejection",
		Summary:     "Reject a candidate",
	}, func(ctx context.Context, input *struct {
		CandidatePath
		Body RejectRequest `json:"body"`
	}) (*candidateOutput, error) {
		actor, aerr := actorIDFromContext(ctx)
		if aerr != nil {
			return nil, aerr
		}
		c, err := e.Reject(ctx, input.CandidateID, input.Body.Reason, actor)
		if err != nil {
			return nil, handleError(err)
		}
		return &candidateOutput{Body: c}, nil
	})
}

func registerAssessments(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "attach-assessment",
		Method:        http.MethodPost,
		Path:          "/candidates/{candidate_id}/assessments",
		Summary:       "Schedule an assessment",
		DefaultStatus: http.StatusCreated,
	}, func(ctx context.Context, input *struct {
		CandidatePath
		Body AttachAssessmentRequest `json:"body"`
	}) (*candidateOutput, error) {
		actor, aerr := actorIDFromContext(ctx)
		if aerr != nil {
			return nil, aerr
		}
		c, err := e.AttachAssessment(ctx, engine.AttachAssessmentOptions{
			CandidateID:   input.CandidateID,
			AssessmentID:  input.Body.AssessmentID,
			EvaluatorID:   input.Body.EvaluatorID,
			ScheduledDate: input.Body.ScheduledDate,
			ActorID:       actor,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &candidateOutput{Body: c}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "complete-assessment",
		Method:      http.MethodPost,
		Path:        "/candidates/{candidate_id}/assessments/{assessment_id}/complete",
		Summary:     "Mark an assessment completed",
	}, func(ctx context.Context, input *struct {
		CandidatePath
		AssessmentID string `path:"assessment_id"`
	}) (*candidateOutput, error) {
		actor, aerr := actorIDFromContext(ctx)
		if aerr != nil {
			return nil, aerr
		}
		c, err := e.CompleteAssessment(ctx, input.CandidateID, input.AssessmentID, actor)
		if err != nil {
			return nil, handleError(err)
		}
		return &candidateOutput{Body: c}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "evaluate-assessment",
		Method:      http.MethodPost,
		Path:        "/candidates/{candidate_id}/assessments/{assessment_id}/evaluation",
		Summary:     "Record assessment score and remarks",
	}, func(ctx context.Context, input *struct {
		CandidatePath
		AssessmentID string          `path:"assessment_id"`
		Body         EvaluateRequest `json:"body"`
	}) (*candidateOutput, error) {
		actor, aerr := actorIDFromContext(ctx)
		if aerr != nil {
			return nil, aerr
		}
		c, err := e.EvaluateAssessment(ctx, engine.EvaluateAssessmentOptions{
			CandidateID:  input.CandidateID,
			AssessmentID: input.AssessmentID,
			Score:        input.Body.Score,
			Remarks:      input.Body.Remarks,
			ActorID:      actor,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &candidateOutput{Body: c}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "can-schedule-assessment",
		Method:      http.MethodGet,
		Path:        "/candidates/{candidate_id}/assessments/eligibility",
		Summary:     "Check whether a new assessment may be scheduled",
	}, func(ctx context.Context, input *CandidatePath) (*struct {
		Body engine.Eligibility `json:"body"`
	}, error) {
		el, err := e.CanScheduleAssessment(ctx, input.CandidateID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body engine.Eligibility `json:"body"`
		}{Body: el}, nil
	})
}

func registerInterviews(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "attach-interview",
		Method:        http.MethodPost,
		Path:          "/candidates/{candidate_id}/interviews",
		Summary:       "Schedule an interview",
		DefaultStatus: http.StatusCreated,
	}, func(ctx context.Context, input *struct {
		CandidatePath
		Body AttachInterviewRequest `json:"body"`
	}) (*candidateOutput, error) {
		actor, aerr := actorIDFromContext(ctx)
		if aerr != nil {
			return nil, aerr
		}
		c, err := e.AttachInterview(ctx, engine.AttachInterviewOptions{
			CandidateID:       input.CandidateID,
			InterviewType:     input.Body.InterviewType,
			InterviewLocation: input.Body.InterviewLocation,
			EvaluatorID:       input.Body.EvaluatorID,
			ScheduledDatetime: input.Body.ScheduledDatetime,
			ActorID:           actor,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &candidateOutput{Body: c}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "complete-interview",
		Method:      http.MethodPost,
		Path:        "/candidates/{candidate_id}/interviews/{interview_id}/complete",
		Summary:     "Mark an interview conducted",
	}, func(ctx context.Context, input *struct {
		CandidatePath
		InterviewID string `path:"interview_id"`
	}) (*candidateOutput, error) {
		actor, aerr := actorIDFromContext(ctx)
		if aerr != nil {
			return nil, aerr
		}
		c, err := e.CompleteInterview(ctx, input.CandidateID, input.InterviewID, actor)
		if err != nil {
			return nil, handleError(err)
		}
		return &candidateOutput{Body: c}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "evaluate-interview",
		Method:      http.MethodPost,
		Path:        "/candidates/{candidate_id}/interviews/{interview_id}/evaluation",
		Summary:     "Record interview score and remarks",
	}, func(ctx context.Context, input *struct {
		CandidatePath
		InterviewID string          `path:"interview_id"`
		Body        EvaluateRequest `json:"body"`
	}) (*candidateOutput, error) {
		actor, aerr := actorIDFromContext(ctx)
		if aerr != nil {
			return nil, aerr
		}
		c, err := e.EvaluateInterview(ctx, engine.EvaluateInterviewOptions{
			CandidateID: input.CandidateID,
			InterviewID: input.InterviewID,
			Score:       input.Body.Score,
			Remarks:     input.Body.Remarks,
			ActorID:     actor,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &candidateOutput{Body: c}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "can-schedule-interview",
		Method:      http.MethodGet,
		Path:        "/candidates/{candidate_id}/interviews/eligibility",
		Summary:     "Check whether a new interview may be scheduled",
	}, func(ctx context.Context, input *CandidatePath) (*struct {
		Body engine.Eligibility `json:"body"`
	}, error) {
		el, err := e.CanScheduleInterview(ctx, input.CandidateID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body engine.Eligibility `json:"body"`
		}{Body: el}, nil
	})
}

func registerOffers(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "make-offer",
		Method:        http.MethodPost,
		Path:          "/candidates/{candidate_id}/offer",
		Summary:       "Extend an offer",
		DefaultStatus: http.StatusCreated,
	}, func(ctx context.Context, input *struct {
		CandidatePath
		Body MakeOfferRequest `json:"body"`
	}) (*candidateOutput, error) {
		actor, aerr := actorIDFromContext(ctx)
		if aerr != nil {
			return nil, aerr
		}
		c, err := e.MakeOffer(ctx, engine.MakeOfferOptions{
			CandidateID: input.CandidateID,
			PositionID:  input.Body.PositionID,
			Salary:      input.Body.Salary,
			Benefits:    input.Body.Benefits,
			ActorID:     actor,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &candidateOutput{Body: c}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-offer-status",
		Method:      http.MethodPatch,
		Path:        "/candidates/{candidate_id}/offer",
		Summary:     "Update offer status",
	}, func(ctx context.Context, input *struct {
		CandidatePath
		Body UpdateOfferRequest `json:"body"`
	}) (*candidateOutput, error) {
		actor, aerr := actorIDFromContext(ctx)
		if aerr != nil {
			return nil, aerr
		}
		c, err := e.UpdateOfferStatus(ctx, input.CandidateID, input.Body.Status, actor)
		if err != nil {
			return nil, handleError(err)
		}
		return &candidateOutput{Body: c}, nil
	})
}

func registerCatalog(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "list-assessment-definitions",
		Method:      http.MethodGet,
		Path:        "/assessments",
		Summary:     "List assessment definitions",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body []domain.AssessmentDefinition `json:"body"`
	}, error) {
		items, err := e.Repo.ListAssessmentDefinitions(ctx)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []domain.AssessmentDefinition `json:"body"`
		}{Body: items}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "create-assessment-definition",
		Method:        http.MethodPost,
		Path:          "/assessments",
		Summary:       "Create an assessment definition",
		DefaultStatus: http.StatusCreated,
	}, func(ctx context.Context, input *struct {
		Body CreateDefinitionRequest `json:"body"`
	}) (*struct {
		Body domain.AssessmentDefinition `json:"body"`
	}, error) {
		if input.Body.Name == "" {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "name is required", nil)
		}
		d := domain.AssessmentDefinition{
			ID:          uuid.New().String(),
			Name:        input.Body.Name,
			Description: input.Body.Description,
			MaxScore:    input.Body.MaxScore,
			CreatedAt:   time.Now().UTC().Format(time.RFC3339),
		}
		if d.MaxScore <= 0 {
			d.MaxScore = 100
		}
		if err := e.Repo.InsertAssessmentDefinition(ctx, d); err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.AssessmentDefinition `json:"body"`
		}{Body: d}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-positions",
		Method:      http.MethodGet,
		Path:        "/positions",
		Summary:     "List positions",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body []domain.Position `json:"body"`
	}, error) {
		items, err := e.Repo.ListPositions(ctx)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []domain.Position `json:"body"`
		}{Body: items}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "create-position",
		Method:        http.MethodPost,
		Path:          "/positions",
		Summary:       "Create a position",
		DefaultStatus: http.StatusCreated,
	}, func(ctx context.Context, input *struct {
		Body CreatePositionRequest `json:"body"`
	}) (*struct {
		Body domain.Position `json:"body"`
	}, error) {
		if input.Body.Title == "" {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "title is required", nil)
		}
		p := domain.Position{
			ID:         uuid.New().String(),
			Title:      input.Body.Title,
			Department: input.Body.Department,
			CreatedAt:  time.Now().UTC().Format(time.RFC3339),
		}
		if err := e.Repo.InsertPosition(ctx, p); err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Position `json:"body"`
		}{Body: p}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-evaluators",
		Method:      http.MethodGet,
		Path:        "/evaluators",
		Summary:     "List evaluators",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body []domain.Evaluator `json:"body"`
	}, error) {
		items, err := e.Repo.ListEvaluators(ctx)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []domain.Evaluator `json:"body"`
		}{Body: items}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "create-evaluator",
		Method:        http.MethodPost,
		Path:          "/evaluators",
		Summary:       "Create an evaluator",
		DefaultStatus: http.StatusCreated,
	}, func(ctx context.Context, input *struct {
		Body CreateEvaluatorRequest `json:"body"`
	}) (*struct {
		Body domain.Evaluator `json:"body"`
	}, error) {
		if input.Body.Name == "" {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "name is required", nil)
		}
		ev := domain.Evaluator{
			ID:        uuid.New().String(),
			Name:      input.Body.Name,
			Email:     input.Body.Email,
			CreatedAt: time.Now().UTC().Format(time.RFC3339),
		}
		if err := e.Repo.InsertEvaluator(ctx, ev); err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Evaluator `json:"body"`
		}{Body: ev}, nil
	})
}

func registerEvents(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "list-candidate-events",
		Method:      http.MethodGet,
		Path:        "/candidates/{candidate_id}/events",
		Summary:     "Candidate audit trail",
	}, func(ctx context.Context, input *struct {
		CandidatePath
		Limit  int   `query:"limit" default:"50" maximum:"500"`
		Cursor int64 `query:"cursor"`
	}) (*struct {
		Body EventListResponse `json:"body"`
	}, error) {
		items, err := e.ListEvents(ctx, input.CandidateID, input.Limit, input.Cursor)
		if err != nil {
			return nil, handleError(err)
		}
		resp := EventListResponse{Items: items}
		if input.Limit > 0 && len(items) == input.Limit {
			resp.NextCursor = items[len(items)-1].ID
		}
		return &struct {
			Body EventListResponse `json:"body"`
		}{Body: resp}, nil
	})
}

func registerDevAuth(api huma.API, authCfg AuthConfig) {
	huma.Register(api, huma.Operation{
		OperationID: "dev-login",
		Method:      http.MethodPost,
		Path:        "/auth/dev/login",
		Summary:     "DEV ONLY: mint a JWT for local testing",
	}, func(ctx context.Context, input *struct {
		Body DevLoginRequest `json:"body"`
	}) (*struct {
		Body DevLoginResponse `json:"body"`
	}, error) {
		actor := strings.TrimSpace(input.Body.ActorID)
		if actor == "" {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "actor_id is required", nil)
		}
		token, err := signDevToken(authCfg.JWTSecret, actor, input.Body.Roles)
		if err != nil {
			return nil, newAPIError(http.StatusInternalServerError, "internal_error", err.Error(), nil)
		}
		return &struct {
			Body DevLoginResponse `json:"body"`
		}{Body: DevLoginResponse{Token: token}}, nil
	})
}
