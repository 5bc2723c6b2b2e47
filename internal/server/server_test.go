package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"testing"
	"time"

	"talentline/internal/config"
	"talentline/internal/db"
	"talentline/internal/domain"
	"talentline/internal/engine"
	"talentline/internal/migrate"
	"talentline/internal/repo"
)

const testJWTSecret = "test-secret"

type testServer struct {
	URL    string
	Engine engine.Engine
	client *http.Client
	close  func()
}

func (s *testServer) Client() *http.Client { return s.client }
func (s *testServer) Close()               { s.close() }

func newTestServer(t *testing.T) (*testServer, func()) {
	t.Helper()
	workspace := t.TempDir()
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	e := engine.New(conn, config.Default())
	ctx := context.Background()
	now := time.Now().UTC().Format(time.RFC3339)
	if err := e.Repo.InsertAssessmentDefinition(ctx, domain.AssessmentDefinition{
		ID: "def-coding", Name: "Coding Challenge", MaxScore: 100, CreatedAt: now,
	}); err != nil {
		t.Fatalf("seed definition: %v", err)
	}
	if err := e.Repo.InsertPosition(ctx, domain.Position{
		ID: "pos-backend", Title: "Backend Engineer", CreatedAt: now,
	}); err != nil {
		t.Fatalf("seed position: %v", err)
	}
	handler, err := New(Config{
		Engine:   e,
		BasePath: "/v0",
		Auth: AuthConfig{
			JWTSecret:              testJWTSecret,
			AllowLegacyActorHeader: true,
		},
	})
	if err != nil {
		t.Fatalf("build handler: %v", err)
	}
	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	srv := &http.Server{Handler: handler}
	go srv.Serve(ln)
	testSrv := &testServer{
		URL:    "http://" + ln.Addr().String(),
		Engine: e,
		client: &http.Client{},
		close: func() {
			srv.Shutdown(context.Background())
			ln.Close()
			conn.Close()
		},
	}
	return testSrv, func() { testSrv.Close() }
}

func doJSON(t *testing.T, client *http.Client, method, url string, body any, headers map[string]string) (*http.Response, []byte) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	res, err := client.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer res.Body.Close()
	data, err := io.ReadAll(res.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return res, data
}

func actorHeaders() map[string]string {
	return map[string]string{"X-Actor-Id": "recruiter-1"}
}

type errorEnvelope struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func decodeCandidate(t *testing.T, data []byte) domain.Candidate {
	t.Helper()
	var c domain.Candidate
	if err := json.Unmarshal(data, &c); err != nil {
		t.Fatalf("unmarshal candidate: %v (%s)", err, string(data))
	}
	return c
}

func TestCandidatePipelineOverHTTP(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()

	res, data := doJSON(t, client, http.MethodPost, srv.URL+"/v0/candidates", map[string]any{
		"first_name": "Grace",
		"last_name":  "Hopper",
		"email":      "grace@example.com",
	}, actorHeaders())
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create candidate status %d: %s", res.StatusCode, string(data))
	}
	c := decodeCandidate(t, data)
	if c.CurrentStatus != domain.StageApplied {
		t.Fatalf("new candidate stage %q", c.CurrentStatus)
	}

	when := time.Now().UTC().Add(24 * time.Hour).Format(time.RFC3339)
	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v0/candidates/"+c.ID+"/assessments", map[string]any{
		"assessment_id":  "def-coding",
		"scheduled_date": when,
	}, actorHeaders())
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("attach assessment status %d: %s", res.StatusCode, string(data))
	}
	c = decodeCandidate(t, data)
	if c.CurrentStatus != domain.StageAssessmentScheduled {
		t.Fatalf("after attach stage %q", c.CurrentStatus)
	}
	assessmentID := c.Assessments[0].ID

	// The unevaluated assessment blocks both gates.
	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v0/candidates/"+c.ID+"/assessments/eligibility", nil, actorHeaders())
	if res.StatusCode != http.StatusOK {
		t.Fatalf("eligibility status %d: %s", res.StatusCode, string(data))
	}
	var el engine.Eligibility
	if err := json.Unmarshal(data, &el); err != nil {
		t.Fatalf("unmarshal eligibility: %v", err)
	}
	if el.OK || el.Reason == "" {
		t.Fatalf("eligibility = %+v, want blocked with reason", el)
	}

	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v0/candidates/"+c.ID+"/assessments/"+assessmentID+"/evaluation", map[string]any{
		"score":   91,
		"remarks": "excellent",
	}, actorHeaders())
	if res.StatusCode != http.StatusOK {
		t.Fatalf("evaluate status %d: %s", res.StatusCode, string(data))
	}
	c = decodeCandidate(t, data)
	if c.CurrentStatus != domain.StageAssessmentEvaluated {
		t.Fatalf("after evaluation stage %q", c.CurrentStatus)
	}

	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v0/candidates/"+c.ID+"/offer", map[string]any{
		"position_id": "pos-backend",
		"salary":      105000,
	}, actorHeaders())
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("make offer status %d: %s", res.StatusCode, string(data))
	}

	res, data = doJSON(t, client, http.MethodPatch, srv.URL+"/v0/candidates/"+c.ID+"/offer", map[string]any{
		"status": "Accepted",
	}, actorHeaders())
	if res.StatusCode != http.StatusOK {
		t.Fatalf("accept offer status %d: %s", res.StatusCode, string(data))
	}
	c = decodeCandidate(t, data)
	if c.CurrentStatus != domain.StageOfferAccepted {
		t.Fatalf("after acceptance stage %q", c.CurrentStatus)
	}

	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v0/candidates/"+c.ID+"/events", nil, actorHeaders())
	if res.StatusCode != http.StatusOK {
		t.Fatalf("events status %d: %s", res.StatusCode, string(data))
	}
	var events EventListResponse
	if err := json.Unmarshal(data, &events); err != nil {
		t.Fatalf("unmarshal events: %v", err)
	}
	if len(events.Items) != 5 {
		t.Fatalf("event count = %d: %s", len(events.Items), string(data))
	}
}

func TestErrorEnvelopeCodes(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()

	// Unknown candidate.
	res, data := doJSON(t, client, http.MethodGet, srv.URL+"/v0/candidates/nope", nil, actorHeaders())
	if res.StatusCode != http.StatusNotFound {
		t.Fatalf("missing candidate status %d: %s", res.StatusCode, string(data))
	}
	var env errorEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		t.Fatalf("unmarshal envelope: %v", err)
	}
	if env.Error.Code != "not_found" {
		t.Fatalf("code = %q", env.Error.Code)
	}

	// Invalid state: rejecting then attaching yields a conflict.
	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v0/candidates", map[string]any{
		"first_name": "Alan", "last_name": "Turing", "email": "alan@example.com",
	}, actorHeaders())
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create status %d: %s", res.StatusCode, string(data))
	}
	c := decodeCandidate(t, data)
	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v0/candidates/"+c.ID+"/rejection", map[string]any{
		"reason": "role closed",
	}, actorHeaders())
	if res.StatusCode != http.StatusOK {
		t.Fatalf("reject status %d: %s", res.StatusCode, string(data))
	}
	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v0/candidates/"+c.ID+"/assessments", map[string]any{
		"assessment_id":  "def-coding",
		"scheduled_date": time.Now().UTC().Format(time.RFC3339),
	}, actorHeaders())
	if res.StatusCode != http.StatusConflict {
		t.Fatalf("attach after reject status %d: %s", res.StatusCode, string(data))
	}
	if err := json.Unmarshal(data, &env); err != nil {
		t.Fatalf("unmarshal envelope: %v", err)
	}
	if env.Error.Code != "invalid_state" {
		t.Fatalf("code = %q", env.Error.Code)
	}

	// Validation: unknown pipeline stage on override.
	res, data = doJSON(t, client, http.MethodPut, srv.URL+"/v0/candidates/"+c.ID+"/status", map[string]any{
		"status": "On Hold",
	}, actorHeaders())
	if res.StatusCode != http.StatusBadRequest {
		t.Fatalf("bad override status %d: %s", res.StatusCode, string(data))
	}
	if err := json.Unmarshal(data, &env); err != nil {
		t.Fatalf("unmarshal envelope: %v", err)
	}
	if env.Error.Code != "bad_request" {
		t.Fatalf("code = %q", env.Error.Code)
	}
}

func TestAuthentication(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()
	ctx := context.Background()

	// Health is open, everything else is not.
	res, _ := doJSON(t, client, http.MethodGet, srv.URL+"/v0/health", nil, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("health status %d", res.StatusCode)
	}
	res, data := doJSON(t, client, http.MethodGet, srv.URL+"/v0/candidates", nil, nil)
	if res.StatusCode != http.StatusUnauthorized {
		t.Fatalf("unauthenticated list status %d: %s", res.StatusCode, string(data))
	}

	// API key auth.
	if err := srv.Engine.Repo.InsertAPIKey(ctx, nil, domain.APIKey{
		ID:      "key-1",
		ActorID: "bot-1",
		KeyHash: repo.HashAPIKey("sekrit"),
	}); err != nil {
		t.Fatalf("insert api key: %v", err)
	}
	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v0/candidates", nil, map[string]string{"X-Api-Key": "sekrit"})
	if res.StatusCode != http.StatusOK {
		t.Fatalf("api key list status %d: %s", res.StatusCode, string(data))
	}
	res, _ = doJSON(t, client, http.MethodGet, srv.URL+"/v0/candidates", nil, map[string]string{"X-Api-Key": "wrong"})
	if res.StatusCode != http.StatusUnauthorized {
		t.Fatalf("bad api key status %d", res.StatusCode)
	}

	// Dev login mints a usable bearer token. It sits behind the same
	// middleware, so reach it with the api key.
	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v0/auth/dev/login", map[string]any{
		"actor_id": "dev-1",
	}, map[string]string{"X-Api-Key": "sekrit"})
	if res.StatusCode != http.StatusOK {
		t.Fatalf("dev login status %d: %s", res.StatusCode, string(data))
	}
	var login DevLoginResponse
	if err := json.Unmarshal(data, &login); err != nil || login.Token == "" {
		t.Fatalf("unmarshal login: %v (%s)", err, string(data))
	}
	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v0/candidates", nil, map[string]string{
		"Authorization": "Bearer " + login.Token,
	})
	if res.StatusCode != http.StatusOK {
		t.Fatalf("bearer list status %d: %s", res.StatusCode, string(data))
	}
	res, _ = doJSON(t, client, http.MethodGet, srv.URL+"/v0/candidates", nil, map[string]string{
		"Authorization": "Bearer not-a-token",
	})
	if res.StatusCode != http.StatusUnauthorized {
		t.Fatalf("garbage bearer status %d", res.StatusCode)
	}
}
