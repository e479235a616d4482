package handlers_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"drafted/internal/adapter/repo"
	"drafted/internal/artifacts"
	"drafted/internal/failure"
	"drafted/internal/http/handlers"
	"drafted/internal/http/httpapi"
	"drafted/internal/infra"
	"drafted/internal/intake"
	"drafted/internal/storage"
)

type apiFixture struct {
	store  *repo.MemoryStore
	files  *storage.FileStore
	server http.Handler
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()
	dir := t.TempDir()

	files, err := storage.NewFileStore(filepath.Join(dir, "storage"))
	require.NoError(t, err)
	heartbeat, err := storage.NewHeartbeatFile(filepath.Join(dir, "heartbeat.json"))
	require.NoError(t, err)

	logger := zerolog.New(io.Discard)
	store := repo.NewMemoryStore()

	app := &handlers.App{
		Store:        store,
		Files:        files,
		Exporter:     artifacts.NewExporter(files, store),
		Intake:       intake.NewService(store, 24*time.Hour, &logger),
		Heartbeat:    heartbeat,
		ProviderMode: "stub",
		JWTSecret:    "test-secret",
		Cfg:          &infra.Config{HeartbeatTTL: 2 * time.Minute},
		Logger:       &logger,
	}
	return &apiFixture{store: store, files: files, server: httpapi.NewRouter(app)}
}

func (f *apiFixture) do(t *testing.T, method, path, token string, body any, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	f.server.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

type authOut struct {
	Token string `json:"token"`
	User  struct {
		ID    string `json:"id"`
		Email string `json:"email"`
	} `json:"user"`
}

type sessionOut struct {
	ID string `json:"id"`
}

type jobOut struct {
	ID              string               `json:"id"`
	SessionID       string               `json:"session_id"`
	Status          string               `json:"status"`
	Stage           string               `json:"stage"`
	Bedrooms        int                  `json:"bedrooms"`
	Style           string               `json:"style"`
	StageTimestamps map[string]time.Time `json:"stage_timestamps"`
}

func (f *apiFixture) signup(t *testing.T, email string) authOut {
	t.Helper()
	rec := f.do(t, http.MethodPost, "/v1/auth/signup", "", map[string]string{
		"email":    email,
		"password": "hunter2hunter2",
	}, nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[authOut](t, rec)
}

func (f *apiFixture) createSession(t *testing.T, token string) sessionOut {
	t.Helper()
	rec := f.do(t, http.MethodPost, "/v1/sessions", token, map[string]string{"title": "plans"}, nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[sessionOut](t, rec)
}

func TestSignupLoginAndMe(t *testing.T) {
	f := newAPIFixture(t)

	signedUp := f.signup(t, "dev@example.com")
	require.NotEmpty(t, signedUp.Token)

	// Duplicate email conflicts.
	rec := f.do(t, http.MethodPost, "/v1/auth/signup", "", map[string]string{
		"email":    "dev@example.com",
		"password": "hunter2hunter2",
	}, nil)
	require.Equal(t, http.StatusConflict, rec.Code)

	rec = f.do(t, http.MethodPost, "/v1/auth/login", "", map[string]string{
		"email":    "dev@example.com",
		"password": "hunter2hunter2",
	}, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	loggedIn := decode[authOut](t, rec)

	rec = f.do(t, http.MethodGet, "/v1/me", loggedIn.Token, nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, http.MethodPost, "/v1/auth/login", "", map[string]string{
		"email":    "dev@example.com",
		"password": "wrong-password",
	}, nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = f.do(t, http.MethodGet, "/v1/me", "", nil, nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestCreateJobQueuesWithDefaults(t *testing.T) {
	f := newAPIFixture(t)
	auth := f.signup(t, "dev@example.com")
	sess := f.createSession(t, auth.Token)

	rec := f.do(t, http.MethodPost, "/v1/sessions/"+sess.ID+"/jobs", auth.Token, map[string]any{
		"prompt": "three bed farmhouse",
	}, nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	job := decode[jobOut](t, rec)
	require.Equal(t, "queued", job.Status)
	require.Equal(t, 3, job.Bedrooms)
	require.Equal(t, "contemporary", job.Style)
	require.Contains(t, job.StageTimestamps, "queued")

	// Blank prompt is a validation failure.
	rec = f.do(t, http.MethodPost, "/v1/sessions/"+sess.ID+"/jobs", auth.Token, map[string]any{
		"prompt": "   ",
	}, nil)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestCreateJobIdempotencyKeyOverHTTP(t *testing.T) {
	f := newAPIFixture(t)
	auth := f.signup(t, "dev@example.com")
	sess := f.createSession(t, auth.Token)

	headers := map[string]string{"Idempotency-Key": "key-1"}
	first := decode[jobOut](t, f.do(t, http.MethodPost, "/v1/sessions/"+sess.ID+"/jobs", auth.Token, map[string]any{
		"prompt": "three bed farmhouse",
	}, headers))

	// Replay with the same key returns the same job even when the body
	// differs.
	rec := f.do(t, http.MethodPost, "/v1/sessions/"+sess.ID+"/jobs", auth.Token, map[string]any{
		"prompt": "completely different brief",
	}, headers)
	require.Equal(t, http.StatusCreated, rec.Code)
	replay := decode[jobOut](t, rec)
	require.Equal(t, first.ID, replay.ID)

	jobs := decode[[]jobOut](t, f.do(t, http.MethodGet, "/v1/sessions/"+sess.ID+"/jobs", auth.Token, nil, nil))
	require.Len(t, jobs, 1)
}

func TestJobOwnershipIsEnforced(t *testing.T) {
	f := newAPIFixture(t)
	owner := f.signup(t, "owner@example.com")
	intruder := f.signup(t, "intruder@example.com")

	sess := f.createSession(t, owner.Token)
	job := decode[jobOut](t, f.do(t, http.MethodPost, "/v1/sessions/"+sess.ID+"/jobs", owner.Token, map[string]any{
		"prompt": "three bed farmhouse",
	}, nil))

	// Another user's job reads as not found, never as forbidden.
	for _, path := range []string{
		"/v1/jobs/" + job.ID,
		"/v1/jobs/" + job.ID + "/artifacts",
		"/v1/jobs/" + job.ID + "/export",
		"/v1/sessions/" + sess.ID,
	} {
		rec := f.do(t, http.MethodGet, path, intruder.Token, nil, nil)
		require.Equal(t, http.StatusNotFound, rec.Code, path)
	}

	rec := f.do(t, http.MethodGet, "/v1/jobs/"+job.ID, owner.Token, nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestExportWithoutArtifactsConflicts(t *testing.T) {
	f := newAPIFixture(t)
	auth := f.signup(t, "dev@example.com")
	sess := f.createSession(t, auth.Token)
	job := decode[jobOut](t, f.do(t, http.MethodPost, "/v1/sessions/"+sess.ID+"/jobs", auth.Token, map[string]any{
		"prompt": "three bed farmhouse",
	}, nil))

	rec := f.do(t, http.MethodGet, "/v1/jobs/"+job.ID+"/export", auth.Token, nil, nil)
	require.Equal(t, http.StatusConflict, rec.Code)
	body := decode[map[string]any](t, rec)
	require.Equal(t, "no_artifacts", body["code"])
	require.Equal(t, false, body["retryable"])
}

func TestRetryPolicyEndpointMatchesClassifier(t *testing.T) {
	f := newAPIFixture(t)

	rec := f.do(t, http.MethodGet, "/v1/system/retry-policy", "", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var got failure.PolicyDocument
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Equal(t, failure.Policy(), got)
}

func TestRetryPolicyDocMatchesPublishedFile(t *testing.T) {
	data, err := os.ReadFile(filepath.Join("..", "..", "..", "docs", "retry-policy.json"))
	require.NoError(t, err)

	var published failure.PolicyDocument
	require.NoError(t, json.Unmarshal(data, &published))
	require.Equal(t, failure.Policy(), published)
}

func TestHealthReportsDegradedWithoutWorker(t *testing.T) {
	f := newAPIFixture(t)

	rec := f.do(t, http.MethodGet, "/v1/healthz", "", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	body := decode[map[string]any](t, rec)
	// No heartbeat has ever been published.
	require.Equal(t, "degraded", body["status"])
	require.Equal(t, "stub", body["provider"])
}

func TestListUserJobsSpansSessions(t *testing.T) {
	f := newAPIFixture(t)
	auth := f.signup(t, "dev@example.com")

	for i := range 2 {
		sess := f.createSession(t, auth.Token)
		rec := f.do(t, http.MethodPost, "/v1/sessions/"+sess.ID+"/jobs", auth.Token, map[string]any{
			"prompt": fmt.Sprintf("brief %d", i),
		}, nil)
		require.Equal(t, http.StatusCreated, rec.Code)
	}

	jobs := decode[[]jobOut](t, f.do(t, http.MethodGet, "/v1/jobs", auth.Token, nil, nil))
	require.Len(t, jobs, 2)
}
