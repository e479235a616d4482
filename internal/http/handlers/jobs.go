package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"drafted/internal/domain"
	"drafted/internal/failure"
	"drafted/internal/intake"
)

type jobDTO struct {
	ID                string                `json:"id"`
	SessionID         string                `json:"session_id"`
	ParentJobID       string                `json:"parent_job_id,omitempty"`
	Prompt            string                `json:"prompt"`
	Bedrooms          int                   `json:"bedrooms"`
	Bathrooms         int                   `json:"bathrooms"`
	Style             string                `json:"style"`
	WantExteriorImage bool                  `json:"want_exterior_image"`
	IdempotencyKey    string                `json:"idempotency_key,omitempty"`
	Priority          domain.JobPriority    `json:"priority"`
	Status            domain.JobStatus      `json:"status"`
	Stage             domain.JobStage       `json:"stage"`
	Error             string                `json:"error,omitempty"`
	FailureCode       string                `json:"failure_code,omitempty"`
	RetryCount        int                   `json:"retry_count"`
	Warnings          []string              `json:"warnings"`
	StageTimestamps   map[string]time.Time  `json:"stage_timestamps"`
	ProviderMeta      domain.JobMeta        `json:"provider_meta"`
	CreatedAt         time.Time             `json:"created_at"`
	UpdatedAt         time.Time             `json:"updated_at"`
}

func toJobDTO(j *domain.Job) jobDTO {
	warnings := j.Warnings
	if warnings == nil {
		warnings = []string{}
	}
	return jobDTO{
		ID:                j.ID,
		SessionID:         j.SessionID,
		ParentJobID:       j.ParentJobID,
		Prompt:            j.Prompt,
		Bedrooms:          j.Bedrooms,
		Bathrooms:         j.Bathrooms,
		Style:             j.Style,
		WantExteriorImage: j.WantExteriorImage,
		IdempotencyKey:    j.IdempotencyKey,
		Priority:          j.Priority,
		Status:            j.Status,
		Stage:             j.Stage,
		Error:             j.Error,
		FailureCode:       j.FailureCode,
		RetryCount:        j.RetryCount,
		Warnings:          warnings,
		StageTimestamps:   j.StageTimes(),
		ProviderMeta:      j.Meta,
		CreatedAt:         j.CreatedAt,
		UpdatedAt:         j.UpdatedAt,
	}
}

type createJobRequest struct {
	Prompt            string `json:"prompt"`
	Bedrooms          int    `json:"bedrooms"`
	Bathrooms         int    `json:"bathrooms"`
	Style             string `json:"style"`
	WantExteriorImage bool   `json:"want_exterior_image"`
	IdempotencyKey    string `json:"idempotency_key"`
	Priority          string `json:"priority"`
}

// CreateJob queues a job in a session. Submissions deduplicate: an explicit
// Idempotency-Key always returns the job that first carried it, and keyless
// submissions return a matching recent job instead of queueing a twin.
func (a *App) CreateJob(w http.ResponseWriter, r *http.Request) {
	sess := a.ownedSession(w, r, chi.URLParam(r, "sessionID"))
	if sess == nil {
		return
	}

	var req createJobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	if key := r.Header.Get("Idempotency-Key"); key != "" {
		req.IdempotencyKey = key
	}

	job, err := a.Intake.CreateJob(r.Context(), sess.ID, intake.CreateRequest{
		Prompt:            req.Prompt,
		Bedrooms:          req.Bedrooms,
		Bathrooms:         req.Bathrooms,
		Style:             req.Style,
		WantExteriorImage: req.WantExteriorImage,
		IdempotencyKey:    req.IdempotencyKey,
		Priority:          domain.JobPriority(req.Priority),
	})
	if err != nil {
		a.jobError(w, err, "create job failed")
		return
	}
	a.json(w, http.StatusCreated, toJobDTO(job))
}

func (a *App) ListJobs(w http.ResponseWriter, r *http.Request) {
	sess := a.ownedSession(w, r, chi.URLParam(r, "sessionID"))
	if sess == nil {
		return
	}
	jobs, err := a.Store.ListJobsForSession(r.Context(), sess.ID)
	if err != nil {
		a.Logger.Error().Err(err).Msg("list jobs failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to list jobs")
		return
	}
	out := make([]jobDTO, 0, len(jobs))
	for i := range jobs {
		out = append(out, toJobDTO(&jobs[i]))
	}
	a.json(w, http.StatusOK, out)
}

func (a *App) ListUserJobs(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	jobs, err := a.Store.ListJobsForUser(r.Context(), a.currentUserID(r), limit)
	if err != nil {
		a.Logger.Error().Err(err).Msg("list user jobs failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to list jobs")
		return
	}
	out := make([]jobDTO, 0, len(jobs))
	for i := range jobs {
		out = append(out, toJobDTO(&jobs[i]))
	}
	a.json(w, http.StatusOK, out)
}

// ownedJob resolves a job and enforces ownership through its session.
func (a *App) ownedJob(w http.ResponseWriter, r *http.Request, jobID string) *domain.Job {
	job, err := a.Store.GetJob(r.Context(), jobID)
	if err != nil {
		a.error(w, http.StatusNotFound, "not_found", "job not found")
		return nil
	}
	sess, err := a.Store.GetSession(r.Context(), job.SessionID)
	if err != nil || sess.UserID != a.currentUserID(r) {
		a.error(w, http.StatusNotFound, "not_found", "job not found")
		return nil
	}
	return job
}

func (a *App) GetJob(w http.ResponseWriter, r *http.Request) {
	job := a.ownedJob(w, r, chi.URLParam(r, "jobID"))
	if job == nil {
		return
	}
	a.json(w, http.StatusOK, toJobDTO(job))
}

type regenerateRequest struct {
	Prompt            *string `json:"prompt"`
	Bedrooms          *int    `json:"bedrooms"`
	Bathrooms         *int    `json:"bathrooms"`
	Style             *string `json:"style"`
	WantExteriorImage *bool   `json:"want_exterior_image"`
	ReuseSpec         bool    `json:"reuse_spec"`
}

func (a *App) RegenerateJob(w http.ResponseWriter, r *http.Request) {
	parent := a.ownedJob(w, r, chi.URLParam(r, "jobID"))
	if parent == nil {
		return
	}

	var req regenerateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}

	job, err := a.Intake.Regenerate(r.Context(), parent, intake.RegenerateRequest{
		Prompt:            req.Prompt,
		Bedrooms:          req.Bedrooms,
		Bathrooms:         req.Bathrooms,
		Style:             req.Style,
		WantExteriorImage: req.WantExteriorImage,
		ReuseSpec:         req.ReuseSpec,
	})
	if err != nil {
		a.jobError(w, err, "regenerate failed")
		return
	}
	a.json(w, http.StatusCreated, toJobDTO(job))
}

func (a *App) GetPlan(w http.ResponseWriter, r *http.Request) {
	job := a.ownedJob(w, r, chi.URLParam(r, "jobID"))
	if job == nil {
		return
	}
	plan, err := a.Store.GetPlanGraph(r.Context(), job.ID)
	if err != nil {
		a.error(w, http.StatusNotFound, "not_found", "plan not available")
		return
	}
	a.json(w, http.StatusOK, plan)
}

func (a *App) GetSpec(w http.ResponseWriter, r *http.Request) {
	job := a.ownedJob(w, r, chi.URLParam(r, "jobID"))
	if job == nil {
		return
	}
	spec, err := a.Store.GetHouseSpec(r.Context(), job.ID)
	if err != nil {
		a.error(w, http.StatusNotFound, "not_found", "spec not available")
		return
	}
	a.json(w, http.StatusOK, spec)
}

// jobError maps intake errors to the API error vocabulary.
func (a *App) jobError(w http.ResponseWriter, err error, logMsg string) {
	var verr *failure.ValidationError
	switch {
	case errors.As(err, &verr):
		a.error(w, http.StatusUnprocessableEntity, "validation", verr.Reason)
	case errors.Is(err, domain.ErrSpecUnavailable):
		a.error(w, http.StatusConflict, "reuse_spec_unavailable", "parent job has no saved spec to reuse")
	case errors.Is(err, domain.ErrConflict):
		a.error(w, http.StatusConflict, "idempotency_conflict", "a conflicting job submission is in flight")
	default:
		a.Logger.Error().Err(err).Msg(logMsg)
		a.error(w, http.StatusInternalServerError, "internal", "failed to queue job")
	}
}
