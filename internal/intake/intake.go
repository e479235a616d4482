// Package intake turns API job requests into queued jobs with idempotent
// semantics: explicit idempotency keys dedupe forever, and identical
// requests without a key dedupe within a sliding window.
package intake

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"drafted/internal/domain"
	"drafted/internal/failure"
	"drafted/internal/infra"
)

const (
	defaultBedrooms  = 3
	defaultBathrooms = 2
	defaultStyle     = "contemporary"

	minRooms = 1
	maxRooms = 10
)

// CreateRequest is a normalized job submission.
type CreateRequest struct {
	Prompt            string
	Bedrooms          int
	Bathrooms         int
	Style             string
	WantExteriorImage bool
	IdempotencyKey    string
	Priority          domain.JobPriority
}

// RegenerateRequest overrides fields of a parent job; nil means carry the
// parent's value forward.
type RegenerateRequest struct {
	Prompt            *string
	Bedrooms          *int
	Bathrooms         *int
	Style             *string
	WantExteriorImage *bool
	ReuseSpec         bool
}

// Service creates and regenerates jobs.
type Service struct {
	store  domain.Store
	window time.Duration
	logger *infra.Logger
}

func NewService(store domain.Store, window time.Duration, logger *infra.Logger) *Service {
	return &Service{store: store, window: window, logger: logger}
}

// hashedRequest is the canonical form fed into the request hash. Field
// order follows sorted JSON keys so the digest matches across languages.
type hashedRequest struct {
	Bathrooms         int                `json:"bathrooms"`
	Bedrooms          int                `json:"bedrooms"`
	Priority          domain.JobPriority `json:"priority"`
	Prompt            string             `json:"prompt"`
	SessionID         string             `json:"session_id"`
	Style             string             `json:"style"`
	WantExteriorImage bool               `json:"want_exterior_image"`
}

// RequestHash digests the deduplication-relevant fields of a submission.
func RequestHash(sessionID string, req CreateRequest) string {
	data, _ := json.Marshal(hashedRequest{
		Bathrooms:         req.Bathrooms,
		Bedrooms:          req.Bedrooms,
		Priority:          req.Priority,
		Prompt:            strings.TrimSpace(req.Prompt),
		SessionID:         sessionID,
		Style:             req.Style,
		WantExteriorImage: req.WantExteriorImage,
	})
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func normalize(req CreateRequest) (CreateRequest, error) {
	if strings.TrimSpace(req.Prompt) == "" {
		return req, failure.Validationf("prompt is required")
	}
	if req.Bedrooms == 0 {
		req.Bedrooms = defaultBedrooms
	}
	if req.Bathrooms == 0 {
		req.Bathrooms = defaultBathrooms
	}
	if req.Style == "" {
		req.Style = defaultStyle
	}
	if req.Priority == "" {
		req.Priority = domain.PriorityNormal
	}
	if req.Bedrooms < minRooms || req.Bedrooms > maxRooms {
		return req, failure.Validationf("bedrooms must be between %d and %d", minRooms, maxRooms)
	}
	if req.Bathrooms < minRooms || req.Bathrooms > maxRooms {
		return req, failure.Validationf("bathrooms must be between %d and %d", minRooms, maxRooms)
	}
	return req, nil
}

// dedupStatuses limits window-based dedup to requests that are still in
// flight or already succeeded. A failed job never swallows a retry.
var dedupStatuses = []domain.JobStatus{
	domain.JobStatusQueued,
	domain.JobStatusRunning,
	domain.JobStatusSucceeded,
}

// CreateJob queues a job, or returns the existing one when the submission
// deduplicates. A concurrent duplicate insert resolves to the winner's job;
// an unresolvable conflict surfaces as domain.ErrConflict.
func (s *Service) CreateJob(ctx context.Context, sessionID string, req CreateRequest) (*domain.Job, error) {
	req, err := normalize(req)
	if err != nil {
		return nil, err
	}
	hash := RequestHash(sessionID, req)

	if req.IdempotencyKey != "" {
		existing, err := s.store.FindJobByIdempotencyKey(ctx, sessionID, req.IdempotencyKey)
		if err == nil {
			return existing, nil
		}
		if !errors.Is(err, domain.ErrNotFound) {
			return nil, err
		}
	} else {
		cutoff := time.Now().UTC().Add(-s.window)
		existing, err := s.store.FindJobByRequestHash(ctx, sessionID, hash, cutoff, dedupStatuses)
		if err == nil {
			return existing, nil
		}
		if !errors.Is(err, domain.ErrNotFound) {
			return nil, err
		}
	}

	job := s.newJob(sessionID, "", req, hash, domain.JobMeta{})
	if err := s.store.CreateJob(ctx, job); err != nil {
		if errors.Is(err, domain.ErrConflict) && req.IdempotencyKey != "" {
			winner, findErr := s.store.FindJobByIdempotencyKey(ctx, sessionID, req.IdempotencyKey)
			if findErr == nil {
				return winner, nil
			}
		}
		if errors.Is(err, domain.ErrConflict) {
			return nil, domain.ErrConflict
		}
		return nil, err
	}

	s.logger.Info().
		Str("job_id", job.ID).
		Str("session_id", sessionID).
		Bool("keyed", req.IdempotencyKey != "").
		Msg("intake: job queued")
	return job, nil
}

// Regenerate queues a follow-up job derived from a parent, carrying forward
// any field the request leaves unset. With ReuseSpec the parent's saved
// spec must exist; otherwise domain.ErrSpecUnavailable.
func (s *Service) Regenerate(ctx context.Context, parent *domain.Job, req RegenerateRequest) (*domain.Job, error) {
	next := CreateRequest{
		Prompt:            parent.Prompt,
		Bedrooms:          parent.Bedrooms,
		Bathrooms:         parent.Bathrooms,
		Style:             parent.Style,
		WantExteriorImage: parent.WantExteriorImage,
		Priority:          parent.Priority,
	}
	if req.Prompt != nil {
		next.Prompt = *req.Prompt
	}
	if req.Bedrooms != nil {
		next.Bedrooms = *req.Bedrooms
	}
	if req.Bathrooms != nil {
		next.Bathrooms = *req.Bathrooms
	}
	if req.Style != nil {
		next.Style = *req.Style
	}
	if req.WantExteriorImage != nil {
		next.WantExteriorImage = *req.WantExteriorImage
	}

	next, err := normalize(next)
	if err != nil {
		return nil, err
	}

	if req.ReuseSpec {
		if _, err := s.store.GetHouseSpec(ctx, parent.ID); err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return nil, domain.ErrSpecUnavailable
			}
			return nil, err
		}
	}

	meta := domain.JobMeta{ReuseSpec: req.ReuseSpec, RegeneratedFrom: parent.ID}
	job := s.newJob(parent.SessionID, parent.ID, next, RequestHash(parent.SessionID, next), meta)
	if err := s.store.CreateJob(ctx, job); err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("job_id", job.ID).
		Str("parent_job_id", parent.ID).
		Bool("reuse_spec", req.ReuseSpec).
		Msg("intake: regenerate queued")
	return job, nil
}

func (s *Service) newJob(sessionID, parentID string, req CreateRequest, hash string, meta domain.JobMeta) *domain.Job {
	now := time.Now().UTC()
	job := &domain.Job{
		ID:                uuid.NewString(),
		SessionID:         sessionID,
		ParentJobID:       parentID,
		Prompt:            req.Prompt,
		Bedrooms:          req.Bedrooms,
		Bathrooms:         req.Bathrooms,
		Style:             req.Style,
		WantExteriorImage: req.WantExteriorImage,
		IdempotencyKey:    req.IdempotencyKey,
		RequestHash:       hash,
		Priority:          req.Priority,
		Status:            domain.JobStatusQueued,
		Stage:             domain.StageInit,
		Meta:              meta,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	job.Stages = append(job.Stages, domain.StageStamp{Stage: domain.StageQueued, At: now})
	return job
}
