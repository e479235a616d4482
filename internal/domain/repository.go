package domain

import (
	"context"
	"time"
)

// JobRepository defines persistence for job entities. ClaimNextQueued must
// be atomic: the queued-to-running transition happens as a single
// conditional update so two workers can never claim the same row.
type JobRepository interface {
	CreateJob(ctx context.Context, job *Job) error
	GetJob(ctx context.Context, jobID string) (*Job, error)
	UpdateJob(ctx context.Context, job *Job) error
	ListJobsForUser(ctx context.Context, userID string, limit int) ([]Job, error)
	ListJobsForSession(ctx context.Context, sessionID string) ([]Job, error)

	// FindJobByIdempotencyKey returns the most recent job in the session
	// carrying the exact key, regardless of age or status.
	FindJobByIdempotencyKey(ctx context.Context, sessionID, key string) (*Job, error)

	// FindJobByRequestHash returns the most recent job in the session whose
	// request hash matches, created at or after cutoff, with status in the
	// given set.
	FindJobByRequestHash(ctx context.Context, sessionID, hash string, cutoff time.Time, statuses []JobStatus) (*Job, error)

	// ClaimNextQueued atomically claims the oldest queued job (FIFO by
	// creation time): status running, stage init, init stamp appended.
	// Returns ErrNotFound when nothing is queued.
	ClaimNextQueued(ctx context.Context) (*Job, error)

	// QueueStats reports queue depth plus terminal counts since cutoff.
	QueueStats(ctx context.Context, cutoff time.Time) (QueueStats, error)
}

// QueueStats is the health-surface summary of the job table.
type QueueStats struct {
	Queued    int `json:"queued"`
	Running   int `json:"running"`
	Failed    int `json:"failed_last_24h"`
	Succeeded int `json:"succeeded_last_24h"`
}

// SpecRepository upserts and fetches the per-job HouseSpec.
type SpecRepository interface {
	UpsertHouseSpec(ctx context.Context, jobID string, spec *HouseSpec) error
	GetHouseSpec(ctx context.Context, jobID string) (*HouseSpec, error)
}

// PlanRepository upserts and fetches the per-job PlanGraph.
type PlanRepository interface {
	UpsertPlanGraph(ctx context.Context, jobID string, plan *PlanGraph, canonicalHash, validationResult string) error
	GetPlanGraph(ctx context.Context, jobID string) (*PlanGraph, error)
}

// ArtifactRepository inserts and lists generated artifacts.
type ArtifactRepository interface {
	AddArtifact(ctx context.Context, artifact *Artifact) error
	ListArtifacts(ctx context.Context, jobID string) ([]Artifact, error)
	GetArtifact(ctx context.Context, jobID, artifactID string) (*Artifact, error)
}

// UsageRepository appends to the usage ledger.
type UsageRepository interface {
	AddUsageEvent(ctx context.Context, event *UsageEvent) error
}

// SessionRepository persists sessions.
type SessionRepository interface {
	CreateSession(ctx context.Context, session *Session) error
	GetSession(ctx context.Context, sessionID string) (*Session, error)
	ListSessionsForUser(ctx context.Context, userID string) ([]Session, error)
}

// UserRepository persists accounts.
type UserRepository interface {
	CreateUser(ctx context.Context, user *User) error
	GetUserByID(ctx context.Context, userID string) (*User, error)
	GetUserByEmail(ctx context.Context, email string) (*User, error)
}

// Store composes every repository the service needs.
type Store interface {
	JobRepository
	SpecRepository
	PlanRepository
	ArtifactRepository
	UsageRepository
	SessionRepository
	UserRepository
}
