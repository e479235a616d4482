package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"drafted/internal/domain"
	"drafted/internal/sqlinline"
)

const jobColumns = `id, session_id, parent_job_id, prompt, bedrooms, bathrooms, style,
want_exterior_image, idempotency_key, request_hash, priority, status, stage,
error, failure_code, retry_count, meta, stages, warnings, created_at, updated_at`

// CreateJob inserts a queued job. A duplicate (session, idempotency key)
// surfaces as domain.ErrConflict.
func (s *PGStore) CreateJob(ctx context.Context, job *domain.Job) error {
	meta, stages, warnings, err := encodeJobJSON(job)
	if err != nil {
		return err
	}
	query := `
INSERT INTO jobs (id, session_id, parent_job_id, prompt, bedrooms, bathrooms, style,
    want_exterior_image, idempotency_key, request_hash, priority, status, stage,
    error, failure_code, retry_count, meta, stages, warnings, created_at, updated_at)
VALUES ($1, $2, NULLIF($3, ''), $4, $5, $6, $7, $8, NULLIF($9, ''), $10, $11, $12, $13,
    $14, $15, $16, $17, $18, $19, $20, $21);
`
	_, err = s.pool.Exec(ctx, query,
		job.ID,
		job.SessionID,
		job.ParentJobID,
		job.Prompt,
		job.Bedrooms,
		job.Bathrooms,
		job.Style,
		job.WantExteriorImage,
		job.IdempotencyKey,
		job.RequestHash,
		job.Priority,
		job.Status,
		job.Stage,
		job.Error,
		job.FailureCode,
		job.RetryCount,
		meta,
		stages,
		warnings,
		job.CreatedAt,
		job.UpdatedAt,
	)
	if err != nil {
		return mapPGError(err)
	}
	return nil
}

func (s *PGStore) GetJob(ctx context.Context, jobID string) (*domain.Job, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id = $1`, jobID)
	return scanJob(row)
}

// UpdateJob persists the mutable lifecycle fields. Identity and request
// fields are never rewritten.
func (s *PGStore) UpdateJob(ctx context.Context, job *domain.Job) error {
	meta, stages, warnings, err := encodeJobJSON(job)
	if err != nil {
		return err
	}
	query := `
UPDATE jobs
SET status = $2,
    stage = $3,
    error = $4,
    failure_code = $5,
    retry_count = $6,
    meta = $7,
    stages = $8,
    warnings = $9,
    updated_at = now()
WHERE id = $1;
`
	tag, err := s.pool.Exec(ctx, query,
		job.ID,
		job.Status,
		job.Stage,
		job.Error,
		job.FailureCode,
		job.RetryCount,
		meta,
		stages,
		warnings,
	)
	if err != nil {
		return mapPGError(err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (s *PGStore) ListJobsForUser(ctx context.Context, userID string, limit int) ([]domain.Job, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `
SELECT ` + jobColumnsPrefixed("j") + `
FROM jobs j
JOIN sessions s ON s.id = j.session_id
WHERE s.user_id = $1
ORDER BY j.created_at DESC
LIMIT $2;
`
	rows, err := s.pool.Query(ctx, query, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanJobs(rows)
}

func (s *PGStore) ListJobsForSession(ctx context.Context, sessionID string) ([]domain.Job, error) {
	query := `SELECT ` + jobColumns + ` FROM jobs WHERE session_id = $1 ORDER BY created_at DESC`
	rows, err := s.pool.Query(ctx, query, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanJobs(rows)
}

func (s *PGStore) FindJobByIdempotencyKey(ctx context.Context, sessionID, key string) (*domain.Job, error) {
	query := `
SELECT ` + jobColumns + `
FROM jobs
WHERE session_id = $1 AND idempotency_key = $2
ORDER BY created_at DESC
LIMIT 1;
`
	row := s.pool.QueryRow(ctx, query, sessionID, key)
	return scanJob(row)
}

func (s *PGStore) FindJobByRequestHash(ctx context.Context, sessionID, hash string, cutoff time.Time, statuses []domain.JobStatus) (*domain.Job, error) {
	set := make([]string, len(statuses))
	for i, st := range statuses {
		set[i] = string(st)
	}
	query := `
SELECT ` + jobColumns + `
FROM jobs
WHERE session_id = $1 AND request_hash = $2 AND created_at >= $3 AND status = ANY($4)
ORDER BY created_at DESC
LIMIT 1;
`
	row := s.pool.QueryRow(ctx, query, sessionID, hash, cutoff, set)
	return scanJob(row)
}

// ClaimNextQueued runs the SKIP LOCKED claim and appends the init stamp.
// Only the claiming worker mutates a running job, so the follow-up stamp
// write cannot race another writer.
func (s *PGStore) ClaimNextQueued(ctx context.Context) (*domain.Job, error) {
	row := s.pool.QueryRow(ctx, sqlinline.QClaimNextJob)
	job, err := scanJob(row)
	if err != nil {
		return nil, err
	}
	job.SetStage(domain.StageInit, time.Now())
	if err := s.UpdateJob(ctx, job); err != nil {
		return nil, fmt.Errorf("stamp claimed job: %w", err)
	}
	return job, nil
}

func (s *PGStore) QueueStats(ctx context.Context, cutoff time.Time) (domain.QueueStats, error) {
	var stats domain.QueueStats
	row := s.pool.QueryRow(ctx, sqlinline.QQueueStats, cutoff)
	if err := row.Scan(&stats.Queued, &stats.Running, &stats.Failed, &stats.Succeeded); err != nil {
		return domain.QueueStats{}, err
	}
	return stats, nil
}

func jobColumnsPrefixed(alias string) string {
	return alias + `.id, ` + alias + `.session_id, ` + alias + `.parent_job_id, ` + alias + `.prompt, ` +
		alias + `.bedrooms, ` + alias + `.bathrooms, ` + alias + `.style, ` + alias + `.want_exterior_image, ` +
		alias + `.idempotency_key, ` + alias + `.request_hash, ` + alias + `.priority, ` + alias + `.status, ` +
		alias + `.stage, ` + alias + `.error, ` + alias + `.failure_code, ` + alias + `.retry_count, ` +
		alias + `.meta, ` + alias + `.stages, ` + alias + `.warnings, ` + alias + `.created_at, ` + alias + `.updated_at`
}

func encodeJobJSON(job *domain.Job) (meta, stages, warnings []byte, err error) {
	if meta, err = json.Marshal(job.Meta); err != nil {
		return nil, nil, nil, fmt.Errorf("encode job meta: %w", err)
	}
	if stages, err = json.Marshal(job.Stages); err != nil {
		return nil, nil, nil, fmt.Errorf("encode job stages: %w", err)
	}
	if job.Warnings == nil {
		job.Warnings = []string{}
	}
	if warnings, err = json.Marshal(job.Warnings); err != nil {
		return nil, nil, nil, fmt.Errorf("encode job warnings: %w", err)
	}
	return meta, stages, warnings, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(row rowScanner) (*domain.Job, error) {
	var (
		job        domain.Job
		parentID   *string
		idemKey    *string
		meta       []byte
		stages     []byte
		warnings   []byte
	)
	err := row.Scan(
		&job.ID,
		&job.SessionID,
		&parentID,
		&job.Prompt,
		&job.Bedrooms,
		&job.Bathrooms,
		&job.Style,
		&job.WantExteriorImage,
		&idemKey,
		&job.RequestHash,
		&job.Priority,
		&job.Status,
		&job.Stage,
		&job.Error,
		&job.FailureCode,
		&job.RetryCount,
		&meta,
		&stages,
		&warnings,
		&job.CreatedAt,
		&job.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	if parentID != nil {
		job.ParentJobID = *parentID
	}
	if idemKey != nil {
		job.IdempotencyKey = *idemKey
	}
	if len(meta) > 0 {
		if err := json.Unmarshal(meta, &job.Meta); err != nil {
			return nil, fmt.Errorf("decode job meta: %w", err)
		}
	}
	if len(stages) > 0 {
		if err := json.Unmarshal(stages, &job.Stages); err != nil {
			return nil, fmt.Errorf("decode job stages: %w", err)
		}
	}
	if len(warnings) > 0 {
		if err := json.Unmarshal(warnings, &job.Warnings); err != nil {
			return nil, fmt.Errorf("decode job warnings: %w", err)
		}
	}
	return &job, nil
}

func scanJobs(rows pgx.Rows) ([]domain.Job, error) {
	var out []domain.Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *job)
	}
	return out, rows.Err()
}
