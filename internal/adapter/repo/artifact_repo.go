package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"drafted/internal/domain"
)

const artifactColumns = `id, job_id, type, path, mime_type, checksum, size_bytes, meta, created_at`

// AddArtifact inserts one immutable artifact row.
func (s *PGStore) AddArtifact(ctx context.Context, artifact *domain.Artifact) error {
	meta, err := json.Marshal(artifact.Meta)
	if err != nil {
		return fmt.Errorf("encode artifact meta: %w", err)
	}
	query := `
INSERT INTO artifacts (id, job_id, type, path, mime_type, checksum, size_bytes, meta, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9);
`
	_, err = s.pool.Exec(ctx, query,
		artifact.ID,
		artifact.JobID,
		artifact.Type,
		artifact.Path,
		artifact.MIMEType,
		artifact.Checksum,
		artifact.SizeBytes,
		meta,
		artifact.CreatedAt,
	)
	if err != nil {
		return mapPGError(err)
	}
	return nil
}

func (s *PGStore) ListArtifacts(ctx context.Context, jobID string) ([]domain.Artifact, error) {
	query := `SELECT ` + artifactColumns + ` FROM artifacts WHERE job_id = $1 ORDER BY created_at ASC, id ASC`
	rows, err := s.pool.Query(ctx, query, jobID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Artifact
	for rows.Next() {
		a, err := scanArtifact(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *a)
	}
	return out, rows.Err()
}

func (s *PGStore) GetArtifact(ctx context.Context, jobID, artifactID string) (*domain.Artifact, error) {
	query := `SELECT ` + artifactColumns + ` FROM artifacts WHERE job_id = $1 AND id = $2`
	row := s.pool.QueryRow(ctx, query, jobID, artifactID)
	return scanArtifact(row)
}

func scanArtifact(row pgx.Row) (*domain.Artifact, error) {
	var (
		a    domain.Artifact
		meta []byte
	)
	err := row.Scan(&a.ID, &a.JobID, &a.Type, &a.Path, &a.MIMEType, &a.Checksum, &a.SizeBytes, &meta, &a.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	if len(meta) > 0 {
		if err := json.Unmarshal(meta, &a.Meta); err != nil {
			return nil, fmt.Errorf("decode artifact meta: %w", err)
		}
	}
	return &a, nil
}
