package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"drafted/internal/domain"
)

// UpsertHouseSpec stores the authoritative spec document for a job,
// replacing any earlier version from a prior processing attempt.
func (s *PGStore) UpsertHouseSpec(ctx context.Context, jobID string, spec *domain.HouseSpec) error {
	doc, err := json.Marshal(spec)
	if err != nil {
		return fmt.Errorf("encode house spec: %w", err)
	}
	query := `
INSERT INTO house_specs (job_id, doc, updated_at)
VALUES ($1, $2, now())
ON CONFLICT (job_id) DO UPDATE
SET doc = EXCLUDED.doc,
    updated_at = now();
`
	if _, err := s.pool.Exec(ctx, query, jobID, doc); err != nil {
		return mapPGError(err)
	}
	return nil
}

func (s *PGStore) GetHouseSpec(ctx context.Context, jobID string) (*domain.HouseSpec, error) {
	var doc []byte
	row := s.pool.QueryRow(ctx, `SELECT doc FROM house_specs WHERE job_id = $1`, jobID)
	if err := row.Scan(&doc); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	var spec domain.HouseSpec
	if err := json.Unmarshal(doc, &spec); err != nil {
		return nil, fmt.Errorf("decode house spec: %w", err)
	}
	return &spec, nil
}
