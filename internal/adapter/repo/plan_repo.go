package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"drafted/internal/domain"
)

// UpsertPlanGraph stores the derived plan graph alongside its canonical
// content hash and validation outcome, replacing any prior attempt's row.
func (s *PGStore) UpsertPlanGraph(ctx context.Context, jobID string, plan *domain.PlanGraph, canonicalHash, validationResult string) error {
	doc, err := plan.CanonicalJSON()
	if err != nil {
		return fmt.Errorf("encode plan graph: %w", err)
	}
	query := `
INSERT INTO plan_graphs (job_id, doc, canonical_hash, validation_result, updated_at)
VALUES ($1, $2, $3, $4, now())
ON CONFLICT (job_id) DO UPDATE
SET doc = EXCLUDED.doc,
    canonical_hash = EXCLUDED.canonical_hash,
    validation_result = EXCLUDED.validation_result,
    updated_at = now();
`
	if _, err := s.pool.Exec(ctx, query, jobID, doc, canonicalHash, validationResult); err != nil {
		return mapPGError(err)
	}
	return nil
}

func (s *PGStore) GetPlanGraph(ctx context.Context, jobID string) (*domain.PlanGraph, error) {
	var doc []byte
	row := s.pool.QueryRow(ctx, `SELECT doc FROM plan_graphs WHERE job_id = $1`, jobID)
	if err := row.Scan(&doc); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	var plan domain.PlanGraph
	if err := json.Unmarshal(doc, &plan); err != nil {
		return nil, fmt.Errorf("decode plan graph: %w", err)
	}
	return &plan, nil
}
