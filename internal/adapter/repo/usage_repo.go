package repo

import (
	"context"
	"encoding/json"
	"fmt"

	"drafted/internal/domain"
)

// AddUsageEvent appends one ledger entry. The ledger is insert-only.
func (s *PGStore) AddUsageEvent(ctx context.Context, event *domain.UsageEvent) error {
	meta, err := json.Marshal(event.Meta)
	if err != nil {
		return fmt.Errorf("encode usage meta: %w", err)
	}
	query := `
INSERT INTO usage_events (id, user_id, job_id, event_type, provider_model,
    input_tokens, output_tokens, image_tokens, latency_ms,
    provider_request_id, retryable, meta, created_at)
VALUES ($1, NULLIF($2, ''), NULLIF($3, ''), $4, $5, $6, $7, $8, $9, $10, $11, $12, $13);
`
	_, err = s.pool.Exec(ctx, query,
		event.ID,
		event.UserID,
		event.JobID,
		event.EventType,
		event.ProviderModel,
		event.InputTokens,
		event.OutputTokens,
		event.ImageTokens,
		event.LatencyMS,
		event.ProviderRequestID,
		event.Retryable,
		meta,
		event.CreatedAt,
	)
	if err != nil {
		return mapPGError(err)
	}
	return nil
}
