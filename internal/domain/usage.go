package domain

import "time"

// Usage event types recorded by the pipeline.
const (
	UsageHouseSpec     = "house_spec"
	UsageExteriorImage = "exterior_image"
)

// UsageEvent is one append-only ledger entry for a provider call or an
// externally reported event. Never mutated or deleted.
type UsageEvent struct {
	ID                string
	UserID            string
	JobID             string
	EventType         string
	ProviderModel     string
	InputTokens       int
	OutputTokens      int
	ImageTokens       int
	LatencyMS         int
	ProviderRequestID string
	Retryable         bool
	Meta              map[string]any
	CreatedAt         time.Time
}
