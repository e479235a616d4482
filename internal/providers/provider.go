// Package providers defines the generation backends that turn a design
// brief into a house specification and, optionally, an exterior rendering.
package providers

import (
	"context"

	"drafted/internal/domain"
)

// CallMeta is the normalized accounting for one upstream call. It feeds the
// job's call ring buffer and usage events.
type CallMeta struct {
	Provider     string
	Model        string
	RequestID    string
	LatencyMS    int
	InputTokens  int
	OutputTokens int
	TotalTokens  int
	ImageTokens  int
}

// Call converts the meta to the persisted ring-buffer shape.
func (m CallMeta) Call() domain.ProviderCall {
	return domain.ProviderCall{
		Provider:     m.Provider,
		Model:        m.Model,
		RequestID:    m.RequestID,
		LatencyMS:    m.LatencyMS,
		InputTokens:  m.InputTokens,
		OutputTokens: m.OutputTokens,
		TotalTokens:  m.TotalTokens,
		ImageTokens:  m.ImageTokens,
	}
}

// SpecRequest carries the brief and hard constraints for spec generation.
type SpecRequest struct {
	Prompt    string
	Bedrooms  int
	Bathrooms int
	Style     string
}

// SpecResult is a generated house specification plus call accounting.
type SpecResult struct {
	Spec *domain.HouseSpec
	Meta CallMeta
}

// ImageRequest carries the brief for an exterior rendering.
type ImageRequest struct {
	Prompt string
	Style  string
}

// ImageResult is a generated exterior image plus call accounting.
type ImageResult struct {
	Data     []byte
	MIMEType string
	Meta     CallMeta
}

// Provider is a generation backend. GenerateExteriorImage may return
// (nil, nil) when the backend has no image capability; callers treat that as
// "no image", not as an error.
type Provider interface {
	Name() string
	GenerateHouseSpec(ctx context.Context, req SpecRequest) (*SpecResult, error)
	GenerateExteriorImage(ctx context.Context, req ImageRequest) (*ImageResult, error)
}
