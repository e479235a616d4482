// Package stub is the keyless generation backend. Specs are derived
// deterministically from the request so the full pipeline stays exercised
// in local and CI environments, and a configurable failure policy can
// inject transient upstream errors for retry testing.
package stub

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"

	"drafted/internal/domain"
	"drafted/internal/failure"
	"drafted/internal/providers"
)

// FailurePolicy injects synthetic transient failures into stub calls.
// FailFirstN fails the first N calls of the scoped kind; FailEveryN fails
// every Nth call after that. A zero policy injects nothing.
type FailurePolicy struct {
	Scope      string // "spec", "image", or "both"
	FailFirstN int
	FailEveryN int
	HTTPStatus int
}

func (p FailurePolicy) enabled(scope string) bool {
	if p.FailFirstN <= 0 && p.FailEveryN <= 0 {
		return false
	}
	configured := strings.ToLower(strings.TrimSpace(p.Scope))
	if configured != "spec" && configured != "image" && configured != "both" {
		configured = "spec"
	}
	return configured == scope || configured == "both"
}

func (p FailurePolicy) shouldFail(scope string, callIndex int) bool {
	if !p.enabled(scope) {
		return false
	}
	if p.FailFirstN > 0 && callIndex <= p.FailFirstN {
		return true
	}
	return p.FailEveryN > 0 && callIndex%p.FailEveryN == 0
}

func (p FailurePolicy) status() int {
	switch p.HTTPStatus {
	case 408, 409, 425, 429, 500, 502, 503, 504:
		return p.HTTPStatus
	default:
		return 503
	}
}

// idNamespace seeds deterministic room ids. Same request, same ids.
var idNamespace = uuid.NewSHA1(uuid.NameSpaceOID, []byte("drafted/house-spec"))

// Provider is the stub backend. The zero value generates specs and never
// returns images; set Failures to exercise retry paths.
type Provider struct {
	Failures FailurePolicy

	mu         sync.Mutex
	specCalls  int
	imageCalls int
}

func New() *Provider { return &Provider{} }

func (p *Provider) Name() string { return "stub" }

func (p *Provider) nextCall(scope string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	if scope == "spec" {
		p.specCalls++
		return p.specCalls
	}
	p.imageCalls++
	return p.imageCalls
}

func (p *Provider) inject(scope string, callIndex int) error {
	if !p.Failures.shouldFail(scope, callIndex) {
		return nil
	}
	return &failure.HTTPError{
		Status:  p.Failures.status(),
		Message: fmt.Sprintf("injected stub failure scope=%s call=%d", scope, callIndex),
	}
}

// GenerateHouseSpec builds a fixed room program sized by the request: the
// public core plus the requested bedrooms and bathrooms. Light keyword
// matching on the prompt adjusts the style.
func (p *Provider) GenerateHouseSpec(ctx context.Context, req providers.SpecRequest) (*providers.SpecResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	callIndex := p.nextCall("spec")
	if err := p.inject("spec", callIndex); err != nil {
		return nil, err
	}

	style := detectStyle(req.Prompt, req.Style)

	rooms := []domain.SpecRoom{
		{ID: roomID(req, "living"), Type: domain.RoomLiving, Name: "Great Room", Area: 320},
		{ID: roomID(req, "kitchen"), Type: domain.RoomKitchen, Name: "Kitchen", Area: 220},
		{ID: roomID(req, "dining"), Type: domain.RoomDining, Name: "Dining", Area: 160},
		{ID: roomID(req, "laundry"), Type: domain.RoomLaundry, Name: "Laundry", Area: 70},
		{ID: roomID(req, "bedroom-1"), Type: domain.RoomBedroom, Name: "Primary Bedroom", Area: 240},
	}
	for i := 2; i <= req.Bedrooms; i++ {
		rooms = append(rooms, domain.SpecRoom{
			ID:   roomID(req, fmt.Sprintf("bedroom-%d", i)),
			Type: domain.RoomBedroom,
			Name: fmt.Sprintf("Bedroom %d", i),
			Area: 150,
		})
	}
	for i := 1; i <= req.Bathrooms; i++ {
		rooms = append(rooms, domain.SpecRoom{
			ID:   roomID(req, fmt.Sprintf("bathroom-%d", i)),
			Type: domain.RoomBathroom,
			Name: fmt.Sprintf("Bathroom %d", i),
			Area: 70,
		})
	}

	spec := &domain.HouseSpec{
		Version:   "1.0",
		Style:     style,
		Bedrooms:  req.Bedrooms,
		Bathrooms: req.Bathrooms,
		Rooms:     rooms,
		Notes: []string{
			"Stub provider: set GEMINI_API_KEY to enable model-driven specs and exterior images.",
			"This spec is authoritative; images (when enabled) are presentation-only.",
		},
	}
	return &providers.SpecResult{
		Spec: spec,
		Meta: providers.CallMeta{
			Provider:  "stub",
			Model:     "stub-house-spec",
			RequestID: fmt.Sprintf("stub-%d", callIndex),
			LatencyMS: 1,
		},
	}, nil
}

// GenerateExteriorImage never produces an image; the stub has no renderer.
// It still counts calls and honors the failure policy so image-stage retry
// behavior can be tested without an API key.
func (p *Provider) GenerateExteriorImage(ctx context.Context, req providers.ImageRequest) (*providers.ImageResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	callIndex := p.nextCall("image")
	if err := p.inject("image", callIndex); err != nil {
		return nil, err
	}
	return nil, nil
}

func detectStyle(prompt, fallback string) string {
	p := strings.ToLower(prompt)
	switch {
	case strings.Contains(p, "farmhouse"):
		return "modern_farmhouse"
	case strings.Contains(p, "hill country"):
		return "hill_country"
	case strings.Contains(p, "midcentury"), strings.Contains(p, "mid-century"):
		return "midcentury_modern"
	default:
		return fallback
	}
}

func roomID(req providers.SpecRequest, slug string) string {
	seed := fmt.Sprintf("%s|%d|%d|%s|%s", strings.TrimSpace(req.Prompt), req.Bedrooms, req.Bathrooms, req.Style, slug)
	return uuid.NewSHA1(idNamespace, []byte(seed)).String()
}
