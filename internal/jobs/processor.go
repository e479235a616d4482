// Package jobs runs the design pipeline: claim a queued job, generate the
// house spec, derive the plan graph, render artifacts, and settle the job's
// terminal state with retry-aware failure handling.
package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"drafted/internal/artifacts"
	"drafted/internal/domain"
	"drafted/internal/failure"
	"drafted/internal/infra"
	"drafted/internal/plan"
	"drafted/internal/providers"
)

// Processor executes the stage pipeline for one claimed job. Every stage
// transition is persisted before the next stage starts, so a crash leaves a
// truthful trail.
type Processor struct {
	store    domain.Store
	provider providers.Provider
	mat      *artifacts.Materializer
	logger   *infra.Logger
}

func NewProcessor(store domain.Store, provider providers.Provider, mat *artifacts.Materializer, logger *infra.Logger) *Processor {
	return &Processor{store: store, provider: provider, mat: mat, logger: logger}
}

// Process runs the pipeline on a claimed job. Terminal jobs are a no-op.
// The returned error, if any, is classified by the caller; the job is left
// in running state for the caller to settle.
func (p *Processor) Process(ctx context.Context, job *domain.Job) error {
	if job.Status.Terminal() {
		return nil
	}

	job.Status = domain.JobStatusRunning
	job.SetStage(domain.StageSpec, time.Now())
	job.Error = ""
	job.FailureCode = ""
	if err := p.store.UpdateJob(ctx, job); err != nil {
		return fmt.Errorf("persist spec stage: %w", err)
	}

	userID := p.resolveUser(ctx, job.SessionID)

	spec, err := p.obtainSpec(ctx, job, userID)
	if err != nil {
		return err
	}
	if err := validateSpec(job, spec); err != nil {
		return err
	}
	if err := p.store.UpsertHouseSpec(ctx, job.ID, spec); err != nil {
		return fmt.Errorf("persist house spec: %w", err)
	}

	job.SetStage(domain.StagePlan, time.Now())
	if err := p.store.UpdateJob(ctx, job); err != nil {
		return fmt.Errorf("persist plan stage: %w", err)
	}

	graph := plan.Generate(spec)
	hash, err := graph.ContentHash()
	if err != nil {
		return fmt.Errorf("hash plan graph: %w", err)
	}
	validation := domain.PlanValidationOK
	if len(graph.Warnings) > 0 {
		validation = domain.PlanValidationWarn
	}
	if err := p.store.UpsertPlanGraph(ctx, job.ID, graph, hash, validation); err != nil {
		return fmt.Errorf("persist plan graph: %w", err)
	}
	job.Warnings = graph.Warnings

	job.SetStage(domain.StageRender, time.Now())
	if err := p.store.UpdateJob(ctx, job); err != nil {
		return fmt.Errorf("persist render stage: %w", err)
	}

	specJSON, err := json.MarshalIndent(spec, "", "  ")
	if err != nil {
		return fmt.Errorf("encode spec artifact: %w", err)
	}
	if _, err := p.mat.Materialize(ctx, job.ID, domain.ArtifactSpecJSON, "spec.json", "application/json", specJSON,
		map[string]any{"provider": p.provider.Name()}); err != nil {
		return err
	}

	svg := plan.RenderSVG(graph)
	if _, err := p.mat.Materialize(ctx, job.ID, domain.ArtifactPlanSVG, "plan.svg", "image/svg+xml", []byte(svg),
		map[string]any{"px_per_ft": 12}); err != nil {
		return err
	}

	if job.WantExteriorImage {
		if err := p.exteriorImage(ctx, job, userID); err != nil {
			return err
		}
	}

	if err := p.mat.Verify(ctx, job.ID); err != nil {
		return err
	}

	job.Status = domain.JobStatusSucceeded
	job.SetStage(domain.StageDone, time.Now())
	if err := p.store.UpdateJob(ctx, job); err != nil {
		return fmt.Errorf("persist success: %w", err)
	}

	p.logger.Info().
		Str("job_id", job.ID).
		Int("retry_count", job.RetryCount).
		Msg("jobs: pipeline succeeded")
	return nil
}

// obtainSpec resolves the house spec: from the parent job when a regenerate
// asked to reuse it, otherwise from the provider. A reuse request whose
// parent spec is gone falls back to fresh generation.
func (p *Processor) obtainSpec(ctx context.Context, job *domain.Job, userID string) (*domain.HouseSpec, error) {
	if job.Meta.ReuseSpec && job.ParentJobID != "" {
		spec, err := p.store.GetHouseSpec(ctx, job.ParentJobID)
		if err == nil {
			job.AppendCall(domain.ProviderCall{
				Provider:  "reuse",
				Model:     "parent_house_spec",
				RequestID: job.ParentJobID,
			})
			return spec, nil
		}
	}

	result, err := p.provider.GenerateHouseSpec(ctx, providers.SpecRequest{
		Prompt:    job.Prompt,
		Bedrooms:  job.Bedrooms,
		Bathrooms: job.Bathrooms,
		Style:     job.Style,
	})
	if err != nil {
		return nil, err
	}
	job.AppendCall(result.Meta.Call())
	p.recordUsage(ctx, userID, job.ID, domain.UsageHouseSpec, result.Meta)
	return result.Spec, nil
}

func (p *Processor) exteriorImage(ctx context.Context, job *domain.Job, userID string) error {
	job.SetStage(domain.StageImage, time.Now())
	if err := p.store.UpdateJob(ctx, job); err != nil {
		return fmt.Errorf("persist image stage: %w", err)
	}

	result, err := p.provider.GenerateExteriorImage(ctx, providers.ImageRequest{
		Prompt: job.Prompt,
		Style:  job.Style,
	})
	if err != nil {
		return err
	}
	if result == nil {
		return nil
	}

	ext := "jpg"
	if strings.HasSuffix(result.MIMEType, "png") {
		ext = "png"
	}
	if _, err := p.mat.Materialize(ctx, job.ID, domain.ArtifactExteriorImage, "exterior."+ext, result.MIMEType, result.Data,
		map[string]any{"model": result.Meta.Model}); err != nil {
		return err
	}
	job.AppendCall(result.Meta.Call())
	p.recordUsage(ctx, userID, job.ID, domain.UsageExteriorImage, result.Meta)
	return nil
}

func (p *Processor) resolveUser(ctx context.Context, sessionID string) string {
	sess, err := p.store.GetSession(ctx, sessionID)
	if err != nil {
		return ""
	}
	return sess.UserID
}

// recordUsage appends to the usage ledger. Ledger writes never fail the
// pipeline; a write error is logged and dropped.
func (p *Processor) recordUsage(ctx context.Context, userID, jobID, eventType string, meta providers.CallMeta) {
	event := &domain.UsageEvent{
		ID:                uuid.NewString(),
		UserID:            userID,
		JobID:             jobID,
		EventType:         eventType,
		ProviderModel:     meta.Model,
		InputTokens:       meta.InputTokens,
		OutputTokens:      meta.OutputTokens,
		ImageTokens:       meta.ImageTokens,
		LatencyMS:         meta.LatencyMS,
		ProviderRequestID: meta.RequestID,
		CreatedAt:         time.Now().UTC(),
	}
	if err := p.store.AddUsageEvent(ctx, event); err != nil {
		p.logger.Warn().Err(err).Str("job_id", jobID).Msg("jobs: usage event dropped")
	}
}

// validateSpec checks the generated spec against the request's hard
// constraints. Failures are terminal: the same input would fail again.
func validateSpec(job *domain.Job, spec *domain.HouseSpec) error {
	beds := spec.CountRooms(domain.RoomBedroom)
	baths := spec.CountRooms(domain.RoomBathroom)
	if beds < job.Bedrooms {
		return failure.Validationf("Spec has %d bedrooms, expected at least %d", beds, job.Bedrooms)
	}
	if baths < job.Bathrooms {
		return failure.Validationf("Spec has %d bathrooms, expected at least %d", baths, job.Bathrooms)
	}
	for _, r := range spec.Rooms {
		if r.Area <= 0 {
			return failure.Validationf("Room %s has non-positive area", r.Name)
		}
	}
	return nil
}
