package jobs

import (
	"context"
	"io"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"drafted/internal/adapter/repo"
	"drafted/internal/artifacts"
	"drafted/internal/domain"
	"drafted/internal/failure"
	"drafted/internal/infra"
	"drafted/internal/providers"
	"drafted/internal/providers/stub"
	"drafted/internal/storage"
)

type fixture struct {
	store     *repo.MemoryStore
	files     *storage.FileStore
	heartbeat *storage.HeartbeatFile
	worker    *Worker
}

func newFixture(t *testing.T, provider providers.Provider, maxRetries int) *fixture {
	t.Helper()
	files, err := storage.NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("new file store: %v", err)
	}
	hb, err := storage.NewHeartbeatFile(t.TempDir() + "/heartbeat.json")
	if err != nil {
		t.Fatalf("new heartbeat: %v", err)
	}
	discard := zerolog.New(io.Discard)
	logger := infra.Logger(discard)

	store := repo.NewMemoryStore()
	mat := artifacts.NewMaterializer(files, store)
	proc := NewProcessor(store, provider, mat, &logger)
	worker := NewWorker(store, proc, hb, &logger, time.Millisecond, maxRetries)
	return &fixture{store: store, files: files, heartbeat: hb, worker: worker}
}

func queueJob(t *testing.T, store *repo.MemoryStore, mutate func(*domain.Job)) *domain.Job {
	t.Helper()
	now := time.Now().UTC()
	job := &domain.Job{
		ID:        uuid.NewString(),
		SessionID: "sess-1",
		Prompt:    "3 bed 2 bath contemporary home",
		Bedrooms:  3,
		Bathrooms: 2,
		Style:     "contemporary",
		Priority:  domain.PriorityNormal,
		Status:    domain.JobStatusQueued,
		Stage:     domain.StageInit,
		CreatedAt: now,
		UpdatedAt: now,
	}
	job.SetStage(domain.StageInit, now)
	if mutate != nil {
		mutate(job)
	}
	if err := store.CreateJob(context.Background(), job); err != nil {
		t.Fatalf("create job: %v", err)
	}
	return job
}

func TestWorkerProcessesJobToSuccess(t *testing.T) {
	f := newFixture(t, stub.New(), 2)
	ctx := context.Background()
	job := queueJob(t, f.store, nil)

	claimed, err := f.worker.RunOnce(ctx)
	if err != nil {
		t.Fatalf("run once: %v", err)
	}
	if !claimed {
		t.Fatal("no job claimed")
	}

	got, err := f.store.GetJob(ctx, job.ID)
	if err != nil {
		t.Fatalf("get job: %v", err)
	}
	if got.Status != domain.JobStatusSucceeded {
		t.Fatalf("status = %s, error = %s", got.Status, got.Error)
	}
	if got.Stage != domain.StageDone {
		t.Fatalf("stage = %s", got.Stage)
	}

	times := got.StageTimes()
	for _, stage := range []string{"init", "spec", "plan", "render", "done"} {
		if _, ok := times[stage]; !ok {
			t.Fatalf("stage %s not stamped: %v", stage, times)
		}
	}

	listed, err := f.store.ListArtifacts(ctx, job.ID)
	if err != nil {
		t.Fatalf("list artifacts: %v", err)
	}
	byType := map[domain.ArtifactType]bool{}
	for _, a := range listed {
		byType[a.Type] = true
		if !f.files.Exists(a.Path) {
			t.Fatalf("artifact %s not on disk", a.Path)
		}
	}
	if !byType[domain.ArtifactSpecJSON] || !byType[domain.ArtifactPlanSVG] {
		t.Fatalf("artifact types = %v", byType)
	}

	if _, err := f.store.GetHouseSpec(ctx, job.ID); err != nil {
		t.Fatalf("spec not persisted: %v", err)
	}
	if _, err := f.store.GetPlanGraph(ctx, job.ID); err != nil {
		t.Fatalf("plan not persisted: %v", err)
	}

	events := f.store.UsageEvents()
	if len(events) != 1 || events[0].EventType != domain.UsageHouseSpec {
		t.Fatalf("usage events = %+v", events)
	}

	hb, err := f.heartbeat.Read()
	if err != nil {
		t.Fatalf("read heartbeat: %v", err)
	}
	if hb.State != domain.WorkerIdle {
		t.Fatalf("heartbeat state = %s", hb.State)
	}
}

func TestWorkerRetriesTransientThenSucceeds(t *testing.T) {
	provider := stub.New()
	provider.Failures = stub.FailurePolicy{Scope: "spec", FailFirstN: 1, HTTPStatus: 503}
	f := newFixture(t, provider, 2)
	ctx := context.Background()
	job := queueJob(t, f.store, nil)

	if _, err := f.worker.RunOnce(ctx); err != nil {
		t.Fatalf("first attempt: %v", err)
	}

	got, err := f.store.GetJob(ctx, job.ID)
	if err != nil {
		t.Fatalf("get job: %v", err)
	}
	if got.Status != domain.JobStatusQueued {
		t.Fatalf("status after transient failure = %s", got.Status)
	}
	if got.Stage != domain.StageRetryWait {
		t.Fatalf("stage = %s", got.Stage)
	}
	if got.RetryCount != 1 {
		t.Fatalf("retry count = %d", got.RetryCount)
	}
	if got.FailureCode != string(failure.CodeProviderTransient) {
		t.Fatalf("failure code = %s", got.FailureCode)
	}

	hb, err := f.heartbeat.Read()
	if err != nil {
		t.Fatalf("read heartbeat: %v", err)
	}
	if hb.State != domain.WorkerError || hb.Error == "" {
		t.Fatalf("heartbeat after failure = %+v", hb)
	}

	if _, err := f.worker.RunOnce(ctx); err != nil {
		t.Fatalf("second attempt: %v", err)
	}
	got, err = f.store.GetJob(ctx, job.ID)
	if err != nil {
		t.Fatalf("get job: %v", err)
	}
	if got.Status != domain.JobStatusSucceeded {
		t.Fatalf("status = %s, error = %s", got.Status, got.Error)
	}
	if got.RetryCount != 1 {
		t.Fatalf("retry count = %d", got.RetryCount)
	}
	if got.FailureCode != "" || got.Error != "" {
		t.Fatalf("stale failure fields: code=%q error=%q", got.FailureCode, got.Error)
	}
}

func TestWorkerExhaustsRetries(t *testing.T) {
	provider := stub.New()
	provider.Failures = stub.FailurePolicy{Scope: "spec", FailFirstN: 10, HTTPStatus: 503}
	f := newFixture(t, provider, 2)
	ctx := context.Background()
	job := queueJob(t, f.store, nil)

	// Attempts: original plus two retries.
	for i := 0; i < 3; i++ {
		if _, err := f.worker.RunOnce(ctx); err != nil {
			t.Fatalf("attempt %d: %v", i, err)
		}
	}

	got, err := f.store.GetJob(ctx, job.ID)
	if err != nil {
		t.Fatalf("get job: %v", err)
	}
	if got.Status != domain.JobStatusFailed {
		t.Fatalf("status = %s", got.Status)
	}
	if got.RetryCount != 2 {
		t.Fatalf("retry count = %d", got.RetryCount)
	}
	if got.FailureCode != string(failure.CodeProviderTransient) {
		t.Fatalf("failure code = %s", got.FailureCode)
	}
	if got.Error == "" {
		t.Fatal("error not recorded")
	}

	// A further poll must not touch the terminal job.
	claimed, err := f.worker.RunOnce(ctx)
	if err != nil {
		t.Fatalf("post-terminal poll: %v", err)
	}
	if claimed {
		t.Fatal("terminal job was claimed again")
	}
}

// permanentProvider always fails with a non-retryable upstream status.
type permanentProvider struct{}

func (permanentProvider) Name() string { return "permanent" }

func (permanentProvider) GenerateHouseSpec(ctx context.Context, req providers.SpecRequest) (*providers.SpecResult, error) {
	return nil, &failure.HTTPError{Status: 400, Message: "malformed prompt"}
}

func (permanentProvider) GenerateExteriorImage(ctx context.Context, req providers.ImageRequest) (*providers.ImageResult, error) {
	return nil, nil
}

func TestWorkerDoesNotRetryPermanentFailure(t *testing.T) {
	f := newFixture(t, permanentProvider{}, 2)
	ctx := context.Background()
	job := queueJob(t, f.store, nil)

	if _, err := f.worker.RunOnce(ctx); err != nil {
		t.Fatalf("run once: %v", err)
	}

	got, err := f.store.GetJob(ctx, job.ID)
	if err != nil {
		t.Fatalf("get job: %v", err)
	}
	if got.Status != domain.JobStatusFailed {
		t.Fatalf("status = %s", got.Status)
	}
	if got.RetryCount != 0 {
		t.Fatalf("retry count = %d", got.RetryCount)
	}
	if got.FailureCode != string(failure.CodeProviderPermanent) {
		t.Fatalf("failure code = %s", got.FailureCode)
	}
}

// shortSpecProvider returns fewer bedrooms than requested.
type shortSpecProvider struct{}

func (shortSpecProvider) Name() string { return "short" }

func (shortSpecProvider) GenerateHouseSpec(ctx context.Context, req providers.SpecRequest) (*providers.SpecResult, error) {
	return &providers.SpecResult{
		Spec: &domain.HouseSpec{
			Version:   "1.0",
			Style:     req.Style,
			Bedrooms:  req.Bedrooms,
			Bathrooms: req.Bathrooms,
			Rooms: []domain.SpecRoom{
				{ID: "living", Type: domain.RoomLiving, Name: "Living", Area: 300},
				{ID: "bed-1", Type: domain.RoomBedroom, Name: "Bedroom 1", Area: 150},
			},
		},
		Meta: providers.CallMeta{Provider: "short", Model: "short-spec"},
	}, nil
}

func (shortSpecProvider) GenerateExteriorImage(ctx context.Context, req providers.ImageRequest) (*providers.ImageResult, error) {
	return nil, nil
}

func TestWorkerFailsValidationWithoutRetry(t *testing.T) {
	f := newFixture(t, shortSpecProvider{}, 2)
	ctx := context.Background()
	job := queueJob(t, f.store, nil)

	if _, err := f.worker.RunOnce(ctx); err != nil {
		t.Fatalf("run once: %v", err)
	}

	got, err := f.store.GetJob(ctx, job.ID)
	if err != nil {
		t.Fatalf("get job: %v", err)
	}
	if got.Status != domain.JobStatusFailed {
		t.Fatalf("status = %s", got.Status)
	}
	if got.FailureCode != string(failure.CodeValidation) {
		t.Fatalf("failure code = %s", got.FailureCode)
	}
	if got.RetryCount != 0 {
		t.Fatalf("retry count = %d", got.RetryCount)
	}
}

// imageProvider produces a deterministic exterior image alongside specs.
type imageProvider struct {
	inner providers.Provider
}

func (p imageProvider) Name() string { return "with-image" }

func (p imageProvider) GenerateHouseSpec(ctx context.Context, req providers.SpecRequest) (*providers.SpecResult, error) {
	return p.inner.GenerateHouseSpec(ctx, req)
}

func (p imageProvider) GenerateExteriorImage(ctx context.Context, req providers.ImageRequest) (*providers.ImageResult, error) {
	return &providers.ImageResult{
		Data:     []byte("png-bytes"),
		MIMEType: "image/png",
		Meta:     providers.CallMeta{Provider: "with-image", Model: "exterior-1"},
	}, nil
}

func TestWorkerMaterializesExteriorImage(t *testing.T) {
	f := newFixture(t, imageProvider{inner: stub.New()}, 2)
	ctx := context.Background()
	job := queueJob(t, f.store, func(j *domain.Job) { j.WantExteriorImage = true })

	if _, err := f.worker.RunOnce(ctx); err != nil {
		t.Fatalf("run once: %v", err)
	}

	got, err := f.store.GetJob(ctx, job.ID)
	if err != nil {
		t.Fatalf("get job: %v", err)
	}
	if got.Status != domain.JobStatusSucceeded {
		t.Fatalf("status = %s, error = %s", got.Status, got.Error)
	}
	if _, ok := got.StageTimes()["image"]; !ok {
		t.Fatal("image stage not stamped")
	}

	listed, err := f.store.ListArtifacts(ctx, job.ID)
	if err != nil {
		t.Fatalf("list artifacts: %v", err)
	}
	var image *domain.Artifact
	for i := range listed {
		if listed[i].Type == domain.ArtifactExteriorImage {
			image = &listed[i]
		}
	}
	if image == nil {
		t.Fatalf("no exterior image artifact: %+v", listed)
	}
	if image.MIMEType != "image/png" {
		t.Fatalf("image mime = %s", image.MIMEType)
	}

	events := f.store.UsageEvents()
	types := map[string]bool{}
	for _, e := range events {
		types[e.EventType] = true
	}
	if !types[domain.UsageHouseSpec] || !types[domain.UsageExteriorImage] {
		t.Fatalf("usage event types = %v", types)
	}
}

func TestUsageLedgerRecordsUnattributedEvents(t *testing.T) {
	f := newFixture(t, stub.New(), 2)
	ctx := context.Background()

	// The job's session was never created, so user resolution comes up
	// empty. The ledger entry must still land, just without attribution.
	queueJob(t, f.store, func(j *domain.Job) { j.SessionID = "sess-gone" })
	if _, err := f.worker.RunOnce(ctx); err != nil {
		t.Fatalf("run once: %v", err)
	}

	events := f.store.UsageEvents()
	if len(events) != 1 {
		t.Fatalf("usage events = %+v", events)
	}
	if events[0].UserID != "" {
		t.Fatalf("user id = %q, want unattributed", events[0].UserID)
	}
	if events[0].EventType != domain.UsageHouseSpec {
		t.Fatalf("event type = %s", events[0].EventType)
	}
}

func TestTruncateKeepsRuneBoundary(t *testing.T) {
	s := strings.Repeat("é", 10) // two bytes per rune
	got := truncate(s, 5)
	if len(got) != 4 {
		t.Fatalf("truncate length = %d, want 4", len(got))
	}
	if !utf8.ValidString(got) {
		t.Fatalf("truncated string is not valid UTF-8: %q", got)
	}
	if truncate("abc", 5) != "abc" {
		t.Fatal("short string changed")
	}
}

func TestProcessorSkipsTerminalJob(t *testing.T) {
	f := newFixture(t, stub.New(), 2)
	ctx := context.Background()
	job := queueJob(t, f.store, func(j *domain.Job) {
		j.Status = domain.JobStatusSucceeded
		j.Stage = domain.StageDone
	})

	before, err := f.store.GetJob(ctx, job.ID)
	if err != nil {
		t.Fatalf("get job: %v", err)
	}
	if err := f.worker.proc.Process(ctx, before); err != nil {
		t.Fatalf("process terminal: %v", err)
	}
	after, err := f.store.GetJob(ctx, job.ID)
	if err != nil {
		t.Fatalf("get job: %v", err)
	}
	if after.Status != domain.JobStatusSucceeded || len(after.Stages) != len(before.Stages) {
		t.Fatalf("terminal job mutated: %+v", after)
	}
}

func TestProcessorReusesParentSpec(t *testing.T) {
	f := newFixture(t, stub.New(), 2)
	ctx := context.Background()

	parent := queueJob(t, f.store, nil)
	if _, err := f.worker.RunOnce(ctx); err != nil {
		t.Fatalf("parent run: %v", err)
	}
	parentSpec, err := f.store.GetHouseSpec(ctx, parent.ID)
	if err != nil {
		t.Fatalf("parent spec: %v", err)
	}

	child := queueJob(t, f.store, func(j *domain.Job) {
		j.ParentJobID = parent.ID
		j.Meta.ReuseSpec = true
		j.Meta.RegeneratedFrom = parent.ID
	})
	if _, err := f.worker.RunOnce(ctx); err != nil {
		t.Fatalf("child run: %v", err)
	}

	got, err := f.store.GetJob(ctx, child.ID)
	if err != nil {
		t.Fatalf("get child: %v", err)
	}
	if got.Status != domain.JobStatusSucceeded {
		t.Fatalf("child status = %s, error = %s", got.Status, got.Error)
	}

	var reuse *domain.ProviderCall
	for i := range got.Meta.Calls {
		if got.Meta.Calls[i].Provider == "reuse" {
			reuse = &got.Meta.Calls[i]
		}
	}
	if reuse == nil {
		t.Fatalf("no reuse call entry: %+v", got.Meta.Calls)
	}
	if reuse.Model != "parent_house_spec" || reuse.RequestID != parent.ID {
		t.Fatalf("reuse entry = %+v", reuse)
	}

	childSpec, err := f.store.GetHouseSpec(ctx, child.ID)
	if err != nil {
		t.Fatalf("child spec: %v", err)
	}
	if len(childSpec.Rooms) != len(parentSpec.Rooms) {
		t.Fatalf("reused spec differs: %d vs %d rooms", len(childSpec.Rooms), len(parentSpec.Rooms))
	}

	// Reuse must not bill a second spec generation.
	for _, e := range f.store.UsageEvents() {
		if e.JobID == child.ID && e.EventType == domain.UsageHouseSpec {
			t.Fatal("reused spec produced a usage event")
		}
	}
}
