package repo

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"drafted/internal/domain"
)

// MemoryStore is an in-process domain.Store used by tests and by single-node
// development setups without Postgres. Claiming is FIFO by creation time,
// with insertion order as the tiebreak, and is atomic under the store mutex.
type MemoryStore struct {
	mu sync.Mutex

	seq      int64
	jobSeq   map[string]int64
	jobs     map[string]*domain.Job
	specs    map[string]*domain.HouseSpec
	plans    map[string]*memPlan
	arts     map[string][]domain.Artifact
	usage    []domain.UsageEvent
	sessions map[string]*domain.Session
	users    map[string]*domain.User
}

type memPlan struct {
	plan             *domain.PlanGraph
	canonicalHash    string
	validationResult string
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		jobSeq:   make(map[string]int64),
		jobs:     make(map[string]*domain.Job),
		specs:    make(map[string]*domain.HouseSpec),
		plans:    make(map[string]*memPlan),
		arts:     make(map[string][]domain.Artifact),
		sessions: make(map[string]*domain.Session),
		users:    make(map[string]*domain.User),
	}
}

func cloneJob(j *domain.Job) *domain.Job {
	out := *j
	out.Stages = append([]domain.StageStamp(nil), j.Stages...)
	out.Warnings = append([]string(nil), j.Warnings...)
	out.Meta.Calls = append([]domain.ProviderCall(nil), j.Meta.Calls...)
	return &out
}

func (s *MemoryStore) CreateJob(ctx context.Context, job *domain.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.jobs[job.ID]; ok {
		return domain.ErrConflict
	}
	if job.IdempotencyKey != "" {
		for _, existing := range s.jobs {
			if existing.SessionID == job.SessionID && existing.IdempotencyKey == job.IdempotencyKey {
				return domain.ErrConflict
			}
		}
	}
	s.seq++
	s.jobSeq[job.ID] = s.seq
	s.jobs[job.ID] = cloneJob(job)
	return nil
}

func (s *MemoryStore) GetJob(ctx context.Context, jobID string) (*domain.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[jobID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return cloneJob(job), nil
}

func (s *MemoryStore) UpdateJob(ctx context.Context, job *domain.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.jobs[job.ID]
	if !ok {
		return domain.ErrNotFound
	}
	cp := cloneJob(job)
	// created_at is immutable after insert.
	cp.CreatedAt = existing.CreatedAt
	s.jobs[job.ID] = cp
	return nil
}

func (s *MemoryStore) ListJobsForUser(ctx context.Context, userID string, limit int) ([]domain.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sessionIDs := make(map[string]bool)
	for _, sess := range s.sessions {
		if sess.UserID == userID {
			sessionIDs[sess.ID] = true
		}
	}

	var out []domain.Job
	for _, job := range s.jobs {
		if sessionIDs[job.SessionID] {
			out = append(out, *cloneJob(job))
		}
	}
	s.sortNewestFirst(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemoryStore) ListJobsForSession(ctx context.Context, sessionID string) ([]domain.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Job
	for _, job := range s.jobs {
		if job.SessionID == sessionID {
			out = append(out, *cloneJob(job))
		}
	}
	s.sortNewestFirst(out)
	return out, nil
}

// sortNewestFirst orders by creation time descending, insertion order as
// tiebreak. Callers hold the mutex.
func (s *MemoryStore) sortNewestFirst(jobs []domain.Job) {
	sort.SliceStable(jobs, func(i, j int) bool {
		if !jobs[i].CreatedAt.Equal(jobs[j].CreatedAt) {
			return jobs[i].CreatedAt.After(jobs[j].CreatedAt)
		}
		return s.jobSeq[jobs[i].ID] > s.jobSeq[jobs[j].ID]
	})
}

func (s *MemoryStore) FindJobByIdempotencyKey(ctx context.Context, sessionID, key string) (*domain.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var best *domain.Job
	for _, job := range s.jobs {
		if job.SessionID != sessionID || job.IdempotencyKey != key {
			continue
		}
		if best == nil || s.jobSeq[job.ID] > s.jobSeq[best.ID] {
			best = job
		}
	}
	if best == nil {
		return nil, domain.ErrNotFound
	}
	return cloneJob(best), nil
}

func (s *MemoryStore) FindJobByRequestHash(ctx context.Context, sessionID, hash string, cutoff time.Time, statuses []domain.JobStatus) (*domain.Job, error) {
	allowed := make(map[domain.JobStatus]bool, len(statuses))
	for _, st := range statuses {
		allowed[st] = true
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	var best *domain.Job
	for _, job := range s.jobs {
		if job.SessionID != sessionID || job.RequestHash != hash {
			continue
		}
		if job.CreatedAt.Before(cutoff) || !allowed[job.Status] {
			continue
		}
		if best == nil || s.jobSeq[job.ID] > s.jobSeq[best.ID] {
			best = job
		}
	}
	if best == nil {
		return nil, domain.ErrNotFound
	}
	return cloneJob(best), nil
}

func (s *MemoryStore) ClaimNextQueued(ctx context.Context) (*domain.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var oldest *domain.Job
	for _, job := range s.jobs {
		if job.Status != domain.JobStatusQueued {
			continue
		}
		if oldest == nil {
			oldest = job
			continue
		}
		if job.CreatedAt.Before(oldest.CreatedAt) ||
			(job.CreatedAt.Equal(oldest.CreatedAt) && s.jobSeq[job.ID] < s.jobSeq[oldest.ID]) {
			oldest = job
		}
	}
	if oldest == nil {
		return nil, domain.ErrNotFound
	}

	oldest.Status = domain.JobStatusRunning
	oldest.SetStage(domain.StageInit, time.Now())
	return cloneJob(oldest), nil
}

func (s *MemoryStore) QueueStats(ctx context.Context, cutoff time.Time) (domain.QueueStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var stats domain.QueueStats
	for _, job := range s.jobs {
		switch job.Status {
		case domain.JobStatusQueued:
			stats.Queued++
		case domain.JobStatusRunning:
			stats.Running++
		case domain.JobStatusFailed:
			if !job.UpdatedAt.Before(cutoff) {
				stats.Failed++
			}
		case domain.JobStatusSucceeded:
			if !job.UpdatedAt.Before(cutoff) {
				stats.Succeeded++
			}
		}
	}
	return stats, nil
}

func (s *MemoryStore) UpsertHouseSpec(ctx context.Context, jobID string, spec *domain.HouseSpec) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *spec
	cp.Rooms = append([]domain.SpecRoom(nil), spec.Rooms...)
	cp.Notes = append([]string(nil), spec.Notes...)
	s.specs[jobID] = &cp
	return nil
}

func (s *MemoryStore) GetHouseSpec(ctx context.Context, jobID string) (*domain.HouseSpec, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	spec, ok := s.specs[jobID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *spec
	cp.Rooms = append([]domain.SpecRoom(nil), spec.Rooms...)
	cp.Notes = append([]string(nil), spec.Notes...)
	return &cp, nil
}

func (s *MemoryStore) UpsertPlanGraph(ctx context.Context, jobID string, plan *domain.PlanGraph, canonicalHash, validationResult string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *plan
	cp.Rooms = append([]domain.PlanRoom(nil), plan.Rooms...)
	cp.Edges = append([]domain.PlanEdge(nil), plan.Edges...)
	cp.Warnings = append([]string(nil), plan.Warnings...)
	s.plans[jobID] = &memPlan{plan: &cp, canonicalHash: canonicalHash, validationResult: validationResult}
	return nil
}

func (s *MemoryStore) GetPlanGraph(ctx context.Context, jobID string) (*domain.PlanGraph, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.plans[jobID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *entry.plan
	cp.Rooms = append([]domain.PlanRoom(nil), entry.plan.Rooms...)
	cp.Edges = append([]domain.PlanEdge(nil), entry.plan.Edges...)
	cp.Warnings = append([]string(nil), entry.plan.Warnings...)
	return &cp, nil
}

func (s *MemoryStore) AddArtifact(ctx context.Context, artifact *domain.Artifact) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.arts[artifact.JobID] = append(s.arts[artifact.JobID], *artifact)
	return nil
}

func (s *MemoryStore) ListArtifacts(ctx context.Context, jobID string) ([]domain.Artifact, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.Artifact(nil), s.arts[jobID]...), nil
}

func (s *MemoryStore) GetArtifact(ctx context.Context, jobID, artifactID string) (*domain.Artifact, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.arts[jobID] {
		if a.ID == artifactID {
			cp := a
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (s *MemoryStore) AddUsageEvent(ctx context.Context, event *domain.UsageEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.usage = append(s.usage, *event)
	return nil
}

// UsageEvents returns a snapshot of the usage ledger for assertions.
func (s *MemoryStore) UsageEvents() []domain.UsageEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.UsageEvent(nil), s.usage...)
}

func (s *MemoryStore) CreateSession(ctx context.Context, session *domain.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[session.ID]; ok {
		return domain.ErrConflict
	}
	cp := *session
	s.sessions[session.ID] = &cp
	return nil
}

func (s *MemoryStore) GetSession(ctx context.Context, sessionID string) (*domain.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[sessionID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *sess
	return &cp, nil
}

func (s *MemoryStore) ListSessionsForUser(ctx context.Context, userID string) ([]domain.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Session
	for _, sess := range s.sessions {
		if sess.UserID == userID {
			out = append(out, *sess)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *MemoryStore) CreateUser(ctx context.Context, user *domain.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	email := strings.ToLower(user.Email)
	for _, existing := range s.users {
		if strings.ToLower(existing.Email) == email {
			return domain.ErrDuplicateAccount
		}
	}
	cp := *user
	s.users[user.ID] = &cp
	return nil
}

func (s *MemoryStore) GetUserByID(ctx context.Context, userID string) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[userID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *user
	return &cp, nil
}

func (s *MemoryStore) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, user := range s.users {
		if strings.EqualFold(user.Email, email) {
			cp := *user
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}
