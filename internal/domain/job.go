package domain

import (
	"time"
	"unicode/utf8"
)

// JobStatus enumerates job lifecycle states. succeeded and failed are
// terminal: a job in either state is never re-claimed or re-mutated.
type JobStatus string

const (
	JobStatusQueued    JobStatus = "queued"
	JobStatusRunning   JobStatus = "running"
	JobStatusSucceeded JobStatus = "succeeded"
	JobStatusFailed    JobStatus = "failed"
)

// Terminal reports whether the status admits no further transitions.
func (s JobStatus) Terminal() bool {
	return s == JobStatusSucceeded || s == JobStatusFailed
}

// JobStage is the fine-grained progress marker inside a running job.
type JobStage string

const (
	// StageQueued only appears as a stage timestamp; the live stage marker
	// starts at init.
	StageQueued JobStage = "queued"

	StageInit      JobStage = "init"
	StageSpec      JobStage = "spec"
	StagePlan      JobStage = "plan"
	StageRender    JobStage = "render"
	StageImage     JobStage = "image"
	StageRetryWait JobStage = "retry_wait"
	StageDone      JobStage = "done"
)

// JobPriority tags a job for display purposes; claiming is strictly FIFO.
type JobPriority string

const (
	PriorityNormal JobPriority = "normal"
	PriorityHigh   JobPriority = "high"
)

// maxProviderCalls caps the call-metadata ring buffer so a much-retried job
// cannot grow its row without bound.
const maxProviderCalls = 20

// maxErrorLen bounds the error text persisted on a failed job.
const maxErrorLen = 4000

// StageStamp records one stage transition. The list is append-only and
// monotonic per stage; it is the durable evidence of pipeline progress.
type StageStamp struct {
	Stage JobStage  `json:"stage"`
	At    time.Time `json:"at"`
}

// ProviderCall is one entry of the job's call-metadata ring buffer.
type ProviderCall struct {
	Provider     string `json:"provider"`
	Model        string `json:"model,omitempty"`
	RequestID    string `json:"request_id,omitempty"`
	LatencyMS    int    `json:"latency_ms,omitempty"`
	InputTokens  int    `json:"input_tokens,omitempty"`
	OutputTokens int    `json:"output_tokens,omitempty"`
	TotalTokens  int    `json:"total_tokens,omitempty"`
	ImageTokens  int    `json:"image_tokens,omitempty"`
	LastError    string `json:"last_error,omitempty"`
}

// JobMeta carries regeneration flags plus the provider call ring buffer.
type JobMeta struct {
	ReuseSpec       bool           `json:"reuse_spec,omitempty"`
	RegeneratedFrom string         `json:"regenerated_from_job_id,omitempty"`
	Calls           []ProviderCall `json:"calls,omitempty"`
}

// Job is the unit of work: one request brief turned into a multi-stage
// pipeline run. Identity and request fields are immutable after creation;
// only the worker mutates the lifecycle fields afterwards. Jobs are never
// deleted.
type Job struct {
	ID          string
	SessionID   string
	ParentJobID string

	Prompt            string
	Bedrooms          int
	Bathrooms         int
	Style             string
	WantExteriorImage bool
	IdempotencyKey    string
	RequestHash       string
	Priority          JobPriority

	Status      JobStatus
	Stage       JobStage
	Error       string
	FailureCode string
	RetryCount  int
	Meta        JobMeta
	Stages      []StageStamp
	Warnings    []string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// SetStage advances the stage marker and appends a stage timestamp.
func (j *Job) SetStage(stage JobStage, now time.Time) {
	j.Stage = stage
	j.Stages = append(j.Stages, StageStamp{Stage: stage, At: now.UTC()})
	j.UpdatedAt = now.UTC()
}

// StageTimes flattens the stamp list into a stage -> latest timestamp view
// for API responses.
func (j *Job) StageTimes() map[string]time.Time {
	out := make(map[string]time.Time, len(j.Stages))
	for _, s := range j.Stages {
		out[string(s.Stage)] = s.At
	}
	return out
}

// AppendCall pushes one call-metadata entry, keeping only the most recent
// entries up to the ring capacity.
func (j *Job) AppendCall(call ProviderCall) {
	j.Meta.Calls = append(j.Meta.Calls, call)
	if n := len(j.Meta.Calls); n > maxProviderCalls {
		j.Meta.Calls = j.Meta.Calls[n-maxProviderCalls:]
	}
}

// SetError records a truncated error message on the job. The cut never
// splits a rune, so the persisted text stays valid UTF-8.
func (j *Job) SetError(msg string) {
	if len(msg) > maxErrorLen {
		cut := maxErrorLen
		for cut > 0 && !utf8.RuneStart(msg[cut]) {
			cut--
		}
		msg = msg[:cut]
	}
	j.Error = msg
}
