package jobs

import (
	"context"
	"errors"
	"fmt"
	"time"
	"unicode/utf8"

	"drafted/internal/domain"
	"drafted/internal/failure"
	"drafted/internal/infra"
	"drafted/internal/storage"
)

// workerErrorLen bounds error text carried in heartbeats and diagnostic
// call entries.
const workerErrorLen = 200

const diagnosticErrorLen = 500

// Worker polls the queue, runs claimed jobs through the Processor, and
// settles failures per the retry policy. Liveness goes to the heartbeat
// file on every state change.
type Worker struct {
	store        domain.JobRepository
	proc         *Processor
	heartbeat    *storage.HeartbeatFile
	logger       *infra.Logger
	pollInterval time.Duration
	maxRetries   int
}

func NewWorker(store domain.JobRepository, proc *Processor, heartbeat *storage.HeartbeatFile, logger *infra.Logger, pollInterval time.Duration, maxRetries int) *Worker {
	if pollInterval <= 0 {
		pollInterval = time.Second
	}
	return &Worker{
		store:        store,
		proc:         proc,
		heartbeat:    heartbeat,
		logger:       logger,
		pollInterval: pollInterval,
		maxRetries:   maxRetries,
	}
}

// Run polls until the context is canceled.
func (w *Worker) Run(ctx context.Context) error {
	w.publish(domain.Heartbeat{State: domain.WorkerStarting})
	w.logger.Info().Dur("poll_interval", w.pollInterval).Int("max_retries", w.maxRetries).Msg("worker: started")

	for {
		select {
		case <-ctx.Done():
			w.publish(domain.Heartbeat{State: domain.WorkerStopping})
			w.logger.Info().Msg("worker: stopping")
			return nil
		default:
		}

		claimed, err := w.RunOnce(ctx)
		if err != nil {
			w.logger.Error().Err(err).Msg("worker: iteration failed")
		}
		if !claimed {
			select {
			case <-ctx.Done():
			case <-time.After(w.pollInterval):
			}
		}
	}
}

// RunOnce claims and runs at most one job. It reports whether a job was
// claimed so the loop only sleeps on an empty queue.
func (w *Worker) RunOnce(ctx context.Context) (bool, error) {
	job, err := w.store.ClaimNextQueued(ctx)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			w.publish(domain.Heartbeat{State: domain.WorkerIdle})
			return false, nil
		}
		return false, fmt.Errorf("claim job: %w", err)
	}

	retries := job.RetryCount
	w.publish(domain.Heartbeat{State: domain.WorkerRunning, JobID: job.ID, RetryCount: &retries})
	w.logger.Info().Str("job_id", job.ID).Int("retry_count", job.RetryCount).Msg("worker: claimed job")

	if procErr := w.proc.Process(ctx, job); procErr != nil {
		w.settleFailure(ctx, job, procErr)
		return true, nil
	}

	w.publish(domain.Heartbeat{State: domain.WorkerIdle})
	return true, nil
}

// settleFailure classifies the error and either requeues the job for
// another attempt or fails it terminally.
func (w *Worker) settleFailure(ctx context.Context, job *domain.Job, procErr error) {
	code, retryable := failure.Classify(procErr)
	job.FailureCode = string(code)
	job.SetError(procErr.Error())
	job.AppendCall(domain.ProviderCall{
		Provider:  "system",
		Model:     "worker",
		LastError: truncate(procErr.Error(), diagnosticErrorLen),
	})

	if retryable && job.RetryCount < w.maxRetries {
		job.RetryCount++
		job.Status = domain.JobStatusQueued
		job.SetStage(domain.StageRetryWait, time.Now())
	} else {
		job.Status = domain.JobStatusFailed
		job.SetStage(domain.StageDone, time.Now())
	}

	if err := w.store.UpdateJob(ctx, job); err != nil {
		w.logger.Error().Err(err).Str("job_id", job.ID).Msg("worker: failed to settle job")
	}

	retries := job.RetryCount
	w.publish(domain.Heartbeat{
		State:      domain.WorkerError,
		JobID:      job.ID,
		RetryCount: &retries,
		Error:      truncate(procErr.Error(), workerErrorLen),
	})
	w.logger.Warn().
		Str("job_id", job.ID).
		Str("failure_code", job.FailureCode).
		Bool("retryable", retryable).
		Int("retry_count", job.RetryCount).
		Str("status", string(job.Status)).
		Msg("worker: job attempt failed")
}

func (w *Worker) publish(hb domain.Heartbeat) {
	if w.heartbeat == nil {
		return
	}
	hb.Timestamp = time.Now().UTC()
	if err := w.heartbeat.Publish(hb); err != nil {
		w.logger.Warn().Err(err).Msg("worker: heartbeat publish failed")
	}
}

// truncate shortens s to at most n bytes, backing up to a rune boundary so
// the result is always valid UTF-8.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
