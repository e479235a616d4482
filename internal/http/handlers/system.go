package handlers

import (
	"net/http"
	"time"

	"drafted/internal/domain"
	"drafted/internal/failure"
)

type workerHealth struct {
	State      string  `json:"state"`
	AgeSeconds float64 `json:"age_seconds"`
	Stale      bool    `json:"stale"`
	JobID      string  `json:"job_id,omitempty"`
	Error      string  `json:"error,omitempty"`
}

type healthResponse struct {
	Status   string            `json:"status"`
	Provider string            `json:"provider"`
	Database string            `json:"database"`
	Redis    string            `json:"redis,omitempty"`
	Queue    domain.QueueStats `json:"queue"`
	Worker   *workerHealth     `json:"worker"`
}

// Health reports database reachability, queue depth, and worker liveness in
// one response. It degrades instead of failing: a missing heartbeat or an
// unreachable probe shows up in the body, not as a 5xx.
func (a *App) Health(w http.ResponseWriter, r *http.Request) {
	now := time.Now().UTC()
	resp := healthResponse{Status: "ok", Provider: a.ProviderMode, Database: "ok"}

	if a.Pool != nil {
		if err := a.Pool.Ping(r.Context()); err != nil {
			resp.Status = "degraded"
			resp.Database = "unreachable"
		}
	}

	if a.Redis != nil {
		resp.Redis = "ok"
		if err := a.Redis.Ping(r.Context()).Err(); err != nil {
			resp.Status = "degraded"
			resp.Redis = "unreachable"
		}
	}

	stats, err := a.Store.QueueStats(r.Context(), now.Add(-24*time.Hour))
	if err != nil {
		a.Logger.Error().Err(err).Msg("queue stats failed")
		resp.Status = "degraded"
	} else {
		resp.Queue = stats
	}

	if hb, err := a.Heartbeat.Read(); err == nil {
		age := hb.Age(now)
		stale := age > a.Cfg.HeartbeatTTL
		if stale {
			resp.Status = "degraded"
		}
		resp.Worker = &workerHealth{
			State:      hb.State,
			AgeSeconds: age.Seconds(),
			Stale:      stale,
			JobID:      hb.JobID,
			Error:      hb.Error,
		}
	} else {
		resp.Status = "degraded"
	}

	a.json(w, http.StatusOK, resp)
}

// RetryPolicy publishes the machine-readable failure classification so
// operational tooling can cross-check runtime retry behavior.
func (a *App) RetryPolicy(w http.ResponseWriter, r *http.Request) {
	a.json(w, http.StatusOK, failure.Policy())
}
