// Package handlers implements the HTTP API surface. Every handler hangs off
// App so routing stays a one-screen wiring exercise.
package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"drafted/internal/artifacts"
	"drafted/internal/domain"
	"drafted/internal/infra"
	"drafted/internal/intake"
	"drafted/internal/middleware"
	"drafted/internal/storage"
)

type App struct {
	Store     domain.Store
	Files     *storage.FileStore
	Exporter  *artifacts.Exporter
	Intake    *intake.Service
	Heartbeat *storage.HeartbeatFile

	// Pool and Redis are optional probes for the health surface; either may
	// be nil when the backing service is not configured.
	Pool  *pgxpool.Pool
	Redis *redis.Client

	ProviderMode string
	JWTSecret    string
	Cfg          *infra.Config
	Logger       *infra.Logger
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

type errorBody struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Details   any    `json:"details,omitempty"`
	Retryable bool   `json:"retryable"`
}

// retryableCodes marks synchronous errors the caller may simply resubmit:
// transient store trouble and in-flight duplicate races.
var retryableCodes = map[string]bool{
	"internal":             true,
	"idempotency_conflict": true,
}

func (a *App) error(w http.ResponseWriter, status int, code, message string) {
	a.json(w, status, errorBody{Code: code, Message: message, Retryable: retryableCodes[code]})
}

func (a *App) currentUserID(r *http.Request) string {
	return middleware.UserIDFromContext(r.Context())
}
