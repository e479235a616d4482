package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"drafted/internal/domain"
)

type sessionDTO struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

func toSessionDTO(s *domain.Session) sessionDTO {
	return sessionDTO{ID: s.ID, Title: s.Title, Status: s.Status, CreatedAt: s.CreatedAt}
}

// ownedSession resolves a session and enforces ownership. A session that
// exists but belongs to someone else reads as not found.
func (a *App) ownedSession(w http.ResponseWriter, r *http.Request, sessionID string) *domain.Session {
	sess, err := a.Store.GetSession(r.Context(), sessionID)
	if err != nil || sess.UserID != a.currentUserID(r) {
		a.error(w, http.StatusNotFound, "not_found", "session not found")
		return nil
	}
	return sess
}

func (a *App) CreateSession(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Title string `json:"title"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}

	sess := &domain.Session{
		ID:        uuid.NewString(),
		UserID:    a.currentUserID(r),
		Title:     req.Title,
		Status:    "active",
		CreatedAt: time.Now().UTC(),
	}
	if err := a.Store.CreateSession(r.Context(), sess); err != nil {
		a.Logger.Error().Err(err).Msg("create session failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to create session")
		return
	}
	a.json(w, http.StatusCreated, toSessionDTO(sess))
}

func (a *App) ListSessions(w http.ResponseWriter, r *http.Request) {
	sessions, err := a.Store.ListSessionsForUser(r.Context(), a.currentUserID(r))
	if err != nil {
		a.Logger.Error().Err(err).Msg("list sessions failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to list sessions")
		return
	}
	out := make([]sessionDTO, 0, len(sessions))
	for i := range sessions {
		out = append(out, toSessionDTO(&sessions[i]))
	}
	a.json(w, http.StatusOK, out)
}

func (a *App) GetSession(w http.ResponseWriter, r *http.Request) {
	sess := a.ownedSession(w, r, chi.URLParam(r, "sessionID"))
	if sess == nil {
		return
	}
	a.json(w, http.StatusOK, toSessionDTO(sess))
}
