package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"path"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"drafted/internal/domain"
)

type artifactDTO struct {
	ID        string         `json:"id"`
	Type      string         `json:"type"`
	Filename  string         `json:"filename"`
	MIMEType  string         `json:"mime_type"`
	Checksum  string         `json:"checksum_sha256"`
	SizeBytes int64          `json:"size_bytes"`
	Meta      map[string]any `json:"meta,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

func (a *App) ListJobArtifacts(w http.ResponseWriter, r *http.Request) {
	job := a.ownedJob(w, r, chi.URLParam(r, "jobID"))
	if job == nil {
		return
	}
	listed, err := a.Store.ListArtifacts(r.Context(), job.ID)
	if err != nil {
		a.Logger.Error().Err(err).Msg("list artifacts failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to list artifacts")
		return
	}
	out := make([]artifactDTO, 0, len(listed))
	for _, art := range listed {
		out = append(out, artifactDTO{
			ID:        art.ID,
			Type:      string(art.Type),
			Filename:  path.Base(art.Path),
			MIMEType:  art.MIMEType,
			Checksum:  art.Checksum,
			SizeBytes: art.SizeBytes,
			Meta:      art.Meta,
			CreatedAt: art.CreatedAt,
		})
	}
	a.json(w, http.StatusOK, out)
}

func (a *App) DownloadArtifact(w http.ResponseWriter, r *http.Request) {
	job := a.ownedJob(w, r, chi.URLParam(r, "jobID"))
	if job == nil {
		return
	}
	art, err := a.Store.GetArtifact(r.Context(), job.ID, chi.URLParam(r, "artifactID"))
	if err != nil {
		a.error(w, http.StatusNotFound, "not_found", "artifact not found")
		return
	}
	data, err := a.Files.Read(r.Context(), art.Path)
	if err != nil {
		if errors.Is(err, domain.ErrArtifactMissing) {
			a.error(w, http.StatusConflict, "artifact_missing", "artifact file is missing from storage")
			return
		}
		a.Logger.Error().Err(err).Str("path", art.Path).Msg("read artifact failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to read artifact")
		return
	}

	w.Header().Set("Content-Type", art.MIMEType)
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", path.Base(art.Path)))
	_, _ = w.Write(data)
}

// ExportJob streams a zip of every artifact plus a manifest.
func (a *App) ExportJob(w http.ResponseWriter, r *http.Request) {
	job := a.ownedJob(w, r, chi.URLParam(r, "jobID"))
	if job == nil {
		return
	}

	listed, err := a.Store.ListArtifacts(r.Context(), job.ID)
	if err != nil {
		a.Logger.Error().Err(err).Msg("list artifacts failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to export job")
		return
	}

	archive, err := a.Exporter.Export(r.Context(), job.ID)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrNoArtifacts):
			a.error(w, http.StatusConflict, "no_artifacts", "job has no artifacts to export")
		case errors.Is(err, domain.ErrArtifactMissing):
			a.error(w, http.StatusConflict, "artifact_missing", "an artifact file is missing from storage")
		default:
			a.Logger.Error().Err(err).Msg("export failed")
			a.error(w, http.StatusInternalServerError, "internal", "failed to export job")
		}
		return
	}

	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", job.ID+".zip"))
	w.Header().Set("X-Export-Artifact-Count", strconv.Itoa(len(listed)))
	_, _ = w.Write(archive)
}
