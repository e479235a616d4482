package artifacts

import (
	"context"
	"encoding/json"
	"fmt"
	"path"
	"time"

	"drafted/internal/domain"
	"drafted/internal/storage"
	pkgzip "drafted/pkg/zip"
)

// manifestEntry describes one file of an export archive.
type manifestEntry struct {
	ID             string `json:"id"`
	Type           string `json:"type"`
	Filename       string `json:"filename"`
	MIME           string `json:"mime"`
	ChecksumSHA256 string `json:"checksum_sha256"`
	SizeBytes      int64  `json:"size_bytes"`
}

type manifest struct {
	JobID         string          `json:"job_id"`
	CreatedAt     time.Time       `json:"created_at"`
	ArtifactCount int             `json:"artifact_count"`
	Artifacts     []manifestEntry `json:"artifacts"`
}

// Exporter bundles a job's artifacts plus a manifest into one zip.
type Exporter struct {
	files *storage.FileStore
	repo  domain.ArtifactRepository
}

func NewExporter(files *storage.FileStore, repo domain.ArtifactRepository) *Exporter {
	return &Exporter{files: files, repo: repo}
}

// Export returns the archive bytes. Jobs without artifacts yield
// domain.ErrNoArtifacts; a recorded artifact whose file is gone yields
// domain.ErrArtifactMissing.
func (e *Exporter) Export(ctx context.Context, jobID string) ([]byte, error) {
	listed, err := e.repo.ListArtifacts(ctx, jobID)
	if err != nil {
		return nil, fmt.Errorf("list artifacts: %w", err)
	}
	if len(listed) == 0 {
		return nil, domain.ErrNoArtifacts
	}

	entries := make([]pkgzip.Entry, 0, len(listed)+1)
	items := make([]manifestEntry, 0, len(listed))
	for _, a := range listed {
		data, err := e.files.Read(ctx, a.Path)
		if err != nil {
			return nil, fmt.Errorf("read artifact %s: %w", a.ID, err)
		}
		filename := path.Base(a.Path)
		entries = append(entries, pkgzip.Entry{Filename: filename, MIME: a.MIMEType, Data: data})
		items = append(items, manifestEntry{
			ID:             a.ID,
			Type:           string(a.Type),
			Filename:       filename,
			MIME:           a.MIMEType,
			ChecksumSHA256: a.Checksum,
			SizeBytes:      a.SizeBytes,
		})
	}

	manifestJSON, err := json.MarshalIndent(manifest{
		JobID:         jobID,
		CreatedAt:     time.Now().UTC(),
		ArtifactCount: len(items),
		Artifacts:     items,
	}, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal manifest: %w", err)
	}
	entries = append(entries, pkgzip.Entry{Filename: "manifest.json", MIME: "application/json", Data: manifestJSON})

	return pkgzip.Archive(entries)
}
