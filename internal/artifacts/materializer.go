// Package artifacts writes generated outputs to durable storage and records
// their metadata rows, and bundles a job's outputs into a download archive.
package artifacts

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/google/uuid"

	"drafted/internal/domain"
	"drafted/internal/storage"
)

// Materializer persists artifact bytes and their metadata together. The
// bytes land on disk first; the row is only inserted once the write
// succeeded, so a recorded artifact always existed at write time.
type Materializer struct {
	files *storage.FileStore
	repo  domain.ArtifactRepository
}

func NewMaterializer(files *storage.FileStore, repo domain.ArtifactRepository) *Materializer {
	return &Materializer{files: files, repo: repo}
}

// Materialize writes data under jobs/<jobID>/<filename> and records the
// artifact with its sha256 checksum and size.
func (m *Materializer) Materialize(ctx context.Context, jobID string, artifactType domain.ArtifactType, filename, mimeType string, data []byte, meta map[string]any) (*domain.Artifact, error) {
	key := fmt.Sprintf("jobs/%s/%s", jobID, filename)
	storedKey, err := m.files.Write(ctx, key, data)
	if err != nil {
		return nil, fmt.Errorf("materialize %s: %w", artifactType, err)
	}

	sum := sha256.Sum256(data)
	artifact := &domain.Artifact{
		ID:        uuid.NewString(),
		JobID:     jobID,
		Type:      artifactType,
		Path:      storedKey,
		MIMEType:  mimeType,
		Checksum:  hex.EncodeToString(sum[:]),
		SizeBytes: int64(len(data)),
		Meta:      meta,
		CreatedAt: time.Now().UTC(),
	}
	if err := m.repo.AddArtifact(ctx, artifact); err != nil {
		return nil, fmt.Errorf("record %s artifact: %w", artifactType, err)
	}
	return artifact, nil
}

// Verify confirms every listed artifact of the job is still present on
// disk. Used as the final integrity gate before a job is marked succeeded.
func (m *Materializer) Verify(ctx context.Context, jobID string) error {
	listed, err := m.repo.ListArtifacts(ctx, jobID)
	if err != nil {
		return fmt.Errorf("list artifacts: %w", err)
	}
	for _, a := range listed {
		if !m.files.Exists(a.Path) {
			return fmt.Errorf("artifact %s (%s) missing from storage at %s", a.ID, a.Type, a.Path)
		}
	}
	return nil
}
