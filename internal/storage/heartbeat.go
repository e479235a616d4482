package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"drafted/internal/domain"
)

// HeartbeatFile publishes worker liveness as a small JSON document. Writes
// go through a temp file and rename so readers never observe a partial
// document.
type HeartbeatFile struct {
	path string
}

// NewHeartbeatFile points at the heartbeat location, creating the parent
// directory if needed.
func NewHeartbeatFile(path string) (*HeartbeatFile, error) {
	if path == "" {
		return nil, errors.New("storage: heartbeat path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("storage: ensure heartbeat directory: %w", err)
	}
	return &HeartbeatFile{path: path}, nil
}

// Path returns the heartbeat file location.
func (h *HeartbeatFile) Path() string { return h.path }

// Publish atomically replaces the heartbeat document.
func (h *HeartbeatFile) Publish(hb domain.Heartbeat) error {
	if hb.Timestamp.IsZero() {
		hb.Timestamp = time.Now().UTC()
	}
	data, err := json.Marshal(hb)
	if err != nil {
		return fmt.Errorf("storage: marshal heartbeat: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(h.path), ".heartbeat-*")
	if err != nil {
		return fmt.Errorf("storage: create heartbeat temp: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("storage: write heartbeat: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("storage: close heartbeat temp: %w", err)
	}
	if err := os.Rename(tmpName, h.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("storage: replace heartbeat: %w", err)
	}
	return nil
}

// Read loads the current heartbeat. A missing file maps to
// domain.ErrNotFound.
func (h *HeartbeatFile) Read() (*domain.Heartbeat, error) {
	data, err := os.ReadFile(h.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("storage: read heartbeat: %w", err)
	}
	var hb domain.Heartbeat
	if err := json.Unmarshal(data, &hb); err != nil {
		return nil, fmt.Errorf("storage: decode heartbeat: %w", err)
	}
	return &hb, nil
}
