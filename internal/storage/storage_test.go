package storage

import (
	"context"
	"errors"
	"testing"
	"time"

	"drafted/internal/domain"
)

func TestFileStoreRoundTrip(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("new store: %v", err)
	}

	ctx := context.Background()
	key, err := store.Write(ctx, "jobs/abc/spec.json", []byte(`{"version":"1.0"}`))
	if err != nil {
		t.Fatalf("write: %v", err)
	}
	if key != "jobs/abc/spec.json" {
		t.Fatalf("canonical key = %q", key)
	}
	if !store.Exists(key) {
		t.Fatal("written key does not exist")
	}

	data, err := store.Read(ctx, key)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(data) != `{"version":"1.0"}` {
		t.Fatalf("read back %q", data)
	}
}

func TestFileStoreMissingKey(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	if _, err := store.Read(context.Background(), "jobs/nope/spec.json"); !errors.Is(err, domain.ErrArtifactMissing) {
		t.Fatalf("missing key error = %v", err)
	}
	if store.Exists("jobs/nope/spec.json") {
		t.Fatal("missing key reported as existing")
	}
}

func TestFileStoreRejectsTraversal(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	for _, key := range []string{"", "..", "../etc/passwd", "a/../../b"} {
		if _, err := store.Write(context.Background(), key, []byte("x")); err == nil {
			t.Fatalf("key %q accepted", key)
		}
	}
}

func TestHeartbeatPublishRead(t *testing.T) {
	hb, err := NewHeartbeatFile(t.TempDir() + "/worker/heartbeat.json")
	if err != nil {
		t.Fatalf("new heartbeat: %v", err)
	}

	if _, err := hb.Read(); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("read before publish = %v", err)
	}

	retries := 1
	want := domain.Heartbeat{
		Timestamp:  time.Now().UTC().Truncate(time.Second),
		State:      domain.WorkerRunning,
		JobID:      "job-1",
		RetryCount: &retries,
	}
	if err := hb.Publish(want); err != nil {
		t.Fatalf("publish: %v", err)
	}

	got, err := hb.Read()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if got.State != want.State || got.JobID != want.JobID {
		t.Fatalf("read back %+v", got)
	}
	if got.RetryCount == nil || *got.RetryCount != retries {
		t.Fatalf("retry count = %v", got.RetryCount)
	}
	if !got.Timestamp.Equal(want.Timestamp) {
		t.Fatalf("timestamp %v != %v", got.Timestamp, want.Timestamp)
	}
}

func TestHeartbeatOverwriteIsAtomicReplacement(t *testing.T) {
	hb, err := NewHeartbeatFile(t.TempDir() + "/heartbeat.json")
	if err != nil {
		t.Fatalf("new heartbeat: %v", err)
	}
	if err := hb.Publish(domain.Heartbeat{State: domain.WorkerIdle}); err != nil {
		t.Fatalf("publish idle: %v", err)
	}
	if err := hb.Publish(domain.Heartbeat{State: domain.WorkerRunning, JobID: "job-2"}); err != nil {
		t.Fatalf("publish running: %v", err)
	}
	got, err := hb.Read()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if got.State != domain.WorkerRunning || got.JobID != "job-2" {
		t.Fatalf("latest heartbeat = %+v", got)
	}
}
