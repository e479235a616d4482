package domain

import (
	"fmt"
	"strings"
	"testing"
	"unicode/utf8"
)

func TestAppendCallEvictsOldestBeyondCap(t *testing.T) {
	job := &Job{}
	for i := 1; i <= maxProviderCalls+5; i++ {
		job.AppendCall(ProviderCall{Provider: "stub", RequestID: fmt.Sprintf("call-%d", i)})
	}

	if got := len(job.Meta.Calls); got != maxProviderCalls {
		t.Fatalf("ring length = %d, want %d", got, maxProviderCalls)
	}
	if first := job.Meta.Calls[0].RequestID; first != "call-6" {
		t.Fatalf("oldest surviving entry = %s, want call-6", first)
	}
	if last := job.Meta.Calls[len(job.Meta.Calls)-1].RequestID; last != fmt.Sprintf("call-%d", maxProviderCalls+5) {
		t.Fatalf("newest entry = %s", last)
	}
}

func TestAppendCallUnderCapKeepsAll(t *testing.T) {
	job := &Job{}
	for i := 1; i <= 3; i++ {
		job.AppendCall(ProviderCall{Provider: "stub", RequestID: fmt.Sprintf("call-%d", i)})
	}
	if len(job.Meta.Calls) != 3 || job.Meta.Calls[0].RequestID != "call-1" {
		t.Fatalf("calls = %+v", job.Meta.Calls)
	}
}

func TestSetErrorTruncatesOnRuneBoundary(t *testing.T) {
	// Three-byte runes guarantee the byte cap lands mid-rune.
	msg := strings.Repeat("界", maxErrorLen)
	job := &Job{}
	job.SetError(msg)

	if len(job.Error) > maxErrorLen {
		t.Fatalf("error length = %d, cap %d", len(job.Error), maxErrorLen)
	}
	if !utf8.ValidString(job.Error) {
		t.Fatal("truncated error is not valid UTF-8")
	}
	if !strings.HasPrefix(msg, job.Error) {
		t.Fatal("truncation altered the message prefix")
	}

	job.SetError("short")
	if job.Error != "short" {
		t.Fatalf("short message mangled: %q", job.Error)
	}
}
