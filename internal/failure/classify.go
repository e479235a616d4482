// Package failure classifies job-processing errors into a small, stable
// taxonomy that drives the worker's retry decision. The classification is a
// published contract: Policy returns the machine-readable mapping that
// operational tooling cross-checks against the runtime behavior.
package failure

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// Code is a failure class recorded on terminally failed jobs.
type Code string

const (
	CodeProviderTransient Code = "provider_transient"
	CodeProviderPermanent Code = "provider_permanent"
	CodeValidation        Code = "validation"
	CodeSystem            Code = "system"
)

// transientStatuses are the upstream HTTP statuses treated as retryable.
var transientStatuses = map[int]bool{
	408: true,
	409: true,
	425: true,
	429: true,
	500: true,
	502: true,
	503: true,
	504: true,
}

// HTTPError is an upstream HTTP failure from a provider call.
type HTTPError struct {
	Status  int
	Message string
}

func (e *HTTPError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("provider status %d", e.Status)
	}
	return fmt.Sprintf("provider status %d: %s", e.Status, e.Message)
}

// ValidationError marks generated content that failed structural checks.
// Validation failures are never retried: the same input would fail again.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string { return e.Reason }

// Validationf builds a ValidationError from a format string.
func Validationf(format string, args ...any) *ValidationError {
	return &ValidationError{Reason: fmt.Sprintf(format, args...)}
}

// Classify maps an error raised during job processing to a failure code and
// a retryable flag. The mapping is independent of any concrete provider:
//   - validation failures -> validation, no retry
//   - transient upstream HTTP statuses -> provider_transient, retry
//   - other upstream HTTP statuses -> provider_permanent, no retry
//   - network timeouts and connection failures -> provider_transient, retry
//   - everything else (I/O, integrity, unexpected) -> system, no retry
func Classify(err error) (Code, bool) {
	var verr *ValidationError
	if errors.As(err, &verr) {
		return CodeValidation, false
	}

	var herr *HTTPError
	if errors.As(err, &herr) {
		if transientStatuses[herr.Status] {
			return CodeProviderTransient, true
		}
		return CodeProviderPermanent, false
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return CodeProviderTransient, true
	}
	var nerr net.Error
	if errors.As(err, &nerr) && nerr.Timeout() {
		return CodeProviderTransient, true
	}
	var operr *net.OpError
	if errors.As(err, &operr) {
		return CodeProviderTransient, true
	}

	return CodeSystem, false
}
