package extractor

import (
	"context"
	"errors"
	"fmt"

	"github.com/jmylchreest/coursesched/pkg/llm"
)

// Reason classifies an extraction failure.
type Reason string

const (
	// ReasonTransport covers network errors, timeouts and non-2xx responses.
	ReasonTransport Reason = "transport"
	// ReasonMalformed means the response was not decodable JSON.
	ReasonMalformed Reason = "malformed"
	// ReasonSchema means the JSON did not satisfy the schedule schema.
	ReasonSchema Reason = "schema"
	// ReasonUnavailable means the backend cannot be used at all, for
	// example missing or rejected credentials.
	ReasonUnavailable Reason = "unavailable"
)

var (
	// ErrNoExtractorAvailable is returned when no extractors in the fallback chain are available.
	ErrNoExtractorAvailable = errors.New("no extractor available")

	// ErrRetriesExhausted wraps the last error once every attempt has failed.
	ErrRetriesExhausted = errors.New("retries exhausted")
)

// ExtractionError is the failure variant of an extraction.
type ExtractionError struct {
	Provider string
	Reason   Reason
	Err      error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("%s extraction failed (%s): %v", e.Provider, e.Reason, e.Err)
}

func (e *ExtractionError) Unwrap() error {
	return e.Err
}

// ReasonOf returns the reason of the first ExtractionError in err's chain,
// or ReasonTransport when there is none.
func ReasonOf(err error) Reason {
	var ee *ExtractionError
	if errors.As(err, &ee) {
		return ee.Reason
	}
	return ReasonTransport
}

// IsRetryable reports whether repeating the extraction may succeed.
// Cancellation and unavailable backends are final; transport, malformed and
// schema failures are retried.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	return ReasonOf(err) != ReasonUnavailable
}

func classifyProviderError(provider string, err error) *ExtractionError {
	reason := ReasonTransport
	if llm.IsUnauthorized(err) || errors.Is(err, llm.ErrMissingAPIKey) {
		reason = ReasonUnavailable
	}
	return &ExtractionError{Provider: provider, Reason: reason, Err: err}
}
