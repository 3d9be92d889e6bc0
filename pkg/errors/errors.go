// Package errors defines the sentinel errors and failure classification used
// throughout the ingestion pipeline. Every unit-level failure maps to exactly
// one Class, which drives retry policy, run aggregation, and reporting.
package errors

import (
	"errors"
	"fmt"
)

var (
	ErrNetwork             = errors.New("network failure")
	ErrTimeout             = errors.New("request timed out")
	ErrHTTPTransient       = errors.New("transient http failure")
	ErrHTTPPermanent       = errors.New("permanent http failure")
	ErrParse               = errors.New("payload parse failure")
	ErrConstraintViolation = errors.New("store constraint violation")
	ErrSchedulerFatal      = errors.New("no computable starting unit")
	ErrCircuitOpen         = errors.New("circuit breaker is open")
)

// Class is the stable label attached to a classified failure. Values appear
// in unit outcome rows, log lines, and metric label sets, so they must not
// change between releases.
type Class string

const (
	ClassNetwork    Class = "network"
	ClassTimeout    Class = "timeout"
	ClassTransient  Class = "http_transient"
	ClassPermanent  Class = "http_permanent"
	ClassParse      Class = "parse"
	ClassConstraint Class = "constraint"
	ClassScheduler  Class = "scheduler_fatal"
	ClassUnknown    Class = "unknown"
)

// Classify maps an error to its failure Class. Wrapped errors are unwrapped
// with errors.Is, so callers may decorate sentinels freely.
func Classify(err error) Class {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrSchedulerFatal):
		return ClassScheduler
	case errors.Is(err, ErrTimeout):
		return ClassTimeout
	case errors.Is(err, ErrNetwork):
		return ClassNetwork
	case errors.Is(err, ErrHTTPTransient), errors.Is(err, ErrCircuitOpen):
		return ClassTransient
	case errors.Is(err, ErrHTTPPermanent):
		return ClassPermanent
	case errors.Is(err, ErrParse):
		return ClassParse
	case errors.Is(err, ErrConstraintViolation):
		return ClassConstraint
	default:
		return ClassUnknown
	}
}

// IsTransient reports whether err is worth retrying: connection-level
// failures, timeouts, 429s, and 5xx responses. A rejected call from an open
// breaker also counts as transient so the unit is re-attempted next run.
func IsTransient(err error) bool {
	return errors.Is(err, ErrNetwork) ||
		errors.Is(err, ErrTimeout) ||
		errors.Is(err, ErrHTTPTransient) ||
		errors.Is(err, ErrCircuitOpen)
}

// HTTPStatus wraps a non-2xx response status into the taxonomy: 429 and 5xx
// become ErrHTTPTransient, all other 4xx become ErrHTTPPermanent.
func HTTPStatus(status int) error {
	switch {
	case status == 429 || status >= 500:
		return fmt.Errorf("%w: status %d", ErrHTTPTransient, status)
	default:
		return fmt.Errorf("%w: status %d", ErrHTTPPermanent, status)
	}
}
