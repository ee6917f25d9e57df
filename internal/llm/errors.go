package llm

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
)

// ErrFatalAPI marks provider failures that will not go away on retry: bad
// credentials, exhausted quota or billing problems.
var ErrFatalAPI = errors.New("fatal API error")

// ErrEmptyResponse indicates the provider answered without any text content.
var ErrEmptyResponse = errors.New("empty response")

// ErrorKind classifies a ServiceError.
type ErrorKind string

// Service error kinds.
const (
	KindTransport   ErrorKind = "transport"
	KindTimeout     ErrorKind = "timeout"
	KindAPI         ErrorKind = "api"
	KindBadResponse ErrorKind = "bad_response"
)

// ServiceError is returned for any failed call to the generation capability.
type ServiceError struct {
	Op   string
	Kind ErrorKind
	Err  error
}

func (e *ServiceError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *ServiceError) Unwrap() error {
	return e.Err
}

// Timeout reports whether the call ran out of time.
func (e *ServiceError) Timeout() bool {
	return e.Kind == KindTimeout
}

// Retryable reports whether another attempt could succeed.
func (e *ServiceError) Retryable() bool {
	return !errors.Is(e.Err, ErrFatalAPI)
}

// fatalPatterns match provider error messages for auth, billing and quota failures.
// Rate limits are transient and stay out of this list.
var fatalPatterns = []string{
	"credit balance",
	"quota",
	"billing",
	"invalid api key",
	"invalid x-api-key",
	"authentication",
	"unauthorized",
	"permission denied",
	"401",
	"403",
}

// isFatalAPIError reports whether err looks like a non-recoverable API failure.
func isFatalAPIError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, p := range fatalPatterns {
		if strings.Contains(msg, p) {
			return true
		}
	}
	return false
}

// wrapFatalError tags fatal errors with ErrFatalAPI and passes others through.
func wrapFatalError(err error) error {
	if err == nil || !isFatalAPIError(err) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrFatalAPI, err)
}

var statusPatterns = []string{"status code", "http 4", "http 5", "rate limit", "429", "500", "502", "503", "504"}

// Classify wraps a provider error into a ServiceError of the matching kind.
func Classify(op string, err error) error {
	if err == nil {
		return nil
	}

	var svcErr *ServiceError
	if errors.As(err, &svcErr) {
		return err
	}

	kind := KindTransport
	var netErr net.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		kind = KindTimeout
	case errors.As(err, &netErr) && netErr.Timeout():
		kind = KindTimeout
	case errors.Is(err, ErrEmptyResponse):
		kind = KindBadResponse
	case isFatalAPIError(err) || matchesAny(err, statusPatterns):
		kind = KindAPI
	}

	return &ServiceError{Op: op, Kind: kind, Err: wrapFatalError(err)}
}

func matchesAny(err error, patterns []string) bool {
	msg := strings.ToLower(err.Error())
	for _, p := range patterns {
		if strings.Contains(msg, p) {
			return true
		}
	}
	return false
}
