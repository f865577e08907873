package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrServiceUnavailable means the adapter has no credential or failed to
	// initialize. Never retried; a restart with fixed configuration is the
	// only way out.
	ErrServiceUnavailable = errors.New("service unavailable")

	ErrUnknownServiceType = errors.New("unknown AI service type")
	ErrNoServiceAvailable = errors.New("no AI service available")
)

// UpstreamError wraps a vendor HTTP or API failure with the vendor's own
// message embedded. This layer never retries it.
type UpstreamError struct {
	Service string
	Err     error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("%s upstream error: %v", e.Service, e.Err)
}

func (e *UpstreamError) Unwrap() error { return e.Err }

// ConfigurationError reports a local side-document read failure on the
// domain-augmented prompt path.
type ConfigurationError struct {
	Path string
	Err  error
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration error: read %s: %v", e.Path, e.Err)
}

func (e *ConfigurationError) Unwrap() error { return e.Err }
