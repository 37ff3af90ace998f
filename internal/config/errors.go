package config

import "errors"

// Configuration validation errors.
// These errors are returned by Settings.Validate() so that callers can use
// errors.Is() while still printing a human-readable message.
var (
	// ErrInvalidTimeout is returned when timeout_duration_ms is not positive.
	ErrInvalidTimeout = errors.New("invalid timeout_duration_ms: must be positive")

	// ErrInvalidConcurrency is returned when concurrency is less than one.
	ErrInvalidConcurrency = errors.New("invalid concurrency: must be at least 1")

	// ErrInvalidRate is returned when requests_per_second is negative.
	// Use 0 for no rate limit.
	ErrInvalidRate = errors.New("invalid requests_per_second: must be non-negative")

	// ErrInvalidMaxBodySize is returned when max_body_size is negative.
	ErrInvalidMaxBodySize = errors.New("invalid max_body_size: must be non-negative")

	// ErrInvalidMaxRedirects is returned when max_redirects is negative.
	ErrInvalidMaxRedirects = errors.New("invalid max_redirects: must be non-negative")

	// ErrInvalidSiteURL is returned when the site URL is set but is not an
	// absolute URL.
	ErrInvalidSiteURL = errors.New("invalid site_url: must be an absolute URL")

	// ErrInvalidProxyAddress is returned when the proxy is not in host:port form.
	ErrInvalidProxyAddress = errors.New("invalid proxy address format: expected host:port")
)

// OptionTypeError reports an option whose value has the wrong type.
// The option keeps its default value.
type OptionTypeError struct {
	Key   string
	Value any
	Want  string
}

// Error implements the error interface.
func (e *OptionTypeError) Error() string {
	return "option " + e.Key + ": expected " + e.Want + ", keeping default"
}
