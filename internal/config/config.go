package config

import (
	"path/filepath"
	"time"

	"github.com/adrg/xdg"
)

// Option keys as they appear in the options mapping.
const (
	KeyArchive           = "archive"
	KeyClasses           = "classes"
	KeyLabels            = "labels"
	KeyTimeoutDurationMS = "timeout_duration_ms"
	KeyTimeoutIsError    = "timeout_is_error"
	KeyUserAgent         = "user_agent"
	KeyMaxBodySize       = "max_body_size"
	KeyConcurrency       = "concurrency"
	KeyRequestsPerSecond = "requests_per_second"
	KeyProxy             = "proxy"
	KeyMaxRedirects      = "max_redirects"
)

// Default option values.
const (
	// DefaultArchive rewrites dead links to the web archive.
	DefaultArchive = true

	// DefaultLabels does not insert status labels.
	DefaultLabels = false

	// DefaultTimeoutDurationMS is the per-request timeout in milliseconds.
	DefaultTimeoutDurationMS = 1000

	// DefaultTimeoutIsError skips unreachable links instead of flagging them.
	DefaultTimeoutIsError = false

	// DefaultUserAgent identifies deadlinks in HTTP requests so that site
	// operators can recognize the traffic in their logs.
	DefaultUserAgent = "deadlinks/1.0 (+https://github.com/nao1215/deadlinks)"

	// DefaultConcurrency checks one URL at a time.
	DefaultConcurrency = 1

	// DefaultMaxRedirects stops a redirect chain after 10 requests.
	DefaultMaxRedirects = 10

	// AppName is the application name used for XDG directory paths.
	AppName = "deadlinks"
)

// Options holds the resolved link validation options.
// It is built once per run by MergeOptions and passed down the call chain.
type Options struct {
	// Archive rewrites the target of a dead link to its web archive lookup URL.
	Archive bool

	// Classes are CSS class names appended, in order, to flagged elements.
	Classes []string

	// Labels inserts a status label right after each flagged element.
	Labels bool

	// TimeoutDurationMS is the request timeout in milliseconds.
	// Fractional values are allowed.
	TimeoutDurationMS float64

	// TimeoutIsError reports unreachable links as dead instead of skipping them.
	TimeoutIsError bool

	// UserAgent is the User-Agent header sent with each check.
	UserAgent string

	// MaxBodySize is how many bytes of each response body are read before
	// the connection is closed. Zero reads nothing.
	MaxBodySize int64

	// Concurrency bounds how many distinct URLs of one document are checked
	// at once. One keeps checks strictly sequential.
	Concurrency int

	// RequestsPerSecond limits outgoing checks. Zero disables the limit.
	RequestsPerSecond float64

	// Proxy is an optional SOCKS5 proxy address in host:port form.
	Proxy string

	// MaxRedirects is how many requests a redirect chain may take. The
	// response to the last one is classified even when it redirects.
	MaxRedirects int
}

// DefaultOptions returns a fresh copy of the default options.
// Callers may modify the result freely.
func DefaultOptions() Options {
	return Options{
		Archive:           DefaultArchive,
		Classes:           []string{},
		Labels:            DefaultLabels,
		TimeoutDurationMS: DefaultTimeoutDurationMS,
		TimeoutIsError:    DefaultTimeoutIsError,
		UserAgent:         DefaultUserAgent,
		Concurrency:       DefaultConcurrency,
		MaxRedirects:      DefaultMaxRedirects,
	}
}

// Timeout returns the request timeout as a time.Duration.
func (o Options) Timeout() time.Duration {
	return time.Duration(o.TimeoutDurationMS * float64(time.Millisecond))
}

// Validate checks the options for values that cannot work.
func (o Options) Validate() error {
	if o.TimeoutDurationMS <= 0 {
		return ErrInvalidTimeout
	}
	if o.Concurrency < 1 {
		return ErrInvalidConcurrency
	}
	if o.RequestsPerSecond < 0 {
		return ErrInvalidRate
	}
	if o.MaxBodySize < 0 {
		return ErrInvalidMaxBodySize
	}
	if o.MaxRedirects < 0 {
		return ErrInvalidMaxRedirects
	}
	if o.Proxy != "" && !isValidProxyAddress(o.Proxy) {
		return ErrInvalidProxyAddress
	}
	return nil
}

// XDGDataDir returns the XDG data directory for deadlinks.
// On Linux: ~/.local/share/deadlinks
func XDGDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// XDGConfigDir returns the XDG config directory for deadlinks.
// On Linux: ~/.config/deadlinks
func XDGConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}
