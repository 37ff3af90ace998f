package checker

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/nao1215/deadlinks/internal/model"
)

// Checker performs link checks over an HTTP client.
type Checker struct {
	client *http.Client

	// userAgent is sent with every request when non-empty.
	userAgent string

	// maxBodySize is how much of the response body is drained so that the
	// connection can be reused. Zero closes the body unread.
	maxBodySize int64

	// limiter spaces requests out. Nil means no limit.
	limiter *rate.Limiter

	logger *slog.Logger
}

// Option configures a Checker.
type Option func(*Checker)

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(c *Checker) {
		c.userAgent = ua
	}
}

// WithMaxBodySize sets how many body bytes are read before closing.
func WithMaxBodySize(size int64) Option {
	return func(c *Checker) {
		c.maxBodySize = size
	}
}

// WithRateLimit limits checks to rps requests per second. Zero or a
// negative rate disables the limit.
func WithRateLimit(rps float64) Option {
	return func(c *Checker) {
		if rps <= 0 {
			c.limiter = nil
			return
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), 1)
	}
}

// WithLogger sets the logger for per-request debug output.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Checker) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// New creates a Checker. A nil client uses a client with Go's defaults,
// which follows up to ten redirects.
func New(client *http.Client, opts ...Option) *Checker {
	if client == nil {
		client = &http.Client{}
	}
	c := &Checker{
		client: client,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Check requests url once with the given timeout and reports the outcome.
// A non-positive timeout leaves the request bounded only by ctx.
func (c *Checker) Check(ctx context.Context, url string, timeout time.Duration) model.Outcome {
	if c.limiter != nil {
		// The wait is not part of the request timeout.
		if err := c.limiter.Wait(ctx); err != nil {
			return model.Unreachable(err)
		}
	}

	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return model.Unreachable(err)
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		if isTimeout(err) {
			c.logger.Debug("link check timed out", "url", url, "timeout", timeout)
			return model.TimedOut(err)
		}
		c.logger.Debug("link check failed", "url", url, "error", err)
		return model.Unreachable(err)
	}
	defer resp.Body.Close()

	if c.maxBodySize > 0 {
		// Body errors do not change the outcome; the status is already known.
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, c.maxBodySize))
	}

	c.logger.Debug("link checked", "url", url, "status", resp.StatusCode, "elapsed", time.Since(start))
	return model.Responded(resp.StatusCode)
}

// isTimeout reports whether err is a deadline or network timeout.
func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
