// Package httpkit builds the outbound HTTP clients ferryd uses to
// reach the component bridge.
//
// The bridge is not a normal web server. It runs on a computer inside
// a simulated world that pauses, saves, and occasionally reboots; in
// those windows connections are refused outright. The clients built
// here carry tight dial ceilings and an optional bounded retry so one
// world save does not surface as a failed transfer, while anything
// longer still does.
package httpkit

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"syscall"
	"time"

	"github.com/TAMATLT/ferryd/internal/buildinfo"
)

// settings collects everything the option functions can adjust.
type settings struct {
	timeout    time.Duration
	userAgent  string
	insecure   bool
	retries    int
	retryDelay time.Duration
	logger     *slog.Logger
}

// ClientOption adjusts one setting on the client under construction.
type ClientOption func(*settings)

// WithTimeout caps the total time for a request, response body
// included. Zero removes the cap.
func WithTimeout(d time.Duration) ClientOption {
	return func(s *settings) { s.timeout = d }
}

// WithUserAgent replaces the default ferryd User-Agent value.
func WithUserAgent(ua string) ClientOption {
	return func(s *settings) { s.userAgent = ua }
}

// WithTLSInsecureSkipVerify accepts any certificate the bridge
// presents. Bridges reachable over https carry self-signed certs; this
// is the explicit opt-in for them.
func WithTLSInsecureSkipVerify() ClientOption {
	return func(s *settings) { s.insecure = true }
}

// WithRetry re-attempts a request up to count times, waiting delay
// between attempts, when the connection itself could not be made.
// Those failures happen before any bytes reach the bridge, so a retry
// cannot run a transfer twice. Requests whose body cannot be rewound
// through GetBody are never retried.
func WithRetry(count int, delay time.Duration) ClientOption {
	return func(s *settings) {
		s.retries = count
		s.retryDelay = delay
	}
}

// WithLogger receives per-attempt retry diagnostics.
func WithLogger(l *slog.Logger) ClientOption {
	return func(s *settings) { s.logger = l }
}

// NewClient assembles an *http.Client from the options. With no
// options it produces a 30-second-timeout client identifying itself as
// this ferryd build.
func NewClient(opts ...ClientOption) *http.Client {
	s := settings{
		timeout:   30 * time.Second,
		userAgent: buildinfo.UserAgent(),
	}
	for _, opt := range opts {
		opt(&s)
	}

	return &http.Client{
		Timeout: s.timeout,
		Transport: &transport{
			base:       newBase(s.insecure),
			userAgent:  s.userAgent,
			retries:    s.retries,
			retryDelay: s.retryDelay,
			logger:     s.logger,
		},
	}
}

// newBase builds the underlying connection transport. Bridge calls
// answer within a game tick or two; the ceilings are sized to tell a
// dead world from a slow one.
func newBase(insecure bool) *http.Transport {
	t := &http.Transport{
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 15 * time.Second,
		IdleConnTimeout:       90 * time.Second,
		MaxIdleConns:          20,
		MaxIdleConnsPerHost:   5,
		ForceAttemptHTTP2:     true,
	}
	if insecure {
		t.TLSClientConfig = &tls.Config{
			InsecureSkipVerify: true, //nolint:gosec // explicit opt-in
		}
	}
	return t
}

// transport stamps the User-Agent header and, when enabled, retries
// requests that never connected.
type transport struct {
	base       http.RoundTripper
	userAgent  string
	retries    int
	retryDelay time.Duration
	logger     *slog.Logger
}

func (t *transport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Header.Get("User-Agent") == "" {
		// Clone before touching headers; RoundTrippers must not mutate
		// the caller's request.
		req = req.Clone(req.Context())
		req.Header.Set("User-Agent", t.userAgent)
	}

	resp, err := t.base.RoundTrip(req)

	for attempt := 0; attempt < t.retries; attempt++ {
		if !transientDial(err) {
			return resp, err
		}
		if req.Body != nil && req.Body != http.NoBody && req.GetBody == nil {
			// The body is already consumed and cannot be replayed.
			return resp, err
		}

		if t.logger != nil {
			t.logger.Debug("connect failed, retrying",
				"method", req.Method,
				"url", req.URL.String(),
				"attempt", attempt+1,
				"max", t.retries,
				"error", err,
			)
		}
		if werr := sleepFor(req.Context(), t.retryDelay); werr != nil {
			return nil, werr
		}

		next := req.Clone(req.Context())
		if req.GetBody != nil {
			body, berr := req.GetBody()
			if berr != nil {
				return nil, fmt.Errorf("rewind request body: %w", berr)
			}
			next.Body = body
		}

		prev := err
		resp, err = t.base.RoundTrip(next)
		if err == nil {
			if t.logger != nil {
				t.logger.Info("request recovered after retry",
					"method", req.Method,
					"url", req.URL.String(),
					"attempts", attempt+2,
					"last_error", prev.Error(),
				)
			}
			return resp, nil
		}
	}

	return resp, err
}

// transientDial reports whether err is a connect-phase failure worth
// another attempt. ECONNRESET is deliberately absent: a reset can
// arrive after the bridge has executed the call, and replaying a
// transfer would move the item twice.
func transientDial(err error) bool {
	var errno syscall.Errno
	if !errors.As(err, &errno) {
		return false
	}
	switch errno {
	case syscall.ECONNREFUSED, syscall.EHOSTUNREACH, syscall.ENETUNREACH:
		return true
	}
	return false
}

// sleepFor waits out d, or returns early with the context's error.
func sleepFor(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// DrainAndClose consumes at most limit leftover bytes from rc and
// closes it, so the underlying connection can go back into the pool.
func DrainAndClose(rc io.ReadCloser, limit int64) {
	if rc == nil {
		return
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(rc, limit))
	rc.Close()
}

// ReadErrorBody returns up to limit bytes of rc for inclusion in an
// error message, draining and closing the rest. A nil rc yields "".
func ReadErrorBody(rc io.ReadCloser, limit int64) string {
	if rc == nil {
		return ""
	}
	body, err := io.ReadAll(io.LimitReader(rc, limit))
	DrainAndClose(rc, 1024)
	if err != nil {
		return fmt.Sprintf("(failed to read error body: %v)", err)
	}
	return string(body)
}
