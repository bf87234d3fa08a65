// Package httpclient builds the HTTP clients used for API calls.
package httpclient

import (
	"crypto/tls"
	"fmt"
	"net/http"
	"time"

	"apyneng/internal/logging"
)

// DefaultTimeout bounds a whole API request.
const DefaultTimeout = 30 * time.Second

// Options configures New.
type Options struct {
	Timeout time.Duration
	// IgnoreTLS disables certificate verification, for networks that
	// intercept TLS.
	IgnoreTLS bool
	Logger    logging.Logger
	// Base is the transport to wrap; a clone of http.DefaultTransport when nil.
	Base http.RoundTripper
}

// New returns a client whose requests are logged at debug level.
func New(opts Options) *http.Client {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	base := opts.Base
	if base == nil {
		transport := http.DefaultTransport.(*http.Transport).Clone()
		if opts.IgnoreTLS {
			transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec // opt-in via --ignore-ssl-cert
		}
		base = transport
	}

	return &http.Client{
		Timeout:   timeout,
		Transport: &loggingRoundTripper{base: base, logger: logging.OrNop(opts.Logger)},
	}
}

type loggingRoundTripper struct {
	base   http.RoundTripper
	logger logging.Logger
}

func (t *loggingRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	if req == nil {
		return nil, fmt.Errorf("nil request")
	}
	start := time.Now()
	resp, err := t.base.RoundTrip(req)
	if err != nil {
		t.logger.Debug("%s %s failed after %s: %v", req.Method, req.URL.Redacted(), time.Since(start), err)
		return nil, err
	}
	t.logger.Debug("%s %s -> %d in %s", req.Method, req.URL.Redacted(), resp.StatusCode, time.Since(start))
	return resp, nil
}
