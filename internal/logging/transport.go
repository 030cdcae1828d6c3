package logging

import (
	"net/http"
	"time"

	"github.com/charmbracelet/log"
)

// Transport logs outbound requests at debug level. The query
// string is left out of the logged URL since it can carry
// filters with user data.
type Transport struct {
	Base http.RoundTripper
	Log  *log.Logger
}

// RoundTrip implements http.RoundTripper.
func (t *Transport) RoundTrip(r *http.Request) (*http.Response, error) {
	base := t.Base
	if base == nil {
		base = http.DefaultTransport
	}
	logger := t.Log
	if logger == nil {
		logger = Default()
	}
	start := time.Now()
	resp, err := base.RoundTrip(r)
	u := *r.URL
	u.RawQuery = ""
	if err != nil {
		logger.Debug("request failed",
			"method", r.Method, "url", u.String(),
			"duration", time.Since(start), "err", err)
		return nil, err
	}
	logger.Debug("request",
		"method", r.Method, "url", u.String(),
		"status", resp.StatusCode, "duration", time.Since(start))
	return resp, nil
}

// NewHTTPClient returns a client with the given timeout whose
// requests are logged under prefix.
func NewHTTPClient(timeout time.Duration, prefix string) *http.Client {
	return &http.Client{
		Timeout:   timeout,
		Transport: &Transport{Log: New(prefix)},
	}
}
