package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/wesm/chatview/internal/auth"
	"github.com/wesm/chatview/internal/chat"
	"github.com/wesm/chatview/internal/config"
	"github.com/wesm/chatview/internal/logging"
	"github.com/wesm/chatview/internal/sync"
)

// staticSource serves a fixed list of rows.
type staticSource []chat.Message

func (s staticSource) FetchMessages(
	context.Context, string,
) ([]chat.Message, error) {
	return append([]chat.Message(nil), s...), nil
}

// tokenAuth accepts exactly one token.
type tokenAuth struct {
	token string
	user  auth.User
}

func (a tokenAuth) SignIn(context.Context, string, string) (auth.Credential, error) {
	return auth.Credential{AccessToken: a.token, User: a.user}, nil
}

func (a tokenAuth) SignUp(context.Context, string, string, string) (auth.SignUpResult, error) {
	return auth.SignUpResult{}, nil
}

func (a tokenAuth) SignOut(context.Context, string) error { return nil }

func (a tokenAuth) User(_ context.Context, token string) (auth.User, error) {
	if token != a.token {
		return auth.User{}, auth.ErrUnauthenticated
	}
	return a.user, nil
}

const testToken = "test-token"

type serverOption func(*Server)

func withHandlerDelay(d time.Duration) serverOption {
	return func(s *Server) { s.handlerDelay = d }
}

// testServer creates a Server for internal tests with the given
// write timeout.
func testServer(
	t *testing.T, writeTimeout time.Duration,
) *Server {
	t.Helper()
	return testServerOpts(t, writeTimeout)
}

func testServerOpts(
	t *testing.T, writeTimeout time.Duration, opts ...serverOption,
) *Server {
	t.Helper()
	cfg := config.Config{
		Host:         "127.0.0.1",
		Port:         0,
		DataDir:      t.TempDir(),
		WriteTimeout: writeTimeout,
	}
	engine := sync.NewEngine(staticSource{}, nil, time.UTC)
	provider := tokenAuth{
		token: testToken,
		user:  auth.User{ID: "u1", Email: "ada@example.com"},
	}
	s := &Server{
		cfg:     cfg,
		engine:  engine,
		auth:    provider,
		mux:     http.NewServeMux(),
		limiter: newRateLimiter(authRate, authBurst),
		log:     logging.New("http"),
		now:     time.Now,
		loc:     time.UTC,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.routes()
	return s
}

// assertTimeoutResponse checks that the response is a 503 with
// a JSON body containing "request timed out" and the correct
// Content-Type header.
func assertTimeoutResponse(
	t *testing.T, resp *http.Response,
) {
	t.Helper()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf(
			"status = %d, want %d",
			resp.StatusCode, http.StatusServiceUnavailable,
		)
	}
	body, _ := io.ReadAll(resp.Body)
	var je jsonError
	if err := json.Unmarshal(body, &je); err != nil {
		t.Fatalf(
			"body is not valid JSON: %v (body=%q)",
			err, string(body),
		)
	}
	if je.Error != "request timed out" {
		t.Errorf(
			"error = %q, want %q",
			je.Error, "request timed out",
		)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/json" {
		t.Errorf(
			"Content-Type = %q, want %q",
			ct, "application/json",
		)
	}
}

// isTimeoutResponse returns true when the response is a 503
// JSON timeout. Use this for negative assertions where a route
// should NOT produce a timeout.
func isTimeoutResponse(
	t *testing.T, resp *http.Response,
) bool {
	t.Helper()
	if resp.StatusCode != http.StatusServiceUnavailable {
		return false
	}
	body, _ := io.ReadAll(resp.Body)
	var je jsonError
	if json.Unmarshal(body, &je) != nil {
		return false
	}
	return je.Error == "request timed out"
}

// assertRecorderStatus checks that the recorder has the
// expected HTTP status code.
func assertRecorderStatus(
	t *testing.T, w *httptest.ResponseRecorder, code int,
) {
	t.Helper()
	if w.Code != code {
		t.Fatalf(
			"expected status %d, got %d: %s",
			code, w.Code, w.Body.String(),
		)
	}
}

// assertContentType checks that the recorder has the expected
// Content-Type header.
func assertContentType(
	t *testing.T, w *httptest.ResponseRecorder, expected string,
) {
	t.Helper()
	if got := w.Header().Get("Content-Type"); got != expected {
		t.Errorf(
			"Content-Type = %q, want %q", got, expected,
		)
	}
}
