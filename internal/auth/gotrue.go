package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/wesm/chatview/internal/logging"
)

// GoTrue talks to Supabase's auth service.
type GoTrue struct {
	baseURL string
	anonKey string
	client  *http.Client
	now     func() time.Time
}

// NewGoTrue returns a provider for the project at baseURL.
// A nil client gets a logging client with a 30s timeout.
func NewGoTrue(baseURL, anonKey string, client *http.Client) *GoTrue {
	if client == nil {
		client = logging.NewHTTPClient(30*time.Second, "gotrue")
	}
	return &GoTrue{
		baseURL: strings.TrimRight(baseURL, "/") + "/auth/v1",
		anonKey: anonKey,
		client:  client,
		now:     time.Now,
	}
}

// do sends a request and returns the status and body.
func (g *GoTrue) do(
	ctx context.Context, method, path, bearer string, payload any,
) (int, []byte, error) {
	var body io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return 0, nil, fmt.Errorf("encoding request: %w", err)
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, g.baseURL+path, body)
	if err != nil {
		return 0, nil, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("apikey", g.anonKey)
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("auth request: %w", err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return 0, nil, fmt.Errorf("reading auth response: %w", err)
	}
	return resp.StatusCode, data, nil
}

// upstreamError builds an error from a GoTrue error body.
func upstreamError(status int, body []byte) error {
	msg := ""
	for _, key := range []string{"msg", "error_description", "message", "error"} {
		if v := gjson.GetBytes(body, key); v.Type == gjson.String && v.Str != "" {
			msg = v.Str
			break
		}
	}
	code := gjson.GetBytes(body, "error_code").String()
	lower := strings.ToLower(msg)
	switch {
	case code == "invalid_credentials",
		strings.Contains(lower, "invalid login credentials"):
		return ErrInvalidCredentials
	case code == "email_not_confirmed",
		strings.Contains(lower, "email not confirmed"):
		return ErrEmailNotConfirmed
	case code == "user_already_exists", code == "email_exists",
		strings.Contains(lower, "already registered"):
		return ErrEmailTaken
	case status == http.StatusUnauthorized:
		return fmt.Errorf("%w: %s", ErrUnauthenticated, msg)
	case code == "weak_password":
		return &AuthError{Message: msg}
	}
	if msg == "" {
		msg = http.StatusText(status)
	}
	return fmt.Errorf("auth service: %d %s", status, msg)
}

func parseUser(u gjson.Result) User {
	return User{
		ID:       u.Get("id").String(),
		Email:    u.Get("email").String(),
		FullName: u.Get("user_metadata.full_name").String(),
	}
}

// SignIn implements Provider with the password grant.
func (g *GoTrue) SignIn(
	ctx context.Context, email, password string,
) (Credential, error) {
	if err := ValidateSignIn(email, password); err != nil {
		return Credential{}, err
	}
	status, body, err := g.do(ctx, http.MethodPost,
		"/token?grant_type=password", "",
		map[string]string{"email": strings.TrimSpace(email), "password": password},
	)
	if err != nil {
		return Credential{}, err
	}
	if status != http.StatusOK {
		return Credential{}, upstreamError(status, body)
	}
	res := gjson.ParseBytes(body)
	cred := Credential{
		AccessToken:  res.Get("access_token").String(),
		RefreshToken: res.Get("refresh_token").String(),
		User:         parseUser(res.Get("user")),
	}
	if cred.AccessToken == "" {
		return Credential{}, fmt.Errorf("auth service returned no access token")
	}
	if at := res.Get("expires_at").Int(); at > 0 {
		cred.ExpiresAt = time.Unix(at, 0)
	} else if in := res.Get("expires_in").Int(); in > 0 {
		cred.ExpiresAt = g.now().Add(time.Duration(in) * time.Second)
	}
	return cred, nil
}

// SignUp implements Provider. When the project requires email
// confirmation GoTrue answers with a bare user and no session.
func (g *GoTrue) SignUp(
	ctx context.Context, email, password, fullName string,
) (SignUpResult, error) {
	if err := ValidateSignUp(email, password, fullName); err != nil {
		return SignUpResult{}, err
	}
	status, body, err := g.do(ctx, http.MethodPost, "/signup", "",
		map[string]any{
			"email":    strings.TrimSpace(email),
			"password": password,
			"data":     map[string]string{"full_name": strings.TrimSpace(fullName)},
		},
	)
	if err != nil {
		return SignUpResult{}, err
	}
	if status != http.StatusOK {
		return SignUpResult{}, upstreamError(status, body)
	}
	hasSession := gjson.GetBytes(body, "access_token").String() != ""
	return SignUpResult{NeedsConfirmation: !hasSession}, nil
}

// SignOut implements Provider. An already-invalid token counts
// as signed out.
func (g *GoTrue) SignOut(ctx context.Context, accessToken string) error {
	if accessToken == "" {
		return nil
	}
	status, body, err := g.do(ctx, http.MethodPost, "/logout", accessToken, nil)
	if err != nil {
		return err
	}
	switch status {
	case http.StatusOK, http.StatusNoContent,
		http.StatusUnauthorized, http.StatusForbidden:
		return nil
	}
	return upstreamError(status, body)
}

// User implements Provider.
func (g *GoTrue) User(ctx context.Context, accessToken string) (User, error) {
	if accessToken == "" {
		return User{}, ErrUnauthenticated
	}
	status, body, err := g.do(ctx, http.MethodGet, "/user", accessToken, nil)
	if err != nil {
		return User{}, err
	}
	switch status {
	case http.StatusOK:
	case http.StatusUnauthorized, http.StatusForbidden:
		return User{}, ErrUnauthenticated
	default:
		return User{}, upstreamError(status, body)
	}
	u := parseUser(gjson.ParseBytes(body))
	if u.ID == "" {
		return User{}, fmt.Errorf("auth service returned no user id")
	}
	return u, nil
}
