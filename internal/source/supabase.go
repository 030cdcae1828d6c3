package source

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/tidwall/gjson"

	"github.com/wesm/chatview/internal/chat"
	"github.com/wesm/chatview/internal/logging"
	"github.com/wesm/chatview/internal/parser"
)

// maxBodySize caps a PostgREST response.
const maxBodySize = 256 << 20

// Supabase reads the chat history table through PostgREST.
type Supabase struct {
	baseURL string
	anonKey string
	table   string
	client  *http.Client
	log     *log.Logger
}

// Option configures a Supabase source.
type Option func(*Supabase)

// WithHTTPClient replaces the default logging client.
func WithHTTPClient(c *http.Client) Option {
	return func(s *Supabase) { s.client = c }
}

// NewSupabase returns a source for table at baseURL, e.g.
// "https://abc.supabase.co".
func NewSupabase(
	baseURL, anonKey, table string, opts ...Option,
) *Supabase {
	s := &Supabase{
		baseURL: strings.TrimRight(baseURL, "/"),
		anonKey: anonKey,
		table:   table,
		log:     logging.New("source"),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.client == nil {
		s.client = logging.NewHTTPClient(30*time.Second, "supabase")
	}
	return s
}

func (s *Supabase) rowsURL() string {
	q := url.Values{}
	q.Set("select", "*")
	q.Set("order", "timestamp.desc")
	return s.baseURL + "/rest/v1/" + url.PathEscape(s.table) +
		"?" + q.Encode()
}

// FetchMessages implements Source. Without a token the anon
// key is used as the bearer, which row-level security usually
// restricts to nothing.
func (s *Supabase) FetchMessages(
	ctx context.Context, accessToken string,
) ([]chat.Message, error) {
	req, err := http.NewRequestWithContext(
		ctx, http.MethodGet, s.rowsURL(), nil,
	)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	bearer := accessToken
	if bearer == "" {
		bearer = s.anonKey
	}
	req.Header.Set("apikey", s.anonKey)
	req.Header.Set("Authorization", "Bearer "+bearer)
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w", s.table, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", s.table, err)
	}
	switch {
	case resp.StatusCode == http.StatusUnauthorized,
		resp.StatusCode == http.StatusForbidden:
		return nil, fmt.Errorf("%w: %s", ErrUnauthorized, errorMessage(body, resp.Status))
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return nil, fmt.Errorf(
			"fetching %s: %s", s.table, errorMessage(body, resp.Status),
		)
	}

	res, err := parser.ParseRows(body)
	if err != nil {
		return nil, fmt.Errorf("decoding %s: %w", s.table, err)
	}
	if res.Invalid > 0 {
		s.log.Warn("skipped invalid rows",
			"table", s.table, "count", res.Invalid)
	}
	// PostgREST orders by the raw timestamp text, which misorders
	// rows with mixed offsets.
	chat.SortNewestFirst(res.Messages)
	return res.Messages, nil
}

// errorMessage extracts PostgREST's "message" field, falling
// back to the HTTP status.
func errorMessage(body []byte, status string) string {
	for _, key := range []string{"message", "msg", "error_description", "error"} {
		if v := gjson.GetBytes(body, key); v.Type == gjson.String && v.Str != "" {
			return v.Str
		}
	}
	return status
}
