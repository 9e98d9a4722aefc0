// Package backend is the single configuration point for calls to the remote
// platform API. Every request made through a Session carries the bearer token
// of its TokenSource; responses are returned unchanged (raw JSON) except where
// the portal itself needs a field, such as the login token or a redirect URL.
//
// The package performs no retries and no caching. Non-2xx responses surface
// as *APIError so callers can branch on status and show the backend message.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// maxResponseBytes bounds how much of a response body is buffered.
const maxResponseBytes = 10 << 20

// TokenSource yields the bearer token to attach, or "" for anonymous calls.
type TokenSource interface {
	Token() string
}

// TokenFunc adapts a plain function to TokenSource.
type TokenFunc func() string

// Token implements TokenSource.
func (f TokenFunc) Token() string { return f() }

// Anonymous never attaches a token.
var Anonymous TokenSource = TokenFunc(func() string { return "" })

// Client holds the backend base URL and the shared HTTP client.
type Client struct {
	BaseURL string
	HTTP    *http.Client
}

// NewHTTPClient returns an *http.Client whose transport emits a client span
// per backend call.
func NewHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout:   timeout,
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	}
}

// New returns a Client for baseURL (trailing slash trimmed). A nil httpClient
// falls back to NewHTTPClient with a 15s timeout.
func New(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = NewHTTPClient(15 * time.Second)
	}
	return &Client{BaseURL: strings.TrimRight(baseURL, "/"), HTTP: httpClient}
}

// For binds the client to a token source. The returned Session is cheap and
// meant to be created per portal request.
func (c *Client) For(ts TokenSource) *Session {
	if ts == nil {
		ts = Anonymous
	}
	return &Session{c: c, tokens: ts}
}

// Session issues backend calls on behalf of one portal session.
type Session struct {
	c      *Client
	tokens TokenSource
}

// request describes one backend call. route is the path template used as the
// metrics label; path is the concrete path.
type request struct {
	method   string
	route    string
	path     string
	query    url.Values
	rawQuery string
	json     any
	form     *multipartForm
}

// response is the buffered result of a successful call.
type response struct {
	Status int
	Body   []byte
}

func (s *Session) do(ctx context.Context, r request) (*response, error) {
	u := s.c.BaseURL + r.path
	switch {
	case r.rawQuery != "":
		u += "?" + r.rawQuery
	case len(r.query) > 0:
		u += "?" + r.query.Encode()
	}

	var (
		body        io.Reader
		contentType string
	)
	switch {
	case r.form != nil:
		buf, ct, err := r.form.encode()
		if err != nil {
			return nil, fmt.Errorf("backend: build multipart body: %w", err)
		}
		body, contentType = buf, ct
	case r.json != nil:
		b, err := json.Marshal(r.json)
		if err != nil {
			return nil, fmt.Errorf("backend: encode request: %w", err)
		}
		body, contentType = bytes.NewReader(b), "application/json"
	}

	req, err := http.NewRequestWithContext(ctx, r.method, u, body)
	if err != nil {
		return nil, fmt.Errorf("backend: new request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")
	if tok := s.tokens.Token(); tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}

	start := time.Now()
	res, err := s.c.HTTP.Do(req)
	if err != nil {
		observe(r.method, r.route, "error", start)
		return nil, fmt.Errorf("backend: %s %s: %w", r.method, r.route, err)
	}
	defer res.Body.Close()
	observe(r.method, r.route, strconv.Itoa(res.StatusCode), start)

	data, err := io.ReadAll(io.LimitReader(res.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("backend: read response: %w", err)
	}
	if res.StatusCode < 200 || res.StatusCode > 299 {
		return nil, newAPIError(res.StatusCode, data)
	}
	return &response{Status: res.StatusCode, Body: data}, nil
}

// raw performs the call and returns the body as JSON. An empty body becomes
// JSON null so handlers can forward it verbatim.
func (s *Session) raw(ctx context.Context, r request) (json.RawMessage, error) {
	res, err := s.do(ctx, r)
	if err != nil {
		return nil, err
	}
	return asJSON(res.Body), nil
}

func asJSON(b []byte) json.RawMessage {
	t := bytes.TrimSpace(b)
	if len(t) == 0 {
		return json.RawMessage("null")
	}
	if json.Valid(t) {
		return json.RawMessage(t)
	}
	// plain-text bodies are wrapped as a JSON string
	q, _ := json.Marshal(string(t))
	return json.RawMessage(q)
}

// pageQuery builds the page/size/filter query shared by list endpoints.
// Empty filter values are sent as empty strings, matching the browser client.
func pageQuery(page, size int, kv ...string) url.Values {
	q := url.Values{}
	q.Set("page", strconv.Itoa(page))
	q.Set("size", strconv.Itoa(size))
	for i := 0; i+1 < len(kv); i += 2 {
		q.Set(kv[i], kv[i+1])
	}
	return q
}

func idPath(format string, id int64) string {
	return fmt.Sprintf(format, id)
}
