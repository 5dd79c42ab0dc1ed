// Package gateway is the HTTP client every backend call goes through.
//
// It attaches the session credential as "Authorization: Bearer <token>". In order of
// precedence the token comes from a per-request override (WithBearer), the default
// credential set with SetCredential, or the interceptor TokenSource that reads the
// persisted credential when no default is set.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/jrsteele09/go-auth-client/internal/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"
)

const (
	headerAuthorization = "Authorization"
	headerContentType   = "Content-Type"
	headerAccept        = "Accept"
	headerRequestID     = "X-Request-ID"
	headerUserAgent     = "User-Agent"

	contentTypeJSON = "application/json"
	contentTypeForm = "application/x-www-form-urlencoded"

	defaultUserAgent = "go-auth-client/1"
)

// Client is safe for concurrent use.
type Client struct {
	baseURL    *url.URL
	httpClient *http.Client
	tokens     oauth2.TokenSource
	logger     zerolog.Logger
	userAgent  string

	mu         sync.RWMutex
	credential string
}

type Option func(*Client)

// WithHTTPClient replaces the underlying client. Its Transport is wrapped, not replaced.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			copied := *hc
			c.httpClient = &copied
		}
	}
}

// WithTimeout bounds every request, including reading the response body.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.httpClient.Timeout = d
	}
}

// WithTokenSource installs the request-time interceptor consulted when no default credential is set.
func WithTokenSource(ts oauth2.TokenSource) Option {
	return func(c *Client) {
		c.tokens = ts
	}
}

func WithLogger(logger zerolog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

func WithUserAgent(ua string) Option {
	return func(c *Client) {
		if ua != "" {
			c.userAgent = ua
		}
	}
}

// New creates a Client for baseURL, e.g. "https://api.example.com".
func New(baseURL string, options ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("[gateway.New] invalid base url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("[gateway.New] base url %q must be absolute", baseURL)
	}

	c := &Client{
		baseURL:    u,
		httpClient: &http.Client{},
		logger:     log.Logger,
		userAgent:  defaultUserAgent,
	}
	for _, opt := range options {
		opt(c)
	}

	base := c.httpClient.Transport
	if base == nil {
		base = http.DefaultTransport
	}
	c.httpClient.Transport = &authTransport{base: base, client: c}
	return c, nil
}

// BaseURL returns the configured backend root.
func (c *Client) BaseURL() string {
	return c.baseURL.String()
}

// URL resolves path against the base URL. The path is appended verbatim so
// trailing slashes survive.
func (c *Client) URL(path string) string {
	return c.baseURL.String() + "/" + strings.TrimLeft(path, "/")
}

// HTTPClient returns a client whose transport applies the same credential attachment,
// request ids and logging as Get and Post.
func (c *Client) HTTPClient() *http.Client {
	return c.httpClient
}

// SetCredential sets the default credential attached to every request.
func (c *Client) SetCredential(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.credential = token
}

// ClearCredential removes the default credential.
func (c *Client) ClearCredential() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.credential = ""
}

// Credential returns the default credential, if any.
func (c *Client) Credential() (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.credential, c.credential != ""
}

// Get issues a GET request for path.
func (c *Client) Get(ctx context.Context, path string, opts ...RequestOption) (*Response, error) {
	return c.Do(ctx, http.MethodGet, path, nil, opts...)
}

// Post issues a POST request. body may be nil, a Body built with JSON or Form, or
// any other value, which is encoded as JSON.
func (c *Client) Post(ctx context.Context, path string, body any, opts ...RequestOption) (*Response, error) {
	return c.Do(ctx, http.MethodPost, path, body, opts...)
}

// Do sends the request and returns the response for 2xx statuses. Other statuses are
// returned as *ResponseError, network failures wrap errors.ErrTransport.
func (c *Client) Do(ctx context.Context, method, path string, body any, opts ...RequestOption) (*Response, error) {
	ro := requestOptions{header: http.Header{}}
	for _, opt := range opts {
		opt(&ro)
	}

	var (
		reader      io.Reader
		contentType string
	)
	if b := asBody(body); b != nil {
		raw, ct, err := b.encode()
		if err != nil {
			return nil, fmt.Errorf("%w: [gateway.Do] encode %s %s body: %w", errors.ErrInvalidInput, method, path, err)
		}
		reader = bytes.NewReader(raw)
		contentType = ct
	}

	req, err := http.NewRequestWithContext(ctx, method, c.URL(path), reader)
	if err != nil {
		return nil, fmt.Errorf("[gateway.Do] build request: %w", err)
	}
	req.Header.Set(headerAccept, contentTypeJSON)
	if contentType != "" {
		req.Header.Set(headerContentType, contentType)
	}
	for k, vs := range ro.header {
		req.Header.Del(k)
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	if ro.bearer != "" {
		(&oauth2.Token{AccessToken: ro.bearer}).SetAuthHeader(req)
	}
	if ro.anonymous {
		req = req.WithContext(context.WithValue(req.Context(), anonymousKey{}, true))
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s %s: %w", errors.ErrTransport, method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read %s %s response: %w", errors.ErrTransport, method, path, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &ResponseError{
			Method:     method,
			Path:       path,
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			Body:       raw,
		}
	}
	return &Response{StatusCode: resp.StatusCode, Header: resp.Header, Body: raw}, nil
}

// Response is a successful (2xx) response with its body fully read.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Empty reports a body that carries no data: nothing, whitespace or JSON null.
func (r *Response) Empty() bool {
	trimmed := bytes.TrimSpace(r.Body)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}

// DecodeJSON unmarshals the body into v.
func (r *Response) DecodeJSON(v any) error {
	if err := json.Unmarshal(r.Body, v); err != nil {
		return fmt.Errorf("decode response body: %w", err)
	}
	return nil
}

// ResponseError is returned for non-2xx statuses. The gateway does not interpret the status.
type ResponseError struct {
	Method     string
	Path       string
	StatusCode int
	Status     string
	Body       []byte
}

func (e *ResponseError) Error() string {
	if len(e.Body) == 0 {
		return fmt.Sprintf("%s %s: %s", e.Method, e.Path, e.Status)
	}
	const maxBody = 512
	body := string(e.Body)
	if len(body) > maxBody {
		body = body[:maxBody] + "..."
	}
	return fmt.Sprintf("%s %s: %s: %s", e.Method, e.Path, e.Status, body)
}

// StatusCode returns the HTTP status carried by err, or 0 when err is not a *ResponseError.
func StatusCode(err error) int {
	var re *ResponseError
	if errors.As(err, &re) {
		return re.StatusCode
	}
	return 0
}
