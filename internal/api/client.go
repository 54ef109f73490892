// ABOUTME: Session-credentialed HTTP client with anti-forgery header injection
// ABOUTME: Shares one cookie jar across requests and maps failures to typed errors

package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/publicsuffix"

	"github.com/2389/bank-assistant/internal/localstore"
)

const (
	// DefaultCSRFCookie is the cookie holding the anti-forgery token.
	DefaultCSRFCookie = "csrftoken"
	// DefaultCSRFHeader is the header the token is echoed in.
	DefaultCSRFHeader = "X-CSRFToken"

	maxResponseBytes = 10 << 20
)

// safeMethods never carry the anti-forgery header.
var safeMethods = map[string]bool{
	http.MethodGet:     true,
	http.MethodHead:    true,
	http.MethodOptions: true,
	http.MethodTrace:   true,
}

// Client talks to the backend with session credentials.
type Client struct {
	baseURL    *url.URL
	httpClient *http.Client
	jar        http.CookieJar
	csrfCookie string
	csrfHeader string
	cookies    localstore.Storage
	logger     *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithTimeout bounds each request, including reading the body.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.httpClient.Timeout = d
	}
}

// WithTransport replaces the HTTP transport.
func WithTransport(rt http.RoundTripper) Option {
	return func(c *Client) {
		c.httpClient.Transport = rt
	}
}

// WithCSRF overrides the anti-forgery cookie and header names.
// Empty values keep the defaults.
func WithCSRF(cookieName, headerName string) Option {
	return func(c *Client) {
		if cookieName != "" {
			c.csrfCookie = cookieName
		}
		if headerName != "" {
			c.csrfHeader = headerName
		}
	}
}

// WithCookieStorage persists backend cookies in st after every response.
func WithCookieStorage(st localstore.Storage) Option {
	return func(c *Client) {
		c.cookies = st
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// NewClient creates a Client for the backend rooted at baseURL.
func NewClient(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing base url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("base url must use http or https scheme")
	}
	if u.Host == "" {
		return nil, fmt.Errorf("base url has no host")
	}
	if !strings.HasSuffix(u.Path, "/") {
		u.Path += "/"
	}

	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, fmt.Errorf("creating cookie jar: %w", err)
	}

	c := &Client{
		baseURL:    u,
		httpClient: &http.Client{Jar: jar, Timeout: 30 * time.Second},
		jar:        jar,
		csrfCookie: DefaultCSRFCookie,
		csrfHeader: DefaultCSRFHeader,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With("component", "api")

	return c, nil
}

// BaseURL returns the backend root URL.
func (c *Client) BaseURL() string {
	return c.baseURL.String()
}

// Response is a successful backend response with its body fully read.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// DecodeJSON unmarshals the response body into v.
func (r *Response) DecodeJSON(v any) error {
	if err := json.Unmarshal(r.Body, v); err != nil {
		return fmt.Errorf("parsing response: %w", err)
	}
	return nil
}

// Do sends a request to path (relative to the base URL).
// contentType may be empty when body is nil.
func (c *Client) Do(ctx context.Context, method, path string, body io.Reader, contentType string) (*Response, error) {
	method = strings.ToUpper(method)
	target := c.baseURL.ResolveReference(&url.URL{Path: strings.TrimPrefix(path, "/")})

	req, err := http.NewRequestWithContext(ctx, method, target.String(), body)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	if !safeMethods[method] {
		if token := c.CSRFToken(); token != "" {
			req.Header.Set(c.csrfHeader, token)
		} else {
			c.logger.Debug("no anti-forgery token available", "method", method, "path", path)
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &TransportError{Method: method, Path: path, Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, &TransportError{Method: method, Path: path, Err: fmt.Errorf("reading body: %w", err)}
	}

	c.persistCookies(ctx)

	c.logger.Debug("backend response", "method", method, "path", path, "status", resp.StatusCode)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, newBackendError(method, path, resp.StatusCode, data)
	}

	return &Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       data,
	}, nil
}

// DoJSON sends v encoded as JSON (or no body when v is nil).
func (c *Client) DoJSON(ctx context.Context, method, path string, v any) (*Response, error) {
	if v == nil {
		return c.Do(ctx, method, path, nil, "")
	}
	payload, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}
	return c.Do(ctx, method, path, bytes.NewReader(payload), "application/json")
}

// CSRFToken returns the anti-forgery token currently held for the backend, or "".
func (c *Client) CSRFToken() string {
	for _, ck := range c.jar.Cookies(c.baseURL) {
		if ck.Name != c.csrfCookie {
			continue
		}
		if v, err := url.QueryUnescape(ck.Value); err == nil {
			return v
		}
		return ck.Value
	}
	return ""
}

func newBackendError(method, path string, status int, body []byte) *BackendError {
	be := &BackendError{Method: method, Path: path, StatusCode: status}

	var payload map[string]any
	if err := json.Unmarshal(body, &payload); err == nil {
		be.Payload = payload
		if msg, ok := payload["error"].(string); ok {
			be.Message = msg
		}
	}
	return be
}
