package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const (
	DefaultBaseURL       = "http://localhost:8080/api"
	DefaultTimeout       = 15 * time.Second
	defaultUserAgent     = "citizen-card-cli"
	defaultClientVersion = "dev"
	maxResponseBytes     = 8 << 20
)

// TokenSource supplies the bearer token for outgoing requests.
type TokenSource interface {
	Token() string
}

// TokenFunc adapts a function to TokenSource.
type TokenFunc func() string

func (f TokenFunc) Token() string { return f() }

// UnauthorizedHandler is invoked when a request carrying tokenUsed gets a 401.
type UnauthorizedHandler func(tokenUsed string)

// Client wraps HTTP access to the citizen card REST API.
type Client struct {
	httpClient    *http.Client
	baseURL       string
	userAgent     string
	clientVersion string
	logger        logrus.FieldLogger
	now           func() time.Time
	newRequestID  func() string

	hookMu         sync.RWMutex
	tokens         TokenSource
	onUnauthorized UnauthorizedHandler

	loadingMu sync.Mutex
	active    int
	loading   func(active bool)
	inFlight  atomic.Int64
}

type Option func(*Client)

func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		if baseURL != "" {
			c.baseURL = strings.TrimRight(baseURL, "/")
		}
	}
}

func WithClientVersion(version string) Option {
	return func(c *Client) {
		if version != "" {
			c.clientVersion = version
		}
	}
}

func WithLogger(logger logrus.FieldLogger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

func WithTokenSource(tokens TokenSource) Option {
	return func(c *Client) { c.tokens = tokens }
}

func WithUnauthorizedHandler(h UnauthorizedHandler) Option {
	return func(c *Client) { c.onUnauthorized = h }
}

// WithLoadingListener registers a callback fired when the client goes from
// idle to busy and back. It runs under the loading lock and must not call
// back into the client.
func WithLoadingListener(fn func(active bool)) Option {
	return func(c *Client) { c.loading = fn }
}

func WithClock(now func() time.Time) Option {
	return func(c *Client) {
		if now != nil {
			c.now = now
		}
	}
}

// NewClient creates a new API client. If httpClient is nil, a default client is used.
func NewClient(httpClient *http.Client, opts ...Option) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: DefaultTimeout}
	}
	quiet := logrus.New()
	quiet.SetOutput(io.Discard)

	c := &Client{
		httpClient:    httpClient,
		baseURL:       DefaultBaseURL,
		userAgent:     defaultUserAgent,
		clientVersion: defaultClientVersion,
		logger:        quiet,
		now:           time.Now,
		newRequestID:  uuid.NewString,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SetTokenSource replaces the token source after construction, which lets
// the auth store and the client reference each other.
func (c *Client) SetTokenSource(tokens TokenSource) {
	c.hookMu.Lock()
	c.tokens = tokens
	c.hookMu.Unlock()
}

func (c *Client) SetUnauthorizedHandler(h UnauthorizedHandler) {
	c.hookMu.Lock()
	c.onUnauthorized = h
	c.hookMu.Unlock()
}

func (c *Client) BaseURL() string {
	return c.baseURL
}

// ActiveRequests returns the number of dispatched requests not yet settled.
func (c *Client) ActiveRequests() int {
	return int(c.inFlight.Load())
}

type requestOptions struct {
	query          url.Values
	body           any
	noAuthRedirect bool
}

type requestOption func(*requestOptions)

func withQuery(q url.Values) requestOption {
	return func(o *requestOptions) { o.query = q }
}

func withBody(body any) requestOption {
	return func(o *requestOptions) { o.body = body }
}

// withoutAuthRedirect keeps a 401 from tearing the session down. Used by
// login, where 401 means bad credentials, and by logout.
func withoutAuthRedirect() requestOption {
	return func(o *requestOptions) { o.noAuthRedirect = true }
}

func (c *Client) getJSON(ctx context.Context, path string, query url.Values, out any, opts ...requestOption) error {
	return c.doJSON(ctx, http.MethodGet, path, out, append([]requestOption{withQuery(query)}, opts...)...)
}

func (c *Client) postJSON(ctx context.Context, path string, body any, out any, opts ...requestOption) error {
	return c.doJSON(ctx, http.MethodPost, path, out, append([]requestOption{withBody(body)}, opts...)...)
}

func (c *Client) putJSON(ctx context.Context, path string, body any, out any, opts ...requestOption) error {
	return c.doJSON(ctx, http.MethodPut, path, out, append([]requestOption{withBody(body)}, opts...)...)
}

type envelope struct {
	Code    int             `json:"code"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
}

type errorBody struct {
	Message   string          `json:"message"`
	ErrorCode string          `json:"errorCode"`
	Errors    json.RawMessage `json:"errors"`
}

func (c *Client) doJSON(ctx context.Context, method string, path string, out any, opts ...requestOption) error {
	var ro requestOptions
	for _, opt := range opts {
		opt(&ro)
	}

	endpoint := c.baseURL + path
	query := url.Values{}
	for k, v := range ro.query {
		query[k] = v
	}
	if method == http.MethodGet {
		query.Set("_t", strconv.FormatInt(c.now().UnixMilli(), 10))
	}
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var body io.Reader
	if ro.body != nil {
		payload, err := json.Marshal(ro.body)
		if err != nil {
			return c.fail(&APIError{Kind: KindUnknown, Method: method, Endpoint: path, Message: "invalid request body", Err: err})
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return c.fail(&APIError{Kind: KindUnknown, Method: method, Endpoint: path, Message: "invalid request", Err: err})
	}
	requestID := c.newRequestID()
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Client-Version", c.clientVersion)
	req.Header.Set("X-Request-Id", requestID)

	c.hookMu.RLock()
	tokens, onUnauthorized := c.tokens, c.onUnauthorized
	c.hookMu.RUnlock()

	token := ""
	if tokens != nil {
		token = tokens.Token()
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	c.beginRequest()
	started := time.Now()
	defer func() {
		RequestDuration.WithLabelValues(method).Observe(time.Since(started).Seconds())
		c.endRequest()
	}()

	res, err := c.httpClient.Do(req)
	if err != nil {
		return c.fail(&APIError{
			Kind:      transportKind(ctx, err),
			Method:    method,
			Endpoint:  path,
			RequestID: requestID,
			Err:       err,
		})
	}
	data, readErr := io.ReadAll(io.LimitReader(res.Body, maxResponseBytes))
	_ = res.Body.Close()

	if res.StatusCode < http.StatusOK || res.StatusCode >= http.StatusMultipleChoices {
		apiErr := &APIError{
			Kind:       kindForStatus(res.StatusCode),
			StatusCode: res.StatusCode,
			Status:     res.Status,
			Method:     method,
			Endpoint:   path,
			Body:       strings.TrimSpace(string(data)),
			RequestID:  requestID,
		}
		parseErrorBody(apiErr, data)
		if apiErr.Kind == KindAuth && !ro.noAuthRedirect && onUnauthorized != nil {
			onUnauthorized(token)
		}
		return c.fail(apiErr)
	}
	if readErr != nil {
		return c.fail(&APIError{
			Kind:       transportKind(ctx, readErr),
			StatusCode: res.StatusCode,
			Status:     res.Status,
			Method:     method,
			Endpoint:   path,
			RequestID:  requestID,
			Err:        readErr,
		})
	}

	payload := bytes.TrimSpace(data)
	if env, ok := decodeEnvelope(payload); ok {
		switch env.Code {
		case http.StatusOK:
			payload = bytes.TrimSpace(env.Data)
		default:
			apiErr := &APIError{
				Kind:          kindForStatus(env.Code),
				StatusCode:    env.Code,
				Status:        strconv.Itoa(env.Code),
				Method:        method,
				Endpoint:      path,
				ServerMessage: env.Message,
				Body:          string(payload),
				RequestID:     requestID,
			}
			if apiErr.Kind == KindUnknown {
				apiErr.Kind = KindServer
			}
			if apiErr.Kind == KindAuth && !ro.noAuthRedirect && onUnauthorized != nil {
				onUnauthorized(token)
			}
			return c.fail(apiErr)
		}
	}

	RequestsTotal.WithLabelValues(method, "ok").Inc()
	if out == nil || len(payload) == 0 || bytes.Equal(payload, []byte("null")) {
		return nil
	}
	if err := json.Unmarshal(payload, out); err != nil {
		return c.fail(&APIError{
			Kind:       KindUnknown,
			StatusCode: res.StatusCode,
			Status:     res.Status,
			Method:     method,
			Endpoint:   path,
			Message:    "unexpected response format",
			RequestID:  requestID,
			Err:        fmt.Errorf("decode response from %s: %w", path, err),
		})
	}
	return nil
}

func (c *Client) fail(apiErr *APIError) error {
	if apiErr.Message == "" {
		apiErr.Message = kindMessage(apiErr.Kind, apiErr.StatusCode)
	}
	RequestsTotal.WithLabelValues(apiErr.Method, apiErr.Kind.String()).Inc()

	fields := logrus.Fields{
		"method":     apiErr.Method,
		"endpoint":   apiErr.Endpoint,
		"status":     apiErr.StatusCode,
		"kind":       apiErr.Kind.String(),
		"request_id": apiErr.RequestID,
	}
	entry := c.logger.WithFields(fields)
	if apiErr.Err != nil {
		entry = entry.WithError(apiErr.Err)
	}
	if apiErr.ServerMessage != "" {
		entry = entry.WithField("server_message", apiErr.ServerMessage)
	}
	entry.Warn("api request failed")
	return apiErr
}

func (c *Client) beginRequest() {
	RequestsInFlight.Inc()
	c.loadingMu.Lock()
	defer c.loadingMu.Unlock()
	c.active++
	c.inFlight.Store(int64(c.active))
	if c.active == 1 && c.loading != nil {
		c.loading(true)
	}
}

func (c *Client) endRequest() {
	c.loadingMu.Lock()
	defer c.loadingMu.Unlock()
	if c.active == 0 {
		return
	}
	RequestsInFlight.Dec()
	c.active--
	c.inFlight.Store(int64(c.active))
	if c.active == 0 && c.loading != nil {
		c.loading(false)
	}
}

func decodeEnvelope(payload []byte) (envelope, bool) {
	if len(payload) == 0 || payload[0] != '{' {
		return envelope{}, false
	}
	var keys map[string]json.RawMessage
	if err := json.Unmarshal(payload, &keys); err != nil {
		return envelope{}, false
	}
	if _, ok := keys["code"]; !ok {
		return envelope{}, false
	}
	_, hasData := keys["data"]
	_, hasMessage := keys["message"]
	if !hasData && !hasMessage {
		return envelope{}, false
	}
	var env envelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return envelope{}, false
	}
	return env, true
}

func parseErrorBody(apiErr *APIError, data []byte) {
	var body errorBody
	if err := json.Unmarshal(data, &body); err != nil {
		return
	}
	apiErr.ServerMessage = body.Message
	apiErr.Code = body.ErrorCode
	if len(body.Errors) == 0 {
		return
	}
	fields := map[string]string{}
	if err := json.Unmarshal(body.Errors, &fields); err == nil && len(fields) > 0 {
		apiErr.Fields = fields
	}
}

func transportKind(ctx context.Context, err error) Kind {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return KindTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return KindTimeout
	}
	return KindNetwork
}

func pageQuery(page int, limit int) url.Values {
	q := url.Values{}
	if page > 0 {
		q.Set("page", strconv.Itoa(page))
	}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	return q
}

func requireID(id string) (string, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return "", ErrIDRequired
	}
	return url.PathEscape(id), nil
}
