package service

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func newTestClient(server *httptest.Server, opts ...Option) *Client {
	client := NewClient(server.Client(), opts...)
	client.baseURL = server.URL
	return client
}

func TestDoJSON_Non2xxReturnsNormalizedError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"message":"database unavailable"}`))
	}))
	defer server.Close()

	client := newTestClient(server)

	var out map[string]any
	err := client.getJSON(context.Background(), "/fail", nil, &out)
	if err == nil {
		t.Fatal("expected error")
	}
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *APIError, got %T", err)
	}
	if apiErr.Kind != KindServer || apiErr.StatusCode != http.StatusInternalServerError {
		t.Fatalf("unexpected error: %+v", apiErr)
	}
	if err.Error() != "internal server error" {
		t.Fatalf("unexpected message: %q", err.Error())
	}
	if apiErr.ServerMessage != "database unavailable" {
		t.Fatalf("unexpected server message: %q", apiErr.ServerMessage)
	}
}

func TestDoJSON_DoesNotRetry(t *testing.T) {
	var attempts int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&attempts, 1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := newTestClient(server)

	err := client.getJSON(context.Background(), "/busy", nil, nil)
	if err == nil {
		t.Fatal("expected error")
	}
	if attempts != 1 {
		t.Fatalf("expected 1 attempt, got %d", attempts)
	}
	if KindOf(err) != KindServer || err.Error() != "service unavailable" {
		t.Fatalf("unexpected error: %v (%s)", err, KindOf(err))
	}
}

func TestDoJSON_StatusTaxonomy(t *testing.T) {
	cases := []struct {
		status int
		kind   Kind
	}{
		{http.StatusBadRequest, KindValidation},
		{http.StatusUnprocessableEntity, KindValidation},
		{http.StatusForbidden, KindForbidden},
		{http.StatusNotFound, KindNotFound},
		{http.StatusConflict, KindConflict},
		{http.StatusRequestTimeout, KindTimeout},
		{http.StatusGatewayTimeout, KindTimeout},
		{http.StatusBadGateway, KindServer},
		{http.StatusTeapot, KindUnknown},
	}
	for _, tc := range cases {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tc.status)
			_, _ = w.Write([]byte(`{"message":"x","errors":{"seats":"taken"}}`))
		}))
		client := newTestClient(server)
		err := client.getJSON(context.Background(), "/status", nil, nil)
		server.Close()

		if got := KindOf(err); got != tc.kind {
			t.Fatalf("status %d: expected kind %s, got %s", tc.status, tc.kind, got)
		}
		var apiErr *APIError
		if !errors.As(err, &apiErr) || apiErr.Fields["seats"] != "taken" {
			t.Fatalf("status %d: expected field details, got %+v", tc.status, err)
		}
	}
}

func TestDoJSON_HeadersAndCacheBuster(t *testing.T) {
	var mu sync.Mutex
	seen := map[string]*http.Request{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		seen[r.Method] = r.Clone(context.Background())
		mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{}`))
	}))
	defer server.Close()

	fixed := time.UnixMilli(1700000000000)
	client := newTestClient(server,
		WithTokenSource(TokenFunc(func() string { return "tok-123" })),
		WithClientVersion("1.2.3"),
		WithClock(func() time.Time { return fixed }),
	)

	if err := client.getJSON(context.Background(), "/ping", nil, nil); err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if err := client.postJSON(context.Background(), "/ping", map[string]string{"a": "b"}, nil); err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}

	get := seen[http.MethodGet]
	if got := get.URL.Query().Get("_t"); got != "1700000000000" {
		t.Fatalf("expected cache buster, got %q", got)
	}
	if got := get.Header.Get("Authorization"); got != "Bearer tok-123" {
		t.Fatalf("unexpected authorization header: %q", got)
	}
	if get.Header.Get("X-Request-Id") == "" {
		t.Fatal("expected request id header")
	}
	if got := get.Header.Get("X-Client-Version"); got != "1.2.3" {
		t.Fatalf("unexpected client version: %q", got)
	}

	post := seen[http.MethodPost]
	if post.URL.Query().Has("_t") {
		t.Fatal("expected no cache buster on POST")
	}
	if post.Header.Get("X-Request-Id") == get.Header.Get("X-Request-Id") {
		t.Fatal("expected a fresh request id per request")
	}
}

func TestDoJSON_NoTokenNoAuthorization(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "" {
			t.Errorf("unexpected authorization header: %q", r.Header.Get("Authorization"))
		}
		_, _ = w.Write([]byte(`{}`))
	}))
	defer server.Close()

	client := newTestClient(server, WithTokenSource(TokenFunc(func() string { return "" })))
	if err := client.getJSON(context.Background(), "/ping", nil, nil); err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
}

func TestDoJSON_UnwrapsEnvelope(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"code":200,"data":{"name":"Dune"},"message":"ok"}`))
	}))
	defer server.Close()

	client := newTestClient(server)

	var out struct {
		Name string `json:"name"`
	}
	if err := client.getJSON(context.Background(), "/movie", nil, &out); err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if out.Name != "Dune" {
		t.Fatalf("unexpected payload: %+v", out)
	}
}

func TestDoJSON_EnvelopeErrorCodes(t *testing.T) {
	var calls []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/expired":
			_, _ = w.Write([]byte(`{"code":401,"data":null,"message":"token expired"}`))
		default:
			_, _ = w.Write([]byte(`{"code":5001,"data":null,"message":"seat engine offline"}`))
		}
	}))
	defer server.Close()

	client := newTestClient(server,
		WithTokenSource(TokenFunc(func() string { return "tok" })),
		WithUnauthorizedHandler(func(tokenUsed string) { calls = append(calls, tokenUsed) }),
	)

	err := client.getJSON(context.Background(), "/expired", nil, nil)
	if !IsUnauthorized(err) {
		t.Fatalf("expected auth error, got %v", err)
	}
	if len(calls) != 1 || calls[0] != "tok" {
		t.Fatalf("expected one unauthorized callback with the used token, got %v", calls)
	}

	err = client.getJSON(context.Background(), "/other", nil, nil)
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.ServerMessage != "seat engine offline" || apiErr.Kind != KindServer {
		t.Fatalf("unexpected error: %+v", err)
	}
}

func TestDoJSON_UnauthorizedHook(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	var hits int32
	client := newTestClient(server,
		WithTokenSource(TokenFunc(func() string { return "abc" })),
		WithUnauthorizedHandler(func(string) { atomic.AddInt32(&hits, 1) }),
	)

	_ = client.getJSON(context.Background(), "/private", nil, nil)
	if hits != 1 {
		t.Fatalf("expected handler to fire once, got %d", hits)
	}
	_ = client.postJSON(context.Background(), "/auth/logout", nil, nil, withoutAuthRedirect())
	if hits != 1 {
		t.Fatalf("expected opt-out request to skip handler, got %d", hits)
	}
}

func TestDoJSON_NetworkFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	client := NewClient(nil)
	client.baseURL = url

	err := client.getJSON(context.Background(), "/gone", nil, nil)
	if KindOf(err) != KindNetwork {
		t.Fatalf("expected network error, got %v (%s)", err, KindOf(err))
	}
	if !strings.Contains(err.Error(), "network") {
		t.Fatalf("unexpected message: %q", err.Error())
	}
}

func TestDoJSON_ClientTimeout(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	httpClient := server.Client()
	httpClient.Timeout = 20 * time.Millisecond
	client := NewClient(httpClient)
	client.baseURL = server.URL

	err := client.getJSON(context.Background(), "/slow", nil, nil)
	if KindOf(err) != KindTimeout {
		t.Fatalf("expected timeout error, got %v (%s)", err, KindOf(err))
	}
}

func TestDoJSON_LoadingCounter(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{}, 2)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		started <- struct{}{}
		<-release
		_, _ = w.Write([]byte(`{}`))
	}))
	defer server.Close()

	var mu sync.Mutex
	var transitions []bool
	client := newTestClient(server, WithLoadingListener(func(active bool) {
		mu.Lock()
		transitions = append(transitions, active)
		mu.Unlock()
	}))

	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = client.getJSON(context.Background(), "/slow", nil, nil)
		}()
	}
	<-started
	<-started
	if got := client.ActiveRequests(); got != 2 {
		t.Fatalf("expected 2 active requests, got %d", got)
	}
	close(release)
	wg.Wait()

	if got := client.ActiveRequests(); got != 0 {
		t.Fatalf("expected 0 active requests, got %d", got)
	}
	client.endRequest()
	if got := client.ActiveRequests(); got != 0 {
		t.Fatalf("expected counter to stay at 0, got %d", got)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(transitions) != 2 || !transitions[0] || transitions[1] {
		t.Fatalf("expected [true false], got %v", transitions)
	}
}

func TestDoJSON_RequestBuildFailuresAreAPIErrors(t *testing.T) {
	client := NewClient(http.DefaultClient)

	client.baseURL = "http://[::1"
	err := client.getJSON(context.Background(), "/movies", nil, nil)
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *APIError for a malformed base url, got %T", err)
	}
	if KindOf(err) != KindUnknown || err.Error() != "invalid request" {
		t.Fatalf("unexpected error: kind %v, message %q", KindOf(err), err.Error())
	}
	if apiErr.Err == nil {
		t.Fatal("expected the build error to be kept")
	}

	client.baseURL = "http://localhost"
	err = client.postJSON(context.Background(), "/wallet/pay", map[string]any{"amount": make(chan int)}, nil)
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *APIError for an unencodable body, got %T", err)
	}
	if apiErr.Method != http.MethodPost || apiErr.Endpoint != "/wallet/pay" {
		t.Fatalf("unexpected error: %+v", apiErr)
	}
	if client.ActiveRequests() != 0 {
		t.Fatalf("expected no active requests, got %d", client.ActiveRequests())
	}
}
