package security

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	apperrors "go-menu-analyzer/internal/errors"
)

func signedRequestFor(t *testing.T, serverURL string) *SignedRequest {
	t.Helper()
	parsed, err := url.Parse(serverURL + "/v1/menu/analyze")
	if err != nil {
		t.Fatalf("parse url: %v", err)
	}
	headers := http.Header{}
	headers.Set("Content-Type", "application/json")
	return &SignedRequest{
		Method:  http.MethodPost,
		URL:     parsed,
		Headers: headers,
		Body:    []byte(`{}`),
	}
}

func newTestClient() *Client {
	return NewClient(nil, NewRateLimiter(100, time.Minute))
}

func TestSendSuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"dishes":[],"confidence":0.9}`))
	}))
	defer server.Close()

	body, status, err := newTestClient().Send(context.Background(), signedRequestFor(t, server.URL), 0)
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if status != http.StatusOK {
		t.Errorf("status = %d", status)
	}
	if string(body) != `{"dishes":[],"confidence":0.9}` {
		t.Errorf("body = %q", body)
	}
}

func TestSendRetriesServerErrors(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	_, _, err := newTestClient().Send(context.Background(), signedRequestFor(t, server.URL), 2)
	if err != nil {
		t.Fatalf("Send should have succeeded on retry: %v", err)
	}
	if got := atomic.LoadInt32(&calls); got != 2 {
		t.Errorf("server called %d times, want 2", got)
	}
}

func TestSendDoesNotRetryClientErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		kind   apperrors.ErrorKind
	}{
		{"bad request", http.StatusBadRequest, apperrors.KindValidation},
		{"unauthorized", http.StatusUnauthorized, apperrors.KindConfiguration},
		{"forbidden", http.StatusForbidden, apperrors.KindTransport},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls int32
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				atomic.AddInt32(&calls, 1)
				w.WriteHeader(tt.status)
			}))
			defer server.Close()

			_, _, err := newTestClient().Send(context.Background(), signedRequestFor(t, server.URL), 3)
			if !apperrors.IsKind(err, tt.kind) {
				t.Errorf("error = %v, want kind %s", err, tt.kind)
			}
			if got := atomic.LoadInt32(&calls); got != 1 {
				t.Errorf("server called %d times, want 1 (no retry)", got)
			}
		})
	}
}

func TestSendExhaustsRetries(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	_, _, err := newTestClient().Send(context.Background(), signedRequestFor(t, server.URL), 1)
	if !apperrors.IsKind(err, apperrors.KindNetwork) {
		t.Errorf("exhausted retries should surface a network error, got %v", err)
	}
	if got := atomic.LoadInt32(&calls); got != 2 {
		t.Errorf("server called %d times, want 2", got)
	}
}

func TestSendRateLimited(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	limiter := NewRateLimiter(1, time.Minute)
	client := NewClient(nil, limiter)
	req := signedRequestFor(t, server.URL)

	if _, _, err := client.Send(context.Background(), req, 0); err != nil {
		t.Fatalf("first request: %v", err)
	}
	_, _, err := client.Send(context.Background(), req, 0)
	if !apperrors.IsKind(err, apperrors.KindRateLimit) {
		t.Errorf("second request should be rate limited, got %v", err)
	}
}

func TestSendRetriesConsumeLimiterSlots(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	limiter := NewRateLimiter(1, time.Minute)
	client := NewClient(nil, limiter)

	_, _, err := client.Send(context.Background(), signedRequestFor(t, server.URL), 3)
	if !apperrors.IsKind(err, apperrors.KindRateLimit) {
		t.Errorf("exhausted window should surface a rate limit error, got %v", err)
	}
	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Errorf("server called %d times, want 1 (retry must consume a window slot)", got)
	}
}

func TestSendRejectsUnexpectedContentType(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/octet-stream")
		w.Write([]byte{0x00, 0x01})
	}))
	defer server.Close()

	_, _, err := newTestClient().Send(context.Background(), signedRequestFor(t, server.URL), 0)
	if !apperrors.IsKind(err, apperrors.KindTransport) {
		t.Errorf("unexpected content type should be a transport error, got %v", err)
	}
}

func TestSendCancelledContext(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(2 * time.Second)
	}))
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, _, err := newTestClient().Send(ctx, signedRequestFor(t, server.URL), 0)
	if !apperrors.IsKind(err, apperrors.KindTimeout) {
		t.Errorf("deadline exceeded should be a timeout error, got %v", err)
	}
}

func TestSendDoesNotFollowRedirects(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "http://elsewhere.invalid/", http.StatusFound)
	}))
	defer server.Close()

	_, _, err := newTestClient().Send(context.Background(), signedRequestFor(t, server.URL), 0)
	if err == nil {
		t.Fatal("redirect response should not be treated as success")
	}
}
