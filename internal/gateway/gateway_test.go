package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ledgerchat/ledgerchat/internal/config"
)

func openAIServer(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv
}

func newTestClient(t *testing.T, endpoint string) *Client {
	t.Helper()
	c, err := New(config.GatewayConfig{
		Provider: "openai",
		APIKey:   "test-key",
		Endpoint: endpoint,
		Model:    "test-model",
		Timeout:  2 * time.Second,
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return c
}

func TestComplete_ReturnsContent(t *testing.T) {
	srv := openAIServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("path = %q, want /chat/completions", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("Authorization = %q", got)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]string{"content": `{"entity_type":"expense"}`}},
			},
		})
	})

	c := newTestClient(t, srv.URL)
	got, err := c.Complete(context.Background(), "system", "user", nil)
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if got != `{"entity_type":"expense"}` {
		t.Errorf("Complete() = %q", got)
	}
}

func TestComplete_MissingAPIKeyIsConfiguration(t *testing.T) {
	c, err := New(config.GatewayConfig{Provider: "openai", Model: "m"})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	_, err = c.Complete(context.Background(), "system", "user", nil)
	if !IsConfiguration(err) {
		t.Errorf("Complete() without key error = %v, want configuration kind", err)
	}
}

func TestComplete_AuthFailureNotRetried(t *testing.T) {
	calls := 0
	srv := openAIServer(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusUnauthorized)
	})

	c := newTestClient(t, srv.URL)
	_, err := c.Complete(context.Background(), "system", "user", nil)

	var ge *Error
	if !errors.As(err, &ge) || ge.Kind != KindAuth {
		t.Fatalf("Complete() error = %v, want auth kind", err)
	}
	if calls != 1 {
		t.Errorf("Auth failure hit the provider %d times, want exactly 1", calls)
	}
}

func TestComplete_TransientFailureRetriedOnce(t *testing.T) {
	calls := 0
	srv := openAIServer(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]string{"content": "ok"}},
			},
		})
	})

	c := newTestClient(t, srv.URL)
	got, err := c.Complete(context.Background(), "system", "user", nil)
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if got != "ok" {
		t.Errorf("Complete() = %q, want %q", got, "ok")
	}
	if calls != 2 {
		t.Errorf("Provider hit %d times, want 2 (one retry)", calls)
	}
}

func TestComplete_PersistentTransientFailureGivesUp(t *testing.T) {
	calls := 0
	srv := openAIServer(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	c := newTestClient(t, srv.URL)
	_, err := c.Complete(context.Background(), "system", "user", nil)
	if err == nil {
		t.Fatal("Complete() should fail when every attempt fails")
	}
	if calls != 2 {
		t.Errorf("Provider hit %d times, want 2 (initial + one retry)", calls)
	}
}

func TestComplete_EmptyChoicesIsMalformed(t *testing.T) {
	srv := openAIServer(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"choices": []any{}})
	})

	c := newTestClient(t, srv.URL)
	_, err := c.Complete(context.Background(), "system", "user", nil)

	var ge *Error
	if !errors.As(err, &ge) || ge.Kind != KindMalformed {
		t.Errorf("Complete() error = %v, want malformed kind", err)
	}
}

func TestNew_UnknownProvider(t *testing.T) {
	if _, err := New(config.GatewayConfig{Provider: "llama-farm"}); err == nil {
		t.Error("New() with unknown provider should fail")
	}
}

