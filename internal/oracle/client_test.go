package oracle

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/pkravets/thema/internal/cache"
	"github.com/pkravets/thema/internal/model"
)

func newTestClient(t *testing.T, serverURL string) *HTTPClient {
	t.Helper()
	client, err := NewHTTPClient(model.OracleConfig{
		APIKey:  "test-key",
		BaseURL: serverURL,
		Timeout: 5 * time.Second,
	})
	if err != nil {
		t.Fatalf("NewHTTPClient: %v", err)
	}
	return client
}

func chatCompletionBody(content string) string {
	return fmt.Sprintf(`{"choices": [{"message": {"role": "assistant", "content": %q}}]}`, content)
}

func TestHTTPClient_Chat_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("Expected bearer auth header, got %q", got)
		}
		if !strings.HasSuffix(r.URL.Path, "/chat/completions") {
			t.Errorf("Unexpected path: %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, chatCompletionBody(`{"open_code": "压力大"}`))
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)

	reply, err := client.Chat(context.Background(), ChatRequest{
		Model:  "deepseek-chat",
		System: "system prompt",
		User:   "user content",
	})
	if err != nil {
		t.Fatalf("Expected success, got %v", err)
	}
	if !strings.Contains(reply, "压力大") {
		t.Errorf("Unexpected reply: %q", reply)
	}
}

func TestHTTPClient_Chat_HTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)

	_, err := client.Chat(context.Background(), ChatRequest{Model: "m", User: "u"})
	if err == nil {
		t.Fatal("Expected error on 500 response")
	}

	var callErr *CallError
	if !errors.As(err, &callErr) {
		t.Errorf("Expected *CallError, got %T", err)
	}
}

func TestHTTPClient_Chat_EmptyChoices(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"choices": []}`)
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)

	_, err := client.Chat(context.Background(), ChatRequest{Model: "m", User: "u"})
	if err == nil {
		t.Fatal("Expected error when response has no choices")
	}

	var callErr *CallError
	if !errors.As(err, &callErr) {
		t.Errorf("Expected *CallError, got %T", err)
	}
}

func TestNewHTTPClient_RequiresAPIKey(t *testing.T) {
	if _, err := NewHTTPClient(model.OracleConfig{}); err == nil {
		t.Error("Expected error when API key is missing")
	}
}

// countingClient records calls and returns a scripted reply
type countingClient struct {
	calls int
	reply string
	err   error
}

func (c *countingClient) Chat(ctx context.Context, req ChatRequest) (string, error) {
	c.calls++
	if c.err != nil {
		return "", c.err
	}
	return c.reply, nil
}

func TestCachedClient_SecondCallHitsCache(t *testing.T) {
	inner := &countingClient{reply: "cached reply"}
	client := NewCachedClient(inner, cache.NewMemoryCache(time.Minute, time.Minute), time.Minute)

	req := ChatRequest{Model: "m", System: "s", User: "u"}

	for i := 0; i < 2; i++ {
		reply, err := client.Chat(context.Background(), req)
		if err != nil {
			t.Fatalf("Call %d: %v", i+1, err)
		}
		if reply != "cached reply" {
			t.Errorf("Call %d: unexpected reply %q", i+1, reply)
		}
	}

	if inner.calls != 1 {
		t.Errorf("Expected 1 upstream call, got %d", inner.calls)
	}
}

func TestCachedClient_ErrorsNotCached(t *testing.T) {
	inner := &countingClient{err: &CallError{Err: errors.New("boom")}}
	client := NewCachedClient(inner, cache.NewMemoryCache(time.Minute, time.Minute), time.Minute)

	req := ChatRequest{Model: "m", User: "u"}

	for i := 0; i < 2; i++ {
		if _, err := client.Chat(context.Background(), req); err == nil {
			t.Fatalf("Call %d: expected error", i+1)
		}
	}

	if inner.calls != 2 {
		t.Errorf("Expected failures to pass through both times, got %d calls", inner.calls)
	}
}

func TestCachedClient_DistinctRequestsDistinctKeys(t *testing.T) {
	inner := &countingClient{reply: "r"}
	client := NewCachedClient(inner, cache.NewMemoryCache(time.Minute, time.Minute), time.Minute)

	_, _ = client.Chat(context.Background(), ChatRequest{Model: "m", User: "first"})
	_, _ = client.Chat(context.Background(), ChatRequest{Model: "m", User: "second"})

	if inner.calls != 2 {
		t.Errorf("Expected distinct requests to miss the cache, got %d calls", inner.calls)
	}
}
