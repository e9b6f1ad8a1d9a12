package streaming

import (
	"bufio"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/masaic-ai/open-responses-go/internal/domain"
	"github.com/masaic-ai/open-responses-go/internal/providerrouter"
	"github.com/masaic-ai/open-responses-go/internal/reconciler"
	"github.com/masaic-ai/open-responses-go/internal/store"
	"github.com/masaic-ai/open-responses-go/internal/tools"
	"github.com/masaic-ai/open-responses-go/internal/upstream"
)

func sseChunkServer(t *testing.T, chunks []string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		flusher := w.(http.Flusher)
		for _, c := range chunks {
			fmt.Fprintf(w, "data: %s\n\n", c)
			flusher.Flush()
		}
		fmt.Fprint(w, "data: [DONE]\n\n")
		flusher.Flush()
	}))
}

func TestStreamingOrchestrator_SimpleTextCompletion(t *testing.T) {
	srv := sseChunkServer(t, []string{
		`{"id":"c1","choices":[{"index":0,"delta":{"role":"assistant"}}]}`,
		`{"id":"c1","choices":[{"index":0,"delta":{"content":"hel"}}]}`,
		`{"id":"c1","choices":[{"index":0,"delta":{"content":"lo"},"finish_reason":"stop"}]}`,
	})
	defer srv.Close()

	router := providerrouter.New(srv.URL, nil)
	orch := New(Config{
		Router:       router,
		Client:       upstream.New(srv.Client()),
		Reconciler:   reconciler.New(tools.NewRegistry(), 10),
		Store:        store.New(store.NewMemoryEngine()),
		MaxToolCalls: 10,
		Timeout:      5 * time.Second,
	})

	rec := httptest.NewRecorder()
	sw, err := NewWriter(rec)
	require.NoError(t, err)

	httpReq := httptest.NewRequest(http.MethodPost, "http://gateway.local/v1/responses", nil)
	httpReq.Header.Set("Authorization", "Bearer test-token")

	req := &domain.ResponseRequest{Model: "gpt-4o-mini", Input: textInput("hi"), Stream: true}
	require.NoError(t, orch.HandleResponse(httpReq, req, sw))

	body := rec.Body.String()
	assert.Contains(t, body, "response.created")
	assert.Contains(t, body, "response.output_text.delta")
	assert.Contains(t, body, "response.output_text.done")
	assert.Contains(t, body, "response.completed")
	assert.Contains(t, body, "hello")

	eventCount := countSSEEvents(t, body)
	assert.Greater(t, eventCount, 0)
}

func countSSEEvents(t *testing.T, body string) int {
	t.Helper()
	scanner := bufio.NewScanner(strings.NewReader(body))
	count := 0
	for scanner.Scan() {
		if strings.HasPrefix(scanner.Text(), "event: ") {
			count++
		}
	}
	return count
}

func textInput(text string) domain.Input {
	var in domain.Input
	_ = in.UnmarshalJSON([]byte(`"` + text + `"`))
	return in
}

func TestStreamingOrchestrator_InvalidConfigurationEmitsResponseError(t *testing.T) {
	router := providerrouter.New("", nil) // no fallback key, no Authorization header below
	orch := New(Config{
		Router:       router,
		Client:       upstream.New(nil),
		Reconciler:   reconciler.New(tools.NewRegistry(), 10),
		Store:        store.New(store.NewMemoryEngine()),
		MaxToolCalls: 10,
		Timeout:      5 * time.Second,
	})

	rec := httptest.NewRecorder()
	sw, err := NewWriter(rec)
	require.NoError(t, err)

	httpReq := httptest.NewRequest(http.MethodPost, "http://gateway.local/v1/responses", nil)
	req := &domain.ResponseRequest{Model: "gpt-4o-mini", Input: textInput("hi"), Stream: true}

	require.NoError(t, orch.HandleResponse(httpReq, req, sw))
	assert.Contains(t, rec.Body.String(), "response.error")
}

func TestStreamingOrchestrator_SuppressesInternalToolCallEvents(t *testing.T) {
	round := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		flusher := w.(http.Flusher)
		round++
		var chunks []string
		if round == 1 {
			chunks = []string{
				`{"id":"c1","choices":[{"index":0,"delta":{"tool_calls":[{"index":0,"id":"call_1","type":"function","function":{"name":"echo","arguments":""}}]}}]}`,
				`{"id":"c1","choices":[{"index":0,"delta":{"tool_calls":[{"index":0,"function":{"arguments":"{\"x\":1}"}}]},"finish_reason":"tool_calls"}]}`,
			}
		} else {
			chunks = []string{
				`{"id":"c2","choices":[{"index":0,"delta":{"content":"done"},"finish_reason":"stop"}]}`,
			}
		}
		for _, c := range chunks {
			fmt.Fprintf(w, "data: %s\n\n", c)
			flusher.Flush()
		}
		fmt.Fprint(w, "data: [DONE]\n\n")
		flusher.Flush()
	}))
	defer srv.Close()

	registry := tools.NewRegistry()
	registry.Register(domain.Tool{Type: domain.ToolTypeFunction, Name: "echo"}, tools.ExecutorFunc(
		func(ctx context.Context, argumentsJSON string) (string, error) {
			return "ok", nil
		},
	))

	router := providerrouter.New(srv.URL, nil)
	orch := New(Config{
		Router:       router,
		Client:       upstream.New(srv.Client()),
		Reconciler:   reconciler.New(registry, 10),
		Store:        store.New(store.NewMemoryEngine()),
		MaxToolCalls: 10,
		Timeout:      5 * time.Second,
	})

	rec := httptest.NewRecorder()
	sw, err := NewWriter(rec)
	require.NoError(t, err)

	httpReq := httptest.NewRequest(http.MethodPost, "http://gateway.local/v1/responses", nil)
	httpReq.Header.Set("Authorization", "Bearer test-token")

	req := &domain.ResponseRequest{Model: "gpt-4o-mini", Input: textInput("use echo"), Stream: true}
	require.NoError(t, orch.HandleResponse(httpReq, req, sw))

	body := rec.Body.String()
	assert.NotContains(t, body, "response.function_call_arguments.delta")
	assert.NotContains(t, body, "response.function_call_arguments.done")
	assert.Contains(t, body, "response.completed")
	assert.Contains(t, body, "done")
}
