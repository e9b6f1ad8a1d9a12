// Package upstream implements the HTTP client that actually talks to a
// resolved Chat Completions endpoint, both non-streaming and streaming.
// Grounded on the teacher's proxy.proxyToProviderEndpoint (JSON POST with a
// bearer header) and proxy.ProcessStreamingResponse (SSE line scanning with
// a widened buffer for large tool-call argument chunks).
package upstream

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/masaic-ai/open-responses-go/internal/domain"
)

// Client issues Chat Completions requests against an already-resolved
// provider endpoint. It carries no provider-specific knowledge; the
// Provider Router has already folded that into baseURL/model/token.
type Client struct {
	httpClient *http.Client
}

// New wraps httpClient (nil selects http.DefaultClient plus no timeout
// override — callers are expected to bound upstream calls via context
// deadlines derived from MAX_STREAMING_TIMEOUT, per spec §4.7/§4.8).
func New(httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{httpClient: httpClient}
}

// Send performs a single non-streaming chat/completions call.
func (c *Client) Send(ctx context.Context, baseURL, authToken string, req *domain.ChatRequest) (*domain.ChatResponse, error) {
	req.Stream = false
	httpResp, err := c.do(ctx, baseURL, authToken, req)
	if err != nil {
		return nil, err
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode >= 400 {
		return nil, statusError(httpResp)
	}

	var chatResp domain.ChatResponse
	if err := json.NewDecoder(httpResp.Body).Decode(&chatResp); err != nil {
		return nil, fmt.Errorf("decoding chat completion response: %w", err)
	}
	return &chatResp, nil
}

// StreamEvent is one item read off an upstream SSE stream: either a decoded
// chunk or a terminal error. Exactly one of Chunk/Err is set; the channel
// closes after the first Err or after the stream ends cleanly.
type StreamEvent struct {
	Chunk *domain.ChatStreamChunk
	Err   error
}

// Stream performs a streaming chat/completions call and returns a channel
// of decoded chunks. The channel is closed when the upstream sends
// "data: [DONE]", the body is exhausted, or ctx is cancelled.
func (c *Client) Stream(ctx context.Context, baseURL, authToken string, req *domain.ChatRequest) (<-chan StreamEvent, error) {
	req.Stream = true
	httpResp, err := c.do(ctx, baseURL, authToken, req)
	if err != nil {
		return nil, err
	}
	if httpResp.StatusCode >= 400 {
		defer httpResp.Body.Close()
		return nil, statusError(httpResp)
	}

	events := make(chan StreamEvent)
	go func() {
		defer close(events)
		defer httpResp.Body.Close()

		scanner := bufio.NewScanner(httpResp.Body)
		scanner.Buffer(make([]byte, 64*1024), 1024*1024)

		for scanner.Scan() {
			select {
			case <-ctx.Done():
				events <- StreamEvent{Err: ctx.Err()}
				return
			default:
			}

			line := scanner.Text()
			if line == "" || !strings.HasPrefix(line, "data: ") {
				continue
			}
			payload := strings.TrimPrefix(line, "data: ")
			if payload == "[DONE]" {
				return
			}

			var chunk domain.ChatStreamChunk
			if err := json.Unmarshal([]byte(payload), &chunk); err != nil {
				events <- StreamEvent{Err: fmt.Errorf("decoding stream chunk: %w", err)}
				return
			}
			events <- StreamEvent{Chunk: &chunk}
		}
		if err := scanner.Err(); err != nil {
			events <- StreamEvent{Err: fmt.Errorf("reading upstream stream: %w", err)}
		}
	}()

	return events, nil
}

func (c *Client) do(ctx context.Context, baseURL, authToken string, req *domain.ChatRequest) (*http.Response, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshalling chat request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimRight(baseURL, "/")+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("building upstream request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+authToken)

	return c.httpClient.Do(httpReq)
}

func statusError(resp *http.Response) error {
	var body bytes.Buffer
	_, _ = body.ReadFrom(resp.Body)
	return fmt.Errorf("upstream returned HTTP %d: %s", resp.StatusCode, body.String())
}
