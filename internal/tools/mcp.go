package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/masaic-ai/open-responses-go/internal/apierror"
	"github.com/masaic-ai/open-responses-go/internal/config"
	"github.com/masaic-ai/open-responses-go/internal/domain"
)

// mcpCallTimeout bounds a single MCP tool invocation so one misbehaving
// server cannot stall the whole tool-call loop past MAX_STREAMING_TIMEOUT.
const mcpCallTimeout = 20 * time.Second

// mcpInvokeRequest is the JSON-RPC-shaped body posted to an MCP server's
// tool invocation endpoint.
type mcpInvokeRequest struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

type mcpInvokeResponse struct {
	Result string `json:"result"`
	Error  string `json:"error,omitempty"`
}

// NewMCPTool registers one MCP-proxied tool entry (spec §4.4) as a
// function-typed Tool whose executor forwards the call to cfg.ServerURL
// over HTTP and relays its "result" field back as the tool output.
func NewMCPTool(cfg config.MCPToolConfig, client *http.Client) (domain.Tool, Executor) {
	if client == nil {
		client = &http.Client{Timeout: mcpCallTimeout}
	}

	tool := domain.Tool{
		Type:        domain.ToolTypeFunction,
		Name:        cfg.Name,
		Description: cfg.Description,
	}

	executor := ExecutorFunc(func(ctx context.Context, argumentsJSON string) (string, error) {
		body, err := json.Marshal(mcpInvokeRequest{Name: cfg.Name, Arguments: json.RawMessage(argumentsJSON)})
		if err != nil {
			return "", apierror.Wrap(apierror.KindToolExecutionError, "failed to encode MCP request", err)
		}

		callCtx, cancel := context.WithTimeout(ctx, mcpCallTimeout)
		defer cancel()

		httpReq, err := http.NewRequestWithContext(callCtx, http.MethodPost, cfg.ServerURL, bytes.NewReader(body))
		if err != nil {
			return "", apierror.Wrap(apierror.KindToolExecutionError, "failed to build MCP request", err)
		}
		httpReq.Header.Set("Content-Type", "application/json")

		resp, err := client.Do(httpReq)
		if err != nil {
			return "", apierror.Wrap(apierror.KindToolExecutionError, fmt.Sprintf("MCP server %q unreachable", cfg.ServerURL), err)
		}
		defer resp.Body.Close()

		raw, err := io.ReadAll(resp.Body)
		if err != nil {
			return "", apierror.Wrap(apierror.KindToolExecutionError, "failed to read MCP response", err)
		}
		if resp.StatusCode >= 400 {
			return "", apierror.New(apierror.KindToolExecutionError, fmt.Sprintf("MCP server %q returned HTTP %d: %s", cfg.ServerURL, resp.StatusCode, raw))
		}

		var parsed mcpInvokeResponse
		if err := json.Unmarshal(raw, &parsed); err != nil {
			// Not every MCP server wraps its reply; fall back to the raw body.
			return string(raw), nil
		}
		if parsed.Error != "" {
			return "", apierror.New(apierror.KindToolExecutionError, fmt.Sprintf("MCP tool %q failed: %s", cfg.Name, parsed.Error))
		}
		return parsed.Result, nil
	})

	return tool, executor
}
