package obslog

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// ConversationLogger writes one JSONL entry per request/response/tool-call,
// adapted from the teacher's logger.ConversationLogger (SPEC_FULL §4):
// opt-in, full-fidelity conversation logging keyed by response id rather
// than the teacher's session id, since this gateway's unit of conversation
// is a Response rather than a long-lived proxy session.
type ConversationLogger struct {
	mu            sync.Mutex
	file          *os.File
	maskSensitive bool
}

// NewConversationLogger creates (or appends to) <logDir>/conversations.jsonl.
func NewConversationLogger(logDir string, maskSensitive bool) (*ConversationLogger, error) {
	if err := os.MkdirAll(logDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating conversation log dir: %w", err)
	}
	file, err := os.OpenFile(filepath.Join(logDir, "conversations.jsonl"), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("opening conversation log: %w", err)
	}
	return &ConversationLogger{file: file, maskSensitive: maskSensitive}, nil
}

type conversationEntry struct {
	Timestamp  time.Time `json:"timestamp"`
	ResponseID string    `json:"response_id"`
	Kind       string    `json:"kind"` // request | response | tool_call | correction
	Payload    any       `json:"payload"`
}

func (c *ConversationLogger) write(entry conversationEntry) {
	if c == nil {
		return
	}
	entry.Timestamp = time.Now()
	line, err := json.Marshal(entry)
	if err != nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	_, _ = c.file.Write(append(line, '\n'))
}

// LogRequest records an inbound ResponseRequest.
func (c *ConversationLogger) LogRequest(responseID string, request any) {
	c.write(conversationEntry{ResponseID: responseID, Kind: "request", Payload: c.maybeMask(request)})
}

// LogResponse records the terminal Response for responseID.
func (c *ConversationLogger) LogResponse(responseID string, response any) {
	c.write(conversationEntry{ResponseID: responseID, Kind: "response", Payload: response})
}

// LogToolCall records one tool invocation and its result.
func (c *ConversationLogger) LogToolCall(responseID, toolName string, arguments, result any) {
	c.write(conversationEntry{ResponseID: responseID, Kind: "tool_call", Payload: map[string]any{
		"tool": toolName, "arguments": arguments, "result": result,
	}})
}

// LogCorrection records a reconciler/loop-detector intervention.
func (c *ConversationLogger) LogCorrection(responseID, reason string) {
	c.write(conversationEntry{ResponseID: responseID, Kind: "correction", Payload: reason})
}

// Close flushes and closes the log file.
func (c *ConversationLogger) Close() error {
	if c == nil || c.file == nil {
		return nil
	}
	return c.file.Close()
}

// maybeMask redacts an Authorization-bearing payload before it's written, if
// maskSensitive is set. Best-effort: only applies to map[string]any shapes,
// which is how inbound requests are logged.
func (c *ConversationLogger) maybeMask(payload any) any {
	if !c.maskSensitive {
		return payload
	}
	m, ok := payload.(map[string]any)
	if !ok {
		return payload
	}
	clone := make(map[string]any, len(m))
	for k, v := range m {
		if k == "authorization" || k == "api_key" {
			clone[k] = "***REDACTED***"
			continue
		}
		clone[k] = v
	}
	return clone
}
