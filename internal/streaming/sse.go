package streaming

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/masaic-ai/open-responses-go/internal/domain"
)

// Writer emits typed SSE frames to an http.ResponseWriter, flushing after
// every event so the client sees deltas as they arrive — the point of
// streaming at all. Grounded on the teacher's sendStreamingResponse, which
// also writes "event:"/"data:" frames and flushes per event, generalised
// from a single reconstructed-then-replayed Anthropic message to this
// gateway's typed Response event set (spec §4.8, §6).
type Writer struct {
	w       http.ResponseWriter
	flusher http.Flusher
}

// NewWriter prepares w for SSE: sets the standard headers and grabs its
// Flusher. Returns an error if w does not support flushing.
func NewWriter(w http.ResponseWriter) (*Writer, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, fmt.Errorf("response writer does not support flushing")
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	return &Writer{w: w, flusher: flusher}, nil
}

// Send writes one Event as an SSE frame and flushes immediately.
func (sw *Writer) Send(event domain.Event) error {
	payload, err := json.Marshal(event.Payload)
	if err != nil {
		return fmt.Errorf("encoding event payload: %w", err)
	}
	if _, err := fmt.Fprintf(sw.w, "event: %s\ndata: %s\n\n", event.Type, payload); err != nil {
		return err
	}
	sw.flusher.Flush()
	return nil
}
