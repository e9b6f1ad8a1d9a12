// Package eventconverter implements the Event Converter (spec §4.3): a
// stateless mapping from one chat-completion chunk's choices[0] to zero or
// more typed Response stream events. It carries no turn state — ordering and
// item-id assignment is the streaming orchestrator's job (internal/streaming).
package eventconverter

import (
	"github.com/masaic-ai/open-responses-go/internal/domain"
)

// Convert maps a single ChatStreamChunk to its Response events, given the
// response id and output_index/item_id the streaming orchestrator has
// already assigned for this turn's text and tool-call items.
//
//   - Non-empty text delta -> response.output_text.delta
//   - Tool-call argument delta -> response.function_call_arguments.delta,
//     unless its index is in suppressedIndices (spec §4.8 step 3: events
//     belonging to an internal tool-call item are not useful to the caller)
//   - finish_reason=stop -> response.output_text.done is NOT emitted here;
//     the orchestrator synthesises it once it has the full accumulated text,
//     since a single chunk's delta is never the whole answer.
//   - All other chunks yield no events.
func Convert(chunk *domain.ChatStreamChunk, responseID, textItemID string, toolItemIDs map[int]string, suppressedIndices map[int]bool) []domain.Event {
	if len(chunk.Choices) == 0 {
		return nil
	}
	choice := chunk.Choices[0]
	delta := choice.Delta

	var events []domain.Event

	if delta.Content != "" {
		events = append(events, domain.Event{
			Type: domain.EventOutputTextDelta,
			Payload: domain.OutputTextDeltaPayload{
				ResponseID:   responseID,
				OutputIndex:  0,
				ContentIndex: 0,
				ItemID:       textItemID,
				Delta:        delta.Content,
			},
		})
	}

	for _, tc := range delta.ToolCalls {
		if tc.Function.Arguments == "" || suppressedIndices[tc.Index] {
			continue
		}
		events = append(events, domain.Event{
			Type: domain.EventFunctionCallArgumentsDelta,
			Payload: domain.FunctionCallArgumentsDeltaPayload{
				ResponseID:  responseID,
				OutputIndex: tc.Index,
				ItemID:      toolItemIDs[tc.Index],
				Delta:       tc.Function.Arguments,
			},
		})
	}

	return events
}
