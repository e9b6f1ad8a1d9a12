package streaming

import "github.com/masaic-ai/open-responses-go/internal/domain"

// turnAccumulator tracks one in-flight model turn's text and tool-call
// state so the assembler can synthesize *.done events and a final Response
// without ever touching a global/shared map — one accumulator per
// connection, per spec §9 ("per-connection accumulators, never global
// maps"). Generalised from the teacher's proxy.ReconstructResponseFromChunks
// arithmetic (contentParts join, indexed tool-call accumulation).
type turnAccumulator struct {
	textItemID string
	text       string
	textOpened bool

	toolItemIDs   map[int]string
	toolCallIDs   map[int]string
	toolNames     map[int]string
	toolArguments map[int]string
	toolOrder     []int

	// toolClassified/toolInternal implement the internal_tool_item_ids
	// accumulator from spec §9: once a tool call's name is known, it is
	// classified exactly once against the registry, and internal items have
	// their streamed events suppressed from then on (spec §4.8 step 3).
	toolClassified map[int]bool
	toolInternal   map[int]bool

	finishReason string
}

func newTurnAccumulator(textItemID string) *turnAccumulator {
	return &turnAccumulator{
		textItemID:     textItemID,
		toolItemIDs:    make(map[int]string),
		toolCallIDs:    make(map[int]string),
		toolNames:      make(map[int]string),
		toolArguments:  make(map[int]string),
		toolClassified: make(map[int]bool),
		toolInternal:   make(map[int]bool),
	}
}

// classifyInternalToolCalls classifies every tool-call index whose name has
// become known but hasn't been checked against isInternal yet. Safe to call
// after every chunk; a no-op once every known index is classified.
func (a *turnAccumulator) classifyInternalToolCalls(isInternal func(name string) bool) {
	for idx, name := range a.toolNames {
		if a.toolClassified[idx] || name == "" {
			continue
		}
		a.toolClassified[idx] = true
		a.toolInternal[idx] = isInternal(name)
	}
}

// accumulate folds one chunk's delta into the accumulator and returns the
// tool-call indices newly seen in this chunk, so the caller can emit
// response.output_item.added exactly once per index.
func (a *turnAccumulator) accumulate(chunk *domain.ChatStreamChunk, nextItemID func() string) (newToolIndices []int) {
	if len(chunk.Choices) == 0 {
		return nil
	}
	choice := chunk.Choices[0]
	delta := choice.Delta

	if delta.Content != "" {
		a.text += delta.Content
	}

	for _, tc := range delta.ToolCalls {
		if _, seen := a.toolItemIDs[tc.Index]; !seen {
			a.toolItemIDs[tc.Index] = nextItemID()
			a.toolOrder = append(a.toolOrder, tc.Index)
			newToolIndices = append(newToolIndices, tc.Index)
		}
		if tc.ID != "" {
			a.toolCallIDs[tc.Index] = tc.ID
		}
		if tc.Function.Name != "" {
			a.toolNames[tc.Index] = tc.Function.Name
		}
		a.toolArguments[tc.Index] += tc.Function.Arguments
	}

	if choice.FinishReason != nil {
		a.finishReason = *choice.FinishReason
	}

	return newToolIndices
}

// functionCalls renders the accumulated tool calls as ordered InputItems,
// for appending to turn history once the stream ends.
func (a *turnAccumulator) functionCalls() []domain.InputItem {
	items := make([]domain.InputItem, 0, len(a.toolOrder))
	for _, idx := range a.toolOrder {
		items = append(items, domain.InputItem{
			Type:      domain.InputItemFunctionCall,
			CallID:    a.toolCallIDs[idx],
			Name:      a.toolNames[idx],
			Arguments: a.toolArguments[idx],
		})
	}
	return items
}
