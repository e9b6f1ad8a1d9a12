package eventconverter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/masaic-ai/open-responses-go/internal/domain"
)

func TestConvert_TextDelta(t *testing.T) {
	chunk := &domain.ChatStreamChunk{
		Choices: []domain.ChatStreamChoice{{Delta: domain.ChatStreamDelta{Content: "hello"}}},
	}

	events := Convert(chunk, "resp_1", "item_1", nil, nil)

	require.Len(t, events, 1)
	assert.Equal(t, domain.EventOutputTextDelta, events[0].Type)
	payload := events[0].Payload.(domain.OutputTextDeltaPayload)
	assert.Equal(t, "hello", payload.Delta)
	assert.Equal(t, "item_1", payload.ItemID)
}

func TestConvert_ToolCallDelta(t *testing.T) {
	chunk := &domain.ChatStreamChunk{
		Choices: []domain.ChatStreamChoice{{
			Delta: domain.ChatStreamDelta{
				ToolCalls: []domain.ChatToolCall{{Index: 0, Function: domain.ChatToolCallFunction{Arguments: `{"a":1}`}}},
			},
		}},
	}
	ids := map[int]string{0: "fc_1"}

	events := Convert(chunk, "resp_1", "", ids, nil)

	require.Len(t, events, 1)
	assert.Equal(t, domain.EventFunctionCallArgumentsDelta, events[0].Type)
	payload := events[0].Payload.(domain.FunctionCallArgumentsDeltaPayload)
	assert.Equal(t, `{"a":1}`, payload.Delta)
	assert.Equal(t, "fc_1", payload.ItemID)
}

func TestConvert_SuppressesInternalToolCallIndex(t *testing.T) {
	chunk := &domain.ChatStreamChunk{
		Choices: []domain.ChatStreamChoice{{
			Delta: domain.ChatStreamDelta{
				ToolCalls: []domain.ChatToolCall{{Index: 0, Function: domain.ChatToolCallFunction{Arguments: `{"a":1}`}}},
			},
		}},
	}
	ids := map[int]string{0: "fc_1"}

	events := Convert(chunk, "resp_1", "", ids, map[int]bool{0: true})

	assert.Empty(t, events)
}

func TestConvert_EmptyChunkYieldsNoEvents(t *testing.T) {
	chunk := &domain.ChatStreamChunk{Choices: []domain.ChatStreamChoice{{}}}
	assert.Empty(t, Convert(chunk, "resp_1", "item_1", nil, nil))
}

func TestConvert_NoChoicesYieldsNoEvents(t *testing.T) {
	chunk := &domain.ChatStreamChunk{}
	assert.Empty(t, Convert(chunk, "resp_1", "item_1", nil, nil))
}

func TestConvert_TextAndToolCallOrdering(t *testing.T) {
	chunk := &domain.ChatStreamChunk{
		Choices: []domain.ChatStreamChoice{{
			Delta: domain.ChatStreamDelta{
				Content:   "partial",
				ToolCalls: []domain.ChatToolCall{{Index: 0, Function: domain.ChatToolCallFunction{Arguments: "args"}}},
			},
		}},
	}
	ids := map[int]string{0: "fc_1"}

	events := Convert(chunk, "resp_1", "item_1", ids, nil)

	require.Len(t, events, 2)
	assert.Equal(t, domain.EventOutputTextDelta, events[0].Type)
	assert.Equal(t, domain.EventFunctionCallArgumentsDelta, events[1].Type)
}
