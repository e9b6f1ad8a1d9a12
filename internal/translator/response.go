package translator

import (
	"log"

	"github.com/google/uuid"

	"github.com/masaic-ai/open-responses-go/internal/domain"
)

// ToResponse converts a non-streaming ChatResponse into a Response, flattening
// choices[0].message.content into an OutputMessage and each tool_calls[i]
// into a FunctionCall output item, per spec §4.2. It also returns the raw
// upstream finish_reason so the orchestrator can apply the loop-continuation
// rule in §4.7 ("finish_reason ≠ tool_calls OR no internal tools" ends the
// turn) without re-deriving it from Response.Status, which has already
// collapsed tool_calls into "completed" per spec's mapping table.
func ToResponse(responseID string, createdAt int64, requestModel string, chat *domain.ChatResponse) (*domain.Response, string) {
	resp := &domain.Response{
		ID:        responseID,
		Object:    "response",
		CreatedAt: createdAt,
		Model:     requestModel,
		Status:    domain.StatusCompleted,
		Usage: &domain.Usage{
			InputTokens:  chat.Usage.PromptTokens,
			OutputTokens: chat.Usage.CompletionTokens,
			TotalTokens:  chat.Usage.TotalTokens,
		},
	}

	if len(chat.Choices) == 0 {
		resp.Status = domain.StatusFailed
		resp.FailedDetails = &domain.FailedDetails{Code: "generation_error", Message: "upstream returned no choices"}
		return resp, ""
	}

	choice := chat.Choices[0]
	message := choice.Message

	if message.Content.Text != "" {
		resp.Output = append(resp.Output, domain.InputItem{
			Type:   domain.InputItemOutputMessage,
			ID:     "msg_" + uuid.NewString(),
			Role:   "assistant",
			Status: "completed",
			Content: []domain.ContentPart{{
				Type: domain.ContentText,
				Text: message.Content.Text,
			}},
		})
	}

	for _, call := range message.ToolCalls {
		resp.Output = append(resp.Output, domain.InputItem{
			Type:      domain.InputItemFunctionCall,
			CallID:    call.ID,
			Name:      call.Function.Name,
			Arguments: call.Function.Arguments,
		})
	}

	resp.Status = MapFinishReason(choice.FinishReason, len(message.ToolCalls) > 0)
	if resp.Status == domain.StatusIncomplete {
		resp.IncompleteDetails = &domain.IncompleteDetails{Reason: incompleteReason(choice.FinishReason)}
	}

	finishReason := ""
	if choice.FinishReason != nil {
		finishReason = *choice.FinishReason
	}
	return resp, finishReason
}

// MapFinishReason implements spec §4.2's finish_reason -> status mapping,
// plus §8's boundary behaviour ("finish_reason=tool_calls with zero tool
// calls" is treated as stop) and §9(c)'s fallback for unrecognised reasons.
func MapFinishReason(reason *string, hasToolCalls bool) domain.Status {
	if reason == nil {
		return domain.StatusCompleted
	}
	switch *reason {
	case domain.FinishStop:
		return domain.StatusCompleted
	case domain.FinishToolCalls:
		if !hasToolCalls {
			return domain.StatusCompleted
		}
		return domain.StatusCompleted
	case domain.FinishLength:
		return domain.StatusIncomplete
	case domain.FinishContentFilter:
		return domain.StatusIncomplete
	default:
		log.Printf("⚠️ unrecognised finish_reason %q, mapping to completed", *reason)
		return domain.StatusCompleted
	}
}

func incompleteReason(reason *string) domain.IncompleteReason {
	if reason == nil {
		return domain.IncompleteMaxOutputTokens
	}
	switch *reason {
	case domain.FinishContentFilter:
		return domain.IncompleteContentFilter
	default:
		return domain.IncompleteMaxOutputTokens
	}
}
