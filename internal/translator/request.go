// Package translator implements the Parameter Translator (spec §4.2): a
// pure, bidirectional mapper between the Responses schema and the
// Chat-Completions schema. Generalised from the teacher's
// proxy.TransformAnthropicToOpenAI / TransformOpenAIToAnthropic pair, which
// performed the analogous Anthropic<->OpenAI translation.
package translator

import (
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/masaic-ai/open-responses-go/internal/apierror"
	"github.com/masaic-ai/open-responses-go/internal/domain"
)

// ToChatRequest converts a ResponseRequest plus its fully-resolved input
// history (after previous_response_id chaining, spec §3) into a ChatRequest
// ready to send upstream. model is the provider-resolved model name (with
// any "provider@"/"url@" prefix already stripped by the Provider Router).
func ToChatRequest(req *domain.ResponseRequest, history []domain.InputItem, model string) (*domain.ChatRequest, error) {
	if len(history) == 0 {
		return nil, apierror.New(apierror.KindInvalidRequest, "input must not be empty")
	}

	var messages []domain.ChatMessage
	if req.Instructions != "" {
		messages = append(messages, domain.ChatMessage{Role: "system", Content: domain.TextOnly(req.Instructions)})
	}

	for _, item := range history {
		msgs, err := inputItemToMessages(item)
		if err != nil {
			return nil, err
		}
		messages = append(messages, msgs...)
	}

	tools, err := translateTools(req.Tools)
	if err != nil {
		return nil, err
	}

	out := &domain.ChatRequest{
		Model:             model,
		Messages:          messages,
		Tools:             tools,
		ToolChoice:        translateToolChoice(req.ToolChoice),
		Temperature:       req.Temperature,
		TopP:              req.TopP,
		MaxTokens:         req.MaxOutputTokens,
		ParallelToolCalls: req.ParallelToolCalls,
		Stream:            req.Stream,
	}

	if req.Text != nil && req.Text.Format != nil && req.Text.Format.Type == "json_schema" {
		if req.Text.Format.JSONSchema == nil {
			return nil, apierror.New(apierror.KindInvalidRequest, "text.format.json_schema requires json_schema")
		}
		if err := validateJSONSchema(req.Text.Format.JSONSchema.Schema); err != nil {
			return nil, apierror.Wrap(apierror.KindInvalidRequest, "invalid json_schema", err).WithParam("text.format.json_schema.schema")
		}
		out.ResponseFormat = &domain.ResponseFormat{Type: "json_schema", JSONSchema: req.Text.Format.JSONSchema}
	}

	if req.Reasoning != nil && req.Reasoning.Effort != "" {
		out.ReasoningEffort = req.Reasoning.Effort
	}

	// previous_response_id, Truncation, and Include are consumed by the
	// caller before this function runs (history already reflects chaining)
	// and are never forwarded upstream, per spec §4.2.

	return out, nil
}

func inputItemToMessages(item domain.InputItem) ([]domain.ChatMessage, error) {
	switch item.Type {
	case domain.InputItemEasyMessage:
		return []domain.ChatMessage{{Role: item.Role, Content: domain.TextOnly(item.Text)}}, nil

	case domain.InputItemMessage, domain.InputItemOutputMessage:
		role := item.Role
		if item.Type == domain.InputItemOutputMessage {
			role = "assistant"
		}
		parts, allText, joined := translateContentParts(item.Content)
		if allText {
			return []domain.ChatMessage{{Role: role, Content: domain.TextOnly(joined)}}, nil
		}
		return []domain.ChatMessage{{Role: role, Content: domain.ChatContent{Parts: parts}}}, nil

	case domain.InputItemFunctionCall:
		return []domain.ChatMessage{{
			Role: "assistant",
			ToolCalls: []domain.ChatToolCall{{
				ID:   item.CallID,
				Type: "function",
				Function: domain.ChatToolCallFunction{
					Name:      item.Name,
					Arguments: item.Arguments,
				},
			}},
		}}, nil

	case domain.InputItemFunctionCallOutput:
		return []domain.ChatMessage{{
			Role:       "tool",
			Content:    domain.TextOnly(item.Output),
			ToolCallID: item.CallID,
		}}, nil

	default:
		return nil, apierror.New(apierror.KindInvalidRequest, fmt.Sprintf("unsupported input item type %q", item.Type))
	}
}

// translateContentParts converts InputItem content parts into Chat
// Completions content parts. When every part is plain text it also returns
// the joined text so the caller can emit a single-string message body,
// matching how most providers prefer a bare string over a one-element array.
func translateContentParts(parts []domain.ContentPart) (out []domain.ChatContentPart, allText bool, joined string) {
	allText = true
	for _, p := range parts {
		switch p.Type {
		case domain.ContentText:
			out = append(out, domain.ChatContentPart{Type: "text", Text: p.Text})
			joined += p.Text
		case domain.ContentImageURL:
			allText = false
			out = append(out, domain.ChatContentPart{Type: "image_url", ImageURL: &domain.ChatImageURL{URL: p.ImageURL, Detail: p.Detail}})
		case domain.ContentFile:
			allText = false
			out = append(out, domain.ChatContentPart{Type: "file", File: &domain.ChatFilePart{FileID: p.FileID, FileData: p.FileData, Filename: p.Filename}})
		}
	}
	if len(parts) == 0 {
		allText = true
	}
	return out, allText, joined
}

func translateTools(tools []domain.Tool) ([]domain.ChatTool, error) {
	seen := make(map[string]bool, len(tools))
	var out []domain.ChatTool
	for _, t := range tools {
		if t.IsBuiltin() {
			// Builtin tools (e.g. file_search) are resolved and executed
			// locally by the Tool Registry (spec §4.4) — they are never
			// forwarded to the upstream as a function tool, since upstream
			// Chat Completions has no notion of them.
			continue
		}
		if t.Name == "" {
			return nil, apierror.New(apierror.KindInvalidRequest, "function tool missing name")
		}
		if seen[t.Name] {
			return nil, apierror.New(apierror.KindInvalidRequest, fmt.Sprintf("duplicate tool name %q", t.Name)).WithParam("tools")
		}
		seen[t.Name] = true
		if len(t.Parameters) > 0 {
			if err := validateJSONSchema(t.Parameters); err != nil {
				return nil, apierror.Wrap(apierror.KindInvalidRequest, fmt.Sprintf("invalid parameters schema for tool %q", t.Name), err).WithParam("tools")
			}
		}
		out = append(out, domain.ChatTool{
			Type: "function",
			Function: domain.ChatToolFunction{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  t.Parameters,
			},
		})
	}
	return out, nil
}

// translateToolChoice maps the Responses tool_choice variants to their
// Chat-Completions equivalents per spec §4.2:
//   - "auto"/"none"/"required" pass through unchanged
//   - {"type": "<builtin>"} -> {"type": "<builtin>"}
//   - {"type": "function", "name": "<fn>"} -> {"type":"function","function":{"name":"<fn>"}}
func translateToolChoice(raw json.RawMessage) json.RawMessage {
	if len(raw) == 0 {
		return nil
	}

	var asString string
	if err := json.Unmarshal(raw, &asString); err == nil {
		return raw
	}

	var obj struct {
		Type string `json:"type"`
		Name string `json:"name"`
	}
	if err := json.Unmarshal(raw, &obj); err != nil {
		return raw
	}
	if obj.Type == "function" && obj.Name != "" {
		mapped, _ := json.Marshal(map[string]any{
			"type":     "function",
			"function": map[string]string{"name": obj.Name},
		})
		return mapped
	}
	return raw
}

func validateJSONSchema(schema json.RawMessage) error {
	if len(schema) == 0 {
		return fmt.Errorf("schema is empty")
	}
	compiler := jsonschema.NewCompiler()
	var doc any
	if err := json.Unmarshal(schema, &doc); err != nil {
		return err
	}
	if err := compiler.AddResource("schema.json", doc); err != nil {
		return err
	}
	_, err := compiler.Compile("schema.json")
	return err
}
