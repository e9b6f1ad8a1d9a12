// Package domain holds the Responses-API data model described in spec §3:
// ResponseRequest, the tagged InputItem variant, Response, Tool, and their
// lifecycle companions. These types are the orchestration engine's lingua
// franca — independent of any single upstream provider's wire format.
package domain

import "encoding/json"

// ResponseRequest is the inbound POST /v1/responses body.
type ResponseRequest struct {
	Model              string          `json:"model"`
	Input              Input           `json:"input"`
	Instructions       string          `json:"instructions,omitempty"`
	Tools              []Tool          `json:"tools,omitempty"`
	ToolChoice         json.RawMessage `json:"tool_choice,omitempty"`
	Temperature        *float64        `json:"temperature,omitempty"`
	TopP               *float64        `json:"top_p,omitempty"`
	MaxOutputTokens    *int            `json:"max_output_tokens,omitempty"`
	ParallelToolCalls  *bool           `json:"parallel_tool_calls,omitempty"`
	Stream             bool            `json:"stream,omitempty"`
	Store              *bool           `json:"store,omitempty"`
	PreviousResponseID string          `json:"previous_response_id,omitempty"`
	Text               *TextOptions    `json:"text,omitempty"`
	Reasoning          *Reasoning      `json:"reasoning,omitempty"`
	Metadata           map[string]any  `json:"metadata,omitempty"`

	// Truncation and Include are accepted on the wire but consumed locally
	// per spec §4.2 ("Unsupported fields ... are consumed locally and never
	// forwarded"); kept here only so unmarshal never fails on their presence.
	Truncation json.RawMessage `json:"truncation,omitempty"`
	Include    []string        `json:"include,omitempty"`
}

// StoreRequested reports the effective value of Store, defaulting to false
// when the client omits it — spec §4.6: "store=false requests never call put".
func (r *ResponseRequest) StoreRequested() bool {
	return r.Store != nil && *r.Store
}

// TextOptions carries the Responses-API output-format controls.
type TextOptions struct {
	Format *TextFormat `json:"format,omitempty"`
}

// TextFormat is either {"type":"text"} or a json_schema format per spec §4.2.
type TextFormat struct {
	Type       string          `json:"type"`
	JSONSchema *JSONSchemaSpec `json:"json_schema,omitempty"`
}

// JSONSchemaSpec names and constrains a structured-output schema.
type JSONSchemaSpec struct {
	Name   string          `json:"name"`
	Schema json.RawMessage `json:"schema"`
	Strict *bool           `json:"strict,omitempty"`
}

// Reasoning carries the effort/summary controls for reasoning models.
type Reasoning struct {
	Effort          string `json:"effort,omitempty"`
	GenerateSummary string `json:"generate_summary,omitempty"`
}

// Input is either a plain string or an ordered sequence of InputItems, per
// spec §3. It implements its own JSON (un)marshaling so callers never branch
// on a wrapper "kind" field — the zero value IsText()==false, Items==nil is
// never valid input and must be rejected by the translator.
type Input struct {
	Text  string
	Items []InputItem
	isSet bool
}

// IsText reports whether this Input was supplied as a bare string.
func (in Input) IsText() bool { return in.isSet && in.Items == nil }

// IsEmpty reports whether no input was supplied at all.
func (in Input) IsEmpty() bool { return !in.isSet }

// AsItems normalizes either form into a slice of InputItem, wrapping a plain
// string as a single user EasyMessage.
func (in Input) AsItems() []InputItem {
	if in.IsText() {
		return []InputItem{{Type: InputItemEasyMessage, Role: "user", Text: in.Text}}
	}
	return in.Items
}

func (in Input) MarshalJSON() ([]byte, error) {
	if in.IsText() {
		return json.Marshal(in.Text)
	}
	return json.Marshal(in.Items)
}

func (in *Input) UnmarshalJSON(data []byte) error {
	var asString string
	if err := json.Unmarshal(data, &asString); err == nil {
		in.Text = asString
		in.Items = nil
		in.isSet = true
		return nil
	}
	var items []InputItem
	if err := json.Unmarshal(data, &items); err != nil {
		return err
	}
	in.Items = items
	in.isSet = true
	return nil
}

// InputItemType discriminates the InputItem tagged variant (spec §3, §9:
// "modelled as a tagged variant with a discriminator field").
type InputItemType string

const (
	InputItemEasyMessage        InputItemType = "easy_message"
	InputItemMessage            InputItemType = "message"
	InputItemFunctionCall       InputItemType = "function_call"
	InputItemFunctionCallOutput InputItemType = "function_call_output"
	InputItemOutputMessage      InputItemType = "message_output"
)

// InputItem is the tagged variant described in spec §3. Only the fields
// relevant to Type are populated; callers must switch on Type before reading
// any other field.
type InputItem struct {
	Type InputItemType `json:"type"`

	// EasyMessage / Message / OutputMessage
	ID      string        `json:"id,omitempty"`
	Role    string        `json:"role,omitempty"`
	Text    string        `json:"text,omitempty"` // EasyMessage plain-text shorthand
	Content []ContentPart `json:"content,omitempty"`
	Status  string        `json:"status,omitempty"` // OutputMessage only

	// FunctionCall
	CallID    string `json:"call_id,omitempty"`
	Name      string `json:"name,omitempty"`
	Arguments string `json:"arguments,omitempty"`

	// FunctionCallOutput
	Output string `json:"output,omitempty"`
}

// ContentPartType discriminates ContentPart per spec §3.
type ContentPartType string

const (
	ContentText     ContentPartType = "text"
	ContentImageURL ContentPartType = "image_url"
	ContentFile     ContentPartType = "file"
)

// ContentPart is one element of a Message/OutputMessage's content array.
type ContentPart struct {
	Type ContentPartType `json:"type"`

	Text string `json:"text,omitempty"`

	ImageURL string `json:"image_url,omitempty"`
	Detail   string `json:"detail,omitempty"`

	FileID   string `json:"file_id,omitempty"`
	FileData string `json:"file_data,omitempty"`
	Filename string `json:"filename,omitempty"`
}

// ToolType discriminates Tool between a user-defined function and a built-in.
type ToolType string

const (
	ToolTypeFunction   ToolType = "function"
	ToolTypeFileSearch ToolType = "file_search"
)

// RecognisedBuiltinTools enumerates the builtin tool names this gateway
// understands, per spec §4.1/§6.
var RecognisedBuiltinTools = map[string]bool{
	string(ToolTypeFileSearch): true,
}

// Tool is either a FunctionTool or a BuiltinTool, per spec §3.
type Tool struct {
	Type        ToolType        `json:"type"`
	Name        string          `json:"name,omitempty"`
	Description string          `json:"description,omitempty"`
	Parameters  json.RawMessage `json:"parameters,omitempty"`
}

// IsBuiltin reports whether this tool refers to a recognised builtin rather
// than a client-supplied function schema.
func (t Tool) IsBuiltin() bool {
	return t.Type != ToolTypeFunction
}
