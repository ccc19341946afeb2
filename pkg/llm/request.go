package llm

import "encoding/json"

// Tool choice policies. Any other value names a specific function.
const (
	ToolChoiceAuto = "auto"
	ToolChoiceNone = "none"
	ToolChoiceAny  = "any"
)

// ChatGenerateRequest is the vendor-neutral chat generation request. Every
// request adapter translates it into a vendor wire body.
type ChatGenerateRequest struct {
	// SystemMessage is the optional system prompt. Vendors that require it
	// outside of the turn list get it hoisted by their adapter.
	SystemMessage string `json:"system_message,omitempty"`

	// ChatSequence is the ordered list of conversation turns. Order is
	// preserved by every adapter.
	ChatSequence []Message `json:"chat_sequence"`

	// Tools declares the functions the model may invoke.
	Tools []ToolDefinition `json:"tools,omitempty"`

	// ToolChoice is "auto", "none", "any", or the name of a declared function.
	ToolChoice string `json:"tool_choice,omitempty"`

	// Generation parameter overrides. When nil the model descriptor values apply.
	Temperature *float64 `json:"temperature,omitempty"`
	MaxTokens   *int     `json:"max_tokens,omitempty"`
}

// ToolDefinition declares a function tool.
type ToolDefinition struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	InputSchema json.RawMessage `json:"input_schema,omitempty"`
}

// HasImages reports whether any turn carries an image block.
func (r *ChatGenerateRequest) HasImages() bool {
	for i := range r.ChatSequence {
		if r.ChatSequence[i].HasBlock(BlockImage) {
			return true
		}
	}
	return false
}

// UsesTools reports whether the request declares tools or replays tool calls.
func (r *ChatGenerateRequest) UsesTools() bool {
	if len(r.Tools) > 0 {
		return true
	}
	for i := range r.ChatSequence {
		if r.ChatSequence[i].HasBlock(BlockToolUse) || r.ChatSequence[i].HasBlock(BlockToolResult) {
			return true
		}
	}
	return false
}

// EffectiveTemperature returns the request override or the model default.
func (r *ChatGenerateRequest) EffectiveTemperature(m *Model) *float64 {
	if r.Temperature != nil {
		return r.Temperature
	}
	return m.Temperature
}

// EffectiveMaxTokens returns the request override or the model limit.
func (r *ChatGenerateRequest) EffectiveMaxTokens(m *Model) *int {
	if r.MaxTokens != nil {
		return r.MaxTokens
	}
	if m.MaxCompletionTokens > 0 {
		n := m.MaxCompletionTokens
		return &n
	}
	return nil
}
