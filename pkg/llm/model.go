package llm

import (
	"slices"
	"time"
)

// Model interfaces (capabilities) advertised by a model descriptor.
const (
	InterfaceChat   = "oai-chat"
	InterfaceFn     = "oai-chat-fn"
	InterfaceVision = "oai-chat-vision"
	InterfaceJSON   = "oai-chat-json"
)

// Model is the vendor-neutral model descriptor. It is treated as immutable
// once it is handed to a dispatch.
type Model struct {
	ID          string    `json:"id"`
	Label       string    `json:"label,omitempty"`
	Description string    `json:"description,omitempty"`
	Created     time.Time `json:"created,omitzero"`
	Updated     time.Time `json:"updated,omitzero"`

	ContextWindow       int `json:"context_window,omitempty"`
	MaxCompletionTokens int `json:"max_completion_tokens,omitempty"`

	Interfaces  []string `json:"interfaces,omitempty"`
	Temperature *float64 `json:"temperature,omitempty"`

	// VndOaiResponsesAPI selects the OpenAI Responses wire API instead of
	// Chat Completions for OpenAI-family dialects.
	VndOaiResponsesAPI bool `json:"vnd_oai_responses_api,omitempty"`
}

// Supports reports whether the model advertises the given interface.
func (m *Model) Supports(iface string) bool {
	return slices.Contains(m.Interfaces, iface)
}
