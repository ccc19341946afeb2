package llm

// Usage contains token counts and timing information.
type Usage struct {
	// Token counts
	PromptTokens     int `json:"prompt_tokens,omitempty"`
	CompletionTokens int `json:"completion_tokens,omitempty"`
	TotalTokens      int `json:"total_tokens,omitempty"`

	// Cache token counts (Anthropic prompt caching, OpenAI cached prompt tokens)
	CacheCreationInputTokens int `json:"cache_creation_input_tokens,omitempty"`
	CacheReadInputTokens     int `json:"cache_read_input_tokens,omitempty"`

	// Reasoning tokens reported by reasoning models
	ReasoningTokens int `json:"reasoning_tokens,omitempty"`
}

// IsZero reports whether no counter was set.
func (u *Usage) IsZero() bool {
	return u == nil || *u == (Usage{})
}

// ErrorResponse is the JSON error body returned by the API server.
type ErrorResponse struct {
	Error string `json:"error"`
}
