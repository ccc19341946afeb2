package adapter

import (
	"strings"

	"github.com/papercomputeco/aix/pkg/llm"
	"github.com/papercomputeco/aix/pkg/llm/access"
)

// ChatCompletionsBody is the OpenAI Chat Completions request body.
type ChatCompletionsBody struct {
	Model          string              `json:"model"`
	Messages       []ChatMessage       `json:"messages"`
	Tools          []ChatTool          `json:"tools,omitempty"`
	ToolChoice     any                 `json:"tool_choice,omitempty"`
	Temperature    *float64            `json:"temperature,omitempty"`
	MaxTokens      *int                `json:"max_tokens,omitempty"`
	ResponseFormat *ChatResponseFormat `json:"response_format,omitempty"`
	Stream         bool                `json:"stream"`
	StreamOptions  *ChatStreamOptions  `json:"stream_options,omitempty"`
}

// ChatMessage is one message of a Chat Completions conversation. Content is
// a string, a []ChatContentPart, or nil for assistant tool-call turns.
type ChatMessage struct {
	Role       string         `json:"role"`
	Content    any            `json:"content"`
	ToolCalls  []ChatToolCall `json:"tool_calls,omitempty"`
	ToolCallID string         `json:"tool_call_id,omitempty"`
}

// ChatContentPart is a multimodal user content part.
type ChatContentPart struct {
	Type     string        `json:"type"`
	Text     string        `json:"text,omitempty"`
	ImageURL *ChatImageURL `json:"image_url,omitempty"`
}

// ChatImageURL references an image by URL or data URL.
type ChatImageURL struct {
	URL string `json:"url"`
}

// ChatToolCall is an assistant function invocation replayed in history.
type ChatToolCall struct {
	ID       string           `json:"id"`
	Type     string           `json:"type"`
	Function ChatFunctionCall `json:"function"`
}

// ChatFunctionCall carries the function name and its JSON-encoded arguments.
type ChatFunctionCall struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// ChatTool declares a function tool.
type ChatTool struct {
	Type     string          `json:"type"`
	Function ChatFunctionDef `json:"function"`
}

// ChatFunctionDef is the function part of a tool declaration.
type ChatFunctionDef struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Parameters  any    `json:"parameters"`
}

// ChatResponseFormat forces structured output.
type ChatResponseFormat struct {
	Type string `json:"type"`
}

// ChatStreamOptions asks the server to append a usage chunk to the stream.
type ChatStreamOptions struct {
	IncludeUsage bool `json:"include_usage"`
}

// supportsStreamOptions reports whether the dialect accepts stream_options.
func supportsStreamOptions(d access.Dialect) bool {
	switch d {
	case access.DialectOpenAI, access.DialectOpenRouter, access.DialectDeepseek:
		return true
	default:
		return false
	}
}

// OpenAIChatCompletions builds a Chat Completions body.
func OpenAIChatCompletions(model *llm.Model, req *llm.ChatGenerateRequest, flags Flags, streaming bool) (*ChatCompletionsBody, error) {
	if err := checkCapabilities(model, req); err != nil {
		return nil, err
	}

	body := &ChatCompletionsBody{
		Model:       model.ID,
		Temperature: req.EffectiveTemperature(model),
		MaxTokens:   req.EffectiveMaxTokens(model),
		Stream:      streaming,
	}

	if req.SystemMessage != "" {
		body.Messages = append(body.Messages, ChatMessage{Role: "system", Content: req.SystemMessage})
	}

	for _, msg := range req.ChatSequence {
		converted, err := chatMessages(msg)
		if err != nil {
			return nil, err
		}
		body.Messages = append(body.Messages, converted...)
	}

	for _, t := range req.Tools {
		body.Tools = append(body.Tools, ChatTool{
			Type: "function",
			Function: ChatFunctionDef{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  toolSchema(t),
			},
		})
	}
	if req.ToolChoice != "" {
		body.ToolChoice = chatToolChoice(req.ToolChoice)
	}

	if flags.JSONOutput {
		body.ResponseFormat = &ChatResponseFormat{Type: "json_object"}
	}

	if streaming && supportsStreamOptions(flags.Dialect) {
		body.StreamOptions = &ChatStreamOptions{IncludeUsage: true}
	}

	return body, nil
}

func chatToolChoice(choice string) any {
	switch choice {
	case llm.ToolChoiceAuto, llm.ToolChoiceNone:
		return choice
	case llm.ToolChoiceAny:
		return "required"
	default:
		return map[string]any{
			"type":     "function",
			"function": map[string]string{"name": choice},
		}
	}
}

// chatMessages converts one neutral turn into one or more Chat Completions
// messages. Tool results become "tool" messages at the position they appear.
func chatMessages(msg llm.Message) ([]ChatMessage, error) {
	switch msg.Role {
	case llm.RoleUser, llm.RoleTool:
		return chatUserMessages(msg)
	case llm.RoleAssistant:
		m, err := chatAssistantMessage(msg)
		if err != nil {
			return nil, err
		}
		return []ChatMessage{m}, nil
	default:
		return nil, unknownRole(msg.Role)
	}
}

func chatUserMessages(msg llm.Message) ([]ChatMessage, error) {
	var out []ChatMessage
	var parts []ChatContentPart

	flush := func() {
		if len(parts) == 0 {
			return
		}
		out = append(out, ChatMessage{Role: "user", Content: collapseParts(parts)})
		parts = nil
	}

	for _, b := range msg.Content {
		switch b.Type {
		case llm.BlockText:
			if msg.Role == llm.RoleTool {
				return nil, unknownBlock(msg.Role, b.Type)
			}
			parts = append(parts, ChatContentPart{Type: "text", Text: b.Text})
		case llm.BlockImage:
			if msg.Role == llm.RoleTool {
				return nil, unknownBlock(msg.Role, b.Type)
			}
			url, err := imageURL(b)
			if err != nil {
				return nil, err
			}
			parts = append(parts, ChatContentPart{Type: "image_url", ImageURL: &ChatImageURL{URL: url}})
		case llm.BlockToolResult:
			flush()
			out = append(out, ChatMessage{Role: "tool", Content: b.ToolOutput, ToolCallID: b.ToolResultID})
		default:
			return nil, unknownBlock(msg.Role, b.Type)
		}
	}
	flush()

	return out, nil
}

// collapseParts sends a lone text part as a plain string.
func collapseParts(parts []ChatContentPart) any {
	if len(parts) == 1 && parts[0].Type == "text" {
		return parts[0].Text
	}
	return parts
}

func chatAssistantMessage(msg llm.Message) (ChatMessage, error) {
	out := ChatMessage{Role: "assistant"}
	var text strings.Builder
	hasText := false

	for _, b := range msg.Content {
		switch b.Type {
		case llm.BlockText:
			text.WriteString(b.Text)
			hasText = true
		case llm.BlockToolUse:
			args, err := toolArguments(b.ToolInput)
			if err != nil {
				return ChatMessage{}, err
			}
			out.ToolCalls = append(out.ToolCalls, ChatToolCall{
				ID:   b.ToolUseID,
				Type: "function",
				Function: ChatFunctionCall{
					Name:      b.ToolName,
					Arguments: string(args),
				},
			})
		default:
			return ChatMessage{}, unknownBlock(msg.Role, b.Type)
		}
	}

	if hasText {
		out.Content = text.String()
	}
	return out, nil
}
