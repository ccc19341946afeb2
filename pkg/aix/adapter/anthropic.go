package adapter

import (
	"encoding/json"
	"fmt"

	"github.com/papercomputeco/aix/pkg/llm"
)

// DefaultAnthropicMaxTokens is sent when neither the request nor the model
// sets a completion limit. Anthropic requires max_tokens on every request.
const DefaultAnthropicMaxTokens = 8192

// MessagesBody is the Anthropic Messages API request body.
type MessagesBody struct {
	Model       string              `json:"model"`
	System      string              `json:"system,omitempty"`
	Messages    []MessagesTurn      `json:"messages"`
	MaxTokens   int                 `json:"max_tokens"`
	Temperature *float64            `json:"temperature,omitempty"`
	Tools       []MessagesTool      `json:"tools,omitempty"`
	ToolChoice  *MessagesToolChoice `json:"tool_choice,omitempty"`
	Stream      bool                `json:"stream"`
}

// MessagesTurn is one user or assistant turn. Anthropic requires roles to
// alternate, so consecutive same-role turns are merged.
type MessagesTurn struct {
	Role    string          `json:"role"`
	Content []MessagesBlock `json:"content"`
}

// MessagesBlock is a content block. The Type field determines which other
// fields are populated.
type MessagesBlock struct {
	Type string `json:"type"`

	// type=text
	Text string `json:"text,omitempty"`

	// type=image
	Source *MessagesImageSource `json:"source,omitempty"`

	// type=tool_use
	ID    string          `json:"id,omitempty"`
	Name  string          `json:"name,omitempty"`
	Input json.RawMessage `json:"input,omitempty"`

	// type=tool_result
	ToolUseID string `json:"tool_use_id,omitempty"`
	Content   string `json:"content,omitempty"`
	IsError   bool   `json:"is_error,omitempty"`
}

// MessagesImageSource is an inline base64 or URL image source.
type MessagesImageSource struct {
	Type      string `json:"type"`
	MediaType string `json:"media_type,omitempty"`
	Data      string `json:"data,omitempty"`
	URL       string `json:"url,omitempty"`
}

// MessagesTool declares a client tool.
type MessagesTool struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	InputSchema json.RawMessage `json:"input_schema"`
}

// MessagesToolChoice is the Anthropic tool_choice object.
type MessagesToolChoice struct {
	Type string `json:"type"`
	Name string `json:"name,omitempty"`
}

// AnthropicMessages builds an Anthropic Messages body.
func AnthropicMessages(model *llm.Model, req *llm.ChatGenerateRequest, flags Flags, streaming bool) (*MessagesBody, error) {
	if flags.JSONOutput {
		return nil, fmt.Errorf("%w: anthropic messages have no JSON output mode", ErrUnsupportedFeature)
	}
	if err := checkCapabilities(model, req); err != nil {
		return nil, err
	}

	body := &MessagesBody{
		Model:       model.ID,
		System:      req.SystemMessage,
		MaxTokens:   DefaultAnthropicMaxTokens,
		Temperature: req.EffectiveTemperature(model),
		Stream:      streaming,
	}
	if maxTokens := req.EffectiveMaxTokens(model); maxTokens != nil {
		body.MaxTokens = *maxTokens
	}

	for i, msg := range req.ChatSequence {
		role, blocks, err := messagesBlocks(msg)
		if err != nil {
			return nil, err
		}
		if len(blocks) == 0 {
			return nil, fmt.Errorf("%w: %s turn %d has no content", ErrInvalidRequest, msg.Role, i)
		}

		// Merge into the previous turn when the role repeats.
		if n := len(body.Messages); n > 0 && body.Messages[n-1].Role == role {
			body.Messages[n-1].Content = append(body.Messages[n-1].Content, blocks...)
			continue
		}
		body.Messages = append(body.Messages, MessagesTurn{Role: role, Content: blocks})
	}

	for _, t := range req.Tools {
		body.Tools = append(body.Tools, MessagesTool{
			Name:        t.Name,
			Description: t.Description,
			InputSchema: toolSchema(t),
		})
	}
	if req.ToolChoice != "" {
		body.ToolChoice = messagesToolChoice(req.ToolChoice)
	}

	return body, nil
}

func messagesToolChoice(choice string) *MessagesToolChoice {
	switch choice {
	case llm.ToolChoiceAuto, llm.ToolChoiceAny, llm.ToolChoiceNone:
		return &MessagesToolChoice{Type: choice}
	default:
		return &MessagesToolChoice{Type: "tool", Name: choice}
	}
}

// messagesBlocks converts one neutral turn. Tool results travel as user
// content. Empty text blocks are rejected by the API and are skipped; a turn
// left with no blocks is an error in the caller.
func messagesBlocks(msg llm.Message) (string, []MessagesBlock, error) {
	var role string
	switch msg.Role {
	case llm.RoleUser, llm.RoleTool:
		role = "user"
	case llm.RoleAssistant:
		role = "assistant"
	default:
		return "", nil, unknownRole(msg.Role)
	}

	blocks := make([]MessagesBlock, 0, len(msg.Content))
	for _, b := range msg.Content {
		switch {
		case b.Type == llm.BlockText && msg.Role != llm.RoleTool:
			if b.Text == "" {
				continue
			}
			blocks = append(blocks, MessagesBlock{Type: "text", Text: b.Text})

		case b.Type == llm.BlockImage && msg.Role == llm.RoleUser:
			src, err := messagesImageSource(b)
			if err != nil {
				return "", nil, err
			}
			blocks = append(blocks, MessagesBlock{Type: "image", Source: src})

		case b.Type == llm.BlockToolUse && msg.Role == llm.RoleAssistant:
			input, err := toolArguments(b.ToolInput)
			if err != nil {
				return "", nil, err
			}
			blocks = append(blocks, MessagesBlock{
				Type:  "tool_use",
				ID:    b.ToolUseID,
				Name:  b.ToolName,
				Input: input,
			})

		case b.Type == llm.BlockToolResult && msg.Role != llm.RoleAssistant:
			blocks = append(blocks, MessagesBlock{
				Type:      "tool_result",
				ToolUseID: b.ToolResultID,
				Content:   b.ToolOutput,
				IsError:   b.IsError,
			})

		default:
			return "", nil, unknownBlock(msg.Role, b.Type)
		}
	}

	return role, blocks, nil
}

func messagesImageSource(b llm.ContentBlock) (*MessagesImageSource, error) {
	if b.ImageBase64 != "" {
		if !validBase64(b.ImageBase64) {
			return nil, fmt.Errorf("%w: image data is not valid base64", ErrInvalidRequest)
		}
		mediaType := b.MediaType
		if mediaType == "" {
			mediaType = "image/png"
		}
		return &MessagesImageSource{Type: "base64", MediaType: mediaType, Data: b.ImageBase64}, nil
	}
	if b.ImageURL != "" {
		return &MessagesImageSource{Type: "url", URL: b.ImageURL}, nil
	}
	return nil, fmt.Errorf("%w: image block without url or data", ErrInvalidRequest)
}
