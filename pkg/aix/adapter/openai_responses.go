package adapter

import (
	"github.com/papercomputeco/aix/pkg/llm"
)

// ResponsesBody is the OpenAI Responses API request body.
type ResponsesBody struct {
	Model           string          `json:"model"`
	Instructions    string          `json:"instructions,omitempty"`
	Input           []ResponsesItem `json:"input"`
	Tools           []ResponsesTool `json:"tools,omitempty"`
	ToolChoice      any             `json:"tool_choice,omitempty"`
	Temperature     *float64        `json:"temperature,omitempty"`
	MaxOutputTokens *int            `json:"max_output_tokens,omitempty"`
	Text            *ResponsesText  `json:"text,omitempty"`
	Stream          bool            `json:"stream"`
	Store           bool            `json:"store"`
}

// ResponsesItem is one input item: a message, a function call replayed from
// history, or a function call output.
type ResponsesItem struct {
	Type string `json:"type"`

	// type=message
	Role    string             `json:"role,omitempty"`
	Content []ResponsesContent `json:"content,omitempty"`

	// type=function_call and type=function_call_output
	CallID    string `json:"call_id,omitempty"`
	Name      string `json:"name,omitempty"`
	Arguments string `json:"arguments,omitempty"`
	Output    string `json:"output,omitempty"`
}

// ResponsesContent is a message content part (input_text, input_image,
// output_text).
type ResponsesContent struct {
	Type     string `json:"type"`
	Text     string `json:"text,omitempty"`
	ImageURL string `json:"image_url,omitempty"`
}

// ResponsesTool is a flattened function tool declaration.
type ResponsesTool struct {
	Type        string `json:"type"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Parameters  any    `json:"parameters"`
}

// ResponsesText configures the text output format.
type ResponsesText struct {
	Format ResponsesTextFormat `json:"format"`
}

// ResponsesTextFormat names the output format type.
type ResponsesTextFormat struct {
	Type string `json:"type"`
}

// OpenAIResponses builds a Responses API body.
func OpenAIResponses(model *llm.Model, req *llm.ChatGenerateRequest, flags Flags, streaming bool) (*ResponsesBody, error) {
	if err := checkCapabilities(model, req); err != nil {
		return nil, err
	}

	body := &ResponsesBody{
		Model:           model.ID,
		Instructions:    req.SystemMessage,
		Temperature:     req.EffectiveTemperature(model),
		MaxOutputTokens: req.EffectiveMaxTokens(model),
		Stream:          streaming,
		Store:           false,
	}

	for _, msg := range req.ChatSequence {
		items, err := responsesItems(msg)
		if err != nil {
			return nil, err
		}
		body.Input = append(body.Input, items...)
	}

	for _, t := range req.Tools {
		body.Tools = append(body.Tools, ResponsesTool{
			Type:        "function",
			Name:        t.Name,
			Description: t.Description,
			Parameters:  toolSchema(t),
		})
	}
	if req.ToolChoice != "" {
		body.ToolChoice = responsesToolChoice(req.ToolChoice)
	}

	if flags.JSONOutput {
		body.Text = &ResponsesText{Format: ResponsesTextFormat{Type: "json_object"}}
	}

	return body, nil
}

func responsesToolChoice(choice string) any {
	switch choice {
	case llm.ToolChoiceAuto, llm.ToolChoiceNone:
		return choice
	case llm.ToolChoiceAny:
		return "required"
	default:
		return map[string]string{"type": "function", "name": choice}
	}
}

// responsesItems converts one neutral turn into input items. Consecutive
// content parts share a message item; tool calls and outputs split it.
func responsesItems(msg llm.Message) ([]ResponsesItem, error) {
	var role, textType string
	switch msg.Role {
	case llm.RoleUser, llm.RoleTool:
		role, textType = "user", "input_text"
	case llm.RoleAssistant:
		role, textType = "assistant", "output_text"
	default:
		return nil, unknownRole(msg.Role)
	}

	var items []ResponsesItem
	var content []ResponsesContent

	flush := func() {
		if len(content) == 0 {
			return
		}
		items = append(items, ResponsesItem{Type: "message", Role: role, Content: content})
		content = nil
	}

	for _, b := range msg.Content {
		switch {
		case b.Type == llm.BlockText && msg.Role != llm.RoleTool:
			content = append(content, ResponsesContent{Type: textType, Text: b.Text})

		case b.Type == llm.BlockImage && msg.Role == llm.RoleUser:
			url, err := imageURL(b)
			if err != nil {
				return nil, err
			}
			content = append(content, ResponsesContent{Type: "input_image", ImageURL: url})

		case b.Type == llm.BlockToolUse && msg.Role == llm.RoleAssistant:
			args, err := toolArguments(b.ToolInput)
			if err != nil {
				return nil, err
			}
			flush()
			items = append(items, ResponsesItem{
				Type:      "function_call",
				CallID:    b.ToolUseID,
				Name:      b.ToolName,
				Arguments: string(args),
			})

		case b.Type == llm.BlockToolResult && msg.Role != llm.RoleAssistant:
			flush()
			items = append(items, ResponsesItem{
				Type:   "function_call_output",
				CallID: b.ToolResultID,
				Output: b.ToolOutput,
			})

		default:
			return nil, unknownBlock(msg.Role, b.Type)
		}
	}
	flush()

	return items, nil
}
