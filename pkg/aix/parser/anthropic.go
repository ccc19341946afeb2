package parser

import (
	"encoding/json"

	"github.com/papercomputeco/aix/pkg/aix/particle"
	"github.com/papercomputeco/aix/pkg/llm"
)

const anthropicDialect = "anthropic"

type anthropicEvent struct {
	Type         string              `json:"type"`
	Index        int                 `json:"index"`
	Message      *anthropicMessage   `json:"message"`
	ContentBlock *anthropicBlock     `json:"content_block"`
	Delta        *anthropicDelta     `json:"delta"`
	Usage        *anthropicUsage     `json:"usage"`
	Error        *anthropicErrorBody `json:"error"`
}

type anthropicMessage struct {
	Type       string              `json:"type"`
	Content    []anthropicBlock    `json:"content"`
	StopReason string              `json:"stop_reason"`
	Usage      *anthropicUsage     `json:"usage"`
	Error      *anthropicErrorBody `json:"error"`
}

type anthropicBlock struct {
	Type  string          `json:"type"`
	Text  string          `json:"text"`
	ID    string          `json:"id"`
	Name  string          `json:"name"`
	Input json.RawMessage `json:"input"`
}

type anthropicDelta struct {
	Type        string `json:"type"`
	Text        string `json:"text"`
	PartialJSON string `json:"partial_json"`
	StopReason  string `json:"stop_reason"`
}

type anthropicUsage struct {
	InputTokens              int `json:"input_tokens"`
	OutputTokens             int `json:"output_tokens"`
	CacheCreationInputTokens int `json:"cache_creation_input_tokens"`
	CacheReadInputTokens     int `json:"cache_read_input_tokens"`
}

type anthropicErrorBody struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

func (e *anthropicErrorBody) text() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Type != "" {
		return e.Type
	}
	return "unknown error"
}

// merge folds a usage report into u. Later reports carry cumulative output
// counts, so non-zero values replace earlier ones.
func (au *anthropicUsage) merge(u *llm.Usage) {
	if au.InputTokens > 0 {
		u.PromptTokens = au.InputTokens
	}
	if au.OutputTokens > 0 {
		u.CompletionTokens = au.OutputTokens
	}
	if au.CacheCreationInputTokens > 0 {
		u.CacheCreationInputTokens = au.CacheCreationInputTokens
	}
	if au.CacheReadInputTokens > 0 {
		u.CacheReadInputTokens = au.CacheReadInputTokens
	}
	u.TotalTokens = u.PromptTokens + u.CompletionTokens
}

func anthropicStopReason(stop string) particle.StopReason {
	switch stop {
	case "end_turn", "stop_sequence":
		return particle.StopOK
	case "tool_use":
		return particle.StopToolInvocations
	case "max_tokens":
		return particle.StopOutOfTokens
	case "refusal":
		return particle.StopFilter
	default:
		return particle.StopOther
	}
}

// isEmptyObject reports whether raw is absent or the empty JSON object.
func isEmptyObject(raw json.RawMessage) bool {
	if len(raw) == 0 || string(raw) == "null" {
		return true
	}
	var m map[string]any
	return json.Unmarshal(raw, &m) == nil && len(m) == 0
}

// AnthropicStream parses Anthropic Messages streaming events. Tool calls are
// keyed by content block index and complete at content_block_stop.
type AnthropicStream struct {
	machine
	stopReason string
}

// NewAnthropicStream returns a streaming Anthropic parser.
func NewAnthropicStream() *AnthropicStream {
	return &AnthropicStream{}
}

func (p *AnthropicStream) Parse(t particle.Transmitter, data, event string) error {
	if err := p.begin(); err != nil {
		return err
	}

	var ev anthropicEvent
	if err := json.Unmarshal([]byte(data), &ev); err != nil {
		p.malformed(t, anthropicDialect, err)
		return nil
	}
	if ev.Type == "" {
		ev.Type = event
	}

	switch ev.Type {
	case "message_start":
		if ev.Message != nil && ev.Message.Usage != nil {
			ev.Message.Usage.merge(&p.usage)
		}

	case "content_block_start":
		if ev.ContentBlock == nil {
			break
		}
		switch ev.ContentBlock.Type {
		case "text":
			if ev.ContentBlock.Text != "" {
				t.Send(particle.TextDelta(ev.ContentBlock.Text))
			}
		case "tool_use":
			// The start block carries an empty input; arguments arrive as
			// input_json_delta fragments.
			p.tools.open(t, ev.Index, ev.ContentBlock.ID, ev.ContentBlock.Name)
		}

	case "content_block_delta":
		if ev.Delta == nil {
			break
		}
		switch ev.Delta.Type {
		case "text_delta":
			if ev.Delta.Text != "" {
				t.Send(particle.TextDelta(ev.Delta.Text))
			}
		case "input_json_delta":
			p.tools.appendArgs(t, ev.Index, ev.Delta.PartialJSON)
		}

	case "content_block_stop":
		p.tools.complete(t, ev.Index)

	case "message_delta":
		if ev.Delta != nil && ev.Delta.StopReason != "" {
			p.stopReason = ev.Delta.StopReason
		}
		if ev.Usage != nil {
			ev.Usage.merge(&p.usage)
		}

	case "message_stop":
		p.end(t, anthropicStopReason(p.stopReason), p.stopReason)

	case "error":
		msg := "unknown error"
		if ev.Error != nil {
			msg = ev.Error.text()
		}
		p.fail(t, particle.ErrorVendor, msg)

	default:
		// ping and thinking blocks carry nothing to forward.
	}

	return nil
}

func (p *AnthropicStream) Finish(t particle.Transmitter) {
	var reason particle.StopReason
	if p.stopReason != "" {
		reason = anthropicStopReason(p.stopReason)
	}
	p.finishStream(t, anthropicDialect, reason, p.stopReason)
}

// AnthropicNS parses a complete Anthropic Messages response body.
type AnthropicNS struct {
	machine
}

// NewAnthropicNS returns a non-streaming Anthropic parser.
func NewAnthropicNS() *AnthropicNS {
	return &AnthropicNS{}
}

func (p *AnthropicNS) Parse(t particle.Transmitter, data, event string) error {
	if err := p.begin(); err != nil {
		return err
	}

	var msg anthropicMessage
	if err := json.Unmarshal([]byte(data), &msg); err != nil {
		p.malformed(t, anthropicDialect, err)
		return nil
	}

	if msg.Type == "error" || msg.Error != nil {
		text := "unknown error"
		if msg.Error != nil {
			text = msg.Error.text()
		}
		p.fail(t, particle.ErrorVendor, text)
		return nil
	}

	for i, block := range msg.Content {
		switch block.Type {
		case "text":
			if block.Text != "" {
				t.Send(particle.TextDelta(block.Text))
			}
		case "tool_use":
			p.tools.open(t, i, block.ID, block.Name)
			// The stream sends no fragment for an empty input.
			if !isEmptyObject(block.Input) {
				p.tools.appendArgs(t, i, string(block.Input))
			}
			p.tools.complete(t, i)
		}
	}

	if msg.Usage != nil {
		msg.Usage.merge(&p.usage)
	}

	p.end(t, anthropicStopReason(msg.StopReason), msg.StopReason)
	return nil
}

func (p *AnthropicNS) Finish(t particle.Transmitter) {
	p.finishSingle(t, anthropicDialect)
}
