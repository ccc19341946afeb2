package parser

import (
	"encoding/json"

	"github.com/papercomputeco/aix/pkg/aix/particle"
	"github.com/papercomputeco/aix/pkg/llm"
)

const openAIChatDialect = "openai-chat"

type chatChunk struct {
	Choices []chatChoice    `json:"choices"`
	Usage   *chatUsage      `json:"usage"`
	Error   json.RawMessage `json:"error"`
}

type chatChoice struct {
	Index        int          `json:"index"`
	Delta        *chatMessage `json:"delta"`
	Message      *chatMessage `json:"message"`
	FinishReason *string      `json:"finish_reason"`
}

type chatMessage struct {
	Role      string         `json:"role"`
	Content   *string        `json:"content"`
	Refusal   *string        `json:"refusal"`
	ToolCalls []chatToolCall `json:"tool_calls"`
}

type chatToolCall struct {
	Index    *int   `json:"index"`
	ID       string `json:"id"`
	Type     string `json:"type"`
	Function struct {
		Name      string `json:"name"`
		Arguments string `json:"arguments"`
	} `json:"function"`
}

type chatUsage struct {
	PromptTokens        int `json:"prompt_tokens"`
	CompletionTokens    int `json:"completion_tokens"`
	TotalTokens         int `json:"total_tokens"`
	PromptTokensDetails *struct {
		CachedTokens int `json:"cached_tokens"`
	} `json:"prompt_tokens_details"`
	CompletionTokensDetails *struct {
		ReasoningTokens int `json:"reasoning_tokens"`
	} `json:"completion_tokens_details"`
}

func (u *chatUsage) toUsage() llm.Usage {
	usage := llm.Usage{
		PromptTokens:     u.PromptTokens,
		CompletionTokens: u.CompletionTokens,
		TotalTokens:      u.TotalTokens,
	}
	if u.PromptTokensDetails != nil {
		usage.CacheReadInputTokens = u.PromptTokensDetails.CachedTokens
	}
	if u.CompletionTokensDetails != nil {
		usage.ReasoningTokens = u.CompletionTokensDetails.ReasoningTokens
	}
	if usage.TotalTokens == 0 {
		usage.TotalTokens = usage.PromptTokens + usage.CompletionTokens
	}
	return usage
}

func chatStopReason(finish string) particle.StopReason {
	switch finish {
	case "stop":
		return particle.StopOK
	case "tool_calls", "function_call":
		return particle.StopToolInvocations
	case "length":
		return particle.StopOutOfTokens
	case "content_filter":
		return particle.StopFilter
	default:
		return particle.StopOther
	}
}

// OpenAIChatStream parses streamed Chat Completions chunks.
//
// Text and tool call fragments are forwarded as they arrive. The finish
// reason is recorded but the turn only ends at end of stream, because the
// usage chunk (stream_options.include_usage) follows the finish chunk.
type OpenAIChatStream struct {
	machine
	finish string
}

// NewOpenAIChatStream returns a streaming Chat Completions parser.
func NewOpenAIChatStream() *OpenAIChatStream {
	return &OpenAIChatStream{}
}

func (p *OpenAIChatStream) Parse(t particle.Transmitter, data, event string) error {
	if err := p.begin(); err != nil {
		return err
	}

	var chunk chatChunk
	if err := json.Unmarshal([]byte(data), &chunk); err != nil {
		p.malformed(t, openAIChatDialect, err)
		return nil
	}

	if msg := vendorErrorMessage(chunk.Error); msg != "" {
		p.fail(t, particle.ErrorVendor, msg)
		return nil
	}

	for _, choice := range chunk.Choices {
		// n > 1 is never requested.
		if choice.Index != 0 {
			continue
		}

		if delta := choice.Delta; delta != nil {
			if delta.Content != nil && *delta.Content != "" {
				t.Send(particle.TextDelta(*delta.Content))
			}
			if delta.Refusal != nil && *delta.Refusal != "" {
				t.Send(particle.TextDelta(*delta.Refusal))
			}

			for i, tc := range delta.ToolCalls {
				index := i
				if tc.Index != nil {
					index = *tc.Index
				}
				p.tools.completeBefore(t, index)
				p.tools.open(t, index, tc.ID, tc.Function.Name)
				p.tools.appendArgs(t, index, tc.Function.Arguments)
			}
		}

		// Some servers send the finish reason in a chunk without a delta.
		if choice.FinishReason != nil && *choice.FinishReason != "" {
			p.finish = *choice.FinishReason
			p.tools.flush(t)
		}
	}

	if chunk.Usage != nil {
		p.usage = chunk.Usage.toUsage()
	}

	return nil
}

func (p *OpenAIChatStream) Finish(t particle.Transmitter) {
	var reason particle.StopReason
	if p.finish != "" {
		reason = chatStopReason(p.finish)
	}
	p.finishStream(t, openAIChatDialect, reason, p.finish)
}

// OpenAIChatNS parses a complete Chat Completions response body.
type OpenAIChatNS struct {
	machine
}

// NewOpenAIChatNS returns a non-streaming Chat Completions parser.
func NewOpenAIChatNS() *OpenAIChatNS {
	return &OpenAIChatNS{}
}

func (p *OpenAIChatNS) Parse(t particle.Transmitter, data, event string) error {
	if err := p.begin(); err != nil {
		return err
	}

	var resp chatChunk
	if err := json.Unmarshal([]byte(data), &resp); err != nil {
		p.malformed(t, openAIChatDialect, err)
		return nil
	}

	if msg := vendorErrorMessage(resp.Error); msg != "" {
		p.fail(t, particle.ErrorVendor, msg)
		return nil
	}

	var finish string
	for _, choice := range resp.Choices {
		if choice.Index != 0 || choice.Message == nil {
			continue
		}
		msg := choice.Message

		if msg.Content != nil && *msg.Content != "" {
			t.Send(particle.TextDelta(*msg.Content))
		}
		if msg.Refusal != nil && *msg.Refusal != "" {
			t.Send(particle.TextDelta(*msg.Refusal))
		}

		for i, tc := range msg.ToolCalls {
			p.tools.open(t, i, tc.ID, tc.Function.Name)
			p.tools.appendArgs(t, i, tc.Function.Arguments)
			p.tools.complete(t, i)
		}

		if choice.FinishReason != nil {
			finish = *choice.FinishReason
		}
	}

	if resp.Usage != nil {
		p.usage = resp.Usage.toUsage()
	}

	reason := chatStopReason(finish)
	if finish == "" {
		reason = particle.StopOK
		if p.tools.seen() {
			reason = particle.StopToolInvocations
		}
	}
	p.end(t, reason, finish)
	return nil
}

func (p *OpenAIChatNS) Finish(t particle.Transmitter) {
	p.finishSingle(t, openAIChatDialect)
}
