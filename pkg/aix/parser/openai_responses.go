package parser

import (
	"encoding/json"

	"github.com/papercomputeco/aix/pkg/aix/particle"
	"github.com/papercomputeco/aix/pkg/llm"
)

const openAIResponsesDialect = "openai-responses"

type responsesEvent struct {
	Type        string             `json:"type"`
	OutputIndex int                `json:"output_index"`
	Delta       string             `json:"delta"`
	Arguments   string             `json:"arguments"`
	Item        *responsesItem     `json:"item"`
	Response    *responsesResponse `json:"response"`
	Message     string             `json:"message"`
	Code        string             `json:"code"`
}

type responsesResponse struct {
	Status            string          `json:"status"`
	Output            []responsesItem `json:"output"`
	Usage             *responsesUsage `json:"usage"`
	Error             json.RawMessage `json:"error"`
	IncompleteDetails *struct {
		Reason string `json:"reason"`
	} `json:"incomplete_details"`
}

type responsesItem struct {
	Type      string             `json:"type"`
	ID        string             `json:"id"`
	CallID    string             `json:"call_id"`
	Name      string             `json:"name"`
	Arguments string             `json:"arguments"`
	Content   []responsesContent `json:"content"`
}

type responsesContent struct {
	Type    string `json:"type"`
	Text    string `json:"text"`
	Refusal string `json:"refusal"`
}

type responsesUsage struct {
	InputTokens        int `json:"input_tokens"`
	OutputTokens       int `json:"output_tokens"`
	TotalTokens        int `json:"total_tokens"`
	InputTokensDetails *struct {
		CachedTokens int `json:"cached_tokens"`
	} `json:"input_tokens_details"`
	OutputTokensDetails *struct {
		ReasoningTokens int `json:"reasoning_tokens"`
	} `json:"output_tokens_details"`
}

func (u *responsesUsage) toUsage() llm.Usage {
	usage := llm.Usage{
		PromptTokens:     u.InputTokens,
		CompletionTokens: u.OutputTokens,
		TotalTokens:      u.TotalTokens,
	}
	if u.InputTokensDetails != nil {
		usage.CacheReadInputTokens = u.InputTokensDetails.CachedTokens
	}
	if u.OutputTokensDetails != nil {
		usage.ReasoningTokens = u.OutputTokensDetails.ReasoningTokens
	}
	if usage.TotalTokens == 0 {
		usage.TotalTokens = usage.PromptTokens + usage.CompletionTokens
	}
	return usage
}

// responsesOutcome maps a final response to its stop reason, or to a vendor
// error message when the response failed.
func responsesOutcome(r *responsesResponse, sawTools bool) (particle.StopReason, string, string) {
	if msg := vendorErrorMessage(r.Error); msg != "" {
		return "", "", msg
	}

	switch r.Status {
	case "failed":
		return "", "", "response failed"
	case "incomplete":
		reason := ""
		if r.IncompleteDetails != nil {
			reason = r.IncompleteDetails.Reason
		}
		switch reason {
		case "max_output_tokens":
			return particle.StopOutOfTokens, reason, ""
		case "content_filter":
			return particle.StopFilter, reason, ""
		default:
			return particle.StopOther, reason, ""
		}
	default:
		if sawTools {
			return particle.StopToolInvocations, r.Status, ""
		}
		return particle.StopOK, r.Status, ""
	}
}

// OpenAIResponsesStream parses Responses API streaming events. Tool calls are
// keyed by output index and complete on function_call_arguments.done or
// output_item.done, whichever comes first.
type OpenAIResponsesStream struct {
	machine
}

// NewOpenAIResponsesStream returns a streaming Responses parser.
func NewOpenAIResponsesStream() *OpenAIResponsesStream {
	return &OpenAIResponsesStream{}
}

func (p *OpenAIResponsesStream) Parse(t particle.Transmitter, data, event string) error {
	if err := p.begin(); err != nil {
		return err
	}

	var ev responsesEvent
	if err := json.Unmarshal([]byte(data), &ev); err != nil {
		p.malformed(t, openAIResponsesDialect, err)
		return nil
	}
	if ev.Type == "" {
		ev.Type = event
	}

	switch ev.Type {
	case "response.output_text.delta", "response.refusal.delta":
		if ev.Delta != "" {
			t.Send(particle.TextDelta(ev.Delta))
		}

	case "response.output_item.added":
		if ev.Item != nil && ev.Item.Type == "function_call" {
			p.tools.open(t, ev.OutputIndex, ev.Item.CallID, ev.Item.Name)
			p.tools.appendArgs(t, ev.OutputIndex, ev.Item.Arguments)
		}

	case "response.function_call_arguments.delta":
		p.tools.appendArgs(t, ev.OutputIndex, ev.Delta)

	case "response.function_call_arguments.done":
		p.tools.setArgs(t, ev.OutputIndex, ev.Arguments)
		p.tools.complete(t, ev.OutputIndex)

	case "response.output_item.done":
		if ev.Item != nil && ev.Item.Type == "function_call" {
			p.tools.open(t, ev.OutputIndex, ev.Item.CallID, ev.Item.Name)
			p.tools.setArgs(t, ev.OutputIndex, ev.Item.Arguments)
			p.tools.complete(t, ev.OutputIndex)
		}

	case "response.completed", "response.incomplete", "response.failed":
		if ev.Response == nil {
			p.fail(t, particle.ErrorFraming, openAIResponsesDialect+": "+ev.Type+" without response")
			return nil
		}
		if ev.Response.Usage != nil {
			p.usage = ev.Response.Usage.toUsage()
		}
		reason, vendorStop, errMsg := responsesOutcome(ev.Response, p.tools.seen())
		if errMsg != "" {
			p.fail(t, particle.ErrorVendor, errMsg)
			return nil
		}
		p.end(t, reason, vendorStop)

	case "error":
		msg := ev.Message
		if msg == "" {
			msg = ev.Code
		}
		if msg == "" {
			msg = "unknown error"
		}
		p.fail(t, particle.ErrorVendor, msg)

	default:
		// response.created, response.in_progress, content_part and reasoning
		// events carry nothing to forward.
	}

	return nil
}

func (p *OpenAIResponsesStream) Finish(t particle.Transmitter) {
	p.finishStream(t, openAIResponsesDialect, "", "")
}

// OpenAIResponsesNS parses a complete Responses API body. Output items are
// emitted in output order, matching the streaming event order.
type OpenAIResponsesNS struct {
	machine
}

// NewOpenAIResponsesNS returns a non-streaming Responses parser.
func NewOpenAIResponsesNS() *OpenAIResponsesNS {
	return &OpenAIResponsesNS{}
}

func (p *OpenAIResponsesNS) Parse(t particle.Transmitter, data, event string) error {
	if err := p.begin(); err != nil {
		return err
	}

	var resp responsesResponse
	if err := json.Unmarshal([]byte(data), &resp); err != nil {
		p.malformed(t, openAIResponsesDialect, err)
		return nil
	}

	if msg := vendorErrorMessage(resp.Error); msg != "" {
		p.fail(t, particle.ErrorVendor, msg)
		return nil
	}

	for i, item := range resp.Output {
		switch item.Type {
		case "message":
			for _, c := range item.Content {
				switch {
				case c.Type == "output_text" && c.Text != "":
					t.Send(particle.TextDelta(c.Text))
				case c.Type == "refusal" && c.Refusal != "":
					t.Send(particle.TextDelta(c.Refusal))
				}
			}
		case "function_call":
			p.tools.open(t, i, item.CallID, item.Name)
			p.tools.appendArgs(t, i, item.Arguments)
			p.tools.complete(t, i)
		}
	}

	if resp.Usage != nil {
		p.usage = resp.Usage.toUsage()
	}

	reason, vendorStop, errMsg := responsesOutcome(&resp, p.tools.seen())
	if errMsg != "" {
		p.fail(t, particle.ErrorVendor, errMsg)
		return nil
	}
	p.end(t, reason, vendorStop)
	return nil
}

func (p *OpenAIResponsesNS) Finish(t particle.Transmitter) {
	p.finishSingle(t, openAIResponsesDialect)
}
