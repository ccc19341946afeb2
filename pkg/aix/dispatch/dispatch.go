// Package dispatch resolves an access configuration, a model and a request
// into everything needed to run one chat generation: the wire request, the
// demuxer format of the reply and the parser for it.
package dispatch

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/papercomputeco/aix/pkg/aix/adapter"
	"github.com/papercomputeco/aix/pkg/aix/demux"
	"github.com/papercomputeco/aix/pkg/aix/parser"
	"github.com/papercomputeco/aix/pkg/llm"
	"github.com/papercomputeco/aix/pkg/llm/access"
)

// Generation endpoint paths.
const (
	PathAnthropicMessages = "/v1/messages"
	PathChatCompletions   = "/v1/chat/completions"
	PathResponses         = "/v1/responses"
)

// WireRequest is a vendor-specific HTTP request, built fresh per call.
type WireRequest struct {
	Method  string
	URL     string
	Headers http.Header
	Body    []byte
}

// Dispatch bundles what the executor needs for one generation.
type Dispatch struct {
	Dialect       access.Dialect
	Request       WireRequest
	DemuxerFormat demux.Format
	Parser        parser.Parser
}

// CreateChatGenerateDispatch selects adapter, endpoint, demuxer format and
// parser for the access dialect. It performs no I/O.
//
// Configuration and adapter errors are returned. An access value of a
// variant or dialect this function does not know is a programming error and
// panics.
func CreateChatGenerateDispatch(a access.Access, model *llm.Model, req *llm.ChatGenerateRequest, streaming bool) (*Dispatch, error) {
	switch acc := a.(type) {
	case access.Anthropic:
		transport, err := access.AnthropicTransport(acc, model.ID, PathAnthropicMessages)
		if err != nil {
			return nil, err
		}
		body, err := adapter.AnthropicMessages(model, req, adapter.Flags{Dialect: access.DialectAnthropic}, streaming)
		if err != nil {
			return nil, err
		}
		return build(access.DialectAnthropic, transport, body, streaming,
			parser.NewAnthropicStream, parser.NewAnthropicNS)

	case access.Egregore:
		transport := access.EgregoreTransport(acc, PathChatCompletions)
		flags := adapter.Flags{Dialect: access.DialectEgregore, JSONOutput: acc.JSONOutput}
		return chatCompletions(access.DialectEgregore, transport, model, req, flags, streaming)

	case access.Ollama:
		transport := access.OllamaTransport(acc, PathChatCompletions)
		flags := adapter.Flags{Dialect: access.DialectOllama, JSONOutput: acc.JSONOutput}
		return chatCompletions(access.DialectOllama, transport, model, req, flags, streaming)

	case access.OpenAI:
		switch acc.Variant {
		case access.DialectDeepseek, access.DialectLMStudio, access.DialectLocalAI, access.DialectOpenAI, access.DialectOpenRouter:
		default:
			panic(fmt.Sprintf("dispatch: unhandled OpenAI-family dialect %q", acc.Variant))
		}

		flags := adapter.Flags{Dialect: acc.Variant}
		if model.VndOaiResponsesAPI {
			transport, err := access.OpenAITransport(acc, model.ID, PathResponses)
			if err != nil {
				return nil, err
			}
			body, err := adapter.OpenAIResponses(model, req, flags, streaming)
			if err != nil {
				return nil, err
			}
			return build(acc.Variant, transport, body, streaming,
				parser.NewOpenAIResponsesStream, parser.NewOpenAIResponsesNS)
		}

		transport, err := access.OpenAITransport(acc, model.ID, PathChatCompletions)
		if err != nil {
			return nil, err
		}
		return chatCompletions(acc.Variant, transport, model, req, flags, streaming)

	default:
		panic(fmt.Sprintf("dispatch: unhandled access variant %T", a))
	}
}

func chatCompletions(dialect access.Dialect, transport access.Transport, model *llm.Model, req *llm.ChatGenerateRequest, flags adapter.Flags, streaming bool) (*Dispatch, error) {
	body, err := adapter.OpenAIChatCompletions(model, req, flags, streaming)
	if err != nil {
		return nil, err
	}
	return build(dialect, transport, body, streaming,
		parser.NewOpenAIChatStream, parser.NewOpenAIChatNS)
}

// build marshals the body and picks the framing and parser for the mode.
// Streaming always frames as SSE; non-streaming never frames.
func build[S, N parser.Parser](dialect access.Dialect, transport access.Transport, body any, streaming bool, newStream func() S, newSingle func() N) (*Dispatch, error) {
	raw, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encoding %s request body: %w", dialect, err)
	}

	d := &Dispatch{
		Dialect: dialect,
		Request: WireRequest{
			Method:  http.MethodPost,
			URL:     transport.URL,
			Headers: transport.Headers,
			Body:    raw,
		},
	}
	if streaming {
		d.DemuxerFormat = demux.FormatFastSSE
		d.Parser = newStream()
	} else {
		d.DemuxerFormat = demux.FormatNone
		d.Parser = newSingle()
	}
	return d, nil
}
