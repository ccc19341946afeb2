package parser_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/aix/pkg/aix/parser"
	"github.com/papercomputeco/aix/pkg/aix/particle"
	"github.com/papercomputeco/aix/pkg/llm"
)

const anthropicToolStream = "event: message_start\n" +
	`data: {"type":"message_start","message":{"id":"msg_1","type":"message","role":"assistant","content":[],"usage":{"input_tokens":10,"output_tokens":1}}}` + "\n\n" +
	"event: content_block_start\n" +
	`data: {"type":"content_block_start","index":0,"content_block":{"type":"text","text":""}}` + "\n\n" +
	"event: ping\n" +
	`data: {"type":"ping"}` + "\n\n" +
	"event: content_block_delta\n" +
	`data: {"type":"content_block_delta","index":0,"delta":{"type":"text_delta","text":"Let me "}}` + "\n\n" +
	"event: content_block_delta\n" +
	`data: {"type":"content_block_delta","index":0,"delta":{"type":"text_delta","text":"check."}}` + "\n\n" +
	"event: content_block_stop\n" +
	`data: {"type":"content_block_stop","index":0}` + "\n\n" +
	"event: content_block_start\n" +
	`data: {"type":"content_block_start","index":1,"content_block":{"type":"tool_use","id":"toolu_1","name":"lookup","input":{}}}` + "\n\n" +
	"event: content_block_delta\n" +
	`data: {"type":"content_block_delta","index":1,"delta":{"type":"input_json_delta","partial_json":""}}` + "\n\n" +
	"event: content_block_delta\n" +
	`data: {"type":"content_block_delta","index":1,"delta":{"type":"input_json_delta","partial_json":"{\"a\":"}}` + "\n\n" +
	"event: content_block_delta\n" +
	`data: {"type":"content_block_delta","index":1,"delta":{"type":"input_json_delta","partial_json":"\"1\"}"}}` + "\n\n" +
	"event: content_block_stop\n" +
	`data: {"type":"content_block_stop","index":1}` + "\n\n" +
	"event: message_delta\n" +
	`data: {"type":"message_delta","delta":{"stop_reason":"tool_use","stop_sequence":null},"usage":{"output_tokens":5}}` + "\n\n" +
	"event: message_stop\n" +
	`data: {"type":"message_stop"}` + "\n\n"

const anthropicToolBody = `{
	"id": "msg_1",
	"type": "message",
	"role": "assistant",
	"content": [
		{"type":"text","text":"Let me check."},
		{"type":"tool_use","id":"toolu_1","name":"lookup","input":{"a":"1"}}
	],
	"stop_reason": "tool_use",
	"usage": {"input_tokens":10,"output_tokens":5}
}`

var _ = Describe("AnthropicStream", func() {
	It("forwards text and completes tool calls at content_block_stop", func() {
		got := runStream(parser.NewAnthropicStream(), anthropicToolStream)

		Expect(kinds(got)).To(Equal([]particle.Kind{
			particle.KindTextDelta,
			particle.KindTextDelta,
			particle.KindToolCallDelta,
			particle.KindToolCallDelta,
			particle.KindToolCallDelta,
			particle.KindToolCallComplete,
			particle.KindUsage,
			particle.KindEndOfTurn,
		}))

		Expect(got[5]).To(Equal(particle.ToolCallComplete(1, "toolu_1", "lookup", []byte(`{"a":"1"}`))))
		Expect(got[6].Usage).To(Equal(&llm.Usage{PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15}))
		Expect(got[7]).To(Equal(particle.EndOfTurn(particle.StopToolInvocations, "tool_use")))
	})

	It("completes a tool call with no input as an empty object", func() {
		got := runStream(parser.NewAnthropicStream(),
			"event: content_block_start\n"+
				`data: {"type":"content_block_start","index":0,"content_block":{"type":"tool_use","id":"t","name":"now","input":{}}}`+"\n\n"+
				"event: content_block_stop\n"+
				`data: {"type":"content_block_stop","index":0}`+"\n\n"+
				"event: message_stop\n"+
				`data: {"type":"message_stop"}`+"\n\n")

		done := completions(got)
		Expect(done).To(HaveLen(1))
		Expect(string(done[0].ToolCall.Args)).To(Equal("{}"))
	})

	It("ignores ping events that carry no data", func() {
		got := runStream(parser.NewAnthropicStream(),
			"event: ping\n\n"+
				"event: content_block_start\n"+
				`data: {"type":"content_block_start","index":0,"content_block":{"type":"text","text":""}}`+"\n\n"+
				"event: ping\n\n"+
				"event: content_block_delta\n"+
				`data: {"type":"content_block_delta","index":0,"delta":{"type":"text_delta","text":"Hello"}}`+"\n\n"+
				"event: content_block_stop\n"+
				`data: {"type":"content_block_stop","index":0}`+"\n\n"+
				"event: message_delta\n"+
				`data: {"type":"message_delta","delta":{"stop_reason":"end_turn"}}`+"\n\n"+
				"event: message_stop\n"+
				`data: {"type":"message_stop"}`+"\n\n")

		Expect(got).To(Equal([]particle.Particle{
			particle.TextDelta("Hello"),
			particle.EndOfTurn(particle.StopOK, "end_turn"),
		}))
	})

	It("reports error events", func() {
		got := runStream(parser.NewAnthropicStream(),
			"event: error\n"+
				`data: {"type":"error","error":{"type":"overloaded_error","message":"Overloaded"}}`+"\n\n")

		Expect(got).To(Equal([]particle.Particle{particle.Failure(particle.ErrorVendor, "Overloaded")}))
	})

	It("uses the SSE event name when the payload has no type", func() {
		got := runStream(parser.NewAnthropicStream(),
			"event: content_block_delta\n"+
				`data: {"index":0,"delta":{"type":"text_delta","text":"x"}}`+"\n\n"+
				"event: message_stop\n"+
				"data: {}\n\n")

		Expect(got).To(Equal([]particle.Particle{
			particle.TextDelta("x"),
			particle.EndOfTurn(particle.StopOther, ""),
		}))
	})

	It("ends the turn when the stream closes before message_stop", func() {
		got := runStream(parser.NewAnthropicStream(),
			"event: content_block_delta\n"+
				`data: {"type":"content_block_delta","index":0,"delta":{"type":"text_delta","text":"cut"}}`+"\n\n"+
				"event: message_delta\n"+
				`data: {"type":"message_delta","delta":{"stop_reason":"max_tokens"},"usage":{"output_tokens":3}}`+"\n\n")

		Expect(kinds(got)).To(Equal([]particle.Kind{particle.KindTextDelta, particle.KindUsage, particle.KindEndOfTurn}))
		Expect(got[2].StopReason).To(Equal(particle.StopOutOfTokens))
	})

	It("yields the same particles for every two-chunk split", func() {
		want := runStream(parser.NewAnthropicStream(), anthropicToolStream)
		for offset := 0; offset <= len(anthropicToolStream); offset += 7 {
			r := &splitReader{parts: []string{anthropicToolStream[:offset], anthropicToolStream[offset:]}}
			Expect(feed(parser.NewAnthropicStream(), r)).To(Equal(want), "split at %d", offset)
		}
	})
})

var _ = Describe("AnthropicNS", func() {
	It("emits the same sequence as the stream", func() {
		stream := runStream(parser.NewAnthropicStream(), anthropicToolStream)
		single := runSingle(parser.NewAnthropicNS(), anthropicToolBody)

		Expect(particle.Coalesce(single)).To(Equal(particle.Coalesce(stream)))
	})

	It("maps stop reasons", func() {
		got := runSingle(parser.NewAnthropicNS(), `{"type":"message","content":[{"type":"text","text":"no"}],"stop_reason":"refusal"}`)
		Expect(got).To(Equal([]particle.Particle{
			particle.TextDelta("no"),
			particle.EndOfTurn(particle.StopFilter, "refusal"),
		}))
	})

	It("reports error bodies", func() {
		got := runSingle(parser.NewAnthropicNS(), `{"type":"error","error":{"type":"invalid_request_error","message":"max_tokens: required"}}`)
		Expect(got).To(Equal([]particle.Particle{particle.Failure(particle.ErrorVendor, "max_tokens: required")}))
	})
})
