package parser_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/aix/pkg/aix/parser"
	"github.com/papercomputeco/aix/pkg/aix/particle"
	"github.com/papercomputeco/aix/pkg/llm"
)

func responsesFrame(event, data string) string {
	return "event: " + event + "\ndata: " + data + "\n\n"
}

var responsesToolStream = responsesFrame("response.created", `{"type":"response.created","response":{"id":"resp_1","status":"in_progress","output":[]}}`) +
	responsesFrame("response.output_item.added", `{"type":"response.output_item.added","output_index":0,"item":{"type":"message","id":"msg_1","role":"assistant","content":[]}}`) +
	responsesFrame("response.output_text.delta", `{"type":"response.output_text.delta","output_index":0,"content_index":0,"delta":"Let me "}`) +
	responsesFrame("response.output_text.delta", `{"type":"response.output_text.delta","output_index":0,"content_index":0,"delta":"check."}`) +
	responsesFrame("response.output_item.added", `{"type":"response.output_item.added","output_index":1,"item":{"type":"function_call","id":"fc_1","call_id":"call_1","name":"lookup","arguments":""}}`) +
	responsesFrame("response.function_call_arguments.delta", `{"type":"response.function_call_arguments.delta","output_index":1,"delta":"{\"a\":"}`) +
	responsesFrame("response.function_call_arguments.delta", `{"type":"response.function_call_arguments.delta","output_index":1,"delta":"\"1\"}"}`) +
	responsesFrame("response.function_call_arguments.done", `{"type":"response.function_call_arguments.done","output_index":1,"arguments":"{\"a\":\"1\"}"}`) +
	responsesFrame("response.output_item.done", `{"type":"response.output_item.done","output_index":1,"item":{"type":"function_call","id":"fc_1","call_id":"call_1","name":"lookup","arguments":"{\"a\":\"1\"}"}}`) +
	responsesFrame("response.completed", `{"type":"response.completed","response":{"id":"resp_1","status":"completed","output":[],"usage":{"input_tokens":10,"output_tokens":5,"total_tokens":15}}}`)

const responsesToolBody = `{
	"id": "resp_1",
	"status": "completed",
	"output": [
		{"type":"message","id":"msg_1","role":"assistant","content":[{"type":"output_text","text":"Let me check."}]},
		{"type":"function_call","id":"fc_1","call_id":"call_1","name":"lookup","arguments":"{\"a\":\"1\"}"}
	],
	"usage": {"input_tokens":10,"output_tokens":5,"total_tokens":15}
}`

var _ = Describe("OpenAIResponsesStream", func() {
	It("forwards text and emits one completion per function call", func() {
		got := runStream(parser.NewOpenAIResponsesStream(), responsesToolStream)

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
		Expect(got[5]).To(Equal(particle.ToolCallComplete(1, "call_1", "lookup", []byte(`{"a":"1"}`))))
		Expect(got[6].Usage).To(Equal(&llm.Usage{PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15}))
		Expect(got[7]).To(Equal(particle.EndOfTurn(particle.StopToolInvocations, "completed")))
	})

	It("takes arguments from the done event when no deltas were sent", func() {
		got := runStream(parser.NewOpenAIResponsesStream(),
			responsesFrame("response.output_item.added", `{"type":"response.output_item.added","output_index":0,"item":{"type":"function_call","call_id":"c","name":"f","arguments":""}}`)+
				responsesFrame("response.output_item.done", `{"type":"response.output_item.done","output_index":0,"item":{"type":"function_call","call_id":"c","name":"f","arguments":"{\"k\":true}"}}`))

		done := completions(got)
		Expect(done).To(HaveLen(1))
		Expect(string(done[0].ToolCall.Args)).To(MatchJSON(`{"k":true}`))
		Expect(got[len(got)-1].Kind).To(Equal(particle.KindEndOfTurn))
	})

	It("maps incomplete responses to their stop reason", func() {
		got := runStream(parser.NewOpenAIResponsesStream(),
			responsesFrame("response.output_text.delta", `{"type":"response.output_text.delta","delta":"x"}`)+
				responsesFrame("response.incomplete", `{"type":"response.incomplete","response":{"status":"incomplete","incomplete_details":{"reason":"max_output_tokens"}}}`))

		Expect(got).To(Equal([]particle.Particle{
			particle.TextDelta("x"),
			particle.EndOfTurn(particle.StopOutOfTokens, "max_output_tokens"),
		}))
	})

	It("reports failed responses and error events", func() {
		got := runStream(parser.NewOpenAIResponsesStream(),
			responsesFrame("response.failed", `{"type":"response.failed","response":{"status":"failed","error":{"code":"server_error","message":"The model failed"}}}`))
		Expect(got).To(Equal([]particle.Particle{particle.Failure(particle.ErrorVendor, "The model failed")}))

		got = runStream(parser.NewOpenAIResponsesStream(),
			responsesFrame("error", `{"type":"error","code":"rate_limit_exceeded","message":"Slow down"}`))
		Expect(got).To(Equal([]particle.Particle{particle.Failure(particle.ErrorVendor, "Slow down")}))
	})
})

var _ = Describe("OpenAIResponsesNS", func() {
	It("emits the same sequence as the stream", func() {
		stream := runStream(parser.NewOpenAIResponsesStream(), responsesToolStream)
		single := runSingle(parser.NewOpenAIResponsesNS(), responsesToolBody)

		Expect(particle.Coalesce(single)).To(Equal(particle.Coalesce(stream)))
	})

	It("emits refusals as text", func() {
		got := runSingle(parser.NewOpenAIResponsesNS(), `{"status":"completed","output":[{"type":"message","content":[{"type":"refusal","refusal":"I can't."}]}]}`)
		Expect(got).To(Equal([]particle.Particle{
			particle.TextDelta("I can't."),
			particle.EndOfTurn(particle.StopOK, "completed"),
		}))
	})

	It("reports error bodies", func() {
		got := runSingle(parser.NewOpenAIResponsesNS(), `{"error":{"message":"Invalid input","type":"invalid_request_error"}}`)
		Expect(got).To(Equal([]particle.Particle{particle.Failure(particle.ErrorVendor, "Invalid input")}))
	})
})
