package adapter_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/aix/pkg/aix/adapter"
	"github.com/papercomputeco/aix/pkg/llm"
	"github.com/papercomputeco/aix/pkg/llm/access"
)

var _ = Describe("OpenAIResponses", func() {
	flags := adapter.Flags{Dialect: access.DialectOpenAI}

	It("hoists the system message into instructions", func() {
		req := &llm.ChatGenerateRequest{
			SystemMessage: "sys",
			ChatSequence:  []llm.Message{llm.NewTextMessage(llm.RoleUser, "Hello")},
		}

		body, err := adapter.OpenAIResponses(chatModel(), req, flags, true)
		Expect(err).NotTo(HaveOccurred())
		Expect(marshal(body)).To(MatchJSON(`{
			"model": "test-model",
			"instructions": "sys",
			"input": [
				{"type":"message","role":"user","content":[{"type":"input_text","text":"Hello"}]}
			],
			"max_output_tokens": 1024,
			"stream": true,
			"store": false
		}`))
	})

	It("preserves turn order across messages, calls and outputs", func() {
		body, err := adapter.OpenAIResponses(chatModel(llm.InterfaceFn), toolConversation(), flags, false)
		Expect(err).NotTo(HaveOccurred())

		Expect(marshal(body.Input)).To(MatchJSON(`[
			{"type":"message","role":"user","content":[{"type":"input_text","text":"first"}]},
			{"type":"message","role":"assistant","content":[{"type":"output_text","text":"checking"}]},
			{"type":"function_call","call_id":"call_1","name":"lookup","arguments":"{\"a\":\"1\"}"},
			{"type":"function_call_output","call_id":"call_1","output":"found"},
			{"type":"message","role":"user","content":[{"type":"input_text","text":"second"}]},
			{"type":"message","role":"assistant","content":[{"type":"output_text","text":"third"}]},
			{"type":"message","role":"user","content":[{"type":"input_text","text":"fourth"}]}
		]`))
	})

	It("flattens tool declarations", func() {
		req := toolConversation()
		req.ToolChoice = "lookup"

		body, err := adapter.OpenAIResponses(chatModel(llm.InterfaceFn), req, flags, false)
		Expect(err).NotTo(HaveOccurred())
		Expect(marshal(body.Tools)).To(MatchJSON(`[{
			"type": "function",
			"name": "lookup",
			"description": "Looks things up",
			"parameters": {"type":"object","properties":{"a":{"type":"string"}}}
		}]`))
		Expect(marshal(body.ToolChoice)).To(MatchJSON(`{"type":"function","name":"lookup"}`))
	})

	It("sends images as input_image parts", func() {
		req := &llm.ChatGenerateRequest{ChatSequence: []llm.Message{{
			Role: llm.RoleUser,
			Content: []llm.ContentBlock{
				{Type: llm.BlockImage, ImageURL: "https://example.com/cat.png"},
				{Type: llm.BlockText, Text: "what?"},
			},
		}}}

		body, err := adapter.OpenAIResponses(chatModel(llm.InterfaceVision), req, flags, false)
		Expect(err).NotTo(HaveOccurred())
		Expect(marshal(body.Input[0].Content)).To(MatchJSON(`[
			{"type":"input_image","image_url":"https://example.com/cat.png"},
			{"type":"input_text","text":"what?"}
		]`))
	})

	It("sets the JSON text format", func() {
		req := &llm.ChatGenerateRequest{ChatSequence: []llm.Message{llm.NewTextMessage(llm.RoleUser, "x")}}

		body, err := adapter.OpenAIResponses(chatModel(), req, adapter.Flags{JSONOutput: true}, false)
		Expect(err).NotTo(HaveOccurred())
		Expect(marshal(body.Text)).To(MatchJSON(`{"format":{"type":"json_object"}}`))
	})

	It("rejects tools on a model without function calling", func() {
		_, err := adapter.OpenAIResponses(chatModel(), toolConversation(), flags, false)
		Expect(err).To(MatchError(adapter.ErrUnsupportedFeature))
	})
})
