package access_test

import (
	"encoding/json"
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/aix/pkg/aix/aixerr"
	"github.com/papercomputeco/aix/pkg/llm/access"
)

var _ = Describe("Access", func() {
	Describe("Validate", func() {
		It("requires a key for cloud OpenAI-family services", func() {
			for _, d := range []access.Dialect{access.DialectOpenAI, access.DialectOpenRouter, access.DialectDeepseek} {
				err := access.OpenAI{Variant: d}.Validate()
				Expect(err).To(HaveOccurred(), string(d))
				Expect(aixerr.IsConfiguration(err)).To(BeTrue())
			}
		})

		It("accepts a custom host in place of a key", func() {
			Expect(access.OpenAI{Variant: access.DialectOpenAI, Host: "gateway.local"}.Validate()).To(Succeed())
		})

		It("does not require keys for local services", func() {
			Expect(access.OpenAI{Variant: access.DialectLocalAI}.Validate()).To(Succeed())
			Expect(access.OpenAI{Variant: access.DialectLMStudio}.Validate()).To(Succeed())
			Expect(access.Ollama{}.Validate()).To(Succeed())
			Expect(access.Egregore{}.Validate()).To(Succeed())
		})

		It("rejects a non OpenAI-family variant tag", func() {
			err := access.OpenAI{Variant: access.DialectAnthropic, Key: "k"}.Validate()
			var cerr *access.ConfigError
			Expect(errors.As(err, &cerr)).To(BeTrue())
			Expect(cerr.Field).To(Equal("dialect"))
		})

		It("requires a key or host for Anthropic", func() {
			Expect(access.Anthropic{}.Validate()).To(MatchError(aixerr.ErrConfiguration))
			Expect(access.Anthropic{Key: "sk-ant"}.Validate()).To(Succeed())
		})
	})

	Describe("Dialect", func() {
		It("classifies the OpenAI family", func() {
			family := 0
			for _, d := range access.AllDialects() {
				if access.IsOpenAIFamily(d) {
					family++
				}
			}
			Expect(family).To(Equal(5))
			Expect(access.IsOpenAIFamily(access.DialectOllama)).To(BeFalse())
		})

		It("reports the tag of every variant", func() {
			Expect(access.Anthropic{}.Dialect()).To(Equal(access.DialectAnthropic))
			Expect(access.Ollama{}.Dialect()).To(Equal(access.DialectOllama))
			Expect(access.Egregore{}.Dialect()).To(Equal(access.DialectEgregore))
			Expect(access.OpenAI{Variant: access.DialectDeepseek}.Dialect()).To(Equal(access.DialectDeepseek))
		})
	})

	Describe("Decode and Encode", func() {
		It("selects the variant by dialect", func() {
			a, err := access.Decode([]byte(`{"dialect":"openrouter","key":"sk-or"}`))
			Expect(err).NotTo(HaveOccurred())
			Expect(a).To(Equal(access.OpenAI{Variant: access.DialectOpenRouter, Key: "sk-or"}))

			a, err = access.Decode([]byte(`{"dialect":"egregore","host":"h:1","json_output":true}`))
			Expect(err).NotTo(HaveOccurred())
			Expect(a).To(Equal(access.Egregore{Host: "h:1", JSONOutput: true}))

			a, err = access.Decode([]byte(`{"dialect":"anthropic","key":"sk-ant"}`))
			Expect(err).NotTo(HaveOccurred())
			Expect(a).To(Equal(access.Anthropic{Key: "sk-ant"}))
		})

		It("rejects unknown dialects as configuration errors", func() {
			_, err := access.Decode([]byte(`{"dialect":"mystery"}`))
			Expect(err).To(MatchError(aixerr.ErrConfiguration))

			_, err = access.Decode([]byte(`{}`))
			Expect(err).To(MatchError(aixerr.ErrConfiguration))
		})

		It("rejects malformed JSON", func() {
			_, err := access.Decode([]byte(`{`))
			Expect(err).To(HaveOccurred())
			Expect(aixerr.IsConfiguration(err)).To(BeFalse())
		})

		It("injects the tag for variants that do not store it", func() {
			raw, err := access.Encode(access.Ollama{Host: "o:11434"})
			Expect(err).NotTo(HaveOccurred())

			var m map[string]any
			Expect(json.Unmarshal(raw, &m)).To(Succeed())
			Expect(m).To(HaveKeyWithValue("dialect", "ollama"))

			back, err := access.Decode(raw)
			Expect(err).NotTo(HaveOccurred())
			Expect(back).To(Equal(access.Ollama{Host: "o:11434"}))
		})
	})
})
