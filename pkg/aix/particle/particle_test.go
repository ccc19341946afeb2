package particle_test

import (
	"encoding/json"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/aix/pkg/aix/particle"
	"github.com/papercomputeco/aix/pkg/llm"
)

var _ = Describe("Particle", func() {
	It("marks end-of-turn and error as terminal", func() {
		Expect(particle.EndOfTurn(particle.StopOK, "stop").IsTerminal()).To(BeTrue())
		Expect(particle.Failure(particle.ErrorVendor, "boom").IsTerminal()).To(BeTrue())
		Expect(particle.TextDelta("hi").IsTerminal()).To(BeFalse())
		Expect(particle.UsageUpdate(llm.Usage{TotalTokens: 3}).IsTerminal()).To(BeFalse())
	})

	It("serializes only the payload matching its kind", func() {
		raw, err := json.Marshal(particle.TextDelta("Hi"))
		Expect(err).NotTo(HaveOccurred())
		Expect(string(raw)).To(MatchJSON(`{"kind":"text-delta","text":"Hi"}`))

		raw, err = json.Marshal(particle.ToolCallComplete(0, "call_1", "lookup", json.RawMessage(`{"a":"1"}`)))
		Expect(err).NotTo(HaveOccurred())
		Expect(string(raw)).To(MatchJSON(`{"kind":"tool-call-complete","tool_call":{"index":0,"id":"call_1","name":"lookup","args":{"a":"1"}}}`))
	})
})

var _ = Describe("Collector", func() {
	It("records particles in order", func() {
		c := particle.NewCollector()
		c.Send(particle.TextDelta("Hel"))
		c.Send(particle.TextDelta("lo"))
		c.Send(particle.EndOfTurn(particle.StopOK, "stop"))

		Expect(c.Kinds()).To(Equal([]particle.Kind{
			particle.KindTextDelta,
			particle.KindTextDelta,
			particle.KindEndOfTurn,
		}))
		Expect(c.Text()).To(Equal("Hello"))

		last, ok := c.Last()
		Expect(ok).To(BeTrue())
		Expect(last.StopReason).To(Equal(particle.StopOK))
	})

	It("reports no last particle when empty", func() {
		_, ok := particle.NewCollector().Last()
		Expect(ok).To(BeFalse())
	})

	It("adapts plain functions", func() {
		var got []particle.Kind
		t := particle.TransmitterFunc(func(p particle.Particle) { got = append(got, p.Kind) })
		t.Send(particle.TextDelta("x"))
		Expect(got).To(ConsistOf(particle.KindTextDelta))
	})
})

var _ = Describe("Coalesce", func() {
	It("merges adjacent text deltas", func() {
		got := particle.Coalesce([]particle.Particle{
			particle.TextDelta("Hel"),
			particle.TextDelta("lo"),
			particle.EndOfTurn(particle.StopOK, "stop"),
		})
		Expect(got).To(Equal([]particle.Particle{
			particle.TextDelta("Hello"),
			particle.EndOfTurn(particle.StopOK, "stop"),
		}))
	})

	It("merges tool call deltas of the same call only", func() {
		got := particle.Coalesce([]particle.Particle{
			particle.ToolCallDelta(0, "call_1", "lookup", ""),
			particle.ToolCallDelta(0, "", "", `{"a":`),
			particle.ToolCallDelta(0, "", "", `"1"}`),
			particle.ToolCallDelta(1, "call_2", "other", `{}`),
		})
		Expect(got).To(Equal([]particle.Particle{
			particle.ToolCallDelta(0, "call_1", "lookup", `{"a":"1"}`),
			particle.ToolCallDelta(1, "call_2", "other", `{}`),
		}))
	})

	It("does not mutate its input", func() {
		in := []particle.Particle{
			particle.ToolCallDelta(0, "call_1", "lookup", "a"),
			particle.ToolCallDelta(0, "call_1", "lookup", "b"),
		}
		particle.Coalesce(in)
		Expect(in[0].ToolCall.ArgsDelta).To(Equal("a"))
	})
})
