package parser

import (
	"encoding/json"
	"strings"

	"github.com/papercomputeco/aix/pkg/aix/particle"
)

// toolCall is one tool invocation being assembled from fragments.
type toolCall struct {
	index    int
	id       string
	name     string
	args     strings.Builder
	complete bool
}

// toolCallAccumulator collects argument fragments per call, keyed by the
// vendor's call index, and emits exactly one completion particle per call.
type toolCallAccumulator struct {
	calls []*toolCall
}

func (a *toolCallAccumulator) find(index int) *toolCall {
	for _, c := range a.calls {
		if c.index == index {
			return c
		}
	}
	return nil
}

// seen reports whether any tool call was started.
func (a *toolCallAccumulator) seen() bool {
	return len(a.calls) > 0
}

// open returns the call at index, creating it and emitting its start delta
// when it is new. Later non-empty id and name values fill in missing ones.
func (a *toolCallAccumulator) open(t particle.Transmitter, index int, id, name string) *toolCall {
	c := a.find(index)
	if c == nil {
		c = &toolCall{index: index, id: id, name: name}
		a.calls = append(a.calls, c)
		t.Send(particle.ToolCallDelta(index, id, name, ""))
		return c
	}
	if c.id == "" {
		c.id = id
	}
	if c.name == "" {
		c.name = name
	}
	return c
}

// appendArgs adds an argument fragment to the call at index and forwards it.
func (a *toolCallAccumulator) appendArgs(t particle.Transmitter, index int, fragment string) {
	if fragment == "" {
		return
	}
	c := a.open(t, index, "", "")
	if c.complete {
		return
	}
	c.args.WriteString(fragment)
	t.Send(particle.ToolCallDelta(index, c.id, c.name, fragment))
}

// setArgs replaces the arguments of a call that received no fragments, used
// when the vendor only reports the full arguments in its completion signal.
func (a *toolCallAccumulator) setArgs(t particle.Transmitter, index int, args string) {
	c := a.find(index)
	if c == nil || c.complete || c.args.Len() > 0 {
		return
	}
	a.appendArgs(t, index, args)
}

// complete emits the completion particle for the call at index, once.
func (a *toolCallAccumulator) complete(t particle.Transmitter, index int) {
	c := a.find(index)
	if c == nil || c.complete {
		return
	}
	c.complete = true
	t.Send(particle.ToolCallComplete(c.index, c.id, c.name, mergedArgs(c.args.String())))
}

// completeBefore completes every pending call whose index differs from index.
// OpenAI chat streams move to the next call without an explicit stop signal.
func (a *toolCallAccumulator) completeBefore(t particle.Transmitter, index int) {
	for _, c := range a.calls {
		if c.index != index {
			a.complete(t, c.index)
		}
	}
}

// flush completes every pending call in the order they were started.
func (a *toolCallAccumulator) flush(t particle.Transmitter) {
	for _, c := range a.calls {
		a.complete(t, c.index)
	}
}

// mergedArgs returns the accumulated arguments as a JSON value. Empty
// arguments become {}. Arguments that are not valid JSON (for example cut
// short by the token limit) are passed on as a JSON string.
func mergedArgs(args string) json.RawMessage {
	args = strings.TrimSpace(args)
	if args == "" {
		return json.RawMessage("{}")
	}
	if json.Valid([]byte(args)) {
		return json.RawMessage(args)
	}
	quoted, _ := json.Marshal(args)
	return quoted
}
