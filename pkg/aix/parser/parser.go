// Package parser turns vendor response frames into vendor-neutral particles.
//
// There is one state machine per dialect and mode. Each parser instance owns
// the state of exactly one in-flight dispatch and must not be shared. A
// parser emits at most one terminal particle (end-of-turn or error); every
// Parse call after that returns ErrParserTerminated and emits nothing.
package parser

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/papercomputeco/aix/pkg/aix/particle"
	"github.com/papercomputeco/aix/pkg/llm"
)

// ErrParserTerminated is returned by Parse once a terminal particle was emitted.
var ErrParserTerminated = errors.New("parser already terminated")

// Parser consumes frames and emits particles synchronously, in order.
type Parser interface {
	// Parse consumes one frame (streaming) or the whole body (non-streaming).
	// event is the SSE event name, if any. Vendor and framing errors are
	// reported as error particles, not as a returned error.
	Parse(t particle.Transmitter, data, event string) error

	// Finish is called at clean end of stream. A parser that has not reached
	// a terminal state flushes pending tool calls and usage and ends the turn.
	Finish(t particle.Transmitter)

	// Terminated reports whether a terminal particle was emitted.
	Terminated() bool
}

// machine holds the state shared by every dialect state machine.
type machine struct {
	terminated bool
	sawFrame   bool
	usage      llm.Usage
	tools      toolCallAccumulator
}

func (m *machine) Terminated() bool {
	return m.terminated
}

// begin guards every Parse call.
func (m *machine) begin() error {
	if m.terminated {
		return ErrParserTerminated
	}
	m.sawFrame = true
	return nil
}

// fail emits a terminal error particle.
func (m *machine) fail(t particle.Transmitter, kind particle.ErrorKind, message string) {
	t.Send(particle.Failure(kind, message))
	m.terminated = true
}

// malformed reports a frame that could not be decoded.
func (m *machine) malformed(t particle.Transmitter, dialect string, err error) {
	m.fail(t, particle.ErrorFraming, fmt.Sprintf("%s: malformed frame: %v", dialect, err))
}

// end completes pending tool calls, emits usage once, then end-of-turn.
func (m *machine) end(t particle.Transmitter, reason particle.StopReason, vendorStop string) {
	m.tools.flush(t)
	if !m.usage.IsZero() {
		t.Send(particle.UsageUpdate(m.usage))
	}
	t.Send(particle.EndOfTurn(reason, vendorStop))
	m.terminated = true
}

// finishStream implements Finish for streaming parsers that may end without
// their vendor terminal signal.
func (m *machine) finishStream(t particle.Transmitter, dialect string, reason particle.StopReason, vendorStop string) {
	if m.terminated {
		return
	}
	if !m.sawFrame {
		m.fail(t, particle.ErrorFraming, dialect+": stream ended without any data")
		return
	}
	if reason == "" {
		reason = particle.StopOK
		if m.tools.seen() {
			reason = particle.StopToolInvocations
		}
	}
	m.end(t, reason, vendorStop)
}

// finishSingle implements Finish for non-streaming parsers.
func (m *machine) finishSingle(t particle.Transmitter, dialect string) {
	if m.terminated {
		return
	}
	m.fail(t, particle.ErrorFraming, dialect+": response ended without a body")
}

// vendorErrorMessage extracts a message from an error field that may be an
// object ({"message": ...}) or a bare string.
func vendorErrorMessage(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}

	var obj struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    any    `json:"code"`
	}
	if err := json.Unmarshal(raw, &obj); err != nil {
		return string(raw)
	}
	switch {
	case obj.Message != "":
		return obj.Message
	case obj.Type != "":
		return obj.Type
	case obj.Code != nil:
		return fmt.Sprint(obj.Code)
	default:
		return string(raw)
	}
}
