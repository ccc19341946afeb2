// Package particle defines the vendor-neutral generation particle and the
// transmitter sink that parsers emit particles onto.
package particle

import (
	"encoding/json"

	"github.com/papercomputeco/aix/pkg/llm"
)

// Kind is the particle discriminator.
type Kind string

const (
	KindTextDelta        Kind = "text-delta"
	KindToolCallDelta    Kind = "tool-call-delta"
	KindToolCallComplete Kind = "tool-call-complete"
	KindUsage            Kind = "usage"
	KindError            Kind = "error"
	KindEndOfTurn        Kind = "end-of-turn"
)

// StopReason is the normalized end-of-turn reason.
type StopReason string

const (
	StopOK              StopReason = "ok"
	StopToolInvocations StopReason = "tool-invocations"
	StopOutOfTokens     StopReason = "out-of-tokens"
	StopFilter          StopReason = "filter"
	StopOther           StopReason = "other"
)

// ErrorKind classifies error particles.
type ErrorKind string

const (
	ErrorVendor    ErrorKind = "vendor"
	ErrorFraming   ErrorKind = "framing"
	ErrorTransport ErrorKind = "transport"
	ErrorTimeout   ErrorKind = "timeout"
)

// ToolCall carries a tool invocation fragment or the completed invocation.
type ToolCall struct {
	Index     int             `json:"index"`
	ID        string          `json:"id,omitempty"`
	Name      string          `json:"name,omitempty"`
	ArgsDelta string          `json:"args_delta,omitempty"`
	Args      json.RawMessage `json:"args,omitempty"`
}

// Error carries a terminal error.
type Error struct {
	Kind    ErrorKind `json:"kind"`
	Message string    `json:"message"`
}

// Particle is the single unit every vendor output is normalized into.
// Exactly one of the payload fields is set, matching Kind.
type Particle struct {
	Kind       Kind       `json:"kind"`
	Text       string     `json:"text,omitempty"`
	ToolCall   *ToolCall  `json:"tool_call,omitempty"`
	Usage      *llm.Usage `json:"usage,omitempty"`
	Error      *Error     `json:"error,omitempty"`
	StopReason StopReason `json:"stop_reason,omitempty"`
	VendorStop string     `json:"vendor_stop,omitempty"`
}

// IsTerminal reports whether p ends a dispatch.
func (p Particle) IsTerminal() bool {
	return p.Kind == KindEndOfTurn || p.Kind == KindError
}

// TextDelta returns a text-delta particle.
func TextDelta(text string) Particle {
	return Particle{Kind: KindTextDelta, Text: text}
}

// ToolCallDelta returns a tool-call-delta particle for one argument fragment.
func ToolCallDelta(index int, id, name, argsDelta string) Particle {
	return Particle{
		Kind:     KindToolCallDelta,
		ToolCall: &ToolCall{Index: index, ID: id, Name: name, ArgsDelta: argsDelta},
	}
}

// ToolCallComplete returns the completed tool call with merged arguments.
func ToolCallComplete(index int, id, name string, args json.RawMessage) Particle {
	return Particle{
		Kind:     KindToolCallComplete,
		ToolCall: &ToolCall{Index: index, ID: id, Name: name, Args: args},
	}
}

// UsageUpdate returns a usage particle.
func UsageUpdate(u llm.Usage) Particle {
	return Particle{Kind: KindUsage, Usage: &u}
}

// Failure returns an error particle.
func Failure(kind ErrorKind, message string) Particle {
	return Particle{Kind: KindError, Error: &Error{Kind: kind, Message: message}}
}

// EndOfTurn returns an end-of-turn particle. vendorStop is the raw vendor
// finish reason, kept for diagnostics.
func EndOfTurn(reason StopReason, vendorStop string) Particle {
	return Particle{Kind: KindEndOfTurn, StopReason: reason, VendorStop: vendorStop}
}
