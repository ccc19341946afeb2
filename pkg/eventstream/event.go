package eventstream

import (
	"time"

	"github.com/google/uuid"

	"github.com/papercomputeco/aix/pkg/aix/particle"
	"github.com/papercomputeco/aix/pkg/llm"
)

const (
	// SchemaVersionV1 is the first version of the event payload schema.
	SchemaVersionV1 = 1

	// EventTypeGenerationCompleted is emitted after every API dispatch,
	// whatever its outcome.
	EventTypeGenerationCompleted = "aix.generation.completed"
)

// Terminal outcomes of a generation.
const (
	TerminalEndOfTurn = "end-of-turn"
	TerminalError     = "error"
	TerminalCanceled  = "canceled"
)

// GenerationCompletedEvent is a transport-neutral event payload describing a
// finished generation. It carries counters, never prompt or completion text.
type GenerationCompletedEvent struct {
	SchemaVersion int         `json:"schema_version"`
	EventType     string      `json:"event_type"`
	EventID       string      `json:"event_id"`
	EmittedAt     time.Time   `json:"emitted_at"`
	Source        EventSource `json:"source"`
	RequestMeta   RequestMeta `json:"request_meta"`
	Outcome       Outcome     `json:"outcome"`
	Usage         *llm.Usage  `json:"usage,omitempty"`
}

// EventSource identifies the vendor and model that served the generation.
type EventSource struct {
	Vendor  string `json:"vendor"`
	Dialect string `json:"dialect"`
	Model   string `json:"model"`
}

// RequestMeta captures request lifecycle metadata for the event.
type RequestMeta struct {
	RequestID   string    `json:"request_id,omitempty"`
	Path        string    `json:"path,omitempty"`
	StartedAt   time.Time `json:"started_at"`
	CompletedAt time.Time `json:"completed_at"`
	DurationMs  int64     `json:"duration_ms"`
	Streaming   bool      `json:"streaming"`
}

// Outcome summarizes the particles of a generation.
type Outcome struct {
	Terminal     string `json:"terminal"`
	StopReason   string `json:"stop_reason,omitempty"`
	ErrorKind    string `json:"error_kind,omitempty"`
	ErrorMessage string `json:"error_message,omitempty"`
	Particles    int    `json:"particles"`
	TextBytes    int    `json:"text_bytes"`
	ToolCalls    int    `json:"tool_calls"`
}

// NewGenerationCompleted returns an event stamped with a fresh id.
func NewGenerationCompleted(source EventSource, meta RequestMeta, tally *Tally) *GenerationCompletedEvent {
	meta.DurationMs = meta.CompletedAt.Sub(meta.StartedAt).Milliseconds()
	ev := &GenerationCompletedEvent{
		SchemaVersion: SchemaVersionV1,
		EventType:     EventTypeGenerationCompleted,
		EventID:       uuid.NewString(),
		EmittedAt:     time.Now().UTC(),
		Source:        source,
		RequestMeta:   meta,
	}
	if tally != nil {
		ev.Outcome = tally.Outcome()
		ev.Usage = tally.Usage()
	}
	return ev
}

// Tally is a transmitter that forwards particles while summarizing them for
// a generation event.
type Tally struct {
	next    particle.Transmitter
	outcome Outcome
	usage   *llm.Usage
}

// NewTally wraps next. A nil next only tallies.
func NewTally(next particle.Transmitter) *Tally {
	return &Tally{next: next}
}

// Send records p and forwards it.
func (t *Tally) Send(p particle.Particle) {
	t.outcome.Particles++
	switch p.Kind {
	case particle.KindTextDelta:
		t.outcome.TextBytes += len(p.Text)
	case particle.KindToolCallComplete:
		t.outcome.ToolCalls++
	case particle.KindUsage:
		t.usage = p.Usage
	case particle.KindEndOfTurn:
		t.outcome.Terminal = TerminalEndOfTurn
		t.outcome.StopReason = string(p.StopReason)
	case particle.KindError:
		t.outcome.Terminal = TerminalError
		if p.Error != nil {
			t.outcome.ErrorKind = string(p.Error.Kind)
			t.outcome.ErrorMessage = p.Error.Message
		}
	}
	if t.next != nil {
		t.next.Send(p)
	}
}

// Outcome returns the summary so far. A generation without a terminal
// particle was canceled.
func (t *Tally) Outcome() Outcome {
	o := t.outcome
	if o.Terminal == "" {
		o.Terminal = TerminalCanceled
	}
	return o
}

// Usage returns the reported usage, if any.
func (t *Tally) Usage() *llm.Usage {
	return t.usage
}
