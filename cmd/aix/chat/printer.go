package chatcmder

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/papercomputeco/aix/pkg/aix/particle"
	"github.com/papercomputeco/aix/pkg/cliui"
	"github.com/papercomputeco/aix/pkg/llm"
)

// turnPrinter is the transmitter of one chat turn. It echoes text deltas as
// they arrive (unless buffered for markdown rendering) and assembles the
// assistant message that is appended to the session.
type turnPrinter struct {
	w        io.Writer
	buffered bool

	text     strings.Builder
	tools    []llm.ContentBlock
	usage    *llm.Usage
	terminal *particle.Particle
}

func newTurnPrinter(w io.Writer, buffered bool) *turnPrinter {
	return &turnPrinter{w: w, buffered: buffered}
}

func (p *turnPrinter) Send(pt particle.Particle) {
	switch pt.Kind {
	case particle.KindTextDelta:
		p.text.WriteString(pt.Text)
		if !p.buffered {
			fmt.Fprint(p.w, pt.Text)
		}

	case particle.KindToolCallComplete:
		tc := pt.ToolCall
		var input map[string]any
		if err := json.Unmarshal(tc.Args, &input); err != nil {
			input = map[string]any{"arguments": string(tc.Args)}
		}
		p.tools = append(p.tools, llm.ContentBlock{
			Type:      llm.BlockToolUse,
			ToolUseID: tc.ID,
			ToolName:  tc.Name,
			ToolInput: input,
		})
		fmt.Fprintf(p.w, "\n  %s %s\n", cliui.ToolStyle.Render("tool call "+tc.Name), cliui.DimStyle.Render(string(tc.Args)))

	case particle.KindUsage:
		p.usage = pt.Usage

	case particle.KindEndOfTurn, particle.KindError:
		terminal := pt
		p.terminal = &terminal
	}
}

// ok reports whether the turn ended normally.
func (p *turnPrinter) ok() bool {
	return p.terminal != nil && p.terminal.Kind == particle.KindEndOfTurn
}

// failure returns the terminal error particle as text, empty when none.
func (p *turnPrinter) failure() string {
	if p.terminal == nil || p.terminal.Kind != particle.KindError || p.terminal.Error == nil {
		return ""
	}
	return fmt.Sprintf("%s error: %s", p.terminal.Error.Kind, p.terminal.Error.Message)
}

// message returns the assistant turn assembled from the particles.
func (p *turnPrinter) message() llm.Message {
	msg := llm.Message{Role: llm.RoleAssistant}
	if p.text.Len() > 0 {
		msg.Content = append(msg.Content, llm.ContentBlock{Type: llm.BlockText, Text: p.text.String()})
	}
	msg.Content = append(msg.Content, p.tools...)
	return msg
}

// footer summarizes the stop reason and token usage of the turn.
func (p *turnPrinter) footer() string {
	var parts []string
	if p.terminal != nil && p.terminal.Kind == particle.KindEndOfTurn && p.terminal.StopReason != particle.StopOK {
		parts = append(parts, "stop: "+string(p.terminal.StopReason))
	}
	if !p.usage.IsZero() {
		parts = append(parts, fmt.Sprintf("%s in / %s out",
			cliui.FormatTokens(p.usage.PromptTokens),
			cliui.FormatTokens(p.usage.CompletionTokens),
		))
	}
	return strings.Join(parts, ", ")
}
