// Package chatcmder provides the chat command for interactive LLM chat
// against any aix vendor.
package chatcmder

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"time"

	"charm.land/lipgloss/v2"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/papercomputeco/aix/cmd/aix/settings"
	"github.com/papercomputeco/aix/pkg/aix/aixerr"
	"github.com/papercomputeco/aix/pkg/aix/dispatch"
	"github.com/papercomputeco/aix/pkg/aix/executor"
	"github.com/papercomputeco/aix/pkg/cliui"
	"github.com/papercomputeco/aix/pkg/config"
	"github.com/papercomputeco/aix/pkg/dotdir"
	"github.com/papercomputeco/aix/pkg/llm"
	"github.com/papercomputeco/aix/pkg/llm/access"
)

var (
	userPrompt      = lipgloss.NewStyle().Foreground(lipgloss.Color("82")).Bold(true).Render("you> ")
	assistantPrompt = lipgloss.NewStyle().Foreground(lipgloss.Color("245")).Render("assistant> ")
)

type chatCommander struct {
	vendor      string
	model       string
	system      string
	idleTimeout time.Duration
	render      bool
	reset       bool
	noStream    bool

	configDir string
	resolve   func(vendorID string) (access.Access, error)
	exec      *executor.Executor
	sessions  *dotdir.Manager
	logger    *slog.Logger

	in  io.Reader
	out io.Writer
}

var chatFlags = []string{
	config.FlagVendor,
	config.FlagModel,
	config.FlagIdleTimeout,
}

const chatLongDesc string = `Start an interactive chat session with any supported vendor.

Messages are sent straight to the vendor through the aix dispatch core and
the reply is streamed back as it is generated. The conversation is saved in
the .aix/ directory and resumed on the next "aix chat" with the same vendor
and model. Use --reset to start over.

Commands inside the session:
  /exit     Leave the session (Ctrl+D works too)
  /reset    Forget the conversation so far

Ctrl+C while a reply streams cancels that reply only.

Examples:
  aix chat
  aix chat --vendor anthropic --model claude-3-5-haiku-latest
  aix chat --vendor ollama --model llama3.2 --render`

const chatShortDesc string = "Interactive LLM chat against any vendor"

func NewChatCmd() *cobra.Command {
	cmder := &chatCommander{}

	cmd := &cobra.Command{
		Use:   "chat",
		Short: chatShortDesc,
		Long:  chatLongDesc,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := settings.Load(cmd, chatFlags...)
			if err != nil {
				return err
			}

			cmder.vendor = cfg.Generation.DefaultVendor
			cmder.model = cfg.Generation.DefaultModel

			idle, err := cfg.Generation.IdleTimeoutDuration()
			if err != nil {
				return fmt.Errorf("parsing idle timeout: %w", err)
			}
			request, err := cfg.Generation.RequestTimeoutDuration()
			if err != nil {
				return fmt.Errorf("parsing request timeout: %w", err)
			}

			cmder.resolve, err = settings.Resolver(cmd, cfg)
			if err != nil {
				return err
			}

			cmder.configDir = settings.ConfigDir(cmd)
			cmder.logger = settings.NewLogger(cmd, os.Stderr)
			cmder.exec = executor.New(
				executor.WithIdleTimeout(idle),
				executor.WithRequestTimeout(request),
				executor.WithLogger(cmder.logger),
			)
			cmder.sessions = dotdir.NewManager()
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			cmder.in = cmd.InOrStdin()
			cmder.out = cmd.OutOrStdout()
			return cmder.run()
		},
	}

	config.AddStringFlag(cmd, config.Flags, config.FlagVendor, &cmder.vendor)
	config.AddStringFlag(cmd, config.Flags, config.FlagModel, &cmder.model)
	config.AddDurationFlag(cmd, config.Flags, config.FlagIdleTimeout, &cmder.idleTimeout)
	cmd.Flags().StringVarP(&cmder.system, "system", "s", "", "System prompt for a new conversation")
	cmd.Flags().BoolVar(&cmder.render, "render", false, "Render replies as markdown once complete")
	cmd.Flags().BoolVar(&cmder.reset, "reset", false, "Discard the saved conversation before starting")
	cmd.Flags().BoolVar(&cmder.noStream, "no-stream", false, "Request the whole reply at once instead of streaming")

	return cmd
}

func (c *chatCommander) run() error {
	if c.reset {
		if err := c.sessions.ClearSession(c.configDir); err != nil {
			return err
		}
	}

	session, err := c.loadSession()
	if err != nil {
		return err
	}

	fmt.Fprintln(c.out)
	if len(session.Messages) > 0 {
		fmt.Fprintf(c.out, "  %s Resuming conversation %s\n",
			cliui.SuccessMark,
			cliui.DimStyle.Render(fmt.Sprintf("(%d messages)", len(session.Messages))),
		)
	} else {
		fmt.Fprintf(c.out, "  %s New conversation\n", cliui.DimStyle.Render("●"))
	}
	fmt.Fprintf(c.out, "  %s %s %s\n\n",
		cliui.KeyStyle.Render("Model:"),
		cliui.NameStyle.Render(session.Model),
		cliui.DimStyle.Render("("+session.Vendor+")"),
	)
	fmt.Fprintf(c.out, "  %s\n\n", cliui.DimStyle.Render("Type your message and press Enter. /exit or Ctrl+D to quit."))

	scanner := bufio.NewScanner(c.in)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	for {
		fmt.Fprint(c.out, userPrompt)
		if !scanner.Scan() {
			// EOF or error
			break
		}

		input := strings.TrimSpace(scanner.Text())
		switch input {
		case "":
			continue
		case "/exit":
			fmt.Fprintln(c.out)
			return nil
		case "/reset":
			session.Messages = nil
			if err := c.sessions.ClearSession(c.configDir); err != nil {
				return err
			}
			fmt.Fprintf(c.out, "  %s Conversation cleared\n\n", cliui.SuccessMark)
			continue
		}

		session.Messages = append(session.Messages, llm.NewTextMessage(llm.RoleUser, input))

		reply, err := c.sendAndStream(session)
		if err != nil {
			fmt.Fprintf(c.out, "\n  %s %v\n\n", cliui.FailMark, err)
			// Remove the failed user message so we can retry
			session.Messages = session.Messages[:len(session.Messages)-1]
			continue
		}

		session.Messages = append(session.Messages, reply)
		if err := c.sessions.SaveSession(session, c.configDir); err != nil {
			c.logger.Warn("saving chat session failed", "error", err)
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("reading input: %w", err)
	}

	fmt.Fprintln(c.out)
	return nil
}

// loadSession resumes the saved conversation when it was held with the same
// vendor and model, and starts a new one otherwise.
func (c *chatCommander) loadSession() (*dotdir.ChatSession, error) {
	saved, err := c.sessions.LoadSession(c.configDir)
	if err != nil {
		return nil, fmt.Errorf("loading chat session: %w", err)
	}

	if saved != nil && saved.Vendor == c.vendor && saved.Model == c.model {
		if c.system != "" {
			saved.System = c.system
		}
		return saved, nil
	}

	return &dotdir.ChatSession{
		Vendor: c.vendor,
		Model:  c.model,
		System: c.system,
	}, nil
}

// sendAndStream runs one generation for the session and prints the reply.
// Returns the assistant message to append to the history.
func (c *chatCommander) sendAndStream(session *dotdir.ChatSession) (llm.Message, error) {
	a, err := c.resolve(session.Vendor)
	if err != nil {
		return llm.Message{}, err
	}

	model := &llm.Model{ID: session.Model}
	req := &llm.ChatGenerateRequest{
		SystemMessage: session.System,
		ChatSequence:  session.Messages,
	}

	d, err := dispatch.CreateChatGenerateDispatch(a, model, req, !c.noStream)
	if err != nil {
		return llm.Message{}, err
	}

	c.logger.Debug("sending chat request",
		"vendor", session.Vendor,
		"model", session.Model,
		"message_count", len(session.Messages),
	)

	// Ctrl+C cancels the reply in flight, not the session.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	fmt.Fprint(c.out, assistantPrompt)
	printer := newTurnPrinter(c.out, c.render)

	err = c.exec.Execute(ctx, d, printer)
	switch {
	case errors.Is(err, aixerr.ErrCanceled):
		return llm.Message{}, errors.New("reply canceled")
	case err != nil:
		return llm.Message{}, err
	case !printer.ok():
		if msg := printer.failure(); msg != "" {
			return llm.Message{}, errors.New(msg)
		}
		return llm.Message{}, errors.New("generation ended without a reply")
	}

	if c.render {
		rendered, err := cliui.RenderMarkdown(printer.text.String(), c.width())
		if err != nil {
			c.logger.Debug("rendering markdown failed", "error", err)
		}
		fmt.Fprint(c.out, "\n"+rendered)
	}

	if footer := printer.footer(); footer != "" {
		fmt.Fprintf(c.out, "\n  %s", cliui.DimStyle.Render(footer))
	}
	fmt.Fprint(c.out, "\n\n")

	// An empty assistant turn would make every later request invalid.
	msg := printer.message()
	if len(msg.Content) == 0 {
		return llm.Message{}, errors.New("generation ended with an empty reply")
	}
	return msg, nil
}

// width is the terminal width for markdown wrapping, 80 when unknown.
func (c *chatCommander) width() int {
	if f, ok := c.out.(*os.File); ok {
		if w, _, err := term.GetSize(int(f.Fd())); err == nil && w > 0 {
			return w
		}
	}
	return 80
}
