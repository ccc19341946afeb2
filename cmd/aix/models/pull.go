package modelscmder

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/aix/pkg/cliui"
)

const pullLongDesc string = `Pull a model onto an Ollama-family server.

The name may carry a tag ("qwen2.5:7b"); without one the server pulls
"latest". Pulls can take minutes and are only bounded by Ctrl+C.

Examples:
  aix models pull llama3.2
  aix models pull qwen2.5:7b --vendor egregore`

const pullShortDesc string = "Pull a model onto an Ollama server"

func newPullCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pull <name>",
		Short: pullShortDesc,
		Long:  pullLongDesc,
		Args:  cobra.ExactArgs(1),
	}

	cmder := newCommander(cmd)
	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		return cmder.pull(cmd.Context(), args[0])
	}

	return cmd
}

func (c *modelsCommander) pull(ctx context.Context, name string) error {
	client, err := c.adminClient()
	if err != nil {
		return err
	}

	var status string
	err = cliui.Step(c.out, "Pulling "+name, func() error {
		res, err := client.Pull(ctx, name)
		if err != nil {
			return err
		}
		if res.Error != "" {
			return errors.New(res.Error)
		}
		status = res.Status
		return nil
	})
	if err != nil {
		return fmt.Errorf("pulling %s: %w", name, err)
	}

	fmt.Fprintf(c.out, "  %s\n\n", cliui.DimStyle.Render(status))
	return nil
}
