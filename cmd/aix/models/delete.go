package modelscmder

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/aix/pkg/cliui"
)

const deleteLongDesc string = `Delete a model from an Ollama-family server.

Examples:
  aix models delete llama3.2
  aix models delete qwen2.5:7b --vendor egregore`

const deleteShortDesc string = "Delete a model from an Ollama server"

func newDeleteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete <name>",
		Short: deleteShortDesc,
		Long:  deleteLongDesc,
		Args:  cobra.ExactArgs(1),
	}

	cmder := newCommander(cmd)
	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		return cmder.delete(cmd.Context(), args[0])
	}

	return cmd
}

func (c *modelsCommander) delete(ctx context.Context, name string) error {
	client, err := c.adminClient()
	if err != nil {
		return err
	}

	if err := client.Delete(ctx, name); err != nil {
		return fmt.Errorf("deleting %s: %w", name, err)
	}

	fmt.Fprintf(c.out, "\n  %s Deleted %s\n\n", cliui.SuccessMark, cliui.NameStyle.Render(name))
	return nil
}
