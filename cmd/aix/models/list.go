package modelscmder

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/aix/pkg/cliui"
)

const listLongDesc string = `List the models served by a vendor.

Cloud vendors are asked for their model catalog; Ollama-family servers
report the models installed on them, with context window and capabilities
read from each model.

Examples:
  aix models list
  aix models list --vendor openai`

const listShortDesc string = "List the models of a vendor"

func newListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: listShortDesc,
		Long:  listLongDesc,
		Args:  cobra.NoArgs,
	}

	cmder := newCommander(cmd)
	cmd.RunE = func(cmd *cobra.Command, _ []string) error {
		return cmder.list(cmd.Context())
	}

	return cmd
}

func (c *modelsCommander) list(ctx context.Context) error {
	v, a, err := c.resolveAccess()
	if err != nil {
		return err
	}

	models, err := v.ListModels(ctx, a)
	if err != nil {
		return fmt.Errorf("listing %s models: %w", v.ID, err)
	}

	fmt.Fprintf(c.out, "\n  %s %s\n\n", cliui.HeaderStyle.Render(v.Name), cliui.DimStyle.Render(fmt.Sprintf("(%d models)", len(models))))
	if len(models) == 0 {
		fmt.Fprintf(c.out, "  %s\n\n", cliui.DimStyle.Render("No models found."))
		return nil
	}

	width := 0
	for _, m := range models {
		width = max(width, len(m.ID))
	}

	for _, m := range models {
		detail := []string{}
		if m.ContextWindow > 0 {
			detail = append(detail, cliui.FormatTokens(m.ContextWindow)+" ctx")
		}
		if len(m.Interfaces) > 0 {
			detail = append(detail, strings.Join(m.Interfaces, ","))
		}

		fmt.Fprintf(c.out, "  %s  %s\n",
			cliui.NameStyle.Render(fmt.Sprintf("%-*s", width, m.ID)),
			cliui.DimStyle.Render(strings.Join(detail, "  ")),
		)
	}
	fmt.Fprintln(c.out)

	return nil
}
