package modelscmder

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/aix/pkg/cliui"
	"github.com/papercomputeco/aix/pkg/llm/ollamaapi"
)

const pullableLongDesc string = `List well-known models that can be pulled onto an Ollama-family server.

Examples:
  aix models pullable`

const pullableShortDesc string = "List pullable Ollama models"

func newPullableCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pullable",
		Short: pullableShortDesc,
		Long:  pullableLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runPullable(cmd.OutOrStdout())
		},
	}

	return cmd
}

func runPullable(w io.Writer) error {
	models := ollamaapi.ListPullable()

	fmt.Fprintf(w, "\n  %s\n\n", cliui.HeaderStyle.Render("Pullable models"))

	width := 0
	for _, m := range models {
		width = max(width, len(m.ID))
	}

	for _, m := range models {
		badge := " "
		if m.IsNew {
			badge = cliui.WarnStyle.Render("*")
		}

		tags := ""
		if len(m.Tags) > 0 {
			tags = " [" + strings.Join(m.Tags, ", ") + "]"
		}

		fmt.Fprintf(w, "  %s %s  %s\n",
			badge,
			cliui.NameStyle.Render(fmt.Sprintf("%-*s", width, m.ID)),
			cliui.DimStyle.Render(m.Description+tags),
		)
	}
	fmt.Fprintf(w, "\n  %s\n\n", cliui.DimStyle.Render("* recently added"))

	return nil
}
