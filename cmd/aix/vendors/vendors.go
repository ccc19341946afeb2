// Package vendorscmder provides the vendors command listing the model
// vendor registry.
package vendorscmder

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/aix/cmd/aix/settings"
	"github.com/papercomputeco/aix/pkg/cliui"
	"github.com/papercomputeco/aix/pkg/credentials"
	"github.com/papercomputeco/aix/pkg/llm/vendor"
)

const vendorsLongDesc string = `List the supported model vendors in display order.

A vendor is marked configured when its server environment variable is set
(for example OPENAI_API_KEY or OLLAMA_API_HOST) or an API key is stored
with "aix auth".`

const vendorsShortDesc string = "List supported model vendors"

func NewVendorsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "vendors",
		Short: vendorsShortDesc,
		Long:  vendorsLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			keys, err := credentials.NewManager(settings.ConfigDir(cmd))
			if err != nil {
				return fmt.Errorf("loading credentials: %w", err)
			}
			return run(cmd.OutOrStdout(), keys)
		},
	}

	return cmd
}

func run(w io.Writer, keys *credentials.Manager) error {
	fmt.Fprintf(w, "\n  %s\n\n", cliui.HeaderStyle.Render("Vendors"))

	for _, v := range vendor.FindAllModelVendors() {
		configured, err := isConfigured(v, keys)
		if err != nil {
			return err
		}

		mark := cliui.DimStyle.Render("·")
		if configured {
			mark = cliui.SuccessMark
		}

		fmt.Fprintf(w, "  %s  %-10s %-18s %s\n",
			mark,
			cliui.NameStyle.Render(v.ID),
			v.Name,
			cliui.DimStyle.Render(fmt.Sprintf("%s, up to %d", v.Location, v.InstanceLimit)),
		)
	}
	fmt.Fprintln(w)

	return nil
}

func isConfigured(v *vendor.Vendor, keys *credentials.Manager) (bool, error) {
	if v.HasServerConfigKey != "" && os.Getenv(v.HasServerConfigKey) != "" {
		return true, nil
	}
	if !credentials.IsSupportedProvider(v.ID) {
		return false, nil
	}
	key, err := keys.GetKey(v.ID)
	if err != nil {
		return false, err
	}
	return key != "", nil
}
