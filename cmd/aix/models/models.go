// Package modelscmder provides the models command for listing vendor models
// and administering models on Ollama-family servers.
package modelscmder

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/aix/cmd/aix/settings"
	"github.com/papercomputeco/aix/pkg/config"
	"github.com/papercomputeco/aix/pkg/llm/access"
	"github.com/papercomputeco/aix/pkg/llm/ollamaapi"
	"github.com/papercomputeco/aix/pkg/llm/vendor"
)

type modelsCommander struct {
	vendor  string
	resolve func(vendorID string) (access.Access, error)
	out     io.Writer
}

const modelsLongDesc string = `List the models a vendor serves and manage models on local servers.

Listing works for every vendor. Pulling and deleting models is only
available on Ollama-family servers (ollama, egregore).

Examples:
  aix models list --vendor anthropic
  aix models pullable
  aix models pull qwen2.5 --vendor ollama
  aix models delete qwen2.5 --vendor ollama`

const modelsShortDesc string = "List and manage vendor models"

func NewModelsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "models",
		Short: modelsShortDesc,
		Long:  modelsLongDesc,
	}

	cmd.AddCommand(newListCmd())
	cmd.AddCommand(newPullableCmd())
	cmd.AddCommand(newPullCmd())
	cmd.AddCommand(newDeleteCmd())

	return cmd
}

// newCommander registers the --vendor flag on cmd and returns a commander
// that is prepared from the resolved settings before cmd runs.
func newCommander(cmd *cobra.Command) *modelsCommander {
	cmder := &modelsCommander{}

	config.AddStringFlag(cmd, config.Flags, config.FlagVendor, &cmder.vendor)
	cmd.PreRunE = func(cmd *cobra.Command, _ []string) error {
		cfg, err := settings.Load(cmd, config.FlagVendor)
		if err != nil {
			return err
		}
		cmder.vendor = cfg.Generation.DefaultVendor

		cmder.resolve, err = settings.Resolver(cmd, cfg)
		if err != nil {
			return err
		}
		cmder.out = cmd.OutOrStdout()
		return nil
	}

	return cmder
}

func (c *modelsCommander) resolveAccess() (*vendor.Vendor, access.Access, error) {
	v := vendor.FindModelVendor(c.vendor)
	if v == nil {
		return nil, nil, fmt.Errorf("unknown vendor: %q", c.vendor)
	}

	a, err := c.resolve(v.ID)
	if err != nil {
		return nil, nil, err
	}
	return v, a, nil
}

// adminClient returns an Ollama admin client for the selected vendor.
func (c *modelsCommander) adminClient() (*ollamaapi.Client, error) {
	v, a, err := c.resolveAccess()
	if err != nil {
		return nil, err
	}

	client, err := ollamaapi.NewClient(a)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", v.ID, err)
	}
	return client, nil
}
