// Package aixcmder is the root aix command.
package aixcmder

import (
	"github.com/spf13/cobra"

	authcmder "github.com/papercomputeco/aix/cmd/aix/auth"
	chatcmder "github.com/papercomputeco/aix/cmd/aix/chat"
	configcmder "github.com/papercomputeco/aix/cmd/aix/config"
	initcmder "github.com/papercomputeco/aix/cmd/aix/init"
	modelscmder "github.com/papercomputeco/aix/cmd/aix/models"
	servecmder "github.com/papercomputeco/aix/cmd/aix/serve"
	vendorscmder "github.com/papercomputeco/aix/cmd/aix/vendors"
	versioncmder "github.com/papercomputeco/aix/cmd/version"
)

const aixLongDesc string = `aix talks to any LLM vendor through one normalized stream.

OpenAI, Anthropic, OpenRouter, DeepSeek, LocalAI, LM Studio, Ollama and
Egregore requests are translated to each vendor's wire format and the
replies are normalized into text deltas, tool calls, usage updates and
end-of-turn particles.

Get started:
  aix init --preset ollama   Create a local .aix/ with an Ollama default
  aix auth anthropic         Store an API key
  aix chat                   Chat from the terminal
  aix serve                  Run the API server`

const aixShortDesc string = "aix - multi-vendor LLM dispatch"

func NewAixCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "aix",
		Short:        aixShortDesc,
		Long:         aixLongDesc,
		SilenceUsage: true,
	}

	// Global flags
	cmd.PersistentFlags().BoolP("debug", "d", false, "Enable debug logging")
	cmd.PersistentFlags().String("config-dir", "", "Override path to .aix/ config directory")

	// Add subcommands
	cmd.AddCommand(initcmder.NewInitCmd())
	cmd.AddCommand(authcmder.NewAuthCmd())
	cmd.AddCommand(configcmder.NewConfigCmd())
	cmd.AddCommand(vendorscmder.NewVendorsCmd())
	cmd.AddCommand(modelscmder.NewModelsCmd())
	cmd.AddCommand(chatcmder.NewChatCmd())
	cmd.AddCommand(servecmder.NewServeCmd())
	cmd.AddCommand(versioncmder.NewVersionCmd())

	return cmd
}
