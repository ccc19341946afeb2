// Package configcmder provides the config command for managing persistent
// aix configuration stored in the .aix/ directory.
package configcmder

import (
	"github.com/spf13/cobra"
)

const configLongDesc string = `Manage persistent aix configuration.

Configuration is stored as config.toml in the .aix/ directory and provides
default values for command flags. CLI flags and AIX_* environment variables
take precedence over config file values.

Keys use dotted notation matching the TOML section structure:
  server.listen,
  generation.default_vendor, generation.default_model,
  generation.idle_timeout, generation.request_timeout,
  vendors.<vendor>.host, vendors.<vendor>.org_id,
  vendors.<vendor>.helicone_key, vendors.<vendor>.json_output,
  events.publisher, events.brokers, events.topic

Use subcommands to get, set, or list configuration values:
  aix config set <key> <value>    Set a configuration value
  aix config get <key>            Get a configuration value
  aix config list                 List all configuration values

Examples:
  aix config set generation.default_vendor anthropic
  aix config set vendors.ollama.host http://gpu-box:11434
  aix config get generation.default_model
  aix config list`

const configShortDesc string = "Manage persistent aix configuration"

func NewConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: configShortDesc,
		Long:  configLongDesc,
	}

	cmd.AddCommand(newSetCmd())
	cmd.AddCommand(newGetCmd())
	cmd.AddCommand(newListCmd())

	return cmd
}
