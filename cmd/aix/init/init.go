// Package initcmder provides the init command for initializing a local .aix
// directory in the current working directory.
package initcmder

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/aix/pkg/cliui"
	"github.com/papercomputeco/aix/pkg/config"
)

const (
	dirName = ".aix"
)

const initLongDesc string = `Initialize a new .aix/ directory in the current working directory.

Creates a local .aix/ directory that takes precedence over the default
~/.aix/ directory for configuration, credentials and the chat session.

With --preset, a config.toml is written that points generation at the named
vendor with a sensible default model (and host, for local servers).

Examples:
  aix init
  aix init --preset ollama
  aix init --preset anthropic`

const initShortDesc string = "Initialize a local .aix/ directory"

func NewInitCmd() *cobra.Command {
	var preset string

	cmd := &cobra.Command{
		Use:   "init",
		Short: initShortDesc,
		Long:  initLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runInit(cmd.OutOrStdout(), preset)
		},
	}

	cmd.Flags().StringVar(&preset, "preset", "",
		fmt.Sprintf("Write a config.toml for a vendor (%s)", strings.Join(config.ValidPresetNames(), ", ")))

	return cmd
}

func runInit(w io.Writer, preset string) error {
	var cfg *config.Config
	if preset != "" {
		var err error
		cfg, err = config.PresetConfig(preset)
		if err != nil {
			return err
		}
	}

	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("getting current directory: %w", err)
	}

	dir := filepath.Join(cwd, dirName)

	info, err := os.Stat(dir)
	switch {
	case err == nil && info.IsDir():
		fmt.Fprintf(w, "Already initialized: %s\n", dir)
	default:
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating .aix directory: %w", err)
		}
		fmt.Fprintf(w, "Initialized .aix directory: %s\n", dir)
	}

	if cfg == nil {
		return nil
	}

	cfger, err := config.NewConfiger(dir)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if err := cfger.SaveConfig(cfg); err != nil {
		return err
	}

	fmt.Fprintf(w, "  %s Wrote %s preset %s\n",
		cliui.SuccessMark,
		cliui.NameStyle.Render(strings.ToLower(preset)),
		cliui.DimStyle.Render("("+cfg.Generation.DefaultModel+")"),
	)
	return nil
}
