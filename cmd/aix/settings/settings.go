// Package settings resolves the effective configuration, credentials and
// logger shared by aix commands.
package settings

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/aix/pkg/config"
	"github.com/papercomputeco/aix/pkg/credentials"
	"github.com/papercomputeco/aix/pkg/dotdir"
	"github.com/papercomputeco/aix/pkg/llm/access"
	"github.com/papercomputeco/aix/pkg/logger"
)

// ConfigDir returns the --config-dir override, empty when unset.
func ConfigDir(cmd *cobra.Command) string {
	dir, _ := cmd.Flags().GetString("config-dir")
	return dir
}

// Debug reports whether --debug was passed.
func Debug(cmd *cobra.Command) bool {
	debug, _ := cmd.Flags().GetBool("debug")
	return debug
}

// Load resolves the configuration for cmd through the viper precedence chain
// (flag > AIX_* env > config.toml > defaults) and validates it. flagKeys
// names the config.Flags entries registered on cmd.
func Load(cmd *cobra.Command, flagKeys ...string) (*config.Config, error) {
	v, err := config.InitViper(ConfigDir(cmd))
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	config.BindRegisteredFlags(v, cmd, config.Flags, flagKeys)

	cfg := config.FromViper(v)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Resolver returns a function that builds the access value of a vendor from
// cfg and the credentials store.
func Resolver(cmd *cobra.Command, cfg *config.Config) (func(vendorID string) (access.Access, error), error) {
	keys, err := credentials.NewManager(ConfigDir(cmd))
	if err != nil {
		return nil, fmt.Errorf("loading credentials: %w", err)
	}
	return func(vendorID string) (access.Access, error) {
		return cfg.Access(vendorID, keys)
	}, nil
}

// NewLogger builds the command logger. Logs go to w with secrets redacted;
// --debug lowers the level and switches to the pretty handler.
func NewLogger(cmd *cobra.Command, w io.Writer) *slog.Logger {
	debug := Debug(cmd)
	return logger.New(
		logger.WithDebug(debug),
		logger.WithPretty(debug),
		logger.WithRedaction(true),
		logger.WithWriter(w),
	)
}

// ServeLogFile is the name of the JSON log "aix serve" appends to inside the
// .aix directory.
const ServeLogFile = "serve.log"

// NewServeLogger builds the server logger: the command logger on console plus
// JSON records appended to serve.log in the resolved .aix directory. The
// caller closes the returned file.
func NewServeLogger(cmd *cobra.Command, console io.Writer) (*slog.Logger, io.Closer, error) {
	dir, err := dotdir.NewManager().Target(ConfigDir(cmd))
	if err != nil {
		return nil, nil, fmt.Errorf("resolving log dir: %w", err)
	}

	f, err := os.OpenFile(filepath.Join(dir, ServeLogFile), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return nil, nil, fmt.Errorf("opening server log: %w", err)
	}

	file := logger.New(
		logger.WithDebug(Debug(cmd)),
		logger.WithJSON(true),
		logger.WithRedaction(true),
		logger.WithWriter(f),
	)
	return logger.Multi(NewLogger(cmd, console), file), f, nil
}
