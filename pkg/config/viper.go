package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/papercomputeco/aix/pkg/dotdir"
	"github.com/papercomputeco/aix/pkg/llm/vendor"
)

// InitViper creates and returns a configured *viper.Viper.
// It sets defaults from NewDefaultConfig(), reads the config.toml file
// (if found via dotdir resolution), and binds environment variables
// with the AIX_ prefix.
//
// Config precedence (highest to lowest):
//  1. CLI flags (once bound via BindRegisteredFlags)
//  2. Environment variables (AIX_SERVER_LISTEN, AIX_VENDORS_OLLAMA_HOST, etc.)
//  3. config.toml file values
//  4. Defaults from NewDefaultConfig()
func InitViper(configDir string) (*viper.Viper, error) {
	v := viper.New()

	// 1. Register all defaults from NewDefaultConfig().
	setViperDefaults(v)

	// 2. Config file discovery via dotdir resolution.
	v.SetConfigName("config")
	v.SetConfigType("toml")

	ddm := dotdir.NewManager()
	target, err := ddm.Target(configDir)
	if err != nil {
		return nil, fmt.Errorf("resolving config dir: %w", err)
	}

	if target != "" {
		v.AddConfigPath(target)
	}

	if err := v.ReadInConfig(); err != nil {
		// Config file not found errors are fine, defaults will apply.
		if !errors.As(err, &viper.ConfigFileNotFoundError{}) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	// 3. Environment variables: AIX_SERVER_LISTEN, AIX_GENERATION_DEFAULT_MODEL, etc.
	v.SetEnvPrefix("AIX")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return v, nil
}

// setViperDefaults registers defaults from NewDefaultConfig() into viper
// using dotted-key notation. This keeps defaults.go as the single source of truth.
func setViperDefaults(v *viper.Viper) {
	d := NewDefaultConfig()

	v.SetDefault("version", d.Version)

	// Server
	v.SetDefault("server.listen", d.Server.Listen)

	// Generation
	v.SetDefault("generation.default_vendor", d.Generation.DefaultVendor)
	v.SetDefault("generation.default_model", d.Generation.DefaultModel)
	v.SetDefault("generation.idle_timeout", d.Generation.IdleTimeout)
	v.SetDefault("generation.request_timeout", d.Generation.RequestTimeout)

	// Events
	v.SetDefault("events.publisher", d.Events.Publisher)
	v.SetDefault("events.brokers", d.Events.Brokers)
	v.SetDefault("events.topic", d.Events.Topic)
}

// FromViper materializes a Config from v, so every value honors the
// flag > env > file > default precedence chain. Vendor sections are read
// key by key because AutomaticEnv only resolves keys it is asked for.
func FromViper(v *viper.Viper) *Config {
	cfg := &Config{
		Version: v.GetInt("version"),
		Server: ServerConfig{
			Listen: v.GetString("server.listen"),
		},
		Generation: GenerationConfig{
			DefaultVendor:  v.GetString("generation.default_vendor"),
			DefaultModel:   v.GetString("generation.default_model"),
			IdleTimeout:    v.GetString("generation.idle_timeout"),
			RequestTimeout: v.GetString("generation.request_timeout"),
		},
		Events: EventsConfig{
			Publisher: v.GetString("events.publisher"),
			Brokers:   brokerList(v.GetStringSlice("events.brokers")),
			Topic:     v.GetString("events.topic"),
		},
	}

	for _, id := range vendor.IDs() {
		vc := VendorConfig{
			Host:        v.GetString(vendorKey(id, "host")),
			OrgID:       v.GetString(vendorKey(id, "org_id")),
			HeliconeKey: v.GetString(vendorKey(id, "helicone_key")),
			JSONOutput:  v.GetBool(vendorKey(id, "json_output")),
		}
		if vc != (VendorConfig{}) {
			cfg.setVendorSettings(id, vc)
		}
	}

	applyDefaults(cfg)
	return cfg
}

// brokerList accepts both TOML arrays and a comma separated env value.
func brokerList(raw []string) []string {
	var out []string
	for _, r := range raw {
		out = append(out, splitList(r)...)
	}
	return out
}
