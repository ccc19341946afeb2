// Package config loads, validates and persists the aix configuration and
// resolves per-vendor service settings from it.
package config

import (
	"bytes"
	"cmp"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/papercomputeco/aix/pkg/dotdir"
	"github.com/papercomputeco/aix/pkg/llm/vendor"
)

const (
	configFile = "config.toml"

	// v0 is the alpha version of the config
	v0 = 0

	// CurrentV is the currently supported version, points to v0
	CurrentV = v0
)

type Configer struct {
	ddm        *dotdir.Manager
	targetPath string
}

func NewConfiger(override string) (*Configer, error) {
	cfger := &Configer{}

	cfger.ddm = dotdir.NewManager()
	target, err := cfger.ddm.Target(override)
	if err != nil {
		return nil, err
	}

	// If no .aix/ directory was resolved, targetPath stays empty;
	// LoadConfig will return defaults and SaveConfig will error clearly.
	if target == "" {
		return cfger, nil
	}

	path := filepath.Join(target, configFile)
	_, err = os.Stat(path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	// Always set targetPath when the directory exists so SaveConfig
	// can create or overwrite the file.
	cfger.targetPath = path

	return cfger, nil
}

// ValidConfigKeys returns the list of all supported configuration key names
// in the order of the TOML section layout.
func ValidConfigKeys() []string {
	keys := make([]string, 0, len(configKeys))
	for k := range configKeys {
		keys = append(keys, k)
	}

	sectionRank := map[string]int{"server": 0, "generation": 1, "vendors": 2, "events": 3}
	slices.SortFunc(keys, func(a, b string) int {
		sa, _, _ := strings.Cut(a, ".")
		sb, _, _ := strings.Cut(b, ".")
		if c := cmp.Compare(sectionRank[sa], sectionRank[sb]); c != 0 {
			return c
		}
		return cmp.Compare(a, b)
	})

	return keys
}

// IsValidConfigKey returns true if the given key is a supported configuration key.
func IsValidConfigKey(key string) bool {
	_, ok := configKeys[key]
	return ok
}

func (c *Configer) GetTarget() string {
	return c.targetPath
}

// LoadConfig loads the configuration from config.toml in the target .aix/ directory.
// If the file does not exist, returns DefaultConfig() so callers always receive
// a fully-populated Config with sane defaults. Fields explicitly set in the file
// override the defaults.
func (c *Configer) LoadConfig() (*Config, error) {
	if c.targetPath == "" {
		return NewDefaultConfig(), nil
	}

	data, err := os.ReadFile(c.targetPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return NewDefaultConfig(), nil
		}
		return nil, fmt.Errorf("reading config: %w", err)
	}

	cfg, err := ParseConfigTOML(data)
	if err != nil {
		return nil, err
	}

	// Merge in defaults: fill in any zero-value fields from the loaded config
	applyDefaults(cfg)

	return cfg, nil
}

// applyDefaults fills zero-value fields in cfg with values from NewDefaultConfig().
func applyDefaults(cfg *Config) {
	defaults := NewDefaultConfig()

	if cfg.Version == 0 {
		cfg.Version = defaults.Version
	}

	if cfg.Server.Listen == "" {
		cfg.Server.Listen = defaults.Server.Listen
	}

	if cfg.Generation.DefaultVendor == "" {
		cfg.Generation.DefaultVendor = defaults.Generation.DefaultVendor
	}
	if cfg.Generation.DefaultModel == "" {
		cfg.Generation.DefaultModel = defaults.Generation.DefaultModel
	}
	if cfg.Generation.IdleTimeout == "" {
		cfg.Generation.IdleTimeout = defaults.Generation.IdleTimeout
	}
	if cfg.Generation.RequestTimeout == "" {
		cfg.Generation.RequestTimeout = defaults.Generation.RequestTimeout
	}

	if cfg.Events.Publisher == "" {
		cfg.Events.Publisher = defaults.Events.Publisher
	}
	if cfg.Events.Topic == "" {
		cfg.Events.Topic = defaults.Events.Topic
	}
}

// SaveConfig persists the configuration to config.toml in the target .aix/ directory.
func (c *Configer) SaveConfig(cfg *Config) error {
	if cfg == nil {
		return errors.New("cannot save nil config")
	}

	if c.targetPath == "" {
		return errors.New("cannot save empty target path")
	}

	var buf bytes.Buffer
	encoder := toml.NewEncoder(&buf)
	if err := encoder.Encode(cfg); err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}

	if err := os.WriteFile(c.targetPath, buf.Bytes(), 0o600); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}

	return nil
}

// SetConfigValue loads the config, sets the given key to the given value, and saves it.
// Returns an error if the key is not a valid config key.
func (c *Configer) SetConfigValue(key string, value string) error {
	info, ok := configKeys[key]
	if !ok {
		return &UnknownKeyError{Key: key}
	}

	cfg, err := c.LoadConfig()
	if err != nil {
		return err
	}

	if err := info.set(cfg, value); err != nil {
		return err
	}

	return c.SaveConfig(cfg)
}

// GetConfigValue loads the config and returns the string representation of the given key.
// Returns an error if the key is not a valid config key.
func (c *Configer) GetConfigValue(key string) (string, error) {
	info, ok := configKeys[key]
	if !ok {
		return "", &UnknownKeyError{Key: key}
	}

	cfg, err := c.LoadConfig()
	if err != nil {
		return "", err
	}

	return info.get(cfg), nil
}

// PresetConfig returns a Config with defaults pointing generation at the
// named vendor. Any vendor ID from the registry is a valid preset.
func PresetConfig(name string) (*Config, error) {
	id := strings.ToLower(name)
	preset, ok := vendorPresets[id]
	if !ok {
		return nil, fmt.Errorf("unknown preset: %q (available: %s)", name, strings.Join(ValidPresetNames(), ", "))
	}

	cfg := NewDefaultConfig()
	cfg.Generation.DefaultVendor = id
	cfg.Generation.DefaultModel = preset.model
	if preset.host != "" {
		cfg.setVendorSettings(id, VendorConfig{Host: preset.host})
	}
	return cfg, nil
}

type vendorPreset struct {
	model string
	host  string
}

var vendorPresets = map[string]vendorPreset{
	"openai":     {model: "gpt-4o-mini"},
	"anthropic":  {model: "claude-3-5-haiku-latest"},
	"openrouter": {model: "openai/gpt-4o-mini"},
	"deepseek":   {model: "deepseek-chat"},
	"localai":    {model: "llama-3.2-1b-instruct", host: "http://127.0.0.1:8080"},
	"ollama":     {model: "llama3.2", host: "http://127.0.0.1:11434"},
	"egregore":   {model: "llama3.2", host: "http://127.0.0.1:11434"},
	"lmstudio":   {model: "llama-3.2-1b-instruct", host: "http://localhost:1234"},
}

// ValidPresetNames returns the list of recognized preset names.
func ValidPresetNames() []string {
	names := make([]string, 0, len(vendorPresets))
	for name := range vendorPresets {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Validate checks the configuration for values that would fail at runtime.
func (c *Config) Validate() error {
	var problems []string

	if c.Server.Listen == "" {
		problems = append(problems, "server.listen is required")
	}
	if c.Generation.DefaultVendor != "" && vendor.FindModelVendor(c.Generation.DefaultVendor) == nil {
		problems = append(problems, fmt.Sprintf("generation.default_vendor %q is not a known vendor", c.Generation.DefaultVendor))
	}
	if d, err := c.Generation.IdleTimeoutDuration(); err != nil || d < 0 {
		problems = append(problems, fmt.Sprintf("generation.idle_timeout %q is not a valid duration", c.Generation.IdleTimeout))
	}
	if d, err := c.Generation.RequestTimeoutDuration(); err != nil || d < 0 {
		problems = append(problems, fmt.Sprintf("generation.request_timeout %q is not a valid duration", c.Generation.RequestTimeout))
	}
	for id := range c.Vendors {
		if vendor.FindModelVendor(id) == nil {
			problems = append(problems, fmt.Sprintf("vendors.%s is not a known vendor", id))
		}
	}
	switch c.Events.Publisher {
	case "", PublisherNop:
	case PublisherKafka:
		if len(c.Events.Brokers) == 0 {
			problems = append(problems, "events.brokers is required for the kafka publisher")
		}
		if c.Events.Topic == "" {
			problems = append(problems, "events.topic is required for the kafka publisher")
		}
	default:
		problems = append(problems, fmt.Sprintf("events.publisher %q must be one of %s", c.Events.Publisher, strings.Join(validPublishers, ", ")))
	}

	if len(problems) > 0 {
		slices.Sort(problems)
		return &ValidationError{Errors: problems}
	}
	return nil
}

// ParseConfigTOML parses raw TOML bytes into a Config.
// Returns an error if the version field is present and not equal to CurrentConfigVersion.
func ParseConfigTOML(data []byte) (*Config, error) {
	cfg := &Config{}
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config TOML: %w", err)
	}

	if cfg.Version != 0 && cfg.Version != CurrentV {
		return nil, fmt.Errorf("unsupported config version %d (expected %d)", cfg.Version, CurrentV)
	}

	return cfg, nil
}
