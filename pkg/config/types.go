package config

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/papercomputeco/aix/pkg/llm/vendor"
)

// Config represents the persistent aix configuration stored as config.toml
// in the .aix/ directory. The TOML layout uses sections for logical grouping.
type Config struct {
	Version    int                     `toml:"version"`
	Server     ServerConfig            `toml:"server"`
	Generation GenerationConfig        `toml:"generation"`
	Vendors    map[string]VendorConfig `toml:"vendors,omitempty"`
	Events     EventsConfig            `toml:"events"`
}

// ServerConfig holds API server settings.
type ServerConfig struct {
	Listen string `toml:"listen,omitempty"`
}

// GenerationConfig holds defaults applied to every generation.
// Durations are Go duration strings (e.g. "60s", "5m").
type GenerationConfig struct {
	DefaultVendor  string `toml:"default_vendor,omitempty"`
	DefaultModel   string `toml:"default_model,omitempty"`
	IdleTimeout    string `toml:"idle_timeout,omitempty"`
	RequestTimeout string `toml:"request_timeout,omitempty"`
}

// VendorConfig holds the non-secret settings of one vendor service. API keys
// live in credentials.toml.
type VendorConfig struct {
	Host        string `toml:"host,omitempty"`
	OrgID       string `toml:"org_id,omitempty"`
	HeliconeKey string `toml:"helicone_key,omitempty"`
	JSONOutput  bool   `toml:"json_output,omitempty"`
}

// EventsConfig holds generation event publishing settings.
type EventsConfig struct {
	Publisher string   `toml:"publisher,omitempty"`
	Brokers   []string `toml:"brokers,omitempty"`
	Topic     string   `toml:"topic,omitempty"`
}

// Event publisher names.
const (
	PublisherNop   = "nop"
	PublisherKafka = "kafka"
)

// IdleTimeoutDuration parses the idle timeout. Zero means the executor default.
func (g GenerationConfig) IdleTimeoutDuration() (time.Duration, error) {
	return parseDuration(g.IdleTimeout)
}

// RequestTimeoutDuration parses the request timeout. Zero means the executor default.
func (g GenerationConfig) RequestTimeoutDuration() (time.Duration, error) {
	return parseDuration(g.RequestTimeout)
}

func parseDuration(s string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}
	return time.ParseDuration(s)
}

// vendorSettings returns the vendor section for id, allocating the map on write.
func (c *Config) vendorSettings(id string) VendorConfig {
	return c.Vendors[id]
}

func (c *Config) setVendorSettings(id string, vc VendorConfig) {
	if c.Vendors == nil {
		c.Vendors = make(map[string]VendorConfig)
	}
	c.Vendors[id] = vc
}

// configKeyInfo maps a user-facing dotted key name to a getter and setter on *Config.
type configKeyInfo struct {
	get func(c *Config) string
	set func(c *Config, v string) error
}

// configKeys is the authoritative map of all supported config keys.
// Keys use dotted notation matching the TOML section structure.
var configKeys = map[string]configKeyInfo{
	"server.listen": {
		get: func(c *Config) string { return c.Server.Listen },
		set: func(c *Config, v string) error { c.Server.Listen = v; return nil },
	},
	"generation.default_vendor": {
		get: func(c *Config) string { return c.Generation.DefaultVendor },
		set: func(c *Config, v string) error {
			if v != "" && vendor.FindModelVendor(v) == nil {
				return &InvalidValueError{Key: "generation.default_vendor", Value: v, AllowedValues: vendor.IDs()}
			}
			c.Generation.DefaultVendor = v
			return nil
		},
	},
	"generation.default_model": {
		get: func(c *Config) string { return c.Generation.DefaultModel },
		set: func(c *Config, v string) error { c.Generation.DefaultModel = v; return nil },
	},
	"generation.idle_timeout": {
		get: func(c *Config) string { return c.Generation.IdleTimeout },
		set: func(c *Config, v string) error {
			if _, err := parseDuration(v); err != nil {
				return fmt.Errorf("invalid value for generation.idle_timeout: %w", err)
			}
			c.Generation.IdleTimeout = v
			return nil
		},
	},
	"generation.request_timeout": {
		get: func(c *Config) string { return c.Generation.RequestTimeout },
		set: func(c *Config, v string) error {
			if _, err := parseDuration(v); err != nil {
				return fmt.Errorf("invalid value for generation.request_timeout: %w", err)
			}
			c.Generation.RequestTimeout = v
			return nil
		},
	},
	"events.publisher": {
		get: func(c *Config) string { return c.Events.Publisher },
		set: func(c *Config, v string) error {
			if !slices.Contains(validPublishers, v) {
				return &InvalidValueError{Key: "events.publisher", Value: v, AllowedValues: validPublishers}
			}
			c.Events.Publisher = v
			return nil
		},
	},
	"events.brokers": {
		get: func(c *Config) string { return strings.Join(c.Events.Brokers, ",") },
		set: func(c *Config, v string) error { c.Events.Brokers = splitList(v); return nil },
	},
	"events.topic": {
		get: func(c *Config) string { return c.Events.Topic },
		set: func(c *Config, v string) error { c.Events.Topic = v; return nil },
	},
}

var validPublishers = []string{PublisherNop, PublisherKafka}

// vendorKeyFields lists the per-vendor keys and the vendors they apply to.
var vendorKeyFields = []struct {
	field   string
	vendors []string
	get     func(vc VendorConfig) string
	set     func(vc *VendorConfig, v string) error
}{
	{
		field:   "host",
		vendors: nil, // every vendor
		get:     func(vc VendorConfig) string { return vc.Host },
		set:     func(vc *VendorConfig, v string) error { vc.Host = v; return nil },
	},
	{
		field:   "org_id",
		vendors: []string{"openai"},
		get:     func(vc VendorConfig) string { return vc.OrgID },
		set:     func(vc *VendorConfig, v string) error { vc.OrgID = v; return nil },
	},
	{
		field:   "helicone_key",
		vendors: []string{"openai", "anthropic"},
		get:     func(vc VendorConfig) string { return vc.HeliconeKey },
		set:     func(vc *VendorConfig, v string) error { vc.HeliconeKey = v; return nil },
	},
	{
		field:   "json_output",
		vendors: []string{"ollama", "egregore"},
		get:     func(vc VendorConfig) string { return strconv.FormatBool(vc.JSONOutput) },
		set: func(vc *VendorConfig, v string) error {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return fmt.Errorf("invalid value for json_output: %w", err)
			}
			vc.JSONOutput = b
			return nil
		},
	},
}

func init() {
	for _, id := range vendor.IDs() {
		for _, f := range vendorKeyFields {
			if f.vendors != nil && !slices.Contains(f.vendors, id) {
				continue
			}
			configKeys[vendorKey(id, f.field)] = configKeyInfo{
				get: func(c *Config) string { return f.get(c.vendorSettings(id)) },
				set: func(c *Config, v string) error {
					vc := c.vendorSettings(id)
					if err := f.set(&vc, v); err != nil {
						return err
					}
					c.setVendorSettings(id, vc)
					return nil
				},
			}
		}
	}
}

func vendorKey(id, field string) string {
	return "vendors." + id + "." + field
}

// splitList splits a comma separated list, dropping empty entries.
func splitList(s string) []string {
	var out []string
	for part := range strings.SplitSeq(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
