package config

const (
	defaultListen = ":8787"

	defaultVendor = "ollama"
	defaultModel  = "llama3.2"

	defaultIdleTimeout    = "60s"
	defaultRequestTimeout = "5m"

	defaultPublisher = PublisherNop
	defaultTopic     = "aix.generations"
)

// NewDefaultConfig returns a Config with sane defaults for all fields.
// This is the single source of truth for default values.
func NewDefaultConfig() *Config {
	return &Config{
		Version: CurrentV,
		Server: ServerConfig{
			Listen: defaultListen,
		},
		Generation: GenerationConfig{
			DefaultVendor:  defaultVendor,
			DefaultModel:   defaultModel,
			IdleTimeout:    defaultIdleTimeout,
			RequestTimeout: defaultRequestTimeout,
		},
		Events: EventsConfig{
			Publisher: defaultPublisher,
			Topic:     defaultTopic,
		},
	}
}
