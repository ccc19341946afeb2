// Package access defines the dialect-tagged transport access configuration
// for every supported vendor and the builders that turn an access value into
// the URL and headers of a vendor request.
//
// Access is a closed sum type: the only implementations are the variant
// structs in this package. Callers switch over the concrete type (or over
// Dialect()) and treat an unknown variant as a programming error.
package access

import (
	"encoding/json"
	"fmt"
	"slices"

	"github.com/papercomputeco/aix/pkg/aix/aixerr"
)

// Dialect is the wire-protocol tag of an access configuration.
type Dialect string

const (
	DialectAnthropic  Dialect = "anthropic"
	DialectDeepseek   Dialect = "deepseek"
	DialectEgregore   Dialect = "egregore"
	DialectLMStudio   Dialect = "lmstudio"
	DialectLocalAI    Dialect = "localai"
	DialectOllama     Dialect = "ollama"
	DialectOpenAI     Dialect = "openai"
	DialectOpenRouter Dialect = "openrouter"
)

// openAIFamily lists the dialects carried by the OpenAI variant.
var openAIFamily = []Dialect{DialectDeepseek, DialectLMStudio, DialectLocalAI, DialectOpenAI, DialectOpenRouter}

// AllDialects returns every declared dialect tag.
func AllDialects() []Dialect {
	return []Dialect{
		DialectAnthropic,
		DialectDeepseek,
		DialectEgregore,
		DialectLMStudio,
		DialectLocalAI,
		DialectOllama,
		DialectOpenAI,
		DialectOpenRouter,
	}
}

// IsOpenAIFamily reports whether d is carried by the OpenAI variant.
func IsOpenAIFamily(d Dialect) bool {
	return slices.Contains(openAIFamily, d)
}

// Access is the transport access configuration of a single vendor service.
type Access interface {
	// Dialect returns the wire-protocol tag of this configuration.
	Dialect() Dialect

	// Validate checks that the fields required by the dialect are present.
	Validate() error

	sealed()
}

// OpenAI is the access configuration for OpenAI and every OpenAI-compatible
// cloud or local service (deepseek, lmstudio, localai, openrouter).
type OpenAI struct {
	Variant     Dialect `json:"dialect"`
	Key         string  `json:"key,omitempty"`
	Host        string  `json:"host,omitempty"`
	OrgID       string  `json:"org_id,omitempty"`
	HeliconeKey string  `json:"helicone_key,omitempty"`
}

// Anthropic is the access configuration for the Anthropic Messages API.
type Anthropic struct {
	Key         string `json:"key,omitempty"`
	Host        string `json:"host,omitempty"`
	HeliconeKey string `json:"helicone_key,omitempty"`
}

// Ollama is the access configuration for an Ollama server.
type Ollama struct {
	Host       string `json:"host,omitempty"`
	JSONOutput bool   `json:"json_output,omitempty"`
}

// Egregore is the access configuration for an Egregore AI runner.
type Egregore struct {
	Host       string `json:"host,omitempty"`
	JSONOutput bool   `json:"json_output,omitempty"`
}

func (a OpenAI) Dialect() Dialect    { return a.Variant }
func (a Anthropic) Dialect() Dialect { return DialectAnthropic }
func (a Ollama) Dialect() Dialect    { return DialectOllama }
func (a Egregore) Dialect() Dialect  { return DialectEgregore }

func (OpenAI) sealed()    {}
func (Anthropic) sealed() {}
func (Ollama) sealed()    {}
func (Egregore) sealed()  {}

// Validate requires an API key for the cloud OpenAI-family services, unless
// a custom host is set (self-hosted gateways may not require one).
func (a OpenAI) Validate() error {
	if !IsOpenAIFamily(a.Variant) {
		return &ConfigError{Dialect: a.Variant, Field: "dialect", Reason: "not an OpenAI-compatible dialect"}
	}
	switch a.Variant {
	case DialectOpenAI, DialectOpenRouter, DialectDeepseek:
		if a.Key == "" && a.Host == "" && a.HeliconeKey == "" {
			return &ConfigError{Dialect: a.Variant, Field: "key", Reason: "missing API key"}
		}
	}
	return nil
}

func (a Anthropic) Validate() error {
	if a.Key == "" && a.Host == "" {
		return &ConfigError{Dialect: DialectAnthropic, Field: "key", Reason: "missing API key"}
	}
	return nil
}

func (a Ollama) Validate() error   { return nil }
func (a Egregore) Validate() error { return nil }

// ConfigError reports a missing or invalid access field. It is raised before
// any network call and is never retried.
type ConfigError struct {
	Dialect Dialect
	Field   string
	Reason  string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("%s access: %s: %s", e.Dialect, e.Field, e.Reason)
}

func (e *ConfigError) Unwrap() error {
	return aixerr.ErrConfiguration
}

// Decode parses a JSON access object, selecting the variant by its "dialect"
// field. Unknown dialects are rejected here so that values reaching the
// dispatch resolver are always well-formed.
func Decode(data []byte) (Access, error) {
	var probe struct {
		Dialect Dialect `json:"dialect"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, fmt.Errorf("decoding access: %w", err)
	}

	switch {
	case probe.Dialect == DialectAnthropic:
		var a Anthropic
		if err := json.Unmarshal(data, &a); err != nil {
			return nil, fmt.Errorf("decoding anthropic access: %w", err)
		}
		return a, nil

	case probe.Dialect == DialectOllama:
		var a Ollama
		if err := json.Unmarshal(data, &a); err != nil {
			return nil, fmt.Errorf("decoding ollama access: %w", err)
		}
		return a, nil

	case probe.Dialect == DialectEgregore:
		var a Egregore
		if err := json.Unmarshal(data, &a); err != nil {
			return nil, fmt.Errorf("decoding egregore access: %w", err)
		}
		return a, nil

	case IsOpenAIFamily(probe.Dialect):
		var a OpenAI
		if err := json.Unmarshal(data, &a); err != nil {
			return nil, fmt.Errorf("decoding %s access: %w", probe.Dialect, err)
		}
		return a, nil

	default:
		return nil, &ConfigError{Dialect: probe.Dialect, Field: "dialect", Reason: "unknown dialect"}
	}
}

// Encode marshals an access value including its dialect tag.
func Encode(a Access) ([]byte, error) {
	switch v := a.(type) {
	case OpenAI:
		return json.Marshal(v)
	default:
		// Variants without a stored tag get it injected.
		raw, err := json.Marshal(v)
		if err != nil {
			return nil, err
		}
		var m map[string]any
		if err := json.Unmarshal(raw, &m); err != nil {
			return nil, err
		}
		m["dialect"] = a.Dialect()
		return json.Marshal(m)
	}
}
