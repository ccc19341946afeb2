package access

import (
	"fmt"
	"net/http"
	"strings"
)

// Default hosts per dialect.
const (
	DefaultOpenAIHost     = "https://api.openai.com"
	DefaultOpenRouterHost = "https://openrouter.ai/api"
	DefaultDeepseekHost   = "https://api.deepseek.com"
	DefaultLocalAIHost    = "http://127.0.0.1:8080"
	DefaultLMStudioHost   = "http://localhost:1234"
	DefaultAnthropicHost  = "https://api.anthropic.com"
	DefaultOllamaHost     = "http://127.0.0.1:11434"
	DefaultEgregoreHost   = "http://127.0.0.1:11434"

	heliconeOpenAIHost    = "https://oai.hconeai.com"
	heliconeAnthropicHost = "https://anthropic.hconeai.com"

	// AnthropicVersion is the API version header value sent to Anthropic.
	AnthropicVersion = "2023-06-01"

	openRouterReferer = "https://github.com/papercomputeco/aix"
	openRouterTitle   = "aix"
)

// Transport is the resolved connection information for a single vendor call.
type Transport struct {
	URL     string
	Headers http.Header
}

// FixupHost normalizes a user-supplied host: it defaults the scheme to
// http://, strips trailing slashes, and drops a trailing "/v1" when apiPath
// already starts with it.
func FixupHost(host, apiPath string) string {
	host = strings.TrimSpace(host)
	if !strings.HasPrefix(host, "http://") && !strings.HasPrefix(host, "https://") {
		host = "http://" + host
	}
	host = strings.TrimRight(host, "/")
	if strings.HasPrefix(apiPath, "/v1") && strings.HasSuffix(host, "/v1") {
		host = strings.TrimSuffix(host, "/v1")
	}
	return host
}

func jsonHeaders() http.Header {
	h := http.Header{}
	h.Set("Content-Type", "application/json")
	return h
}

// OpenAITransport builds the transport for an OpenAI-family access value.
// modelID is accepted for vendors that route by model and is currently unused
// by the OpenAI-compatible services.
func OpenAITransport(a OpenAI, modelID, apiPath string) (Transport, error) {
	if err := a.Validate(); err != nil {
		return Transport{}, err
	}

	var defaultHost string
	switch a.Variant {
	case DialectOpenAI:
		defaultHost = DefaultOpenAIHost
	case DialectOpenRouter:
		defaultHost = DefaultOpenRouterHost
	case DialectDeepseek:
		defaultHost = DefaultDeepseekHost
	case DialectLocalAI:
		defaultHost = DefaultLocalAIHost
	case DialectLMStudio:
		defaultHost = DefaultLMStudioHost
	default:
		panic(fmt.Sprintf("access: unhandled OpenAI-family dialect %q", a.Variant))
	}

	host := a.Host
	if host == "" {
		host = defaultHost
	}

	headers := jsonHeaders()
	if a.Key != "" {
		headers.Set("Authorization", "Bearer "+a.Key)
	}
	if a.OrgID != "" && a.Variant == DialectOpenAI {
		headers.Set("OpenAI-Organization", a.OrgID)
	}
	if a.HeliconeKey != "" && a.Variant == DialectOpenAI {
		if a.Host == "" {
			host = heliconeOpenAIHost
		}
		headers.Set("Helicone-Auth", "Bearer "+a.HeliconeKey)
	}
	if a.Variant == DialectOpenRouter {
		headers.Set("HTTP-Referer", openRouterReferer)
		headers.Set("X-Title", openRouterTitle)
	}

	return Transport{
		URL:     FixupHost(host, apiPath) + apiPath,
		Headers: headers,
	}, nil
}

// AnthropicTransport builds the transport for the Anthropic Messages API.
func AnthropicTransport(a Anthropic, modelID, apiPath string) (Transport, error) {
	if err := a.Validate(); err != nil {
		return Transport{}, err
	}

	host := a.Host
	if host == "" {
		host = DefaultAnthropicHost
	}

	headers := jsonHeaders()
	headers.Set("Accept", "application/json")
	headers.Set("anthropic-version", AnthropicVersion)
	if a.Key != "" {
		headers.Set("x-api-key", a.Key)
	}
	if a.HeliconeKey != "" {
		if a.Host == "" {
			host = heliconeAnthropicHost
		}
		headers.Set("Helicone-Auth", "Bearer "+a.HeliconeKey)
	}

	return Transport{
		URL:     FixupHost(host, apiPath) + apiPath,
		Headers: headers,
	}, nil
}

// OllamaTransport builds the transport for an Ollama server endpoint.
func OllamaTransport(a Ollama, apiPath string) Transport {
	host := a.Host
	if host == "" {
		host = DefaultOllamaHost
	}
	return Transport{
		URL:     FixupHost(host, apiPath) + apiPath,
		Headers: jsonHeaders(),
	}
}

// EgregoreTransport builds the transport for an Egregore runner endpoint.
func EgregoreTransport(a Egregore, apiPath string) Transport {
	host := a.Host
	if host == "" {
		host = DefaultEgregoreHost
	}
	return Transport{
		URL:     FixupHost(host, apiPath) + apiPath,
		Headers: jsonHeaders(),
	}
}
