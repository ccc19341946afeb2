// Package adapter translates a vendor-neutral chat generation request into
// the wire body of each supported generation API: OpenAI Chat Completions,
// OpenAI Responses and Anthropic Messages.
//
// Adapters are pure: they never touch the network and never add transport
// headers. Turn order is preserved exactly as given.
package adapter

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/papercomputeco/aix/pkg/llm"
	"github.com/papercomputeco/aix/pkg/llm/access"
)

var (
	// ErrUnsupportedFeature is wrapped when a request uses a capability the
	// target model or vendor cannot honor (images, tools, JSON output).
	ErrUnsupportedFeature = errors.New("unsupported feature")

	// ErrInvalidRequest is wrapped when the request itself is malformed.
	ErrInvalidRequest = errors.New("invalid request")
)

// Flags carries vendor-specific switches that alter the wire body.
type Flags struct {
	// Dialect selects dialect quirks (e.g. which servers accept stream_options).
	Dialect access.Dialect

	// JSONOutput forces a JSON object response.
	JSONOutput bool
}

// defaultToolSchema is sent for tools declared without an input schema.
var defaultToolSchema = json.RawMessage(`{"type":"object","properties":{}}`)

func toolSchema(t llm.ToolDefinition) json.RawMessage {
	if len(t.InputSchema) == 0 {
		return defaultToolSchema
	}
	return t.InputSchema
}

// checkCapabilities rejects images and tools on models that declare their
// interfaces but not the matching capability. Descriptors without declared
// interfaces (ad-hoc model ids) are not restricted.
func checkCapabilities(model *llm.Model, req *llm.ChatGenerateRequest) error {
	if len(model.Interfaces) == 0 {
		return nil
	}
	if req.HasImages() && !model.Supports(llm.InterfaceVision) {
		return fmt.Errorf("%w: model %q does not accept image input", ErrUnsupportedFeature, model.ID)
	}
	if req.UsesTools() && !model.Supports(llm.InterfaceFn) {
		return fmt.Errorf("%w: model %q does not support function calling", ErrUnsupportedFeature, model.ID)
	}
	return nil
}

// imageURL returns the URL of an image block, encoding inline data as a data URL.
func imageURL(b llm.ContentBlock) (string, error) {
	if b.ImageURL != "" {
		return b.ImageURL, nil
	}
	if b.ImageBase64 == "" {
		return "", fmt.Errorf("%w: image block without url or data", ErrInvalidRequest)
	}
	if !validBase64(b.ImageBase64) {
		return "", fmt.Errorf("%w: image data is not valid base64", ErrInvalidRequest)
	}
	mediaType := b.MediaType
	if mediaType == "" {
		mediaType = "image/png"
	}
	return "data:" + mediaType + ";base64," + b.ImageBase64, nil
}

// toolArguments serializes a tool_use input as a JSON object.
func toolArguments(input map[string]any) (json.RawMessage, error) {
	if input == nil {
		return json.RawMessage("{}"), nil
	}
	raw, err := json.Marshal(input)
	if err != nil {
		return nil, fmt.Errorf("%w: encoding tool input: %w", ErrInvalidRequest, err)
	}
	return raw, nil
}

// validBase64 is used to reject inline images that would be refused by the
// vendor with an opaque error.
func validBase64(data string) bool {
	_, err := base64.StdEncoding.DecodeString(data)
	return err == nil
}

func unknownBlock(role, blockType string) error {
	return fmt.Errorf("%w: %s turn cannot carry %q content", ErrInvalidRequest, role, blockType)
}

func unknownRole(role string) error {
	return fmt.Errorf("%w: unknown role %q", ErrInvalidRequest, role)
}
