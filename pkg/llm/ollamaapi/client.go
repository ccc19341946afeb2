// Package ollamaapi implements the admin side-channel shared by Ollama and
// Egregore servers: model listing, pulling and deletion over the native
// /api endpoints. Generation itself goes through the OpenAI-compatible
// endpoint and the dispatch core.
package ollamaapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/papercomputeco/aix/pkg/aix/aixerr"
	"github.com/papercomputeco/aix/pkg/aix/demux"
	"github.com/papercomputeco/aix/pkg/llm/access"
)

const (
	pathTags   = "/api/tags"
	pathShow   = "/api/show"
	pathPull   = "/api/pull"
	pathDelete = "/api/delete"

	// DefaultTimeout bounds listing and deletion calls. Pulls can take much
	// longer and are bounded only by the caller's context.
	DefaultTimeout = 30 * time.Second
)

var (
	// ErrNotOllamaFamily is returned for access values that do not speak the
	// Ollama admin API.
	ErrNotOllamaFamily = errors.New("dialect has no ollama admin api")

	// ErrDelete reports a delete call that answered with an unexpected body.
	ErrDelete = errors.New("model delete failed")
)

// Client talks to one Ollama-family server.
type Client struct {
	name       string
	transport  func(apiPath string) access.Transport
	httpClient *http.Client
	timeout    time.Duration
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		cl.httpClient = c
	}
}

// WithTimeout overrides DefaultTimeout.
func WithTimeout(d time.Duration) Option {
	return func(cl *Client) {
		cl.timeout = d
	}
}

// NewClient returns a client for an Ollama or Egregore access value.
func NewClient(a access.Access, opts ...Option) (*Client, error) {
	c := &Client{
		httpClient: &http.Client{},
		timeout:    DefaultTimeout,
	}

	switch v := a.(type) {
	case access.Ollama:
		c.name = "ollama"
		c.transport = func(apiPath string) access.Transport { return access.OllamaTransport(v, apiPath) }
	case access.Egregore:
		c.name = "egregore"
		c.transport = func(apiPath string) access.Transport { return access.EgregoreTransport(v, apiPath) }
	default:
		return nil, fmt.Errorf("%w: %s", ErrNotOllamaFamily, a.Dialect())
	}

	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// TagModel is one entry of /api/tags.
type TagModel struct {
	Name       string       `json:"name"`
	ModifiedAt time.Time    `json:"modified_at"`
	Size       int64        `json:"size"`
	Digest     string       `json:"digest"`
	Details    ModelDetails `json:"details"`
}

// ModelDetails describes the weights of a local model.
type ModelDetails struct {
	Format            string `json:"format"`
	Family            string `json:"family"`
	ParameterSize     string `json:"parameter_size"`
	QuantizationLevel string `json:"quantization_level"`
}

// ModelInfo is the /api/show answer.
type ModelInfo struct {
	License    string       `json:"license"`
	Modelfile  string       `json:"modelfile"`
	Parameters string       `json:"parameters"`
	Template   string       `json:"template"`
	Details    ModelDetails `json:"details"`
}

type tagsResponse struct {
	Models []TagModel `json:"models"`
}

type nameRequest struct {
	Name string `json:"name"`
}

// PullResult is the outcome of a pull: the last reported status prefixed by
// the model name, and the last error message if any.
type PullResult struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// Tags lists the models installed on the server.
func (c *Client) Tags(ctx context.Context) ([]TagModel, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var out tagsResponse
	if err := c.doJSON(ctx, http.MethodGet, pathTags, nil, &out); err != nil {
		return nil, err
	}
	return out.Models, nil
}

// Show returns the details of an installed model.
func (c *Client) Show(ctx context.Context, name string) (*ModelInfo, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var out ModelInfo
	if err := c.doJSON(ctx, http.MethodPost, pathShow, nameRequest{Name: name}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Pull downloads a model. The server answers with newline-delimited JSON
// progress messages which are read to completion.
func (c *Client) Pull(ctx context.Context, name string) (*PullResult, error) {
	resp, err := c.do(ctx, http.MethodPost, pathPull, nameRequest{Name: name})
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	result := &PullResult{Status: "unknown"}
	dm := demux.New(demux.FormatJSONNL, resp.Body)
	for {
		frame, err := dm.Next()
		if err != nil {
			return nil, fmt.Errorf("reading %s pull progress: %w", c.name, err)
		}
		if frame == nil {
			break
		}

		var msg struct {
			Status string `json:"status"`
			Error  string `json:"error"`
		}
		if err := json.Unmarshal([]byte(frame.Data), &msg); err != nil {
			return nil, fmt.Errorf("decoding %s pull progress: %w", c.name, err)
		}
		if msg.Status != "" {
			result.Status = name + ": " + msg.Status
		}
		if msg.Error != "" {
			result.Error = msg.Error
		}
	}
	return result, nil
}

// Delete removes an installed model. A successful delete has an empty body.
func (c *Client) Delete(ctx context.Context, name string) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.do(ctx, http.MethodDelete, pathDelete, nameRequest{Name: name})
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading %s delete response: %w", c.name, err)
	}
	if out := strings.TrimSpace(string(body)); out != "" && out != "null" {
		return fmt.Errorf("%w: %s: %s", ErrDelete, c.name, out)
	}
	return nil
}

func (c *Client) doJSON(ctx context.Context, method, apiPath string, in, out any) error {
	resp, err := c.do(ctx, method, apiPath, in)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding %s %s response: %w", c.name, apiPath, err)
	}
	return nil
}

// do issues a request and returns a response with a 2xx status. The caller
// closes the body.
func (c *Client) do(ctx context.Context, method, apiPath string, in any) (*http.Response, error) {
	tr := c.transport(apiPath)

	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return nil, fmt.Errorf("marshaling %s request: %w", c.name, err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, tr.URL, body)
	if err != nil {
		return nil, fmt.Errorf("creating %s request: %w", c.name, err)
	}
	req.Header = tr.Headers.Clone()

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &aixerr.TransportError{URL: tr.URL, Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
		return nil, &aixerr.TransportError{URL: tr.URL, Status: resp.StatusCode, Body: string(raw)}
	}
	return resp, nil
}
