package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/papercomputeco/aix/pkg/aix/aixerr"
	"github.com/papercomputeco/aix/pkg/aix/dispatch"
	"github.com/papercomputeco/aix/pkg/aix/particle"
	"github.com/papercomputeco/aix/pkg/eventstream"
	"github.com/papercomputeco/aix/pkg/eventstream/worker"
	"github.com/papercomputeco/aix/pkg/llm"
	"github.com/papercomputeco/aix/pkg/llm/access"
	"github.com/papercomputeco/aix/pkg/llm/vendor"
)

// ContentTypeNDJSON is the content type of particle streams.
const ContentTypeNDJSON = "application/x-ndjson"

var (
	errAccessRequired = errors.New("access is required")
	errUnknownVendor  = errors.New("unknown vendor")
)

// ChatGenerateRequest is the body of POST /aix/chat-generate.
type ChatGenerateRequest struct {
	// Vendor selects server-side access when Access is omitted.
	Vendor    string                  `json:"vendor,omitempty"`
	Access    json.RawMessage         `json:"access,omitempty"`
	Model     llm.Model               `json:"model"`
	Request   llm.ChatGenerateRequest `json:"request"`
	Streaming bool                    `json:"streaming"`
}

// handlePing returns a simple health check response.
func (s *Server) handlePing(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "ok"})
}

// handleVendors returns the vendor registry in display order.
func (s *Server) handleVendors(c *fiber.Ctx) error {
	return c.JSON(vendor.FindAllModelVendors())
}

// handleChatGenerate runs one generation and streams its particles as NDJSON.
func (s *Server) handleChatGenerate(c *fiber.Ctx) error {
	var body ChatGenerateRequest
	if err := json.Unmarshal(c.Body(), &body); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(llm.ErrorResponse{Error: "invalid request body"})
	}
	if body.Model.ID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(llm.ErrorResponse{Error: "model.id is required"})
	}

	a, err := s.accessFor(body.Vendor, body.Access)
	if err != nil {
		return c.Status(statusFor(err)).JSON(llm.ErrorResponse{Error: err.Error()})
	}

	d, err := dispatch.CreateChatGenerateDispatch(a, &body.Model, &body.Request, body.Streaming)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(llm.ErrorResponse{Error: err.Error()})
	}

	source := eventstream.EventSource{
		Vendor:  string(a.Dialect()),
		Dialect: string(d.Dialect),
		Model:   body.Model.ID,
	}
	meta := eventstream.RequestMeta{
		RequestID: requestIDFrom(c),
		Path:      c.Path(),
		StartedAt: time.Now().UTC(),
		Streaming: body.Streaming,
	}

	c.Set(fiber.HeaderContentType, ContentTypeNDJSON)
	c.Set(fiber.HeaderCacheControl, "no-cache")

	// The fasthttp request context is recycled once the handler returns, so
	// the generation runs on its own context and is canceled when the client
	// stops reading.
	ctx, cancel := context.WithCancel(context.Background())

	// Use io.Pipe + SetBodyStream so every particle line is flushed to the
	// client as its own chunk, with backpressure from the socket.
	pr, pw := io.Pipe()
	go s.streamParticles(ctx, cancel, d, pw, source, meta)

	c.Context().Response.SetBodyStream(pr, -1)

	return nil
}

func (s *Server) streamParticles(ctx context.Context, cancel context.CancelFunc, d *dispatch.Dispatch, pw *io.PipeWriter, source eventstream.EventSource, meta eventstream.RequestMeta) {
	defer cancel()
	defer pw.Close()

	enc := json.NewEncoder(pw)
	var writeErr error
	sink := particle.TransmitterFunc(func(p particle.Particle) {
		if writeErr != nil {
			return
		}
		if err := enc.Encode(p); err != nil {
			writeErr = err
			cancel()
		}
	})
	tally := eventstream.NewTally(sink)

	err := s.executor.Execute(ctx, d, tally)
	switch {
	case errors.Is(err, aixerr.ErrCanceled):
		s.logger.Debug("generation canceled by client",
			"request_id", meta.RequestID,
			"write_error", writeErr,
		)
	case err != nil:
		// Execute already surfaced the failure as the terminal particle.
		s.logger.Warn("generation failed",
			"request_id", meta.RequestID,
			"vendor", source.Vendor,
			"model", source.Model,
			"error", err,
		)
	default:
		s.logger.Debug("generation complete",
			"request_id", meta.RequestID,
			"vendor", source.Vendor,
			"model", source.Model,
		)
	}

	s.publish(source, meta, tally)
}

func (s *Server) publish(source eventstream.EventSource, meta eventstream.RequestMeta, tally *eventstream.Tally) {
	if s.events == nil {
		return
	}
	meta.CompletedAt = time.Now().UTC()
	ev := eventstream.NewGenerationCompleted(source, meta, tally)
	if !s.events.Enqueue(worker.Job{Event: ev}) {
		s.logger.Warn("generation event dropped",
			"request_id", meta.RequestID,
			"event_id", ev.EventID,
		)
	}
}

// accessFor decodes the client access object, or resolves the server-side
// access for vendorID when the client sent none.
func (s *Server) accessFor(vendorID string, raw json.RawMessage) (access.Access, error) {
	if len(raw) > 0 && string(raw) != "null" {
		a, err := access.Decode(raw)
		if err != nil {
			return nil, err
		}
		if vendorID != "" && string(a.Dialect()) != vendorID {
			return nil, vendor.ErrAccessMismatch
		}
		return a, nil
	}

	if vendorID == "" || s.resolve == nil {
		return nil, errAccessRequired
	}
	if vendor.FindModelVendor(vendorID) == nil {
		return nil, errUnknownVendor
	}
	return s.resolve(vendorID)
}

// statusFor maps the error taxonomy onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, errUnknownVendor):
		return fiber.StatusNotFound
	case aixerr.IsConfiguration(err),
		errors.Is(err, errAccessRequired),
		errors.Is(err, vendor.ErrAccessMismatch):
		return fiber.StatusBadRequest
	case aixerr.IsTransport(err):
		return fiber.StatusBadGateway
	case errors.Is(err, context.DeadlineExceeded):
		return fiber.StatusGatewayTimeout
	default:
		return fiber.StatusInternalServerError
	}
}
