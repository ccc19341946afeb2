// Package executor runs a resolved dispatch against its vendor endpoint:
// it issues the wire request, demultiplexes the reply and drives the parser,
// delivering particles to the caller's transmitter.
package executor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/papercomputeco/aix/pkg/aix/aixerr"
	"github.com/papercomputeco/aix/pkg/aix/demux"
	"github.com/papercomputeco/aix/pkg/aix/dispatch"
	"github.com/papercomputeco/aix/pkg/aix/particle"
	"github.com/papercomputeco/aix/pkg/llm"
	"github.com/papercomputeco/aix/pkg/logger"
)

const (
	// DefaultIdleTimeout is the longest a stream may go without a frame.
	DefaultIdleTimeout = 60 * time.Second

	// DefaultRequestTimeout bounds non-streaming exchanges. LLM requests can
	// be slow, especially with thinking blocks.
	DefaultRequestTimeout = 5 * time.Minute

	// maxErrorBody bounds how much of a non-2xx body is read.
	maxErrorBody = 64 * 1024

	tracerName = "github.com/papercomputeco/aix/pkg/aix/executor"
)

// Executor issues dispatches. It holds no per-dispatch state and is safe for
// concurrent use.
type Executor struct {
	client         *http.Client
	idleTimeout    time.Duration
	requestTimeout time.Duration
	logger         *slog.Logger
	tracer         trace.Tracer
}

// Option configures an Executor.
type Option func(*Executor)

// WithHTTPClient sets the HTTP client used for vendor calls.
func WithHTTPClient(c *http.Client) Option {
	return func(e *Executor) {
		e.client = c
	}
}

// WithIdleTimeout sets the maximum gap between stream frames.
func WithIdleTimeout(d time.Duration) Option {
	return func(e *Executor) {
		if d > 0 {
			e.idleTimeout = d
		}
	}
}

// WithRequestTimeout sets the overall timeout of non-streaming exchanges.
func WithRequestTimeout(d time.Duration) Option {
	return func(e *Executor) {
		if d > 0 {
			e.requestTimeout = d
		}
	}
}

// WithLogger sets the executor logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Executor) {
		e.logger = l
	}
}

// WithTracerProvider sets the tracer provider spans are recorded with.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(e *Executor) {
		e.tracer = tp.Tracer(tracerName)
	}
}

// New returns an Executor.
func New(opts ...Option) *Executor {
	e := &Executor{
		client:         &http.Client{},
		idleTimeout:    DefaultIdleTimeout,
		requestTimeout: DefaultRequestTimeout,
		logger:         logger.Nop(),
		tracer:         otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Execute runs d and emits its particles to t.
//
// Unless the dispatch is canceled, exactly one terminal particle is emitted.
// The returned error reports failures of the exchange itself: a
// *aixerr.TransportError, aixerr.ErrIdleTimeout or a read error, each also
// surfaced as an error particle. Vendor-reported and framing errors inside a
// successful exchange are reported only as particles. Cancellation through
// ctx returns an error wrapping aixerr.ErrCanceled and emits nothing further.
func (e *Executor) Execute(ctx context.Context, d *dispatch.Dispatch, t particle.Transmitter) error {
	streaming := d.DemuxerFormat != demux.FormatNone

	ctx, span := e.tracer.Start(ctx, "aix.dispatch", trace.WithAttributes(
		attribute.String("aix.dialect", string(d.Dialect)),
		attribute.Bool("aix.streaming", streaming),
		attribute.String("http.request.method", d.Request.Method),
	))
	defer span.End()

	rec := &recorder{next: t}
	err := e.execute(ctx, d, streaming, rec, span)

	span.SetAttributes(
		attribute.Int("aix.particles", rec.count),
		attribute.String("aix.terminal", string(rec.terminal)),
	)
	if rec.usage != nil {
		span.SetAttributes(
			attribute.Int("aix.usage.prompt_tokens", rec.usage.PromptTokens),
			attribute.Int("aix.usage.completion_tokens", rec.usage.CompletionTokens),
		)
	}

	switch {
	case err == nil && rec.terminal == particle.KindError:
		span.SetStatus(codes.Error, "generation error")
	case errors.Is(err, aixerr.ErrCanceled):
		span.SetAttributes(attribute.Bool("aix.canceled", true))
	case err != nil:
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}

	return err
}

func (e *Executor) execute(parent context.Context, d *dispatch.Dispatch, streaming bool, t *recorder, span trace.Span) error {
	ctx, cancel := context.WithCancelCause(parent)
	defer cancel(nil)

	if !streaming {
		var stop context.CancelFunc
		ctx, stop = context.WithTimeoutCause(ctx, e.requestTimeout, aixerr.ErrIdleTimeout)
		defer stop()
	}

	method := d.Request.Method
	if method == "" {
		method = http.MethodPost
	}
	req, err := http.NewRequestWithContext(ctx, method, d.Request.URL, bytes.NewReader(d.Request.Body))
	if err != nil {
		return fmt.Errorf("creating vendor request: %w", err)
	}
	req.Header = d.Request.Headers.Clone()
	if req.Header == nil {
		req.Header = http.Header{}
	}
	if streaming {
		req.Header.Set("Accept", "text/event-stream")
	}

	e.logger.Debug("dispatching generation",
		"dialect", d.Dialect,
		"url", d.Request.URL,
		"streaming", streaming,
		"body_bytes", len(d.Request.Body),
	)
	start := time.Now()

	// Idle timer: armed before the request so a server that never answers
	// is covered too. It only runs while waiting on the vendor; time spent
	// delivering particles to the transmitter does not count.
	var timer *time.Timer
	if streaming {
		timer = time.AfterFunc(e.idleTimeout, func() { cancel(aixerr.ErrIdleTimeout) })
		defer timer.Stop()
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return e.interrupted(ctx, parent, t, &aixerr.TransportError{URL: d.Request.URL, Err: err})
	}
	defer resp.Body.Close()

	span.SetAttributes(attribute.Int("http.response.status_code", resp.StatusCode))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		terr := &aixerr.TransportError{
			URL:    d.Request.URL,
			Status: resp.StatusCode,
			Body:   string(body),
		}
		e.logger.Warn("vendor returned error status",
			"dialect", d.Dialect,
			"status", resp.StatusCode,
			"body", string(body),
		)
		t.Send(particle.Failure(particle.ErrorTransport, terr.Error()))
		return terr
	}

	dm := demux.New(d.DemuxerFormat, resp.Body)
	frames := 0
	for !d.Parser.Terminated() {
		frame, err := dm.Next()
		if err != nil {
			return e.interrupted(ctx, parent, t, err)
		}
		if frame == nil {
			break
		}
		if timer != nil {
			timer.Stop()
		}

		// Nothing is emitted once the caller has aborted.
		if parent.Err() != nil {
			return fmt.Errorf("%w: %w", aixerr.ErrCanceled, context.Cause(parent))
		}

		frames++
		if err := d.Parser.Parse(t, frame.Data, frame.Event); err != nil {
			return fmt.Errorf("parsing %s frame: %w", d.Dialect, err)
		}
		if timer != nil {
			timer.Reset(e.idleTimeout)
		}
	}

	if parent.Err() != nil {
		return fmt.Errorf("%w: %w", aixerr.ErrCanceled, context.Cause(parent))
	}
	d.Parser.Finish(t)

	e.logger.Debug("generation complete",
		"dialect", d.Dialect,
		"frames", frames,
		"terminal", t.terminal,
		"duration", time.Since(start),
	)
	return nil
}

// interrupted classifies an error that cut the exchange short. Caller
// cancellation emits nothing; everything else emits one error particle.
func (e *Executor) interrupted(ctx, parent context.Context, t *recorder, err error) error {
	switch {
	case parent.Err() != nil:
		return fmt.Errorf("%w: %w", aixerr.ErrCanceled, context.Cause(parent))

	case errors.Is(context.Cause(ctx), aixerr.ErrIdleTimeout):
		e.logger.Warn("vendor stream idle timeout", "timeout", e.idleTimeout)
		t.Send(particle.Failure(particle.ErrorTimeout, aixerr.ErrIdleTimeout.Error()))
		return aixerr.ErrIdleTimeout

	case errors.Is(err, demux.ErrFrameTooLarge):
		t.Send(particle.Failure(particle.ErrorFraming, err.Error()))
		return err

	default:
		e.logger.Warn("vendor exchange failed", "error", err)
		t.Send(particle.Failure(particle.ErrorTransport, err.Error()))
		return err
	}
}

// recorder forwards particles while tracking what the span reports.
type recorder struct {
	next     particle.Transmitter
	count    int
	terminal particle.Kind
	usage    *llm.Usage
}

func (r *recorder) Send(p particle.Particle) {
	r.count++
	switch {
	case p.IsTerminal():
		r.terminal = p.Kind
	case p.Kind == particle.KindUsage && p.Usage != nil:
		r.usage = p.Usage
	}
	r.next.Send(p)
}
