package executor_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/papercomputeco/aix/pkg/aix/aixerr"
	"github.com/papercomputeco/aix/pkg/aix/dispatch"
	"github.com/papercomputeco/aix/pkg/aix/executor"
	"github.com/papercomputeco/aix/pkg/aix/particle"
	"github.com/papercomputeco/aix/pkg/llm"
	"github.com/papercomputeco/aix/pkg/llm/access"
)

// received captures what the vendor server saw.
type received struct {
	mu     sync.Mutex
	method string
	path   string
	header http.Header
	body   string
}

func (r *received) record(req *http.Request) {
	body, _ := io.ReadAll(req.Body)
	r.mu.Lock()
	defer r.mu.Unlock()
	r.method = req.Method
	r.path = req.URL.Path
	r.header = req.Header.Clone()
	r.body = string(body)
}

func writeSSE(w http.ResponseWriter, frames ...string) {
	w.Header().Set("Content-Type", "text/event-stream")
	for _, f := range frames {
		fmt.Fprintf(w, "data: %s\n\n", f)
		if fl, ok := w.(http.Flusher); ok {
			fl.Flush()
		}
	}
}

var _ = Describe("Executor", func() {
	var (
		srv     *httptest.Server
		handler http.HandlerFunc
		seen    *received
		release chan struct{}
		model   *llm.Model
		req     *llm.ChatGenerateRequest
	)

	BeforeEach(func() {
		seen = &received{}
		release = make(chan struct{})
		srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			seen.record(r)
			handler(w, r)
		}))
		model = &llm.Model{ID: "gpt-test"}
		req = &llm.ChatGenerateRequest{
			ChatSequence: []llm.Message{llm.NewTextMessage(llm.RoleUser, "Hello")},
		}
	})

	AfterEach(func() {
		close(release)
		srv.Close()
	})

	dispatchFor := func(streaming bool) *dispatch.Dispatch {
		a := access.OpenAI{Variant: access.DialectOpenAI, Key: "sk-test", Host: srv.URL}
		d, err := dispatch.CreateChatGenerateDispatch(a, model, req, streaming)
		Expect(err).NotTo(HaveOccurred())
		return d
	}

	// block holds the response open until the client goes away or the
	// test finishes.
	block := func(r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-release:
		}
	}

	It("streams Hi and ends the turn", func() {
		handler = func(w http.ResponseWriter, _ *http.Request) {
			writeSSE(w, `{"choices":[{"index":0,"delta":{"content":"Hi"}}]}`, "[DONE]")
		}

		c := particle.NewCollector()
		err := executor.New().Execute(context.Background(), dispatchFor(true), c)
		Expect(err).NotTo(HaveOccurred())

		Expect(c.Kinds()).To(Equal([]particle.Kind{particle.KindTextDelta, particle.KindEndOfTurn}))
		Expect(c.Text()).To(Equal("Hi"))
		last, _ := c.Last()
		Expect(last.StopReason).To(Equal(particle.StopOK))
	})

	It("sends the wire request built by the dispatch", func() {
		handler = func(w http.ResponseWriter, _ *http.Request) {
			writeSSE(w, `{"choices":[{"index":0,"delta":{"content":"ok"},"finish_reason":"stop"}]}`, "[DONE]")
		}

		Expect(executor.New().Execute(context.Background(), dispatchFor(true), particle.NewCollector())).To(Succeed())

		Expect(seen.method).To(Equal(http.MethodPost))
		Expect(seen.path).To(Equal("/v1/chat/completions"))
		Expect(seen.header.Get("Authorization")).To(Equal("Bearer sk-test"))
		Expect(seen.header.Get("Content-Type")).To(Equal("application/json"))
		Expect(seen.header.Get("Accept")).To(Equal("text/event-stream"))
		Expect(seen.body).To(ContainSubstring(`"stream":true`))
	})

	It("parses a non-streaming body", func() {
		handler = func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			fmt.Fprint(w, `{"choices":[{"index":0,"message":{"role":"assistant","content":"Hello there"},"finish_reason":"stop"}],"usage":{"prompt_tokens":3,"completion_tokens":2,"total_tokens":5}}`)
		}

		c := particle.NewCollector()
		err := executor.New().Execute(context.Background(), dispatchFor(false), c)
		Expect(err).NotTo(HaveOccurred())

		Expect(c.Kinds()).To(Equal([]particle.Kind{
			particle.KindTextDelta, particle.KindUsage, particle.KindEndOfTurn,
		}))
		Expect(c.Particles()[1].Usage.TotalTokens).To(Equal(5))
		Expect(seen.header.Get("Accept")).To(BeEmpty())
	})

	It("reports a non-2xx status as a transport error", func() {
		handler = func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
			fmt.Fprint(w, `{"error":{"message":"bad key"}}`)
		}

		c := particle.NewCollector()
		err := executor.New().Execute(context.Background(), dispatchFor(true), c)

		var terr *aixerr.TransportError
		Expect(errors.As(err, &terr)).To(BeTrue())
		Expect(terr.Status).To(Equal(http.StatusUnauthorized))
		Expect(terr.Body).To(ContainSubstring("bad key"))

		ps := c.Particles()
		Expect(ps).To(HaveLen(1))
		Expect(ps[0].Kind).To(Equal(particle.KindError))
		Expect(ps[0].Error.Kind).To(Equal(particle.ErrorTransport))
		Expect(ps[0].Error.Message).To(ContainSubstring("401"))
	})

	It("reports a refused connection as a transport error", func() {
		handler = func(http.ResponseWriter, *http.Request) {}
		d := dispatchFor(true)
		srv.Close()

		c := particle.NewCollector()
		err := executor.New().Execute(context.Background(), d, c)
		Expect(aixerr.IsTransport(err)).To(BeTrue())

		ps := c.Particles()
		Expect(ps).To(HaveLen(1))
		Expect(ps[0].Error.Kind).To(Equal(particle.ErrorTransport))
	})

	It("surfaces vendor errors inside a stream as particles only", func() {
		handler = func(w http.ResponseWriter, _ *http.Request) {
			writeSSE(w, `{"error":{"message":"overloaded"}}`)
		}

		c := particle.NewCollector()
		err := executor.New().Execute(context.Background(), dispatchFor(true), c)
		Expect(err).NotTo(HaveOccurred())

		last, ok := c.Last()
		Expect(ok).To(BeTrue())
		Expect(last.Kind).To(Equal(particle.KindError))
		Expect(last.Error.Kind).To(Equal(particle.ErrorVendor))
		Expect(last.Error.Message).To(Equal("overloaded"))
	})

	It("emits one timeout error when the stream goes idle", func() {
		handler = func(w http.ResponseWriter, r *http.Request) {
			writeSSE(w, `{"choices":[{"index":0,"delta":{"content":"Hi"}}]}`)
			block(r)
		}

		c := particle.NewCollector()
		e := executor.New(executor.WithIdleTimeout(50 * time.Millisecond))
		err := e.Execute(context.Background(), dispatchFor(true), c)
		Expect(err).To(MatchError(aixerr.ErrIdleTimeout))

		Expect(c.Kinds()).To(Equal([]particle.Kind{particle.KindTextDelta, particle.KindError}))
		last, _ := c.Last()
		Expect(last.Error.Kind).To(Equal(particle.ErrorTimeout))
	})

	It("does not count time spent in a slow transmitter as idle", func() {
		handler = func(w http.ResponseWriter, _ *http.Request) {
			writeSSE(w,
				`{"choices":[{"index":0,"delta":{"content":"slow "}}]}`,
				`{"choices":[{"index":0,"delta":{"content":"reader"}}]}`,
				`{"choices":[{"index":0,"delta":{},"finish_reason":"stop"}]}`,
				"[DONE]",
			)
		}

		c := particle.NewCollector()
		t := particle.TransmitterFunc(func(p particle.Particle) {
			if p.Kind == particle.KindTextDelta {
				time.Sleep(150 * time.Millisecond)
			}
			c.Send(p)
		})

		e := executor.New(executor.WithIdleTimeout(50 * time.Millisecond))
		Expect(e.Execute(context.Background(), dispatchFor(true), t)).To(Succeed())

		Expect(c.Text()).To(Equal("slow reader"))
		last, _ := c.Last()
		Expect(last.Kind).To(Equal(particle.KindEndOfTurn))
		Expect(last.StopReason).To(Equal(particle.StopOK))
	})

	It("times out a server that never answers", func() {
		handler = func(_ http.ResponseWriter, r *http.Request) {
			block(r)
		}

		c := particle.NewCollector()
		e := executor.New(executor.WithIdleTimeout(50 * time.Millisecond))
		err := e.Execute(context.Background(), dispatchFor(true), c)
		Expect(err).To(MatchError(aixerr.ErrIdleTimeout))
		Expect(c.Kinds()).To(Equal([]particle.Kind{particle.KindError}))
	})

	It("bounds non-streaming exchanges with the request timeout", func() {
		handler = func(_ http.ResponseWriter, r *http.Request) {
			block(r)
		}

		c := particle.NewCollector()
		e := executor.New(executor.WithRequestTimeout(50 * time.Millisecond))
		err := e.Execute(context.Background(), dispatchFor(false), c)
		Expect(err).To(MatchError(aixerr.ErrIdleTimeout))
		Expect(c.Kinds()).To(Equal([]particle.Kind{particle.KindError}))
	})

	It("stops without an error particle when the caller cancels", func() {
		handler = func(w http.ResponseWriter, r *http.Request) {
			writeSSE(w, `{"choices":[{"index":0,"delta":{"content":"Hi"}}]}`)
			block(r)
			writeSSE(w, `{"choices":[{"index":0,"delta":{"content":"late"}}]}`)
		}

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		c := particle.NewCollector()
		t := particle.TransmitterFunc(func(p particle.Particle) {
			c.Send(p)
			if p.Kind == particle.KindTextDelta {
				cancel()
			}
		})

		err := executor.New().Execute(ctx, dispatchFor(true), t)
		Expect(err).To(MatchError(aixerr.ErrCanceled))
		Expect(errors.Is(err, context.Canceled)).To(BeTrue())
		Expect(c.Kinds()).To(Equal([]particle.Kind{particle.KindTextDelta}))
		Expect(c.Text()).To(Equal("Hi"))
	})

	It("returns immediately for an already canceled context", func() {
		handler = func(w http.ResponseWriter, _ *http.Request) {
			writeSSE(w, `{"choices":[{"index":0,"delta":{"content":"Hi"}}]}`, "[DONE]")
		}

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		c := particle.NewCollector()
		err := executor.New().Execute(ctx, dispatchFor(true), c)
		Expect(err).To(MatchError(aixerr.ErrCanceled))
		Expect(c.Particles()).To(BeEmpty())
	})

	It("accepts a custom tracer provider and HTTP client", func() {
		handler = func(w http.ResponseWriter, _ *http.Request) {
			writeSSE(w, `{"choices":[{"index":0,"delta":{"content":"Hi"},"finish_reason":"stop"}]}`, "[DONE]")
		}

		e := executor.New(
			executor.WithTracerProvider(noop.NewTracerProvider()),
			executor.WithHTTPClient(srv.Client()),
		)
		c := particle.NewCollector()
		Expect(e.Execute(context.Background(), dispatchFor(true), c)).To(Succeed())
		Expect(c.Text()).To(Equal("Hi"))
	})
})
