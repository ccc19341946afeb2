package api_test

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/aix/api"
	"github.com/papercomputeco/aix/pkg/aix/executor"
	"github.com/papercomputeco/aix/pkg/aix/particle"
	"github.com/papercomputeco/aix/pkg/eventstream"
	"github.com/papercomputeco/aix/pkg/eventstream/worker"
	"github.com/papercomputeco/aix/pkg/llm"
	"github.com/papercomputeco/aix/pkg/llm/access"
	"github.com/papercomputeco/aix/pkg/llm/vendor"
	"github.com/papercomputeco/aix/pkg/logger"
)

// capturingSink records enqueued generation events.
type capturingSink struct {
	mu     sync.Mutex
	events []*eventstream.GenerationCompletedEvent
}

func (s *capturingSink) Enqueue(job worker.Job) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, job.Event)
	return true
}

func (s *capturingSink) Events() []*eventstream.GenerationCompletedEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*eventstream.GenerationCompletedEvent(nil), s.events...)
}

func postJSON(path string, body any) *http.Request {
	raw, err := json.Marshal(body)
	Expect(err).NotTo(HaveOccurred())
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(string(raw)))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func readParticles(r io.Reader) []particle.Particle {
	var out []particle.Particle
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		if strings.TrimSpace(sc.Text()) == "" {
			continue
		}
		var p particle.Particle
		Expect(json.Unmarshal(sc.Bytes(), &p)).To(Succeed())
		out = append(out, p)
	}
	Expect(sc.Err()).NotTo(HaveOccurred())
	return out
}

func kinds(ps []particle.Particle) []particle.Kind {
	out := make([]particle.Kind, len(ps))
	for i, p := range ps {
		out[i] = p.Kind
	}
	return out
}

var _ = Describe("Server", func() {
	var (
		vendorSrv *httptest.Server
		handler   http.HandlerFunc
		sink      *capturingSink
		server    *api.Server
		resolved  []string
	)

	BeforeEach(func() {
		handler = func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "text/event-stream")
			fmt.Fprint(w, "data: {\"choices\":[{\"index\":0,\"delta\":{\"content\":\"Hi\"}}]}\n\n")
			fmt.Fprint(w, "data: [DONE]\n\n")
		}
		vendorSrv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			handler(w, r)
		}))

		sink = &capturingSink{}
		resolved = nil
		resolver := func(vendorID string) (access.Access, error) {
			resolved = append(resolved, vendorID)
			switch vendorID {
			case "ollama":
				return access.Ollama{Host: vendorSrv.URL}, nil
			case "openai":
				return access.OpenAI{Variant: access.DialectOpenAI, Key: "sk-server", Host: vendorSrv.URL}, nil
			}
			return nil, errors.New("vendor not configured")
		}

		server = api.NewServer(
			api.Config{ListenAddr: ":0"},
			executor.New(),
			logger.Nop(),
			api.WithAccessResolver(resolver),
			api.WithEventSink(sink),
		)
	})

	AfterEach(func() {
		vendorSrv.Close()
	})

	Describe("GET /ping", func() {
		It("reports ok with a request id", func() {
			resp, err := server.App().Test(httptest.NewRequest(http.MethodGet, "/ping", nil), -1)
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			Expect(resp.Header.Get(api.RequestIDHeader)).NotTo(BeEmpty())

			body, _ := io.ReadAll(resp.Body)
			Expect(string(body)).To(MatchJSON(`{"status":"ok"}`))
		})

		It("echoes a caller supplied request id", func() {
			req := httptest.NewRequest(http.MethodGet, "/ping", nil)
			req.Header.Set(api.RequestIDHeader, "req-123")
			resp, err := server.App().Test(req, -1)
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.Header.Get(api.RequestIDHeader)).To(Equal("req-123"))
		})
	})

	Describe("GET /vendors", func() {
		It("lists the registry in display order", func() {
			resp, err := server.App().Test(httptest.NewRequest(http.MethodGet, "/vendors", nil), -1)
			Expect(err).NotTo(HaveOccurred())

			var vendors []vendor.Vendor
			Expect(json.NewDecoder(resp.Body).Decode(&vendors)).To(Succeed())
			Expect(vendors).To(HaveLen(len(vendor.IDs())))
			Expect(vendors[0].ID).To(Equal("openai"))
			Expect(vendors[len(vendors)-1].ID).To(Equal("lmstudio"))
		})
	})

	Describe("POST /aix/chat-generate", func() {
		var body api.ChatGenerateRequest

		BeforeEach(func() {
			body = api.ChatGenerateRequest{
				Access:    json.RawMessage(fmt.Sprintf(`{"dialect":"openai","key":"sk-test","host":%q}`, vendorSrv.URL)),
				Model:     llm.Model{ID: "gpt-test"},
				Request:   llm.ChatGenerateRequest{ChatSequence: []llm.Message{llm.NewTextMessage(llm.RoleUser, "Hello")}},
				Streaming: true,
			}
		})

		It("streams particles as NDJSON", func() {
			resp, err := server.App().Test(postJSON("/aix/chat-generate", body), -1)
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			Expect(resp.Header.Get("Content-Type")).To(Equal(api.ContentTypeNDJSON))

			ps := readParticles(resp.Body)
			Expect(kinds(ps)).To(Equal([]particle.Kind{particle.KindTextDelta, particle.KindEndOfTurn}))
			Expect(ps[0].Text).To(Equal("Hi"))
			Expect(ps[1].StopReason).To(Equal(particle.StopOK))
		})

		It("publishes a generation event", func() {
			resp, err := server.App().Test(postJSON("/aix/chat-generate", body), -1)
			Expect(err).NotTo(HaveOccurred())
			_ = readParticles(resp.Body)

			Eventually(sink.Events).Should(HaveLen(1))
			ev := sink.Events()[0]
			Expect(ev.Source).To(Equal(eventstream.EventSource{Vendor: "openai", Dialect: "openai", Model: "gpt-test"}))
			Expect(ev.RequestMeta.Streaming).To(BeTrue())
			Expect(ev.RequestMeta.RequestID).To(Equal(resp.Header.Get(api.RequestIDHeader)))
			Expect(ev.Outcome.Terminal).To(Equal(eventstream.TerminalEndOfTurn))
			Expect(ev.Outcome.TextBytes).To(Equal(2))
		})

		It("ends the stream with a single transport error particle", func() {
			handler = func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusUnauthorized)
				fmt.Fprint(w, `{"error":{"message":"bad key"}}`)
			}

			resp, err := server.App().Test(postJSON("/aix/chat-generate", body), -1)
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(http.StatusOK))

			ps := readParticles(resp.Body)
			Expect(ps).To(HaveLen(1))
			Expect(ps[0].Kind).To(Equal(particle.KindError))
			Expect(ps[0].Error.Kind).To(Equal(particle.ErrorTransport))
		})

		It("uses server-side access when the client sends none", func() {
			body.Access = nil
			body.Vendor = "openai"

			resp, err := server.App().Test(postJSON("/aix/chat-generate", body), -1)
			Expect(err).NotTo(HaveOccurred())
			Expect(kinds(readParticles(resp.Body))).To(HaveLen(2))
			Expect(resolved).To(Equal([]string{"openai"}))
		})

		It("rejects a request without access or vendor", func() {
			body.Access = nil

			resp, err := server.App().Test(postJSON("/aix/chat-generate", body), -1)
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
		})

		It("rejects a configuration error before any network call", func() {
			body.Access = json.RawMessage(`{"dialect":"anthropic"}`)

			resp, err := server.App().Test(postJSON("/aix/chat-generate", body), -1)
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))

			var e llm.ErrorResponse
			Expect(json.NewDecoder(resp.Body).Decode(&e)).To(Succeed())
			Expect(e.Error).To(ContainSubstring("anthropic access"))
		})

		It("rejects an unknown dialect", func() {
			body.Access = json.RawMessage(`{"dialect":"acme"}`)

			resp, err := server.App().Test(postJSON("/aix/chat-generate", body), -1)
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
		})

		It("rejects access that contradicts the vendor", func() {
			body.Vendor = "anthropic"

			resp, err := server.App().Test(postJSON("/aix/chat-generate", body), -1)
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
		})

		It("requires a model id", func() {
			body.Model = llm.Model{}

			resp, err := server.App().Test(postJSON("/aix/chat-generate", body), -1)
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
		})
	})

	Describe("POST /llms/:vendor/models", func() {
		It("lists models through the vendor", func() {
			handler = func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path != "/v1/models" {
					w.WriteHeader(http.StatusNotFound)
					return
				}
				fmt.Fprint(w, `{"data":[{"id":"gpt-b","created":1},{"id":"gpt-a","created":2}]}`)
			}

			resp, err := server.App().Test(postJSON("/llms/openai/models", api.ModelsRequest{}), -1)
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(http.StatusOK))

			var out api.ModelsResponse
			Expect(json.NewDecoder(resp.Body).Decode(&out)).To(Succeed())
			Expect(out.Models).To(HaveLen(2))
		})

		It("returns 404 for an unknown vendor", func() {
			resp, err := server.App().Test(postJSON("/llms/acme/models", api.ModelsRequest{}), -1)
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(http.StatusNotFound))
		})

		It("maps vendor failures to bad gateway", func() {
			handler = func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusInternalServerError)
			}

			resp, err := server.App().Test(postJSON("/llms/openai/models", api.ModelsRequest{}), -1)
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(http.StatusBadGateway))
		})
	})

	Describe("admin routes", func() {
		It("lists pullable models for ollama", func() {
			resp, err := server.App().Test(postJSON("/llms/ollama/admin/pullable", struct{}{}), -1)
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(http.StatusOK))

			var out api.PullableResponse
			Expect(json.NewDecoder(resp.Body).Decode(&out)).To(Succeed())
			Expect(out.Pullable).NotTo(BeEmpty())
		})

		It("refuses admin routes for non-ollama vendors", func() {
			resp, err := server.App().Test(postJSON("/llms/openai/admin/pullable", struct{}{}), -1)
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
		})

		It("pulls a model and reports the last status", func() {
			handler = func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path != "/api/pull" {
					w.WriteHeader(http.StatusNotFound)
					return
				}
				fmt.Fprint(w, "{\"status\":\"downloading\"}\n{\"status\":\"success\"}\n")
			}

			resp, err := server.App().Test(postJSON("/llms/ollama/admin/pull", api.AdminRequest{Name: "llama3.2"}), -1)
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(http.StatusOK))

			body, _ := io.ReadAll(resp.Body)
			Expect(string(body)).To(MatchJSON(`{"status":"llama3.2: success"}`))
		})

		It("requires a model name", func() {
			resp, err := server.App().Test(postJSON("/llms/ollama/admin/pull", api.AdminRequest{}), -1)
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
		})

		It("deletes a model", func() {
			handler = func(w http.ResponseWriter, r *http.Request) {
				if r.Method != http.MethodDelete || r.URL.Path != "/api/delete" {
					w.WriteHeader(http.StatusNotFound)
				}
			}

			resp, err := server.App().Test(postJSON("/llms/ollama/admin/delete", api.AdminRequest{Name: "phi4"}), -1)
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(http.StatusOK))

			body, _ := io.ReadAll(resp.Body)
			Expect(string(body)).To(MatchJSON(`{"deleted":"phi4"}`))
		})
	})

	Describe("debug routes", func() {
		It("are not mounted by default", func() {
			resp, err := server.App().Test(httptest.NewRequest(http.MethodGet, "/debug/pprof/", nil), -1)
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(http.StatusNotFound))
		})

		It("serve pprof when debug is enabled", func() {
			debug := api.NewServer(api.Config{Debug: true}, executor.New(), logger.Nop())
			resp, err := debug.App().Test(httptest.NewRequest(http.MethodGet, "/debug/pprof/", nil), -1)
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
		})
	})
})
