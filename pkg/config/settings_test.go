package config_test

import (
	"errors"
	"os"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/aix/pkg/config"
	"github.com/papercomputeco/aix/pkg/llm/access"
)

type fakeKeys map[string]string

func (f fakeKeys) ResolveKey(provider string) (string, error) {
	if provider == "broken" {
		return "", errors.New("boom")
	}
	return f[provider], nil
}

var _ = Describe("ServiceSettings", func() {
	It("merges the vendor section with the resolved key", func() {
		cfg := config.NewDefaultConfig()
		cfg.Vendors = map[string]config.VendorConfig{
			"openai": {Host: "https://gw.example.com", OrgID: "org-1", HeliconeKey: "hk"},
		}

		s, err := cfg.ServiceSettings("openai", fakeKeys{"openai": "sk-test"})
		Expect(err).NotTo(HaveOccurred())
		Expect(s.Host).To(Equal("https://gw.example.com"))
		Expect(s.OrgID).To(Equal("org-1"))
		Expect(s.HeliconeKey).To(Equal("hk"))
		Expect(s.Key).To(Equal("sk-test"))
	})

	It("falls back to the host environment variable for local vendors", func() {
		os.Setenv("OLLAMA_API_HOST", "http://env-ollama:11434")
		DeferCleanup(os.Unsetenv, "OLLAMA_API_HOST")

		s, err := config.NewDefaultConfig().ServiceSettings("ollama", nil)
		Expect(err).NotTo(HaveOccurred())
		Expect(s.Host).To(Equal("http://env-ollama:11434"))
		Expect(s.Key).To(BeEmpty())
	})

	It("prefers the configured host over the environment", func() {
		os.Setenv("LMSTUDIO_API_HOST", "http://env:1234")
		DeferCleanup(os.Unsetenv, "LMSTUDIO_API_HOST")

		cfg := config.NewDefaultConfig()
		cfg.Vendors = map[string]config.VendorConfig{"lmstudio": {Host: "http://cfg:1234"}}

		s, err := cfg.ServiceSettings("lmstudio", nil)
		Expect(err).NotTo(HaveOccurred())
		Expect(s.Host).To(Equal("http://cfg:1234"))
	})

	It("rejects unknown vendors", func() {
		_, err := config.NewDefaultConfig().ServiceSettings("acme", nil)
		var ive *config.InvalidValueError
		Expect(err).To(BeAssignableToTypeOf(ive))
	})

	It("builds the access value of the vendor", func() {
		a, err := config.NewDefaultConfig().Access("anthropic", fakeKeys{"anthropic": "sk-ant-x"})
		Expect(err).NotTo(HaveOccurred())
		Expect(a.Dialect()).To(Equal(access.DialectAnthropic))

		anth, ok := a.(access.Anthropic)
		Expect(ok).To(BeTrue())
		Expect(anth.Key).To(Equal("sk-ant-x"))
	})
})
