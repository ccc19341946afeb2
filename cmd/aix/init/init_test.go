package initcmder_test

import (
	"bytes"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	initcmder "github.com/papercomputeco/aix/cmd/aix/init"
	"github.com/papercomputeco/aix/pkg/config"
)

var _ = Describe("NewInitCmd", func() {
	It("creates a command with the correct use string", func() {
		cmd := initcmder.NewInitCmd()
		Expect(cmd.Use).To(Equal("init"))
	})

	It("rejects any arguments", func() {
		cmd := initcmder.NewInitCmd()
		Expect(cmd.Args(cmd, []string{"extra"})).To(HaveOccurred())
	})

	It("has a --preset flag", func() {
		cmd := initcmder.NewInitCmd()
		f := cmd.Flags().Lookup("preset")
		Expect(f).NotTo(BeNil())
		Expect(f.DefValue).To(Equal(""))
	})
})

var _ = Describe("Init command execution", func() {
	var (
		tmpDir  string
		origDir string
		out     *bytes.Buffer
	)

	execute := func(args ...string) error {
		cmd := initcmder.NewInitCmd()
		cmd.SetOut(out)
		cmd.SetErr(out)
		cmd.SetArgs(args)
		return cmd.Execute()
	}

	BeforeEach(func() {
		var err error
		tmpDir, err = os.MkdirTemp("", "aix-init-test-*")
		Expect(err).NotTo(HaveOccurred())

		origDir, err = os.Getwd()
		Expect(err).NotTo(HaveOccurred())
		Expect(os.Chdir(tmpDir)).To(Succeed())

		out = &bytes.Buffer{}
	})

	AfterEach(func() {
		Expect(os.Chdir(origDir)).To(Succeed())
		os.RemoveAll(tmpDir)
	})

	It("creates the .aix directory", func() {
		Expect(execute()).To(Succeed())

		info, err := os.Stat(filepath.Join(tmpDir, ".aix"))
		Expect(err).NotTo(HaveOccurred())
		Expect(info.IsDir()).To(BeTrue())
		Expect(out.String()).To(ContainSubstring("Initialized"))
	})

	It("is idempotent", func() {
		Expect(execute()).To(Succeed())
		out.Reset()
		Expect(execute()).To(Succeed())
		Expect(out.String()).To(ContainSubstring("Already initialized"))
	})

	It("does not write a config without a preset", func() {
		Expect(execute()).To(Succeed())
		_, err := os.Stat(filepath.Join(tmpDir, ".aix", "config.toml"))
		Expect(os.IsNotExist(err)).To(BeTrue())
	})

	It("writes the preset config", func() {
		Expect(execute("--preset", "ollama")).To(Succeed())

		var cfg config.Config
		_, err := toml.DecodeFile(filepath.Join(tmpDir, ".aix", "config.toml"), &cfg)
		Expect(err).NotTo(HaveOccurred())
		Expect(cfg.Generation.DefaultVendor).To(Equal("ollama"))
		Expect(cfg.Generation.DefaultModel).To(Equal("llama3.2"))
		Expect(cfg.Vendors["ollama"].Host).To(Equal("http://127.0.0.1:11434"))
	})

	It("rejects unknown presets before touching the filesystem", func() {
		err := execute("--preset", "nope")
		Expect(err).To(HaveOccurred())
		Expect(err.Error()).To(ContainSubstring("unknown preset"))

		_, statErr := os.Stat(filepath.Join(tmpDir, ".aix"))
		Expect(os.IsNotExist(statErr)).To(BeTrue())
	})
})
