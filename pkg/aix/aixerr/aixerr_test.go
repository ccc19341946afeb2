package aixerr_test

import (
	"errors"
	"fmt"
	"strings"
	"syscall"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/aix/pkg/aix/aixerr"
)

var _ = Describe("TransportError", func() {
	It("describes a status failure with a bounded body", func() {
		err := &aixerr.TransportError{URL: "http://h/v1/messages", Status: 529, Body: strings.Repeat("x", 2000)}
		Expect(err.Error()).To(HavePrefix("transport: http://h/v1/messages: status 529: "))
		Expect(len(err.Error())).To(BeNumerically("<", 600))
	})

	It("unwraps connection failures", func() {
		err := fmt.Errorf("dispatch: %w", &aixerr.TransportError{URL: "http://h", Err: syscall.ECONNREFUSED})
		Expect(aixerr.IsTransport(err)).To(BeTrue())
		Expect(errors.Is(err, syscall.ECONNREFUSED)).To(BeTrue())
		Expect(err.Error()).To(ContainSubstring("connection refused"))
	})

	It("keeps the taxonomy disjoint", func() {
		cfg := fmt.Errorf("openai access: %w", aixerr.ErrConfiguration)
		Expect(aixerr.IsConfiguration(cfg)).To(BeTrue())
		Expect(aixerr.IsTransport(cfg)).To(BeFalse())
		Expect(aixerr.IsConfiguration(aixerr.ErrCanceled)).To(BeFalse())
	})
})
