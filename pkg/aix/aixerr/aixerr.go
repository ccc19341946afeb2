// Package aixerr holds the error taxonomy shared by the dispatch core.
package aixerr

import (
	"errors"
	"fmt"

	"github.com/papercomputeco/aix/pkg/utils"
)

var (
	// ErrConfiguration wraps every missing or invalid access field. It is
	// raised before any network call and must not be retried.
	ErrConfiguration = errors.New("configuration error")

	// ErrCanceled marks a dispatch aborted by its caller. It is not a failure
	// and is never reported as an error particle.
	ErrCanceled = errors.New("dispatch canceled")

	// ErrIdleTimeout marks a stream that produced no frame within the idle
	// interval.
	ErrIdleTimeout = errors.New("stream idle timeout")
)

// maxBodyInError bounds how much of a vendor error body is kept.
const maxBodyInError = 512

// TransportError is an HTTP-level failure from a vendor endpoint: a non-2xx
// status or a failed connection (Status is 0).
type TransportError struct {
	URL    string
	Status int
	Body   string
	Err    error
}

func (e *TransportError) Error() string {
	if e.Status == 0 {
		return fmt.Sprintf("transport: %s: %v", e.URL, e.Err)
	}
	return fmt.Sprintf("transport: %s: status %d: %s", e.URL, e.Status, utils.Truncate(e.Body, maxBodyInError))
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// IsConfiguration reports whether err is a configuration error.
func IsConfiguration(err error) bool {
	return errors.Is(err, ErrConfiguration)
}

// IsTransport reports whether err is (or wraps) a TransportError.
func IsTransport(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}
