// Package demux slices a raw vendor response body into discrete frames
// according to a declared framing format.
//
// Demuxers are pull based: they read from the source only while the caller
// is blocked in Next, so a slow consumer throttles the network read.
package demux

import (
	"bufio"
	"errors"
	"fmt"
	"io"
)

// Format is the framing format of a response body.
type Format string

const (
	// FormatFastSSE is server-sent-events framing, terminated by "data: [DONE]"
	// or end of stream.
	FormatFastSSE Format = "fast-sse"

	// FormatJSONNL is newline-delimited JSON. Each non-empty line is a frame.
	FormatJSONNL Format = "json-nl"

	// FormatNone hands the whole body over as a single frame.
	FormatNone Format = ""
)

const (
	initialBufferSize = 64 * 1024

	// MaxFrameSize bounds a single line (SSE, NDJSON) or a whole unframed body.
	MaxFrameSize = 8 * 1024 * 1024
)

// ErrFrameTooLarge is returned when a frame exceeds MaxFrameSize.
var ErrFrameTooLarge = errors.New("frame exceeds maximum size")

// Frame is one unit of a demultiplexed stream.
type Frame struct {
	// Event is the SSE "event:" name. It is always empty for json-nl and
	// unframed bodies.
	Event string

	// Data is the frame payload.
	Data string

	// ID is the SSE "id:" field, if present.
	ID string
}

// Demuxer yields frames one at a time. Next returns nil, nil once the stream
// is exhausted or its terminal marker was seen.
type Demuxer interface {
	Next() (*Frame, error)
}

// New returns the demuxer for format reading from src. An unknown format is a
// programming error and panics.
func New(format Format, src io.Reader) Demuxer {
	switch format {
	case FormatFastSSE:
		return newSSEReader(src)
	case FormatJSONNL:
		return newLineReader(src)
	case FormatNone:
		return &wholeReader{src: src}
	default:
		panic(fmt.Sprintf("demux: unknown format %q", format))
	}
}

func newScanner(src io.Reader) *bufio.Scanner {
	scanner := bufio.NewScanner(src)
	scanner.Buffer(make([]byte, initialBufferSize), MaxFrameSize)
	return scanner
}

func scanError(err error) error {
	if errors.Is(err, bufio.ErrTooLong) {
		return fmt.Errorf("%w: %w", ErrFrameTooLarge, err)
	}
	return err
}

// lineReader implements json-nl framing.
type lineReader struct {
	scanner *bufio.Scanner
}

func newLineReader(src io.Reader) *lineReader {
	return &lineReader{scanner: newScanner(src)}
}

func (r *lineReader) Next() (*Frame, error) {
	for r.scanner.Scan() {
		line := r.scanner.Text()
		if line == "" {
			continue
		}
		return &Frame{Data: line}, nil
	}
	if err := r.scanner.Err(); err != nil {
		return nil, scanError(err)
	}
	return nil, nil
}

// wholeReader implements the unframed format.
type wholeReader struct {
	src  io.Reader
	done bool
}

func (r *wholeReader) Next() (*Frame, error) {
	if r.done {
		return nil, nil
	}
	r.done = true

	body, err := io.ReadAll(io.LimitReader(r.src, MaxFrameSize+1))
	if err != nil {
		return nil, err
	}
	if len(body) > MaxFrameSize {
		return nil, ErrFrameTooLarge
	}
	return &Frame{Data: string(body)}, nil
}
