package demux

import (
	"bufio"
	"io"
	"strings"
)

// doneMarker is the data payload OpenAI-compatible servers send to end a stream.
const doneMarker = "[DONE]"

// sseReader parses server-sent events from a source reader.
//
// See the SSE specification:
// https://html.spec.whatwg.org/multipage/server-sent-events.html
type sseReader struct {
	scanner *bufio.Scanner

	// current accumulates fields for the frame being built.
	current   *Frame
	dataLines int
	done      bool
}

func newSSEReader(src io.Reader) *sseReader {
	return &sseReader{
		scanner: newScanner(src),
		current: &Frame{},
	}
}

// Next blocks until a complete frame (terminated by a blank line) is
// available. A frame whose data is the [DONE] marker ends the stream and is
// not returned.
func (r *sseReader) Next() (*Frame, error) {
	if r.done {
		return nil, nil
	}

	for r.scanner.Scan() {
		raw := r.scanner.Text()

		// A blank line signals the end of the current frame.
		if raw == "" {
			if r.dataLines > 0 {
				return r.emit(), nil
			}

			// Keep-alive, leading blank line, or a frame without data
			// (e.g. "event: ping"), which is never dispatched.
			r.reset()
			continue
		}

		// Comment lines.
		if strings.HasPrefix(raw, ":") {
			continue
		}

		r.parseLine(raw)
	}

	if err := r.scanner.Err(); err != nil {
		return nil, scanError(err)
	}

	// Stream ended without a trailing blank line.
	if r.dataLines > 0 {
		return r.emit(), nil
	}

	r.done = true
	return nil, nil
}

// emit hands out the accumulated frame, or swallows it and ends the stream
// when it carries the [DONE] marker.
func (r *sseReader) emit() *Frame {
	frame := r.current
	r.reset()

	if frame.Data == doneMarker {
		r.done = true
		return nil
	}
	return frame
}

// parseLine accumulates one "field:value" line into the current frame. The
// first space after the colon is optional and stripped if present.
func (r *sseReader) parseLine(line string) {
	field, value, ok := strings.Cut(line, ":")
	if ok {
		value = strings.TrimPrefix(value, " ")
	}

	switch field {
	case "data":
		if r.dataLines > 0 {
			r.current.Data += "\n"
		}
		r.current.Data += value
		r.dataLines++
	case "event":
		r.current.Event = value
	case "id":
		r.current.ID = value
	default:
		// "retry" and unknown fields are ignored.
	}
}

func (r *sseReader) reset() {
	r.current = &Frame{}
	r.dataLines = 0
}
