// Package api provides the HTTP API server that runs chat generations and
// vendor model administration on behalf of remote clients.
package api

import (
	"github.com/papercomputeco/aix/pkg/eventstream/worker"
	"github.com/papercomputeco/aix/pkg/llm/access"
)

// Config is the API server configuration.
type Config struct {
	// ListenAddr is the address to listen on (e.g., ":8787")
	ListenAddr string

	// Debug mounts net/http/pprof under /debug/pprof.
	Debug bool
}

// AccessResolver builds the server-side access value for a vendor. It lets
// clients omit credentials for vendors the server is configured for.
type AccessResolver func(vendorID string) (access.Access, error)

// EventSink receives generation events. *worker.Pool satisfies it.
type EventSink interface {
	Enqueue(job worker.Job) bool
}
