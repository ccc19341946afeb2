package particle

import (
	"strings"
	"sync"
)

// Transmitter receives particles in emission order. Parsers call Send
// synchronously from the goroutine driving the dispatch.
type Transmitter interface {
	Send(p Particle)
}

// TransmitterFunc adapts a function to the Transmitter interface.
type TransmitterFunc func(p Particle)

// Send calls f(p).
func (f TransmitterFunc) Send(p Particle) {
	f(p)
}

// Collector is a Transmitter that records every particle. It is safe for
// concurrent use so that a collector can be read while a dispatch runs.
type Collector struct {
	mu        sync.Mutex
	particles []Particle
}

// NewCollector returns an empty Collector.
func NewCollector() *Collector {
	return &Collector{}
}

// Send records p.
func (c *Collector) Send(p Particle) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.particles = append(c.particles, p)
}

// Particles returns a copy of the recorded particles.
func (c *Collector) Particles() []Particle {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Particle, len(c.particles))
	copy(out, c.particles)
	return out
}

// Kinds returns the kind of every recorded particle, in order.
func (c *Collector) Kinds() []Kind {
	c.mu.Lock()
	defer c.mu.Unlock()
	kinds := make([]Kind, len(c.particles))
	for i, p := range c.particles {
		kinds[i] = p.Kind
	}
	return kinds
}

// Text concatenates every recorded text delta.
func (c *Collector) Text() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	var sb strings.Builder
	for _, p := range c.particles {
		if p.Kind == KindTextDelta {
			sb.WriteString(p.Text)
		}
	}
	return sb.String()
}

// Last returns the last recorded particle and whether there was one.
func (c *Collector) Last() (Particle, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.particles) == 0 {
		return Particle{}, false
	}
	return c.particles[len(c.particles)-1], true
}
