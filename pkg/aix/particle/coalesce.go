package particle

// Coalesce merges runs of adjacent text deltas, and runs of adjacent tool call
// deltas for the same call, into single particles. Streams that differ only
// in how the vendor chunked its output coalesce to the same sequence.
func Coalesce(ps []Particle) []Particle {
	out := make([]Particle, 0, len(ps))
	for _, p := range ps {
		n := len(out)
		if n > 0 {
			prev := &out[n-1]
			switch {
			case p.Kind == KindTextDelta && prev.Kind == KindTextDelta:
				prev.Text += p.Text
				continue
			case p.Kind == KindToolCallDelta && prev.Kind == KindToolCallDelta &&
				p.ToolCall.Index == prev.ToolCall.Index:
				merged := *prev.ToolCall
				merged.ArgsDelta += p.ToolCall.ArgsDelta
				if merged.ID == "" {
					merged.ID = p.ToolCall.ID
				}
				if merged.Name == "" {
					merged.Name = p.ToolCall.Name
				}
				prev.ToolCall = &merged
				continue
			}
		}
		out = append(out, p)
	}
	return out
}
