package format

import "sort"

// Capabilities maps each readable source format to the output formats a
// backend can produce from it. A nil or empty table supports nothing.
type Capabilities map[Format]map[Format]struct{}

// NewCapabilities builds a table in which every source shares the same
// output set, which is how command-line toolkits report support.
func NewCapabilities(sources, outputs []Format) Capabilities {
	c := make(Capabilities, len(sources))
	for _, src := range sources {
		set := make(map[Format]struct{}, len(outputs))
		for _, out := range outputs {
			set[out] = struct{}{}
		}
		c[src] = set
	}
	return c
}

// Supports reports whether out can be produced from src.
func (c Capabilities) Supports(src, out Format) bool {
	_, ok := c[src][out]
	return ok
}

// CanRead reports whether src appears as a source.
func (c Capabilities) CanRead(src Format) bool {
	_, ok := c[src]
	return ok
}

// Outputs returns the outputs available for src, sorted.
func (c Capabilities) Outputs(src Format) []Format {
	return sorted(c[src])
}

// Sources returns every readable format, sorted.
func (c Capabilities) Sources() []Format {
	set := make(map[Format]struct{}, len(c))
	for f := range c {
		set[f] = struct{}{}
	}
	return sorted(set)
}

// Table renders the capabilities as plain strings for JSON output.
func (c Capabilities) Table() map[string][]string {
	out := make(map[string][]string, len(c))
	for src := range c {
		names := []string{}
		for _, f := range c.Outputs(src) {
			names = append(names, f.String())
		}
		out[src.String()] = names
	}
	return out
}

func sorted(set map[Format]struct{}) []Format {
	list := make([]Format, 0, len(set))
	for f := range set {
		list = append(list, f)
	}
	sort.Slice(list, func(i, j int) bool { return list[i] < list[j] })
	return list
}
