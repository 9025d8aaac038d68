package fleettop

import (
	"fmt"
	"strings"
)

// Fleet is the machine registry: one ordered, validated list of endpoints
// shared by every consumer
type Fleet struct {
	endpoints []Endpoint
	index     map[string]int
}

// NewFleet normalizes every URL and rejects empty or duplicate names
func NewFleet(endpoints []Endpoint) (*Fleet, error) {
	f := &Fleet{
		endpoints: make([]Endpoint, 0, len(endpoints)),
		index:     make(map[string]int, len(endpoints)),
	}
	for i, ep := range endpoints {
		name := strings.TrimSpace(ep.Name)
		if name == "" {
			return nil, fmt.Errorf("machine %d: name is required", i)
		}
		if _, dup := f.index[name]; dup {
			return nil, fmt.Errorf("machine %q: duplicate name", name)
		}
		baseURL, err := NormalizeBaseURL(ep.BaseURL)
		if err != nil {
			return nil, fmt.Errorf("machine %q: %w", name, err)
		}
		f.index[name] = len(f.endpoints)
		f.endpoints = append(f.endpoints, Endpoint{Name: name, BaseURL: baseURL})
	}
	return f, nil
}

// Endpoints returns a copy of the registry in configured order
func (f *Fleet) Endpoints() []Endpoint {
	out := make([]Endpoint, len(f.endpoints))
	copy(out, f.endpoints)
	return out
}

func (f *Fleet) Names() []string {
	names := make([]string, 0, len(f.endpoints))
	for _, ep := range f.endpoints {
		names = append(names, ep.Name)
	}
	return names
}

func (f *Fleet) Lookup(name string) (Endpoint, bool) {
	i, ok := f.index[name]
	if !ok {
		return Endpoint{}, false
	}
	return f.endpoints[i], true
}

func (f *Fleet) Len() int {
	return len(f.endpoints)
}

// MaxNameLen is the width of the longest machine name
func (f *Fleet) MaxNameLen() int {
	maxLen := 0
	for _, ep := range f.endpoints {
		if len(ep.Name) > maxLen {
			maxLen = len(ep.Name)
		}
	}
	return maxLen
}
