package experiment

import (
	"maps"
	"slices"
)

// Settings is a string-keyed value map that falls back to a parent when a key
// is absent. Trials inherit from their block and blocks from the session.
type Settings struct {
	values map[string]any
	parent *Settings
}

// NewSettings returns settings seeded with a copy of values and an optional parent.
func NewSettings(values map[string]any, parent *Settings) *Settings {
	s := &Settings{values: make(map[string]any, len(values)), parent: parent}
	maps.Copy(s.values, values)
	return s
}

// Get resolves key through the cascade.
func (s *Settings) Get(key string) (any, bool) {
	for cur := s; cur != nil; cur = cur.parent {
		if v, ok := cur.values[key]; ok {
			return v, true
		}
	}
	return nil, false
}

// Set stores value at this level, shadowing any inherited value.
func (s *Settings) Set(key string, value any) {
	if s.values == nil {
		s.values = make(map[string]any)
	}
	s.values[key] = value
}

// Keys returns the keys set at this level, sorted.
func (s *Settings) Keys() []string {
	return slices.Sorted(maps.Keys(s.values))
}

// Snapshot flattens the cascade into a new map. Values closer to the trial win.
func (s *Settings) Snapshot() map[string]any {
	var chain []*Settings
	for cur := s; cur != nil; cur = cur.parent {
		chain = append(chain, cur)
	}
	out := make(map[string]any)
	for i := len(chain) - 1; i >= 0; i-- {
		maps.Copy(out, chain[i].values)
	}
	return out
}
