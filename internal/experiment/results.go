package experiment

// Results is a string-keyed map that remembers insertion order. Re-setting an
// existing key updates the value in place without moving it.
type Results struct {
	keys   []string
	values map[string]any
}

// Set stores value under key.
func (r *Results) Set(key string, value any) {
	if r.values == nil {
		r.values = make(map[string]any)
	}
	if _, ok := r.values[key]; !ok {
		r.keys = append(r.keys, key)
	}
	r.values[key] = value
}

// Get returns the value stored under key.
func (r *Results) Get(key string) (any, bool) {
	v, ok := r.values[key]
	return v, ok
}

// Keys returns keys in insertion order.
func (r *Results) Keys() []string {
	return append([]string(nil), r.keys...)
}

// Len reports the number of stored keys.
func (r *Results) Len() int {
	return len(r.keys)
}
