package orchestrator

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
)

// loadSettings reads the experiment settings file. A missing file yields an
// empty map and exists=false.
func loadSettings(path string) (map[string]any, bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return map[string]any{}, false, nil
		}
		return map[string]any{}, false, fmt.Errorf("read settings: %w", err)
	}
	settings := map[string]any{}
	if err := json.Unmarshal(data, &settings); err != nil {
		return map[string]any{}, true, fmt.Errorf("parse settings %s: %w", path, err)
	}
	if settings == nil {
		settings = map[string]any{}
	}
	return settings, true, nil
}

// cloneValue copies the JSON-shaped containers in v so a queued command never
// shares mutable state with the caller.
func cloneValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		return cloneMap(val)
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = cloneValue(item)
		}
		return out
	case []string:
		return append([]string(nil), val...)
	case []float64:
		return append([]float64(nil), val...)
	case []int:
		return append([]int(nil), val...)
	default:
		return val
	}
}

func cloneMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneSamples(samples [][]float64) [][]float64 {
	out := make([][]float64, len(samples))
	for i, sample := range samples {
		out[i] = append([]float64(nil), sample...)
	}
	return out
}
