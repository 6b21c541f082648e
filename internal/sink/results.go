package sink

import (
	"encoding/json"
	"fmt"
	"os"
)

// Load reads a results file and decodes every entry into T. A missing file
// is an error here, unlike in Acquire: a task reading its input needs the
// producing task's output to exist.
func Load[T any](path string) ([]T, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read results file %s: %w", path, err)
	}

	var wrapper struct {
		Results []json.RawMessage `json:"results"`
	}
	if err := json.Unmarshal(data, &wrapper); err != nil {
		return nil, fmt.Errorf("failed to parse results file %s: %w", path, err)
	}

	out := make([]T, 0, len(wrapper.Results))
	for i, raw := range wrapper.Results {
		var entry T
		if err := json.Unmarshal(raw, &entry); err != nil {
			return nil, fmt.Errorf("failed to decode entry %d of %s: %w", i, path, err)
		}
		out = append(out, entry)
	}
	return out, nil
}
