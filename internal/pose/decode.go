package pose

import (
	"encoding/json"
	"fmt"
	"os"
)

// Recording is the on-disk JSON form of a captured sequence.
type Recording struct {
	ID     string   `json:"id,omitempty"`
	Label  string   `json:"label,omitempty"`
	Frames Sequence `json:"frames"`
}

// ReadRecording loads and validates a recording file.
func ReadRecording(path string) (*Recording, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read recording: %w", err)
	}

	var rec Recording
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("decode recording %s: %w", path, err)
	}

	for i, f := range rec.Frames {
		if err := f.Validate(); err != nil {
			return nil, fmt.Errorf("frame %d: %w", i, err)
		}
		if i > 0 && f.Timestamp < rec.Frames[i-1].Timestamp {
			return nil, fmt.Errorf("frame %d: timestamp goes backwards", i)
		}
	}
	return &rec, nil
}
