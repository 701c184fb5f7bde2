package baseline

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// ErrMalformedImport is returned when an import payload cannot be decoded
// or fails validation. Import never silently coerces bad input.
var ErrMalformedImport = errors.New("malformed baseline payload")

// exportPayload is the JSON round-trip shape for baseline histories.
type exportPayload struct {
	Baselines  []PerformanceBaseline `json:"baselines"`
	ExportedAt time.Time             `json:"exportedAt"`
}

// ExportBaselines serializes the baseline history to JSON.
func (t *Tracker) ExportBaselines() ([]byte, error) {
	payload := exportPayload{
		Baselines:  t.History(),
		ExportedAt: time.Now().UTC(),
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("export baselines: %w", err)
	}
	return data, nil
}

// ImportBaselines replaces the baseline history with the payload's
// baselines, keeping at most the MaxHistory most recent. The current
// sample window is untouched.
func (t *Tracker) ImportBaselines(data []byte) error {
	var payload exportPayload
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&payload); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedImport, err)
	}
	if payload.Baselines == nil {
		return fmt.Errorf("%w: missing baselines field", ErrMalformedImport)
	}
	for i, b := range payload.Baselines {
		if b.GeneratedAt.IsZero() {
			return fmt.Errorf("%w: baseline %d has no generatedAt", ErrMalformedImport, i)
		}
	}

	baselines := payload.Baselines
	if len(baselines) > MaxHistory {
		baselines = baselines[len(baselines)-MaxHistory:]
	}

	t.mu.Lock()
	t.history = make([]PerformanceBaseline, len(baselines))
	copy(t.history, baselines)
	t.mu.Unlock()

	return nil
}
