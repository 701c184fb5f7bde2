package orchestrator

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"gopkg.in/yaml.v3"
)

// AspectSetting configures a single aspect for one validation call.
type AspectSetting struct {
	// Enabled controls whether the aspect runs at all.
	Enabled bool `json:"enabled" yaml:"enabled"`

	// TimeoutMs overrides the aspect's default deadline when > 0.
	TimeoutMs int64 `json:"timeoutMs,omitempty" yaml:"timeoutMs,omitempty"`
}

// SettingsSnapshot is the specific combination of enabled aspects and
// timeouts in effect for one validation call. Its hash is the cache and
// invalidation key for persisted per-aspect results: changing any enabled
// flag or timeout produces a new hash, while unrelated settings never
// invalidate stored validations.
type SettingsSnapshot struct {
	Aspects map[AspectTag]AspectSetting `json:"aspects" yaml:"aspects"`
}

// DefaultSettings returns a snapshot with every aspect enabled at its
// default timeout.
func DefaultSettings() SettingsSnapshot {
	aspects := make(map[AspectTag]AspectSetting, len(AspectOrder))
	for _, tag := range AspectOrder {
		aspects[tag] = AspectSetting{Enabled: true}
	}
	return SettingsSnapshot{Aspects: aspects}
}

// Enabled returns true if the aspect is enabled in this snapshot.
// Aspects absent from the snapshot are disabled.
func (s SettingsSnapshot) Enabled(tag AspectTag) bool {
	setting, ok := s.Aspects[tag]
	return ok && setting.Enabled
}

// Timeout returns the effective deadline for an aspect: the snapshot's
// override when set, the aspect default otherwise.
func (s SettingsSnapshot) Timeout(tag AspectTag) time.Duration {
	if setting, ok := s.Aspects[tag]; ok && setting.TimeoutMs > 0 {
		return time.Duration(setting.TimeoutMs) * time.Millisecond
	}
	return tag.DefaultTimeout()
}

// Hash computes the deterministic settings-snapshot hash: a canonical JSON
// serialization with lexicographically sorted keys, SHA-256 hex encoded.
// Identical snapshots hash identically regardless of map insertion order;
// the hash is stable across process restarts.
func (s SettingsSnapshot) Hash() string {
	// encoding/json sorts map keys lexicographically, which is exactly the
	// canonical form required here. Unknown fields never enter the hash.
	canonical := make(map[string]AspectSetting, len(s.Aspects))
	for tag, setting := range s.Aspects {
		canonical[string(tag)] = setting
	}

	data, err := json.Marshal(canonical)
	if err != nil {
		// A map of string to a plain struct cannot fail to marshal.
		panic("orchestrator: settings hash marshal: " + err.Error())
	}

	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// SettingsProvider supplies the current settings when a request carries no
// explicit snapshot.
type SettingsProvider interface {
	CurrentSettings() SettingsSnapshot
}

// StaticSettings is a SettingsProvider that always returns the same snapshot.
type StaticSettings struct {
	Snapshot SettingsSnapshot
}

// CurrentSettings returns the fixed snapshot.
func (p StaticSettings) CurrentSettings() SettingsSnapshot {
	return p.Snapshot
}

// LoadSettings reads a settings snapshot from YAML. Unknown aspect tags are
// rejected rather than silently carried into the hash.
func LoadSettings(r io.Reader) (SettingsSnapshot, error) {
	var snapshot SettingsSnapshot
	dec := yaml.NewDecoder(r)
	if err := dec.Decode(&snapshot); err != nil {
		return SettingsSnapshot{}, fmt.Errorf("decode settings: %w", err)
	}

	for tag := range snapshot.Aspects {
		if !tag.IsValid() {
			return SettingsSnapshot{}, fmt.Errorf("unknown aspect %q in settings", tag)
		}
	}
	return snapshot, nil
}
