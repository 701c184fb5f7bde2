// Package connectivity reports network mode and per-mode feature
// availability to the validation scheduler.
//
// The scheduler consults an Advisor before dispatching each aspect. An
// aspect whose feature is unavailable in the current mode is skipped with
// an informational issue rather than failed: degraded connectivity is a
// fact about the environment, not about the resource.
package connectivity

import (
	"sync"
)

// Mode is the current connectivity classification.
type Mode string

const (
	// ModeOnline means all downstream servers are reachable.
	ModeOnline Mode = "online"
	// ModeDegraded means some downstream servers are slow or unreachable.
	ModeDegraded Mode = "degraded"
	// ModeOffline means no downstream server is reachable.
	ModeOffline Mode = "offline"
)

// Strategy describes what is available in a mode and what callers should
// be warned about.
type Strategy struct {
	// Features maps feature keys to availability in this mode.
	Features map[string]bool `json:"features"`

	// Warnings are human-readable notes about the mode's limitations.
	Warnings []string `json:"warnings,omitempty"`
}

// Advisor reports the current connectivity mode and its strategy.
type Advisor interface {
	// CurrentMode returns the current connectivity mode.
	CurrentMode() Mode

	// IsFeatureAvailable returns true if the feature can be used in the
	// current mode. Unknown features are available; only an explicit
	// false gates an aspect off.
	IsFeatureAvailable(featureKey string) bool

	// CurrentStrategy returns the full feature map and warnings for the
	// current mode.
	CurrentStrategy() Strategy
}

// StaticAdvisor is an Advisor backed by a fixed per-mode strategy table.
// The mode can be switched at runtime; reads and writes are safe under
// concurrent validation calls.
type StaticAdvisor struct {
	mu         sync.RWMutex
	mode       Mode
	strategies map[Mode]Strategy
}

// NewStaticAdvisor creates an advisor starting in the given mode with the
// default strategy table.
func NewStaticAdvisor(mode Mode) *StaticAdvisor {
	return &StaticAdvisor{
		mode:       mode,
		strategies: defaultStrategies(),
	}
}

// defaultStrategies returns the built-in per-mode feature tables. Network
// backed aspects (profile, terminology, reference) degrade first; local
// aspects stay available even offline.
func defaultStrategies() map[Mode]Strategy {
	return map[Mode]Strategy{
		ModeOnline: {
			Features: map[string]bool{
				"validation.structural":   true,
				"validation.profile":      true,
				"validation.terminology":  true,
				"validation.reference":    true,
				"validation.businessRule": true,
				"validation.metadata":     true,
			},
		},
		ModeDegraded: {
			Features: map[string]bool{
				"validation.structural":   true,
				"validation.profile":      true,
				"validation.terminology":  false,
				"validation.reference":    false,
				"validation.businessRule": true,
				"validation.metadata":     true,
			},
			Warnings: []string{
				"terminology server unreachable; code validation suspended",
				"reference resolution suspended",
			},
		},
		ModeOffline: {
			Features: map[string]bool{
				"validation.structural":   true,
				"validation.profile":      false,
				"validation.terminology":  false,
				"validation.reference":    false,
				"validation.businessRule": true,
				"validation.metadata":     true,
			},
			Warnings: []string{
				"offline: only local validation aspects are available",
			},
		},
	}
}

// SetMode switches the advisor to a new mode.
func (a *StaticAdvisor) SetMode(mode Mode) {
	a.mu.Lock()
	a.mode = mode
	a.mu.Unlock()
}

// SetStrategy replaces the strategy for a mode.
func (a *StaticAdvisor) SetStrategy(mode Mode, strategy Strategy) {
	a.mu.Lock()
	a.strategies[mode] = strategy
	a.mu.Unlock()
}

// CurrentMode returns the current connectivity mode.
func (a *StaticAdvisor) CurrentMode() Mode {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.mode
}

// IsFeatureAvailable returns true unless the current strategy explicitly
// disables the feature.
func (a *StaticAdvisor) IsFeatureAvailable(featureKey string) bool {
	a.mu.RLock()
	defer a.mu.RUnlock()

	strategy, ok := a.strategies[a.mode]
	if !ok {
		return true
	}
	available, known := strategy.Features[featureKey]
	if !known {
		return true
	}
	return available
}

// CurrentStrategy returns a copy of the current mode's strategy.
func (a *StaticAdvisor) CurrentStrategy() Strategy {
	a.mu.RLock()
	defer a.mu.RUnlock()

	strategy, ok := a.strategies[a.mode]
	if !ok {
		return Strategy{Features: map[string]bool{}}
	}

	features := make(map[string]bool, len(strategy.Features))
	for k, v := range strategy.Features {
		features[k] = v
	}
	warnings := make([]string, len(strategy.Warnings))
	copy(warnings, strategy.Warnings)

	return Strategy{Features: features, Warnings: warnings}
}
