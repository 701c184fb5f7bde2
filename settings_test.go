package orchestrator

import (
	"strings"
	"testing"
	"time"
)

func TestSettingsHash_Deterministic(t *testing.T) {
	a := SettingsSnapshot{Aspects: map[AspectTag]AspectSetting{
		AspectStructural: {Enabled: true},
		AspectProfile:    {Enabled: false, TimeoutMs: 5000},
		AspectMetadata:   {Enabled: true, TimeoutMs: 1000},
	}}

	// Same content, different insertion order.
	b := SettingsSnapshot{Aspects: map[AspectTag]AspectSetting{
		AspectMetadata:   {Enabled: true, TimeoutMs: 1000},
		AspectStructural: {Enabled: true},
		AspectProfile:    {Enabled: false, TimeoutMs: 5000},
	}}

	if a.Hash() != b.Hash() {
		t.Errorf("identical snapshots hash differently: %s vs %s", a.Hash(), b.Hash())
	}

	for i := 0; i < 20; i++ {
		if a.Hash() != b.Hash() {
			t.Fatal("hash is not stable across repeated calls")
		}
	}
}

func TestSettingsHash_SensitiveToChanges(t *testing.T) {
	base := SettingsSnapshot{Aspects: map[AspectTag]AspectSetting{
		AspectStructural: {Enabled: true},
		AspectProfile:    {Enabled: true, TimeoutMs: 5000},
	}}

	flippedEnabled := SettingsSnapshot{Aspects: map[AspectTag]AspectSetting{
		AspectStructural: {Enabled: true},
		AspectProfile:    {Enabled: false, TimeoutMs: 5000},
	}}
	if base.Hash() == flippedEnabled.Hash() {
		t.Error("changing an enabled flag did not change the hash")
	}

	changedTimeout := SettingsSnapshot{Aspects: map[AspectTag]AspectSetting{
		AspectStructural: {Enabled: true},
		AspectProfile:    {Enabled: true, TimeoutMs: 6000},
	}}
	if base.Hash() == changedTimeout.Hash() {
		t.Error("changing a timeout did not change the hash")
	}
}

func TestSettingsTimeout(t *testing.T) {
	s := SettingsSnapshot{Aspects: map[AspectTag]AspectSetting{
		AspectProfile:    {Enabled: true, TimeoutMs: 1234},
		AspectStructural: {Enabled: true},
	}}

	if got := s.Timeout(AspectProfile); got != 1234*time.Millisecond {
		t.Errorf("Timeout(profile) = %v; want 1.234s", got)
	}
	if got := s.Timeout(AspectStructural); got != 20*time.Second {
		t.Errorf("Timeout(structural) = %v; want default 20s", got)
	}
	// Aspects absent from the snapshot still have a usable default.
	if got := s.Timeout(AspectMetadata); got != 5*time.Second {
		t.Errorf("Timeout(metadata) = %v; want default 5s", got)
	}
}

func TestSettingsEnabled(t *testing.T) {
	s := SettingsSnapshot{Aspects: map[AspectTag]AspectSetting{
		AspectStructural: {Enabled: true},
		AspectProfile:    {Enabled: false},
	}}

	if !s.Enabled(AspectStructural) {
		t.Error("structural should be enabled")
	}
	if s.Enabled(AspectProfile) {
		t.Error("profile should be disabled")
	}
	if s.Enabled(AspectTerminology) {
		t.Error("absent aspects should be disabled")
	}
}

func TestLoadSettings(t *testing.T) {
	yaml := `
aspects:
  structural:
    enabled: true
  profile:
    enabled: true
    timeoutMs: 15000
  terminology:
    enabled: false
`
	s, err := LoadSettings(strings.NewReader(yaml))
	if err != nil {
		t.Fatalf("LoadSettings: %v", err)
	}

	if !s.Enabled(AspectStructural) || !s.Enabled(AspectProfile) {
		t.Error("expected structural and profile enabled")
	}
	if s.Enabled(AspectTerminology) {
		t.Error("expected terminology disabled")
	}
	if got := s.Timeout(AspectProfile); got != 15*time.Second {
		t.Errorf("profile timeout = %v; want 15s", got)
	}
}

func TestLoadSettings_UnknownAspect(t *testing.T) {
	yaml := `
aspects:
  telepathy:
    enabled: true
`
	if _, err := LoadSettings(strings.NewReader(yaml)); err == nil {
		t.Error("expected error for unknown aspect tag")
	}
}

func TestDefaultSettings(t *testing.T) {
	s := DefaultSettings()
	for _, tag := range AspectOrder {
		if !s.Enabled(tag) {
			t.Errorf("default settings should enable %s", tag)
		}
	}
}
