package orchestrator

import "testing"

func TestVersionTag_IsValid(t *testing.T) {
	tests := []struct {
		version VersionTag
		want    bool
	}{
		{V1, true},
		{V2, true},
		{V3, true},
		{"V9", false},
		{"", false},
		{"r4", false},
	}

	for _, tt := range tests {
		if got := tt.version.IsValid(); got != tt.want {
			t.Errorf("IsValid(%q) = %v; want %v", tt.version, got, tt.want)
		}
	}
}

func TestVersionForWire(t *testing.T) {
	tests := []struct {
		wire string
		want VersionTag
		ok   bool
	}{
		{"4.0.1", V1, true},
		{"4.3.0", V1, true},
		{"5.0.0", V2, true},
		{"6.0.0-ballot", V3, true},
		{"3.0.2", "", false},
		{"", "", false},
	}

	for _, tt := range tests {
		got, ok := VersionForWire(tt.wire)
		if got != tt.want || ok != tt.ok {
			t.Errorf("VersionForWire(%q) = (%q, %v); want (%q, %v)", tt.wire, got, ok, tt.want, tt.ok)
		}
	}
}

func TestVersionLimitations(t *testing.T) {
	if lims := VersionLimitations(V3); len(lims) == 0 {
		t.Error("V3 should carry known limitations")
	}
	if lims := VersionLimitations("V9"); lims != nil {
		t.Errorf("unknown version limitations = %v; want nil", lims)
	}
}

func TestAspectTag(t *testing.T) {
	if len(AspectOrder) != 6 {
		t.Fatalf("AspectOrder has %d aspects; want 6", len(AspectOrder))
	}
	for _, tag := range AspectOrder {
		if !tag.IsValid() {
			t.Errorf("%s should be valid", tag)
		}
		if tag.DefaultTimeout() <= 0 {
			t.Errorf("%s has no default timeout", tag)
		}
	}
	if AspectTag("telepathy").IsValid() {
		t.Error("unknown tag should be invalid")
	}
	if got := AspectProfile.FeatureKey(); got != "validation.profile" {
		t.Errorf("FeatureKey = %q", got)
	}
}
