package orchestrator

// VersionTag represents a supported protocol version. The version determines
// which cached engine instance and which feature-availability table apply.
type VersionTag string

// Supported protocol versions.
const (
	// V1 is the first supported protocol generation (FHIR R4 lineage).
	V1 VersionTag = "V1"
	// V2 is the second supported protocol generation (FHIR R5 lineage).
	V2 VersionTag = "V2"
	// V3 is the third supported protocol generation (FHIR R6 lineage).
	V3 VersionTag = "V3"
)

// String returns the version string.
func (v VersionTag) String() string {
	return string(v)
}

// IsValid returns true if this is a supported version tag.
func (v VersionTag) IsValid() bool {
	switch v {
	case V1, V2, V3:
		return true
	default:
		return false
	}
}

// AllVersions lists the supported versions in ascending order.
var AllVersions = []VersionTag{V1, V2, V3}

// versionConfig holds version-specific configuration.
type versionConfig struct {
	// WireVersions are the fhirVersion values that map to this tag.
	WireVersions []string

	// MarkerFields are document fields whose presence indicates this
	// version when no explicit version is supplied.
	MarkerFields []string

	// Limitations are known gaps of this version's validation coverage.
	// Routed results carry them so callers can distinguish "passed" from
	// "validation was incomplete for this version."
	Limitations []string
}

// versionConfigs maps version tags to their configurations.
var versionConfigs = map[VersionTag]versionConfig{
	V1: {
		WireVersions: []string{"4.0", "4.0.1", "4.3", "4.3.0"},
		MarkerFields: nil,
		Limitations:  []string{"no business-rule validation before 4.0.1"},
	},
	V2: {
		WireVersions: []string{"5.0", "5.0.0"},
		MarkerFields: []string{"meta.source"},
		Limitations:  nil,
	},
	V3: {
		WireVersions: []string{"6.0", "6.0.0-ballot"},
		MarkerFields: []string{"meta.versionSpecificity"},
		Limitations:  []string{"no terminology validation", "draft specification"},
	},
}

// VersionLimitations returns the known validation limitations of a version.
func VersionLimitations(v VersionTag) []string {
	cfg, ok := versionConfigs[v]
	if !ok {
		return nil
	}
	return cfg.Limitations
}

// VersionForWire returns the version tag matching a wire-level version
// string (e.g. "4.0.1"), or false if the string maps to no supported tag.
func VersionForWire(s string) (VersionTag, bool) {
	for _, tag := range AllVersions {
		for _, w := range versionConfigs[tag].WireVersions {
			if w == s {
				return tag, true
			}
		}
	}
	return "", false
}

// VersionMarkerFields returns the marker fields whose presence indicates
// the given version during heuristic auto-detection.
func VersionMarkerFields(v VersionTag) []string {
	cfg, ok := versionConfigs[v]
	if !ok {
		return nil
	}
	return cfg.MarkerFields
}
