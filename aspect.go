package orchestrator

import (
	"context"
	"time"
)

// AspectTag identifies one independently-checkable dimension of resource
// correctness. The set is closed; there is no dynamic extension.
type AspectTag string

// The six validation aspects.
const (
	AspectStructural   AspectTag = "structural"
	AspectProfile      AspectTag = "profile"
	AspectTerminology  AspectTag = "terminology"
	AspectReference    AspectTag = "reference"
	AspectBusinessRule AspectTag = "businessRule"
	AspectMetadata     AspectTag = "metadata"
)

// AspectOrder is the declared execution and reporting order of aspects.
// Sequential execution follows this order exactly; parallel execution
// reports outcomes in this order regardless of completion time.
var AspectOrder = []AspectTag{
	AspectStructural,
	AspectProfile,
	AspectTerminology,
	AspectReference,
	AspectBusinessRule,
	AspectMetadata,
}

// IsValid returns true if this is a known aspect tag.
func (a AspectTag) IsValid() bool {
	switch a {
	case AspectStructural, AspectProfile, AspectTerminology,
		AspectReference, AspectBusinessRule, AspectMetadata:
		return true
	default:
		return false
	}
}

// String returns the aspect tag string.
func (a AspectTag) String() string {
	return string(a)
}

// FeatureKey returns the connectivity feature key guarding this aspect.
func (a AspectTag) FeatureKey() string {
	return "validation." + string(a)
}

// defaultTimeouts holds per-aspect deadlines. Profile and terminology may
// trigger first-time external package or server fetches; metadata is local
// and cheap.
var defaultTimeouts = map[AspectTag]time.Duration{
	AspectStructural:   20 * time.Second,
	AspectProfile:      30 * time.Second,
	AspectTerminology:  20 * time.Second,
	AspectReference:    10 * time.Second,
	AspectBusinessRule: 10 * time.Second,
	AspectMetadata:     5 * time.Second,
}

// DefaultTimeout returns the default deadline for an aspect.
func (a AspectTag) DefaultTimeout() time.Duration {
	if d, ok := defaultTimeouts[a]; ok {
		return d
	}
	return 20 * time.Second
}

// AspectValidator is the contract every aspect implementation fulfils.
// Implementations must be safe to call concurrently with themselves and
// with other aspects, and must honor context cancellation on any blocking
// I/O they perform.
type AspectValidator interface {
	// Aspect returns the tag this validator covers.
	Aspect() AspectTag

	// Validate checks one aspect of the resource and returns any issues
	// found. A nil error with zero issues means the aspect passed.
	Validate(ctx context.Context, resource []byte, resourceType string, version VersionTag) ([]Issue, error)
}

// ValidatorFunc adapts a function to the AspectValidator interface.
type ValidatorFunc struct {
	Tag AspectTag
	Fn  func(ctx context.Context, resource []byte, resourceType string, version VersionTag) ([]Issue, error)
}

// Aspect returns the validator's aspect tag.
func (v ValidatorFunc) Aspect() AspectTag {
	return v.Tag
}

// Validate calls the wrapped function.
func (v ValidatorFunc) Validate(ctx context.Context, resource []byte, resourceType string, version VersionTag) ([]Issue, error) {
	return v.Fn(ctx, resource, resourceType, version)
}
