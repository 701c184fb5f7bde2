package orchestrator

import (
	"sync"
	"time"
)

// ValidationRequest describes one resource to validate. Immutable; created
// once per validation call.
type ValidationRequest struct {
	// ResourceType is the declared type of the resource (e.g. "Patient").
	ResourceType string `json:"resourceType"`

	// Resource is the opaque resource document (JSON bytes).
	Resource []byte `json:"resource"`

	// ResourceID identifies the resource for persistence, if known.
	ResourceID string `json:"resourceId,omitempty"`

	// ExplicitVersion, when set, overrides version auto-detection.
	ExplicitVersion VersionTag `json:"explicitVersion,omitempty"`

	// RequestedAspects is an advisory hint. It never re-enables an aspect
	// the settings disabled; the enabled set is settings-driven only.
	RequestedAspects []AspectTag `json:"requestedAspects,omitempty"`

	// ProfileURL is an optional profile to validate against.
	ProfileURL string `json:"profileUrl,omitempty"`

	// Settings, when non-nil, overrides the scheduler's settings provider
	// for this request.
	Settings *SettingsSnapshot `json:"-"`
}

// OutcomeStatus is the terminal state of one aspect within one request.
// Aspects start pending and transition exactly once.
type OutcomeStatus string

const (
	// StatusExecuted means the aspect validator ran to completion.
	StatusExecuted OutcomeStatus = "executed"
	// StatusSkipped means the aspect did not run (disabled by settings, or
	// unavailable in the current connectivity mode).
	StatusSkipped OutcomeStatus = "skipped"
	// StatusFailed means the aspect validator errored or timed out.
	StatusFailed OutcomeStatus = "failed"
)

// AspectOutcome is the immutable record of one aspect's run within one
// request.
type AspectOutcome struct {
	// Aspect identifies which aspect this outcome belongs to.
	Aspect AspectTag `json:"aspect"`

	// Status is the terminal state of the aspect.
	Status OutcomeStatus `json:"status"`

	// IsValid is true if the aspect found no error-severity issues.
	IsValid bool `json:"isValid"`

	// SkipReason explains a skipped status.
	SkipReason string `json:"skipReason,omitempty"`

	// Issues found by this aspect, in the order the validator reported them.
	Issues []Issue `json:"issues,omitempty"`

	// DurationMs is the wall time the aspect took, in milliseconds.
	DurationMs int64 `json:"durationMs"`
}

// HasErrors returns true if any issue in the outcome has error severity.
func (o AspectOutcome) HasErrors() bool {
	for _, issue := range o.Issues {
		if issue.IsError() {
			return true
		}
	}
	return false
}

// ValidationResult is the composite verdict for one resource.
type ValidationResult struct {
	// ResourceID identifies the validated resource, if known.
	ResourceID string `json:"resourceId,omitempty"`

	// ResourceType is the declared type of the validated resource.
	ResourceType string `json:"resourceType"`

	// Version is the protocol version the resource was validated under.
	Version VersionTag `json:"version"`

	// IsValid is false if any outcome contains an error-severity issue.
	IsValid bool `json:"isValid"`

	// Outcomes holds one entry per resolved aspect, in AspectOrder.
	// Position never reflects completion timing.
	Outcomes []AspectOutcome `json:"outcomes"`

	// Issues is the flattened sequence of all outcome issues.
	Issues []Issue `json:"issues,omitempty"`

	// Limitations are the known validation gaps of the routed version.
	Limitations []string `json:"limitations,omitempty"`

	// ValidatedAt is when validation completed.
	ValidatedAt time.Time `json:"validatedAt"`

	// TotalDurationMs is the total wall time of the validation.
	TotalDurationMs int64 `json:"totalDurationMs"`

	// mu protects concurrent outcome appends during assembly
	mu sync.Mutex
}

// NewResult creates an empty, valid result for assembly.
func NewResult(resourceType string, version VersionTag) *ValidationResult {
	return &ValidationResult{
		ResourceType: resourceType,
		Version:      version,
		IsValid:      true,
		Outcomes:     make([]AspectOutcome, 0, len(AspectOrder)),
	}
}

// AddOutcome appends an aspect outcome and folds it into the composite
// verdict. This method is thread-safe.
func (r *ValidationResult) AddOutcome(outcome AspectOutcome) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.Outcomes = append(r.Outcomes, outcome)
	r.Issues = append(r.Issues, outcome.Issues...)
	if outcome.HasErrors() {
		r.IsValid = false
	}
}

// Outcome returns the outcome for an aspect, if present.
func (r *ValidationResult) Outcome(aspect AspectTag) (AspectOutcome, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, o := range r.Outcomes {
		if o.Aspect == aspect {
			return o, true
		}
	}
	return AspectOutcome{}, false
}

// ErrorCount returns the number of error-severity issues.
func (r *ValidationResult) ErrorCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	count := 0
	for _, issue := range r.Issues {
		if issue.IsError() {
			count++
		}
	}
	return count
}

// WarningCount returns the number of warning-severity issues.
func (r *ValidationResult) WarningCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	count := 0
	for _, issue := range r.Issues {
		if issue.IsWarning() {
			count++
		}
	}
	return count
}

// Errors returns all error-severity issues.
func (r *ValidationResult) Errors() []Issue {
	r.mu.Lock()
	defer r.mu.Unlock()

	var errs []Issue
	for _, issue := range r.Issues {
		if issue.IsError() {
			errs = append(errs, issue)
		}
	}
	return errs
}
