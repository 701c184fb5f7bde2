package orchestrator

import "time"

// IssueSeverity represents the severity of a validation issue.
type IssueSeverity string

const (
	// SeverityError indicates a validation error that causes the resource to be invalid.
	SeverityError IssueSeverity = "error"
	// SeverityWarning indicates a potential problem that should be reviewed.
	SeverityWarning IssueSeverity = "warning"
	// SeverityInformation indicates informational feedback.
	SeverityInformation IssueSeverity = "information"
)

// IssueCode classifies a validation issue.
type IssueCode string

const (
	// CodeTimeout indicates an aspect exceeded its deadline.
	CodeTimeout IssueCode = "TIMEOUT"
	// CodeNetworkError indicates a collaborator's downstream dependency was unreachable.
	CodeNetworkError IssueCode = "NETWORK_ERROR"
	// CodeAspectError indicates any other error returned by an aspect validator.
	CodeAspectError IssueCode = "ASPECT_ERROR"
	// CodeAspectUnavailable indicates an aspect was skipped because the current
	// connectivity mode does not support it. Informational, never a failure.
	CodeAspectUnavailable IssueCode = "ASPECT_UNAVAILABLE_IN_MODE"
	// CodeValidationError indicates the orchestrator itself failed before
	// dispatching any aspect.
	CodeValidationError IssueCode = "VALIDATION_ERROR"
	// CodeRequired indicates a required element is missing.
	CodeRequired IssueCode = "REQUIRED"
	// CodeValue indicates an invalid element value.
	CodeValue IssueCode = "VALUE"
	// CodeIncomplete indicates incomplete data or processing.
	CodeIncomplete IssueCode = "INCOMPLETE"
	// CodeInformational indicates informational content.
	CodeInformational IssueCode = "INFORMATIONAL"
)

// Issue represents a single validation finding.
// Issues are never mutated after creation; persistence normalizes a copy.
type Issue struct {
	// Severity of the issue (error, warning, information)
	Severity IssueSeverity `json:"severity"`

	// Code identifying the kind of issue
	Code IssueCode `json:"code,omitempty"`

	// Path is the canonical locator of the element in error
	Path string `json:"path,omitempty"`

	// Diagnostics contains human-readable details about the issue
	Diagnostics string `json:"diagnostics"`

	// RuleID identifies the rule that produced this issue, if any
	RuleID string `json:"ruleId,omitempty"`

	// Timestamp is when the issue was created
	Timestamp time.Time `json:"timestamp"`
}

// IsError returns true if this issue makes the resource invalid.
func (i Issue) IsError() bool {
	return i.Severity == SeverityError
}

// IsWarning returns true if this is a warning.
func (i Issue) IsWarning() bool {
	return i.Severity == SeverityWarning
}

// String returns a human-readable representation of the issue.
func (i Issue) String() string {
	s := string(i.Severity) + ": " + i.Diagnostics
	if i.Path != "" {
		s += " at " + i.Path
	}
	return s
}

// IssueBuilder provides a fluent API for building issues.
type IssueBuilder struct {
	issue Issue
}

// NewIssue creates a new IssueBuilder.
func NewIssue(severity IssueSeverity, code IssueCode) *IssueBuilder {
	return &IssueBuilder{
		issue: Issue{
			Severity:  severity,
			Code:      code,
			Timestamp: time.Now().UTC(),
		},
	}
}

// ErrorIssue creates an error issue builder.
func ErrorIssue(code IssueCode) *IssueBuilder {
	return NewIssue(SeverityError, code)
}

// WarningIssue creates a warning issue builder.
func WarningIssue(code IssueCode) *IssueBuilder {
	return NewIssue(SeverityWarning, code)
}

// InfoIssue creates an informational issue builder.
func InfoIssue(code IssueCode) *IssueBuilder {
	return NewIssue(SeverityInformation, code)
}

// Diagnostics sets the diagnostic message.
func (b *IssueBuilder) Diagnostics(msg string) *IssueBuilder {
	b.issue.Diagnostics = msg
	return b
}

// At sets the canonical path.
func (b *IssueBuilder) At(path string) *IssueBuilder {
	b.issue.Path = path
	return b
}

// Rule sets the rule identifier.
func (b *IssueBuilder) Rule(id string) *IssueBuilder {
	b.issue.RuleID = id
	return b
}

// Build returns the constructed issue.
func (b *IssueBuilder) Build() Issue {
	return b.issue
}
