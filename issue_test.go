package orchestrator

import (
	"strings"
	"testing"
)

func TestIssueBuilder(t *testing.T) {
	issue := ErrorIssue(CodeRequired).
		Diagnostics("resource must have an 'id' element").
		At("Patient.id").
		Rule("struct-id-required").
		Build()

	if issue.Severity != SeverityError {
		t.Errorf("Severity = %q; want error", issue.Severity)
	}
	if issue.Code != CodeRequired {
		t.Errorf("Code = %q; want REQUIRED", issue.Code)
	}
	if issue.Path != "Patient.id" {
		t.Errorf("Path = %q", issue.Path)
	}
	if issue.RuleID != "struct-id-required" {
		t.Errorf("RuleID = %q", issue.RuleID)
	}
	if issue.Timestamp.IsZero() {
		t.Error("Timestamp should be set")
	}
}

func TestIssueSeverityPredicates(t *testing.T) {
	if !ErrorIssue(CodeValue).Build().IsError() {
		t.Error("error issue should report IsError")
	}
	if WarningIssue(CodeIncomplete).Build().IsError() {
		t.Error("warning issue should not report IsError")
	}
	if !WarningIssue(CodeIncomplete).Build().IsWarning() {
		t.Error("warning issue should report IsWarning")
	}
	if InfoIssue(CodeAspectUnavailable).Build().IsError() {
		t.Error("informational issue should not report IsError")
	}
}

func TestIssueString(t *testing.T) {
	s := ErrorIssue(CodeValue).Diagnostics("bad id").At("Patient.id").Build().String()
	if !strings.Contains(s, "bad id") || !strings.Contains(s, "Patient.id") {
		t.Errorf("String() = %q", s)
	}
}
