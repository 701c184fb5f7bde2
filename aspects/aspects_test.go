package aspects

import (
	"context"
	"errors"
	"testing"

	oc "github.com/gofhir/orchestrator"
)

func TestStructural(t *testing.T) {
	tests := []struct {
		name      string
		resource  string
		declared  string
		wantCodes []oc.IssueCode
	}{
		{
			name:     "valid resource",
			resource: `{"resourceType":"Patient","id":"p-1.a"}`,
			declared: "Patient",
		},
		{
			name:      "missing resourceType",
			resource:  `{"id":"p1"}`,
			declared:  "Patient",
			wantCodes: []oc.IssueCode{oc.CodeRequired},
		},
		{
			name:      "type mismatch",
			resource:  `{"resourceType":"Observation","id":"o1"}`,
			declared:  "Patient",
			wantCodes: []oc.IssueCode{oc.CodeValue},
		},
		{
			name:      "missing id",
			resource:  `{"resourceType":"Patient"}`,
			declared:  "Patient",
			wantCodes: []oc.IssueCode{oc.CodeRequired},
		},
		{
			name:      "malformed id",
			resource:  `{"resourceType":"Patient","id":"has spaces!"}`,
			declared:  "Patient",
			wantCodes: []oc.IssueCode{oc.CodeValue},
		},
		{
			name:      "mismatch and missing id together",
			resource:  `{"resourceType":"Observation"}`,
			declared:  "Patient",
			wantCodes: []oc.IssueCode{oc.CodeValue, oc.CodeRequired},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			issues, err := Structural{}.Validate(context.Background(), []byte(tt.resource), tt.declared, oc.V1)
			if err != nil {
				t.Fatalf("Validate: %v", err)
			}
			if len(issues) != len(tt.wantCodes) {
				t.Fatalf("got %d issues %v; want %d", len(issues), issues, len(tt.wantCodes))
			}
			for i, code := range tt.wantCodes {
				if issues[i].Code != code {
					t.Errorf("issues[%d].Code = %s; want %s", i, issues[i].Code, code)
				}
			}
		})
	}
}

func TestMetadata(t *testing.T) {
	tests := []struct {
		name         string
		resource     string
		wantWarnings int
	}{
		{
			name:     "complete meta",
			resource: `{"resourceType":"Patient","id":"p1","meta":{"lastUpdated":"2026-08-01T00:00:00Z","versionId":"3"}}`,
		},
		{
			name:         "no meta at all",
			resource:     `{"resourceType":"Patient","id":"p1"}`,
			wantWarnings: 1,
		},
		{
			name:         "meta missing both fields",
			resource:     `{"resourceType":"Patient","id":"p1","meta":{"source":"sys"}}`,
			wantWarnings: 2,
		},
		{
			name:         "meta missing versionId only",
			resource:     `{"resourceType":"Patient","id":"p1","meta":{"lastUpdated":"2026-08-01T00:00:00Z"}}`,
			wantWarnings: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			issues, err := Metadata{}.Validate(context.Background(), []byte(tt.resource), "Patient", oc.V1)
			if err != nil {
				t.Fatalf("Validate: %v", err)
			}
			if len(issues) != tt.wantWarnings {
				t.Fatalf("got %d issues %v; want %d", len(issues), issues, tt.wantWarnings)
			}
			for _, issue := range issues {
				if !issue.IsWarning() {
					t.Errorf("metadata gap reported as %s; want warning", issue.Severity)
				}
			}
		})
	}
}

// mapResolver resolves references against a fixed set.
type mapResolver struct {
	known map[string]bool
	err   error
}

func (m mapResolver) Exists(_ context.Context, reference string) (bool, error) {
	if m.err != nil {
		return false, m.err
	}
	return m.known[reference], nil
}

const observationDoc = `{
	"resourceType": "Observation",
	"id": "o1",
	"subject": {"reference": "Patient/p1"},
	"performer": [
		{"reference": "Practitioner/d1"},
		{"reference": "Practitioner/d2"}
	]
}`

func TestReference_AllResolve(t *testing.T) {
	r := Reference{Resolver: mapResolver{known: map[string]bool{
		"Patient/p1":      true,
		"Practitioner/d1": true,
		"Practitioner/d2": true,
	}}}

	issues, err := r.Validate(context.Background(), []byte(observationDoc), "Observation", oc.V1)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if len(issues) != 0 {
		t.Errorf("issues = %v; want none", issues)
	}
}

func TestReference_MissingTarget(t *testing.T) {
	r := Reference{Resolver: mapResolver{known: map[string]bool{
		"Patient/p1":      true,
		"Practitioner/d1": true,
		// d2 missing
	}}}

	issues, err := r.Validate(context.Background(), []byte(observationDoc), "Observation", oc.V1)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if len(issues) != 1 {
		t.Fatalf("got %d issues %v; want 1", len(issues), issues)
	}
	if issues[0].Code != oc.CodeValue || !issues[0].IsError() {
		t.Errorf("issue = %+v; want VALUE error", issues[0])
	}
}

func TestReference_NoResolverReportsUnchecked(t *testing.T) {
	issues, err := Reference{}.Validate(context.Background(), []byte(observationDoc), "Observation", oc.V1)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if len(issues) != 1 {
		t.Fatalf("got %d issues %v; want 1 unchecked notice", len(issues), issues)
	}
	if issues[0].Severity != oc.SeverityInformation || issues[0].Code != oc.CodeIncomplete {
		t.Errorf("issue = %+v; want informational INCOMPLETE", issues[0])
	}
}

func TestReference_NoReferencesNoResolver(t *testing.T) {
	issues, err := Reference{}.Validate(context.Background(),
		[]byte(`{"resourceType":"Patient","id":"p1"}`), "Patient", oc.V1)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if len(issues) != 0 {
		t.Errorf("issues = %v; want none", issues)
	}
}

func TestReference_ResolverErrorPropagates(t *testing.T) {
	boom := errors.New("registry unreachable")
	r := Reference{Resolver: mapResolver{err: boom}}

	_, err := r.Validate(context.Background(), []byte(observationDoc), "Observation", oc.V1)
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v; want wrapped resolver error", err)
	}
}

func TestCollectReferences_Nested(t *testing.T) {
	doc := []byte(`{
		"resourceType": "Bundle",
		"entry": [
			{"resource": {"subject": {"reference": "Patient/p1"}}},
			{"resource": {"subject": {"reference": "Patient/p2"}}}
		]
	}`)

	refs := collectReferences(doc, "")
	if len(refs) != 2 {
		t.Fatalf("found %d references %v; want 2", len(refs), refs)
	}
	if refs[0].target != "Patient/p1" || refs[1].target != "Patient/p2" {
		t.Errorf("targets = %v", refs)
	}
}
