// Package aspects provides built-in implementations of the
// AspectValidator contract for the aspects that need no external servers.
//
// These are deliberately small: full schema, profile and terminology
// validation belong to external collaborators. The built-ins cover the
// checks a server can always make locally, and they are what the CLI and
// the end-to-end tests run against.
package aspects

import (
	"context"
	"fmt"
	"regexp"

	"github.com/buger/jsonparser"

	oc "github.com/gofhir/orchestrator"
)

// idPattern is the allowed resource id format.
var idPattern = regexp.MustCompile(`^[A-Za-z0-9\-\.]{1,64}$`)

// Structural validates the local structural minimums of a resource:
// a resourceType matching the declared type, and a well-formed id.
type Structural struct{}

// Aspect returns the structural tag.
func (Structural) Aspect() oc.AspectTag {
	return oc.AspectStructural
}

// Validate checks the resource's structural minimums.
func (Structural) Validate(ctx context.Context, resource []byte, resourceType string, _ oc.VersionTag) ([]oc.Issue, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var issues []oc.Issue

	declared, err := jsonparser.GetString(resource, "resourceType")
	if err != nil {
		issues = append(issues, oc.ErrorIssue(oc.CodeRequired).
			Diagnostics("resource must have a 'resourceType' element").
			At(resourceType+".resourceType").
			Rule("struct-resource-type").
			Build())
		return issues, nil
	}
	if resourceType != "" && declared != resourceType {
		issues = append(issues, oc.ErrorIssue(oc.CodeValue).
			Diagnostics(fmt.Sprintf("declared resourceType %q does not match request type %q", declared, resourceType)).
			At(resourceType+".resourceType").
			Rule("struct-type-mismatch").
			Build())
	}

	id, err := jsonparser.GetString(resource, "id")
	switch {
	case err != nil:
		issues = append(issues, oc.ErrorIssue(oc.CodeRequired).
			Diagnostics("resource must have an 'id' element").
			At(resourceType+".id").
			Rule("struct-id-required").
			Build())
	case !idPattern.MatchString(id):
		issues = append(issues, oc.ErrorIssue(oc.CodeValue).
			Diagnostics(fmt.Sprintf("invalid id format: %q", id)).
			At(resourceType+".id").
			Rule("struct-id-format").
			Build())
	}

	return issues, nil
}
