package aspects

import (
	"context"

	"github.com/buger/jsonparser"

	oc "github.com/gofhir/orchestrator"
)

// Metadata validates metadata completeness: a meta block with lastUpdated
// and versionId. Gaps are warnings, not errors; a resource without
// provenance metadata is suspicious but not invalid.
type Metadata struct{}

// Aspect returns the metadata tag.
func (Metadata) Aspect() oc.AspectTag {
	return oc.AspectMetadata
}

// Validate checks metadata completeness.
func (Metadata) Validate(ctx context.Context, resource []byte, resourceType string, _ oc.VersionTag) ([]oc.Issue, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var issues []oc.Issue

	if _, _, _, err := jsonparser.Get(resource, "meta"); err != nil {
		issues = append(issues, oc.WarningIssue(oc.CodeIncomplete).
			Diagnostics("resource has no 'meta' element").
			At(resourceType+".meta").
			Rule("meta-present").
			Build())
		return issues, nil
	}

	if _, err := jsonparser.GetString(resource, "meta", "lastUpdated"); err != nil {
		issues = append(issues, oc.WarningIssue(oc.CodeIncomplete).
			Diagnostics("meta.lastUpdated is missing").
			At(resourceType+".meta.lastUpdated").
			Rule("meta-last-updated").
			Build())
	}
	if _, err := jsonparser.GetString(resource, "meta", "versionId"); err != nil {
		issues = append(issues, oc.WarningIssue(oc.CodeIncomplete).
			Diagnostics("meta.versionId is missing").
			At(resourceType+".meta.versionId").
			Rule("meta-version-id").
			Build())
	}

	return issues, nil
}
