package aspects

import (
	"context"
	"fmt"

	"github.com/buger/jsonparser"

	oc "github.com/gofhir/orchestrator"
)

// Resolver checks whether a referenced resource exists.
type Resolver interface {
	Exists(ctx context.Context, reference string) (bool, error)
}

// Reference validates that every reference in the resource resolves.
// Without a resolver it reports that references were not checked, rather
// than silently passing: an unchecked reference is incomplete validation,
// not a successful one.
type Reference struct {
	Resolver Resolver
}

// Aspect returns the reference tag.
func (Reference) Aspect() oc.AspectTag {
	return oc.AspectReference
}

// Validate resolves every reference field found in the document.
func (r Reference) Validate(ctx context.Context, resource []byte, resourceType string, _ oc.VersionTag) ([]oc.Issue, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	refs := collectReferences(resource, "")

	if r.Resolver == nil {
		if len(refs) == 0 {
			return nil, nil
		}
		return []oc.Issue{
			oc.InfoIssue(oc.CodeIncomplete).
				Diagnostics(fmt.Sprintf("%d reference(s) not checked: no resolver configured", len(refs))).
				At(resourceType).
				Rule("ref-unchecked").
				Build(),
		}, nil
	}

	var issues []oc.Issue
	for _, ref := range refs {
		if err := ctx.Err(); err != nil {
			return issues, err
		}
		exists, err := r.Resolver.Exists(ctx, ref.target)
		if err != nil {
			return issues, fmt.Errorf("resolve %q: %w", ref.target, err)
		}
		if !exists {
			issues = append(issues, oc.ErrorIssue(oc.CodeValue).
				Diagnostics(fmt.Sprintf("referenced resource %q does not exist", ref.target)).
				At(resourceType+ref.path).
				Rule("ref-exists").
				Build())
		}
	}
	return issues, nil
}

type foundReference struct {
	path   string
	target string
}

// collectReferences walks the document and gathers every object carrying
// a string "reference" field.
func collectReferences(doc []byte, path string) []foundReference {
	var refs []foundReference

	_ = jsonparser.ObjectEach(doc, func(key, value []byte, dataType jsonparser.ValueType, _ int) error {
		childPath := path + "." + string(key)
		switch dataType {
		case jsonparser.Object:
			if string(key) == "reference" {
				return nil
			}
			if target, err := jsonparser.GetString(value, "reference"); err == nil {
				refs = append(refs, foundReference{path: childPath, target: target})
			}
			refs = append(refs, collectReferences(value, childPath)...)
		case jsonparser.Array:
			idx := 0
			_, _ = jsonparser.ArrayEach(value, func(item []byte, itemType jsonparser.ValueType, _ int, _ error) {
				itemPath := fmt.Sprintf("%s[%d]", childPath, idx)
				idx++
				if itemType != jsonparser.Object {
					return
				}
				if target, err := jsonparser.GetString(item, "reference"); err == nil {
					refs = append(refs, foundReference{path: itemPath, target: target})
				}
				refs = append(refs, collectReferences(item, itemPath)...)
			})
		}
		return nil
	})

	return refs
}
