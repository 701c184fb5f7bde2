// Package orchestrator provides the validation orchestration core for
// structured healthcare (FHIR) resources.
//
// The package coordinates six independent validation aspects (structural,
// profile, terminology, reference, business-rule and metadata) without
// implementing their domain logic itself. Aspect validators are external
// collaborators behind the AspectValidator interface; the orchestrator
// decides which aspects run, races each against its deadline, merges the
// outcomes into a single ValidationResult, and adapts to degraded network
// conditions reported by a connectivity advisor.
//
// # Quick Start
//
//	import (
//	    oc "github.com/gofhir/orchestrator"
//	    "github.com/gofhir/orchestrator/router"
//	)
//
//	r := router.New(validators, oc.WithDefaultVersion(oc.V2))
//
//	result, err := r.ValidateResource(ctx, oc.ValidationRequest{
//	    ResourceType: "Patient",
//	    Resource:     resourceJSON,
//	})
//	if !result.IsValid {
//	    for _, issue := range result.Issues {
//	        fmt.Println(issue.Diagnostics)
//	    }
//	}
//
// # Architecture
//
//   - scheduler: fan-out/fan-in aspect execution under per-aspect timeouts
//   - router: one lazily-built engine per protocol version (V1, V2, V3)
//   - connectivity: per-mode feature availability and warnings
//   - persist: de-duplicated, settings-keyed result storage on BadgerDB
//   - baseline: performance baselines, trends and regression detection
//
// All blocking operations take a context.Context; a timed-out aspect's
// context is cancelled, not abandoned. Callers of the routing layer always
// receive a well-formed ValidationResult per request, never a raw panic or
// a partially populated batch.
package orchestrator
