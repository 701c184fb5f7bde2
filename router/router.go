// Package router routes validation requests to the engine instance
// matching their protocol version.
//
// Engines are built lazily, one scheduler per version, and cached for the
// router's lifetime; the version set is small and closed, so the cache
// needs no eviction. Version resolution is fail-open (unsupported explicit
// versions fall back to the default) except for administratively disabled
// versions, which fail closed: running validation against a disabled
// version would be silently misleading.
package router

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/buger/jsonparser"

	oc "github.com/gofhir/orchestrator"
	"github.com/gofhir/orchestrator/baseline"
	"github.com/gofhir/orchestrator/connectivity"
	"github.com/gofhir/orchestrator/persist"
	"github.com/gofhir/orchestrator/scheduler"
)

// ErrVersionDisabled is returned when a request resolves to an
// administratively disabled version.
var ErrVersionDisabled = errors.New("version is administratively disabled")

// Router maintains one scheduler per protocol version and dispatches
// requests to the right one.
type Router struct {
	options    *oc.Options
	validators []oc.AspectValidator
	advisor    connectivity.Advisor
	settings   oc.SettingsProvider
	tracker    *baseline.Tracker
	store      *persist.Store
	logger     *slog.Logger

	mu      sync.RWMutex
	engines map[oc.VersionTag]*scheduler.Scheduler
}

// New creates a router over the given aspect validators. The baseline
// tracker is shared by every engine the router builds, so samples from all
// versions land in one history.
func New(validators []oc.AspectValidator, opts ...oc.Option) *Router {
	options := oc.DefaultOptions()
	for _, opt := range opts {
		opt(options)
	}

	return &Router{
		options:    options,
		validators: validators,
		advisor:    connectivity.NewStaticAdvisor(connectivity.ModeOnline),
		settings:   oc.StaticSettings{Snapshot: oc.DefaultSettings()},
		tracker:    baseline.NewTracker(),
		logger:     options.Logger,
		engines:    make(map[oc.VersionTag]*scheduler.Scheduler, len(oc.AllVersions)),
	}
}

// SetAdvisor sets the connectivity advisor consulted by every engine.
// Engines built before the call keep the previous advisor.
func (r *Router) SetAdvisor(advisor connectivity.Advisor) {
	if advisor != nil {
		r.advisor = advisor
	}
}

// SetSettingsProvider sets the provider consulted when a request carries
// no explicit settings snapshot.
func (r *Router) SetSettingsProvider(provider oc.SettingsProvider) {
	if provider != nil {
		r.settings = provider
	}
}

// SetPersistence enables write-through of aspect outcomes to the store.
func (r *Router) SetPersistence(store *persist.Store) {
	r.store = store
}

// Tracker returns the shared baseline tracker.
func (r *Router) Tracker() *baseline.Tracker {
	return r.tracker
}

// DetermineVersion resolves the protocol version for a request. Priority:
// the explicit version when supported, then marker-field auto-detection
// from the document, then the configured default. An unsupported explicit
// version falls back to the default and logs; it is not an error.
func (r *Router) DetermineVersion(req oc.ValidationRequest) oc.VersionTag {
	if req.ExplicitVersion != "" {
		if req.ExplicitVersion.IsValid() {
			return req.ExplicitVersion
		}
		r.logger.Warn("unsupported explicit version, falling back to default",
			slog.String("requested", req.ExplicitVersion.String()),
			slog.String("default", r.options.DefaultVersion.String()))
		return r.options.DefaultVersion
	}

	if detected, ok := detectVersion(req.Resource); ok {
		return detected
	}
	return r.options.DefaultVersion
}

// detectVersion sniffs version-specific markers from the raw document
// without a full unmarshal.
func detectVersion(resource []byte) (oc.VersionTag, bool) {
	if len(resource) == 0 {
		return "", false
	}

	if wire, err := jsonparser.GetString(resource, "fhirVersion"); err == nil {
		if tag, ok := oc.VersionForWire(wire); ok {
			return tag, true
		}
	}

	// Newer generations introduce marker fields; check newest first so a
	// document carrying both resolves to the newer version.
	for i := len(oc.AllVersions) - 1; i >= 0; i-- {
		tag := oc.AllVersions[i]
		for _, marker := range oc.VersionMarkerFields(tag) {
			keys := strings.Split(marker, ".")
			if _, _, _, err := jsonparser.Get(resource, keys...); err == nil {
				return tag, true
			}
		}
	}
	return "", false
}

// IsVersionAvailable reports whether requests may be routed to a version.
// A version is unavailable when it is unknown, administratively disabled,
// or the router holds no aspect validators to back it.
func (r *Router) IsVersionAvailable(version oc.VersionTag) bool {
	if !version.IsValid() {
		return false
	}
	if r.options.DisabledVersions[version] {
		return false
	}
	return len(r.validators) > 0
}

// Engine returns the cached scheduler for a version, constructing it on
// first use. The cache is read-mostly: one write per version, ever.
func (r *Router) Engine(version oc.VersionTag) *scheduler.Scheduler {
	r.mu.RLock()
	engine, ok := r.engines[version]
	r.mu.RUnlock()
	if ok {
		return engine
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if engine, ok := r.engines[version]; ok {
		return engine
	}

	engine = scheduler.New(version, r.validators, r.advisor, r.settings, r.tracker, r.options)
	r.engines[version] = engine
	r.logger.Info("engine instance created", slog.String("version", version.String()))
	return engine
}

// RouteValidation resolves the request's version, dispatches it to the
// matching engine, annotates the result with the version's known
// limitations, and writes outcomes through persistence when configured.
// It fails closed on administratively disabled versions.
func (r *Router) RouteValidation(ctx context.Context, req oc.ValidationRequest) (*oc.ValidationResult, error) {
	version := r.DetermineVersion(req)
	if r.options.DisabledVersions[version] {
		return nil, fmt.Errorf("cannot validate against %s: %w", version, ErrVersionDisabled)
	}

	result := r.Engine(version).Run(ctx, req)
	result.Limitations = oc.VersionLimitations(version)

	if r.store != nil {
		settings := r.settings.CurrentSettings()
		if req.Settings != nil {
			settings = *req.Settings
		}
		if err := r.store.PersistResult(ctx, r.options.ServerScope, req, result, settings.Hash()); err != nil {
			// Persistence failures never invalidate the verdict.
			r.logger.Error("failed to persist validation result",
				slog.String("resourceType", req.ResourceType),
				slog.String("error", err.Error()))
		}
	}

	return result, nil
}

// ValidateResource is the primary entry point for single-resource
// validation.
func (r *Router) ValidateResource(ctx context.Context, req oc.ValidationRequest) (*oc.ValidationResult, error) {
	return r.RouteValidation(ctx, req)
}

// ValidateResources validates a batch sequentially. The output always has
// one result per request: a request whose routing fails becomes an
// error-flagged result for that entry only, with non-structural aspects
// marked skipped and a reason explaining the abort.
func (r *Router) ValidateResources(ctx context.Context, reqs []oc.ValidationRequest) []*oc.ValidationResult {
	results := make([]*oc.ValidationResult, len(reqs))
	for i, req := range reqs {
		result, err := r.RouteValidation(ctx, req)
		if err != nil {
			result = r.batchFailure(req, err)
		}
		results[i] = result
	}
	return results
}

// batchFailure builds the error-flagged result for one aborted batch
// entry.
func (r *Router) batchFailure(req oc.ValidationRequest, cause error) *oc.ValidationResult {
	version := req.ExplicitVersion
	if !version.IsValid() {
		version = r.options.DefaultVersion
	}

	result := oc.NewResult(req.ResourceType, version)
	result.ResourceID = req.ResourceID

	reason := fmt.Sprintf("batch entry aborted: %v", cause)
	for _, tag := range oc.AspectOrder {
		if tag == oc.AspectStructural {
			result.AddOutcome(oc.AspectOutcome{
				Aspect:  tag,
				Status:  oc.StatusFailed,
				IsValid: false,
				Issues: []oc.Issue{
					oc.ErrorIssue(oc.CodeValidationError).Diagnostics(reason).Build(),
				},
			})
			continue
		}
		result.AddOutcome(oc.AspectOutcome{
			Aspect:     tag,
			Status:     oc.StatusSkipped,
			IsValid:    true,
			SkipReason: reason,
		})
	}
	return result
}
