// Package scheduler executes validation aspects for one protocol version.
//
// The scheduler resolves which aspects run from the settings snapshot,
// races each against its per-aspect deadline, maps failures and timeouts
// to issues, and aggregates everything into a single ValidationResult. A
// single aspect's failure is contained: it becomes a failed outcome and
// never aborts its siblings.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	oc "github.com/gofhir/orchestrator"
	"github.com/gofhir/orchestrator/baseline"
	"github.com/gofhir/orchestrator/cache"
	"github.com/gofhir/orchestrator/connectivity"
)

var (
	validationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "orchestrator_validations_total",
		Help: "Completed validations by version and verdict",
	}, []string{"version", "valid"})

	aspectDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "orchestrator_aspect_duration_seconds",
		Help:    "Per-aspect validation duration",
		Buckets: []float64{0.001, 0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30},
	}, []string{"aspect", "status"})
)

// ResolveAspects returns the set of aspects that will run for a snapshot,
// in declared order. The enabled set is settings-driven only: an aspect
// runs if and only if the settings enable it. The requested list is an
// advisory hint and never re-enables a disabled aspect; it does not
// participate in membership at all, so settings always wins.
func ResolveAspects(settings oc.SettingsSnapshot, requested []oc.AspectTag) []oc.AspectTag {
	_ = requested // advisory only

	resolved := make([]oc.AspectTag, 0, len(oc.AspectOrder))
	for _, tag := range oc.AspectOrder {
		if settings.Enabled(tag) {
			resolved = append(resolved, tag)
		}
	}
	return resolved
}

// Scheduler runs aspects for a single protocol version. Construct one per
// version through the router; instances are safe for concurrent use.
type Scheduler struct {
	version    oc.VersionTag
	validators map[oc.AspectTag]oc.AspectValidator
	advisor    connectivity.Advisor
	settings   oc.SettingsProvider
	tracker    *baseline.Tracker
	options    *oc.Options
	logger     *slog.Logger

	// aspectSets memoizes resolved aspect sets keyed by settings hash.
	// A hit means the engine has seen this settings combination before,
	// which is what classifies a run as warm rather than cold.
	aspectSets *cache.Cache[string, []oc.AspectTag]

	// firstRun distinguishes the cold-start sample from warm ones.
	firstRun atomic.Bool
}

// New creates a scheduler bound to one protocol version. All collaborators
// are injected; nil advisor, settings provider or tracker get safe
// defaults so tests can construct schedulers in isolation.
func New(version oc.VersionTag, validators []oc.AspectValidator, advisor connectivity.Advisor,
	settings oc.SettingsProvider, tracker *baseline.Tracker, options *oc.Options) *Scheduler {

	if advisor == nil {
		advisor = connectivity.NewStaticAdvisor(connectivity.ModeOnline)
	}
	if settings == nil {
		settings = oc.StaticSettings{Snapshot: oc.DefaultSettings()}
	}
	if tracker == nil {
		tracker = baseline.NewTracker()
	}
	if options == nil {
		options = oc.DefaultOptions()
	}

	byTag := make(map[oc.AspectTag]oc.AspectValidator, len(validators))
	for _, v := range validators {
		byTag[v.Aspect()] = v
	}

	s := &Scheduler{
		version:    version,
		validators: byTag,
		advisor:    advisor,
		settings:   settings,
		tracker:    tracker,
		options:    options,
		logger:     options.Logger.With(slog.String("version", version.String())),
		aspectSets: cache.New[string, []oc.AspectTag](options.AspectSetCacheSize),
	}
	s.firstRun.Store(true)
	return s
}

// Version returns the protocol version this scheduler is bound to.
func (s *Scheduler) Version() oc.VersionTag {
	return s.version
}

// Tracker returns the baseline tracker receiving this scheduler's samples.
func (s *Scheduler) Tracker() *baseline.Tracker {
	return s.tracker
}

// Run validates one resource and always returns a well-formed result,
// never an error: orchestrator-level failures degrade to an all-skipped
// result carrying one top-level issue.
func (s *Scheduler) Run(ctx context.Context, req oc.ValidationRequest) *oc.ValidationResult {
	start := time.Now()
	cold := s.firstRun.CompareAndSwap(true, false)

	settings := s.currentSettings(req)

	if req.ResourceType == "" {
		return s.degraded(req, settings, "request has no resourceType", start)
	}
	if len(req.Resource) == 0 {
		return s.degraded(req, settings, "request has no resource document", start)
	}

	aspects, cacheHit := s.resolvedAspects(settings, req.RequestedAspects)

	result := oc.NewResult(req.ResourceType, s.version)
	result.ResourceID = req.ResourceID

	if s.options.ParallelAspects && len(aspects) > 1 {
		s.runParallel(ctx, req, settings, aspects, result)
	} else {
		s.runSequential(ctx, req, settings, aspects, result)
	}

	total := time.Since(start)
	result.ValidatedAt = time.Now().UTC()
	result.TotalDurationMs = total.Milliseconds()

	s.record(req, result, total, cold, cacheHit)
	return result
}

// resolvedAspects resolves the enabled aspect set, memoized by settings
// hash. The boolean reports whether the set came from cache.
func (s *Scheduler) resolvedAspects(settings oc.SettingsSnapshot, requested []oc.AspectTag) ([]oc.AspectTag, bool) {
	hash := settings.Hash()
	if cached, ok := s.aspectSets.Get(hash); ok {
		return cached, true
	}

	resolved := ResolveAspects(settings, requested)
	s.aspectSets.Set(hash, resolved)

	// Surface hints that tried to widen the set; they are ignored.
	for _, tag := range requested {
		if !settings.Enabled(tag) {
			s.logger.Warn("requested aspect is disabled by settings; not running it",
				slog.String("aspect", tag.String()))
		}
	}
	return resolved, false
}

func (s *Scheduler) currentSettings(req oc.ValidationRequest) oc.SettingsSnapshot {
	if req.Settings != nil {
		return *req.Settings
	}
	return s.settings.CurrentSettings()
}

// runSequential executes aspects strictly in declared order.
func (s *Scheduler) runSequential(ctx context.Context, req oc.ValidationRequest,
	settings oc.SettingsSnapshot, aspects []oc.AspectTag, result *oc.ValidationResult) {

	for _, tag := range aspects {
		result.AddOutcome(s.runAspect(ctx, tag, req, settings))
	}
}

// runParallel launches all aspects concurrently and waits for every one to
// settle. Outcomes are appended in declared order regardless of which
// finished first, and a failing aspect never short-circuits its siblings.
func (s *Scheduler) runParallel(ctx context.Context, req oc.ValidationRequest,
	settings oc.SettingsSnapshot, aspects []oc.AspectTag, result *oc.ValidationResult) {

	outcomes := make([]oc.AspectOutcome, len(aspects))

	var wg sync.WaitGroup
	for i, tag := range aspects {
		wg.Add(1)
		go func(idx int, tag oc.AspectTag) {
			defer wg.Done()
			outcomes[idx] = s.runAspect(ctx, tag, req, settings)
		}(i, tag)
	}
	wg.Wait()

	for _, outcome := range outcomes {
		result.AddOutcome(outcome)
	}
}

// runAspect executes one aspect under its deadline. The validator races a
// context timeout; when the deadline wins, the validator's context is
// cancelled so its in-flight I/O stops rather than leaking.
func (s *Scheduler) runAspect(ctx context.Context, tag oc.AspectTag,
	req oc.ValidationRequest, settings oc.SettingsSnapshot) oc.AspectOutcome {

	if !s.advisor.IsFeatureAvailable(tag.FeatureKey()) {
		mode := s.advisor.CurrentMode()
		reason := fmt.Sprintf("not available in %s mode", mode)
		return oc.AspectOutcome{
			Aspect:     tag,
			Status:     oc.StatusSkipped,
			IsValid:    true,
			SkipReason: reason,
			Issues: []oc.Issue{
				oc.InfoIssue(oc.CodeAspectUnavailable).
					Diagnostics(fmt.Sprintf("%s validation skipped: %s", tag, reason)).
					Build(),
			},
		}
	}

	validator, ok := s.validators[tag]
	if !ok {
		return oc.AspectOutcome{
			Aspect:     tag,
			Status:     oc.StatusSkipped,
			IsValid:    true,
			SkipReason: "no validator registered",
			Issues: []oc.Issue{
				oc.InfoIssue(oc.CodeIncomplete).
					Diagnostics(fmt.Sprintf("no %s validator registered", tag)).
					Build(),
			},
		}
	}

	start := time.Now()
	timeout := settings.Timeout(tag)
	actx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type aspectReturn struct {
		issues []oc.Issue
		err    error
	}
	done := make(chan aspectReturn, 1)
	go func() {
		issues, err := validator.Validate(actx, req.Resource, req.ResourceType, s.version)
		done <- aspectReturn{issues: issues, err: err}
	}()

	var outcome oc.AspectOutcome
	select {
	case ret := <-done:
		outcome = s.settle(tag, ret.issues, ret.err, timeout)
	case <-actx.Done():
		outcome = s.settle(tag, nil, actx.Err(), timeout)
	}

	duration := time.Since(start)
	outcome.DurationMs = duration.Milliseconds()
	aspectDuration.WithLabelValues(tag.String(), string(outcome.Status)).Observe(duration.Seconds())
	return outcome
}

// settle maps a validator return into a terminal outcome.
func (s *Scheduler) settle(tag oc.AspectTag, issues []oc.Issue, err error, timeout time.Duration) oc.AspectOutcome {
	if err != nil {
		code := classifyError(err)
		diag := fmt.Sprintf("%s validation failed: %v", tag, err)
		if code == oc.CodeTimeout {
			diag = fmt.Sprintf("%s validation timed out after %s", tag, timeout)
		}
		return oc.AspectOutcome{
			Aspect:  tag,
			Status:  oc.StatusFailed,
			IsValid: false,
			Issues: []oc.Issue{
				oc.ErrorIssue(code).Diagnostics(diag).Build(),
			},
		}
	}

	outcome := oc.AspectOutcome{
		Aspect:  tag,
		Status:  oc.StatusExecuted,
		Issues:  issues,
		IsValid: true,
	}
	if outcome.HasErrors() {
		outcome.IsValid = false
	}
	return outcome
}

// degraded builds the all-aspects-skipped result used when the
// orchestrator fails before dispatching anything. Batch callers always
// get a well-formed result object per request.
func (s *Scheduler) degraded(req oc.ValidationRequest, settings oc.SettingsSnapshot,
	reason string, start time.Time) *oc.ValidationResult {

	result := oc.NewResult(req.ResourceType, s.version)
	result.ResourceID = req.ResourceID

	for _, tag := range ResolveAspects(settings, nil) {
		result.AddOutcome(oc.AspectOutcome{
			Aspect:     tag,
			Status:     oc.StatusSkipped,
			IsValid:    true,
			SkipReason: reason,
		})
	}

	result.Issues = append(result.Issues,
		oc.ErrorIssue(oc.CodeValidationError).Diagnostics(reason).Build())
	result.IsValid = false
	result.ValidatedAt = time.Now().UTC()
	result.TotalDurationMs = time.Since(start).Milliseconds()

	validationsTotal.WithLabelValues(s.version.String(), "false").Inc()
	s.logger.Error("validation aborted before aspect dispatch", slog.String("reason", reason))
	return result
}

// record emits the scheduler's telemetry side effects: timing samples for
// the baseline tracker, Prometheus counters, and a completion event.
func (s *Scheduler) record(req oc.ValidationRequest, result *oc.ValidationResult,
	total time.Duration, cold, cacheHit bool) {

	for _, outcome := range result.Outcomes {
		if outcome.Status == oc.StatusSkipped {
			continue
		}
		s.tracker.RecordValidationTime(req.ResourceType, outcome.Aspect.String(),
			time.Duration(outcome.DurationMs)*time.Millisecond, cacheHit)
	}

	if cold {
		s.tracker.RecordColdStart(total)
	} else {
		s.tracker.RecordWarmCache(total)
	}

	validationsTotal.WithLabelValues(s.version.String(), fmt.Sprintf("%t", result.IsValid)).Inc()

	s.logger.Info("validation completed",
		slog.String("resourceType", req.ResourceType),
		slog.Bool("valid", result.IsValid),
		slog.Int("outcomes", len(result.Outcomes)),
		slog.Int64("durationMs", total.Milliseconds()),
		slog.Bool("coldStart", cold))
}
