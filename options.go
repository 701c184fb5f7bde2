package orchestrator

import (
	"log/slog"
)

// Option configures the orchestration engine.
type Option func(*Options)

// Options holds all configuration shared by the scheduler and router.
type Options struct {
	// Execution
	ParallelAspects bool
	ServerScope     string

	// Versioning
	DefaultVersion   VersionTag
	DisabledVersions map[VersionTag]bool

	// Resolved-aspect cache size (keyed by settings hash)
	AspectSetCacheSize int

	// Logger receives structured events. Never nil after defaults apply.
	Logger *slog.Logger
}

// DefaultOptions returns the default configuration.
func DefaultOptions() *Options {
	return &Options{
		ParallelAspects:    true,
		ServerScope:        "default",
		DefaultVersion:     V1,
		DisabledVersions:   map[VersionTag]bool{},
		AspectSetCacheSize: 256,
		Logger:             slog.Default(),
	}
}

// WithParallelAspects enables or disables concurrent aspect execution.
// With more than one aspect enabled, parallel is the default; sequential
// runs aspects strictly in declared order.
func WithParallelAspects(enable bool) Option {
	return func(o *Options) {
		o.ParallelAspects = enable
	}
}

// WithServerScope sets the persistence scope for stored results and
// message groups.
func WithServerScope(scope string) Option {
	return func(o *Options) {
		if scope != "" {
			o.ServerScope = scope
		}
	}
}

// WithDefaultVersion sets the version used when a request carries no
// usable explicit version and auto-detection finds no marker.
func WithDefaultVersion(v VersionTag) Option {
	return func(o *Options) {
		if v.IsValid() {
			o.DefaultVersion = v
		}
	}
}

// WithDisabledVersions administratively disables versions. Routing a
// request that resolves to a disabled version fails closed.
func WithDisabledVersions(versions ...VersionTag) Option {
	return func(o *Options) {
		for _, v := range versions {
			o.DisabledVersions[v] = true
		}
	}
}

// WithAspectSetCacheSize sets the capacity of the resolved-aspect-set
// cache keyed by settings hash.
func WithAspectSetCacheSize(size int) Option {
	return func(o *Options) {
		if size > 0 {
			o.AspectSetCacheSize = size
		}
	}
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *Options) {
		if logger != nil {
			o.Logger = logger
		}
	}
}
