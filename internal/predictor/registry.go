package predictor

import (
	"sync"
	"sync/atomic"

	"refuge/internal/metrics"
	"refuge/pkg/logger"
)

// Registry owns the loaded model artifacts for the life of the process.
// State transitions one way, not-ready -> ready; after a successful Load the
// published snapshot is immutable and reads are lock-free.
type Registry struct {
	mu    sync.Mutex
	state atomic.Pointer[artifacts]
	log   *logger.Logger
}

var (
	defaultOnce     sync.Once
	defaultRegistry *Registry
)

// Default returns the process-wide registry.
func Default() *Registry {
	defaultOnce.Do(func() {
		defaultRegistry = NewRegistry(logger.Get())
	})
	return defaultRegistry
}

// Reset clears the process-wide registry state. Test use only.
func Reset() {
	Default().state.Store(nil)
}

// NewRegistry creates an empty, not-ready registry.
func NewRegistry(log *logger.Logger) *Registry {
	return &Registry{log: log}
}

// Load reads all artifacts from dir. It is idempotent: once a load has
// succeeded, further calls are no-ops. Use Reload to swap artifacts.
func (r *Registry) Load(dir string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state.Load() != nil {
		return nil
	}
	return r.load(dir)
}

// Reload replaces the current artifacts with a fresh load from dir. The old
// snapshot stays live for in-flight requests until they finish.
func (r *Registry) Reload(dir string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.load(dir)
}

func (r *Registry) load(dir string) error {
	a, err := loadArtifacts(dir, r.log)
	if err != nil {
		metrics.ModelsLoaded.Set(0)
		return err
	}

	r.state.Store(a)
	metrics.ModelsLoaded.Set(1)

	r.log.Infow("Model artifacts loaded",
		"dir", dir,
		"quantile_models", a.hasQuantilePair(),
		"residual_stats", a.residuals != nil,
		"countries", a.encoders[FeatureCountry].Len(),
		"origins", a.encoders[FeatureOrigin].Len(),
		"procedures", a.encoders[FeatureProcedure].Len(),
	)
	return nil
}

// Ready reports whether the point model and encoder set are available.
func (r *Registry) Ready() bool {
	a := r.state.Load()
	return a != nil && a.model != nil && a.encoders != nil
}

// Metadata returns the loaded training metadata, or nil when not ready.
func (r *Registry) Metadata() *Metadata {
	a := r.state.Load()
	if a == nil {
		return nil
	}
	return a.metadata
}

// snapshot returns the current artifact set, or nil when not ready.
func (r *Registry) snapshot() *artifacts {
	return r.state.Load()
}
