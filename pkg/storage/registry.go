package storage

import (
	"fmt"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog"
)

// RegistryConfig is the Storage Registry's config-driven-open surface:
// shared BadgerDB tunables plus the base directory every (domain, tier)
// sub-database is opened under, mirroring Options' shape so the Registry's
// lazily-opened engines behave exactly like one opened directly via Open.
type RegistryConfig struct {
	BaseDir         string
	SyncWrites      bool
	LowMemory       bool
	MaxMapSizeBytes int64
	Logger          zerolog.Logger
}

// registryKey names one logical database: a domain ("knowledge",
// "conversations", ...) crossed with one of that domain's tiers
// ("active", "stable", "inferred", ...).
type registryKey struct {
	domain string
	tier   string
}

// Registry is a named collection of DB handles under one base directory:
// each (domain, tier) pair gets its own on-disk BadgerDB environment at
// <base>/<domain>/<tier>, opened the first time it's asked for and cached
// for the registry's lifetime. Get is idempotent — asking for the
// same (domain, tier) twice never opens the underlying environment twice.
type Registry struct {
	cfg RegistryConfig

	mu      sync.Mutex
	engines map[registryKey]*BadgerEngine
}

// OpenRegistry constructs a Registry over cfg. No sub-database is opened
// until Get names one; a fresh install never pays the cost of touching a
// tier it has no data for yet.
func OpenRegistry(cfg RegistryConfig) (*Registry, error) {
	if cfg.BaseDir == "" {
		return nil, fmt.Errorf("storage registry: BaseDir required")
	}
	return &Registry{
		cfg:     cfg,
		engines: make(map[registryKey]*BadgerEngine),
	}, nil
}

// Get returns the BadgerEngine for (domain, tier), opening it at
// <base>/<domain>/<tier> if this is the first request for that pair.
func (r *Registry) Get(domain, tier string) (*BadgerEngine, error) {
	key := registryKey{domain: domain, tier: tier}

	r.mu.Lock()
	defer r.mu.Unlock()

	if eng, ok := r.engines[key]; ok {
		return eng, nil
	}

	dir := filepath.Join(r.cfg.BaseDir, domain, tier)
	eng, err := Open(Options{
		DataDir:         dir,
		SyncWrites:      r.cfg.SyncWrites,
		LowMemory:       r.cfg.LowMemory,
		MaxMapSizeBytes: r.cfg.MaxMapSizeBytes,
	}, r.cfg.Logger.With().Str("domain", domain).Str("tier", tier).Logger())
	if err != nil {
		return nil, fmt.Errorf("storage registry: opening %s/%s: %w", domain, tier, err)
	}

	r.engines[key] = eng
	return eng, nil
}

// Opened reports every (domain, tier) pair currently opened, for callers
// that need to run a startup reconciliation pass (e.g. the Index Manager's
// sidecar check) only over databases that actually exist on disk rather
// than every domain/tier the policy layer knows about in the abstract.
func (r *Registry) Opened() []struct{ Domain, Tier string } {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]struct{ Domain, Tier string }, 0, len(r.engines))
	for k := range r.engines {
		out = append(out, struct{ Domain, Tier string }{k.domain, k.tier})
	}
	return out
}

// Close closes every sub-database this Registry has opened. Safe to call
// even if some Get calls failed partway through setup; only engines that
// actually opened successfully are tracked.
func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var firstErr error
	for key, eng := range r.engines {
		if err := eng.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("closing %s/%s: %w", key.domain, key.tier, err)
		}
	}
	r.engines = make(map[registryKey]*BadgerEngine)
	return firstErr
}
