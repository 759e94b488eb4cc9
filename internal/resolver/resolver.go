// Package resolver picks the engine tier that serves generative requests:
// an embedded zero-cost engine when one is present, the in-process model
// engine (already loaded or freshly loaded from a downloaded file), or a
// no-op fallback that degrades every operation gracefully.
package resolver

import (
	"sync"
	"time"

	"github.com/jellydator/ttlcache/v3"
	"github.com/rs/zerolog"

	"mailmind/internal/catalog"
	"mailmind/internal/common/sysinfo"
	"mailmind/internal/engine"
)

// Tier labels reported alongside a resolved engine.
const (
	TierEmbedded = "embedded"
	TierModel    = "model"
	TierNone     = "none"
)

const defaultTTL = 60 * time.Second

// cacheKey is the single memoization slot; resolution has no parameters.
const cacheKey = "engine"

// ModelEngine is the loadable engine behind the model tier.
type ModelEngine interface {
	engine.Engine
	LoadModel(path string) error
}

// ModelStore reports which model files are on disk. *download.Manager
// satisfies it.
type ModelStore interface {
	DownloadedIDs() []string
	ModelPath(id string) (string, error)
}

// Config carries the resolver collaborators. Model and Store are required;
// the rest default.
type Config struct {
	// Embedded is an optional engine that needs no model download. It is
	// probed first on every resolution.
	Embedded engine.Engine
	Model    ModelEngine
	Store    ModelStore
	// TotalRAM defaults to the system probe; injectable for tests.
	TotalRAM func() uint64
	// Recommend maps total RAM to the preferred catalog id; defaults to
	// catalog.Recommended.
	Recommend func(uint64) string
	TTL       time.Duration
	Logger    zerolog.Logger
}

type resolution struct {
	eng  engine.Engine
	tier string
}

// Resolver memoizes the tier decision for a short TTL so that callers on
// hot paths never pay for repeated probes or load attempts.
type Resolver struct {
	embedded  engine.Engine
	model     ModelEngine
	store     ModelStore
	totalRAM  func() uint64
	recommend func(uint64) string
	fallback  engine.Engine
	log       zerolog.Logger

	mu    sync.Mutex
	cache *ttlcache.Cache[string, resolution]
}

func New(cfg Config) *Resolver {
	if cfg.TTL <= 0 {
		cfg.TTL = defaultTTL
	}
	if cfg.TotalRAM == nil {
		cfg.TotalRAM = sysinfo.TotalRAM
	}
	if cfg.Recommend == nil {
		cfg.Recommend = catalog.Recommended
	}
	c := ttlcache.New[string, resolution](
		ttlcache.WithTTL[string, resolution](cfg.TTL),
		ttlcache.WithDisableTouchOnHit[string, resolution](),
	)
	go c.Start()
	return &Resolver{
		embedded:  cfg.Embedded,
		model:     cfg.Model,
		store:     cfg.Store,
		totalRAM:  cfg.TotalRAM,
		recommend: cfg.Recommend,
		fallback:  engine.Fallback{},
		log:       cfg.Logger,
		cache:     c,
	}
}

// Close stops the cache expiration loop.
func (r *Resolver) Close() {
	r.cache.Stop()
}

// Resolve returns the engine for the current tier. Within the TTL the same
// instance is returned without re-probing.
func (r *Resolver) Resolve() engine.Engine {
	eng, _ := r.ResolveTier()
	return eng
}

// ResolveTier is Resolve plus the tier label, for status reporting.
func (r *Resolver) ResolveTier() (engine.Engine, string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if item := r.cache.Get(cacheKey); item != nil {
		res := item.Value()
		return res.eng, res.tier
	}
	res := r.probe()
	r.cache.Set(cacheKey, res, ttlcache.DefaultTTL)
	resolutionsTotal.WithLabelValues(res.tier).Inc()
	return res.eng, res.tier
}

// Invalidate drops the memoized decision. Call it after any model download
// or deletion, since those change which tier is reachable.
func (r *Resolver) Invalidate() {
	r.mu.Lock()
	r.cache.Delete(cacheKey)
	r.mu.Unlock()
}

// probe walks the tiers in order and returns the first available engine.
// Callers hold r.mu.
func (r *Resolver) probe() resolution {
	if r.embedded != nil && r.embedded.Available() {
		r.log.Debug().Msg("resolved embedded engine")
		return resolution{eng: r.embedded, tier: TierEmbedded}
	}
	if r.model.Available() {
		return resolution{eng: r.model, tier: TierModel}
	}
	for _, id := range r.candidateIDs() {
		path, err := r.store.ModelPath(id)
		if err != nil {
			continue
		}
		if err := r.model.LoadModel(path); err != nil {
			r.log.Warn().Err(err).Str("model", id).Msg("model failed to load; trying next")
			continue
		}
		r.log.Info().Str("model", id).Msg("resolved model engine")
		return resolution{eng: r.model, tier: TierModel}
	}
	r.log.Debug().Msg("no engine tier reachable; falling back")
	return resolution{eng: r.fallback, tier: TierNone}
}

// candidateIDs orders the downloaded ids with the RAM-recommended one first.
func (r *Resolver) candidateIDs() []string {
	ids := r.store.DownloadedIDs()
	rec := r.recommend(r.totalRAM())
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == rec {
			out = append(out, id)
		}
	}
	for _, id := range ids {
		if id != rec {
			out = append(out, id)
		}
	}
	return out
}
