package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"paceload/internal/store"
)

// ResolvedZones is the zone configuration in force on a date.
type ResolvedZones struct {
	EffectiveFrom *time.Time // nil when no version applies
	Zones         []store.ZoneBracket
	Generation    int64 // athlete's configuration generation when resolved
}

type resolveKey struct {
	athleteID  int64
	date       string
	generation int64
}

// Resolver answers "which zones applied on this date" for an athlete.
// Results are cached per (athlete, date, generation); inserting a new
// configuration bumps the generation, so stale entries are never read again.
type Resolver struct {
	db *store.DB

	mu    sync.Mutex
	cache map[resolveKey]*ResolvedZones
}

// NewResolver creates a resolver backed by the store.
func NewResolver(db *store.DB) *Resolver {
	return &Resolver{db: db, cache: make(map[resolveKey]*ResolvedZones)}
}

// Resolve returns the zones in force for the athlete on asOf, ordered by zone
// number. The result is empty when the athlete had no configuration yet.
func (r *Resolver) Resolve(ctx context.Context, athleteID int64, asOf time.Time) ([]store.ZoneBracket, error) {
	v, err := r.ResolveVersion(ctx, athleteID, asOf)
	if err != nil {
		return nil, err
	}
	return v.Zones, nil
}

// ResolveVersion is Resolve plus the effective date of the matching version
// and the generation it was resolved against.
func (r *Resolver) ResolveVersion(ctx context.Context, athleteID int64, asOf time.Time) (*ResolvedZones, error) {
	gen, err := r.db.ZoneGeneration(ctx, athleteID)
	if err != nil {
		return nil, fmt.Errorf("reading zone generation: %w", err)
	}
	if gen == 0 {
		resolverCacheCounter.WithLabelValues("empty").Inc()
		return &ResolvedZones{}, nil
	}

	key := resolveKey{athleteID: athleteID, date: store.FormatDate(asOf), generation: gen}
	r.mu.Lock()
	cached, ok := r.cache[key]
	r.mu.Unlock()
	if ok {
		resolverCacheCounter.WithLabelValues("hit").Inc()
		return cached, nil
	}
	resolverCacheCounter.WithLabelValues("miss").Inc()

	v, err := r.db.ResolveZones(ctx, athleteID, asOf)
	if err != nil {
		return nil, err
	}
	res := &ResolvedZones{Zones: v.Zones, Generation: gen}
	if len(v.Zones) > 0 {
		eff := v.EffectiveFrom
		res.EffectiveFrom = &eff
	}

	r.mu.Lock()
	if len(r.cache) >= ResolverCacheSize {
		r.cache = make(map[resolveKey]*ResolvedZones)
	}
	r.cache[key] = res
	r.mu.Unlock()

	return res, nil
}

// Generation returns the athlete's current configuration generation.
func (r *Resolver) Generation(ctx context.Context, athleteID int64) (int64, error) {
	return r.db.ZoneGeneration(ctx, athleteID)
}
