package travel

import (
	"context"
	"sort"
	"time"

	"github.com/kilianp07/errandplan/core/model"
)

// StaticConfig tunes the built-in estimator. Zero values fall back to the
// defaults below.
type StaticConfig struct {
	// SpeedsKmh is the assumed cruising speed per access type.
	SpeedsKmh map[model.AccessType]float64
	// RangeKm caps how far each access type is willing to go one way.
	RangeKm map[model.AccessType]float64
	// Overhead is the fixed per-trip cost (parking, waiting for a ride).
	Overhead map[model.AccessType]time.Duration
}

var defaultSpeedsKmh = map[model.AccessType]float64{
	model.AccessWalk:    4.8,
	model.AccessBike:    15,
	model.AccessBus:     20,
	model.AccessTrain:   40,
	model.AccessTransit: 25,
	model.AccessDrive:   40,
}

var defaultRangeKm = map[model.AccessType]float64{
	model.AccessWalk:    3.2,
	model.AccessBike:    8,
	model.AccessBus:     16,
	model.AccessTrain:   16,
	model.AccessTransit: 16,
	model.AccessDrive:   80,
}

var defaultOverhead = map[model.AccessType]time.Duration{
	model.AccessWalk:    0,
	model.AccessBike:    2 * time.Minute,
	model.AccessBus:     7 * time.Minute,
	model.AccessTrain:   10 * time.Minute,
	model.AccessTransit: 8 * time.Minute,
	model.AccessDrive:   5 * time.Minute,
}

// Static estimates travel purely from great-circle distance and per-mode
// speed assumptions. It is deterministic, needs no network, and serves as
// the fallback when no external matrix service is configured.
type Static struct {
	cfg StaticConfig
}

// NewStatic builds the estimator with the default mode table.
func NewStatic() *Static {
	return NewStaticWithConfig(StaticConfig{})
}

// NewStaticWithConfig overrides parts of the mode table.
func NewStaticWithConfig(cfg StaticConfig) *Static {
	merged := StaticConfig{
		SpeedsKmh: map[model.AccessType]float64{},
		RangeKm:   map[model.AccessType]float64{},
		Overhead:  map[model.AccessType]time.Duration{},
	}
	for k, v := range defaultSpeedsKmh {
		merged.SpeedsKmh[k] = v
	}
	for k, v := range defaultRangeKm {
		merged.RangeKm[k] = v
	}
	for k, v := range defaultOverhead {
		merged.Overhead[k] = v
	}
	for k, v := range cfg.SpeedsKmh {
		merged.SpeedsKmh[k] = v
	}
	for k, v := range cfg.RangeKm {
		merged.RangeKm[k] = v
	}
	for k, v := range cfg.Overhead {
		merged.Overhead[k] = v
	}
	return &Static{cfg: merged}
}

// Estimate computes a deterministic travel estimate. Journeys beyond the
// mode's range come back infeasible rather than as an error.
func (s *Static) Estimate(_ context.Context, q Query) (Estimate, error) {
	dist := q.Origin.DistanceKm(q.Dest)
	if dist == 0 {
		return Estimate{Duration: 0, Feasible: true, DistanceKm: 0}, nil
	}
	maxKm := s.cfg.RangeKm[q.Access]
	if maxKm > 0 && dist > maxKm {
		return Estimate{Feasible: false}, nil
	}
	speed := s.cfg.SpeedsKmh[q.Access]
	if speed <= 0 {
		speed = defaultSpeedsKmh[model.AccessDrive]
	}
	dur := time.Duration(dist/speed*60) * time.Minute
	dur += s.cfg.Overhead[q.Access]
	// Round up to the minute so identical queries always agree.
	if rem := dur % time.Minute; rem != 0 {
		dur += time.Minute - rem
	}
	return Estimate{
		Duration:   dur,
		Feasible:   true,
		Transfers:  s.transfers(q.Access, dist),
		DistanceKm: dist,
	}, nil
}

func (s *Static) transfers(access model.AccessType, distKm float64) int {
	if !access.IsTransit() {
		return 0
	}
	switch {
	case distKm < 4:
		return 0
	case distKm < 10:
		return 1
	default:
		return 2
	}
}

// Place is one venue the static resolver can propose.
type Place struct {
	ID       string
	Name     string
	Category string
	Coord    model.Coordinate
}

// StaticResolver serves open-location queries from a fixed place list.
type StaticResolver struct {
	places   []Place
	estimate Provider
}

// NewStaticResolver builds a resolver over the given places, using provider
// for the travel ranking. A nil provider falls back to the static estimator.
func NewStaticResolver(places []Place, provider Provider) *StaticResolver {
	if provider == nil {
		provider = NewStatic()
	}
	return &StaticResolver{places: places, estimate: provider}
}

// Candidates returns the places of the category reachable within budget,
// nearest first. Ties are broken by fewer transfers, then by place ID, so
// the ordering never depends on map iteration.
func (r *StaticResolver) Candidates(ctx context.Context, category string, origin model.Coordinate, access model.AccessType, budget time.Duration) ([]Candidate, error) {
	var out []Candidate
	for _, p := range r.places {
		if p.Category != category {
			continue
		}
		est, err := r.estimate.Estimate(ctx, Query{Origin: origin, Dest: p.Coord, Access: access})
		if err != nil {
			return nil, err
		}
		if !est.Feasible {
			continue
		}
		if budget > 0 && est.Duration > budget {
			continue
		}
		out = append(out, Candidate{ID: p.ID, Name: p.Name, Coord: p.Coord, Travel: est})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Travel.Duration != out[j].Travel.Duration {
			return out[i].Travel.Duration < out[j].Travel.Duration
		}
		if out[i].Travel.Transfers != out[j].Travel.Transfers {
			return out[i].Travel.Transfers < out[j].Travel.Transfers
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}
