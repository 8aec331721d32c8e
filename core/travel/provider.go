package travel

import (
	"context"
	"time"

	"github.com/kilianp07/errandplan/core/model"
)

// Estimate is one answer from a travel provider. Feasible is false when the
// access type cannot cover the journey at all, regardless of duration.
// DistanceKm feeds the usage KPIs; providers that cannot know it leave it zero.
type Estimate struct {
	Duration   time.Duration
	Feasible   bool
	Transfers  int
	DistanceKm float64
}

// Query identifies one travel question. It doubles as the memoisation key
// for a planning pass.
type Query struct {
	Origin model.Coordinate
	Dest   model.Coordinate
	Access model.AccessType
	Depart time.Time
}

// Provider answers travel-time questions between two points.
type Provider interface {
	Estimate(ctx context.Context, q Query) (Estimate, error)
}

// Candidate is one venue a resolver proposes for an open-location errand.
type Candidate struct {
	ID     string
	Name   string
	Coord  model.Coordinate
	Travel Estimate
}

// Resolver proposes venues of a category reachable from an origin within a
// travel budget. Implementations return candidates ordered by travel
// duration, nearest first.
type Resolver interface {
	Candidates(ctx context.Context, category string, origin model.Coordinate, access model.AccessType, budget time.Duration) ([]Candidate, error)
}
