package model

// LocationKind discriminates the closed set of location spec variants.
// Placement code switches exhaustively over it; adding a kind requires
// touching every switch.
type LocationKind int

const (
	// LocationExact fixes a single coordinate.
	LocationExact LocationKind = iota
	// LocationPlace names a known place with a pre-resolved coordinate and
	// optional alternative branches.
	LocationPlace
	// LocationCategory leaves the venue open: any place of the category may
	// serve, resolved per placement.
	LocationCategory
	// LocationRemote needs no travel at all.
	LocationRemote
)

// String returns the configuration name of the location kind.
func (k LocationKind) String() string {
	switch k {
	case LocationExact:
		return "exact"
	case LocationPlace:
		return "place"
	case LocationCategory:
		return "category"
	case LocationRemote:
		return "remote"
	default:
		return "unknown"
	}
}

// LocationSpec describes where an errand happens. Exactly one variant is
// active, selected by Kind.
type LocationSpec struct {
	Kind LocationKind

	// Coord is the resolved position for LocationExact and LocationPlace.
	Coord Coordinate

	// Name labels LocationPlace specs for display and agenda output.
	Name string

	// Alternatives lists equivalent branches of a LocationPlace; placement
	// may pick whichever minimises travel.
	Alternatives []Coordinate

	// Category is the venue class for LocationCategory, e.g. "grocery".
	Category string
}

// RequiresTravel reports whether placing the errand involves a journey.
func (l LocationSpec) RequiresTravel() bool {
	return l.Kind != LocationRemote
}

// Open reports whether the concrete venue is chosen at placement time.
func (l LocationSpec) Open() bool {
	return l.Kind == LocationCategory
}

func (l LocationSpec) validate(defID string) error {
	switch l.Kind {
	case LocationExact:
		if !l.Coord.Valid() {
			return newValidationError(defID, "location", "coordinate outside WGS84 bounds")
		}
	case LocationPlace:
		if !l.Coord.Valid() {
			return newValidationError(defID, "location", "coordinate outside WGS84 bounds")
		}
		for _, alt := range l.Alternatives {
			if !alt.Valid() {
				return newValidationError(defID, "location", "alternative coordinate outside WGS84 bounds")
			}
		}
	case LocationCategory:
		if l.Category == "" {
			return newValidationError(defID, "location", "category spec without a category")
		}
	case LocationRemote:
	default:
		return newValidationError(defID, "location", "unknown location kind")
	}
	return nil
}
