package location

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/couchcryptid/nwp-forecast-service/internal/domain"
)

// StaticResolver resolves configured location names. Lookups ignore case
// and surrounding whitespace.
type StaticResolver struct {
	locations map[string]domain.Coordinates
}

// NewStaticResolver creates a resolver over a copy of locations.
func NewStaticResolver(locations map[string]domain.Coordinates) *StaticResolver {
	normalized := make(map[string]domain.Coordinates, len(locations))
	for name, c := range locations {
		normalized[normalize(name)] = c
	}
	return &StaticResolver{locations: normalized}
}

func (r *StaticResolver) Resolve(_ context.Context, ref string) (domain.Coordinates, error) {
	c, ok := r.locations[normalize(ref)]
	if !ok {
		return domain.Coordinates{}, fmt.Errorf("location %q: %w", ref, domain.ErrLocationNotFound)
	}
	return c, nil
}

// Names returns the configured names in sorted order.
func (r *StaticResolver) Names() []string {
	return slices.Sorted(maps.Keys(r.locations))
}

func normalize(ref string) string {
	return strings.ToLower(strings.TrimSpace(ref))
}
