package location

import (
	"context"
	"errors"
	"fmt"

	"github.com/couchcryptid/nwp-forecast-service/internal/domain"
)

// ChainResolver asks each resolver in turn and returns the first match.
// It moves on only when a resolver reports ErrLocationNotFound; any other
// error stops the chain.
type ChainResolver []domain.LocationResolver

func (c ChainResolver) Resolve(ctx context.Context, ref string) (domain.Coordinates, error) {
	for _, r := range c {
		coords, err := r.Resolve(ctx, ref)
		if err == nil {
			return coords, nil
		}
		if !errors.Is(err, domain.ErrLocationNotFound) {
			return domain.Coordinates{}, err
		}
	}
	return domain.Coordinates{}, fmt.Errorf("location %q: %w", ref, domain.ErrLocationNotFound)
}
