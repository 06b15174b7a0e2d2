package domain

import "context"

// LocationResolver turns an opaque location reference (a configured name or
// an address) into coordinates. Implementations return an error wrapping
// ErrLocationNotFound when the reference is unknown.
type LocationResolver interface {
	Resolve(ctx context.Context, ref string) (Coordinates, error)
}
