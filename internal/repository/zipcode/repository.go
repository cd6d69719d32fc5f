package zipcode

import "context"

// Repository answers whether a zipcode lies in the service area.
type Repository interface {
	IsServiceable(ctx context.Context, zipcode string) (bool, error)
	Add(ctx context.Context, zipcode string) error
}
