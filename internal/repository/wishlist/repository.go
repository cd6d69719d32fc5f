package wishlist

import (
	"context"

	"storefront/internal/domain"
)

type Repository interface {
	// Get returns the user's wishlist, or ErrNotFound when none was created yet.
	Get(ctx context.Context, userID string) (*domain.Wishlist, error)
	// Add creates the wishlist and entry when missing. Adding twice is a no-op.
	Add(ctx context.Context, userID, itemID string) (*domain.Wishlist, error)
	Remove(ctx context.Context, userID, itemID string) error
}
