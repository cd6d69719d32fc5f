package address

import (
	"context"

	"storefront/internal/domain"
)

// Repository persists billing addresses. Every method is scoped to the owning user.
type Repository interface {
	Create(ctx context.Context, a domain.Address) (*domain.Address, error)
	List(ctx context.Context, userID string) ([]domain.Address, error)
	Get(ctx context.Context, userID, id string) (*domain.Address, error)
	Update(ctx context.Context, a domain.Address) (*domain.Address, error)
	Delete(ctx context.Context, userID, id string) error
}
