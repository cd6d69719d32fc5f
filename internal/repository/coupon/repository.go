package coupon

import (
	"context"

	"storefront/internal/domain"
)

type Repository interface {
	// GetByCode matches promo codes exactly, including case.
	GetByCode(ctx context.Context, code string) (*domain.DiscountCode, error)
	Upsert(ctx context.Context, c domain.DiscountCode) (*domain.DiscountCode, error)
}
