package item

import (
	"context"

	"storefront/internal/domain"
)

// Page is one slice of a listing plus the total number of matching rows.
type Page struct {
	Items []domain.Item
	Total int
}

type Repository interface {
	ListFrontpage(ctx context.Context, limit, offset int) (Page, error)
	ListAll(ctx context.Context) ([]domain.Item, error)
	Search(ctx context.Context, query string) ([]domain.Item, error)
	GetBySlug(ctx context.Context, slug string) (*domain.Item, error)
	Upsert(ctx context.Context, item domain.Item, categorySlugs []string) (*domain.Item, error)
}
