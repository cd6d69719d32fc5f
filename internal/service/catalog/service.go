package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"storefront/internal/domain"
	itemrepo "storefront/internal/repository/item"
)

const (
	// PageSize is the number of items on one front page.
	PageSize = 4
	// MaxPage bounds the requested page so its offset cannot overflow.
	MaxPage = 10000
)

const MsgPageOutOfRange = "That page does not exist."

type Service struct {
	items      itemRepo
	categories categoryRepo
}

type itemRepo interface {
	ListFrontpage(ctx context.Context, limit, offset int) (itemrepo.Page, error)
	ListAll(ctx context.Context) ([]domain.Item, error)
	Search(ctx context.Context, query string) ([]domain.Item, error)
	GetBySlug(ctx context.Context, slug string) (*domain.Item, error)
}

type categoryRepo interface {
	List(ctx context.Context) ([]domain.Category, error)
}

func New(items itemRepo, categories categoryRepo) *Service {
	return &Service{items: items, categories: categories}
}

type Page struct {
	Items      []domain.Item `json:"items"`
	Page       int           `json:"page"`
	TotalPages int           `json:"totalPages"`
	Total      int           `json:"total"`
}

// Frontpage returns one page of items flagged for the front page. Pages start at 1.
func (s *Service) Frontpage(ctx context.Context, page int) (*Page, error) {
	if page < 1 {
		page = 1
	}
	if page > MaxPage {
		return nil, domain.NewValidationError(MsgPageOutOfRange, map[string]string{"page": fmt.Sprintf("must be at most %d", MaxPage)})
	}
	res, err := s.items.ListFrontpage(ctx, PageSize, (page-1)*PageSize)
	if err != nil {
		return nil, fmt.Errorf("list frontpage: %w", err)
	}
	return &Page{
		Items:      res.Items,
		Page:       page,
		TotalPages: (res.Total + PageSize - 1) / PageSize,
		Total:      res.Total,
	}, nil
}

func (s *Service) All(ctx context.Context) ([]domain.Item, error) {
	return s.items.ListAll(ctx)
}

// Search matches titles case-insensitively. A blank query lists everything.
func (s *Service) Search(ctx context.Context, query string) ([]domain.Item, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return s.items.ListAll(ctx)
	}
	return s.items.Search(ctx, query)
}

func (s *Service) Get(ctx context.Context, slug string) (*domain.Item, error) {
	item, err := s.items.GetBySlug(ctx, slug)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, domain.WithMessage(err, "This item does not exist.")
	}
	return item, err
}

func (s *Service) Categories(ctx context.Context) ([]domain.Category, error) {
	return s.categories.List(ctx)
}
