package wishlist

import (
	"context"
	"errors"
	"fmt"

	"storefront/internal/domain"
)

const (
	MsgAdded    = "This item was added to your wishlist."
	MsgRemoved  = "Removed from your wishlist."
	MsgNotFound = "This item was not in your wishlist."
)

type repo interface {
	Get(ctx context.Context, userID string) (*domain.Wishlist, error)
	Add(ctx context.Context, userID, itemID string) (*domain.Wishlist, error)
	Remove(ctx context.Context, userID, itemID string) error
}

type itemRepo interface {
	GetBySlug(ctx context.Context, slug string) (*domain.Item, error)
}

type Service struct {
	repo  repo
	items itemRepo
}

func New(r repo, items itemRepo) *Service {
	return &Service{repo: r, items: items}
}

// Get returns the wishlist, empty when the user never added anything.
func (s *Service) Get(ctx context.Context, userID string) (*domain.Wishlist, error) {
	w, err := s.repo.Get(ctx, userID)
	if errors.Is(err, domain.ErrNotFound) {
		return &domain.Wishlist{UserID: userID, Items: []domain.WishlistedItem{}}, nil
	}
	return w, err
}

func (s *Service) Add(ctx context.Context, userID, slug string) (*domain.Wishlist, error) {
	item, err := s.item(ctx, slug)
	if err != nil {
		return nil, err
	}
	return s.repo.Add(ctx, userID, item.ID)
}

func (s *Service) Remove(ctx context.Context, userID, slug string) error {
	item, err := s.item(ctx, slug)
	if err != nil {
		return err
	}
	if err := s.repo.Remove(ctx, userID, item.ID); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.WithMessage(err, MsgNotFound)
		}
		return fmt.Errorf("remove wishlist item: %w", err)
	}
	return nil
}

func (s *Service) item(ctx context.Context, slug string) (*domain.Item, error) {
	item, err := s.items.GetBySlug(ctx, slug)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, domain.WithMessage(err, "This item does not exist.")
	}
	return item, err
}
