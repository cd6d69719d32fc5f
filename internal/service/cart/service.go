package cart

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"storefront/internal/domain"
	"storefront/internal/logging"
	"storefront/internal/pricing"
)

// Customer-facing messages.
const (
	MsgAdded         = "This item was added to your cart."
	MsgRemoved       = "Removed from your cart."
	MsgUpdated       = "This item quantity was updated"
	MsgNotInCart     = "This item was not in your cart."
	MsgNoActiveOrder = "You do not have an active order."
	MsgNoSuchItem    = "This item does not exist."
)

type Service struct {
	orders orderRepo
	items  itemRepo
	logger *zap.Logger
}

type orderRepo interface {
	GetActive(ctx context.Context, userID string) (*domain.Order, error)
	CountLines(ctx context.Context, userID string) (int, error)
	AddItem(ctx context.Context, userID, itemID string) (*domain.Order, error)
	RemoveItem(ctx context.Context, userID, itemID string) error
	DecrementItem(ctx context.Context, userID, itemID string) (bool, error)
}

type itemRepo interface {
	GetBySlug(ctx context.Context, slug string) (*domain.Item, error)
}

func New(orders orderRepo, items itemRepo, logger *zap.Logger) *Service {
	return &Service{orders: orders, items: items, logger: logging.OrNop(logger)}
}

// Summary is the active order with its computed totals.
type Summary struct {
	Order   *domain.Order   `json:"order"`
	Pricing pricing.Summary `json:"pricing"`
}

func (s *Service) resolve(ctx context.Context, slug string) (*domain.Item, error) {
	item, err := s.items.GetBySlug(ctx, slug)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.WithMessage(fmt.Errorf("item %q: %w", slug, err), MsgNoSuchItem)
		}
		return nil, err
	}
	return item, nil
}

// AddItem puts one unit of the item into the user's cart, creating the cart if needed.
func (s *Service) AddItem(ctx context.Context, userID, slug string) (*domain.Order, error) {
	item, err := s.resolve(ctx, slug)
	if err != nil {
		return nil, err
	}
	order, err := s.orders.AddItem(ctx, userID, item.ID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.WithMessage(err, MsgNoSuchItem)
		}
		return nil, fmt.Errorf("add item: %w", err)
	}
	s.logger.Debug("cart item added", zap.String("user_id", userID), zap.String("item", slug))
	return order, nil
}

// RemoveItem drops the whole line regardless of quantity.
func (s *Service) RemoveItem(ctx context.Context, userID, slug string) error {
	item, err := s.resolve(ctx, slug)
	if err != nil {
		return err
	}
	if err := s.orders.RemoveItem(ctx, userID, item.ID); err != nil {
		return s.lineError(ctx, userID, err)
	}
	return nil
}

// DecrementItem lowers the quantity by one, deleting the line at one.
func (s *Service) DecrementItem(ctx context.Context, userID, slug string) (removed bool, err error) {
	item, err := s.resolve(ctx, slug)
	if err != nil {
		return false, err
	}
	removed, err = s.orders.DecrementItem(ctx, userID, item.ID)
	if err != nil {
		return false, s.lineError(ctx, userID, err)
	}
	return removed, nil
}

// lineError tells a missing cart apart from a missing line.
func (s *Service) lineError(ctx context.Context, userID string, err error) error {
	if !errors.Is(err, domain.ErrNotFound) {
		return err
	}
	if _, activeErr := s.orders.GetActive(ctx, userID); errors.Is(activeErr, domain.ErrNotFound) {
		return domain.WithMessage(err, MsgNoActiveOrder)
	}
	return domain.WithMessage(err, MsgNotInCart)
}

func (s *Service) GetActive(ctx context.Context, userID string) (*Summary, error) {
	order, err := s.orders.GetActive(ctx, userID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.WithMessage(err, MsgNoActiveOrder)
		}
		return nil, err
	}
	return &Summary{Order: order, Pricing: pricing.Summarize(*order)}, nil
}

// ItemCount is the number of lines in the active cart, zero when there is none.
func (s *Service) ItemCount(ctx context.Context, userID string) (int, error) {
	return s.orders.CountLines(ctx, userID)
}
