package order

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"

	"storefront/internal/domain"
)

// ErrTotalChanged means the cart was modified after its total was charged.
var ErrTotalChanged = errors.New("cart total changed since charge")

// PlaceInput carries everything persisted when a charged cart becomes an order.
// AmountMinor is what the gateway captured; placement refuses a cart whose
// current total differs from it.
type PlaceInput struct {
	OrderPK     string
	UserID      string
	ChargeID    string
	Amount      decimal.Decimal
	AmountMinor int64
	Currency    string
}

// Repository persists the cart/order aggregate. Every mutating method runs in
// a single transaction.
type Repository interface {
	GetActive(ctx context.Context, userID string) (*domain.Order, error)
	GetByID(ctx context.Context, id string) (*domain.Order, error)
	GetByPublicID(ctx context.Context, orderID string) (*domain.Order, error)
	ListPlaced(ctx context.Context, userID string) ([]domain.Order, error)
	CountLines(ctx context.Context, userID string) (int, error)

	AddItem(ctx context.Context, userID, itemID string) (*domain.Order, error)
	RemoveItem(ctx context.Context, userID, itemID string) error
	DecrementItem(ctx context.Context, userID, itemID string) (removed bool, err error)

	AttachNewAddress(ctx context.Context, userID string, addr domain.Address) (*domain.Address, error)
	AttachAddress(ctx context.Context, userID, addressID string) error
	SetCoupon(ctx context.Context, userID, couponID string) error
	RemoveCoupon(ctx context.Context, userID string) error

	Place(ctx context.Context, in PlaceInput) (*domain.Order, error)
	CompareAndSetStage(ctx context.Context, orderPK string, from, to domain.Stage) error
	RequestRefund(ctx context.Context, orderPK, reason, email string) (*domain.Refund, error)
	GrantRefund(ctx context.Context, orderPK string) error
}
