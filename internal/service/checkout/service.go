package checkout

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"storefront/internal/domain"
	"storefront/internal/events"
	"storefront/internal/logging"
	"storefront/internal/metrics"
	"storefront/internal/payment"
	orderrepo "storefront/internal/repository/order"
	addresssvc "storefront/internal/service/address"
	"storefront/internal/validation"
)

const (
	MsgPlaced         = "Your order has been placed successfully"
	MsgFailed         = "Failed to checkout"
	MsgNoActiveOrder  = "You do not have an active order"
	MsgEmptyCart      = "Your cart is empty"
	MsgNoAddress      = "Please add a billing address before paying"
	MsgNothingToPay   = "Your order total must be greater than zero"
	MsgCouponAdded    = "Successfully added coupon"
	MsgCouponInvalid  = "This coupon does not exist"
	MsgCouponRemoved  = "Coupon removed"
	MsgNoCoupon       = "No coupon is applied to your order"
	MsgReconciliation = "Something went wrong! we are taking note of it"
)

// Payment options offered on the checkout form.
const (
	OptionStripe = "S"
	OptionPayPal = "P"
)

type orderRepo interface {
	GetActive(ctx context.Context, userID string) (*domain.Order, error)
	AttachNewAddress(ctx context.Context, userID string, addr domain.Address) (*domain.Address, error)
	AttachAddress(ctx context.Context, userID, addressID string) error
	SetCoupon(ctx context.Context, userID, couponID string) error
	RemoveCoupon(ctx context.Context, userID string) error
	Place(ctx context.Context, in orderrepo.PlaceInput) (*domain.Order, error)
}

type couponRepo interface {
	GetByCode(ctx context.Context, code string) (*domain.DiscountCode, error)
}

type zipcodeRepo interface {
	IsServiceable(ctx context.Context, zipcode string) (bool, error)
}

// Options tune payment behaviour.
type Options struct {
	Currency         string
	PlacementRetries int
	RetryBackoff     time.Duration
}

type Service struct {
	orders    orderRepo
	coupons   couponRepo
	zipcodes  zipcodeRepo
	gateway   payment.Gateway
	publisher events.Publisher
	metrics   *metrics.Metrics
	validate  *validator.Validate
	logger    *zap.Logger
	opts      Options
}

type Deps struct {
	Orders    orderRepo
	Coupons   couponRepo
	Zipcodes  zipcodeRepo
	Gateway   payment.Gateway
	Publisher events.Publisher
	Metrics   *metrics.Metrics
	Validator *validator.Validate
	Logger    *zap.Logger
}

func New(d Deps, opts Options) *Service {
	if d.Publisher == nil {
		d.Publisher = events.Nop{}
	}
	if d.Validator == nil {
		d.Validator = validation.New()
	}
	if opts.Currency == "" {
		opts.Currency = "inr"
	}
	if opts.PlacementRetries < 0 {
		opts.PlacementRetries = 0
	}
	if opts.RetryBackoff <= 0 {
		opts.RetryBackoff = 100 * time.Millisecond
	}
	return &Service{
		orders:    d.Orders,
		coupons:   d.Coupons,
		zipcodes:  d.Zipcodes,
		gateway:   d.Gateway,
		publisher: d.Publisher,
		metrics:   d.Metrics,
		validate:  d.Validator,
		logger:    logging.OrNop(d.Logger),
		opts:      opts,
	}
}

func (s *Service) activeOrder(ctx context.Context, userID string) (*domain.Order, error) {
	order, err := s.orders.GetActive(ctx, userID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.WithMessage(err, MsgNoActiveOrder)
		}
		return nil, err
	}
	return order, nil
}

// AttachBillingAddress validates the form, stores the address and links it to the active order.
func (s *Service) AttachBillingAddress(ctx context.Context, userID string, in addresssvc.Input) (*domain.Address, error) {
	addr, err := addresssvc.Validate(s.validate, userID, in)
	if err != nil {
		return nil, err
	}
	created, err := s.orders.AttachNewAddress(ctx, userID, addr)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.WithMessage(err, MsgNoActiveOrder)
		}
		return nil, fmt.Errorf("attach billing address: %w", err)
	}
	return created, nil
}

// UseSavedAddress links one of the user's stored addresses to the active order.
func (s *Service) UseSavedAddress(ctx context.Context, userID, addressID string) error {
	if err := s.orders.AttachAddress(ctx, userID, addressID); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.WithMessage(err, MsgFailed)
		}
		return fmt.Errorf("attach saved address: %w", err)
	}
	return nil
}

// ApplyCoupon attaches the promo code, matched exactly. An unknown code leaves the order unchanged.
func (s *Service) ApplyCoupon(ctx context.Context, userID, code string) (*domain.Order, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, domain.NewValidationError(MsgCouponInvalid, map[string]string{"code": "This field is required."})
	}
	if _, err := s.activeOrder(ctx, userID); err != nil {
		return nil, err
	}
	coupon, err := s.coupons.GetByCode(ctx, code)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.WithMessage(err, MsgCouponInvalid)
		}
		return nil, err
	}
	if err := s.orders.SetCoupon(ctx, userID, coupon.ID); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.WithMessage(err, MsgNoActiveOrder)
		}
		return nil, fmt.Errorf("set coupon: %w", err)
	}
	return s.orders.GetActive(ctx, userID)
}

// RemoveCoupon detaches the coupon and deletes the code itself.
func (s *Service) RemoveCoupon(ctx context.Context, userID string) error {
	if err := s.orders.RemoveCoupon(ctx, userID); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.WithMessage(err, MsgNoCoupon)
		}
		return fmt.Errorf("remove coupon: %w", err)
	}
	return nil
}

func (s *Service) CheckZipcode(ctx context.Context, zipcode string) (bool, error) {
	zipcode = strings.TrimSpace(zipcode)
	if zipcode == "" {
		return false, nil
	}
	return s.zipcodes.IsServiceable(ctx, zipcode)
}
