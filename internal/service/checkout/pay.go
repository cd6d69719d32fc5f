package checkout

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"storefront/internal/domain"
	"storefront/internal/events"
	"storefront/internal/payment"
	"storefront/internal/pricing"
	orderrepo "storefront/internal/repository/order"
	"storefront/internal/validation"
)

// PayInput is the payment form.
type PayInput struct {
	SourceToken   string `json:"stripeToken" validate:"required"`
	PaymentOption string `json:"paymentOption" validate:"omitempty,oneof=S P"`
}

// ReconciliationError means the gateway captured money but the order could
// not be marked placed. It needs manual follow-up and is never a gateway failure.
type ReconciliationError struct {
	ChargeID string
	OrderPK  string
	Err      error
}

func (e *ReconciliationError) Error() string {
	return fmt.Sprintf("charge %s captured but order %s not placed: %v", e.ChargeID, e.OrderPK, e.Err)
}

func (e *ReconciliationError) Unwrap() error {
	return e.Err
}

// IdempotencyKey ties a gateway charge to one cart at one amount. Retrying
// the same cart reuses the charge; changing the cart produces a new one.
func IdempotencyKey(orderPK string, amountMinor int64) string {
	return fmt.Sprintf("order-%s-%d", orderPK, amountMinor)
}

// Pay charges the active order's total and places the order.
func (s *Service) Pay(ctx context.Context, userID string, in PayInput) (*domain.Order, error) {
	if err := validation.Struct(s.validate, in, MsgFailed); err != nil {
		return nil, err
	}
	if in.PaymentOption == OptionPayPal {
		return nil, domain.NewValidationError(MsgFailed, map[string]string{"paymentOption": "PayPal is not supported."})
	}

	order, err := s.activeOrder(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(order.Lines) == 0 {
		return nil, domain.NewValidationError(MsgEmptyCart, nil)
	}
	if order.BillingAddressID == nil {
		return nil, domain.NewValidationError(MsgNoAddress, map[string]string{"billingAddress": "This field is required."})
	}
	total := pricing.OrderTotal(*order)
	if !total.IsPositive() {
		return nil, domain.NewValidationError(MsgNothingToPay, nil)
	}
	amountMinor := pricing.ToMinorUnits(total)

	charge, err := s.gateway.Charge(ctx, payment.ChargeRequest{
		AmountMinor:    amountMinor,
		Currency:       s.opts.Currency,
		SourceToken:    in.SourceToken,
		IdempotencyKey: IdempotencyKey(order.ID, amountMinor),
		Description:    "storefront order " + order.ID,
		Metadata:       map[string]string{"order_pk": order.ID, "user_id": userID},
	})
	if err != nil {
		s.chargeFailed(ctx, order, err)
		return nil, err
	}
	s.metrics.ChargeOutcome("succeeded")

	placed, err := s.place(ctx, orderrepo.PlaceInput{
		OrderPK:     order.ID,
		UserID:      userID,
		ChargeID:    charge.ID,
		Amount:      total,
		AmountMinor: amountMinor,
		Currency:    s.opts.Currency,
	})
	if err != nil {
		return nil, s.reconciliation(ctx, order, charge, err)
	}

	s.publish(ctx, events.New(events.TypeOrderPlaced, placed.OrderID, userID, map[string]any{
		"order_pk":  placed.ID,
		"charge_id": charge.ID,
		"total":     total.StringFixed(2),
		"currency":  s.opts.Currency,
	}))
	s.logger.Info("order placed",
		zap.String("order_id", placed.OrderID),
		zap.String("user_id", userID),
		zap.String("charge_id", charge.ID),
		zap.Int64("amount_minor", amountMinor),
	)
	return placed, nil
}

func (s *Service) chargeFailed(ctx context.Context, order *domain.Order, err error) {
	category, ok := payment.CategoryOf(err)
	if !ok {
		category = payment.Unknown
	}
	s.metrics.ChargeOutcome(string(category))

	fields := []zap.Field{
		zap.String("order_pk", order.ID),
		zap.String("user_id", order.UserID),
		zap.String("category", string(category)),
		zap.Error(err),
	}
	if category != payment.Unknown {
		s.logger.Warn("charge failed", fields...)
		return
	}
	s.logger.Error("charge failed with unexpected gateway error", fields...)
	s.publish(ctx, events.New(events.TypeGatewayUnknown, "", order.UserID, map[string]any{
		"order_pk": order.ID,
		"error":    err.Error(),
	}))
}

// place persists the placement, retrying transient failures. It runs
// detached from the caller's cancellation because the charge has already
// been captured.
func (s *Service) place(ctx context.Context, in orderrepo.PlaceInput) (*domain.Order, error) {
	ctx = context.WithoutCancel(ctx)
	var lastErr error
	for attempt := 0; attempt <= s.opts.PlacementRetries; attempt++ {
		if attempt > 0 {
			time.Sleep(time.Duration(attempt) * s.opts.RetryBackoff)
		}
		placed, err := s.orders.Place(ctx, in)
		if err == nil {
			return placed, nil
		}
		lastErr = err
		if errors.Is(err, domain.ErrNotFound) || errors.Is(err, orderrepo.ErrTotalChanged) {
			break
		}
		s.logger.Warn("placing charged order failed",
			zap.String("order_pk", in.OrderPK),
			zap.String("charge_id", in.ChargeID),
			zap.Int("attempt", attempt+1),
			zap.Error(err),
		)
	}
	return nil, lastErr
}

func (s *Service) reconciliation(ctx context.Context, order *domain.Order, charge payment.Charge, err error) error {
	rec := &ReconciliationError{ChargeID: charge.ID, OrderPK: order.ID, Err: err}
	s.metrics.ReconciliationRequired()
	s.logger.Error("payment requires reconciliation",
		zap.String("order_pk", order.ID),
		zap.String("user_id", order.UserID),
		zap.String("charge_id", charge.ID),
		zap.Int64("amount_minor", charge.AmountMinor),
		zap.Error(err),
	)
	s.publish(ctx, events.New(events.TypeReconciliationRequired, "", order.UserID, map[string]any{
		"order_pk":     order.ID,
		"charge_id":    charge.ID,
		"amount_minor": charge.AmountMinor,
		"currency":     charge.Currency,
		"error":        err.Error(),
	}))
	return domain.WithMessage(rec, MsgReconciliation)
}

func (s *Service) publish(ctx context.Context, e events.Event) {
	if err := s.publisher.Publish(context.WithoutCancel(ctx), e); err != nil {
		s.logger.Warn("publish event failed", zap.String("type", e.Type), zap.Error(err))
	}
}
