package fulfillment

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"storefront/internal/domain"
	"storefront/internal/events"
	"storefront/internal/logging"
	"storefront/internal/metrics"
	"storefront/internal/validation"
)

const (
	MsgNoOrders        = "You have not ordered anything yet"
	MsgNoSuchOrder     = "This order does not exist."
	MsgNotCancelable   = "This order can no longer be canceled."
	MsgCanceled        = "Your order has been canceled."
	MsgRefundReceived  = "Your request was received."
	MsgRefundInvalid   = "Please correct the errors in the refund form"
	MsgNoRefundPending = "This order has no pending refund request."
	MsgRefundGranted   = "A refund was already granted for this order."
	MsgStageChanged    = "The order was updated by someone else. Reload and try again."
)

type orderRepo interface {
	GetByID(ctx context.Context, id string) (*domain.Order, error)
	GetByPublicID(ctx context.Context, orderID string) (*domain.Order, error)
	ListPlaced(ctx context.Context, userID string) ([]domain.Order, error)
	CompareAndSetStage(ctx context.Context, orderPK string, from, to domain.Stage) error
	RequestRefund(ctx context.Context, orderPK, reason, email string) (*domain.Refund, error)
	GrantRefund(ctx context.Context, orderPK string) error
}

type Service struct {
	orders    orderRepo
	publisher events.Publisher
	metrics   *metrics.Metrics
	validate  *validator.Validate
	logger    *zap.Logger
}

func New(orders orderRepo, publisher events.Publisher, m *metrics.Metrics, v *validator.Validate, logger *zap.Logger) *Service {
	if publisher == nil {
		publisher = events.Nop{}
	}
	if v == nil {
		v = validation.New()
	}
	return &Service{orders: orders, publisher: publisher, metrics: m, validate: v, logger: logging.OrNop(logger)}
}

// PlacedOrders lists the user's placed orders, newest first.
func (s *Service) PlacedOrders(ctx context.Context, userID string) ([]domain.Order, error) {
	return s.orders.ListPlaced(ctx, userID)
}

// Advance moves a placed order to the next stage. When expected is set it must
// match the stored stage.
func (s *Service) Advance(ctx context.Context, orderPK string, to domain.Stage, expected *domain.Stage) (*domain.Order, error) {
	order, err := s.orders.GetByID(ctx, orderPK)
	if err != nil {
		return nil, orderNotFound(err)
	}
	if expected != nil && *expected != order.Stage {
		return nil, domain.WithMessage(
			fmt.Errorf("order %s is %s, expected %s: %w", order.ID, order.Stage, *expected, domain.ErrStageConflict),
			MsgStageChanged)
	}
	if err := s.transition(ctx, order, to); err != nil {
		return nil, err
	}
	return s.orders.GetByID(ctx, orderPK)
}

// Cancel flags the user's order canceled. No payment is reversed.
func (s *Service) Cancel(ctx context.Context, userID, orderID string) (*domain.Order, error) {
	order, err := s.orders.GetByPublicID(ctx, orderID)
	if err != nil {
		return nil, orderNotFound(err)
	}
	if order.UserID != userID {
		return nil, domain.WithMessage(fmt.Errorf("order %s: %w", orderID, domain.ErrNotFound), MsgNoSuchOrder)
	}
	if !order.Stage.Cancelable() {
		return nil, domain.WithMessage(
			fmt.Errorf("cancel order in stage %s: %w", order.Stage, domain.ErrInvalidTransition),
			MsgNotCancelable)
	}
	if err := s.transition(ctx, order, domain.StageCanceled); err != nil {
		return nil, err
	}
	return s.orders.GetByID(ctx, order.ID)
}

func (s *Service) transition(ctx context.Context, order *domain.Order, to domain.Stage) error {
	from := order.Stage
	if !from.CanTransitionTo(to) {
		return fmt.Errorf("order %s from %s to %s: %w", order.ID, from, to, domain.ErrInvalidTransition)
	}
	if err := s.orders.CompareAndSetStage(ctx, order.ID, from, to); err != nil {
		if errors.Is(err, domain.ErrStageConflict) {
			return domain.WithMessage(err, MsgStageChanged)
		}
		return fmt.Errorf("set stage: %w", err)
	}
	s.metrics.Transition(string(from), string(to))
	s.logger.Info("order stage changed",
		zap.String("order_id", order.OrderID),
		zap.String("from", string(from)),
		zap.String("to", string(to)),
	)

	eventType := events.TypeOrderStageChanged
	if to == domain.StageCanceled {
		eventType = events.TypeOrderCanceled
	}
	s.publish(ctx, events.New(eventType, order.OrderID, order.UserID, map[string]string{
		"from": string(from),
		"to":   string(to),
	}))
	return nil
}

// RefundInput is the refund request form.
type RefundInput struct {
	OrderID string `json:"refCode" validate:"required,len=20"`
	Reason  string `json:"message" validate:"required"`
	Email   string `json:"email" validate:"required,email"`
}

// RequestRefund records a refund request against a placed order in any stage.
func (s *Service) RequestRefund(ctx context.Context, in RefundInput) (*domain.Refund, error) {
	in.OrderID = strings.TrimSpace(in.OrderID)
	in.Reason = strings.TrimSpace(in.Reason)
	in.Email = strings.TrimSpace(in.Email)
	if err := validation.Struct(s.validate, in, MsgRefundInvalid); err != nil {
		return nil, err
	}
	order, err := s.orders.GetByPublicID(ctx, in.OrderID)
	if err != nil {
		return nil, orderNotFound(err)
	}
	refund, err := s.orders.RequestRefund(ctx, order.ID, in.Reason, in.Email)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidTransition) {
			return nil, domain.WithMessage(err, MsgRefundGranted)
		}
		return nil, fmt.Errorf("request refund: %w", err)
	}
	s.publish(ctx, events.New(events.TypeRefundRequested, order.OrderID, order.UserID, map[string]string{
		"refund_id": refund.ID,
		"reason":    in.Reason,
	}))
	return refund, nil
}

// GrantRefund accepts a pending refund request. Money movement happens elsewhere.
func (s *Service) GrantRefund(ctx context.Context, orderPK string) (*domain.Order, error) {
	if err := s.orders.GrantRefund(ctx, orderPK); err != nil {
		switch {
		case errors.Is(err, domain.ErrNotFound):
			return nil, orderNotFound(err)
		case errors.Is(err, domain.ErrInvalidTransition):
			return nil, domain.WithMessage(err, MsgNoRefundPending)
		}
		return nil, fmt.Errorf("grant refund: %w", err)
	}
	order, err := s.orders.GetByID(ctx, orderPK)
	if err != nil {
		return nil, err
	}
	s.publish(ctx, events.New(events.TypeRefundGranted, order.OrderID, order.UserID, nil))
	return order, nil
}

func (s *Service) publish(ctx context.Context, e events.Event) {
	if err := s.publisher.Publish(context.WithoutCancel(ctx), e); err != nil {
		s.logger.Warn("publish event failed", zap.String("type", e.Type), zap.Error(err))
	}
}

func orderNotFound(err error) error {
	if errors.Is(err, domain.ErrNotFound) {
		return domain.WithMessage(err, MsgNoSuchOrder)
	}
	return err
}
