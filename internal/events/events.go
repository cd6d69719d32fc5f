package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Event types emitted by the order lifecycle.
const (
	TypeOrderPlaced            = "order.placed"
	TypeOrderStageChanged      = "order.stage_changed"
	TypeOrderCanceled          = "order.canceled"
	TypeRefundRequested        = "refund.requested"
	TypeRefundGranted          = "refund.granted"
	TypeReconciliationRequired = "payment.reconciliation_required"
	TypeGatewayUnknown         = "payment.gateway_unknown"
)

type Event struct {
	EventID   string          `json:"event_id"`
	Type      string          `json:"type"`
	OrderID   string          `json:"order_id,omitempty"`
	UserID    string          `json:"user_id,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

// New builds an event with a fresh id. A payload that fails to marshal is dropped.
func New(eventType, orderID, userID string, payload any) Event {
	e := Event{
		EventID:   uuid.NewString(),
		Type:      eventType,
		OrderID:   orderID,
		UserID:    userID,
		CreatedAt: time.Now().UTC(),
	}
	if payload != nil {
		if data, err := json.Marshal(payload); err == nil {
			e.Payload = data
		}
	}
	return e
}

// Key is the partition key. Events for one order stay ordered.
func (e Event) Key() string {
	if e.OrderID != "" {
		return e.OrderID
	}
	return e.UserID
}

type Publisher interface {
	Publish(ctx context.Context, e Event) error
	Close() error
}
