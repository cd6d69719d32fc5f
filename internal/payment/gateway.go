// Package payment adapts card processors behind a single Charge capability.
package payment

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Category tags a gateway failure.
type Category string

const (
	CardDeclined         Category = "card_declined"
	RateLimited          Category = "rate_limited"
	InvalidRequest       Category = "invalid_request"
	AuthenticationFailed Category = "authentication_failed"
	ConnectionFailed     Category = "connection_failed"
	Unknown              Category = "unknown"
)

// Categories lists every category, for metrics initialisation.
var Categories = []Category{CardDeclined, RateLimited, InvalidRequest, AuthenticationFailed, ConnectionFailed, Unknown}

// ChargeRequest describes one capture. AmountMinor is in the currency's minor unit.
type ChargeRequest struct {
	AmountMinor    int64
	Currency       string
	SourceToken    string
	IdempotencyKey string
	Description    string
	Metadata       map[string]string
}

// Charge is a successful capture.
type Charge struct {
	ID          string
	AmountMinor int64
	Currency    string
}

// Gateway captures payments. Failures are returned as *GatewayError.
type Gateway interface {
	Charge(ctx context.Context, req ChargeRequest) (Charge, error)
}

// GatewayError is a failed charge tagged with its category.
type GatewayError struct {
	Category Category
	Message  string
	Err      error
}

func (e *GatewayError) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	return fmt.Sprintf("payment gateway: %s: %s", e.Category, msg)
}

func (e *GatewayError) Unwrap() error {
	return e.Err
}

var userMessages = map[Category]string{
	RateLimited:          "Rate limit error",
	InvalidRequest:       "Invalid request error",
	AuthenticationFailed: "Not authenticated",
	ConnectionFailed:     "API connection error",
	Unknown:              "Something went wrong",
}

// UserMessage is safe to show to the customer. Only declines carry the
// processor's own wording.
func (e *GatewayError) UserMessage() string {
	if e.Category == CardDeclined {
		if e.Message != "" {
			return e.Message
		}
		return "Your card was declined"
	}
	if msg, ok := userMessages[e.Category]; ok {
		return msg
	}
	return userMessages[Unknown]
}

// CategoryOf extracts the category from err.
func CategoryOf(err error) (Category, bool) {
	var ge *GatewayError
	if errors.As(err, &ge) {
		return ge.Category, true
	}
	return "", false
}

const (
	GatewayStripe  = "stripe"
	GatewaySandbox = "sandbox"
)

// NewGateway builds the named gateway. The sandbox never captures money, so it
// is only returned when asked for by name.
func NewGateway(name string, stripeCfg StripeConfig) (Gateway, error) {
	switch name {
	case GatewayStripe:
		gw, err := NewStripeGateway(stripeCfg)
		if err != nil {
			return nil, err
		}
		return gw, nil
	case GatewaySandbox:
		return NewSandboxGateway(), nil
	}
	return nil, fmt.Errorf("unknown payment gateway %q", name)
}

type timeoutGateway struct {
	next    Gateway
	timeout time.Duration
}

// WithTimeout bounds every charge. An expired deadline is reported as
// ConnectionFailed; the charge may still have succeeded remotely.
func WithTimeout(next Gateway, timeout time.Duration) Gateway {
	if timeout <= 0 {
		return next
	}
	return &timeoutGateway{next: next, timeout: timeout}
}

func (g *timeoutGateway) Charge(ctx context.Context, req ChargeRequest) (Charge, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	ch, err := g.next.Charge(ctx, req)
	if err == nil {
		return ch, nil
	}
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		if cat, ok := CategoryOf(err); !ok || cat != ConnectionFailed {
			return Charge{}, &GatewayError{Category: ConnectionFailed, Message: "charge timed out", Err: err}
		}
	}
	return Charge{}, err
}
