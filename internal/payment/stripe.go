package payment

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"

	"github.com/stripe/stripe-go/v78"
	"github.com/stripe/stripe-go/v78/client"
	"go.uber.org/zap"
)

type stripeChargeAPI interface {
	New(params *stripe.ChargeParams) (*stripe.Charge, error)
}

// StripeConfig configures StripeGateway. Charges overrides the API client in tests.
type StripeConfig struct {
	APIKey   string
	Backends *stripe.Backends
	Logger   *zap.Logger
	Charges  stripeChargeAPI
}

// StripeGateway charges card tokens through the Stripe Charges API.
type StripeGateway struct {
	charges stripeChargeAPI
	logger  *zap.Logger
}

func NewStripeGateway(cfg StripeConfig) (*StripeGateway, error) {
	charges := cfg.Charges
	if charges == nil {
		key := strings.TrimSpace(cfg.APIKey)
		if key == "" {
			return nil, errors.New("stripe: api key is required")
		}
		charges = client.New(key, cfg.Backends).Charges
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StripeGateway{charges: charges, logger: logger}, nil
}

func (g *StripeGateway) Charge(ctx context.Context, req ChargeRequest) (Charge, error) {
	if req.AmountMinor <= 0 {
		return Charge{}, &GatewayError{Category: InvalidRequest, Message: "amount must be positive"}
	}

	params := &stripe.ChargeParams{
		Amount:   stripe.Int64(req.AmountMinor),
		Currency: stripe.String(strings.ToLower(req.Currency)),
	}
	params.Context = ctx
	if err := params.SetSource(req.SourceToken); err != nil {
		return Charge{}, &GatewayError{Category: InvalidRequest, Message: "unsupported payment source", Err: err}
	}
	if key := strings.TrimSpace(req.IdempotencyKey); key != "" {
		params.SetIdempotencyKey(key)
	}
	if req.Description != "" {
		params.Description = stripe.String(req.Description)
	}
	for k, v := range req.Metadata {
		params.AddMetadata(k, v)
	}

	ch, err := g.charges.New(params)
	if err != nil {
		gerr := classifyStripeError(ctx, err)
		g.logger.Warn("stripe charge failed",
			zap.String("category", string(gerr.Category)),
			zap.Int64("amount", req.AmountMinor),
			zap.String("idempotency_key", req.IdempotencyKey),
			zap.Error(err),
		)
		return Charge{}, gerr
	}

	g.logger.Info("stripe charge captured",
		zap.String("charge_id", ch.ID),
		zap.Int64("amount", ch.Amount),
	)
	return Charge{ID: ch.ID, AmountMinor: ch.Amount, Currency: string(ch.Currency)}, nil
}

func classifyStripeError(ctx context.Context, err error) *GatewayError {
	var se *stripe.Error
	if errors.As(err, &se) {
		ge := &GatewayError{Err: err}
		switch {
		case se.Type == stripe.ErrorTypeCard:
			ge.Category = CardDeclined
			ge.Message = se.Msg
		case se.HTTPStatusCode == http.StatusTooManyRequests:
			ge.Category = RateLimited
		case se.HTTPStatusCode == http.StatusUnauthorized:
			ge.Category = AuthenticationFailed
		case se.Type == stripe.ErrorTypeInvalidRequest, se.Type == stripe.ErrorTypeIdempotency:
			ge.Category = InvalidRequest
		default:
			ge.Category = Unknown
		}
		return ge
	}

	if ctx.Err() != nil || errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return &GatewayError{Category: ConnectionFailed, Err: err}
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return &GatewayError{Category: ConnectionFailed, Err: err}
	}
	return &GatewayError{Category: Unknown, Err: err}
}
