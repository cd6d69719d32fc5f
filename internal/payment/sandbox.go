package payment

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// Test tokens understood by SandboxGateway. Any other token succeeds.
const (
	TokenDeclined        = "tok_chargeDeclined"
	TokenRateLimited     = "tok_rateLimited"
	TokenInvalid         = "tok_invalidRequest"
	TokenUnauthenticated = "tok_unauthenticated"
	TokenHang            = "tok_hang"
	TokenError           = "tok_processingError"
)

// SandboxGateway is an in-process gateway for local runs and tests.
// Charges with the same idempotency key return the first result.
type SandboxGateway struct {
	mu      sync.Mutex
	charges map[string]Charge
	calls   int
}

func NewSandboxGateway() *SandboxGateway {
	return &SandboxGateway{charges: make(map[string]Charge)}
}

func (g *SandboxGateway) Charge(ctx context.Context, req ChargeRequest) (Charge, error) {
	g.mu.Lock()
	g.calls++
	if req.IdempotencyKey != "" {
		if ch, ok := g.charges[req.IdempotencyKey]; ok {
			g.mu.Unlock()
			return ch, nil
		}
	}
	g.mu.Unlock()

	if req.AmountMinor <= 0 {
		return Charge{}, &GatewayError{Category: InvalidRequest, Message: "amount must be positive"}
	}

	switch req.SourceToken {
	case TokenDeclined:
		return Charge{}, &GatewayError{Category: CardDeclined, Message: "Your card was declined."}
	case TokenRateLimited:
		return Charge{}, &GatewayError{Category: RateLimited}
	case TokenInvalid, "":
		return Charge{}, &GatewayError{Category: InvalidRequest, Message: "invalid source"}
	case TokenUnauthenticated:
		return Charge{}, &GatewayError{Category: AuthenticationFailed}
	case TokenError:
		return Charge{}, &GatewayError{Category: Unknown, Message: "processing error"}
	case TokenHang:
		<-ctx.Done()
		return Charge{}, &GatewayError{Category: ConnectionFailed, Err: ctx.Err()}
	}

	ch := Charge{
		ID:          "ch_" + uuid.NewString(),
		AmountMinor: req.AmountMinor,
		Currency:    req.Currency,
	}
	if req.IdempotencyKey != "" {
		g.mu.Lock()
		if prior, ok := g.charges[req.IdempotencyKey]; ok {
			ch = prior
		} else {
			g.charges[req.IdempotencyKey] = ch
		}
		g.mu.Unlock()
	}
	return ch, nil
}

// Calls reports how many charges were attempted.
func (g *SandboxGateway) Calls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls
}
