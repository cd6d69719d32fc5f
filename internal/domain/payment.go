package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Payment records one successful gateway charge. Rows are never updated.
type Payment struct {
	ID        string          `json:"id"`
	ChargeID  string          `json:"chargeId"`
	UserID    string          `json:"-"`
	Amount    decimal.Decimal `json:"amount"`
	Currency  string          `json:"currency"`
	CreatedAt time.Time       `json:"timestamp"`
}

type DiscountCode struct {
	ID          string          `json:"id"`
	PromoCode   string          `json:"promoCode"`
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description,omitempty"`
}

type Refund struct {
	ID        string    `json:"id"`
	OrderPK   string    `json:"-"`
	OrderID   string    `json:"orderId"`
	Reason    string    `json:"reason"`
	Email     string    `json:"email"`
	Accepted  bool      `json:"refundAccepted"`
	CreatedAt time.Time `json:"createdAt"`
}
