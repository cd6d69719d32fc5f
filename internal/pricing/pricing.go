// Package pricing computes line and order totals. All functions are pure.
package pricing

import (
	"github.com/shopspring/decimal"

	"storefront/internal/domain"
)

var hundred = decimal.NewFromInt(100)

// UnitPrice is the discount price when one is set and non-zero, otherwise the list price.
func UnitPrice(item domain.Item) decimal.Decimal {
	if item.HasDiscount() {
		return *item.DiscountPrice
	}
	return item.Price
}

// LineTotal is quantity times the effective unit price.
func LineTotal(line domain.OrderItem) decimal.Decimal {
	return UnitPrice(line.Item).Mul(decimal.NewFromInt(int64(line.Quantity)))
}

// AmountSaved is the undiscounted line total minus LineTotal. ok is false when
// the item has no discount price.
func AmountSaved(line domain.OrderItem) (saved decimal.Decimal, ok bool) {
	if !line.Item.HasDiscount() {
		return decimal.Zero, false
	}
	full := line.Item.Price.Mul(decimal.NewFromInt(int64(line.Quantity)))
	return full.Sub(LineTotal(line)), true
}

// Subtotal sums LineTotal over every line.
func Subtotal(order domain.Order) decimal.Decimal {
	total := decimal.Zero
	for _, line := range order.Lines {
		total = total.Add(LineTotal(line))
	}
	return total
}

// OrderTotal is Subtotal minus the coupon amount. It is not floored at zero.
func OrderTotal(order domain.Order) decimal.Decimal {
	total := Subtotal(order)
	if order.Coupon != nil {
		total = total.Sub(order.Coupon.Amount)
	}
	return total
}

// ToMinorUnits converts a major-unit amount to an integer count of minor
// units, rounding half away from zero.
func ToMinorUnits(amount decimal.Decimal) int64 {
	return amount.Mul(hundred).Round(0).IntPart()
}

// Summary is the priced view of an order.
type Summary struct {
	Subtotal decimal.Decimal `json:"subtotal"`
	Discount decimal.Decimal `json:"discount"`
	Saved    decimal.Decimal `json:"saved"`
	Total    decimal.Decimal `json:"total"`
}

func Summarize(order domain.Order) Summary {
	s := Summary{
		Subtotal: Subtotal(order),
		Discount: decimal.Zero,
		Saved:    decimal.Zero,
	}
	for _, line := range order.Lines {
		if saved, ok := AmountSaved(line); ok {
			s.Saved = s.Saved.Add(saved)
		}
	}
	if order.Coupon != nil {
		s.Discount = order.Coupon.Amount
	}
	s.Total = s.Subtotal.Sub(s.Discount)
	return s
}
