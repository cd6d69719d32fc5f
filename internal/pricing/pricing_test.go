package pricing

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"storefront/internal/domain"
)

func dec(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

func decPtr(v string) *decimal.Decimal {
	d := dec(v)
	return &d
}

func line(price string, discount *decimal.Decimal, qty int) domain.OrderItem {
	return domain.OrderItem{
		Item:     domain.Item{ID: price, Price: dec(price), DiscountPrice: discount},
		Quantity: qty,
	}
}

func TestLineTotal(t *testing.T) {
	assert.True(t, dec("20").Equal(LineTotal(line("10", nil, 2))))
	assert.True(t, dec("16").Equal(LineTotal(line("10", decPtr("8"), 2))))
	// zero discount price falls back to the list price
	assert.True(t, dec("20").Equal(LineTotal(line("10", decPtr("0"), 2))))
}

func TestAmountSaved(t *testing.T) {
	saved, ok := AmountSaved(line("10", decPtr("7.5"), 3))
	assert.True(t, ok)
	assert.True(t, dec("7.5").Equal(saved), "got %s", saved)

	_, ok = AmountSaved(line("10", nil, 3))
	assert.False(t, ok)
}

func TestOrderTotalWithCoupon(t *testing.T) {
	order := domain.Order{
		Lines:  []domain.OrderItem{line("10", nil, 2)},
		Coupon: &domain.DiscountCode{PromoCode: "FIVE", Amount: dec("5")},
	}
	assert.True(t, dec("15").Equal(OrderTotal(order)))
}

func TestOrderTotalDiscountAppliesPerLine(t *testing.T) {
	order := domain.Order{
		Lines: []domain.OrderItem{
			line("10", decPtr("6"), 1),
			line("4", nil, 2),
		},
	}
	assert.True(t, dec("14").Equal(OrderTotal(order)))
}

func TestOrderTotalNotFloored(t *testing.T) {
	order := domain.Order{
		Lines:  []domain.OrderItem{line("3", nil, 1)},
		Coupon: &domain.DiscountCode{Amount: dec("5")},
	}
	assert.True(t, dec("-2").Equal(OrderTotal(order)))
}

func TestToMinorUnits(t *testing.T) {
	assert.Equal(t, int64(1500), ToMinorUnits(dec("15")))
	assert.Equal(t, int64(1999), ToMinorUnits(dec("19.99")))
	assert.Equal(t, int64(1001), ToMinorUnits(dec("10.005")))
	assert.Equal(t, int64(1000), ToMinorUnits(dec("10.004")))
}

func TestSummarize(t *testing.T) {
	order := domain.Order{
		Lines: []domain.OrderItem{
			line("10", decPtr("8"), 2),
			line("5", nil, 1),
		},
		Coupon: &domain.DiscountCode{Amount: dec("1")},
	}
	s := Summarize(order)
	assert.True(t, dec("21").Equal(s.Subtotal))
	assert.True(t, dec("4").Equal(s.Saved))
	assert.True(t, dec("1").Equal(s.Discount))
	assert.True(t, dec("20").Equal(s.Total))
}
