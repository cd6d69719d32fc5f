package httpserver

import (
	"github.com/shopspring/decimal"

	"storefront/internal/domain"
	"storefront/internal/pricing"
)

type lineResponse struct {
	domain.OrderItem
	LineTotal   decimal.Decimal  `json:"lineTotal"`
	AmountSaved *decimal.Decimal `json:"amountSaved,omitempty"`
}

type orderResponse struct {
	domain.Order
	Lines   []lineResponse    `json:"items"`
	Flags   domain.StageFlags `json:"flags"`
	Pricing pricing.Summary   `json:"pricing"`
}

func toOrderResponse(o domain.Order) orderResponse {
	lines := make([]lineResponse, 0, len(o.Lines))
	for _, l := range o.Lines {
		lr := lineResponse{OrderItem: l, LineTotal: pricing.LineTotal(l)}
		if saved, ok := pricing.AmountSaved(l); ok {
			lr.AmountSaved = &saved
		}
		lines = append(lines, lr)
	}
	return orderResponse{
		Order:   o,
		Lines:   lines,
		Flags:   o.Flags(),
		Pricing: pricing.Summarize(o),
	}
}

func toOrderResponses(orders []domain.Order) []orderResponse {
	out := make([]orderResponse, 0, len(orders))
	for _, o := range orders {
		out = append(out, toOrderResponse(o))
	}
	return out
}

func nonNilItems(items []domain.Item) []domain.Item {
	if items == nil {
		return []domain.Item{}
	}
	return items
}
