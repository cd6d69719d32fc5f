package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Badge colour shown next to an item.
const (
	LabelPrimary   = "P"
	LabelSecondary = "S"
	LabelDanger    = "D"
)

// Badge text shown next to an item.
const (
	LabelNameNew      = "N"
	LabelNameSale     = "S"
	LabelNameDiscount = "D"
	LabelNameOffer    = "O"
)

type Item struct {
	ID              string           `json:"id"`
	Title           string           `json:"title"`
	Slug            string           `json:"slug"`
	Price           decimal.Decimal  `json:"price"`
	DiscountPrice   *decimal.Decimal `json:"discountPrice,omitempty"`
	Label           string           `json:"label,omitempty"`
	LabelName       string           `json:"labelName,omitempty"`
	Description     string           `json:"description"`
	ListOnFrontpage bool             `json:"listOnFrontpage"`
	Categories      []Category       `json:"categories,omitempty"`
	CreatedAt       time.Time        `json:"createdAt"`
}

// HasDiscount reports whether a non-zero discount price is set.
func (i Item) HasDiscount() bool {
	return i.DiscountPrice != nil && !i.DiscountPrice.IsZero()
}
