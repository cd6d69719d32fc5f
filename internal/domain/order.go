package domain

import (
	"crypto/rand"
	"io"
	"time"
)

// Order is a cart while Ordered is false and a placed order afterwards.
type Order struct {
	ID               string        `json:"id"`
	UserID           string        `json:"userId"`
	OrderID          string        `json:"orderId,omitempty"`
	Ordered          bool          `json:"ordered"`
	StartDate        time.Time     `json:"startDate"`
	OrderedDate      time.Time     `json:"orderedDate"`
	BillingAddressID *string       `json:"billingAddressId,omitempty"`
	BillingAddress   *Address      `json:"billingAddress,omitempty"`
	Payment          *Payment      `json:"payment,omitempty"`
	Coupon           *DiscountCode `json:"coupon,omitempty"`
	Stage            Stage         `json:"stage"`
	RefundStatus     RefundStatus  `json:"refundStatus"`
	Lines            []OrderItem   `json:"items"`
	UpdatedAt        time.Time     `json:"updatedAt"`
}

// Flags returns the boolean stage view of the order.
func (o Order) Flags() StageFlags {
	return FlagsFor(o.Stage, o.RefundStatus)
}

// Line returns the line for itemID, if any.
func (o Order) Line(itemID string) (OrderItem, bool) {
	for _, l := range o.Lines {
		if l.Item.ID == itemID {
			return l, true
		}
	}
	return OrderItem{}, false
}

type OrderItem struct {
	ID        string    `json:"id"`
	OrderID   string    `json:"-"`
	UserID    string    `json:"-"`
	Item      Item      `json:"item"`
	Quantity  int       `json:"quantity"`
	Ordered   bool      `json:"ordered"`
	CreatedAt time.Time `json:"createdAt"`
}

const (
	orderIDLength   = 20
	orderIDAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789"
)

// orderIDByteLimit is the largest multiple of the alphabet size that fits in
// a byte. Bytes at or above it are discarded so every character is equally likely.
const orderIDByteLimit = 256 - 256%len(orderIDAlphabet)

// NewOrderID returns a random 20-character lowercase alphanumeric identifier.
func NewOrderID() (string, error) {
	return newOrderID(rand.Reader)
}

func newOrderID(src io.Reader) (string, error) {
	out := make([]byte, 0, orderIDLength)
	buf := make([]byte, orderIDLength)
	for len(out) < orderIDLength {
		if _, err := io.ReadFull(src, buf); err != nil {
			return "", err
		}
		for _, c := range buf {
			if int(c) >= orderIDByteLimit {
				continue
			}
			out = append(out, orderIDAlphabet[int(c)%len(orderIDAlphabet)])
			if len(out) == orderIDLength {
				break
			}
		}
	}
	return string(out), nil
}
