package domain

import "time"

type Wishlist struct {
	ID             string           `json:"id"`
	UserID         string           `json:"-"`
	WishlistedDate time.Time        `json:"wishlistedDate"`
	Items          []WishlistedItem `json:"items"`
}

type WishlistedItem struct {
	ID        string    `json:"id"`
	Item      Item      `json:"item"`
	CreatedAt time.Time `json:"createdAt"`
}
