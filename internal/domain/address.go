package domain

import "time"

const (
	AddressHome   = "Home"
	AddressOffice = "Office"
	AddressOther  = "Other"
)

// Address is a billing address owned by a user.
type Address struct {
	ID               string    `json:"id"`
	UserID           string    `json:"-"`
	AddressType      string    `json:"addressType,omitempty"`
	StreetAddress    string    `json:"streetAddress"`
	ApartmentAddress string    `json:"apartmentAddress,omitempty"`
	Country          string    `json:"country"`
	Zipcode          string    `json:"zipcode"`
	Default          bool      `json:"default"`
	CreatedAt        time.Time `json:"createdAt"`
}
