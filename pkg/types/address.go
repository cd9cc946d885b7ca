package types

import (
	"fmt"
	"strings"
)

// Address is an order-owned shipping or billing address. It is stored as a
// jsonb document on the order row and has no lifecycle of its own.
type Address struct {
	FirstName    string  `json:"first_name" validate:"required"`
	LastName     string  `json:"last_name" validate:"required"`
	Company      *string `json:"company,omitempty"`
	Street1      string  `json:"street1" validate:"required"`
	Street2      *string `json:"street2,omitempty"`
	City         string  `json:"city" validate:"required"`
	State        string  `json:"state" validate:"required,len=2"`
	ZipCode      string  `json:"zip_code" validate:"required"`
	Country      string  `json:"country"`
	Phone        *string `json:"phone,omitempty"`
	Instructions *string `json:"instructions,omitempty"`
}

// Normalize uppercases the state code and defaults the country to US.
func (a *Address) Normalize() {
	a.State = strings.ToUpper(strings.TrimSpace(a.State))
	if strings.TrimSpace(a.Country) == "" {
		a.Country = "US"
	}
}

// Validate checks the fields required for shipment routing.
func (a Address) Validate() error {
	if strings.TrimSpace(a.Street1) == "" {
		return fmt.Errorf("address: missing street1")
	}
	if strings.TrimSpace(a.City) == "" {
		return fmt.Errorf("address: missing city")
	}
	if len(strings.TrimSpace(a.State)) != 2 {
		return fmt.Errorf("address: state must be a 2-letter code")
	}
	if strings.TrimSpace(a.ZipCode) == "" {
		return fmt.Errorf("address: missing zip_code")
	}
	return nil
}
