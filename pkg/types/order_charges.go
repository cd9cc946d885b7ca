package types

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/veloxrx/veloxrx-backend/pkg/enums"
)

// Discount applies once against the order subtotal, either as a fixed amount
// or a percentage.
type Discount struct {
	Code        string             `json:"code,omitempty"`
	Description string             `json:"description,omitempty"`
	Type        enums.DiscountType `json:"type"`
	Amount      decimal.Decimal    `json:"amount"`
}

// Tax is the order-level tax line supplied by the caller.
type Tax struct {
	Rate          decimal.Decimal `json:"rate"`
	Amount        decimal.Decimal `json:"amount"`
	TaxableAmount decimal.Decimal `json:"taxable_amount"`
}

// ShippingDetail captures the shipping line and carrier progress for an order.
type ShippingDetail struct {
	Method            enums.ShippingMethod `json:"method"`
	Cost              decimal.Decimal      `json:"cost"`
	EstimatedDays     int                  `json:"estimated_days,omitempty"`
	Carrier           string               `json:"carrier,omitempty"`
	Service           string               `json:"service,omitempty"`
	TrackingNumber    string               `json:"tracking_number,omitempty"`
	TrackingURL       string               `json:"tracking_url,omitempty"`
	ShippedAt         *time.Time           `json:"shipped_at,omitempty"`
	DeliveredAt       *time.Time           `json:"delivered_at,omitempty"`
	RequiresSignature bool                 `json:"requires_signature"`
	ColdChain         bool                 `json:"cold_chain"`
}

// Concentration is the dosage strength snapshot carried on variants and
// order items.
type Concentration struct {
	Value decimal.Decimal `json:"value"`
	Unit  string          `json:"unit"`
}
