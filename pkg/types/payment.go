package types

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/veloxrx/veloxrx-backend/pkg/enums"
)

// PaymentSummary is the order-owned snapshot of what the external payment
// processor reported. The core never talks to the gateway itself.
type PaymentSummary struct {
	Method        enums.PaymentMethod `json:"method"`
	Amount        decimal.Decimal     `json:"amount"`
	Currency      string              `json:"currency"`
	Status        enums.PaymentStatus `json:"status"`
	TransactionID string              `json:"transaction_id,omitempty"`
	PaidAt        *time.Time          `json:"paid_at,omitempty"`
	FailureReason *string             `json:"failure_reason,omitempty"`
}

// Succeeded reports whether the payment settled.
func (p PaymentSummary) Succeeded() bool {
	return p.Status == enums.PaymentStatusSucceeded
}

// PaymentResult is the collaborator-supplied confirmation payload consumed by
// the order engine to advance payment_pending.
type PaymentResult struct {
	Amount        decimal.Decimal     `json:"amount"`
	Currency      string              `json:"currency"`
	Status        enums.PaymentStatus `json:"status"`
	TransactionID string              `json:"transaction_id"`
	FailureReason *string             `json:"failure_reason,omitempty"`
}
