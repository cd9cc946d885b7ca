package orders

import (
	"github.com/shopspring/decimal"

	"github.com/veloxrx/veloxrx-backend/pkg/db/models"
	"github.com/veloxrx/veloxrx-backend/pkg/enums"
	"github.com/veloxrx/veloxrx-backend/pkg/types"
)

var oneHundred = decimal.NewFromInt(100)

// Totals is the breakdown produced by CalculateTotals.
type Totals struct {
	Subtotal       decimal.Decimal
	DiscountAmount decimal.Decimal
	Total          decimal.Decimal
}

// CalculateTotals computes subtotal - discount + tax + shipping, in that
// order. Intermediate values keep full precision; only the final total is
// rounded to cents.
func CalculateTotals(items []models.OrderItem, discount *types.Discount, tax types.Tax, shipping types.ShippingDetail) Totals {
	subtotal := decimal.Zero
	for _, item := range items {
		subtotal = subtotal.Add(item.LineTotal)
	}

	discountAmount := decimal.Zero
	if discount != nil {
		switch discount.Type {
		case enums.DiscountTypeFixed:
			discountAmount = discount.Amount
		case enums.DiscountTypePercentage:
			discountAmount = subtotal.Mul(discount.Amount).Div(oneHundred)
		}
		if discountAmount.GreaterThan(subtotal) {
			discountAmount = subtotal
		}
		if discountAmount.IsNegative() {
			discountAmount = decimal.Zero
		}
	}

	total := subtotal.Sub(discountAmount).Add(tax.Amount).Add(shipping.Cost)
	if total.IsNegative() {
		total = decimal.Zero
	}

	return Totals{
		Subtotal:       subtotal,
		DiscountAmount: discountAmount,
		Total:          total.Round(2),
	}
}
