package orders

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/veloxrx/veloxrx-backend/pkg/db/models"
	"github.com/veloxrx/veloxrx-backend/pkg/enums"
	"github.com/veloxrx/veloxrx-backend/pkg/types"
)

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from    enums.OrderStatus
		to      enums.OrderStatus
		allowed bool
	}{
		{enums.OrderStatusPending, enums.OrderStatusPaymentPending, true},
		{enums.OrderStatusPending, enums.OrderStatusCancelled, true},
		{enums.OrderStatusPending, enums.OrderStatusShipped, false},
		{enums.OrderStatusPaymentPending, enums.OrderStatusConfirmed, true},
		{enums.OrderStatusPaymentPending, enums.OrderStatusPaymentFailed, true},
		{enums.OrderStatusPaymentFailed, enums.OrderStatusPaymentPending, true},
		{enums.OrderStatusPaymentFailed, enums.OrderStatusConfirmed, false},
		{enums.OrderStatusConfirmed, enums.OrderStatusComplianceReview, true},
		{enums.OrderStatusComplianceReview, enums.OrderStatusProcessing, true},
		{enums.OrderStatusComplianceReview, enums.OrderStatusCancelled, true},
		{enums.OrderStatusProcessing, enums.OrderStatusPreparing, true},
		{enums.OrderStatusProcessing, enums.OrderStatusRefunded, true},
		{enums.OrderStatusPreparing, enums.OrderStatusShipped, true},
		{enums.OrderStatusPreparing, enums.OrderStatusCancelled, false},
		{enums.OrderStatusShipped, enums.OrderStatusDelivered, true},
		{enums.OrderStatusShipped, enums.OrderStatusRefunded, true},
		{enums.OrderStatusDelivered, enums.OrderStatusRefunded, true},
		{enums.OrderStatusDelivered, enums.OrderStatusShipped, false},
		{enums.OrderStatusCancelled, enums.OrderStatusPending, false},
		{enums.OrderStatusRefunded, enums.OrderStatusProcessing, false},
	}

	for _, tc := range tests {
		assert.Equalf(t, tc.allowed, CanTransition(tc.from, tc.to),
			"%s -> %s", tc.from, tc.to)
	}
}

func TestPredicates(t *testing.T) {
	paid := types.PaymentSummary{Status: enums.PaymentStatusSucceeded}

	t.Run("completed covers every closed status", func(t *testing.T) {
		assert.True(t, IsCompleted(models.Order{Status: enums.OrderStatusDelivered}))
		assert.True(t, IsCompleted(models.Order{Status: enums.OrderStatusCancelled}))
		assert.True(t, IsCompleted(models.Order{Status: enums.OrderStatusRefunded}))
		assert.False(t, IsCompleted(models.Order{Status: enums.OrderStatusShipped}))
	})

	t.Run("cancel window closes at processing", func(t *testing.T) {
		assert.True(t, CanCancel(models.Order{Status: enums.OrderStatusPending}))
		assert.True(t, CanCancel(models.Order{Status: enums.OrderStatusComplianceReview}))
		assert.False(t, CanCancel(models.Order{Status: enums.OrderStatusProcessing}))
		assert.False(t, CanCancel(models.Order{Status: enums.OrderStatusCancelled}))
	})

	t.Run("refund needs a settled payment", func(t *testing.T) {
		assert.True(t, CanRefund(models.Order{Status: enums.OrderStatusShipped, Payment: paid}))
		assert.False(t, CanRefund(models.Order{Status: enums.OrderStatusShipped}))
		assert.False(t, CanRefund(models.Order{Status: enums.OrderStatusConfirmed, Payment: paid}))
	})

	t.Run("review required while gated or missing prescription", func(t *testing.T) {
		assert.True(t, RequiresReview(models.Order{Status: enums.OrderStatusComplianceReview}))
		assert.True(t, RequiresReview(models.Order{
			Status:       enums.OrderStatusConfirmed,
			Prescription: types.PrescriptionEvidence{Required: true},
		}))
		assert.False(t, RequiresReview(models.Order{
			Status:       enums.OrderStatusConfirmed,
			Prescription: types.PrescriptionEvidence{Required: true, Provided: true},
		}))
	})
}

func TestFormatOrderNumber(t *testing.T) {
	day := time.Date(2026, 6, 14, 23, 59, 0, 0, time.UTC)

	assert.Equal(t, "VRX2606140042", FormatOrderNumber("VRX", day, 42))
	assert.Equal(t, "VRX2606141205", FormatOrderNumber("VRX", day, 1205))

	// date component is UTC regardless of the wall clock zone
	local := time.Date(2026, 6, 15, 1, 30, 0, 0, time.FixedZone("CEST", 2*3600))
	assert.Equal(t, "VRX2606140007", FormatOrderNumber("VRX", local, 7))
}
