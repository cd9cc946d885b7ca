package orders

import (
	"github.com/veloxrx/veloxrx-backend/pkg/db/models"
	"github.com/veloxrx/veloxrx-backend/pkg/enums"
)

// transitions is the authoritative lifecycle table. A status absent from the
// map, or mapped to nil, accepts no further transitions.
var transitions = map[enums.OrderStatus][]enums.OrderStatus{
	enums.OrderStatusPending: {
		enums.OrderStatusPaymentPending,
		enums.OrderStatusCancelled,
	},
	enums.OrderStatusPaymentPending: {
		enums.OrderStatusConfirmed,
		enums.OrderStatusPaymentFailed,
		enums.OrderStatusCancelled,
	},
	enums.OrderStatusPaymentFailed: {
		enums.OrderStatusPaymentPending,
		enums.OrderStatusCancelled,
	},
	enums.OrderStatusConfirmed: {
		enums.OrderStatusComplianceReview,
		enums.OrderStatusCancelled,
	},
	enums.OrderStatusComplianceReview: {
		enums.OrderStatusProcessing,
		enums.OrderStatusCancelled,
	},
	enums.OrderStatusProcessing: {
		enums.OrderStatusPreparing,
		enums.OrderStatusRefunded,
	},
	enums.OrderStatusPreparing: {
		enums.OrderStatusShipped,
	},
	enums.OrderStatusShipped: {
		enums.OrderStatusDelivered,
		enums.OrderStatusRefunded,
	},
	enums.OrderStatusDelivered: {
		enums.OrderStatusRefunded,
	},
}

// CanTransition reports whether the lifecycle table permits from -> to.
func CanTransition(from, to enums.OrderStatus) bool {
	for _, allowed := range transitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// IsCompleted reports whether the order is closed: delivered, cancelled, or
// refunded.
func IsCompleted(order models.Order) bool {
	return order.Status.IsTerminal()
}

// CanCancel reports whether the order may still be cancelled. Cancellation is
// only possible before fulfillment work starts.
func CanCancel(order models.Order) bool {
	switch order.Status {
	case enums.OrderStatusPending,
		enums.OrderStatusPaymentPending,
		enums.OrderStatusPaymentFailed,
		enums.OrderStatusConfirmed,
		enums.OrderStatusComplianceReview:
		return true
	default:
		return false
	}
}

// CanRefund reports whether a refund is possible: the payment must have
// settled and the order must be past confirmation.
func CanRefund(order models.Order) bool {
	if !order.Payment.Succeeded() {
		return false
	}
	switch order.Status {
	case enums.OrderStatusProcessing, enums.OrderStatusShipped, enums.OrderStatusDelivered:
		return true
	default:
		return false
	}
}

// RequiresReview reports whether a human needs to look at the order before it
// can progress.
func RequiresReview(order models.Order) bool {
	if order.Status == enums.OrderStatusComplianceReview {
		return true
	}
	return order.Prescription.Required && !order.Prescription.Provided
}

// holdsReservations reports whether stock reserved at creation is still held
// at the given status. Reservations convert to decrements when the order
// ships.
func holdsReservations(status enums.OrderStatus) bool {
	switch status {
	case enums.OrderStatusPending,
		enums.OrderStatusPaymentPending,
		enums.OrderStatusPaymentFailed,
		enums.OrderStatusConfirmed,
		enums.OrderStatusComplianceReview,
		enums.OrderStatusProcessing,
		enums.OrderStatusPreparing:
		return true
	default:
		return false
	}
}
