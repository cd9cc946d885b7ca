package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/veloxrx/veloxrx-backend/pkg/enums"
	"github.com/veloxrx/veloxrx-backend/pkg/types"
)

// Order is the aggregate root for a checkout. It exclusively owns its items
// and timeline; customer, products, and reviewers are id-based references.
// Once a terminal status is reached the row is never mutated again.
type Order struct {
	ID             uuid.UUID                  `gorm:"column:id;type:uuid;primaryKey"`
	OrderNumber    string                     `gorm:"column:order_number;not null;uniqueIndex"`
	CustomerID     uuid.UUID                  `gorm:"column:customer_id;type:uuid;not null;index"`
	Status         enums.OrderStatus          `gorm:"column:status;type:text;not null;default:'pending';index"`
	Currency       string                     `gorm:"column:currency;not null;default:'USD'"`
	Subtotal       decimal.Decimal            `gorm:"column:subtotal;type:numeric(12,2);not null"`
	Discount       types.Discount             `gorm:"column:discount;type:jsonb;serializer:json"`
	Tax            types.Tax                  `gorm:"column:tax;type:jsonb;serializer:json"`
	Shipping       types.ShippingDetail       `gorm:"column:shipping;type:jsonb;serializer:json"`
	Total          decimal.Decimal            `gorm:"column:total;type:numeric(12,2);not null"`
	ShippingAddr   types.Address              `gorm:"column:shipping_address;type:jsonb;serializer:json"`
	BillingAddr    *types.Address             `gorm:"column:billing_address;type:jsonb;serializer:json"`
	Payment        types.PaymentSummary       `gorm:"column:payment;type:jsonb;serializer:json"`
	Compliance     types.ComplianceRecord     `gorm:"column:compliance;type:jsonb;serializer:json"`
	Prescription   types.PrescriptionEvidence `gorm:"column:prescription;type:jsonb;serializer:json"`
	Source         enums.OrderSource          `gorm:"column:source;type:text;not null;default:'web'"`
	RushOrder      bool                       `gorm:"column:rush_order;not null;default:false"`
	CustomerNotes  *string                    `gorm:"column:customer_notes"`
	InternalNotes  *string                    `gorm:"column:internal_notes"`
	CancelReason   *string                    `gorm:"column:cancel_reason"`
	IdempotencyKey *string                    `gorm:"column:idempotency_key"`
	Items          []OrderItem                `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	Timeline       []OrderTimelineEntry       `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	CompletedAt    *time.Time                 `gorm:"column:completed_at"`
	CancelledAt    *time.Time                 `gorm:"column:cancelled_at"`
	CreatedAt      time.Time                  `gorm:"column:created_at;autoCreateTime;index"`
	UpdatedAt      time.Time                  `gorm:"column:updated_at;autoUpdateTime"`
}

// BeforeCreate assigns the id client-side so inserts work on every driver.
func (o *Order) BeforeCreate(*gorm.DB) error {
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	return nil
}

// ItemCount sums all ordered units.
func (o Order) ItemCount() int {
	count := 0
	for _, item := range o.Items {
		count += item.Quantity
	}
	return count
}
