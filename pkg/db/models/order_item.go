package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/veloxrx/veloxrx-backend/pkg/types"
)

// OrderItem is an order-owned line. UnitPrice is snapshotted at creation;
// later catalog changes never alter it.
type OrderItem struct {
	ID            uuid.UUID           `gorm:"column:id;type:uuid;primaryKey"`
	OrderID       uuid.UUID           `gorm:"column:order_id;type:uuid;not null;index"`
	ProductID     uuid.UUID           `gorm:"column:product_id;type:uuid;not null"`
	VariantID     uuid.UUID           `gorm:"column:variant_id;type:uuid;not null"`
	SKU           string              `gorm:"column:sku;not null"`
	Name          string              `gorm:"column:name;not null"`
	Concentration types.Concentration `gorm:"column:concentration;type:jsonb;serializer:json"`
	Quantity      int                 `gorm:"column:quantity;not null"`
	UnitPrice     decimal.Decimal     `gorm:"column:unit_price;type:numeric(12,2);not null"`
	LineTotal     decimal.Decimal     `gorm:"column:line_total;type:numeric(12,2);not null"`
	CreatedAt     time.Time           `gorm:"column:created_at;autoCreateTime"`
}

func (i *OrderItem) BeforeCreate(*gorm.DB) error {
	if i.ID == uuid.Nil {
		i.ID = uuid.New()
	}
	return nil
}
