package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/veloxrx/veloxrx-backend/pkg/types"
)

// ProductVariant carries per-SKU pricing and stock bookkeeping.
// Invariant: 0 <= reserved <= stock; available stock is stock - reserved.
type ProductVariant struct {
	ID                uuid.UUID           `gorm:"column:id;type:uuid;primaryKey"`
	ProductID         uuid.UUID           `gorm:"column:product_id;type:uuid;not null;index"`
	SKU               string              `gorm:"column:sku;not null;uniqueIndex"`
	Name              string              `gorm:"column:name;not null"`
	Concentration     types.Concentration `gorm:"column:concentration;type:jsonb;serializer:json"`
	BasePrice         decimal.Decimal     `gorm:"column:base_price;type:numeric(12,2);not null"`
	Stock             int                 `gorm:"column:stock;not null;default:0"`
	Reserved          int                 `gorm:"column:reserved;not null;default:0"`
	LowStockThreshold int                 `gorm:"column:low_stock_threshold;not null;default:10"`
	MaxOrderQuantity  int                 `gorm:"column:max_order_quantity;not null;default:100"`
	IsActive          bool                `gorm:"column:is_active;not null"`
	PriceTiers        []PriceTier         `gorm:"foreignKey:VariantID;constraint:OnDelete:CASCADE"`
	CreatedAt         time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}

// BeforeCreate assigns the id client-side so inserts work on every driver.
func (v *ProductVariant) BeforeCreate(*gorm.DB) error {
	if v.ID == uuid.Nil {
		v.ID = uuid.New()
	}
	return nil
}

// Available returns the unreserved stock count.
func (v ProductVariant) Available() int {
	return v.Stock - v.Reserved
}

// PriceTier overrides the base price once the ordered quantity reaches
// MinQuantity.
type PriceTier struct {
	ID          uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	VariantID   uuid.UUID       `gorm:"column:variant_id;type:uuid;not null;index"`
	MinQuantity int             `gorm:"column:min_quantity;not null"`
	Price       decimal.Decimal `gorm:"column:price;type:numeric(12,2);not null"`
	CreatedAt   time.Time       `gorm:"column:created_at;autoCreateTime"`
}

func (t *PriceTier) BeforeCreate(*gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	return nil
}
