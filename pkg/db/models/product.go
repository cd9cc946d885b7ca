package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/veloxrx/veloxrx-backend/pkg/enums"
)

// StateRestriction marks a jurisdiction where a product may not ship.
type StateRestriction struct {
	State       string `json:"state"`
	Restriction string `json:"restriction"`
	Notes       string `json:"notes,omitempty"`
}

// Product is a catalog product. Compliance attributes live here because the
// gate evaluates them per product, not per variant.
type Product struct {
	ID                   uuid.UUID                 `gorm:"column:id;type:uuid;primaryKey"`
	Name                 string                    `gorm:"column:name;not null"`
	Slug                 string                    `gorm:"column:slug;not null;uniqueIndex"`
	Category             enums.ProductCategory     `gorm:"column:category;type:text;not null"`
	Brand                *string                   `gorm:"column:brand"`
	PrescriptionRequired bool                      `gorm:"column:prescription_required;not null"`
	Controlled           bool                      `gorm:"column:controlled;not null;default:false"`
	ControlledSchedule   *enums.ControlledSchedule `gorm:"column:controlled_schedule;type:text"`
	StateRestrictions    []StateRestriction        `gorm:"column:state_restrictions;type:jsonb;serializer:json"`
	IsActive             bool                      `gorm:"column:is_active;not null"`
	IsDeleted            bool                      `gorm:"column:is_deleted;not null;default:false"`
	Variants             []ProductVariant          `gorm:"foreignKey:ProductID;constraint:OnDelete:CASCADE"`
	CreatedAt            time.Time                 `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt            time.Time                 `gorm:"column:updated_at;autoUpdateTime"`
}

// BeforeCreate assigns the id client-side so inserts work on every driver.
func (p *Product) BeforeCreate(*gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}

// RestrictedIn reports whether shipment to the given state is blocked.
func (p Product) RestrictedIn(state string) bool {
	for _, restriction := range p.StateRestrictions {
		if restriction.State == state {
			return true
		}
	}
	return false
}
