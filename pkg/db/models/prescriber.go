package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/veloxrx/veloxrx-backend/pkg/enums"
	"github.com/veloxrx/veloxrx-backend/pkg/types"
)

// Prescriber holds the credential subset of a prescriber account that the
// verification registry manages.
type Prescriber struct {
	ID          uuid.UUID                `gorm:"column:id;type:uuid;primaryKey"`
	Email       string                   `gorm:"column:email;not null;uniqueIndex"`
	FirstName   string                   `gorm:"column:first_name;not null"`
	LastName    string                   `gorm:"column:last_name;not null"`
	NPINumber   string                   `gorm:"column:npi_number;not null;uniqueIndex"`
	DEANumber   string                   `gorm:"column:dea_number;not null"`
	Status      enums.VerificationStatus `gorm:"column:status;type:text;not null;default:'unverified';index"`
	Documents   []types.DocumentRef      `gorm:"column:documents;type:jsonb;serializer:json"`
	Notes       *string                  `gorm:"column:notes"`
	ReviewedBy  *uuid.UUID               `gorm:"column:reviewed_by;type:uuid"`
	SubmittedAt *time.Time               `gorm:"column:submitted_at"`
	ReviewedAt  *time.Time               `gorm:"column:reviewed_at"`
	Licenses    []PrescriberLicense      `gorm:"foreignKey:PrescriberID;constraint:OnDelete:CASCADE"`
	CreatedAt   time.Time                `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time                `gorm:"column:updated_at;autoUpdateTime"`
}

// BeforeCreate assigns the id client-side so inserts work on every driver.
func (p *Prescriber) BeforeCreate(*gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}

// PrescriberLicense is a state medical license on file for a prescriber.
// An expired license is treated as not currently valid regardless of status.
type PrescriberLicense struct {
	ID           uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	PrescriberID uuid.UUID `gorm:"column:prescriber_id;type:uuid;not null;index"`
	Number       string    `gorm:"column:number;not null"`
	State        string    `gorm:"column:state;not null"`
	ExpiryDate   time.Time `gorm:"column:expiry_date;not null"`
	CreatedAt    time.Time `gorm:"column:created_at;autoCreateTime"`
}

func (l *PrescriberLicense) BeforeCreate(*gorm.DB) error {
	if l.ID == uuid.Nil {
		l.ID = uuid.New()
	}
	return nil
}

// Expired reports whether the license has lapsed as of now.
func (l PrescriberLicense) Expired(now time.Time) bool {
	return !l.ExpiryDate.After(now)
}
