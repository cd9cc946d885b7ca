package verification

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/veloxrx/veloxrx-backend/pkg/db/models"
)

// Repository persists prescriber credentials and licenses.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, prescriber *models.Prescriber) (*models.Prescriber, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.Prescriber, error)
	FindByNPI(ctx context.Context, npi string) (*models.Prescriber, error)
	Update(ctx context.Context, prescriber *models.Prescriber) error
	UpdateFields(ctx context.Context, id uuid.UUID, fields map[string]any) error
	CreateLicense(ctx context.Context, license *models.PrescriberLicense) (*models.PrescriberLicense, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a verification repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, prescriber *models.Prescriber) (*models.Prescriber, error) {
	if err := r.db.WithContext(ctx).Create(prescriber).Error; err != nil {
		return nil, err
	}
	return prescriber, nil
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Prescriber, error) {
	var prescriber models.Prescriber
	err := r.db.WithContext(ctx).
		Preload("Licenses").
		Where("id = ?", id).
		First(&prescriber).Error
	if err != nil {
		return nil, err
	}
	return &prescriber, nil
}

func (r *repository) FindByNPI(ctx context.Context, npi string) (*models.Prescriber, error) {
	var prescriber models.Prescriber
	err := r.db.WithContext(ctx).
		Preload("Licenses").
		Where("npi_number = ?", npi).
		First(&prescriber).Error
	if err != nil {
		return nil, err
	}
	return &prescriber, nil
}

func (r *repository) Update(ctx context.Context, prescriber *models.Prescriber) error {
	return r.db.WithContext(ctx).Save(prescriber).Error
}

func (r *repository) UpdateFields(ctx context.Context, id uuid.UUID, fields map[string]any) error {
	res := r.db.WithContext(ctx).
		Model(&models.Prescriber{}).
		Where("id = ?", id).
		Updates(fields)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *repository) CreateLicense(ctx context.Context, license *models.PrescriberLicense) (*models.PrescriberLicense, error) {
	if err := r.db.WithContext(ctx).Create(license).Error; err != nil {
		return nil, err
	}
	return license, nil
}
