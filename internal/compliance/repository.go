package compliance

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/veloxrx/veloxrx-backend/pkg/db/models"
	"github.com/veloxrx/veloxrx-backend/pkg/enums"
	"github.com/veloxrx/veloxrx-backend/pkg/types"
)

// Repository persists compliance outcomes onto order rows.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindOrder(ctx context.Context, id uuid.UUID) (*models.Order, error)
	SaveComplianceRecord(ctx context.Context, orderID uuid.UUID, record types.ComplianceRecord, status *enums.OrderStatus) error
	AppendTimeline(ctx context.Context, entry *models.OrderTimelineEntry) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a compliance repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) FindOrder(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).
		Preload("Items").
		Where("id = ?", id).
		First(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repository) SaveComplianceRecord(ctx context.Context, orderID uuid.UUID, record types.ComplianceRecord, status *enums.OrderStatus) error {
	// the compliance column rides gorm's json serializer; map updates skip
	// it, so the record is marshalled by hand
	raw, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("encoding compliance record: %w", err)
	}
	updates := map[string]any{"compliance": string(raw)}
	if status != nil {
		updates["status"] = *status
	}
	res := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ?", orderID).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *repository) AppendTimeline(ctx context.Context, entry *models.OrderTimelineEntry) error {
	return r.db.WithContext(ctx).Create(entry).Error
}
