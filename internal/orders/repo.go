package orders

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/veloxrx/veloxrx-backend/pkg/db/models"
	"github.com/veloxrx/veloxrx-backend/pkg/pagination"
)

// Repository persists orders, their items and timeline, and the daily
// order-number sequence.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, order *models.Order) (*models.Order, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
	FindByNumber(ctx context.Context, number string) (*models.Order, error)
	FindByIdempotencyKey(ctx context.Context, key string) (*models.Order, error)
	ListByCustomer(ctx context.Context, customerID uuid.UUID, page pagination.Params) ([]models.Order, string, error)
	UpdateFields(ctx context.Context, id uuid.UUID, fields map[string]any) error
	AppendTimeline(ctx context.Context, entry *models.OrderTimelineEntry) error
	NextSequence(ctx context.Context, seqDate string) (int, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds an orders repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, order *models.Order) (*models.Order, error) {
	if err := r.db.WithContext(ctx).Create(order).Error; err != nil {
		return nil, err
	}
	return order, nil
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).
		Preload("Items").
		Preload("Timeline", func(db *gorm.DB) *gorm.DB {
			return db.Order("created_at ASC")
		}).
		Where("id = ?", id).
		First(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repository) FindByNumber(ctx context.Context, number string) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).
		Preload("Items").
		Preload("Timeline", func(db *gorm.DB) *gorm.DB {
			return db.Order("created_at ASC")
		}).
		Where("order_number = ?", number).
		First(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repository) FindByIdempotencyKey(ctx context.Context, key string) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).
		Preload("Items").
		Where("idempotency_key = ?", key).
		First(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repository) ListByCustomer(ctx context.Context, customerID uuid.UUID, page pagination.Params) ([]models.Order, string, error) {
	cursor, err := pagination.ParseCursor(page.Cursor)
	if err != nil {
		return nil, "", err
	}

	limit := pagination.LimitWithBuffer(page.Limit)
	query := r.db.WithContext(ctx).
		Preload("Items").
		Where("customer_id = ?", customerID).
		Order("created_at DESC, id DESC").
		Limit(limit)
	if cursor != nil {
		query = query.Where(
			"created_at < ? OR (created_at = ? AND id < ?)",
			cursor.CreatedAt, cursor.CreatedAt, cursor.ID,
		)
	}

	var orders []models.Order
	if err := query.Find(&orders).Error; err != nil {
		return nil, "", err
	}

	next := ""
	if len(orders) == limit {
		orders = orders[:limit-1]
		last := orders[len(orders)-1]
		next = pagination.EncodeCursor(pagination.Cursor{CreatedAt: last.CreatedAt, ID: last.ID})
	}
	return orders, next, nil
}

// jsonColumns are the order columns backed by gorm's json serializer. Map
// updates bypass the serializer, so values bound for these columns must be
// marshalled before they reach the driver.
var jsonColumns = map[string]struct{}{
	"discount":         {},
	"tax":              {},
	"shipping":         {},
	"shipping_address": {},
	"billing_address":  {},
	"payment":          {},
	"compliance":       {},
	"prescription":     {},
}

func encodeJSONColumns(fields map[string]any) (map[string]any, error) {
	encoded := make(map[string]any, len(fields))
	for column, value := range fields {
		if _, ok := jsonColumns[column]; ok {
			raw, err := json.Marshal(value)
			if err != nil {
				return nil, fmt.Errorf("encoding %s column: %w", column, err)
			}
			value = string(raw)
		}
		encoded[column] = value
	}
	return encoded, nil
}

func (r *repository) UpdateFields(ctx context.Context, id uuid.UUID, fields map[string]any) error {
	encoded, err := encodeJSONColumns(fields)
	if err != nil {
		return err
	}
	res := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ?", id).
		Updates(encoded)
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

// NextSequence atomically increments and returns the per-day counter. The
// upsert form runs on both Postgres and SQLite.
func (r *repository) NextSequence(ctx context.Context, seqDate string) (int, error) {
	var value int
	err := r.db.WithContext(ctx).Raw(`
		INSERT INTO order_sequences (seq_date, last_value, updated_at)
		VALUES (?, 1, CURRENT_TIMESTAMP)
		ON CONFLICT (seq_date) DO UPDATE
		SET last_value = order_sequences.last_value + 1,
			updated_at = CURRENT_TIMESTAMP
		RETURNING last_value
	`, seqDate).Scan(&value).Error
	if err != nil {
		return 0, err
	}
	return value, nil
}
