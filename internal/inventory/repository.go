package inventory

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/veloxrx/veloxrx-backend/pkg/db/models"
)

// Repository performs the conditional stock updates behind the ledger. Every
// mutation is a single guarded UPDATE so concurrent checkouts cannot oversell.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindVariantByID(ctx context.Context, id uuid.UUID) (*models.ProductVariant, error)
	ListLowStock(ctx context.Context) ([]models.ProductVariant, error)
	Reserve(ctx context.Context, variantID uuid.UUID, qty int) (int64, error)
	Release(ctx context.Context, variantID uuid.UUID, qty int) (int64, error)
	Commit(ctx context.Context, variantID uuid.UUID, qty int) (int64, error)
	Restock(ctx context.Context, variantID uuid.UUID, qty int) (int64, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds an inventory repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) FindVariantByID(ctx context.Context, id uuid.UUID) (*models.ProductVariant, error) {
	var variant models.ProductVariant
	err := r.db.WithContext(ctx).
		Preload("PriceTiers").
		Where("id = ?", id).
		First(&variant).Error
	if err != nil {
		return nil, err
	}
	return &variant, nil
}

func (r *repository) ListLowStock(ctx context.Context) ([]models.ProductVariant, error) {
	var variants []models.ProductVariant
	err := r.db.WithContext(ctx).
		Where("is_active = ? AND stock - reserved <= low_stock_threshold", true).
		Order("sku ASC").
		Find(&variants).Error
	if err != nil {
		return nil, err
	}
	return variants, nil
}

func (r *repository) Reserve(ctx context.Context, variantID uuid.UUID, qty int) (int64, error) {
	res := r.db.WithContext(ctx).Exec(`
		UPDATE product_variants
		SET reserved = reserved + ?,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND is_active = ? AND stock - reserved >= ?
	`, qty, variantID, true, qty)
	return res.RowsAffected, res.Error
}

func (r *repository) Release(ctx context.Context, variantID uuid.UUID, qty int) (int64, error) {
	res := r.db.WithContext(ctx).Exec(`
		UPDATE product_variants
		SET reserved = CASE WHEN reserved >= ? THEN reserved - ? ELSE 0 END,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`, qty, qty, variantID)
	return res.RowsAffected, res.Error
}

func (r *repository) Commit(ctx context.Context, variantID uuid.UUID, qty int) (int64, error) {
	res := r.db.WithContext(ctx).Exec(`
		UPDATE product_variants
		SET stock = stock - ?,
			reserved = reserved - ?,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND reserved >= ? AND stock >= ?
	`, qty, qty, variantID, qty, qty)
	return res.RowsAffected, res.Error
}

func (r *repository) Restock(ctx context.Context, variantID uuid.UUID, qty int) (int64, error) {
	res := r.db.WithContext(ctx).Exec(`
		UPDATE product_variants
		SET stock = stock + ?,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`, qty, variantID)
	return res.RowsAffected, res.Error
}
