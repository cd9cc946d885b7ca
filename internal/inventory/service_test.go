package inventory

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/veloxrx/veloxrx-backend/pkg/db/models"
	pkgerrors "github.com/veloxrx/veloxrx-backend/pkg/errors"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:inventory_" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.Product{}, &models.ProductVariant{}, &models.PriceTier{}))
	return db
}

func seedVariant(t *testing.T, db *gorm.DB, stock, reserved int) *models.ProductVariant {
	t.Helper()
	variant := &models.ProductVariant{
		ID:                uuid.New(),
		ProductID:         uuid.New(),
		SKU:               "SKU-" + uuid.NewString()[:8],
		Name:              "test variant",
		BasePrice:         decimal.NewFromInt(50),
		Stock:             stock,
		Reserved:          reserved,
		LowStockThreshold: 3,
		MaxOrderQuantity:  10,
		IsActive:          true,
	}
	require.NoError(t, db.Create(variant).Error)
	return variant
}

func newService(t *testing.T, db *gorm.DB) Service {
	t.Helper()
	svc, err := NewService(NewRepository(db), nil)
	require.NoError(t, err)
	return svc
}

func reloadVariant(t *testing.T, db *gorm.DB, id uuid.UUID) models.ProductVariant {
	t.Helper()
	var variant models.ProductVariant
	require.NoError(t, db.First(&variant, "id = ?", id).Error)
	return variant
}

func TestReserveHoldsStock(t *testing.T) {
	db := newTestDB(t)
	svc := newService(t, db)
	ctx := context.Background()
	variant := seedVariant(t, db, 10, 0)

	require.NoError(t, svc.Reserve(ctx, nil, variant.ID, 4))

	loaded := reloadVariant(t, db, variant.ID)
	assert.Equal(t, 10, loaded.Stock)
	assert.Equal(t, 4, loaded.Reserved)
	assert.Equal(t, 6, loaded.Available())
}

func TestReserveInsufficientAvailabilityLeavesStateUntouched(t *testing.T) {
	db := newTestDB(t)
	svc := newService(t, db)
	ctx := context.Background()
	variant := seedVariant(t, db, 10, 8)

	err := svc.Reserve(ctx, nil, variant.ID, 3)
	require.Error(t, err)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeInsufficientAvailability))

	loaded := reloadVariant(t, db, variant.ID)
	assert.Equal(t, 8, loaded.Reserved)
}

func TestReserveRetiredVariant(t *testing.T) {
	db := newTestDB(t)
	svc := newService(t, db)
	variant := seedVariant(t, db, 10, 0)
	require.NoError(t, db.Model(&models.ProductVariant{}).Where("id = ?", variant.ID).Update("is_active", false).Error)

	err := svc.Reserve(context.Background(), nil, variant.ID, 1)
	require.Error(t, err)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation))
}

func TestReserveOverMaxOrderQuantity(t *testing.T) {
	db := newTestDB(t)
	svc := newService(t, db)
	variant := seedVariant(t, db, 100, 0)

	err := svc.Reserve(context.Background(), nil, variant.ID, 11)
	require.Error(t, err)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation))
}

func TestReserveUnknownVariant(t *testing.T) {
	db := newTestDB(t)
	svc := newService(t, db)

	err := svc.Reserve(context.Background(), nil, uuid.New(), 1)
	require.Error(t, err)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeNotFound))
}

func TestReleaseClampsAtZero(t *testing.T) {
	db := newTestDB(t)
	svc := newService(t, db)
	ctx := context.Background()
	variant := seedVariant(t, db, 10, 2)

	require.NoError(t, svc.Release(ctx, nil, variant.ID, 5))

	loaded := reloadVariant(t, db, variant.ID)
	assert.Equal(t, 0, loaded.Reserved)
	assert.Equal(t, 10, loaded.Stock)
}

func TestCommitDecrementsStockAndReserved(t *testing.T) {
	db := newTestDB(t)
	svc := newService(t, db)
	ctx := context.Background()
	variant := seedVariant(t, db, 10, 4)

	require.NoError(t, svc.Commit(ctx, nil, variant.ID, 4))

	loaded := reloadVariant(t, db, variant.ID)
	assert.Equal(t, 6, loaded.Stock)
	assert.Equal(t, 0, loaded.Reserved)
}

func TestCommitWithoutReservationFails(t *testing.T) {
	db := newTestDB(t)
	svc := newService(t, db)
	variant := seedVariant(t, db, 10, 1)

	err := svc.Commit(context.Background(), nil, variant.ID, 3)
	require.Error(t, err)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeInsufficientStock))

	loaded := reloadVariant(t, db, variant.ID)
	assert.Equal(t, 10, loaded.Stock)
	assert.Equal(t, 1, loaded.Reserved)
}

func TestRestockIncreasesStock(t *testing.T) {
	db := newTestDB(t)
	svc := newService(t, db)
	variant := seedVariant(t, db, 2, 0)

	require.NoError(t, svc.Restock(context.Background(), nil, variant.ID, 25))

	loaded := reloadVariant(t, db, variant.ID)
	assert.Equal(t, 27, loaded.Stock)
}

func TestCanOrder(t *testing.T) {
	db := newTestDB(t)
	svc := newService(t, db)
	ctx := context.Background()
	variant := seedVariant(t, db, 5, 3)

	ok, _, err := svc.CanOrder(ctx, variant.ID, 2)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, reason, err := svc.CanOrder(ctx, variant.ID, 3)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, "insufficient available stock", reason)

	loaded := reloadVariant(t, db, variant.ID)
	assert.Equal(t, 3, loaded.Reserved)
}

func TestLowStockListsAtOrBelowThreshold(t *testing.T) {
	db := newTestDB(t)
	svc := newService(t, db)
	low := seedVariant(t, db, 5, 2)
	seedVariant(t, db, 50, 0)

	variants, err := svc.LowStock(context.Background())
	require.NoError(t, err)
	require.Len(t, variants, 1)
	assert.Equal(t, low.ID, variants[0].ID)
}

func TestUnitPricePicksDeepestMatchingTier(t *testing.T) {
	variant := models.ProductVariant{
		BasePrice: decimal.NewFromInt(100),
		PriceTiers: []models.PriceTier{
			{MinQuantity: 10, Price: decimal.NewFromInt(80)},
			{MinQuantity: 5, Price: decimal.NewFromInt(90)},
		},
	}

	assert.True(t, UnitPrice(variant, 1).Equal(decimal.NewFromInt(100)))
	assert.True(t, UnitPrice(variant, 5).Equal(decimal.NewFromInt(90)))
	assert.True(t, UnitPrice(variant, 9).Equal(decimal.NewFromInt(90)))
	assert.True(t, UnitPrice(variant, 10).Equal(decimal.NewFromInt(80)))
	assert.True(t, UnitPrice(variant, 50).Equal(decimal.NewFromInt(80)))
}

func TestUnitPriceNonIncreasingWithWellOrderedTiers(t *testing.T) {
	variant := models.ProductVariant{
		BasePrice: decimal.NewFromInt(100),
		PriceTiers: []models.PriceTier{
			{MinQuantity: 5, Price: decimal.NewFromInt(90)},
			{MinQuantity: 10, Price: decimal.NewFromInt(80)},
			{MinQuantity: 25, Price: decimal.NewFromInt(70)},
		},
	}

	prev := UnitPrice(variant, 1)
	for qty := 2; qty <= 40; qty++ {
		current := UnitPrice(variant, qty)
		assert.True(t, current.LessThanOrEqual(prev), "price increased at qty %d", qty)
		prev = current
	}
}
