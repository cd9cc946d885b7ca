package catalog

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
	"github.com/veloxrx/veloxrx-backend/pkg/enums"
	pkgerrors "github.com/veloxrx/veloxrx-backend/pkg/errors"
)

func newTestService(t *testing.T) (Service, *gorm.DB) {
	t.Helper()
	dsn := "file:catalog_" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.Product{}, &models.ProductVariant{}, &models.PriceTier{}))

	svc, err := NewService(NewRepository(db))
	require.NoError(t, err)
	return svc, db
}

func TestCreateProductDerivesSlug(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	product, err := svc.CreateProduct(ctx, CreateProductInput{
		Name:     "Semaglutide 5mg Vial",
		Category: enums.ProductCategoryGLP1,
	})
	require.NoError(t, err)
	assert.Equal(t, "semaglutide-5mg-vial", product.Slug)
	assert.True(t, product.IsActive)

	second, err := svc.CreateProduct(ctx, CreateProductInput{
		Name:     "Semaglutide 5mg Vial",
		Category: enums.ProductCategoryGLP1,
	})
	require.NoError(t, err)
	assert.Equal(t, "semaglutide-5mg-vial-1", second.Slug)
}

func TestCreateProductPersistsUnsetPrescriptionFlag(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()

	// over-the-counter product: the false flag must survive the insert
	// instead of being swallowed by a column default
	product, err := svc.CreateProduct(ctx, CreateProductInput{
		Name:     "NAD+ Booster",
		Category: enums.ProductCategorySupplement,
	})
	require.NoError(t, err)
	require.False(t, product.PrescriptionRequired)

	var loaded models.Product
	require.NoError(t, db.First(&loaded, "id = ?", product.ID).Error)
	assert.False(t, loaded.PrescriptionRequired)
	assert.True(t, loaded.IsActive)

	var inactive models.ProductVariant
	require.NoError(t, db.Create(&models.ProductVariant{
		ProductID: product.ID,
		SKU:       "NADB-OFF",
		Name:      "NAD+ Booster 250mg",
		BasePrice: decimal.NewFromInt(30),
		IsActive:  false,
	}).Error)
	require.NoError(t, db.First(&inactive, "sku = ?", "NADB-OFF").Error)
	assert.False(t, inactive.IsActive)
}

func TestCreateProductControlledRequiresSchedule(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.CreateProduct(context.Background(), CreateProductInput{
		Name:       "Testosterone Cypionate",
		Category:   enums.ProductCategoryHormone,
		Controlled: true,
	})
	require.Error(t, err)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation))
}

func TestAddVariantRejectsDuplicateSKU(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	product, err := svc.CreateProduct(ctx, CreateProductInput{
		Name:     "BPC-157",
		Category: enums.ProductCategoryPeptide,
	})
	require.NoError(t, err)

	input := AddVariantInput{
		SKU:               "BPC-157-5MG",
		Name:              "5mg vial",
		BasePrice:         decimal.NewFromFloat(49.99),
		Stock:             20,
		LowStockThreshold: 5,
		MaxOrderQuantity:  10,
	}
	_, err = svc.AddVariant(ctx, product.ID, input)
	require.NoError(t, err)

	_, err = svc.AddVariant(ctx, product.ID, input)
	require.Error(t, err)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeConflict))
}

func TestRetireVariantKeepsRow(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()

	product, err := svc.CreateProduct(ctx, CreateProductInput{
		Name:     "Vitamin D3",
		Category: enums.ProductCategoryVitamin,
	})
	require.NoError(t, err)

	variant, err := svc.AddVariant(ctx, product.ID, AddVariantInput{
		SKU:               "D3-5000IU",
		Name:              "5000 IU",
		BasePrice:         decimal.NewFromInt(12),
		Stock:             100,
		LowStockThreshold: 10,
		MaxOrderQuantity:  50,
	})
	require.NoError(t, err)

	require.NoError(t, svc.RetireVariant(ctx, variant.ID))

	var loaded models.ProductVariant
	require.NoError(t, db.First(&loaded, "id = ?", variant.ID).Error)
	assert.False(t, loaded.IsActive)
}

func TestRetireVariantNotFound(t *testing.T) {
	svc, _ := newTestService(t)
	err := svc.RetireVariant(context.Background(), uuid.New())
	require.Error(t, err)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeNotFound))
}

func TestSetPriceTiersReplacesExisting(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	product, err := svc.CreateProduct(ctx, CreateProductInput{
		Name:     "NAD+ Injection",
		Category: enums.ProductCategoryPeptide,
	})
	require.NoError(t, err)
	variant, err := svc.AddVariant(ctx, product.ID, AddVariantInput{
		SKU:               "NAD-100MG",
		Name:              "100mg",
		BasePrice:         decimal.NewFromInt(80),
		Stock:             50,
		LowStockThreshold: 5,
		MaxOrderQuantity:  20,
	})
	require.NoError(t, err)

	require.NoError(t, svc.SetPriceTiers(ctx, variant.ID, []PriceTierInput{
		{MinQuantity: 5, Price: decimal.NewFromInt(75)},
		{MinQuantity: 10, Price: decimal.NewFromInt(70)},
	}))
	require.NoError(t, svc.SetPriceTiers(ctx, variant.ID, []PriceTierInput{
		{MinQuantity: 3, Price: decimal.NewFromInt(78)},
	}))

	loaded, err := svc.GetProduct(ctx, product.ID)
	require.NoError(t, err)
	require.Len(t, loaded.Variants, 1)
	require.Len(t, loaded.Variants[0].PriceTiers, 1)
	assert.Equal(t, 3, loaded.Variants[0].PriceTiers[0].MinQuantity)
}

func TestSetPriceTiersRejectsDuplicateBreaks(t *testing.T) {
	svc, _ := newTestService(t)
	err := svc.SetPriceTiers(context.Background(), uuid.New(), []PriceTierInput{
		{MinQuantity: 5, Price: decimal.NewFromInt(75)},
		{MinQuantity: 5, Price: decimal.NewFromInt(70)},
	})
	require.Error(t, err)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation))
}

func TestInStock(t *testing.T) {
	product := models.Product{
		Variants: []models.ProductVariant{
			{IsActive: true, Stock: 5, Reserved: 5},
			{IsActive: false, Stock: 10, Reserved: 0},
		},
	}
	assert.False(t, InStock(product))

	product.Variants[0].Reserved = 4
	assert.True(t, InStock(product))
}

func TestDeleteProductSoftDeletes(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()

	product, err := svc.CreateProduct(ctx, CreateProductInput{
		Name:     "Melatonin",
		Category: enums.ProductCategorySupplement,
	})
	require.NoError(t, err)
	require.NoError(t, svc.DeleteProduct(ctx, product.ID))

	var loaded models.Product
	require.NoError(t, db.First(&loaded, "id = ?", product.ID).Error)
	assert.True(t, loaded.IsDeleted)
	assert.False(t, loaded.IsActive)

	_, err = svc.GetProductBySlug(ctx, product.Slug)
	require.Error(t, err)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeNotFound))
}
