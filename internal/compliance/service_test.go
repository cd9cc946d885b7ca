package compliance

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/veloxrx/veloxrx-backend/internal/catalog"
	"github.com/veloxrx/veloxrx-backend/internal/verification"
	"github.com/veloxrx/veloxrx-backend/pkg/db/models"
	"github.com/veloxrx/veloxrx-backend/pkg/enums"
	pkgerrors "github.com/veloxrx/veloxrx-backend/pkg/errors"
	"github.com/veloxrx/veloxrx-backend/pkg/types"
)

var testNow = time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)

func newTestService(t *testing.T) (*service, *gorm.DB) {
	t.Helper()
	dsn := "file:compliance_" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.Product{}, &models.ProductVariant{}, &models.PriceTier{},
		&models.Prescriber{}, &models.PrescriberLicense{},
		&models.Order{}, &models.OrderItem{}, &models.OrderTimelineEntry{},
	))

	svc := &service{
		repo:        NewRepository(db),
		prescribers: verification.NewRepository(db),
		products:    catalog.NewRepository(db),
		now:         func() time.Time { return testNow },
	}
	return svc, db
}

func seedVerifiedPrescriber(t *testing.T, db *gorm.DB) *models.Prescriber {
	t.Helper()
	prescriber := &models.Prescriber{
		ID:        uuid.New(),
		Email:     "doc-" + uuid.NewString()[:8] + "@clinic.test",
		FirstName: "Dana",
		LastName:  "Reyes",
		NPINumber: uuid.NewString()[:10],
		DEANumber: "AB1234567",
		Status:    enums.VerificationStatusVerified,
	}
	require.NoError(t, db.Create(prescriber).Error)
	license := &models.PrescriberLicense{
		PrescriberID: prescriber.ID,
		Number:       "G-1",
		State:        "CA",
		ExpiryDate:   testNow.AddDate(1, 0, 0),
	}
	require.NoError(t, db.Create(license).Error)
	prescriber.Licenses = []models.PrescriberLicense{*license}
	return prescriber
}

func seedProduct(t *testing.T, db *gorm.DB, mutate func(*models.Product)) *models.Product {
	t.Helper()
	product := &models.Product{
		ID:       uuid.New(),
		Name:     "test product",
		Slug:     "test-product-" + uuid.NewString()[:8],
		Category: enums.ProductCategoryPeptide,
		IsActive: true,
	}
	if mutate != nil {
		mutate(product)
	}
	require.NoError(t, db.Create(product).Error)
	return product
}

func seedOrder(t *testing.T, db *gorm.DB, customerID uuid.UUID, productID uuid.UUID, mutate func(*models.Order)) *models.Order {
	t.Helper()
	order := &models.Order{
		ID:          uuid.New(),
		OrderNumber: "VRX260315" + uuid.NewString()[:4],
		CustomerID:  customerID,
		Status:      enums.OrderStatusConfirmed,
		Subtotal:    decimal.NewFromInt(100),
		Total:       decimal.NewFromInt(100),
		ShippingAddr: types.Address{
			FirstName: "Dana", LastName: "Reyes",
			Street1: "1 Main St", City: "Oakland", State: "CA", ZipCode: "94601", Country: "US",
		},
		Items: []models.OrderItem{{
			ID:        uuid.New(),
			ProductID: productID,
			VariantID: uuid.New(),
			SKU:       "SKU-1",
			Name:      "test product",
			Quantity:  2,
			UnitPrice: decimal.NewFromInt(50),
			LineTotal: decimal.NewFromInt(100),
		}},
	}
	if mutate != nil {
		mutate(order)
	}
	require.NoError(t, db.Create(order).Error)
	return order
}

func TestEvaluateSnapshotCollectsEveryFailure(t *testing.T) {
	controlled := models.Product{
		Controlled:           true,
		PrescriptionRequired: true,
		StateRestrictions:    []models.StateRestriction{{State: "TX", Restriction: "banned"}},
	}
	record := EvaluateSnapshot(Snapshot{
		Products:  []models.Product{controlled},
		ShipState: "TX",
		Now:       testNow,
	})

	assert.False(t, record.Passed())
	assert.ElementsMatch(t, []enums.ComplianceFlag{
		enums.ComplianceFlagNPIUnverified,
		enums.ComplianceFlagDEAUnverified,
		enums.ComplianceFlagStateRestricted,
		enums.ComplianceFlagPrescriptionMissing,
	}, record.Flags)
}

func TestEvaluateSnapshotExpiredLicense(t *testing.T) {
	prescriber := &models.Prescriber{
		Status:   enums.VerificationStatusVerified,
		Licenses: []models.PrescriberLicense{{State: "CA", ExpiryDate: testNow.AddDate(0, -1, 0)}},
	}
	record := EvaluateSnapshot(Snapshot{
		Products:   []models.Product{{}},
		Prescriber: prescriber,
		ShipState:  "CA",
		Now:        testNow,
	})

	assert.False(t, record.Passed())
	assert.Equal(t, []enums.ComplianceFlag{enums.ComplianceFlagLicenseExpired}, record.Flags)
}

func TestEvaluateSnapshotPasses(t *testing.T) {
	prescriber := &models.Prescriber{
		Status:   enums.VerificationStatusVerified,
		Licenses: []models.PrescriberLicense{{State: "CA", ExpiryDate: testNow.AddDate(1, 0, 0)}},
	}
	record := EvaluateSnapshot(Snapshot{
		Products:     []models.Product{{PrescriptionRequired: true}},
		Prescriber:   prescriber,
		ShipState:    "CA",
		Prescription: types.PrescriptionEvidence{Required: true, Provided: true},
		Now:          testNow,
	})

	assert.True(t, record.Passed())
	assert.True(t, record.NPIVerified)
	assert.True(t, record.StateCompliant)
	assert.Empty(t, record.Flags)
}

func TestEvaluateLoadsOrderContext(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()

	prescriber := seedVerifiedPrescriber(t, db)
	product := seedProduct(t, db, func(p *models.Product) {
		p.StateRestrictions = []models.StateRestriction{{State: "CA", Restriction: "banned"}}
	})
	order := seedOrder(t, db, prescriber.ID, product.ID, nil)

	record, err := svc.Evaluate(ctx, order)
	require.NoError(t, err)
	assert.False(t, record.Passed())
	assert.Equal(t, []enums.ComplianceFlag{enums.ComplianceFlagStateRestricted}, record.Flags)
}

func TestApplyForcesComplianceReview(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()

	prescriber := seedVerifiedPrescriber(t, db)
	product := seedProduct(t, db, nil)
	order := seedOrder(t, db, prescriber.ID, product.ID, nil)

	record := types.ComplianceRecord{
		CheckedAt: &testNow,
		Flags:     []enums.ComplianceFlag{enums.ComplianceFlagPrescriptionMissing},
	}
	require.NoError(t, svc.Apply(ctx, nil, order.ID, record, nil))

	var loaded models.Order
	require.NoError(t, db.First(&loaded, "id = ?", order.ID).Error)
	assert.Equal(t, enums.OrderStatusComplianceReview, loaded.Status)
	assert.Equal(t, record.Flags, loaded.Compliance.Flags)

	var entries []models.OrderTimelineEntry
	require.NoError(t, db.Where("order_id = ?", order.ID).Find(&entries).Error)
	require.Len(t, entries, 1)
	assert.True(t, entries[0].Internal)
	assert.Contains(t, entries[0].Message, "prescription_missing")
}

func TestApplyPassingRecordKeepsStatus(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()

	prescriber := seedVerifiedPrescriber(t, db)
	product := seedProduct(t, db, nil)
	order := seedOrder(t, db, prescriber.ID, product.ID, nil)

	record := types.ComplianceRecord{CheckedAt: &testNow, NPIVerified: true, StateCompliant: true}
	require.NoError(t, svc.Apply(ctx, nil, order.ID, record, nil))

	var loaded models.Order
	require.NoError(t, db.First(&loaded, "id = ?", order.ID).Error)
	assert.Equal(t, enums.OrderStatusConfirmed, loaded.Status)
}

func TestApplyRejectsTerminalOrder(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()

	prescriber := seedVerifiedPrescriber(t, db)
	product := seedProduct(t, db, nil)
	order := seedOrder(t, db, prescriber.ID, product.ID, func(o *models.Order) {
		o.Status = enums.OrderStatusDelivered
	})

	err := svc.Apply(ctx, nil, order.ID, types.ComplianceRecord{CheckedAt: &testNow}, nil)
	require.Error(t, err)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeStateConflict))
}

func TestOverrideClearsHold(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()
	reviewer := uuid.New()

	prescriber := seedVerifiedPrescriber(t, db)
	product := seedProduct(t, db, nil)
	order := seedOrder(t, db, prescriber.ID, product.ID, func(o *models.Order) {
		o.Status = enums.OrderStatusComplianceReview
		o.Compliance = types.ComplianceRecord{
			CheckedAt: &testNow,
			Flags:     []enums.ComplianceFlag{enums.ComplianceFlagNPIUnverified},
		}
	})

	require.NoError(t, svc.Override(ctx, order.ID, reviewer, "registry confirmed by phone"))

	var loaded models.Order
	require.NoError(t, db.First(&loaded, "id = ?", order.ID).Error)
	assert.True(t, loaded.Compliance.Passed())
	require.NotNil(t, loaded.Compliance.CheckedBy)
	assert.Equal(t, reviewer, *loaded.Compliance.CheckedBy)
	require.NotNil(t, loaded.Compliance.Notes)
}

func TestOverrideRequiresReviewStatus(t *testing.T) {
	svc, db := newTestService(t)
	prescriber := seedVerifiedPrescriber(t, db)
	product := seedProduct(t, db, nil)
	order := seedOrder(t, db, prescriber.ID, product.ID, nil)

	err := svc.Override(context.Background(), order.ID, uuid.New(), "notes")
	require.Error(t, err)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeStateConflict))
}

func TestBlockingError(t *testing.T) {
	record := types.ComplianceRecord{
		CheckedAt: &testNow,
		Flags: []enums.ComplianceFlag{
			enums.ComplianceFlagNPIUnverified,
			enums.ComplianceFlagStateRestricted,
		},
	}
	err := BlockingError(record)
	require.Error(t, err)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeComplianceBlocked))
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Contains(t, typed.Unwrap().Error(), "npi_unverified")
	assert.Contains(t, typed.Unwrap().Error(), "state_restricted")

	passed := types.ComplianceRecord{CheckedAt: &testNow}
	assert.NoError(t, BlockingError(passed))
}
