package inventory

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/veloxrx/veloxrx-backend/pkg/db/models"
	pkgerrors "github.com/veloxrx/veloxrx-backend/pkg/errors"
	"github.com/veloxrx/veloxrx-backend/pkg/metrics"
)

// Service is the stock ledger. Reservations hold units for in-flight orders;
// Commit converts a hold into a real decrement at fulfillment and Release
// returns it on cancellation.
type Service interface {
	Reserve(ctx context.Context, tx *gorm.DB, variantID uuid.UUID, qty int) error
	Release(ctx context.Context, tx *gorm.DB, variantID uuid.UUID, qty int) error
	Commit(ctx context.Context, tx *gorm.DB, variantID uuid.UUID, qty int) error
	Restock(ctx context.Context, tx *gorm.DB, variantID uuid.UUID, qty int) error
	PriceFor(ctx context.Context, variantID uuid.UUID, qty int) (decimal.Decimal, error)
	CanOrder(ctx context.Context, variantID uuid.UUID, qty int) (bool, string, error)
	LowStock(ctx context.Context) ([]models.ProductVariant, error)
}

type service struct {
	repo    Repository
	metrics *metrics.OrderFlowMetrics
}

// NewService builds the inventory ledger service. Metrics may be nil.
func NewService(repo Repository, flowMetrics *metrics.OrderFlowMetrics) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("inventory repository required")
	}
	return &service{repo: repo, metrics: flowMetrics}, nil
}

func (s *service) Reserve(ctx context.Context, tx *gorm.DB, variantID uuid.UUID, qty int) error {
	if variantID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "variant id required")
	}
	if qty <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	}
	repo := s.repo.WithTx(tx)

	variant, err := repo.FindVariantByID(ctx, variantID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "variant not found")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup variant")
	}
	if !variant.IsActive {
		return pkgerrors.New(pkgerrors.CodeValidation, "variant is retired")
	}
	if qty > variant.MaxOrderQuantity {
		return pkgerrors.New(pkgerrors.CodeValidation, "quantity exceeds max order quantity").
			WithDetails(map[string]any{"sku": variant.SKU, "max_order_quantity": variant.MaxOrderQuantity})
	}

	affected, err := repo.Reserve(ctx, variantID, qty)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reserve stock")
	}
	if affected == 0 {
		s.metrics.IncReservationFailure(variant.SKU)
		return pkgerrors.New(pkgerrors.CodeInsufficientAvailability, "insufficient available stock").
			WithDetails(map[string]any{
				"sku":       variant.SKU,
				"requested": qty,
				"available": variant.Available(),
			})
	}
	return nil
}

func (s *service) Release(ctx context.Context, tx *gorm.DB, variantID uuid.UUID, qty int) error {
	if qty <= 0 {
		return nil
	}
	affected, err := s.repo.WithTx(tx).Release(ctx, variantID, qty)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "release stock")
	}
	if affected == 0 {
		return pkgerrors.New(pkgerrors.CodeNotFound, "variant not found")
	}
	return nil
}

func (s *service) Commit(ctx context.Context, tx *gorm.DB, variantID uuid.UUID, qty int) error {
	if qty <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	}
	affected, err := s.repo.WithTx(tx).Commit(ctx, variantID, qty)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "commit stock")
	}
	if affected == 0 {
		return pkgerrors.New(pkgerrors.CodeInsufficientStock, "reserved stock below committed quantity").
			WithDetails(map[string]any{"variant_id": variantID, "quantity": qty})
	}
	return nil
}

func (s *service) Restock(ctx context.Context, tx *gorm.DB, variantID uuid.UUID, qty int) error {
	if qty <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	}
	affected, err := s.repo.WithTx(tx).Restock(ctx, variantID, qty)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "restock")
	}
	if affected == 0 {
		return pkgerrors.New(pkgerrors.CodeNotFound, "variant not found")
	}
	return nil
}

func (s *service) PriceFor(ctx context.Context, variantID uuid.UUID, qty int) (decimal.Decimal, error) {
	if qty <= 0 {
		return decimal.Zero, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	}
	variant, err := s.repo.FindVariantByID(ctx, variantID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return decimal.Zero, pkgerrors.New(pkgerrors.CodeNotFound, "variant not found")
		}
		return decimal.Zero, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup variant")
	}
	return UnitPrice(*variant, qty), nil
}

func (s *service) CanOrder(ctx context.Context, variantID uuid.UUID, qty int) (bool, string, error) {
	if qty <= 0 {
		return false, "quantity must be positive", nil
	}
	variant, err := s.repo.FindVariantByID(ctx, variantID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, "variant not found", nil
		}
		return false, "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup variant")
	}
	switch {
	case !variant.IsActive:
		return false, "variant is retired", nil
	case qty > variant.MaxOrderQuantity:
		return false, "quantity exceeds max order quantity", nil
	case qty > variant.Available():
		return false, "insufficient available stock", nil
	}
	return true, "", nil
}

func (s *service) LowStock(ctx context.Context) ([]models.ProductVariant, error) {
	variants, err := s.repo.ListLowStock(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list low stock")
	}
	return variants, nil
}

// UnitPrice resolves the effective unit price for a quantity: the matching
// tier with the highest min_quantity wins, otherwise the base price.
func UnitPrice(variant models.ProductVariant, qty int) decimal.Decimal {
	tiers := append([]models.PriceTier{}, variant.PriceTiers...)
	sort.Slice(tiers, func(i, j int) bool {
		return tiers[i].MinQuantity > tiers[j].MinQuantity
	})
	for _, tier := range tiers {
		if qty >= tier.MinQuantity {
			return tier.Price
		}
	}
	return variant.BasePrice
}
