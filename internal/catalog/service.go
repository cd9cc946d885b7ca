package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/veloxrx/veloxrx-backend/pkg/db"
	"github.com/veloxrx/veloxrx-backend/pkg/db/models"
	"github.com/veloxrx/veloxrx-backend/pkg/enums"
	pkgerrors "github.com/veloxrx/veloxrx-backend/pkg/errors"
	"github.com/veloxrx/veloxrx-backend/pkg/types"
	"github.com/veloxrx/veloxrx-backend/pkg/validate"
)

// Service manages the product catalog. Variants are retired, never deleted;
// orders keep referencing them by id after retirement.
type Service interface {
	CreateProduct(ctx context.Context, input CreateProductInput) (*models.Product, error)
	GetProduct(ctx context.Context, id uuid.UUID) (*models.Product, error)
	GetProductBySlug(ctx context.Context, slug string) (*models.Product, error)
	ListActiveProducts(ctx context.Context) ([]models.Product, error)
	DeactivateProduct(ctx context.Context, id uuid.UUID) error
	DeleteProduct(ctx context.Context, id uuid.UUID) error
	AddVariant(ctx context.Context, productID uuid.UUID, input AddVariantInput) (*models.ProductVariant, error)
	RetireVariant(ctx context.Context, variantID uuid.UUID) error
	SetPriceTiers(ctx context.Context, variantID uuid.UUID, tiers []PriceTierInput) error
}

type service struct {
	repo Repository
}

// CreateProductInput carries the catalog fields for a new product.
type CreateProductInput struct {
	Name                 string                    `json:"name" validate:"required"`
	Category             enums.ProductCategory     `json:"category" validate:"required"`
	Brand                *string                   `json:"brand,omitempty"`
	PrescriptionRequired bool                      `json:"prescription_required"`
	Controlled           bool                      `json:"controlled"`
	ControlledSchedule   *enums.ControlledSchedule `json:"controlled_schedule,omitempty"`
	StateRestrictions    []models.StateRestriction `json:"state_restrictions,omitempty"`
}

// AddVariantInput carries the fields for a new sellable variant.
type AddVariantInput struct {
	SKU               string              `json:"sku" validate:"required"`
	Name              string              `json:"name" validate:"required"`
	Concentration     types.Concentration `json:"concentration"`
	BasePrice         decimal.Decimal     `json:"base_price"`
	Stock             int                 `json:"stock" validate:"min=0"`
	LowStockThreshold int                 `json:"low_stock_threshold" validate:"min=0"`
	MaxOrderQuantity  int                 `json:"max_order_quantity" validate:"min=1"`
}

// PriceTierInput is one quantity break for a variant.
type PriceTierInput struct {
	MinQuantity int             `json:"min_quantity" validate:"gt=0"`
	Price       decimal.Decimal `json:"price"`
}

// NewService builds a catalog service.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("catalog repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) CreateProduct(ctx context.Context, input CreateProductInput) (*models.Product, error) {
	if err := validate.Struct(input); err != nil {
		return nil, err
	}
	if !input.Category.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid product category")
	}
	if input.Controlled && input.ControlledSchedule == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "controlled products require a schedule")
	}
	if input.ControlledSchedule != nil && !input.ControlledSchedule.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid controlled schedule")
	}

	base := Slugify(input.Name)
	if base == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product name yields empty slug")
	}
	taken, err := s.repo.CountProductsBySlugPrefix(ctx, base)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check slug availability")
	}

	product := &models.Product{
		Name:                 strings.TrimSpace(input.Name),
		Slug:                 uniqueSlug(base, taken),
		Category:             input.Category,
		Brand:                input.Brand,
		PrescriptionRequired: input.PrescriptionRequired,
		Controlled:           input.Controlled,
		ControlledSchedule:   input.ControlledSchedule,
		StateRestrictions:    input.StateRestrictions,
		IsActive:             true,
	}
	created, err := s.repo.CreateProduct(ctx, product)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create product")
	}
	return created, nil
}

func (s *service) GetProduct(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product id required")
	}
	product, err := s.repo.FindProductByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup product")
	}
	return product, nil
}

func (s *service) GetProductBySlug(ctx context.Context, slug string) (*models.Product, error) {
	if strings.TrimSpace(slug) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "slug required")
	}
	product, err := s.repo.FindProductBySlug(ctx, slug)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup product")
	}
	return product, nil
}

func (s *service) ListActiveProducts(ctx context.Context) ([]models.Product, error) {
	products, err := s.repo.ListActiveProducts(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list products")
	}
	return products, nil
}

func (s *service) DeactivateProduct(ctx context.Context, id uuid.UUID) error {
	product, err := s.GetProduct(ctx, id)
	if err != nil {
		return err
	}
	if !product.IsActive {
		return nil
	}
	product.IsActive = false
	if err := s.repo.UpdateProduct(ctx, product); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "deactivate product")
	}
	return nil
}

func (s *service) DeleteProduct(ctx context.Context, id uuid.UUID) error {
	product, err := s.GetProduct(ctx, id)
	if err != nil {
		return err
	}
	if product.IsDeleted {
		return nil
	}
	product.IsActive = false
	product.IsDeleted = true
	if err := s.repo.UpdateProduct(ctx, product); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete product")
	}
	return nil
}

func (s *service) AddVariant(ctx context.Context, productID uuid.UUID, input AddVariantInput) (*models.ProductVariant, error) {
	if productID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product id required")
	}
	if err := validate.Struct(input); err != nil {
		return nil, err
	}
	if input.BasePrice.IsNegative() || input.BasePrice.IsZero() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "base price must be positive")
	}

	product, err := s.GetProduct(ctx, productID)
	if err != nil {
		return nil, err
	}
	if product.IsDeleted {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "product is deleted")
	}

	if _, err := s.repo.FindVariantBySKU(ctx, strings.TrimSpace(input.SKU)); err == nil {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "sku already in use")
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check sku")
	}

	variant := &models.ProductVariant{
		ProductID:         product.ID,
		SKU:               strings.TrimSpace(input.SKU),
		Name:              strings.TrimSpace(input.Name),
		Concentration:     input.Concentration,
		BasePrice:         input.BasePrice,
		Stock:             input.Stock,
		LowStockThreshold: input.LowStockThreshold,
		MaxOrderQuantity:  input.MaxOrderQuantity,
		IsActive:          true,
	}
	created, err := s.repo.CreateVariant(ctx, variant)
	if err != nil {
		// the pre-check races with concurrent inserts; the unique index wins
		if db.IsUniqueViolation(err, "") {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "sku already in use")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create variant")
	}
	return created, nil
}

func (s *service) RetireVariant(ctx context.Context, variantID uuid.UUID) error {
	if variantID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "variant id required")
	}
	if err := s.repo.SetVariantActive(ctx, variantID, false); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "variant not found")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "retire variant")
	}
	return nil
}

func (s *service) SetPriceTiers(ctx context.Context, variantID uuid.UUID, tiers []PriceTierInput) error {
	if variantID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "variant id required")
	}
	seen := map[int]bool{}
	rows := make([]models.PriceTier, 0, len(tiers))
	for _, tier := range tiers {
		if err := validate.Struct(tier); err != nil {
			return err
		}
		if tier.Price.IsNegative() || tier.Price.IsZero() {
			return pkgerrors.New(pkgerrors.CodeValidation, "tier price must be positive")
		}
		if seen[tier.MinQuantity] {
			return pkgerrors.New(pkgerrors.CodeValidation, "duplicate tier min_quantity")
		}
		seen[tier.MinQuantity] = true
		rows = append(rows, models.PriceTier{
			MinQuantity: tier.MinQuantity,
			Price:       tier.Price,
		})
	}

	if _, err := s.repo.FindVariantByID(ctx, variantID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "variant not found")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup variant")
	}

	if err := s.repo.ReplacePriceTiers(ctx, variantID, rows); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "replace price tiers")
	}
	return nil
}

// InStock reports whether any active variant has unreserved stock left.
func InStock(product models.Product) bool {
	for _, variant := range product.Variants {
		if variant.IsActive && variant.Available() > 0 {
			return true
		}
	}
	return false
}
