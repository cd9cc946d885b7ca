package compliance

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/veloxrx/veloxrx-backend/pkg/db/models"
	"github.com/veloxrx/veloxrx-backend/pkg/enums"
	pkgerrors "github.com/veloxrx/veloxrx-backend/pkg/errors"
	"github.com/veloxrx/veloxrx-backend/pkg/metrics"
	"github.com/veloxrx/veloxrx-backend/pkg/types"
)

type prescriberLoader interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Prescriber, error)
}

type productLoader interface {
	FindProductByID(ctx context.Context, id uuid.UUID) (*models.Product, error)
}

// Service is the compliance gate. It evaluates an order against prescriber
// credentials, product restrictions, and prescription evidence, persists the
// outcome, and holds failing orders in review.
type Service interface {
	Evaluate(ctx context.Context, order *models.Order) (types.ComplianceRecord, error)
	Apply(ctx context.Context, tx *gorm.DB, orderID uuid.UUID, record types.ComplianceRecord, actorID *uuid.UUID) error
	Override(ctx context.Context, orderID uuid.UUID, reviewerID uuid.UUID, notes string) error
}

type service struct {
	repo        Repository
	prescribers prescriberLoader
	products    productLoader
	metrics     *metrics.OrderFlowMetrics
	now         func() time.Time
}

// NewService builds the compliance gate service. Metrics may be nil.
func NewService(repo Repository, prescribers prescriberLoader, products productLoader, flowMetrics *metrics.OrderFlowMetrics) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("compliance repository required")
	}
	if prescribers == nil {
		return nil, fmt.Errorf("prescriber loader required")
	}
	if products == nil {
		return nil, fmt.Errorf("product loader required")
	}
	return &service{
		repo:        repo,
		prescribers: prescribers,
		products:    products,
		metrics:     flowMetrics,
		now:         time.Now,
	}, nil
}

func (s *service) Evaluate(ctx context.Context, order *models.Order) (types.ComplianceRecord, error) {
	if order == nil {
		return types.ComplianceRecord{}, pkgerrors.New(pkgerrors.CodeValidation, "order required")
	}

	var prescriber *models.Prescriber
	loaded, err := s.prescribers.FindByID(ctx, order.CustomerID)
	if err == nil {
		prescriber = loaded
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return types.ComplianceRecord{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load prescriber")
	}

	seen := map[uuid.UUID]bool{}
	products := make([]models.Product, 0, len(order.Items))
	for _, item := range order.Items {
		if seen[item.ProductID] {
			continue
		}
		seen[item.ProductID] = true
		product, err := s.products.FindProductByID(ctx, item.ProductID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				continue
			}
			return types.ComplianceRecord{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
		}
		products = append(products, *product)
	}

	record := EvaluateSnapshot(Snapshot{
		Products:     products,
		Prescriber:   prescriber,
		ShipState:    order.ShippingAddr.State,
		Prescription: order.Prescription,
		Now:          s.now().UTC(),
	})
	return record, nil
}

func (s *service) Apply(ctx context.Context, tx *gorm.DB, orderID uuid.UUID, record types.ComplianceRecord, actorID *uuid.UUID) error {
	if orderID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	repo := s.repo.WithTx(tx)

	order, err := repo.FindOrder(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	if order.Status.IsTerminal() {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "order already finalized")
	}

	var hold *enums.OrderStatus
	if !record.Passed() && order.Status != enums.OrderStatusComplianceReview {
		status := enums.OrderStatusComplianceReview
		hold = &status
	}

	if err := repo.SaveComplianceRecord(ctx, orderID, record, hold); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persist compliance record")
	}

	if !record.Passed() {
		for _, flag := range record.Flags {
			s.metrics.IncComplianceBlock(flag.String())
		}
		entry := &models.OrderTimelineEntry{
			OrderID:  orderID,
			Status:   enums.OrderStatusComplianceReview,
			Message:  "held by compliance gate: " + joinFlags(record.Flags),
			ActorID:  actorID,
			Internal: true,
		}
		if err := repo.AppendTimeline(ctx, entry); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "append timeline entry")
		}
	}
	return nil
}

func (s *service) Override(ctx context.Context, orderID uuid.UUID, reviewerID uuid.UUID, notes string) error {
	if orderID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if reviewerID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "reviewer id required")
	}
	notes = strings.TrimSpace(notes)
	if notes == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "override notes required")
	}

	order, err := s.repo.FindOrder(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	if order.Status != enums.OrderStatusComplianceReview {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "override only allowed while in compliance review")
	}

	now := s.now().UTC()
	record := order.Compliance
	record.Flags = nil
	record.CheckedBy = &reviewerID
	record.CheckedAt = &now
	record.Notes = &notes

	if err := s.repo.SaveComplianceRecord(ctx, orderID, record, nil); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persist override")
	}

	entry := &models.OrderTimelineEntry{
		OrderID:  orderID,
		Status:   enums.OrderStatusComplianceReview,
		Message:  "compliance hold overridden: " + notes,
		ActorID:  &reviewerID,
		Internal: true,
	}
	if err := s.repo.AppendTimeline(ctx, entry); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "append timeline entry")
	}
	return nil
}

func joinFlags(flags []enums.ComplianceFlag) string {
	parts := make([]string, len(flags))
	for i, flag := range flags {
		parts[i] = flag.String()
	}
	return strings.Join(parts, ", ")
}
