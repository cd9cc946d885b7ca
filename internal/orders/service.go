package orders

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/veloxrx/veloxrx-backend/internal/inventory"
	"github.com/veloxrx/veloxrx-backend/pkg/config"
	"github.com/veloxrx/veloxrx-backend/pkg/db/models"
	"github.com/veloxrx/veloxrx-backend/pkg/enums"
	pkgerrors "github.com/veloxrx/veloxrx-backend/pkg/errors"
	"github.com/veloxrx/veloxrx-backend/pkg/metrics"
	"github.com/veloxrx/veloxrx-backend/pkg/pagination"
	"github.com/veloxrx/veloxrx-backend/pkg/redis"
	"github.com/veloxrx/veloxrx-backend/pkg/types"
	"github.com/veloxrx/veloxrx-backend/pkg/validate"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// stockLedger is the slice of the inventory service the engine drives:
// reservations at creation, commits at fulfillment, releases on the way out.
type stockLedger interface {
	Reserve(ctx context.Context, tx *gorm.DB, variantID uuid.UUID, qty int) error
	Release(ctx context.Context, tx *gorm.DB, variantID uuid.UUID, qty int) error
	Commit(ctx context.Context, tx *gorm.DB, variantID uuid.UUID, qty int) error
}

type variantLoader interface {
	FindVariantByID(ctx context.Context, id uuid.UUID) (*models.ProductVariant, error)
}

// complianceGate re-checks an order whenever its prescription evidence
// changes.
type complianceGate interface {
	Evaluate(ctx context.Context, order *models.Order) (types.ComplianceRecord, error)
	Apply(ctx context.Context, tx *gorm.DB, orderID uuid.UUID, record types.ComplianceRecord, actorID *uuid.UUID) error
}

// idempotencyStore guards CreateOrder against client retries.
type idempotencyStore interface {
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	IdempotencyKey(scope, id string) string
	Del(ctx context.Context, keys ...string) error
}

var _ idempotencyStore = (*redis.Client)(nil)

// Service is the order engine: creation with all-or-nothing stock
// reservation, the status machine, payment and prescription intake, and the
// append-only timeline.
type Service interface {
	CreateOrder(ctx context.Context, input CreateOrderInput) (*models.Order, error)
	GetOrder(ctx context.Context, id uuid.UUID) (*models.Order, error)
	GetOrderByNumber(ctx context.Context, number string) (*models.Order, error)
	ListCustomerOrders(ctx context.Context, customerID uuid.UUID, page pagination.Params) ([]models.Order, string, error)
	UpdateStatus(ctx context.Context, input UpdateStatusInput) (*models.Order, error)
	ApplyPaymentResult(ctx context.Context, orderID uuid.UUID, result types.PaymentResult) (*models.Order, error)
	AttachPrescription(ctx context.Context, orderID uuid.UUID, doc types.DocumentRef) error
	AddTimelineEntry(ctx context.Context, orderID uuid.UUID, status enums.OrderStatus, message string, actorID *uuid.UUID, internal bool) error
	Cancel(ctx context.Context, orderID uuid.UUID, reason string, actorID *uuid.UUID) (*models.Order, error)
}

type service struct {
	repo        Repository
	tx          txRunner
	ledger      stockLedger
	variants    variantLoader
	gate        complianceGate
	idempotency idempotencyStore
	metrics     *metrics.OrderFlowMetrics
	cfg         config.OrderingConfig
	now         func() time.Time
}

// NewService builds the order engine. The idempotency store and metrics may
// be nil; everything else is required.
func NewService(
	repo Repository,
	tx txRunner,
	ledger stockLedger,
	variants variantLoader,
	gate complianceGate,
	idempotency idempotencyStore,
	flowMetrics *metrics.OrderFlowMetrics,
	cfg config.OrderingConfig,
) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if ledger == nil {
		return nil, fmt.Errorf("stock ledger required")
	}
	if variants == nil {
		return nil, fmt.Errorf("variant loader required")
	}
	if gate == nil {
		return nil, fmt.Errorf("compliance gate required")
	}
	if cfg.NumberPrefix == "" {
		return nil, fmt.Errorf("order number prefix required")
	}
	return &service{
		repo:        repo,
		tx:          tx,
		ledger:      ledger,
		variants:    variants,
		gate:        gate,
		idempotency: idempotency,
		metrics:     flowMetrics,
		cfg:         cfg,
		now:         time.Now,
	}, nil
}

// CreateOrderItem is one requested line.
type CreateOrderItem struct {
	VariantID uuid.UUID `json:"variant_id" validate:"required"`
	Quantity  int       `json:"quantity" validate:"required,gt=0"`
}

// CreateOrderInput carries everything needed to place an order.
type CreateOrderInput struct {
	CustomerID     uuid.UUID            `json:"customer_id" validate:"required"`
	Items          []CreateOrderItem    `json:"items" validate:"required,min=1,dive"`
	ShippingAddr   types.Address        `json:"shipping_address"`
	BillingAddr    *types.Address       `json:"billing_address,omitempty"`
	Discount       *types.Discount      `json:"discount,omitempty"`
	Tax            types.Tax            `json:"tax"`
	Shipping       types.ShippingDetail `json:"shipping"`
	Source         enums.OrderSource    `json:"source"`
	Currency       string               `json:"currency"`
	RushOrder      bool                 `json:"rush_order"`
	CustomerNotes  *string              `json:"customer_notes,omitempty"`
	IdempotencyKey string               `json:"idempotency_key,omitempty"`
}

// UpdateStatusInput drives a single lifecycle transition.
type UpdateStatusInput struct {
	OrderID   uuid.UUID
	NewStatus enums.OrderStatus
	Message   string
	ActorID   *uuid.UUID
}

func (s *service) CreateOrder(ctx context.Context, input CreateOrderInput) (*models.Order, error) {
	started := s.now()

	if err := validate.Struct(&input); err != nil {
		return nil, err
	}
	if err := input.ShippingAddr.Validate(); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid shipping address")
	}
	input.ShippingAddr.Normalize()
	if input.BillingAddr != nil {
		input.BillingAddr.Normalize()
	}
	if input.Source == "" {
		input.Source = enums.OrderSourceWeb
	}
	if !input.Source.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid order source %q", input.Source))
	}
	if input.Currency == "" {
		input.Currency = "USD"
	}
	if input.Discount != nil && !input.Discount.Type.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid discount type %q", input.Discount.Type))
	}
	seen := make(map[uuid.UUID]struct{}, len(input.Items))
	for _, item := range input.Items {
		if _, dup := seen[item.VariantID]; dup {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "duplicate variant in order items").
				WithDetails(map[string]string{"variant_id": item.VariantID.String()})
		}
		seen[item.VariantID] = struct{}{}
	}

	releaseKey, existing, err := s.claimIdempotencyKey(ctx, input.IdempotencyKey)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	order, err := s.buildOrder(ctx, input)
	if err != nil {
		releaseKey()
		return nil, err
	}

	record, err := s.gate.Evaluate(ctx, order)
	if err != nil {
		releaseKey()
		return nil, err
	}
	order.Compliance = record
	order.Prescription.Required = record.PrescriptionRequired

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		for _, item := range order.Items {
			if err := s.ledger.Reserve(ctx, tx, item.VariantID, item.Quantity); err != nil {
				return err
			}
		}

		number, err := s.nextOrderNumber(ctx, tx, started)
		if err != nil {
			return err
		}
		order.OrderNumber = number

		repo := s.repo.WithTx(tx)
		if _, err := repo.Create(ctx, order); err != nil {
			return err
		}
		return repo.AppendTimeline(ctx, &models.OrderTimelineEntry{
			OrderID: order.ID,
			Status:  enums.OrderStatusPending,
			Message: "order placed",
		})
	})
	if err != nil {
		releaseKey()
		return nil, err
	}

	s.metrics.IncCreated(order.Source.String())
	s.metrics.ObserveCheckoutDuration(s.now().Sub(started))
	return s.repo.FindByID(ctx, order.ID)
}

// buildOrder prices each line and assembles the unsaved aggregate.
func (s *service) buildOrder(ctx context.Context, input CreateOrderInput) (*models.Order, error) {
	items := make([]models.OrderItem, 0, len(input.Items))
	for _, requested := range input.Items {
		variant, err := s.variants.FindVariantByID(ctx, requested.VariantID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product variant not found").
					WithDetails(map[string]string{"variant_id": requested.VariantID.String()})
			}
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "failed to load product variant")
		}
		unitPrice := inventory.UnitPrice(*variant, requested.Quantity)
		items = append(items, models.OrderItem{
			ProductID:     variant.ProductID,
			VariantID:     variant.ID,
			SKU:           variant.SKU,
			Name:          variant.Name,
			Concentration: variant.Concentration,
			Quantity:      requested.Quantity,
			UnitPrice:     unitPrice,
			LineTotal:     unitPrice.Mul(decimal.NewFromInt(int64(requested.Quantity))),
		})
	}

	totals := CalculateTotals(items, input.Discount, input.Tax, input.Shipping)

	order := &models.Order{
		CustomerID:    input.CustomerID,
		Status:        enums.OrderStatusPending,
		Currency:      input.Currency,
		Subtotal:      totals.Subtotal,
		Tax:           input.Tax,
		Shipping:      input.Shipping,
		Total:         totals.Total,
		ShippingAddr:  input.ShippingAddr,
		BillingAddr:   input.BillingAddr,
		Source:        input.Source,
		RushOrder:     input.RushOrder,
		CustomerNotes: input.CustomerNotes,
		Items:         items,
	}
	if input.Discount != nil {
		order.Discount = *input.Discount
	}
	if input.IdempotencyKey != "" {
		key := input.IdempotencyKey
		order.IdempotencyKey = &key
	}
	return order, nil
}

// claimIdempotencyKey reserves the key in redis. When another request already
// holds it, the stored order is returned if it finished, and a conflict if it
// is still in flight. The returned func releases the claim after a failure.
func (s *service) claimIdempotencyKey(ctx context.Context, key string) (func(), *models.Order, error) {
	noop := func() {}
	if key == "" || s.idempotency == nil {
		return noop, nil, nil
	}

	redisKey := s.idempotency.IdempotencyKey("orders", key)
	claimed, err := s.idempotency.SetNX(ctx, redisKey, "1", s.cfg.IdempotencyTTL)
	if err != nil {
		return noop, nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "idempotency store unavailable")
	}
	if claimed {
		release := func() {
			// runs after a failed creation; the request context may be gone
			_ = s.idempotency.Del(context.Background(), redisKey)
		}
		return release, nil, nil
	}

	existing, err := s.repo.FindByIdempotencyKey(ctx, key)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return noop, nil, pkgerrors.New(pkgerrors.CodeConflict, "order creation already in flight")
		}
		return noop, nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "failed to look up idempotent order")
	}
	return noop, existing, nil
}

func (s *service) GetOrder(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	order, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "failed to load order")
	}
	return order, nil
}

func (s *service) GetOrderByNumber(ctx context.Context, number string) (*models.Order, error) {
	order, err := s.repo.FindByNumber(ctx, number)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "failed to load order")
	}
	return order, nil
}

func (s *service) ListCustomerOrders(ctx context.Context, customerID uuid.UUID, page pagination.Params) ([]models.Order, string, error) {
	if customerID == uuid.Nil {
		return nil, "", pkgerrors.New(pkgerrors.CodeValidation, "customer id required")
	}
	orders, next, err := s.repo.ListByCustomer(ctx, customerID, page)
	if err != nil {
		return nil, "", pkgerrors.Wrap(pkgerrors.CodeInternal, err, "failed to list orders")
	}
	return orders, next, nil
}

func (s *service) UpdateStatus(ctx context.Context, input UpdateStatusInput) (*models.Order, error) {
	if !input.NewStatus.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid order status %q", input.NewStatus))
	}
	order, err := s.GetOrder(ctx, input.OrderID)
	if err != nil {
		return nil, err
	}
	if err := s.transition(ctx, order, input.NewStatus, input.Message, input.ActorID, nil); err != nil {
		return nil, err
	}
	return s.repo.FindByID(ctx, order.ID)
}

// transition applies a single status change plus its ledger side effects in
// one transaction. extra carries caller-supplied column updates.
func (s *service) transition(ctx context.Context, order *models.Order, to enums.OrderStatus, message string, actorID *uuid.UUID, extra map[string]any) error {
	from := order.Status
	if !CanTransition(from, to) {
		return pkgerrors.New(pkgerrors.CodeStateConflict,
			fmt.Sprintf("cannot transition order from %s to %s", from, to)).
			WithDetails(map[string]string{"from": from.String(), "to": to.String()})
	}
	var refreshed *types.ComplianceRecord
	switch to {
	case enums.OrderStatusProcessing:
		// A stale failing record may have been resolved out-of-band, e.g.
		// the registry verified the prescriber after the hold. Re-run the
		// gate before deciding, and persist the fresh snapshot.
		if from == enums.OrderStatusComplianceReview && !order.Compliance.Passed() {
			record, err := s.gate.Evaluate(ctx, order)
			if err != nil {
				return err
			}
			if !record.Passed() {
				return pkgerrors.New(pkgerrors.CodeComplianceBlocked, "order is held by the compliance gate").
					WithDetails(map[string]any{"flags": record.Flags})
			}
			refreshed = &record
		}
	case enums.OrderStatusRefunded:
		if !order.Payment.Succeeded() {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "cannot refund an unpaid order")
		}
	}

	now := s.now()
	fields := map[string]any{"status": to}
	for column, value := range extra {
		fields[column] = value
	}
	if refreshed != nil {
		fields["compliance"] = *refreshed
	}

	switch to {
	case enums.OrderStatusShipped:
		shipping := order.Shipping
		shipping.ShippedAt = &now
		fields["shipping"] = shipping
	case enums.OrderStatusDelivered:
		shipping := order.Shipping
		shipping.DeliveredAt = &now
		fields["shipping"] = shipping
		fields["completed_at"] = now
	case enums.OrderStatusCancelled:
		fields["cancelled_at"] = now
	case enums.OrderStatusRefunded:
		// a refund closes the order; keep the delivery timestamp when the
		// order already completed
		if order.CompletedAt == nil {
			fields["completed_at"] = now
		}
	}

	if message == "" {
		message = fmt.Sprintf("status changed to %s", to)
	}

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		switch {
		case to == enums.OrderStatusShipped:
			for _, item := range order.Items {
				if err := s.ledger.Commit(ctx, tx, item.VariantID, item.Quantity); err != nil {
					return err
				}
			}
		case to == enums.OrderStatusCancelled,
			to == enums.OrderStatusRefunded && holdsReservations(from):
			for _, item := range order.Items {
				if err := s.ledger.Release(ctx, tx, item.VariantID, item.Quantity); err != nil {
					return err
				}
			}
		}

		repo := s.repo.WithTx(tx)
		if err := repo.UpdateFields(ctx, order.ID, fields); err != nil {
			return err
		}
		return repo.AppendTimeline(ctx, &models.OrderTimelineEntry{
			OrderID: order.ID,
			Status:  to,
			Message: message,
			ActorID: actorID,
		})
	})
	if err != nil {
		return err
	}

	if to == enums.OrderStatusCancelled {
		s.metrics.IncCancelled(from.String())
	}
	return nil
}

func (s *service) ApplyPaymentResult(ctx context.Context, orderID uuid.UUID, result types.PaymentResult) (*models.Order, error) {
	if !result.Status.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid payment status %q", result.Status))
	}
	order, err := s.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.Status != enums.OrderStatusPaymentPending {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "order is not awaiting payment").
			WithDetails(map[string]string{"status": order.Status.String()})
	}

	now := s.now()
	summary := types.PaymentSummary{
		Method:        order.Payment.Method,
		Amount:        result.Amount,
		Currency:      result.Currency,
		Status:        result.Status,
		TransactionID: result.TransactionID,
		FailureReason: result.FailureReason,
	}

	var to enums.OrderStatus
	var message string
	if result.Status == enums.PaymentStatusSucceeded {
		summary.PaidAt = &now
		to = enums.OrderStatusConfirmed
		message = "payment confirmed"
	} else {
		to = enums.OrderStatusPaymentFailed
		message = "payment failed"
		if result.FailureReason != nil {
			message = fmt.Sprintf("payment failed: %s", *result.FailureReason)
		}
	}

	if err := s.transition(ctx, order, to, message, nil, map[string]any{"payment": summary}); err != nil {
		return nil, err
	}
	return s.repo.FindByID(ctx, order.ID)
}

func (s *service) AttachPrescription(ctx context.Context, orderID uuid.UUID, doc types.DocumentRef) error {
	if strings.TrimSpace(doc.Reference) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "document reference required")
	}
	order, err := s.GetOrder(ctx, orderID)
	if err != nil {
		return err
	}
	if order.Status.IsTerminal() {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "cannot attach a prescription to a closed order")
	}

	uploadedAt := doc.UploadedAt
	if uploadedAt.IsZero() {
		uploadedAt = s.now()
	}
	evidence := order.Prescription
	evidence.Provided = true
	evidence.Reference = doc.Reference
	evidence.Filename = doc.Filename
	evidence.UploadedAt = &uploadedAt
	order.Prescription = evidence

	record, err := s.gate.Evaluate(ctx, order)
	if err != nil {
		return err
	}

	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if err := repo.UpdateFields(ctx, order.ID, map[string]any{"prescription": evidence}); err != nil {
			return err
		}
		if err := repo.AppendTimeline(ctx, &models.OrderTimelineEntry{
			OrderID:  order.ID,
			Status:   order.Status,
			Message:  fmt.Sprintf("prescription attached: %s", doc.Filename),
			Internal: true,
		}); err != nil {
			return err
		}
		return s.gate.Apply(ctx, tx, order.ID, record, nil)
	})
}

func (s *service) AddTimelineEntry(ctx context.Context, orderID uuid.UUID, status enums.OrderStatus, message string, actorID *uuid.UUID, internal bool) error {
	if strings.TrimSpace(message) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "timeline message required")
	}
	if !status.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid order status %q", status))
	}
	order, err := s.GetOrder(ctx, orderID)
	if err != nil {
		return err
	}
	if order.Status.IsTerminal() {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "cannot annotate a closed order")
	}
	return s.repo.AppendTimeline(ctx, &models.OrderTimelineEntry{
		OrderID:  orderID,
		Status:   status,
		Message:  message,
		ActorID:  actorID,
		Internal: internal,
	})
}

func (s *service) Cancel(ctx context.Context, orderID uuid.UUID, reason string, actorID *uuid.UUID) (*models.Order, error) {
	if strings.TrimSpace(reason) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cancellation reason required")
	}
	order, err := s.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !CanCancel(*order) {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "order can no longer be cancelled").
			WithDetails(map[string]string{"status": order.Status.String()})
	}
	message := fmt.Sprintf("order cancelled: %s", reason)
	if err := s.transition(ctx, order, enums.OrderStatusCancelled, message, actorID, map[string]any{"cancel_reason": reason}); err != nil {
		return nil, err
	}
	return s.repo.FindByID(ctx, order.ID)
}
