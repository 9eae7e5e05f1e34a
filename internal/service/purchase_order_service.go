package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"github.com/vaidashi/backoffice-api/internal/cache"
	"github.com/vaidashi/backoffice-api/internal/database"
	"github.com/vaidashi/backoffice-api/internal/models"
	"github.com/vaidashi/backoffice-api/internal/repository"
	apperrors "github.com/vaidashi/backoffice-api/pkg/errors"
	"github.com/vaidashi/backoffice-api/pkg/logger"
)

// PurchaseOrderItem is one line of a purchase order
type PurchaseOrderItem struct {
	VariantID string          `json:"variant_id"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

func (it PurchaseOrderItem) validate() error {
	if strings.TrimSpace(it.VariantID) == "" {
		return apperrors.NewInvalidInputError("variant_id is required")
	}
	if it.Quantity <= 0 {
		return apperrors.NewInvalidInputError("quantity must be positive")
	}
	if it.UnitPrice.IsNegative() {
		return apperrors.NewInvalidInputError("unit_price must not be negative")
	}
	return nil
}

// CreatePurchaseOrderInput is the request to open a purchase order
type CreatePurchaseOrderInput struct {
	SupplierID string              `json:"supplier_id"`
	Note       string              `json:"note"`
	Items      []PurchaseOrderItem `json:"items"`
	CreatedBy  string              `json:"-"`
}

// PurchaseOrderService handles purchase orders and their lines
type PurchaseOrderService struct {
	db          *database.Database
	poRepo      *repository.PurchaseOrderRepository
	variantRepo *repository.VariantRepository
	outboxRepo  *repository.OutboxRepository
	transitions *TransitionService
	cache       cache.EntityCache
	logger      logger.Logger
}

// NewPurchaseOrderService creates a new PurchaseOrderService
func NewPurchaseOrderService(
	db *database.Database,
	poRepo *repository.PurchaseOrderRepository,
	variantRepo *repository.VariantRepository,
	outboxRepo *repository.OutboxRepository,
	transitions *TransitionService,
	entityCache cache.EntityCache,
	logger logger.Logger,
) *PurchaseOrderService {
	return &PurchaseOrderService{
		db:          db,
		poRepo:      poRepo,
		variantRepo: variantRepo,
		outboxRepo:  outboxRepo,
		transitions: transitions,
		cache:       entityCache,
		logger:      logger,
	}
}

// CreatePurchaseOrder opens a pending purchase order
func (s *PurchaseOrderService) CreatePurchaseOrder(ctx context.Context, in CreatePurchaseOrderInput) (*models.PurchaseOrder, error) {
	if strings.TrimSpace(in.SupplierID) == "" {
		return nil, apperrors.NewInvalidInputError("supplier_id is required")
	}
	for _, it := range in.Items {
		if err := it.validate(); err != nil {
			return nil, err
		}
	}

	po := models.NewPurchaseOrder(in.SupplierID, in.Note, in.CreatedBy)
	for _, it := range in.Items {
		po.Details = append(po.Details, models.NewPurchaseOrderDetail(po.ID, it.VariantID, it.Quantity, it.UnitPrice))
	}
	po.TotalAmount = models.SumPurchaseOrderDetails(po.Details)

	err := s.db.WithTx(ctx, func(tx *sqlx.Tx) error {
		if err := s.requireVariants(ctx, tx, in.Items); err != nil {
			return err
		}
		if err := s.poRepo.CreateInTx(ctx, tx, po); err != nil {
			return err
		}

		event, err := models.NewCreatedEvent(models.StatusChangedData{
			EntityType: models.KindPurchaseOrder,
			EntityID:   po.ID,
			NewStatus:  po.Status,
			ActorID:    in.CreatedBy,
		})
		if err != nil {
			return fmt.Errorf("build purchase order event: %w", err)
		}
		return s.outboxRepo.CreateInTx(ctx, tx, event)
	})
	if err != nil {
		return nil, fromRepo("create purchase order", models.KindPurchaseOrder, po.ID, err)
	}

	s.logger.Info("Purchase order created", "purchaseOrderID", po.ID, "supplierID", po.SupplierID)
	return po, nil
}

func (s *PurchaseOrderService) requireVariants(ctx context.Context, tx *sqlx.Tx, items []PurchaseOrderItem) error {
	if len(items) == 0 {
		return nil
	}

	ids := make([]string, len(items))
	for i, it := range items {
		ids[i] = it.VariantID
	}
	found, err := s.variantRepo.LockInTx(ctx, tx, ids)
	if err != nil {
		return err
	}
	for _, id := range ids {
		if _, ok := found[id]; !ok {
			return apperrors.NewNotFoundError(fmt.Sprintf("variant %s not found", id))
		}
	}
	return nil
}

// GetPurchaseOrder retrieves a purchase order with its lines
func (s *PurchaseOrderService) GetPurchaseOrder(ctx context.Context, id string) (*models.PurchaseOrder, error) {
	return readThrough(ctx, s.cache, s.logger, models.KindPurchaseOrder, id, func(ctx context.Context) (*models.PurchaseOrder, error) {
		return s.poRepo.GetByID(ctx, id)
	})
}

// ListPurchaseOrders retrieves a page of purchase orders
func (s *PurchaseOrderService) ListPurchaseOrders(ctx context.Context, filter repository.ListFilter) ([]*models.PurchaseOrder, error) {
	pos, err := s.poRepo.List(ctx, filter)
	if err != nil {
		return nil, apperrors.NewPersistenceError("list purchase orders", err)
	}
	return pos, nil
}

// AddDetail appends a line to a pending purchase order
func (s *PurchaseOrderService) AddDetail(ctx context.Context, id string, item PurchaseOrderItem) (*models.PurchaseOrder, error) {
	if err := item.validate(); err != nil {
		return nil, err
	}

	return s.editDetails(ctx, id, func(tx *sqlx.Tx, _ *models.PurchaseOrder) error {
		if err := s.requireVariants(ctx, tx, []PurchaseOrderItem{item}); err != nil {
			return err
		}
		return s.poRepo.AddDetailInTx(ctx, tx, models.NewPurchaseOrderDetail(id, item.VariantID, item.Quantity, item.UnitPrice))
	})
}

// UpdateDetail changes quantity and unit price of a line of a pending purchase order
func (s *PurchaseOrderService) UpdateDetail(ctx context.Context, id, detailID string, quantity int, unitPrice decimal.Decimal) (*models.PurchaseOrder, error) {
	if quantity <= 0 {
		return nil, apperrors.NewInvalidInputError("quantity must be positive")
	}
	if unitPrice.IsNegative() {
		return nil, apperrors.NewInvalidInputError("unit_price must not be negative")
	}

	return s.editDetails(ctx, id, func(tx *sqlx.Tx, _ *models.PurchaseOrder) error {
		return s.detailNotFound(detailID, s.poRepo.UpdateDetailInTx(ctx, tx, &models.PurchaseOrderDetail{
			ID:              detailID,
			PurchaseOrderID: id,
			Quantity:        quantity,
			UnitPrice:       unitPrice,
		}))
	})
}

// DeleteDetail removes a line from a pending purchase order
func (s *PurchaseOrderService) DeleteDetail(ctx context.Context, id, detailID string) (*models.PurchaseOrder, error) {
	return s.editDetails(ctx, id, func(tx *sqlx.Tx, _ *models.PurchaseOrder) error {
		return s.detailNotFound(detailID, s.poRepo.DeleteDetailInTx(ctx, tx, id, detailID))
	})
}

func (s *PurchaseOrderService) detailNotFound(detailID string, err error) error {
	if err != nil && isRepoNotFound(err) {
		return apperrors.NewNotFoundError(fmt.Sprintf("purchase order detail %s not found", detailID))
	}
	return err
}

// editDetails locks the purchase order, refuses the edit outside its editable
// status, runs edit and recomputes the total, all in one transaction.
func (s *PurchaseOrderService) editDetails(ctx context.Context, id string, edit func(tx *sqlx.Tx, po *models.PurchaseOrder) error) (*models.PurchaseOrder, error) {
	err := s.db.WithTx(ctx, func(tx *sqlx.Tx) error {
		po, err := s.poRepo.LockInTx(ctx, tx, id)
		if err != nil {
			return err
		}
		if !models.DetailsEditable(models.KindPurchaseOrder, po.Status) {
			return notEditable(models.KindPurchaseOrder, po.Status)
		}

		if err := edit(tx, po); err != nil {
			return err
		}

		details, err := s.poRepo.DetailsInTx(ctx, tx, id)
		if err != nil {
			return err
		}
		return s.poRepo.UpdateTotalInTx(ctx, tx, id, models.SumPurchaseOrderDetails(details))
	})
	if err != nil {
		return nil, fromRepo("edit purchase order details", models.KindPurchaseOrder, id, err)
	}

	if err := s.cache.Invalidate(ctx, models.KindPurchaseOrder, id); err != nil {
		s.logger.Warn("Failed to invalidate cached entity", "kind", models.KindPurchaseOrder, "id", id, "error", err)
	}

	po, err := s.poRepo.GetByID(ctx, id)
	if err != nil {
		return nil, fromRepo("get purchase order", models.KindPurchaseOrder, id, err)
	}
	return po, nil
}

// UpdatePurchaseOrderStatus applies a guarded transition and returns the updated purchase order
func (s *PurchaseOrderService) UpdatePurchaseOrderStatus(ctx context.Context, id string, req StatusChange) (*models.PurchaseOrder, error) {
	if _, err := s.transitions.Apply(ctx, models.KindPurchaseOrder, id, req); err != nil {
		return nil, err
	}

	po, err := s.poRepo.GetByID(ctx, id)
	if err != nil {
		return nil, fromRepo("get purchase order", models.KindPurchaseOrder, id, err)
	}
	return po, nil
}

// PurchaseOrderHistory returns the status history of an existing purchase order
func (s *PurchaseOrderService) PurchaseOrderHistory(ctx context.Context, id string) ([]*models.StatusHistory, error) {
	if _, err := s.GetPurchaseOrder(ctx, id); err != nil {
		return nil, err
	}
	return s.transitions.History(ctx, models.KindPurchaseOrder, id)
}
