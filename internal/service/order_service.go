package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/vaidashi/backoffice-api/internal/cache"
	"github.com/vaidashi/backoffice-api/internal/database"
	"github.com/vaidashi/backoffice-api/internal/models"
	"github.com/vaidashi/backoffice-api/internal/repository"
	apperrors "github.com/vaidashi/backoffice-api/pkg/errors"
	"github.com/vaidashi/backoffice-api/pkg/logger"
)

// OrderItem is one requested line of a new order
type OrderItem struct {
	VariantID string `json:"variant_id"`
	Quantity  int    `json:"quantity"`
}

// CreateOrderInput is the checkout request
type CreateOrderInput struct {
	CustomerID      string      `json:"customer_id"`
	PaymentMethod   string      `json:"payment_method"`
	ShippingAddress string      `json:"shipping_address"`
	Note            string      `json:"note"`
	Items           []OrderItem `json:"items"`
}

// OrderService handles order-related operations
type OrderService struct {
	db          *database.Database
	orderRepo   *repository.OrderRepository
	variantRepo *repository.VariantRepository
	outboxRepo  *repository.OutboxRepository
	transitions *TransitionService
	cache       cache.EntityCache
	logger      logger.Logger
}

// NewOrderService creates a new OrderService
func NewOrderService(
	db *database.Database,
	orderRepo *repository.OrderRepository,
	variantRepo *repository.VariantRepository,
	outboxRepo *repository.OutboxRepository,
	transitions *TransitionService,
	entityCache cache.EntityCache,
	logger logger.Logger,
) *OrderService {
	return &OrderService{
		db:          db,
		orderRepo:   orderRepo,
		variantRepo: variantRepo,
		outboxRepo:  outboxRepo,
		transitions: transitions,
		cache:       entityCache,
		logger:      logger,
	}
}

// mergeItems validates the requested lines and folds repeated variants
// together, keeping the order in which variants first appear.
func mergeItems(items []OrderItem) ([]OrderItem, error) {
	if len(items) == 0 {
		return nil, apperrors.NewInvalidInputError("order must contain at least one item")
	}

	index := make(map[string]int, len(items))
	merged := make([]OrderItem, 0, len(items))
	for _, it := range items {
		if strings.TrimSpace(it.VariantID) == "" {
			return nil, apperrors.NewInvalidInputError("variant_id is required")
		}
		if it.Quantity <= 0 {
			return nil, apperrors.NewInvalidInputError(fmt.Sprintf("quantity for %s must be positive", it.VariantID))
		}

		if i, ok := index[it.VariantID]; ok {
			merged[i].Quantity += it.Quantity
			continue
		}
		index[it.VariantID] = len(merged)
		merged = append(merged, it)
	}
	return merged, nil
}

func validateOrderInput(in CreateOrderInput) ([]OrderItem, error) {
	if strings.TrimSpace(in.CustomerID) == "" {
		return nil, apperrors.NewInvalidInputError("customer_id is required")
	}
	if strings.TrimSpace(in.ShippingAddress) == "" {
		return nil, apperrors.NewInvalidInputError("shipping_address is required")
	}
	if err := models.ValidatePaymentMethod(in.PaymentMethod); err != nil {
		return nil, apperrors.NewInvalidInputError(err.Error())
	}
	return mergeItems(in.Items)
}

// CreateOrder reserves stock, snapshots prices and creates the order with
// its pending payment and creation event in one transaction
func (s *OrderService) CreateOrder(ctx context.Context, in CreateOrderInput) (*models.Order, error) {
	items, err := validateOrderInput(in)
	if err != nil {
		return nil, err
	}

	order := models.NewOrder(in.CustomerID, in.PaymentMethod, in.ShippingAddress, in.Note)

	err = s.db.WithTx(ctx, func(tx *sqlx.Tx) error {
		ids := make([]string, len(items))
		for i, it := range items {
			ids[i] = it.VariantID
		}

		variants, err := s.variantRepo.LockInTx(ctx, tx, ids)
		if err != nil {
			return err
		}

		for _, it := range items {
			v, ok := variants[it.VariantID]
			if !ok {
				return apperrors.NewNotFoundError(fmt.Sprintf("variant %s not found", it.VariantID))
			}
			if v.Quantity < it.Quantity {
				return apperrors.NewConflictError(fmt.Sprintf("insufficient stock for variant %s: requested %d, available %d", v.ID, it.Quantity, v.Quantity)).
					WithContext("variant_id", v.ID)
			}
			if err := s.variantRepo.AdjustQuantityInTx(ctx, tx, v.ID, -it.Quantity); err != nil {
				return err
			}
			order.AddDetail(v.ID, it.Quantity, v.Price)
		}

		if err := s.orderRepo.CreateInTx(ctx, tx, order); err != nil {
			return err
		}

		payment := models.NewPayment(order)
		if err := s.orderRepo.CreatePaymentInTx(ctx, tx, payment); err != nil {
			return err
		}
		order.Payments = []*models.Payment{payment}

		event, err := models.NewCreatedEvent(models.StatusChangedData{
			EntityType: models.KindOrder,
			EntityID:   order.ID,
			NewStatus:  order.Status,
			ActorID:    in.CustomerID,
		})
		if err != nil {
			return fmt.Errorf("build order event: %w", err)
		}
		return s.outboxRepo.CreateInTx(ctx, tx, event)
	})
	if err != nil {
		s.logger.Error("Failed to create order", "error", err, "customerID", in.CustomerID)
		return nil, fromRepo("create order", models.KindOrder, order.ID, err)
	}

	s.logger.Info("Order created", "orderID", order.ID, "total", order.TotalAmount.String(), "items", len(order.Details))
	return order, nil
}

// GetOrder retrieves an order with its details and payments
func (s *OrderService) GetOrder(ctx context.Context, id string) (*models.Order, error) {
	return readThrough(ctx, s.cache, s.logger, models.KindOrder, id, func(ctx context.Context) (*models.Order, error) {
		return s.orderRepo.GetByID(ctx, id)
	})
}

// ListOrders retrieves a page of orders and the total matching the filter
func (s *OrderService) ListOrders(ctx context.Context, filter repository.ListFilter) ([]*models.Order, int, error) {
	orders, err := s.orderRepo.List(ctx, filter)
	if err != nil {
		return nil, 0, apperrors.NewPersistenceError("list orders", err)
	}

	total, err := s.orderRepo.Count(ctx, filter.Status)
	if err != nil {
		return nil, 0, apperrors.NewPersistenceError("count orders", err)
	}
	return orders, total, nil
}

// UpdateOrderStatus applies a guarded transition and returns the updated order
func (s *OrderService) UpdateOrderStatus(ctx context.Context, id string, req StatusChange) (*models.Order, error) {
	if _, err := s.transitions.Apply(ctx, models.KindOrder, id, req); err != nil {
		return nil, err
	}

	order, err := s.orderRepo.GetByID(ctx, id)
	if err != nil {
		return nil, fromRepo("get order", models.KindOrder, id, err)
	}
	return order, nil
}

// OrderHistory returns the status history of an existing order
func (s *OrderService) OrderHistory(ctx context.Context, id string) ([]*models.StatusHistory, error) {
	if _, err := s.GetOrder(ctx, id); err != nil {
		return nil, err
	}
	return s.transitions.History(ctx, models.KindOrder, id)
}
