package api

import (
	"context"

	"github.com/shopspring/decimal"
	"github.com/vaidashi/backoffice-api/internal/models"
	"github.com/vaidashi/backoffice-api/internal/repository"
	"github.com/vaidashi/backoffice-api/internal/service"
)

// OrderService is what the order endpoints need
type OrderService interface {
	CreateOrder(ctx context.Context, in service.CreateOrderInput) (*models.Order, error)
	GetOrder(ctx context.Context, id string) (*models.Order, error)
	ListOrders(ctx context.Context, filter repository.ListFilter) ([]*models.Order, int, error)
	UpdateOrderStatus(ctx context.Context, id string, req service.StatusChange) (*models.Order, error)
	OrderHistory(ctx context.Context, id string) ([]*models.StatusHistory, error)
}

// PurchaseOrderService is what the purchase order endpoints need
type PurchaseOrderService interface {
	CreatePurchaseOrder(ctx context.Context, in service.CreatePurchaseOrderInput) (*models.PurchaseOrder, error)
	GetPurchaseOrder(ctx context.Context, id string) (*models.PurchaseOrder, error)
	ListPurchaseOrders(ctx context.Context, filter repository.ListFilter) ([]*models.PurchaseOrder, error)
	AddDetail(ctx context.Context, id string, item service.PurchaseOrderItem) (*models.PurchaseOrder, error)
	UpdateDetail(ctx context.Context, id, detailID string, quantity int, unitPrice decimal.Decimal) (*models.PurchaseOrder, error)
	DeleteDetail(ctx context.Context, id, detailID string) (*models.PurchaseOrder, error)
	UpdatePurchaseOrderStatus(ctx context.Context, id string, req service.StatusChange) (*models.PurchaseOrder, error)
	PurchaseOrderHistory(ctx context.Context, id string) ([]*models.StatusHistory, error)
}

// InventoryCheckService is what the inventory check endpoints need
type InventoryCheckService interface {
	CreateInventoryCheck(ctx context.Context, in service.CreateInventoryCheckInput) (*models.InventoryCheck, error)
	GetInventoryCheck(ctx context.Context, id string) (*models.InventoryCheck, error)
	UpdateDetail(ctx context.Context, id, detailID string, actual int) (*models.InventoryCheck, error)
	UpdateInventoryCheckStatus(ctx context.Context, id string, req service.StatusChange) (*models.InventoryCheck, error)
	InventoryCheckHistory(ctx context.Context, id string) ([]*models.StatusHistory, error)
}

// SupportRequestService is what the support request endpoints need
type SupportRequestService interface {
	CreateSupportRequest(ctx context.Context, in service.CreateSupportRequestInput) (*models.SupportRequest, error)
	GetSupportRequest(ctx context.Context, id string) (*models.SupportRequest, error)
	ListSupportRequests(ctx context.Context, filter repository.ListFilter) ([]*models.SupportRequest, error)
	UpdateSupportRequestStatus(ctx context.Context, id string, req service.StatusChange) (*models.SupportRequest, error)
	SupportRequestHistory(ctx context.Context, id string) ([]*models.StatusHistory, error)
}

// VariantService serves stock lookups
type VariantService interface {
	GetVariant(ctx context.Context, id string) (*models.Variant, error)
}

// DeadLetterService backs the dead letter admin endpoints
type DeadLetterService interface {
	ListDeadLetters(ctx context.Context, filter repository.ListFilter) ([]*models.DeadLetterMessage, error)
	RetryDeadLetter(ctx context.Context, id int64) (*models.OutboxMessage, error)
	DiscardDeadLetter(ctx context.Context, id int64, reason string) error
}

// HealthChecker reports whether a dependency is reachable
type HealthChecker interface {
	Ping(ctx context.Context) error
}

// Breaker is the publisher's circuit breaker as seen by operators
type Breaker interface {
	Metrics() map[string]interface{}
	Reset()
}
