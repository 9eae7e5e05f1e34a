package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"github.com/vaidashi/backoffice-api/internal/cache"
	"github.com/vaidashi/backoffice-api/internal/database"
	"github.com/vaidashi/backoffice-api/internal/models"
	"github.com/vaidashi/backoffice-api/internal/repository"
	"github.com/vaidashi/backoffice-api/internal/testutil"
	"github.com/vaidashi/backoffice-api/internal/transition"
	apperrors "github.com/vaidashi/backoffice-api/pkg/errors"
	"github.com/vaidashi/backoffice-api/pkg/logger"
)

type services struct {
	db          *database.Database
	outbox      *repository.OutboxRepository
	orders      *OrderService
	pos         *PurchaseOrderService
	checks      *InventoryCheckService
	support     *SupportRequestService
	deadLetters *DeadLetterService
	transitions *TransitionService
}

func newServices(t *testing.T) *services {
	t.Helper()

	db := testutil.DB(t)
	log := logger.NewNop()
	c := cache.NewNoopEntityCache()

	history := repository.NewHistoryRepository(db, log)
	dlq := repository.NewDeadLetterRepository(db, log)
	variants := repository.NewVariantRepository(db, log)
	orders := repository.NewOrderRepository(db, log)
	pos := repository.NewPurchaseOrderRepository(db, log)
	checks := repository.NewInventoryCheckRepository(db, log)
	outbox := repository.NewOutboxRepository(db, dlq, log)
	repos := Repositories{
		Variants:        variants,
		Orders:          orders,
		PurchaseOrders:  pos,
		InventoryChecks: checks,
		Outbox:          outbox,
	}

	engine := transition.NewEngine[*sqlx.Tx](repository.NewTransitionStore(db, history), models.TransitionTables(), log)
	if err := RegisterEffects(engine, repos); err != nil {
		t.Fatalf("RegisterEffects() error = %v", err)
	}
	transitions := NewTransitionService(engine, history, c, log)

	return &services{
		db:          db,
		outbox:      outbox,
		orders:      NewOrderService(db, orders, variants, outbox, transitions, c, log),
		pos:         NewPurchaseOrderService(db, pos, variants, outbox, transitions, c, log),
		checks:      NewInventoryCheckService(db, checks, variants, outbox, transitions, c, log),
		support:     NewSupportRequestService(db, repository.NewSupportRequestRepository(db, log), outbox, transitions, c, log),
		deadLetters: NewDeadLetterService(db, dlq, outbox, log),
		transitions: transitions,
	}
}

func TestCancelOrderRestocksAndCancelsPayments(t *testing.T) {
	s := newServices(t)
	ctx := context.Background()
	a := testutil.SeedVariant(t, s.db, 10, "5.00")
	b := testutil.SeedVariant(t, s.db, 4, "2.50")

	order, err := s.orders.CreateOrder(ctx, CreateOrderInput{
		CustomerID:      "cus-1",
		PaymentMethod:   models.PaymentMethodCOD,
		ShippingAddress: "1 Main St",
		Items:           []OrderItem{{VariantID: a.ID, Quantity: 3}, {VariantID: b.ID, Quantity: 4}},
	})
	if err != nil {
		t.Fatalf("CreateOrder() error = %v", err)
	}
	if !order.TotalAmount.Equal(decimal.RequireFromString("25")) {
		t.Fatalf("TotalAmount = %s, want 25", order.TotalAmount)
	}
	if testutil.VariantQuantity(t, s.db, a.ID) != 7 || testutil.VariantQuantity(t, s.db, b.ID) != 0 {
		t.Fatal("stock was not reserved at checkout")
	}

	for _, to := range []string{models.OrderStatusProcessing, models.OrderStatusCancelled} {
		if _, err := s.orders.UpdateOrderStatus(ctx, order.ID, StatusChange{Status: to, ActorID: "usr-1"}); err != nil {
			t.Fatalf("-> %s: %v", to, err)
		}
	}

	if testutil.VariantQuantity(t, s.db, a.ID) != 10 || testutil.VariantQuantity(t, s.db, b.ID) != 4 {
		t.Fatal("cancellation did not restock")
	}

	got, err := s.orders.GetOrder(ctx, order.ID)
	if err != nil {
		t.Fatalf("GetOrder() error = %v", err)
	}
	if got.Status != models.OrderStatusCancelled || got.Payments[0].Status != models.PaymentStatusCancelled {
		t.Fatalf("order = %s, payment = %s", got.Status, got.Payments[0].Status)
	}

	history, err := s.orders.OrderHistory(ctx, order.ID)
	if err != nil || len(history) != 2 {
		t.Fatalf("OrderHistory() = %d records, %v, want 2", len(history), err)
	}

	// one creation event plus one per transition
	counts, err := s.outbox.CountByStatus(ctx)
	if err != nil || counts[models.OutboxStatusPending] != 3 {
		t.Fatalf("pending outbox = %v, %v, want 3", counts, err)
	}

	_, err = s.orders.UpdateOrderStatus(ctx, order.ID, StatusChange{Status: models.OrderStatusProcessing})
	if !errors.Is(err, apperrors.ErrInvalidTransition) {
		t.Fatalf("reopen error = %v, want invalid transition", err)
	}
	if testutil.VariantQuantity(t, s.db, a.ID) != 10 {
		t.Fatal("rejected transition changed stock")
	}
}

func TestCreateOrderInsufficientStock(t *testing.T) {
	s := newServices(t)
	ctx := context.Background()
	v := testutil.SeedVariant(t, s.db, 1, "5.00")

	_, err := s.orders.CreateOrder(ctx, CreateOrderInput{
		CustomerID:      "cus-1",
		PaymentMethod:   models.PaymentMethodVNPay,
		ShippingAddress: "1 Main St",
		Items:           []OrderItem{{VariantID: v.ID, Quantity: 2}},
	})
	if !errors.Is(err, apperrors.ErrConflict) {
		t.Fatalf("CreateOrder() error = %v, want conflict", err)
	}

	_, err = s.orders.CreateOrder(ctx, CreateOrderInput{
		CustomerID:      "cus-1",
		PaymentMethod:   models.PaymentMethodVNPay,
		ShippingAddress: "1 Main St",
		Items:           []OrderItem{{VariantID: "var-missing", Quantity: 1}},
	})
	if !errors.Is(err, apperrors.ErrNotFound) {
		t.Fatalf("CreateOrder(missing variant) error = %v, want not found", err)
	}
	if testutil.VariantQuantity(t, s.db, v.ID) != 1 {
		t.Fatal("failed checkout changed stock")
	}
}

func TestDeliveredOrderSettlesPayment(t *testing.T) {
	s := newServices(t)
	ctx := context.Background()
	v := testutil.SeedVariant(t, s.db, 5, "3.00")

	order, err := s.orders.CreateOrder(ctx, CreateOrderInput{
		CustomerID:      "cus-1",
		PaymentMethod:   models.PaymentMethodCOD,
		ShippingAddress: "1 Main St",
		Items:           []OrderItem{{VariantID: v.ID, Quantity: 1}},
	})
	if err != nil {
		t.Fatal(err)
	}

	path := []string{
		models.OrderStatusProcessing, models.OrderStatusConfirmed, models.OrderStatusPreparing,
		models.OrderStatusPacked, models.OrderStatusShipping, models.OrderStatusDelivered,
	}
	var got *models.Order
	for _, to := range path {
		if got, err = s.orders.UpdateOrderStatus(ctx, order.ID, StatusChange{Status: to}); err != nil {
			t.Fatalf("-> %s: %v", to, err)
		}
	}

	if got.Payments[0].Status != models.PaymentStatusPaid || got.Payments[0].PaidAt == nil {
		t.Fatalf("payment = %+v, want paid", got.Payments[0])
	}
}

func TestPurchaseOrderLifecycle(t *testing.T) {
	s := newServices(t)
	ctx := context.Background()
	v := testutil.SeedVariant(t, s.db, 2, "1.00")

	po, err := s.pos.CreatePurchaseOrder(ctx, CreatePurchaseOrderInput{
		SupplierID: "sup-1",
		Items:      []PurchaseOrderItem{{VariantID: v.ID, Quantity: 5, UnitPrice: decimal.RequireFromString("0.80")}},
		CreatedBy:  "usr-1",
	})
	if err != nil {
		t.Fatalf("CreatePurchaseOrder() error = %v", err)
	}

	po, err = s.pos.AddDetail(ctx, po.ID, PurchaseOrderItem{VariantID: v.ID, Quantity: 5, UnitPrice: decimal.RequireFromString("1.00")})
	if err != nil {
		t.Fatalf("AddDetail() error = %v", err)
	}
	if !po.TotalAmount.Equal(decimal.RequireFromString("9")) {
		t.Fatalf("TotalAmount = %s, want 9", po.TotalAmount)
	}

	if _, err := s.pos.UpdatePurchaseOrderStatus(ctx, po.ID, StatusChange{Status: models.PurchaseOrderStatusProcessing}); err != nil {
		t.Fatal(err)
	}

	_, err = s.pos.AddDetail(ctx, po.ID, PurchaseOrderItem{VariantID: v.ID, Quantity: 1})
	if !errors.Is(err, apperrors.ErrConflict) {
		t.Fatalf("AddDetail(processing) error = %v, want conflict", err)
	}

	if _, err := s.pos.UpdatePurchaseOrderStatus(ctx, po.ID, StatusChange{Status: models.PurchaseOrderStatusCompleted}); err != nil {
		t.Fatal(err)
	}
	if q := testutil.VariantQuantity(t, s.db, v.ID); q != 12 {
		t.Fatalf("quantity = %d, want 12", q)
	}
}

func TestInventoryCheckCompletionAppliesCounts(t *testing.T) {
	s := newServices(t)
	ctx := context.Background()
	v := testutil.SeedVariant(t, s.db, 8, "1.00")

	ic, err := s.checks.CreateInventoryCheck(ctx, CreateInventoryCheckInput{Items: []CountItem{{VariantID: v.ID, ActualQuantity: 6}}})
	if err != nil {
		t.Fatalf("CreateInventoryCheck() error = %v", err)
	}
	if ic.Details[0].SystemQuantity != 8 {
		t.Fatalf("SystemQuantity = %d, want 8", ic.Details[0].SystemQuantity)
	}

	if _, err := s.checks.UpdateDetail(ctx, ic.ID, ic.Details[0].ID, 5); err != nil {
		t.Fatalf("UpdateDetail() error = %v", err)
	}
	if _, err := s.checks.UpdateInventoryCheckStatus(ctx, ic.ID, StatusChange{Status: models.InventoryCheckStatusCompleted}); err != nil {
		t.Fatal(err)
	}
	if q := testutil.VariantQuantity(t, s.db, v.ID); q != 5 {
		t.Fatalf("quantity = %d, want 5", q)
	}

	if _, err := s.checks.UpdateDetail(ctx, ic.ID, ic.Details[0].ID, 1); !errors.Is(err, apperrors.ErrConflict) {
		t.Fatalf("UpdateDetail(completed) error = %v, want conflict", err)
	}
}

func TestRetryDeadLetterRequeues(t *testing.T) {
	s := newServices(t)
	ctx := context.Background()

	sr, err := s.support.CreateSupportRequest(ctx, CreateSupportRequestInput{CustomerID: "cus-1", Subject: "Hi", Message: "Help"})
	if err != nil {
		t.Fatal(err)
	}

	claimed, err := s.outbox.ClaimPending(ctx, 10, time.Minute)
	if err != nil || len(claimed) != 1 || claimed[0].AggregateID != sr.ID {
		t.Fatalf("ClaimPending() = %v, %v", claimed, err)
	}
	if err := s.outbox.MoveToDeadLetter(ctx, claimed[0], "broker down", "max retries exceeded"); err != nil {
		t.Fatal(err)
	}

	letters, err := s.deadLetters.ListDeadLetters(ctx, repository.ListFilter{})
	if err != nil || len(letters) != 1 {
		t.Fatalf("ListDeadLetters() = %v, %v", letters, err)
	}

	msg, err := s.deadLetters.RetryDeadLetter(ctx, letters[0].ID)
	if err != nil {
		t.Fatalf("RetryDeadLetter() error = %v", err)
	}
	if msg.Status != models.OutboxStatusPending || msg.EventType != models.KindSupportRequest.CreatedEvent() {
		t.Fatalf("requeued message = %+v", msg)
	}

	if _, err := s.deadLetters.RetryDeadLetter(ctx, letters[0].ID); !errors.Is(err, apperrors.ErrConflict) {
		t.Fatalf("second retry error = %v, want conflict", err)
	}
	if err := s.deadLetters.DiscardDeadLetter(ctx, 999, ""); !errors.Is(err, apperrors.ErrNotFound) {
		t.Fatalf("discard missing error = %v, want not found", err)
	}
}
