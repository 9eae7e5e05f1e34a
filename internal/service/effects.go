package service

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/vaidashi/backoffice-api/internal/models"
	"github.com/vaidashi/backoffice-api/internal/repository"
	"github.com/vaidashi/backoffice-api/internal/transition"
)

// Engine is the transition engine bound to Postgres transactions
type Engine = transition.Engine[*sqlx.Tx]

// VariantStock is the stock access the side effects need
type VariantStock interface {
	LockInTx(ctx context.Context, tx *sqlx.Tx, ids []string) (map[string]*models.Variant, error)
	AdjustQuantityInTx(ctx context.Context, tx *sqlx.Tx, id string, delta int) error
	SetQuantityInTx(ctx context.Context, tx *sqlx.Tx, id string, quantity int) error
}

// OrderLines reads order details and moves their payments
type OrderLines interface {
	DetailsInTx(ctx context.Context, tx *sqlx.Tx, orderID string) ([]*models.OrderDetail, error)
	CancelPaymentsInTx(ctx context.Context, tx *sqlx.Tx, orderID string) (int64, error)
	MarkPendingPaymentsPaidInTx(ctx context.Context, tx *sqlx.Tx, orderID string, paidAt time.Time) (int64, error)
}

// PurchaseOrderLines reads purchase order details
type PurchaseOrderLines interface {
	DetailsInTx(ctx context.Context, tx *sqlx.Tx, purchaseOrderID string) ([]*models.PurchaseOrderDetail, error)
}

// CountLines reads inventory check details
type CountLines interface {
	DetailsInTx(ctx context.Context, tx *sqlx.Tx, inventoryCheckID string) ([]*models.InventoryCheckDetail, error)
}

// EventWriter stores outbox events
type EventWriter interface {
	CreateInTx(ctx context.Context, tx *sqlx.Tx, message *models.OutboxMessage) error
}

// Repositories groups the stores the side effects write to
type Repositories struct {
	Variants        VariantStock
	Orders          OrderLines
	PurchaseOrders  PurchaseOrderLines
	InventoryChecks CountLines
	Outbox          EventWriter
}

var (
	_ VariantStock       = (*repository.VariantRepository)(nil)
	_ OrderLines         = (*repository.OrderRepository)(nil)
	_ PurchaseOrderLines = (*repository.PurchaseOrderRepository)(nil)
	_ CountLines         = (*repository.InventoryCheckRepository)(nil)
	_ EventWriter        = (*repository.OutboxRepository)(nil)
)

// RegisterEffects installs every side effect the back office runs on a status change
func RegisterEffects(engine *Engine, repos Repositories) error {
	effects := []struct {
		kind models.EntityKind
		to   string
		name string
		fn   transition.Effect[*sqlx.Tx]
	}{
		{models.KindOrder, models.OrderStatusCancelled, "order.restock", restockOrder(repos)},
		{models.KindOrder, models.OrderStatusCancelled, "order.cancel_payments", cancelPayments(repos)},
		{models.KindOrder, models.OrderStatusDelivered, "order.settle_payments", settlePayments(repos)},
		{models.KindPurchaseOrder, models.PurchaseOrderStatusCompleted, "purchase_order.receive_stock", receiveStock(repos)},
		{models.KindInventoryCheck, models.InventoryCheckStatusCompleted, "inventory_check.apply_counts", applyCounts(repos)},
	}

	for _, e := range effects {
		if err := engine.Register(e.kind, e.to, e.name, e.fn); err != nil {
			return err
		}
	}

	for _, kind := range models.Kinds {
		if err := engine.Register(kind, transition.AnyStatus, string(kind)+".publish_status_changed", publishStatusChanged(repos)); err != nil {
			return err
		}
	}
	return nil
}

// restockOrder returns every ordered quantity to its variant
func restockOrder(repos Repositories) transition.Effect[*sqlx.Tx] {
	return func(ctx context.Context, tx *sqlx.Tx, change transition.Change) error {
		details, err := repos.Orders.DetailsInTx(ctx, tx, change.EntityID)
		if err != nil {
			return err
		}

		quantities := make(map[string]int, len(details))
		for _, d := range details {
			quantities[d.VariantID] += d.Quantity
		}
		return addStock(ctx, tx, repos.Variants, quantities)
	}
}

func cancelPayments(repos Repositories) transition.Effect[*sqlx.Tx] {
	return func(ctx context.Context, tx *sqlx.Tx, change transition.Change) error {
		_, err := repos.Orders.CancelPaymentsInTx(ctx, tx, change.EntityID)
		return err
	}
}

// settlePayments marks cash-on-delivery payments paid once the parcel arrives
func settlePayments(repos Repositories) transition.Effect[*sqlx.Tx] {
	return func(ctx context.Context, tx *sqlx.Tx, change transition.Change) error {
		_, err := repos.Orders.MarkPendingPaymentsPaidInTx(ctx, tx, change.EntityID, models.GetCurrentTime())
		return err
	}
}

func receiveStock(repos Repositories) transition.Effect[*sqlx.Tx] {
	return func(ctx context.Context, tx *sqlx.Tx, change transition.Change) error {
		details, err := repos.PurchaseOrders.DetailsInTx(ctx, tx, change.EntityID)
		if err != nil {
			return err
		}

		quantities := make(map[string]int, len(details))
		for _, d := range details {
			quantities[d.VariantID] += d.Quantity
		}
		return addStock(ctx, tx, repos.Variants, quantities)
	}
}

// applyCounts overwrites stock with the counted quantities
func applyCounts(repos Repositories) transition.Effect[*sqlx.Tx] {
	return func(ctx context.Context, tx *sqlx.Tx, change transition.Change) error {
		details, err := repos.InventoryChecks.DetailsInTx(ctx, tx, change.EntityID)
		if err != nil {
			return err
		}

		ids := make([]string, 0, len(details))
		for _, d := range details {
			ids = append(ids, d.VariantID)
		}
		locked, err := repos.Variants.LockInTx(ctx, tx, ids)
		if err != nil {
			return err
		}

		for _, d := range details {
			if _, ok := locked[d.VariantID]; !ok {
				return fmt.Errorf("variant %s not found", d.VariantID)
			}
			if err := repos.Variants.SetQuantityInTx(ctx, tx, d.VariantID, d.ActualQuantity); err != nil {
				return err
			}
		}
		return nil
	}
}

func publishStatusChanged(repos Repositories) transition.Effect[*sqlx.Tx] {
	return func(ctx context.Context, tx *sqlx.Tx, change transition.Change) error {
		msg, err := models.NewStatusChangedEvent(models.StatusChangedData{
			EntityType: change.Kind,
			EntityID:   change.EntityID,
			OldStatus:  change.From,
			NewStatus:  change.To,
			Note:       change.Note,
			ActorID:    change.ActorID,
		})
		if err != nil {
			return fmt.Errorf("build status event: %w", err)
		}
		return repos.Outbox.CreateInTx(ctx, tx, msg)
	}
}

// addStock locks the variants in id order, then adds each quantity
func addStock(ctx context.Context, tx *sqlx.Tx, variants VariantStock, quantities map[string]int) error {
	ids := make([]string, 0, len(quantities))
	for id := range quantities {
		ids = append(ids, id)
	}

	locked, err := variants.LockInTx(ctx, tx, ids)
	if err != nil {
		return err
	}

	for id, qty := range quantities {
		if _, ok := locked[id]; !ok {
			return fmt.Errorf("variant %s not found", id)
		}
		if err := variants.AdjustQuantityInTx(ctx, tx, id, qty); err != nil {
			return err
		}
	}
	return nil
}
