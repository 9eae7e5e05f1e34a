package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/vaidashi/backoffice-api/internal/database"
	"github.com/vaidashi/backoffice-api/internal/models"
	"github.com/vaidashi/backoffice-api/pkg/logger"
)

const orderColumns = `id, customer_id, status, payment_method, shipping_address, note, total_amount, created_at, updated_at`

// OrderRepository handles database operations for orders, their details and payments
type OrderRepository struct {
	db     *database.Database
	logger logger.Logger
}

// NewOrderRepository creates a new OrderRepository
func NewOrderRepository(db *database.Database, logger logger.Logger) *OrderRepository {
	return &OrderRepository{
		db:     db,
		logger: logger,
	}
}

// CreateInTx inserts an order and its details within a transaction
func (r *OrderRepository) CreateInTx(ctx context.Context, tx *sqlx.Tx, order *models.Order) error {
	query := `
		INSERT INTO orders (` + orderColumns + `)
		VALUES (:id, :customer_id, :status, :payment_method, :shipping_address, :note, :total_amount, :created_at, :updated_at)
	`

	if _, err := tx.NamedExecContext(ctx, query, order); err != nil {
		return fmt.Errorf("%w: insert order: %v", ErrDatabase, err)
	}

	for _, d := range order.Details {
		detailQuery := `
			INSERT INTO order_details (id, order_id, variant_id, quantity, unit_price)
			VALUES (:id, :order_id, :variant_id, :quantity, :unit_price)
		`
		if _, err := tx.NamedExecContext(ctx, detailQuery, d); err != nil {
			return fmt.Errorf("%w: insert order detail: %v", ErrDatabase, err)
		}
	}

	return nil
}

// CreatePaymentInTx inserts a payment within a transaction
func (r *OrderRepository) CreatePaymentInTx(ctx context.Context, tx *sqlx.Tx, p *models.Payment) error {
	query := `
		INSERT INTO payments (id, order_id, method, amount, status, paid_at, created_at, updated_at)
		VALUES (:id, :order_id, :method, :amount, :status, :paid_at, :created_at, :updated_at)
	`

	if _, err := tx.NamedExecContext(ctx, query, p); err != nil {
		return fmt.Errorf("%w: insert payment: %v", ErrDatabase, err)
	}
	return nil
}

// GetByID retrieves an order with its details and payments
func (r *OrderRepository) GetByID(ctx context.Context, id string) (*models.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`

	var order models.Order
	if err := r.db.DB.GetContext(ctx, &order, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		r.logger.Error("Failed to get order by ID", "error", err, "orderID", id)
		return nil, fmt.Errorf("%w: %v", ErrDatabase, err)
	}

	details, err := r.details(ctx, r.db.DB, id)
	if err != nil {
		return nil, err
	}
	order.Details = details

	payments, err := r.payments(ctx, r.db.DB, id)
	if err != nil {
		return nil, err
	}
	order.Payments = payments

	return &order, nil
}

// List retrieves orders, newest first
func (r *OrderRepository) List(ctx context.Context, filter ListFilter) ([]*models.Order, error) {
	filter = filter.Normalize()
	query := `
		SELECT ` + orderColumns + `
		FROM orders
		WHERE ($1 = '' OR status = $1)
		ORDER BY created_at DESC, id
		LIMIT $2 OFFSET $3
	`

	orders := []*models.Order{}
	if err := r.db.DB.SelectContext(ctx, &orders, query, filter.Status, filter.Limit, filter.Offset); err != nil {
		r.logger.Error("Failed to list orders", "error", err, "limit", filter.Limit, "offset", filter.Offset)
		return nil, fmt.Errorf("%w: %v", ErrDatabase, err)
	}

	return orders, nil
}

// Count counts orders, optionally restricted to one status
func (r *OrderRepository) Count(ctx context.Context, status string) (int, error) {
	var count int
	query := `SELECT COUNT(*) FROM orders WHERE ($1 = '' OR status = $1)`

	if err := r.db.DB.GetContext(ctx, &count, query, status); err != nil {
		r.logger.Error("Failed to count orders", "error", err)
		return 0, fmt.Errorf("%w: %v", ErrDatabase, err)
	}

	return count, nil
}

// DetailsInTx returns the lines of an order within a transaction
func (r *OrderRepository) DetailsInTx(ctx context.Context, tx *sqlx.Tx, orderID string) ([]*models.OrderDetail, error) {
	return r.details(ctx, tx, orderID)
}

// CancelPaymentsInTx sets every payment of an order to cancelled
func (r *OrderRepository) CancelPaymentsInTx(ctx context.Context, tx *sqlx.Tx, orderID string) (int64, error) {
	query := `
		UPDATE payments
		SET status = $1, updated_at = $2
		WHERE order_id = $3 AND status <> $1
	`

	result, err := tx.ExecContext(ctx, query, models.PaymentStatusCancelled, models.GetCurrentTime(), orderID)
	if err != nil {
		return 0, fmt.Errorf("%w: cancel payments: %v", ErrDatabase, err)
	}
	return result.RowsAffected()
}

// MarkPendingPaymentsPaidInTx settles the pending payments of an order
func (r *OrderRepository) MarkPendingPaymentsPaidInTx(ctx context.Context, tx *sqlx.Tx, orderID string, paidAt time.Time) (int64, error) {
	query := `
		UPDATE payments
		SET status = $1, paid_at = $2, updated_at = $2
		WHERE order_id = $3 AND status = $4
	`

	result, err := tx.ExecContext(ctx, query, models.PaymentStatusPaid, paidAt, orderID, models.PaymentStatusPending)
	if err != nil {
		return 0, fmt.Errorf("%w: settle payments: %v", ErrDatabase, err)
	}
	return result.RowsAffected()
}

func (r *OrderRepository) details(ctx context.Context, q sqlx.QueryerContext, orderID string) ([]*models.OrderDetail, error) {
	query := `
		SELECT id, order_id, variant_id, quantity, unit_price
		FROM order_details
		WHERE order_id = $1
		ORDER BY id
	`

	details := []*models.OrderDetail{}
	if err := sqlx.SelectContext(ctx, q, &details, query, orderID); err != nil {
		return nil, fmt.Errorf("%w: order details: %v", ErrDatabase, err)
	}
	return details, nil
}

func (r *OrderRepository) payments(ctx context.Context, q sqlx.QueryerContext, orderID string) ([]*models.Payment, error) {
	query := `
		SELECT id, order_id, method, amount, status, paid_at, created_at, updated_at
		FROM payments
		WHERE order_id = $1
		ORDER BY created_at
	`

	payments := []*models.Payment{}
	if err := sqlx.SelectContext(ctx, q, &payments, query, orderID); err != nil {
		return nil, fmt.Errorf("%w: payments: %v", ErrDatabase, err)
	}
	return payments, nil
}

// PaymentsInTx returns the payments of an order within a transaction
func (r *OrderRepository) PaymentsInTx(ctx context.Context, tx *sqlx.Tx, orderID string) ([]*models.Payment, error) {
	return r.payments(ctx, tx, orderID)
}
