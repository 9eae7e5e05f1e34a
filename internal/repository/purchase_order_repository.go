package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"github.com/vaidashi/backoffice-api/internal/database"
	"github.com/vaidashi/backoffice-api/internal/models"
	"github.com/vaidashi/backoffice-api/pkg/logger"
)

const purchaseOrderColumns = `id, supplier_id, status, note, total_amount, created_by, created_at, updated_at`

// PurchaseOrderRepository handles database operations for purchase orders and their details
type PurchaseOrderRepository struct {
	db     *database.Database
	logger logger.Logger
}

// NewPurchaseOrderRepository creates a new PurchaseOrderRepository
func NewPurchaseOrderRepository(db *database.Database, logger logger.Logger) *PurchaseOrderRepository {
	return &PurchaseOrderRepository{
		db:     db,
		logger: logger,
	}
}

// CreateInTx inserts a purchase order and its details within a transaction
func (r *PurchaseOrderRepository) CreateInTx(ctx context.Context, tx *sqlx.Tx, po *models.PurchaseOrder) error {
	query := `
		INSERT INTO purchase_orders (` + purchaseOrderColumns + `)
		VALUES (:id, :supplier_id, :status, :note, :total_amount, :created_by, :created_at, :updated_at)
	`

	if _, err := tx.NamedExecContext(ctx, query, po); err != nil {
		return fmt.Errorf("%w: insert purchase order: %v", ErrDatabase, err)
	}

	for _, d := range po.Details {
		if err := r.AddDetailInTx(ctx, tx, d); err != nil {
			return err
		}
	}
	return nil
}

// GetByID retrieves a purchase order with its details
func (r *PurchaseOrderRepository) GetByID(ctx context.Context, id string) (*models.PurchaseOrder, error) {
	query := `SELECT ` + purchaseOrderColumns + ` FROM purchase_orders WHERE id = $1`

	var po models.PurchaseOrder
	if err := r.db.DB.GetContext(ctx, &po, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		r.logger.Error("Failed to get purchase order by ID", "error", err, "purchaseOrderID", id)
		return nil, fmt.Errorf("%w: %v", ErrDatabase, err)
	}

	details, err := r.details(ctx, r.db.DB, id)
	if err != nil {
		return nil, err
	}
	po.Details = details

	return &po, nil
}

// List retrieves purchase orders, newest first
func (r *PurchaseOrderRepository) List(ctx context.Context, filter ListFilter) ([]*models.PurchaseOrder, error) {
	filter = filter.Normalize()
	query := `
		SELECT ` + purchaseOrderColumns + `
		FROM purchase_orders
		WHERE ($1 = '' OR status = $1)
		ORDER BY created_at DESC, id
		LIMIT $2 OFFSET $3
	`

	pos := []*models.PurchaseOrder{}
	if err := r.db.DB.SelectContext(ctx, &pos, query, filter.Status, filter.Limit, filter.Offset); err != nil {
		r.logger.Error("Failed to list purchase orders", "error", err)
		return nil, fmt.Errorf("%w: %v", ErrDatabase, err)
	}
	return pos, nil
}

// LockInTx reads a purchase order and locks its row until the transaction ends
func (r *PurchaseOrderRepository) LockInTx(ctx context.Context, tx *sqlx.Tx, id string) (*models.PurchaseOrder, error) {
	query := `SELECT ` + purchaseOrderColumns + ` FROM purchase_orders WHERE id = $1 FOR UPDATE`

	var po models.PurchaseOrder
	if err := tx.GetContext(ctx, &po, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: lock purchase order: %v", ErrDatabase, err)
	}
	return &po, nil
}

// DetailsInTx returns the lines of a purchase order within a transaction
func (r *PurchaseOrderRepository) DetailsInTx(ctx context.Context, tx *sqlx.Tx, purchaseOrderID string) ([]*models.PurchaseOrderDetail, error) {
	return r.details(ctx, tx, purchaseOrderID)
}

// AddDetailInTx inserts one purchase order line
func (r *PurchaseOrderRepository) AddDetailInTx(ctx context.Context, tx *sqlx.Tx, d *models.PurchaseOrderDetail) error {
	query := `
		INSERT INTO purchase_order_details (id, purchase_order_id, variant_id, quantity, unit_price)
		VALUES (:id, :purchase_order_id, :variant_id, :quantity, :unit_price)
	`

	if _, err := tx.NamedExecContext(ctx, query, d); err != nil {
		return fmt.Errorf("%w: insert purchase order detail: %v", ErrDatabase, err)
	}
	return nil
}

// UpdateDetailInTx changes quantity and unit price of one line
func (r *PurchaseOrderRepository) UpdateDetailInTx(ctx context.Context, tx *sqlx.Tx, d *models.PurchaseOrderDetail) error {
	query := `
		UPDATE purchase_order_details
		SET quantity = $1, unit_price = $2
		WHERE id = $3 AND purchase_order_id = $4
	`

	result, err := tx.ExecContext(ctx, query, d.Quantity, d.UnitPrice, d.ID, d.PurchaseOrderID)
	if err != nil {
		return fmt.Errorf("%w: update purchase order detail: %v", ErrDatabase, err)
	}
	return expectOneRow(result, d.ID)
}

// DeleteDetailInTx removes one line
func (r *PurchaseOrderRepository) DeleteDetailInTx(ctx context.Context, tx *sqlx.Tx, purchaseOrderID, detailID string) error {
	query := `DELETE FROM purchase_order_details WHERE id = $1 AND purchase_order_id = $2`

	result, err := tx.ExecContext(ctx, query, detailID, purchaseOrderID)
	if err != nil {
		return fmt.Errorf("%w: delete purchase order detail: %v", ErrDatabase, err)
	}
	return expectOneRow(result, detailID)
}

// UpdateTotalInTx stores a recomputed total
func (r *PurchaseOrderRepository) UpdateTotalInTx(ctx context.Context, tx *sqlx.Tx, id string, total decimal.Decimal) error {
	query := `UPDATE purchase_orders SET total_amount = $1, updated_at = $2 WHERE id = $3`

	result, err := tx.ExecContext(ctx, query, total, models.GetCurrentTime(), id)
	if err != nil {
		return fmt.Errorf("%w: update purchase order total: %v", ErrDatabase, err)
	}
	return expectOneRow(result, id)
}

func (r *PurchaseOrderRepository) details(ctx context.Context, q sqlx.QueryerContext, purchaseOrderID string) ([]*models.PurchaseOrderDetail, error) {
	query := `
		SELECT id, purchase_order_id, variant_id, quantity, unit_price
		FROM purchase_order_details
		WHERE purchase_order_id = $1
		ORDER BY id
	`

	details := []*models.PurchaseOrderDetail{}
	if err := sqlx.SelectContext(ctx, q, &details, query, purchaseOrderID); err != nil {
		return nil, fmt.Errorf("%w: purchase order details: %v", ErrDatabase, err)
	}
	return details, nil
}
