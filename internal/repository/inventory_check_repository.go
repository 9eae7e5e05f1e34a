package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/vaidashi/backoffice-api/internal/database"
	"github.com/vaidashi/backoffice-api/internal/models"
	"github.com/vaidashi/backoffice-api/pkg/logger"
)

const inventoryCheckColumns = `id, status, note, created_by, created_at, updated_at`

// InventoryCheckRepository handles database operations for stock counts
type InventoryCheckRepository struct {
	db     *database.Database
	logger logger.Logger
}

// NewInventoryCheckRepository creates a new InventoryCheckRepository
func NewInventoryCheckRepository(db *database.Database, logger logger.Logger) *InventoryCheckRepository {
	return &InventoryCheckRepository{
		db:     db,
		logger: logger,
	}
}

// CreateInTx inserts an inventory check and its details within a transaction
func (r *InventoryCheckRepository) CreateInTx(ctx context.Context, tx *sqlx.Tx, ic *models.InventoryCheck) error {
	query := `
		INSERT INTO inventory_checks (` + inventoryCheckColumns + `)
		VALUES (:id, :status, :note, :created_by, :created_at, :updated_at)
	`

	if _, err := tx.NamedExecContext(ctx, query, ic); err != nil {
		return fmt.Errorf("%w: insert inventory check: %v", ErrDatabase, err)
	}

	for _, d := range ic.Details {
		detailQuery := `
			INSERT INTO inventory_check_details (id, inventory_check_id, variant_id, system_quantity, actual_quantity)
			VALUES (:id, :inventory_check_id, :variant_id, :system_quantity, :actual_quantity)
		`
		if _, err := tx.NamedExecContext(ctx, detailQuery, d); err != nil {
			return fmt.Errorf("%w: insert inventory check detail: %v", ErrDatabase, err)
		}
	}
	return nil
}

// GetByID retrieves an inventory check with its details
func (r *InventoryCheckRepository) GetByID(ctx context.Context, id string) (*models.InventoryCheck, error) {
	query := `SELECT ` + inventoryCheckColumns + ` FROM inventory_checks WHERE id = $1`

	var ic models.InventoryCheck
	if err := r.db.DB.GetContext(ctx, &ic, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		r.logger.Error("Failed to get inventory check by ID", "error", err, "inventoryCheckID", id)
		return nil, fmt.Errorf("%w: %v", ErrDatabase, err)
	}

	details, err := r.details(ctx, r.db.DB, id)
	if err != nil {
		return nil, err
	}
	ic.Details = details

	return &ic, nil
}

// LockInTx reads an inventory check and locks its row until the transaction ends
func (r *InventoryCheckRepository) LockInTx(ctx context.Context, tx *sqlx.Tx, id string) (*models.InventoryCheck, error) {
	query := `SELECT ` + inventoryCheckColumns + ` FROM inventory_checks WHERE id = $1 FOR UPDATE`

	var ic models.InventoryCheck
	if err := tx.GetContext(ctx, &ic, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: lock inventory check: %v", ErrDatabase, err)
	}
	return &ic, nil
}

// DetailsInTx returns the lines of an inventory check within a transaction
func (r *InventoryCheckRepository) DetailsInTx(ctx context.Context, tx *sqlx.Tx, inventoryCheckID string) ([]*models.InventoryCheckDetail, error) {
	return r.details(ctx, tx, inventoryCheckID)
}

// UpdateActualQuantityInTx records a new counted quantity for one line
func (r *InventoryCheckRepository) UpdateActualQuantityInTx(ctx context.Context, tx *sqlx.Tx, inventoryCheckID, detailID string, actual int) error {
	query := `
		UPDATE inventory_check_details
		SET actual_quantity = $1
		WHERE id = $2 AND inventory_check_id = $3
	`

	result, err := tx.ExecContext(ctx, query, actual, detailID, inventoryCheckID)
	if err != nil {
		return fmt.Errorf("%w: update inventory check detail: %v", ErrDatabase, err)
	}
	return expectOneRow(result, detailID)
}

func (r *InventoryCheckRepository) details(ctx context.Context, q sqlx.QueryerContext, inventoryCheckID string) ([]*models.InventoryCheckDetail, error) {
	query := `
		SELECT id, inventory_check_id, variant_id, system_quantity, actual_quantity
		FROM inventory_check_details
		WHERE inventory_check_id = $1
		ORDER BY variant_id
	`

	details := []*models.InventoryCheckDetail{}
	if err := sqlx.SelectContext(ctx, q, &details, query, inventoryCheckID); err != nil {
		return nil, fmt.Errorf("%w: inventory check details: %v", ErrDatabase, err)
	}
	return details, nil
}
