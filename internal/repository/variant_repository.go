package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/vaidashi/backoffice-api/internal/database"
	"github.com/vaidashi/backoffice-api/internal/models"
	"github.com/vaidashi/backoffice-api/pkg/logger"
)

const variantColumns = `id, sku, name, price, quantity, created_at, updated_at`

// VariantRepository handles stock on hand for product variants
type VariantRepository struct {
	db     *database.Database
	logger logger.Logger
}

// NewVariantRepository creates a new VariantRepository
func NewVariantRepository(db *database.Database, logger logger.Logger) *VariantRepository {
	return &VariantRepository{
		db:     db,
		logger: logger,
	}
}

// GetByID retrieves a variant by its ID
func (r *VariantRepository) GetByID(ctx context.Context, id string) (*models.Variant, error) {
	query := `SELECT ` + variantColumns + ` FROM product_variants WHERE id = $1`

	var v models.Variant
	if err := r.db.DB.GetContext(ctx, &v, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		r.logger.Error("Failed to get variant by ID", "error", err, "variantID", id)
		return nil, fmt.Errorf("%w: %v", ErrDatabase, err)
	}

	return &v, nil
}

// LockInTx locks the given variants for update, in id order so concurrent
// callers cannot deadlock, and returns them keyed by id. Missing ids are
// simply absent from the result.
func (r *VariantRepository) LockInTx(ctx context.Context, tx *sqlx.Tx, ids []string) (map[string]*models.Variant, error) {
	query := `SELECT ` + variantColumns + `
		FROM product_variants
		WHERE id = ANY($1)
		ORDER BY id
		FOR UPDATE`

	var variants []*models.Variant
	if err := tx.SelectContext(ctx, &variants, query, pq.Array(ids)); err != nil {
		return nil, fmt.Errorf("%w: lock variants: %v", ErrDatabase, err)
	}

	out := make(map[string]*models.Variant, len(variants))
	for _, v := range variants {
		out[v.ID] = v
	}
	return out, nil
}

// AdjustQuantityInTx adds delta (which may be negative) to a variant's stock
func (r *VariantRepository) AdjustQuantityInTx(ctx context.Context, tx *sqlx.Tx, id string, delta int) error {
	query := `
		UPDATE product_variants
		SET quantity = quantity + $1, updated_at = $2
		WHERE id = $3
	`

	result, err := tx.ExecContext(ctx, query, delta, models.GetCurrentTime(), id)
	if err != nil {
		return fmt.Errorf("%w: adjust quantity of %s: %v", ErrDatabase, id, err)
	}

	return expectOneRow(result, id)
}

// SetQuantityInTx overwrites a variant's stock
func (r *VariantRepository) SetQuantityInTx(ctx context.Context, tx *sqlx.Tx, id string, quantity int) error {
	query := `
		UPDATE product_variants
		SET quantity = $1, updated_at = $2
		WHERE id = $3
	`

	result, err := tx.ExecContext(ctx, query, quantity, models.GetCurrentTime(), id)
	if err != nil {
		return fmt.Errorf("%w: set quantity of %s: %v", ErrDatabase, id, err)
	}

	return expectOneRow(result, id)
}

func expectOneRow(result sql.Result, id string) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDatabase, err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}
