package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/vaidashi/backoffice-api/internal/database"
	"github.com/vaidashi/backoffice-api/internal/models"
	apperrors "github.com/vaidashi/backoffice-api/pkg/errors"
)

// statusTables maps each entity kind to the table holding its status column.
// Table names come only from this map, never from input.
var statusTables = map[models.EntityKind]string{
	models.KindOrder:          "orders",
	models.KindPurchaseOrder:  "purchase_orders",
	models.KindInventoryCheck: "inventory_checks",
	models.KindSupportRequest: "support_requests",
}

// TransitionStore is the Postgres store behind the transition engine
type TransitionStore struct {
	db      *database.Database
	history *HistoryRepository
}

// NewTransitionStore creates a new TransitionStore
func NewTransitionStore(db *database.Database, history *HistoryRepository) *TransitionStore {
	return &TransitionStore{db: db, history: history}
}

// WithTx runs fn in a database transaction
func (s *TransitionStore) WithTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	return s.db.WithTx(ctx, fn)
}

// LockStatus reads the entity's status with SELECT ... FOR UPDATE. A racing
// transaction blocks here until the first one commits, then reads its status.
func (s *TransitionStore) LockStatus(ctx context.Context, tx *sqlx.Tx, kind models.EntityKind, id string) (string, error) {
	table, err := tableFor(kind)
	if err != nil {
		return "", err
	}

	var status string
	query := fmt.Sprintf(`SELECT status FROM %s WHERE id = $1 FOR UPDATE`, table)
	if err := tx.GetContext(ctx, &status, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", apperrors.NewNotFoundError(fmt.Sprintf("%s %s not found", kind, id)).
				WithContext("kind", string(kind)).
				WithContext("id", id)
		}
		return "", fmt.Errorf("%w: lock %s: %v", ErrDatabase, kind, err)
	}
	return status, nil
}

// SetStatus writes the new status
func (s *TransitionStore) SetStatus(ctx context.Context, tx *sqlx.Tx, kind models.EntityKind, id, status string) error {
	table, err := tableFor(kind)
	if err != nil {
		return err
	}

	query := fmt.Sprintf(`UPDATE %s SET status = $1, updated_at = $2 WHERE id = $3`, table)
	result, err := tx.ExecContext(ctx, query, status, models.GetCurrentTime(), id)
	if err != nil {
		return fmt.Errorf("%w: update %s status: %v", ErrDatabase, kind, err)
	}
	return expectOneRow(result, id)
}

// AppendHistory inserts the history record of the transition
func (s *TransitionStore) AppendHistory(ctx context.Context, tx *sqlx.Tx, h *models.StatusHistory) error {
	return s.history.AppendInTx(ctx, tx, h)
}

func tableFor(kind models.EntityKind) (string, error) {
	table, ok := statusTables[kind]
	if !ok {
		return "", apperrors.NewInvalidInputError(fmt.Sprintf("unknown entity kind %q", kind))
	}
	return table, nil
}
