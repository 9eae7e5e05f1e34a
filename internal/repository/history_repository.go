package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/vaidashi/backoffice-api/internal/database"
	"github.com/vaidashi/backoffice-api/internal/models"
	"github.com/vaidashi/backoffice-api/pkg/logger"
)

// HistoryRepository stores status histories. Records are only ever inserted.
type HistoryRepository struct {
	db     *database.Database
	logger logger.Logger
}

// NewHistoryRepository creates a new HistoryRepository
func NewHistoryRepository(db *database.Database, logger logger.Logger) *HistoryRepository {
	return &HistoryRepository{
		db:     db,
		logger: logger,
	}
}

// AppendInTx inserts a history record within a transaction
func (r *HistoryRepository) AppendInTx(ctx context.Context, tx *sqlx.Tx, h *models.StatusHistory) error {
	query := `
		INSERT INTO status_histories (entity_type, entity_id, from_status, to_status, note, actor_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id
	`

	err := tx.QueryRowxContext(ctx, query,
		h.EntityType,
		h.EntityID,
		h.FromStatus,
		h.ToStatus,
		h.Note,
		h.ActorID,
		h.CreatedAt,
	).Scan(&h.ID)
	if err != nil {
		return fmt.Errorf("%w: append history: %v", ErrDatabase, err)
	}
	return nil
}

// ListByEntity returns the history of one entity, oldest first
func (r *HistoryRepository) ListByEntity(ctx context.Context, kind models.EntityKind, entityID string) ([]*models.StatusHistory, error) {
	query := `
		SELECT id, entity_type, entity_id, from_status, to_status, note, actor_id, created_at
		FROM status_histories
		WHERE entity_type = $1 AND entity_id = $2
		ORDER BY id
	`

	out := []*models.StatusHistory{}
	if err := r.db.DB.SelectContext(ctx, &out, query, kind, entityID); err != nil {
		r.logger.Error("Failed to list status history", "error", err, "kind", kind, "entityID", entityID)
		return nil, fmt.Errorf("%w: %v", ErrDatabase, err)
	}
	return out, nil
}
