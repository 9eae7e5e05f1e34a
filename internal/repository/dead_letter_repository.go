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

const deadLetterColumns = `id, original_message_id, aggregate_type, aggregate_id, event_type, payload,
	error_message, failure_reason, retry_count, last_retry_at, status, created_at, resolved_at`

// DeadLetterRepository handles database operations related to dead letter messages
type DeadLetterRepository struct {
	db     *database.Database
	logger logger.Logger
}

// NewDeadLetterRepository creates a new DeadLetterRepository
func NewDeadLetterRepository(db *database.Database, logger logger.Logger) *DeadLetterRepository {
	return &DeadLetterRepository{
		db:     db,
		logger: logger,
	}
}

// CreateInTx inserts a new dead letter message within a transaction
func (r *DeadLetterRepository) CreateInTx(ctx context.Context, tx *sqlx.Tx, message *models.DeadLetterMessage) error {
	query := `
		INSERT INTO dead_letter_messages (
			original_message_id, aggregate_type, aggregate_id, event_type, payload,
			error_message, failure_reason, retry_count, status, created_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10
		) RETURNING id
	`

	err := tx.QueryRowxContext(
		ctx,
		query,
		message.OriginalMessageID,
		message.AggregateType,
		message.AggregateID,
		message.EventType,
		message.Payload,
		message.ErrorMessage,
		message.FailureReason,
		message.RetryCount,
		message.Status,
		message.CreatedAt,
	).Scan(&message.ID)
	if err != nil {
		return fmt.Errorf("%w: create dead letter message: %v", ErrDatabase, err)
	}

	return nil
}

// List retrieves dead letters, optionally filtered by status, oldest first
func (r *DeadLetterRepository) List(ctx context.Context, filter ListFilter) ([]*models.DeadLetterMessage, error) {
	filter = filter.Normalize()
	query := `
		SELECT ` + deadLetterColumns + `
		FROM dead_letter_messages
		WHERE ($1 = '' OR status = $1)
		ORDER BY created_at ASC, id
		LIMIT $2 OFFSET $3
	`

	messages := []*models.DeadLetterMessage{}
	if err := r.db.DB.SelectContext(ctx, &messages, query, filter.Status, filter.Limit, filter.Offset); err != nil {
		r.logger.Error("Failed to list dead letter messages", "error", err)
		return nil, fmt.Errorf("%w: %v", ErrDatabase, err)
	}

	return messages, nil
}

// GetMessage retrieves a message by ID
func (r *DeadLetterRepository) GetMessage(ctx context.Context, id int64) (*models.DeadLetterMessage, error) {
	query := `SELECT ` + deadLetterColumns + ` FROM dead_letter_messages WHERE id = $1`

	var message models.DeadLetterMessage
	if err := r.db.DB.GetContext(ctx, &message, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		r.logger.Error("Failed to get dead letter message", "error", err, "messageID", id)
		return nil, fmt.Errorf("%w: %v", ErrDatabase, err)
	}

	return &message, nil
}

// LockInTx reads a dead letter and locks it until the transaction ends
func (r *DeadLetterRepository) LockInTx(ctx context.Context, tx *sqlx.Tx, id int64) (*models.DeadLetterMessage, error) {
	query := `SELECT ` + deadLetterColumns + ` FROM dead_letter_messages WHERE id = $1 FOR UPDATE`

	var message models.DeadLetterMessage
	if err := tx.GetContext(ctx, &message, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: lock dead letter: %v", ErrDatabase, err)
	}
	return &message, nil
}

// MarkRequeuedInTx records that a dead letter was put back into the outbox
func (r *DeadLetterRepository) MarkRequeuedInTx(ctx context.Context, tx *sqlx.Tx, id int64) error {
	query := `
		UPDATE dead_letter_messages
		SET status = $1, retry_count = retry_count + 1, last_retry_at = $2, resolved_at = $2
		WHERE id = $3
	`

	result, err := tx.ExecContext(ctx, query, models.DeadLetterStatusRequeued, models.GetCurrentTime(), id)
	if err != nil {
		return fmt.Errorf("%w: mark dead letter requeued: %v", ErrDatabase, err)
	}
	return expectOneRow(result, fmt.Sprint(id))
}

// MarkAsDiscardedInTx marks a message as permanently discarded
func (r *DeadLetterRepository) MarkAsDiscardedInTx(ctx context.Context, tx *sqlx.Tx, id int64, reason string) error {
	query := `
		UPDATE dead_letter_messages
		SET status = $1, failure_reason = CONCAT(failure_reason, ' | Discarded: ', $2::text), resolved_at = $3
		WHERE id = $4
	`

	result, err := tx.ExecContext(ctx, query, models.DeadLetterStatusDiscarded, reason, models.GetCurrentTime(), id)
	if err != nil {
		return fmt.Errorf("%w: discard dead letter: %v", ErrDatabase, err)
	}
	return expectOneRow(result, fmt.Sprint(id))
}
