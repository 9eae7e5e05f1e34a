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

const outboxColumns = `id, aggregate_type, aggregate_id, event_type, payload,
	created_at, processed_at, processing_attempts, claimed_at, last_error, status`

// OutboxRepository handles database operations for outbox messages
type OutboxRepository struct {
	db          *database.Database
	deadLetters *DeadLetterRepository
	logger      logger.Logger
}

// NewOutboxRepository creates a new OutboxRepository
func NewOutboxRepository(db *database.Database, deadLetters *DeadLetterRepository, logger logger.Logger) *OutboxRepository {
	return &OutboxRepository{
		db:          db,
		deadLetters: deadLetters,
		logger:      logger,
	}
}

// CreateInTx creates a new outbox message within a transaction, so the
// event is stored if and only if the change it announces commits.
func (r *OutboxRepository) CreateInTx(ctx context.Context, tx *sqlx.Tx, message *models.OutboxMessage) error {
	query := `
		INSERT INTO outbox_messages (
			aggregate_type, aggregate_id, event_type, payload,
			created_at, status
		) VALUES (
			$1, $2, $3, $4, $5, $6
		) RETURNING id
	`

	err := tx.QueryRowxContext(
		ctx,
		query,
		message.AggregateType,
		message.AggregateID,
		message.EventType,
		message.Payload,
		message.CreatedAt,
		message.Status,
	).Scan(&message.ID)
	if err != nil {
		return fmt.Errorf("%w: create outbox message: %v", ErrDatabase, err)
	}

	return nil
}

// ClaimPending moves up to limit pending messages to processing and returns
// them with their attempt counter already incremented. Rows claimed by
// another instance are skipped. A processing row whose claim is older than
// lease was abandoned by a stopped or crashed processor and is claimed again.
func (r *OutboxRepository) ClaimPending(ctx context.Context, limit int, lease time.Duration) ([]*models.OutboxMessage, error) {
	query := `
		UPDATE outbox_messages
		SET status = $1, processing_attempts = processing_attempts + 1, claimed_at = $2
		WHERE id IN (
			SELECT id FROM outbox_messages
			WHERE status = $3
				OR (status = $1 AND (claimed_at IS NULL OR claimed_at < $4))
			ORDER BY id
			LIMIT $5
			FOR UPDATE SKIP LOCKED
		)
		RETURNING ` + outboxColumns

	now := models.GetCurrentTime()
	messages := []*models.OutboxMessage{}
	err := r.db.DB.SelectContext(ctx, &messages, query,
		models.OutboxStatusProcessing,
		now,
		models.OutboxStatusPending,
		now.Add(-lease),
		limit,
	)
	if err != nil {
		r.logger.Error("Failed to claim pending outbox messages", "error", err)
		return nil, fmt.Errorf("%w: %v", ErrDatabase, err)
	}

	return messages, nil
}

// MarkAsCompleted updates the status of an outbox message to completed
func (r *OutboxRepository) MarkAsCompleted(ctx context.Context, id int64) error {
	query := `
		UPDATE outbox_messages
		SET status = $1, processed_at = $2, last_error = NULL
		WHERE id = $3
	`

	if _, err := r.db.DB.ExecContext(ctx, query, models.OutboxStatusCompleted, models.GetCurrentTime(), id); err != nil {
		r.logger.Error("Failed to mark outbox message as completed", "error", err, "messageID", id)
		return fmt.Errorf("%w: %v", ErrDatabase, err)
	}

	return nil
}

// MarkForRetry returns a message to pending and records why it failed
func (r *OutboxRepository) MarkForRetry(ctx context.Context, id int64, errorMessage string) error {
	query := `
		UPDATE outbox_messages
		SET status = $1, last_error = $2
		WHERE id = $3
	`

	if _, err := r.db.DB.ExecContext(ctx, query, models.OutboxStatusPending, errorMessage, id); err != nil {
		r.logger.Error("Failed to mark outbox message for retry", "error", err, "messageID", id)
		return fmt.Errorf("%w: %v", ErrDatabase, err)
	}

	return nil
}

// MoveToDeadLetter marks a message failed and records it as a dead letter in one transaction
func (r *OutboxRepository) MoveToDeadLetter(ctx context.Context, message *models.OutboxMessage, errorMessage, reason string) error {
	return r.db.WithTx(ctx, func(tx *sqlx.Tx) error {
		query := `
			UPDATE outbox_messages
			SET status = $1, last_error = $2
			WHERE id = $3
		`
		if _, err := tx.ExecContext(ctx, query, models.OutboxStatusFailed, errorMessage, message.ID); err != nil {
			return fmt.Errorf("%w: mark outbox message failed: %v", ErrDatabase, err)
		}

		dl := models.NewDeadLetterMessage(message, errorMessage, reason)
		return r.deadLetters.CreateInTx(ctx, tx, dl)
	})
}

// GetMessage retrieves an outbox message by ID
func (r *OutboxRepository) GetMessage(ctx context.Context, id int64) (*models.OutboxMessage, error) {
	query := `SELECT ` + outboxColumns + ` FROM outbox_messages WHERE id = $1`

	var message models.OutboxMessage
	if err := r.db.DB.GetContext(ctx, &message, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		r.logger.Error("Failed to get outbox message", "error", err, "messageID", id)
		return nil, fmt.Errorf("%w: %v", ErrDatabase, err)
	}

	return &message, nil
}

// CountByStatus returns the number of outbox messages in each status
func (r *OutboxRepository) CountByStatus(ctx context.Context) (map[models.OutboxStatus]int, error) {
	query := `SELECT status, COUNT(*) AS count FROM outbox_messages GROUP BY status`

	var rows []struct {
		Status models.OutboxStatus `db:"status"`
		Count  int                 `db:"count"`
	}
	if err := r.db.DB.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDatabase, err)
	}

	out := make(map[models.OutboxStatus]int, len(rows))
	for _, row := range rows {
		out[row.Status] = row.Count
	}
	return out, nil
}
