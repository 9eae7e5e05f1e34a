package service

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/vaidashi/backoffice-api/internal/database"
	"github.com/vaidashi/backoffice-api/internal/models"
	"github.com/vaidashi/backoffice-api/internal/repository"
	apperrors "github.com/vaidashi/backoffice-api/pkg/errors"
	"github.com/vaidashi/backoffice-api/pkg/logger"
)

// DeadLetterService lets operators inspect undeliverable events and either
// put them back into the outbox or discard them
type DeadLetterService struct {
	db         *database.Database
	dlqRepo    *repository.DeadLetterRepository
	outboxRepo *repository.OutboxRepository
	logger     logger.Logger
}

// NewDeadLetterService creates a new DeadLetterService
func NewDeadLetterService(
	db *database.Database,
	dlqRepo *repository.DeadLetterRepository,
	outboxRepo *repository.OutboxRepository,
	logger logger.Logger,
) *DeadLetterService {
	return &DeadLetterService{
		db:         db,
		dlqRepo:    dlqRepo,
		outboxRepo: outboxRepo,
		logger:     logger,
	}
}

// ListDeadLetters retrieves dead letters, optionally filtered by status
func (s *DeadLetterService) ListDeadLetters(ctx context.Context, filter repository.ListFilter) ([]*models.DeadLetterMessage, error) {
	messages, err := s.dlqRepo.List(ctx, filter)
	if err != nil {
		return nil, apperrors.NewPersistenceError("list dead letters", err)
	}
	return messages, nil
}

// GetDeadLetter retrieves one dead letter
func (s *DeadLetterService) GetDeadLetter(ctx context.Context, id int64) (*models.DeadLetterMessage, error) {
	msg, err := s.dlqRepo.GetMessage(ctx, id)
	if err != nil {
		return nil, s.mapErr("get dead letter", id, err)
	}
	return msg, nil
}

// RetryDeadLetter re-queues a pending dead letter as a fresh outbox message
func (s *DeadLetterService) RetryDeadLetter(ctx context.Context, id int64) (*models.OutboxMessage, error) {
	var requeued *models.OutboxMessage

	err := s.db.WithTx(ctx, func(tx *sqlx.Tx) error {
		msg, err := s.dlqRepo.LockInTx(ctx, tx, id)
		if err != nil {
			return err
		}
		if msg.Status != string(models.DeadLetterStatusPending) {
			return apperrors.NewConflictError(fmt.Sprintf("dead letter %d is already %s", id, msg.Status))
		}

		requeued = msg.Requeue()
		if err := s.outboxRepo.CreateInTx(ctx, tx, requeued); err != nil {
			return err
		}
		return s.dlqRepo.MarkRequeuedInTx(ctx, tx, id)
	})
	if err != nil {
		return nil, s.mapErr("retry dead letter", id, err)
	}

	s.logger.Info("Dead letter re-queued", "deadLetterID", id, "outboxID", requeued.ID, "eventType", requeued.EventType)
	return requeued, nil
}

// DiscardDeadLetter gives up on a pending dead letter
func (s *DeadLetterService) DiscardDeadLetter(ctx context.Context, id int64, reason string) error {
	if reason == "" {
		reason = "discarded by operator"
	}

	err := s.db.WithTx(ctx, func(tx *sqlx.Tx) error {
		msg, err := s.dlqRepo.LockInTx(ctx, tx, id)
		if err != nil {
			return err
		}
		if msg.Status != string(models.DeadLetterStatusPending) {
			return apperrors.NewConflictError(fmt.Sprintf("dead letter %d is already %s", id, msg.Status))
		}
		return s.dlqRepo.MarkAsDiscardedInTx(ctx, tx, id, reason)
	})
	if err != nil {
		return s.mapErr("discard dead letter", id, err)
	}

	s.logger.Info("Dead letter discarded", "deadLetterID", id, "reason", reason)
	return nil
}

func (s *DeadLetterService) mapErr(op string, id int64, err error) error {
	if isRepoNotFound(err) {
		return apperrors.NewNotFoundError(fmt.Sprintf("dead letter %d not found", id))
	}
	return fromRepo(op, "dead_letter", fmt.Sprint(id), err)
}
