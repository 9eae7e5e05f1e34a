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

const supportRequestColumns = `id, customer_id, subject, message, status, created_at, updated_at`

// SupportRequestRepository handles database operations for support requests
type SupportRequestRepository struct {
	db     *database.Database
	logger logger.Logger
}

// NewSupportRequestRepository creates a new SupportRequestRepository
func NewSupportRequestRepository(db *database.Database, logger logger.Logger) *SupportRequestRepository {
	return &SupportRequestRepository{
		db:     db,
		logger: logger,
	}
}

// CreateInTx inserts a support request within a transaction
func (r *SupportRequestRepository) CreateInTx(ctx context.Context, tx *sqlx.Tx, sr *models.SupportRequest) error {
	query := `
		INSERT INTO support_requests (` + supportRequestColumns + `)
		VALUES (:id, :customer_id, :subject, :message, :status, :created_at, :updated_at)
	`

	if _, err := tx.NamedExecContext(ctx, query, sr); err != nil {
		return fmt.Errorf("%w: insert support request: %v", ErrDatabase, err)
	}
	return nil
}

// GetByID retrieves a support request by its ID
func (r *SupportRequestRepository) GetByID(ctx context.Context, id string) (*models.SupportRequest, error) {
	query := `SELECT ` + supportRequestColumns + ` FROM support_requests WHERE id = $1`

	var sr models.SupportRequest
	if err := r.db.DB.GetContext(ctx, &sr, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		r.logger.Error("Failed to get support request by ID", "error", err, "supportRequestID", id)
		return nil, fmt.Errorf("%w: %v", ErrDatabase, err)
	}
	return &sr, nil
}

// List retrieves support requests, newest first
func (r *SupportRequestRepository) List(ctx context.Context, filter ListFilter) ([]*models.SupportRequest, error) {
	filter = filter.Normalize()
	query := `
		SELECT ` + supportRequestColumns + `
		FROM support_requests
		WHERE ($1 = '' OR status = $1)
		ORDER BY created_at DESC, id
		LIMIT $2 OFFSET $3
	`

	out := []*models.SupportRequest{}
	if err := r.db.DB.SelectContext(ctx, &out, query, filter.Status, filter.Limit, filter.Offset); err != nil {
		r.logger.Error("Failed to list support requests", "error", err)
		return nil, fmt.Errorf("%w: %v", ErrDatabase, err)
	}
	return out, nil
}
