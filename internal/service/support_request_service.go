package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/vaidashi/backoffice-api/internal/cache"
	"github.com/vaidashi/backoffice-api/internal/database"
	"github.com/vaidashi/backoffice-api/internal/models"
	"github.com/vaidashi/backoffice-api/internal/repository"
	apperrors "github.com/vaidashi/backoffice-api/pkg/errors"
	"github.com/vaidashi/backoffice-api/pkg/logger"
)

// CreateSupportRequestInput is a new customer ticket
type CreateSupportRequestInput struct {
	CustomerID string `json:"customer_id"`
	Subject    string `json:"subject"`
	Message    string `json:"message"`
}

// SupportRequestService handles customer support tickets
type SupportRequestService struct {
	db          *database.Database
	srRepo      *repository.SupportRequestRepository
	outboxRepo  *repository.OutboxRepository
	transitions *TransitionService
	cache       cache.EntityCache
	logger      logger.Logger
}

// NewSupportRequestService creates a new SupportRequestService
func NewSupportRequestService(
	db *database.Database,
	srRepo *repository.SupportRequestRepository,
	outboxRepo *repository.OutboxRepository,
	transitions *TransitionService,
	entityCache cache.EntityCache,
	logger logger.Logger,
) *SupportRequestService {
	return &SupportRequestService{
		db:          db,
		srRepo:      srRepo,
		outboxRepo:  outboxRepo,
		transitions: transitions,
		cache:       entityCache,
		logger:      logger,
	}
}

// CreateSupportRequest opens a pending ticket
func (s *SupportRequestService) CreateSupportRequest(ctx context.Context, in CreateSupportRequestInput) (*models.SupportRequest, error) {
	switch {
	case strings.TrimSpace(in.CustomerID) == "":
		return nil, apperrors.NewInvalidInputError("customer_id is required")
	case strings.TrimSpace(in.Subject) == "":
		return nil, apperrors.NewInvalidInputError("subject is required")
	case strings.TrimSpace(in.Message) == "":
		return nil, apperrors.NewInvalidInputError("message is required")
	}

	sr := models.NewSupportRequest(in.CustomerID, in.Subject, in.Message)

	err := s.db.WithTx(ctx, func(tx *sqlx.Tx) error {
		if err := s.srRepo.CreateInTx(ctx, tx, sr); err != nil {
			return err
		}

		event, err := models.NewCreatedEvent(models.StatusChangedData{
			EntityType: models.KindSupportRequest,
			EntityID:   sr.ID,
			NewStatus:  sr.Status,
			ActorID:    in.CustomerID,
		})
		if err != nil {
			return fmt.Errorf("build support request event: %w", err)
		}
		return s.outboxRepo.CreateInTx(ctx, tx, event)
	})
	if err != nil {
		return nil, fromRepo("create support request", models.KindSupportRequest, sr.ID, err)
	}

	s.logger.Info("Support request created", "supportRequestID", sr.ID, "customerID", sr.CustomerID)
	return sr, nil
}

// GetSupportRequest retrieves a support request by ID
func (s *SupportRequestService) GetSupportRequest(ctx context.Context, id string) (*models.SupportRequest, error) {
	return readThrough(ctx, s.cache, s.logger, models.KindSupportRequest, id, func(ctx context.Context) (*models.SupportRequest, error) {
		return s.srRepo.GetByID(ctx, id)
	})
}

// ListSupportRequests retrieves a page of support requests
func (s *SupportRequestService) ListSupportRequests(ctx context.Context, filter repository.ListFilter) ([]*models.SupportRequest, error) {
	srs, err := s.srRepo.List(ctx, filter)
	if err != nil {
		return nil, apperrors.NewPersistenceError("list support requests", err)
	}
	return srs, nil
}

// UpdateSupportRequestStatus applies a guarded transition and returns the updated ticket
func (s *SupportRequestService) UpdateSupportRequestStatus(ctx context.Context, id string, req StatusChange) (*models.SupportRequest, error) {
	if _, err := s.transitions.Apply(ctx, models.KindSupportRequest, id, req); err != nil {
		return nil, err
	}

	sr, err := s.srRepo.GetByID(ctx, id)
	if err != nil {
		return nil, fromRepo("get support request", models.KindSupportRequest, id, err)
	}
	return sr, nil
}

// SupportRequestHistory returns the status history of an existing ticket
func (s *SupportRequestService) SupportRequestHistory(ctx context.Context, id string) ([]*models.StatusHistory, error) {
	if _, err := s.GetSupportRequest(ctx, id); err != nil {
		return nil, err
	}
	return s.transitions.History(ctx, models.KindSupportRequest, id)
}
