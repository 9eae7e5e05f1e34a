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

// CountItem is the counted quantity of one variant
type CountItem struct {
	VariantID      string `json:"variant_id"`
	ActualQuantity int    `json:"actual_quantity"`
}

// CreateInventoryCheckInput is the request to start a stock count
type CreateInventoryCheckInput struct {
	Note      string      `json:"note"`
	Items     []CountItem `json:"items"`
	CreatedBy string      `json:"-"`
}

// InventoryCheckService handles stock counts
type InventoryCheckService struct {
	db          *database.Database
	icRepo      *repository.InventoryCheckRepository
	variantRepo *repository.VariantRepository
	outboxRepo  *repository.OutboxRepository
	transitions *TransitionService
	cache       cache.EntityCache
	logger      logger.Logger
}

// NewInventoryCheckService creates a new InventoryCheckService
func NewInventoryCheckService(
	db *database.Database,
	icRepo *repository.InventoryCheckRepository,
	variantRepo *repository.VariantRepository,
	outboxRepo *repository.OutboxRepository,
	transitions *TransitionService,
	entityCache cache.EntityCache,
	logger logger.Logger,
) *InventoryCheckService {
	return &InventoryCheckService{
		db:          db,
		icRepo:      icRepo,
		variantRepo: variantRepo,
		outboxRepo:  outboxRepo,
		transitions: transitions,
		cache:       entityCache,
		logger:      logger,
	}
}

func validateCounts(items []CountItem) error {
	if len(items) == 0 {
		return apperrors.NewInvalidInputError("inventory check must count at least one variant")
	}

	seen := make(map[string]struct{}, len(items))
	for _, it := range items {
		if strings.TrimSpace(it.VariantID) == "" {
			return apperrors.NewInvalidInputError("variant_id is required")
		}
		if it.ActualQuantity < 0 {
			return apperrors.NewInvalidInputError(fmt.Sprintf("actual_quantity for %s must not be negative", it.VariantID))
		}
		if _, dup := seen[it.VariantID]; dup {
			return apperrors.NewInvalidInputError(fmt.Sprintf("variant %s is counted twice", it.VariantID))
		}
		seen[it.VariantID] = struct{}{}
	}
	return nil
}

// CreateInventoryCheck starts a draft count, recording each variant's current stock next to the counted quantity
func (s *InventoryCheckService) CreateInventoryCheck(ctx context.Context, in CreateInventoryCheckInput) (*models.InventoryCheck, error) {
	if err := validateCounts(in.Items); err != nil {
		return nil, err
	}

	ic := models.NewInventoryCheck(in.Note, in.CreatedBy)

	err := s.db.WithTx(ctx, func(tx *sqlx.Tx) error {
		ids := make([]string, len(in.Items))
		for i, it := range in.Items {
			ids[i] = it.VariantID
		}
		variants, err := s.variantRepo.LockInTx(ctx, tx, ids)
		if err != nil {
			return err
		}

		for _, it := range in.Items {
			v, ok := variants[it.VariantID]
			if !ok {
				return apperrors.NewNotFoundError(fmt.Sprintf("variant %s not found", it.VariantID))
			}
			ic.Details = append(ic.Details, &models.InventoryCheckDetail{
				ID:               models.GenerateID("icd"),
				InventoryCheckID: ic.ID,
				VariantID:        v.ID,
				SystemQuantity:   v.Quantity,
				ActualQuantity:   it.ActualQuantity,
			})
		}

		if err := s.icRepo.CreateInTx(ctx, tx, ic); err != nil {
			return err
		}

		event, err := models.NewCreatedEvent(models.StatusChangedData{
			EntityType: models.KindInventoryCheck,
			EntityID:   ic.ID,
			NewStatus:  ic.Status,
			ActorID:    in.CreatedBy,
		})
		if err != nil {
			return fmt.Errorf("build inventory check event: %w", err)
		}
		return s.outboxRepo.CreateInTx(ctx, tx, event)
	})
	if err != nil {
		return nil, fromRepo("create inventory check", models.KindInventoryCheck, ic.ID, err)
	}

	s.logger.Info("Inventory check created", "inventoryCheckID", ic.ID, "variants", len(ic.Details))
	return ic, nil
}

// GetInventoryCheck retrieves an inventory check with its lines
func (s *InventoryCheckService) GetInventoryCheck(ctx context.Context, id string) (*models.InventoryCheck, error) {
	return readThrough(ctx, s.cache, s.logger, models.KindInventoryCheck, id, func(ctx context.Context) (*models.InventoryCheck, error) {
		return s.icRepo.GetByID(ctx, id)
	})
}

// UpdateDetail records a new counted quantity while the check is a draft
func (s *InventoryCheckService) UpdateDetail(ctx context.Context, id, detailID string, actual int) (*models.InventoryCheck, error) {
	if actual < 0 {
		return nil, apperrors.NewInvalidInputError("actual_quantity must not be negative")
	}

	err := s.db.WithTx(ctx, func(tx *sqlx.Tx) error {
		ic, err := s.icRepo.LockInTx(ctx, tx, id)
		if err != nil {
			return err
		}
		if !models.DetailsEditable(models.KindInventoryCheck, ic.Status) {
			return notEditable(models.KindInventoryCheck, ic.Status)
		}

		err = s.icRepo.UpdateActualQuantityInTx(ctx, tx, id, detailID, actual)
		if err != nil && isRepoNotFound(err) {
			return apperrors.NewNotFoundError(fmt.Sprintf("inventory check detail %s not found", detailID))
		}
		return err
	})
	if err != nil {
		return nil, fromRepo("update inventory check detail", models.KindInventoryCheck, id, err)
	}

	if err := s.cache.Invalidate(ctx, models.KindInventoryCheck, id); err != nil {
		s.logger.Warn("Failed to invalidate cached entity", "kind", models.KindInventoryCheck, "id", id, "error", err)
	}

	ic, err := s.icRepo.GetByID(ctx, id)
	if err != nil {
		return nil, fromRepo("get inventory check", models.KindInventoryCheck, id, err)
	}
	return ic, nil
}

// UpdateInventoryCheckStatus applies a guarded transition and returns the updated check
func (s *InventoryCheckService) UpdateInventoryCheckStatus(ctx context.Context, id string, req StatusChange) (*models.InventoryCheck, error) {
	if _, err := s.transitions.Apply(ctx, models.KindInventoryCheck, id, req); err != nil {
		return nil, err
	}

	ic, err := s.icRepo.GetByID(ctx, id)
	if err != nil {
		return nil, fromRepo("get inventory check", models.KindInventoryCheck, id, err)
	}
	return ic, nil
}

// InventoryCheckHistory returns the status history of an existing inventory check
func (s *InventoryCheckService) InventoryCheckHistory(ctx context.Context, id string) ([]*models.StatusHistory, error) {
	if _, err := s.GetInventoryCheck(ctx, id); err != nil {
		return nil, err
	}
	return s.transitions.History(ctx, models.KindInventoryCheck, id)
}
