package service

import (
	"context"
	"fmt"

	"github.com/vaidashi/backoffice-api/internal/models"
	"github.com/vaidashi/backoffice-api/internal/repository"
	apperrors "github.com/vaidashi/backoffice-api/pkg/errors"
	"github.com/vaidashi/backoffice-api/pkg/logger"
)

// VariantService exposes stock on hand
type VariantService struct {
	variantRepo *repository.VariantRepository
	logger      logger.Logger
}

// NewVariantService creates a new VariantService
func NewVariantService(variantRepo *repository.VariantRepository, logger logger.Logger) *VariantService {
	return &VariantService{variantRepo: variantRepo, logger: logger}
}

// GetVariant retrieves a variant with its current stock
func (s *VariantService) GetVariant(ctx context.Context, id string) (*models.Variant, error) {
	v, err := s.variantRepo.GetByID(ctx, id)
	if err != nil {
		if isRepoNotFound(err) {
			return nil, apperrors.NewNotFoundError(fmt.Sprintf("variant %s not found", id))
		}
		return nil, apperrors.NewPersistenceError("get variant", err)
	}
	return v, nil
}
