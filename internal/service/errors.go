package service

import (
	"errors"
	"fmt"

	"github.com/vaidashi/backoffice-api/internal/models"
	"github.com/vaidashi/backoffice-api/internal/repository"
	apperrors "github.com/vaidashi/backoffice-api/pkg/errors"
)

// fromRepo turns repository sentinels into application errors
func fromRepo(op string, kind models.EntityKind, id string, err error) error {
	if err == nil {
		return nil
	}

	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		return err
	}
	if errors.Is(err, repository.ErrNotFound) {
		return apperrors.NewNotFoundError(fmt.Sprintf("%s %s not found", kind, id)).
			WithContext("kind", string(kind)).
			WithContext("id", id)
	}
	return apperrors.NewPersistenceError(op, err)
}

func notEditable(kind models.EntityKind, status string) error {
	return apperrors.NewConflictError(fmt.Sprintf("%s is not editable in status %s", humanKind(kind), status)).
		WithContext("status", status)
}

func humanKind(kind models.EntityKind) string {
	switch kind {
	case models.KindPurchaseOrder:
		return "purchase order"
	case models.KindInventoryCheck:
		return "inventory check"
	case models.KindSupportRequest:
		return "support request"
	default:
		return string(kind)
	}
}

func isRepoNotFound(err error) bool {
	var appErr *apperrors.AppError
	return !errors.As(err, &appErr) && errors.Is(err, repository.ErrNotFound)
}
