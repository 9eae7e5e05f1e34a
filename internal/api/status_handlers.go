package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/vaidashi/backoffice-api/internal/models"
	"github.com/vaidashi/backoffice-api/internal/service"
	apperrors "github.com/vaidashi/backoffice-api/pkg/errors"
	"github.com/vaidashi/backoffice-api/pkg/middleware"
)

type statusRequest struct {
	Status string `json:"status"`
	Note   string `json:"note"`
}

type statusUpdater func(ctx context.Context, id string, req service.StatusChange) (interface{}, error)

type historyLoader func(ctx context.Context, id string) ([]*models.StatusHistory, error)

// statusHandler decodes a status change and applies it as the request's actor
func (s *Server) statusHandler(update statusUpdater) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req statusRequest
		if err := decodeJSON(r, &req); err != nil {
			s.respondWithAppError(w, r, err)
			return
		}
		if strings.TrimSpace(req.Status) == "" {
			s.respondWithAppError(w, r, apperrors.NewInvalidInputError("status is required"))
			return
		}

		entity, err := update(r.Context(), pathID(r, "id"), service.StatusChange{
			Status:  req.Status,
			Note:    req.Note,
			ActorID: middleware.ActorFromContext(r.Context()),
		})
		if err != nil {
			s.respondWithAppError(w, r, err)
			return
		}

		s.respondWithJSON(w, http.StatusOK, ApiResponse{Success: true, Data: entity})
	}
}

func (s *Server) historyHandler(load historyLoader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		history, err := load(r.Context(), pathID(r, "id"))
		if err != nil {
			s.respondWithAppError(w, r, err)
			return
		}
		if history == nil {
			history = []*models.StatusHistory{}
		}

		s.respondWithJSON(w, http.StatusOK, ApiResponse{Success: true, Data: history})
	}
}

func (s *Server) updateOrderStatus(ctx context.Context, id string, req service.StatusChange) (interface{}, error) {
	return s.deps.Orders.UpdateOrderStatus(ctx, id, req)
}

func (s *Server) updatePurchaseOrderStatus(ctx context.Context, id string, req service.StatusChange) (interface{}, error) {
	return s.deps.PurchaseOrders.UpdatePurchaseOrderStatus(ctx, id, req)
}

func (s *Server) updateInventoryCheckStatus(ctx context.Context, id string, req service.StatusChange) (interface{}, error) {
	return s.deps.InventoryChecks.UpdateInventoryCheckStatus(ctx, id, req)
}

func (s *Server) updateSupportRequestStatus(ctx context.Context, id string, req service.StatusChange) (interface{}, error) {
	return s.deps.SupportRequests.UpdateSupportRequestStatus(ctx, id, req)
}

func (s *Server) orderHistory(ctx context.Context, id string) ([]*models.StatusHistory, error) {
	return s.deps.Orders.OrderHistory(ctx, id)
}

func (s *Server) purchaseOrderHistory(ctx context.Context, id string) ([]*models.StatusHistory, error) {
	return s.deps.PurchaseOrders.PurchaseOrderHistory(ctx, id)
}

func (s *Server) inventoryCheckHistory(ctx context.Context, id string) ([]*models.StatusHistory, error) {
	return s.deps.InventoryChecks.InventoryCheckHistory(ctx, id)
}

func (s *Server) supportRequestHistory(ctx context.Context, id string) ([]*models.StatusHistory, error) {
	return s.deps.SupportRequests.SupportRequestHistory(ctx, id)
}
