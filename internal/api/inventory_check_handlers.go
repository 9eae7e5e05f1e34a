package api

import (
	"net/http"

	"github.com/vaidashi/backoffice-api/internal/service"
	"github.com/vaidashi/backoffice-api/pkg/middleware"
)

type countUpdateRequest struct {
	ActualQuantity int `json:"actual_quantity"`
}

func (s *Server) createInventoryCheckHandler(w http.ResponseWriter, r *http.Request) {
	var in service.CreateInventoryCheckInput
	if err := decodeJSON(r, &in); err != nil {
		s.respondWithAppError(w, r, err)
		return
	}
	in.CreatedBy = middleware.ActorFromContext(r.Context())

	check, err := s.deps.InventoryChecks.CreateInventoryCheck(r.Context(), in)
	if err != nil {
		s.respondWithAppError(w, r, err)
		return
	}

	s.respondWithJSON(w, http.StatusCreated, ApiResponse{Success: true, Data: check})
}

func (s *Server) getInventoryCheckByIDHandler(w http.ResponseWriter, r *http.Request) {
	check, err := s.deps.InventoryChecks.GetInventoryCheck(r.Context(), pathID(r, "id"))
	if err != nil {
		s.respondWithAppError(w, r, err)
		return
	}

	s.respondWithJSON(w, http.StatusOK, ApiResponse{Success: true, Data: check})
}

func (s *Server) updateInventoryCheckDetailHandler(w http.ResponseWriter, r *http.Request) {
	var req countUpdateRequest
	if err := decodeJSON(r, &req); err != nil {
		s.respondWithAppError(w, r, err)
		return
	}

	check, err := s.deps.InventoryChecks.UpdateDetail(r.Context(), pathID(r, "id"), pathID(r, "detailID"), req.ActualQuantity)
	if err != nil {
		s.respondWithAppError(w, r, err)
		return
	}

	s.respondWithJSON(w, http.StatusOK, ApiResponse{Success: true, Data: check})
}
