package api

import (
	"net/http"

	"github.com/shopspring/decimal"
	"github.com/vaidashi/backoffice-api/internal/service"
	"github.com/vaidashi/backoffice-api/pkg/middleware"
)

type detailUpdateRequest struct {
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

func (s *Server) createPurchaseOrderHandler(w http.ResponseWriter, r *http.Request) {
	var in service.CreatePurchaseOrderInput
	if err := decodeJSON(r, &in); err != nil {
		s.respondWithAppError(w, r, err)
		return
	}
	in.CreatedBy = middleware.ActorFromContext(r.Context())

	po, err := s.deps.PurchaseOrders.CreatePurchaseOrder(r.Context(), in)
	if err != nil {
		s.respondWithAppError(w, r, err)
		return
	}

	s.respondWithJSON(w, http.StatusCreated, ApiResponse{Success: true, Data: po})
}

func (s *Server) getPurchaseOrderByIDHandler(w http.ResponseWriter, r *http.Request) {
	po, err := s.deps.PurchaseOrders.GetPurchaseOrder(r.Context(), pathID(r, "id"))
	if err != nil {
		s.respondWithAppError(w, r, err)
		return
	}

	s.respondWithJSON(w, http.StatusOK, ApiResponse{Success: true, Data: po})
}

func (s *Server) getPurchaseOrdersHandler(w http.ResponseWriter, r *http.Request) {
	filter := listFilter(r)

	pos, err := s.deps.PurchaseOrders.ListPurchaseOrders(r.Context(), filter)
	if err != nil {
		s.respondWithAppError(w, r, err)
		return
	}

	s.respondWithJSON(w, http.StatusOK, ApiResponse{Success: true, Data: PaginationResponse{
		Items:  pos,
		Limit:  filter.Limit,
		Offset: filter.Offset,
		Status: filter.Status,
	}})
}

func (s *Server) addPurchaseOrderDetailHandler(w http.ResponseWriter, r *http.Request) {
	var item service.PurchaseOrderItem
	if err := decodeJSON(r, &item); err != nil {
		s.respondWithAppError(w, r, err)
		return
	}

	po, err := s.deps.PurchaseOrders.AddDetail(r.Context(), pathID(r, "id"), item)
	if err != nil {
		s.respondWithAppError(w, r, err)
		return
	}

	s.respondWithJSON(w, http.StatusCreated, ApiResponse{Success: true, Data: po})
}

func (s *Server) updatePurchaseOrderDetailHandler(w http.ResponseWriter, r *http.Request) {
	var req detailUpdateRequest
	if err := decodeJSON(r, &req); err != nil {
		s.respondWithAppError(w, r, err)
		return
	}

	po, err := s.deps.PurchaseOrders.UpdateDetail(r.Context(), pathID(r, "id"), pathID(r, "detailID"), req.Quantity, req.UnitPrice)
	if err != nil {
		s.respondWithAppError(w, r, err)
		return
	}

	s.respondWithJSON(w, http.StatusOK, ApiResponse{Success: true, Data: po})
}

func (s *Server) deletePurchaseOrderDetailHandler(w http.ResponseWriter, r *http.Request) {
	po, err := s.deps.PurchaseOrders.DeleteDetail(r.Context(), pathID(r, "id"), pathID(r, "detailID"))
	if err != nil {
		s.respondWithAppError(w, r, err)
		return
	}

	s.respondWithJSON(w, http.StatusOK, ApiResponse{Success: true, Data: po})
}
