package api

import (
	"net/http"

	"github.com/vaidashi/backoffice-api/internal/service"
)

func (s *Server) createOrderHandler(w http.ResponseWriter, r *http.Request) {
	var in service.CreateOrderInput
	if err := decodeJSON(r, &in); err != nil {
		s.respondWithAppError(w, r, err)
		return
	}

	order, err := s.deps.Orders.CreateOrder(r.Context(), in)
	if err != nil {
		s.respondWithAppError(w, r, err)
		return
	}

	s.respondWithJSON(w, http.StatusCreated, ApiResponse{Success: true, Data: order})
}

func (s *Server) getOrderByIDHandler(w http.ResponseWriter, r *http.Request) {
	order, err := s.deps.Orders.GetOrder(r.Context(), pathID(r, "id"))
	if err != nil {
		s.respondWithAppError(w, r, err)
		return
	}

	s.respondWithJSON(w, http.StatusOK, ApiResponse{Success: true, Data: order})
}

func (s *Server) getOrdersHandler(w http.ResponseWriter, r *http.Request) {
	filter := listFilter(r)

	orders, total, err := s.deps.Orders.ListOrders(r.Context(), filter)
	if err != nil {
		s.respondWithAppError(w, r, err)
		return
	}

	s.respondWithJSON(w, http.StatusOK, ApiResponse{Success: true, Data: PaginationResponse{
		Items:  orders,
		Total:  total,
		Limit:  filter.Limit,
		Offset: filter.Offset,
		Status: filter.Status,
	}})
}
