package api

import (
	"net/http"

	"github.com/vaidashi/backoffice-api/internal/service"
)

func (s *Server) createSupportRequestHandler(w http.ResponseWriter, r *http.Request) {
	var in service.CreateSupportRequestInput
	if err := decodeJSON(r, &in); err != nil {
		s.respondWithAppError(w, r, err)
		return
	}

	req, err := s.deps.SupportRequests.CreateSupportRequest(r.Context(), in)
	if err != nil {
		s.respondWithAppError(w, r, err)
		return
	}

	s.respondWithJSON(w, http.StatusCreated, ApiResponse{Success: true, Data: req})
}

func (s *Server) getSupportRequestByIDHandler(w http.ResponseWriter, r *http.Request) {
	req, err := s.deps.SupportRequests.GetSupportRequest(r.Context(), pathID(r, "id"))
	if err != nil {
		s.respondWithAppError(w, r, err)
		return
	}

	s.respondWithJSON(w, http.StatusOK, ApiResponse{Success: true, Data: req})
}

func (s *Server) getSupportRequestsHandler(w http.ResponseWriter, r *http.Request) {
	filter := listFilter(r)

	reqs, err := s.deps.SupportRequests.ListSupportRequests(r.Context(), filter)
	if err != nil {
		s.respondWithAppError(w, r, err)
		return
	}

	s.respondWithJSON(w, http.StatusOK, ApiResponse{Success: true, Data: PaginationResponse{
		Items:  reqs,
		Limit:  filter.Limit,
		Offset: filter.Offset,
		Status: filter.Status,
	}})
}
