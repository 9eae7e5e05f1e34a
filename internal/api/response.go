package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/vaidashi/backoffice-api/internal/repository"
	apperrors "github.com/vaidashi/backoffice-api/pkg/errors"
)

// ApiResponse is the standard API response envelope
type ApiResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// PaginationResponse wraps a page of items
type PaginationResponse struct {
	Items  interface{} `json:"items"`
	Total  int         `json:"total,omitempty"`
	Limit  int         `json:"limit"`
	Offset int         `json:"offset"`
	Status string      `json:"status,omitempty"`
}

// respondWithJSON sends a JSON response
func (s *Server) respondWithJSON(w http.ResponseWriter, statusCode int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("Failed to encode response", "error", err)
	}
}

// respondWithError sends an error response
func (s *Server) respondWithError(w http.ResponseWriter, statusCode int, message string) {
	s.respondWithJSON(w, statusCode, ApiResponse{Success: false, Error: message})
}

// respondWithAppError maps a service error to its status code. Server-side
// failures are logged and answered with a generic message.
func (s *Server) respondWithAppError(w http.ResponseWriter, r *http.Request, err error) {
	code := apperrors.StatusCode(err)
	if code >= http.StatusInternalServerError {
		s.logger.Error("Request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		s.respondWithError(w, code, "internal server error")
		return
	}
	s.respondWithError(w, code, err.Error())
}

// decodeJSON reads the request body into dst, rejecting unknown fields
func decodeJSON(r *http.Request, dst interface{}) error {
	defer r.Body.Close()

	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		return apperrors.NewInvalidInputError("invalid request payload")
	}
	return nil
}

// listFilter reads limit, offset and status from the query string
func listFilter(r *http.Request) repository.ListFilter {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))

	return repository.ListFilter{
		Status: q.Get("status"),
		Limit:  limit,
		Offset: offset,
	}.Normalize()
}

func pathID(r *http.Request, name string) string {
	return mux.Vars(r)[name]
}
