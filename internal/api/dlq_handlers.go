package api

import (
	"net/http"
	"strconv"

	apperrors "github.com/vaidashi/backoffice-api/pkg/errors"
)

// getDeadLettersHandler returns a page of dead letter messages
func (s *Server) getDeadLettersHandler(w http.ResponseWriter, r *http.Request) {
	filter := listFilter(r)

	messages, err := s.deps.DeadLetters.ListDeadLetters(r.Context(), filter)
	if err != nil {
		s.respondWithAppError(w, r, err)
		return
	}

	s.respondWithJSON(w, http.StatusOK, ApiResponse{Success: true, Data: PaginationResponse{
		Items:  messages,
		Limit:  filter.Limit,
		Offset: filter.Offset,
		Status: filter.Status,
	}})
}

// retryDeadLetterHandler puts a pending dead letter back into the outbox
func (s *Server) retryDeadLetterHandler(w http.ResponseWriter, r *http.Request) {
	id, err := deadLetterID(r)
	if err != nil {
		s.respondWithAppError(w, r, err)
		return
	}

	msg, err := s.deps.DeadLetters.RetryDeadLetter(r.Context(), id)
	if err != nil {
		s.respondWithAppError(w, r, err)
		return
	}

	s.logger.Info("Dead letter requeued", "messageID", id, "outboxID", msg.ID)
	s.respondWithJSON(w, http.StatusOK, ApiResponse{
		Success: true,
		Data: map[string]interface{}{
			"message":   "Dead letter message requeued",
			"id":        id,
			"outbox_id": msg.ID,
		},
	})
}

// discardDeadLetterHandler discards a dead letter message
func (s *Server) discardDeadLetterHandler(w http.ResponseWriter, r *http.Request) {
	id, err := deadLetterID(r)
	if err != nil {
		s.respondWithAppError(w, r, err)
		return
	}

	var req struct {
		Reason string `json:"reason"`
	}
	if r.ContentLength != 0 {
		if err := decodeJSON(r, &req); err != nil {
			s.respondWithAppError(w, r, err)
			return
		}
	}
	if req.Reason == "" {
		req.Reason = "No reason provided"
	}

	if err := s.deps.DeadLetters.DiscardDeadLetter(r.Context(), id, req.Reason); err != nil {
		s.respondWithAppError(w, r, err)
		return
	}

	s.respondWithJSON(w, http.StatusOK, ApiResponse{
		Success: true,
		Data: map[string]interface{}{
			"message": "Dead letter message discarded",
			"id":      id,
		},
	})
}

func deadLetterID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(pathID(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, apperrors.NewInvalidInputError("invalid message ID")
	}
	return id, nil
}
