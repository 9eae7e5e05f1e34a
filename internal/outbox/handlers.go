package outbox

import (
	"context"
	"fmt"

	"github.com/vaidashi/backoffice-api/internal/models"
	"github.com/vaidashi/backoffice-api/pkg/logger"
)

// LoggingHandler logs events instead of publishing them. It stands in for the
// broker when Kafka is disabled, so the outbox still drains.
type LoggingHandler struct {
	logger logger.Logger
}

// NewLoggingHandler creates a new LoggingHandler
func NewLoggingHandler(logger logger.Logger) *LoggingHandler {
	return &LoggingHandler{
		logger: logger,
	}
}

// HandleMessage handles the outbox message by logging it
func (h *LoggingHandler) HandleMessage(ctx context.Context, message *models.OutboxMessage) error {
	event, data, err := models.DecodeStatusChanged(message.Payload)
	if err != nil {
		return fmt.Errorf("failed to unmarshal outbox message: %w", err)
	}

	h.logger.Info("Handling outbox message",
		"messageID", message.ID,
		"eventType", event.EventType,
		"eventID", event.EventID,
		"entity", data.EntityType,
		"entityID", data.EntityID,
		"oldStatus", data.OldStatus,
		"newStatus", data.NewStatus,
		"occurredAt", event.OccurredAt)

	return nil
}
