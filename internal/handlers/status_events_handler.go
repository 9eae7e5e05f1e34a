package handlers

import (
	"context"
	"fmt"

	"github.com/Shopify/sarama"
	"github.com/vaidashi/backoffice-api/internal/cache"
	"github.com/vaidashi/backoffice-api/internal/models"
	"github.com/vaidashi/backoffice-api/pkg/kafka"
	"github.com/vaidashi/backoffice-api/pkg/logger"
)

// StatusEventsHandler consumes entity events from Kafka and drops the cached
// copy of the entity, so reads on every instance see the new status
type StatusEventsHandler struct {
	cache  cache.EntityCache
	logger logger.Logger
}

// NewStatusEventsHandler creates a new StatusEventsHandler
func NewStatusEventsHandler(entityCache cache.EntityCache, logger logger.Logger) *StatusEventsHandler {
	return &StatusEventsHandler{
		cache:  entityCache,
		logger: logger,
	}
}

// HandleMessage handles one created or status changed event
func (h *StatusEventsHandler) HandleMessage(ctx context.Context, msg *sarama.ConsumerMessage) error {
	event, data, err := models.DecodeStatusChanged(msg.Value)
	if err != nil {
		// A malformed record will never decode; retrying it would stall the partition.
		h.logger.Error("Failed to unmarshal status event",
			"error", err,
			"partition", msg.Partition,
			"offset", msg.Offset,
			"eventType", kafka.Header(msg, "event_type"))
		return nil
	}

	kind, err := models.ParseEntityKind(string(data.EntityType))
	if err != nil {
		h.logger.Warn("Ignoring event for unknown entity", "eventType", event.EventType, "entity", data.EntityType)
		return nil
	}

	if err := h.cache.Invalidate(ctx, kind, data.EntityID); err != nil {
		return fmt.Errorf("invalidate %s %s: %w", kind, data.EntityID, err)
	}

	h.logger.Debug("Handled status event",
		"eventType", event.EventType,
		"eventID", event.EventID,
		"entity", kind,
		"entityID", data.EntityID,
		"oldStatus", data.OldStatus,
		"newStatus", data.NewStatus)
	return nil
}
