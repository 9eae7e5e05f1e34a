package outbox

import (
	"context"
	"errors"
	"fmt"

	"github.com/vaidashi/backoffice-api/internal/models"
	"github.com/vaidashi/backoffice-api/pkg/circuitbreaker"
	apperrors "github.com/vaidashi/backoffice-api/pkg/errors"
	"github.com/vaidashi/backoffice-api/pkg/kafka"
	"github.com/vaidashi/backoffice-api/pkg/logger"
	"github.com/vaidashi/backoffice-api/pkg/retry"
)

// EventTypeHeader carries the outbox event type on every published record
const EventTypeHeader = "event_type"

var errCircuitOpen = errors.New("kafka circuit breaker is open")

// Sender publishes one record
type Sender interface {
	Send(ctx context.Context, msg kafka.Message) error
}

// KafkaHandler publishes outbox messages to Kafka through a circuit breaker,
// retrying transient failures with backoff
type KafkaHandler struct {
	sender  Sender
	topic   string
	breaker *circuitbreaker.CircuitBreaker
	retry   retry.RetryConfig
	logger  logger.Logger
}

// NewKafkaHandler creates a new KafkaHandler
func NewKafkaHandler(
	sender Sender,
	topic string,
	breaker *circuitbreaker.CircuitBreaker,
	retryConfig retry.RetryConfig,
	logger logger.Logger,
) *KafkaHandler {
	if retryConfig.BackoffStrategy == nil {
		retryConfig.BackoffStrategy = retry.NewDefaultExponentialBackoff()
	}
	if retryConfig.Logger == nil {
		retryConfig.Logger = logger
	}
	retryConfig.ShouldRetry = func(err error) bool {
		return !errors.Is(err, errCircuitOpen) && apperrors.IsRetryable(err)
	}

	return &KafkaHandler{
		sender:  sender,
		topic:   topic,
		breaker: breaker,
		retry:   retryConfig,
		logger:  logger,
	}
}

// HandleMessage publishes the event, keyed by the entity id so every event
// of one entity lands on the same partition in order
func (h *KafkaHandler) HandleMessage(ctx context.Context, message *models.OutboxMessage) error {
	record := kafka.Message{
		Topic:   h.topic,
		Key:     message.AggregateID,
		Value:   message.Payload,
		Headers: map[string]string{EventTypeHeader: message.EventType},
	}

	err := retry.Retry(ctx, func(ctx context.Context) error {
		if !h.breaker.Allow() {
			return errCircuitOpen
		}

		if err := h.sender.Send(ctx, record); err != nil {
			h.breaker.Failure()
			return apperrors.NewTemporaryError(err.Error()).WithCause(err)
		}

		h.breaker.Success()
		return nil
	}, &h.retry)
	if err != nil {
		h.logger.Error("Failed to publish message to Kafka",
			"error", err,
			"messageID", message.ID,
			"aggregateID", message.AggregateID,
			"breaker", h.breaker.State().String())
		return fmt.Errorf("failed to publish message to Kafka: %w", err)
	}

	h.logger.Debug("Published message to Kafka",
		"topic", h.topic,
		"messageID", message.ID,
		"aggregateID", message.AggregateID,
		"eventType", message.EventType)
	return nil
}
