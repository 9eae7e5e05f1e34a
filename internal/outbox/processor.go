package outbox

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/vaidashi/backoffice-api/internal/models"
	"github.com/vaidashi/backoffice-api/pkg/logger"
)

// MessageHandler defines the interface for handling outbox messages
type MessageHandler interface {
	HandleMessage(ctx context.Context, message *models.OutboxMessage) error
}

// MessageHandlerFunc adapts a function to MessageHandler
type MessageHandlerFunc func(ctx context.Context, message *models.OutboxMessage) error

// HandleMessage calls f
func (f MessageHandlerFunc) HandleMessage(ctx context.Context, message *models.OutboxMessage) error {
	return f(ctx, message)
}

// Store is the outbox persistence the processor drives
type Store interface {
	ClaimPending(ctx context.Context, limit int, lease time.Duration) ([]*models.OutboxMessage, error)
	MarkAsCompleted(ctx context.Context, id int64) error
	MarkForRetry(ctx context.Context, id int64, errorMessage string) error
	MoveToDeadLetter(ctx context.Context, message *models.OutboxMessage, errorMessage, reason string) error
	CountByStatus(ctx context.Context) (map[models.OutboxStatus]int, error)
}

// Observer is told about delivery outcomes
type Observer interface {
	MessagePublished(eventType string)
	MessageFailed(eventType string)
	MessageDeadLettered(eventType string)
	SetOutboxBacklog(counts map[models.OutboxStatus]int)
}

// Processor is responsible for processing outbox messages
type Processor struct {
	store           Store
	handlers        map[string]MessageHandler
	fallback        MessageHandler
	observer        Observer
	pollingInterval time.Duration
	batchSize       int
	maxRetries      int
	claimLease      time.Duration
	logger          logger.Logger

	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running bool
	mu      sync.Mutex
}

// ProcessorConfig holds the configuration for the Processor
type ProcessorConfig struct {
	PollingInterval time.Duration
	BatchSize       int
	MaxRetries      int
	// ClaimLease is how long a claimed message may stay in processing
	// before another poll treats the claim as abandoned.
	ClaimLease time.Duration
}

// settleTimeout bounds the status write that follows a delivery attempt.
// The write is detached from the processor's context.
const settleTimeout = 5 * time.Second

// NewProcessor creates a new Processor
func NewProcessor(store Store, config ProcessorConfig, observer Observer, logger logger.Logger) *Processor {
	if config.PollingInterval <= 0 {
		config.PollingInterval = 5 * time.Second
	}
	if config.BatchSize <= 0 {
		config.BatchSize = 10
	}
	if config.MaxRetries <= 0 {
		config.MaxRetries = 5
	}
	if config.ClaimLease <= 0 {
		config.ClaimLease = 2 * time.Minute
	}

	return &Processor{
		store:           store,
		handlers:        make(map[string]MessageHandler),
		observer:        observer,
		pollingInterval: config.PollingInterval,
		batchSize:       config.BatchSize,
		maxRetries:      config.MaxRetries,
		claimLease:      config.ClaimLease,
		logger:          logger,
	}
}

// RegisterHandler registers a message handler for a specific event type
func (p *Processor) RegisterHandler(eventType string, handler MessageHandler) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.handlers[eventType] = handler
}

// RegisterFallback handles every event type without a dedicated handler
func (p *Processor) RegisterFallback(handler MessageHandler) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.fallback = handler
}

func (p *Processor) handlerFor(eventType string) MessageHandler {
	p.mu.Lock()
	defer p.mu.Unlock()

	if h, ok := p.handlers[eventType]; ok {
		return h
	}
	return p.fallback
}

// Start starts the outbox processor
func (p *Processor) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.running {
		return
	}

	ctx, p.cancel = context.WithCancel(ctx)
	p.running = true
	p.wg.Add(1)

	go func() {
		defer p.wg.Done()
		p.processOutbox(ctx)
	}()

	p.logger.Info("Outbox processor started",
		"pollingInterval", p.pollingInterval,
		"batchSize", p.batchSize,
		"maxRetries", p.maxRetries,
		"claimLease", p.claimLease)
}

// Stop stops the outbox processor and waits for the current batch
func (p *Processor) Stop() {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	p.cancel()
	p.running = false
	p.mu.Unlock()

	p.wg.Wait()
	p.logger.Info("Outbox processor stopped")
}

// processOutbox processes outbox messages in a loop
func (p *Processor) processOutbox(ctx context.Context) {
	ticker := time.NewTicker(p.pollingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := p.ProcessBatch(ctx); err != nil {
				p.logger.Error("Failed to process outbox batch", "error", err)
			}
		}
	}
}

// ProcessBatch claims one batch of pending messages and delivers them.
// It returns how many messages were delivered.
func (p *Processor) ProcessBatch(ctx context.Context) (int, error) {
	messages, err := p.store.ClaimPending(ctx, p.batchSize, p.claimLease)
	if err != nil {
		return 0, fmt.Errorf("failed to claim pending messages: %w", err)
	}

	delivered := 0
	if len(messages) > 0 {
		p.logger.Debug("Processing batch of outbox messages", "count", len(messages))
	}

	for i, msg := range messages {
		if ctx.Err() != nil {
			p.release(ctx, messages[i:])
			break
		}
		if err := p.processMessage(ctx, msg); err != nil {
			p.logger.Error("Failed to process message",
				"error", err,
				"messageID", msg.ID,
				"aggregateID", msg.AggregateID,
				"eventType", msg.EventType)
			continue
		}
		delivered++
	}

	if ctx.Err() == nil {
		p.reportBacklog(ctx)
	}
	return delivered, nil
}

// processMessage delivers a claimed message. On failure the message goes
// back to pending, or to the dead letter table once it used every attempt.
func (p *Processor) processMessage(ctx context.Context, msg *models.OutboxMessage) error {
	handler := p.handlerFor(msg.EventType)
	if handler == nil {
		errorMsg := fmt.Sprintf("no handler registered for event type: %s", msg.EventType)
		p.deadLetter(ctx, msg, errorMsg, "no handler")
		return fmt.Errorf("%s", errorMsg)
	}

	if err := handler.HandleMessage(ctx, msg); err != nil {
		if ctx.Err() != nil {
			// Interrupted by shutdown, not a delivery failure.
			p.release(ctx, []*models.OutboxMessage{msg})
			return err
		}

		p.observe(func(o Observer) { o.MessageFailed(msg.EventType) })

		if msg.ProcessingAttempts >= p.maxRetries {
			p.deadLetter(ctx, msg, err.Error(), fmt.Sprintf("max retries (%d) exceeded", p.maxRetries))
			return fmt.Errorf("message failed after %d attempts: %w", msg.ProcessingAttempts, err)
		}

		p.logger.Warn("Message processing failed, will retry",
			"error", err,
			"messageID", msg.ID,
			"attempt", msg.ProcessingAttempts)

		settleCtx, cancel := settleContext(ctx)
		defer cancel()
		if markErr := p.store.MarkForRetry(settleCtx, msg.ID, err.Error()); markErr != nil {
			p.logger.Error("Failed to mark message for retry", "error", markErr, "messageID", msg.ID)
		}
		return err
	}

	settleCtx, cancel := settleContext(ctx)
	defer cancel()
	if err := p.store.MarkAsCompleted(settleCtx, msg.ID); err != nil {
		return fmt.Errorf("failed to mark message as completed: %w", err)
	}

	p.observe(func(o Observer) { o.MessagePublished(msg.EventType) })
	p.logger.Info("Successfully processed message",
		"messageID", msg.ID,
		"aggregateID", msg.AggregateID,
		"eventType", msg.EventType)

	return nil
}

// release hands claimed but undelivered messages back to pending
func (p *Processor) release(ctx context.Context, messages []*models.OutboxMessage) {
	settleCtx, cancel := settleContext(ctx)
	defer cancel()

	for _, msg := range messages {
		if err := p.store.MarkForRetry(settleCtx, msg.ID, "processor stopped before delivery"); err != nil {
			p.logger.Error("Failed to release outbox message", "error", err, "messageID", msg.ID)
		}
	}
	p.logger.Info("Released undelivered outbox messages", "count", len(messages))
}

func settleContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), settleTimeout)
}

func (p *Processor) deadLetter(ctx context.Context, msg *models.OutboxMessage, errorMsg, reason string) {
	settleCtx, cancel := settleContext(ctx)
	defer cancel()
	if err := p.store.MoveToDeadLetter(settleCtx, msg, errorMsg, reason); err != nil {
		p.logger.Error("Failed to move message to dead letter queue", "error", err, "messageID", msg.ID)
		return
	}

	p.observe(func(o Observer) { o.MessageDeadLettered(msg.EventType) })
	p.logger.Warn("Message moved to dead letter queue",
		"messageID", msg.ID,
		"eventType", msg.EventType,
		"attempts", msg.ProcessingAttempts,
		"reason", reason)
}

func (p *Processor) reportBacklog(ctx context.Context) {
	if p.observer == nil {
		return
	}

	counts, err := p.store.CountByStatus(ctx)
	if err != nil {
		p.logger.Warn("Failed to count outbox messages", "error", err)
		return
	}
	p.observer.SetOutboxBacklog(counts)
}

func (p *Processor) observe(fn func(Observer)) {
	if p.observer != nil {
		fn(p.observer)
	}
}
