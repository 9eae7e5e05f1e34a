// Package transition implements the guarded status change shared by every
// back-office entity: lock, validate against the entity's table, run the
// registered side effects, persist the status and append history, all in
// one transaction.
package transition

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/vaidashi/backoffice-api/internal/models"
	apperrors "github.com/vaidashi/backoffice-api/pkg/errors"
	"github.com/vaidashi/backoffice-api/pkg/logger"
	"github.com/vaidashi/backoffice-api/pkg/statemachine"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// AnyStatus registers an effect for every destination status of a kind.
const AnyStatus = "*"

// Request asks for one entity to move to a new status
type Request struct {
	Kind     models.EntityKind
	EntityID string
	To       string
	Note     string
	ActorID  string
}

// Change describes an accepted transition. Effects receive it before the
// status is written.
type Change struct {
	Kind     models.EntityKind
	EntityID string
	From     string
	To       string
	Note     string
	ActorID  string
}

// Effect runs inside the transition's transaction. Returning an error
// aborts the transition and rolls back everything it did.
type Effect[T any] func(ctx context.Context, tx T, change Change) error

// Store is the persistence the engine needs. T is the transaction handle.
type Store[T any] interface {
	WithTx(ctx context.Context, fn func(tx T) error) error
	// LockStatus reads the current status and holds a lock on the entity
	// until the transaction ends. It returns a not-found error when the
	// entity does not exist.
	LockStatus(ctx context.Context, tx T, kind models.EntityKind, id string) (string, error)
	SetStatus(ctx context.Context, tx T, kind models.EntityKind, id, status string) error
	AppendHistory(ctx context.Context, tx T, h *models.StatusHistory) error
}

// Observer is told about every attempted transition
type Observer interface {
	ObserveTransition(kind models.EntityKind, from, to string, err error, duration time.Duration)
}

type namedEffect[T any] struct {
	name string
	fn   Effect[T]
}

type effectKey struct {
	kind models.EntityKind
	to   string
}

// Engine applies guarded transitions
type Engine[T any] struct {
	store    Store[T]
	tables   map[models.EntityKind]statemachine.Table
	logger   logger.Logger
	observer Observer
	tracer   trace.Tracer

	mu      sync.RWMutex
	effects map[effectKey][]namedEffect[T]
}

// Option configures an Engine
type Option func(*options)

type options struct {
	observer Observer
	tracer   trace.Tracer
}

// WithObserver reports every transition attempt to o
func WithObserver(o Observer) Option {
	return func(opts *options) { opts.observer = o }
}

// WithTracer overrides the global tracer
func WithTracer(t trace.Tracer) Option {
	return func(opts *options) { opts.tracer = t }
}

// NewEngine creates an engine over store using one transition table per kind
func NewEngine[T any](store Store[T], tables map[models.EntityKind]statemachine.Table, logger logger.Logger, opts ...Option) *Engine[T] {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.tracer == nil {
		o.tracer = otel.Tracer("github.com/vaidashi/backoffice-api/internal/transition")
	}

	return &Engine[T]{
		store:    store,
		tables:   tables,
		logger:   logger,
		observer: o.observer,
		tracer:   o.tracer,
		effects:  make(map[effectKey][]namedEffect[T]),
	}
}

// Register adds a side effect for transitions of kind into status to, or
// into any status when to is AnyStatus. Effects for a specific status run
// before AnyStatus effects, each group in registration order.
func (e *Engine[T]) Register(kind models.EntityKind, to, name string, fn Effect[T]) error {
	table, ok := e.tables[kind]
	if !ok {
		return fmt.Errorf("register %s: unknown entity kind %q", name, kind)
	}
	if to != AnyStatus && !table.Has(to) {
		return fmt.Errorf("register %s: %s has no status %q", name, kind, to)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	key := effectKey{kind: kind, to: to}
	e.effects[key] = append(e.effects[key], namedEffect[T]{name: name, fn: fn})
	return nil
}

func (e *Engine[T]) effectsFor(kind models.EntityKind, to string) []namedEffect[T] {
	e.mu.RLock()
	defer e.mu.RUnlock()

	specific := e.effects[effectKey{kind: kind, to: to}]
	wildcard := e.effects[effectKey{kind: kind, to: AnyStatus}]

	out := make([]namedEffect[T], 0, len(specific)+len(wildcard))
	out = append(out, specific...)
	return append(out, wildcard...)
}

// Allowed returns the statuses kind may move to from current
func (e *Engine[T]) Allowed(kind models.EntityKind, current string) []string {
	return e.tables[kind].Allowed(current)
}

// Apply performs a guarded transition. On any error nothing is persisted.
func (e *Engine[T]) Apply(ctx context.Context, req Request) (Change, error) {
	start := time.Now()
	change := Change{
		Kind:     req.Kind,
		EntityID: req.EntityID,
		To:       req.To,
		Note:     req.Note,
		ActorID:  req.ActorID,
	}

	ctx, span := e.tracer.Start(ctx, "transition.Apply", trace.WithAttributes(
		attribute.String("entity.kind", string(req.Kind)),
		attribute.String("entity.id", req.EntityID),
		attribute.String("status.to", req.To),
	))
	defer span.End()

	err := e.apply(ctx, &change)

	if e.observer != nil {
		e.observer.ObserveTransition(req.Kind, change.From, req.To, err, time.Since(start))
	}

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		e.log(err, change)
		return change, err
	}

	span.SetAttributes(attribute.String("status.from", change.From))
	e.logger.Info("Status changed",
		"kind", change.Kind,
		"id", change.EntityID,
		"from", change.From,
		"to", change.To,
		"actor", change.ActorID)

	return change, nil
}

func (e *Engine[T]) apply(ctx context.Context, change *Change) error {
	table, ok := e.tables[change.Kind]
	if !ok {
		return apperrors.NewInvalidInputError(fmt.Sprintf("unknown entity kind %q", change.Kind))
	}
	if change.EntityID == "" {
		return apperrors.NewInvalidInputError("entity id is required")
	}
	if change.To == "" {
		return apperrors.NewInvalidInputError("status is required")
	}

	err := e.store.WithTx(ctx, func(tx T) error {
		from, err := e.store.LockStatus(ctx, tx, change.Kind, change.EntityID)
		if err != nil {
			return asAppError("lock status", err)
		}
		change.From = from

		if err := table.Validate(from, change.To); err != nil {
			return err
		}

		for _, eff := range e.effectsFor(change.Kind, change.To) {
			if err := eff.fn(ctx, tx, *change); err != nil {
				return apperrors.NewSideEffectError(eff.name, err)
			}
		}

		if err := e.store.SetStatus(ctx, tx, change.Kind, change.EntityID, change.To); err != nil {
			return asAppError("update status", err)
		}

		h := models.NewStatusHistory(change.Kind, change.EntityID, from, change.To, change.Note, change.ActorID)
		if err := e.store.AppendHistory(ctx, tx, h); err != nil {
			return asAppError("append history", err)
		}

		return nil
	})

	// Errors raised inside fn are already classified; anything else came
	// from beginning or committing the transaction.
	return asAppError("commit transition", err)
}

func asAppError(op string, err error) error {
	if err == nil {
		return nil
	}
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		return err
	}
	return apperrors.NewPersistenceError(op, err)
}

func (e *Engine[T]) log(err error, change Change) {
	kv := []interface{}{
		"kind", change.Kind,
		"id", change.EntityID,
		"from", change.From,
		"to", change.To,
		"error", err,
	}

	switch {
	case errors.Is(err, apperrors.ErrNotFound), errors.Is(err, apperrors.ErrInvalidTransition), errors.Is(err, apperrors.ErrInvalidInput):
		e.logger.Info("Status change rejected", kv...)
	default:
		e.logger.Error("Status change failed", kv...)
	}
}
