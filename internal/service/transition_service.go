package service

import (
	"context"

	"github.com/vaidashi/backoffice-api/internal/cache"
	"github.com/vaidashi/backoffice-api/internal/models"
	"github.com/vaidashi/backoffice-api/internal/repository"
	"github.com/vaidashi/backoffice-api/internal/transition"
	"github.com/vaidashi/backoffice-api/pkg/logger"
)

// StatusChange is a status update requested through the API
type StatusChange struct {
	Status  string
	Note    string
	ActorID string
}

// TransitionService runs guarded transitions and keeps cached reads consistent with them
type TransitionService struct {
	engine  *Engine
	history *repository.HistoryRepository
	cache   cache.EntityCache
	logger  logger.Logger
}

// NewTransitionService creates a new TransitionService
func NewTransitionService(
	engine *Engine,
	history *repository.HistoryRepository,
	entityCache cache.EntityCache,
	logger logger.Logger,
) *TransitionService {
	return &TransitionService{
		engine:  engine,
		history: history,
		cache:   entityCache,
		logger:  logger,
	}
}

// Apply moves one entity to a new status
func (s *TransitionService) Apply(ctx context.Context, kind models.EntityKind, id string, req StatusChange) (transition.Change, error) {
	change, err := s.engine.Apply(ctx, transition.Request{
		Kind:     kind,
		EntityID: id,
		To:       req.Status,
		Note:     req.Note,
		ActorID:  req.ActorID,
	})
	if err != nil {
		return change, err
	}

	s.invalidate(ctx, kind, id)
	return change, nil
}

// History returns the accepted transitions of an entity, oldest first
func (s *TransitionService) History(ctx context.Context, kind models.EntityKind, id string) ([]*models.StatusHistory, error) {
	records, err := s.history.ListByEntity(ctx, kind, id)
	if err != nil {
		return nil, fromRepo("list history", kind, id, err)
	}
	return records, nil
}

// Allowed lists the statuses an entity in current may move to
func (s *TransitionService) Allowed(kind models.EntityKind, current string) []string {
	return s.engine.Allowed(kind, current)
}

func (s *TransitionService) invalidate(ctx context.Context, kind models.EntityKind, id string) {
	if err := s.cache.Invalidate(ctx, kind, id); err != nil {
		s.logger.Warn("Failed to invalidate cached entity", "kind", kind, "id", id, "error", err)
	}
}

// readThrough serves an entity from the cache, loading and storing it on a miss.
// Cache failures only cost the cache; they never fail the read.
func readThrough[E any](
	ctx context.Context,
	c cache.EntityCache,
	log logger.Logger,
	kind models.EntityKind,
	id string,
	load func(ctx context.Context) (*E, error),
) (*E, error) {
	var cached E
	hit, err := c.Get(ctx, kind, id, &cached)
	if err != nil {
		log.Warn("Entity cache read failed", "kind", kind, "id", id, "error", err)
	}
	if hit {
		return &cached, nil
	}

	entity, err := load(ctx)
	if err != nil {
		return nil, fromRepo("get "+string(kind), kind, id, err)
	}

	if err := c.Set(ctx, kind, id, entity); err != nil {
		log.Warn("Entity cache write failed", "kind", kind, "id", id, "error", err)
	}
	return entity, nil
}
