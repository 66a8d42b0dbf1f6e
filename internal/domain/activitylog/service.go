package activitylog

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/medilab/lims/internal/platform/idgen"
)

// Recorder is what other services depend on to leave an audit trail.
type Recorder interface {
	Log(ctx context.Context, userID, entityType, action, entityID string, details map[string]interface{})
}

// Nop discards every entry.
type Nop struct{}

func (Nop) Log(context.Context, string, string, string, string, map[string]interface{}) {}

type Service struct {
	repo   Repository
	ids    *idgen.Generator
	logger zerolog.Logger
	now    func() time.Time
}

func NewService(repo Repository, ids *idgen.Generator, logger zerolog.Logger) *Service {
	return &Service{repo: repo, ids: ids, logger: logger, now: time.Now}
}

// Log writes an entry. Failures are logged and never reach the caller: the
// operation being recorded has already happened.
func (s *Service) Log(ctx context.Context, userID, entityType, action, entityID string, details map[string]interface{}) {
	if userID == "" {
		userID = "system"
	}
	err := idgen.WithRetry(ctx, s.ids, idgen.PrefixLog, idgen.DefaultAttempts, func(id string) error {
		return s.repo.Create(ctx, &Entry{
			LogID:      id,
			UserID:     userID,
			EntityType: entityType,
			Action:     action,
			EntityID:   entityID,
			Details:    details,
			Timestamp:  s.now().UTC(),
		})
	})
	if err != nil {
		s.logger.Error().Err(err).
			Str("user_id", userID).
			Str("entity_type", entityType).
			Str("entity_id", entityID).
			Str("action", action).
			Msg("activity log write failed")
	}
}

func clampLimit(limit int) int {
	if limit <= 0 || limit > DefaultLimit {
		return DefaultLimit
	}
	return limit
}

func (s *Service) ListByEntity(ctx context.Context, entityType, entityID string, limit int) ([]*Entry, error) {
	return s.repo.ListByEntity(ctx, entityType, entityID, clampLimit(limit))
}

func (s *Service) ListByUser(ctx context.Context, userID string, limit int) ([]*Entry, error) {
	return s.repo.ListByUser(ctx, userID, clampLimit(limit))
}

func (s *Service) ListAll(ctx context.Context, limit, offset int) ([]*Entry, int, error) {
	if offset < 0 {
		offset = 0
	}
	return s.repo.ListAll(ctx, clampLimit(limit), offset)
}
