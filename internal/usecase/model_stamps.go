package usecase

import (
	"context"
	"errors"
	"time"

	"WeatherCast/pkg/cache"
	applogger "WeatherCast/pkg/logger"
)

const (
	modelStampPrefix = "model:stamp"
	modelStampTTL    = 30 * 24 * time.Hour
)

// ModelStamps records when each model was last saved, in the cache every
// serve and worker process shares. A process holding a decoded model
// compares the stamp it loaded under with the current one to notice a
// retrain done elsewhere. A nil cache disables stamping.
type ModelStamps struct {
	c   cache.Service
	log *applogger.Logger
	now func() time.Time
}

func NewModelStamps(c cache.Service, log *applogger.Logger) *ModelStamps {
	return &ModelStamps{c: c, log: log, now: time.Now}
}

// Current returns the stamp for name, zero when none was recorded.
func (s *ModelStamps) Current(ctx context.Context, name string) (int64, error) {
	if s == nil || s.c == nil {
		return 0, nil
	}
	var stamp int64
	if err := s.c.Get(ctx, cache.GenerateKey(modelStampPrefix, name), &stamp); err != nil {
		if errors.Is(err, cache.ErrCacheMiss) {
			return 0, nil
		}
		return 0, err
	}
	return stamp, nil
}

// Retrained is a ModelSavedFunc: it moves the stamp for name forward and
// drops every cached forecast made with the previous model.
func (s *ModelStamps) Retrained(ctx context.Context, name string) {
	if s == nil || s.c == nil {
		return
	}
	if err := s.c.Set(ctx, cache.GenerateKey(modelStampPrefix, name), s.now().UnixNano(), modelStampTTL); err != nil {
		s.log.Warn("model stamp update failed", applogger.String("model", name), applogger.Error(err))
	}
	pattern := cache.BuildPattern(cache.GenerateKey(forecastKeyPrefix, name) + ":")
	if err := s.c.DeleteByPattern(ctx, pattern); err != nil {
		s.log.Warn("forecast cache invalidation failed", applogger.String("model", name), applogger.Error(err))
	}
}
