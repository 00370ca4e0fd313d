package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/weihan/activity_service/internal/format"
	"github.com/weihan/activity_service/internal/store"
	"github.com/weihan/activity_service/internal/timewindow"
	"github.com/weihan/activity_service/pkg/models"
)

const (
	DefaultDaysAhead = 90
	DefaultDaysBack  = 30
	DefaultLimit     = 20

	cacheTTL = 5 * time.Minute
)

type ActivityStore interface {
	QueryWindow(ctx context.Context, direction timewindow.Direction, from, to time.Time, limit int) ([]*models.Activity, error)
	SummaryBySource(ctx context.Context) ([]*models.SourceSummary, error)
}

type Service struct {
	repo ActivityStore
	rdb  *redis.Client

	// Now supplies the reference time for window resolution. Injected
	// so tests can pin the clock.
	Now func() time.Time
}

func NewService(repo ActivityStore, rdb *redis.Client) *Service {
	return &Service{repo: repo, rdb: rdb, Now: time.Now}
}

// checkLimit validates and clamps the caller-supplied limit. Defaults
// for absent arguments are the boundary's job (HTTP handler or tool
// dispatch); by the time a limit reaches here it is explicit, and
// non-positive values are rejected rather than silently defaulted.
func checkLimit(limit int) (int, error) {
	if limit <= 0 {
		return 0, &InvalidLimitError{Value: limit}
	}
	if limit > store.MaxLimit {
		return store.MaxLimit, nil
	}
	return limit, nil
}

// GetRecentActivities returns activities published between today and
// daysAhead days out, soonest first.
func (s *Service) GetRecentActivities(ctx context.Context, daysAhead, limit int) (format.Envelope, error) {
	lim, err := checkLimit(limit)
	if err != nil {
		return format.Envelope{}, err
	}
	w, err := timewindow.ResolveRecent(s.Now(), daysAhead)
	if err != nil {
		return format.Envelope{}, err
	}
	return s.queryWindow(ctx, "recent_activities", timewindow.DirectionRecent, w, lim)
}

// GetPastActivities returns activities published in the daysBack days
// before today, most recent first.
func (s *Service) GetPastActivities(ctx context.Context, daysBack, limit int) (format.Envelope, error) {
	lim, err := checkLimit(limit)
	if err != nil {
		return format.Envelope{}, err
	}
	w, err := timewindow.ResolvePast(s.Now(), daysBack)
	if err != nil {
		return format.Envelope{}, err
	}
	return s.queryWindow(ctx, "past_activities", timewindow.DirectionPast, w, lim)
}

func (s *Service) queryWindow(ctx context.Context, queryType string, direction timewindow.Direction, w timewindow.Window, limit int) (format.Envelope, error) {
	key := fmt.Sprintf("activities:%s:%s:%s:%d", queryType, w.FromString(), w.ToString(), limit)

	if env, ok := s.cacheGet(ctx, key); ok {
		return env, nil
	}

	rows, err := s.repo.QueryWindow(ctx, direction, w.From, w.To, limit)
	if err != nil {
		return format.Envelope{}, err
	}

	env := format.Results(queryType, w, rows)
	s.cacheSet(ctx, key, env)
	return env, nil
}

// cacheGet reads a formatted envelope from redis. Cache failures only
// degrade to the store; they never surface as query errors.
func (s *Service) cacheGet(ctx context.Context, key string) (format.Envelope, bool) {
	if s.rdb == nil {
		return format.Envelope{}, false
	}
	raw, err := s.rdb.Get(ctx, key).Bytes()
	if err != nil {
		if err != redis.Nil {
			log.Printf("warning: cache get %s: %v", key, err)
		}
		return format.Envelope{}, false
	}
	var env format.Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		log.Printf("warning: cache decode %s: %v", key, err)
		return format.Envelope{}, false
	}
	return env, true
}

func (s *Service) cacheSet(ctx context.Context, key string, env format.Envelope) {
	if s.rdb == nil {
		return
	}
	raw, err := json.Marshal(env)
	if err != nil {
		return
	}
	if err := s.rdb.Set(ctx, key, raw, cacheTTL).Err(); err != nil {
		log.Printf("warning: cache set %s: %v", key, err)
	}
}

// Summary reports per-source ingest statistics for operators.
func (s *Service) Summary(ctx context.Context) ([]*models.SourceSummary, error) {
	return s.repo.SummaryBySource(ctx)
}

// TimeInfo reports the current time anchors in the service timezone.
func (s *Service) TimeInfo() timewindow.TimeInfo {
	return timewindow.CurrentTimeInfo(s.Now())
}
