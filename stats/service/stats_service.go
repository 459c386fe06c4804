package service

import (
	"context"
	"encoding/json"
	"time"

	"support-desk/backend/conversation/models"
	"support-desk/backend/conversation/repository"
	apperrors "support-desk/backend/pkg/errors"
	"support-desk/backend/pkg/logger"
)

// Supported stat windows
const (
	WindowDay   = "day"
	WindowWeek  = "week"
	WindowMonth = "month"
)

// WindowStats summarizes response, resolution and satisfaction performance
// over one window. Empty subsets yield zero values, never an error.
type WindowStats struct {
	Window             string  `json:"window"`
	TotalSessions      int     `json:"total_sessions"`
	ResolvedSessions   int     `json:"resolved_sessions"`
	AvgResponseMinutes float64 `json:"avg_response_minutes"`
	AvgResolutionHours float64 `json:"avg_resolution_hours"`
	AvgSatisfaction    float64 `json:"avg_satisfaction"`
}

// Cache is the read-side cache seam; a nil Cache disables caching
type Cache interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error
}

// Stats computes windowed conversation metrics out of the request hot path
type Stats struct {
	sessions repository.SessionRepository
	cache    Cache
	cacheTTL time.Duration
	log      *logger.Logger
}

// NewStats creates a stats aggregator. cache may be nil.
func NewStats(sessions repository.SessionRepository, cache Cache, cacheTTL time.Duration, log *logger.Logger) *Stats {
	return &Stats{sessions: sessions, cache: cache, cacheTTL: cacheTTL, log: log}
}

// WindowStats computes metrics for sessions started within the window.
// Cache failures degrade to recomputation.
func (s *Stats) WindowStats(ctx context.Context, window string) (*WindowStats, error) {
	var since time.Time
	now := time.Now()
	switch window {
	case WindowDay:
		since = now.AddDate(0, 0, -1)
	case WindowWeek:
		since = now.AddDate(0, 0, -7)
	case WindowMonth:
		since = now.AddDate(0, -1, 0)
	default:
		return nil, apperrors.NewBadRequestError("INVALID_WINDOW", "window must be one of day, week, month")
	}

	cacheKey := "stats:" + window
	if s.cache != nil {
		if cached, err := s.cache.Get(ctx, cacheKey); err == nil {
			var stats WindowStats
			if err := json.Unmarshal([]byte(cached), &stats); err == nil {
				return &stats, nil
			}
		}
	}

	sessions, err := s.sessions.ListStartedSince(since)
	if err != nil {
		return nil, err
	}
	stats := compute(window, sessions)

	if s.cache != nil {
		if payload, err := json.Marshal(stats); err == nil {
			if err := s.cache.Set(ctx, cacheKey, payload, s.cacheTTL); err != nil {
				s.log.Warn("failed to cache stats", "window", window, "error", err.Error())
			}
		}
	}

	return stats, nil
}

func compute(window string, sessions []models.Session) *WindowStats {
	stats := &WindowStats{Window: window, TotalSessions: len(sessions)}

	var responseMinutes, resolutionHours, satisfaction float64
	var responded, resolvedTimed, rated int
	for _, sess := range sessions {
		if sess.Status == models.StatusResolved {
			stats.ResolvedSessions++
		}
		if sess.FirstResponseAt != nil {
			responseMinutes += sess.FirstResponseAt.Sub(sess.StartedAt).Minutes()
			responded++
		}
		if sess.ResolvedAt != nil {
			resolutionHours += sess.ResolvedAt.Sub(sess.StartedAt).Hours()
			resolvedTimed++
		}
		if sess.RatingScore != nil {
			satisfaction += float64(*sess.RatingScore)
			rated++
		}
	}

	if responded > 0 {
		stats.AvgResponseMinutes = responseMinutes / float64(responded)
	}
	if resolvedTimed > 0 {
		stats.AvgResolutionHours = resolutionHours / float64(resolvedTimed)
	}
	if rated > 0 {
		stats.AvgSatisfaction = satisfaction / float64(rated)
	}

	return stats
}
