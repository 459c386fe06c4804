package service

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"support-desk/backend/conversation/models"
	apperrors "support-desk/backend/pkg/errors"
	"support-desk/backend/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fixedSessionRepo serves a canned session list; only ListStartedSince is
// exercised by the aggregator.
type fixedSessionRepo struct {
	sessions []models.Session
	since    time.Time
}

func (r *fixedSessionRepo) Create(*models.Session) error                  { return nil }
func (r *fixedSessionRepo) GetByID(string) (*models.Session, error)       { return nil, nil }
func (r *fixedSessionRepo) Update(string, map[string]interface{}) error   { return nil }
func (r *fixedSessionRepo) AppendMessage(*models.TranscriptMessage) error { return nil }

func (r *fixedSessionRepo) MarkResolved(string, *int, string, time.Time) (bool, error) {
	return false, nil
}

func (r *fixedSessionRepo) RecentMessages(string, int) ([]models.TranscriptMessage, error) {
	return nil, nil
}

func (r *fixedSessionRepo) Messages(string) ([]models.TranscriptMessage, error) {
	return nil, nil
}

func (r *fixedSessionRepo) ListStartedSince(t time.Time) ([]models.Session, error) {
	r.since = t
	return r.sessions, nil
}

type fakeCache struct {
	store  map[string]string
	getErr error
	setErr error
	sets   int
}

func newFakeCache() *fakeCache {
	return &fakeCache{store: make(map[string]string)}
}

func (c *fakeCache) Get(_ context.Context, key string) (string, error) {
	if c.getErr != nil {
		return "", c.getErr
	}
	value, ok := c.store[key]
	if !ok {
		return "", errors.New("cache miss")
	}
	return value, nil
}

func (c *fakeCache) Set(_ context.Context, key string, value interface{}, _ time.Duration) error {
	c.sets++
	if c.setErr != nil {
		return c.setErr
	}
	c.store[key] = string(value.([]byte))
	return nil
}

func testLogger() *logger.Logger {
	return logger.New(logger.Config{Level: "error", Output: io.Discard})
}

func ptrTime(t time.Time) *time.Time { return &t }
func ptrInt(n int) *int              { return &n }

func TestWindowStatsEmptyWindow(t *testing.T) {
	stats := NewStats(&fixedSessionRepo{}, nil, 0, testLogger())

	result, err := stats.WindowStats(context.Background(), WindowDay)
	require.NoError(t, err)
	assert.Equal(t, 0, result.TotalSessions)
	assert.Equal(t, 0, result.ResolvedSessions)
	assert.Zero(t, result.AvgResponseMinutes)
	assert.Zero(t, result.AvgResolutionHours)
	assert.Zero(t, result.AvgSatisfaction)
}

func TestWindowStatsInvalidWindow(t *testing.T) {
	stats := NewStats(&fixedSessionRepo{}, nil, 0, testLogger())

	_, err := stats.WindowStats(context.Background(), "year")
	var appErr *apperrors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "INVALID_WINDOW", appErr.Code)
}

func TestWindowStatsAverages(t *testing.T) {
	start := time.Now().Add(-2 * time.Hour)
	repo := &fixedSessionRepo{sessions: []models.Session{
		{
			Status:          models.StatusResolved,
			StartedAt:       start,
			FirstResponseAt: ptrTime(start.Add(2 * time.Minute)),
			ResolvedAt:      ptrTime(start.Add(1 * time.Hour)),
			RatingScore:     ptrInt(4),
		},
		{
			Status:          models.StatusResolved,
			StartedAt:       start,
			FirstResponseAt: ptrTime(start.Add(4 * time.Minute)),
			ResolvedAt:      ptrTime(start.Add(3 * time.Hour)),
			RatingScore:     ptrInt(2),
		},
		// Still open: counts toward totals only
		{Status: models.StatusInProgress, StartedAt: start},
	}}
	stats := NewStats(repo, nil, 0, testLogger())

	result, err := stats.WindowStats(context.Background(), WindowWeek)
	require.NoError(t, err)
	assert.Equal(t, 3, result.TotalSessions)
	assert.Equal(t, 2, result.ResolvedSessions)
	assert.InDelta(t, 3.0, result.AvgResponseMinutes, 0.001)
	assert.InDelta(t, 2.0, result.AvgResolutionHours, 0.001)
	assert.InDelta(t, 3.0, result.AvgSatisfaction, 0.001)
}

func TestWindowStatsWindowBounds(t *testing.T) {
	repo := &fixedSessionRepo{}
	stats := NewStats(repo, nil, 0, testLogger())

	_, err := stats.WindowStats(context.Background(), WindowMonth)
	require.NoError(t, err)

	expected := time.Now().AddDate(0, -1, 0)
	assert.WithinDuration(t, expected, repo.since, time.Minute)
}

func TestWindowStatsCachesResult(t *testing.T) {
	repo := &fixedSessionRepo{sessions: []models.Session{
		{Status: models.StatusResolved, StartedAt: time.Now()},
	}}
	cache := newFakeCache()
	stats := NewStats(repo, cache, time.Minute, testLogger())

	first, err := stats.WindowStats(context.Background(), WindowDay)
	require.NoError(t, err)
	assert.Equal(t, 1, cache.sets)

	// Second call is served from the cache
	repo.sessions = nil
	second, err := stats.WindowStats(context.Background(), WindowDay)
	require.NoError(t, err)
	assert.Equal(t, first.TotalSessions, second.TotalSessions)
	assert.Equal(t, 1, cache.sets)
}

func TestWindowStatsCacheFailureDegrades(t *testing.T) {
	repo := &fixedSessionRepo{sessions: []models.Session{
		{Status: models.StatusResolved, StartedAt: time.Now()},
	}}
	cache := newFakeCache()
	cache.getErr = errors.New("connection refused")
	cache.setErr = errors.New("connection refused")
	stats := NewStats(repo, cache, time.Minute, testLogger())

	result, err := stats.WindowStats(context.Background(), WindowDay)
	require.NoError(t, err)
	assert.Equal(t, 1, result.TotalSessions)
}
