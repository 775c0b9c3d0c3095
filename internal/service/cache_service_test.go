package service

import (
	"context"
	"encoding/json"
	"errors"
	"path"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "github.com/noah-isme/fyp-grading-api/pkg/errors"
)

type globCacheRepo struct {
	entries map[string][]byte
	getErr  error
}

func newGlobCacheRepo() *globCacheRepo {
	return &globCacheRepo{entries: map[string][]byte{}}
}

func (r *globCacheRepo) Get(_ context.Context, key string, dest interface{}) error {
	if r.getErr != nil {
		return r.getErr
	}
	raw, ok := r.entries[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(raw, dest)
}

func (r *globCacheRepo) Set(_ context.Context, key string, value interface{}, _ time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	r.entries[key] = raw
	return nil
}

func (r *globCacheRepo) DeleteByPattern(_ context.Context, pattern string) error {
	for key := range r.entries {
		if ok, _ := path.Match(pattern, key); ok {
			delete(r.entries, key)
		}
	}
	return nil
}

func TestSemesterPatternDoesNotSpillIntoSiblingSemesters(t *testing.T) {
	repo := newGlobCacheRepo()
	svc := NewCacheService(repo, nil, time.Minute, nil, true)
	ctx := context.Background()

	keys := []string{
		semesterResultsKey("sem-1"),
		studentResultKey("sem-1", "stu-1"),
		statisticsKey("sem-1", "total", "", 10),
		semesterResultsKey("sem-10"),
		statisticsKey("sem-10", "weighted", "comp-1", 5),
	}
	for _, k := range keys {
		require.NoError(t, svc.Set(ctx, k, 1, 0))
	}

	require.NoError(t, svc.Invalidate(ctx, semesterPattern("sem-1")))
	assert.Len(t, repo.entries, 2)
	assert.Contains(t, repo.entries, semesterResultsKey("sem-10"))

	require.NoError(t, svc.Invalidate(ctx, allGradingPattern()))
	assert.Empty(t, repo.entries)
}

func TestCacheServiceCountsHitsAndMisses(t *testing.T) {
	metrics := NewMetricsService()
	svc := NewCacheService(newGlobCacheRepo(), metrics, 0, nil, true)
	ctx := context.Background()

	var got map[string]int
	hit, err := svc.Get(ctx, "grading:missing", &got)
	require.NoError(t, err)
	assert.False(t, hit)

	require.NoError(t, svc.Set(ctx, "grading:present", map[string]int{"n": 2}, 0))
	hit, err = svc.Get(ctx, "grading:present", &got)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, 2, got["n"])

	snap := metrics.Snapshot()
	assert.Equal(t, uint64(1), snap.CacheHits)
	assert.Equal(t, uint64(1), snap.CacheMisses)
}

func TestCacheServiceSurfacesBackendErrors(t *testing.T) {
	repo := newGlobCacheRepo()
	repo.getErr = errors.New("connection reset")
	svc := NewCacheService(repo, nil, 0, nil, true)

	var dest int
	hit, err := svc.Get(context.Background(), "grading:x", &dest)
	assert.False(t, hit)
	assert.Error(t, err)
}

func TestCacheServiceDisabled(t *testing.T) {
	repo := newGlobCacheRepo()
	svc := NewCacheService(repo, nil, 0, nil, false)
	assert.False(t, svc.Enabled())
	require.NoError(t, svc.Set(context.Background(), "grading:x", 1, 0))
	assert.Empty(t, repo.entries)

	var nilSvc *CacheService
	assert.False(t, nilSvc.Enabled())
	hit, err := nilSvc.Get(context.Background(), "grading:x", new(int))
	assert.False(t, hit)
	assert.NoError(t, err)
}

func TestCacheServiceSetFreshDropsWritesFromBeforeInvalidation(t *testing.T) {
	repo := newGlobCacheRepo()
	svc := NewCacheService(repo, nil, 0, nil, true)
	ctx := context.Background()
	key := semesterResultsKey("sem-1")

	before := svc.Epoch()
	require.NoError(t, svc.Invalidate(ctx, semesterPattern("sem-1")))
	assert.Equal(t, before+1, svc.Epoch())

	stored, err := svc.SetFresh(ctx, key, "stale", 0, before)
	require.NoError(t, err)
	assert.False(t, stored)
	assert.NotContains(t, repo.entries, key)

	stored, err = svc.SetFresh(ctx, key, "fresh", 0, svc.Epoch())
	require.NoError(t, err)
	assert.True(t, stored)
	assert.Contains(t, repo.entries, key)
}

func TestCacheServiceEpochAdvancesWhileDisabled(t *testing.T) {
	svc := NewCacheService(nil, nil, 0, nil, false)
	require.NoError(t, svc.Invalidate(context.Background(), allGradingPattern()))
	assert.Equal(t, uint64(1), svc.Epoch())

	stored, err := svc.SetFresh(context.Background(), "grading:x", 1, 0, svc.Epoch())
	assert.NoError(t, err)
	assert.False(t, stored)

	var nilSvc *CacheService
	assert.Zero(t, nilSvc.Epoch())
	assert.NoError(t, nilSvc.Invalidate(context.Background(), allGradingPattern()))
}
