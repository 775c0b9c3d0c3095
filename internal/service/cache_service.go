package service

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	appErrors "github.com/noah-isme/fyp-grading-api/pkg/errors"
)

// CacheRepository abstracts persistence for cached payloads.
type CacheRepository interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	DeleteByPattern(ctx context.Context, pattern string) error
}

// Keys live under grading:sem:<semester>: so one glob evicts everything
// derived from a semester without touching semesters sharing an ID prefix.
const cacheKeyPrefix = "grading:"

func cacheKey(parts ...string) string {
	return cacheKeyPrefix + strings.Join(parts, ":")
}

func semesterResultsKey(semesterID string) string {
	return cacheKey("sem", semesterID, "results")
}

func studentResultKey(semesterID, studentID string) string {
	return cacheKey("sem", semesterID, "student", studentID)
}

func statisticsKey(semesterID, scoreType, componentID string, bins int) string {
	if componentID == "" {
		componentID = "-"
	}
	return cacheKey("sem", semesterID, "stats", scoreType, componentID, strconv.Itoa(bins))
}

func semesterPattern(semesterID string) string {
	return cacheKey("sem", semesterID, "*")
}

func allGradingPattern() string {
	return cacheKeyPrefix + "*"
}

// CacheService wraps the cache repository with metrics and treats a disabled
// or absent backend as a permanent miss.
type CacheService struct {
	repo       CacheRepository
	metrics    *MetricsService
	defaultTTL time.Duration
	logger     *zap.Logger
	enabled    bool

	// mu orders SetFresh against Invalidate; epoch counts invalidations.
	mu    sync.RWMutex
	epoch uint64
}

func NewCacheService(repo CacheRepository, metrics *MetricsService, defaultTTL time.Duration, logger *zap.Logger, enabled bool) *CacheService {
	if defaultTTL <= 0 {
		defaultTTL = 5 * time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CacheService{repo: repo, metrics: metrics, defaultTTL: defaultTTL, logger: logger, enabled: enabled}
}

func (s *CacheService) Enabled() bool {
	return s != nil && s.enabled && s.repo != nil
}

// Get decodes the entry at key into dest and reports whether it was found.
// A miss is not an error.
func (s *CacheService) Get(ctx context.Context, key string, dest interface{}) (bool, error) {
	if !s.Enabled() {
		return false, nil
	}
	start := time.Now()
	err := s.repo.Get(ctx, key, dest)
	hit := err == nil
	if s.metrics != nil {
		s.metrics.RecordCacheOperation(hit, time.Since(start))
	}
	switch {
	case hit:
		return true, nil
	case errors.Is(err, appErrors.ErrCacheMiss):
		return false, nil
	default:
		s.logger.Warn("cache get failed", zap.String("key", key), zap.Error(err))
		return false, err
	}
}

// Set stores value at key. ttl <= 0 uses the service default.
func (s *CacheService) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if !s.Enabled() {
		return nil
	}
	if ttl <= 0 {
		ttl = s.defaultTTL
	}
	start := time.Now()
	err := s.repo.Set(ctx, key, value, ttl)
	if s.metrics != nil {
		s.metrics.ObserveCacheWrite(time.Since(start))
	}
	if err != nil {
		s.logger.Warn("cache set failed", zap.String("key", key), zap.Error(err))
	}
	return err
}

// Epoch returns the current invalidation generation. Read it before loading
// the data a cached value is derived from and hand it to SetFresh.
func (s *CacheService) Epoch() uint64 {
	if s == nil {
		return 0
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.epoch
}

// SetFresh stores value only when no Invalidate ran since epoch was read and
// reports whether it was stored.
func (s *CacheService) SetFresh(ctx context.Context, key string, value interface{}, ttl time.Duration, epoch uint64) (bool, error) {
	if !s.Enabled() {
		return false, nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.epoch != epoch {
		return false, nil
	}
	if err := s.Set(ctx, key, value, ttl); err != nil {
		return false, err
	}
	return true, nil
}

// Invalidate evicts every key matching the glob pattern and starts a new
// epoch, so values computed from earlier reads are no longer stored.
func (s *CacheService) Invalidate(ctx context.Context, pattern string) error {
	if s == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.epoch++
	if !s.Enabled() {
		return nil
	}
	if err := s.repo.DeleteByPattern(ctx, pattern); err != nil {
		s.logger.Warn("cache invalidate failed", zap.String("pattern", pattern), zap.Error(err))
		return err
	}
	s.logger.Debug("cache invalidated", zap.String("pattern", pattern))
	return nil
}
