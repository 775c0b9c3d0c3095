package service

import (
	"context"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/fyp-grading-api/internal/dto"
	"github.com/noah-isme/fyp-grading-api/internal/grading"
	appErrors "github.com/noah-isme/fyp-grading-api/pkg/errors"
	"github.com/noah-isme/fyp-grading-api/pkg/validation"
)

const noStatisticsMessage = "no statistics available"

type semesterResultSource interface {
	SemesterResults(ctx context.Context, semesterID string) (*dto.SemesterResults, bool, error)
}

// StatisticsServiceConfig tunes dashboard statistics.
type StatisticsServiceConfig struct {
	HistogramBins  int
	ZeroAsUngraded bool
	CacheTTL       time.Duration
}

// StatisticsService summarises semester scores for dashboards.
type StatisticsService struct {
	results   semesterResultSource
	cache     resultCache
	validator *validator.Validate
	logger    *zap.Logger
	cfg       StatisticsServiceConfig
}

// NewStatisticsService constructs the service.
func NewStatisticsService(results semesterResultSource, cache resultCache, validate *validator.Validate, logger *zap.Logger, cfg StatisticsServiceConfig) *StatisticsService {
	if validate == nil {
		validate = validation.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.HistogramBins <= 0 {
		cfg.HistogramBins = grading.DefaultHistogramBins
	}
	return &StatisticsService{results: results, cache: cache, validator: validate, logger: logger, cfg: cfg}
}

func (s *StatisticsService) ungradedPolicy() grading.UngradedPolicy {
	if s.cfg.ZeroAsUngraded {
		return grading.ExcludeNonPositive
	}
	return grading.ExcludeAbsent
}

// Summary describes one score series of a semester. Statistics is nil and
// Message set when no graded score matched.
func (s *StatisticsService) Summary(ctx context.Context, semesterID string, query dto.StatisticsQuery) (*dto.StatisticsResponse, bool, error) {
	if err := s.validator.Struct(query); err != nil {
		return nil, false, appErrors.Invalid(err, "invalid statistics query")
	}
	if query.ScoreType == "" {
		query.ScoreType = dto.ScoreTypeTotal
	}
	query.ComponentID = strings.TrimSpace(query.ComponentID)
	if query.ScoreType != dto.ScoreTypeTotal && query.ComponentID == "" {
		return nil, false, appErrors.Clone(appErrors.ErrValidation, "component_id is required for component score types")
	}
	if query.ScoreType == dto.ScoreTypeTotal {
		query.ComponentID = ""
	}
	bins := query.Bins
	if bins <= 0 {
		bins = s.cfg.HistogramBins
	}

	key := statisticsKey(semesterID, string(query.ScoreType), query.ComponentID, bins)
	if s.cache != nil {
		var cached dto.StatisticsResponse
		hit, err := s.cache.Get(ctx, key, &cached)
		if err != nil {
			s.logger.Warn("statistics cache read failed", zap.String("key", key), zap.Error(err))
		} else if hit {
			return &cached, true, nil
		}
	}

	var epoch uint64
	if s.cache != nil {
		epoch = s.cache.Epoch()
	}
	results, _, err := s.results.SemesterResults(ctx, semesterID)
	if err != nil {
		return nil, false, err
	}
	series, err := scoreSeries(results, query)
	if err != nil {
		return nil, false, err
	}

	policy := s.ungradedPolicy()
	graded := grading.FilterGraded(series, policy)
	resp := &dto.StatisticsResponse{
		SemesterID:  semesterID,
		ScoreType:   query.ScoreType,
		ComponentID: query.ComponentID,
		Statistics:  grading.Describe(graded, len(series)),
		Histogram:   grading.Histogram(graded, bins),
	}
	if resp.Statistics == nil {
		resp.Message = noStatisticsMessage
		resp.Histogram = []grading.Bin{}
	}

	if s.cache != nil {
		if _, err := s.cache.SetFresh(ctx, key, resp, s.cfg.CacheTTL, epoch); err != nil {
			s.logger.Warn("statistics cache write failed", zap.String("key", key), zap.Error(err))
		}
	}
	return resp, false, nil
}

// scoreSeries extracts one score per student. Students without a score
// contribute nil so the total count still reflects the whole cohort.
func scoreSeries(results *dto.SemesterResults, query dto.StatisticsQuery) ([]*float64, error) {
	if query.ScoreType != dto.ScoreTypeTotal {
		found := false
		for _, c := range results.Components {
			if c.ID == query.ComponentID {
				found = true
				break
			}
		}
		if !found {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "assessment component not found in this semester")
		}
	}

	series := make([]*float64, 0, len(results.Results))
	for _, r := range results.Results {
		if query.ScoreType == dto.ScoreTypeTotal {
			series = append(series, gradedTotal(r))
			continue
		}
		var value *float64
		for _, line := range r.Components {
			if line.ComponentID != query.ComponentID {
				continue
			}
			switch query.ScoreType {
			case dto.ScoreTypeWeighted:
				value = line.Weighted
			case dto.ScoreTypeSupervisor:
				value = line.SupervisorScore
			case dto.ScoreTypeModerator:
				value = line.ModeratorScore
			}
		}
		series = append(series, value)
	}
	return series, nil
}

func gradedTotal(r dto.StudentResult) *float64 {
	if !r.Graded {
		return nil
	}
	total := r.TotalScore
	return &total
}
