package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/fyp-grading-api/internal/dto"
	"github.com/noah-isme/fyp-grading-api/internal/grading"
	appErrors "github.com/noah-isme/fyp-grading-api/pkg/errors"
)

type semesterResultsStub struct {
	results *dto.SemesterResults
	err     error
	calls   int
	during  func()
}

func (s *semesterResultsStub) SemesterResults(ctx context.Context, semesterID string) (*dto.SemesterResults, bool, error) {
	s.calls++
	if s.during != nil {
		s.during()
	}
	if s.err != nil {
		return nil, false, s.err
	}
	return s.results, false, nil
}

func line(componentID string, supervisor, moderator, weighted *float64) dto.ComponentResult {
	return dto.ComponentResult{
		ComponentID: componentID,
		WeightedComponentScore: grading.WeightedComponentScore{
			SupervisorScore: supervisor,
			ModeratorScore:  moderator,
			Weighted:        weighted,
		},
	}
}

func statisticsFixture() *dto.SemesterResults {
	return &dto.SemesterResults{
		SemesterID: "sem-1",
		Components: []dto.ComponentSummary{{ID: "report", Name: "Report", WeightagePercent: 100}},
		Results: []dto.StudentResult{
			{StudentID: "s1", Graded: true, TotalScore: 50, Components: []dto.ComponentResult{line("report", f64(50), f64(50), f64(50))}},
			{StudentID: "s2", Graded: true, TotalScore: 60, Components: []dto.ComponentResult{line("report", f64(60), f64(60), f64(60))}},
			{StudentID: "s3", Graded: true, TotalScore: 70, Components: []dto.ComponentResult{line("report", f64(80), f64(50), f64(71))}},
			{StudentID: "s4", Graded: true, TotalScore: 0, Components: []dto.ComponentResult{line("report", f64(0), f64(0), f64(0))}},
			{StudentID: "s5", Components: []dto.ComponentResult{line("report", f64(40), nil, nil)}},
		},
	}
}

func TestStatisticsSummaryTotals(t *testing.T) {
	source := &semesterResultsStub{results: statisticsFixture()}
	svc := NewStatisticsService(source, nil, nil, nil, StatisticsServiceConfig{HistogramBins: 2})

	resp, hit, err := svc.Summary(context.Background(), "sem-1", dto.StatisticsQuery{})
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, dto.ScoreTypeTotal, resp.ScoreType)
	require.NotNil(t, resp.Statistics)
	assert.Equal(t, 4, resp.Statistics.Count)
	assert.Equal(t, 5, resp.Statistics.TotalCount)
	assert.Equal(t, 0.0, resp.Statistics.Min)
	assert.Equal(t, 70.0, resp.Statistics.Max)
	require.Len(t, resp.Histogram, 2)
	assert.Equal(t, 1, resp.Histogram[0].Count)
	assert.Equal(t, 3, resp.Histogram[1].Count)
	assert.Empty(t, resp.Message)
}

func TestStatisticsSummaryZeroAsUngraded(t *testing.T) {
	source := &semesterResultsStub{results: statisticsFixture()}
	svc := NewStatisticsService(source, nil, nil, nil, StatisticsServiceConfig{ZeroAsUngraded: true})

	resp, _, err := svc.Summary(context.Background(), "sem-1", dto.StatisticsQuery{})
	require.NoError(t, err)
	assert.Equal(t, 3, resp.Statistics.Count)
	assert.InDelta(t, 60.0, resp.Statistics.Mean, 1e-9)
	assert.Equal(t, 50.0, resp.Statistics.Min)
}

func TestStatisticsSummaryComponentScores(t *testing.T) {
	source := &semesterResultsStub{results: statisticsFixture()}
	svc := NewStatisticsService(source, nil, nil, nil, StatisticsServiceConfig{})

	resp, _, err := svc.Summary(context.Background(), "sem-1", dto.StatisticsQuery{ScoreType: dto.ScoreTypeSupervisor, ComponentID: "report"})
	require.NoError(t, err)
	assert.Equal(t, 5, resp.Statistics.Count)
	assert.Equal(t, 80.0, resp.Statistics.Max)

	resp, _, err = svc.Summary(context.Background(), "sem-1", dto.StatisticsQuery{ScoreType: dto.ScoreTypeModerator, ComponentID: "report"})
	require.NoError(t, err)
	assert.Equal(t, 4, resp.Statistics.Count)
	assert.Equal(t, 50.0, resp.Statistics.Mode)

	resp, _, err = svc.Summary(context.Background(), "sem-1", dto.StatisticsQuery{ScoreType: dto.ScoreTypeWeighted, ComponentID: "report", Bins: 3})
	require.NoError(t, err)
	assert.Equal(t, "report", resp.ComponentID)
	assert.Len(t, resp.Histogram, 3)
}

func TestStatisticsSummaryValidation(t *testing.T) {
	source := &semesterResultsStub{results: statisticsFixture()}
	svc := NewStatisticsService(source, nil, nil, nil, StatisticsServiceConfig{})

	_, _, err := svc.Summary(context.Background(), "sem-1", dto.StatisticsQuery{ScoreType: "median"})
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

	_, _, err = svc.Summary(context.Background(), "sem-1", dto.StatisticsQuery{ScoreType: dto.ScoreTypeWeighted})
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

	_, _, err = svc.Summary(context.Background(), "sem-1", dto.StatisticsQuery{ScoreType: dto.ScoreTypeWeighted, ComponentID: "viva"})
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)

	_, _, err = svc.Summary(context.Background(), "sem-1", dto.StatisticsQuery{Bins: 80})
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
	assert.Zero(t, source.calls)
}

func TestStatisticsSummaryEmptySemester(t *testing.T) {
	source := &semesterResultsStub{results: &dto.SemesterResults{SemesterID: "sem-2"}}
	svc := NewStatisticsService(source, nil, nil, nil, StatisticsServiceConfig{})

	resp, _, err := svc.Summary(context.Background(), "sem-2", dto.StatisticsQuery{ScoreType: dto.ScoreTypeTotal})
	require.NoError(t, err)
	assert.Nil(t, resp.Statistics)
	assert.Equal(t, noStatisticsMessage, resp.Message)
	assert.NotNil(t, resp.Histogram)
	assert.Empty(t, resp.Histogram)
}

func TestStatisticsSummaryCaches(t *testing.T) {
	source := &semesterResultsStub{results: statisticsFixture()}
	cache := newMemoryCache()
	svc := NewStatisticsService(source, cache, nil, nil, StatisticsServiceConfig{})

	first, hit, err := svc.Summary(context.Background(), "sem-1", dto.StatisticsQuery{})
	require.NoError(t, err)
	assert.False(t, hit)

	second, hit, err := svc.Summary(context.Background(), "sem-1", dto.StatisticsQuery{ScoreType: dto.ScoreTypeTotal})
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, first.Statistics, second.Statistics)
	assert.Equal(t, 1, source.calls)

	require.NoError(t, cache.Invalidate(context.Background(), semesterPattern("sem-1")))
	_, hit, err = svc.Summary(context.Background(), "sem-1", dto.StatisticsQuery{})
	require.NoError(t, err)
	assert.False(t, hit)
}

func TestStatisticsSummarySkipsCacheWhenInvalidatedMidway(t *testing.T) {
	cache := newMemoryCache()
	source := &semesterResultsStub{results: statisticsFixture()}
	source.during = func() {
		_ = cache.Invalidate(context.Background(), semesterPattern("sem-1"))
		source.during = nil
	}
	svc := NewStatisticsService(source, cache, nil, nil, StatisticsServiceConfig{})

	_, _, err := svc.Summary(context.Background(), "sem-1", dto.StatisticsQuery{})
	require.NoError(t, err)
	_, hit, err := svc.Summary(context.Background(), "sem-1", dto.StatisticsQuery{})
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, 2, source.calls)
}

func TestStatisticsSummaryPropagatesResultErrors(t *testing.T) {
	source := &semesterResultsStub{err: appErrors.Clone(appErrors.ErrNotFound, "semester not found")}
	svc := NewStatisticsService(source, nil, nil, nil, StatisticsServiceConfig{})
	_, _, err := svc.Summary(context.Background(), "missing", dto.StatisticsQuery{})
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}
