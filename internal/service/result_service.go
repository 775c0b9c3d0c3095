package service

import (
	"context"
	"database/sql"
	"errors"
	"strconv"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/noah-isme/fyp-grading-api/internal/dto"
	"github.com/noah-isme/fyp-grading-api/internal/grading"
	"github.com/noah-isme/fyp-grading-api/internal/models"
	appErrors "github.com/noah-isme/fyp-grading-api/pkg/errors"
)

type weightageSource interface {
	Weightage(ctx context.Context) (grading.RoleWeightage, error)
}

type componentLister interface {
	ListBySemester(ctx context.Context, semesterID string) ([]models.AssessmentComponent, error)
}

type studentDirectory interface {
	ListStudents(ctx context.Context, semesterID string) ([]models.SemesterStudent, error)
	FindStudent(ctx context.Context, semesterID, studentID string) (*models.SemesterStudent, error)
}

type roleScopedGradeReader interface {
	ListRoleScoped(ctx context.Context, semesterID, studentID string) ([]models.RoleScopedGrade, error)
}

type resultCache interface {
	Get(ctx context.Context, key string, dest interface{}) (bool, error)
	Epoch() uint64
	SetFresh(ctx context.Context, key string, value interface{}, ttl time.Duration, epoch uint64) (bool, error)
}

type resultMetrics interface {
	ObserveDBQuery(label string, duration time.Duration)
	RecordResult(status grading.Status)
}

// ResultServiceConfig tunes result computation.
type ResultServiceConfig struct {
	PassThreshold float64
	Workers       int
	CacheTTL      time.Duration
	// ComputeTimeout bounds a semester computation shared by concurrent callers.
	ComputeTimeout time.Duration
}

// ResultService computes weighted component scores and project outcomes from raw grades.
type ResultService struct {
	weightage  weightageSource
	semesters  semesterReader
	components componentLister
	students   studentDirectory
	grades     roleScopedGradeReader
	cache      resultCache
	metrics    resultMetrics
	logger     *zap.Logger
	cfg        ResultServiceConfig
	now        func() time.Time
	inflight   singleflight.Group
}

// ResultServiceParams groups the collaborators of ResultService.
type ResultServiceParams struct {
	Weightage  weightageSource
	Semesters  semesterReader
	Components componentLister
	Students   studentDirectory
	Grades     roleScopedGradeReader
	Cache      resultCache
	Metrics    resultMetrics
	Logger     *zap.Logger
	Config     ResultServiceConfig
}

// NewResultService constructs the service.
func NewResultService(params ResultServiceParams) *ResultService {
	cfg := params.Config
	if cfg.PassThreshold <= 0 || cfg.PassThreshold > 100 {
		cfg.PassThreshold = grading.DefaultPassThreshold
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if cfg.ComputeTimeout <= 0 {
		cfg.ComputeTimeout = 30 * time.Second
	}
	logger := params.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ResultService{
		weightage:  params.Weightage,
		semesters:  params.Semesters,
		components: params.Components,
		students:   params.Students,
		grades:     params.Grades,
		cache:      params.Cache,
		metrics:    params.Metrics,
		logger:     logger,
		cfg:        cfg,
		now:        time.Now,
	}
}

// Policy returns the weightage and threshold in force right now.
func (s *ResultService) Policy(ctx context.Context) (grading.Policy, error) {
	w, err := s.weightage.Weightage(ctx)
	if err != nil {
		return grading.Policy{}, err
	}
	return grading.Policy{Weightage: w, PassThreshold: s.cfg.PassThreshold}, nil
}

// StudentResult computes one student's outcome for a semester.
func (s *ResultService) StudentResult(ctx context.Context, semesterID, studentID string) (*dto.StudentResult, bool, error) {
	key := studentResultKey(semesterID, studentID)
	var cached dto.StudentResult
	if s.readCache(ctx, key, &cached) {
		return &cached, true, nil
	}
	epoch := s.cacheEpoch()

	if err := s.ensureSemester(ctx, semesterID); err != nil {
		return nil, false, err
	}
	student, err := s.students.FindStudent(ctx, semesterID, studentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, appErrors.Clone(appErrors.ErrNotFound, "student has no project in this semester")
		}
		return nil, false, appErrors.Internal(err, "failed to load student project")
	}

	var (
		policy     grading.Policy
		components []models.AssessmentComponent
		grades     []models.RoleScopedGrade
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		policy, err = s.Policy(gctx)
		return err
	})
	g.Go(func() (err error) {
		components, err = s.listComponents(gctx, semesterID)
		return err
	})
	g.Go(func() (err error) {
		grades, err = s.listGrades(gctx, semesterID, studentID)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, false, err
	}

	result := buildStudentResult(*student, components, indexGrades(grades)[studentID], policy)
	if s.metrics != nil {
		s.metrics.RecordResult(result.Status)
	}
	s.writeCache(ctx, key, result, epoch)
	return &result, false, nil
}

// SemesterResults computes every student's outcome for a semester.
// Concurrent callers missing the cache for the same semester and cache epoch
// share one computation and receive the same value, which they must not
// modify. The shared computation does not inherit any caller's cancellation;
// each caller stops waiting when its own context ends.
func (s *ResultService) SemesterResults(ctx context.Context, semesterID string) (*dto.SemesterResults, bool, error) {
	key := semesterResultsKey(semesterID)
	var cached dto.SemesterResults
	if s.readCache(ctx, key, &cached) {
		return &cached, true, nil
	}

	epoch := s.cacheEpoch()
	flight := key + "@" + strconv.FormatUint(epoch, 10)
	ch := s.inflight.DoChan(flight, func() (interface{}, error) {
		cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.ComputeTimeout)
		defer cancel()
		out, err := s.computeSemesterResults(cctx, semesterID)
		if err != nil {
			return nil, err
		}
		s.writeCache(cctx, key, out, epoch)
		return out, nil
	})

	select {
	case <-ctx.Done():
		return nil, false, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, false, res.Err
		}
		if res.Shared {
			s.logger.Debug("semester results shared with concurrent caller", zap.String("semester_id", semesterID))
		}
		return res.Val.(*dto.SemesterResults), false, nil
	}
}

func (s *ResultService) computeSemesterResults(ctx context.Context, semesterID string) (*dto.SemesterResults, error) {
	if err := s.ensureSemester(ctx, semesterID); err != nil {
		return nil, err
	}

	var (
		policy     grading.Policy
		components []models.AssessmentComponent
		students   []models.SemesterStudent
		grades     []models.RoleScopedGrade
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		policy, err = s.Policy(gctx)
		return err
	})
	g.Go(func() (err error) {
		components, err = s.listComponents(gctx, semesterID)
		return err
	})
	g.Go(func() error {
		start := time.Now()
		list, err := s.students.ListStudents(gctx, semesterID)
		s.observe("list_semester_students", start)
		if err != nil {
			return appErrors.Internal(err, "failed to list semester students")
		}
		students = list
		return nil
	})
	g.Go(func() (err error) {
		grades, err = s.listGrades(gctx, semesterID, "")
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	byStudent := indexGrades(grades)
	results := make([]dto.StudentResult, len(students))
	var eval errgroup.Group
	eval.SetLimit(s.cfg.Workers)
	for i := range students {
		i := i
		eval.Go(func() error {
			results[i] = buildStudentResult(students[i], components, byStudent[students[i].StudentID], policy)
			return nil
		})
	}
	_ = eval.Wait()

	out := &dto.SemesterResults{
		SemesterID:    semesterID,
		Weightage:     policy.Weightage,
		PassThreshold: policy.PassThreshold,
		Components:    summarizeComponents(components),
		Results:       results,
		GeneratedAt:   s.now().UTC(),
	}
	for _, r := range results {
		out.Counts.Add(r.Status)
		if s.metrics != nil {
			s.metrics.RecordResult(r.Status)
		}
	}
	s.logger.Debug("semester results computed",
		zap.String("semester_id", semesterID),
		zap.Int("students", len(results)),
		zap.Int("pass", out.Counts.Pass),
		zap.Int("fail", out.Counts.Fail),
		zap.Int("pending", out.Counts.Pending),
	)
	return out, nil
}

func (s *ResultService) listComponents(ctx context.Context, semesterID string) ([]models.AssessmentComponent, error) {
	start := time.Now()
	components, err := s.components.ListBySemester(ctx, semesterID)
	s.observe("list_assessment_components", start)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to list assessment components")
	}
	return components, nil
}

func (s *ResultService) listGrades(ctx context.Context, semesterID, studentID string) ([]models.RoleScopedGrade, error) {
	start := time.Now()
	grades, err := s.grades.ListRoleScoped(ctx, semesterID, studentID)
	s.observe("list_role_scoped_grades", start)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to load raw grades")
	}
	return grades, nil
}

func (s *ResultService) ensureSemester(ctx context.Context, semesterID string) error {
	if s.semesters == nil {
		return nil
	}
	if _, err := s.semesters.FindByID(ctx, semesterID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "semester not found")
		}
		return appErrors.Internal(err, "failed to load semester")
	}
	return nil
}

func (s *ResultService) observe(label string, start time.Time) {
	if s.metrics != nil {
		s.metrics.ObserveDBQuery(label, time.Since(start))
	}
}

func (s *ResultService) readCache(ctx context.Context, key string, dest interface{}) bool {
	if s.cache == nil {
		return false
	}
	hit, err := s.cache.Get(ctx, key, dest)
	if err != nil {
		s.logger.Warn("result cache read failed", zap.String("key", key), zap.Error(err))
		return false
	}
	return hit
}

func (s *ResultService) cacheEpoch() uint64 {
	if s.cache == nil {
		return 0
	}
	return s.cache.Epoch()
}

// writeCache stores value unless the cache was invalidated after epoch.
func (s *ResultService) writeCache(ctx context.Context, key string, value interface{}, epoch uint64) {
	if s.cache == nil {
		return
	}
	stored, err := s.cache.SetFresh(ctx, key, value, s.cfg.CacheTTL, epoch)
	switch {
	case err != nil:
		s.logger.Warn("result cache write failed", zap.String("key", key), zap.Error(err))
	case !stored:
		s.logger.Debug("result cache write skipped", zap.String("key", key), zap.Uint64("epoch", epoch))
	}
}

// componentScoreSet accumulates the raw scores of one student, keyed by component ID.
type componentScoreSet map[string]*roleScoreAccumulator

// roleScoreAccumulator averages scores when several faculty share a role on a project.
type roleScoreAccumulator struct {
	supervisorSum, moderatorSum     float64
	supervisorCount, moderatorCount int
}

func (a *roleScoreAccumulator) add(role grading.Role, score *float64) {
	if score == nil {
		return
	}
	switch role {
	case grading.RoleSupervisor:
		a.supervisorSum += *score
		a.supervisorCount++
	case grading.RoleModerator:
		a.moderatorSum += *score
		a.moderatorCount++
	}
}

func (a *roleScoreAccumulator) scores() grading.ComponentScores {
	var out grading.ComponentScores
	if a == nil {
		return out
	}
	if a.supervisorCount > 0 {
		v := a.supervisorSum / float64(a.supervisorCount)
		out.Set(grading.RoleSupervisor, &v)
	}
	if a.moderatorCount > 0 {
		v := a.moderatorSum / float64(a.moderatorCount)
		out.Set(grading.RoleModerator, &v)
	}
	return out
}

func indexGrades(grades []models.RoleScopedGrade) map[string]componentScoreSet {
	out := make(map[string]componentScoreSet)
	for _, g := range grades {
		set, ok := out[g.StudentID]
		if !ok {
			set = make(componentScoreSet)
			out[g.StudentID] = set
		}
		acc, ok := set[g.ComponentID]
		if !ok {
			acc = &roleScoreAccumulator{}
			set[g.ComponentID] = acc
		}
		acc.add(grading.Role(g.Role), g.Score)
	}
	return out
}

// buildStudentResult runs the engine for one student. Components are keyed by
// ID here and handed to the engine by name, which is unique within a semester.
func buildStudentResult(student models.SemesterStudent, components []models.AssessmentComponent, set componentScoreSet, policy grading.Policy) dto.StudentResult {
	engineComponents := make([]grading.Component, 0, len(components))
	scores := make(map[string]grading.ComponentScores, len(components))
	for _, c := range components {
		engineComponents = append(engineComponents, grading.Component{Name: c.Name, Weightage: c.WeightagePercent})
		scores[c.Name] = set[c.ID].scores()
	}
	total := grading.Evaluate(student.StudentID, engineComponents, scores, policy)

	byName := total.ByComponent()
	lines := make([]dto.ComponentResult, 0, len(components))
	for _, c := range components {
		line := byName[c.Name]
		lines = append(lines, dto.ComponentResult{
			ComponentID:            c.ID,
			WeightedComponentScore: line,
			Discrepancy:            grading.Discrepancy(line.SupervisorScore, line.ModeratorScore),
		})
	}
	return dto.StudentResult{
		StudentID:    student.StudentID,
		StudentName:  student.StudentName,
		ProjectID:    student.ProjectID,
		ProjectTitle: student.ProjectTitle,
		TotalScore:   total.TotalScore,
		MaxScore:     total.MaxScore,
		Percentage:   total.Percentage,
		Status:       total.Status,
		Graded:       total.Graded(),
		Components:   lines,
	}
}

func summarizeComponents(components []models.AssessmentComponent) []dto.ComponentSummary {
	out := make([]dto.ComponentSummary, 0, len(components))
	for _, c := range components {
		out = append(out, dto.ComponentSummary{ID: c.ID, Name: c.Name, WeightagePercent: c.WeightagePercent})
	}
	return out
}
