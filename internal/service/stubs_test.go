package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/noah-isme/fyp-grading-api/internal/grading"
	"github.com/noah-isme/fyp-grading-api/internal/models"
)

func f64(v float64) *float64 {
	return &v
}

func adminClaims() *models.JWTClaims {
	return &models.JWTClaims{UserID: "admin-1", Role: models.RoleAdmin}
}

func facultyClaims(id string) *models.JWTClaims {
	return &models.JWTClaims{UserID: id, Role: models.RoleFaculty}
}

type semesterStub struct {
	semesters map[string]*models.Semester
	err       error
}

func (s *semesterStub) FindByID(ctx context.Context, id string) (*models.Semester, error) {
	if s.err != nil {
		return nil, s.err
	}
	sem, ok := s.semesters[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return sem, nil
}

func openSemesters(ids ...string) *semesterStub {
	stub := &semesterStub{semesters: map[string]*models.Semester{}}
	for _, id := range ids {
		stub.semesters[id] = &models.Semester{ID: id, Name: "Semester " + id}
	}
	return stub
}

// memoryCache stores JSON payloads like the Redis repository does.
type memoryCache struct {
	mu          sync.Mutex
	entries     map[string][]byte
	invalidated []string
	getErr      error
	epoch       uint64
}

func newMemoryCache() *memoryCache {
	return &memoryCache{entries: map[string][]byte{}}
}

func (c *memoryCache) Get(ctx context.Context, key string, dest interface{}) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.getErr != nil {
		return false, c.getErr
	}
	raw, ok := c.entries[key]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(raw, dest)
}

func (c *memoryCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	c.entries[key] = raw
	return nil
}

func (c *memoryCache) Epoch() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.epoch
}

func (c *memoryCache) SetFresh(ctx context.Context, key string, value interface{}, ttl time.Duration, epoch uint64) (bool, error) {
	c.mu.Lock()
	stale := c.epoch != epoch
	c.mu.Unlock()
	if stale {
		return false, nil
	}
	return true, c.Set(ctx, key, value, ttl)
}

func (c *memoryCache) has(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.entries[key]
	return ok
}

func (c *memoryCache) Invalidate(ctx context.Context, pattern string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.epoch++
	c.invalidated = append(c.invalidated, pattern)
	for key := range c.entries {
		if ok, _ := path.Match(pattern, key); ok {
			delete(c.entries, key)
		}
	}
	return nil
}

type auditStub struct {
	logs []*models.AuditLog
	err  error
}

func (a *auditStub) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	a.logs = append(a.logs, log)
	return a.err
}

func (a *auditStub) actions() []string {
	out := make([]string, 0, len(a.logs))
	for _, l := range a.logs {
		out = append(out, l.Action)
	}
	return out
}

type metricsStub struct {
	mu      sync.Mutex
	written int
	results map[grading.Status]int
	queries []string
	reports []models.ReportStatus
}

func newMetricsStub() *metricsStub {
	return &metricsStub{results: map[grading.Status]int{}}
}

func (m *metricsStub) RecordGradesWritten(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.written += n
}

func (m *metricsStub) RecordResult(status grading.Status) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.results[status]++
}

func (m *metricsStub) ObserveDBQuery(label string, duration time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queries = append(m.queries, label)
}

func (m *metricsStub) RecordReportJob(reportType models.ReportType, status models.ReportStatus) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reports = append(m.reports, status)
}

type componentRepoStub struct {
	components map[string]*models.AssessmentComponent
	order      []string
	deleted    []string
	err        error
}

func newComponentRepoStub(components ...models.AssessmentComponent) *componentRepoStub {
	stub := &componentRepoStub{components: map[string]*models.AssessmentComponent{}}
	for i := range components {
		c := components[i]
		stub.components[c.ID] = &c
		stub.order = append(stub.order, c.ID)
	}
	return stub
}

func (r *componentRepoStub) ListBySemester(ctx context.Context, semesterID string) ([]models.AssessmentComponent, error) {
	if r.err != nil {
		return nil, r.err
	}
	var out []models.AssessmentComponent
	for _, id := range r.order {
		if c, ok := r.components[id]; ok && c.SemesterID == semesterID {
			out = append(out, *c)
		}
	}
	return out, nil
}

func (r *componentRepoStub) FindByID(ctx context.Context, id string) (*models.AssessmentComponent, error) {
	c, ok := r.components[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	found := *c
	return &found, nil
}

func (r *componentRepoStub) ExistsByName(ctx context.Context, semesterID, name, excludeID string) (bool, error) {
	for id, c := range r.components {
		if id != excludeID && c.SemesterID == semesterID && strings.EqualFold(c.Name, name) {
			return true, nil
		}
	}
	return false, nil
}

func (r *componentRepoStub) SumWeightage(ctx context.Context, semesterID, excludeID string) (float64, error) {
	sum := 0.0
	for id, c := range r.components {
		if id != excludeID && c.SemesterID == semesterID {
			sum += c.WeightagePercent
		}
	}
	return sum, nil
}

func (r *componentRepoStub) Create(ctx context.Context, component *models.AssessmentComponent) error {
	if component.ID == "" {
		component.ID = "comp-" + component.Name
	}
	c := *component
	r.components[c.ID] = &c
	r.order = append(r.order, c.ID)
	return nil
}

func (r *componentRepoStub) Update(ctx context.Context, component *models.AssessmentComponent) error {
	if _, ok := r.components[component.ID]; !ok {
		return sql.ErrNoRows
	}
	c := *component
	r.components[c.ID] = &c
	return nil
}

func (r *componentRepoStub) Delete(ctx context.Context, id string) error {
	if _, ok := r.components[id]; !ok {
		return sql.ErrNoRows
	}
	delete(r.components, id)
	r.deleted = append(r.deleted, id)
	return nil
}
