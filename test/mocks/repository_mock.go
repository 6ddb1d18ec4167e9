// Package mocks provides in-memory implementations of the port interfaces for testing.
// Each mock tracks calls and exposes error-injection fields so services can be tested
// without postgres, mongo or any other running dependency.
package mocks

import (
	"context"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/AchilleasB/smart-waste/reporting-service/internal/core/domain"
	"github.com/AchilleasB/smart-waste/reporting-service/internal/core/ports"
)

// MockIdentityRepository implements ports.IdentityRepository.
type MockIdentityRepository struct {
	mu         sync.RWMutex
	identities map[string]domain.Identity

	CreateCalls []domain.Identity

	FindError   error
	CreateError error
}

var _ ports.IdentityRepository = (*MockIdentityRepository)(nil)

func NewMockIdentityRepository() *MockIdentityRepository {
	return &MockIdentityRepository{identities: make(map[string]domain.Identity)}
}

// Seed adds an identity for test setup.
func (m *MockIdentityRepository) Seed(identity domain.Identity) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.identities[identity.ID] = identity
}

func (m *MockIdentityRepository) FindByEmail(ctx context.Context, email string) (*domain.Identity, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.FindError != nil {
		return nil, m.FindError
	}
	for _, i := range m.identities {
		if strings.EqualFold(i.Email, email) {
			found := i
			return &found, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *MockIdentityRepository) FindByID(ctx context.Context, id string) (*domain.Identity, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.FindError != nil {
		return nil, m.FindError
	}
	i, ok := m.identities[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &i, nil
}

func (m *MockIdentityRepository) Create(ctx context.Context, identity domain.Identity) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CreateCalls = append(m.CreateCalls, identity)
	if m.CreateError != nil {
		return m.CreateError
	}
	for _, i := range m.identities {
		if strings.EqualFold(i.Email, identity.Email) {
			return domain.ErrConflict
		}
	}
	m.identities[identity.ID] = identity
	return nil
}

// MockProfileRepository implements ports.ProfileRepository.
type MockProfileRepository struct {
	mu       sync.RWMutex
	profiles map[string]domain.Profile

	CreateIfAbsentCalls []domain.Profile
	UpdateCalls         []domain.ProfileUpdate

	FindError   error
	CreateError error
	ListError   error
	UpdateError error
}

var _ ports.ProfileRepository = (*MockProfileRepository)(nil)

func NewMockProfileRepository() *MockProfileRepository {
	return &MockProfileRepository{profiles: make(map[string]domain.Profile)}
}

func (m *MockProfileRepository) Seed(p domain.Profile) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.profiles[p.ID] = p
}

func (m *MockProfileRepository) FindByID(ctx context.Context, id string) (*domain.Profile, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.FindError != nil {
		return nil, m.FindError
	}
	p, ok := m.profiles[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &p, nil
}

func (m *MockProfileRepository) CreateIfAbsent(ctx context.Context, p domain.Profile) (domain.Profile, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CreateIfAbsentCalls = append(m.CreateIfAbsentCalls, p)
	if m.CreateError != nil {
		return domain.Profile{}, false, m.CreateError
	}
	if existing, ok := m.profiles[p.ID]; ok {
		return existing, false, nil
	}
	m.profiles[p.ID] = p
	return p, true, nil
}

func (m *MockProfileRepository) List(ctx context.Context, role domain.Role) ([]domain.Profile, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.ListError != nil {
		return nil, m.ListError
	}
	out := []domain.Profile{}
	for _, p := range m.profiles {
		if role == "" || p.Role == role {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (m *MockProfileRepository) Update(ctx context.Context, id string, upd domain.ProfileUpdate, now time.Time) (*domain.Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.UpdateCalls = append(m.UpdateCalls, upd)
	if m.UpdateError != nil {
		return nil, m.UpdateError
	}
	p, ok := m.profiles[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	if upd.Role != nil {
		p.Role = *upd.Role
	}
	if upd.AssignedArea != nil {
		p.AssignedArea = *upd.AssignedArea
	}
	p.UpdatedAt = now
	m.profiles[id] = p
	return &p, nil
}

// MockReportRepository implements ports.ReportRepository with the same ordering and filtering as the stores.
type MockReportRepository struct {
	mu      sync.RWMutex
	reports map[string]domain.Report
	nextID  int

	CreateCalls       []domain.Report
	UpdateStatusCalls []domain.StatusChange
	DeleteCalls       []string
	ListCalls         []domain.ReportFilter

	CreateError error
	FindError   error
	ListError   error
	StatsError  error
	UpdateError error
	DeleteError error
}

var _ ports.ReportRepository = (*MockReportRepository)(nil)

func NewMockReportRepository() *MockReportRepository {
	return &MockReportRepository{reports: make(map[string]domain.Report)}
}

// Seed stores r as-is. An empty ID gets a generated one.
func (m *MockReportRepository) Seed(r domain.Report) domain.Report {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r.ID == "" {
		m.nextID++
		r.ID = "report-" + strconv.Itoa(m.nextID)
	}
	m.reports[r.ID] = r
	return r
}

// Get reads a stored report without call tracking.
func (m *MockReportRepository) Get(id string) (domain.Report, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.reports[id]
	return r, ok
}

func (m *MockReportRepository) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.reports)
}

func (m *MockReportRepository) Create(ctx context.Context, report domain.Report) (domain.Report, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CreateCalls = append(m.CreateCalls, report)
	if m.CreateError != nil {
		return domain.Report{}, m.CreateError
	}
	m.nextID++
	report.ID = "report-" + strconv.Itoa(m.nextID)
	m.reports[report.ID] = report
	return report, nil
}

func (m *MockReportRepository) FindByID(ctx context.Context, id string) (*domain.Report, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.FindError != nil {
		return nil, m.FindError
	}
	r, ok := m.reports[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &r, nil
}

func (m *MockReportRepository) List(ctx context.Context, filter domain.ReportFilter) ([]domain.Report, error) {
	m.mu.Lock()
	m.ListCalls = append(m.ListCalls, filter)
	m.mu.Unlock()

	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.ListError != nil {
		return nil, m.ListError
	}
	out := []domain.Report{}
	for _, r := range m.reports {
		if filter.Matches(r) {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ReportedAt.After(out[j].ReportedAt) })
	if limit := filter.EffectiveLimit(); len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Stats ignores filter.Limit, like the stores' aggregate queries.
func (m *MockReportRepository) Stats(ctx context.Context, filter domain.ReportFilter) (domain.ReportStats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.StatsError != nil {
		return domain.ReportStats{}, m.StatsError
	}
	st := domain.NewReportStats()
	for _, r := range m.reports {
		if filter.Matches(r) {
			st.Add(r.Status, r.Category, r.Priority, 1)
		}
	}
	return st, nil
}

func (m *MockReportRepository) UpdateStatus(ctx context.Context, id string, change domain.StatusChange) (*domain.Report, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.UpdateStatusCalls = append(m.UpdateStatusCalls, change)
	if m.UpdateError != nil {
		return nil, m.UpdateError
	}
	r, ok := m.reports[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	r.Status = change.Status
	r.AssignedTo = change.AssignedTo
	r.UpdatedAt = change.UpdatedAt
	m.reports[id] = r
	return &r, nil
}

func (m *MockReportRepository) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.DeleteCalls = append(m.DeleteCalls, id)
	if m.DeleteError != nil {
		return m.DeleteError
	}
	if _, ok := m.reports[id]; !ok {
		return domain.ErrNotFound
	}
	delete(m.reports, id)
	return nil
}
