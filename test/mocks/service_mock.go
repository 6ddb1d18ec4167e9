package mocks

import (
	"context"
	"sync"

	"github.com/AchilleasB/smart-waste/reporting-service/internal/core/domain"
	"github.com/AchilleasB/smart-waste/reporting-service/internal/core/ports"
)

// MockSessionResolver resolves tokens from a fixed table.
type MockSessionResolver struct {
	mu        sync.Mutex
	sessions  map[string]*domain.Session
	IsLoading bool
	Calls     int
}

var _ ports.SessionResolver = (*MockSessionResolver)(nil)

func NewMockSessionResolver() *MockSessionResolver {
	return &MockSessionResolver{sessions: make(map[string]*domain.Session)}
}

// Add registers token for a subject with the given role. An empty role simulates a failed role lookup.
func (m *MockSessionResolver) Add(token, subjectID string, role domain.Role) *domain.Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := &domain.Session{
		Identity: domain.Identity{ID: subjectID, Email: subjectID + "@example.com", DisplayName: subjectID},
		Role:     role,
		TokenID:  "jti-" + token,
	}
	m.sessions[token] = s
	return s
}

func (m *MockSessionResolver) Loading() bool {
	return m.IsLoading
}

func (m *MockSessionResolver) Resolve(ctx context.Context, token string) (*domain.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls++
	if token == "" {
		return nil, domain.NewAuthError("missing session", domain.ErrUnauthenticated)
	}
	s, ok := m.sessions[token]
	if !ok {
		return nil, domain.NewAuthError("invalid session", domain.ErrUnauthenticated)
	}
	return s, nil
}
