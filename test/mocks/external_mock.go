package mocks

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/AchilleasB/smart-waste/reporting-service/internal/core/domain"
	"github.com/AchilleasB/smart-waste/reporting-service/internal/core/ports"
)

// MockObjectStore implements ports.ObjectStore. URLs are https://objects.test/<key>.
type MockObjectStore struct {
	mu      sync.Mutex
	objects map[string]domain.Attachment

	UploadKeys  []string
	DeletedURLs []string

	// FailFilenames makes Upload fail for attachments with these filenames.
	FailFilenames map[string]error
	DeleteError   error
}

var _ ports.ObjectStore = (*MockObjectStore)(nil)

func NewMockObjectStore() *MockObjectStore {
	return &MockObjectStore{
		objects:       make(map[string]domain.Attachment),
		FailFilenames: make(map[string]error),
	}
}

func (m *MockObjectStore) Upload(ctx context.Context, key string, file domain.Attachment) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.UploadKeys = append(m.UploadKeys, key)
	if err, ok := m.FailFilenames[file.Filename]; ok {
		return "", err
	}
	url := "https://objects.test/" + key
	m.objects[url] = file
	return url, nil
}

func (m *MockObjectStore) Delete(ctx context.Context, url string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.DeletedURLs = append(m.DeletedURLs, url)
	if m.DeleteError != nil {
		return m.DeleteError
	}
	delete(m.objects, url)
	return nil
}

// Stored returns the number of objects currently held.
func (m *MockObjectStore) Stored() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.objects)
}

// MockGeocoder implements ports.Geocoder with a fixed answer.
type MockGeocoder struct {
	Address string
	Err     error
	Calls   int
}

var _ ports.Geocoder = (*MockGeocoder)(nil)

func (m *MockGeocoder) ReverseGeocode(ctx context.Context, lat, lng float64) (string, error) {
	m.Calls++
	return m.Address, m.Err
}

// MockPublisher implements ports.ReportEventPublisher and records every event.
type MockPublisher struct {
	mu     sync.Mutex
	Events []domain.ReportEvent

	PublishError error
}

var _ ports.ReportEventPublisher = (*MockPublisher)(nil)

func (m *MockPublisher) PublishReportEvent(ctx context.Context, evt domain.ReportEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.PublishError != nil {
		return m.PublishError
	}
	m.Events = append(m.Events, evt)
	return nil
}

// Types returns the recorded event types in publish order.
func (m *MockPublisher) Types() []domain.ReportEventType {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.ReportEventType, 0, len(m.Events))
	for _, e := range m.Events {
		out = append(out, e.Type)
	}
	return out
}

// MockSessionStore implements ports.SessionStore in memory. Calls records operations in order.
type MockSessionStore struct {
	mu      sync.Mutex
	revoked map[string]time.Duration
	roles   map[string]domain.Role

	Calls []string

	PingError   error
	RevokeError error
	CheckError  error
	RoleError   error
	ClearError  error
}

var _ ports.SessionStore = (*MockSessionStore)(nil)

func NewMockSessionStore() *MockSessionStore {
	return &MockSessionStore{
		revoked: make(map[string]time.Duration),
		roles:   make(map[string]domain.Role),
	}
}

func (m *MockSessionStore) Ping(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls = append(m.Calls, "ping")
	return m.PingError
}

func (m *MockSessionStore) Revoke(ctx context.Context, tokenID string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls = append(m.Calls, "revoke")
	if m.RevokeError != nil {
		return m.RevokeError
	}
	m.revoked[tokenID] = ttl
	return nil
}

func (m *MockSessionStore) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.CheckError != nil {
		return false, m.CheckError
	}
	_, ok := m.revoked[tokenID]
	return ok, nil
}

func (m *MockSessionStore) CachedRole(ctx context.Context, subjectID string) (domain.Role, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.RoleError != nil {
		return "", false, m.RoleError
	}
	r, ok := m.roles[subjectID]
	return r, ok, nil
}

func (m *MockSessionStore) CacheRole(ctx context.Context, subjectID string, role domain.Role, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.RoleError != nil {
		return m.RoleError
	}
	m.roles[subjectID] = role
	return nil
}

func (m *MockSessionStore) ClearRole(ctx context.Context, subjectID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls = append(m.Calls, "clear_role")
	if m.ClearError != nil {
		return m.ClearError
	}
	delete(m.roles, subjectID)
	return nil
}

// HasCachedRole is a test assertion helper.
func (m *MockSessionStore) HasCachedRole(subjectID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.roles[subjectID]
	return ok
}

// MockCredentialProvider implements ports.CredentialProvider over a MockIdentityRepository.
// Passwords are stored in PasswordHash unhashed.
type MockCredentialProvider struct {
	Identities *MockIdentityRepository
}

var _ ports.CredentialProvider = (*MockCredentialProvider)(nil)

func (m *MockCredentialProvider) SignIn(ctx context.Context, creds domain.Credentials) (*domain.Identity, error) {
	i, err := m.Identities.FindByEmail(ctx, creds.Email)
	if err != nil || i.PasswordHash != creds.Password {
		return nil, domain.NewAuthError("invalid credentials", domain.ErrUnauthenticated)
	}
	return i, nil
}

func (m *MockCredentialProvider) SignUp(ctx context.Context, creds domain.Credentials, displayName string) (*domain.Identity, error) {
	if len(creds.Password) < 6 {
		return nil, domain.NewAuthError("weak password", domain.ErrValidation)
	}
	identity := domain.Identity{
		ID:           "subject-" + strings.ToLower(creds.Email),
		Email:        strings.ToLower(creds.Email),
		DisplayName:  displayName,
		Provider:     domain.ProviderPassword,
		PasswordHash: creds.Password,
	}
	if err := m.Identities.Create(ctx, identity); err != nil {
		return nil, domain.NewAuthError("email already in use", err)
	}
	return &identity, nil
}

// MockFederatedProvider implements ports.FederatedProvider.
type MockFederatedProvider struct {
	Identity    domain.Identity
	ExchangeErr error
	Codes       []string
}

var _ ports.FederatedProvider = (*MockFederatedProvider)(nil)

func (m *MockFederatedProvider) AuthURL(state string) string {
	return "https://accounts.test/auth?state=" + state
}

func (m *MockFederatedProvider) Exchange(ctx context.Context, code string) (domain.Identity, error) {
	m.Codes = append(m.Codes, code)
	if m.ExchangeErr != nil {
		return domain.Identity{}, m.ExchangeErr
	}
	return m.Identity, nil
}
