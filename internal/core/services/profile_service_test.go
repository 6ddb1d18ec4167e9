package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/AchilleasB/smart-waste/reporting-service/internal/core/domain"
	"github.com/AchilleasB/smart-waste/reporting-service/test/mocks"
)

func newProfileFixture() (*ProfileService, *mocks.MockProfileRepository, *mocks.MockSessionStore) {
	profiles := mocks.NewMockProfileRepository()
	store := mocks.NewMockSessionStore()
	return NewProfileService(profiles, store, zap.NewNop().Sugar()), profiles, store
}

func rolePtr(r domain.Role) *domain.Role { return &r }

func TestProfileService_Me_ProvisionsLazily(t *testing.T) {
	svc, profiles, _ := newProfileFixture()
	s := &domain.Session{Identity: domain.Identity{ID: "subject-1", Email: "a@example.com", DisplayName: "A"}}

	p, err := svc.Me(context.Background(), s)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.ID != "subject-1" || p.Role != domain.RoleCitizen || p.Email != "a@example.com" {
		t.Errorf("unexpected profile %+v", p)
	}
	if len(profiles.CreateIfAbsentCalls) != 1 {
		t.Errorf("expected profile to be provisioned once, got %d", len(profiles.CreateIfAbsentCalls))
	}
}

func TestProfileService_UpdateUser(t *testing.T) {
	admin := session("admin-1", domain.RoleAdmin)

	tests := []struct {
		name     string
		actor    *domain.Session
		seed     domain.Profile
		upd      domain.ProfileUpdate
		wantErr  error
		wantRole domain.Role
		wantArea string
	}{
		{
			name:     "promote citizen to cleaner with area",
			actor:    admin,
			seed:     domain.Profile{ID: "u1", Role: domain.RoleCitizen},
			upd:      domain.ProfileUpdate{Role: rolePtr(domain.RoleCleaner), AssignedArea: strPtr(" Ward 7 ")},
			wantRole: domain.RoleCleaner,
			wantArea: "Ward 7",
		},
		{
			name:     "demoting a cleaner clears the area",
			actor:    admin,
			seed:     domain.Profile{ID: "u1", Role: domain.RoleCleaner, AssignedArea: "Ward 7"},
			upd:      domain.ProfileUpdate{Role: rolePtr(domain.RoleCitizen)},
			wantRole: domain.RoleCitizen,
			wantArea: "",
		},
		{
			name:    "area on a citizen is rejected",
			actor:   admin,
			seed:    domain.Profile{ID: "u1", Role: domain.RoleCitizen},
			upd:     domain.ProfileUpdate{AssignedArea: strPtr("Ward 7")},
			wantErr: domain.ErrValidation,
		},
		{
			name:    "unknown role",
			actor:   admin,
			seed:    domain.Profile{ID: "u1", Role: domain.RoleCitizen},
			upd:     domain.ProfileUpdate{Role: rolePtr("mayor")},
			wantErr: domain.ErrValidation,
		},
		{
			name:    "empty update",
			actor:   admin,
			seed:    domain.Profile{ID: "u1", Role: domain.RoleCitizen},
			wantErr: domain.ErrValidation,
		},
		{
			name:    "cleaner cannot manage users",
			actor:   session("cleaner-1", domain.RoleCleaner),
			seed:    domain.Profile{ID: "u1", Role: domain.RoleCitizen},
			upd:     domain.ProfileUpdate{Role: rolePtr(domain.RoleAdmin)},
			wantErr: domain.ErrForbidden,
		},
		{
			name:    "missing subject",
			actor:   admin,
			seed:    domain.Profile{ID: "other", Role: domain.RoleCitizen},
			upd:     domain.ProfileUpdate{Role: rolePtr(domain.RoleAdmin)},
			wantErr: domain.ErrNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, profiles, store := newProfileFixture()
			profiles.Seed(tt.seed)
			_ = store.CacheRole(context.Background(), "u1", tt.seed.Role, time.Minute)

			p, err := svc.UpdateUser(context.Background(), tt.actor, "u1", tt.upd)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("expected %v, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if p.Role != tt.wantRole || p.AssignedArea != tt.wantArea {
				t.Errorf("expected %q/%q, got %q/%q", tt.wantRole, tt.wantArea, p.Role, p.AssignedArea)
			}
			if store.HasCachedRole("u1") {
				t.Error("expected cached role to be invalidated")
			}
		})
	}
}

func TestProfileService_ListUsers(t *testing.T) {
	svc, profiles, _ := newProfileFixture()
	now := time.Now()
	profiles.Seed(domain.Profile{ID: "a", Role: domain.RoleCitizen, CreatedAt: now})
	profiles.Seed(domain.Profile{ID: "b", Role: domain.RoleCleaner, CreatedAt: now.Add(time.Second)})
	profiles.Seed(domain.Profile{ID: "c", Role: domain.RoleCleaner, CreatedAt: now.Add(2 * time.Second)})

	cleaners, err := svc.ListUsers(context.Background(), domain.RoleCleaner)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(cleaners) != 2 {
		t.Errorf("expected 2 cleaners, got %d", len(cleaners))
	}

	if _, err := svc.ListUsers(context.Background(), "mayor"); !errors.Is(err, domain.ErrValidation) {
		t.Errorf("expected ErrValidation, got %v", err)
	}

	profiles.ListError = errors.New("timeout")
	var fetchErr *domain.FetchError
	if _, err := svc.ListUsers(context.Background(), ""); !errors.As(err, &fetchErr) {
		t.Errorf("expected FetchError, got %v", err)
	}
}
