package ports

import (
	"context"
	"time"

	"github.com/AchilleasB/smart-waste/reporting-service/internal/core/domain"
)

// IdentityRepository stores credential and federated identities.
type IdentityRepository interface {
	FindByEmail(ctx context.Context, email string) (*domain.Identity, error)
	FindByID(ctx context.Context, id string) (*domain.Identity, error)
	Create(ctx context.Context, identity domain.Identity) error
}

// ProfileRepository is the profiles collection, keyed by identity id.
type ProfileRepository interface {
	FindByID(ctx context.Context, id string) (*domain.Profile, error)
	// CreateIfAbsent stores p unless a profile with the same id exists. It returns the stored
	// record and whether it was created by this call.
	CreateIfAbsent(ctx context.Context, p domain.Profile) (domain.Profile, bool, error)
	// List returns profiles ordered by creation; an empty role means every role.
	List(ctx context.Context, role domain.Role) ([]domain.Profile, error)
	Update(ctx context.Context, id string, upd domain.ProfileUpdate, now time.Time) (*domain.Profile, error)
}

// ReportRepository is the reports collection. List results are ordered by reportedAt descending.
type ReportRepository interface {
	Create(ctx context.Context, report domain.Report) (domain.Report, error)
	FindByID(ctx context.Context, id string) (*domain.Report, error)
	List(ctx context.Context, filter domain.ReportFilter) ([]domain.Report, error)
	// Stats aggregates every report matching filter; filter.Limit is ignored.
	Stats(ctx context.Context, filter domain.ReportFilter) (domain.ReportStats, error)
	UpdateStatus(ctx context.Context, id string, change domain.StatusChange) (*domain.Report, error)
	Delete(ctx context.Context, id string) error
}
