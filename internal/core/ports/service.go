package ports

import (
	"context"

	"github.com/AchilleasB/smart-waste/reporting-service/internal/core/domain"
)

type AuthService interface {
	Login(ctx context.Context, creds domain.Credentials) (*domain.SignedSession, error)
	RegisterAndProvision(ctx context.Context, creds domain.Credentials, displayName string, role domain.Role) (*domain.SignedSession, error)
	FederatedLoginURL() (url string, state string, err error)
	LoginWithFederatedProvider(ctx context.Context, code string) (*domain.SignedSession, error)
	Logout(ctx context.Context, session *domain.Session) error
}

// SessionResolver turns a bearer token into the caller's session.
type SessionResolver interface {
	Loading() bool
	Resolve(ctx context.Context, token string) (*domain.Session, error)
}

type ReportService interface {
	ListAll(ctx context.Context, filter domain.ReportFilter) ([]domain.Report, error)
	ListActionable(ctx context.Context, filter domain.ReportFilter) ([]domain.Report, error)
	ListByReporter(ctx context.Context, subjectID string, filter domain.ReportFilter) ([]domain.Report, error)
	ListByAssignee(ctx context.Context, subjectID string, filter domain.ReportFilter) ([]domain.Report, error)
	Stats(ctx context.Context, filter domain.ReportFilter) (domain.ReportStats, error)
	Create(ctx context.Context, actor *domain.Session, report domain.NewReport, attachments []domain.Attachment) (*domain.Report, error)
	UpdateStatus(ctx context.Context, actor *domain.Session, id string, status domain.ReportStatus, assignee *string) (*domain.Report, error)
	Delete(ctx context.Context, actor *domain.Session, id string) error
}

type ProfileService interface {
	Me(ctx context.Context, session *domain.Session) (*domain.Profile, error)
	ListUsers(ctx context.Context, role domain.Role) ([]domain.Profile, error)
	UpdateUser(ctx context.Context, actor *domain.Session, id string, upd domain.ProfileUpdate) (*domain.Profile, error)
}

type DashboardService interface {
	Citizen(ctx context.Context, session *domain.Session, q domain.DashboardQuery) *domain.CitizenDashboard
	Cleaner(ctx context.Context, session *domain.Session, q domain.DashboardQuery) *domain.CleanerDashboard
	Admin(ctx context.Context, session *domain.Session, q domain.DashboardQuery) *domain.AdminDashboard
	Analytics(ctx context.Context) (*domain.Analytics, error)
}
