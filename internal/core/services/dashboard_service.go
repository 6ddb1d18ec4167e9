package services

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/AchilleasB/smart-waste/reporting-service/internal/core/domain"
	"github.com/AchilleasB/smart-waste/reporting-service/internal/core/ports"
)

// DashboardService composes the role views. A failing section is reported in Errors and left empty;
// the rest of the view is still returned. Counts come from store-side aggregation, so they cover every
// matching report even when the listed sections are truncated.
type DashboardService struct {
	reports  ports.ReportService
	profiles ports.ProfileService
	log      *zap.SugaredLogger
}

var _ ports.DashboardService = (*DashboardService)(nil)

func NewDashboardService(reports ports.ReportService, profiles ports.ProfileService, log *zap.SugaredLogger) *DashboardService {
	return &DashboardService{reports: reports, profiles: profiles, log: log}
}

func (s *DashboardService) Citizen(ctx context.Context, session *domain.Session, q domain.DashboardQuery) *domain.CitizenDashboard {
	d := &domain.CitizenDashboard{
		Role:             session.Role,
		CommunityReports: []domain.Report{},
		MyReports:        []domain.Report{},
	}

	community, err := s.reports.ListAll(ctx, domain.ReportFilter{})
	if err != nil {
		d.Errors = append(d.Errors, s.sectionError("communityReports", err))
	} else {
		d.CommunityReports = domain.FilterReports(community, q.Filter())
	}

	mine, err := s.reports.ListByReporter(ctx, session.Identity.ID, domain.ReportFilter{})
	if err != nil {
		d.Errors = append(d.Errors, s.sectionError("myReports", err))
	} else {
		d.MyReports = domain.FilterReports(mine, q.Filter())
	}

	if st, err := s.reports.Stats(ctx, domain.ReportFilter{ReportedBy: session.Identity.ID}); err != nil {
		d.Errors = append(d.Errors, s.sectionError("counts", err))
	} else {
		d.Counts = st.Counts
	}
	return d
}

func (s *DashboardService) Cleaner(ctx context.Context, session *domain.Session, q domain.DashboardQuery) *domain.CleanerDashboard {
	d := &domain.CleanerDashboard{
		Role:              session.Role,
		ActionableReports: []domain.Report{},
		AssignedReports:   []domain.Report{},
	}

	if p, err := s.profiles.Me(ctx, session); err != nil {
		d.Errors = append(d.Errors, s.sectionError("profile", err))
	} else {
		d.AssignedArea = p.AssignedArea
	}

	actionable, err := s.reports.ListActionable(ctx, domain.ReportFilter{})
	if err != nil {
		d.Errors = append(d.Errors, s.sectionError("actionableReports", err))
	} else {
		d.ActionableReports = domain.FilterReports(actionable, q.Filter())
	}

	assigned, err := s.reports.ListByAssignee(ctx, session.Identity.ID, domain.ReportFilter{})
	if err != nil {
		d.Errors = append(d.Errors, s.sectionError("assignedReports", err))
	} else {
		d.AssignedReports = domain.FilterReports(assigned, q.Filter())
	}

	urgent, err := s.reports.Stats(ctx, domain.ReportFilter{Statuses: domain.ActionableStatuses(), Priority: domain.PriorityUrgent})
	if err != nil {
		d.Errors = append(d.Errors, s.sectionError("urgentCount", err))
	} else {
		d.UrgentCount = urgent.Counts.Total
	}

	if st, err := s.reports.Stats(ctx, domain.ReportFilter{AssignedTo: session.Identity.ID}); err != nil {
		d.Errors = append(d.Errors, s.sectionError("counts", err))
	} else {
		d.Counts = st.Counts
	}
	return d
}

func (s *DashboardService) Admin(ctx context.Context, session *domain.Session, q domain.DashboardQuery) *domain.AdminDashboard {
	d := &domain.AdminDashboard{
		Role:     session.Role,
		Reports:  []domain.Report{},
		Users:    []domain.Profile{},
		Cleaners: []domain.Profile{},
	}

	reports, err := s.reports.ListAll(ctx, domain.ReportFilter{Limit: domain.MaxListLimit})
	if err != nil {
		d.Errors = append(d.Errors, s.sectionError("reports", err))
	} else {
		d.Reports = domain.FilterReports(reports, q.Filter())
	}

	users, err := s.profiles.ListUsers(ctx, "")
	if err != nil {
		d.Errors = append(d.Errors, s.sectionError("users", err))
		users = nil
	} else {
		d.Users = users
		for _, u := range users {
			if u.Role == domain.RoleCleaner {
				d.Cleaners = append(d.Cleaners, u)
			}
		}
	}

	stats, err := s.reports.Stats(ctx, domain.ReportFilter{})
	if err != nil {
		d.Errors = append(d.Errors, s.sectionError("analytics", err))
		stats = domain.NewReportStats()
	}
	d.Analytics = domain.BuildAnalytics(stats, users)
	return d
}

// Analytics fails as a whole; it has no partial form.
func (s *DashboardService) Analytics(ctx context.Context) (*domain.Analytics, error) {
	stats, err := s.reports.Stats(ctx, domain.ReportFilter{})
	if err != nil {
		return nil, err
	}
	users, err := s.profiles.ListUsers(ctx, "")
	if err != nil {
		return nil, err
	}
	a := domain.BuildAnalytics(stats, users)
	return &a, nil
}

func (s *DashboardService) sectionError(section string, err error) domain.SectionError {
	s.log.Warnw("dashboard section failed", "section", section, "error", err)

	msg := "failed to load " + section
	var fe *domain.FetchError
	if !errors.As(err, &fe) {
		msg = err.Error()
	}
	return domain.SectionError{Section: section, Message: msg}
}
