package services

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/AchilleasB/smart-waste/reporting-service/internal/core/domain"
	"github.com/AchilleasB/smart-waste/reporting-service/internal/core/ports"
)

type ReportService struct {
	reports   ports.ReportRepository
	profiles  ports.ProfileRepository
	objects   ports.ObjectStore
	geocoder  ports.Geocoder
	publisher ports.ReportEventPublisher
	prefix    string
	log       *zap.SugaredLogger
	now       func() time.Time
}

var _ ports.ReportService = (*ReportService)(nil)

// NewReportService builds the report use cases. geocoder and publisher may be nil.
// profiles is consulted when an admin names an assignee.
func NewReportService(
	reports ports.ReportRepository,
	profiles ports.ProfileRepository,
	objects ports.ObjectStore,
	geocoder ports.Geocoder,
	publisher ports.ReportEventPublisher,
	uploadPrefix string,
	log *zap.SugaredLogger,
) *ReportService {
	return &ReportService{
		reports:   reports,
		profiles:  profiles,
		objects:   objects,
		geocoder:  geocoder,
		publisher: publisher,
		prefix:    strings.Trim(uploadPrefix, "/"),
		log:       log,
		now:       time.Now,
	}
}

func (s *ReportService) ListAll(ctx context.Context, filter domain.ReportFilter) ([]domain.Report, error) {
	return s.list(ctx, "all", filter)
}

// ListActionable narrows filter to Pending and In Progress reports.
func (s *ReportService) ListActionable(ctx context.Context, filter domain.ReportFilter) ([]domain.Report, error) {
	var statuses []domain.ReportStatus
	if len(filter.Statuses) == 0 {
		statuses = domain.ActionableStatuses()
	}
	for _, st := range filter.Statuses {
		if st.Actionable() {
			statuses = append(statuses, st)
		}
	}
	if len(statuses) == 0 {
		return []domain.Report{}, nil
	}
	filter.Statuses = statuses
	return s.list(ctx, "actionable", filter)
}

func (s *ReportService) ListByReporter(ctx context.Context, subjectID string, filter domain.ReportFilter) ([]domain.Report, error) {
	if subjectID == "" {
		return nil, fmt.Errorf("%w: reporter id is required", domain.ErrValidation)
	}
	filter.ReportedBy = subjectID
	return s.list(ctx, "by_reporter", filter)
}

func (s *ReportService) ListByAssignee(ctx context.Context, subjectID string, filter domain.ReportFilter) ([]domain.Report, error) {
	if subjectID == "" {
		return nil, fmt.Errorf("%w: assignee id is required", domain.ErrValidation)
	}
	filter.AssignedTo = subjectID
	return s.list(ctx, "by_assignee", filter)
}

// Stats aggregates every report matching filter. Unlike the list scopes it is not limited.
func (s *ReportService) Stats(ctx context.Context, filter domain.ReportFilter) (domain.ReportStats, error) {
	filter.Limit = 0
	st, err := s.reports.Stats(ctx, filter)
	if err != nil {
		s.log.Errorw("report stats failed", "error", err)
		return domain.ReportStats{}, asFetchError("report stats", err)
	}
	return st, nil
}

func (s *ReportService) list(ctx context.Context, scope string, filter domain.ReportFilter) ([]domain.Report, error) {
	filter.Limit = filter.EffectiveLimit()
	reports, err := s.reports.List(ctx, filter)
	if err != nil {
		s.log.Errorw("report list failed", "scope", scope, "error", err)
		return nil, asFetchError("list reports "+scope, err)
	}
	if reports == nil {
		reports = []domain.Report{}
	}
	return reports, nil
}

// Create uploads every attachment first and only persists the report when all uploads succeeded.
// Status, assignee and ownership are always set here, never taken from the caller.
func (s *ReportService) Create(
	ctx context.Context,
	actor *domain.Session,
	input domain.NewReport,
	attachments []domain.Attachment,
) (*domain.Report, error) {
	if !actor.Authenticated() {
		return nil, domain.ErrUnauthenticated
	}
	if actor.Role != domain.RoleCitizen {
		return nil, fmt.Errorf("%w: only citizens submit reports", domain.ErrForbidden)
	}
	if err := input.Validate(); err != nil {
		return nil, err
	}
	if input.Location == nil {
		return nil, domain.NewGeolocationError("location is required", nil)
	}
	if !input.Location.Valid() {
		return nil, domain.NewGeolocationError("coordinates out of range", nil)
	}

	category, _ := domain.ParseCategory(string(input.Category))
	priority, _ := domain.ParsePriority(string(input.Priority))

	images, err := s.uploadAll(ctx, attachments)
	if err != nil {
		return nil, err
	}

	location := *input.Location
	location.Address = s.resolveAddress(ctx, location)

	now := s.now().UTC()
	report := domain.Report{
		Title:       strings.TrimSpace(input.Title),
		Description: strings.TrimSpace(input.Description),
		Category:    category,
		Priority:    priority,
		Status:      domain.StatusPending,
		Location:    location,
		Images:      images,
		ReportedBy:  actor.Identity.ID,
		ReportedAt:  now,
		UpdatedAt:   now,
	}

	stored, err := s.reports.Create(ctx, report)
	if err != nil {
		s.log.Errorw("report create failed", "reporter", actor.Identity.ID, "error", err)
		s.discard(ctx, images)
		return nil, asWriteError("create report", err)
	}

	s.log.Infow("report created", "report", stored.ID, "reporter", stored.ReportedBy, "images", len(images))
	s.publish(ctx, domain.EventReportCreated, stored, actor)
	return &stored, nil
}

// UpdateStatus runs the lifecycle rules against the stored report and writes status, assignee and updatedAt.
func (s *ReportService) UpdateStatus(
	ctx context.Context,
	actor *domain.Session,
	id string,
	status domain.ReportStatus,
	assignee *string,
) (*domain.Report, error) {
	if !actor.Authenticated() {
		return nil, domain.ErrUnauthenticated
	}

	current, err := s.reports.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, err
		}
		s.log.Errorw("report lookup failed", "report", id, "error", err)
		return nil, asFetchError("find report", err)
	}

	change, err := Transition(actor, *current, status, assignee, s.now().UTC())
	if err != nil {
		s.log.Infow("status change rejected",
			"report", id, "actor", actor.Identity.ID, "role", actor.Role,
			"from", current.Status, "to", status, "error", err)
		return nil, err
	}
	if actor.Role == domain.RoleAdmin && assignee != nil && change.AssignedTo != "" && change.AssignedTo != current.AssignedTo {
		if err := s.checkAssignee(ctx, change.AssignedTo); err != nil {
			return nil, err
		}
	}

	updated, err := s.reports.UpdateStatus(ctx, id, change)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, err
		}
		s.log.Errorw("status update failed", "report", id, "error", err)
		return nil, asWriteError("update report status", err)
	}

	s.log.Infow("report status changed",
		"report", id, "actor", actor.Identity.ID, "from", current.Status, "to", updated.Status, "assignee", updated.AssignedTo)
	s.publish(ctx, domain.EventReportStatusChanged, *updated, actor)
	return updated, nil
}

// checkAssignee requires an explicitly named assignee to be a cleaner's profile.
func (s *ReportService) checkAssignee(ctx context.Context, subjectID string) error {
	p, err := s.profiles.FindByID(ctx, subjectID)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return fmt.Errorf("%w: assignee %q does not exist", domain.ErrValidation, subjectID)
	case err != nil:
		s.log.Errorw("assignee lookup failed", "assignee", subjectID, "error", err)
		return asFetchError("find assignee", err)
	case p.Role != domain.RoleCleaner:
		return fmt.Errorf("%w: assignee %q is not a cleaner", domain.ErrValidation, subjectID)
	}
	return nil
}

// Delete hard-deletes a report. Only admins may delete.
func (s *ReportService) Delete(ctx context.Context, actor *domain.Session, id string) error {
	if !actor.Authenticated() {
		return domain.ErrUnauthenticated
	}
	if actor.Role != domain.RoleAdmin {
		return fmt.Errorf("%w: only admins delete reports", domain.ErrForbidden)
	}

	current, err := s.reports.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return err
		}
		return asFetchError("find report", err)
	}

	if err := s.reports.Delete(ctx, id); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return err
		}
		s.log.Errorw("report delete failed", "report", id, "error", err)
		return asWriteError("delete report", err)
	}

	s.log.Infow("report deleted", "report", id, "actor", actor.Identity.ID)
	s.discard(ctx, current.Images)
	s.publish(ctx, domain.EventReportDeleted, *current, actor)
	return nil
}

// uploadAll pushes attachments concurrently. If any upload fails the ones that succeeded are removed
// and the first failure, in attachment order, is returned.
func (s *ReportService) uploadAll(ctx context.Context, attachments []domain.Attachment) ([]string, error) {
	if len(attachments) == 0 {
		return []string{}, nil
	}

	stamp := s.now().UnixMilli()
	names := objectNames(attachments)
	urls := make([]string, len(attachments))
	errs := make([]error, len(attachments))

	var wg sync.WaitGroup
	for i, a := range attachments {
		wg.Add(1)
		go func(i int, a domain.Attachment) {
			defer wg.Done()
			urls[i], errs[i] = s.objects.Upload(ctx, s.ObjectKey(stamp, names[i]), a)
		}(i, a)
	}
	wg.Wait()

	for i, err := range errs {
		if err == nil {
			continue
		}
		s.log.Warnw("attachment upload failed", "file", attachments[i].Filename, "error", err)
		uploaded := make([]string, 0, len(urls))
		for j, u := range urls {
			if errs[j] == nil && u != "" {
				uploaded = append(uploaded, u)
			}
		}
		s.discard(ctx, uploaded)

		var upErr *domain.UploadError
		if errors.As(err, &upErr) {
			return nil, err
		}
		return nil, domain.NewUploadError(attachments[i].Filename, err)
	}
	return urls, nil
}

// objectNames gives each attachment of one submission a distinct base name. The object store ignores
// extensions, so "a.jpg" and "a.png" clash as well; later clashes become "a-2.png", "a-3.png".
func objectNames(attachments []domain.Attachment) []string {
	names := make([]string, len(attachments))
	seen := make(map[string]int, len(attachments))
	for i, a := range attachments {
		name := cleanFilename(a.Filename)
		ext := path.Ext(name)
		stem := strings.TrimSuffix(name, ext)
		for {
			key := strings.ToLower(stem)
			seen[key]++
			if seen[key] == 1 {
				break
			}
			stem = fmt.Sprintf("%s-%d", strings.TrimSuffix(name, ext), seen[key])
		}
		names[i] = stem + ext
	}
	return names
}

func cleanFilename(filename string) string {
	name := path.Base(strings.ReplaceAll(strings.TrimSpace(filename), "\\", "/"))
	if name == "." || name == "/" || name == "" {
		name = uuid.NewString()
	}
	return name
}

// ObjectKey names an attachment as <prefix>/<unix-millis>-<filename>.
func (s *ReportService) ObjectKey(stampMillis int64, filename string) string {
	name := cleanFilename(filename)
	if s.prefix == "" {
		return fmt.Sprintf("%d-%s", stampMillis, name)
	}
	return fmt.Sprintf("%s/%d-%s", s.prefix, stampMillis, name)
}

// discard removes uploaded objects. Failures are only logged.
func (s *ReportService) discard(ctx context.Context, urls []string) {
	for _, u := range urls {
		if err := s.objects.Delete(ctx, u); err != nil {
			s.log.Warnw("attachment cleanup failed", "url", u, "error", err)
		}
	}
}

// resolveAddress keeps a client supplied address, else reverse geocodes, else falls back to "lat, lng".
func (s *ReportService) resolveAddress(ctx context.Context, loc domain.Location) string {
	if addr := strings.TrimSpace(loc.Address); addr != "" {
		return addr
	}
	if s.geocoder == nil {
		return loc.CoordinateLabel()
	}
	addr, err := s.geocoder.ReverseGeocode(ctx, loc.Lat, loc.Lng)
	if err != nil {
		s.log.Warnw("reverse geocode failed", "lat", loc.Lat, "lng", loc.Lng, "error", err)
		return loc.CoordinateLabel()
	}
	if strings.TrimSpace(addr) == "" {
		return loc.CoordinateLabel()
	}
	return addr
}

func (s *ReportService) publish(ctx context.Context, typ domain.ReportEventType, report domain.Report, actor *domain.Session) {
	if s.publisher == nil {
		return
	}
	evt := domain.ReportEvent{
		ID:         uuid.NewString(),
		Type:       typ,
		ReportID:   report.ID,
		Status:     report.Status,
		AssignedTo: report.AssignedTo,
		ActorID:    actor.Identity.ID,
		OccurredAt: s.now().UTC(),
	}
	if err := s.publisher.PublishReportEvent(ctx, evt); err != nil {
		s.log.Warnw("report event publish failed", "type", typ, "report", report.ID, "error", err)
	}
}

func asFetchError(op string, err error) error {
	var fe *domain.FetchError
	if errors.As(err, &fe) {
		return err
	}
	return domain.NewFetchError(op, err)
}

func asWriteError(op string, err error) error {
	var we *domain.WriteError
	if errors.As(err, &we) {
		return err
	}
	return domain.NewWriteError(op, err)
}
