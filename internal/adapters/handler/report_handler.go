package handler

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/AchilleasB/smart-waste/reporting-service/internal/adapters/middleware"
	"github.com/AchilleasB/smart-waste/reporting-service/internal/core/domain"
	"github.com/AchilleasB/smart-waste/reporting-service/internal/core/ports"
)

const (
	maxUploadBytes   = 32 << 20
	maxAttachments   = 5
	attachmentsField = "images"
)

type ReportHandler struct {
	reports ports.ReportService
	log     *zap.SugaredLogger
}

func NewReportHandler(reports ports.ReportService, log *zap.SugaredLogger) *ReportHandler {
	return &ReportHandler{reports: reports, log: log}
}

// Create accepts a multipart form: title, description, category, priority, lat, lng, an optional
// address and up to five "images" files.
func (h *ReportHandler) Create(w http.ResponseWriter, r *http.Request) {
	session, _ := middleware.SessionFromContext(r.Context())

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeError(w, fmt.Errorf("%w: invalid multipart form", domain.ErrValidation), h.log)
		return
	}
	defer r.MultipartForm.RemoveAll()

	location, err := parseLocation(r.FormValue("lat"), r.FormValue("lng"), r.FormValue("address"))
	if err != nil {
		writeError(w, err, h.log)
		return
	}

	attachments, err := readAttachments(r.MultipartForm.File[attachmentsField])
	if err != nil {
		writeError(w, err, h.log)
		return
	}

	input := domain.NewReport{
		Title:       r.FormValue("title"),
		Description: r.FormValue("description"),
		Category:    domain.WasteCategory(r.FormValue("category")),
		Priority:    domain.Priority(r.FormValue("priority")),
		Location:    location,
	}

	report, err := h.reports.Create(r.Context(), session, input, attachments)
	if err != nil {
		writeError(w, err, h.log)
		return
	}
	writeJSON(w, http.StatusCreated, report, h.log)
}

// parseLocation returns nil when no coordinates were sent.
func parseLocation(lat, lng, address string) (*domain.Location, error) {
	lat, lng = strings.TrimSpace(lat), strings.TrimSpace(lng)
	if lat == "" && lng == "" {
		return nil, nil
	}
	la, errLat := strconv.ParseFloat(lat, 64)
	ln, errLng := strconv.ParseFloat(lng, 64)
	if errLat != nil || errLng != nil {
		return nil, domain.NewGeolocationError("coordinates are not numbers", errors.Join(errLat, errLng))
	}
	return &domain.Location{Lat: la, Lng: ln, Address: strings.TrimSpace(address)}, nil
}

func readAttachments(files []*multipart.FileHeader) ([]domain.Attachment, error) {
	if len(files) > maxAttachments {
		return nil, fmt.Errorf("%w: at most %d images", domain.ErrValidation, maxAttachments)
	}
	out := make([]domain.Attachment, 0, len(files))
	for _, fh := range files {
		f, err := fh.Open()
		if err != nil {
			return nil, domain.NewUploadError(fh.Filename, err)
		}
		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			return nil, domain.NewUploadError(fh.Filename, err)
		}
		out = append(out, domain.Attachment{
			Filename:    fh.Filename,
			ContentType: fh.Header.Get("Content-Type"),
			Data:        data,
		})
	}
	return out, nil
}

// ListAll serves the community list.
func (h *ReportHandler) ListAll(w http.ResponseWriter, r *http.Request) {
	filter, err := parseFilter(r)
	if err != nil {
		writeError(w, err, h.log)
		return
	}
	h.respondList(w)(h.reports.ListAll(r.Context(), filter))
}

func (h *ReportHandler) ListMine(w http.ResponseWriter, r *http.Request) {
	session, _ := middleware.SessionFromContext(r.Context())
	filter, err := parseFilter(r)
	if err != nil {
		writeError(w, err, h.log)
		return
	}
	h.respondList(w)(h.reports.ListByReporter(r.Context(), session.Identity.ID, filter))
}

func (h *ReportHandler) ListActionable(w http.ResponseWriter, r *http.Request) {
	filter, err := parseFilter(r)
	if err != nil {
		writeError(w, err, h.log)
		return
	}
	h.respondList(w)(h.reports.ListActionable(r.Context(), filter))
}

func (h *ReportHandler) ListAssigned(w http.ResponseWriter, r *http.Request) {
	session, _ := middleware.SessionFromContext(r.Context())
	filter, err := parseFilter(r)
	if err != nil {
		writeError(w, err, h.log)
		return
	}
	h.respondList(w)(h.reports.ListByAssignee(r.Context(), session.Identity.ID, filter))
}

func (h *ReportHandler) respondList(w http.ResponseWriter) func([]domain.Report, error) {
	return func(reports []domain.Report, err error) {
		if err != nil {
			writeError(w, err, h.log)
			return
		}
		writeJSON(w, http.StatusOK, reports, h.log)
	}
}

type StatusRequest struct {
	Status     string  `json:"status"`
	AssignedTo *string `json:"assignedTo,omitempty"`
}

func (h *ReportHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	session, _ := middleware.SessionFromContext(r.Context())

	var req StatusRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err, h.log)
		return
	}
	status, ok := domain.ParseStatus(req.Status)
	if !ok {
		writeError(w, fmt.Errorf("%w: unknown status %q", domain.ErrValidation, req.Status), h.log)
		return
	}

	report, err := h.reports.UpdateStatus(r.Context(), session, r.PathValue("id"), status, req.AssignedTo)
	if err != nil {
		writeError(w, err, h.log)
		return
	}
	writeJSON(w, http.StatusOK, report, h.log)
}

func (h *ReportHandler) Delete(w http.ResponseWriter, r *http.Request) {
	session, _ := middleware.SessionFromContext(r.Context())
	if err := h.reports.Delete(r.Context(), session, r.PathValue("id")); err != nil {
		writeError(w, err, h.log)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// parseFilter reads category, priority, status (repeatable or comma separated) and limit.
func parseFilter(r *http.Request) (domain.ReportFilter, error) {
	q := r.URL.Query()
	var f domain.ReportFilter

	if v := q.Get("category"); v != "" {
		c, ok := domain.ParseCategory(v)
		if !ok {
			return f, fmt.Errorf("%w: unknown category %q", domain.ErrValidation, v)
		}
		f.Category = c
	}
	if v := q.Get("priority"); v != "" {
		p, ok := domain.ParsePriority(v)
		if !ok {
			return f, fmt.Errorf("%w: unknown priority %q", domain.ErrValidation, v)
		}
		f.Priority = p
	}
	for _, raw := range q["status"] {
		for _, v := range strings.Split(raw, ",") {
			if v = strings.TrimSpace(v); v == "" {
				continue
			}
			s, ok := domain.ParseStatus(v)
			if !ok {
				return f, fmt.Errorf("%w: unknown status %q", domain.ErrValidation, v)
			}
			f.Statuses = append(f.Statuses, s)
		}
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return f, fmt.Errorf("%w: limit must be a positive integer", domain.ErrValidation)
		}
		f.Limit = n
	}
	return f, nil
}

// parseDashboardQuery reads the display filters of a dashboard.
func parseDashboardQuery(r *http.Request) (domain.DashboardQuery, error) {
	f, err := parseFilter(r)
	if err != nil {
		return domain.DashboardQuery{}, err
	}
	q := domain.DashboardQuery{Category: f.Category, Priority: f.Priority}
	if len(f.Statuses) > 1 {
		return q, fmt.Errorf("%w: dashboards filter by a single status", domain.ErrValidation)
	}
	if len(f.Statuses) == 1 {
		q.Status = f.Statuses[0]
	}
	return q, nil
}
