package handler_test

import (
	"bytes"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AchilleasB/smart-waste/reporting-service/internal/adapters/handler"
	"github.com/AchilleasB/smart-waste/reporting-service/internal/core/domain"
)

func reportForm(t *testing.T, fields map[string]string, files map[string][]byte) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	mw := multipart.NewWriter(body)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	for name, data := range files {
		part, err := mw.CreateFormFile("images", name)
		require.NoError(t, err)
		_, err = part.Write(data)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	return body, mw.FormDataContentType()
}

func validFields() map[string]string {
	return map[string]string{
		"title":       "Overflowing bin",
		"description": "Bin at the corner is full",
		"category":    "garbage_overflow",
		"priority":    "high",
		"lat":         "52.37",
		"lng":         "4.89",
	}
}

func (f *fixture) postReport(t *testing.T, token string, fields map[string]string, files map[string][]byte) *httptest.ResponseRecorder {
	body, contentType := reportForm(t, fields, files)
	req := httptest.NewRequest(http.MethodPost, "/report", body)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	f.server.ServeHTTP(rec, req)
	return rec
}

func TestReportHandler_Create(t *testing.T) {
	f := newFixture(t, domain.RoleCitizen)
	f.sessions.Add("tok", "citizen-1", domain.RoleCitizen)

	rec := f.postReport(t, "tok", validFields(), map[string][]byte{"bin.jpg": []byte("jpeg"), "street.png": []byte("png")})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	report := decode[domain.Report](t, rec)
	assert.Equal(t, domain.StatusPending, report.Status)
	assert.Equal(t, domain.CategoryGarbageOverflow, report.Category)
	assert.Equal(t, domain.PriorityHigh, report.Priority)
	assert.Equal(t, "citizen-1", report.ReportedBy)
	assert.Empty(t, report.AssignedTo)
	assert.Equal(t, "Main St 1", report.Location.Address)
	assert.Len(t, report.Images, 2)

	assert.Equal(t, 1, f.reports.Count())
	assert.Equal(t, 2, f.objects.Stored())
	assert.Equal(t, []domain.ReportEventType{domain.EventReportCreated}, f.publisher.Types())
}

func TestReportHandler_CreateRejections(t *testing.T) {
	tests := []struct {
		name       string
		mutate     func(map[string]string)
		wantStatus int
	}{
		{"missing coordinates", func(m map[string]string) { delete(m, "lat"); delete(m, "lng") }, http.StatusUnprocessableEntity},
		{"coordinates out of range", func(m map[string]string) { m["lat"] = "123" }, http.StatusUnprocessableEntity},
		{"coordinates not numbers", func(m map[string]string) { m["lng"] = "east" }, http.StatusUnprocessableEntity},
		{"unknown category", func(m map[string]string) { m["category"] = "Glitter" }, http.StatusBadRequest},
		{"empty title", func(m map[string]string) { m["title"] = "  " }, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, domain.RoleCitizen)
			f.sessions.Add("tok", "citizen-1", domain.RoleCitizen)
			fields := validFields()
			tt.mutate(fields)

			rec := f.postReport(t, "tok", fields, nil)

			assert.Equal(t, tt.wantStatus, rec.Code, rec.Body.String())
			assert.Zero(t, f.reports.Count())
			assert.Empty(t, f.publisher.Events)
		})
	}
}

func TestReportHandler_CreateUploadFailureWritesNothing(t *testing.T) {
	f := newFixture(t, domain.RoleCitizen)
	f.sessions.Add("tok", "citizen-1", domain.RoleCitizen)
	f.objects.FailFilenames["broken.jpg"] = errors.New("quota exceeded")

	rec := f.postReport(t, "tok", validFields(), map[string][]byte{"ok.jpg": []byte("a"), "broken.jpg": []byte("b")})

	require.Equal(t, http.StatusBadGateway, rec.Code)
	body := decode[handler.ErrorResponse](t, rec)
	assert.Equal(t, "upload", body.Error)
	assert.Zero(t, f.reports.Count())
	assert.Zero(t, f.objects.Stored())
}

func TestReportHandler_ListFilters(t *testing.T) {
	f := newFixture(t, domain.RoleCitizen)
	f.sessions.Add("tok", "citizen-1", domain.RoleCitizen)
	now := time.Now()
	seed := []domain.Report{
		{Title: "a", Status: domain.StatusPending, Category: domain.CategoryIllegalDumping, Priority: domain.PriorityLow, ReportedAt: now},
		{Title: "b", Status: domain.StatusInProgress, Category: domain.CategoryIllegalDumping, Priority: domain.PriorityLow, ReportedAt: now.Add(-time.Minute)},
		{Title: "c", Status: domain.StatusResolved, Category: domain.CategoryIllegalDumping, Priority: domain.PriorityLow, ReportedAt: now.Add(-2 * time.Minute)},
		{Title: "d", Status: domain.StatusPending, Category: domain.CategoryOther, Priority: domain.PriorityLow, ReportedAt: now.Add(-3 * time.Minute)},
	}
	for _, r := range seed {
		f.reports.Seed(r)
	}

	rec := f.do(http.MethodGet, "/reports?category=illegal_dumping&status=pending,in%20progress", "tok", "")
	require.Equal(t, http.StatusOK, rec.Code)
	reports := decode[[]domain.Report](t, rec)
	require.Len(t, reports, 2)
	assert.Equal(t, "a", reports[0].Title)
	assert.Equal(t, "b", reports[1].Title)

	rec = f.do(http.MethodGet, "/reports?status=Resolved&status=Pending&limit=2", "tok", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]domain.Report](t, rec), 2)

	for _, q := range []string{"?limit=0", "?limit=ten", "?status=Lost", "?category=Glitter", "?priority=Whenever"} {
		rec := f.do(http.MethodGet, "/reports"+q, "tok", "")
		assert.Equal(t, http.StatusBadRequest, rec.Code, q)
	}
}

func TestReportHandler_ListMine(t *testing.T) {
	f := newFixture(t, domain.RoleCitizen)
	f.sessions.Add("tok", "citizen-1", domain.RoleCitizen)
	f.reports.Seed(domain.Report{Title: "mine", ReportedBy: "citizen-1", Status: domain.StatusPending, ReportedAt: time.Now()})
	f.reports.Seed(domain.Report{Title: "theirs", ReportedBy: "citizen-2", Status: domain.StatusPending, ReportedAt: time.Now()})

	rec := f.do(http.MethodGet, "/reports/mine", "tok", "")
	require.Equal(t, http.StatusOK, rec.Code)
	reports := decode[[]domain.Report](t, rec)
	require.Len(t, reports, 1)
	assert.Equal(t, "mine", reports[0].Title)
}

func TestReportHandler_CleanerLifecycle(t *testing.T) {
	f := newFixture(t, domain.RoleCleaner)
	f.sessions.Add("c1", "cleaner-1", domain.RoleCleaner)
	f.sessions.Add("c2", "cleaner-2", domain.RoleCleaner)
	r := f.reports.Seed(domain.Report{Title: "bin", Status: domain.StatusPending, ReportedAt: time.Now()})
	path := "/reports/" + r.ID + "/status"

	rec := f.do(http.MethodPatch, path, "c1", `{"status":"Resolved"}`)
	assert.Equal(t, http.StatusConflict, rec.Code, "pending cannot jump to resolved")

	rec = f.do(http.MethodPatch, path, "c1", `{"status":"in_progress"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	updated := decode[domain.Report](t, rec)
	assert.Equal(t, domain.StatusInProgress, updated.Status)
	assert.Equal(t, "cleaner-1", updated.AssignedTo)

	rec = f.do(http.MethodPatch, path, "c2", `{"status":"Resolved"}`)
	assert.Equal(t, http.StatusForbidden, rec.Code, "only the assignee resolves")

	rec = f.do(http.MethodPatch, path, "c1", `{"status":"Resolved"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, domain.StatusResolved, decode[domain.Report](t, rec).Status)

	assert.Equal(t, []domain.ReportEventType{domain.EventReportStatusChanged, domain.EventReportStatusChanged}, f.publisher.Types())
}

func TestReportHandler_UpdateStatusRejections(t *testing.T) {
	f := newFixture(t, domain.RoleAdmin)
	f.sessions.Add("tok", "admin-1", domain.RoleAdmin)
	r := f.reports.Seed(domain.Report{Title: "bin", Status: domain.StatusPending, ReportedAt: time.Now()})

	tests := []struct {
		name       string
		path       string
		body       string
		wantStatus int
	}{
		{"unknown status", "/reports/" + r.ID + "/status", `{"status":"Lost"}`, http.StatusBadRequest},
		{"unknown field", "/reports/" + r.ID + "/status", `{"status":"Closed","owner":"x"}`, http.StatusBadRequest},
		{"malformed body", "/reports/" + r.ID + "/status", `{`, http.StatusBadRequest},
		{"missing report", "/reports/nope/status", `{"status":"Closed"}`, http.StatusNotFound},
		{"assignee on pending", "/reports/" + r.ID + "/status", `{"status":"Pending","assignedTo":"cleaner-1"}`, http.StatusConflict},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := f.do(http.MethodPatch, tt.path, "tok", tt.body)
			assert.Equal(t, tt.wantStatus, rec.Code, rec.Body.String())
		})
	}
}

func TestReportHandler_AdminReassignsAndDeletes(t *testing.T) {
	f := newFixture(t, domain.RoleAdmin)
	f.sessions.Add("tok", "admin-1", domain.RoleAdmin)
	r := f.reports.Seed(domain.Report{Title: "bin", Status: domain.StatusResolved, AssignedTo: "cleaner-1",
		Images: []string{"https://objects.test/a.jpg"}, ReportedAt: time.Now()})

	f.profiles.Seed(domain.Profile{ID: "cleaner-2", Role: domain.RoleCleaner})
	f.profiles.Seed(domain.Profile{ID: "citizen-9", Role: domain.RoleCitizen})

	rec := f.do(http.MethodPatch, "/reports/"+r.ID+"/status", "tok", `{"status":"In Progress","assignedTo":"citizen-9"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
	rec = f.do(http.MethodPatch, "/reports/"+r.ID+"/status", "tok", `{"status":"In Progress","assignedTo":"ghost"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
	got, _ := f.reports.Get(r.ID)
	assert.Equal(t, domain.StatusResolved, got.Status)

	rec = f.do(http.MethodPatch, "/reports/"+r.ID+"/status", "tok", `{"status":"In Progress","assignedTo":"cleaner-2"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "cleaner-2", decode[domain.Report](t, rec).AssignedTo)

	rec = f.do(http.MethodDelete, "/reports/"+r.ID, "tok", "")
	require.Equal(t, http.StatusNoContent, rec.Code)
	_, ok := f.reports.Get(r.ID)
	assert.False(t, ok)
	assert.Equal(t, []string{"https://objects.test/a.jpg"}, f.objects.DeletedURLs)

	rec = f.do(http.MethodDelete, "/reports/"+r.ID, "tok", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
