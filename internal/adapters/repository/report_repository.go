package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/AchilleasB/smart-waste/reporting-service/internal/core/domain"
	"github.com/AchilleasB/smart-waste/reporting-service/internal/core/ports"
)

type ReportRepository struct {
	db *sqlx.DB
}

var _ ports.ReportRepository = (*ReportRepository)(nil)

func NewReportRepository(db *sqlx.DB) *ReportRepository {
	return &ReportRepository{db: db}
}

type reportRow struct {
	ID          string         `db:"id"`
	Title       string         `db:"title"`
	Description string         `db:"description"`
	Category    string         `db:"category"`
	Priority    string         `db:"priority"`
	Status      string         `db:"status"`
	Lat         float64        `db:"lat"`
	Lng         float64        `db:"lng"`
	Address     string         `db:"address"`
	Images      pq.StringArray `db:"images"`
	ReportedBy  string         `db:"reported_by"`
	AssignedTo  sql.NullString `db:"assigned_to"`
	ReportedAt  time.Time      `db:"reported_at"`
	UpdatedAt   time.Time      `db:"updated_at"`
}

func (row reportRow) toDomain() domain.Report {
	images := []string(row.Images)
	if images == nil {
		images = []string{}
	}
	return domain.Report{
		ID:          row.ID,
		Title:       row.Title,
		Description: row.Description,
		Category:    domain.WasteCategory(row.Category),
		Priority:    domain.Priority(row.Priority),
		Status:      domain.ReportStatus(row.Status),
		Location:    domain.Location{Lat: row.Lat, Lng: row.Lng, Address: row.Address},
		Images:      images,
		ReportedBy:  row.ReportedBy,
		AssignedTo:  row.AssignedTo.String,
		ReportedAt:  row.ReportedAt,
		UpdatedAt:   row.UpdatedAt,
	}
}

const reportColumns = `id, title, description, category, priority, status, lat, lng, address, images,
	reported_by, assigned_to, reported_at, updated_at`

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// Create stores report under a new id.
func (r *ReportRepository) Create(ctx context.Context, report domain.Report) (domain.Report, error) {
	report.ID = uuid.NewString()
	if report.Images == nil {
		report.Images = []string{}
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO reports (id, title, description, category, priority, status, lat, lng, address, images,
			reported_by, assigned_to, reported_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		report.ID,
		report.Title,
		report.Description,
		string(report.Category),
		string(report.Priority),
		string(report.Status),
		report.Location.Lat,
		report.Location.Lng,
		report.Location.Address,
		pq.Array(report.Images),
		report.ReportedBy,
		nullable(report.AssignedTo),
		report.ReportedAt,
		report.UpdatedAt,
	)
	if err != nil {
		return domain.Report{}, mapError(err)
	}
	return report, nil
}

func (r *ReportRepository) FindByID(ctx context.Context, id string) (*domain.Report, error) {
	var row reportRow
	if err := r.db.GetContext(ctx, &row, `SELECT `+reportColumns+` FROM reports WHERE id = $1`, id); err != nil {
		return nil, mapError(err)
	}
	report := row.toDomain()
	return &report, nil
}

// List applies filter and orders by reported_at descending.
func (r *ReportRepository) List(ctx context.Context, filter domain.ReportFilter) ([]domain.Report, error) {
	query, args := buildListQuery(filter)

	var rows []reportRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, err
	}

	out := make([]domain.Report, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toDomain())
	}
	return out, nil
}

func buildListQuery(filter domain.ReportFilter) (string, []any) {
	where, args := buildWhere(filter)

	var b strings.Builder
	b.WriteString(`SELECT ` + reportColumns + ` FROM reports`)
	b.WriteString(where)
	args = append(args, filter.EffectiveLimit())
	fmt.Fprintf(&b, " ORDER BY reported_at DESC LIMIT $%d", len(args))
	return b.String(), args
}

func buildStatsQuery(filter domain.ReportFilter) (string, []any) {
	where, args := buildWhere(filter)
	return `SELECT status, category, priority, count(*) AS n FROM reports` + where +
		` GROUP BY status, category, priority`, args
}

// buildWhere renders the filter constraints, Limit aside, as " WHERE ..." or "".
func buildWhere(filter domain.ReportFilter) (string, []any) {
	var where []string
	var args []any

	if len(filter.Statuses) > 0 {
		statuses := make([]string, 0, len(filter.Statuses))
		for _, s := range filter.Statuses {
			statuses = append(statuses, string(s))
		}
		args = append(args, pq.Array(statuses))
		where = append(where, fmt.Sprintf("status = ANY($%d)", len(args)))
	}
	if filter.Category != "" {
		args = append(args, string(filter.Category))
		where = append(where, fmt.Sprintf("category = $%d", len(args)))
	}
	if filter.Priority != "" {
		args = append(args, string(filter.Priority))
		where = append(where, fmt.Sprintf("priority = $%d", len(args)))
	}
	if filter.ReportedBy != "" {
		args = append(args, filter.ReportedBy)
		where = append(where, fmt.Sprintf("reported_by = $%d", len(args)))
	}
	if filter.AssignedTo != "" {
		args = append(args, filter.AssignedTo)
		where = append(where, fmt.Sprintf("assigned_to = $%d", len(args)))
	}

	if len(where) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(where, " AND "), args
}

type statsRow struct {
	Status   string `db:"status"`
	Category string `db:"category"`
	Priority string `db:"priority"`
	N        int    `db:"n"`
}

// Stats counts every matching report in the database.
func (r *ReportRepository) Stats(ctx context.Context, filter domain.ReportFilter) (domain.ReportStats, error) {
	query, args := buildStatsQuery(filter)

	var rows []statsRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return domain.ReportStats{}, err
	}

	st := domain.NewReportStats()
	for _, row := range rows {
		st.Add(domain.ReportStatus(row.Status), domain.WasteCategory(row.Category), domain.Priority(row.Priority), row.N)
	}
	return st, nil
}

// UpdateStatus writes only status, assigned_to and updated_at. Last write wins.
func (r *ReportRepository) UpdateStatus(ctx context.Context, id string, change domain.StatusChange) (*domain.Report, error) {
	var row reportRow
	err := r.db.GetContext(ctx, &row,
		`UPDATE reports SET status = $2, assigned_to = $3, updated_at = $4
		 WHERE id = $1
		 RETURNING `+reportColumns,
		id, string(change.Status), nullable(change.AssignedTo), change.UpdatedAt,
	)
	if err != nil {
		return nil, mapError(err)
	}
	report := row.toDomain()
	return &report, nil
}

func (r *ReportRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM reports WHERE id = $1`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrNotFound
	}
	return nil
}
