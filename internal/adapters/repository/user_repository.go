package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/AchilleasB/smart-waste/reporting-service/internal/core/domain"
	"github.com/AchilleasB/smart-waste/reporting-service/internal/core/ports"
)

type IdentityRepository struct {
	db *sqlx.DB
}

var _ ports.IdentityRepository = (*IdentityRepository)(nil)

func NewIdentityRepository(db *sqlx.DB) *IdentityRepository {
	return &IdentityRepository{db: db}
}

type identityRow struct {
	ID           string    `db:"id"`
	Email        string    `db:"email"`
	DisplayName  string    `db:"display_name"`
	Provider     string    `db:"provider"`
	PasswordHash string    `db:"password_hash"`
	CreatedAt    time.Time `db:"created_at"`
}

func (row identityRow) toDomain() *domain.Identity {
	return &domain.Identity{
		ID:           row.ID,
		Email:        row.Email,
		DisplayName:  row.DisplayName,
		Provider:     domain.IdentityProvider(row.Provider),
		PasswordHash: row.PasswordHash,
		CreatedAt:    row.CreatedAt,
	}
}

const identityColumns = `id, email, display_name, provider, password_hash, created_at`

func (r *IdentityRepository) FindByEmail(ctx context.Context, email string) (*domain.Identity, error) {
	var row identityRow
	err := r.db.GetContext(ctx, &row,
		`SELECT `+identityColumns+` FROM identities WHERE LOWER(email) = LOWER($1)`,
		strings.TrimSpace(email))
	if err != nil {
		return nil, mapError(err)
	}
	return row.toDomain(), nil
}

func (r *IdentityRepository) FindByID(ctx context.Context, id string) (*domain.Identity, error) {
	var row identityRow
	if err := r.db.GetContext(ctx, &row, `SELECT `+identityColumns+` FROM identities WHERE id = $1`, id); err != nil {
		return nil, mapError(err)
	}
	return row.toDomain(), nil
}

// Create inserts identity. A duplicate email returns domain.ErrConflict.
func (r *IdentityRepository) Create(ctx context.Context, identity domain.Identity) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO identities (id, email, display_name, provider, password_hash, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		identity.ID,
		identity.Email,
		identity.DisplayName,
		string(identity.Provider),
		identity.PasswordHash,
		identity.CreatedAt,
	)
	return mapError(err)
}

type ProfileRepository struct {
	db *sqlx.DB
}

var _ ports.ProfileRepository = (*ProfileRepository)(nil)

func NewProfileRepository(db *sqlx.DB) *ProfileRepository {
	return &ProfileRepository{db: db}
}

type profileRow struct {
	ID           string    `db:"id"`
	Email        string    `db:"email"`
	DisplayName  string    `db:"display_name"`
	Role         string    `db:"role"`
	AssignedArea string    `db:"assigned_area"`
	CreatedAt    time.Time `db:"created_at"`
	UpdatedAt    time.Time `db:"updated_at"`
}

func (row profileRow) toDomain() domain.Profile {
	return domain.Profile{
		ID:           row.ID,
		Email:        row.Email,
		DisplayName:  row.DisplayName,
		Role:         domain.Role(row.Role),
		AssignedArea: row.AssignedArea,
		CreatedAt:    row.CreatedAt,
		UpdatedAt:    row.UpdatedAt,
	}
}

const profileColumns = `id, email, display_name, role, assigned_area, created_at, updated_at`

func (r *ProfileRepository) FindByID(ctx context.Context, id string) (*domain.Profile, error) {
	var row profileRow
	if err := r.db.GetContext(ctx, &row, `SELECT `+profileColumns+` FROM profiles WHERE id = $1`, id); err != nil {
		return nil, mapError(err)
	}
	p := row.toDomain()
	return &p, nil
}

// CreateIfAbsent inserts p unless a profile already exists for the id, in which case the stored one is returned.
func (r *ProfileRepository) CreateIfAbsent(ctx context.Context, p domain.Profile) (domain.Profile, bool, error) {
	var row profileRow
	err := r.db.GetContext(ctx, &row,
		`INSERT INTO profiles (id, email, display_name, role, assigned_area, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (id) DO NOTHING
		 RETURNING `+profileColumns,
		p.ID, p.Email, p.DisplayName, string(p.Role), p.AssignedArea, p.CreatedAt, p.UpdatedAt,
	)
	if err == nil {
		return row.toDomain(), true, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return domain.Profile{}, false, err
	}

	existing, err := r.FindByID(ctx, p.ID)
	if err != nil {
		return domain.Profile{}, false, err
	}
	return *existing, false, nil
}

func (r *ProfileRepository) List(ctx context.Context, role domain.Role) ([]domain.Profile, error) {
	var rows []profileRow
	var err error
	if role == "" {
		err = r.db.SelectContext(ctx, &rows, `SELECT `+profileColumns+` FROM profiles ORDER BY created_at`)
	} else {
		err = r.db.SelectContext(ctx, &rows,
			`SELECT `+profileColumns+` FROM profiles WHERE role = $1 ORDER BY created_at`, string(role))
	}
	if err != nil {
		return nil, err
	}

	out := make([]domain.Profile, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toDomain())
	}
	return out, nil
}

// Update writes the non-nil fields of upd.
func (r *ProfileRepository) Update(ctx context.Context, id string, upd domain.ProfileUpdate, now time.Time) (*domain.Profile, error) {
	var role, area sql.NullString
	if upd.Role != nil {
		role = sql.NullString{String: string(*upd.Role), Valid: true}
	}
	if upd.AssignedArea != nil {
		area = sql.NullString{String: *upd.AssignedArea, Valid: true}
	}

	var row profileRow
	err := r.db.GetContext(ctx, &row,
		`UPDATE profiles
		 SET role = COALESCE($2, role), assigned_area = COALESCE($3, assigned_area), updated_at = $4
		 WHERE id = $1
		 RETURNING `+profileColumns,
		id, role, area, now,
	)
	if err != nil {
		return nil, mapError(err)
	}
	p := row.toDomain()
	return &p, nil
}
