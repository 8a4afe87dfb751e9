package members

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Repository persists member rows in Postgres.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a repo.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

const memberColumns = `member_id, school_email, korean_name, english_name, graduate_year,
	current_university, team, is_admin, is_undergraduate, is_mentor, is_graduated,
	is_active, created_at`

func scanMember(row interface{ Scan(...any) error }) (Member, error) {
	var m Member
	err := row.Scan(&m.ID, &m.SchoolEmail, &m.KoreanName, &m.EnglishName, &m.GraduateYear,
		&m.CurrentUniversity, &m.Team, &m.IsAdmin, &m.IsUndergraduate, &m.IsMentor,
		&m.IsGraduated, &m.IsActive, &m.CreatedAt)
	return m, err
}

// Insert writes a new member row and returns its id.
func (r *Repository) Insert(ctx context.Context, req SignupRequest) (int64, error) {
	var id int64
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO members (school_email, korean_name, english_name, graduate_year, current_university, team)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING member_id
	`, req.SchoolEmail, req.KoreanName, req.EnglishName, req.GraduateYear, req.CurrentUniversity, req.Team).Scan(&id)
	return id, err
}

// List returns all members ordered by id.
func (r *Repository) List(ctx context.Context) ([]Member, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+memberColumns+` FROM members ORDER BY member_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var members []Member
	for rows.Next() {
		m, err := scanMember(rows)
		if err != nil {
			return nil, err
		}
		members = append(members, m)
	}
	return members, rows.Err()
}

// ByEmail returns a member by school email, or nil when absent.
func (r *Repository) ByEmail(ctx context.Context, email string) (*Member, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+memberColumns+` FROM members WHERE school_email = $1`, email)
	m, err := scanMember(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &m, nil
}

// UpdateFields updates only the provided fields of a member row.
func (r *Repository) UpdateFields(ctx context.Context, memberID int64, upd Update) error {
	set := []string{}
	args := []any{}
	add := func(col string, val any) {
		args = append(args, val)
		set = append(set, fmt.Sprintf("%s = $%d", col, len(args)))
	}

	if upd.KoreanName != nil {
		add("korean_name", *upd.KoreanName)
	}
	if upd.EnglishName != nil {
		add("english_name", *upd.EnglishName)
	}
	if upd.GraduateYear != nil {
		add("graduate_year", *upd.GraduateYear)
	}
	if upd.SchoolEmail != nil {
		add("school_email", *upd.SchoolEmail)
	}
	if upd.IsAdmin != nil {
		add("is_admin", *upd.IsAdmin)
	}
	if upd.CurrentUniversity != nil {
		add("current_university", *upd.CurrentUniversity)
	}
	if upd.Team != nil {
		add("team", *upd.Team)
	}
	if upd.IsUndergraduate != nil {
		add("is_undergraduate", *upd.IsUndergraduate)
	}
	if upd.IsMentor != nil {
		add("is_mentor", *upd.IsMentor)
	}
	if upd.IsGraduated != nil {
		add("is_graduated", *upd.IsGraduated)
	}
	if upd.IsActive != nil {
		add("is_active", *upd.IsActive)
	}
	if len(set) == 0 {
		return nil
	}

	args = append(args, memberID)
	query := "UPDATE members SET "
	for i, clause := range set {
		if i > 0 {
			query += ", "
		}
		query += clause
	}
	query += fmt.Sprintf(" WHERE member_id = $%d", len(args))

	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes a member row. Attendance and link rows cascade.
func (r *Repository) Delete(ctx context.Context, memberID int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM members WHERE member_id = $1`, memberID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// SaveRefreshToken stores a refresh token issued at login.
func (r *Repository) SaveRefreshToken(ctx context.Context, memberID int64, token string, expiresAt time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO refresh_tokens (token, member_id, expires_at)
		VALUES ($1, $2, $3)
	`, token, memberID, expiresAt)
	return err
}
