package attendance

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
)

// Repository persists attendance data in Postgres and implements Store.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a repo.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// MemberByEmail looks up a member by lowercased school email. Returns nil when
// no row matches.
func (r *Repository) MemberByEmail(ctx context.Context, email string) (*RosterMember, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT member_id, school_email, korean_name, english_name, is_active
		FROM members WHERE school_email = $1
	`, email)
	var m RosterMember
	if err := row.Scan(&m.ID, &m.SchoolEmail, &m.KoreanName, &m.EnglishName, &m.IsActive); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &m, nil
}

// ActiveMembers returns the roster used for attendance reconciliation.
func (r *Repository) ActiveMembers(ctx context.Context) ([]RosterMember, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT member_id, school_email, korean_name, english_name, is_active
		FROM members
		WHERE is_active = TRUE
		ORDER BY member_id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var members []RosterMember
	for rows.Next() {
		var m RosterMember
		if err := rows.Scan(&m.ID, &m.SchoolEmail, &m.KoreanName, &m.EnglishName, &m.IsActive); err != nil {
			return nil, err
		}
		members = append(members, m)
	}
	return members, rows.Err()
}

// InsertSession writes a new session row.
func (r *Repository) InsertSession(ctx context.Context, s Session) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO attendance_sessions (session_id, meeting_number, created_at, expires_at)
		VALUES ($1, $2, $3, $4)
	`, s.ID, s.MeetingNumber, s.CreatedAt, s.ExpiresAt)
	return err
}

// LatestSession returns the governing session for a meeting: the most
// recently created one. Returns nil when the meeting has no sessions.
func (r *Repository) LatestSession(ctx context.Context, meeting int) (*Session, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT session_id, meeting_number, created_at, expires_at
		FROM attendance_sessions
		WHERE meeting_number = $1
		ORDER BY created_at DESC
		LIMIT 1
	`, meeting)
	var s Session
	if err := row.Scan(&s.ID, &s.MeetingNumber, &s.CreatedAt, &s.ExpiresAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &s, nil
}

// MeetingDates returns every distinct meeting number with a session, newest
// meeting first, with the earliest session creation time per meeting.
func (r *Repository) MeetingDates(ctx context.Context) ([]MeetingDate, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT meeting_number, MIN(created_at)
		FROM attendance_sessions
		GROUP BY meeting_number
		ORDER BY meeting_number DESC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []MeetingDate
	for rows.Next() {
		var m MeetingDate
		if err := rows.Scan(&m.MeetingNumber, &m.CreatedAt); err != nil {
			return nil, err
		}
		res = append(res, m)
	}
	return res, rows.Err()
}

// MeetingDate returns the earliest session creation time for one meeting, or
// nil when the meeting has no sessions.
func (r *Repository) MeetingDate(ctx context.Context, meeting int) (*time.Time, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT created_at
		FROM attendance_sessions
		WHERE meeting_number = $1
		ORDER BY created_at ASC
		LIMIT 1
	`, meeting)
	var t time.Time
	if err := row.Scan(&t); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &t, nil
}

// InsertRecord attempts the single constrained insert that backs the
// idempotency contract. A unique violation on (member_id, meeting_number)
// surfaces as ErrAlreadyCheckedIn; the existing row is never touched.
func (r *Repository) InsertRecord(ctx context.Context, rec Record) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO attendance (member_id, meeting_number, status, recorded_at)
		VALUES ($1, $2, $3, $4)
	`, rec.MemberID, rec.MeetingNumber, rec.Status, rec.RecordedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrAlreadyCheckedIn
		}
		return err
	}
	return nil
}

// UpdateRecordStatus updates an existing record and reports how many rows
// matched.
func (r *Repository) UpdateRecordStatus(ctx context.Context, memberID int64, meeting int, status Status) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE attendance SET status = $3
		WHERE member_id = $1 AND meeting_number = $2
	`, memberID, meeting, status)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// RecordMeetings returns distinct meeting numbers found in attendance rows,
// descending. Fallback for reports when no sessions exist at all.
func (r *Repository) RecordMeetings(ctx context.Context) ([]int, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT DISTINCT meeting_number FROM attendance ORDER BY meeting_number DESC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var meetings []int
	for rows.Next() {
		var m int
		if err := rows.Scan(&m); err != nil {
			return nil, err
		}
		meetings = append(meetings, m)
	}
	return meetings, rows.Err()
}

// RecordsForMeetings bulk-fetches all attendance rows for the meeting set.
func (r *Repository) RecordsForMeetings(ctx context.Context, meetings []int) ([]Record, error) {
	if len(meetings) == 0 {
		return nil, nil
	}
	query := `SELECT member_id, meeting_number, status, recorded_at FROM attendance WHERE meeting_number IN (`
	args := make([]any, 0, len(meetings))
	for i, m := range meetings {
		if i > 0 {
			query += ","
		}
		query += fmt.Sprintf("$%d", i+1)
		args = append(args, m)
	}
	query += ")"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []Record
	for rows.Next() {
		var rec Record
		if err := rows.Scan(&rec.MemberID, &rec.MeetingNumber, &rec.Status, &rec.RecordedAt); err != nil {
			return nil, err
		}
		res = append(res, rec)
	}
	return res, rows.Err()
}

// Summaries lists the worker-maintained rollups, newest meeting first.
func (r *Repository) Summaries(ctx context.Context) ([]Summary, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT meeting_number, present_count, late_count, updated_at
		FROM attendance_summaries
		ORDER BY meeting_number DESC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []Summary
	for rows.Next() {
		var s Summary
		if err := rows.Scan(&s.MeetingNumber, &s.PresentCount, &s.LateCount, &s.UpdatedAt); err != nil {
			return nil, err
		}
		res = append(res, s)
	}
	return res, rows.Err()
}

// RefreshSummary recomputes one meeting's rollup from its recorded rows.
func (r *Repository) RefreshSummary(ctx context.Context, meeting int) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO attendance_summaries (meeting_number, present_count, late_count, updated_at)
		SELECT $1,
		       COUNT(*) FILTER (WHERE status = 'Present'),
		       COUNT(*) FILTER (WHERE status = 'Late'),
		       NOW()
		FROM attendance WHERE meeting_number = $1
		ON CONFLICT (meeting_number) DO UPDATE SET
			present_count = EXCLUDED.present_count,
			late_count = EXCLUDED.late_count,
			updated_at = EXCLUDED.updated_at
	`, meeting)
	return err
}
