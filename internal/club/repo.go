package club

import (
	"context"
	"database/sql"
	"time"
)

// Photo is one stored photo row.
type Photo struct {
	PhotoID     int64   `json:"photo_id"`
	Date        *string `json:"date,omitempty"`
	Description *string `json:"description,omitempty"`
	MemberID    *int64  `json:"member_id,omitempty"`
	PhotoURL    string  `json:"photo_url"`
}

// Project is a club project with its linked photos.
type Project struct {
	ProjectID      int64   `json:"project_id"`
	StartDate      *string `json:"start_date,omitempty"`
	EndDate        *string `json:"end_date,omitempty"`
	ProjectName    string  `json:"project_name"`
	Description    *string `json:"description,omitempty"`
	GithubLink     *string `json:"github_link,omitempty"`
	CodingLanguage *string `json:"coding_language,omitempty"`
	TeamName       *string `json:"team_name,omitempty"`
	Photos         []Photo `json:"photos"`
}

// LinkedPhoto is a photo with its link origin (member or project).
type LinkedPhoto struct {
	LinkID      int64   `json:"link_id"`
	MemberID    *int64  `json:"member_id,omitempty"`
	ProjectID   *int64  `json:"project_id,omitempty"`
	PhotoID     int64   `json:"photo_id"`
	Date        *string `json:"date,omitempty"`
	Description *string `json:"description,omitempty"`
	PhotoURL    string  `json:"photo_url"`
	Source      string  `json:"source"`
}

// Event is a calendar entry visible to members.
type Event struct {
	EventID     int64     `json:"event_id"`
	EventTitle  string    `json:"event_title"`
	Category    string    `json:"category"`
	StartDate   time.Time `json:"start_date"`
	EndDate     time.Time `json:"end_date"`
	Location    *string   `json:"location,omitempty"`
	Description *string   `json:"description,omitempty"`
	IsPublic    bool      `json:"is_public"`
}

// Repository serves the club's read-mostly tables.
type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// ListProjects returns all projects with their linked photos flattened in.
func (r *Repository) ListProjects(ctx context.Context) ([]Project, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT project_id, start_date::text, end_date::text, project_name, description,
		       github_link, coding_language, team_name
		FROM projects
		ORDER BY project_id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var projects []Project
	index := map[int64]int{}
	for rows.Next() {
		var p Project
		if err := rows.Scan(&p.ProjectID, &p.StartDate, &p.EndDate, &p.ProjectName,
			&p.Description, &p.GithubLink, &p.CodingLanguage, &p.TeamName); err != nil {
			return nil, err
		}
		p.Photos = []Photo{}
		index[p.ProjectID] = len(projects)
		projects = append(projects, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	photoRows, err := r.db.QueryContext(ctx, `
		SELECT l.project_id, p.photo_id, p.date::text, p.description, p.member_id, p.photo_url
		FROM project_photo_link l
		JOIN photos p ON p.photo_id = l.photo_id
	`)
	if err != nil {
		return nil, err
	}
	defer photoRows.Close()

	for photoRows.Next() {
		var projectID int64
		var ph Photo
		if err := photoRows.Scan(&projectID, &ph.PhotoID, &ph.Date, &ph.Description, &ph.MemberID, &ph.PhotoURL); err != nil {
			return nil, err
		}
		if i, ok := index[projectID]; ok {
			projects[i].Photos = append(projects[i].Photos, ph)
		}
	}
	return projects, photoRows.Err()
}

// ListPhotos returns member- and project-linked photos in one normalized list.
func (r *Repository) ListPhotos(ctx context.Context) ([]LinkedPhoto, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT l.id, l.member_id, p.photo_id, p.date::text, p.description, p.photo_url
		FROM member_photo_link l
		JOIN photos p ON p.photo_id = l.photo_id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var photos []LinkedPhoto
	for rows.Next() {
		var lp LinkedPhoto
		var memberID int64
		if err := rows.Scan(&lp.LinkID, &memberID, &lp.PhotoID, &lp.Date, &lp.Description, &lp.PhotoURL); err != nil {
			return nil, err
		}
		lp.MemberID = &memberID
		lp.Source = "member"
		photos = append(photos, lp)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	projectRows, err := r.db.QueryContext(ctx, `
		SELECT l.id, l.project_id, p.photo_id, p.date::text, p.description, p.photo_url
		FROM project_photo_link l
		JOIN photos p ON p.photo_id = l.photo_id
	`)
	if err != nil {
		return nil, err
	}
	defer projectRows.Close()

	for projectRows.Next() {
		var lp LinkedPhoto
		var projectID int64
		if err := projectRows.Scan(&lp.LinkID, &projectID, &lp.PhotoID, &lp.Date, &lp.Description, &lp.PhotoURL); err != nil {
			return nil, err
		}
		lp.ProjectID = &projectID
		lp.Source = "project"
		photos = append(photos, lp)
	}
	return photos, projectRows.Err()
}

// InsertPhoto stores a photo row for an uploaded image URL.
func (r *Repository) InsertPhoto(ctx context.Context, memberID *int64, description, photoURL string) (int64, error) {
	var id int64
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO photos (date, description, member_id, photo_url)
		VALUES (CURRENT_DATE, $1, $2, $3)
		RETURNING photo_id
	`, description, memberID, photoURL).Scan(&id)
	return id, err
}

// ListEvents returns events ascending by start date, optionally bounded to a
// date range (inclusive days).
func (r *Repository) ListEvents(ctx context.Context, start, end *time.Time) ([]Event, error) {
	query := `SELECT event_id, event_title, category, start_date, end_date, location, description, is_public FROM events`
	args := []any{}
	if start != nil {
		args = append(args, *start)
		query += " WHERE start_date >= $1"
	}
	if end != nil {
		args = append(args, *end)
		if start != nil {
			query += " AND start_date <= $2"
		} else {
			query += " WHERE start_date <= $1"
		}
	}
	query += " ORDER BY start_date ASC"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var e Event
		if err := rows.Scan(&e.EventID, &e.EventTitle, &e.Category, &e.StartDate, &e.EndDate,
			&e.Location, &e.Description, &e.IsPublic); err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

// CreateEvent inserts an event and returns it with its id.
func (r *Repository) CreateEvent(ctx context.Context, e Event) (Event, error) {
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO events (event_title, category, start_date, end_date, location, description, is_public)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING event_id
	`, e.EventTitle, e.Category, e.StartDate, e.EndDate, e.Location, e.Description, e.IsPublic).Scan(&e.EventID)
	return e, err
}
