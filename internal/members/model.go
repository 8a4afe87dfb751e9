package members

import "time"

// Member is a full member row as managed from the admin page.
type Member struct {
	ID                int64     `json:"member_id"`
	SchoolEmail       string    `json:"school_email"`
	KoreanName        string    `json:"korean_name"`
	EnglishName       string    `json:"english_name"`
	GraduateYear      *int      `json:"graduate_year,omitempty"`
	CurrentUniversity *string   `json:"current_university,omitempty"`
	Team              *string   `json:"team,omitempty"`
	IsAdmin           bool      `json:"is_admin"`
	IsUndergraduate   bool      `json:"is_undergraduate"`
	IsMentor          bool      `json:"is_mentor"`
	IsGraduated       bool      `json:"is_graduated"`
	IsActive          bool      `json:"is_active"`
	CreatedAt         time.Time `json:"created_at"`
}

// SignupRequest carries the fields a new member submits.
type SignupRequest struct {
	SchoolEmail       string `json:"school_email"`
	Password          string `json:"password"`
	KoreanName        string `json:"korean_name"`
	EnglishName       string `json:"english_name"`
	GraduateYear      int    `json:"graduate_year"`
	CurrentUniversity string `json:"current_university"`
	Team              string `json:"team"`
}

// Update holds the editable member fields; nil means leave unchanged.
type Update struct {
	KoreanName        *string `json:"korean_name"`
	EnglishName       *string `json:"english_name"`
	GraduateYear      *int    `json:"graduate_year"`
	SchoolEmail       *string `json:"school_email"`
	IsAdmin           *bool   `json:"is_admin"`
	CurrentUniversity *string `json:"current_university"`
	Team              *string `json:"team"`
	IsUndergraduate   *bool   `json:"is_undergraduate"`
	IsMentor          *bool   `json:"is_mentor"`
	IsGraduated       *bool   `json:"is_graduated"`
	IsActive          *bool   `json:"is_active"`
}
