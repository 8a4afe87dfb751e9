package attendance

import "time"

// Status is a recorded attendance outcome. Absent is never written by the
// check-in path; it is derived at read time and only persisted by an
// administrative override.
type Status string

const (
	StatusPresent Status = "Present"
	StatusLate    Status = "Late"
	StatusAbsent  Status = "Absent"
)

// ValidStatus reports whether s is one of the three known statuses.
func ValidStatus(s Status) bool {
	return s == StatusPresent || s == StatusLate || s == StatusAbsent
}

// Session is one time-boxed check-in window for a meeting. Sessions are
// immutable once created and kept forever as an audit of when a meeting's
// window ran. A meeting number may have several sessions; the most recently
// created one governs classification.
type Session struct {
	ID            string    `json:"session_id"`
	MeetingNumber int       `json:"meeting_number"`
	CreatedAt     time.Time `json:"created_at"`
	ExpiresAt     time.Time `json:"expires_at"`
}

// Record is one member's recorded status for one meeting. At most one row
// exists per (member, meeting); the store's unique constraint enforces it.
type Record struct {
	MemberID      int64     `json:"member_id"`
	MeetingNumber int       `json:"meeting_number"`
	Status        Status    `json:"status"`
	RecordedAt    time.Time `json:"recorded_at"`
}

// RosterMember is the slice of the member row the attendance flow needs.
type RosterMember struct {
	ID          int64
	SchoolEmail string
	KoreanName  string
	EnglishName string
	IsActive    bool
}

// DisplayName prefers the Korean name, then the English name, then the email.
func (m RosterMember) DisplayName() string {
	if m.KoreanName != "" {
		return m.KoreanName
	}
	if m.EnglishName != "" {
		return m.EnglishName
	}
	return m.SchoolEmail
}

// CheckInResult is returned to a member after a successful check-in.
type CheckInResult struct {
	MeetingNumber int    `json:"meeting_number"`
	Name          string `json:"name"`
	Status        Status `json:"status"`
	CheckedAt     string `json:"checked_at_display"`
}

// ReportRow is one line of the reconciled attendance matrix.
type ReportRow struct {
	MeetingNumber int    `json:"meeting_number"`
	Date          string `json:"date,omitempty"`
	MemberID      int64  `json:"member_id"`
	KoreanName    string `json:"korean_name"`
	EnglishName   string `json:"english_name"`
	Status        Status `json:"status"`
}

// Summary is a per-meeting rollup maintained by the worker.
type Summary struct {
	MeetingNumber int       `json:"meeting_number"`
	PresentCount  int       `json:"present_count"`
	LateCount     int       `json:"late_count"`
	UpdatedAt     time.Time `json:"updated_at"`
}
