package attendance

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Verifier confirms a credential against the identity provider and returns
// the provider's stable subject id.
type Verifier interface {
	Verify(ctx context.Context, email, password string) (string, error)
}

// MeetingDate pairs a meeting number with its earliest session creation time.
type MeetingDate struct {
	MeetingNumber int
	CreatedAt     time.Time
}

// Store is the persistence surface the attendance flow needs. The unique
// constraint on (member_id, meeting_number) lives behind InsertRecord, which
// must return ErrAlreadyCheckedIn when it is violated.
type Store interface {
	MemberByEmail(ctx context.Context, email string) (*RosterMember, error)
	ActiveMembers(ctx context.Context) ([]RosterMember, error)

	InsertSession(ctx context.Context, s Session) error
	LatestSession(ctx context.Context, meeting int) (*Session, error)
	MeetingDates(ctx context.Context) ([]MeetingDate, error)
	MeetingDate(ctx context.Context, meeting int) (*time.Time, error)

	InsertRecord(ctx context.Context, r Record) error
	UpdateRecordStatus(ctx context.Context, memberID int64, meeting int, status Status) (int64, error)
	RecordMeetings(ctx context.Context) ([]int, error)
	RecordsForMeetings(ctx context.Context, meetings []int) ([]Record, error)

	Summaries(ctx context.Context) ([]Summary, error)
	RefreshSummary(ctx context.Context, meeting int) error
}

// Service implements session issuance, check-in evaluation and reporting.
type Service struct {
	store    Store
	verifier Verifier
	window   time.Duration
	loc      *time.Location
	now      func() time.Time
}

// NewService creates the service. window is the check-in window length; loc is
// the fixed reporting timezone for displayed timestamps.
func NewService(store Store, verifier Verifier, window time.Duration, loc *time.Location) *Service {
	if window <= 0 {
		window = 10 * time.Minute
	}
	if loc == nil {
		loc = ReportLocation("")
	}
	return &Service{store: store, verifier: verifier, window: window, loc: loc, now: time.Now}
}

// OpenSession opens a new check-in window for a meeting. Re-opening a meeting
// is allowed; each call creates an independent session and the most recently
// created one governs classification. Not idempotent: a retry after a storage
// failure may leave two open sessions, which only shifts which window governs.
func (s *Service) OpenSession(ctx context.Context, meeting int) (Session, error) {
	if meeting <= 0 {
		return Session{}, ErrInvalidMeeting
	}
	now := s.now().UTC()
	sess := Session{
		ID:            uuid.NewString(),
		MeetingNumber: meeting,
		CreatedAt:     now,
		ExpiresAt:     now.Add(s.window),
	}
	if err := s.store.InsertSession(ctx, sess); err != nil {
		return Session{}, fmt.Errorf("persist session: %w", err)
	}
	return sess, nil
}

// CheckIn authenticates a member and records one attendance outcome for the
// meeting. Every step is a hard gate; nothing is committed before the final
// insert. A duplicate attempt fails with ErrAlreadyCheckedIn and leaves the
// existing record untouched.
func (s *Service) CheckIn(ctx context.Context, email, password string, meeting int) (CheckInResult, error) {
	if meeting <= 0 {
		checkinFailures.WithLabelValues("invalid_input").Inc()
		return CheckInResult{}, ErrInvalidMeeting
	}
	email = strings.ToLower(strings.TrimSpace(email))

	if _, err := s.verifier.Verify(ctx, email, password); err != nil {
		checkinFailures.WithLabelValues("auth").Inc()
		return CheckInResult{}, err
	}

	member, err := s.store.MemberByEmail(ctx, email)
	if err != nil {
		checkinFailures.WithLabelValues("storage").Inc()
		return CheckInResult{}, fmt.Errorf("member lookup: %w", err)
	}
	if member == nil {
		// identity provider and member table are out of sync
		checkinFailures.WithLabelValues("member_missing").Inc()
		return CheckInResult{}, ErrMemberNotFound
	}

	sess, err := s.store.LatestSession(ctx, meeting)
	if err != nil {
		checkinFailures.WithLabelValues("storage").Inc()
		return CheckInResult{}, fmt.Errorf("session lookup: %w", err)
	}
	if sess == nil {
		checkinFailures.WithLabelValues("no_session").Inc()
		return CheckInResult{}, ErrNoSession
	}

	// Present up to and including expires_at, Late strictly after. No grace
	// period beyond the session's own window.
	now := s.now()
	status := StatusPresent
	if now.After(sess.ExpiresAt) {
		status = StatusLate
	}

	rec := Record{
		MemberID:      member.ID,
		MeetingNumber: meeting,
		Status:        status,
		RecordedAt:    now.UTC(),
	}
	if err := s.store.InsertRecord(ctx, rec); err != nil {
		if errors.Is(err, ErrAlreadyCheckedIn) {
			checkinFailures.WithLabelValues("duplicate").Inc()
		} else {
			checkinFailures.WithLabelValues("storage").Inc()
		}
		return CheckInResult{}, err
	}

	checkinsTotal.WithLabelValues(string(status)).Inc()
	return CheckInResult{
		MeetingNumber: meeting,
		Name:          member.DisplayName(),
		Status:        status,
		CheckedAt:     DisplayTime(now, s.loc),
	}, nil
}

// ListAttendance reconciles the active roster against recorded rows. Every
// (meeting, active member) pair yields exactly one row, defaulting to Absent.
// Meetings come back descending, members ascending within a meeting; consumers
// render rows in this order without re-sorting.
func (s *Service) ListAttendance(ctx context.Context, meeting *int) ([]ReportRow, error) {
	if meeting != nil && *meeting <= 0 {
		return nil, ErrInvalidMeeting
	}

	roster, err := s.store.ActiveMembers(ctx)
	if err != nil {
		return nil, fmt.Errorf("roster: %w", err)
	}
	if len(roster) == 0 {
		return []ReportRow{}, nil
	}

	var meetings []int
	dates := map[int]string{}
	if meeting != nil {
		meetings = []int{*meeting}
		if created, err := s.store.MeetingDate(ctx, *meeting); err != nil {
			return nil, fmt.Errorf("meeting date: %w", err)
		} else if created != nil {
			dates[*meeting] = DisplayDate(*created, s.loc)
		}
	} else {
		md, err := s.store.MeetingDates(ctx)
		if err != nil {
			return nil, fmt.Errorf("meetings: %w", err)
		}
		for _, m := range md {
			meetings = append(meetings, m.MeetingNumber)
			dates[m.MeetingNumber] = DisplayDate(m.CreatedAt, s.loc)
		}
		if len(meetings) == 0 {
			// no sessions recorded at all; fall back to meetings that
			// appear in attendance rows
			meetings, err = s.store.RecordMeetings(ctx)
			if err != nil {
				return nil, fmt.Errorf("record meetings: %w", err)
			}
		}
		if len(meetings) == 0 {
			return []ReportRow{}, nil
		}
	}

	records, err := s.store.RecordsForMeetings(ctx, meetings)
	if err != nil {
		return nil, fmt.Errorf("records: %w", err)
	}
	statuses := make(map[string]Status, len(records))
	for _, r := range records {
		statuses[fmt.Sprintf("%d:%d", r.MeetingNumber, r.MemberID)] = r.Status
	}

	sort.Sort(sort.Reverse(sort.IntSlice(meetings)))
	sort.Slice(roster, func(i, j int) bool { return roster[i].ID < roster[j].ID })

	rows := make([]ReportRow, 0, len(meetings)*len(roster))
	for _, mn := range meetings {
		for _, m := range roster {
			status, ok := statuses[fmt.Sprintf("%d:%d", mn, m.ID)]
			if !ok {
				status = StatusAbsent
			}
			rows = append(rows, ReportRow{
				MeetingNumber: mn,
				Date:          dates[mn],
				MemberID:      m.ID,
				KoreanName:    m.KoreanName,
				EnglishName:   m.EnglishName,
				Status:        status,
			})
		}
	}
	return rows, nil
}

// SetStatus is the administrative override: update an existing record, insert
// one when none matched. The only path that persists an explicit Absent.
func (s *Service) SetStatus(ctx context.Context, memberID int64, meeting int, status Status) error {
	if memberID <= 0 {
		return ErrInvalidMember
	}
	if meeting <= 0 {
		return ErrInvalidMeeting
	}
	if !ValidStatus(status) {
		return ErrInvalidStatus
	}

	matched, err := s.store.UpdateRecordStatus(ctx, memberID, meeting, status)
	if err != nil {
		return fmt.Errorf("update status: %w", err)
	}
	if matched > 0 {
		return nil
	}

	rec := Record{MemberID: memberID, MeetingNumber: meeting, Status: status, RecordedAt: s.now().UTC()}
	err = s.store.InsertRecord(ctx, rec)
	if errors.Is(err, ErrAlreadyCheckedIn) {
		// a check-in landed between the update and the insert; the
		// override still wins
		_, err = s.store.UpdateRecordStatus(ctx, memberID, meeting, status)
	}
	if err != nil {
		return fmt.Errorf("insert status: %w", err)
	}
	return nil
}

// Summaries returns the per-meeting rollups maintained by the worker.
func (s *Service) Summaries(ctx context.Context) ([]Summary, error) {
	return s.store.Summaries(ctx)
}
