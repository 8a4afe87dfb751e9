package attendance

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- fakes ---

type fakeVerifier struct {
	subject string
	err     error
	gotMail string
}

func (f *fakeVerifier) Verify(ctx context.Context, email, password string) (string, error) {
	f.gotMail = email
	if f.err != nil {
		return "", f.err
	}
	return f.subject, nil
}

// fakeStore enforces the (member_id, meeting_number) uniqueness the way the
// real store's constraint does, so concurrent inserts race safely.
type fakeStore struct {
	mu sync.Mutex

	members  map[string]*RosterMember
	roster   []RosterMember
	sessions map[int][]Session
	records  map[string]Record

	recordMeetings []int
	summaries      []Summary

	insertSessionErr error
	insertedSessions []Session
	updateMatched    int64
	updates          []Record
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		members:  map[string]*RosterMember{},
		sessions: map[int][]Session{},
		records:  map[string]Record{},
	}
}

func recKey(memberID int64, meeting int) string {
	return fmt.Sprintf("%d:%d", memberID, meeting)
}

func (f *fakeStore) MemberByEmail(ctx context.Context, email string) (*RosterMember, error) {
	return f.members[email], nil
}

func (f *fakeStore) ActiveMembers(ctx context.Context) ([]RosterMember, error) {
	return f.roster, nil
}

func (f *fakeStore) InsertSession(ctx context.Context, s Session) error {
	if f.insertSessionErr != nil {
		return f.insertSessionErr
	}
	f.insertedSessions = append(f.insertedSessions, s)
	f.sessions[s.MeetingNumber] = append(f.sessions[s.MeetingNumber], s)
	return nil
}

func (f *fakeStore) LatestSession(ctx context.Context, meeting int) (*Session, error) {
	list := f.sessions[meeting]
	if len(list) == 0 {
		return nil, nil
	}
	latest := list[0]
	for _, s := range list[1:] {
		if s.CreatedAt.After(latest.CreatedAt) {
			latest = s
		}
	}
	return &latest, nil
}

func (f *fakeStore) MeetingDates(ctx context.Context) ([]MeetingDate, error) {
	seen := map[int]time.Time{}
	for meeting, list := range f.sessions {
		for _, s := range list {
			if first, ok := seen[meeting]; !ok || s.CreatedAt.Before(first) {
				seen[meeting] = s.CreatedAt
			}
		}
	}
	var out []MeetingDate
	for meeting, created := range seen {
		out = append(out, MeetingDate{MeetingNumber: meeting, CreatedAt: created})
	}
	return out, nil
}

func (f *fakeStore) MeetingDate(ctx context.Context, meeting int) (*time.Time, error) {
	list := f.sessions[meeting]
	if len(list) == 0 {
		return nil, nil
	}
	earliest := list[0].CreatedAt
	for _, s := range list[1:] {
		if s.CreatedAt.Before(earliest) {
			earliest = s.CreatedAt
		}
	}
	return &earliest, nil
}

func (f *fakeStore) InsertRecord(ctx context.Context, r Record) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := recKey(r.MemberID, r.MeetingNumber)
	if _, exists := f.records[key]; exists {
		return ErrAlreadyCheckedIn
	}
	f.records[key] = r
	return nil
}

func (f *fakeStore) UpdateRecordStatus(ctx context.Context, memberID int64, meeting int, status Status) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updates = append(f.updates, Record{MemberID: memberID, MeetingNumber: meeting, Status: status})
	key := recKey(memberID, meeting)
	if rec, ok := f.records[key]; ok {
		rec.Status = status
		f.records[key] = rec
		return 1, nil
	}
	return f.updateMatched, nil
}

func (f *fakeStore) RecordMeetings(ctx context.Context) ([]int, error) {
	return f.recordMeetings, nil
}

func (f *fakeStore) RecordsForMeetings(ctx context.Context, meetings []int) ([]Record, error) {
	want := map[int]bool{}
	for _, m := range meetings {
		want[m] = true
	}
	var out []Record
	for _, r := range f.records {
		if want[r.MeetingNumber] {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeStore) Summaries(ctx context.Context) ([]Summary, error) {
	return f.summaries, nil
}

func (f *fakeStore) RefreshSummary(ctx context.Context, meeting int) error {
	return nil
}

// --- helpers ---

func newTestService(t *testing.T, st Store, v Verifier) *Service {
	t.Helper()
	return NewService(st, v, 10*time.Minute, time.UTC)
}

var meetingStart = time.Date(2026, 2, 21, 20, 0, 0, 0, time.UTC)

func storeWithSession(meeting int) *fakeStore {
	st := newFakeStore()
	st.members["june@nyu.edu"] = &RosterMember{
		ID: 3, SchoolEmail: "june@nyu.edu", KoreanName: "전지현", EnglishName: "June Jeon", IsActive: true,
	}
	st.sessions[meeting] = []Session{{
		ID:            "s-1",
		MeetingNumber: meeting,
		CreatedAt:     meetingStart,
		ExpiresAt:     meetingStart.Add(10 * time.Minute),
	}}
	return st
}

// --- OpenSession ---

func TestOpenSession_InvalidMeeting(t *testing.T) {
	st := newFakeStore()
	svc := newTestService(t, st, &fakeVerifier{})

	_, err := svc.OpenSession(context.Background(), 0)
	assert.ErrorIs(t, err, ErrInvalidMeeting)
	assert.Empty(t, st.insertedSessions, "no row may be persisted on invalid input")

	_, err = svc.OpenSession(context.Background(), -3)
	assert.ErrorIs(t, err, ErrInvalidMeeting)
}

func TestOpenSession_PersistsWindow(t *testing.T) {
	st := newFakeStore()
	svc := newTestService(t, st, &fakeVerifier{})
	svc.now = func() time.Time { return meetingStart }

	sess, err := svc.OpenSession(context.Background(), 322)
	require.NoError(t, err)
	assert.NotEmpty(t, sess.ID)
	assert.Equal(t, 322, sess.MeetingNumber)
	assert.Equal(t, meetingStart, sess.CreatedAt)
	assert.Equal(t, meetingStart.Add(10*time.Minute), sess.ExpiresAt)
	require.Len(t, st.insertedSessions, 1)
}

func TestOpenSession_Reopen(t *testing.T) {
	st := newFakeStore()
	svc := newTestService(t, st, &fakeVerifier{})

	first, err := svc.OpenSession(context.Background(), 5)
	require.NoError(t, err)
	second, err := svc.OpenSession(context.Background(), 5)
	require.NoError(t, err)

	assert.NotEqual(t, first.ID, second.ID, "each call creates an independent session")
	assert.Len(t, st.sessions[5], 2)
}

func TestOpenSession_StorageFailure(t *testing.T) {
	st := newFakeStore()
	st.insertSessionErr = errors.New("connection reset")
	svc := newTestService(t, st, &fakeVerifier{})

	_, err := svc.OpenSession(context.Background(), 7)
	assert.Error(t, err)
}

// --- CheckIn ---

func TestCheckIn_ClassificationBoundary(t *testing.T) {
	expires := meetingStart.Add(10 * time.Minute)
	tests := []struct {
		name string
		now  time.Time
		want Status
	}{
		{"well inside window", meetingStart.Add(599 * time.Second), StatusPresent},
		{"exactly at expiry", expires, StatusPresent},
		{"1ms after expiry", expires.Add(time.Millisecond), StatusLate},
		{"601s after start", meetingStart.Add(601 * time.Second), StatusLate},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			st := storeWithSession(322)
			svc := newTestService(t, st, &fakeVerifier{subject: "uid-1"})
			svc.now = func() time.Time { return tc.now }

			res, err := svc.CheckIn(context.Background(), "june@nyu.edu", "pw", 322)
			require.NoError(t, err)
			assert.Equal(t, tc.want, res.Status)
			assert.Equal(t, 322, res.MeetingNumber)
		})
	}
}

func TestCheckIn_DisplayNameAndTimestamp(t *testing.T) {
	st := storeWithSession(322)
	loc := ReportLocation("America/New_York")
	svc := NewService(st, &fakeVerifier{subject: "uid-1"}, 10*time.Minute, loc)
	svc.now = func() time.Time { return meetingStart } // 20:00 UTC = 3:00 PM EST

	res, err := svc.CheckIn(context.Background(), "june@nyu.edu", "pw", 322)
	require.NoError(t, err)
	assert.Equal(t, "전지현", res.Name)
	assert.Equal(t, "2/21/2026, 3:00:00 PM", res.CheckedAt)
}

func TestCheckIn_NameFallback(t *testing.T) {
	m := RosterMember{SchoolEmail: "a@x.edu"}
	assert.Equal(t, "a@x.edu", m.DisplayName())
	m.EnglishName = "Alice Kim"
	assert.Equal(t, "Alice Kim", m.DisplayName())
	m.KoreanName = "김앨리스"
	assert.Equal(t, "김앨리스", m.DisplayName())
}

func TestCheckIn_EmailNormalized(t *testing.T) {
	st := storeWithSession(1)
	v := &fakeVerifier{subject: "uid-1"}
	svc := newTestService(t, st, v)
	svc.now = func() time.Time { return meetingStart }

	_, err := svc.CheckIn(context.Background(), "  June@NYU.edu ", "pw", 1)
	require.NoError(t, err)
	assert.Equal(t, "june@nyu.edu", v.gotMail)
}

func TestCheckIn_InvalidMeeting(t *testing.T) {
	svc := newTestService(t, newFakeStore(), &fakeVerifier{})
	_, err := svc.CheckIn(context.Background(), "a@x.edu", "pw", 0)
	assert.ErrorIs(t, err, ErrInvalidMeeting)
}

func TestCheckIn_AuthFailurePassthrough(t *testing.T) {
	authErr := errors.New("invalid email or password")
	st := storeWithSession(1)
	svc := newTestService(t, st, &fakeVerifier{err: authErr})

	_, err := svc.CheckIn(context.Background(), "june@nyu.edu", "wrong", 1)
	assert.ErrorIs(t, err, authErr)
	assert.Empty(t, st.records, "failed auth must not record attendance")
}

func TestCheckIn_MemberNotFound(t *testing.T) {
	st := storeWithSession(1)
	svc := newTestService(t, st, &fakeVerifier{subject: "uid-9"})

	_, err := svc.CheckIn(context.Background(), "ghost@nyu.edu", "pw", 1)
	assert.ErrorIs(t, err, ErrMemberNotFound)
}

func TestCheckIn_NoSession(t *testing.T) {
	st := storeWithSession(1)
	svc := newTestService(t, st, &fakeVerifier{subject: "uid-1"})

	_, err := svc.CheckIn(context.Background(), "june@nyu.edu", "pw", 99)
	assert.ErrorIs(t, err, ErrNoSession)
}

func TestCheckIn_DuplicateConflict(t *testing.T) {
	st := storeWithSession(1)
	svc := newTestService(t, st, &fakeVerifier{subject: "uid-1"})
	svc.now = func() time.Time { return meetingStart }

	_, err := svc.CheckIn(context.Background(), "june@nyu.edu", "pw", 1)
	require.NoError(t, err)

	// the second attempt deterministically conflicts; the stored row is kept
	_, err = svc.CheckIn(context.Background(), "june@nyu.edu", "pw", 1)
	assert.ErrorIs(t, err, ErrAlreadyCheckedIn)
	assert.Len(t, st.records, 1)
}

func TestCheckIn_ConcurrentSingleWinner(t *testing.T) {
	st := storeWithSession(1)
	svc := newTestService(t, st, &fakeVerifier{subject: "uid-1"})
	svc.now = func() time.Time { return meetingStart }

	const n = 16
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.CheckIn(context.Background(), "june@nyu.edu", "pw", 1)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	var ok, conflicts int
	for err := range errs {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, ErrAlreadyCheckedIn):
			conflicts++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, ok, "exactly one concurrent check-in must win")
	assert.Equal(t, n-1, conflicts)
	assert.Len(t, st.records, 1)
}

func TestCheckIn_GoverningSessionIsLatest(t *testing.T) {
	st := storeWithSession(1)
	// re-open the meeting later with a fresh window
	reopened := meetingStart.Add(30 * time.Minute)
	st.sessions[1] = append(st.sessions[1], Session{
		ID: "s-2", MeetingNumber: 1, CreatedAt: reopened, ExpiresAt: reopened.Add(10 * time.Minute),
	})

	svc := newTestService(t, st, &fakeVerifier{subject: "uid-1"})
	// late for the first window, inside the re-opened one
	svc.now = func() time.Time { return reopened.Add(time.Minute) }

	res, err := svc.CheckIn(context.Background(), "june@nyu.edu", "pw", 1)
	require.NoError(t, err)
	assert.Equal(t, StatusPresent, res.Status)
}

// --- ListAttendance ---

func TestListAttendance_Reconciliation(t *testing.T) {
	st := newFakeStore()
	st.roster = []RosterMember{
		{ID: 1, KoreanName: "가", EnglishName: "A"},
		{ID: 2, KoreanName: "나", EnglishName: "B"},
	}
	st.sessions[7] = []Session{{ID: "s", MeetingNumber: 7, CreatedAt: meetingStart, ExpiresAt: meetingStart.Add(10 * time.Minute)}}
	st.records[recKey(1, 7)] = Record{MemberID: 1, MeetingNumber: 7, Status: StatusLate}

	svc := newTestService(t, st, &fakeVerifier{})
	rows, err := svc.ListAttendance(context.Background(), nil)
	require.NoError(t, err)

	require.Len(t, rows, 2, "one row per active member")
	assert.Equal(t, int64(1), rows[0].MemberID)
	assert.Equal(t, StatusLate, rows[0].Status)
	assert.Equal(t, int64(2), rows[1].MemberID)
	assert.Equal(t, StatusAbsent, rows[1].Status, "missing record derives Absent")
}

func TestListAttendance_Ordering(t *testing.T) {
	st := newFakeStore()
	st.roster = []RosterMember{{ID: 5}, {ID: 2}, {ID: 9}}
	for _, m := range []int{3, 11, 7} {
		st.sessions[m] = []Session{{ID: "s", MeetingNumber: m, CreatedAt: meetingStart, ExpiresAt: meetingStart.Add(time.Minute)}}
	}

	svc := newTestService(t, st, &fakeVerifier{})
	rows, err := svc.ListAttendance(context.Background(), nil)
	require.NoError(t, err)
	require.Len(t, rows, 9)

	wantMeetings := []int{11, 11, 11, 7, 7, 7, 3, 3, 3}
	wantMembers := []int64{2, 5, 9, 2, 5, 9, 2, 5, 9}
	for i, row := range rows {
		assert.Equal(t, wantMeetings[i], row.MeetingNumber, "row %d meeting", i)
		assert.Equal(t, wantMembers[i], row.MemberID, "row %d member", i)
	}
}

func TestListAttendance_EmptyRoster(t *testing.T) {
	st := newFakeStore()
	st.sessions[1] = []Session{{ID: "s", MeetingNumber: 1, CreatedAt: meetingStart, ExpiresAt: meetingStart.Add(time.Minute)}}

	svc := newTestService(t, st, &fakeVerifier{})
	rows, err := svc.ListAttendance(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, rows)
	assert.NotNil(t, rows)
}

func TestListAttendance_MeetingFilter(t *testing.T) {
	st := newFakeStore()
	st.roster = []RosterMember{{ID: 1}}
	st.sessions[7] = []Session{{ID: "s", MeetingNumber: 7, CreatedAt: meetingStart, ExpiresAt: meetingStart.Add(time.Minute)}}
	st.sessions[8] = []Session{{ID: "s2", MeetingNumber: 8, CreatedAt: meetingStart, ExpiresAt: meetingStart.Add(time.Minute)}}

	svc := newTestService(t, st, &fakeVerifier{})
	meeting := 7
	rows, err := svc.ListAttendance(context.Background(), &meeting)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, 7, rows[0].MeetingNumber)

	bad := -1
	_, err = svc.ListAttendance(context.Background(), &bad)
	assert.ErrorIs(t, err, ErrInvalidMeeting)
}

func TestListAttendance_RecordFallback(t *testing.T) {
	st := newFakeStore()
	st.roster = []RosterMember{{ID: 1}}
	// no sessions at all; meetings come from attendance rows
	st.recordMeetings = []int{4, 2}
	st.records[recKey(1, 4)] = Record{MemberID: 1, MeetingNumber: 4, Status: StatusPresent}

	svc := newTestService(t, st, &fakeVerifier{})
	rows, err := svc.ListAttendance(context.Background(), nil)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, 4, rows[0].MeetingNumber)
	assert.Equal(t, StatusPresent, rows[0].Status)
	assert.Equal(t, 2, rows[1].MeetingNumber)
	assert.Equal(t, StatusAbsent, rows[1].Status)
}

// --- SetStatus ---

func TestSetStatus_UpdatesExisting(t *testing.T) {
	st := newFakeStore()
	st.records[recKey(3, 7)] = Record{MemberID: 3, MeetingNumber: 7, Status: StatusPresent}

	svc := newTestService(t, st, &fakeVerifier{})
	require.NoError(t, svc.SetStatus(context.Background(), 3, 7, StatusAbsent))

	assert.Len(t, st.records, 1, "row count stays 1")
	assert.Equal(t, StatusAbsent, st.records[recKey(3, 7)].Status)
}

func TestSetStatus_InsertsWhenMissing(t *testing.T) {
	st := newFakeStore()
	svc := newTestService(t, st, &fakeVerifier{})

	require.NoError(t, svc.SetStatus(context.Background(), 3, 7, StatusLate))
	require.Len(t, st.records, 1)
	assert.Equal(t, StatusLate, st.records[recKey(3, 7)].Status)
}

func TestSetStatus_Validation(t *testing.T) {
	svc := newTestService(t, newFakeStore(), &fakeVerifier{})

	assert.ErrorIs(t, svc.SetStatus(context.Background(), 0, 7, StatusLate), ErrInvalidMember)
	assert.ErrorIs(t, svc.SetStatus(context.Background(), 3, 0, StatusLate), ErrInvalidMeeting)
	assert.ErrorIs(t, svc.SetStatus(context.Background(), 3, 7, Status("Maybe")), ErrInvalidStatus)
}
