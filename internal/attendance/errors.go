package attendance

import "errors"

var (
	ErrInvalidMeeting = errors.New("invalid meeting number")
	ErrInvalidStatus  = errors.New("invalid status")
	ErrInvalidMember  = errors.New("invalid member id")

	ErrMemberNotFound = errors.New("member not found")
	ErrNoSession      = errors.New("no active session for this meeting")

	// ErrAlreadyCheckedIn is the expected outcome of a repeated check-in:
	// the first recorded row wins and is never overwritten.
	ErrAlreadyCheckedIn = errors.New("already checked in for this meeting")
)
