package members

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
)

var (
	ErrValidation = errors.New("validation failed")
	ErrNotFound   = errors.New("member not found")
)

var (
	koreanNameRe  = regexp.MustCompile(`^[가-힣]+$`)
	englishNameRe = regexp.MustCompile(`^[A-Za-z ]+$`)
	schoolEmailRe = regexp.MustCompile(`^[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.edu$`)
	whitespaceRe  = regexp.MustCompile(`\s`)
)

// Provider creates accounts with the external identity provider.
type Provider interface {
	SignUp(ctx context.Context, email, password string) (string, error)
}

// Service handles signup validation and member administration.
type Service struct {
	repo     *Repository
	provider Provider
}

func NewService(repo *Repository, provider Provider) *Service {
	return &Service{repo: repo, provider: provider}
}

// Signup validates the submitted fields, creates the identity-provider
// account, then inserts the member row.
func (s *Service) Signup(ctx context.Context, req SignupRequest) (int64, error) {
	req.SchoolEmail = strings.ToLower(strings.TrimSpace(req.SchoolEmail))
	req.KoreanName = strings.TrimSpace(req.KoreanName)
	req.EnglishName = capitalizeWords(strings.TrimSpace(req.EnglishName))

	if req.SchoolEmail == "" || req.Password == "" || req.KoreanName == "" ||
		req.EnglishName == "" || req.GraduateYear == 0 ||
		req.CurrentUniversity == "" || req.Team == "" {
		return 0, fmt.Errorf("%w: all fields are required", ErrValidation)
	}
	if !koreanNameRe.MatchString(req.KoreanName) {
		return 0, fmt.Errorf("%w: korean name must contain only Korean characters", ErrValidation)
	}
	if !englishNameRe.MatchString(req.EnglishName) {
		return 0, fmt.Errorf("%w: english name must contain only English letters", ErrValidation)
	}
	if !schoolEmailRe.MatchString(req.SchoolEmail) {
		return 0, fmt.Errorf("%w: school email required (example@school.edu)", ErrValidation)
	}
	if whitespaceRe.MatchString(req.Password) {
		return 0, fmt.Errorf("%w: password cannot contain spaces", ErrValidation)
	}
	if req.GraduateYear < 1950 || req.GraduateYear > 2050 {
		return 0, fmt.Errorf("%w: graduation year must be between 1950 and 2050", ErrValidation)
	}

	if _, err := s.provider.SignUp(ctx, req.SchoolEmail, req.Password); err != nil {
		return 0, err
	}
	return s.repo.Insert(ctx, req)
}

// List returns every member, ordered by id.
func (s *Service) List(ctx context.Context) ([]Member, error) {
	return s.repo.List(ctx)
}

// ByEmail returns a member row or nil.
func (s *Service) ByEmail(ctx context.Context, email string) (*Member, error) {
	return s.repo.ByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
}

// Edit applies the non-nil fields of upd to a member.
func (s *Service) Edit(ctx context.Context, memberID int64, upd Update) error {
	if memberID <= 0 {
		return fmt.Errorf("%w: invalid member id", ErrValidation)
	}
	if upd.SchoolEmail != nil {
		email := strings.ToLower(strings.TrimSpace(*upd.SchoolEmail))
		if !schoolEmailRe.MatchString(email) {
			return fmt.Errorf("%w: school email required (example@school.edu)", ErrValidation)
		}
		upd.SchoolEmail = &email
	}
	return s.repo.UpdateFields(ctx, memberID, upd)
}

// Delete removes a member; attendance rows cascade in the store.
func (s *Service) Delete(ctx context.Context, memberID int64) error {
	if memberID <= 0 {
		return fmt.Errorf("%w: invalid member id", ErrValidation)
	}
	return s.repo.Delete(ctx, memberID)
}

// SaveRefreshToken stores a refresh token for rotation checks after login.
func (s *Service) SaveRefreshToken(ctx context.Context, memberID int64, token string, expiresAt time.Time) error {
	return s.repo.SaveRefreshToken(ctx, memberID, token, expiresAt)
}

// capitalizeWords uppercases the first letter of each word and lowercases the
// rest, matching the signup form's auto-capitalization.
func capitalizeWords(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + strings.ToLower(w[1:])
	}
	return strings.Join(words, " ")
}
