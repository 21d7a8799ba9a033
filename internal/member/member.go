// Package member manages library memberships and borrowing eligibility.
package member

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/civil"

	"librarydesk/internal/apperr"
	"librarydesk/internal/identity"
	"librarydesk/internal/user"
)

// MaxActiveLoans is the number of unreturned loans a member may hold.
const MaxActiveLoans = 5

const (
	DefaultLimit = 20
	MaxLimit     = 100
)

// pageBounds clamps paging to non-negative values and fills defaults.
func pageBounds(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = DefaultLimit
	}
	return min(limit, MaxLimit), max(offset, 0)
}

type Type string

const (
	TypeStudent Type = "student"
	TypeStaff   Type = "staff"
	TypePublic  Type = "public"
)

func (t Type) Valid() bool {
	return t == TypeStudent || t == TypeStaff || t == TypePublic
}

type Member struct {
	ID               string      `json:"id"`
	UserID           string      `json:"user_id"`
	Code             string      `json:"member_code"`
	Phone            string      `json:"phone"`
	Address          string      `json:"address"`
	DateOfBirth      *civil.Date `json:"date_of_birth,omitempty"`
	MembershipType   Type        `json:"membership_type"`
	MembershipExpiry civil.Date  `json:"membership_expiry"`
	CreatedAt        time.Time   `json:"created_at"`

	Username  string `json:"username"`
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Status    string `json:"status"`
}

func (m Member) FullName() string {
	return strings.TrimSpace(m.FirstName + " " + m.LastName)
}

// Expired reports whether the membership lapsed before today.
func (m Member) Expired(today civil.Date) bool {
	return m.MembershipExpiry.Before(today)
}

// Standing is what eligibility depends on.
type Standing struct {
	Expiry      civil.Date
	ActiveLoans int
}

// CheckEligibility applies the borrowing rule in order: the member exists, the
// membership has not expired, and fewer than MaxActiveLoans loans are open.
func CheckEligibility(exists bool, expiry civil.Date, activeLoans int, today civil.Date) error {
	switch {
	case !exists:
		return ErrNotFound
	case expiry.Before(today):
		return ErrMembershipExpired
	case activeLoans >= MaxActiveLoans:
		return ErrLoanLimit
	}
	return nil
}

// FormatCode renders the member code for the n-th member registered in year.
func FormatCode(year int, n int64) string {
	return fmt.Sprintf("MEM-%d-%04d", year, n)
}

// Input registers a new member together with the login account.
type Input struct {
	Username       string      `json:"username" validate:"required,min=3,max=50"`
	Email          string      `json:"email" validate:"required,email"`
	Password       string      `json:"password" validate:"required,password_strength"`
	FirstName      string      `json:"first_name" validate:"required,max=100"`
	LastName       string      `json:"last_name" validate:"required,max=100"`
	Phone          string      `json:"phone" validate:"max=30"`
	Address        string      `json:"address" validate:"max=255"`
	DateOfBirth    *civil.Date `json:"date_of_birth"`
	MembershipType Type        `json:"membership_type" validate:"omitempty,oneof=student staff public"`
}

func (in Input) account() user.Account {
	return user.Account{
		Username:  in.Username,
		Email:     in.Email,
		Password:  in.Password,
		FirstName: in.FirstName,
		LastName:  in.LastName,
		Role:      identity.RoleMember,
	}
}

func (in Input) toMember(today civil.Date) (Member, error) {
	m := Member{
		Phone:          strings.TrimSpace(in.Phone),
		Address:        strings.TrimSpace(in.Address),
		DateOfBirth:    in.DateOfBirth,
		MembershipType: in.MembershipType,
	}
	if m.MembershipType == "" {
		m.MembershipType = TypeStudent
	}
	if !m.MembershipType.Valid() {
		return Member{}, ErrInvalid.WithMessage("unknown membership type %q", in.MembershipType)
	}
	if m.DateOfBirth != nil && !m.DateOfBirth.Before(today) {
		return Member{}, ErrInvalid.WithMessage("date of birth must be in the past")
	}
	return m, nil
}

// Profile holds the member fields that can be edited after registration.
type Profile struct {
	Phone          string      `json:"phone" validate:"max=30"`
	Address        string      `json:"address" validate:"max=255"`
	DateOfBirth    *civil.Date `json:"date_of_birth"`
	MembershipType Type        `json:"membership_type" validate:"required,oneof=student staff public"`
}

// reasonCode returns the code of an eligibility failure.
func reasonCode(err error) (string, bool) {
	for _, e := range []*apperr.Error{ErrMembershipExpired, ErrLoanLimit} {
		if errors.Is(err, e) {
			return e.Code, true
		}
	}
	return "", false
}

var (
	ErrNotFound          = apperr.NotFound("MEMBER_NOT_FOUND", "member not found")
	ErrMembershipExpired = apperr.Conflict("MEMBERSHIP_EXPIRED", "membership has expired")
	ErrLoanLimit         = apperr.Conflict("LOAN_LIMIT", fmt.Sprintf("member already holds %d active loans", MaxActiveLoans))
	ErrInvalid           = apperr.Validation("INVALID_MEMBER", "member is invalid")
)
