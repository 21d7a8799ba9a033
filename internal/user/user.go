// Package user manages library accounts.
package user

import (
	"strings"
	"time"

	"librarydesk/internal/apperr"
	"librarydesk/internal/identity"
	"librarydesk/internal/platform/crypto"
)

const (
	StatusActive   = "active"
	StatusInactive = "inactive"
)

type User struct {
	ID           string     `json:"id"`
	Username     string     `json:"username"`
	Email        string     `json:"email"`
	PasswordHash string     `json:"-"`
	FirstName    string     `json:"first_name"`
	LastName     string     `json:"last_name"`
	Role         string     `json:"role"`
	Status       string     `json:"status"`
	LastLoginAt  *time.Time `json:"last_login_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

func (u User) FullName() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

// Account is what is needed to open a user account.
type Account struct {
	Username  string `json:"username" validate:"required,min=3,max=50"`
	Email     string `json:"email" validate:"required,email"`
	Password  string `json:"password" validate:"required,password_strength"`
	FirstName string `json:"first_name" validate:"max=100"`
	LastName  string `json:"last_name" validate:"max=100"`
	Role      string `json:"role" validate:"omitempty,oneof=admin librarian member"`
}

// NewUser validates acc and hashes its password. It does not touch storage.
func NewUser(acc Account) (User, error) {
	u := User{
		Username:  strings.TrimSpace(acc.Username),
		Email:     strings.ToLower(strings.TrimSpace(acc.Email)),
		FirstName: strings.TrimSpace(acc.FirstName),
		LastName:  strings.TrimSpace(acc.LastName),
		Role:      acc.Role,
		Status:    StatusActive,
	}
	if u.Role == "" {
		u.Role = identity.RoleMember
	}
	switch {
	case len(u.Username) < 3:
		return User{}, ErrInvalid.WithMessage("username must be at least 3 characters")
	case !strings.Contains(u.Email, "@"):
		return User{}, ErrInvalid.WithMessage("email is invalid")
	case u.Role != identity.RoleAdmin && u.Role != identity.RoleLibrarian && u.Role != identity.RoleMember:
		return User{}, ErrInvalid.WithMessage("unknown role %q", u.Role)
	}
	if err := crypto.ValidatePasswordStrength(acc.Password); err != nil {
		return User{}, ErrInvalid.WithMessage("%s", err.Error())
	}
	hash, err := crypto.HashPassword(acc.Password)
	if err != nil {
		return User{}, err
	}
	u.PasswordHash = hash
	return u, nil
}

var (
	ErrNotFound           = apperr.NotFound("USER_NOT_FOUND", "user not found")
	ErrDuplicateUsername  = apperr.Validation("DUPLICATE_USERNAME", "username is already taken")
	ErrDuplicateEmail     = apperr.Validation("DUPLICATE_EMAIL", "email is already registered")
	ErrInvalid            = apperr.Validation("INVALID_USER", "user is invalid")
	ErrInvalidCredentials = apperr.New(apperr.KindPermissionDenied, "INVALID_CREDENTIALS", "invalid username or password")
	ErrInactive           = apperr.Forbidden("ACCOUNT_INACTIVE", "account is inactive")
)
