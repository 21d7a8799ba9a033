package user

import (
	"context"
	"errors"
	"strings"

	"librarydesk/internal/apperr"
	"librarydesk/internal/platform/crypto"
)

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Register opens a standalone account. Member accounts are opened through the member service.
func (s *Service) Register(ctx context.Context, acc Account) (User, error) {
	u, err := NewUser(acc)
	if err != nil {
		return User{}, err
	}
	if err := s.repo.Create(ctx, &u); err != nil {
		return User{}, apperr.Persistence(err)
	}
	return u, nil
}

func (s *Service) GetByID(ctx context.Context, id string) (User, error) {
	u, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return User{}, apperr.Persistence(err)
	}
	return u, nil
}

func (s *Service) GetByLogin(ctx context.Context, login string) (User, error) {
	u, err := s.repo.GetByLogin(ctx, strings.TrimSpace(login))
	if err != nil {
		return User{}, apperr.Persistence(err)
	}
	return u, nil
}

func (s *Service) List(ctx context.Context, limit, offset int) ([]User, int, error) {
	users, total, err := s.repo.List(ctx, limit, offset)
	if err != nil {
		return nil, 0, apperr.Persistence(err)
	}
	return users, total, nil
}

// Authenticate checks the password for login (username or email) and records the login.
func (s *Service) Authenticate(ctx context.Context, login, password string) (User, error) {
	u, err := s.repo.GetByLogin(ctx, strings.TrimSpace(login))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return User{}, ErrInvalidCredentials
		}
		return User{}, apperr.Persistence(err)
	}
	if !crypto.VerifyPassword(u.PasswordHash, password) {
		return User{}, ErrInvalidCredentials
	}
	if u.Status != StatusActive {
		return User{}, ErrInactive
	}
	if err := s.repo.TouchLastLogin(ctx, u.ID); err != nil {
		return User{}, apperr.Persistence(err)
	}
	return u, nil
}

func (s *Service) ChangePassword(ctx context.Context, id, current, next string) error {
	u, err := s.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if !crypto.VerifyPassword(u.PasswordHash, current) {
		return ErrInvalidCredentials.WithMessage("current password is incorrect")
	}
	return s.SetPassword(ctx, id, next)
}

// SetPassword replaces the password without checking the old one.
func (s *Service) SetPassword(ctx context.Context, id, password string) error {
	if err := crypto.ValidatePasswordStrength(password); err != nil {
		return ErrInvalid.WithMessage("%s", err.Error())
	}
	hash, err := crypto.HashPassword(password)
	if err != nil {
		return err
	}
	if err := s.repo.UpdatePassword(ctx, id, hash); err != nil {
		return apperr.Persistence(err)
	}
	return nil
}

func (s *Service) SetStatus(ctx context.Context, id, status string) error {
	if status != StatusActive && status != StatusInactive {
		return ErrInvalid.WithMessage("status must be active or inactive")
	}
	if err := s.repo.UpdateStatus(ctx, id, status); err != nil {
		return apperr.Persistence(err)
	}
	return nil
}
