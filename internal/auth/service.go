// Package auth issues access tokens and handles password resets.
package auth

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"librarydesk/internal/apperr"
	"librarydesk/internal/platform/crypto"
	"librarydesk/internal/platform/mail"
	"librarydesk/internal/user"
)

const ResetTokenTTL = 30 * time.Minute

var ErrInvalidResetToken = apperr.Validation("INVALID_RESET_TOKEN", "reset link is invalid or has expired")

// Users is the slice of the user service that auth needs.
type Users interface {
	Authenticate(ctx context.Context, login, password string) (user.User, error)
	GetByID(ctx context.Context, id string) (user.User, error)
	GetByLogin(ctx context.Context, login string) (user.User, error)
	SetPassword(ctx context.Context, id, password string) error
	ChangePassword(ctx context.Context, id, current, next string) error
}

type Service struct {
	users  Users
	tokens *crypto.TokenIssuer
	mail   mail.Sender
	log    *slog.Logger
}

func NewService(users Users, tokens *crypto.TokenIssuer, sender mail.Sender, log *slog.Logger) *Service {
	return &Service{users: users, tokens: tokens, mail: sender, log: log}
}

type Session struct {
	Token crypto.Token `json:"token"`
	User  user.User    `json:"user"`
}

func (s *Service) Login(ctx context.Context, login, password string) (Session, error) {
	u, err := s.users.Authenticate(ctx, login, password)
	if err != nil {
		return Session{}, err
	}
	tok, err := s.tokens.Issue(u.ID, u.Role)
	if err != nil {
		return Session{}, err
	}
	s.log.InfoContext(ctx, "user logged in", "user_id", u.ID, "role", u.Role)
	return Session{Token: tok, User: u}, nil
}

// RequestPasswordReset mails a reset link when login names an active account.
// Unknown accounts are not reported to the caller.
func (s *Service) RequestPasswordReset(ctx context.Context, login string) error {
	u, err := s.users.GetByLogin(ctx, login)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return nil
		}
		return err
	}
	if u.Status != user.StatusActive {
		return nil
	}
	tok, err := s.tokens.IssueReset(u.ID, u.PasswordHash, ResetTokenTTL)
	if err != nil {
		return err
	}
	s.mail.Send(ctx, mail.TemplatePasswordReset, u.Email, map[string]any{
		"name":          u.FullName(),
		"token":         tok.Value,
		"valid_minutes": int(ResetTokenTTL.Minutes()),
	})
	return nil
}

// ResetPassword sets a new password from a reset token. A token works once:
// the new hash invalidates it.
func (s *Service) ResetPassword(ctx context.Context, token, password string) error {
	id, err := crypto.PeekSubject(token)
	if err != nil {
		return ErrInvalidResetToken
	}
	u, err := s.users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return ErrInvalidResetToken
		}
		return err
	}
	if _, err := s.tokens.ParseReset(token, u.PasswordHash); err != nil {
		return ErrInvalidResetToken
	}
	if err := s.users.SetPassword(ctx, u.ID, password); err != nil {
		return err
	}
	s.log.InfoContext(ctx, "password reset", "user_id", u.ID)
	return nil
}

func (s *Service) Me(ctx context.Context, userID string) (user.User, error) {
	return s.users.GetByID(ctx, userID)
}

func (s *Service) ChangePassword(ctx context.Context, userID, current, next string) error {
	return s.users.ChangePassword(ctx, userID, current, next)
}
