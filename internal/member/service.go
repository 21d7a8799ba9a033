package member

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"cloud.google.com/go/civil"

	"librarydesk/internal/apperr"
	"librarydesk/internal/platform/clock"
	"librarydesk/internal/platform/mail"
	"librarydesk/internal/user"
)

const (
	membershipMonths = 12
	maxRenewMonths   = 60
)

type Service struct {
	repo  Repository
	clock clock.Clock
	loc   *time.Location
	mail  mail.Sender
	log   *slog.Logger
}

func NewService(repo Repository, c clock.Clock, loc *time.Location, sender mail.Sender, log *slog.Logger) *Service {
	return &Service{repo: repo, clock: c, loc: loc, mail: sender, log: log}
}

func (s *Service) today() civil.Date {
	return clock.Today(s.clock, s.loc)
}

// Register creates the login account and the member record atomically. If the
// account cannot be created no member row exists afterwards.
func (s *Service) Register(ctx context.Context, in Input) (Member, error) {
	today := s.today()

	m, err := in.toMember(today)
	if err != nil {
		return Member{}, err
	}
	u, err := user.NewUser(in.account())
	if err != nil {
		return Member{}, err
	}
	m.MembershipExpiry = clock.AddMonths(today, membershipMonths)

	if err := s.repo.Create(ctx, &u, &m, today.Year); err != nil {
		return Member{}, apperr.Persistence(err)
	}
	m.UserID = u.ID
	m.Username, m.Email, m.FirstName, m.LastName, m.Status = u.Username, u.Email, u.FirstName, u.LastName, u.Status

	s.log.InfoContext(ctx, "member registered", "member_id", m.ID, "member_code", m.Code)
	if !s.mail.Send(ctx, mail.TemplateWelcome, m.Email, map[string]any{
		"name":        m.FullName(),
		"username":    m.Username,
		"member_code": m.Code,
		"expiry":      m.MembershipExpiry.String(),
	}) {
		s.log.WarnContext(ctx, "welcome mail not sent", "member_id", m.ID)
	}
	return m, nil
}

// CanBorrow reports whether the member may take another loan today. Only
// store failures are returned as errors.
func (s *Service) CanBorrow(ctx context.Context, id string) (bool, error) {
	err := s.Eligibility(ctx, id)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrMembershipExpired), errors.Is(err, ErrLoanLimit):
		return false, nil
	}
	return false, err
}

// Eligibility explains why the member cannot borrow, or returns nil.
func (s *Service) Eligibility(ctx context.Context, id string) error {
	st, err := s.repo.Standing(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return ErrNotFound
	}
	if err != nil {
		return apperr.Persistence(err)
	}
	return CheckEligibility(true, st.Expiry, st.ActiveLoans, s.today())
}

func (s *Service) Get(ctx context.Context, id string) (Member, error) {
	m, err := s.repo.Get(ctx, id)
	if err != nil {
		return Member{}, apperr.Persistence(err)
	}
	return m, nil
}

func (s *Service) GetByUserID(ctx context.Context, userID string) (Member, error) {
	m, err := s.repo.GetByUserID(ctx, userID)
	if err != nil {
		return Member{}, apperr.Persistence(err)
	}
	return m, nil
}

func (s *Service) List(ctx context.Context, search string, limit, offset int) ([]Member, int, error) {
	limit, offset = pageBounds(limit, offset)
	members, total, err := s.repo.List(ctx, search, limit, offset)
	if err != nil {
		return nil, 0, apperr.Persistence(err)
	}
	if members == nil {
		members = []Member{}
	}
	return members, total, nil
}

func (s *Service) UpdateProfile(ctx context.Context, id string, p Profile) (Member, error) {
	if !p.MembershipType.Valid() {
		return Member{}, ErrInvalid.WithMessage("unknown membership type %q", p.MembershipType)
	}
	if p.DateOfBirth != nil && !p.DateOfBirth.Before(s.today()) {
		return Member{}, ErrInvalid.WithMessage("date of birth must be in the past")
	}
	if err := s.repo.UpdateProfile(ctx, id, p); err != nil {
		return Member{}, apperr.Persistence(err)
	}
	return s.Get(ctx, id)
}

// Renew extends the membership by months, counted from today when the
// membership has already lapsed.
func (s *Service) Renew(ctx context.Context, id string, months int) (Member, error) {
	if months < 1 || months > maxRenewMonths {
		return Member{}, ErrInvalid.WithMessage("months must be between 1 and %d", maxRenewMonths)
	}
	m, err := s.Get(ctx, id)
	if err != nil {
		return Member{}, err
	}
	base := m.MembershipExpiry
	if today := s.today(); base.Before(today) {
		base = today
	}
	m.MembershipExpiry = clock.AddMonths(base, months)
	if err := s.repo.UpdateExpiry(ctx, id, m.MembershipExpiry); err != nil {
		return Member{}, apperr.Persistence(err)
	}
	s.log.InfoContext(ctx, "membership renewed", "member_id", id, "expiry", m.MembershipExpiry.String())
	return m, nil
}
