package member

import (
	"context"
	"errors"
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"librarydesk/internal/apperr"
	"librarydesk/internal/platform/clock"
	"librarydesk/internal/platform/logging"
	"librarydesk/internal/user"
)

var today = civil.Date{Year: 2024, Month: 3, Day: 10}

type recordingSender struct {
	keys []string
	to   []string
}

func (s *recordingSender) Send(_ context.Context, key, to string, _ map[string]any) bool {
	s.keys = append(s.keys, key)
	s.to = append(s.to, to)
	return true
}

func newTestService(t *testing.T) (*Service, *MockRepository, *recordingSender) {
	repo := NewMockRepository(gomock.NewController(t))
	sender := &recordingSender{}
	now := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)
	return NewService(repo, clock.Fixed(now), time.UTC, sender, logging.Discard()), repo, sender
}

func TestCheckEligibility(t *testing.T) {
	tests := []struct {
		name   string
		exists bool
		expiry civil.Date
		loans  int
		want   error
	}{
		{"eligible", true, today.AddDays(30), 0, nil},
		{"expires today still eligible", true, today, 4, nil},
		{"unknown member", false, today.AddDays(30), 0, ErrNotFound},
		{"expired", true, today.AddDays(-1), 0, ErrMembershipExpired},
		{"expiry checked before loans", true, today.AddDays(-1), 5, ErrMembershipExpired},
		{"at loan limit", true, today.AddDays(30), MaxActiveLoans, ErrLoanLimit},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CheckEligibility(tt.exists, tt.expiry, tt.loans, today)
			if tt.want == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestService_CanBorrow(t *testing.T) {
	svc, repo, _ := newTestService(t)
	ctx := context.Background()

	repo.EXPECT().Standing(ctx, "ok").Return(Standing{Expiry: today.AddDays(10), ActiveLoans: 2}, nil)
	repo.EXPECT().Standing(ctx, "full").Return(Standing{Expiry: today.AddDays(10), ActiveLoans: 5}, nil)
	repo.EXPECT().Standing(ctx, "lapsed").Return(Standing{Expiry: today.AddDays(-3)}, nil)
	repo.EXPECT().Standing(ctx, "ghost").Return(Standing{}, ErrNotFound)
	repo.EXPECT().Standing(ctx, "broken").Return(Standing{}, errors.New("conn reset"))

	for id, want := range map[string]bool{"ok": true, "full": false, "lapsed": false, "ghost": false} {
		got, err := svc.CanBorrow(ctx, id)
		require.NoError(t, err, id)
		assert.Equal(t, want, got, id)
	}

	_, err := svc.CanBorrow(ctx, "broken")
	assert.ErrorIs(t, err, apperr.ErrPersistence)
}

func validInput() Input {
	return Input{
		Username:  "ama",
		Email:     "ama@example.com",
		Password:  "Secret123!",
		FirstName: "Ama",
		LastName:  "Mensah",
	}
}

func TestService_Register(t *testing.T) {
	ctx := context.Background()

	t.Run("creates account and member", func(t *testing.T) {
		svc, repo, sender := newTestService(t)
		repo.EXPECT().Create(ctx, gomock.Any(), gomock.Any(), 2024).
			DoAndReturn(func(_ context.Context, u *user.User, m *Member, year int) error {
				assert.Equal(t, "member", u.Role)
				assert.NotEmpty(t, u.PasswordHash)
				u.ID = "u-1"
				m.ID = "m-1"
				m.Code = FormatCode(year, 7)
				return nil
			})

		m, err := svc.Register(ctx, validInput())
		require.NoError(t, err)
		assert.Equal(t, "MEM-2024-0007", m.Code)
		assert.Equal(t, "u-1", m.UserID)
		assert.Equal(t, TypeStudent, m.MembershipType)
		assert.Equal(t, civil.Date{Year: 2025, Month: 3, Day: 10}, m.MembershipExpiry)
		assert.Equal(t, []string{"welcome"}, sender.keys)
		assert.Equal(t, []string{"ama@example.com"}, sender.to)
	})

	t.Run("account failure leaves nothing and sends nothing", func(t *testing.T) {
		svc, repo, sender := newTestService(t)
		repo.EXPECT().Create(ctx, gomock.Any(), gomock.Any(), 2024).Return(user.ErrDuplicateUsername)

		_, err := svc.Register(ctx, validInput())
		assert.ErrorIs(t, err, user.ErrDuplicateUsername)
		assert.Empty(t, sender.keys)
	})

	t.Run("invalid membership type", func(t *testing.T) {
		svc, _, _ := newTestService(t)
		in := validInput()
		in.MembershipType = "vip"

		_, err := svc.Register(ctx, in)
		assert.ErrorIs(t, err, ErrInvalid)
	})

	t.Run("weak password never reaches the store", func(t *testing.T) {
		svc, _, _ := newTestService(t)
		in := validInput()
		in.Password = "short"

		_, err := svc.Register(ctx, in)
		assert.ErrorIs(t, err, user.ErrInvalid)
	})
}

func TestService_Renew(t *testing.T) {
	ctx := context.Background()

	t.Run("extends from current expiry", func(t *testing.T) {
		svc, repo, _ := newTestService(t)
		repo.EXPECT().Get(ctx, "m-1").Return(Member{ID: "m-1", MembershipExpiry: civil.Date{Year: 2024, Month: 6, Day: 1}}, nil)
		repo.EXPECT().UpdateExpiry(ctx, "m-1", civil.Date{Year: 2024, Month: 12, Day: 1}).Return(nil)

		m, err := svc.Renew(ctx, "m-1", 6)
		require.NoError(t, err)
		assert.Equal(t, civil.Date{Year: 2024, Month: 12, Day: 1}, m.MembershipExpiry)
	})

	t.Run("lapsed membership counts from today", func(t *testing.T) {
		svc, repo, _ := newTestService(t)
		repo.EXPECT().Get(ctx, "m-1").Return(Member{ID: "m-1", MembershipExpiry: civil.Date{Year: 2023, Month: 1, Day: 1}}, nil)
		repo.EXPECT().UpdateExpiry(ctx, "m-1", civil.Date{Year: 2024, Month: 4, Day: 10}).Return(nil)

		_, err := svc.Renew(ctx, "m-1", 1)
		require.NoError(t, err)
	})

	t.Run("months out of range", func(t *testing.T) {
		svc, _, _ := newTestService(t)
		_, err := svc.Renew(ctx, "m-1", 0)
		assert.ErrorIs(t, err, ErrInvalid)
	})
}

func TestService_ListClampsPaging(t *testing.T) {
	ctx := context.Background()
	svc, repo, _ := newTestService(t)
	repo.EXPECT().List(ctx, "", DefaultLimit, 0).Return(nil, 0, nil)
	repo.EXPECT().List(ctx, "ama", MaxLimit, 10).Return([]Member{{ID: "m-1"}}, 1, nil)

	members, total, err := svc.List(ctx, "", -1, -20)
	require.NoError(t, err)
	assert.NotNil(t, members)
	assert.Zero(t, total)

	members, _, err = svc.List(ctx, "ama", 1000, 10)
	require.NoError(t, err)
	assert.Len(t, members, 1)
}
