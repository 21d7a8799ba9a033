package circulation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"cloud.google.com/go/civil"
	"golang.org/x/sync/errgroup"

	"librarydesk/internal/apperr"
	"librarydesk/internal/member"
	"librarydesk/internal/platform/clock"
	"librarydesk/internal/platform/mail"
)

type Service struct {
	store    Store
	policy   Policy
	clock    clock.Clock
	loc      *time.Location
	mail     mail.Sender
	notifier Notifier
	log      *slog.Logger
}

func NewService(store Store, policy Policy, c clock.Clock, loc *time.Location, sender mail.Sender, notifier Notifier, log *slog.Logger) *Service {
	return &Service{store: store, policy: policy, clock: c, loc: loc, mail: sender, notifier: notifier, log: log}
}

func (s *Service) today() civil.Date {
	return clock.Today(s.clock, s.loc)
}

func observe(op string, start time.Time) {
	opDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
}

// Borrow lends one copy of a book to a member. Availability and eligibility
// are checked on locked rows inside the transaction that records the loan.
func (s *Service) Borrow(ctx context.Context, req BorrowRequest) (BorrowResult, error) {
	defer observe("borrow", time.Now())

	res, err := s.borrow(ctx, req)
	borrowTotal.WithLabelValues(resultLabel(err)).Inc()
	if err != nil {
		return BorrowResult{}, err
	}
	s.log.InfoContext(ctx, "book borrowed", "borrow_id", res.BorrowID, "book_id", req.BookID,
		"member_id", req.MemberID, "due_date", res.DueDate.String())
	return res, nil
}

func (s *Service) borrow(ctx context.Context, req BorrowRequest) (BorrowResult, error) {
	if req.BookID == "" || req.MemberID == "" {
		return BorrowResult{}, ErrInvalid.WithMessage("book_id and member_id are required")
	}
	days := req.DueDays
	if days <= 0 {
		days = s.policy.MaxBorrowDays()
	}
	if days > MaxDueDays {
		return BorrowResult{}, ErrInvalid.WithMessage("due_days must be at most %d", MaxDueDays)
	}
	today := s.today()

	var res BorrowResult
	err := s.store.WithinTx(ctx, func(tx Tx) error {
		st, memberFound, err := tx.LockMember(ctx, req.MemberID)
		if err != nil {
			return err
		}
		book, bookFound, err := tx.LockBook(ctx, req.BookID)
		if err != nil {
			return err
		}
		if !bookFound || book.Available <= 0 {
			return ErrNotAvailable
		}
		if !memberFound {
			return ErrMemberNotFound
		}
		if err := member.CheckEligibility(true, st.Expiry, st.ActiveLoans, today); err != nil {
			return ErrBorrowLimitReached.Wrap(err)
		}

		bookID := req.BookID
		loan := Loan{
			BookID:       &bookID,
			BookTitle:    book.Title,
			BookISBN:     book.ISBN,
			MemberID:     req.MemberID,
			BorrowedDate: today,
			DueDate:      today.AddDays(days),
			Status:       StatusBorrowed,
		}
		if err := tx.InsertLoan(ctx, &loan); err != nil {
			return err
		}
		if err := tx.AdjustAvailable(ctx, req.BookID, -1); err != nil {
			if errors.Is(err, ErrStockOutOfRange) {
				return ErrNotAvailable
			}
			return err
		}
		res = BorrowResult{BorrowID: loan.ID, DueDate: loan.DueDate}
		return nil
	})
	if err != nil {
		return BorrowResult{}, apperr.Persistence(err)
	}
	return res, nil
}

// Return closes a loan, charges the late fine and puts the copy back on the shelf.
func (s *Service) Return(ctx context.Context, borrowID string) (ReturnResult, error) {
	defer observe("return", time.Now())

	res, err := s.returnLoan(ctx, borrowID)
	returnTotal.WithLabelValues(resultLabel(err)).Inc()
	if err != nil {
		return ReturnResult{}, err
	}
	finesCollected.Add(float64(res.FineAmount))
	s.log.InfoContext(ctx, "book returned", "borrow_id", borrowID, "days_late", res.DaysLate,
		"fine", res.FineAmount.String())
	return res, nil
}

func (s *Service) returnLoan(ctx context.Context, borrowID string) (ReturnResult, error) {
	today := s.today()
	perDay := Money(s.policy.FinePerDay())

	var res ReturnResult
	err := s.store.WithinTx(ctx, func(tx Tx) error {
		loan, found, err := tx.LockLoan(ctx, borrowID)
		if err != nil {
			return err
		}
		if !found {
			return ErrBorrowNotFound
		}
		if loan.Status == StatusReturned {
			return ErrAlreadyReturned
		}

		days, fine := ComputeFine(loan.DueDate, today, perDay)
		if err := tx.MarkReturned(ctx, loan.ID, today, fine); err != nil {
			return err
		}
		if loan.BookID != nil {
			if err := tx.AdjustAvailable(ctx, *loan.BookID, 1); err != nil {
				return err
			}
		}
		res = ReturnResult{BorrowID: loan.ID, ReturnedDate: today, DaysLate: days, FineAmount: fine}
		return nil
	})
	if err != nil {
		return ReturnResult{}, apperr.Persistence(err)
	}
	return res, nil
}

// Renew pushes the due date of an open, not yet overdue loan by extraDays,
// or by the configured loan period when extraDays is zero or less.
func (s *Service) Renew(ctx context.Context, borrowID string, extraDays int) (RenewResult, error) {
	defer observe("renew", time.Now())

	if extraDays <= 0 {
		extraDays = s.policy.MaxBorrowDays()
	}
	if extraDays > MaxDueDays {
		return RenewResult{}, ErrInvalid.WithMessage("days must be at most %d", MaxDueDays)
	}
	today := s.today()
	limit := s.policy.MaxRenewals()

	var res RenewResult
	err := s.store.WithinTx(ctx, func(tx Tx) error {
		loan, found, err := tx.LockLoan(ctx, borrowID)
		if err != nil {
			return err
		}
		switch {
		case !found:
			return ErrBorrowNotFound
		case loan.Status == StatusReturned:
			return ErrAlreadyReturned
		case loan.Overdue(today):
			return ErrOverdue
		case loan.Renewals >= limit:
			return ErrRenewalLimit.WithMessage("loan has been renewed %d of %d times", loan.Renewals, limit)
		}
		due := loan.DueDate.AddDays(extraDays)
		if err := tx.ExtendDue(ctx, loan.ID, due); err != nil {
			return err
		}
		res = RenewResult{BorrowID: loan.ID, DueDate: due, Renewals: loan.Renewals + 1}
		return nil
	})
	if err != nil {
		return RenewResult{}, apperr.Persistence(err)
	}
	s.log.InfoContext(ctx, "loan renewed", "borrow_id", borrowID, "due_date", res.DueDate.String())
	return res, nil
}

func (s *Service) Get(ctx context.Context, id string) (Loan, error) {
	l, err := s.store.Get(ctx, id)
	if err != nil {
		return Loan{}, apperr.Persistence(err)
	}
	return s.withOverdue(s.today(), []Loan{l})[0], nil
}

// ListCurrent pages through open loans, earliest due first.
func (s *Service) ListCurrent(ctx context.Context, limit, offset int) ([]Loan, int, error) {
	limit, offset = pageBounds(limit, offset)
	loans, total, err := s.store.ListCurrent(ctx, limit, offset)
	if err != nil {
		return nil, 0, apperr.Persistence(err)
	}
	return s.withOverdue(s.today(), loans), total, nil
}

// ListOverdue pages through open loans due before today, earliest due first.
func (s *Service) ListOverdue(ctx context.Context, limit, offset int) ([]Loan, int, error) {
	limit, offset = pageBounds(limit, offset)
	today := s.today()
	loans, total, err := s.store.ListOverdue(ctx, today, limit, offset)
	if err != nil {
		return nil, 0, apperr.Persistence(err)
	}
	return s.withOverdue(today, loans), total, nil
}

// MemberHistory pages through every loan of a member, most recent first.
func (s *Service) MemberHistory(ctx context.Context, memberID string, limit, offset int) ([]Loan, int, error) {
	limit, offset = pageBounds(limit, offset)
	loans, total, err := s.store.MemberHistory(ctx, memberID, limit, offset)
	if err != nil {
		return nil, 0, apperr.Persistence(err)
	}
	return s.withOverdue(s.today(), loans), total, nil
}

func (s *Service) withOverdue(today civil.Date, loans []Loan) []Loan {
	if loans == nil {
		return []Loan{}
	}
	for i := range loans {
		if loans[i].Overdue(today) {
			loans[i].DaysOverdue = today.DaysSince(loans[i].DueDate)
		}
	}
	return loans
}

// Stats runs four independent aggregate reads concurrently. The figures are
// not taken from a single snapshot.
func (s *Service) Stats(ctx context.Context) (Stats, error) {
	today := s.today()
	var st Stats

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		st.TotalBorrows, err = s.store.CountAll(gctx)
		return err
	})
	g.Go(func() (err error) {
		st.CurrentBorrows, err = s.store.CountOpen(gctx)
		return err
	})
	g.Go(func() (err error) {
		st.OverdueBooks, err = s.store.CountOverdue(gctx, today)
		return err
	})
	g.Go(func() (err error) {
		st.TotalFines, err = s.store.SumFines(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return Stats{}, apperr.Persistence(err)
	}
	return st, nil
}

// ReminderReport counts per loan: Mailed+MailFailed and Notified+NotifyFailed
// each equal Due.
type ReminderReport struct {
	Due          int `json:"due"`
	Mailed       int `json:"mailed"`
	MailFailed   int `json:"mail_failed"`
	Notified     int `json:"notified"`
	NotifyFailed int `json:"notify_failed"`
}

// SendDueReminders mails and notifies every borrower whose loan falls due
// within the next withinDays days. Individual failures are counted, not returned.
func (s *Service) SendDueReminders(ctx context.Context, withinDays int) (ReminderReport, error) {
	if withinDays < 0 || withinDays > 30 {
		return ReminderReport{}, ErrInvalid.WithMessage("within must be between 0 and 30 days")
	}
	today := s.today()
	due, err := s.store.DueBetween(ctx, today, today.AddDays(withinDays))
	if err != nil {
		return ReminderReport{}, apperr.Persistence(err)
	}

	rep := ReminderReport{Due: len(due)}
	fine := Money(s.policy.FinePerDay()).String()
	for _, r := range due {
		if err := ctx.Err(); err != nil {
			return rep, err
		}
		ok := s.mail.Send(ctx, mail.TemplateDueReminder, r.Email, map[string]any{
			"name":         r.Name,
			"book_title":   r.BookTitle,
			"due_date":     r.DueDate.String(),
			"fine_per_day": fine,
			"currency":     s.policy.Currency(),
		})
		if ok {
			rep.Mailed++
		} else {
			rep.MailFailed++
		}

		msg := fmt.Sprintf("%q is due on %s.", r.BookTitle, r.DueDate)
		if err := s.notifier.Notify(ctx, r.UserID, "Book due soon", msg, "warning", "/loans/"+r.BorrowID); err != nil {
			s.log.WarnContext(ctx, "due reminder notification failed", "borrow_id", r.BorrowID, "error", err)
			rep.NotifyFailed++
			continue
		}
		rep.Notified++
	}
	s.log.InfoContext(ctx, "due reminders sent", "due", rep.Due, "mailed", rep.Mailed,
		"mail_failed", rep.MailFailed, "notified", rep.Notified, "notify_failed", rep.NotifyFailed)
	return rep, nil
}
