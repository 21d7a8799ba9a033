// Package circulation runs the lending desk: borrowing, returns, renewals,
// fines and the loan listings built on them.
package circulation

import (
	"fmt"
	"time"

	"cloud.google.com/go/civil"

	"librarydesk/internal/apperr"
)

type Status string

const (
	StatusBorrowed Status = "borrowed"
	StatusReturned Status = "returned"
)

// MaxDueDays bounds an explicit loan period.
const MaxDueDays = 365

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

// Money is an amount in minor currency units.
type Money int64

func (m Money) String() string {
	sign := ""
	if m < 0 {
		sign, m = "-", -m
	}
	return fmt.Sprintf("%s%d.%02d", sign, m/100, m%100)
}

func (m Money) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// Loan is one borrow record. The book title and ISBN are copied at borrow
// time so history survives the book being removed from the catalog.
type Loan struct {
	ID           string      `json:"id"`
	BookID       *string     `json:"book_id"`
	BookTitle    string      `json:"book_title"`
	BookISBN     *string     `json:"book_isbn,omitempty"`
	MemberID     string      `json:"member_id"`
	MemberCode   string      `json:"member_code"`
	MemberName   string      `json:"member_name"`
	BorrowedDate civil.Date  `json:"borrowed_date"`
	DueDate      civil.Date  `json:"due_date"`
	ReturnedDate *civil.Date `json:"returned_date,omitempty"`
	Status       Status      `json:"status"`
	Fine         Money       `json:"fine_amount"`
	Renewals     int         `json:"renewals"`
	CreatedAt    time.Time   `json:"created_at"`
	DaysOverdue  int         `json:"days_overdue,omitempty"`
}

// Overdue reports whether the loan is open past its due date.
func (l Loan) Overdue(today civil.Date) bool {
	return l.Status == StatusBorrowed && l.DueDate.Before(today)
}

type BorrowRequest struct {
	BookID   string `json:"book_id" validate:"required"`
	MemberID string `json:"member_id" validate:"required"`
	// DueDays of zero or less uses the configured loan period.
	DueDays int `json:"due_days" validate:"gte=0,lte=365"`
}

type BorrowResult struct {
	BorrowID string     `json:"borrow_id"`
	DueDate  civil.Date `json:"due_date"`
}

type ReturnResult struct {
	BorrowID     string     `json:"borrow_id"`
	ReturnedDate civil.Date `json:"returned_date"`
	DaysLate     int        `json:"days_late"`
	FineAmount   Money      `json:"fine_amount"`
}

type RenewResult struct {
	BorrowID string     `json:"borrow_id"`
	DueDate  civil.Date `json:"due_date"`
	Renewals int        `json:"renewals"`
}

type Stats struct {
	TotalBorrows   int   `json:"total_borrows"`
	CurrentBorrows int   `json:"current_borrows"`
	OverdueBooks   int   `json:"overdue_books"`
	TotalFines     Money `json:"total_fines"`
}

// ComputeFine charges perDay for every whole day between due and returned.
// Returning on or before the due date costs nothing.
func ComputeFine(due, returned civil.Date, perDay Money) (daysLate int, fine Money) {
	daysLate = returned.DaysSince(due)
	if daysLate <= 0 {
		return 0, 0
	}
	return daysLate, Money(daysLate) * perDay
}

var (
	ErrNotAvailable       = apperr.Conflict("NOT_AVAILABLE", "book has no copies available")
	ErrBorrowLimitReached = apperr.Conflict("BORROW_LIMIT_REACHED", "member cannot borrow more books")
	ErrAlreadyReturned    = apperr.Conflict("ALREADY_RETURNED", "book has already been returned")
	ErrBorrowNotFound     = apperr.NotFound("BORROW_NOT_FOUND", "borrow record not found")
	ErrMemberNotFound     = apperr.NotFound("MEMBER_NOT_FOUND", "member not found")
	ErrRenewalLimit       = apperr.Conflict("RENEWAL_LIMIT", "loan cannot be renewed again")
	ErrOverdue            = apperr.Conflict("LOAN_OVERDUE", "overdue loans cannot be renewed")
	ErrInvalid            = apperr.Validation("INVALID_REQUEST", "request is invalid")
)

// ErrStockOutOfRange is returned by Tx.AdjustAvailable when the move would
// break 0 <= available <= quantity.
var ErrStockOutOfRange = apperr.Conflict("STOCK_OUT_OF_RANGE", "book availability out of range")
