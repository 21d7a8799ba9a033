package circulation

import (
	"context"

	"cloud.google.com/go/civil"

	"librarydesk/internal/member"
)

// Store is the persistence side of circulation. Writes go through WithinTx so
// every check and mutation of one operation commits or rolls back together.
type Store interface {
	WithinTx(ctx context.Context, fn func(tx Tx) error) error

	ListCurrent(ctx context.Context, limit, offset int) ([]Loan, int, error)
	ListOverdue(ctx context.Context, today civil.Date, limit, offset int) ([]Loan, int, error)
	MemberHistory(ctx context.Context, memberID string, limit, offset int) ([]Loan, int, error)
	Get(ctx context.Context, id string) (Loan, error)

	CountAll(ctx context.Context) (int, error)
	CountOpen(ctx context.Context) (int, error)
	CountOverdue(ctx context.Context, today civil.Date) (int, error)
	SumFines(ctx context.Context) (Money, error)

	// DueBetween lists open loans due in [from, to] with the borrower's contact.
	DueBetween(ctx context.Context, from, to civil.Date) ([]Reminder, error)
}

// BookStock is a locked book row.
type BookStock struct {
	Title     string
	ISBN      *string
	Quantity  int
	Available int
}

// Tx is the set of row-locking operations available inside WithinTx. The Lock
// methods report found=false rather than an error for unknown ids.
type Tx interface {
	LockMember(ctx context.Context, id string) (st member.Standing, found bool, err error)
	LockBook(ctx context.Context, id string) (b BookStock, found bool, err error)
	LockLoan(ctx context.Context, id string) (l Loan, found bool, err error)

	InsertLoan(ctx context.Context, l *Loan) error
	MarkReturned(ctx context.Context, id string, returned civil.Date, fine Money) error
	ExtendDue(ctx context.Context, id string, due civil.Date) error
	// AdjustAvailable moves the book's available count by delta, refusing to
	// leave the 0..quantity range.
	AdjustAvailable(ctx context.Context, bookID string, delta int) error
}

// Policy supplies the configurable lending rules.
type Policy interface {
	FinePerDay() int64
	MaxBorrowDays() int
	MaxRenewals() int
	Currency() string
}

// Notifier posts in-app notifications.
type Notifier interface {
	Notify(ctx context.Context, userID, title, message, kind, link string) error
}

// Reminder is an open loan due soon, with the borrower's contact details.
type Reminder struct {
	BorrowID  string
	UserID    string
	Email     string
	Name      string
	BookTitle string
	DueDate   civil.Date
}
