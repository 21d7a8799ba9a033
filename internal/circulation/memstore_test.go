package circulation

import (
	"cmp"
	"context"
	"maps"
	"slices"
	"strconv"
	"sync"

	"cloud.google.com/go/civil"

	"librarydesk/internal/member"
)

type memMember struct {
	Expiry civil.Date
	UserID string
	Email  string
	Name   string
	Code   string
}

// memStore serializes transactions on one mutex and restores a snapshot when
// the transaction function fails or panics.
type memStore struct {
	mu      sync.Mutex
	members map[string]memMember
	books   map[string]BookStock
	loans   map[string]Loan
	seq     int

	failAdjust error
	failReads  error
	lastPage   [2]int
}

func newMemStore() *memStore {
	return &memStore{
		members: map[string]memMember{},
		books:   map[string]BookStock{},
		loans:   map[string]Loan{},
	}
}

func (s *memStore) WithinTx(_ context.Context, fn func(tx Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	members, books, loans, seq := maps.Clone(s.members), maps.Clone(s.books), maps.Clone(s.loans), s.seq
	committed := false
	defer func() {
		if !committed {
			s.members, s.books, s.loans, s.seq = members, books, loans, seq
		}
	}()

	if err := fn(memTx{s}); err != nil {
		return err
	}
	committed = true
	return nil
}

type memTx struct {
	s *memStore
}

func (t memTx) LockMember(_ context.Context, id string) (member.Standing, bool, error) {
	m, ok := t.s.members[id]
	if !ok {
		return member.Standing{}, false, nil
	}
	st := member.Standing{Expiry: m.Expiry}
	for _, l := range t.s.loans {
		if l.MemberID == id && l.Status == StatusBorrowed {
			st.ActiveLoans++
		}
	}
	return st, true, nil
}

func (t memTx) LockBook(_ context.Context, id string) (BookStock, bool, error) {
	b, ok := t.s.books[id]
	return b, ok, nil
}

func (t memTx) LockLoan(_ context.Context, id string) (Loan, bool, error) {
	l, ok := t.s.loans[id]
	return l, ok, nil
}

func (t memTx) InsertLoan(_ context.Context, l *Loan) error {
	t.s.seq++
	l.ID = "loan-" + strconv.Itoa(t.s.seq)
	l.MemberCode = t.s.members[l.MemberID].Code
	l.MemberName = t.s.members[l.MemberID].Name
	t.s.loans[l.ID] = *l
	return nil
}

func (t memTx) MarkReturned(_ context.Context, id string, returned civil.Date, fine Money) error {
	l := t.s.loans[id]
	l.Status = StatusReturned
	l.ReturnedDate = &returned
	l.Fine = fine
	t.s.loans[id] = l
	return nil
}

func (t memTx) ExtendDue(_ context.Context, id string, due civil.Date) error {
	l := t.s.loans[id]
	l.DueDate = due
	l.Renewals++
	t.s.loans[id] = l
	return nil
}

func (t memTx) AdjustAvailable(_ context.Context, bookID string, delta int) error {
	if t.s.failAdjust != nil {
		return t.s.failAdjust
	}
	b, ok := t.s.books[bookID]
	if !ok || b.Available+delta < 0 || b.Available+delta > b.Quantity {
		return ErrStockOutOfRange
	}
	b.Available += delta
	t.s.books[bookID] = b
	return nil
}

func (s *memStore) filter(keep func(Loan) bool, less func(a, b Loan) int, limit, offset int) ([]Loan, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastPage = [2]int{limit, offset}
	if s.failReads != nil {
		return nil, 0, s.failReads
	}

	var all []Loan
	for _, l := range s.loans {
		if keep(l) {
			all = append(all, l)
		}
	}
	slices.SortFunc(all, less)
	total := len(all)
	if offset > total {
		offset = total
	}
	end := min(offset+limit, total)
	return all[offset:end], total, nil
}

func compareDates(a, b civil.Date) int {
	switch {
	case a.Before(b):
		return -1
	case a.After(b):
		return 1
	}
	return 0
}

func byDue(a, b Loan) int {
	return cmp.Or(compareDates(a.DueDate, b.DueDate), cmp.Compare(a.ID, b.ID))
}

func byBorrowedDesc(a, b Loan) int {
	return cmp.Or(compareDates(b.BorrowedDate, a.BorrowedDate), cmp.Compare(b.ID, a.ID))
}

func (s *memStore) ListCurrent(_ context.Context, limit, offset int) ([]Loan, int, error) {
	return s.filter(func(l Loan) bool { return l.Status == StatusBorrowed }, byDue, limit, offset)
}

func (s *memStore) ListOverdue(_ context.Context, today civil.Date, limit, offset int) ([]Loan, int, error) {
	return s.filter(func(l Loan) bool { return l.Overdue(today) }, byDue, limit, offset)
}

func (s *memStore) MemberHistory(_ context.Context, memberID string, limit, offset int) ([]Loan, int, error) {
	return s.filter(func(l Loan) bool { return l.MemberID == memberID }, byBorrowedDesc, limit, offset)
}

func (s *memStore) Get(_ context.Context, id string) (Loan, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.loans[id]
	if !ok {
		return Loan{}, ErrBorrowNotFound
	}
	return l, nil
}

func (s *memStore) countWhere(keep func(Loan) bool) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failReads != nil {
		return 0, s.failReads
	}
	n := 0
	for _, l := range s.loans {
		if keep(l) {
			n++
		}
	}
	return n, nil
}

func (s *memStore) CountAll(context.Context) (int, error) {
	return s.countWhere(func(Loan) bool { return true })
}

func (s *memStore) CountOpen(context.Context) (int, error) {
	return s.countWhere(func(l Loan) bool { return l.Status == StatusBorrowed })
}

func (s *memStore) CountOverdue(_ context.Context, today civil.Date) (int, error) {
	return s.countWhere(func(l Loan) bool { return l.Overdue(today) })
}

func (s *memStore) SumFines(context.Context) (Money, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failReads != nil {
		return 0, s.failReads
	}
	var sum Money
	for _, l := range s.loans {
		sum += l.Fine
	}
	return sum, nil
}

func (s *memStore) DueBetween(_ context.Context, from, to civil.Date) ([]Reminder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []Reminder
	for _, l := range s.loans {
		if l.Status != StatusBorrowed || l.DueDate.Before(from) || l.DueDate.After(to) {
			continue
		}
		m := s.members[l.MemberID]
		out = append(out, Reminder{BorrowID: l.ID, UserID: m.UserID, Email: m.Email, Name: m.Name,
			BookTitle: l.BookTitle, DueDate: l.DueDate})
	}
	slices.SortFunc(out, func(a, b Reminder) int { return cmp.Compare(a.BorrowID, b.BorrowID) })
	return out, nil
}
