// Package report assembles the librarian dashboard from independent aggregates.
package report

import (
	"cloud.google.com/go/civil"

	"librarydesk/internal/asset"
	"librarydesk/internal/circulation"
)

const (
	TopBooks      = 5
	RecentBorrows = 5
	TrendMonths   = 6
)

type BookTotals struct {
	Titles    int `json:"titles"`
	Copies    int `json:"copies"`
	Available int `json:"available"`
}

type MemberTotals struct {
	Total   int `json:"total"`
	Active  int `json:"active"`
	Expired int `json:"expired"`
}

type BookCount struct {
	BookID  string `json:"book_id"`
	Title   string `json:"title"`
	Author  string `json:"author"`
	Borrows int    `json:"borrow_count"`
}

type RecentBorrow struct {
	BorrowID     string     `json:"borrow_id"`
	BookTitle    string     `json:"book_title"`
	MemberCode   string     `json:"member_code"`
	MemberName   string     `json:"member_name"`
	BorrowedDate civil.Date `json:"borrowed_date"`
	DueDate      civil.Date `json:"due_date"`
	Status       string     `json:"status"`
}

// MonthCount is the number of borrows started in Month ("2006-01").
type MonthCount struct {
	Month   string `json:"month"`
	Borrows int    `json:"borrows"`
}

type Dashboard struct {
	Books         BookTotals        `json:"books"`
	Members       MemberTotals      `json:"members"`
	Circulation   circulation.Stats `json:"circulation"`
	Assets        asset.Stats       `json:"assets"`
	TopBooks      []BookCount       `json:"top_books"`
	RecentBorrows []RecentBorrow    `json:"recent_borrows"`
	Monthly       []MonthCount      `json:"monthly_borrows"`
}
