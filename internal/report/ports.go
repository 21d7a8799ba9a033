package report

import (
	"context"

	"cloud.google.com/go/civil"

	"librarydesk/internal/asset"
	"librarydesk/internal/circulation"
)

type Repository interface {
	BookTotals(ctx context.Context) (BookTotals, error)
	MemberTotals(ctx context.Context, today civil.Date) (MemberTotals, error)
	TopBorrowed(ctx context.Context, limit int) ([]BookCount, error)
	RecentBorrows(ctx context.Context, limit int) ([]RecentBorrow, error)
	// BorrowsPerMonth counts borrows started on or after since, keyed by "2006-01".
	BorrowsPerMonth(ctx context.Context, since civil.Date) (map[string]int, error)
}

type CirculationStats interface {
	Stats(ctx context.Context) (circulation.Stats, error)
}

type AssetStats interface {
	Stats(ctx context.Context) (asset.Stats, error)
}
