package report

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"cloud.google.com/go/civil"
	"golang.org/x/sync/errgroup"

	"librarydesk/internal/apperr"
	"librarydesk/internal/platform/clock"
)

type Service struct {
	repo        Repository
	circulation CirculationStats
	assets      AssetStats
	clock       clock.Clock
	loc         *time.Location
	log         *slog.Logger
}

func NewService(repo Repository, circ CirculationStats, assets AssetStats, c clock.Clock, loc *time.Location, log *slog.Logger) *Service {
	return &Service{repo: repo, circulation: circ, assets: assets, clock: c, loc: loc, log: log}
}

// Dashboard runs every aggregate concurrently. The figures are read
// independently and may not describe a single instant.
func (s *Service) Dashboard(ctx context.Context) (Dashboard, error) {
	today := clock.Today(s.clock, s.loc)
	first := civil.Date{Year: today.Year, Month: today.Month, Day: 1}
	since := clock.AddMonths(first, -(TrendMonths - 1))

	var (
		d       Dashboard
		monthly map[string]int
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		d.Books, err = s.repo.BookTotals(gctx)
		return wrap("book totals", err)
	})
	g.Go(func() (err error) {
		d.Members, err = s.repo.MemberTotals(gctx, today)
		return wrap("member totals", err)
	})
	g.Go(func() (err error) {
		d.Circulation, err = s.circulation.Stats(gctx)
		return wrap("circulation stats", err)
	})
	g.Go(func() (err error) {
		d.Assets, err = s.assets.Stats(gctx)
		return wrap("asset stats", err)
	})
	g.Go(func() (err error) {
		d.TopBooks, err = s.repo.TopBorrowed(gctx, TopBooks)
		return wrap("top borrowed", err)
	})
	g.Go(func() (err error) {
		d.RecentBorrows, err = s.repo.RecentBorrows(gctx, RecentBorrows)
		return wrap("recent borrows", err)
	})
	g.Go(func() (err error) {
		monthly, err = s.repo.BorrowsPerMonth(gctx, since)
		return wrap("monthly borrows", err)
	})
	if err := g.Wait(); err != nil {
		s.log.ErrorContext(ctx, "dashboard failed", "err", err)
		return Dashboard{}, apperr.Persistence(err)
	}

	if d.TopBooks == nil {
		d.TopBooks = []BookCount{}
	}
	if d.RecentBorrows == nil {
		d.RecentBorrows = []RecentBorrow{}
	}
	d.Monthly = fillMonths(since, TrendMonths, monthly)
	return d, nil
}

// wrap keeps classified errors as they are so their kind survives.
func wrap(what string, err error) error {
	if err == nil || apperr.KindOf(err) != apperr.KindUnknown {
		return err
	}
	return fmt.Errorf("%s: %w", what, err)
}

// fillMonths lists n consecutive months from since, oldest first, with zero
// for months that have no borrows.
func fillMonths(since civil.Date, n int, counts map[string]int) []MonthCount {
	out := make([]MonthCount, 0, n)
	for i := range n {
		key := monthKey(clock.AddMonths(since, i))
		out = append(out, MonthCount{Month: key, Borrows: counts[key]})
	}
	return out
}

func monthKey(d civil.Date) string {
	return fmt.Sprintf("%04d-%02d", d.Year, int(d.Month))
}
