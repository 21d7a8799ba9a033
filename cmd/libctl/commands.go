package main

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"

	jsoniter "github.com/json-iterator/go"
	"github.com/spf13/cobra"

	"librarydesk/internal/audit"
	"librarydesk/internal/book"
	"librarydesk/internal/circulation"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

type circulationOps interface {
	Borrow(ctx context.Context, req circulation.BorrowRequest) (circulation.BorrowResult, error)
	Return(ctx context.Context, borrowID string) (circulation.ReturnResult, error)
	ListOverdue(ctx context.Context, limit, offset int) ([]circulation.Loan, int, error)
	Stats(ctx context.Context) (circulation.Stats, error)
	SendDueReminders(ctx context.Context, withinDays int) (circulation.ReminderReport, error)
}

type settingsOps interface {
	All() map[string]any
	Get(key string) (any, bool)
	Set(ctx context.Context, key string, value any, description string) error
}

type cleaner interface {
	Cleanup(ctx context.Context, olderThanDays int) (int, error)
}

type logOps interface {
	cleaner
	Record(ctx context.Context, e audit.Entry)
}

type bookImporter interface {
	Suggest(ctx context.Context, isbn string) (book.Suggestion, error)
}

type bookCreator interface {
	Create(ctx context.Context, in book.Input) (book.Book, error)
}

type purger interface {
	Purge(ctx context.Context) (int, error)
}

type app struct {
	circulation   circulationOps
	settings      settingsOps
	notifications cleaner
	logs          logOps
	sessions      purger
	lookup        bookImporter
	books         bookCreator
	close         func()
}

type connectFunc func(ctx context.Context) (*app, error)

// newRootCmd wires every subcommand to the services returned by connect. The
// connection is opened once, before the first subcommand runs.
func newRootCmd(connect connectFunc) *cobra.Command {
	var a *app
	root := &cobra.Command{
		Use:          "libctl",
		Short:        "Operate the library: circulation jobs, settings and housekeeping",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Name() == "help" || cmd.Name() == "completion" {
				return nil
			}
			var err error
			a, err = connect(cmd.Context())
			return err
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			if a != nil && a.close != nil {
				a.close()
			}
		},
	}
	get := func() *app { return a }

	root.AddCommand(
		overdueCmd(get),
		statsCmd(get),
		remindCmd(get),
		borrowCmd(get),
		returnCmd(get),
		settingsCmd(get),
		cleanupCmd("notifications", "Delete read notifications older than --days", func() cleaner { return get().notifications }),
		cleanupCmd("logs", "Delete system log entries older than --days", func() cleaner { return get().logs }),
		tokensCmd(get),
		booksCmd(get),
	)
	return root
}

func table(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
}

func overdueCmd(get func() *app) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "overdue",
		Short: "List open loans past their due date, oldest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if limit < 1 || limit > circulation.MaxLimit {
				return fmt.Errorf("--limit must be between 1 and %d", circulation.MaxLimit)
			}
			loans, total, err := get().circulation.ListOverdue(cmd.Context(), limit, 0)
			if err != nil {
				return err
			}
			tw := table(cmd.OutOrStdout())
			fmt.Fprintln(tw, "BORROW\tMEMBER\tBOOK\tDUE\tDAYS OVERDUE")
			for _, l := range loans {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\n", l.ID, l.MemberCode, l.BookTitle, l.DueDate, l.DaysOverdue)
			}
			if err := tw.Flush(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d of %d overdue loans\n", len(loans), total)
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 50, "Maximum rows to show")
	return cmd
}

func statsCmd(get func() *app) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show borrowing totals",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			st, err := get().circulation.Stats(cmd.Context())
			if err != nil {
				return err
			}
			tw := table(cmd.OutOrStdout())
			fmt.Fprintf(tw, "total borrows\t%d\n", st.TotalBorrows)
			fmt.Fprintf(tw, "on loan\t%d\n", st.CurrentBorrows)
			fmt.Fprintf(tw, "overdue\t%d\n", st.OverdueBooks)
			fmt.Fprintf(tw, "fines\t%s\n", st.TotalFines)
			return tw.Flush()
		},
	}
}

func remindCmd(get func() *app) *cobra.Command {
	var within int
	cmd := &cobra.Command{
		Use:   "remind",
		Short: "Mail and notify borrowers whose loans fall due soon",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rep, err := get().circulation.SendDueReminders(cmd.Context(), within)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "due: %d, mailed: %d (%d failed), notified: %d (%d failed)\n",
				rep.Due, rep.Mailed, rep.MailFailed, rep.Notified, rep.NotifyFailed)
			return nil
		},
	}
	cmd.Flags().IntVar(&within, "within", 3, "Days ahead to look for due loans")
	return cmd
}

func borrowCmd(get func() *app) *cobra.Command {
	var days int
	cmd := &cobra.Command{
		Use:   "borrow <book-id> <member-id>",
		Short: "Lend a copy of a book to a member",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := get()
			res, err := a.circulation.Borrow(cmd.Context(), circulation.BorrowRequest{BookID: args[0], MemberID: args[1], DueDays: days})
			if err != nil {
				return err
			}
			a.logs.Record(cmd.Context(), audit.Entry{
				Message: "book borrowed",
				Context: map[string]any{"source": "libctl", "borrow_id": res.BorrowID, "book_id": args[0], "member_id": args[1]},
			})
			fmt.Fprintf(cmd.OutOrStdout(), "borrow %s due %s\n", res.BorrowID, res.DueDate)
			return nil
		},
	}
	cmd.Flags().IntVar(&days, "days", 0, "Loan period in days (default: max_borrow_days setting)")
	return cmd
}

func returnCmd(get func() *app) *cobra.Command {
	return &cobra.Command{
		Use:   "return <borrow-id>",
		Short: "Close a loan and charge any late fine",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := get()
			res, err := a.circulation.Return(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			a.logs.Record(cmd.Context(), audit.Entry{
				Message: "book returned",
				Context: map[string]any{"source": "libctl", "borrow_id": res.BorrowID, "fine": res.FineAmount.String()},
			})
			fmt.Fprintf(cmd.OutOrStdout(), "returned %s on %s, %d days late, fine %s\n",
				res.BorrowID, res.ReturnedDate, res.DaysLate, res.FineAmount)
			return nil
		},
	}
}

func settingsCmd(get func() *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Inspect and change system settings",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "Show every setting with defaults applied",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				all := get().settings.All()
				keys := make([]string, 0, len(all))
				for k := range all {
					keys = append(keys, k)
				}
				sort.Strings(keys)
				tw := table(cmd.OutOrStdout())
				for _, k := range keys {
					fmt.Fprintf(tw, "%s\t%v\n", k, all[k])
				}
				return tw.Flush()
			},
		},
		&cobra.Command{
			Use:   "get <key>",
			Short: "Print one setting",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				v, ok := get().settings.Get(args[0])
				if !ok {
					return fmt.Errorf("setting %s not found", args[0])
				}
				fmt.Fprintln(cmd.OutOrStdout(), v)
				return nil
			},
		},
		settingsSetCmd(get),
	)
	return cmd
}

func settingsSetCmd(get func() *app) *cobra.Command {
	var description string
	cmd := &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Store a setting; JSON values are decoded, anything else is kept as text",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := get()
			key, value := args[0], parseValue(args[1])
			if err := a.settings.Set(cmd.Context(), key, value, description); err != nil {
				return err
			}
			a.logs.Record(cmd.Context(), audit.Entry{
				Message: "setting changed",
				Context: map[string]any{"source": "libctl", "key": key},
			})
			v, _ := a.settings.Get(key)
			fmt.Fprintf(cmd.OutOrStdout(), "%s = %v\n", key, v)
			return nil
		},
	}
	cmd.Flags().StringVar(&description, "description", "", "Human readable description")
	return cmd
}

func parseValue(s string) any {
	var v any
	if err := json.Unmarshal([]byte(strings.TrimSpace(s)), &v); err == nil {
		return v
	}
	return s
}

func cleanupCmd(name, short string, target func() cleaner) *cobra.Command {
	var days int
	cleanup := &cobra.Command{
		Use:   "cleanup",
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			n, err := target().Cleanup(cmd.Context(), days)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted %d %s\n", n, name)
			return nil
		},
	}
	cleanup.Flags().IntVar(&days, "days", 30, "Age in days")

	cmd := &cobra.Command{Use: name, Short: "Housekeeping for " + name}
	cmd.AddCommand(cleanup)
	return cmd
}

func tokensCmd(get func() *app) *cobra.Command {
	cmd := &cobra.Command{Use: "tokens", Short: "Housekeeping for revoked access tokens"}
	cmd.AddCommand(&cobra.Command{
		Use:   "purge",
		Short: "Forget revocations of tokens that have expired",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			n, err := get().sessions.Purge(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "purged %d revoked tokens\n", n)
			return nil
		},
	})
	return cmd
}

func booksCmd(get func() *app) *cobra.Command {
	var (
		quantity   int
		categoryID string
	)
	imp := &cobra.Command{
		Use:   "import <isbn>...",
		Short: "Add books to the catalog from ISBN metadata; ISBNs already catalogued are skipped",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := get()
			tw := table(cmd.OutOrStdout())
			var added, failed int
			for _, isbn := range args {
				s, err := a.lookup.Suggest(cmd.Context(), isbn)
				if err != nil {
					failed++
					fmt.Fprintf(tw, "%s\tfailed\t%v\n", isbn, err)
					continue
				}
				if s.InCatalog {
					fmt.Fprintf(tw, "%s\tskipped\talready in catalog\n", isbn)
					continue
				}
				in := s.Input
				in.Quantity = quantity
				if categoryID != "" {
					in.CategoryID = &categoryID
				}
				b, err := a.books.Create(cmd.Context(), in)
				if err != nil {
					failed++
					fmt.Fprintf(tw, "%s\tfailed\t%v\n", isbn, err)
					continue
				}
				added++
				fmt.Fprintf(tw, "%s\tadded\t%s\n", isbn, b.Title)
			}
			if err := tw.Flush(); err != nil {
				return err
			}
			if added > 0 {
				a.logs.Record(cmd.Context(), audit.Entry{
					Message: "books imported",
					Context: map[string]any{"source": "libctl", "added": added, "failed": failed},
				})
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d isbns failed", failed, len(args))
			}
			return nil
		},
	}
	imp.Flags().IntVar(&quantity, "quantity", 1, "Copies of each book")
	imp.Flags().StringVar(&categoryID, "category", "", "Category id for every imported book")

	cmd := &cobra.Command{Use: "books", Short: "Catalog maintenance"}
	cmd.AddCommand(imp)
	return cmd
}
