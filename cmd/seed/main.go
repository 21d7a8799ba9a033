package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"librarydesk/internal/book"
	"librarydesk/internal/category"
	"librarydesk/internal/config"
	"librarydesk/internal/identity"
	"librarydesk/internal/platform/logging"
	"librarydesk/internal/platform/postgres"
	"librarydesk/internal/user"
)

func main() {
	var (
		adminUser  = flag.String("admin-username", "admin", "Username of the seeded administrator")
		adminEmail = flag.String("admin-email", "admin@library.local", "Email of the seeded administrator")
		withBooks  = flag.Bool("books", true, "Add the sample catalog")
	)
	flag.Parse()

	if err := run(*adminUser, *adminEmail, *withBooks); err != nil {
		fmt.Fprintln(os.Stderr, "seed:", err)
		os.Exit(1)
	}
}

func run(adminUser, adminEmail string, withBooks bool) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	password := os.Getenv("SEED_ADMIN_PASSWORD")
	if password == "" {
		return errors.New("missing required environment variable: SEED_ADMIN_PASSWORD")
	}
	log := logging.New(cfg.LogLevel, cfg.LogFormat, os.Stderr)

	ctx := context.Background()
	pc, err := cfg.Postgres()
	if err != nil {
		return err
	}
	db, err := postgres.Open(ctx, pc)
	if err != nil {
		return err
	}
	defer db.Close()

	s := seeder{
		categories: category.NewService(category.NewPostgresRepo(db, cfg.DBTimeout)),
		users:      user.NewService(user.NewPostgresRepo(db, cfg.DBTimeout)),
		books:      book.NewService(book.NewPostgresRepo(db, cfg.DBTimeout), log),
		log:        log,
	}
	admin := user.Account{
		Username:  adminUser,
		Email:     adminEmail,
		Password:  password,
		FirstName: "Library",
		LastName:  "Administrator",
		Role:      identity.RoleAdmin,
	}
	return s.seed(ctx, admin, withBooks)
}

type categories interface {
	List(ctx context.Context, t category.Type, search string) ([]category.Category, error)
	Create(ctx context.Context, in category.Input) (category.Category, error)
}

type users interface {
	Register(ctx context.Context, acc user.Account) (user.User, error)
}

type books interface {
	Create(ctx context.Context, in book.Input) (book.Book, error)
}

// seeder adds the starter data. Records that already exist are skipped, so
// running it twice is harmless.
type seeder struct {
	categories categories
	users      users
	books      books
	log        *slog.Logger
}

var starterCategories = []category.Input{
	{Name: "Law & Legislation", Description: "Acts, bills and legal commentary", Type: category.TypeBook},
	{Name: "Political Science", Description: "Government and public policy", Type: category.TypeBook},
	{Name: "History", Description: "National and world history", Type: category.TypeBook},
	{Name: "Economics", Description: "Economic theory and budgets", Type: category.TypeBook},
	{Name: "Reference", Description: "Dictionaries and handbooks", Type: category.TypeBook},
	{Name: "Hansard", Description: "Official records of debates", Type: category.TypeAsset},
	{Name: "Committee Reports", Description: "Reports tabled by committees", Type: category.TypeAsset},
}

type sampleBook struct {
	category string
	in       book.Input
}

func year(y int) *int { return &y }

var sampleBooks = []sampleBook{
	{"Political Science", book.Input{ISBN: "9780140449266", Title: "The Prince", Author: "Niccolo Machiavelli", Publisher: "Penguin", PublicationYear: year(2003), Quantity: 3}},
	{"Political Science", book.Input{ISBN: "9780199535767", Title: "The Social Contract", Author: "Jean-Jacques Rousseau", Publisher: "Oxford University Press", PublicationYear: year(2008), Quantity: 2}},
	{"Law & Legislation", book.Input{ISBN: "9780198748946", Title: "Constitutional and Administrative Law", Author: "Neil Parpworth", Publisher: "Oxford University Press", PublicationYear: year(2016), Quantity: 4}},
	{"History", book.Input{ISBN: "9780553296983", Title: "The Diary of a Young Girl", Author: "Anne Frank", Publisher: "Bantam", PublicationYear: year(1993), Quantity: 2}},
	{"Economics", book.Input{ISBN: "9780674430006", Title: "Capital in the Twenty-First Century", Author: "Thomas Piketty", Publisher: "Belknap Press", PublicationYear: year(2014), Quantity: 2}},
	{"Reference", book.Input{ISBN: "9780199571123", Title: "Oxford Dictionary of Law", Author: "Jonathan Law", Publisher: "Oxford University Press", PublicationYear: year(2018), Quantity: 1}},
}

func (s seeder) seed(ctx context.Context, admin user.Account, withBooks bool) error {
	ids := make(map[string]string, len(starterCategories))
	for _, in := range starterCategories {
		id, err := s.category(ctx, in)
		if err != nil {
			return fmt.Errorf("category %s: %w", in.Name, err)
		}
		ids[in.Name] = id
	}

	switch u, err := s.users.Register(ctx, admin); {
	case errors.Is(err, user.ErrDuplicateUsername), errors.Is(err, user.ErrDuplicateEmail):
		s.log.Info("admin already present", "username", admin.Username)
	case err != nil:
		return fmt.Errorf("admin user: %w", err)
	default:
		s.log.Info("admin created", "user_id", u.ID, "username", u.Username)
	}

	if !withBooks {
		return nil
	}
	added := 0
	for _, sb := range sampleBooks {
		in := sb.in
		if id, ok := ids[sb.category]; ok {
			in.CategoryID = &id
		}
		_, err := s.books.Create(ctx, in)
		switch {
		case errors.Is(err, book.ErrDuplicateISBN):
			continue
		case err != nil:
			return fmt.Errorf("book %s: %w", in.Title, err)
		}
		added++
	}
	s.log.Info("sample catalog seeded", "added", added, "skipped", len(sampleBooks)-added)
	return nil
}

// category returns the id of the category named in.Name, creating it when missing.
func (s seeder) category(ctx context.Context, in category.Input) (string, error) {
	existing, err := s.categories.List(ctx, in.Type, in.Name)
	if err != nil {
		return "", err
	}
	for _, c := range existing {
		if strings.EqualFold(c.Name, in.Name) {
			return c.ID, nil
		}
	}
	c, err := s.categories.Create(ctx, in)
	if err != nil {
		return "", err
	}
	return c.ID, nil
}
