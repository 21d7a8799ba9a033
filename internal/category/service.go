package category

import (
	"context"
	"errors"
	"strings"

	"librarydesk/internal/apperr"
)

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// List returns categories of type t, or every category when t is empty.
func (s *Service) List(ctx context.Context, t Type, search string) ([]Category, error) {
	if t != "" && !t.Valid() {
		return nil, ErrInvalid.WithMessage("unknown category type %q", t)
	}
	out, err := s.repo.List(ctx, t, strings.TrimSpace(search))
	if err != nil {
		return nil, apperr.Persistence(err)
	}
	return out, nil
}

func (s *Service) Get(ctx context.Context, id string) (Category, error) {
	c, err := s.repo.Get(ctx, id)
	if err != nil {
		return Category{}, notFoundOr(err)
	}
	return c, nil
}

func (s *Service) Create(ctx context.Context, in Input) (Category, error) {
	c := Category{Name: strings.TrimSpace(in.Name), Description: strings.TrimSpace(in.Description), Type: in.Type}
	if err := s.checkName(ctx, c, ""); err != nil {
		return Category{}, err
	}
	if err := s.repo.Create(ctx, &c); err != nil {
		return Category{}, apperr.Persistence(err)
	}
	return c, nil
}

func (s *Service) Update(ctx context.Context, id string, in Input) (Category, error) {
	c, err := s.Get(ctx, id)
	if err != nil {
		return Category{}, err
	}
	c.Name = strings.TrimSpace(in.Name)
	c.Description = strings.TrimSpace(in.Description)
	if in.Type != "" {
		c.Type = in.Type
	}
	if err := s.checkName(ctx, c, id); err != nil {
		return Category{}, err
	}
	if err := s.repo.Update(ctx, &c); err != nil {
		return Category{}, notFoundOr(err)
	}
	return c, nil
}

// Delete refuses to remove a category that books or assets still point at.
func (s *Service) Delete(ctx context.Context, id string) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	inUse, err := s.repo.InUse(ctx, id)
	if err != nil {
		return apperr.Persistence(err)
	}
	if inUse {
		return ErrInUse
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return notFoundOr(err)
	}
	return nil
}

func (s *Service) checkName(ctx context.Context, c Category, excludeID string) error {
	if c.Name == "" {
		return ErrInvalid.WithMessage("category name is required")
	}
	if !c.Type.Valid() {
		return ErrInvalid.WithMessage("unknown category type %q", c.Type)
	}
	exists, err := s.repo.NameExists(ctx, c.Type, c.Name, excludeID)
	if err != nil {
		return apperr.Persistence(err)
	}
	if exists {
		return ErrDuplicateName
	}
	return nil
}

func notFoundOr(err error) error {
	if errors.Is(err, ErrNotFound) || errors.Is(err, ErrInUse) || errors.Is(err, ErrDuplicateName) {
		return err
	}
	return apperr.Persistence(err)
}
