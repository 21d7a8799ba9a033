package asset

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"

	"librarydesk/internal/apperr"
	"librarydesk/internal/identity"
	"librarydesk/internal/platform/storage"
)

// Limits bounds what Upload accepts.
type Limits struct {
	AllowedTypes []string
	MaxBytes     int64
}

type Service struct {
	repo   Repository
	files  FileStore
	limits Limits
	log    *slog.Logger
}

func NewService(repo Repository, files FileStore, limits Limits, log *slog.Logger) *Service {
	return &Service{repo: repo, files: files, limits: limits, log: log}
}

// Upload stores the file first and then the record. A record that cannot be
// written takes its file with it.
func (s *Service) Upload(ctx context.Context, p identity.Principal, file io.Reader, filename string, in Input) (Asset, error) {
	if !p.Authenticated() {
		return Asset{}, identity.ErrForbidden
	}
	in, err := in.normalized()
	if err != nil {
		return Asset{}, err
	}

	stored, err := s.files.Save(ctx, file, filename, s.limits.AllowedTypes, s.limits.MaxBytes)
	if err != nil {
		uploadsTotal.WithLabelValues("rejected").Inc()
		return Asset{}, storageError(err)
	}

	a := Asset{
		Title:       in.Title,
		Description: in.Description,
		FilePath:    stored.Path,
		FileType:    stored.Ext,
		MIMEType:    stored.MIMEType,
		FileSize:    stored.Size,
		CategoryID:  in.CategoryID,
		Public:      in.Public,
		UploadedBy:  p.UserID,
	}
	if err := s.repo.Create(ctx, &a); err != nil {
		if rmErr := s.files.Delete(stored.Path); rmErr != nil {
			s.log.ErrorContext(ctx, "remove file of failed upload", "path", stored.Path, "err", rmErr)
		}
		uploadsTotal.WithLabelValues("error").Inc()
		return Asset{}, apperr.Persistence(err)
	}
	uploadsTotal.WithLabelValues("ok").Inc()
	uploadBytes.Add(float64(a.FileSize))
	s.log.InfoContext(ctx, "asset uploaded", "asset_id", a.ID, "size", a.FileSize, "user_id", p.UserID)
	return a, nil
}

func storageError(err error) error {
	switch {
	case errors.Is(err, storage.ErrTooLarge):
		return ErrFileTooLarge.Wrap(err)
	case errors.Is(err, storage.ErrDisallowedType):
		return ErrFileType.WithMessage("%v", err)
	default:
		return apperr.Persistence(err)
	}
}

func visible(p identity.Principal, a Asset) bool {
	return a.Public || p.Owns(a.UploadedBy) || p.IsAdmin()
}

// Get hides assets the principal may not see behind ErrNotFound.
func (s *Service) Get(ctx context.Context, p identity.Principal, id string) (Asset, error) {
	a, err := s.repo.Get(ctx, id)
	if err != nil {
		return Asset{}, apperr.Persistence(err)
	}
	if !visible(p, a) {
		return Asset{}, ErrNotFound
	}
	return a, nil
}

func (s *Service) List(ctx context.Context, p identity.Principal, f Filter) ([]Asset, int, error) {
	f = f.normalized()
	f.VisibleTo = ""
	if !p.IsAdmin() {
		f.VisibleTo = p.UserID
		if f.VisibleTo == "" {
			public := true
			f.Public = &public
		}
	}
	out, total, err := s.repo.List(ctx, f)
	if err != nil {
		return nil, 0, apperr.Persistence(err)
	}
	if out == nil {
		out = []Asset{}
	}
	return out, total, nil
}

// editable loads an asset the principal may change.
func (s *Service) editable(ctx context.Context, p identity.Principal, id string) (Asset, error) {
	a, err := s.Get(ctx, p, id)
	if err != nil {
		return Asset{}, err
	}
	if err := identity.RequireOwnerOrAdmin(p, a.UploadedBy); err != nil {
		return Asset{}, err
	}
	return a, nil
}

func (s *Service) Update(ctx context.Context, p identity.Principal, id string, in Input) (Asset, error) {
	in, err := in.normalized()
	if err != nil {
		return Asset{}, err
	}
	if _, err := s.editable(ctx, p, id); err != nil {
		return Asset{}, err
	}
	if err := s.repo.Update(ctx, id, in); err != nil {
		return Asset{}, apperr.Persistence(err)
	}
	return s.Get(ctx, p, id)
}

// Delete removes the record and then its file. When only the file removal
// fails the asset is gone and ErrOrphanedFile is returned.
func (s *Service) Delete(ctx context.Context, p identity.Principal, id string) error {
	a, err := s.editable(ctx, p, id)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return apperr.Persistence(err)
	}
	if err := s.files.Delete(a.FilePath); err != nil {
		s.log.WarnContext(ctx, "asset file left behind", "asset_id", id, "path", a.FilePath, "err", err)
		return ErrOrphanedFile.Wrap(err)
	}
	s.log.InfoContext(ctx, "asset deleted", "asset_id", id, "user_id", p.UserID)
	return nil
}

// Download opens the asset file for reading. The caller closes it. The
// download is recorded on a best-effort basis.
func (s *Service) Download(ctx context.Context, p identity.Principal, id string) (Asset, *os.File, error) {
	a, err := s.Get(ctx, p, id)
	if err != nil {
		return Asset{}, nil, err
	}
	f, err := s.files.Open(a.FilePath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Asset{}, nil, ErrFileMissing
		}
		return Asset{}, nil, apperr.Persistence(err)
	}
	if err := s.repo.RecordDownload(ctx, a.ID, p.UserID); err != nil {
		s.log.WarnContext(ctx, "record asset download", "asset_id", a.ID, "err", err)
	}
	return a, f, nil
}

func (s *Service) DownloadHistory(ctx context.Context, id string, limit int) ([]Download, error) {
	if limit <= 0 || limit > MaxLimit {
		limit = DefaultLimit
	}
	out, err := s.repo.DownloadHistory(ctx, id, limit)
	if err != nil {
		return nil, apperr.Persistence(err)
	}
	if out == nil {
		out = []Download{}
	}
	return out, nil
}

func (s *Service) Stats(ctx context.Context) (Stats, error) {
	st, err := s.repo.Stats(ctx)
	if err != nil {
		return Stats{}, apperr.Persistence(err)
	}
	return st, nil
}
