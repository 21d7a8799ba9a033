// Package storage keeps uploaded files on the local filesystem.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
)

var (
	ErrTooLarge       = errors.New("file is too large")
	ErrDisallowedType = errors.New("file type not allowed")
	ErrWriteFailure   = errors.New("file could not be stored")
	ErrInvalidPath    = errors.New("invalid storage path")
)

// Stored describes a saved file. Path is relative to the storage root and uses
// forward slashes.
type Stored struct {
	Path     string
	Ext      string
	Size     int64
	MIMEType string
}

// Local stores files under Root as YYYY/MM/<uuid>.<ext>.
type Local struct {
	Root string
	now  func() time.Time
}

func NewLocal(root string) *Local {
	return &Local{Root: root, now: time.Now}
}

// Save copies r into a new file. The extension of suggestedName must be in
// allowed (case-insensitive); an empty allowed list accepts anything. Partial
// files are removed on failure.
func (l *Local) Save(ctx context.Context, r io.Reader, suggestedName string, allowed []string, maxBytes int64) (Stored, error) {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(suggestedName), "."))
	if ext == "" || (len(allowed) > 0 && !slices.Contains(allowed, ext)) {
		return Stored{}, fmt.Errorf("%w: %q, allowed: %s", ErrDisallowedType, ext, strings.Join(allowed, ", "))
	}

	now := l.now()
	rel := path.Join(now.Format("2006"), now.Format("01"), uuid.NewString()+"."+ext)
	full := filepath.Join(l.Root, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(full), 0o750); err != nil {
		return Stored{}, fmt.Errorf("%w: %v", ErrWriteFailure, err)
	}

	f, err := os.OpenFile(full, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o640)
	if err != nil {
		return Stored{}, fmt.Errorf("%w: %v", ErrWriteFailure, err)
	}
	n, err := io.Copy(f, io.LimitReader(readerWithContext{ctx, r}, maxBytes+1))
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	switch {
	case err != nil:
		os.Remove(full)
		if ctx.Err() != nil {
			return Stored{}, ctx.Err()
		}
		return Stored{}, fmt.Errorf("%w: %v", ErrWriteFailure, err)
	case n > maxBytes:
		os.Remove(full)
		return Stored{}, fmt.Errorf("%w: maximum size is %s", ErrTooLarge, FormatBytes(maxBytes))
	}

	st := Stored{Path: rel, Ext: ext, Size: n, MIMEType: "application/octet-stream"}
	if mt, err := mimetype.DetectFile(full); err == nil {
		st.MIMEType = mt.String()
	}
	return st, nil
}

// resolve maps a stored relative path to a filesystem path inside Root.
func (l *Local) resolve(rel string) (string, error) {
	clean := path.Clean("/" + rel)
	if rel == "" || clean == "/" || clean[1:] != rel {
		return "", ErrInvalidPath
	}
	return filepath.Join(l.Root, filepath.FromSlash(clean[1:])), nil
}

func (l *Local) Open(rel string) (*os.File, error) {
	full, err := l.resolve(rel)
	if err != nil {
		return nil, err
	}
	return os.Open(full)
}

// Delete removes a stored file. A file that is already gone is not an error.
func (l *Local) Delete(rel string) error {
	full, err := l.resolve(rel)
	if err != nil {
		return err
	}
	if err := os.Remove(full); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

type readerWithContext struct {
	ctx context.Context
	r   io.Reader
}

func (rc readerWithContext) Read(p []byte) (int, error) {
	if err := rc.ctx.Err(); err != nil {
		return 0, err
	}
	return rc.r.Read(p)
}

// FormatBytes renders n with a binary unit, e.g. "5.00 MB".
func FormatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	units := []string{"KB", "MB", "GB", "TB"}
	v := float64(n) / unit
	i := 0
	for v >= unit && i < len(units)-1 {
		v /= unit
		i++
	}
	return fmt.Sprintf("%.2f %s", v, units[i])
}
