package asset

import (
	"context"
	"io"
	"os"

	"librarydesk/internal/platform/storage"
)

//go:generate mockgen -source=ports.go -destination=mock_ports_test.go -package=asset

type Repository interface {
	Create(ctx context.Context, a *Asset) error
	Get(ctx context.Context, id string) (Asset, error)
	List(ctx context.Context, f Filter) ([]Asset, int, error)
	Update(ctx context.Context, id string, in Input) error
	Delete(ctx context.Context, id string) error
	RecordDownload(ctx context.Context, assetID, userID string) error
	DownloadHistory(ctx context.Context, assetID string, limit int) ([]Download, error)
	Stats(ctx context.Context) (Stats, error)
}

// FileStore keeps the asset bytes.
type FileStore interface {
	Save(ctx context.Context, r io.Reader, suggestedName string, allowed []string, maxBytes int64) (storage.Stored, error)
	Open(path string) (*os.File, error)
	Delete(path string) error
}
