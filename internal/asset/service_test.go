package asset

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"librarydesk/internal/apperr"
	"librarydesk/internal/identity"
	"librarydesk/internal/platform/logging"
	"librarydesk/internal/platform/storage"
)

var (
	admin  = identity.Principal{UserID: "u-admin", Role: identity.RoleAdmin}
	owner  = identity.Principal{UserID: "u-1", Role: identity.RoleMember}
	other  = identity.Principal{UserID: "u-2", Role: identity.RoleMember}
	pdfDoc = []byte("%PDF-1.4\n1 0 obj\n<<>>\nendobj\ntrailer\n<<>>\n%%EOF\n")
)

type memRepo struct {
	mu        sync.Mutex
	seq       int
	assets    map[string]Asset
	downloads []Download
	failWrite error
	failLog   error
	lastList  Filter
}

func newMemRepo() *memRepo { return &memRepo{assets: map[string]Asset{}} }

func (m *memRepo) Create(_ context.Context, a *Asset) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWrite != nil {
		return m.failWrite
	}
	m.seq++
	a.ID = "a-" + string(rune('0'+m.seq))
	a.CreatedAt = time.Date(2024, 3, m.seq, 0, 0, 0, 0, time.UTC)
	a.UpdatedAt = a.CreatedAt
	m.assets[a.ID] = *a
	return nil
}

func (m *memRepo) Get(_ context.Context, id string) (Asset, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.assets[id]
	if !ok {
		return Asset{}, ErrNotFound
	}
	return a, nil
}

func (m *memRepo) List(_ context.Context, f Filter) ([]Asset, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastList = f
	var out []Asset
	for _, a := range m.assets {
		if f.VisibleTo != "" && !a.Public && a.UploadedBy != f.VisibleTo {
			continue
		}
		if f.Public != nil && a.Public != *f.Public {
			continue
		}
		if f.Search != "" && !strings.Contains(strings.ToLower(a.Title), strings.ToLower(f.Search)) {
			continue
		}
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, len(out), nil
}

func (m *memRepo) Update(_ context.Context, id string, in Input) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.assets[id]
	if !ok {
		return ErrNotFound
	}
	a.Title, a.Description, a.CategoryID, a.Public = in.Title, in.Description, in.CategoryID, in.Public
	m.assets[id] = a
	return nil
}

func (m *memRepo) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.assets[id]; !ok {
		return ErrNotFound
	}
	delete(m.assets, id)
	return nil
}

func (m *memRepo) RecordDownload(_ context.Context, assetID, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failLog != nil {
		return m.failLog
	}
	uid := userID
	m.downloads = append(m.downloads, Download{ID: int64(len(m.downloads) + 1), AssetID: assetID, UserID: &uid})
	return nil
}

func (m *memRepo) DownloadHistory(_ context.Context, assetID string, limit int) ([]Download, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Download
	for i := len(m.downloads) - 1; i >= 0 && len(out) < limit; i-- {
		if m.downloads[i].AssetID == assetID {
			out = append(out, m.downloads[i])
		}
	}
	return out, nil
}

func (m *memRepo) Stats(context.Context) (Stats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var st Stats
	for _, a := range m.assets {
		st.Total++
		st.TotalBytes += a.FileSize
		if a.Public {
			st.Public++
		} else {
			st.Private++
		}
	}
	return st, nil
}

// stickyFiles wraps a real store but refuses to delete.
type stickyFiles struct{ *storage.Local }

func (stickyFiles) Delete(string) error { return errors.New("device busy") }

func newTestService(t *testing.T) (*Service, *memRepo, *storage.Local) {
	t.Helper()
	repo := newMemRepo()
	files := storage.NewLocal(t.TempDir())
	limits := Limits{AllowedTypes: []string{"pdf", "png", "txt"}, MaxBytes: 1024}
	return NewService(repo, files, limits, logging.Discard()), repo, files
}

func upload(t *testing.T, svc *Service, p identity.Principal, title string, public bool) Asset {
	t.Helper()
	a, err := svc.Upload(context.Background(), p, bytes.NewReader(pdfDoc), "report.pdf", Input{Title: title, Public: public})
	require.NoError(t, err)
	return a
}

func TestService_UploadStoresFileAndRecord(t *testing.T) {
	svc, repo, files := newTestService(t)
	before := testutil.ToFloat64(uploadBytes)

	a := upload(t, svc, owner, "  Annual report ", false)

	assert.Equal(t, "Annual report", a.Title)
	assert.Equal(t, "pdf", a.FileType)
	assert.Equal(t, "application/pdf", a.MIMEType)
	assert.Equal(t, int64(len(pdfDoc)), a.FileSize)
	assert.Equal(t, owner.UserID, a.UploadedBy)
	assert.Contains(t, repo.assets, a.ID)
	assert.Equal(t, float64(len(pdfDoc)), testutil.ToFloat64(uploadBytes)-before)

	f, err := files.Open(a.FilePath)
	require.NoError(t, err)
	defer f.Close()
	got, err := io.ReadAll(f)
	require.NoError(t, err)
	assert.Equal(t, pdfDoc, got)
}

func TestService_UploadRejections(t *testing.T) {
	svc, repo, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Upload(ctx, owner, strings.NewReader("MZ"), "tool.exe", Input{Title: "x"})
	assert.ErrorIs(t, err, ErrFileType)
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))

	_, err = svc.Upload(ctx, owner, bytes.NewReader(make([]byte, 2048)), "big.txt", Input{Title: "x"})
	assert.ErrorIs(t, err, ErrFileTooLarge)

	_, err = svc.Upload(ctx, owner, bytes.NewReader(pdfDoc), "a.pdf", Input{Title: "   "})
	assert.ErrorIs(t, err, ErrInvalid)

	_, err = svc.Upload(ctx, identity.Principal{}, bytes.NewReader(pdfDoc), "a.pdf", Input{Title: "x"})
	assert.ErrorIs(t, err, identity.ErrForbidden)

	assert.Empty(t, repo.assets)
}

func TestService_UploadRecordFailureRemovesFile(t *testing.T) {
	svc, repo, files := newTestService(t)
	repo.failWrite = errors.New("connection refused")

	_, err := svc.Upload(context.Background(), owner, bytes.NewReader(pdfDoc), "a.pdf", Input{Title: "x"})
	assert.ErrorIs(t, err, apperr.ErrPersistence)

	var left []string
	require.NoError(t, walkFiles(files.Root, &left))
	assert.Empty(t, left)
}

func walkFiles(root string, out *[]string) error {
	entries, err := os.ReadDir(root)
	if err != nil {
		return err
	}
	for _, e := range entries {
		p := root + string(os.PathSeparator) + e.Name()
		if e.IsDir() {
			if err := walkFiles(p, out); err != nil {
				return err
			}
			continue
		}
		*out = append(*out, p)
	}
	return nil
}

func TestService_GetVisibility(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	private := upload(t, svc, owner, "private", false)
	public := upload(t, svc, owner, "public", true)

	_, err := svc.Get(ctx, owner, private.ID)
	assert.NoError(t, err)
	_, err = svc.Get(ctx, admin, private.ID)
	assert.NoError(t, err)
	_, err = svc.Get(ctx, other, private.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = svc.Get(ctx, other, public.ID)
	assert.NoError(t, err)
}

func TestService_ListRestrictsNonAdmins(t *testing.T) {
	svc, repo, _ := newTestService(t)
	ctx := context.Background()
	upload(t, svc, owner, "mine", false)
	upload(t, svc, owner, "shared", true)
	upload(t, svc, other, "theirs", false)

	items, total, err := svc.List(ctx, other, Filter{VisibleTo: "someone-else"})
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	assert.Equal(t, other.UserID, repo.lastList.VisibleTo)
	titles := []string{items[0].Title, items[1].Title}
	assert.ElementsMatch(t, []string{"shared", "theirs"}, titles)

	_, total, err = svc.List(ctx, admin, Filter{})
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	assert.Empty(t, repo.lastList.VisibleTo)
	assert.Equal(t, SortCreatedAt, repo.lastList.Sort)
	assert.Equal(t, Desc, repo.lastList.Order)

	_, total, err = svc.List(ctx, identity.Principal{}, Filter{Limit: 500})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Equal(t, MaxLimit, repo.lastList.Limit)
}

func TestService_UpdateOwnerOrAdmin(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	a := upload(t, svc, owner, "draft", true)

	_, err := svc.Update(ctx, other, a.ID, Input{Title: "hijacked"})
	assert.ErrorIs(t, err, identity.ErrForbidden)

	got, err := svc.Update(ctx, admin, a.ID, Input{Title: "final", Public: false})
	require.NoError(t, err)
	assert.Equal(t, "final", got.Title)
	assert.False(t, got.Public)
}

func TestService_DeleteRemovesFile(t *testing.T) {
	svc, repo, files := newTestService(t)
	ctx := context.Background()
	a := upload(t, svc, owner, "old", false)

	assert.ErrorIs(t, svc.Delete(ctx, other, a.ID), ErrNotFound)
	require.NoError(t, svc.Delete(ctx, owner, a.ID))

	assert.NotContains(t, repo.assets, a.ID)
	_, err := files.Open(a.FilePath)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func newTestFiles(t *testing.T) *storage.Local { return storage.NewLocal(t.TempDir()) }

var discard = logging.Discard()

func TestService_DeleteOrphanedFile(t *testing.T) {
	repo := newMemRepo()
	svc := NewService(repo, stickyFiles{newTestFiles(t)}, Limits{MaxBytes: 1024}, discard)
	ctx := context.Background()
	a := upload(t, svc, owner, "stuck", false)

	err := svc.Delete(ctx, owner, a.ID)
	assert.ErrorIs(t, err, ErrOrphanedFile)
	assert.NotContains(t, repo.assets, a.ID)
}

func TestService_DownloadRecordsHistory(t *testing.T) {
	svc, repo, files := newTestService(t)
	ctx := context.Background()
	a := upload(t, svc, owner, "guide", true)

	_, f, err := svc.Download(ctx, other, a.ID)
	require.NoError(t, err)
	f.Close()

	repo.failLog = errors.New("disk full")
	_, f, err = svc.Download(ctx, owner, a.ID)
	require.NoError(t, err, "a failed download log does not block the download")
	f.Close()

	hist, err := svc.DownloadHistory(ctx, a.ID, 0)
	require.NoError(t, err)
	require.Len(t, hist, 1)
	assert.Equal(t, other.UserID, *hist[0].UserID)

	require.NoError(t, files.Delete(a.FilePath))
	_, _, err = svc.Download(ctx, owner, a.ID)
	assert.ErrorIs(t, err, ErrFileMissing)
}

func TestService_Stats(t *testing.T) {
	svc, _, _ := newTestService(t)
	upload(t, svc, owner, "one", true)
	upload(t, svc, owner, "two", false)

	st, err := svc.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Stats{Total: 2, Public: 1, Private: 1, TotalBytes: int64(2 * len(pdfDoc))}, st)
}

func TestParseSortField(t *testing.T) {
	f, err := ParseSortField("")
	require.NoError(t, err)
	assert.Equal(t, SortCreatedAt, f)

	f, err = ParseSortField("FILE_SIZE")
	require.NoError(t, err)
	assert.Equal(t, SortFileSize, f)

	_, err = ParseSortField("uploaded_by")
	assert.ErrorIs(t, err, ErrInvalid)

	o, err := ParseSortOrder("")
	require.NoError(t, err)
	assert.Equal(t, Desc, o)
}

func TestListQueries_VisibilityAndSort(t *testing.T) {
	f := Filter{Search: "tax_2024", VisibleTo: "u-1", Sort: SortTitle, Order: Asc}.normalized()
	countSQL, countArgs, dataSQL, dataArgs, err := listQueries(f)
	require.NoError(t, err)

	assert.Contains(t, countSQL, `"a"."is_public" IS TRUE`)
	assert.Contains(t, dataSQL, `ORDER BY "a"."title" ASC`)
	assert.NotContains(t, dataSQL, "tax_2024")
	assert.Contains(t, countArgs, "u-1")
	assert.Contains(t, countArgs, `%tax\_2024%`)
	assert.Len(t, dataArgs, len(countArgs)+2)

	_, _, dataSQL, _, err = listQueries(Filter{}.normalized())
	require.NoError(t, err)
	assert.Contains(t, dataSQL, `ORDER BY "a"."created_at" DESC`)
}
