package sqlite

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/downpour-dl/downpour/internal/port"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestStore_SaveAndList(t *testing.T) {
	store := openTestStore(t)

	rec := &port.DownloadRecord{
		ID:              "11111111-1111-1111-1111-111111111111",
		URL:             "https://example.com/file.bin",
		FilePath:        "/downloads/file.bin",
		ContentLength:   4096,
		SupportsRanges:  true,
		State:           "Created",
		BytesDownloaded: 0,
	}
	require.NoError(t, store.Save(rec))

	recs, err := store.List()
	require.NoError(t, err)
	require.Len(t, recs, 1)

	got := recs[0]
	require.Equal(t, rec.ID, got.ID)
	require.Equal(t, rec.URL, got.URL)
	require.Equal(t, rec.FilePath, got.FilePath)
	require.Equal(t, rec.ContentLength, got.ContentLength)
	require.True(t, got.SupportsRanges)
	require.Equal(t, "Created", got.State)
	require.Zero(t, got.BytesDownloaded)
	require.Empty(t, got.LastError)
	require.False(t, got.CreatedAt.IsZero())
}

func TestStore_SaveReplacesExisting(t *testing.T) {
	store := openTestStore(t)

	rec := &port.DownloadRecord{
		ID:       "22222222-2222-2222-2222-222222222222",
		URL:      "https://example.com/a.bin",
		FilePath: "/downloads/a.bin",
		State:    "Created",
	}
	require.NoError(t, store.Save(rec))

	rec.FilePath = "/downloads/b.bin"
	rec.State = "Paused"
	rec.BytesDownloaded = 100
	require.NoError(t, store.Save(rec))

	recs, err := store.List()
	require.NoError(t, err)
	require.Len(t, recs, 1)
	require.Equal(t, "/downloads/b.bin", recs[0].FilePath)
	require.Equal(t, "Paused", recs[0].State)
	require.Equal(t, int64(100), recs[0].BytesDownloaded)
}

func TestStore_UpdateProgress(t *testing.T) {
	store := openTestStore(t)

	rec := &port.DownloadRecord{
		ID:       "33333333-3333-3333-3333-333333333333",
		URL:      "https://example.com/file.bin",
		FilePath: "/downloads/file.bin",
		State:    "Created",
	}
	require.NoError(t, store.Save(rec))

	require.NoError(t, store.UpdateProgress(rec.ID, "Running", 2048, ""))

	recs, err := store.List()
	require.NoError(t, err)
	require.Len(t, recs, 1)
	require.Equal(t, "Running", recs[0].State)
	require.Equal(t, int64(2048), recs[0].BytesDownloaded)

	require.NoError(t, store.UpdateProgress(rec.ID, "Error", 2048, "network error"))

	recs, err = store.List()
	require.NoError(t, err)
	require.Equal(t, "Error", recs[0].State)
	require.Equal(t, "network error", recs[0].LastError)
}

func TestStore_UpdateProgressUnknownID(t *testing.T) {
	store := openTestStore(t)

	err := store.UpdateProgress("99999999-9999-9999-9999-999999999999", "Running", 1, "")
	require.Error(t, err)
	require.Contains(t, err.Error(), "no download with id")
}

func TestStore_Ping(t *testing.T) {
	store := openTestStore(t)
	require.NoError(t, store.Ping())
}
