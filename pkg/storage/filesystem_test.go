package storage

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSaveWritesIntoBaseDir(t *testing.T) {
	dir := t.TempDir()
	store, err := NewLocalStorage(filepath.Join(dir, "exports"))
	require.NoError(t, err)

	name, err := store.Save("time-capsule.csv", []byte("Date,Title\n"))
	require.NoError(t, err)
	require.Equal(t, "time-capsule.csv", name)

	data, err := os.ReadFile(store.Path(name))
	require.NoError(t, err)
	require.Equal(t, "Date,Title\n", string(data))

	entries, err := os.ReadDir(filepath.Join(dir, "exports"))
	require.NoError(t, err)
	require.Len(t, entries, 1)
}

func TestSaveRejectsEscapingNames(t *testing.T) {
	store, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	for _, name := range []string{"", "../evil.csv", "nested/file.csv", ".hidden"} {
		_, err := store.Save(name, []byte("x"))
		require.Error(t, err, name)
	}
}

func TestCleanupOlderThan(t *testing.T) {
	dir := t.TempDir()
	store, err := NewLocalStorage(dir)
	require.NoError(t, err)

	_, err = store.Save("old.pdf", []byte("old"))
	require.NoError(t, err)
	_, err = store.Save("fresh.ics", []byte("fresh"))
	require.NoError(t, err)
	require.NoError(t, os.Mkdir(filepath.Join(dir, "keep"), 0o755))

	past := time.Now().Add(-72 * time.Hour)
	require.NoError(t, os.Chtimes(store.Path("old.pdf"), past, past))

	removed, err := store.CleanupOlderThan(24 * time.Hour)
	require.NoError(t, err)
	require.Equal(t, []string{"old.pdf"}, removed)
	require.NoFileExists(t, store.Path("old.pdf"))
	require.FileExists(t, store.Path("fresh.ics"))
	require.DirExists(t, filepath.Join(dir, "keep"))
}

func TestDeleteMissingIsNoop(t *testing.T) {
	store, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, store.Delete("missing.csv"))

	_, err = store.Save("gone.csv", []byte("x"))
	require.NoError(t, err)
	require.NoError(t, store.Delete("gone.csv"))
	require.NoFileExists(t, store.Path("gone.csv"))
}
