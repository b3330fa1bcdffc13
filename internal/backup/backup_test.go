package backup

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/HerbHall/netcanvas/internal/prefs"
	"github.com/HerbHall/netcanvas/internal/store"
)

func seedState(t *testing.T, path string) {
	t.Helper()
	ctx := context.Background()
	db, err := store.New(path)
	require.NoError(t, err)
	defer db.Close()
	repo, err := prefs.NewSQLiteSettingsRepository(ctx, db)
	require.NoError(t, err)
	require.NoError(t, prefs.New(repo).SetActiveTopology(ctx, 7))
}

func TestBackupRestore(t *testing.T) {
	src := t.TempDir()
	dbPath := filepath.Join(src, "state.db")
	seedState(t, dbPath)
	cfgPath := filepath.Join(src, "netcanvas.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("api:\n  base_url: http://lab:8000\n"), 0o600))

	var buf bytes.Buffer
	require.NoError(t, Backup(context.Background(), dbPath, cfgPath, &buf))

	dst := t.TempDir()
	written, err := Restore(&buf, dst)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{filepath.Join(dst, StateName), filepath.Join(dst, "netcanvas.yaml")}, written)

	db, err := store.New(filepath.Join(dst, StateName))
	require.NoError(t, err)
	defer db.Close()
	repo, err := prefs.NewSQLiteSettingsRepository(context.Background(), db)
	require.NoError(t, err)
	id, err := prefs.New(repo).ActiveTopology(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 7, id)
}

func TestBackup_MissingConfigIsSkipped(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "state.db")
	seedState(t, dbPath)

	var buf bytes.Buffer
	require.NoError(t, Backup(context.Background(), dbPath, filepath.Join(t.TempDir(), "absent.yaml"), &buf))

	written, err := Restore(&buf, t.TempDir())
	require.NoError(t, err)
	assert.Len(t, written, 1)
}

func TestBackup_MissingDatabase(t *testing.T) {
	var buf bytes.Buffer
	err := Backup(context.Background(), filepath.Join(t.TempDir(), "none.db"), "", &buf)
	assert.Error(t, err)
}

func TestRestore_RejectsTraversal(t *testing.T) {
	var buf bytes.Buffer
	gw := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gw)
	body := []byte("x")
	require.NoError(t, tw.WriteHeader(&tar.Header{Name: "../escape", Mode: 0o600, Size: int64(len(body)), Typeflag: tar.TypeReg}))
	_, err := tw.Write(body)
	require.NoError(t, err)
	require.NoError(t, tw.Close())
	require.NoError(t, gw.Close())

	_, err = Restore(&buf, t.TempDir())

	assert.ErrorIs(t, err, ErrUnsafeEntry)
}

func TestRestore_NotAnArchive(t *testing.T) {
	_, err := Restore(bytes.NewReader([]byte("plain text")), t.TempDir())
	assert.Error(t, err)
}
