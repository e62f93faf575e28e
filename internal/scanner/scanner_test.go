package scanner

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	docerrors "github.com/Aman-CERP/docqa/internal/errors"
)

func touch(t *testing.T, path string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))
}

func filenames(files []File) []string {
	out := make([]string, len(files))
	for i, f := range files {
		out[i] = f.Record.Filename
	}
	return out
}

func TestScan_OrdersByFolderThenName(t *testing.T) {
	// Given: two folders with files created out of order
	root := t.TempDir()
	qdd := filepath.Join(root, "qdd")
	plr := filepath.Join(root, "plr")
	touch(t, filepath.Join(qdd, "b.pptx"))
	touch(t, filepath.Join(qdd, "a.docx"))
	touch(t, filepath.Join(plr, "z.docx"))

	// When: scanning plr before qdd
	files, err := New(nil).Scan(context.Background(), []string{plr, qdd})

	// Then: configured folder order, then lexicographic names
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(plr, "z.docx"),
		filepath.Join(qdd, "a.docx"),
		filepath.Join(qdd, "b.pptx"),
	}, filenames(files))
}

func TestScan_FiltersEntries(t *testing.T) {
	// Given: unsupported files, upper-case extensions and a nested directory
	dir := t.TempDir()
	touch(t, filepath.Join(dir, "keep.docx"))
	touch(t, filepath.Join(dir, "notes.txt"))
	touch(t, filepath.Join(dir, "LOUD.DOCX"))
	touch(t, filepath.Join(dir, "nested", "deep.docx"))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "folder.pptx"), 0o755))

	// When: scanning
	files, err := New(nil).Scan(context.Background(), []string{dir})

	// Then: only the direct, case-sensitive match is kept
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "keep.docx")}, filenames(files))
}

func TestScan_MissingFoldersSkipped(t *testing.T) {
	dir := t.TempDir()
	touch(t, filepath.Join(dir, "a.pptx"))

	files, err := New(nil).Scan(context.Background(), []string{filepath.Join(dir, "nope"), dir})

	require.NoError(t, err)
	assert.Len(t, files, 1)
}

func TestScan_NoFolders(t *testing.T) {
	files, err := New(nil).Scan(context.Background(), nil)

	require.NoError(t, err)
	assert.Empty(t, files)
}

func TestScan_RecordCarriesModTime(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.docx")
	touch(t, path)
	mtime := time.Date(2025, 6, 1, 12, 30, 0, 0, time.UTC)
	require.NoError(t, os.Chtimes(path, mtime, mtime))

	files, err := New(nil).Scan(context.Background(), []string{dir})
	require.NoError(t, err)
	require.Len(t, files, 1)

	parsed, err := time.Parse(time.RFC3339, files[0].Record.LastModified)
	require.NoError(t, err)
	assert.True(t, parsed.Equal(mtime))
	assert.Equal(t, int64(1), files[0].Size)
}

func TestScan_SymlinkToDocument(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(t.TempDir(), "real.docx")
	touch(t, target)
	if err := os.Symlink(target, filepath.Join(dir, "link.docx")); err != nil {
		t.Skipf("symlinks unavailable: %v", err)
	}

	files, err := New(nil).Scan(context.Background(), []string{dir})

	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "link.docx")}, filenames(files))
}

// failingFS fails ReadDir with a permission error.
type failingFS struct{ osFS }

func (failingFS) ReadDir(string) ([]os.DirEntry, error) { return nil, fs.ErrPermission }

func TestScan_UnreadableFolder(t *testing.T) {
	s := New(nil)
	s.fsys = failingFS{}

	_, err := s.Scan(context.Background(), []string{"data/qdd"})

	assert.Equal(t, docerrors.ErrCodeFolderUnreadable, docerrors.GetCode(err))
	assert.True(t, errors.Is(err, fs.ErrPermission))
}

func TestScan_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New(nil).Scan(ctx, []string{t.TempDir()})

	assert.ErrorIs(t, err, context.Canceled)
}
