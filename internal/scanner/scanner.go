package scanner

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	docerrors "github.com/Aman-CERP/docqa/internal/errors"
	"github.com/Aman-CERP/docqa/internal/extract"
)

// Scanner lists corpus documents.
type Scanner struct {
	logger *slog.Logger
	fsys   statFS
}

// statFS is the subset of the OS file system used by the scanner.
type statFS interface {
	ReadDir(name string) ([]os.DirEntry, error)
	Stat(name string) (os.FileInfo, error)
}

type osFS struct{}

func (osFS) ReadDir(name string) ([]os.DirEntry, error) { return os.ReadDir(name) }
func (osFS) Stat(name string) (os.FileInfo, error)      { return os.Stat(name) }

// New creates a Scanner. A nil logger uses slog.Default().
func New(logger *slog.Logger) *Scanner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scanner{logger: logger, fsys: osFS{}}
}

// Scan returns the supported documents directly inside each folder.
// Folders are visited in the given order and entries sorted by name within
// each folder. Missing folders are skipped; a folder that exists but cannot
// be listed is an error.
func (s *Scanner) Scan(ctx context.Context, folders []string) ([]File, error) {
	var files []File

	for _, folder := range folders {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		entries, err := s.fsys.ReadDir(folder)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				s.logger.Debug("corpus folder missing, skipping", slog.String("folder", folder))
				continue
			}
			return nil, docerrors.New(docerrors.ErrCodeFolderUnreadable,
				fmt.Sprintf("cannot list corpus folder %s", folder), err).
				WithDetail("folder", folder)
		}

		sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

		matched := 0
		for _, entry := range entries {
			if !extract.Supported(entry.Name()) {
				continue
			}
			path := filepath.Join(folder, entry.Name())

			info, ok := s.regularFile(path, entry)
			if !ok {
				continue
			}
			files = append(files, File{
				Record: FileRecord{
					Filename:     path,
					LastModified: FormatModTime(info.ModTime()),
				},
				Path:    path,
				Size:    info.Size(),
				ModTime: info.ModTime(),
			})
			matched++
		}

		s.logger.Debug("scanned corpus folder",
			slog.String("folder", folder),
			slog.Int("entries", len(entries)),
			slog.Int("documents", matched))
	}

	return files, nil
}

// regularFile resolves symlinks and reports whether path is a regular file.
func (s *Scanner) regularFile(path string, entry os.DirEntry) (os.FileInfo, bool) {
	if entry.Type()&fs.ModeSymlink == 0 && !entry.Type().IsRegular() {
		return nil, false
	}
	info, err := s.fsys.Stat(path)
	if err != nil {
		s.logger.Debug("skipping unreadable entry", slog.String("path", path), slog.String("error", err.Error()))
		return nil, false
	}
	return info, info.Mode().IsRegular()
}
