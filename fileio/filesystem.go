package fileio

import (
	"context"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/targodan/go-errors"
)

// WalkBuffer is the number of paths the directory walker may run ahead of
// the consumer.
var WalkBuffer = 8

// ErrSkipped is returned together with files that do not have one of the
// requested extensions.
var ErrSkipped = errors.New("skipped")

type walkEntry struct {
	file File
	err  error
}

type walkIterator struct {
	root string
	exts []string

	ctx    context.Context
	cancel context.CancelFunc
	once   sync.Once

	entries chan *walkEntry
}

// IteratePath walks the directory at path recursively in the background.
// Files with one of the given extensions are yielded, all others come with
// ErrSkipped. Without extensions every file is yielded. Unreadable
// directories are reported as IOError and skipped.
func IteratePath(ctx context.Context, path string, extensions []string) (Iterator, error) {
	stat, err := os.Stat(path)
	if err != nil {
		return nil, NewIOError("stat", path, err)
	}
	if !stat.IsDir() {
		return nil, errors.Newf("\"%s\" is not a directory", path)
	}

	it := &walkIterator{
		root:    path,
		exts:    normalizeExtensions(extensions),
		entries: make(chan *walkEntry, WalkBuffer),
	}
	it.ctx, it.cancel = context.WithCancel(ctx)

	go it.walk()

	return it, nil
}

func normalizeExtensions(extensions []string) []string {
	exts := make([]string, len(extensions))
	for i, ext := range extensions {
		exts[i] = strings.ToLower(strings.TrimPrefix(ext, "."))
	}
	return exts
}

func doesExtensionMatch(exts []string, path string) bool {
	if len(exts) == 0 {
		return true
	}
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
	for _, e := range exts {
		if ext == e {
			return true
		}
	}
	return false
}

func (it *walkIterator) emit(entry *walkEntry) error {
	select {
	case it.entries <- entry:
		return nil
	case <-it.ctx.Done():
		return it.ctx.Err()
	}
}

func (it *walkIterator) walk() {
	defer close(it.entries)

	filepath.WalkDir(it.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return it.emit(&walkEntry{
				file: NewFile(path),
				err:  NewIOError("read directory", path, err),
			})
		}
		if d.IsDir() {
			if path != it.root && !doScanDir(path) {
				return filepath.SkipDir
			}
			return nil
		}

		entry := &walkEntry{file: NewFile(path)}
		if !doesExtensionMatch(it.exts, path) {
			entry.err = ErrSkipped
		}
		return it.emit(entry)
	})
}

// Next blocks until the next file is available.
func (it *walkIterator) Next() (File, error) {
	entry, ok := <-it.entries
	if !ok {
		return nil, io.EOF
	}
	return entry.file, entry.err
}

// Close stops the walk.
func (it *walkIterator) Close() error {
	it.once.Do(it.cancel)
	return nil
}

type fileListIterator struct {
	mux   sync.Mutex
	files []string
}

// IterateFileList returns an Iterator over the given files. It is safe for
// concurrent use.
func IterateFileList(files []string) Iterator {
	return &fileListIterator{files: files}
}

func (it *fileListIterator) Next() (File, error) {
	it.mux.Lock()
	defer it.mux.Unlock()

	if len(it.files) == 0 {
		return nil, io.EOF
	}
	file := NewFile(it.files[0])
	it.files = it.files[1:]
	return file, nil
}

func (it *fileListIterator) Close() error {
	return nil
}

// ListDir returns the sorted paths of all regular files directly inside dir.
// Subdirectories are ignored.
func ListDir(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, NewIOError("read directory", dir, err)
	}

	files := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		files = append(files, filepath.Join(dir, entry.Name()))
	}
	sort.Strings(files)
	return files, nil
}
