package fileio

import (
	"context"
	"io"
	"os"
	"sort"

	"github.com/sirupsen/logrus"
	"github.com/targodan/go-errors"
)

// ExpandOptions controls how directory arguments are turned into files.
type ExpandOptions struct {
	// Recurse descends into subdirectories. Otherwise only the direct
	// children of a directory are used.
	Recurse bool
	// Extensions restricts files found in directories to the given
	// extensions. Explicitly named files are never filtered.
	Extensions []string
}

// Expand turns a list of files and directories into a sorted set of
// distinct file paths.
func Expand(ctx context.Context, paths []string, opts ExpandOptions) ([]string, error) {
	exts := normalizeExtensions(opts.Extensions)
	seen := make(map[string]bool)
	files := make([]string, 0, len(paths))
	add := func(path string) {
		if !seen[path] {
			seen[path] = true
			files = append(files, path)
		}
	}

	for _, path := range paths {
		stat, err := os.Stat(path)
		if err != nil {
			return nil, NewIOError("stat", path, err)
		}
		if !stat.IsDir() {
			add(path)
			continue
		}

		if !opts.Recurse {
			children, err := ListDir(path)
			if err != nil {
				return nil, err
			}
			for _, child := range children {
				if doesExtensionMatch(exts, child) {
					add(child)
				}
			}
			continue
		}

		err = walk(ctx, path, exts, add)
		if err != nil {
			return nil, err
		}
	}

	sort.Strings(files)
	return files, nil
}

func walk(ctx context.Context, root string, exts []string, add func(string)) error {
	it, err := IteratePath(ctx, root, exts)
	if err != nil {
		return err
	}
	defer it.Close()

	for {
		f, err := it.Next()
		if err == io.EOF {
			break
		}
		if errors.Is(err, ErrSkipped) {
			continue
		}
		if err != nil {
			logrus.WithFields(logrus.Fields{
				"path":          f.Path(),
				logrus.ErrorKey: err,
			}).Warn("Could not enumerate directory, skipping.")
			continue
		}
		add(f.Path())
	}
	return ctx.Err()
}
