package app

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/fkie-cad/malw"
	"github.com/fkie-cad/malw/fileio"

	"github.com/dustin/go-humanize"
	"github.com/sirupsen/logrus"
	"github.com/targodan/go-errors"
	"github.com/urfave/cli/v2"
)

var errNoPaths = errors.New("expected at least one path")

// sizeGuard skips the files not selected by the filter flags and asks
// before files above the --max-size limit are read.
type sizeGuard struct {
	selection malw.FileFilter
	filter    malw.FileFilter
	limit     uint64
	yes       bool
	answers   *bufio.Reader
	prompt    func(format string, a ...interface{})
}

func newSizeGuard(c *cli.Context) (*sizeGuard, error) {
	limit, err := humanize.ParseBytes(c.String("max-size"))
	if err != nil {
		return nil, errors.Newf("invalid max-size \"%s\", reason: %w", c.String("max-size"), err)
	}
	selection, err := selectionFilter(c)
	if err != nil {
		return nil, err
	}
	return &sizeGuard{
		selection: selection,
		filter:    malw.NewMaxSizeFilter(int64(limit)),
		limit:     limit,
		yes:       c.Bool("yes"),
		answers:   bufio.NewReader(c.App.Reader),
		prompt: func(format string, a ...interface{}) {
			fmt.Fprintf(c.App.Writer, format, a...)
		},
	}, nil
}

// Accept reports whether path may be read. Files within the limit are
// always accepted. The hint is appended to the question.
func (g *sizeGuard) Accept(path, hint string) (bool, error) {
	stat, err := os.Stat(path)
	if err != nil {
		return false, fileio.NewIOError("stat", path, err)
	}
	info := &malw.FileInfo{Path: path, Size: stat.Size()}
	if match := g.selection.Filter(info); !match.Result {
		logrus.WithFields(logrus.Fields{
			"file":   path,
			"reason": match.Reason,
		}).Info("Skipping filtered file.")
		return false, nil
	}

	match := g.filter.Filter(info)
	if match.Result || g.yes {
		return true, nil
	}

	logrus.WithFields(logrus.Fields{
		"file":   path,
		"reason": match.Reason,
	}).Debug("Asking for confirmation.")

	question := fmt.Sprintf("File is bigger than %s.", humanize.IBytes(g.limit))
	if hint != "" {
		question += " " + hint
	}
	g.prompt("%s [y/N]: ", question)

	answer, err := g.answers.ReadString('\n')
	if err != nil && answer == "" {
		// No input available, treat like "no".
		return false, nil
	}
	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "y", "yes":
		return true, nil
	}
	return false, nil
}

func selectionFilter(c *cli.Context) (malw.FileFilter, error) {
	var minSize, extensions malw.FileFilter
	if s := c.String("filter-size-min"); s != "" {
		size, err := humanize.ParseBytes(s)
		if err != nil {
			return nil, errors.Newf("invalid filter-size-min \"%s\", reason: %w", s, err)
		}
		minSize = malw.NewMinSizeFilter(int64(size))
	}
	if exts := c.StringSlice("file-extensions"); len(exts) > 0 {
		extensions = malw.NewExtensionFilter(exts)
	}
	return malw.NewAndFilter(minSize, extensions), nil
}

// inputFiles expands the path arguments and drops the large files the user
// did not confirm.
func inputFiles(c *cli.Context, hint string) ([]string, error) {
	if c.NArg() == 0 {
		return nil, errNoPaths
	}

	files, err := fileio.Expand(c.Context, c.Args().Slice(), fileio.ExpandOptions{
		Recurse: c.Bool("recurse"),
	})
	if err != nil {
		return nil, err
	}
	return confirmed(c, files, hint)
}

func confirmed(c *cli.Context, files []string, hint string) ([]string, error) {
	guard, err := newSizeGuard(c)
	if err != nil {
		return nil, err
	}

	accepted := make([]string, 0, len(files))
	for _, file := range files {
		ok, err := guard.Accept(file, hint)
		if err != nil {
			return nil, err
		}
		if !ok {
			logrus.WithField("file", file).Info("Skipping file, not confirmed.")
			continue
		}
		accepted = append(accepted, file)
	}
	return accepted, nil
}

// singleFile returns the only argument, which must be a regular file.
func singleFile(c *cli.Context) (string, error) {
	if c.NArg() != 1 {
		return "", errors.New("expected exactly one file")
	}
	path := c.Args().First()
	stat, err := os.Stat(path)
	if err != nil {
		return "", fileio.NewIOError("stat", path, err)
	}
	if stat.IsDir() {
		return "", errors.Newf("\"%s\" is a directory, expected a file", path)
	}
	return path, nil
}
