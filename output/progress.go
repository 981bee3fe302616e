package output

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/fkie-cad/malw"
	"github.com/fkie-cad/malw/fileio"
	"github.com/fkie-cad/malw/peinfo"

	"github.com/fatih/color"
	"github.com/sirupsen/logrus"
	"github.com/targodan/go-errors"
)

// FileAnalysis is the result of inspecting one file of a batch.
type FileAnalysis struct {
	Features *peinfo.Features
	Matches  []*malw.RuleMatch
}

// ProgressReporter prints the results of a batch as they come in and keeps
// the successful ones for a report.
type ProgressReporter struct {
	printer *Printer
	out     io.Writer
	count   int
	failed  int

	results map[string]*FileAnalysis
}

// NewProgressReporter creates a ProgressReporter printing to out.
func NewProgressReporter(out io.Writer) *ProgressReporter {
	return &ProgressReporter{
		printer: NewPrinter(out),
		out:     out,
		results: make(map[string]*FileAnalysis),
	}
}

// Consume prints every progress until the channel is closed and returns the
// collected errors of failed files.
func (r *ProgressReporter) Consume(progress <-chan *fileio.Progress[*FileAnalysis]) error {
	var errs error
	for prog := range progress {
		err := r.receive(prog)
		errs = errors.NewMultiError(errs, err)
	}
	return errs
}

func (r *ProgressReporter) receive(progress *fileio.Progress[*FileAnalysis]) error {
	path := ""
	if progress.File != nil {
		path = progress.File.Path()
	}

	if r.count > 0 {
		r.printer.Separator()
	}
	r.count++

	if progress.Error != nil {
		r.failed++
		fmt.Fprintln(r.out, color.RedString("Can't analyze %s", FormatPath(path, 117)))
		logrus.WithFields(logrus.Fields{
			"file":          path,
			logrus.ErrorKey: progress.Error,
		}).Error("Analysis of file failed.")
		return errors.Newf("could not analyze \"%s\", reason: %w", path, progress.Error)
	}

	r.printer.Features(path, progress.Result.Features)
	if progress.Result.Matches != nil {
		r.printer.Heading("YARA matches:")
		r.printer.RuleMatches(path, progress.Result.Matches)
	}
	r.results[path] = progress.Result

	logrus.WithField("file", path).Info("Analysis of file complete.")
	return nil
}

// Results returns the successful analyses keyed by path.
func (r *ProgressReporter) Results() map[string]*FileAnalysis {
	return r.results
}

// Failed is the number of files that could not be analyzed.
func (r *ProgressReporter) Failed() int {
	return r.failed
}

// FormatPath shortens path to at most maxlen characters, keeping the first
// and the last element and replacing the middle with "...".
func FormatPath(path string, maxlen int) string {
	if maxlen < 0 {
		maxlen = 0
	}
	if len(path) <= maxlen {
		return path
	}
	sep := string(filepath.Separator)
	parts := strings.Split(path, sep)
	if len(parts) > 2 {
		short := parts[0] + sep + "..." + sep + parts[len(parts)-1]
		if len(short) <= maxlen {
			return short
		}
	}
	if maxlen <= 3 {
		return path[len(path)-maxlen:]
	}
	return "..." + path[len(path)-maxlen+3:]
}
