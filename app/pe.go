package app

import (
	"runtime"
	"sync"

	"github.com/fkie-cad/malw"
	"github.com/fkie-cad/malw/correlate"
	"github.com/fkie-cad/malw/fileio"
	"github.com/fkie-cad/malw/output"
	"github.com/fkie-cad/malw/report"

	"github.com/sirupsen/logrus"
	"github.com/targodan/go-errors"
	"github.com/urfave/cli/v2"
)

func workers(c *cli.Context) int {
	n := c.Int("workers")
	if n <= 0 {
		n = runtime.NumCPU()
	}
	return n
}

// inspector extracts the features of files and scans them with yara.
type inspector struct {
	extractor correlate.Extractor
	scanner   *malw.YaraScanner

	mux      sync.Mutex
	failures map[string]error
}

func newInspector(extractor correlate.Extractor, scanner *malw.YaraScanner) *inspector {
	return &inspector{
		extractor: extractor,
		scanner:   scanner,
		failures:  make(map[string]error),
	}
}

func (i *inspector) inspect(file fileio.File) (*output.FileAnalysis, error) {
	path := file.Path()
	analysis, err := i.inspectPath(path)
	if err != nil {
		i.mux.Lock()
		i.failures[path] = err
		i.mux.Unlock()
	}
	return analysis, err
}

func (i *inspector) inspectPath(path string) (*output.FileAnalysis, error) {
	content, err := fileio.Load(path)
	if err != nil {
		return nil, err
	}
	defer content.Close()

	features, err := i.extractor.ExtractBytes(content.Data)
	if err != nil {
		return nil, err
	}
	analysis := &output.FileAnalysis{Features: features}

	if i.scanner != nil {
		analysis.Matches, err = i.scanner.ScanMem(content.Data)
		if err != nil {
			return nil, errors.Newf("yara scan failed, reason: %w", err)
		}
	}
	return analysis, nil
}

func pe(c *cli.Context) error {
	err := initAppAction(c)
	if err != nil {
		return err
	}

	bundle, err := bundleOptions(c)
	if err != nil {
		return err
	}
	scanner, err := yaraScanner(c)
	if err != nil {
		return err
	}
	files, err := inputFiles(c, "")
	if err != nil {
		return err
	}

	extractor, closeExtractor, err := featureExtractor(c)
	if err != nil {
		return err
	}
	defer closeExtractor()

	insp := newInspector(extractor, scanner)
	proc := fileio.NewProcessor(insp.inspect)
	proc.NGoroutines = workers(c)

	logrus.WithFields(logrus.Fields{
		"files":   len(files),
		"workers": proc.NGoroutines,
	}).Info("Starting PE analysis.")

	reporter := output.NewProgressReporter(c.App.Writer)
	errs := reporter.Consume(proc.Process(fileio.IterateFileList(files)))
	logrus.WithFields(logrus.Fields{
		"files":  len(files),
		"failed": reporter.Failed(),
	}).Info("PE analysis done.")

	rprt := report.New()
	results := reporter.Results()
	for _, file := range files {
		if analysis, ok := results[file]; ok {
			rprt.AddFeatures(file, analysis.Features, analysis.Matches)
		} else if err, ok := insp.failures[file]; ok {
			rprt.AddFailure(file, err)
		}
	}

	return errors.NewMultiError(errs, writeReport(c, rprt, bundle))
}
