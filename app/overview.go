package app

import (
	"bytes"
	"fmt"
	"os"

	"github.com/fkie-cad/malw"
	"github.com/fkie-cad/malw/bytescan"
	"github.com/fkie-cad/malw/digest"
	"github.com/fkie-cad/malw/fileio"
	"github.com/fkie-cad/malw/ioc"
	"github.com/fkie-cad/malw/output"
	"github.com/fkie-cad/malw/peinfo"
	"github.com/fkie-cad/malw/report"
	"github.com/fkie-cad/malw/sniff"

	"github.com/fatih/color"
	"github.com/sirupsen/logrus"
	"github.com/targodan/go-errors"
	"github.com/urfave/cli/v2"
)

func overview(c *cli.Context) error {
	err := initAppAction(c)
	if err != nil {
		return err
	}

	path, err := singleFile(c)
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
	files, err := confirmed(c, []string{path}, "Are you sure you want an overview of it?")
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return nil
	}

	stat, err := os.Stat(path)
	if err != nil {
		return fileio.NewIOError("stat", path, err)
	}
	content, err := fileio.Load(path)
	if err != nil {
		return err
	}
	defer content.Close()
	data := content.Data

	p := printer(c)
	p.FileHeader(path, stat.Size())

	p.Heading("Checksums:")
	sums, err := digest.Sum(bytes.NewReader(data), digest.AllAlgorithms...)
	if err != nil {
		return err
	}
	p.Checksums("", sums)

	p.Heading("Filetype:")
	p.FileType("", sniff.Bytes(data))

	p.Heading("Interesting Strings?")
	strs, err := ioc.NewClassifier().Filter(bytescan.Scan(data, bytescan.Options{}), true).All()
	if err != nil {
		return err
	}
	p.Strings(strs, output.Hex)

	rprt := report.New()
	rprt.AddStrings(path, strs)

	p.Heading("PE information:")
	extractor, closeExtractor, err := featureExtractor(c)
	if err != nil {
		return err
	}
	defer closeExtractor()

	features, err := extractor.ExtractBytes(data)
	if errors.Is(err, peinfo.ErrMalformedContainer) {
		logrus.WithFields(logrus.Fields{
			"file":          path,
			logrus.ErrorKey: err,
		}).Info("File is not a valid PE file.")
		fmt.Fprintln(c.App.Writer, color.RedString("Not a PE file."))
		rprt.AddFailure(path, err)
		return writeReport(c, rprt, bundle)
	}
	if err != nil {
		return err
	}
	p.Features("", features)

	var matches []*malw.RuleMatch
	if scanner != nil {
		p.Heading("YARA matches:")
		matches, err = scanner.ScanMem(data)
		if err != nil {
			return errors.Newf("yara scan failed, reason: %w", err)
		}
		p.RuleMatches(path, matches)
	}
	rprt.AddFeatures(path, features, matches)

	return writeReport(c, rprt, bundle)
}
