package app

import (
	"github.com/fkie-cad/malw/digest"
	"github.com/fkie-cad/malw/sniff"

	"github.com/sirupsen/logrus"
	"github.com/targodan/go-errors"
	"github.com/urfave/cli/v2"
)

func hashes(c *cli.Context) error {
	err := initAppAction(c)
	if err != nil {
		return err
	}

	algorithms, err := digest.ParseAlgorithms(c.String("hash-function"))
	if err != nil {
		return err
	}
	files, err := inputFiles(c, "")
	if err != nil {
		return err
	}

	p := printer(c)
	var errs error
	for i, file := range files {
		if i > 0 {
			p.Separator()
		}
		sums, err := digest.File(file, algorithms...)
		if err != nil {
			logrus.WithFields(logrus.Fields{
				"file":          file,
				logrus.ErrorKey: err,
			}).Error("Could not hash file.")
			errs = errors.NewMultiError(errs, err)
			continue
		}
		p.Checksums(file, sums)
	}
	return errs
}

func filetypes(c *cli.Context) error {
	err := initAppAction(c)
	if err != nil {
		return err
	}

	files, err := inputFiles(c, "")
	if err != nil {
		return err
	}

	p := printer(c)
	var errs error
	for i, file := range files {
		if i > 0 {
			p.Separator()
		}
		fileType, err := sniff.File(file)
		if err != nil {
			logrus.WithFields(logrus.Fields{
				"file":          file,
				logrus.ErrorKey: err,
			}).Error("Could not determine file type.")
			errs = errors.NewMultiError(errs, err)
			continue
		}
		p.FileType(file, fileType)
	}
	return errs
}
