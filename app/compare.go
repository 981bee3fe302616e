package app

import (
	"os"
	"os/signal"

	"github.com/fkie-cad/malw/correlate"
	"github.com/fkie-cad/malw/report"

	"github.com/sirupsen/logrus"
	"github.com/targodan/go-errors"
	"github.com/urfave/cli/v2"
)

func compare(c *cli.Context) error {
	err := initAppAction(c)
	if err != nil {
		return err
	}

	bundle, err := bundleOptions(c)
	if err != nil {
		return err
	}
	files, err := inputFiles(c, "")
	if err != nil {
		return err
	}
	if len(files) < 2 {
		return errors.New("expected at least two files to compare")
	}

	extractor, closeExtractor, err := featureExtractor(c)
	if err != nil {
		return err
	}
	defer closeExtractor()

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt)
	defer stop()

	engine := correlate.NewEngine(
		correlate.WithExtractor(extractor),
		correlate.WithWorkers(workers(c)),
	)
	result, err := engine.Correlate(ctx, files)
	if err != nil {
		return errors.Newf("comparison aborted, reason: %w", err)
	}
	for _, failure := range result.Failures {
		logrus.WithFields(logrus.Fields{
			"file":          failure.Path,
			logrus.ErrorKey: failure.Message,
		}).Warn("File excluded from comparison.")
	}

	printer(c).Correlation(result)

	rprt := report.New()
	rprt.Correlation = result
	return writeReport(c, rprt, bundle)
}
