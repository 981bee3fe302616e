package app

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/fkie-cad/malw"
	"github.com/fkie-cad/malw/correlate"
	"github.com/fkie-cad/malw/featurecache"
	"github.com/fkie-cad/malw/peinfo"
	"github.com/fkie-cad/malw/pgp"
	"github.com/fkie-cad/malw/report"
	"github.com/fkie-cad/malw/sigdb"

	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
)

func nop() error { return nil }

// featureExtractor builds the extractor selected by --signatures and
// --cache-dir. The returned function releases the cache.
func featureExtractor(c *cli.Context) (correlate.Extractor, func() error, error) {
	db := sigdb.Default()
	if path := c.String("signatures"); path != "" {
		var err error
		db, err = sigdb.Load(path)
		if err != nil {
			return nil, nil, err
		}
		logrus.WithFields(logrus.Fields{
			"path":       path,
			"signatures": db.Len(),
		}).Info("Signature database loaded.")
	}
	extractor := peinfo.NewExtractor(
		peinfo.WithSignatures(db),
		peinfo.WithSectionSignatures(c.Bool("section-signatures")),
	)

	dir := c.String("cache-dir")
	if dir == "" {
		return extractor, nop, nil
	}
	cache, err := featurecache.Open(dir, extractor)
	if err != nil {
		return nil, nil, err
	}
	logrus.WithField("path", dir).Debug("Feature cache opened.")
	return cache, cache.Close, nil
}

// yaraScanner loads the rules given with --rules. It returns nil if no
// rules are configured.
func yaraScanner(c *cli.Context) (*malw.YaraScanner, error) {
	path := c.String("rules")
	if path == "" {
		return nil, nil
	}
	rules, err := malw.LoadYaraRules(path, c.Bool("rules-recurse"))
	if err != nil {
		return nil, err
	}
	logrus.WithField("path", path).Info("Yara rules loaded.")
	return malw.NewYaraScanner(rules)
}

func bundleOptions(c *cli.Context) (report.BundleOptions, error) {
	opts := report.BundleOptions{
		Password:    c.String("password"),
		ZIPPassword: c.String("zip-password"),
	}
	if path := c.String("pgpkey"); path != "" {
		ring, err := pgp.ReadKeyRing(path)
		if err != nil {
			return opts, err
		}
		opts.Keyring = ring
	}
	return opts, opts.Validate()
}

// reportPath returns the --report path with the extension matching the
// bundle options, or "" if no report was requested.
func reportPath(c *cli.Context, opts report.BundleOptions) string {
	path := c.String("report")
	if path == "" {
		return ""
	}
	ext := opts.SuggestedFileExtension()
	if !strings.HasSuffix(path, ext) {
		path += ext
	}
	return path
}

// writeReport writes rprt if --report is set.
func writeReport(c *cli.Context, rprt *report.Report, opts report.BundleOptions) error {
	path := reportPath(c, opts)
	if path == "" {
		return nil
	}
	if err := report.WriteFile(path, rprt, opts); err != nil {
		return err
	}
	logrus.WithFields(logrus.Fields{
		"path": path,
		"id":   rprt.Meta.ID,
	}).Info("Report written.")
	fmt.Fprintf(c.App.ErrWriter, "Report written to \"%s\".\n", filepath.Clean(path))
	return nil
}
