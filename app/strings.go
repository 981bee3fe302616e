package app

import (
	"github.com/fkie-cad/malw/bytescan"
	"github.com/fkie-cad/malw/ioc"
	"github.com/fkie-cad/malw/output"
	"github.com/fkie-cad/malw/report"

	"github.com/urfave/cli/v2"
)

const stringsHint = "Are you sure you want to run strings? (You can use --max-bytes and/or --offset instead)"

func stringsCmd(c *cli.Context) error {
	err := initAppAction(c)
	if err != nil {
		return err
	}

	path, err := singleFile(c)
	if err != nil {
		return err
	}
	encodings, err := bytescan.ParseEncoding(c.String("encoding"))
	if err != nil {
		return err
	}
	var radix output.Radix
	if r := c.String("radix"); r != "" {
		radix, err = output.ParseRadix(r)
		if err != nil {
			return err
		}
	}
	bundle, err := bundleOptions(c)
	if err != nil {
		return err
	}

	opts := bytescan.Options{
		MinChars:  c.Int("min-chars"),
		Offset:    c.Int64("offset"),
		MaxBytes:  c.Int64("max-bytes"),
		Encodings: encodings,
	}
	if opts.Offset == 0 && opts.MaxBytes == 0 {
		files, err := confirmed(c, []string{path}, stringsHint)
		if err != nil {
			return err
		}
		if len(files) == 0 {
			return nil
		}
	}

	it, err := bytescan.ScanFile(path, opts)
	if err != nil {
		return err
	}
	strs, err := ioc.NewClassifier().Filter(it, c.Bool("only-interesting")).All()
	if err != nil {
		return err
	}
	printer(c).Strings(strs, radix)

	rprt := report.New()
	rprt.AddStrings(path, strs)
	return writeReport(c, rprt, bundle)
}
