package app

import (
	"fmt"

	"github.com/fkie-cad/malw/pgp"
	"github.com/fkie-cad/malw/report"

	"github.com/fatih/color"
	"github.com/sirupsen/logrus"
	"github.com/targodan/go-errors"
	"github.com/urfave/cli/v2"
)

func validate(c *cli.Context) error {
	err := initAppAction(c)
	if err != nil {
		return err
	}

	if c.NArg() != 1 {
		return errors.New("expected exactly one report")
	}
	path := c.Args().First()

	rdr := report.NewFileReader(path)
	defer rdr.Close()
	if password := c.String("password"); password != "" {
		rdr.SetPassword(password)
	}
	if keyPath := c.String("pgpkey"); keyPath != "" {
		ring, err := pgp.ReadKeyRing(keyPath)
		if err != nil {
			return err
		}
		rdr.SetKeyring(ring)
	}

	err = report.NewValidator().ValidateReport(rdr)
	if err != nil {
		fmt.Fprintln(c.App.Writer, color.RedString("Report \"%s\" is invalid.", path))
		return err
	}

	rprt, err := report.NewParser().Parse(rdr)
	if err != nil {
		return err
	}
	logrus.WithFields(logrus.Fields{
		"path": path,
		"id":   rprt.Meta.ID,
	}).Info("Report validated.")

	fmt.Fprintln(c.App.Writer, color.GreenString("Report \"%s\" is valid.", path))
	fmt.Fprintf(c.App.Writer, "ID: %s\nCreated: %s\nmalw version: %s\nFiles: %d\n",
		rprt.Meta.ID, rprt.Meta.Created.Format(report.TimeFormat), rprt.Meta.MalwVersion, countFiles(rprt))
	return nil
}

func countFiles(rprt *report.Report) int {
	paths := make(map[string]bool)
	for _, f := range rprt.Features {
		paths[f.Path] = true
	}
	for _, s := range rprt.Strings {
		paths[s.Path] = true
	}
	if rprt.Correlation != nil {
		for _, p := range rprt.Correlation.Similarities {
			paths[p.A] = true
			paths[p.B] = true
		}
	}
	return len(paths)
}
