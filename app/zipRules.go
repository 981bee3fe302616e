package app

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fkie-cad/malw"
	"github.com/fkie-cad/malw/archiver"
	"github.com/fkie-cad/malw/fileio"

	"github.com/sirupsen/logrus"
	"github.com/targodan/go-errors"
	"github.com/urfave/cli/v2"
)

const zippedRulesName = "rules" + malw.CompiledRulesFileExtension

func zipRules(c *cli.Context) error {
	err := initAppAction(c)
	if err != nil {
		return err
	}

	if c.NArg() != 1 {
		return errors.New("expected exactly one argument, the rules path")
	}
	rulesPath := c.Args().First()

	outPath := c.String("output")
	if outPath == "" {
		base := filepath.Base(filepath.Clean(rulesPath))
		outPath = strings.TrimSuffix(base, filepath.Ext(base)) + ".zip"
	}
	if filepath.Clean(outPath) == filepath.Clean(rulesPath) {
		return errors.New("output file would overwrite the rules")
	}

	rules, err := malw.LoadYaraRules(rulesPath, c.Bool("rules-recurse"))
	if err != nil {
		return err
	}

	f, err := os.OpenFile(outPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return fileio.NewIOError("create", outPath, err)
	}
	arch := archiver.NewZipArchiver(f, archiver.ZipOptions{Password: malw.RulesZIPPassword})

	w, err := arch.Create(zippedRulesName)
	if err != nil {
		return errors.NewMultiError(err, arch.Close())
	}
	err = rules.Write(w)
	err = errors.NewMultiError(err, w.Close())
	err = errors.NewMultiError(err, arch.Close())
	if err != nil {
		return errors.Newf("could not write rules zip \"%s\", reason: %w", outPath, err)
	}

	logrus.WithFields(logrus.Fields{
		"rules":  rulesPath,
		"output": outPath,
	}).Info("Rules zipped.")
	fmt.Fprintf(c.App.Writer, "Rules written to \"%s\", the password is \"%s\".\n", outPath, malw.RulesZIPPassword)
	return nil
}
