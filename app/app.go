// Package app implements the malw command line interface.
package app

import (
	"fmt"
	"os"

	"github.com/fkie-cad/malw/output"
	"github.com/fkie-cad/malw/version"

	"github.com/google/shlex"
	"github.com/sirupsen/logrus"
	"github.com/targodan/go-errors"
	"github.com/urfave/cli/v2"
	"github.com/urfave/cli/v2/altsrc"
)

// OptsEnvVar holds default arguments that are inserted before the ones
// given on the command line.
const OptsEnvVar = "MALW_OPTS"

var onExit func()

func initAppAction(c *cli.Context) error {
	lvl, err := logrus.ParseLevel(c.String("log-level"))
	if err != nil {
		return err
	}
	logrus.SetLevel(lvl)
	switch c.String("log-path") {
	case "-":
		logrus.SetOutput(os.Stdout)
	case "--":
		logrus.SetOutput(os.Stderr)
	default:
		logfile, err := os.OpenFile(c.String("log-path"), os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0666)
		if err != nil {
			return errors.Newf("could not open logfile for writing, reason: %w", err)
		}
		logrus.SetOutput(logfile)
		logrus.StandardLogger().ExitFunc = func(code int) {
			if onExit != nil {
				onExit()
			}
			os.Exit(code)
		}
		onExit = func() {
			logfile.Close()
		}
	}
	logrus.WithField("arguments", os.Args).Debug("Program started.")
	return nil
}

func printer(c *cli.Context) *output.Printer {
	return output.NewPrinter(c.App.Writer)
}

// withConfig loads the values of flags from the YAML file named by
// --config, if any. Values given on the command line take precedence.
func withConfig(flags []cli.Flag) cli.BeforeFunc {
	load := altsrc.InitInputSourceWithContext(flags, altsrc.NewYamlSourceFromFlagFunc("config"))
	return func(c *cli.Context) error {
		if c.String("config") == "" {
			return nil
		}
		return load(c)
	}
}

func command(cmd *cli.Command) *cli.Command {
	cmd.Before = withConfig(cmd.Flags)
	return cmd
}

func recurseFlag() cli.Flag {
	return altsrc.NewBoolFlag(&cli.BoolFlag{
		Name:    "recurse",
		Aliases: []string{"r"},
		Usage:   "descend into subdirectories of directory arguments",
	})
}

func workersFlag() cli.Flag {
	return altsrc.NewIntFlag(&cli.IntFlag{
		Name:    "workers",
		Aliases: []string{"j"},
		Usage:   "number of files processed in parallel, 0 for the number of CPUs",
		EnvVars: []string{"MALW_WORKERS"},
	})
}

func signatureFlags() []cli.Flag {
	return []cli.Flag{
		altsrc.NewStringFlag(&cli.StringFlag{
			Name:    "signatures",
			Usage:   "path to a signature database in userdb format, the built-in database is used by default",
			EnvVars: []string{"MALW_SIGNATURES"},
		}),
		altsrc.NewBoolFlag(&cli.BoolFlag{
			Name:  "section-signatures",
			Usage: "also match signatures that are not ep_only at every section start",
		}),
	}
}

func cacheFlag() cli.Flag {
	return altsrc.NewStringFlag(&cli.StringFlag{
		Name:    "cache-dir",
		Usage:   "directory of a persistent cache for extracted PE features",
		EnvVars: []string{"MALW_CACHE_DIR"},
	})
}

func rulesFlags() []cli.Flag {
	return []cli.Flag{
		altsrc.NewStringFlag(&cli.StringFlag{
			Name:    "rules",
			Aliases: []string{"C"},
			Usage:   "path to yara rules, can be a file, a directory or a zip, compiled or uncompiled",
			EnvVars: []string{"MALW_RULES"},
		}),
		altsrc.NewBoolFlag(&cli.BoolFlag{
			Name:  "rules-recurse",
			Usage: "recurse into subdirectories of a rules directory",
		}),
	}
}

func reportFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:  "report",
			Usage: "write a report bundle to the given file",
		},
		&cli.StringFlag{
			Name:    "password",
			Usage:   "encrypt the report with the given password (pgp)",
			EnvVars: []string{"MALW_REPORT_PASSWORD"},
		},
		altsrc.NewStringFlag(&cli.StringFlag{
			Name:  "pgpkey",
			Usage: "encrypt the report with the given public key file",
		}),
		&cli.StringFlag{
			Name:  "zip-password",
			Usage: "write the report as an AES encrypted zip with the given password",
		},
	}
}

func filterFlags() []cli.Flag {
	return []cli.Flag{
		altsrc.NewStringSliceFlag(&cli.StringSliceFlag{
			Name:    "file-extensions",
			Aliases: []string{"e"},
			Usage:   "only inspect files with one of these extensions, can be set multiple times",
		}),
		altsrc.NewStringFlag(&cli.StringFlag{
			Name:  "filter-size-min",
			Usage: "skip files smaller than this, e.g. \"1KiB\"",
		}),
	}
}

func flags(groups ...[]cli.Flag) []cli.Flag {
	var all []cli.Flag
	for _, g := range groups {
		all = append(all, g...)
	}
	return all
}

// NewApp creates the malw command line application.
func NewApp() *cli.App {
	globalFlags := []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Usage:   "path to a YAML file providing default flag values",
			EnvVars: []string{"MALW_CONFIG"},
		},
		altsrc.NewStringFlag(&cli.StringFlag{
			Name:    "log-level",
			Aliases: []string{"l"},
			Usage:   "one of [trace, debug, info, warn, error, fatal, panic]",
			Value:   "warn",
			EnvVars: []string{"MALW_LOG_LEVEL"},
		}),
		altsrc.NewStringFlag(&cli.StringFlag{
			Name:    "log-path",
			Usage:   "path to the logfile, or \"-\" for stdout, or \"--\" for stderr",
			Value:   "--",
			EnvVars: []string{"MALW_LOG_PATH"},
		}),
		altsrc.NewStringFlag(&cli.StringFlag{
			Name:    "max-size",
			Usage:   "ask for confirmation before reading files larger than this, e.g. \"100MiB\"",
			Value:   "100MiB",
			EnvVars: []string{"MALW_MAX_SIZE"},
		}),
		altsrc.NewBoolFlag(&cli.BoolFlag{
			Name:    "yes",
			Aliases: []string{"y"},
			Usage:   "don't ask before reading large files",
		}),
	}

	return &cli.App{
		Name:                 "malw",
		HelpName:             "malw",
		Usage:                "a simple malware analyzer",
		Description:          "Static triage of untrusted binaries: checksums, file types, strings, PE structure and cross-sample correlation.",
		Version:              version.MalwVersion.String(),
		EnableBashCompletion: true,
		Flags:                globalFlags,
		Before:               withConfig(globalFlags),
		Commands: []*cli.Command{
			command(&cli.Command{
				Name:      "hashes",
				Usage:     "prints the checksums of files",
				ArgsUsage: "<path> [paths...]",
				Action:    hashes,
				Flags: append([]cli.Flag{
					altsrc.NewStringFlag(&cli.StringFlag{
						Name:    "hash-function",
						Aliases: []string{"H"},
						Usage:   "one of [md5, sha1, sha256, all]",
						Value:   "all",
					}),
					recurseFlag(),
				}, filterFlags()...),
			}),
			command(&cli.Command{
				Name:      "filetypes",
				Usage:     "prints the file types of files",
				ArgsUsage: "<path> [paths...]",
				Action:    filetypes,
				Flags:     flags([]cli.Flag{recurseFlag()}, filterFlags()),
			}),
			command(&cli.Command{
				Name:      "strings",
				Usage:     "prints the printable strings of a file and classifies them",
				ArgsUsage: "<file>",
				Action:    stringsCmd,
				Flags: flags([]cli.Flag{
					altsrc.NewIntFlag(&cli.IntFlag{
						Name:  "min-chars",
						Usage: "minimum string length in characters",
						Value: 4,
					}),
					&cli.Int64Flag{
						Name:  "max-bytes",
						Usage: "maximum number of bytes to scan",
					},
					&cli.Int64Flag{
						Name:  "offset",
						Usage: "file offset at which to start scanning",
					},
					altsrc.NewStringFlag(&cli.StringFlag{
						Name:  "radix",
						Usage: "print the offset of each string, one of [d, o, x]",
					}),
					altsrc.NewBoolFlag(&cli.BoolFlag{
						Name:    "only-interesting",
						Aliases: []string{"i"},
						Usage:   "only print classified strings",
					}),
					altsrc.NewStringFlag(&cli.StringFlag{
						Name:  "encoding",
						Usage: "one of [ascii, wide, all]",
						Value: "all",
					}),
				}, reportFlags()),
			}),
			command(&cli.Command{
				Name:      "pe",
				Usage:     "prints the PE information of files",
				ArgsUsage: "<path> [paths...]",
				Action:    pe,
				Flags:     flags(signatureFlags(), []cli.Flag{cacheFlag(), workersFlag(), recurseFlag()}, filterFlags(), rulesFlags(), reportFlags()),
			}),
			command(&cli.Command{
				Name:      "compare",
				Usage:     "compares files by fuzzy hash, imphash and section hashes",
				ArgsUsage: "<path> [paths...]",
				Action:    compare,
				Flags:     flags(signatureFlags(), []cli.Flag{cacheFlag(), workersFlag(), recurseFlag()}, filterFlags(), reportFlags()),
			}),
			command(&cli.Command{
				Name:      "overview",
				Usage:     "runs most of the commands with default values on a file",
				ArgsUsage: "<file>",
				Action:    overview,
				Flags:     flags(signatureFlags(), rulesFlags(), reportFlags()),
			}),
			command(&cli.Command{
				Name:      "validate",
				Usage:     "validates a report bundle against its schemas",
				ArgsUsage: "<report>",
				Action:    validate,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "password",
						Usage: "password of a password encrypted report, of the private key or of a zip report",
					},
					&cli.StringFlag{
						Name:  "pgpkey",
						Usage: "private key file to decrypt the report",
					},
				},
			}),
			command(&cli.Command{
				Name:      "zip-rules",
				Usage:     "compiles yara rules into an encrypted zip",
				ArgsUsage: "<rules>",
				Action:    zipRules,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "output",
						Aliases: []string{"o"},
						Usage:   "name of output file, by default the name is derived from the input name",
					},
					&cli.BoolFlag{
						Name:  "rules-recurse",
						Usage: "recurse into subdirectories of a rules directory",
					},
				},
			}),
			command(&cli.Command{
				Name:   "serve",
				Usage:  "serves the analysis functions over HTTP",
				Action: serve,
				Flags: flags([]cli.Flag{
					altsrc.NewStringFlag(&cli.StringFlag{
						Name:    "listen",
						Usage:   "address to listen on",
						Value:   "127.0.0.1:8080",
						EnvVars: []string{"MALW_LISTEN"},
					}),
					altsrc.NewStringFlag(&cli.StringFlag{
						Name:  "max-upload",
						Usage: "maximum size of an uploaded file",
						Value: "100MiB",
					}),
					altsrc.NewBoolFlag(&cli.BoolFlag{
						Name:    "verbose",
						Aliases: []string{"v"},
						Usage:   "run the HTTP framework in debug mode",
					}),
					cacheFlag(),
					workersFlag(),
				}, signatureFlags(), rulesFlags()),
			}),
		},
	}
}

// withDefaultOpts inserts the arguments from OptsEnvVar after the program
// name.
func withDefaultOpts(args []string) ([]string, error) {
	opts := os.Getenv(OptsEnvVar)
	if opts == "" || len(args) == 0 {
		return args, nil
	}
	split, err := shlex.Split(opts)
	if err != nil {
		return nil, errors.Newf("could not parse %s, reason: %w", OptsEnvVar, err)
	}
	all := make([]string, 0, len(args)+len(split))
	all = append(all, args[0])
	all = append(all, split...)
	return append(all, args[1:]...), nil
}

// RunApp runs the application and exits on error.
func RunApp(args []string) {
	args, err := withDefaultOpts(args)
	if err == nil {
		err = NewApp().Run(args)
	}
	if err != nil {
		fmt.Println(err)
		logrus.Error(err)
		logrus.Fatal("Aborting.")
	}
	if onExit != nil {
		onExit()
	}
}
