package app

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/fkie-cad/malw/server"

	"github.com/dustin/go-humanize"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/targodan/go-errors"
	"github.com/urfave/cli/v2"
)

func serve(c *cli.Context) error {
	err := initAppAction(c)
	if err != nil {
		return err
	}

	if c.Bool("verbose") {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	maxUpload, err := humanize.ParseBytes(c.String("max-upload"))
	if err != nil {
		return errors.Newf("invalid max-upload \"%s\", reason: %w", c.String("max-upload"), err)
	}
	scanner, err := yaraScanner(c)
	if err != nil {
		return err
	}
	extractor, closeExtractor, err := featureExtractor(c)
	if err != nil {
		return err
	}
	defer closeExtractor()

	opts := []server.Option{
		server.WithExtractor(extractor),
		server.WithWorkers(workers(c)),
		server.WithMaxUploadSize(int64(maxUpload)),
	}
	if scanner != nil {
		opts = append(opts, server.WithYaraScanner(scanner))
	}
	srv := server.New(opts...)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt)
	defer signal.Stop(sig)

	addr := c.String("listen")
	errChan := make(chan error, 1)
	go func() {
		errChan <- srv.Start(addr)
	}()
	fmt.Fprintf(c.App.Writer, "Listening on %s, press CTRL+C to stop.\n", addr)

	select {
	case err = <-errChan:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	case <-sig:
	}

	logrus.Info("Received interrupt, shutting down.")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err = srv.Shutdown(ctx)
	if err != nil {
		return errors.Newf("could not shut down server gracefully, reason: %w", err)
	}
	if err = <-errChan; err != http.ErrServerClosed {
		return err
	}
	return nil
}
