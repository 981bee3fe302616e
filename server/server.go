// Package server exposes the inspection engine over HTTP.
package server

import (
	"context"
	"io"
	"mime/multipart"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/fkie-cad/malw"
	"github.com/fkie-cad/malw/bytescan"
	"github.com/fkie-cad/malw/correlate"
	"github.com/fkie-cad/malw/ioc"
	"github.com/fkie-cad/malw/peinfo"
	"github.com/fkie-cad/malw/report"
	"github.com/fkie-cad/malw/version"

	"github.com/dustin/go-humanize"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/targodan/go-errors"
)

// DefaultMaxUploadSize limits the size of a single uploaded file.
const DefaultMaxUploadSize = 100 * 1024 * 1024

var errTooLarge = errors.New("uploaded file is too large")

// Server handles the /v1 API.
type Server struct {
	router     *gin.Engine
	httpServer *http.Server

	extractor  correlate.Extractor
	classifier *ioc.Classifier
	scanner    *malw.YaraScanner
	workers    int
	maxUpload  int64
}

// Option configures a Server.
type Option func(s *Server)

// WithExtractor replaces the PE feature extractor.
func WithExtractor(extractor correlate.Extractor) Option {
	return func(s *Server) {
		s.extractor = extractor
	}
}

// WithClassifier replaces the string classifier.
func WithClassifier(classifier *ioc.Classifier) Option {
	return func(s *Server) {
		s.classifier = classifier
	}
}

// WithYaraScanner enables yara matching of uploads to /v1/pe.
func WithYaraScanner(scanner *malw.YaraScanner) Option {
	return func(s *Server) {
		s.scanner = scanner
	}
}

// WithWorkers sets the parallelism of /v1/compare.
func WithWorkers(n int) Option {
	return func(s *Server) {
		s.workers = n
	}
}

// WithMaxUploadSize limits the size of each uploaded file.
func WithMaxUploadSize(size int64) Option {
	return func(s *Server) {
		s.maxUpload = size
	}
}

// New creates a Server. The gin mode is left to the caller.
func New(opts ...Option) *Server {
	s := &Server{
		maxUpload: DefaultMaxUploadSize,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.extractor == nil {
		s.extractor = peinfo.NewExtractor()
	}
	if s.classifier == nil {
		s.classifier = ioc.NewClassifier()
	}

	router := gin.New()
	router.Use(gin.Recovery(), logRequests)
	router.MaxMultipartMemory = 32 << 20

	v1 := router.Group("/v1")
	v1.GET("/version", s.version)
	v1.POST("/strings", s.strings)
	v1.POST("/pe", s.pe)
	v1.POST("/compare", s.compare)

	s.router = router
	s.httpServer = &http.Server{
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

func logRequests(c *gin.Context) {
	c.Next()
	logrus.WithFields(logrus.Fields{
		"method": c.Request.Method,
		"path":   c.Request.URL.Path,
		"status": c.Writer.Status(),
		"client": c.ClientIP(),
	}).Info("Handled request.")
}

// Handler returns the HTTP handler of the API.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves on addr until Shutdown is called, in which case
// http.ErrServerClosed is returned. Calling Shutdown before Start is
// allowed.
func (s *Server) Start(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	logrus.WithField("address", ln.Addr().String()).Info("Starting server.")
	return s.httpServer.Serve(ln)
}

// Shutdown stops the server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func sendError(c *gin.Context, status int, err error) {
	c.JSON(status, gin.H{"error": err.Error()})
}

func (s *Server) readUpload(fh *multipart.FileHeader) ([]byte, error) {
	if fh.Size > s.maxUpload {
		return nil, errTooLarge
	}
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, s.maxUpload+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > s.maxUpload {
		return nil, errTooLarge
	}
	return data, nil
}

// upload reads the single file of the "file" form field.
func (s *Server) upload(c *gin.Context) (string, []byte, bool) {
	fh, err := c.FormFile("file")
	if err != nil {
		sendError(c, http.StatusBadRequest, errors.Newf("expected a file in form field \"file\", reason: %w", err))
		return "", nil, false
	}
	data, err := s.readUpload(fh)
	if err == errTooLarge {
		sendError(c, http.StatusRequestEntityTooLarge, errors.Newf("%s exceeds %s", fh.Filename, humanize.IBytes(uint64(s.maxUpload))))
		return "", nil, false
	}
	if err != nil {
		sendError(c, http.StatusInternalServerError, err)
		return "", nil, false
	}
	return filepath.Base(fh.Filename), data, true
}

func (s *Server) version(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"version":       version.MalwVersion,
		"formatVersion": report.FormatVersion,
	})
}

func queryInt(c *gin.Context, key string) (int64, error) {
	v := c.Query(key)
	if v == "" {
		return 0, nil
	}
	i, err := strconv.ParseInt(v, 0, 64)
	if err != nil {
		return 0, errors.Newf("invalid value for \"%s\", reason: %w", key, err)
	}
	return i, nil
}

func (s *Server) strings(c *gin.Context) {
	var opts bytescan.Options
	minChars, err := queryInt(c, "minChars")
	if err == nil {
		opts.MinChars = int(minChars)
		opts.Offset, err = queryInt(c, "offset")
	}
	if err == nil {
		opts.MaxBytes, err = queryInt(c, "maxBytes")
	}
	if err == nil {
		opts.Encodings, err = bytescan.ParseEncoding(c.Query("encoding"))
	}
	if err != nil {
		sendError(c, http.StatusBadRequest, err)
		return
	}
	onlyInteresting := c.Query("onlyInteresting") == "true"

	name, data, ok := s.upload(c)
	if !ok {
		return
	}

	strs, err := s.classifier.Filter(bytescan.Scan(data, opts), onlyInteresting).All()
	if err != nil {
		sendError(c, http.StatusInternalServerError, err)
		return
	}
	c.JSON(http.StatusOK, &report.FileStrings{
		Path:    name,
		Strings: strs,
	})
}

func (s *Server) pe(c *gin.Context) {
	name, data, ok := s.upload(c)
	if !ok {
		return
	}

	features, err := s.extractor.ExtractBytes(data)
	if errors.Is(err, peinfo.ErrMalformedContainer) {
		sendError(c, http.StatusUnprocessableEntity, err)
		return
	}
	if err != nil {
		sendError(c, http.StatusInternalServerError, err)
		return
	}

	var matches []*malw.RuleMatch
	if s.scanner != nil {
		matches, err = s.scanner.ScanMem(data)
		if err != nil {
			logrus.WithFields(logrus.Fields{
				"file":          name,
				logrus.ErrorKey: err,
			}).Warn("Yara scan failed.")
		}
	}

	c.JSON(http.StatusOK, &report.FileFeatures{
		Path:     name,
		Features: features,
		Matches:  matches,
	})
}

func (s *Server) compare(c *gin.Context) {
	form, err := c.MultipartForm()
	if err != nil {
		sendError(c, http.StatusBadRequest, err)
		return
	}
	uploads := form.File["files"]
	if len(uploads) < 2 {
		sendError(c, http.StatusBadRequest, errors.New("expected at least two files in form field \"files\""))
		return
	}

	dir, err := os.MkdirTemp("", "malw-compare-")
	if err != nil {
		sendError(c, http.StatusInternalServerError, err)
		return
	}
	defer os.RemoveAll(dir)

	paths := make([]string, len(uploads))
	names := make(map[string]string, len(uploads))
	for i, fh := range uploads {
		data, err := s.readUpload(fh)
		if err == errTooLarge {
			sendError(c, http.StatusRequestEntityTooLarge, errors.Newf("%s exceeds %s", fh.Filename, humanize.IBytes(uint64(s.maxUpload))))
			return
		}
		if err != nil {
			sendError(c, http.StatusInternalServerError, err)
			return
		}

		// Uploads may share a name, so each one gets its own directory.
		sub := filepath.Join(dir, strconv.Itoa(i))
		if err := os.Mkdir(sub, 0700); err != nil {
			sendError(c, http.StatusInternalServerError, err)
			return
		}
		paths[i] = filepath.Join(sub, filepath.Base(fh.Filename))
		if err := os.WriteFile(paths[i], data, 0600); err != nil {
			sendError(c, http.StatusInternalServerError, err)
			return
		}
		names[paths[i]] = filepath.Base(fh.Filename)
	}

	engine := correlate.NewEngine(correlate.WithExtractor(s.extractor), correlate.WithWorkers(s.workers))
	result, err := engine.Correlate(c.Request.Context(), paths)
	if err != nil {
		sendError(c, http.StatusInternalServerError, err)
		return
	}

	c.JSON(http.StatusOK, renamed(result, names))
}

// renamed replaces the temporary paths in r with the upload names.
func renamed(r *correlate.Report, names map[string]string) *correlate.Report {
	rename := func(files []string) []string {
		out := make([]string, len(files))
		for i, f := range files {
			out[i] = names[f]
		}
		return out
	}
	for _, p := range r.Similarities {
		p.A, p.B = names[p.A], names[p.B]
	}
	for _, g := range r.Imphashes {
		g.Files = rename(g.Files)
	}
	for _, g := range r.Sections {
		g.Files = rename(g.Files)
	}
	for _, f := range r.Failures {
		f.Path = names[f.Path]
	}
	return r
}
