// Package correlate relates a set of samples by fuzzy similarity, import
// hash and shared section contents.
package correlate

import (
	"context"
	"runtime"
	"sort"

	"github.com/fkie-cad/malw/digest"
	"github.com/fkie-cad/malw/fileio"
	"github.com/fkie-cad/malw/peinfo"

	"github.com/rjNemo/underscore"
	"github.com/sirupsen/logrus"
	"github.com/targodan/go-errors"
	"golang.org/x/sync/errgroup"
)

// Extractor extracts PE features from raw bytes.
type Extractor interface {
	ExtractBytes(data []byte) (*peinfo.Features, error)
}

// Engine correlates files. It is safe for concurrent use.
type Engine struct {
	extractor Extractor
	fuzzy     digest.FuzzyHasher
	workers   int
}

// Option configures an Engine.
type Option func(e *Engine)

// WithExtractor replaces the PE feature extractor.
func WithExtractor(extractor Extractor) Option {
	return func(e *Engine) {
		e.extractor = extractor
	}
}

// WithFuzzyHasher replaces the fuzzy hash implementation used for files
// that are not PE images and for all comparisons.
func WithFuzzyHasher(h digest.FuzzyHasher) Option {
	return func(e *Engine) {
		e.fuzzy = h
	}
}

// WithWorkers sets the number of files processed in parallel. Values below
// one select the number of CPUs.
func WithWorkers(n int) Option {
	return func(e *Engine) {
		e.workers = n
	}
}

// NewEngine creates an Engine.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		fuzzy: digest.Fuzzy,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.extractor == nil {
		e.extractor = peinfo.NewExtractor(peinfo.WithFuzzyHasher(e.fuzzy))
	}
	if e.workers < 1 {
		e.workers = runtime.NumCPU()
	}
	return e
}

type fileResult struct {
	path      string
	fuzzyHash string
	features  *peinfo.Features
	err       error
}

func (r *fileResult) failed() bool {
	return r.err != nil
}

// Correlate analyzes paths and relates them to each other. Duplicate paths
// are processed once, in order of their first occurrence. Unreadable files
// are reported in Report.Failures. Only cancellation of ctx aborts the batch.
func (e *Engine) Correlate(ctx context.Context, paths []string) (*Report, error) {
	paths = unique(paths)
	results := make([]*fileResult, len(paths))

	grp, gctx := errgroup.WithContext(ctx)
	grp.SetLimit(e.workers)
	for i, path := range paths {
		if gctx.Err() != nil {
			break
		}
		i, path := i, path
		grp.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i] = e.analyze(path)
			return nil
		})
	}
	if err := grp.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	return e.merge(results), nil
}

func unique(paths []string) []string {
	seen := make(map[string]bool, len(paths))
	out := make([]string, 0, len(paths))
	for _, p := range paths {
		if seen[p] {
			continue
		}
		seen[p] = true
		out = append(out, p)
	}
	return out
}

func (e *Engine) analyze(path string) *fileResult {
	res := &fileResult{path: path}

	content, err := fileio.Load(path)
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"file":          path,
			logrus.ErrorKey: err,
		}).Warn("Could not read file, skipping.")
		res.err = err
		return res
	}
	defer content.Close()

	features, err := e.extractor.ExtractBytes(content.Data)
	if err != nil {
		if !errors.Is(err, peinfo.ErrMalformedContainer) {
			logrus.WithFields(logrus.Fields{
				"file":          path,
				logrus.ErrorKey: err,
			}).Warn("Could not extract PE features, skipping.")
			res.err = err
			return res
		}
		logrus.WithField("file", path).Debug("Not a PE image, comparing by content only.")
		features = nil
	}
	res.features = features

	if features != nil && features.FuzzyHash != "" {
		res.fuzzyHash = features.FuzzyHash
		return res
	}
	res.fuzzyHash, err = e.fuzzy.Hash(content.Data)
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"file":          path,
			logrus.ErrorKey: err,
		}).Debug("Could not compute fuzzy hash.")
		res.fuzzyHash = ""
	}
	return res
}

func (e *Engine) merge(results []*fileResult) *Report {
	readable := underscore.Filter(results, func(r *fileResult) bool {
		return !r.failed()
	})
	failed := underscore.Filter(results, func(r *fileResult) bool {
		return r.failed()
	})

	failures := underscore.Map(failed, func(r *fileResult) *Failure {
		return &Failure{Path: r.path, Message: r.err.Error()}
	})
	if failures == nil {
		failures = []*Failure{}
	}

	return &Report{
		Similarities: e.similarities(readable),
		Imphashes:    imphashGroups(readable),
		Sections:     sectionGroups(readable),
		Failures:     failures,
	}
}

func (e *Engine) similarities(results []*fileResult) []*Pair {
	pairs := make([]*Pair, 0, len(results)*(len(results)-1)/2+1)
	for i := 0; i < len(results); i++ {
		for j := i + 1; j < len(results); j++ {
			score, err := e.fuzzy.Similarity(results[i].fuzzyHash, results[j].fuzzyHash)
			if err != nil {
				logrus.WithFields(logrus.Fields{
					"a":             results[i].path,
					"b":             results[j].path,
					logrus.ErrorKey: err,
				}).Debug("Could not compare fuzzy hashes.")
				score = 0
			}
			pairs = append(pairs, &Pair{
				A:     results[i].path,
				B:     results[j].path,
				Score: score,
			})
		}
	}
	sort.SliceStable(pairs, func(i, j int) bool {
		return pairs[i].Score > pairs[j].Score
	})
	return pairs
}

func imphashGroups(results []*fileResult) []*ImphashGroup {
	byHash := make(map[string][]string)
	for _, r := range results {
		if r.features == nil || r.features.Imphash == "" {
			continue
		}
		byHash[r.features.Imphash] = append(byHash[r.features.Imphash], r.path)
	}

	groups := make([]*ImphashGroup, 0)
	for hash, files := range byHash {
		if len(files) < 2 {
			continue
		}
		groups = append(groups, &ImphashGroup{Imphash: hash, Files: files})
	}
	sort.Slice(groups, func(i, j int) bool {
		return groups[i].Imphash < groups[j].Imphash
	})
	return groups
}

type sectionKey struct {
	name string
	md5  string
}

func sectionGroups(results []*fileResult) []*SectionGroup {
	byKey := make(map[sectionKey][]string)
	for _, r := range results {
		if r.features == nil {
			continue
		}
		seen := make(map[sectionKey]bool)
		for _, s := range r.features.Sections {
			key := sectionKey{name: s.Name, md5: s.MD5}
			if seen[key] {
				continue
			}
			seen[key] = true
			byKey[key] = append(byKey[key], r.path)
		}
	}

	groups := make([]*SectionGroup, 0)
	for key, files := range byKey {
		if len(files) < 2 {
			continue
		}
		groups = append(groups, &SectionGroup{Name: key.name, MD5: key.md5, Files: files})
	}
	sort.Slice(groups, func(i, j int) bool {
		if groups[i].Name != groups[j].Name {
			return groups[i].Name < groups[j].Name
		}
		return groups[i].MD5 < groups[j].MD5
	})
	return groups
}
