// Package report writes, reads and validates report bundles. A bundle is a
// tar or zip archive holding one JSON file per part.
package report

import (
	"github.com/fkie-cad/malw"
	"github.com/fkie-cad/malw/correlate"
	"github.com/fkie-cad/malw/ioc"
	"github.com/fkie-cad/malw/peinfo"

	"github.com/rjNemo/underscore"
)

// FileFeatures is the PE inspection result of one file. Error is set
// instead of Features if the file could not be inspected.
type FileFeatures struct {
	Path     string            `json:"path"`
	Error    string            `json:"error,omitempty"`
	Features *peinfo.Features  `json:"features,omitempty"`
	Matches  []*malw.RuleMatch `json:"matches,omitempty"`
}

// FileStrings are the classified strings of one file.
type FileStrings struct {
	Path    string                  `json:"path"`
	Strings []*ioc.ClassifiedString `json:"strings"`
}

// Report is the content of a bundle.
type Report struct {
	Meta        *Meta
	Features    []*FileFeatures
	Strings     []*FileStrings
	Correlation *correlate.Report
}

// New creates an empty report with fresh meta information.
func New() *Report {
	return &Report{
		Meta:     NewMeta(),
		Features: make([]*FileFeatures, 0),
		Strings:  make([]*FileStrings, 0),
	}
}

// AddFeatures records the features and yara matches of path.
func (r *Report) AddFeatures(path string, features *peinfo.Features, matches []*malw.RuleMatch) {
	r.Features = append(r.Features, &FileFeatures{
		Path:     path,
		Features: features,
		Matches:  matches,
	})
}

// AddFailure records that path could not be inspected.
func (r *Report) AddFailure(path string, err error) {
	r.Features = append(r.Features, &FileFeatures{
		Path:  path,
		Error: err.Error(),
	})
}

// AddStrings records the strings of path.
func (r *Report) AddStrings(path string, strs []*ioc.ClassifiedString) {
	if strs == nil {
		strs = make([]*ioc.ClassifiedString, 0)
	}
	r.Strings = append(r.Strings, &FileStrings{
		Path:    path,
		Strings: strs,
	})
}

// FeaturesOf returns the features entry of path or nil.
func (r *Report) FeaturesOf(path string) *FileFeatures {
	for _, f := range r.Features {
		if f.Path == path {
			return f
		}
	}
	return nil
}

// InspectedPaths returns the paths of all successfully inspected files in
// the order they were added.
func (r *Report) InspectedPaths() []string {
	ok := underscore.Filter(r.Features, func(f *FileFeatures) bool {
		return f.Error == ""
	})
	return underscore.Map(ok, func(f *FileFeatures) string {
		return f.Path
	})
}

func emptyCorrelation() *correlate.Report {
	return &correlate.Report{
		Similarities: make([]*correlate.Pair, 0),
		Imphashes:    make([]*correlate.ImphashGroup, 0),
		Sections:     make([]*correlate.SectionGroup, 0),
		Failures:     make([]*correlate.Failure, 0),
	}
}

// normalizedCorrelation replaces nil lists with empty ones so that every
// list is written as a JSON array.
func normalizedCorrelation(c *correlate.Report) *correlate.Report {
	if c == nil {
		return emptyCorrelation()
	}
	n := *c
	if n.Similarities == nil {
		n.Similarities = make([]*correlate.Pair, 0)
	}
	if n.Imphashes == nil {
		n.Imphashes = make([]*correlate.ImphashGroup, 0)
	}
	if n.Sections == nil {
		n.Sections = make([]*correlate.SectionGroup, 0)
	}
	if n.Failures == nil {
		n.Failures = make([]*correlate.Failure, 0)
	}
	return &n
}
