package malw

import (
	"bytes"
	"fmt"
	"path/filepath"
	"reflect"
	"strings"
	"text/template"

	"github.com/dustin/go-humanize"
)

// FileInfo describes a candidate input file.
type FileInfo struct {
	Path string
	Size int64
}

// Extension returns the lower case extension of the file without dot.
func (i *FileInfo) Extension() string {
	return strings.TrimPrefix(strings.ToLower(filepath.Ext(i.Path)), ".")
}

// FilterMatch contains information about the matching of a FileFilter.
type FilterMatch struct {
	Result bool
	File   *FileInfo
	Reason string // Reason for filter mismatch, if Result is false
}

// FileFilterFunc is a callback, used to filter *FileInfo instances.
type FileFilterFunc func(info *FileInfo) bool

// FileFilter describes an interface, capable of filtering *FileInfo
// instances.
type FileFilter interface {
	Filter(info *FileInfo) *FilterMatch
}

type baseFilter struct {
	filter         FileFilterFunc
	Parameter      interface{}
	reasonTemplate string
}

func (f *baseFilter) renderReason(info *FileInfo) string {
	t := template.New("filterReason")

	t.Funcs(template.FuncMap{
		"bytes": func(val interface{}) string {
			n := reflect.ValueOf(val)
			return humanize.IBytes(uint64(n.Int()))
		},
		"join": func(glue string, slice interface{}) string {
			s := reflect.ValueOf(slice)
			if s.Kind() != reflect.Slice {
				panic("argument is not a slice")
			}
			parts := make([]string, s.Len())
			for i := 0; i < s.Len(); i++ {
				parts[i] = fmt.Sprint(s.Index(i).Interface())
			}
			return Join(parts, ", ", glue)
		},
	})

	_, err := t.Parse(f.reasonTemplate)
	if err != nil {
		panic("could not parse filter reason template: " + err.Error())
	}

	buf := &bytes.Buffer{}
	err = t.Execute(buf, &struct {
		Filter FileFilter
		File   *FileInfo
	}{
		Filter: f,
		File:   info,
	})

	if err != nil {
		panic(err)
	}

	return buf.String()
}

func (f *baseFilter) Filter(info *FileInfo) *FilterMatch {
	var reasonForMismatch string

	matches := f.filter(info)
	if !matches {
		reasonForMismatch = f.renderReason(info)
	}

	return &FilterMatch{
		Result: matches,
		File:   info,
		Reason: reasonForMismatch,
	}
}

// NewFilterFromFunc creates a new filter from a given FileFilterFunc.
func NewFilterFromFunc(filter FileFilterFunc, parameter interface{}, reasonTemplate string) FileFilter {
	return &baseFilter{
		filter:         filter,
		Parameter:      parameter,
		reasonTemplate: reasonTemplate,
	}
}

// NewMaxSizeFilter creates a new filter, matching files with at most the
// given size.
func NewMaxSizeFilter(size int64) FileFilter {
	return NewFilterFromFunc(
		func(info *FileInfo) bool {
			return info.Size <= size
		},
		size,
		"file too large, size: {{.File.Size|bytes}}, max-size: {{.Filter.Parameter|bytes}}",
	)
}

// NewMinSizeFilter creates a new filter, matching files with at least the
// given size.
func NewMinSizeFilter(size int64) FileFilter {
	return NewFilterFromFunc(
		func(info *FileInfo) bool {
			return info.Size >= size
		},
		size,
		"file too small, size: {{.File.Size|bytes}}, min-size: {{.Filter.Parameter|bytes}}",
	)
}

// NewExtensionFilter creates a new filter, matching files with one of the
// given extensions. Extensions are compared case insensitively and without
// leading dot.
func NewExtensionFilter(extensions []string) FileFilter {
	normalized := make([]string, len(extensions))
	for i, ext := range extensions {
		normalized[i] = strings.TrimPrefix(strings.ToLower(ext), ".")
	}
	return NewFilterFromFunc(
		func(info *FileInfo) bool {
			ext := info.Extension()
			for _, e := range normalized {
				if ext == e {
					return true
				}
			}
			return false
		},
		normalized,
		"file has wrong extension, extension: \"{{.File.Extension}}\", allowed extensions: {{.Filter.Parameter|join \" or \"}}",
	)
}

type andFilter struct {
	filters []FileFilter
}

// NewAndFilter creates a new filter, which is the logical AND-combination
// of all given FileFilter instances.
func NewAndFilter(filters ...FileFilter) FileFilter {
	return &andFilter{
		filters: filters,
	}
}

func (f *andFilter) Filter(info *FileInfo) *FilterMatch {
	result := &FilterMatch{
		Result: true,
		File:   info,
	}
	reasons := make([]string, 0)
	for _, filter := range f.filters {
		if filter == nil {
			continue
		}

		r := filter.Filter(info)
		if !r.Result {
			result.Result = false
			reasons = append(reasons, r.Reason)
		}
	}
	if !result.Result {
		result.Reason = strings.Join(reasons, " AND ")
	}
	return result
}
