// Package bytescan extracts printable character runs from raw bytes,
// similar to the strings(1) utility.
package bytescan

import (
	"io"
	"strings"
	"unicode/utf8"

	"github.com/fkie-cad/malw/fileio"

	"github.com/targodan/go-errors"
	"golang.org/x/text/encoding/unicode"
)

// DefaultMinChars is the minimum run length used when none is configured.
const DefaultMinChars = 4

// Encoding is the byte encoding a RawString was found in.
type Encoding int

const (
	// ASCII strings consist of one byte per character.
	ASCII Encoding = 1 << iota
	// Wide strings consist of one printable byte followed by a zero byte
	// per character (UTF-16LE restricted to printable ASCII).
	Wide

	AllEncodings = ASCII | Wide
)

func (e Encoding) String() string {
	switch e {
	case ASCII:
		return "ascii"
	case Wide:
		return "wide"
	case AllEncodings:
		return "all"
	}
	return "unknown"
}

func (e Encoding) MarshalText() ([]byte, error) {
	return []byte(e.String()), nil
}

func (e *Encoding) UnmarshalText(b []byte) error {
	parsed, err := ParseEncoding(string(b))
	if err != nil {
		return err
	}
	*e = parsed
	return nil
}

// ParseEncoding parses "ascii", "wide" or "all".
func ParseEncoding(s string) (Encoding, error) {
	switch strings.ToLower(s) {
	case "ascii":
		return ASCII, nil
	case "wide", "utf-16", "utf16":
		return Wide, nil
	case "all", "":
		return AllEncodings, nil
	}
	return 0, errors.Newf("unknown encoding \"%s\", expected ascii, wide or all", s)
}

// RawString is a candidate string found in a buffer.
type RawString struct {
	Value string `json:"value"`
	// Offset is the absolute position of the first byte of the run in the
	// source buffer.
	Offset   int64    `json:"offset"`
	Encoding Encoding `json:"encoding"`
}

// Options configures a scan.
type Options struct {
	// MinChars is the minimum number of characters of a run. Values below 1
	// are replaced by DefaultMinChars.
	MinChars int
	// Offset is where scanning starts. Zero or less means the start of the buffer.
	Offset int64
	// MaxBytes limits the number of bytes that are scanned after Offset.
	// Zero or less means no limit.
	MaxBytes int64
	// Encodings selects the passes that are run. Zero means AllEncodings.
	Encodings Encoding
}

func (o Options) normalized() Options {
	if o.MinChars < 1 {
		o.MinChars = DefaultMinChars
	}
	if o.Offset < 0 {
		o.Offset = 0
	}
	if o.MaxBytes < 0 {
		o.MaxBytes = 0
	}
	if o.Encodings&AllEncodings == 0 {
		o.Encodings = AllEncodings
	}
	return o
}

var printable [256]bool

func init() {
	const alphabet = "0123456789" +
		"abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ" +
		"!\"#$%&'()*+,-./:;<=>?@[\\]^_`{|}~" +
		" \t"
	for i := 0; i < len(alphabet); i++ {
		printable[alphabet[i]] = true
	}
}

// IsPrintable reports whether b belongs to the scanned alphabet.
func IsPrintable(b byte) bool {
	return printable[b]
}

// Iterator lazily yields the RawStrings of a buffer. All ASCII strings are
// yielded before the wide strings. An Iterator cannot be restarted.
type Iterator struct {
	buf      []byte
	base     int64
	minChars int

	passes []Encoding
	pass   int
	pos    int

	decoder func([]byte) (string, bool)
}

// Scan returns an Iterator over the RawStrings in buf, limited to the region
// selected by opts.
func Scan(buf []byte, opts Options) *Iterator {
	opts = opts.normalized()

	start := opts.Offset
	if start > int64(len(buf)) {
		start = int64(len(buf))
	}
	end := int64(len(buf))
	if opts.MaxBytes > 0 && opts.MaxBytes < end-start {
		end = start + opts.MaxBytes
	}

	return newIterator(buf[start:end], start, opts)
}

func newIterator(region []byte, base int64, opts Options) *Iterator {
	passes := make([]Encoding, 0, 2)
	if opts.Encodings&ASCII != 0 {
		passes = append(passes, ASCII)
	}
	if opts.Encodings&Wide != 0 {
		passes = append(passes, Wide)
	}
	return &Iterator{
		buf:      region,
		base:     base,
		minChars: opts.MinChars,
		passes:   passes,
		decoder:  decodeWide,
	}
}

// ScanFile reads the region selected by opts from the file at path and
// returns an Iterator over it. Offsets are absolute file offsets.
func ScanFile(path string, opts Options) (*Iterator, error) {
	opts = opts.normalized()
	region, err := fileio.ReadRegion(path, opts.Offset, opts.MaxBytes)
	if err != nil {
		return nil, err
	}
	return newIterator(region, opts.Offset, opts), nil
}

// Next returns the next RawString or io.EOF once the buffer is exhausted.
func (it *Iterator) Next() (*RawString, error) {
	for it.pass < len(it.passes) {
		var s *RawString
		switch it.passes[it.pass] {
		case ASCII:
			s = it.nextASCII()
		case Wide:
			s = it.nextWide()
		}
		if s != nil {
			return s, nil
		}
		it.pass++
		it.pos = 0
	}
	return nil, io.EOF
}

// All drains the iterator.
func (it *Iterator) All() []*RawString {
	strs := make([]*RawString, 0)
	for {
		s, err := it.Next()
		if err != nil {
			return strs
		}
		strs = append(strs, s)
	}
}

func (it *Iterator) nextASCII() *RawString {
	for it.pos < len(it.buf) {
		start := it.pos
		end := start
		for end < len(it.buf) && printable[it.buf[end]] {
			end++
		}
		if end == start {
			it.pos++
			continue
		}
		it.pos = end
		if end-start < it.minChars {
			continue
		}

		value := strings.TrimSpace(string(it.buf[start:end]))
		if value == "" {
			continue
		}
		return &RawString{
			Value:    value,
			Offset:   it.base + int64(start),
			Encoding: ASCII,
		}
	}
	return nil
}

func (it *Iterator) nextWide() *RawString {
	for it.pos+1 < len(it.buf) {
		start := it.pos
		end := start
		for end+1 < len(it.buf) && printable[it.buf[end]] && it.buf[end+1] == 0 {
			end += 2
		}
		chars := (end - start) / 2
		if chars < it.minChars {
			it.pos++
			continue
		}
		it.pos = end

		value, ok := it.decoder(it.buf[start:end])
		if !ok {
			continue
		}
		value = strings.TrimSpace(value)
		if value == "" {
			continue
		}
		return &RawString{
			Value:    value,
			Offset:   it.base + int64(start),
			Encoding: Wide,
		}
	}
	return nil
}

var wideEncoding = unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM)

// decodeWide decodes UTF-16LE. Runs producing invalid text are rejected.
func decodeWide(run []byte) (string, bool) {
	decoded, err := wideEncoding.NewDecoder().Bytes(run)
	if err != nil {
		return "", false
	}
	if !utf8.Valid(decoded) || strings.ContainsRune(string(decoded), utf8.RuneError) {
		return "", false
	}
	return string(decoded), true
}
