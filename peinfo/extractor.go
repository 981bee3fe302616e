// Package peinfo extracts static features from PE images.
package peinfo

import (
	"bytes"
	"debug/pe"
	"strings"
	"time"

	"github.com/fkie-cad/malw/digest"
	"github.com/fkie-cad/malw/fileio"
	"github.com/fkie-cad/malw/sigdb"
	"github.com/fkie-cad/malw/sniff"
	"github.com/sirupsen/logrus"
)

// TimestampFormat is the layout used for the compile time.
const TimestampFormat = "2006-01-02 15:04:05"

// Extractor extracts Features from PE images. It is safe for concurrent use.
type Extractor struct {
	signatures      *sigdb.Database
	sectionMatching bool
	fuzzy           digest.FuzzyHasher
	sniff           func([]byte) string
}

// Option configures an Extractor.
type Option func(e *Extractor)

// WithSignatures sets the signature database used to determine the
// toolchain or packer. A nil database disables signature matching.
func WithSignatures(db *sigdb.Database) Option {
	return func(e *Extractor) {
		e.signatures = db
	}
}

// WithSectionSignatures additionally tests the signatures that are not
// ep_only at every section start. By default only ep_only signatures are
// tested, at the entry point.
func WithSectionSignatures(enabled bool) Option {
	return func(e *Extractor) {
		e.sectionMatching = enabled
	}
}

// Identity names the configuration that influences extracted features.
// Extractors with equal identities produce equal features.
func (e *Extractor) Identity() string {
	id := "nosig"
	if e.signatures != nil {
		id = "sig:" + e.signatures.Digest()
	}
	if e.sectionMatching {
		id += "+sections"
	}
	return id
}

// WithFuzzyHasher replaces the fuzzy hash implementation.
func WithFuzzyHasher(h digest.FuzzyHasher) Option {
	return func(e *Extractor) {
		e.fuzzy = h
	}
}

// NewExtractor creates an Extractor using the embedded signature database
// unless configured otherwise.
func NewExtractor(opts ...Option) *Extractor {
	e := &Extractor{
		signatures: sigdb.Default(),
		fuzzy:      digest.Fuzzy,
		sniff:      sniff.Bytes,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Extract loads the file at path and extracts its features.
func (e *Extractor) Extract(path string) (*Features, error) {
	content, err := fileio.Load(path)
	if err != nil {
		return nil, err
	}
	defer content.Close()

	return e.ExtractBytes(content.Data)
}

// ExtractBytes extracts the features of the PE image in data. Inputs that
// are not PE images yield an error matching ErrMalformedContainer. The
// returned Features do not reference data.
func (e *Extractor) ExtractBytes(data []byte) (*Features, error) {
	img, err := openImage(data)
	if err != nil {
		return nil, err
	}
	defer img.file.Close()

	features := &Features{
		Size:        int64(len(data)),
		Machine:     MachineName(img.file.Machine),
		Is64Bit:     img.is64,
		IsDLL:       img.file.Characteristics&pe.IMAGE_FILE_DLL != 0,
		EntryPoint:  img.entryPoint,
		ImageBase:   img.imageBase,
		Timestamp:   img.file.TimeDateStamp,
		CompileTime: time.Unix(int64(img.file.TimeDateStamp), 0).UTC().Format(TimestampFormat),
		Subsystem:   SubsystemName(img.subsystem),
	}

	checksums, err := digest.Sum(bytes.NewReader(data), digest.AllAlgorithms...)
	if err != nil {
		return nil, err
	}
	for _, c := range checksums {
		switch c.Algorithm {
		case digest.MD5:
			features.MD5 = c.Value
		case digest.SHA1:
			features.SHA1 = c.Value
		case digest.SHA256:
			features.SHA256 = c.Value
		}
	}

	features.FuzzyHash, err = e.fuzzy.Hash(data)
	if err != nil {
		logrus.WithError(err).Debug("Could not compute fuzzy hash.")
		features.FuzzyHash = ""
	}

	features.Sections = img.sectionFeatures()
	features.Imports = img.imports()
	features.Imphash = Imphash(features.Imports)
	features.Exports = img.exports()
	features.Resources = img.resources(e.sniff)
	features.Signature = e.matchSignature(img)

	return features, nil
}

func (img *image) sectionFeatures() []*Section {
	sections := make([]*Section, len(img.sections))
	for i, s := range img.sections {
		raw := img.rawSection(s)
		entropy := Entropy(raw)
		sections[i] = &Section{
			Name:           strings.TrimRight(s.Name, "\x00"),
			RawSize:        s.Size,
			VirtualSize:    s.VirtualSize,
			VirtualAddress: s.VirtualAddress,
			Entropy:        round2(entropy),
			MD5:            digest.Bytes(raw, digest.MD5),
			Suspicious:     IsSuspicious(s.Size, entropy),
		}
	}
	return sections
}

func (e *Extractor) matchSignature(img *image) string {
	if e.signatures == nil || e.signatures.Len() == 0 {
		return ""
	}
	entryPoint := int64(-1)
	if off, ok := img.offset(img.entryPoint); ok {
		entryPoint = off
	}
	var sig *sigdb.Signature
	if e.sectionMatching {
		starts := make([]int64, 0, len(img.sections))
		for _, s := range img.sections {
			if s.Size > 0 && int64(s.Offset) < int64(len(img.data)) {
				starts = append(starts, int64(s.Offset))
			}
		}
		sig = e.signatures.Match(img.data, entryPoint, starts)
	} else {
		sig = e.signatures.MatchEntryPoint(img.data, entryPoint)
	}
	if sig == nil {
		return ""
	}
	return sig.Name
}
