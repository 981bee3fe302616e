package report

import (
	"encoding/json"

	"github.com/fkie-cad/malw/archiver"

	"github.com/targodan/go-errors"
)

// Writer stores reports in an archive.
type Writer struct {
	archiver archiver.Archiver
}

// NewWriter creates a Writer for the given archive. The archive is not
// closed by the Writer.
func NewWriter(archiver archiver.Archiver) *Writer {
	return &Writer{
		archiver: archiver,
	}
}

// WriteReport writes all parts of rprt. A missing correlation is written as
// an empty one.
func (w *Writer) WriteReport(rprt *Report) error {
	meta := rprt.Meta
	if meta == nil {
		meta = NewMeta()
	}
	if err := w.writeObjects(MetaFileName, meta); err != nil {
		return err
	}

	features := make([]interface{}, len(rprt.Features))
	for i, f := range rprt.Features {
		features[i] = f
	}
	if err := w.writeObjects(FeaturesFileName, features...); err != nil {
		return err
	}

	strs := make([]interface{}, len(rprt.Strings))
	for i, s := range rprt.Strings {
		strs[i] = s
	}
	if err := w.writeObjects(StringsFileName, strs...); err != nil {
		return err
	}

	return w.writeObjects(CorrelationFileName, normalizedCorrelation(rprt.Correlation))
}

// writeObjects writes one JSON document per line.
func (w *Writer) writeObjects(name string, objects ...interface{}) error {
	file, err := w.archiver.Create(name)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(file)
	for _, obj := range objects {
		if err = enc.Encode(obj); err != nil {
			break
		}
	}
	err = errors.NewMultiError(err, file.Close())
	if err != nil {
		return errors.Newf("could not write report part \"%s\", reason: %w", name, err)
	}
	return nil
}
