package report

import (
	"encoding/json"
	"io"

	"github.com/fkie-cad/malw/correlate"

	"github.com/targodan/go-errors"
)

// Parser reads the parts of a bundle back into a Report.
type Parser struct{}

func NewParser() *Parser {
	return &Parser{}
}

func (p *Parser) Parse(rdr Reader) (*Report, error) {
	meta, err := p.parseMeta(rdr)
	if err != nil {
		return nil, err
	}
	if meta.FormatVersion.Major != FormatVersion.Major {
		return nil, errors.Newf("unsupported report version \"%v\", expected \"%d.x.x\"", meta.FormatVersion, FormatVersion.Major)
	}

	var features []*FileFeatures
	if err := parseLines(rdr.OpenFeatures, &features); err != nil {
		return nil, errors.Newf("could not parse %s, reason: %w", FeaturesFileName, err)
	}

	var strs []*FileStrings
	if err := parseLines(rdr.OpenStrings, &strs); err != nil {
		return nil, errors.Newf("could not parse %s, reason: %w", StringsFileName, err)
	}

	r, err := rdr.OpenCorrelation()
	if err != nil {
		return nil, err
	}
	defer r.Close()
	var correlation correlate.Report
	if err := json.NewDecoder(r).Decode(&correlation); err != nil {
		return nil, errors.Newf("could not parse %s, reason: %w", CorrelationFileName, err)
	}

	return &Report{
		Meta:        meta,
		Features:    features,
		Strings:     strs,
		Correlation: &correlation,
	}, nil
}

func (p *Parser) parseMeta(rdr Reader) (*Meta, error) {
	r, err := rdr.OpenMeta()
	if err != nil {
		return nil, err
	}
	defer r.Close()

	var data Meta
	if err := json.NewDecoder(r).Decode(&data); err != nil {
		return nil, errors.Newf("could not parse %s, reason: %w", MetaFileName, err)
	}
	return &data, nil
}

// parseLines decodes a stream of JSON documents into the slice dst points to.
func parseLines[T any](open func() (io.ReadCloser, error), dst *[]*T) error {
	r, err := open()
	if err != nil {
		return err
	}
	defer r.Close()

	decoder := json.NewDecoder(r)
	data := make([]*T, 0)
	for {
		var obj T
		err = decoder.Decode(&obj)
		if err != nil {
			break
		}
		data = append(data, &obj)
	}
	if err != io.EOF {
		return err
	}
	*dst = data
	return nil
}
