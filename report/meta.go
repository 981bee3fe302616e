package report

import (
	"strings"

	"github.com/fkie-cad/malw/system"
	"github.com/fkie-cad/malw/version"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const (
	// MetaFileName is the name of the file containing meta information about the report format.
	MetaFileName = "meta.json"
	// FeaturesFileName holds one line of PE features per inspected file.
	FeaturesFileName = "features.json"
	// StringsFileName holds one line of classified strings per inspected file.
	StringsFileName = "strings.json"
	// CorrelationFileName holds the cross sample correlation.
	CorrelationFileName = "correlation.json"
)

// FormatVersion is the version of the report layout written by this package.
var FormatVersion = version.Version{
	Major:  1,
	Minor:  0,
	Bugfix: 0,
}

const schemaURLBase = "https://fkie-cad.github.io/malw/reportFormat/"

// Meta describes a report bundle.
type Meta struct {
	ID            uuid.UUID         `json:"id"`
	MalwVersion   version.Version   `json:"malwVersion"`
	FormatVersion version.Version   `json:"formatVersion"`
	Created       Time              `json:"created"`
	SchemaURLs    map[string]string `json:"schemaURLs"`
	Host          *system.Info      `json:"host,omitempty"`
}

func schemaURL(file string) string {
	return schemaURLBase + FormatVersion.String() + "/" + strings.TrimSuffix(file, ".json") + ".schema.json"
}

// NewMeta creates the meta information for a new report.
func NewMeta() *Meta {
	urls := make(map[string]string)
	for _, file := range []string{MetaFileName, FeaturesFileName, StringsFileName, CorrelationFileName} {
		urls[file] = schemaURL(file)
	}
	host, err := system.GetInfo()
	if err != nil {
		logrus.WithError(err).Warn("Could not determine host information.")
	}
	return &Meta{
		ID:            uuid.New(),
		MalwVersion:   version.MalwVersion,
		FormatVersion: FormatVersion,
		Created:       Now(),
		SchemaURLs:    urls,
		Host:          host,
	}
}
