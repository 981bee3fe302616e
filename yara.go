package malw

import (
	"time"

	"github.com/hillu/go-yara/v4"
	"github.com/targodan/go-errors"
)

// ErrNilRules is returned by NewYaraScanner if no rules are given.
var ErrNilRules = errors.New("rules must not be nil")

// Rules are the parts of *yara.Rules used for scanning.
type Rules interface {
	ScanFile(filename string, flags yara.ScanFlags, timeout time.Duration, cb yara.ScanCallback) error
	ScanMem(buf []byte, flags yara.ScanFlags, timeout time.Duration, cb yara.ScanCallback) error
}

// RuleMatch is a matched rule together with the offsets of its matched
// strings.
type RuleMatch struct {
	Rule      string   `json:"rule"`
	Namespace string   `json:"namespace"`
	Tags      []string `json:"tags"`
	Offsets   []uint64 `json:"offsets"`
}

// YaraScanner matches yara rules against files and buffers.
type YaraScanner struct {
	rules   Rules
	timeout time.Duration
}

// NewYaraScanner creates a new YaraScanner from the given rules.
func NewYaraScanner(rules Rules) (*YaraScanner, error) {
	if rules == nil {
		return nil, ErrNilRules
	}
	return &YaraScanner{rules: rules}, nil
}

// SetTimeout limits the duration of every scan. Zero means no limit.
func (s *YaraScanner) SetTimeout(timeout time.Duration) {
	s.timeout = timeout
}

// ScanFile matches the rules against the file at filename.
func (s *YaraScanner) ScanFile(filename string) ([]*RuleMatch, error) {
	var matches yara.MatchRules
	err := s.rules.ScanFile(filename, 0, s.timeout, &matches)
	return convertMatches(matches), err
}

// ScanMem matches the rules against buf.
func (s *YaraScanner) ScanMem(buf []byte) ([]*RuleMatch, error) {
	var matches yara.MatchRules
	err := s.rules.ScanMem(buf, 0, s.timeout, &matches)
	return convertMatches(matches), err
}

func convertMatches(matches yara.MatchRules) []*RuleMatch {
	result := make([]*RuleMatch, len(matches))
	for i, m := range matches {
		tags := m.Tags
		if tags == nil {
			tags = []string{}
		}
		result[i] = &RuleMatch{
			Rule:      m.Rule,
			Namespace: m.Namespace,
			Tags:      tags,
			Offsets:   OffsetsFromMatches(m.Strings, 0),
		}
	}
	return result
}
