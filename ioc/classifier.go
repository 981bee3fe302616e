// Package ioc classifies candidate strings into indicator categories.
package ioc

import (
	"io"

	"github.com/fkie-cad/malw/bytescan"
)

// Match is the result of a successful classification.
type Match struct {
	Category Category `json:"category"`
	Hint     string   `json:"hint"`
}

// ClassifiedString is a RawString together with its classification. Match
// is nil if no rule matched.
type ClassifiedString struct {
	*bytescan.RawString
	Match *Match `json:"match,omitempty"`
}

// Classifier applies an ordered rule table. It is immutable and safe for
// concurrent use.
type Classifier struct {
	rules []Rule
}

// NewClassifier creates a Classifier over rules. Without rules DefaultRules
// is used.
func NewClassifier(rules ...Rule) *Classifier {
	if len(rules) == 0 {
		rules = DefaultRules()
	}
	r := make([]Rule, len(rules))
	copy(r, rules)
	return &Classifier{rules: r}
}

// Rules returns a copy of the rule table in evaluation order.
func (c *Classifier) Rules() []Rule {
	r := make([]Rule, len(c.rules))
	copy(r, c.rules)
	return r
}

// Classify returns the first rule matching value.
func (c *Classifier) Classify(value string) (*Match, bool) {
	for _, rule := range c.rules {
		if rule.Match(value) {
			return &Match{
				Category: rule.Category,
				Hint:     rule.Hint,
			}, true
		}
	}
	return nil, false
}

// ClassifyString classifies a single RawString.
func (c *Classifier) ClassifyString(s *bytescan.RawString) *ClassifiedString {
	match, _ := c.Classify(s.Value)
	return &ClassifiedString{
		RawString: s,
		Match:     match,
	}
}

// StringIterator yields RawStrings until io.EOF.
type StringIterator interface {
	Next() (*bytescan.RawString, error)
}

// Filter lazily classifies the strings of an iterator.
type Filter struct {
	classifier      *Classifier
	it              StringIterator
	onlyInteresting bool
}

// Filter wraps it. With onlyInteresting set, strings without a category
// are skipped.
func (c *Classifier) Filter(it StringIterator, onlyInteresting bool) *Filter {
	return &Filter{
		classifier:      c,
		it:              it,
		onlyInteresting: onlyInteresting,
	}
}

// Next returns the next ClassifiedString or io.EOF.
func (f *Filter) Next() (*ClassifiedString, error) {
	for {
		s, err := f.it.Next()
		if err != nil {
			return nil, err
		}
		cs := f.classifier.ClassifyString(s)
		if f.onlyInteresting && cs.Match == nil {
			continue
		}
		return cs, nil
	}
}

// All drains the filter.
func (f *Filter) All() ([]*ClassifiedString, error) {
	strs := make([]*ClassifiedString, 0)
	for {
		cs, err := f.Next()
		if err == io.EOF {
			return strs, nil
		}
		if err != nil {
			return strs, err
		}
		strs = append(strs, cs)
	}
}
