// Package sigdb matches byte signatures in the PEiD "userdb" text format.
package sigdb

import (
	"bufio"
	"crypto/sha256"
	_ "embed"
	"encoding/hex"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/fkie-cad/malw/fileio"

	"github.com/sirupsen/logrus"
	"github.com/targodan/go-errors"
)

//go:embed userdb.txt
var defaultDatabase string

// Signature is a single named byte pattern.
type Signature struct {
	Name string
	// EPOnly signatures are only matched at the entry point.
	EPOnly bool

	index   int
	pattern []patternByte
}

// Len returns the number of bytes the signature spans.
func (s *Signature) Len() int {
	return len(s.pattern)
}

type patternByte struct {
	value byte
	mask  byte
}

func (s *Signature) matches(data []byte) bool {
	if len(data) < len(s.pattern) {
		return false
	}
	for i, p := range s.pattern {
		if data[i]&p.mask != p.value {
			return false
		}
	}
	return true
}

// Database is an immutable set of signatures. It is safe for concurrent use.
type Database struct {
	signatures []*Signature
	digest     string
}

// Len returns the number of signatures in the database.
func (db *Database) Len() int {
	return len(db.signatures)
}

// Digest returns the hex sha256 of the text the database was parsed from.
func (db *Database) Digest() string {
	return db.digest
}

var (
	defaultOnce sync.Once
	defaultDB   *Database
)

// Default returns the built-in database. It is parsed once per process.
func Default() *Database {
	defaultOnce.Do(func() {
		var err error
		defaultDB, err = Parse(strings.NewReader(defaultDatabase))
		if err != nil {
			panic(errors.Newf("built-in signature database is invalid, reason: %w", err))
		}
	})
	return defaultDB
}

// Load parses the database file at path.
func Load(path string) (*Database, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fileio.NewIOError("open", path, err)
	}
	defer f.Close()

	db, err := Parse(f)
	if err != nil {
		return nil, errors.Newf("could not parse signature database \"%s\", reason: %w", path, err)
	}
	return db, nil
}

// Parse reads a database in userdb format. Entries without a signature are
// ignored, malformed signatures are an error.
func Parse(r io.Reader) (*Database, error) {
	db := &Database{signatures: make([]*Signature, 0, 64)}

	var current *Signature
	flush := func() {
		if current == nil {
			return
		}
		if len(current.pattern) == 0 {
			logrus.WithField("signature", current.Name).Debug("Ignoring signature entry without pattern.")
		} else {
			current.index = len(db.signatures)
			db.signatures = append(db.signatures, current)
		}
		current = nil
	}

	h := sha256.New()
	scanner := bufio.NewScanner(io.TeeReader(r, h))
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if lineNo == 1 {
			line = strings.TrimPrefix(line, "\ufeff")
		}
		if line == "" || line[0] == ';' {
			continue
		}

		if line[0] == '[' {
			flush()
			end := strings.LastIndex(line, "]")
			if end < 1 {
				end = len(line)
			}
			current = &Signature{Name: strings.TrimSpace(line[1:end])}
			continue
		}

		key, value, ok := strings.Cut(line, "=")
		if !ok || current == nil {
			continue
		}
		key = strings.ToLower(strings.TrimSpace(key))
		value = strings.TrimSpace(value)

		switch key {
		case "signature":
			pattern, err := parsePattern(value)
			if err != nil {
				return nil, errors.Newf("invalid signature in line %d, reason: %w", lineNo, err)
			}
			current.pattern = pattern
		case "ep_only":
			epOnly, err := strconv.ParseBool(strings.ToLower(value))
			if err != nil {
				return nil, errors.Newf("invalid ep_only value in line %d, reason: %w", lineNo, err)
			}
			current.EPOnly = epOnly
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	flush()
	db.digest = hex.EncodeToString(h.Sum(nil))

	return db, nil
}

func parsePattern(s string) ([]patternByte, error) {
	tokens := strings.Fields(s)
	pattern := make([]patternByte, len(tokens))
	for i, token := range tokens {
		if len(token) != 2 {
			return nil, errors.Newf("token \"%s\" is not a byte", token)
		}
		var p patternByte
		for j, shift := range []uint{4, 0} {
			c := token[j]
			if c == '?' {
				continue
			}
			nibble, err := strconv.ParseUint(string(c), 16, 8)
			if err != nil {
				return nil, errors.Newf("token \"%s\" is not a hex byte", token)
			}
			p.value |= byte(nibble) << shift
			p.mask |= 0xf << shift
		}
		pattern[i] = p
	}
	return pattern, nil
}

// MatchEntryPoint finds the best ep_only signature at entryPoint. Signatures
// that are not ep_only are not considered.
func (db *Database) MatchEntryPoint(data []byte, entryPoint int64) *Signature {
	return db.Match(data, entryPoint, nil)
}

// Match finds the best signature for an image. EP only signatures are
// tested at entryPoint, all others at every offset in sectionStarts. The
// longest matching signature wins, ties go to the earlier entry in the
// database. Negative offsets are ignored. Nil is returned if nothing matches.
func (db *Database) Match(data []byte, entryPoint int64, sectionStarts []int64) *Signature {
	var best *Signature
	consider := func(sig *Signature, offset int64) {
		if offset < 0 || offset >= int64(len(data)) {
			return
		}
		if !sig.matches(data[offset:]) {
			return
		}
		if best == nil || sig.Len() > best.Len() || (sig.Len() == best.Len() && sig.index < best.index) {
			best = sig
		}
	}

	for _, sig := range db.signatures {
		if sig.EPOnly {
			consider(sig, entryPoint)
			continue
		}
		for _, start := range sectionStarts {
			consider(sig, start)
		}
	}
	return best
}
