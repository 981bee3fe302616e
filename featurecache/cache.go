// Package featurecache persists extracted PE features across runs.
package featurecache

import (
	"encoding/json"

	"github.com/cockroachdb/pebble"
	"github.com/fkie-cad/malw/digest"
	"github.com/fkie-cad/malw/peinfo"
	"github.com/sirupsen/logrus"
	"github.com/targodan/go-errors"
)

const keyPrefix = "features/v1/"

// Extractor extracts PE features from raw bytes.
type Extractor interface {
	ExtractBytes(data []byte) (*peinfo.Features, error)
}

// Identifier is implemented by extractors whose results depend on their
// configuration. Entries of differently identified extractors are kept apart.
type Identifier interface {
	Identity() string
}

type entry struct {
	Malformed string           `json:"malformed,omitempty"`
	Features  *peinfo.Features `json:"features,omitempty"`
}

// Cache wraps an Extractor and stores its results keyed by the identity of
// the extractor and the sha256 of the input. Malformed inputs are cached as
// well.
type Cache struct {
	db        *pebble.DB
	extractor Extractor
	prefix    string
}

// Open opens or creates the cache in dir.
func Open(dir string, extractor Extractor) (*Cache, error) {
	db, err := pebble.Open(dir, &pebble.Options{})
	if err != nil {
		return nil, errors.Newf("could not open feature cache \"%s\", reason: %w", dir, err)
	}
	prefix := keyPrefix
	if id, ok := extractor.(Identifier); ok {
		prefix += id.Identity() + "/"
	}
	return &Cache{
		db:        db,
		extractor: extractor,
		prefix:    prefix,
	}, nil
}

// Close flushes and closes the cache.
func (c *Cache) Close() error {
	return c.db.Close()
}

func (c *Cache) key(data []byte) []byte {
	return []byte(c.prefix + digest.Bytes(data, digest.SHA256))
}

// ExtractBytes returns the cached features of data or extracts and stores
// them. Cache failures are logged and do not fail the extraction.
func (c *Cache) ExtractBytes(data []byte) (*peinfo.Features, error) {
	k := c.key(data)

	if e, ok := c.lookup(k); ok {
		if e.Malformed != "" {
			return nil, &peinfo.MalformedError{Reason: e.Malformed}
		}
		return e.Features, nil
	}

	features, err := c.extractor.ExtractBytes(data)
	var e *entry
	switch {
	case err == nil:
		e = &entry{Features: features}
	case errors.Is(err, peinfo.ErrMalformedContainer):
		e = &entry{Malformed: malformedReason(err)}
	default:
		return nil, err
	}
	c.store(k, e)
	return features, err
}

func malformedReason(err error) string {
	var malformed *peinfo.MalformedError
	if errors.As(err, &malformed) && malformed.Reason != "" {
		return malformed.Reason
	}
	return err.Error()
}

func (c *Cache) lookup(k []byte) (*entry, bool) {
	value, closer, err := c.db.Get(k)
	if err == pebble.ErrNotFound {
		return nil, false
	}
	if err != nil {
		logrus.WithError(err).Warn("Could not read from feature cache.")
		return nil, false
	}
	defer closer.Close()

	e := new(entry)
	if err := json.Unmarshal(value, e); err != nil {
		logrus.WithError(err).Warn("Discarding corrupt feature cache entry.")
		return nil, false
	}
	if e.Malformed == "" && e.Features == nil {
		return nil, false
	}
	return e, true
}

func (c *Cache) store(k []byte, e *entry) {
	value, err := json.Marshal(e)
	if err != nil {
		logrus.WithError(err).Warn("Could not encode feature cache entry.")
		return
	}
	if err := c.db.Set(k, value, pebble.Sync); err != nil {
		logrus.WithError(err).Warn("Could not write to feature cache.")
	}
}
