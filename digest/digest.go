// Package digest provides the cryptographic and fuzzy hashing primitives
// used to fingerprint samples.
package digest

import (
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"encoding/hex"
	"hash"
	"io"
	"os"
	"strings"

	"github.com/fkie-cad/malw/fileio"

	"github.com/targodan/go-errors"
)

// ChunkSize is the size of the chunks files are streamed in.
const ChunkSize = 8192

// Algorithm is a supported cryptographic hash function.
type Algorithm int

const (
	MD5 Algorithm = iota
	SHA1
	SHA256
)

// AllAlgorithms lists every supported Algorithm in display order.
var AllAlgorithms = []Algorithm{MD5, SHA1, SHA256}

var algorithmNames = map[Algorithm]string{
	MD5:    "md5",
	SHA1:   "sha1",
	SHA256: "sha256",
}

func (a Algorithm) String() string {
	name, ok := algorithmNames[a]
	if !ok {
		return "unknown"
	}
	return name
}

func (a Algorithm) newHash() hash.Hash {
	switch a {
	case MD5:
		return md5.New()
	case SHA1:
		return sha1.New()
	case SHA256:
		return sha256.New()
	}
	panic("unsupported hash algorithm")
}

// ParseAlgorithms parses an algorithm name. The name "all" yields AllAlgorithms.
func ParseAlgorithms(name string) ([]Algorithm, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "all" {
		return AllAlgorithms, nil
	}
	for algo, algoName := range algorithmNames {
		if algoName == name {
			return []Algorithm{algo}, nil
		}
	}
	return nil, errors.Newf("unknown hash function \"%s\", expected one of md5, sha1, sha256 or all", name)
}

// Checksum is the hex digest of one Algorithm.
type Checksum struct {
	Algorithm Algorithm `json:"-"`
	Name      string    `json:"algorithm"`
	Value     string    `json:"value"`
}

// Sum streams r in ChunkSize chunks and returns the hex digests for all given
// algorithms in the given order. The data is read exactly once.
func Sum(r io.Reader, algorithms ...Algorithm) ([]*Checksum, error) {
	hashes := make([]hash.Hash, len(algorithms))
	writers := make([]io.Writer, len(algorithms))
	for i, algo := range algorithms {
		hashes[i] = algo.newHash()
		writers[i] = hashes[i]
	}

	buf := make([]byte, ChunkSize)
	_, err := io.CopyBuffer(io.MultiWriter(writers...), r, buf)
	if err != nil {
		return nil, err
	}

	sums := make([]*Checksum, len(algorithms))
	for i, algo := range algorithms {
		sums[i] = &Checksum{
			Algorithm: algo,
			Name:      algo.String(),
			Value:     hex.EncodeToString(hashes[i].Sum(nil)),
		}
	}
	return sums, nil
}

// Bytes returns the hex digest of data.
func Bytes(data []byte, algorithm Algorithm) string {
	h := algorithm.newHash()
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// File computes the digests of the file at path, see Sum.
func File(path string, algorithms ...Algorithm) ([]*Checksum, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fileio.NewIOError("open", path, err)
	}
	defer f.Close()

	sums, err := Sum(f, algorithms...)
	if err != nil {
		return nil, fileio.NewIOError("read", path, err)
	}
	return sums, nil
}
