package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// Algorithm names the fingerprinting scheme that produced a print. Prints
// from different algorithms are never comparable.
type Algorithm string

const (
	// AlgorithmChromaprint is the external fpcalc/chromaprint scheme
	AlgorithmChromaprint Algorithm = "chromaprint"
	// AlgorithmSpectral is the built-in band-energy scheme used when
	// fpcalc is not deployed
	AlgorithmSpectral Algorithm = "spectral"
)

// Fingerprint is an opaque acoustic signature: one 32-bit sub-print per
// frame. Callers only compare and cache fingerprints; the hash layout is
// an implementation detail of the producing algorithm.
type Fingerprint struct {
	Algorithm Algorithm `json:"algorithm" yaml:"algorithm"`
	Hashes    []uint32  `json:"hashes" yaml:"hashes"`
}

// Empty reports whether the fingerprint carries no sub-prints
func (fp *Fingerprint) Empty() bool {
	return fp == nil || len(fp.Hashes) == 0
}

// Equal reports deep equality. Byte-identical audio always produces equal
// fingerprints under the same algorithm.
func (fp *Fingerprint) Equal(other *Fingerprint) bool {
	if fp == nil || other == nil {
		return fp == other
	}
	if fp.Algorithm != other.Algorithm || len(fp.Hashes) != len(other.Hashes) {
		return false
	}
	for i, h := range fp.Hashes {
		if other.Hashes[i] != h {
			return false
		}
	}
	return true
}

// Encode renders the fingerprint as "algorithm:h1,h2,..." for storage
func (fp *Fingerprint) Encode() string {
	if fp.Empty() {
		return string(fp.Algorithm) + ":"
	}
	parts := make([]string, len(fp.Hashes))
	for i, h := range fp.Hashes {
		parts[i] = strconv.FormatUint(uint64(h), 10)
	}
	return string(fp.Algorithm) + ":" + strings.Join(parts, ",")
}

// DecodeFingerprint parses the Encode format back into a fingerprint
func DecodeFingerprint(encoded string) (*Fingerprint, error) {
	algo, rest, found := strings.Cut(encoded, ":")
	if !found || algo == "" {
		return nil, fmt.Errorf("malformed fingerprint encoding")
	}
	fp := &Fingerprint{Algorithm: Algorithm(algo)}
	if strings.TrimSpace(rest) == "" {
		return nil, fmt.Errorf("fingerprint %q carries no hashes", algo)
	}
	for _, part := range strings.Split(rest, ",") {
		v, err := strconv.ParseInt(strings.TrimSpace(part), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid fingerprint value %q: %w", part, err)
		}
		fp.Hashes = append(fp.Hashes, uint32(v))
	}
	return fp, nil
}

// Key is a content-addressed cache key: hex SHA-256 over the leading bytes
// of the file. Files that differ only past the probed prefix share a key;
// acceptable for re-encode QA where headers and early frames dominate.
type Key string

// keyProbeBytes is how much of the file participates in the key
const keyProbeBytes = 1 << 20

// ContentKey derives the cache key for a file
func ContentKey(path string) (Key, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open for content key: %w", err)
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.CopyN(h, f, keyProbeBytes); err != nil && err != io.EOF {
		return "", fmt.Errorf("hash content prefix: %w", err)
	}
	return Key(hex.EncodeToString(h.Sum(nil))), nil
}
