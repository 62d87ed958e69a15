package fingerprint

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFingerprintEncodeDecodeRoundTrip(t *testing.T) {
	original := &Fingerprint{
		Algorithm: AlgorithmSpectral,
		Hashes:    []uint32{0, 1, 4294967295, 123456789},
	}

	decoded, err := DecodeFingerprint(original.Encode())
	require.NoError(t, err)
	assert.True(t, original.Equal(decoded))
}

func TestDecodeFingerprintRejectsMalformed(t *testing.T) {
	for _, encoded := range []string{
		"",
		"chromaprint",
		"chromaprint:",
		":1,2,3",
		"chromaprint:1,nope,3",
	} {
		_, err := DecodeFingerprint(encoded)
		assert.Error(t, err, "expected %q to be rejected", encoded)
	}
}

func TestFingerprintEqual(t *testing.T) {
	a := &Fingerprint{Algorithm: AlgorithmChromaprint, Hashes: []uint32{1, 2, 3}}
	b := &Fingerprint{Algorithm: AlgorithmChromaprint, Hashes: []uint32{1, 2, 3}}
	c := &Fingerprint{Algorithm: AlgorithmSpectral, Hashes: []uint32{1, 2, 3}}
	d := &Fingerprint{Algorithm: AlgorithmChromaprint, Hashes: []uint32{1, 2, 4}}

	assert.True(t, a.Equal(b))
	assert.False(t, a.Equal(c), "algorithm mismatch must not compare equal")
	assert.False(t, a.Equal(d))
	assert.False(t, a.Equal(nil))

	var nilPrint *Fingerprint
	assert.True(t, nilPrint.Equal(nil))
}

func TestFingerprintEmpty(t *testing.T) {
	var nilPrint *Fingerprint
	assert.True(t, nilPrint.Empty())
	assert.True(t, (&Fingerprint{Algorithm: AlgorithmSpectral}).Empty())
	assert.False(t, (&Fingerprint{Algorithm: AlgorithmSpectral, Hashes: []uint32{9}}).Empty())
}
