package fingerprint

import (
	"bytes"
	"context"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/RyanBlaney/dubsync/pkg/logging"
)

// ChromaprintConfig holds fpcalc invocation settings
type ChromaprintConfig struct {
	// FpcalcPath overrides the fpcalc binary name
	FpcalcPath string `json:"fpcalc_path" yaml:"fpcalc_path"`
	Logger     logging.Logger
}

// ChromaprintExtractor produces chromaprint fingerprints through the fpcalc
// subprocess in raw integer form
type ChromaprintExtractor struct {
	fpcalcPath string
	logger     logging.Logger
}

// NewChromaprintExtractor creates the extractor with defaults applied
func NewChromaprintExtractor(config *ChromaprintConfig) *ChromaprintExtractor {
	if config == nil {
		config = &ChromaprintConfig{}
	}
	fpcalcPath := config.FpcalcPath
	if fpcalcPath == "" {
		fpcalcPath = "fpcalc"
	}
	logger := config.Logger
	if logger == nil {
		logger = logging.NewDefaultLogger()
	}
	return &ChromaprintExtractor{fpcalcPath: fpcalcPath, logger: logger}
}

// Algorithm identifies the scheme
func (e *ChromaprintExtractor) Algorithm() Algorithm {
	return AlgorithmChromaprint
}

// Extract runs fpcalc and parses its raw fingerprint output. Every failure
// mode (missing binary, timeout, undecodable file, unparsable output) is an
// UnavailableError so callers degrade instead of aborting.
func (e *ChromaprintExtractor) Extract(ctx context.Context, path string) (*Fingerprint, error) {
	start := time.Now()

	cmd := exec.CommandContext(ctx, e.fpcalcPath, "-raw", "-plain", path)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, NewUnavailableError(path, "fpcalc timed out", ctx.Err())
		}
		return nil, NewUnavailableError(path, "fpcalc failed: "+diagnosticExcerpt(stderr.Bytes()), err)
	}

	hashes, err := parseRawFingerprint(stdout.String())
	if err != nil {
		return nil, NewUnavailableError(path, "cannot parse fpcalc output", err)
	}

	e.logger.Debug("Computed chromaprint fingerprint", logging.Fields{
		"path":       path,
		"hashes":     len(hashes),
		"elapsed_ms": time.Since(start).Milliseconds(),
	})

	return &Fingerprint{Algorithm: AlgorithmChromaprint, Hashes: hashes}, nil
}

// parseRawFingerprint extracts the comma-separated integer list from fpcalc
// output. The -plain flag suppresses key=value framing, but a FINGERPRINT=
// prefix from older builds is tolerated.
func parseRawFingerprint(output string) ([]uint32, error) {
	line := ""
	for _, candidate := range strings.Split(output, "\n") {
		candidate = strings.TrimSpace(candidate)
		if candidate != "" {
			line = candidate
		}
	}
	line = strings.TrimPrefix(line, "FINGERPRINT=")
	if line == "" {
		return nil, strconv.ErrSyntax
	}

	parts := strings.Split(line, ",")
	hashes := make([]uint32, 0, len(parts))
	for _, part := range parts {
		v, err := strconv.ParseInt(strings.TrimSpace(part), 10, 64)
		if err != nil {
			return nil, err
		}
		hashes = append(hashes, uint32(v))
	}
	return hashes, nil
}

// diagnosticExcerpt keeps subprocess noise out of error chains
func diagnosticExcerpt(raw []byte) string {
	text := strings.TrimSpace(string(raw))
	if text == "" {
		return "no diagnostic output"
	}
	if idx := strings.IndexByte(text, '\n'); idx > 0 {
		text = text[:idx]
	}
	if len(text) > 200 {
		text = text[:200]
	}
	return text
}
