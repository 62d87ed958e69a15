package app

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Manifest describes a batch on disk: one reference recording and the
// candidate dubs to compare against it. Relative paths resolve against the
// manifest's own directory.
type Manifest struct {
	Reference  string   `yaml:"reference" json:"reference"`
	Candidates []string `yaml:"candidates" json:"candidates"`
}

// LoadManifest loads a batch manifest from a YAML or JSON file
func LoadManifest(path string) (*Manifest, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("manifest file does not exist: %s", path)
	}

	switch filepath.Ext(path) {
	case ".yaml", ".yml":
		return loadManifestYAML(path)
	case ".json":
		return loadManifestJSON(path)
	default:
		// Try YAML first, then JSON
		if manifest, err := loadManifestYAML(path); err == nil {
			return manifest, nil
		}
		return loadManifestJSON(path)
	}
}

func loadManifestYAML(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest file: %w", err)
	}

	var manifest Manifest
	if err := yaml.Unmarshal(data, &manifest); err != nil {
		return nil, fmt.Errorf("failed to parse YAML manifest: %w", err)
	}

	return finishManifest(&manifest, path)
}

func loadManifestJSON(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest file: %w", err)
	}

	var manifest Manifest
	if err := json.Unmarshal(data, &manifest); err != nil {
		return nil, fmt.Errorf("failed to parse JSON manifest: %w", err)
	}

	return finishManifest(&manifest, path)
}

func finishManifest(manifest *Manifest, path string) (*Manifest, error) {
	if manifest.Reference == "" {
		return nil, fmt.Errorf("manifest has no reference recording")
	}
	if len(manifest.Candidates) == 0 {
		return nil, fmt.Errorf("manifest has no candidate recordings")
	}

	base := filepath.Dir(path)
	manifest.Reference = resolvePath(base, manifest.Reference)
	for i, candidate := range manifest.Candidates {
		manifest.Candidates[i] = resolvePath(base, candidate)
	}

	return manifest, nil
}

func resolvePath(base, p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(base, p)
}
