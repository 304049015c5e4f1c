package tracks

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

const maxPresetFileSize = 1 * 1024 * 1024 // 1MB

// presetFile is the on-disk layout of a preset YAML document.
type presetFile struct {
	Tracks []Preset `yaml:"tracks"`
}

// ParseYAML decodes and validates presets from r. Unknown keys are rejected.
// Presets without a series are tagged SeriesCustom.
func ParseYAML(r io.Reader) ([]Preset, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var f presetFile
	if err := dec.Decode(&f); err != nil {
		if err == io.EOF {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to parse presets YAML: %w", err)
	}

	seen := make(map[string]bool, len(f.Tracks))
	for i := range f.Tracks {
		p := &f.Tracks[i]
		if p.Series == "" {
			p.Series = SeriesCustom
		}
		if err := p.Validate(); err != nil {
			return nil, fmt.Errorf("preset %d: %w", i, err)
		}
		if seen[p.ID] {
			return nil, fmt.Errorf("preset %d: duplicate id %q", i, p.ID)
		}
		seen[p.ID] = true
	}
	return f.Tracks, nil
}

// LoadYAMLFile reads presets from a .yaml or .yml file of at most 1MB.
func LoadYAMLFile(path string) ([]Preset, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".yaml" && ext != ".yml" {
		return nil, fmt.Errorf("preset file must have .yaml or .yml extension, got %q", ext)
	}

	info, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat preset file: %w", err)
	}
	if info.Size() > maxPresetFileSize {
		return nil, fmt.Errorf("preset file too large: %d bytes (max %d)", info.Size(), maxPresetFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read preset file: %w", err)
	}
	presets, err := ParseYAML(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", cleanPath, err)
	}
	return presets, nil
}

// LoadFile registers every preset in a YAML file and returns how many were
// added or replaced.
func (r *Registry) LoadFile(path string) (int, error) {
	presets, err := LoadYAMLFile(path)
	if err != nil {
		return 0, err
	}
	for _, p := range presets {
		if err := r.Register(p); err != nil {
			return 0, err
		}
	}
	return len(presets), nil
}

// MarshalYAML encodes presets in the layout ParseYAML reads.
func MarshalYAML(presets []Preset) ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(presetFile{Tracks: presets}); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
