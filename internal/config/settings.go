package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"gopkg.in/yaml.v3"
)

// ColorMode selects when CLI output is colored.
type ColorMode string

const (
	ColorAuto   ColorMode = "auto"
	ColorAlways ColorMode = "always"
	ColorNever  ColorMode = "never"
)

// Settings represents the typesubst.yaml configuration.
type Settings struct {
	// Parallelism bounds how many scenario cases are evaluated at once.
	// Defaults to the number of CPUs.
	Parallelism int `yaml:"parallelism,omitempty"`

	// Color is one of auto, always, never. Defaults to auto, which colors
	// only when stdout is a terminal.
	Color ColorMode `yaml:"color,omitempty"`

	// Trace logs every pipeline stage and inference step to stderr.
	Trace bool `yaml:"trace,omitempty"`

	// KeepAnnotations makes scenario cases use safe substitution, which
	// merges annotations of replaced occurrences into their replacements.
	KeepAnnotations bool `yaml:"keep_annotations,omitempty"`
}

// DefaultSettings is what a missing settings file means.
func DefaultSettings() *Settings {
	s := &Settings{}
	s.setDefaults()
	return s
}

// LoadSettings reads and parses a typesubst.yaml file.
func LoadSettings(path string) (*Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading settings %s: %w", path, err)
	}
	return ParseSettings(data, path)
}

// ParseSettings parses typesubst.yaml content from bytes.
// The path argument is used only for error messages.
func ParseSettings(data []byte, path string) (*Settings, error) {
	var s Settings
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	if err := s.validate(path); err != nil {
		return nil, err
	}
	s.setDefaults()
	return &s, nil
}

// FindSettings searches for typesubst.yaml starting from dir and walking up
// to parent directories. Returns an empty path and nil error if not found.
func FindSettings(dir string) (string, error) {
	dir, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("resolving directory: %w", err)
	}
	for {
		for _, name := range SettingsFileNames {
			candidate := filepath.Join(dir, name)
			if _, err := os.Stat(candidate); err == nil {
				return candidate, nil
			}
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", nil
		}
		dir = parent
	}
}

func (s *Settings) validate(path string) error {
	if s.Parallelism < 0 {
		return fmt.Errorf("%s: parallelism must not be negative, got %d", path, s.Parallelism)
	}
	switch s.Color {
	case "", ColorAuto, ColorAlways, ColorNever:
	default:
		return fmt.Errorf("%s: color must be auto, always or never, got %q", path, s.Color)
	}
	return nil
}

func (s *Settings) setDefaults() {
	if s.Parallelism == 0 {
		s.Parallelism = runtime.NumCPU()
	}
	if s.Color == "" {
		s.Color = ColorAuto
	}
}
