// internal/config/config.go
//
// This package loads spiral.yaml, the optional project file that sets the
// output layout and generation limits. The resulting Settings value is passed
// explicitly to every generation call; nothing here is global.

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/kingrea/spiral-recap/internal/convergence"
	"github.com/kingrea/spiral-recap/internal/motif"
)

const (
	// FileName is the config file looked up in the working directory.
	FileName = "spiral.yaml"

	defaultCategory = "Grok"
	defaultBaseDir  = "examples"
)

const defaultConfigYAML = `# spiral-recap configuration
version: 1

# Output layout. Documents land in <base_dir>/grok or <base_dir>/conversation.
category: Grok
base_dir: examples

# Generation limits.
max_motifs: 5
max_convergence: 0.95

# Extra outputs written next to every generated document.
companion: true
html: false

# Prometheus textfile written after each run (empty disables it).
metrics_file: ""
`

// Settings models spiral.yaml.
type Settings struct {
	Version        int     `yaml:"version"`
	Category       string  `yaml:"category"`
	BaseDir        string  `yaml:"base_dir"`
	MaxMotifs      int     `yaml:"max_motifs"`
	MaxConvergence float64 `yaml:"max_convergence"`
	Companion      bool    `yaml:"companion"`
	HTML           bool    `yaml:"html"`
	MetricsFile    string  `yaml:"metrics_file,omitempty"`
}

// Default returns the built-in settings.
func Default() Settings {
	return Settings{
		Version:        1,
		Category:       defaultCategory,
		BaseDir:        defaultBaseDir,
		MaxMotifs:      motif.DefaultMax,
		MaxConvergence: convergence.DefaultMax,
		Companion:      true,
	}
}

// Load reads settings from path. A missing file yields the defaults.
func Load(path string) (Settings, error) {
	settings := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			settings.normalize(filepath.Dir(path))
			return settings, nil
		}
		return Settings{}, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &settings); err != nil {
		return Settings{}, fmt.Errorf("config: parse %s: %w", path, err)
	}
	settings.applyDefaults()
	settings.normalize(filepath.Dir(path))
	if err := settings.Validate(); err != nil {
		return Settings{}, fmt.Errorf("config: %w", err)
	}
	return settings, nil
}

// WriteDefault creates a commented default config at path unless one exists.
func WriteDefault(path string) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("config: ensure dir: %w", err)
	}
	return os.WriteFile(path, []byte(defaultConfigYAML), 0o644)
}

// Save persists settings back to path.
func (s Settings) Save(path string) error {
	s.applyDefaults()
	if err := s.Validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	data, err := yaml.Marshal(s)
	if err != nil {
		return fmt.Errorf("config: encode config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("config: write %s: %w", path, err)
	}
	return nil
}

func (s *Settings) applyDefaults() {
	if s.Version == 0 {
		s.Version = 1
	}
	if s.MaxMotifs == 0 {
		s.MaxMotifs = motif.DefaultMax
	}
	if s.MaxConvergence == 0 {
		s.MaxConvergence = convergence.DefaultMax
	}
}

func (s *Settings) normalize(base string) {
	s.Category = strings.TrimSpace(s.Category)
	if s.Category == "" {
		s.Category = defaultCategory
	}
	s.BaseDir = resolvePath(base, strings.TrimRight(s.BaseDir, "/"))
	if s.BaseDir == "" {
		s.BaseDir = resolvePath(base, defaultBaseDir)
	}
	s.MetricsFile = resolvePath(base, s.MetricsFile)
}

// Validate reports settings that generation cannot honor.
func (s Settings) Validate() error {
	if s.Version < 1 {
		return fmt.Errorf("config version must be >= 1")
	}
	if s.MaxMotifs < 1 {
		return fmt.Errorf("max_motifs must be >= 1")
	}
	if s.MaxConvergence < convergence.Floor || s.MaxConvergence > 1 {
		return fmt.Errorf("max_convergence must be within [%.2f, 1]", convergence.Floor)
	}
	return nil
}

func resolvePath(base, candidate string) string {
	trimmed := strings.TrimSpace(candidate)
	if trimmed == "" {
		return ""
	}
	if filepath.IsAbs(trimmed) || base == "" {
		return filepath.Clean(trimmed)
	}
	return filepath.Clean(filepath.Join(base, trimmed))
}
