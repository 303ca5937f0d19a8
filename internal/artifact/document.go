// Package artifact defines the .srec continuity document: its frontmatter
// metadata, the rendered stage body, and the store that reads and writes the
// files on disk.
package artifact

import (
	"errors"
	"fmt"
	"strings"

	"github.com/kingrea/spiral-recap/internal/routine"
)

// FormatVersion is written to every generated document.
const FormatVersion = "3.1"

// Frontmatter keys in the order they are rendered.
const (
	KeyTitle       = "title"
	KeyDate        = "date"
	KeyVersion     = "version"
	KeyConvergence = "convergence"
	KeyPieVector   = "pie_vector"
	KeyKeyMotifs   = "key_motifs"
	KeySRTMode     = "srt_mode"
	KeyInputLength = "input_length"
)

// RequiredKeys lists the keys a complete document carries. input_length is
// only written for text-driven generations and is not required.
var RequiredKeys = []string{KeyTitle, KeyDate, KeyVersion, KeyConvergence, KeyPieVector, KeyKeyMotifs, KeySRTMode}

// Metadata is the frontmatter block of a document.
type Metadata struct {
	Title       string   `yaml:"title"`
	Date        string   `yaml:"date"`
	Version     string   `yaml:"version"`
	Convergence string   `yaml:"convergence"`
	PieVector   string   `yaml:"pie_vector"`
	KeyMotifs   []string `yaml:"key_motifs"`
	SRTMode     bool     `yaml:"srt_mode"`
	InputLength *int     `yaml:"input_length,omitempty"`
}

// Clone returns a deep copy of the metadata.
func (m Metadata) Clone() Metadata {
	clone := m
	clone.KeyMotifs = append([]string{}, m.KeyMotifs...)
	if m.InputLength != nil {
		n := *m.InputLength
		clone.InputLength = &n
	}
	return clone
}

// ParsedSection is a heading and its text recovered from a document body.
type ParsedSection struct {
	Heading string
	Text    string
}

// Decoded is everything Decode recovers from a document.
type Decoded struct {
	Metadata    Metadata
	Keys        []string
	PieVector   string
	Motifs      []string
	Seal        string
	Convergence string
	Body        string
	Sections    []ParsedSection
	Trace       string
	Warning     *MissingKeyWarning
}

// Section returns the parsed section under heading, if present.
func (d Decoded) Section(heading string) (ParsedSection, bool) {
	for _, s := range d.Sections {
		if s.Heading == heading {
			return s, true
		}
	}
	return ParsedSection{}, false
}

// HasKey reports whether the frontmatter carried key, whatever its value.
func (d Decoded) HasKey(key string) bool {
	for _, k := range d.Keys {
		if k == key {
			return true
		}
	}
	return false
}

// LastStage returns the Synthesis section of the body.
func (d Decoded) LastStage() (ParsedSection, bool) {
	stage, ok := routine.Lookup("synthesis")
	if !ok {
		return ParsedSection{}, false
	}
	return d.Section(stage.Heading)
}

var (
	// ErrMissingFrontMatter indicates the document did not start with a YAML fence.
	ErrMissingFrontMatter = errors.New("artifact: missing frontmatter")
	// ErrIncompleteFrontMatter indicates the closing fence was never found.
	ErrIncompleteFrontMatter = errors.New("artifact: incomplete frontmatter")
	// ErrMalformedFrontMatter indicates the YAML block could not be parsed.
	ErrMalformedFrontMatter = errors.New("artifact: malformed frontmatter")
)

// FormatError reports which decoding stage rejected a document.
type FormatError struct {
	Stage string
	Err   error
}

func (e *FormatError) Error() string {
	if e.Err == nil {
		return "artifact: " + e.Stage
	}
	return fmt.Sprintf("artifact: %s: %v", e.Stage, e.Err)
}

func (e *FormatError) Unwrap() error { return e.Err }

// MissingKeyWarning lists expected frontmatter keys absent from a document.
// Decoding still succeeds; callers fall back to defaults.
type MissingKeyWarning struct {
	Keys []string
}

func (w *MissingKeyWarning) Error() string {
	parts := make([]string, len(w.Keys))
	for i, key := range w.Keys {
		parts[i] = fmt.Sprintf("key %s missing", key)
	}
	return "artifact: " + strings.Join(parts, ", ")
}
