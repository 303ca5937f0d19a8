// Package recap generates continuity documents and chains new ones from
// documents written earlier.
package recap

import (
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"github.com/kingrea/spiral-recap/internal/artifact"
	"github.com/kingrea/spiral-recap/internal/config"
	"github.com/kingrea/spiral-recap/internal/convergence"
	"github.com/kingrea/spiral-recap/internal/motif"
	"github.com/kingrea/spiral-recap/internal/routine"
)

const (
	// DefaultTitle is used when a generation request carries no title.
	DefaultTitle = "Untitled Recap"

	dateLayout     = "2006-01-02 15:04 MST"
	seedInputRunes = 100
	continuedTitle = "Continued: "
)

// Logger receives non-fatal notices raised while generating.
type Logger interface {
	Info(format string, args ...any)
	Warn(format string, args ...any)
}

// Generator turns input text into documents. It holds only immutable
// limits and collaborators, so one value can serve any number of calls.
type Generator struct {
	maxMotifs      int
	maxConvergence float64
	now            func() time.Time
	log            Logger
}

// Option customizes the generator.
type Option func(*Generator)

// WithClock injects a deterministic clock (primarily for tests).
func WithClock(clock func() time.Time) Option {
	return func(g *Generator) {
		if clock != nil {
			g.now = clock
		}
	}
}

// WithLogger routes warnings such as missing frontmatter keys.
func WithLogger(log Logger) Option {
	return func(g *Generator) {
		g.log = log
	}
}

// NewGenerator builds a generator bounded by the given settings.
func NewGenerator(settings config.Settings, opts ...Option) *Generator {
	g := &Generator{
		maxMotifs:      settings.MaxMotifs,
		maxConvergence: settings.MaxConvergence,
		now:            time.Now,
	}
	if g.maxMotifs <= 0 {
		g.maxMotifs = motif.DefaultMax
	}
	if g.maxConvergence <= 0 {
		g.maxConvergence = convergence.DefaultMax
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Request describes a fresh generation.
type Request struct {
	Title string
	Input string
	// Motifs replaces extraction when OverrideMotifs is set, even when empty.
	Motifs         []string
	OverrideMotifs bool
	Convergence    *float64
	Seed           []byte
}

// Result is a generated document plus the values used to build it.
type Result struct {
	Document    string
	Convergence float64
	Motifs      []string
	Seed        []byte
	Metadata    artifact.Metadata
	Sections    []routine.Section
	// Previous is set when the document was resumed from another one.
	Previous *artifact.Decoded
}

// Generate runs extraction, scoring and the six stages, then encodes the
// document.
func (g *Generator) Generate(req Request) (Result, error) {
	title := strings.TrimSpace(req.Title)
	if title == "" {
		title = DefaultTitle
	}
	var motifs []string
	if req.OverrideMotifs {
		motifs = append([]string{}, req.Motifs...)
	} else {
		motifs = motif.Extract(req.Input, g.maxMotifs)
	}
	words := len(strings.Fields(req.Input))
	score := convergence.Compute(words, motif.Count(motifs), g.maxConvergence)
	if req.Convergence != nil {
		score = *req.Convergence
	}
	seed := req.Seed
	if seed == nil {
		seed = DeriveSeed(title, motifs, req.Input)
	}
	meta := artifact.Metadata{
		Title:       title,
		Date:        g.now().Format(dateLayout),
		Version:     artifact.FormatVersion,
		Convergence: convergence.Display(score),
		PieVector:   base64.StdEncoding.EncodeToString(seed),
		KeyMotifs:   motifs,
		SRTMode:     true,
	}
	if req.Input != "" {
		meta.InputLength = &words
	}
	sections := routine.Synthesize(req.Input, motifs)
	doc, err := artifact.Encode(artifact.Document{Metadata: meta, Sections: sections, Score: score})
	if err != nil {
		return Result{}, fmt.Errorf("recap: encode %q: %w", title, err)
	}
	return Result{
		Document:    doc,
		Convergence: score,
		Motifs:      append([]string{}, motifs...),
		Seed:        append([]byte{}, seed...),
		Metadata:    meta.Clone(),
		Sections:    sections,
	}, nil
}

// DeriveSeed builds the default seed from the title, motifs and the first
// hundred runes of input.
func DeriveSeed(title string, motifs []string, input string) []byte {
	prefix := input
	if runes := []rune(input); len(runes) > seedInputRunes {
		prefix = string(runes[:seedInputRunes])
	}
	return []byte(title + ": " + strings.Join(motifs, " ") + " - " + prefix)
}

// ResumeRequest describes a generation chained from a previous document.
type ResumeRequest struct {
	Input string
	// Title overrides the derived "Continued: <title>" when non-empty.
	Title          string
	Motifs         []string
	OverrideMotifs bool
	Convergence    *float64
}

// Resume decodes a previous document and generates a new one carrying its
// seed and motifs. The previous text is only read.
func (g *Generator) Resume(previous string, req ResumeRequest) (Result, error) {
	decoded, err := artifact.Decode(previous)
	if err != nil {
		return Result{}, fmt.Errorf("recap: decode previous document: %w", err)
	}
	if decoded.Warning != nil {
		g.warn("resume source incomplete: %v", decoded.Warning)
	}
	seed, err := decodeSeed(decoded.PieVector)
	if err != nil {
		return Result{}, err
	}
	if seed == nil {
		g.warn("resume source has no pie_vector; deriving a fresh seed")
	}
	title := strings.TrimSpace(req.Title)
	if title == "" {
		previousTitle := strings.TrimSpace(decoded.Metadata.Title)
		if previousTitle == "" {
			previousTitle = "Untitled"
		}
		title = continuedTitle + previousTitle
	}
	next := Request{
		Title:       title,
		Input:       req.Input,
		Convergence: req.Convergence,
		Seed:        seed,
	}
	switch {
	case req.OverrideMotifs:
		next.Motifs, next.OverrideMotifs = req.Motifs, true
	case decoded.HasKey(artifact.KeyKeyMotifs):
		next.Motifs, next.OverrideMotifs = decoded.Motifs, true
	default:
		g.info("resume source has no key_motifs; extracting from new input")
	}
	result, err := g.Generate(next)
	if err != nil {
		return Result{}, err
	}
	result.Previous = &decoded
	return result, nil
}

func decodeSeed(pieVector string) ([]byte, error) {
	trimmed := strings.TrimSpace(pieVector)
	if trimmed == "" {
		return nil, nil
	}
	seed, err := base64.StdEncoding.DecodeString(trimmed)
	if err != nil {
		return nil, fmt.Errorf("recap: decode pie_vector: %w", err)
	}
	return seed, nil
}

func (g *Generator) warn(format string, args ...any) {
	if g.log != nil {
		g.log.Warn(format, args...)
	}
}

func (g *Generator) info(format string, args ...any) {
	if g.log != nil {
		g.log.Info(format, args...)
	}
}
