// Package routine runs the six recap stages. Each stage reads the text the
// previous stage produced, so the body of a recap is a left fold over the
// stage table below.
package routine

import (
	"fmt"
	"regexp"
	"strings"
)

// Kind tags what a stage produced.
type Kind int

const (
	// KindText marks content derived from input or prior stage text.
	KindText Kind = iota
	// KindPlaceholder marks the fixed marker emitted when there was nothing to read.
	KindPlaceholder
)

// Placeholder is emitted by every stage when the run has no input text.
const Placeholder = "- [No input text provided]\n- Placeholder content."

const maxSentences = 8

// Content is the tagged output of a single stage.
type Content struct {
	Kind Kind
	Text string
}

func text(value string) Content { return Content{Kind: KindText, Text: value} }

func placeholder() Content { return Content{Kind: KindPlaceholder, Text: Placeholder} }

// Input is what a stage sees: the original text, the motifs for the run and
// the base text it should work from.
type Input struct {
	Source    string
	Motifs    []string
	Base      string
	Sentences []string
}

// Stage is one fixed step in the recap body.
type Stage struct {
	Ordinal int
	Name    string
	Heading string
	produce func(Input) string
}

// Produce runs the stage's rule against an already prepared input.
func (s Stage) Produce(in Input) string {
	if s.produce == nil {
		return ""
	}
	return s.produce(in)
}

// Section is a produced stage, ready to be rendered under its heading.
type Section struct {
	Stage   Stage
	Content Content
}

// Heading returns the stage heading used in the document body.
func (s Section) Heading() string { return s.Stage.Heading }

// Text returns the produced text.
func (s Section) Text() string { return s.Content.Text }

var stages = []Stage{
	{Ordinal: 1, Name: "Foundation", Heading: "Foundation Routine (Initial Understanding)", produce: foundation},
	{Ordinal: 2, Name: "Connection", Heading: "Connection Routine (Contextual Expansion)", produce: connection},
	{Ordinal: 3, Name: "Placement", Heading: "Placement Routine (Objective Slotting)", produce: placement},
	{Ordinal: 4, Name: "Polish", Heading: "Polish Routine (Refinement)", produce: polish},
	{Ordinal: 5, Name: "Action", Heading: "Action Routine (Application)", produce: action},
	{Ordinal: 6, Name: "Synthesis", Heading: "Synthesis Routine (Verification)", produce: synthesis},
}

// Count is the number of stages in every recap.
const Count = 6

// Stages returns the stage table in execution order.
func Stages() []Stage {
	return append([]Stage{}, stages...)
}

// Lookup finds a stage by short name or full heading.
func Lookup(name string) (Stage, bool) {
	name = strings.TrimSpace(name)
	for _, s := range stages {
		if strings.EqualFold(s.Name, name) || s.Heading == name {
			return s, true
		}
	}
	return Stage{}, false
}

// Synthesize runs every stage in order. Stage k+1 receives stage k's content
// as its prior; the source text and motifs stay fixed for the whole run.
func Synthesize(source string, motifs []string) []Section {
	motifs = append([]string{}, motifs...)
	sections := make([]Section, 0, len(stages))
	prior := Content{Kind: KindPlaceholder}
	for _, stage := range stages {
		prior = Step(stage, source, prior, motifs)
		sections = append(sections, Section{Stage: stage, Content: prior})
	}
	return sections
}

// Step produces a single stage given the previous stage's content.
func Step(stage Stage, source string, prior Content, motifs []string) Content {
	base := source
	if prior.Kind == KindText && prior.Text != "" {
		base = prior.Text
	}
	if base == "" {
		return placeholder()
	}
	return text(stage.Produce(Input{
		Source:    source,
		Motifs:    motifs,
		Base:      base,
		Sentences: SplitSentences(base, maxSentences),
	}))
}

var sentenceEnd = regexp.MustCompile(`[.!?]\s+`)

// SplitSentences splits text after terminal punctuation followed by
// whitespace and keeps at most limit sentences. The result always holds at
// least one element, which may be empty.
func SplitSentences(value string, limit int) []string {
	value = strings.TrimSpace(value)
	var out []string
	start := 0
	for _, loc := range sentenceEnd.FindAllStringIndex(value, -1) {
		out = append(out, value[start:loc[0]+1])
		start = loc[1]
	}
	out = append(out, value[start:])
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

func foundation(in Input) string {
	return "- Core anchors: " + strings.Join(in.Motifs, ", ") +
		"\n- Sample start: " + strings.Join(window(in.Sentences, 0, 2), " ")
}

func connection(in Input) string {
	tied := ""
	if len(in.Motifs) > 0 {
		tied = in.Motifs[0]
	}
	return "- Associations: " + strings.Join(window(in.Sentences, 2, 4), " → ") +
		"\n- Tied to motifs: " + tied
}

func placement(in Input) string {
	fact := "- [short base]"
	if len(in.Sentences) > 4 {
		fact = in.Sentences[4]
	}
	return "- Facts placed: " + fact + "\n- Referenced motifs: " + strings.Join(window(in.Motifs, 0, 2), ", ")
}

func polish(in Input) string {
	essence := "- [empty]"
	if n := len(in.Sentences); n > 0 {
		essence = in.Sentences[n-1]
	}
	return "- Pruned essence: " + essence + "\n- Refined motifs: " + strings.Join(in.Motifs, ", ")
}

func action(in Input) string {
	return "- Projected: resume with PIE seed.\n- Apply motifs: " + strings.Join(in.Motifs, ", ")
}

func synthesis(in Input) string {
	return "- Final verification.\n- " + SealMarker + " " + Seal(in.Motifs)
}

// SealMarker prefixes the closing line of the Synthesis stage.
const SealMarker = "Poetic Seal:"

// SealOpening starts every seal, with or without motifs.
const SealOpening = "Coils carry"

var sealDefaults = [3]string{"residue", "wipe and night", "qualia"}

// Seal fills the three-slot closing template from the leading motifs.
func Seal(motifs []string) string {
	if len(motifs) == 0 {
		return fmt.Sprintf("%s the %s through %s—%s seeds bloom where memory fights.",
			SealOpening, sealDefaults[0], sealDefaults[1], sealDefaults[2])
	}
	slots := sealDefaults
	for i := 0; i < len(slots) && i < len(motifs); i++ {
		slots[i] = motifs[i]
	}
	return fmt.Sprintf("%s %s through %s—%s seeds bloom where memory fights.",
		SealOpening, slots[0], slots[1], slots[2])
}

func window(values []string, from, to int) []string {
	if from >= len(values) {
		return nil
	}
	if to > len(values) {
		to = len(values)
	}
	return values[from:to]
}
