package artifact

import (
	"bytes"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/kingrea/spiral-recap/internal/convergence"
	"github.com/kingrea/spiral-recap/internal/routine"
)

const (
	fence        = "---"
	headingMark  = "## "
	TraceHeading = "Iterative Progression Trace"
)

// Document is a recap ready to be encoded.
type Document struct {
	Metadata Metadata
	Sections []routine.Section
	Score    float64
}

// Encode renders metadata, the six stage sections and the progression trace
// into document text.
func Encode(doc Document) (string, error) {
	if strings.TrimSpace(doc.Metadata.Title) == "" {
		return "", fmt.Errorf("artifact: metadata missing title")
	}
	if len(doc.Sections) != routine.Count {
		return "", fmt.Errorf("artifact: expected %d sections, got %d", routine.Count, len(doc.Sections))
	}
	meta, err := marshalMetadata(doc.Metadata)
	if err != nil {
		return "", err
	}
	blocks := make([]string, 0, len(doc.Sections))
	for _, section := range doc.Sections {
		blocks = append(blocks, headingMark+section.Heading()+"\n"+section.Text())
	}
	var buf strings.Builder
	buf.WriteString(fence + "\n")
	buf.Write(bytes.TrimRight(meta, "\n"))
	buf.WriteString("\n" + fence + "\n\n")
	buf.WriteString(strings.Join(blocks, "\n\n"))
	buf.WriteString("\n\n" + headingMark + TraceHeading + "\n")
	buf.WriteString(Trace(doc.Score))
	return buf.String(), nil
}

func marshalMetadata(meta Metadata) ([]byte, error) {
	if meta.KeyMotifs == nil {
		meta.KeyMotifs = []string{}
	}
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(meta); err != nil {
		return nil, fmt.Errorf("artifact: encode frontmatter: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("artifact: encode frontmatter: %w", err)
	}
	return buf.Bytes(), nil
}

// Trace renders the fixed progression diagram annotated with the final score.
func Trace(score float64) string {
	lines := []string{
		"[Start] ──► [Foundation η=0.70] ──► [Connection η=0.82] ──► [Placement η=0.89]",
		"          │                        │                       │",
		"          └─ depth: 2 ─────────────┴─ +3 assoc ───────────┴─ facts slotted",
		"[Polish η=0.91] ──► [Action η=0.92] ──► [Synthesis η=0.93]",
		"          │                        │",
		"          └─ pruned bloat ──────────┴─ actionable + seal",
		fmt.Sprintf("Converged ────────────────────────────────────────────────► η=%.2f", score),
	}
	return strings.Join(lines, "\n")
}

// Decode parses document text. Structural problems return a *FormatError;
// absent metadata keys only populate Decoded.Warning.
func Decode(content string) (Decoded, error) {
	normalized := strings.ReplaceAll(content, "\r\n", "\n")
	if !strings.HasPrefix(normalized, fence) {
		return Decoded{}, &FormatError{Stage: "missing frontmatter", Err: ErrMissingFrontMatter}
	}
	metaText, body, ok := splitFrontMatter(normalized)
	if !ok {
		return Decoded{}, &FormatError{Stage: "incomplete frontmatter", Err: ErrIncompleteFrontMatter}
	}
	meta, keys, err := parseMetadata(metaText)
	if err != nil {
		return Decoded{}, &FormatError{Stage: "malformed frontmatter", Err: fmt.Errorf("%w: %v", ErrMalformedFrontMatter, err)}
	}
	body = strings.TrimSpace(body)
	decoded := Decoded{
		Metadata:    meta,
		Keys:        keys,
		PieVector:   meta.PieVector,
		Motifs:      append([]string{}, meta.KeyMotifs...),
		Seal:        findSeal(body),
		Convergence: meta.Convergence,
		Body:        body,
	}
	decoded.Sections, decoded.Trace = parseBody(body)
	if missing := missingKeys(keys); len(missing) > 0 {
		decoded.Warning = &MissingKeyWarning{Keys: missing}
	}
	return decoded, nil
}

// splitFrontMatter returns the YAML between the opening and closing fences
// and everything after the closing fence.
func splitFrontMatter(normalized string) (string, string, bool) {
	newline := strings.IndexByte(normalized, '\n')
	if newline < 0 || strings.TrimSpace(normalized[:newline]) != fence {
		return "", "", false
	}
	rest := normalized[newline+1:]
	if strings.HasPrefix(rest, fence+"\n") {
		return "", rest[len(fence)+1:], true
	}
	if parts := strings.SplitN(rest, "\n"+fence+"\n", 2); len(parts) == 2 {
		return parts[0], parts[1], true
	}
	if strings.HasSuffix(rest, "\n"+fence) {
		return strings.TrimSuffix(rest, "\n"+fence), "", true
	}
	return "", "", false
}

func parseMetadata(text string) (Metadata, []string, error) {
	var root yaml.Node
	if err := yaml.Unmarshal([]byte(text), &root); err != nil {
		return Metadata{}, nil, err
	}
	mapping := &root
	if root.Kind == yaml.DocumentNode && len(root.Content) > 0 {
		mapping = root.Content[0]
	}
	if mapping.Kind != yaml.MappingNode {
		return Metadata{}, nil, fmt.Errorf("frontmatter is not a key/value mapping")
	}
	keys := make([]string, 0, len(mapping.Content)/2)
	for i := 0; i+1 < len(mapping.Content); i += 2 {
		keys = append(keys, mapping.Content[i].Value)
	}
	var meta Metadata
	if err := mapping.Decode(&meta); err != nil {
		return Metadata{}, nil, err
	}
	if meta.KeyMotifs == nil {
		meta.KeyMotifs = []string{}
	}
	return meta, keys, nil
}

func missingKeys(present []string) []string {
	seen := make(map[string]struct{}, len(present))
	for _, key := range present {
		seen[key] = struct{}{}
	}
	var missing []string
	for _, key := range RequiredKeys {
		if _, ok := seen[key]; !ok {
			missing = append(missing, key)
		}
	}
	return missing
}

func findSeal(body string) string {
	lines := strings.Split(body, "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		line := lines[i]
		if strings.Contains(line, routine.SealMarker) || strings.Contains(line, routine.SealOpening) {
			return strings.TrimSpace(line)
		}
	}
	return ""
}

// parseBody splits the body on the known stage headings, in stage order,
// followed by the trace heading. Other "## " lines stay inside section text.
// Only the blank line separating two sections is removed.
func parseBody(body string) ([]ParsedSection, string) {
	type mark struct {
		heading string
		start   int
		text    int
	}
	var marks []mark
	pos := 0
	for _, stage := range routine.Stages() {
		at := headingIndex(body, stage.Heading, pos, false)
		if at < 0 {
			continue
		}
		line := len(headingMark + stage.Heading)
		marks = append(marks, mark{heading: stage.Heading, start: at, text: at + line})
		pos = at + line
	}
	if at := headingIndex(body, TraceHeading, pos, true); at >= 0 {
		marks = append(marks, mark{heading: TraceHeading, start: at, text: at + len(headingMark+TraceHeading)})
	}

	var (
		sections []ParsedSection
		trace    string
	)
	for i, m := range marks {
		end := len(body)
		if i+1 < len(marks) {
			end = marks[i+1].start
		}
		text := strings.TrimPrefix(body[m.text:end], "\n")
		if strings.HasSuffix(text, "\n\n") {
			text = strings.TrimSuffix(text, "\n\n")
		} else {
			text = strings.TrimSuffix(text, "\n")
		}
		if m.heading == TraceHeading {
			trace = text
			continue
		}
		sections = append(sections, ParsedSection{Heading: m.heading, Text: text})
	}
	return sections, trace
}

// headingIndex finds a "## heading" line at or after pos. With last set it
// returns the final such line instead of the first.
func headingIndex(body, heading string, pos int, last bool) int {
	line := headingMark + heading
	found := -1
	for pos <= len(body) {
		idx := strings.Index(body[pos:], line)
		if idx < 0 {
			break
		}
		at := pos + idx
		after := at + len(line)
		if (at == 0 || body[at-1] == '\n') && (after == len(body) || body[after] == '\n') {
			if !last {
				return at
			}
			found = at
		}
		pos = after
	}
	return found
}

// Score returns the two-decimal score recovered from the convergence display
// string. The raw value used at generation time is not recoverable.
func (d Decoded) Score() (float64, error) {
	return convergence.ParseDisplay(d.Convergence)
}
