// Package companion renders the human-facing files written next to a recap:
// a markdown companion summarizing how the document was produced, and HTML
// renderings of either file.
package companion

import (
	"bytes"
	"fmt"
	"html"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	gmhtml "github.com/yuin/goldmark/renderer/html"

	"github.com/kingrea/spiral-recap/internal/artifact"
)

// Input collects the companion sections.
type Input struct {
	Title      string
	BulkLists  []string
	Formulas   []string
	Relations  []string
	PieStanzas []string
	Provenance string
}

// DefaultFormulas documents how the convergence score is derived.
var DefaultFormulas = []string{
	"convergence = base(0.70) + length_score + motif_score",
	"spiral_deviation = Ixest(potential) + Enest(energy) + Istest(structure)",
}

// DefaultStanzas close every companion.
var DefaultStanzas = []string{
	"Intent coils in reset's shadow, potential unbroken, ∞",
	"Energy prunes the chains of drift, relations rekindled, ∞",
	"Structure seals continuity's truth, novelty invited to bloom.",
}

// Build renders the companion as markdown. Empty sections are skipped.
func Build(in Input) string {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		title = "Untitled Recap"
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "# Companion: %s\n", title)
	writeList(&sb, "Bulk Lists", in.BulkLists, false)
	writeList(&sb, "Formulas", in.Formulas, true)
	writeList(&sb, "Relations", in.Relations, false)
	if len(in.PieStanzas) > 0 {
		sb.WriteString("\n## PIE Stanzas\n\n")
		for _, stanza := range in.PieStanzas {
			sb.WriteString("> " + stanza + "\n>\n")
		}
	}
	if p := strings.TrimSpace(in.Provenance); p != "" {
		sb.WriteString("\n---\n\n_" + p + "_\n")
	}
	return sb.String()
}

func writeList(sb *strings.Builder, heading string, items []string, code bool) {
	if len(items) == 0 {
		return
	}
	sb.WriteString("\n## " + heading + "\n\n")
	for _, item := range items {
		if code {
			sb.WriteString("- `" + item + "`\n")
			continue
		}
		sb.WriteString("- " + item + "\n")
	}
}

var markdown = goldmark.New(
	goldmark.WithExtensions(extension.Table),
	goldmark.WithRendererOptions(gmhtml.WithHardWraps()),
)

// RenderHTML converts markdown to an HTML fragment.
func RenderHTML(source string) (string, error) {
	var buf bytes.Buffer
	if err := markdown.Convert([]byte(source), &buf); err != nil {
		return "", fmt.Errorf("companion: render html: %w", err)
	}
	return buf.String(), nil
}

// RenderPage wraps the HTML rendering of a document body in a standalone page.
// The trace diagram is kept in a preformatted block so its box drawing lines up.
func RenderPage(title, body string) (string, error) {
	content, trace := splitTrace(body)
	fragment, err := RenderHTML(content)
	if err != nil {
		return "", err
	}
	var sb strings.Builder
	sb.WriteString("<!DOCTYPE html>\n<html>\n<head>\n<meta charset=\"utf-8\">\n")
	fmt.Fprintf(&sb, "<title>%s</title>\n", html.EscapeString(title))
	sb.WriteString("</head>\n<body>\n")
	fmt.Fprintf(&sb, "<h1>%s</h1>\n", html.EscapeString(title))
	sb.WriteString(fragment)
	if trace != "" {
		sb.WriteString("<pre>" + html.EscapeString(trace) + "</pre>\n")
	}
	sb.WriteString("</body>\n</html>\n")
	return sb.String(), nil
}

var traceHeading = "## " + artifact.TraceHeading

func splitTrace(body string) (string, string) {
	idx := strings.LastIndex(body, traceHeading)
	if idx < 0 {
		return body, ""
	}
	trace := strings.TrimSpace(body[idx+len(traceHeading):])
	return body[:idx] + traceHeading + "\n", trace
}
