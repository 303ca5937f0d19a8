package recap

import (
	"fmt"
	"strings"

	"github.com/kingrea/spiral-recap/internal/artifact"
)

const pieVectorPreview = 50

// Bootstrap holds the continuity anchors handed to a new session.
type Bootstrap struct {
	Title       string
	Motifs      string
	PieVector   string
	Seal        string
	Convergence string
}

// NewBootstrap extracts the anchors from a decoded document.
func NewBootstrap(d artifact.Decoded) Bootstrap {
	pie := d.PieVector
	if len(pie) > pieVectorPreview {
		pie = pie[:pieVectorPreview] + "..."
	}
	seal := d.Seal
	if seal == "" {
		seal = "[no seal found]"
	}
	return Bootstrap{
		Title:       d.Metadata.Title,
		Motifs:      strings.Join(d.Motifs, ", "),
		PieVector:   pie,
		Seal:        seal,
		Convergence: d.Convergence,
	}
}

// Closing is the instruction that ends every bootstrap prompt.
const Closing = "Restore the residue. Continue with the same edification quest and attentive force."

// Lines returns the anchor lines in display order.
func (b Bootstrap) Lines() []string {
	return []string{
		fmt.Sprintf("- Key motifs: %s", b.Motifs),
		fmt.Sprintf("- PIE vector (mnemonic seal): %s", b.PieVector),
		fmt.Sprintf("- Poetic seal: %s", b.Seal),
		fmt.Sprintf("- Last convergence: %s", b.Convergence),
	}
}

// BootstrapPrompt renders the plain-text prompt for resuming a session from a
// decoded document.
func BootstrapPrompt(d artifact.Decoded) string {
	b := NewBootstrap(d)
	var sb strings.Builder
	sb.WriteString("=== Bootstrap Prompt for New Session ===\n")
	sb.WriteString("You are resuming a previous conversation with these continuity anchors:\n")
	for _, line := range b.Lines() {
		sb.WriteString(line + "\n")
	}
	sb.WriteString("\n" + Closing + "\n")
	return sb.String()
}
