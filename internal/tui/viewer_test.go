package tui

import (
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/kingrea/spiral-recap/internal/artifact"
	"github.com/kingrea/spiral-recap/internal/recap"
)

func sampleDecoded() artifact.Decoded {
	return artifact.Decoded{
		Metadata:    artifact.Metadata{Title: "Night Session", Version: artifact.FormatVersion},
		Motifs:      []string{"Spiral", "Memory"},
		Convergence: "η ≈ 0.85",
		Sections: []artifact.ParsedSection{
			{Heading: "Foundation Routine (Initial Understanding)", Text: "- Core anchors: Spiral, Memory"},
			{Heading: "Synthesis Routine (Verification)", Text: "- Integrated.\n\nPoetic Seal: Coils carry Spiral"},
		},
		Trace: "[Start] ──► [Foundation η=0.70]",
	}
}

func key(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func TestViewerQuitsOnQ(t *testing.T) {
	v := NewViewer("notes/night.srec", sampleDecoded())
	_, cmd := v.Update(key("q"))
	if cmd == nil {
		t.Fatalf("expected quit command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Fatalf("expected tea.QuitMsg")
	}
}

func TestViewerRendersAfterResize(t *testing.T) {
	v := NewViewer("notes/night.srec", sampleDecoded())
	if got := v.View(); got != "Loading document..." {
		t.Fatalf("view before resize = %q", got)
	}
	v.Update(tea.WindowSizeMsg{Width: 100, Height: 40})
	out := v.View()
	for _, want := range []string{"Night Session", "night.srec", "η ≈ 0.85", "Foundation Routine (Initial Understanding)", "Poetic Seal: Coils carry Spiral"} {
		if !strings.Contains(out, want) {
			t.Fatalf("view missing %q:\n%s", want, out)
		}
	}
}

func TestViewerSectionNavigationClamps(t *testing.T) {
	v := NewViewer("night.srec", sampleDecoded())
	v.Update(tea.WindowSizeMsg{Width: 80, Height: 10})
	for i := 0; i < 5; i++ {
		v.Update(key("n"))
	}
	// two stage sections plus the trace
	if got := v.Section(); got != 2 {
		t.Fatalf("section after jumping forward = %d, want 2", got)
	}
	v.Update(key("p"))
	if got := v.Section(); got != 1 {
		t.Fatalf("section after jumping back = %d, want 1", got)
	}
	v.Update(key("g"))
	if got := v.Section(); got != 0 {
		t.Fatalf("section after top = %d, want 0", got)
	}
}

func TestRenderBootstrapShowsAnchors(t *testing.T) {
	b := recap.NewBootstrap(sampleDecoded())
	out := RenderBootstrap(b)
	for _, want := range []string{"Night Session", "Spiral, Memory", "[no seal found]", "η ≈ 0.85", recap.Closing} {
		if !strings.Contains(out, want) {
			t.Fatalf("bootstrap card missing %q:\n%s", want, out)
		}
	}
}
