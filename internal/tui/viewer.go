// internal/tui/viewer.go
//
// A read-only pager for .srec documents. It follows The Elm Architecture
// like every bubbletea program: the Viewer holds state, Update reacts to
// key presses and window resizes, View renders the current frame.

package tui

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/kingrea/spiral-recap/internal/artifact"
)

const chromeHeight = 4

// Viewer is the bubbletea model for browsing a decoded document.
type Viewer struct {
	path     string
	doc      artifact.Decoded
	viewport viewport.Model
	ready    bool
	width    int
	height   int

	// offsets holds the content line where each section heading starts.
	offsets []int
	section int
	lines   []string
}

// NewViewer builds a viewer for a decoded document loaded from path.
func NewViewer(path string, doc artifact.Decoded) *Viewer {
	v := &Viewer{path: path, doc: doc}
	v.lines, v.offsets = renderDocument(doc)
	return v
}

// Run opens the viewer on the alternate screen and blocks until the user quits.
func Run(path string, doc artifact.Decoded) error {
	p := tea.NewProgram(NewViewer(path, doc), tea.WithAltScreen())
	_, err := p.Run()
	return err
}

// Init is called once when the program starts.
func (v *Viewer) Init() tea.Cmd {
	return nil
}

// Update handles resizes and navigation keys.
func (v *Viewer) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		v.width = msg.Width
		v.height = msg.Height
		bodyHeight := max(1, msg.Height-chromeHeight)
		if !v.ready {
			v.viewport = viewport.New(msg.Width, bodyHeight)
			v.ready = true
		} else {
			v.viewport.Width = msg.Width
			v.viewport.Height = bodyHeight
		}
		v.viewport.SetContent(strings.Join(v.lines, "\n"))
		return v, nil
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "esc", "ctrl+c":
			return v, tea.Quit
		case "n", "tab":
			v.jump(v.section + 1)
			return v, nil
		case "p", "shift+tab":
			v.jump(v.section - 1)
			return v, nil
		case "g", "home":
			v.jump(0)
			return v, nil
		}
	}
	if !v.ready {
		return v, nil
	}
	var cmd tea.Cmd
	v.viewport, cmd = v.viewport.Update(msg)
	return v, cmd
}

func (v *Viewer) jump(section int) {
	if len(v.offsets) == 0 {
		return
	}
	section = min(max(section, 0), len(v.offsets)-1)
	v.section = section
	if v.ready {
		v.viewport.SetYOffset(v.offsets[section])
	}
}

// Section returns the index of the section last jumped to.
func (v *Viewer) Section() int {
	return v.section
}

// View renders the header, the scrolled document and the key hints.
func (v *Viewer) View() string {
	if !v.ready {
		return "Loading document..."
	}
	name := filepath.Base(v.path)
	if name == "." || name == "" {
		name = "document"
	}
	header := lipgloss.JoinVertical(lipgloss.Left,
		titleStyle.Render(fmt.Sprintf("⬡ %s", fallback(v.doc.Metadata.Title, "Untitled"))),
		hintStyle.Render(fmt.Sprintf("%s · %s · v%s", name, v.doc.Convergence, v.doc.Metadata.Version)),
	)
	footer := hintStyle.Render(fmt.Sprintf("%3.f%% · n/p section · g top · q quit", v.viewport.ScrollPercent()*100))
	return lipgloss.JoinVertical(lipgloss.Left, header, v.viewport.View(), footer)
}

// renderDocument lays out the motifs, each section and the trace, and
// records where every section heading lands.
func renderDocument(doc artifact.Decoded) ([]string, []int) {
	var (
		lines   []string
		offsets []int
	)
	lines = append(lines, headingStyle.Render("Key motifs"), bodyStyle.Render(strings.Join(doc.Motifs, ", ")), "")
	for _, section := range doc.Sections {
		offsets = append(offsets, len(lines))
		lines = append(lines, headingStyle.Render("## "+section.Heading))
		for _, line := range strings.Split(section.Text, "\n") {
			if strings.Contains(line, "Poetic Seal:") {
				lines = append(lines, sealStyle.Render(line))
				continue
			}
			lines = append(lines, bodyStyle.Render(line))
		}
		lines = append(lines, "")
	}
	if doc.Trace != "" {
		offsets = append(offsets, len(lines))
		lines = append(lines, headingStyle.Render("## "+artifact.TraceHeading))
		lines = append(lines, strings.Split(doc.Trace, "\n")...)
	}
	return lines, offsets
}
