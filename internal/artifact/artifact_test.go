package artifact

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/kingrea/spiral-recap/internal/convergence"
	"github.com/kingrea/spiral-recap/internal/routine"
)

func sampleDocument(t *testing.T) (Document, string) {
	t.Helper()
	motifs := []string{"Spiral", "Residue", "Night"}
	words := 12
	doc := Document{
		Metadata: Metadata{
			Title:       "Session: Recap",
			Date:        "2026-10-18 09:30 UTC",
			Version:     FormatVersion,
			Convergence: convergence.Display(0.9312),
			PieVector:   "U2Vzc2lvbjogUmVjYXA=",
			KeyMotifs:   motifs,
			SRTMode:     true,
			InputLength: &words,
		},
		Sections: routine.Synthesize("Spiral residue returns. Night holds the spiral. Residue fades.", motifs),
		Score:    0.9312,
	}
	text, err := Encode(doc)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	return doc, text
}

func TestEncodeLayout(t *testing.T) {
	_, text := sampleDocument(t)
	if !strings.HasPrefix(text, "---\ntitle: ") {
		t.Fatalf("document should open with frontmatter, got %q", text[:20])
	}
	order := []string{"title:", "date:", "version:", "convergence:", "pie_vector:", "key_motifs:", "srt_mode:", "input_length:", "\n---\n\n## Foundation Routine"}
	last := -1
	for _, key := range order {
		idx := strings.Index(text, key)
		if idx <= last {
			t.Fatalf("key %q out of order (idx %d, previous %d)", key, idx, last)
		}
		last = idx
	}
	for _, stage := range routine.Stages() {
		if !strings.Contains(text, "## "+stage.Heading+"\n") {
			t.Fatalf("missing heading for %s", stage.Name)
		}
	}
	if !strings.HasSuffix(text, "► η=0.93") {
		t.Fatalf("trace should end with final score, got %q", text[len(text)-30:])
	}
}

func TestEncodeRejectsWrongSectionCount(t *testing.T) {
	doc, _ := sampleDocument(t)
	doc.Sections = doc.Sections[:5]
	if _, err := Encode(doc); err == nil {
		t.Fatalf("expected error for five sections")
	}
}

func TestDecodeRoundTrip(t *testing.T) {
	doc, text := sampleDocument(t)
	decoded, err := Decode(text)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded.Warning != nil {
		t.Fatalf("unexpected warning: %v", decoded.Warning)
	}
	if decoded.Metadata.Title != doc.Metadata.Title {
		t.Fatalf("title = %q, want %q", decoded.Metadata.Title, doc.Metadata.Title)
	}
	if strings.Join(decoded.Motifs, "|") != strings.Join(doc.Metadata.KeyMotifs, "|") {
		t.Fatalf("motifs = %v, want %v", decoded.Motifs, doc.Metadata.KeyMotifs)
	}
	if decoded.PieVector != doc.Metadata.PieVector || decoded.Convergence != "η ≈ 0.93" {
		t.Fatalf("unexpected pie/convergence: %q %q", decoded.PieVector, decoded.Convergence)
	}
	if decoded.Metadata.Version != FormatVersion || !decoded.Metadata.SRTMode {
		t.Fatalf("unexpected version/srt: %+v", decoded.Metadata)
	}
	if decoded.Metadata.InputLength == nil || *decoded.Metadata.InputLength != 12 {
		t.Fatalf("input_length not recovered: %+v", decoded.Metadata.InputLength)
	}
	if len(decoded.Sections) != routine.Count {
		t.Fatalf("sections = %d, want %d", len(decoded.Sections), routine.Count)
	}
	for i, section := range decoded.Sections {
		if section.Heading != doc.Sections[i].Heading() || section.Text != doc.Sections[i].Text() {
			t.Fatalf("section %d mismatch: %+v", i, section)
		}
	}
	if !strings.HasPrefix(decoded.Seal, "- Poetic Seal: Coils carry Spiral through Residue—Night") {
		t.Fatalf("seal = %q", decoded.Seal)
	}
	if !strings.HasPrefix(decoded.Trace, "[Start]") {
		t.Fatalf("trace = %q", decoded.Trace)
	}
	score, err := decoded.Score()
	if err != nil || score != 0.93 {
		t.Fatalf("score = %v, %v", score, err)
	}
	last, ok := decoded.LastStage()
	if !ok || !strings.Contains(last.Text, "Final verification") {
		t.Fatalf("last stage = %+v", last)
	}
}

func TestDecodeIsIdempotent(t *testing.T) {
	_, text := sampleDocument(t)
	first, err := Decode(text)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	second, err := Decode(text)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if first.Body != second.Body || first.Seal != second.Seal || strings.Join(first.Keys, ",") != strings.Join(second.Keys, ",") {
		t.Fatalf("decode not idempotent")
	}
}

func TestDecodeFormatErrors(t *testing.T) {
	cases := map[string]struct {
		input string
		want  error
		stage string
	}{
		"no fence":   {input: "title: x\n", want: ErrMissingFrontMatter, stage: "missing frontmatter"},
		"unclosed":   {input: "---\ntitle: x\nbody\n", want: ErrIncompleteFrontMatter, stage: "incomplete frontmatter"},
		"bad yaml":   {input: "---\ntitle: [unclosed\n---\n\nbody", want: ErrMalformedFrontMatter, stage: "malformed frontmatter"},
		"scalar":     {input: "---\njust a line\n---\n\nbody", want: ErrMalformedFrontMatter, stage: "malformed frontmatter"},
		"wrong type": {input: "---\nkey_motifs:\n  a: b\n---\n", want: ErrMalformedFrontMatter, stage: "malformed frontmatter"},
	}
	for name, tc := range cases {
		_, err := Decode(tc.input)
		if !errors.Is(err, tc.want) {
			t.Fatalf("%s: err = %v, want %v", name, err, tc.want)
		}
		var formatErr *FormatError
		if !errors.As(err, &formatErr) || formatErr.Stage != tc.stage {
			t.Fatalf("%s: expected FormatError stage %q, got %v", name, tc.stage, err)
		}
	}
}

func TestDecodeMissingMotifsWarns(t *testing.T) {
	input := "---\ntitle: Partial\ndate: today\nversion: \"3.1\"\nconvergence: η ≈ 0.80\npie_vector: eA==\nsrt_mode: true\n---\n\n## Foundation Routine (Initial Understanding)\n- Core anchors:\n"
	decoded, err := Decode(input)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded.Motifs == nil || len(decoded.Motifs) != 0 {
		t.Fatalf("motifs = %#v, want empty list", decoded.Motifs)
	}
	if decoded.Warning == nil || len(decoded.Warning.Keys) != 1 || decoded.Warning.Keys[0] != KeyKeyMotifs {
		t.Fatalf("warning = %+v", decoded.Warning)
	}
	if !strings.Contains(decoded.Warning.Error(), "key key_motifs missing") {
		t.Fatalf("warning text = %q", decoded.Warning.Error())
	}
	if decoded.Seal != "" {
		t.Fatalf("seal should be empty, got %q", decoded.Seal)
	}
}

func TestDecodeHandlesCRLF(t *testing.T) {
	_, text := sampleDocument(t)
	decoded, err := Decode(strings.ReplaceAll(text, "\n", "\r\n"))
	if err != nil {
		t.Fatalf("decode crlf: %v", err)
	}
	if decoded.Metadata.Title != "Session: Recap" {
		t.Fatalf("title = %q", decoded.Metadata.Title)
	}
}

func fixedClock() time.Time {
	return time.Date(2026, 10, 18, 9, 30, 0, 0, time.UTC)
}

func TestAllocateIncrementsSequence(t *testing.T) {
	base := t.TempDir()
	store := NewStore(base, WithClock(fixedClock))
	first, err := store.Allocate("grok", "Morning Session!")
	if err != nil {
		t.Fatalf("allocate: %v", err)
	}
	if first.Stem != "Grok_2026-10-18_001_morning-session" {
		t.Fatalf("stem = %q", first.Stem)
	}
	if filepath.Base(first.Dir) != "grok" {
		t.Fatalf("dir = %q", first.Dir)
	}
	if err := store.WriteDocument(first.Document, "---\n"); err != nil {
		t.Fatalf("write: %v", err)
	}
	second, err := store.Allocate("grok", "")
	if err != nil {
		t.Fatalf("allocate: %v", err)
	}
	if second.Stem != "Grok_2026-10-18_002_untitled-recap" {
		t.Fatalf("stem = %q", second.Stem)
	}
	other, err := store.Allocate("claude", "x")
	if err != nil {
		t.Fatalf("allocate: %v", err)
	}
	if filepath.Base(other.Dir) != "conversation" || !strings.HasPrefix(other.Stem, "Claude_2026-10-18_001_") {
		t.Fatalf("unexpected non-grok allocation: %+v", other)
	}
}

func TestStoreReadWriteAndLoad(t *testing.T) {
	_, text := sampleDocument(t)
	store := NewStore(t.TempDir())
	path := filepath.Join(store.BaseDir(), "nested", "doc.srec")
	if err := store.WriteDocument(path, text); err != nil {
		t.Fatalf("write: %v", err)
	}
	decoded, err := store.LoadDocument(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if decoded.Metadata.Title != "Session: Recap" {
		t.Fatalf("title = %q", decoded.Metadata.Title)
	}
	if _, err := store.ReadDocument(filepath.Join(store.BaseDir(), "missing.srec")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}

func TestAppendGainsWritesHeaderOnce(t *testing.T) {
	store := NewStore(t.TempDir(), WithClock(fixedClock))
	entry := GainsEntry{Document: "/x/a.srec", Title: "A|B", Convergence: "η ≈ 0.80", Motifs: []string{"One", "Two"}}
	if err := store.AppendGains(entry); err != nil {
		t.Fatalf("append: %v", err)
	}
	entry.Resumed = true
	if err := store.AppendGains(entry); err != nil {
		t.Fatalf("append: %v", err)
	}
	data, err := os.ReadFile(store.GainsPath())
	if err != nil {
		t.Fatalf("read ledger: %v", err)
	}
	content := string(data)
	if strings.Count(content, "# Gains Log") != 1 {
		t.Fatalf("header written more than once:\n%s", content)
	}
	if !strings.Contains(content, `| 2026-10-18 09:30 | a.srec | A\|B | η ≈ 0.80 | One, Two | fresh |`) {
		t.Fatalf("missing fresh row:\n%s", content)
	}
	if !strings.Contains(content, "| resume |") {
		t.Fatalf("missing resume row:\n%s", content)
	}
}

func TestDecodeKeepsForeignHeadingsAndTrailingSpaces(t *testing.T) {
	doc, _ := sampleDocument(t)
	doc.Metadata.KeyMotifs = []string{}
	doc.Sections = routine.Synthesize("Meeting notes\n## Agenda\nspiral residue spiral. Residue holds the night.", nil)
	text, err := Encode(doc)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	decoded, err := Decode(text)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(decoded.Sections) != routine.Count {
		t.Fatalf("sections = %d, want %d", len(decoded.Sections), routine.Count)
	}
	for i, section := range decoded.Sections {
		if section.Heading != doc.Sections[i].Heading() || section.Text != doc.Sections[i].Text() {
			t.Fatalf("section %d = %q, want %q", i, section.Text, doc.Sections[i].Text())
		}
	}
	if !strings.Contains(decoded.Sections[0].Text, "\n## Agenda\n") {
		t.Fatalf("foreign heading should stay in foundation text: %q", decoded.Sections[0].Text)
	}
	if !strings.HasSuffix(decoded.Sections[1].Text, "Tied to motifs: ") {
		t.Fatalf("trailing space lost: %q", decoded.Sections[1].Text)
	}
	if !strings.HasPrefix(decoded.Trace, "[Start]") {
		t.Fatalf("trace = %q", decoded.Trace)
	}
	if !decoded.HasKey(KeyKeyMotifs) || decoded.HasKey(KeyInputLength+"_x") {
		t.Fatalf("HasKey mismatch: %v", decoded.Keys)
	}
}
