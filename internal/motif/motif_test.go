package motif

import (
	"strings"
	"testing"
)

func TestExtractEmptyTextReturnsSentinel(t *testing.T) {
	got := Extract("", DefaultMax)
	if len(got) != 1 || got[0] != NoMotifs {
		t.Fatalf("Extract(\"\") = %v, want [%s]", got, NoMotifs)
	}
}

func TestExtractFilteredTextReturnsStrongSentinel(t *testing.T) {
	got := Extract("the a an of to is be it we", DefaultMax)
	if len(got) != 1 || got[0] != NoStrongMotifs {
		t.Fatalf("Extract(stopwords) = %v, want [%s]", got, NoStrongMotifs)
	}
}

func TestExtractOrdersByFrequency(t *testing.T) {
	text := strings.Repeat("Gamma ", 2) + strings.Repeat("Alpha ", 5) + strings.Repeat("Beta ", 3)
	got := Extract(text, DefaultMax)
	want := []string{"Alpha", "Beta", "Gamma"}
	if len(got) != len(want) {
		t.Fatalf("Extract = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("motif[%d] = %q, want %q (all: %v)", i, got[i], want[i], got)
		}
	}
}

func TestExtractBreaksTiesByFirstOccurrence(t *testing.T) {
	got := Extract("river stone river stone lantern", DefaultMax)
	want := []string{"River", "Stone", "Lantern"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("motif[%d] = %q, want %q (all: %v)", i, got[i], want[i], got)
		}
	}
}

func TestExtractRespectsCapAndCaseFolds(t *testing.T) {
	text := "Spiral spiral SPIRAL memory Memory residue night qualia drift anchor"
	got := Extract(text, 3)
	if len(got) != 3 {
		t.Fatalf("len = %d, want 3 (%v)", len(got), got)
	}
	if got[0] != "Spiral" || got[1] != "Memory" {
		t.Fatalf("unexpected leading motifs: %v", got)
	}
	seen := map[string]bool{}
	for _, m := range got {
		if m == "" {
			t.Fatalf("empty motif in %v", got)
		}
		if seen[m] {
			t.Fatalf("duplicate motif %q in %v", m, got)
		}
		seen[m] = true
	}
}

func TestExtractDeterministic(t *testing.T) {
	text := "Coils carry residue through night. Residue returns; coils hold."
	first := Extract(text, DefaultMax)
	second := Extract(text, DefaultMax)
	if strings.Join(first, "|") != strings.Join(second, "|") {
		t.Fatalf("non-deterministic: %v vs %v", first, second)
	}
}

func TestCountSkipsSentinels(t *testing.T) {
	if Count(nil) != 0 || Count([]string{NoMotifs}) != 0 || Count([]string{NoStrongMotifs}) != 0 {
		t.Fatalf("sentinel lists should count zero")
	}
	if !IsSentinel(NoMotifs) || IsSentinel("Residue") {
		t.Fatalf("IsSentinel mismatch")
	}
	if Count([]string{"Residue", NoMotifs, ""}) != 1 {
		t.Fatalf("Count should skip sentinels and blanks")
	}
}
