package artifact

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode"
)

const (
	documentExt     = ".srec"
	companionSuffix = "_companion.txt"
	htmlExt         = ".html"
	gainsFile       = "gains_log.md"
	dayLayout       = "2006-01-02"
	defaultSlug     = "untitled-recap"
)

// Store manages document IO rooted at a base output directory.
type Store struct {
	baseDir string
	now     func() time.Time
}

// StoreOption customizes a Store during construction.
type StoreOption func(*Store)

// WithClock overrides the clock used for dated file names and ledger rows.
func WithClock(clock func() time.Time) StoreOption {
	return func(s *Store) {
		if clock != nil {
			s.now = clock
		}
	}
}

// NewStore builds a store writing under baseDir.
func NewStore(baseDir string, opts ...StoreOption) *Store {
	store := &Store{
		baseDir: filepath.Clean(strings.TrimRight(baseDir, "/")),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(store)
	}
	return store
}

// BaseDir returns the root output directory.
func (s *Store) BaseDir() string {
	return s.baseDir
}

// Paths are the files belonging to one generated recap.
type Paths struct {
	Dir       string
	Stem      string
	Document  string
	Companion string
	HTML      string
}

// Allocate picks the next free numbered stem for a category and title,
// creating the category subdirectory if needed.
func (s *Store) Allocate(category, title string) (Paths, error) {
	category = titleCase(strings.TrimSpace(category))
	if category == "" {
		return Paths{}, fmt.Errorf("artifact: category is required")
	}
	subdir := "conversation"
	if strings.EqualFold(category, "grok") {
		subdir = "grok"
	}
	dir := filepath.Join(s.baseDir, subdir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return Paths{}, fmt.Errorf("artifact: ensure %s: %w", dir, err)
	}
	today := s.now().Format(dayLayout)
	seq, err := nextSequence(dir, category+"_"+today+"_")
	if err != nil {
		return Paths{}, err
	}
	stem := fmt.Sprintf("%s_%s_%03d_%s", category, today, seq, Slug(title))
	return Paths{
		Dir:       dir,
		Stem:      stem,
		Document:  filepath.Join(dir, stem+documentExt),
		Companion: filepath.Join(dir, stem+companionSuffix),
		HTML:      filepath.Join(dir, stem+htmlExt),
	}, nil
}

var sequencePattern = regexp.MustCompile(`_(\d{3})_`)

func nextSequence(dir, prefix string) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return 1, nil
		}
		return 0, fmt.Errorf("artifact: read %s: %w", dir, err)
	}
	highest := 0
	for _, entry := range entries {
		name := entry.Name()
		if !strings.HasPrefix(name, prefix) {
			continue
		}
		match := sequencePattern.FindStringSubmatch(name[len(prefix)-1:])
		if match == nil {
			continue
		}
		if n, err := strconv.Atoi(match[1]); err == nil && n > highest {
			highest = n
		}
	}
	return highest + 1, nil
}

var slugPattern = regexp.MustCompile(`[^a-z0-9]+`)

// Slug lowercases the title and collapses everything outside [a-z0-9] into
// single dashes.
func Slug(title string) string {
	slug := slugPattern.ReplaceAllString(strings.ToLower(strings.TrimSpace(title)), "-")
	slug = strings.Trim(slug, "-")
	if slug == "" {
		return defaultSlug
	}
	return slug
}

func titleCase(value string) string {
	words := strings.Fields(value)
	for i, word := range words {
		runes := []rune(strings.ToLower(word))
		runes[0] = unicode.ToUpper(runes[0])
		words[i] = string(runes)
	}
	return strings.Join(words, " ")
}

// ReadDocument loads a whole document file.
func (s *Store) ReadDocument(path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", fmt.Errorf("artifact: open %s: %w", path, err)
	}
	if info.IsDir() {
		return "", fmt.Errorf("artifact: %s is a directory, expected a file", path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("artifact: read %s: %w", path, err)
	}
	return string(data), nil
}

// LoadDocument reads and decodes a document file.
func (s *Store) LoadDocument(path string) (Decoded, error) {
	content, err := s.ReadDocument(path)
	if err != nil {
		return Decoded{}, err
	}
	decoded, err := Decode(content)
	if err != nil {
		return Decoded{}, fmt.Errorf("artifact: %s: %w", path, err)
	}
	return decoded, nil
}

// WriteDocument writes content in one shot, creating parent directories.
func (s *Store) WriteDocument(path, content string) error {
	if strings.TrimSpace(path) == "" {
		return fmt.Errorf("artifact: output path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(content), 0o644)
}

// GainsEntry is one row in the gains ledger.
type GainsEntry struct {
	Document    string
	Title       string
	Convergence string
	Motifs      []string
	Resumed     bool
}

const gainsHeader = "# Gains Log\n\n| Date | File | Title | Convergence | Motifs | Mode |\n| --- | --- | --- | --- | --- | --- |\n"

// GainsPath returns the ledger location.
func (s *Store) GainsPath() string {
	return filepath.Join(s.baseDir, gainsFile)
}

// AppendGains adds a row to the gains ledger, writing the table header when
// the ledger does not exist yet.
func (s *Store) AppendGains(entry GainsEntry) error {
	path := s.GainsPath()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	_, statErr := os.Stat(path)
	fresh := errors.Is(statErr, fs.ErrNotExist)
	if statErr != nil && !fresh {
		return fmt.Errorf("artifact: stat %s: %w", path, statErr)
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("artifact: open %s: %w", path, err)
	}
	defer file.Close()
	if fresh {
		if _, err := file.WriteString(gainsHeader); err != nil {
			return err
		}
	}
	mode := "fresh"
	if entry.Resumed {
		mode = "resume"
	}
	row := fmt.Sprintf("| %s | %s | %s | %s | %s | %s |\n",
		s.now().Format("2006-01-02 15:04"),
		cell(filepath.Base(entry.Document)),
		cell(entry.Title),
		cell(entry.Convergence),
		cell(strings.Join(entry.Motifs, ", ")),
		mode,
	)
	_, err = file.WriteString(row)
	return err
}

func cell(value string) string {
	value = strings.ReplaceAll(value, "\n", " ")
	return strings.ReplaceAll(value, "|", `\|`)
}
