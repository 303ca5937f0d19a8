package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/kingrea/spiral-recap/internal/artifact"
	"github.com/kingrea/spiral-recap/internal/companion"
	"github.com/kingrea/spiral-recap/internal/config"
	"github.com/kingrea/spiral-recap/internal/logbook"
	"github.com/kingrea/spiral-recap/internal/metrics"
	"github.com/kingrea/spiral-recap/internal/motif"
	"github.com/kingrea/spiral-recap/internal/recap"
	"github.com/kingrea/spiral-recap/internal/tui"
)

const previewLines = 20

type options struct {
	title       string
	inputText   string
	inputFile   string
	motifs      string
	motifsSet   bool
	convergence string
	output      string
	load        string
	resumeFrom  string
	view        string
	category    string
	baseDir     string
	configFile  string
	initConfig  bool
	saveConfig  bool
	plain       bool
	logLines    int
	html        bool
	htmlSet     bool
	metricsFile string
	noCompanion bool
}

func main() {
	opts := parseFlags(os.Args[1:])

	if opts.initConfig {
		if err := config.WriteDefault(opts.configFile); err != nil {
			die("write config: %v", err)
		}
		fmt.Println(tui.Success("config ready at %s", opts.configFile))
		return
	}

	settings, err := config.Load(opts.configFile)
	if err != nil {
		die("load config: %v", err)
	}
	settings = applyOverrides(settings, opts)
	if opts.saveConfig {
		if err := settings.Save(opts.configFile); err != nil {
			die("save config: %v", err)
		}
		fmt.Println(tui.Success("settings saved to %s", opts.configFile))
		return
	}
	if opts.resumeFrom != "" && samePath(opts.output, opts.resumeFrom) {
		die("-output %s would overwrite the -resume-from document", opts.output)
	}

	book, err := logbook.New(filepath.Join(settings.BaseDir, "logs", "recap.log"))
	if err != nil {
		die("open logbook: %v", err)
	}
	a := &app{
		settings: settings,
		store:    artifact.NewStore(settings.BaseDir),
		log:      book,
		metrics:  metrics.NewRecapMetrics(settings.Category),
		plain:    opts.plain,
	}
	a.generator = recap.NewGenerator(settings, recap.WithLogger(book))

	switch {
	case opts.logLines > 0:
		a.showLog(opts.logLines)
		return
	case opts.view != "":
		err = a.view(opts.view)
	case opts.load != "" && opts.resumeFrom == "":
		err = a.load(opts.load)
	default:
		err = a.generate(opts)
	}
	if flushErr := a.metrics.WriteTextfile(settings.MetricsFile); flushErr != nil {
		book.Warn("%v", flushErr)
	}
	if err != nil {
		book.Error("%v", err)
		die("%s", tui.Failure("%v", err))
	}
}

func parseFlags(args []string) options {
	fs := flag.NewFlagSet("spiral-recap", flag.ExitOnError)
	var opts options
	fs.StringVar(&opts.title, "title", "", "document title")
	fs.StringVar(&opts.inputText, "input-text", "", "conversation text to summarize")
	fs.StringVar(&opts.inputFile, "input-file", "", "read conversation text from a file")
	fs.StringVar(&opts.motifs, "motifs", "", "space separated motifs replacing extraction (empty keeps none)")
	fs.StringVar(&opts.convergence, "convergence", "", "convergence score override")
	fs.StringVar(&opts.output, "output", "", "document path (defaults to an allocated name under base_dir)")
	fs.StringVar(&opts.load, "load", "", "print the bootstrap prompt of a document")
	fs.StringVar(&opts.resumeFrom, "resume-from", "", "chain a new document from a previous one")
	fs.StringVar(&opts.view, "view", "", "open a document in the terminal viewer")
	fs.StringVar(&opts.category, "category", "", "output category (Grok, Claude, ...)")
	fs.StringVar(&opts.baseDir, "base-dir", "", "root output directory")
	fs.StringVar(&opts.configFile, "config", config.FileName, "path to spiral.yaml")
	fs.BoolVar(&opts.initConfig, "init-config", false, "write a default config file and exit")
	fs.BoolVar(&opts.saveConfig, "save-config", false, "write the effective settings (config plus flags) to -config and exit")
	fs.BoolVar(&opts.plain, "plain", false, "print the bootstrap prompt as plain text")
	fs.IntVar(&opts.logLines, "log", 0, "print the last N logbook lines and exit")
	fs.BoolVar(&opts.html, "html", false, "also render the document as an HTML page")
	fs.StringVar(&opts.metricsFile, "metrics-file", "", "prometheus textfile to write after the run")
	fs.BoolVar(&opts.noCompanion, "no-companion", false, "skip the companion file")
	_ = fs.Parse(args)
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "motifs":
			opts.motifsSet = true
		case "html":
			opts.htmlSet = true
		}
	})
	return opts
}

func applyOverrides(settings config.Settings, opts options) config.Settings {
	if c := strings.TrimSpace(opts.category); c != "" {
		settings.Category = c
	}
	if b := strings.TrimSpace(opts.baseDir); b != "" {
		settings.BaseDir = b
	}
	if opts.htmlSet {
		settings.HTML = opts.html
	}
	if opts.noCompanion {
		settings.Companion = false
	}
	if m := strings.TrimSpace(opts.metricsFile); m != "" {
		settings.MetricsFile = m
	}
	return settings
}

type app struct {
	settings  config.Settings
	store     *artifact.Store
	log       *logbook.Logbook
	metrics   *metrics.RecapMetrics
	generator *recap.Generator
	plain     bool
}

func (a *app) showLog(n int) {
	lines, total := a.log.Tail(n)
	fmt.Println(tui.Success("%s (%d lines)", a.log.Path(), total))
	for _, line := range lines {
		fmt.Println(line)
	}
}

// bootstrap renders the resume anchors, either as the styled card or as the
// plain prompt that can be piped into a new session.
func (a *app) bootstrap(doc artifact.Decoded) string {
	if a.plain {
		return recap.BootstrapPrompt(doc)
	}
	return tui.RenderBootstrap(recap.NewBootstrap(doc))
}

func (a *app) view(path string) error {
	doc, err := a.store.LoadDocument(path)
	if err != nil {
		return err
	}
	a.warnMissing(doc)
	return tui.Run(path, doc)
}

func (a *app) load(path string) error {
	doc, err := a.store.LoadDocument(path)
	if err != nil {
		return err
	}
	a.warnMissing(doc)
	a.log.Info("loaded %s", path)
	fmt.Print(a.bootstrap(doc))
	if !a.plain {
		fmt.Println()
	}
	return nil
}

func (a *app) warnMissing(doc artifact.Decoded) {
	if a.noteMissing(doc) {
		a.log.Warn("%v", doc.Warning)
	}
}

// noteMissing counts and prints missing keys without logging them.
func (a *app) noteMissing(doc artifact.Decoded) bool {
	if doc.Warning == nil {
		return false
	}
	a.metrics.ObserveMissingKeys(len(doc.Warning.Keys))
	fmt.Fprintln(os.Stderr, tui.Warning("%v", doc.Warning))
	return true
}

func (a *app) generate(opts options) error {
	mode := metrics.ModeFresh
	if opts.resumeFrom != "" {
		mode = metrics.ModeResume
	}
	result, err := a.produce(opts)
	if err != nil {
		a.metrics.ObserveFailed(mode)
		return err
	}

	paths, err := a.outputPaths(opts.output, result.Metadata.Title)
	if err != nil {
		return err
	}
	if err := a.store.WriteDocument(paths.Document, result.Document); err != nil {
		return err
	}
	a.log.Info("wrote %s (%s, motifs: %s)", paths.Document, result.Metadata.Convergence, strings.Join(result.Motifs, ", "))
	fmt.Println(tui.Success("document written to %s", paths.Document))

	if a.settings.Companion {
		if err := a.store.WriteDocument(paths.Companion, companion.Build(companionInput(result, a.log.RunID()))); err != nil {
			return err
		}
		fmt.Println(tui.Success("companion written to %s", paths.Companion))
	}
	if a.settings.HTML {
		decoded, err := artifact.Decode(result.Document)
		if err != nil {
			return err
		}
		page, err := companion.RenderPage(result.Metadata.Title, decoded.Body)
		if err != nil {
			return err
		}
		if err := a.store.WriteDocument(paths.HTML, page); err != nil {
			return err
		}
		fmt.Println(tui.Success("html written to %s", paths.HTML))
	}

	if err := a.store.AppendGains(artifact.GainsEntry{
		Document:    paths.Document,
		Title:       result.Metadata.Title,
		Convergence: result.Metadata.Convergence,
		Motifs:      result.Motifs,
		Resumed:     result.Previous != nil,
	}); err != nil {
		a.log.Warn("append gains: %v", err)
	}
	a.metrics.ObserveGenerated(mode, result.Convergence, motif.Count(result.Motifs), wordCount(result.Metadata))

	fmt.Println()
	fmt.Println(preview(result.Document, previewLines))
	return nil
}

func (a *app) produce(opts options) (recap.Result, error) {
	input, err := readInput(opts.inputText, opts.inputFile)
	if err != nil {
		return recap.Result{}, err
	}
	score, err := parseConvergence(opts.convergence)
	if err != nil {
		return recap.Result{}, err
	}
	var motifs []string
	if opts.motifsSet {
		motifs = strings.Fields(opts.motifs)
	}

	if opts.resumeFrom == "" {
		return a.generator.Generate(recap.Request{
			Title:          opts.title,
			Input:          input,
			Motifs:         motifs,
			OverrideMotifs: opts.motifsSet,
			Convergence:    score,
		})
	}

	previous, err := a.store.ReadDocument(opts.resumeFrom)
	if err != nil {
		return recap.Result{}, err
	}
	// the generator logs the missing-key warning while resuming
	if decoded, err := artifact.Decode(previous); err == nil {
		a.noteMissing(decoded)
		fmt.Println(a.bootstrap(decoded))
	}
	a.log.Info("resuming from %s", opts.resumeFrom)
	return a.generator.Resume(previous, recap.ResumeRequest{
		Input:          input,
		Title:          opts.title,
		Motifs:         motifs,
		OverrideMotifs: opts.motifsSet,
		Convergence:    score,
	})
}

func (a *app) outputPaths(output, title string) (artifact.Paths, error) {
	if strings.TrimSpace(output) == "" {
		return a.store.Allocate(a.settings.Category, title)
	}
	return pathsFor(output), nil
}

// pathsFor derives the companion and HTML locations from an explicit
// document path.
func pathsFor(output string) artifact.Paths {
	dir := filepath.Dir(output)
	stem := strings.TrimSuffix(filepath.Base(output), filepath.Ext(output))
	return artifact.Paths{
		Dir:       dir,
		Stem:      stem,
		Document:  output,
		Companion: filepath.Join(dir, stem+"_companion.txt"),
		HTML:      filepath.Join(dir, stem+".html"),
	}
}

// samePath reports whether two paths name the same file.
func samePath(a, b string) bool {
	if strings.TrimSpace(a) == "" || strings.TrimSpace(b) == "" {
		return false
	}
	left, errA := filepath.Abs(a)
	right, errB := filepath.Abs(b)
	if errA == nil && errB == nil && left == right {
		return true
	}
	infoA, errA := os.Stat(a)
	infoB, errB := os.Stat(b)
	return errA == nil && errB == nil && os.SameFile(infoA, infoB)
}

func readInput(text, file string) (string, error) {
	if strings.TrimSpace(file) == "" {
		return text, nil
	}
	if text != "" {
		return "", errors.New("-input-text and -input-file are mutually exclusive")
	}
	data, err := os.ReadFile(file)
	if err != nil {
		return "", fmt.Errorf("read input: %w", err)
	}
	return string(data), nil
}

func parseConvergence(raw string) (*float64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	score, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid -convergence %q: %w", raw, err)
	}
	return &score, nil
}

func companionInput(result recap.Result, runID string) companion.Input {
	meta := result.Metadata
	bulk := []string{
		fmt.Sprintf("key_motifs: %d", len(result.Motifs)),
		fmt.Sprintf("stages: %d", len(result.Sections)),
	}
	if meta.InputLength != nil {
		bulk = append([]string{fmt.Sprintf("input_length: %d words", *meta.InputLength)}, bulk...)
	}
	relations := []string{
		"key_motifs → " + strings.Join(result.Motifs, ", "),
		"convergence → " + meta.Convergence,
	}
	if result.Previous != nil {
		relations = append(relations, "continues → "+result.Previous.Metadata.Title)
	}
	return companion.Input{
		Title:      meta.Title,
		BulkLists:  bulk,
		Formulas:   companion.DefaultFormulas,
		Relations:  relations,
		PieStanzas: companion.DefaultStanzas,
		Provenance: fmt.Sprintf("Generated %s · run %s", meta.Date, runID),
	}
}

func wordCount(meta artifact.Metadata) int {
	if meta.InputLength == nil {
		return 0
	}
	return *meta.InputLength
}

func preview(document string, n int) string {
	lines := strings.Split(document, "\n")
	if len(lines) <= n {
		return document
	}
	return strings.Join(lines[:n], "\n") + "\n..."
}

func die(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
