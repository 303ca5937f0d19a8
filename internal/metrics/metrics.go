// Package metrics records generation activity in a private Prometheus
// registry. The CLI is short lived, so the registry is flushed to a
// node-exporter textfile instead of being served over HTTP.
package metrics

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
)

// Mode labels how a document was produced.
type Mode string

const (
	ModeFresh  Mode = "fresh"
	ModeResume Mode = "resume"
)

// RecapMetrics holds the counters and histograms for one CLI run.
type RecapMetrics struct {
	registry *prometheus.Registry

	generatedTotal   *prometheus.CounterVec
	failedTotal      *prometheus.CounterVec
	lastConvergence  *prometheus.GaugeVec
	motifCount       *prometheus.HistogramVec
	inputWords       *prometheus.HistogramVec
	missingKeysTotal prometheus.Counter
}

// NewRecapMetrics registers every series in a fresh registry, labelled with
// the lowercased output category.
func NewRecapMetrics(category string) *RecapMetrics {
	registry := prometheus.NewRegistry()
	constLabels := prometheus.Labels{"category": strings.ToLower(strings.TrimSpace(category))}

	generatedTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   "spiral",
			Subsystem:   "recap",
			Name:        "documents_generated_total",
			Help:        "Total generated continuity documents by mode.",
			ConstLabels: constLabels,
		},
		[]string{"mode"},
	)
	failedTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   "spiral",
			Subsystem:   "recap",
			Name:        "documents_failed_total",
			Help:        "Total failed generations by mode.",
			ConstLabels: constLabels,
		},
		[]string{"mode"},
	)
	lastConvergence := prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace:   "spiral",
			Subsystem:   "recap",
			Name:        "last_convergence",
			Help:        "Convergence score of the most recent document by mode.",
			ConstLabels: constLabels,
		},
		[]string{"mode"},
	)
	motifCount := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace:   "spiral",
			Subsystem:   "recap",
			Name:        "motifs",
			Help:        "Number of real motifs carried by generated documents.",
			Buckets:     []float64{0, 1, 2, 3, 4, 5, 8},
			ConstLabels: constLabels,
		},
		[]string{"mode"},
	)
	inputWords := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace:   "spiral",
			Subsystem:   "recap",
			Name:        "input_words",
			Help:        "Word count of the input text.",
			Buckets:     []float64{0, 10, 50, 100, 200, 500, 1000, 5000},
			ConstLabels: constLabels,
		},
		[]string{"mode"},
	)
	missingKeysTotal := prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace:   "spiral",
			Subsystem:   "recap",
			Name:        "missing_keys_total",
			Help:        "Frontmatter keys found missing while decoding documents.",
			ConstLabels: constLabels,
		},
	)

	registry.MustRegister(generatedTotal, failedTotal, lastConvergence, motifCount, inputWords, missingKeysTotal)

	return &RecapMetrics{
		registry:         registry,
		generatedTotal:   generatedTotal,
		failedTotal:      failedTotal,
		lastConvergence:  lastConvergence,
		motifCount:       motifCount,
		inputWords:       inputWords,
		missingKeysTotal: missingKeysTotal,
	}
}

// ObserveGenerated records one successful document.
func (m *RecapMetrics) ObserveGenerated(mode Mode, convergence float64, motifs, words int) {
	if m == nil {
		return
	}
	label := string(mode)
	m.generatedTotal.WithLabelValues(label).Inc()
	m.lastConvergence.WithLabelValues(label).Set(convergence)
	m.motifCount.WithLabelValues(label).Observe(float64(motifs))
	m.inputWords.WithLabelValues(label).Observe(float64(words))
}

// ObserveFailed records a failed generation or resume.
func (m *RecapMetrics) ObserveFailed(mode Mode) {
	if m == nil {
		return
	}
	m.failedTotal.WithLabelValues(string(mode)).Inc()
}

// ObserveMissingKeys records keys absent from a decoded document.
func (m *RecapMetrics) ObserveMissingKeys(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.missingKeysTotal.Add(float64(n))
}

// Registry exposes the underlying registry (primarily for tests).
func (m *RecapMetrics) Registry() *prometheus.Registry {
	return m.registry
}

// WriteTextfile flushes the registry in the text exposition format.
func (m *RecapMetrics) WriteTextfile(path string) error {
	if m == nil || strings.TrimSpace(path) == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("metrics: ensure dir: %w", err)
	}
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("metrics: write %s: %w", path, err)
	}
	return nil
}
