// Package metrics holds the Prometheus collectors of the annotation and
// alignment stages. A batch run flushes them to a textfile on exit.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// FeaturesAnnotated counts annotated features by final confidence tier.
	FeaturesAnnotated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "spotkey_features_annotated_total",
			Help: "Total number of features annotated, by confidence",
		},
		[]string{"confidence"},
	)

	// LibraryFailures counts libraries skipped because they failed validation or loading.
	LibraryFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "spotkey_library_failures_total",
			Help: "Total number of skipped library runs",
		},
		[]string{"library"},
	)

	// CandidatesScored counts feature/reference comparisons by source.
	CandidatesScored = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "spotkey_candidates_scored_total",
			Help: "Total number of scored reference candidates",
		},
		[]string{"source"},
	)

	// AlignmentSpots counts spots leaving each refiner stage.
	AlignmentSpots = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "spotkey_alignment_spots_total",
			Help: "Total number of alignment spots, by refiner stage",
		},
		[]string{"stage"},
	)

	// AlignmentLinks counts links created by the linking pass.
	AlignmentLinks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "spotkey_alignment_links_total",
			Help: "Total number of links between alignment spots, by kind",
		},
		[]string{"kind"},
	)

	// FileDuration measures annotation time per input file.
	FileDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "spotkey_annotation_file_duration_seconds",
			Help:    "Duration of annotating one file in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60, 300},
		},
	)
)

// WriteTextfile writes every registered metric to path in the text
// exposition format, for collection by a node exporter.
func WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, prometheus.DefaultGatherer)
}
