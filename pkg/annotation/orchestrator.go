// Package annotation matches peak features against reference libraries and
// writes the chosen identification back onto each feature.
package annotation

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/ChrisMcGann/spotkey/pkg/core"
	"github.com/ChrisMcGann/spotkey/pkg/evaluator"
	"github.com/ChrisMcGann/spotkey/pkg/logger"
	"github.com/ChrisMcGann/spotkey/pkg/metrics"
	"github.com/ChrisMcGann/spotkey/pkg/scoring"
)

// ErrLengthMismatch is returned when features and spectra differ in length.
var ErrLengthMismatch = errors.New("feature and spectrum counts differ")

// Parameters configure an annotation run.
type Parameters struct {
	Scoring            scoring.Parameters   `yaml:"scoring"`
	Evaluation         evaluator.Parameters `yaml:"evaluation"`
	Parallelism        int                  `yaml:"parallelism" validate:"gte=0"`          // workers per file; 0 derives from NumCPU
	MaxConcurrentFiles int                  `yaml:"max_concurrent_files" validate:"gte=0"` // 0 means 1
}

// DefaultParameters returns the annotation defaults.
func DefaultParameters() Parameters {
	return Parameters{
		Scoring:            scoring.DefaultParameters(),
		Evaluation:         evaluator.DefaultParameters(),
		MaxConcurrentFiles: 1,
	}
}

func (p Parameters) maxFiles() int {
	if p.MaxConcurrentFiles < 1 {
		return 1
	}
	return p.MaxConcurrentFiles
}

// workers is the per-file pool size: the configured value, or the hardware
// threads divided among concurrently processed files.
func (p Parameters) workers() int {
	if p.Parallelism > 0 {
		return p.Parallelism
	}
	n := runtime.NumCPU() / p.maxFiles()
	if n < 1 {
		return 1
	}
	return n
}

// ProgressFunc receives the number of finished features and the total of
// one run. Within a run it is called from a single goroutine; AnnotateFiles
// calls it concurrently for files processed in parallel.
type ProgressFunc func(done, total int)

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithProgress installs a progress callback.
func WithProgress(fn ProgressFunc) Option {
	return func(o *Orchestrator) {
		o.progress = fn
	}
}

// Orchestrator runs every configured annotator over the features of a file.
// It holds no per-run state and may be used by several goroutines.
type Orchestrator struct {
	annotators map[string]Annotator
	params     Parameters
	progress   ProgressFunc
}

// NewOrchestrator returns an orchestrator over the given annotators, keyed
// by library key.
func NewOrchestrator(annotators map[string]Annotator, params Parameters, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		annotators: annotators,
		params:     params,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Annotators returns the valid annotators in priority order: by source
// priority, then key. Invalid annotators are logged, counted and left out.
func (o *Orchestrator) Annotators() []Annotator {
	keys := make([]string, 0, len(o.annotators))
	for k := range o.annotators {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var active []Annotator
	for _, k := range keys {
		a := o.annotators[k]
		var err error
		if a == nil {
			err = errors.New("annotator is nil")
		} else {
			err = a.Validate()
		}
		if err != nil {
			logger.Warn("skipping library", "library", k, "err", err)
			metrics.LibraryFailures.WithLabelValues(k).Inc()
			continue
		}
		active = append(active, a)
	}

	sort.SliceStable(active, func(i, j int) bool {
		return active[i].Source().Priority() < active[j].Source().Priority()
	})
	return active
}

// Annotate matches features[i] with spectra[i] for every i. Features are
// mutated in place; each is owned by exactly one worker. Isotope features
// and nil feature/spectrum pairs are skipped. The run stops taking new
// features once ctx is done and then returns ctx.Err().
func (o *Orchestrator) Annotate(ctx context.Context, features []*core.PeakFeature, spectra []*core.Spectrum) error {
	if len(features) != len(spectra) {
		return fmt.Errorf("%w: %d features, %d spectra", ErrLengthMismatch, len(features), len(spectra))
	}
	return o.annotate(ctx, features, spectra, o.params.workers())
}

func (o *Orchestrator) annotate(ctx context.Context, features []*core.PeakFeature, spectra []*core.Spectrum, workers int) error {
	total := len(features)
	active := o.Annotators()
	if len(active) == 0 {
		logger.Debug("no annotators configured", "features", total)
		if o.progress != nil {
			o.progress(total, total)
		}
		return nil
	}

	events := make(chan struct{}, workers)
	consumed := make(chan struct{})
	go func() {
		defer close(consumed)
		done := 0
		for range events {
			done++
			if o.progress != nil {
				o.progress(done, total)
			}
		}
	}()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i := range features {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			o.annotateFeature(features[i], spectra[i], active)
			events <- struct{}{}
			return nil
		})
	}
	err := g.Wait()
	close(events)
	<-consumed

	if err == nil {
		err = ctx.Err()
	}
	return err
}

// annotateFeature searches every annotator for one feature. All passing
// candidates are kept on the feature; the first annotator, in priority order,
// that classifies the feature as anything but unknown sets its identity.
func (o *Orchestrator) annotateFeature(f *core.PeakFeature, spec *core.Spectrum, active []Annotator) {
	if f == nil || spec == nil || !f.IsMonoisotopic() {
		return
	}

	f.Matches = nil
	f.Confidence = core.ConfidenceUnknown
	f.Reference = nil

	for _, a := range active {
		results, err := a.Search(f, spec, o.params.Scoring)
		if err != nil {
			logger.Warn("library search failed", "library", a.Key(), "feature", f.ID, "err", err)
			continue
		}
		metrics.CandidatesScored.WithLabelValues(a.Source().String()).Add(float64(len(results)))

		conf, hit, passed := evaluator.Classify(results, o.params.Evaluation)
		f.Matches = append(f.Matches, passed...)
		if f.Reference != nil || conf == core.ConfidenceUnknown {
			continue
		}
		rec, ok := a.Record(hit.RecordIndex)
		if !ok {
			continue
		}
		f.Confidence = conf
		f.Reference = core.NewAnnotation(rec, hit)
	}

	metrics.FeaturesAnnotated.WithLabelValues(f.Confidence.String()).Inc()
}
