package annotation

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/ChrisMcGann/spotkey/pkg/core"
	"github.com/ChrisMcGann/spotkey/pkg/logger"
	"github.com/ChrisMcGann/spotkey/pkg/metrics"
)

// FileInput is the feature list of one analytical file.
type FileInput struct {
	Name     string
	Features []*core.PeakFeature
	Spectra  []*core.Spectrum
}

// Summary counts features by outcome.
type Summary struct {
	Confirmed int
	Suggested int
	Unknown   int
	Skipped   int // isotope features and features without a spectrum
}

// Summarize counts the outcomes of an annotated feature list.
func Summarize(features []*core.PeakFeature, spectra []*core.Spectrum) Summary {
	var s Summary
	for i, f := range features {
		if f == nil || i >= len(spectra) || spectra[i] == nil || !f.IsMonoisotopic() {
			s.Skipped++
			continue
		}
		switch f.Confidence {
		case core.ConfidenceConfirmed:
			s.Confirmed++
		case core.ConfidenceSuggested:
			s.Suggested++
		default:
			s.Unknown++
		}
	}
	return s
}

// FileResult reports the outcome of one file.
type FileResult struct {
	Name     string
	Summary  Summary
	Duration time.Duration
	Err      error
}

// AnnotateFiles annotates a batch of files. At most MaxConcurrentFiles files
// run at once, each with its share of the worker budget. A failing file does
// not stop the others; once ctx is done, files not yet started report
// ctx.Err(). Results are in input order.
func (o *Orchestrator) AnnotateFiles(ctx context.Context, files []*FileInput) []FileResult {
	results := make([]FileResult, len(files))
	sem := semaphore.NewWeighted(int64(o.params.maxFiles()))
	workers := o.params.workers()

	var wg sync.WaitGroup
	for i, in := range files {
		results[i].Name = fileName(in, i)
		if err := sem.Acquire(ctx, 1); err != nil {
			results[i].Err = err
			continue
		}
		wg.Add(1)
		go func(i int, in *FileInput) {
			defer wg.Done()
			defer sem.Release(1)
			results[i] = o.annotateFile(ctx, in, i, workers)
		}(i, in)
	}
	wg.Wait()
	return results
}

func (o *Orchestrator) annotateFile(ctx context.Context, in *FileInput, i, workers int) FileResult {
	res := FileResult{Name: fileName(in, i)}
	if in == nil {
		res.Err = fmt.Errorf("file %d: no input", i)
		return res
	}
	if len(in.Features) != len(in.Spectra) {
		res.Err = fmt.Errorf("file %s: %w: %d features, %d spectra", res.Name, ErrLengthMismatch, len(in.Features), len(in.Spectra))
		return res
	}

	start := time.Now()
	res.Err = o.annotate(ctx, in.Features, in.Spectra, workers)
	res.Duration = time.Since(start)
	res.Summary = Summarize(in.Features, in.Spectra)
	metrics.FileDuration.Observe(res.Duration.Seconds())

	if res.Err != nil {
		logger.Warn("file annotation stopped", "file", res.Name, "err", res.Err)
	} else {
		logger.Info("file annotated", "file", res.Name,
			"confirmed", res.Summary.Confirmed,
			"suggested", res.Summary.Suggested,
			"unknown", res.Summary.Unknown,
			"duration", res.Duration)
	}
	return res
}

func fileName(in *FileInput, i int) string {
	if in == nil || in.Name == "" {
		return fmt.Sprintf("file-%d", i)
	}
	return in.Name
}
