package annotation

import (
	"errors"
	"fmt"

	"github.com/ChrisMcGann/spotkey/pkg/core"
	"github.com/ChrisMcGann/spotkey/pkg/library"
	"github.com/ChrisMcGann/spotkey/pkg/scoring"
)

// Annotator is one source of reference candidates. Implementations must be
// safe for concurrent Search calls.
type Annotator interface {
	Key() string
	Source() core.Source
	// Validate reports whether the annotator can be searched at all. An
	// invalid annotator is skipped for the whole run.
	Validate() error
	// Search scores every reference candidate of the feature. The results
	// carry the annotator key, source and record index.
	Search(f *core.PeakFeature, spec *core.Spectrum, p scoring.Parameters) ([]core.MatchResult, error)
	// Record resolves a record index of a result back to the reference.
	Record(index int) (*core.ReferenceRecord, bool)
}

// LibraryAnnotator searches a mass-sorted reference library.
type LibraryAnnotator struct {
	key    string
	source core.Source
	lib    *library.Library
}

// NewLibraryAnnotator wraps lib. A nil lib yields an annotator that fails
// validation, so a library that could not be loaded is reported and skipped
// like any other broken source.
func NewLibraryAnnotator(key string, source core.Source, lib *library.Library) *LibraryAnnotator {
	return &LibraryAnnotator{key: key, source: source, lib: lib}
}

func (a *LibraryAnnotator) Key() string         { return a.key }
func (a *LibraryAnnotator) Source() core.Source { return a.source }

func (a *LibraryAnnotator) Validate() error {
	if a.key == "" {
		return errors.New("annotator key is empty")
	}
	switch a.source {
	case core.SourceCurated, core.SourceFreeText, core.SourceCustom:
	default:
		return fmt.Errorf("annotator %s: unknown source %d", a.key, int(a.source))
	}
	if err := a.lib.Validate(); err != nil {
		return fmt.Errorf("annotator %s: %w", a.key, err)
	}
	return nil
}

// Search scores the records inside the precursor window. Records of the
// opposite ion mode are skipped.
func (a *LibraryAnnotator) Search(f *core.PeakFeature, spec *core.Spectrum, p scoring.Parameters) ([]core.MatchResult, error) {
	idx, err := a.lib.FindWithin(f.PrecursorMZ, p.MS1Tolerance)
	if err != nil {
		return nil, err
	}

	query := *f
	query.Spectrum = spec

	results := make([]core.MatchResult, 0, len(idx))
	for _, i := range idx {
		rec, _ := a.lib.Record(i)
		if !f.Polarity.Compatible(rec.Polarity) {
			continue
		}
		res := scoring.ScoreFeature(&query, rec, p)
		res.LibraryKey = a.key
		res.RecordIndex = i
		res.Source = a.source
		results = append(results, res)
	}
	return results, nil
}

func (a *LibraryAnnotator) Record(index int) (*core.ReferenceRecord, bool) {
	if a.lib == nil {
		return nil, false
	}
	return a.lib.Record(index)
}
