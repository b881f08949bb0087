package annotation

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ChrisMcGann/spotkey/pkg/core"
	"github.com/ChrisMcGann/spotkey/pkg/library"
)

func fragments() *core.Spectrum {
	return &core.Spectrum{Peaks: []core.Peak{
		{MZ: 85.03, Intensity: 120},
		{MZ: 129.10, Intensity: 800},
		{MZ: 147.11, Intensity: 300},
		{MZ: 175.12, Intensity: 999},
	}}
}

func otherFragments() *core.Spectrum {
	return &core.Spectrum{Peaks: []core.Peak{
		{MZ: 60.5, Intensity: 100},
		{MZ: 222.2, Intensity: 500},
		{MZ: 250.9, Intensity: 50},
	}}
}

func curatedLib(spec *core.Spectrum) *library.Library {
	rec := core.ReferenceRecord{Name: "curated-A", PrecursorMZ: 300.0, InChIKey: "AAAA"}
	if spec != nil {
		rec.Spectrum = *spec
	}
	return library.New("curated", []core.ReferenceRecord{rec})
}

func textLib() *library.Library {
	return library.New("text", []core.ReferenceRecord{
		{Name: "text-B", PrecursorMZ: 300.002, Formula: "C10H20"},
	})
}

func feature(id int, mz float64) *core.PeakFeature {
	return &core.PeakFeature{ID: id, PrecursorMZ: mz, Spectrum: fragments()}
}

func run(t *testing.T, annotators map[string]Annotator, features ...*core.PeakFeature) {
	t.Helper()
	spectra := make([]*core.Spectrum, len(features))
	for i, f := range features {
		spectra[i] = f.Spectrum
	}
	o := NewOrchestrator(annotators, DefaultParameters())
	require.NoError(t, o.Annotate(context.Background(), features, spectra))
}

func TestCuratedConfirmationWins(t *testing.T) {
	f := feature(1, 300.0)
	run(t, map[string]Annotator{
		"curated": NewLibraryAnnotator("curated", core.SourceCurated, curatedLib(fragments())),
		"text":    NewLibraryAnnotator("text", core.SourceFreeText, textLib()),
	}, f)

	require.Equal(t, core.ConfidenceConfirmed, f.Confidence)
	require.NotNil(t, f.Reference)
	require.Equal(t, "curated-A", f.Reference.Name)
	require.Equal(t, core.SourceCurated, f.Reference.Source)
	require.Len(t, f.Matches, 2, "passing matches of every library are kept")
}

func TestLowerPriorityFillsOnlyWhenHigherHasNoMatch(t *testing.T) {
	f := feature(1, 300.0)
	run(t, map[string]Annotator{
		"curated": NewLibraryAnnotator("curated", core.SourceCurated, curatedLib(otherFragments())),
		"text":    NewLibraryAnnotator("text", core.SourceFreeText, textLib()),
	}, f)

	require.Equal(t, core.ConfidenceSuggested, f.Confidence)
	require.Equal(t, "text-B", f.Reference.Name)
	require.Equal(t, "C10H20", f.Reference.Formula)
}

func TestLowerPriorityConfirmationDoesNotOverrideSuggestion(t *testing.T) {
	f := feature(1, 300.0)
	// Keys sort opposite to source priority.
	run(t, map[string]Annotator{
		"a-custom":  NewLibraryAnnotator("a-custom", core.SourceCustom, curatedLib(fragments())),
		"z-curated": NewLibraryAnnotator("z-curated", core.SourceCurated, curatedLib(nil)),
	}, f)

	require.Equal(t, core.ConfidenceSuggested, f.Confidence)
	require.Equal(t, "z-curated", f.Reference.LibraryKey)
}

func TestNoPassingCandidateLeavesFeatureUnknown(t *testing.T) {
	f := feature(1, 412.7)
	run(t, map[string]Annotator{
		"curated": NewLibraryAnnotator("curated", core.SourceCurated, curatedLib(fragments())),
		"text":    NewLibraryAnnotator("text", core.SourceFreeText, textLib()),
	}, f)

	require.Equal(t, core.ConfidenceUnknown, f.Confidence)
	require.Nil(t, f.Reference)
	require.Empty(t, f.Matches)
}

func TestIsotopeAndNilFeaturesAreSkipped(t *testing.T) {
	iso := feature(1, 300.0)
	iso.IsotopeWeight = 1
	noSpectrum := feature(2, 300.0)

	features := []*core.PeakFeature{iso, nil, noSpectrum}
	spectra := []*core.Spectrum{iso.Spectrum, fragments(), nil}

	var last int
	o := NewOrchestrator(map[string]Annotator{
		"curated": NewLibraryAnnotator("curated", core.SourceCurated, curatedLib(fragments())),
	}, DefaultParameters(), WithProgress(func(done, total int) { last = done }))

	require.NoError(t, o.Annotate(context.Background(), features, spectra))
	require.Equal(t, 3, last)
	require.Equal(t, core.ConfidenceUnknown, iso.Confidence)
	require.Nil(t, iso.Reference)
	require.Nil(t, noSpectrum.Reference)
}

func TestLengthMismatchFailsBeforeWork(t *testing.T) {
	f := feature(1, 300.0)
	called := false
	o := NewOrchestrator(map[string]Annotator{
		"curated": NewLibraryAnnotator("curated", core.SourceCurated, curatedLib(fragments())),
	}, DefaultParameters(), WithProgress(func(int, int) { called = true }))

	err := o.Annotate(context.Background(), []*core.PeakFeature{f}, nil)
	require.ErrorIs(t, err, ErrLengthMismatch)
	require.False(t, called)
	require.Nil(t, f.Reference)
}

func TestInvalidLibraryIsSkipped(t *testing.T) {
	f := feature(1, 300.0)
	o := NewOrchestrator(map[string]Annotator{
		"broken": NewLibraryAnnotator("broken", core.SourceCurated, nil),
		"text":   NewLibraryAnnotator("text", core.SourceFreeText, textLib()),
		"nil":    nil,
	}, DefaultParameters())

	require.Len(t, o.Annotators(), 1)
	require.NoError(t, o.Annotate(context.Background(), []*core.PeakFeature{f}, []*core.Spectrum{f.Spectrum}))
	require.Equal(t, "text-B", f.Reference.Name)
}

func TestZeroAnnotatorsCompleteImmediately(t *testing.T) {
	features := []*core.PeakFeature{feature(1, 300.0), feature(2, 301.0)}
	spectra := []*core.Spectrum{features[0].Spectrum, features[1].Spectrum}

	var calls [][2]int
	o := NewOrchestrator(nil, DefaultParameters(), WithProgress(func(done, total int) {
		calls = append(calls, [2]int{done, total})
	}))
	require.NoError(t, o.Annotate(context.Background(), features, spectra))
	require.Equal(t, [][2]int{{2, 2}}, calls)
	require.Nil(t, features[0].Reference)
}

func TestProgressIsMonotonic(t *testing.T) {
	const n = 300
	features := make([]*core.PeakFeature, n)
	spectra := make([]*core.Spectrum, n)
	for i := range features {
		features[i] = feature(i, 300.0+float64(i%3)*0.001)
		spectra[i] = features[i].Spectrum
	}

	var seen, totals []int
	params := DefaultParameters()
	params.Parallelism = 8
	o := NewOrchestrator(map[string]Annotator{
		"curated": NewLibraryAnnotator("curated", core.SourceCurated, curatedLib(fragments())),
		"text":    NewLibraryAnnotator("text", core.SourceFreeText, textLib()),
	}, params, WithProgress(func(done, total int) {
		seen = append(seen, done)
		totals = append(totals, total)
	}))

	require.NoError(t, o.Annotate(context.Background(), features, spectra))
	require.Len(t, seen, n)
	for i, d := range seen {
		require.Equal(t, i+1, d)
		require.Equal(t, n, totals[i])
	}
	for _, f := range features {
		require.Equal(t, core.ConfidenceConfirmed, f.Confidence)
	}
}

func TestCancelledContextStopsRun(t *testing.T) {
	f := feature(1, 300.0)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	o := NewOrchestrator(map[string]Annotator{
		"curated": NewLibraryAnnotator("curated", core.SourceCurated, curatedLib(fragments())),
	}, DefaultParameters())
	err := o.Annotate(ctx, []*core.PeakFeature{f}, []*core.Spectrum{f.Spectrum})
	require.ErrorIs(t, err, context.Canceled)
	require.Nil(t, f.Reference)
}

func TestAnnotateFiles(t *testing.T) {
	mk := func(mzs ...float64) *FileInput {
		in := &FileInput{}
		for i, mz := range mzs {
			f := feature(i, mz)
			in.Features = append(in.Features, f)
			in.Spectra = append(in.Spectra, f.Spectrum)
		}
		return in
	}
	a := mk(300.0, 412.7)
	a.Name = "a.tsv"
	b := mk(300.0)
	b.Name = "b.tsv"
	bad := mk(300.0)
	bad.Name = "bad.tsv"
	bad.Spectra = nil

	params := DefaultParameters()
	params.MaxConcurrentFiles = 2
	o := NewOrchestrator(map[string]Annotator{
		"curated": NewLibraryAnnotator("curated", core.SourceCurated, curatedLib(fragments())),
	}, params)

	res := o.AnnotateFiles(context.Background(), []*FileInput{a, bad, b})
	require.Len(t, res, 3)

	require.NoError(t, res[0].Err)
	require.Equal(t, "a.tsv", res[0].Name)
	require.Equal(t, Summary{Confirmed: 1, Unknown: 1}, res[0].Summary)

	require.ErrorIs(t, res[1].Err, ErrLengthMismatch)

	require.NoError(t, res[2].Err)
	require.Equal(t, Summary{Confirmed: 1}, res[2].Summary)
}

func TestWorkersShareCPUAmongFiles(t *testing.T) {
	p := Parameters{Parallelism: 3, MaxConcurrentFiles: 4}
	require.Equal(t, 3, p.workers())

	p = Parameters{MaxConcurrentFiles: 1 << 20}
	require.Equal(t, 1, p.workers())
	require.Equal(t, 1, Parameters{}.maxFiles())
}
