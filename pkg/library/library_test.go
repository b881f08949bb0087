package library

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ChrisMcGann/spotkey/pkg/core"
)

func records(masses ...float64) []core.ReferenceRecord {
	out := make([]core.ReferenceRecord, len(masses))
	for i, m := range masses {
		out[i] = core.ReferenceRecord{Name: "r", PrecursorMZ: m}
	}
	return out
}

func linearScan(lib *Library, mass, tol float64) []int {
	var out []int
	for i := 0; i < lib.Len(); i++ {
		r, _ := lib.Record(i)
		if math.Abs(r.PrecursorMZ-mass) <= tol {
			out = append(out, i)
		}
	}
	return out
}

func TestFindCandidatesMatchesLinearScan(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	masses := make([]float64, 2000)
	for i := range masses {
		masses[i] = 100 + rng.Float64()*900
	}
	// Exact duplicates and boundary neighbours.
	masses = append(masses, 500.0, 500.0, 500.005, 499.995)
	lib := New("random", records(masses...))

	queries := []struct{ mass, tol float64 }{
		{500.0, 0.005},
		{500.0, 0},
		{100.0, 1},
		{1000.0, 0.5},
		{50, 10},
		{2000, 1},
	}
	for i := 0; i < 500; i++ {
		queries = append(queries, struct{ mass, tol float64 }{100 + rng.Float64()*900, rng.Float64() * 0.05})
	}

	for _, q := range queries {
		got, err := lib.FindCandidates(q.mass, q.tol)
		require.NoError(t, err)
		require.Equal(t, linearScan(lib, q.mass, q.tol), got, "mass %v tol %v", q.mass, q.tol)
	}
}

func TestFindWithinScenario(t *testing.T) {
	lib := New("scenario", []core.ReferenceRecord{
		{Name: "near", PrecursorMZ: 500.2495},
		{Name: "far", PrecursorMZ: 500.2560},
	})

	got, err := lib.FindWithin(500.2500, core.Tolerance{Value: 0.005})
	require.NoError(t, err)
	require.Len(t, got, 1)
	r, ok := lib.Record(got[0])
	require.True(t, ok)
	require.Equal(t, "near", r.Name)
}

func TestNewSortsAndFromSortedRejects(t *testing.T) {
	unsorted := records(300, 100, 200)

	lib := New("sorted", unsorted)
	lo, hi := lib.MassRange()
	require.Equal(t, 100.0, lo)
	require.Equal(t, 300.0, hi)
	require.Equal(t, 300.0, unsorted[0].PrecursorMZ, "input must not be reordered")

	_, err := FromSorted("bad", unsorted)
	require.ErrorIs(t, err, ErrUnsorted)

	ok, err := FromSorted("good", records(1, 2, 2, 3))
	require.NoError(t, err)
	require.Equal(t, 4, ok.Len())
}

func TestZeroLibraryFailsFast(t *testing.T) {
	var lib Library
	_, err := lib.FindCandidates(100, 1)
	require.ErrorIs(t, err, ErrUnsorted)

	var nilLib *Library
	require.Error(t, nilLib.Validate())
}

func TestNewDeduplicatesReferencePeaks(t *testing.T) {
	rec := core.ReferenceRecord{
		Name:        "dup",
		PrecursorMZ: 200,
		Spectrum: core.Spectrum{Peaks: []core.Peak{
			{MZ: 120.5, Intensity: 10},
			{MZ: 80.0, Intensity: 5},
			{MZ: 80.0, Intensity: 7},
		}},
	}
	lib := New("dedupe", []core.ReferenceRecord{rec})
	r, _ := lib.Record(0)
	require.Len(t, r.Spectrum.Peaks, 2)
	require.Equal(t, 7.0, r.Spectrum.Peaks[0].Intensity)
	require.Len(t, rec.Spectrum.Peaks, 3, "caller's record must be untouched")
}
