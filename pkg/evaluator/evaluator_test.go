package evaluator

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ChrisMcGann/spotkey/pkg/core"
)

func spectral(total, dot float64, matched int) core.MatchResult {
	return core.MatchResult{
		HasSpectra:             true,
		DotProduct:             dot,
		ReverseDotProduct:      dot,
		WeightedDotProduct:     dot,
		MatchedPeaksPercentage: 0.5,
		MatchedPeaksCount:      matched,
		TotalScore:             total,
	}
}

func TestEvaluate(t *testing.T) {
	p := DefaultParameters()

	tests := []struct {
		name string
		in   core.MatchResult
		want bool
	}{
		{"all cutoffs met", spectral(0.9, 0.8, 3), true},
		{"dot product too low", spectral(0.9, 0.4, 3), false},
		{"too few matched peaks", spectral(0.9, 0.8, 1), false},
		{"no spectra", core.MatchResult{DotProduct: 1, ReverseDotProduct: 1, WeightedDotProduct: 1, MatchedPeaksPercentage: 1, MatchedPeaksCount: 5}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := tt.in
			Evaluate(&r, p)
			require.Equal(t, tt.want, r.IsSpectrumMatch)
		})
	}
}

func TestFilterByThreshold(t *testing.T) {
	p := DefaultParameters()
	p.IsotopeSimilarityCutoff = 0.5

	precursorOnly := core.MatchResult{TotalScore: 0.7, IsPrecursorMatch: true}
	spectrumOnly := core.MatchResult{TotalScore: 0.7, IsSpectrumMatch: true}
	neither := core.MatchResult{TotalScore: 0.99}
	lowTotal := core.MatchResult{TotalScore: 0.5, IsPrecursorMatch: true, IsSpectrumMatch: true}
	badIsotopes := core.MatchResult{TotalScore: 0.9, IsPrecursorMatch: true, HasIsotopeSimilarity: true, IsotopeSimilarity: 0.2}

	got := FilterByThreshold([]core.MatchResult{precursorOnly, neither, spectrumOnly, lowTotal, badIsotopes}, p)
	require.Equal(t, []core.MatchResult{precursorOnly, spectrumOnly}, got)

	p.UseRetentionFilter = true
	require.Empty(t, FilterByThreshold([]core.MatchResult{precursorOnly}, p))
	precursorOnly.IsRetentionMatch = true
	require.Len(t, FilterByThreshold([]core.MatchResult{precursorOnly}, p), 1)
}

func TestSelectTopHitFirstSeenWins(t *testing.T) {
	cands := []core.MatchResult{
		{RecordIndex: 0, TotalScore: 0.7},
		{RecordIndex: 1, TotalScore: 0.9},
		{RecordIndex: 2, TotalScore: 0.9},
	}
	hit, ok := SelectTopHit(cands)
	require.True(t, ok)
	require.Equal(t, 1, hit.RecordIndex)

	_, ok = SelectTopHit(nil)
	require.False(t, ok)
}

func TestSelectReferenceMatches(t *testing.T) {
	cands := []core.MatchResult{
		{RecordIndex: 0, IsPrecursorMatch: true},
		{RecordIndex: 1, IsPrecursorMatch: true, IsSpectrumMatch: true},
		{RecordIndex: 2, IsSpectrumMatch: true},
	}
	got := SelectReferenceMatches(cands)
	require.Len(t, got, 1)
	require.Equal(t, 1, got[0].RecordIndex)
}

func TestClassifyNoPassingCandidateIsUnknown(t *testing.T) {
	p := DefaultParameters()
	conf, hit, passed := Classify([]core.MatchResult{{TotalScore: 0.1}, {TotalScore: 0.2}}, p)
	require.Equal(t, core.ConfidenceUnknown, conf)
	require.Equal(t, core.MatchResult{}, hit)
	require.Empty(t, passed)

	conf, _, _ = Classify(nil, p)
	require.Equal(t, core.ConfidenceUnknown, conf)
}

func TestClassifyPrefersReferenceMatchOverHigherSuggestion(t *testing.T) {
	p := DefaultParameters()
	confirmed := spectral(0.7, 0.9, 4)
	confirmed.IsPrecursorMatch = true
	confirmed.RecordIndex = 1
	suggestion := core.MatchResult{RecordIndex: 0, TotalScore: 0.95, IsPrecursorMatch: true}

	conf, hit, passed := Classify([]core.MatchResult{suggestion, confirmed}, p)
	require.Equal(t, core.ConfidenceConfirmed, conf)
	require.Equal(t, 1, hit.RecordIndex)
	require.Len(t, passed, 2)
}

func TestClassifyTiersAreExclusive(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	p := DefaultParameters()

	for i := 0; i < 1000; i++ {
		n := rng.Intn(5)
		cands := make([]core.MatchResult, n)
		for j := range cands {
			cands[j] = core.MatchResult{
				RecordIndex:            j,
				HasSpectra:             rng.Intn(2) == 0,
				DotProduct:             rng.Float64(),
				ReverseDotProduct:      rng.Float64(),
				WeightedDotProduct:     rng.Float64(),
				MatchedPeaksPercentage: rng.Float64(),
				MatchedPeaksCount:      rng.Intn(6),
				TotalScore:             rng.Float64(),
				IsPrecursorMatch:       rng.Intn(2) == 0,
			}
		}

		conf, _, passed := Classify(cands, p)
		refs := SelectReferenceMatches(passed)
		switch conf {
		case core.ConfidenceConfirmed:
			require.NotEmpty(t, refs)
		case core.ConfidenceSuggested:
			require.Empty(t, refs)
			require.NotEmpty(t, passed)
		case core.ConfidenceUnknown:
			require.Empty(t, passed)
		default:
			t.Fatalf("unexpected confidence %v", conf)
		}
	}
}
