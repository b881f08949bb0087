// Package evaluator applies score cutoffs to scored candidates and decides the
// confidence tier of a feature.
package evaluator

import (
	"github.com/ChrisMcGann/spotkey/pkg/core"
)

// Parameters hold the acceptance cutoffs. Similarity cutoffs are fractions in [0,1].
type Parameters struct {
	DotProductCutoff             float64 `yaml:"dot_product_cutoff" validate:"min=0,max=1"`
	ReverseDotProductCutoff      float64 `yaml:"reverse_dot_product_cutoff" validate:"min=0,max=1"`
	WeightedDotProductCutoff     float64 `yaml:"weighted_dot_product_cutoff" validate:"min=0,max=1"`
	MatchedPeaksPercentageCutoff float64 `yaml:"matched_peaks_percentage_cutoff" validate:"min=0,max=1"`
	MinMatchedPeaks              int     `yaml:"min_matched_peaks" validate:"gte=0"`
	TotalScoreCutoff             float64 `yaml:"total_score_cutoff" validate:"min=0,max=1"`
	IsotopeSimilarityCutoff      float64 `yaml:"isotope_similarity_cutoff" validate:"min=0,max=1"` // 0 disables
	UseRetentionFilter           bool    `yaml:"use_retention_filter"`
}

// DefaultParameters returns the evaluator defaults.
func DefaultParameters() Parameters {
	return Parameters{
		DotProductCutoff:             0.5,
		ReverseDotProductCutoff:      0.5,
		WeightedDotProductCutoff:     0.5,
		MatchedPeaksPercentageCutoff: 0.3,
		MinMatchedPeaks:              2,
		TotalScoreCutoff:             0.6,
	}
}

// Evaluate sets IsSpectrumMatch: both spectra carried peaks and every
// spectral cutoff is met.
func Evaluate(r *core.MatchResult, p Parameters) {
	r.IsSpectrumMatch = r.HasSpectra &&
		r.DotProduct >= p.DotProductCutoff &&
		r.ReverseDotProduct >= p.ReverseDotProductCutoff &&
		r.WeightedDotProduct >= p.WeightedDotProductCutoff &&
		r.MatchedPeaksPercentage >= p.MatchedPeaksPercentageCutoff &&
		r.MatchedPeaksCount >= p.MinMatchedPeaks
}

// FilterByThreshold returns the candidates that clear the total score cutoff
// and are a precursor match or a full spectrum match. Precursor-only matches
// skip the spectral cutoffs. Isotope similarity, when both sides had it, and
// retention, when enabled, are secondary filters. Candidate order is kept.
func FilterByThreshold(candidates []core.MatchResult, p Parameters) []core.MatchResult {
	var out []core.MatchResult
	for _, c := range candidates {
		if passes(c, p) {
			out = append(out, c)
		}
	}
	return out
}

func passes(c core.MatchResult, p Parameters) bool {
	if c.TotalScore < p.TotalScoreCutoff {
		return false
	}
	if !c.IsPrecursorMatch && !c.IsSpectrumMatch {
		return false
	}
	if p.IsotopeSimilarityCutoff > 0 && c.HasIsotopeSimilarity && c.IsotopeSimilarity < p.IsotopeSimilarityCutoff {
		return false
	}
	if p.UseRetentionFilter && !c.IsRetentionMatch {
		return false
	}
	return true
}

// SelectReferenceMatches returns the candidates with both the precursor and
// the spectrum flag set.
func SelectReferenceMatches(candidates []core.MatchResult) []core.MatchResult {
	var out []core.MatchResult
	for _, c := range candidates {
		if c.IsReferenceMatched() {
			out = append(out, c)
		}
	}
	return out
}

// SelectTopHit returns the candidate with the highest total score. On equal
// scores the earlier candidate wins.
func SelectTopHit(candidates []core.MatchResult) (core.MatchResult, bool) {
	if len(candidates) == 0 {
		return core.MatchResult{}, false
	}
	best := 0
	for i := 1; i < len(candidates); i++ {
		if candidates[i].TotalScore > candidates[best].TotalScore {
			best = i
		}
	}
	return candidates[best], true
}

// Classify evaluates, filters and classifies the candidates of one library.
// It returns the tier, the representative hit and the candidates that passed
// filtering. The hit is the zero value for ConfidenceUnknown.
func Classify(candidates []core.MatchResult, p Parameters) (core.Confidence, core.MatchResult, []core.MatchResult) {
	for i := range candidates {
		Evaluate(&candidates[i], p)
	}
	passed := FilterByThreshold(candidates, p)

	if hit, ok := SelectTopHit(SelectReferenceMatches(passed)); ok {
		return core.ConfidenceConfirmed, hit, passed
	}
	if hit, ok := SelectTopHit(passed); ok {
		return core.ConfidenceSuggested, hit, passed
	}
	return core.ConfidenceUnknown, core.MatchResult{}, passed
}
