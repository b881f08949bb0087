// Package scoring computes spectral similarity metrics between an observed
// spectrum and a reference spectrum.
package scoring

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"

	"github.com/ChrisMcGann/spotkey/pkg/core"
	"github.com/ChrisMcGann/spotkey/pkg/filter"
)

// Stein & Scott composite weighting exponents for the weighted dot product.
const (
	weightMZExponent        = 3.0
	weightIntensityExponent = 0.6
)

// Weights combine sub-scores into the total score.
type Weights struct {
	DotProduct             float64 `yaml:"dot_product" validate:"gte=0"`
	ReverseDotProduct      float64 `yaml:"reverse_dot_product" validate:"gte=0"`
	WeightedDotProduct     float64 `yaml:"weighted_dot_product" validate:"gte=0"`
	MatchedPeaksPercentage float64 `yaml:"matched_peaks_percentage" validate:"gte=0"`
	Precursor              float64 `yaml:"precursor" validate:"gte=0"`
	Retention              float64 `yaml:"retention" validate:"gte=0"`
}

// Parameters configure scoring.
type Parameters struct {
	MS1Tolerance       core.Tolerance `yaml:"ms1_tolerance"`
	MS2Tolerance       float64        `yaml:"ms2_tolerance" validate:"gte=0"`       // Da
	RetentionTolerance float64        `yaml:"retention_tolerance" validate:"gte=0"` // minutes
	Preprocess         filter.Config  `yaml:"preprocess"`
	Weights            Weights        `yaml:"weights"`
}

// DefaultParameters returns the scoring defaults.
func DefaultParameters() Parameters {
	return Parameters{
		MS1Tolerance:       core.Tolerance{Value: 0.01, Threshold: core.DefaultPPMThreshold},
		MS2Tolerance:       0.025,
		RetentionTolerance: 0.5,
		Preprocess:         filter.Config{IntensityCutoff: 1},
		Weights: Weights{
			DotProduct:             1,
			ReverseDotProduct:      1,
			WeightedDotProduct:     1,
			MatchedPeaksPercentage: 1,
			Precursor:              1,
			Retention:              1,
		},
	}
}

type pair struct {
	obs, ref int
}

// ScoreSpectra compares two spectra. It does not modify its inputs and is
// deterministic: the same inputs always give bit-identical scores. The total
// score only covers the spectral sub-scores; ScoreFeature adds precursor and
// retention terms.
func ScoreSpectra(observed, reference *core.Spectrum, obsIso, refIso []core.IsotopePeak, p Parameters) core.MatchResult {
	var res core.MatchResult
	res.IsotopeSimilarity, res.HasIsotopeSimilarity = IsotopeSimilarity(obsIso, refIso)

	obs := observed.Clone()
	ref := reference.Clone()
	p.Preprocess.Apply(obs)
	p.Preprocess.Apply(ref)
	if len(obs.Peaks) == 0 || len(ref.Peaks) == 0 {
		return res
	}
	res.HasSpectra = true

	pairs := matchPeaks(obs.Peaks, ref.Peaks, p.MS2Tolerance)
	res.MatchedPeaksCount = len(pairs)
	res.MatchedPeaksPercentage = float64(len(pairs)) / float64(len(ref.Peaks))

	res.DotProduct, res.ReverseDotProduct = dotProducts(obs.Peaks, ref.Peaks, pairs)
	res.WeightedDotProduct = weightedDotProduct(obs.Peaks, ref.Peaks, pairs)

	res.TotalScore = totalScore(res, p.Weights, false, false)
	return res
}

// ScoreFeature scores a feature against a reference record, including the
// precursor and retention similarities and the corresponding match flags.
// IsSpectrumMatch is left to the evaluator.
func ScoreFeature(f *core.PeakFeature, r *core.ReferenceRecord, p Parameters) core.MatchResult {
	res := ScoreSpectra(f.Spectrum, &r.Spectrum, f.Isotopes, r.Isotopes, p)

	window := p.MS1Tolerance.Window(f.PrecursorMZ)
	diff := math.Abs(f.PrecursorMZ - r.PrecursorMZ)
	res.IsPrecursorMatch = diff <= window
	res.PrecursorSimilarity = gaussian(diff, window)

	hasRT := r.RetentionTime != nil && f.RetentionTime > 0 && p.RetentionTolerance > 0
	res.IsRetentionMatch = true
	if hasRT {
		drt := math.Abs(f.RetentionTime - *r.RetentionTime)
		res.RetentionSimilarity = gaussian(drt, p.RetentionTolerance)
		res.IsRetentionMatch = drt <= p.RetentionTolerance
	}

	res.TotalScore = totalScore(res, p.Weights, true, hasRT)
	return res
}

// matchPeaks pairs every reference peak, in ascending m/z, with the closest
// unused observed peak within tol. Ties go to the lower observed index.
func matchPeaks(obs, ref []core.Peak, tol float64) []pair {
	used := make([]bool, len(obs))
	var pairs []pair
	for j, rp := range ref {
		lo := sort.Search(len(obs), func(i int) bool { return obs[i].MZ >= rp.MZ-tol })
		best := -1
		bestDiff := math.Inf(1)
		for i := lo; i < len(obs) && obs[i].MZ <= rp.MZ+tol; i++ {
			if used[i] {
				continue
			}
			if d := math.Abs(obs[i].MZ - rp.MZ); d < bestDiff {
				best, bestDiff = i, d
			}
		}
		if best >= 0 {
			used[best] = true
			pairs = append(pairs, pair{obs: best, ref: j})
		}
	}
	return pairs
}

func intensities(peaks []core.Peak, transform func(core.Peak) float64) []float64 {
	out := make([]float64, len(peaks))
	for i, p := range peaks {
		out[i] = transform(p)
	}
	return out
}

func sqrtIntensity(p core.Peak) float64 { return math.Sqrt(p.Intensity) }

func compositeWeight(p core.Peak) float64 {
	return math.Pow(p.MZ, weightMZExponent) * math.Pow(p.Intensity, weightIntensityExponent)
}

// dotProducts returns the forward and reverse dot products on square-root
// scaled intensities. Unmatched observed peaks lower only the forward score;
// unmatched reference peaks lower both.
func dotProducts(obs, ref []core.Peak, pairs []pair) (float64, float64) {
	if len(pairs) == 0 {
		return 0, 0
	}
	o := intensities(obs, sqrtIntensity)
	r := intensities(ref, sqrtIntensity)

	po := make([]float64, len(pairs))
	pr := make([]float64, len(pairs))
	for k, pp := range pairs {
		po[k] = o[pp.obs]
		pr[k] = r[pp.ref]
	}

	shared := floats.Dot(po, pr)
	num := shared * shared
	obsAll := floats.Dot(o, o)
	refAll := floats.Dot(r, r)
	obsMatched := floats.Dot(po, po)

	return ratio(num, obsAll*refAll), ratio(num, obsMatched*refAll)
}

// weightedDotProduct is the cosine of m/z- and intensity-weighted vectors.
func weightedDotProduct(obs, ref []core.Peak, pairs []pair) float64 {
	if len(pairs) == 0 {
		return 0
	}
	o := intensities(obs, compositeWeight)
	r := intensities(ref, compositeWeight)

	po := make([]float64, len(pairs))
	pr := make([]float64, len(pairs))
	for k, pp := range pairs {
		po[k] = o[pp.obs]
		pr[k] = r[pp.ref]
	}

	shared := floats.Dot(po, pr)
	return ratio(shared*shared, floats.Dot(o, o)*floats.Dot(r, r))
}

// IsotopeSimilarity compares relative isotope abundances for every non-zero
// offset present in the reference pattern. The second result is false when
// either side lacks isotope data.
func IsotopeSimilarity(observed, reference []core.IsotopePeak) (float64, bool) {
	if len(observed) == 0 || len(reference) == 0 {
		return 0, false
	}
	obs := relativeAbundances(observed)
	ref := relativeAbundances(reference)
	if obs == nil || ref == nil {
		return 0, false
	}

	offsets := make([]int, 0, len(ref))
	for off := range ref {
		if off > 0 {
			offsets = append(offsets, off)
		}
	}
	if len(offsets) == 0 {
		return 0, false
	}
	sort.Ints(offsets)

	diff := 0.0
	for _, off := range offsets {
		diff += math.Abs(obs[off] - ref[off])
	}
	return math.Max(0, 1-diff/float64(len(offsets))), true
}

// relativeAbundances maps offset to abundance relative to the monoisotopic
// peak, or returns nil when there is no usable monoisotopic peak.
func relativeAbundances(pattern []core.IsotopePeak) map[int]float64 {
	mono := 0.0
	for _, p := range pattern {
		if p.Offset == 0 {
			mono = p.Abundance
		}
	}
	if mono <= 0 {
		return nil
	}
	out := make(map[int]float64, len(pattern))
	for _, p := range pattern {
		out[p.Offset] = p.Abundance / mono
	}
	return out
}

// totalScore is the weighted mean of the applicable sub-scores. Spectral terms
// apply only when both spectra had peaks; retention only when both sides
// carried a retention time. Isotope similarity is never included.
func totalScore(r core.MatchResult, w Weights, withPrecursor, withRetention bool) float64 {
	var sum, norm float64
	add := func(weight, score float64) {
		if weight <= 0 {
			return
		}
		sum += weight * score
		norm += weight
	}

	if r.HasSpectra {
		add(w.DotProduct, r.DotProduct)
		add(w.ReverseDotProduct, r.ReverseDotProduct)
		add(w.WeightedDotProduct, r.WeightedDotProduct)
		add(w.MatchedPeaksPercentage, r.MatchedPeaksPercentage)
	}
	if withPrecursor {
		add(w.Precursor, r.PrecursorSimilarity)
	}
	if withRetention {
		add(w.Retention, r.RetentionSimilarity)
	}
	return ratio(sum, norm)
}

func gaussian(diff, width float64) float64 {
	if width <= 0 {
		if diff == 0 {
			return 1
		}
		return 0
	}
	z := diff / width
	return math.Exp(-0.5 * z * z)
}

func ratio(num, den float64) float64 {
	if den <= 0 || math.IsNaN(num) || math.IsNaN(den) {
		return 0
	}
	v := num / den
	if v > 1 {
		return 1
	}
	return v
}
