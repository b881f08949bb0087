package alignment

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/ChrisMcGann/spotkey/pkg/core"
	"github.com/ChrisMcGann/spotkey/pkg/logger"
	"github.com/ChrisMcGann/spotkey/pkg/metrics"
)

// rtIndex orders spots by retention time for window scans.
type rtIndex struct {
	order []int
	rts   []float64
}

func newRTIndex(spots []*core.AlignmentSpot, keep func(*core.AlignmentSpot) bool) rtIndex {
	var idx rtIndex
	for i, s := range spots {
		if keep(s) {
			idx.order = append(idx.order, i)
		}
	}
	sort.SliceStable(idx.order, func(a, b int) bool {
		return spots[idx.order[a]].RetentionTime < spots[idx.order[b]].RetentionTime
	})
	idx.rts = make([]float64, len(idx.order))
	for k, i := range idx.order {
		idx.rts[k] = spots[i].RetentionTime
	}
	return idx
}

// within calls fn for every indexed spot with |rt - RT| <= margin, in
// retention time order.
func (x rtIndex) within(rt, margin float64, fn func(i int)) {
	lo := sort.SearchFloat64s(x.rts, rt-margin)
	for k := lo; k < len(x.rts) && x.rts[k] <= rt+margin; k++ {
		fn(x.order[k])
	}
}

// link runs the correlation, identity and representative steps. spots must
// be ordered by GlobalID.
func (r *Refiner) link(spots []*core.AlignmentSpot) error {
	for _, s := range spots {
		s.Links = nil
		s.RepresentativeID = core.NoID
	}

	r.linkCorrelated(spots)
	r.linkIdentified(spots)
	r.linkRepresentatives(spots)

	for _, s := range spots {
		s.SortLinks()
		if err := s.Advance(core.SpotLinked); err != nil {
			return err
		}
	}
	return nil
}

func addPair(a, b *core.AlignmentSpot, kind core.LinkKind) {
	added := a.AddLink(kind, b.GlobalID)
	if b.AddLink(kind, a.GlobalID) || added {
		metrics.AlignmentLinks.WithLabelValues(kind.String()).Inc()
	}
}

// sampleCount is the length of the per-sample intensity vectors.
func sampleCount(spots []*core.AlignmentSpot) int {
	n := 0
	for _, s := range spots {
		if len(s.Intensities) > n {
			n = len(s.Intensities)
		}
	}
	return n
}

// linkCorrelated links non-isotope spots eluting within the margin whose
// intensity profiles correlate. Spots with missing or malformed vectors are
// left out.
func (r *Refiner) linkCorrelated(spots []*core.AlignmentSpot) {
	n := sampleCount(spots)
	if n <= r.params.MinSamplesForCorrelation {
		logger.Debug("correlation linking skipped", "samples", n, "min", r.params.MinSamplesForCorrelation)
		return
	}

	idx := newRTIndex(spots, func(s *core.AlignmentSpot) bool {
		return !s.IsIsotope() && s.HasValidIntensities(n)
	})
	for _, i := range idx.order {
		s := spots[i]
		idx.within(s.RetentionTime, r.params.RtMargin, func(j int) {
			p := spots[j]
			if p.GlobalID <= s.GlobalID {
				return
			}
			corr := stat.Correlation(s.Intensities, p.Intensities, nil)
			if corr >= r.params.CorrelationThreshold {
				addPair(s, p, core.LinkCorrelated)
			}
		})
	}
}

// isotopeOf reports whether heavy lies on the isotope ladder of light for
// some charge up to MaxCharge.
func (r *Refiner) isotopeOf(light, heavy float64) bool {
	for z := 1; z <= r.params.maxCharge(); z++ {
		if r.isotopeLadder(light, heavy, z) {
			return true
		}
	}
	return false
}

// isotopeLadder reports whether heavy is one of the first MaxIsotopes
// 13C isotopes of light at the given charge.
func (r *Refiner) isotopeLadder(light, heavy float64, charge int) bool {
	if charge < 1 {
		charge = 1
	}
	tol := r.params.MzTolerance.Window(heavy)
	for k := 1; k <= r.params.MaxIsotopes; k++ {
		if math.Abs(light+float64(k)*core.C13Diff/float64(charge)-heavy) <= tol {
			return true
		}
	}
	return false
}

// adductOf reports whether mz is another adduct of the neutral mass.
func (r *Refiner) adductOf(neutral float64, skip string, pol core.Polarity, mz float64) bool {
	for _, a := range r.params.adducts(pol) {
		if a.Name == skip {
			continue
		}
		if r.params.MzTolerance.Within(mz, a.MZ(neutral)) {
			return true
		}
	}
	return false
}

// linkIdentified links the isotopes and alternative adducts of every spot
// carrying a confirmed identification. Linked spots that have no
// identification of their own derive from it.
func (r *Refiner) linkIdentified(spots []*core.AlignmentSpot) {
	idx := newRTIndex(spots, func(*core.AlignmentSpot) bool { return true })

	for _, s := range spots {
		if !s.IsIdentified() || s.IsIsotope() {
			continue
		}
		adduct, ok := core.LookupAdduct(s.Reference.AdductType)
		if !ok {
			adducts := core.DefaultAdducts(s.Polarity)
			adduct = adducts[0]
		}
		neutral := adduct.NeutralMass(s.MZ)
		charge := int(math.Abs(float64(adduct.Charge)))

		idx.within(s.RetentionTime, r.params.RtMargin, func(j int) {
			c := spots[j]
			if c == s || !c.Polarity.Compatible(s.Polarity) {
				return
			}
			var kind core.LinkKind
			switch {
			case r.isotopeLadder(s.MZ, c.MZ, charge):
				kind = core.LinkIsotope
			case r.adductOf(neutral, adduct.Name, s.Polarity, c.MZ):
				kind = core.LinkAdduct
			default:
				return
			}
			addPair(s, c, kind)
			if c.RepresentativeID == core.NoID && !c.IsIdentified() {
				c.RepresentativeID = s.GlobalID
			}
		})
	}
}

// adductPair reports whether two m/z values are different adducts of one
// neutral mass.
func (r *Refiner) adductPair(pol core.Polarity, a, b float64) bool {
	for _, x := range r.params.adducts(pol) {
		if r.adductOf(x.NeutralMass(a), x.Name, pol, b) {
			return true
		}
	}
	return false
}

// abundance is the mean sample intensity; malformed vectors count as zero.
func abundance(s *core.AlignmentSpot) float64 {
	m := s.MeanIntensity()
	if math.IsNaN(m) || math.IsInf(m, 0) {
		return 0
	}
	return m
}

// linkRepresentatives lets the most abundant spots claim their isotopes and
// adduct partners first. A claimed spot does not act as representative, and
// each spot is claimed at most once.
func (r *Refiner) linkRepresentatives(spots []*core.AlignmentSpot) {
	byAbundance := make([]*core.AlignmentSpot, len(spots))
	copy(byAbundance, spots)
	sort.SliceStable(byAbundance, func(i, j int) bool {
		mi, mj := abundance(byAbundance[i]), abundance(byAbundance[j])
		if mi != mj {
			return mi > mj
		}
		return byAbundance[i].GlobalID < byAbundance[j].GlobalID
	})

	idx := newRTIndex(spots, func(*core.AlignmentSpot) bool { return true })
	representative := make([]bool, len(spots))

	for _, rep := range byAbundance {
		if rep.RepresentativeID != core.NoID || rep.IsIsotope() {
			continue
		}
		idx.within(rep.RetentionTime, r.params.RtMargin, func(j int) {
			c := spots[j]
			if c == rep || representative[j] || c.RepresentativeID != core.NoID || c.IsIdentified() {
				return
			}
			if !c.Polarity.Compatible(rep.Polarity) {
				return
			}
			var kind core.LinkKind
			switch {
			case r.isotopeOf(rep.MZ, c.MZ):
				kind = core.LinkIsotope
			case !c.IsIsotope() && r.adductPair(rep.Polarity, rep.MZ, c.MZ):
				kind = core.LinkAdduct
			default:
				return
			}
			addPair(rep, c, kind)
			c.RepresentativeID = rep.GlobalID
			representative[rep.GlobalID] = true
		})
	}
}
