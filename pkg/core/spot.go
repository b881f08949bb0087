package core

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// SpotState is the lifecycle stage of an alignment spot.
type SpotState int

const (
	SpotProvisional SpotState = iota
	SpotAccepted
	SpotIdentified
	SpotLinked
	SpotExported
)

func (s SpotState) String() string {
	switch s {
	case SpotProvisional:
		return "provisional"
	case SpotAccepted:
		return "accepted"
	case SpotIdentified:
		return "identified"
	case SpotLinked:
		return "linked"
	case SpotExported:
		return "exported"
	}
	return fmt.Sprintf("SpotState(%d)", int(s))
}

// ErrStateTransition is returned when a spot would skip or revisit a stage.
var ErrStateTransition = errors.New("invalid spot state transition")

// LinkKind is the relation recorded between two alignment spots.
type LinkKind int

const (
	LinkCorrelated LinkKind = iota + 1
	LinkIsotope
	LinkAdduct
)

func (k LinkKind) String() string {
	switch k {
	case LinkCorrelated:
		return "correlated"
	case LinkIsotope:
		return "isotope"
	case LinkAdduct:
		return "adduct"
	}
	return "unknown"
}

// Link points at another spot by its global identifier.
type Link struct {
	Kind    LinkKind
	Partner int
}

// AlignedPeak is the contribution of one file to an alignment spot.
type AlignedPeak struct {
	FileIndex     int
	FileName      string
	PeakID        int
	MZ            float64
	RetentionTime float64
	Intensity     float64
	GapFilled     bool
	Confidence    Confidence
	Reference     *Annotation
}

// NoID marks unassigned global, group and representative identifiers.
const NoID = -1

// AlignmentSpot is a cross-file consensus feature.
type AlignmentSpot struct {
	ID            int // identifier given by the grouping stage
	GlobalID      int
	GroupID       int
	MZ            float64
	RetentionTime float64
	IsotopeWeight int
	Polarity      Polarity

	Peaks       []AlignedPeak
	Intensities []float64 // one slot per analytical file

	Confidence Confidence
	Reference  *Annotation

	Links            []Link
	RepresentativeID int   // global id of the spot this one derives from
	MergedIDs        []int // source ids of duplicates dropped in favour of this spot
	State            SpotState
}

// NewSpot returns a provisional spot with unassigned identifiers.
func NewSpot(id int, mz, rt float64) *AlignmentSpot {
	return &AlignmentSpot{
		ID:               id,
		GlobalID:         NoID,
		GroupID:          NoID,
		MZ:               mz,
		RetentionTime:    rt,
		RepresentativeID: NoID,
	}
}

// Advance moves the spot to next. Only the immediate successor stage is
// accepted; Exported is terminal.
func (s *AlignmentSpot) Advance(next SpotState) error {
	if next != s.State+1 || s.State == SpotExported {
		return fmt.Errorf("%w: spot %d %s -> %s", ErrStateTransition, s.ID, s.State, next)
	}
	s.State = next
	return nil
}

// IsIsotope reports whether the spot is a heavier isotope satellite.
func (s *AlignmentSpot) IsIsotope() bool {
	return s.IsotopeWeight > 0
}

// IsIdentified reports whether the spot carries a confirmed library identification.
func (s *AlignmentSpot) IsIdentified() bool {
	return s.Confidence == ConfidenceConfirmed && s.Reference != nil
}

// Recenter sets MZ and RetentionTime to the centroid of the detected (not
// gap-filled) member peaks. Spots without detected peaks are left unchanged.
func (s *AlignmentSpot) Recenter() {
	var mz, rt float64
	n := 0
	for _, p := range s.Peaks {
		if p.GapFilled || p.MZ <= 0 {
			continue
		}
		mz += p.MZ
		rt += p.RetentionTime
		n++
	}
	if n == 0 {
		return
	}
	s.MZ = mz / float64(n)
	s.RetentionTime = rt / float64(n)
}

// InheritAnnotation copies the annotation of the best-voting member peak:
// highest confidence, then highest total score; the first such member wins.
// Spots that already carry an annotation keep it.
func (s *AlignmentSpot) InheritAnnotation() {
	if s.Reference != nil {
		return
	}
	best := -1
	for i, p := range s.Peaks {
		if p.Reference == nil || p.Confidence == ConfidenceUnknown {
			continue
		}
		if best < 0 {
			best = i
			continue
		}
		b := s.Peaks[best]
		if p.Confidence > b.Confidence ||
			(p.Confidence == b.Confidence && p.Reference.TotalScore > b.Reference.TotalScore) {
			best = i
		}
	}
	if best < 0 {
		return
	}
	ref := *s.Peaks[best].Reference
	s.Reference = &ref
	s.Confidence = s.Peaks[best].Confidence
}

// HasValidIntensities reports whether the per-sample vector has exactly n
// finite, non-negative entries.
func (s *AlignmentSpot) HasValidIntensities(n int) bool {
	if n == 0 || len(s.Intensities) != n {
		return false
	}
	for _, v := range s.Intensities {
		if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
			return false
		}
	}
	return true
}

// MeanIntensity is the average of the per-sample intensities, 0 without any.
func (s *AlignmentSpot) MeanIntensity() float64 {
	if len(s.Intensities) == 0 {
		return 0
	}
	return stat.Mean(s.Intensities, nil)
}

// AddLink records a link to partner unless an identical one exists.
func (s *AlignmentSpot) AddLink(kind LinkKind, partner int) bool {
	for _, l := range s.Links {
		if l.Kind == kind && l.Partner == partner {
			return false
		}
	}
	s.Links = append(s.Links, Link{Kind: kind, Partner: partner})
	return true
}

// SortLinks orders links by partner identifier, then kind.
func (s *AlignmentSpot) SortLinks() {
	sort.Slice(s.Links, func(i, j int) bool {
		if s.Links[i].Partner != s.Links[j].Partner {
			return s.Links[i].Partner < s.Links[j].Partner
		}
		return s.Links[i].Kind < s.Links[j].Kind
	})
}

// Clone returns a deep copy of the spot.
func (s *AlignmentSpot) Clone() *AlignmentSpot {
	c := *s
	c.Peaks = append([]AlignedPeak(nil), s.Peaks...)
	c.Intensities = append([]float64(nil), s.Intensities...)
	c.Links = append([]Link(nil), s.Links...)
	c.MergedIDs = append([]int(nil), s.MergedIDs...)
	if s.Reference != nil {
		ref := *s.Reference
		c.Reference = &ref
	}
	return &c
}
