// Package core provides the data model shared by the annotation and alignment
// stages of spotkey: spectra, reference records, peak features, match results
// and alignment spots.
package core

import (
	"fmt"
	"math"
	"sort"
	"strings"
)

// PeakMergeEpsilon is the m/z distance below which two peaks of one spectrum
// are considered the same peak when deduplicating.
const PeakMergeEpsilon = 1e-6

// Spectrum is an MS/MS spectrum: an owned list of fragment peaks.
type Spectrum struct {
	Peaks []Peak
}

// Peak represents a single m/z, intensity pair with optional metadata.
type Peak struct {
	MZ         float64
	Intensity  float64
	Annotation string // Ion annotation (e.g., "y3", "b2^2")
	Charge     int    // Fragment charge (if available)
}

// Modification represents a peptide modification with position and mass shift.
type Modification struct {
	Mass     float64
	Position int    // 0-based position; -1 for N-term, len(seq) for C-term
	Name     string // Modification name (e.g., "Carbamidomethyl", "Oxidation")
}

// ValidationError represents an error found during record validation.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error in %s: %s", e.Field, e.Message)
}

// Validate checks that every peak has a finite, positive m/z and a finite,
// non-negative intensity, and that peaks are sorted by m/z.
func (s *Spectrum) Validate() error {
	if s == nil {
		return &ValidationError{Field: "Spectrum", Message: "spectrum is nil"}
	}

	errs := s.peakErrors()
	if len(errs) > 0 {
		return &ValidationError{
			Field:   "Spectrum",
			Message: strings.Join(errs, "; "),
		}
	}
	return nil
}

func (s *Spectrum) peakErrors() []string {
	var errs []string
	for i, peak := range s.Peaks {
		if math.IsNaN(peak.MZ) || math.IsInf(peak.MZ, 0) {
			errs = append(errs, fmt.Sprintf("peak %d has invalid m/z", i))
		}
		if math.IsNaN(peak.Intensity) || math.IsInf(peak.Intensity, 0) {
			errs = append(errs, fmt.Sprintf("peak %d has invalid intensity", i))
		}
		if peak.MZ <= 0 {
			errs = append(errs, fmt.Sprintf("peak %d m/z must be positive", i))
		}
		if peak.Intensity < 0 {
			errs = append(errs, fmt.Sprintf("peak %d intensity must be non-negative", i))
		}
	}
	if !s.ArePeaksSorted() {
		errs = append(errs, "peaks must be sorted by m/z")
	}
	return errs
}

// Len returns the number of peaks; a nil spectrum has none.
func (s *Spectrum) Len() int {
	if s == nil {
		return 0
	}
	return len(s.Peaks)
}

// ArePeaksSorted checks if peaks are sorted by m/z in ascending order.
func (s *Spectrum) ArePeaksSorted() bool {
	for i := 1; i < len(s.Peaks); i++ {
		if s.Peaks[i].MZ < s.Peaks[i-1].MZ {
			return false
		}
	}
	return true
}

// SortPeaks sorts peaks by m/z in ascending order. Equal m/z values keep their
// input order.
func (s *Spectrum) SortPeaks() {
	sort.SliceStable(s.Peaks, func(i, j int) bool {
		return s.Peaks[i].MZ < s.Peaks[j].MZ
	})
}

// BasePeakIntensity returns the highest peak intensity, or 0 for an empty spectrum.
func (s *Spectrum) BasePeakIntensity() float64 {
	max := 0.0
	if s == nil {
		return max
	}
	for _, peak := range s.Peaks {
		if peak.Intensity > max {
			max = peak.Intensity
		}
	}
	return max
}


// Clone returns a deep copy of the spectrum. Cloning nil yields an empty spectrum.
func (s *Spectrum) Clone() *Spectrum {
	if s == nil {
		return &Spectrum{}
	}
	peaks := make([]Peak, len(s.Peaks))
	copy(peaks, s.Peaks)
	return &Spectrum{Peaks: peaks}
}

// DedupePeaks sorts the spectrum and collapses runs of peaks whose m/z values
// lie within eps of the first peak of the run. The most intense peak of a run
// survives; on equal intensity the earlier one wins.
func (s *Spectrum) DedupePeaks(eps float64) {
	if len(s.Peaks) < 2 {
		return
	}
	s.SortPeaks()

	out := s.Peaks[:0:0]
	runStart := 0
	best := 0
	for i := 1; i <= len(s.Peaks); i++ {
		if i < len(s.Peaks) && s.Peaks[i].MZ-s.Peaks[runStart].MZ <= eps {
			if s.Peaks[i].Intensity > s.Peaks[best].Intensity {
				best = i
			}
			continue
		}
		out = append(out, s.Peaks[best])
		runStart, best = i, i
	}
	s.Peaks = out
}
