// Package filter provides peak filtering applied to spectra before scoring
// and to generated reference spectra.
package filter

import (
	"sort"
	"strings"

	"github.com/ChrisMcGann/spotkey/pkg/core"
)

// Config holds filtering configuration
type Config struct {
	TopN            int      `yaml:"top_n" validate:"gte=0"`                    // Keep only top N most intense peaks (0 = no limit)
	IntensityCutoff float64  `yaml:"intensity_cutoff" validate:"min=0,max=100"` // Keep only peaks above this % of base peak (0 = no cutoff)
	IonTypes        []string `yaml:"ion_types"`                                 // Keep only specified ion types (nil = all)
}

// Apply applies all configured filters to a spectrum in place and leaves the
// peaks sorted by m/z.
func (c *Config) Apply(spec *core.Spectrum) {
	RemoveZeroIntensityPeaks(spec)

	if len(c.IonTypes) > 0 {
		c.filterByIonType(spec)
	}
	if c.IntensityCutoff > 0 {
		c.filterByIntensity(spec)
	}
	if c.TopN > 0 {
		c.filterTopN(spec)
	}

	spec.SortPeaks()
}

// filterByIonType keeps only peaks matching specified ion types
func (c *Config) filterByIonType(spec *core.Spectrum) {
	filtered := spec.Peaks[:0]
	for _, peak := range spec.Peaks {
		if matchesIonType(peak.Annotation, c.IonTypes) {
			filtered = append(filtered, peak)
		}
	}
	spec.Peaks = filtered
}

// matchesIonType checks if an annotation matches any of the allowed ion types
func matchesIonType(annotation string, ionTypes []string) bool {
	if annotation == "" {
		return false
	}
	for _, ionType := range ionTypes {
		// Match ion type at start of annotation (e.g., "y3", "b2^2")
		if strings.HasPrefix(annotation, ionType) {
			return true
		}
	}
	return false
}

// filterByIntensity removes peaks below the intensity cutoff percentage
func (c *Config) filterByIntensity(spec *core.Spectrum) {
	threshold := (c.IntensityCutoff / 100.0) * spec.BasePeakIntensity()

	filtered := spec.Peaks[:0]
	for _, peak := range spec.Peaks {
		if peak.Intensity >= threshold {
			filtered = append(filtered, peak)
		}
	}
	spec.Peaks = filtered
}

// filterTopN keeps only the N most intense peaks; ties keep the lower m/z.
func (c *Config) filterTopN(spec *core.Spectrum) {
	if len(spec.Peaks) <= c.TopN {
		return
	}

	peaks := make([]core.Peak, len(spec.Peaks))
	copy(peaks, spec.Peaks)
	sort.SliceStable(peaks, func(i, j int) bool {
		if peaks[i].Intensity != peaks[j].Intensity {
			return peaks[i].Intensity > peaks[j].Intensity
		}
		return peaks[i].MZ < peaks[j].MZ
	})

	spec.Peaks = peaks[:c.TopN]
}

// RemoveZeroIntensityPeaks removes peaks with zero or negative intensity
func RemoveZeroIntensityPeaks(spec *core.Spectrum) {
	filtered := spec.Peaks[:0]
	for _, peak := range spec.Peaks {
		if peak.Intensity > 0 {
			filtered = append(filtered, peak)
		}
	}
	spec.Peaks = filtered
}
