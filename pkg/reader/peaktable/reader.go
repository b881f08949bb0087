// Package peaktable reads detected peak features of one analytical file
// together with their MS/MS spectra.
//
// The table is tab-separated with a header naming the columns PeakID, MZ, RT,
// Mobility, IsotopeWeight, Polarity, Isotopes and Spectrum. Isotopes holds
// "offset:abundance" pairs and Spectrum "mz:intensity" pairs, both separated
// by spaces. An empty Spectrum cell means the feature has no MS/MS scan.
package peaktable

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/ChrisMcGann/spotkey/pkg/core"
	"github.com/ChrisMcGann/spotkey/pkg/reader/tsv"
)

// Column names. PeakID and MZ are required.
const (
	ColPeakID        = "PeakID"
	ColMZ            = "MZ"
	ColRT            = "RT"
	ColMobility      = "Mobility"
	ColIsotopeWeight = "IsotopeWeight"
	ColPolarity      = "Polarity"
	ColIsotopes      = "Isotopes"
	ColSpectrum      = "Spectrum"
)

// Read parses a peak table. The returned slices have equal length; spectra[i]
// is nil when feature i has no MS/MS scan.
func Read(in io.Reader, fileName string) ([]*core.PeakFeature, []*core.Spectrum, error) {
	t, err := tsv.NewReader(in, ColPeakID, ColMZ)
	if err != nil {
		return nil, nil, fmt.Errorf("peak table: %w", err)
	}

	var (
		features []*core.PeakFeature
		spectra  []*core.Spectrum
	)
	for t.Next() {
		f, spec, err := parseRow(t, fileName)
		if err != nil {
			return nil, nil, err
		}
		features = append(features, f)
		spectra = append(spectra, spec)
	}
	if err := t.Err(); err != nil {
		return nil, nil, err
	}
	return features, spectra, nil
}

// ReadFile reads a peak table from disk; features are tagged with the file's
// base name.
func ReadFile(path string) ([]*core.PeakFeature, []*core.Spectrum, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open peak table: %w", err)
	}
	defer file.Close()

	features, spectra, err := Read(file, filepath.Base(path))
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", path, err)
	}
	return features, spectra, nil
}

func parseRow(t *tsv.Reader, fileName string) (*core.PeakFeature, *core.Spectrum, error) {
	id, err := t.Int(ColPeakID)
	if err != nil {
		return nil, nil, err
	}
	mz, ok, err := t.Float(ColMZ)
	if err != nil {
		return nil, nil, err
	}
	if !ok {
		return nil, nil, fmt.Errorf("line %d: missing %s", t.Line(), ColMZ)
	}

	f := &core.PeakFeature{
		ID:          id,
		FileName:    fileName,
		PrecursorMZ: mz,
		Polarity:    core.ParsePolarity(t.String(ColPolarity)),
	}
	if rt, ok, err := t.Float(ColRT); err != nil {
		return nil, nil, err
	} else if ok {
		f.RetentionTime = rt
	}
	if mob, ok, err := t.Float(ColMobility); err != nil {
		return nil, nil, err
	} else if ok {
		f.Mobility = mob
	}
	if f.IsotopeWeight, err = t.Int(ColIsotopeWeight); err != nil {
		return nil, nil, err
	}

	if f.Isotopes, err = ParseIsotopes(t.String(ColIsotopes)); err != nil {
		return nil, nil, fmt.Errorf("line %d: %w", t.Line(), err)
	}

	var spec *core.Spectrum
	if s := t.String(ColSpectrum); s != "" {
		if spec, err = ParseSpectrum(s); err != nil {
			return nil, nil, fmt.Errorf("line %d: %w", t.Line(), err)
		}
	}
	f.Spectrum = spec
	return f, spec, nil
}

// ParseSpectrum parses space-separated "mz:intensity" pairs. Peaks are
// returned sorted by m/z.
func ParseSpectrum(s string) (*core.Spectrum, error) {
	spec := &core.Spectrum{}
	for _, field := range strings.Fields(s) {
		mzStr, intStr, ok := strings.Cut(field, ":")
		if !ok {
			return nil, fmt.Errorf("invalid peak '%s', expected mz:intensity", field)
		}
		mz, err := strconv.ParseFloat(mzStr, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid m/z value '%s': %w", mzStr, err)
		}
		intensity, err := strconv.ParseFloat(intStr, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid intensity value '%s': %w", intStr, err)
		}
		spec.Peaks = append(spec.Peaks, core.Peak{MZ: mz, Intensity: intensity})
	}
	spec.SortPeaks()
	return spec, nil
}

// ParseIsotopes parses space-separated "offset:abundance" pairs.
func ParseIsotopes(s string) ([]core.IsotopePeak, error) {
	var out []core.IsotopePeak
	for _, field := range strings.Fields(s) {
		offStr, abStr, ok := strings.Cut(field, ":")
		if !ok {
			return nil, fmt.Errorf("invalid isotope '%s', expected offset:abundance", field)
		}
		off, err := strconv.Atoi(offStr)
		if err != nil {
			return nil, fmt.Errorf("invalid isotope offset '%s': %w", offStr, err)
		}
		ab, err := strconv.ParseFloat(abStr, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid isotope abundance '%s': %w", abStr, err)
		}
		out = append(out, core.IsotopePeak{Offset: off, Abundance: ab})
	}
	return out, nil
}
