package core

import (
	"fmt"
	"strings"
)

// IsotopePeak is one entry of an isotope pattern. Offset is the nominal
// isotope number (0 = monoisotopic); Abundance is relative to the
// monoisotopic peak.
type IsotopePeak struct {
	Offset    int
	Abundance float64
}

// ReferenceRecord is one library entry. Records are immutable once a library
// has been built from them.
type ReferenceRecord struct {
	Name            string
	PrecursorMZ     float64
	Polarity        Polarity
	AdductType      string   // e.g. "[M+H]+"
	RetentionTime   *float64 // minutes
	CollisionEnergy *float64
	Spectrum        Spectrum
	Isotopes        []IsotopePeak

	Formula  string
	InChIKey string
	SMILES   string
	Ontology string // compound class
	Comment  string
}

// Validate checks the fields needed to search and score against the record.
// Records without peaks are allowed: free-text databases carry none.
func (r *ReferenceRecord) Validate() error {
	var errs []string
	if r.PrecursorMZ <= 0 {
		errs = append(errs, "precursor m/z must be positive")
	}
	errs = append(errs, r.Spectrum.peakErrors()...)

	if len(errs) > 0 {
		return &ValidationError{
			Field:   fmt.Sprintf("ReferenceRecord %q", r.Name),
			Message: strings.Join(errs, "; "),
		}
	}
	return nil
}

// HasSpectrum reports whether the record carries fragment peaks.
func (r *ReferenceRecord) HasSpectrum() bool {
	return len(r.Spectrum.Peaks) > 0
}

// Annotation is the reference metadata written onto an annotated feature or
// spot. It holds copies, not pointers into a library.
type Annotation struct {
	Source      Source
	LibraryKey  string
	RecordIndex int
	Name        string
	Formula     string
	InChIKey    string
	SMILES      string
	Ontology    string
	AdductType  string
	TotalScore  float64
}

// NewAnnotation copies the metadata of r for the given match.
func NewAnnotation(r *ReferenceRecord, m MatchResult) *Annotation {
	return &Annotation{
		Source:      m.Source,
		LibraryKey:  m.LibraryKey,
		RecordIndex: m.RecordIndex,
		Name:        r.Name,
		Formula:     r.Formula,
		InChIKey:    r.InChIKey,
		SMILES:      r.SMILES,
		Ontology:    r.Ontology,
		AdductType:  r.AdductType,
		TotalScore:  m.TotalScore,
	}
}
