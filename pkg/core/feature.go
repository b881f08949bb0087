package core

// PeakFeature is one detected chromatographic peak in one file.
type PeakFeature struct {
	ID            int
	FileName      string
	PrecursorMZ   float64
	RetentionTime float64 // minutes; 0 when unknown
	Mobility      float64
	IsotopeWeight int // 0 = monoisotopic
	Polarity      Polarity
	Spectrum      *Spectrum
	Isotopes      []IsotopePeak

	// Written by annotation.
	Matches    []MatchResult
	Confidence Confidence
	Reference  *Annotation
}

// IsMonoisotopic reports whether the feature is used for library matching.
func (f *PeakFeature) IsMonoisotopic() bool {
	return f.IsotopeWeight == 0
}

// MatchResult is the outcome of comparing one feature with one reference record.
type MatchResult struct {
	LibraryKey  string
	RecordIndex int
	Source      Source

	DotProduct             float64
	ReverseDotProduct      float64
	WeightedDotProduct     float64
	MatchedPeaksPercentage float64 // 0..1
	MatchedPeaksCount      int
	PrecursorSimilarity    float64
	RetentionSimilarity    float64
	IsotopeSimilarity      float64
	HasIsotopeSimilarity   bool
	HasSpectra             bool
	TotalScore             float64

	IsPrecursorMatch bool
	IsRetentionMatch bool
	IsSpectrumMatch  bool
}

// IsReferenceMatched reports the highest confidence tier: both the precursor
// and the spectrum matched.
func (m MatchResult) IsReferenceMatched() bool {
	return m.IsPrecursorMatch && m.IsSpectrumMatch
}
