package core

import (
	"fmt"
	"math"
	"strings"
)

// Source identifies which kind of reference produced a match. It is a closed
// set; every switch over Source handles all three kinds.
type Source int

const (
	SourceCurated  Source = iota + 1 // curated spectral database (MSP, SQLite)
	SourceFreeText                   // free-text database (name, m/z, RT only)
	SourceCustom                     // domain-specific generator
)

// Priority orders sources for annotation: lower runs first and wins.
func (s Source) Priority() int {
	switch s {
	case SourceCurated:
		return 0
	case SourceFreeText:
		return 1
	case SourceCustom:
		return 2
	}
	return math.MaxInt
}

func (s Source) String() string {
	switch s {
	case SourceCurated:
		return "curated"
	case SourceFreeText:
		return "textdb"
	case SourceCustom:
		return "custom"
	}
	return "none"
}

// ParseSource parses the String form of a Source. The empty string yields 0.
func ParseSource(s string) (Source, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "none":
		return 0, nil
	case "curated", "msp":
		return SourceCurated, nil
	case "textdb", "text":
		return SourceFreeText, nil
	case "custom":
		return SourceCustom, nil
	}
	return 0, fmt.Errorf("unknown source %q", s)
}

// Confidence is the annotation tier of a feature or spot.
type Confidence int

const (
	ConfidenceUnknown Confidence = iota
	ConfidenceSuggested
	ConfidenceConfirmed
)

func (c Confidence) String() string {
	switch c {
	case ConfidenceSuggested:
		return "suggested"
	case ConfidenceConfirmed:
		return "confirmed"
	}
	return "unknown"
}

// ParseConfidence parses the String form of a Confidence.
func ParseConfidence(s string) (Confidence, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "unknown":
		return ConfidenceUnknown, nil
	case "suggested":
		return ConfidenceSuggested, nil
	case "confirmed", "matched":
		return ConfidenceConfirmed, nil
	}
	return ConfidenceUnknown, fmt.Errorf("unknown confidence %q", s)
}

// Polarity is the ion mode of a measurement or reference record.
type Polarity int

const (
	PolarityUnknown Polarity = iota
	PolarityPositive
	PolarityNegative
)

func (p Polarity) String() string {
	switch p {
	case PolarityPositive:
		return "+"
	case PolarityNegative:
		return "-"
	}
	return ""
}

// ParsePolarity accepts "+", "-", "positive", "negative", "pos" and "neg".
func ParsePolarity(s string) Polarity {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "+", "positive", "pos", "p":
		return PolarityPositive
	case "-", "negative", "neg", "n":
		return PolarityNegative
	}
	return PolarityUnknown
}

// Compatible reports whether two polarities may be compared. Unknown matches
// either mode.
func (p Polarity) Compatible(other Polarity) bool {
	return p == PolarityUnknown || other == PolarityUnknown || p == other
}

// Tolerance is a mass tolerance. In ppm mode the window scales with mass. In
// absolute mode Value is used as is up to Threshold; above it the window grows
// proportionally, keeping the ppm value Value represents at Threshold.
type Tolerance struct {
	Value     float64 `yaml:"value" validate:"gte=0"`
	PPM       bool    `yaml:"ppm"`
	Threshold float64 `yaml:"threshold" validate:"gte=0"`
}

// DefaultPPMThreshold is the mass above which an absolute tolerance is scaled.
const DefaultPPMThreshold = 500.0

// Window returns the absolute half-width of the tolerance window at mass.
func (t Tolerance) Window(mass float64) float64 {
	if t.PPM {
		return math.Abs(mass) * t.Value * 1e-6
	}
	threshold := t.Threshold
	if threshold <= 0 {
		threshold = DefaultPPMThreshold
	}
	if mass > threshold {
		return t.Value * mass / threshold
	}
	return t.Value
}

// Within reports whether b lies inside the window around a.
func (t Tolerance) Within(a, b float64) bool {
	return math.Abs(a-b) <= t.Window(a)
}
