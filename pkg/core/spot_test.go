package core

import (
	"errors"
	"math"
	"testing"
)

func TestSpotAdvance(t *testing.T) {
	s := NewSpot(1, 300.1, 5.0)
	for _, next := range []SpotState{SpotAccepted, SpotIdentified, SpotLinked, SpotExported} {
		if err := s.Advance(next); err != nil {
			t.Fatalf("Advance(%s): %v", next, err)
		}
	}
	if err := s.Advance(SpotExported + 1); !errors.Is(err, ErrStateTransition) {
		t.Errorf("exported must be terminal, got %v", err)
	}

	skip := NewSpot(2, 100, 1)
	if err := skip.Advance(SpotIdentified); !errors.Is(err, ErrStateTransition) {
		t.Errorf("skipping a stage must fail, got %v", err)
	}
	if skip.State != SpotProvisional {
		t.Errorf("failed transition changed state to %s", skip.State)
	}
}

func TestSpotRecenter(t *testing.T) {
	s := NewSpot(1, 0, 0)
	s.Peaks = []AlignedPeak{
		{MZ: 300.0, RetentionTime: 5.0},
		{MZ: 300.2, RetentionTime: 5.2},
		{MZ: 999.0, RetentionTime: 9.0, GapFilled: true},
	}
	s.Recenter()
	if math.Abs(s.MZ-300.1) > 1e-9 || math.Abs(s.RetentionTime-5.1) > 1e-9 {
		t.Errorf("centroid = (%.4f, %.4f), want (300.1, 5.1)", s.MZ, s.RetentionTime)
	}

	empty := NewSpot(2, 150, 3)
	empty.Recenter()
	if empty.MZ != 150 || empty.RetentionTime != 3 {
		t.Error("spot without detected peaks must keep its coordinates")
	}
}

func TestSpotInheritAnnotation(t *testing.T) {
	s := NewSpot(1, 195.0877, 2.1)
	s.Peaks = []AlignedPeak{
		{Confidence: ConfidenceSuggested, Reference: &Annotation{Name: "a", TotalScore: 0.99}},
		{Confidence: ConfidenceConfirmed, Reference: &Annotation{Name: "b", TotalScore: 0.80}},
		{Confidence: ConfidenceConfirmed, Reference: &Annotation{Name: "c", TotalScore: 0.80}},
		{Confidence: ConfidenceUnknown},
	}
	s.InheritAnnotation()
	if s.Reference == nil || s.Reference.Name != "b" || s.Confidence != ConfidenceConfirmed {
		t.Fatalf("inherited %+v (%s), want b confirmed", s.Reference, s.Confidence)
	}

	s.Peaks[1].Reference.Name = "mutated"
	if s.Reference.Name != "b" {
		t.Error("inherited annotation must be a copy")
	}
}

func TestSpotLinks(t *testing.T) {
	s := NewSpot(1, 100, 1)
	if !s.AddLink(LinkCorrelated, 7) || s.AddLink(LinkCorrelated, 7) {
		t.Fatal("duplicate link must be rejected")
	}
	s.AddLink(LinkIsotope, 3)
	s.AddLink(LinkAdduct, 7)
	s.SortLinks()
	want := []Link{{LinkIsotope, 3}, {LinkCorrelated, 7}, {LinkAdduct, 7}}
	for i, l := range want {
		if s.Links[i] != l {
			t.Errorf("link %d = %+v, want %+v", i, s.Links[i], l)
		}
	}
}

func TestHasValidIntensities(t *testing.T) {
	s := NewSpot(1, 100, 1)
	s.Intensities = []float64{1, 2, 3}
	if !s.HasValidIntensities(3) {
		t.Error("expected valid vector")
	}
	if s.HasValidIntensities(4) {
		t.Error("length mismatch must be invalid")
	}
	s.Intensities[1] = math.NaN()
	if s.HasValidIntensities(3) {
		t.Error("NaN must be invalid")
	}
}

func TestParseEnums(t *testing.T) {
	for _, src := range []Source{SourceCurated, SourceFreeText, SourceCustom} {
		got, err := ParseSource(src.String())
		if err != nil || got != src {
			t.Errorf("ParseSource(%q) = %v, %v", src.String(), got, err)
		}
	}
	if SourceCurated.Priority() >= SourceFreeText.Priority() || SourceFreeText.Priority() >= SourceCustom.Priority() {
		t.Error("source priority must be curated < textdb < custom")
	}
	for _, c := range []Confidence{ConfidenceUnknown, ConfidenceSuggested, ConfidenceConfirmed} {
		got, err := ParseConfidence(c.String())
		if err != nil || got != c {
			t.Errorf("ParseConfidence(%q) = %v, %v", c.String(), got, err)
		}
	}
	if ParsePolarity("Negative") != PolarityNegative || ParsePolarity("+") != PolarityPositive {
		t.Error("ParsePolarity")
	}
}

func TestMeanIntensity(t *testing.T) {
	s := NewSpot(1, 100, 1)
	if got := s.MeanIntensity(); got != 0 {
		t.Errorf("empty spot mean = %v, want 0", got)
	}
	s.Intensities = []float64{10, 20, 30, 40}
	if got := s.MeanIntensity(); got != 25 {
		t.Errorf("MeanIntensity() = %v, want 25", got)
	}
}
