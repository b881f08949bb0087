// Package spottable reads provisional alignment spots exported by the
// cross-file grouping stage.
//
// The table is tab-separated. SpotID, MZ and RT are required; IsotopeWeight,
// Polarity, Name, InChIKey, Formula, Adduct, Confidence, Source and
// TotalScore are optional. Every other column is a sample and holds that
// file's intensity; empty cells and "NA" are read as NaN so the spot is left
// out of correlation linking.
package spottable

import (
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/ChrisMcGann/spotkey/pkg/core"
	"github.com/ChrisMcGann/spotkey/pkg/reader/tsv"
)

// Column names.
const (
	ColSpotID        = "SpotID"
	ColMZ            = "MZ"
	ColRT            = "RT"
	ColIsotopeWeight = "IsotopeWeight"
	ColPolarity      = "Polarity"
	ColName          = "Name"
	ColInChIKey      = "InChIKey"
	ColFormula       = "Formula"
	ColAdduct        = "Adduct"
	ColConfidence    = "Confidence"
	ColSource        = "Source"
	ColTotalScore    = "TotalScore"
)

var fixedColumns = []string{
	ColSpotID, ColMZ, ColRT, ColIsotopeWeight, ColPolarity, ColName,
	ColInChIKey, ColFormula, ColAdduct, ColConfidence, ColSource, ColTotalScore,
}

// Table is the parsed content of a spot table.
type Table struct {
	Samples []string
	Spots   []*core.AlignmentSpot
}

// Read parses a spot table.
func Read(in io.Reader) (*Table, error) {
	t, err := tsv.NewReader(in, ColSpotID, ColMZ, ColRT)
	if err != nil {
		return nil, fmt.Errorf("spot table: %w", err)
	}

	table := &Table{}
	var sampleCols []int
	for i, name := range t.Header() {
		if !isFixed(name) {
			table.Samples = append(table.Samples, name)
			sampleCols = append(sampleCols, i)
		}
	}

	for t.Next() {
		s, err := parseRow(t, sampleCols)
		if err != nil {
			return nil, err
		}
		table.Spots = append(table.Spots, s)
	}
	if err := t.Err(); err != nil {
		return nil, err
	}
	return table, nil
}

// ReadFile reads a spot table from disk.
func ReadFile(path string) (*Table, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open spot table: %w", err)
	}
	defer file.Close()

	table, err := Read(file)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return table, nil
}

func isFixed(name string) bool {
	for _, c := range fixedColumns {
		if strings.EqualFold(c, name) {
			return true
		}
	}
	return false
}

func parseRow(t *tsv.Reader, sampleCols []int) (*core.AlignmentSpot, error) {
	id, err := t.Int(ColSpotID)
	if err != nil {
		return nil, err
	}
	mz, ok, err := t.Float(ColMZ)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("line %d: missing %s", t.Line(), ColMZ)
	}
	rt, _, err := t.Float(ColRT)
	if err != nil {
		return nil, err
	}

	s := core.NewSpot(id, mz, rt)
	s.Polarity = core.ParsePolarity(t.String(ColPolarity))
	if s.IsotopeWeight, err = t.Int(ColIsotopeWeight); err != nil {
		return nil, err
	}

	if err := parseAnnotation(t, s); err != nil {
		return nil, err
	}

	fields := t.Fields()
	s.Intensities = make([]float64, len(sampleCols))
	for k, col := range sampleCols {
		v := math.NaN()
		if col < len(fields) {
			raw := strings.TrimSpace(fields[col])
			if raw != "" && !strings.EqualFold(raw, "NA") {
				if v, err = strconv.ParseFloat(raw, 64); err != nil {
					return nil, fmt.Errorf("line %d: invalid intensity '%s': %w", t.Line(), raw, err)
				}
			}
		}
		s.Intensities[k] = v
	}
	return s, nil
}

func parseAnnotation(t *tsv.Reader, s *core.AlignmentSpot) error {
	name := t.String(ColName)
	if name == "" {
		return nil
	}
	conf, err := core.ParseConfidence(t.String(ColConfidence))
	if err != nil {
		return fmt.Errorf("line %d: %w", t.Line(), err)
	}
	src, err := core.ParseSource(t.String(ColSource))
	if err != nil {
		return fmt.Errorf("line %d: %w", t.Line(), err)
	}
	score, _, err := t.Float(ColTotalScore)
	if err != nil {
		return err
	}
	if conf == core.ConfidenceUnknown {
		return nil
	}

	s.Confidence = conf
	s.Reference = &core.Annotation{
		Source:      src,
		RecordIndex: -1,
		Name:        name,
		Formula:     t.String(ColFormula),
		InChIKey:    t.String(ColInChIKey),
		AdductType:  t.String(ColAdduct),
		TotalScore:  score,
	}
	return nil
}
