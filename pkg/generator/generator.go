// Package generator builds synthetic reference records for peptides from
// their theoretical b/y fragment ladders.
package generator

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/ChrisMcGann/spotkey/pkg/core"
	"github.com/ChrisMcGann/spotkey/pkg/filter"
)

// Relative intensities of generated fragments.
const (
	yIonIntensity = 100.0
	bIonIntensity = 50.0
)

// Peptide is one generator input.
type Peptide struct {
	Sequence      string
	Mods          string   // "Name@pos;mass@pos", see core.ModDatabase.ParseModString
	RetentionTime *float64 // minutes
}

// Config controls record generation.
type Config struct {
	Charges           []int         `yaml:"charges" validate:"dive,min=1"`        // precursor charges; empty means 2
	MaxFragmentCharge int           `yaml:"max_fragment_charge" validate:"gte=0"` // 0 means 1
	Filter            filter.Config `yaml:"filter"`
}

// DefaultConfig returns the generator defaults.
func DefaultConfig() Config {
	return Config{Charges: []int{2}, MaxFragmentCharge: 1}
}

// Generate returns one record per peptide and precursor charge.
func Generate(peptides []Peptide, db *core.ModDatabase, cfg Config) ([]core.ReferenceRecord, error) {
	charges := cfg.Charges
	if len(charges) == 0 {
		charges = []int{2}
	}
	if db == nil {
		db = core.DefaultModDatabase()
	}

	var records []core.ReferenceRecord
	for i, pep := range peptides {
		seq := strings.ToUpper(strings.TrimSpace(pep.Sequence))
		if err := checkSequence(seq); err != nil {
			return nil, fmt.Errorf("peptide %d: %w", i+1, err)
		}
		mods, err := db.ParseModString(pep.Mods, seq)
		if err != nil {
			return nil, fmt.Errorf("peptide %d (%s): %w", i+1, seq, err)
		}

		spec := fragmentSpectrum(seq, mods, cfg.MaxFragmentCharge)
		cfg.Filter.Apply(spec)

		for _, z := range charges {
			if z < 1 {
				return nil, fmt.Errorf("peptide %d (%s): invalid charge %d", i+1, seq, z)
			}
			rec := core.ReferenceRecord{
				Name:          fmt.Sprintf("%s/%d", seq, z),
				PrecursorMZ:   core.CalculatePeptideMass(seq, z, mods),
				Polarity:      core.PolarityPositive,
				AdductType:    protonated(z),
				RetentionTime: pep.RetentionTime,
				Spectrum:      *spec.Clone(),
				Ontology:      "Peptide",
				Comment:       modComment(pep.Mods),
			}
			records = append(records, rec)
		}
	}
	return records, nil
}

func checkSequence(seq string) error {
	if len(seq) < 2 {
		return fmt.Errorf("sequence %q too short", seq)
	}
	for _, aa := range seq {
		if _, ok := core.ResidueMass(aa); !ok {
			return fmt.Errorf("sequence %q: unknown residue %q", seq, aa)
		}
	}
	return nil
}

func fragmentSpectrum(seq string, mods []core.Modification, maxCharge int) *core.Spectrum {
	ions := core.FragmentIons(seq, mods, maxCharge)
	spec := &core.Spectrum{Peaks: make([]core.Peak, 0, len(ions))}
	for _, ion := range ions {
		intensity := yIonIntensity
		if ion.Type == 'b' {
			intensity = bIonIntensity
		}
		spec.Peaks = append(spec.Peaks, core.Peak{
			MZ:         ion.MZ,
			Intensity:  intensity,
			Annotation: ionAnnotation(ion),
			Charge:     ion.Charge,
		})
	}
	return spec
}

// ionAnnotation formats an ion as "y3" or "b2^2".
func ionAnnotation(ion core.FragmentIon) string {
	s := string(ion.Type) + strconv.Itoa(ion.Position)
	if ion.Charge > 1 {
		s += "^" + strconv.Itoa(ion.Charge)
	}
	return s
}

func protonated(z int) string {
	if z == 1 {
		return "[M+H]+"
	}
	return fmt.Sprintf("[M+%dH]%d+", z, z)
}

func modComment(mods string) string {
	if mods == "" {
		return ""
	}
	return "Mods=" + mods
}

// ReadPeptides parses a peptide list: one peptide per line as
// "SEQUENCE[<TAB>MODS[<TAB>RT]]". Blank lines and lines starting with '#'
// are ignored.
func ReadPeptides(r io.Reader) ([]Peptide, error) {
	var peptides []Peptide
	scanner := bufio.NewScanner(r)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		fields := strings.Split(line, "\t")
		pep := Peptide{Sequence: strings.TrimSpace(fields[0])}
		if len(fields) > 1 {
			pep.Mods = strings.TrimSpace(fields[1])
		}
		if len(fields) > 2 && strings.TrimSpace(fields[2]) != "" {
			rt, err := strconv.ParseFloat(strings.TrimSpace(fields[2]), 64)
			if err != nil {
				return nil, fmt.Errorf("line %d: invalid retention time: %w", lineNum, err)
			}
			pep.RetentionTime = &rt
		}
		peptides = append(peptides, pep)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading peptides: %w", err)
	}
	return peptides, nil
}
