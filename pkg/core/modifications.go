package core

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
)

// ModDatabase maps modification names to mass shifts. It is used by the
// peptide reference generator to resolve "Name@pos" modification strings.
type ModDatabase struct {
	mods map[string]float64
}

func NewModDatabase() *ModDatabase {
	return &ModDatabase{mods: make(map[string]float64)}
}

// LoadFromCSV adds the rows of a "mod,massshift[,aa]" table with a header.
// Existing names are overwritten.
func (db *ModDatabase) LoadFromCSV(r io.Reader) error {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	if _, err := cr.Read(); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return fmt.Errorf("reading modification header: %w", err)
	}
	for {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("reading modifications: %w", err)
		}
		line, _ := cr.FieldPos(0)
		if len(row) < 2 {
			return fmt.Errorf("line %d: expected mod,massshift", line)
		}
		name := strings.TrimSpace(row[0])
		shift, err := strconv.ParseFloat(strings.TrimSpace(row[1]), 64)
		if err != nil {
			return fmt.Errorf("line %d: mass shift of %q: %w", line, name, err)
		}
		db.mods[name] = shift
	}
}

// GetMass returns the mass shift of a named modification.
func (db *ModDatabase) GetMass(name string) (float64, bool) {
	mass, ok := db.mods[name]
	return mass, ok
}

func (db *ModDatabase) Add(name string, mass float64) {
	db.mods[name] = mass
}

// Names returns the known modification names in sorted order.
func (db *ModDatabase) Names() []string {
	names := make([]string, 0, len(db.mods))
	for name := range db.mods {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ParseModString resolves "57.021464@2;15.994915@8" or "Carbamidomethyl@C2;Oxidation@M8".
// Positions are 1-based in the string and 0-based in the result; "-1" marks the N-terminus.
func (db *ModDatabase) ParseModString(modStr string, sequence string) ([]Modification, error) {
	var mods []Modification
	for _, entry := range strings.Split(modStr, ";") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		label, site, ok := strings.Cut(entry, "@")
		if !ok || strings.Contains(site, "@") {
			return nil, fmt.Errorf("modification %q: want name@position or mass@position", entry)
		}
		label = strings.TrimSpace(label)

		shift, err := strconv.ParseFloat(label, 64)
		if err != nil {
			known, found := db.GetMass(label)
			if !found {
				return nil, fmt.Errorf("modification %q: unknown name %q", entry, label)
			}
			shift = known
		}

		pos, err := sitePosition(site, len(sequence))
		if err != nil {
			return nil, fmt.Errorf("modification %q: %w", entry, err)
		}
		mods = append(mods, Modification{Mass: shift, Position: pos, Name: label})
	}
	return mods, nil
}

// sitePosition converts "2", "C2" or "R-1" to a 0-based residue index, -1
// for the N-terminus.
func sitePosition(site string, length int) (int, error) {
	site = strings.TrimSpace(site)
	if strings.HasSuffix(site, "-1") {
		return -1, nil
	}
	n, err := strconv.Atoi(strings.TrimLeft(site, "ACDEFGHIKLMNPQRSTVWY"))
	if err != nil {
		return 0, fmt.Errorf("position %q is not a number", site)
	}
	if n > length {
		return 0, fmt.Errorf("position %d beyond sequence length %d", n, length)
	}
	if n > 0 {
		n--
	}
	return n, nil
}

// commonMods are unimod monoisotopic mass shifts.
var commonMods = map[string]float64{
	"Acetyl":          42.010565,
	"Amidated":        -0.984016,
	"Carbamidomethyl": 57.021464,
	"Carbamyl":        43.005814,
	"Deamidated":      0.984016,
	"Dehydrated":      -18.010565,
	"Gln->pyro-Glu":   -17.026549,
	"Glu->pyro-Glu":   -18.010565,
	"Methyl":          14.01565,
	"Dimethyl":        28.0313,
	"Trimethyl":       42.04695,
	"Oxidation":       15.994915,
	"Phospho":         79.966331,
	"Sulfo":           79.956815,
	"Hex":             162.052824,
	"HexNAc":          203.079373,
	"Palmitoyl":       238.229666,
	"Myristoyl":       210.198366,
	"Propionyl":       56.026215,
	"TMT":             229.162932,
	"TMTPro":          304.207146,
	"iTRAQ4plex":      144.102063,
	"iTRAQ8plex":      304.205360,
}

// DefaultModDatabase holds the common modifications.
func DefaultModDatabase() *ModDatabase {
	db := &ModDatabase{mods: make(map[string]float64, len(commonMods))}
	for name, mass := range commonMods {
		db.mods[name] = mass
	}
	return db
}
