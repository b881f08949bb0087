// Package sqlite loads reference records back from SQLite libraries written
// by spotkey or mzVault.
package sqlite

import (
	"database/sql"
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"

	_ "github.com/mattn/go-sqlite3"

	"github.com/ChrisMcGann/spotkey/pkg/core"
	libwriter "github.com/ChrisMcGann/spotkey/pkg/writer/sqlite"
)

const query = `
	SELECT c.Name, c.Formula, c.Synonyms, c.Tag, c.CompoundClass, c.SmilesDescription, c.InChiKey,
	       s.RetentionTime, s.PrecursorMass, s.CollisionEnergy, s.Polarity, s.PrecursorIonType,
	       s.blobMass, s.blobIntensity
	FROM SpectrumTable s
	JOIN CompoundTable c ON c.CompoundId = s.CompoundId
	ORDER BY s.PrecursorMass, s.SpectrumId
`

// Load reads every spectrum of a library database, ordered by precursor mass.
func Load(path string) ([]core.ReferenceRecord, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("library database: %w", err)
	}
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	rows, err := db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to query spectra: %w", err)
	}
	defer rows.Close()

	var records []core.ReferenceRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read spectra: %w", err)
	}
	return records, nil
}

func scanRecord(rows *sql.Rows) (core.ReferenceRecord, error) {
	var (
		name, formula, comment, tag, class, smiles, inchikey sql.NullString
		polarity, adduct                                     sql.NullString
		rt, ce                                               sql.NullFloat64
		precursor                                            float64
		mzBlob, intBlob                                      []byte
	)
	if err := rows.Scan(&name, &formula, &comment, &tag, &class, &smiles, &inchikey,
		&rt, &precursor, &ce, &polarity, &adduct, &mzBlob, &intBlob); err != nil {
		return core.ReferenceRecord{}, fmt.Errorf("failed to scan spectrum: %w", err)
	}

	rec := core.ReferenceRecord{
		Name:        name.String,
		PrecursorMZ: precursor,
		Polarity:    core.ParsePolarity(polarity.String),
		AdductType:  adduct.String,
		Formula:     formula.String,
		InChIKey:    inchikey.String,
		SMILES:      smiles.String,
		Ontology:    class.String,
		Comment:     comment.String,
	}
	if rt.Valid {
		v := rt.Float64
		rec.RetentionTime = &v
	}
	if ce.Valid {
		v := ce.Float64
		rec.CollisionEnergy = &v
	}

	mzs, err := DecodeFloat64s(mzBlob)
	if err != nil {
		return rec, fmt.Errorf("spectrum %q: blobMass: %w", rec.Name, err)
	}
	ints, err := DecodeFloat64s(intBlob)
	if err != nil {
		return rec, fmt.Errorf("spectrum %q: blobIntensity: %w", rec.Name, err)
	}
	if len(mzs) != len(ints) {
		return rec, fmt.Errorf("spectrum %q: %d masses but %d intensities", rec.Name, len(mzs), len(ints))
	}
	for i := range mzs {
		rec.Spectrum.Peaks = append(rec.Spectrum.Peaks, core.Peak{MZ: mzs[i], Intensity: ints[i]})
	}

	if rec.Isotopes, err = parseIsotopeTag(tag.String); err != nil {
		return rec, fmt.Errorf("spectrum %q: %w", rec.Name, err)
	}
	return rec, nil
}

// DecodeFloat64s decodes a little-endian float64 blob.
func DecodeFloat64s(blob []byte) ([]float64, error) {
	if len(blob)%8 != 0 {
		return nil, fmt.Errorf("blob length %d is not a multiple of 8", len(blob))
	}
	out := make([]float64, len(blob)/8)
	for i := range out {
		out[i] = math.Float64frombits(binary.LittleEndian.Uint64(blob[i*8:]))
	}
	return out, nil
}

func parseIsotopeTag(tag string) ([]core.IsotopePeak, error) {
	body, ok := strings.CutPrefix(tag, libwriter.IsotopeTagPrefix)
	if !ok || body == "" {
		return nil, nil
	}
	var out []core.IsotopePeak
	for _, part := range strings.Split(body, ",") {
		offStr, abStr, ok := strings.Cut(part, "=")
		if !ok {
			return nil, fmt.Errorf("invalid isotope tag entry '%s'", part)
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
