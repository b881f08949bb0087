// Package textdb reads free-text compound databases: tab-separated tables of
// names, precursor masses and optional retention times, without spectra.
package textdb

import (
	"fmt"
	"io"

	"github.com/ChrisMcGann/spotkey/pkg/core"
	"github.com/ChrisMcGann/spotkey/pkg/reader/tsv"
)

// Column names. Name and MZ are required.
const (
	ColName     = "Name"
	ColMZ       = "MZ"
	ColRT       = "RT"
	ColAdduct   = "Adduct"
	ColFormula  = "Formula"
	ColInChIKey = "InChIKey"
	ColSMILES   = "SMILES"
	ColOntology = "Ontology"
)

// Reader provides streaming access to a free-text database
type Reader struct {
	table         *tsv.Reader
	currentRecord *core.ReferenceRecord
	err           error
}

// NewReader reads the header and returns a reader positioned before the
// first record.
func NewReader(r io.Reader) (*Reader, error) {
	table, err := tsv.NewReader(r, ColName, ColMZ)
	if err != nil {
		return nil, fmt.Errorf("text database: %w", err)
	}
	return &Reader{table: table}, nil
}

// Next advances to the next record. Returns false when no more records or error.
func (r *Reader) Next() bool {
	r.currentRecord = nil
	if r.err != nil || !r.table.Next() {
		if r.err == nil {
			r.err = r.table.Err()
		}
		return false
	}

	rec, err := r.parseRow()
	if err != nil {
		r.err = err
		return false
	}
	r.currentRecord = rec
	return true
}

// Record returns the current record
func (r *Reader) Record() *core.ReferenceRecord {
	return r.currentRecord
}

// Err returns any error encountered during reading
func (r *Reader) Err() error {
	return r.err
}

func (r *Reader) parseRow() (*core.ReferenceRecord, error) {
	t := r.table
	rec := &core.ReferenceRecord{
		Name:       t.String(ColName),
		AdductType: t.String(ColAdduct),
		Formula:    t.String(ColFormula),
		InChIKey:   t.String(ColInChIKey),
		SMILES:     t.String(ColSMILES),
		Ontology:   t.String(ColOntology),
	}
	if rec.Name == "" {
		return nil, fmt.Errorf("line %d: empty name", t.Line())
	}

	mz, ok, err := t.Float(ColMZ)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("line %d: missing %s for %q", t.Line(), ColMZ, rec.Name)
	}
	rec.PrecursorMZ = mz

	rt, ok, err := t.Float(ColRT)
	if err != nil {
		return nil, err
	}
	if ok && rt >= 0 {
		rec.RetentionTime = &rt
	}

	if rec.AdductType == "" {
		rec.AdductType = "[M+H]+"
	}
	if a, ok := core.LookupAdduct(rec.AdductType); ok {
		rec.Polarity = a.Polarity()
	}
	return rec, nil
}

// ReadAll reads every record of a free-text database.
func ReadAll(in io.Reader) ([]core.ReferenceRecord, error) {
	r, err := NewReader(in)
	if err != nil {
		return nil, err
	}
	var records []core.ReferenceRecord
	for r.Next() {
		records = append(records, *r.Record())
	}
	return records, r.Err()
}
