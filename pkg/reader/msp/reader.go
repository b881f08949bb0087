// Package msp provides a streaming reader for NIST-style MSP spectral libraries
package msp

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/ChrisMcGann/spotkey/pkg/core"
)

// Reader provides streaming access to MSP format files
type Reader struct {
	scanner       *bufio.Scanner
	lineNum       int
	currentRecord *core.ReferenceRecord
	err           error
}

// NewReader creates a new MSP reader
func NewReader(r io.Reader) *Reader {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	return &Reader{scanner: scanner}
}

// Next advances to the next record. Returns false when no more records or error.
func (r *Reader) Next() bool {
	r.currentRecord = nil

	rec, err := r.readRecord()
	if err != nil {
		if err != io.EOF {
			r.err = err
		}
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

// ReadAll reads every record of an MSP stream.
func ReadAll(in io.Reader) ([]core.ReferenceRecord, error) {
	r := NewReader(in)
	var records []core.ReferenceRecord
	for r.Next() {
		records = append(records, *r.Record())
	}
	return records, r.Err()
}

// readRecord reads a single entry. An entry ends after its declared number
// of peaks or at a blank line.
func (r *Reader) readRecord() (*core.ReferenceRecord, error) {
	rec := &core.ReferenceRecord{}
	started := false
	inPeaks := false
	numPeaks := 0

	for r.scanner.Scan() {
		r.lineNum++
		line := strings.TrimSpace(r.scanner.Text())

		if line == "" {
			if started {
				return r.finish(rec)
			}
			continue
		}
		if strings.HasPrefix(line, "#") && !started {
			continue
		}
		started = true

		if inPeaks {
			peaks, err := parsePeaks(line)
			if err != nil {
				return nil, fmt.Errorf("line %d: %w", r.lineNum, err)
			}
			rec.Spectrum.Peaks = append(rec.Spectrum.Peaks, peaks...)
			if len(rec.Spectrum.Peaks) >= numPeaks {
				return r.finish(rec)
			}
			continue
		}

		key, value, ok := strings.Cut(line, ":")
		if !ok {
			return nil, fmt.Errorf("line %d: expected 'KEY: value', got %q", r.lineNum, line)
		}
		value = strings.TrimSpace(value)

		switch strings.ToUpper(strings.TrimSpace(key)) {
		case "NAME":
			rec.Name = value
		case "PRECURSORMZ", "PRECURSOR_MZ":
			mz, err := strconv.ParseFloat(value, 64)
			if err != nil {
				return nil, fmt.Errorf("line %d: invalid precursor m/z: %w", r.lineNum, err)
			}
			rec.PrecursorMZ = mz
		case "PRECURSORTYPE", "PRECURSOR_TYPE", "ADDUCT":
			rec.AdductType = value
		case "IONMODE", "ION_MODE":
			rec.Polarity = core.ParsePolarity(value)
		case "FORMULA":
			rec.Formula = value
		case "SMILES":
			rec.SMILES = value
		case "INCHIKEY":
			rec.InChIKey = value
		case "ONTOLOGY", "COMPOUNDCLASS":
			rec.Ontology = value
		case "RETENTIONTIME", "RT":
			if rt, err := strconv.ParseFloat(value, 64); err == nil {
				rec.RetentionTime = &rt
			}
		case "COLLISIONENERGY":
			if ce, err := parseLeadingFloat(value); err == nil {
				rec.CollisionEnergy = &ce
			}
		case "COMMENT":
			rec.Comment = value
			parseComment(rec, value)
		case "NUM PEAKS":
			n, err := strconv.Atoi(value)
			if err != nil {
				return nil, fmt.Errorf("line %d: invalid num peaks: %w", r.lineNum, err)
			}
			numPeaks = n
			inPeaks = true
			if numPeaks == 0 {
				return r.finish(rec)
			}
		}
	}

	if err := r.scanner.Err(); err != nil {
		return nil, err
	}
	if started {
		return r.finish(rec)
	}
	return nil, io.EOF
}

func (r *Reader) finish(rec *core.ReferenceRecord) (*core.ReferenceRecord, error) {
	if rec.Name == "" {
		return nil, fmt.Errorf("line %d: record without NAME", r.lineNum)
	}
	if rec.Polarity == core.PolarityUnknown && rec.AdductType != "" {
		if a, ok := core.LookupAdduct(rec.AdductType); ok {
			rec.Polarity = a.Polarity()
		}
	}
	rec.Spectrum.SortPeaks()
	return rec, nil
}

// parseComment fills fields missing from the header from "key=value" pairs
// of the comment, as written by peptide library exporters.
func parseComment(rec *core.ReferenceRecord, comment string) {
	for _, field := range strings.Fields(comment) {
		key, value, ok := strings.Cut(field, "=")
		if !ok {
			continue
		}
		switch key {
		case "Parent":
			if mz, err := strconv.ParseFloat(value, 64); err == nil && rec.PrecursorMZ == 0 {
				rec.PrecursorMZ = mz
			}
		case "Collision_energy", "CollisionEnergy":
			if ce, err := strconv.ParseFloat(value, 64); err == nil && rec.CollisionEnergy == nil {
				rec.CollisionEnergy = &ce
			}
		case "iRT", "RetentionTime":
			if rt, err := strconv.ParseFloat(value, 64); err == nil && rec.RetentionTime == nil {
				rec.RetentionTime = &rt
			}
		}
	}
}

// parsePeaks parses "mz intensity [\"annotation\"]" or several "mz intensity"
// pairs separated by ';'.
func parsePeaks(line string) ([]core.Peak, error) {
	var peaks []core.Peak
	for _, part := range strings.Split(line, ";") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		fields := strings.Fields(strings.ReplaceAll(part, ":", " "))
		if len(fields) < 2 {
			return nil, fmt.Errorf("invalid peak format, expected at least 2 fields")
		}

		mz, err := strconv.ParseFloat(fields[0], 64)
		if err != nil {
			return nil, fmt.Errorf("invalid m/z value: %w", err)
		}
		intensity, err := strconv.ParseFloat(fields[1], 64)
		if err != nil {
			return nil, fmt.Errorf("invalid intensity value: %w", err)
		}

		peak := core.Peak{MZ: mz, Intensity: intensity}
		if len(fields) >= 3 {
			annotation := strings.Trim(fields[2], "\"")
			if idx := strings.Index(annotation, "/"); idx > 0 {
				annotation = annotation[:idx]
			}
			peak.Annotation = annotation
		}
		peaks = append(peaks, peak)
	}
	return peaks, nil
}

// parseLeadingFloat parses values such as "35", "35 eV" or "35eV".
func parseLeadingFloat(s string) (float64, error) {
	end := 0
	for end < len(s) && (s[end] == '.' || s[end] == '-' || s[end] == '+' || (s[end] >= '0' && s[end] <= '9')) {
		end++
	}
	return strconv.ParseFloat(s[:end], 64)
}
