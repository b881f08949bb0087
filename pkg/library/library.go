// Package library holds reference spectral libraries sorted by precursor mass
// and answers tolerance-window queries against them.
package library

import (
	"errors"
	"fmt"
	"sort"

	"github.com/ChrisMcGann/spotkey/pkg/core"
)

// ErrUnsorted is returned when a library is built from, or queried over,
// records that are not sorted ascending by precursor mass.
var ErrUnsorted = errors.New("library is not sorted by precursor mass")

// Library is an immutable, mass-sorted collection of reference records. It is
// safe for concurrent reads once constructed.
type Library struct {
	name    string
	records []core.ReferenceRecord
	sorted  bool
}

// New copies records, deduplicates their reference peaks and sorts them by
// precursor mass. Records of equal mass keep their input order.
func New(name string, records []core.ReferenceRecord) *Library {
	lib := &Library{name: name, records: prepare(records)}
	sort.SliceStable(lib.records, func(i, j int) bool {
		return lib.records[i].PrecursorMZ < lib.records[j].PrecursorMZ
	})
	lib.sorted = true
	return lib
}

// FromSorted builds a library from records already sorted by precursor mass
// and rejects unsorted input.
func FromSorted(name string, records []core.ReferenceRecord) (*Library, error) {
	for i := 1; i < len(records); i++ {
		if records[i].PrecursorMZ < records[i-1].PrecursorMZ {
			return nil, fmt.Errorf("%w: record %d (%.5f) follows %.5f", ErrUnsorted, i, records[i].PrecursorMZ, records[i-1].PrecursorMZ)
		}
	}
	return &Library{name: name, records: prepare(records), sorted: true}, nil
}

func prepare(records []core.ReferenceRecord) []core.ReferenceRecord {
	out := make([]core.ReferenceRecord, len(records))
	for i, r := range records {
		spec := r.Spectrum.Clone()
		spec.DedupePeaks(core.PeakMergeEpsilon)
		r.Spectrum = *spec
		r.Isotopes = append([]core.IsotopePeak(nil), r.Isotopes...)
		out[i] = r
	}
	return out
}

// Name returns the library name.
func (l *Library) Name() string {
	return l.name
}

// Len returns the number of records.
func (l *Library) Len() int {
	return len(l.records)
}

// Record returns the record at index i. The pointer must be treated as read-only.
func (l *Library) Record(i int) (*core.ReferenceRecord, bool) {
	if i < 0 || i >= len(l.records) {
		return nil, false
	}
	return &l.records[i], true
}

// Validate reports whether the library can be searched.
func (l *Library) Validate() error {
	if l == nil {
		return errors.New("library is nil")
	}
	if !l.sorted {
		return ErrUnsorted
	}
	return nil
}

// MassRange returns the lowest and highest precursor masses.
func (l *Library) MassRange() (float64, float64) {
	if len(l.records) == 0 {
		return 0, 0
	}
	return l.records[0].PrecursorMZ, l.records[len(l.records)-1].PrecursorMZ
}

// FindCandidates returns, in mass order, the indices of all records with
// |PrecursorMZ - mass| <= tol.
func (l *Library) FindCandidates(mass, tol float64) ([]int, error) {
	if err := l.Validate(); err != nil {
		return nil, err
	}
	if tol < 0 {
		return nil, nil
	}

	lo := sort.Search(len(l.records), func(i int) bool { return mass-l.records[i].PrecursorMZ <= tol })
	hi := sort.Search(len(l.records), func(i int) bool { return l.records[i].PrecursorMZ-mass > tol })
	if lo >= hi {
		return nil, nil
	}

	out := make([]int, 0, hi-lo)
	for i := lo; i < hi; i++ {
		out = append(out, i)
	}
	return out, nil
}

// FindWithin is FindCandidates with a mass-dependent tolerance window.
func (l *Library) FindWithin(mass float64, tol core.Tolerance) ([]int, error) {
	return l.FindCandidates(mass, tol.Window(mass))
}
