package sqlite

import (
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ChrisMcGann/spotkey/pkg/core"
)

func count(t *testing.T, path, query string, args ...interface{}) int {
	t.Helper()
	db, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	defer db.Close()
	var n int
	require.NoError(t, db.QueryRow(query, args...).Scan(&n))
	return n
}

func TestLibraryWriterTables(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lib.db")
	opts := DefaultOptions()
	opts.Description = "test library"
	w, err := NewWriter(path, opts)
	require.NoError(t, err)

	rec := &core.ReferenceRecord{
		Name:        "Glucose",
		PrecursorMZ: 203.0526,
		AdductType:  "[M+Na]+",
		Spectrum:    core.Spectrum{Peaks: []core.Peak{{MZ: 185.04, Intensity: 10}, {MZ: 143.03, Intensity: 5}}},
	}
	require.NoError(t, w.WriteRecord(rec))
	require.True(t, rec.Spectrum.ArePeaksSorted())
	require.NoError(t, w.Finalize())

	require.Equal(t, 1, count(t, path, `SELECT COUNT(*) FROM CompoundTable`))
	require.Equal(t, 1, count(t, path, `SELECT COUNT(*) FROM SpectrumTable WHERE NeutralMass IS NOT NULL`))
	require.Equal(t, 1, count(t, path, `SELECT COUNT(*) FROM HeaderTable WHERE Description = ?`, "test library"))
	require.Equal(t, 1, count(t, path, `SELECT NoofCompoundsModified FROM MaintenanceTable`))
	require.Equal(t, 16, count(t, path, `SELECT length(blobMass) FROM SpectrumTable`))
}

func TestIsotopeTag(t *testing.T) {
	require.Equal(t, "", isotopeTag(nil))
	require.Equal(t, "isotopes:0=100,1=20.5", isotopeTag([]core.IsotopePeak{{Offset: 0, Abundance: 100}, {Offset: 1, Abundance: 20.5}}))
}

func annotatedFeature() *core.PeakFeature {
	hit := core.MatchResult{LibraryKey: "msp", RecordIndex: 4, Source: core.SourceCurated, DotProduct: 0.9, TotalScore: 0.8, MatchedPeaksCount: 3}
	other := core.MatchResult{LibraryKey: "msp", RecordIndex: 5, Source: core.SourceCurated, DotProduct: 0.2}
	return &core.PeakFeature{
		ID:          7,
		FileName:    "a.tsv",
		PrecursorMZ: 195.0877,
		Polarity:    core.PolarityPositive,
		Matches:     []core.MatchResult{other, hit},
		Confidence:  core.ConfidenceConfirmed,
		Reference:   &core.Annotation{Source: core.SourceCurated, LibraryKey: "msp", RecordIndex: 4, Name: "Caffeine", TotalScore: 0.8},
	}
}

func TestWriteFeatures(t *testing.T) {
	path := filepath.Join(t.TempDir(), "results.db")
	w, err := NewResultWriter(path, RunAnnotation, "")
	require.NoError(t, err)
	require.NotEmpty(t, w.RunID())

	features := []*core.PeakFeature{annotatedFeature(), nil, {ID: 8, FileName: "a.tsv", PrecursorMZ: 300}}
	require.NoError(t, w.WriteFeatures(features))
	require.NoError(t, w.Close())

	require.Equal(t, 2, count(t, path, `SELECT COUNT(*) FROM FeatureTable WHERE RunId = ?`, w.RunID()))
	require.Equal(t, 3, count(t, path, `SELECT MatchedPeaks FROM FeatureTable WHERE PeakId = 7`))
	require.Equal(t, 2, count(t, path, `SELECT Candidates FROM FeatureTable WHERE PeakId = 7`))
	require.Equal(t, 1, count(t, path, `SELECT COUNT(*) FROM FeatureTable WHERE PeakId = 8 AND Confidence = 'unknown' AND RecordIndex = -1`))
	require.Equal(t, 1, count(t, path, `SELECT COUNT(*) FROM RunTable WHERE Kind = ?`, RunAnnotation))
}

func TestMatchFor(t *testing.T) {
	m, ok := matchFor(annotatedFeature())
	require.True(t, ok)
	require.Equal(t, 4, m.RecordIndex)

	_, ok = matchFor(&core.PeakFeature{})
	require.False(t, ok)
}

func linkedSpot(t *testing.T, id, global int) *core.AlignmentSpot {
	t.Helper()
	s := core.NewSpot(id, 100+float64(global), 1)
	s.GlobalID = global
	s.GroupID = 0
	s.Intensities = []float64{1, 2, 3}
	for _, st := range []core.SpotState{core.SpotAccepted, core.SpotIdentified, core.SpotLinked} {
		require.NoError(t, s.Advance(st))
	}
	return s
}

func TestWriteSpotsExports(t *testing.T) {
	path := filepath.Join(t.TempDir(), "alignment.db")
	w, err := NewResultWriter(path, RunAlignment, "two spots")
	require.NoError(t, err)
	defer w.Close()

	a, b := linkedSpot(t, 10, 0), linkedSpot(t, 11, 1)
	a.MergedIDs = []int{12, 13}
	a.AddLink(core.LinkCorrelated, 1)
	b.AddLink(core.LinkCorrelated, 0)
	b.RepresentativeID = 0

	require.NoError(t, w.WriteSpots([]*core.AlignmentSpot{a, b}))
	require.Equal(t, core.SpotExported, a.State)
	require.Equal(t, core.SpotExported, b.State)

	require.Equal(t, 2, count(t, path, `SELECT COUNT(*) FROM AlignmentSpotTable`))
	require.Equal(t, 2, count(t, path, `SELECT COUNT(*) FROM AlignmentLinkTable WHERE Kind = ?`, core.LinkCorrelated.String()))
	require.Equal(t, 1, count(t, path, `SELECT COUNT(*) FROM AlignmentSpotTable WHERE MergedIds = '12,13'`))
	require.Equal(t, 24, count(t, path, `SELECT length(blobIntensity) FROM AlignmentSpotTable WHERE GlobalId = 0`))

	err = w.WriteSpots([]*core.AlignmentSpot{a})
	require.ErrorIs(t, err, core.ErrStateTransition)
	require.Equal(t, 2, count(t, path, `SELECT COUNT(*) FROM AlignmentSpotTable`))
}

func TestWriteSpotsRejectsUnlinked(t *testing.T) {
	w, err := NewResultWriter(filepath.Join(t.TempDir(), "a.db"), RunAlignment, "")
	require.NoError(t, err)
	defer w.Close()

	s := core.NewSpot(1, 100, 1)
	require.ErrorIs(t, w.WriteSpots([]*core.AlignmentSpot{s}), core.ErrStateTransition)
	require.Equal(t, core.SpotProvisional, s.State)
}
