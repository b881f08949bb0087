package sqlite

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ChrisMcGann/spotkey/pkg/core"
	libwriter "github.com/ChrisMcGann/spotkey/pkg/writer/sqlite"
)

func TestRoundTrip(t *testing.T) {
	rt := 3.21
	ce := 35.0
	records := []core.ReferenceRecord{
		{
			Name:            "Caffeine",
			PrecursorMZ:     195.0877,
			Polarity:        core.PolarityPositive,
			AdductType:      "[M+H]+",
			RetentionTime:   &rt,
			CollisionEnergy: &ce,
			Formula:         "C8H10N4O2",
			InChIKey:        "RYYVLZVUVIJVGH-UHFFFAOYSA-N",
			SMILES:          "CN1C=NC2=C1C(=O)N(C(=O)N2C)C",
			Ontology:        "Xanthines",
			Comment:         "curated",
			Spectrum: core.Spectrum{Peaks: []core.Peak{
				{MZ: 138.0662, Intensity: 100},
				{MZ: 110.0713, Intensity: 25},
			}},
			Isotopes: []core.IsotopePeak{{Offset: 0, Abundance: 100}, {Offset: 1, Abundance: 9.5}},
		},
		{
			Name:        "Citrate",
			PrecursorMZ: 191.0197,
			Polarity:    core.PolarityNegative,
			AdductType:  "[M-H]-",
		},
	}

	path := filepath.Join(t.TempDir(), "lib.db")
	w, err := libwriter.NewWriter(path, libwriter.DefaultOptions())
	require.NoError(t, err)
	for i := range records {
		require.NoError(t, w.WriteRecord(&records[i]))
	}
	require.Equal(t, 2, w.Written())
	require.NoError(t, w.Finalize())
	require.NoError(t, w.Close(), "second close is a no-op")

	got, err := Load(path)
	require.NoError(t, err)
	require.Len(t, got, 2)

	c := got[0]
	require.Equal(t, "Citrate", c.Name, "ordered by precursor mass")
	require.Equal(t, core.PolarityNegative, c.Polarity)
	require.Nil(t, c.RetentionTime)
	require.Empty(t, c.Spectrum.Peaks)
	require.Empty(t, c.Isotopes)

	f := got[1]
	require.Equal(t, "Caffeine", f.Name)
	require.Equal(t, "[M+H]+", f.AdductType)
	require.Equal(t, core.PolarityPositive, f.Polarity)
	require.InDelta(t, rt, *f.RetentionTime, 1e-12)
	require.InDelta(t, ce, *f.CollisionEnergy, 1e-12)
	require.Equal(t, "Xanthines", f.Ontology)
	require.Equal(t, "curated", f.Comment)
	require.Equal(t, records[0].Isotopes, f.Isotopes)
	require.Equal(t, []core.Peak{
		{MZ: 110.0713, Intensity: 25},
		{MZ: 138.0662, Intensity: 100},
	}, f.Spectrum.Peaks)
}

func TestAppendKeepsIDsUnique(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lib.db")
	for i := 0; i < 2; i++ {
		w, err := libwriter.NewWriter(path, libwriter.DefaultOptions())
		require.NoError(t, err)
		require.NoError(t, w.WriteRecord(&core.ReferenceRecord{Name: "x", PrecursorMZ: 100 + float64(i)}))
		require.NoError(t, w.Close())
	}
	got, err := Load(path)
	require.NoError(t, err)
	require.Len(t, got, 2)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.db"))
	require.Error(t, err)
}

func TestDecodeFloat64s(t *testing.T) {
	vals, err := DecodeFloat64s(libwriter.EncodeFloat64s([]float64{1.5, -2, 1e-9}))
	require.NoError(t, err)
	require.Equal(t, []float64{1.5, -2, 1e-9}, vals)

	_, err = DecodeFloat64s(make([]byte, 7))
	require.Error(t, err)
}

func TestParseIsotopeTag(t *testing.T) {
	iso, err := parseIsotopeTag("isotopes:0=100,2=4.5")
	require.NoError(t, err)
	require.Equal(t, []core.IsotopePeak{{Offset: 0, Abundance: 100}, {Offset: 2, Abundance: 4.5}}, iso)

	iso, err = parseIsotopeTag("mods:none")
	require.NoError(t, err)
	require.Nil(t, iso)

	_, err = parseIsotopeTag("isotopes:0-100")
	require.Error(t, err)
}
