package peaktable

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ChrisMcGann/spotkey/pkg/core"
)

const table = "PeakID\tMZ\tRT\tMobility\tIsotopeWeight\tPolarity\tIsotopes\tSpectrum\n" +
	"0\t195.0877\t3.2\t\t0\t+\t0:100 1:10.5\t138.06:100 110.07:25\n" +
	"1\t196.0910\t3.2\t\t1\t+\t\t\n" +
	"2\t301.1\t\t1.05\t0\tnegative\t\t120.1:5\n"

func TestRead(t *testing.T) {
	features, spectra, err := Read(strings.NewReader(table), "sample1.tsv")
	require.NoError(t, err)
	require.Len(t, features, 3)
	require.Len(t, spectra, 3)

	f := features[0]
	require.Equal(t, "sample1.tsv", f.FileName)
	require.InDelta(t, 195.0877, f.PrecursorMZ, 1e-9)
	require.InDelta(t, 3.2, f.RetentionTime, 1e-9)
	require.Equal(t, core.PolarityPositive, f.Polarity)
	require.Equal(t, []core.IsotopePeak{{Offset: 0, Abundance: 100}, {Offset: 1, Abundance: 10.5}}, f.Isotopes)
	require.Same(t, spectra[0], f.Spectrum)
	require.Len(t, spectra[0].Peaks, 2)
	require.InDelta(t, 110.07, spectra[0].Peaks[0].MZ, 1e-9, "peaks sorted")

	require.False(t, features[1].IsMonoisotopic())
	require.Nil(t, spectra[1])

	n := features[2]
	require.Equal(t, 2, n.ID)
	require.Zero(t, n.RetentionTime)
	require.InDelta(t, 1.05, n.Mobility, 1e-9)
	require.Equal(t, core.PolarityNegative, n.Polarity)
}

func TestReadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run7.tsv")
	require.NoError(t, os.WriteFile(path, []byte(table), 0o644))

	features, _, err := ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, "run7.tsv", features[0].FileName)

	_, _, err = ReadFile(filepath.Join(t.TempDir(), "missing.tsv"))
	require.Error(t, err)
}

func TestReadErrors(t *testing.T) {
	header := "PeakID\tMZ\tIsotopes\tSpectrum\n"
	tests := []struct {
		name string
		row  string
	}{
		{"bad id", "x\t100\t\t\n"},
		{"missing mz", "1\t\t\t\n"},
		{"bad isotope", "1\t100\t0-100\t\n"},
		{"bad peak", "1\t100\t\t100;5\n"},
		{"bad intensity", "1\t100\t\t100:high\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := Read(strings.NewReader(header+tt.row), "f")
			require.Error(t, err)
		})
	}
}
