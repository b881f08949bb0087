package spottable

import (
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ChrisMcGann/spotkey/pkg/core"
)

func TestRead(t *testing.T) {
	in := strings.Join([]string{
		"SpotID\tMZ\tRT\tIsotopeWeight\tPolarity\tName\tAdduct\tConfidence\tSource\tTotalScore\tQC1\tQC2\tQC3",
		"1\t181.0707\t4.0\t0\t+\tGlucose\t[M+H]+\tconfirmed\tcurated\t0.91\t100\t200\t300",
		"2\t182.0741\t4.0\t1\t+\t\t\t\t\t\t10\tNA\t30",
		"3\t200.0\t5.5\t0\t+\tMaybe\t[M+H]+\tunknown\t\t\t1\t2",
	}, "\n")

	table, err := Read(strings.NewReader(in))
	require.NoError(t, err)
	require.Equal(t, []string{"QC1", "QC2", "QC3"}, table.Samples)
	require.Len(t, table.Spots, 3)

	s := table.Spots[0]
	require.Equal(t, 1, s.ID)
	require.Equal(t, core.NoID, s.GlobalID)
	require.Equal(t, core.SpotProvisional, s.State)
	require.True(t, s.IsIdentified())
	require.Equal(t, core.SourceCurated, s.Reference.Source)
	require.Equal(t, "[M+H]+", s.Reference.AdductType)
	require.InDelta(t, 0.91, s.Reference.TotalScore, 1e-9)
	require.Equal(t, []float64{100, 200, 300}, s.Intensities)
	require.True(t, s.HasValidIntensities(3))

	iso := table.Spots[1]
	require.True(t, iso.IsIsotope())
	require.Nil(t, iso.Reference)
	require.True(t, math.IsNaN(iso.Intensities[1]))
	require.False(t, iso.HasValidIntensities(3))

	u := table.Spots[2]
	require.Nil(t, u.Reference)
	require.Equal(t, core.ConfidenceUnknown, u.Confidence)
	require.True(t, math.IsNaN(u.Intensities[2]), "short row")
}

func TestReadErrors(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"missing rt column", "SpotID\tMZ\n1\t100\n"},
		{"bad intensity", "SpotID\tMZ\tRT\tS1\n1\t100\t1\tlots\n"},
		{"bad confidence", "SpotID\tMZ\tRT\tName\tConfidence\n1\t100\t1\tx\tsure\n"},
		{"bad source", "SpotID\tMZ\tRT\tName\tConfidence\tSource\n1\t100\t1\tx\tconfirmed\tweb\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Read(strings.NewReader(tt.input))
			require.Error(t, err)
		})
	}
}
