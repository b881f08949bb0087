package textdb

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ChrisMcGann/spotkey/pkg/core"
)

func TestReadAll(t *testing.T) {
	in := strings.Join([]string{
		"Name\tMZ\tRT\tAdduct\tFormula\tInChIKey\tSMILES\tOntology",
		"Glucose\t203.0526\t1.2\t[M+Na]+\tC6H12O6\tWQZGKKKJIJFFOK-GASJEMHNSA-N\tOC1OC(CO)C(O)C(O)C1O\tHexoses",
		"Citrate\t191.0197\t\t[M-H]-\t\t\t\t",
		"Mystery\t150.1",
	}, "\n")

	records, err := ReadAll(strings.NewReader(in))
	require.NoError(t, err)
	require.Len(t, records, 3)

	g := records[0]
	require.Equal(t, "Glucose", g.Name)
	require.InDelta(t, 203.0526, g.PrecursorMZ, 1e-9)
	require.InDelta(t, 1.2, *g.RetentionTime, 1e-9)
	require.Equal(t, core.PolarityPositive, g.Polarity)
	require.Equal(t, "Hexoses", g.Ontology)
	require.False(t, g.HasSpectrum())

	c := records[1]
	require.Nil(t, c.RetentionTime)
	require.Equal(t, core.PolarityNegative, c.Polarity)

	m := records[2]
	require.Equal(t, "[M+H]+", m.AdductType)
	require.Equal(t, core.PolarityPositive, m.Polarity)
}

func TestReadErrors(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"missing mz column", "Name\tRT\nx\t1\n"},
		{"empty mz", "Name\tMZ\nx\t\n"},
		{"bad mz", "Name\tMZ\nx\tabc\n"},
		{"bad rt", "Name\tMZ\tRT\nx\t100\tlate\n"},
		{"empty name", "Name\tMZ\n\t100\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReadAll(strings.NewReader(tt.input))
			require.Error(t, err)
		})
	}
}
