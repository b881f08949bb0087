package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ChrisMcGann/spotkey/pkg/alignment"
	"github.com/ChrisMcGann/spotkey/pkg/core"
	"github.com/ChrisMcGann/spotkey/pkg/reader/spottable"
	"github.com/ChrisMcGann/spotkey/pkg/writer/sqlite"
)

var (
	// Flags for align command
	spotFile string
	alignOut string
)

var alignCmd = &cobra.Command{
	Use:   "align",
	Short: "Refine provisional alignment spots",
	Long: `Refine the provisional alignment spots of a project: drop duplicates,
assign global identifiers by mass, link isotopes, adducts and co-varying
spots, and number the resulting putative compound groups.

Examples:
  spotkey align --in spots.tsv --out alignment.db
  spotkey align --in spots.tsv --out alignment.db --config params.yaml`,
	RunE: runAlign,
}

func init() {
	alignCmd.Flags().StringVarP(&spotFile, "in", "i", "", "Spot table (required)")
	alignCmd.Flags().StringVarP(&alignOut, "out", "o", "", "Output results database (required)")

	alignCmd.MarkFlagRequired("in")
	alignCmd.MarkFlagRequired("out")
}

func runAlign(cmd *cobra.Command, args []string) error {
	table, err := spottable.ReadFile(spotFile)
	if err != nil {
		return err
	}
	fmt.Printf("Loaded %d spots over %d samples from %s\n", len(table.Spots), len(table.Samples), spotFile)

	spots, err := alignment.NewRefiner(cfg.Alignment).Refine(table.Spots)
	if err != nil {
		return fmt.Errorf("refinement failed: %w", err)
	}

	writer, err := sqlite.NewResultWriter(alignOut, sqlite.RunAlignment, spotFile)
	if err != nil {
		return fmt.Errorf("failed to create output database: %w", err)
	}
	defer writer.Close()

	if err := writer.WriteSpots(spots); err != nil {
		return fmt.Errorf("failed to write spots: %w", err)
	}

	groups := make(map[int]bool)
	links, identified := 0, 0
	for _, s := range spots {
		groups[s.GroupID] = true
		links += len(s.Links)
		if s.Confidence == core.ConfidenceConfirmed {
			identified++
		}
	}

	fmt.Printf("\nAlignment complete!\n")
	fmt.Printf("Spots: %d (%d merged)\n", len(spots), len(table.Spots)-len(spots))
	fmt.Printf("Identified: %d\n", identified)
	fmt.Printf("Links: %d\n", links/2)
	fmt.Printf("Groups: %d\n", len(groups))
	fmt.Printf("Run: %s\n", writer.RunID())
	fmt.Printf("Output: %s\n", alignOut)
	return nil
}
