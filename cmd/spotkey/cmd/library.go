package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ChrisMcGann/spotkey/pkg/core"
	"github.com/ChrisMcGann/spotkey/pkg/filter"
	"github.com/ChrisMcGann/spotkey/pkg/library"
	"github.com/ChrisMcGann/spotkey/pkg/writer/sqlite"
)

var (
	// Flags for library commands
	inputFile        string
	inputFormat      string
	outputFile       string
	fragmentation    string
	collisionEnergy  float64
	massAnalyzer     string
	topN             int
	cutoffPercent    float64
	ionTypes         string
	compoundClassCSV string
	description      string
)

var libraryCmd = &cobra.Command{
	Use:   "library",
	Short: "Convert, validate and summarize reference libraries",
}

var convertCmd = &cobra.Command{
	Use:   "convert",
	Short: "Convert a reference library to a SQLite database",
	Long: `Convert MSP libraries, free-text databases or peptide lists to SQLite
databases compatible with mzVault workflows.

Examples:
  # Convert MSP file with default settings
  spotkey library convert --in library.msp --out library.db

  # Keep the 150 most intense peaks above 1% of the base peak
  spotkey library convert --in library.msp --out library.db --top-n 150 --cutoff 1

  # Generate b/y references for a peptide list
  spotkey library convert --in peptides.pep --out peptides.db --ion-types b,y`,
	RunE: runConvert,
}

var validateCmd = &cobra.Command{
	Use:   "validate [file]",
	Short: "Validate input file format and contents",
	Long:  `Validate that a library file is properly formatted and every record can be searched.`,
	Args:  cobra.ExactArgs(1),
	RunE:  runValidate,
}

var summarizeCmd = &cobra.Command{
	Use:   "summarize [file]",
	Short: "Summarize reference library contents",
	Long:  `Print summary statistics about a library including record count, m/z range, and metadata coverage.`,
	Args:  cobra.ExactArgs(1),
	RunE:  runSummarize,
}

func init() {
	libraryCmd.AddCommand(convertCmd)
	libraryCmd.AddCommand(validateCmd)
	libraryCmd.AddCommand(summarizeCmd)

	libraryCmd.PersistentFlags().StringVarP(&inputFormat, "from", "f", "", "Input format: msp, sqlite, textdb, peptides (auto-detect if not specified)")
	libraryCmd.PersistentFlags().StringVar(&modsCSV, "mods", "", "Modification CSV (mod,massshift) for peptide lists")

	convertCmd.Flags().StringVarP(&inputFile, "in", "i", "", "Input file path (required)")
	convertCmd.Flags().StringVarP(&outputFile, "out", "o", "", "Output database file (required)")
	convertCmd.Flags().StringVar(&fragmentation, "fragmentation", "HCD", "Fragmentation mode: HCD or CID")
	convertCmd.Flags().Float64Var(&collisionEnergy, "collision-energy", 0, "Collision energy (0 = read from file)")
	convertCmd.Flags().StringVar(&massAnalyzer, "mass-analyzer", "FT", "Mass analyzer: FT or IT")
	convertCmd.Flags().IntVar(&topN, "top-n", 0, "Keep only top N most intense peaks (0 = no limit)")
	convertCmd.Flags().Float64Var(&cutoffPercent, "cutoff", 0, "Intensity cutoff as % of base peak (0 = no cutoff)")
	convertCmd.Flags().StringVar(&ionTypes, "ion-types", "", "Comma-separated ion types to keep (e.g., 'b,y')")
	convertCmd.Flags().StringVar(&compoundClassCSV, "compound-class", "", "Path to compound class CSV file (Name,CompoundClass)")
	convertCmd.Flags().StringVar(&description, "description", "", "Library description stored in the header")

	convertCmd.MarkFlagRequired("in")
	convertCmd.MarkFlagRequired("out")
}

func runConvert(cmd *cobra.Command, args []string) error {
	if _, err := os.Stat(inputFile); os.IsNotExist(err) {
		return fmt.Errorf("input file does not exist: %s", inputFile)
	}
	format, err := detectFormat(inputFile, inputFormat)
	if err != nil {
		return err
	}

	fmt.Printf("Converting %s to %s...\n", inputFile, outputFile)
	fmt.Printf("Format: %s\n", format)
	fmt.Printf("Fragmentation: %s\n", fragmentation)
	fmt.Printf("Mass Analyzer: %s\n", massAnalyzer)

	filterConfig := &filter.Config{
		TopN:            topN,
		IntensityCutoff: cutoffPercent,
	}
	if ionTypes != "" {
		for _, t := range strings.Split(ionTypes, ",") {
			filterConfig.IonTypes = append(filterConfig.IonTypes, strings.TrimSpace(t))
		}
		fmt.Printf("Ion types: %s\n", ionTypes)
	}
	if topN > 0 {
		fmt.Printf("Top N filter: %d\n", topN)
	}
	if cutoffPercent > 0 {
		fmt.Printf("Intensity cutoff: %.1f%%\n", cutoffPercent)
	}

	compoundClassMap := make(map[string]string)
	if compoundClassCSV != "" {
		compoundClassMap, err = loadCompoundClassCSV(compoundClassCSV)
		if err != nil {
			return fmt.Errorf("failed to load compound class CSV: %w", err)
		}
		fmt.Printf("Loaded %d compound class mappings\n", len(compoundClassMap))
	}

	records, err := loadRecords(inputFile, format)
	if err != nil {
		return fmt.Errorf("error reading input file: %w", err)
	}

	opts := sqlite.DefaultOptions()
	opts.FragmentationMode = fragmentation
	opts.MassAnalyzer = massAnalyzer
	opts.Description = description
	writer, err := sqlite.NewWriter(outputFile, opts)
	if err != nil {
		return fmt.Errorf("failed to create output database: %w", err)
	}
	defer writer.Close()

	count, skipped := 0, 0
	for i := range records {
		rec := &records[i]
		if class, ok := compoundClassMap[rec.Name]; ok {
			rec.Ontology = class
		}
		if collisionEnergy > 0 {
			ce := collisionEnergy
			rec.CollisionEnergy = &ce
		}

		filterConfig.Apply(&rec.Spectrum)

		if err := rec.Validate(); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: invalid record %s: %v\n", rec.Name, err)
			skipped++
			continue
		}
		if err := writer.WriteRecord(rec); err != nil {
			return fmt.Errorf("failed to write record %s: %w", rec.Name, err)
		}

		count++
		if count%1000 == 0 {
			fmt.Printf("Processed %d records...\n", count)
		}
	}

	if err := writer.Finalize(); err != nil {
		return fmt.Errorf("failed to finalize database: %w", err)
	}

	fmt.Printf("\nConversion complete!\n")
	fmt.Printf("Processed: %d records\n", count)
	if skipped > 0 {
		fmt.Printf("Skipped: %d records (validation errors)\n", skipped)
	}
	fmt.Printf("Output: %s\n", outputFile)
	return nil
}

func runValidate(cmd *cobra.Command, args []string) error {
	path := args[0]
	format, err := detectFormat(path, inputFormat)
	if err != nil {
		return err
	}
	records, err := loadRecords(path, format)
	if err != nil {
		return fmt.Errorf("%s is not a valid %s file: %w", path, format, err)
	}

	invalid := 0
	for i := range records {
		if err := records[i].Validate(); err != nil {
			fmt.Fprintf(os.Stderr, "Record %d: %v\n", i+1, err)
			invalid++
		}
	}

	fmt.Printf("%s: %d records, %d invalid\n", path, len(records), invalid)
	if invalid > 0 {
		return fmt.Errorf("%d invalid records", invalid)
	}
	return nil
}

// librarySummary counts metadata coverage of a library.
type librarySummary struct {
	Records      int
	WithSpectrum int
	WithRT       int
	WithInChIKey int
	WithIsotopes int
	Positive     int
	Negative     int
	MinMZ, MaxMZ float64
	Peaks        int
	Ontologies   map[string]int
}

func summarize(lib *library.Library) librarySummary {
	s := librarySummary{Records: lib.Len(), Ontologies: make(map[string]int)}
	s.MinMZ, s.MaxMZ = lib.MassRange()
	for i := 0; i < lib.Len(); i++ {
		r, _ := lib.Record(i)
		if r.HasSpectrum() {
			s.WithSpectrum++
			s.Peaks += len(r.Spectrum.Peaks)
		}
		if r.RetentionTime != nil {
			s.WithRT++
		}
		if r.InChIKey != "" {
			s.WithInChIKey++
		}
		if len(r.Isotopes) > 0 {
			s.WithIsotopes++
		}
		switch r.Polarity {
		case core.PolarityPositive:
			s.Positive++
		case core.PolarityNegative:
			s.Negative++
		}
		if r.Ontology != "" {
			s.Ontologies[r.Ontology]++
		}
	}
	return s
}

func runSummarize(cmd *cobra.Command, args []string) error {
	path := args[0]
	format, err := detectFormat(path, inputFormat)
	if err != nil {
		return err
	}
	records, err := loadRecords(path, format)
	if err != nil {
		return fmt.Errorf("error reading %s: %w", path, err)
	}
	s := summarize(library.New(libraryKey(format, path), records))

	fmt.Printf("Library: %s (%s)\n", path, format)
	fmt.Printf("Records: %d\n", s.Records)
	fmt.Printf("Precursor m/z range: %.4f - %.4f\n", s.MinMZ, s.MaxMZ)
	fmt.Printf("With spectrum: %d", s.WithSpectrum)
	if s.WithSpectrum > 0 {
		fmt.Printf(" (%.1f peaks on average)", float64(s.Peaks)/float64(s.WithSpectrum))
	}
	fmt.Println()
	fmt.Printf("With retention time: %d\n", s.WithRT)
	fmt.Printf("With InChIKey: %d\n", s.WithInChIKey)
	fmt.Printf("With isotope pattern: %d\n", s.WithIsotopes)
	fmt.Printf("Polarity: %d positive, %d negative\n", s.Positive, s.Negative)
	fmt.Printf("Compound classes: %d\n", len(s.Ontologies))
	return nil
}
