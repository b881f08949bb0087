package cmd

import (
	"errors"
	"fmt"
	"sync"

	"github.com/spf13/cobra"

	"github.com/ChrisMcGann/spotkey/pkg/annotation"
	"github.com/ChrisMcGann/spotkey/pkg/core"
	"github.com/ChrisMcGann/spotkey/pkg/library"
	"github.com/ChrisMcGann/spotkey/pkg/logger"
	"github.com/ChrisMcGann/spotkey/pkg/metrics"
	"github.com/ChrisMcGann/spotkey/pkg/reader/peaktable"
	"github.com/ChrisMcGann/spotkey/pkg/writer/sqlite"
)

var (
	// Flags for annotate command
	peakFiles     []string
	mspFiles      []string
	textDBFiles   []string
	sqliteFiles   []string
	peptideFiles  []string
	modsCSV       string
	annotateOut   string
	workers       int
	maxFiles      int
	progressEvery int
)

var annotateCmd = &cobra.Command{
	Use:   "annotate",
	Short: "Annotate peak tables against reference libraries",
	Long: `Annotate the peak features of one or more peak tables against curated
spectral libraries, free-text compound databases and generated peptide
references, and store the results in a SQLite database.

Libraries are searched in priority order: curated spectral libraries first,
free-text databases second, generated references last. A lower-priority
library only annotates features the earlier ones left unknown.

Examples:
  # Annotate two files against an MSP library
  spotkey annotate --peaks a.tsv --peaks b.tsv --msp library.msp --out results.db

  # Add a free-text database and peptide references, four workers per file
  spotkey annotate --peaks a.tsv --msp lib.msp --textdb compounds.txt \
    --peptides peptides.pep --workers 4 --out results.db`,
	RunE: runAnnotate,
}

func init() {
	annotateCmd.Flags().StringArrayVarP(&peakFiles, "peaks", "p", nil, "Peak table (repeatable, required)")
	annotateCmd.Flags().StringArrayVar(&mspFiles, "msp", nil, "MSP spectral library (repeatable)")
	annotateCmd.Flags().StringArrayVar(&textDBFiles, "textdb", nil, "Free-text compound database (repeatable)")
	annotateCmd.Flags().StringArrayVar(&sqliteFiles, "library", nil, "SQLite spectral library (repeatable)")
	annotateCmd.Flags().StringArrayVar(&peptideFiles, "peptides", nil, "Peptide list for generated references (repeatable)")
	annotateCmd.Flags().StringVar(&modsCSV, "mods", "", "Modification CSV (mod,massshift) extending the built-in set")
	annotateCmd.Flags().StringVarP(&annotateOut, "out", "o", "", "Output results database (required)")
	annotateCmd.Flags().IntVar(&workers, "workers", 0, "Workers per file (0 = from config or CPU count)")
	annotateCmd.Flags().IntVar(&maxFiles, "max-files", 0, "Files annotated concurrently (0 = from config)")
	annotateCmd.Flags().IntVar(&progressEvery, "progress-every", 1000, "Print progress every N features (0 = off)")

	annotateCmd.MarkFlagRequired("peaks")
	annotateCmd.MarkFlagRequired("out")
}

func runAnnotate(cmd *cobra.Command, args []string) error {
	params := cfg.Annotation
	if workers > 0 {
		params.Parallelism = workers
	}
	if maxFiles > 0 {
		params.MaxConcurrentFiles = maxFiles
	}

	annotators := buildAnnotators()
	if len(annotators) == 0 {
		logger.Warn("no reference library loaded, features stay unannotated")
	}

	files := make([]*annotation.FileInput, 0, len(peakFiles))
	for _, path := range peakFiles {
		features, spectra, err := peaktable.ReadFile(path)
		if err != nil {
			return err
		}
		files = append(files, &annotation.FileInput{Name: path, Features: features, Spectra: spectra})
		fmt.Printf("Loaded %d features from %s\n", len(features), path)
	}

	var printMu sync.Mutex
	orch := annotation.NewOrchestrator(annotators, params, annotation.WithProgress(func(done, total int) {
		if progressEvery <= 0 || (done%progressEvery != 0 && done != total) {
			return
		}
		printMu.Lock()
		fmt.Printf("Processed %d/%d features...\n", done, total)
		printMu.Unlock()
	}))

	writer, err := sqlite.NewResultWriter(annotateOut, sqlite.RunAnnotation, fmt.Sprintf("%d files", len(files)))
	if err != nil {
		return fmt.Errorf("failed to create output database: %w", err)
	}
	defer writer.Close()

	var failed []error
	var total annotation.Summary
	for i, res := range orch.AnnotateFiles(cmd.Context(), files) {
		if res.Err != nil {
			logger.Error("file annotation failed", "file", res.Name, "err", res.Err)
			failed = append(failed, fmt.Errorf("%s: %w", res.Name, res.Err))
			continue
		}
		if err := writer.WriteFeatures(files[i].Features); err != nil {
			return fmt.Errorf("failed to write results of %s: %w", res.Name, err)
		}
		total.Confirmed += res.Summary.Confirmed
		total.Suggested += res.Summary.Suggested
		total.Unknown += res.Summary.Unknown
		total.Skipped += res.Summary.Skipped
	}

	fmt.Printf("\nAnnotation complete!\n")
	fmt.Printf("Confirmed: %d\n", total.Confirmed)
	fmt.Printf("Suggested: %d\n", total.Suggested)
	fmt.Printf("Unknown: %d\n", total.Unknown)
	if total.Skipped > 0 {
		fmt.Printf("Skipped: %d features (isotopes or no MS/MS)\n", total.Skipped)
	}
	fmt.Printf("Run: %s\n", writer.RunID())
	fmt.Printf("Output: %s\n", annotateOut)

	return errors.Join(failed...)
}

// buildAnnotators loads every configured library. A library that cannot be
// loaded is logged, counted and left out.
func buildAnnotators() map[string]annotation.Annotator {
	annotators := make(map[string]annotation.Annotator)
	add := func(format string, paths []string) {
		for _, path := range paths {
			key := uniqueKey(annotators, libraryKey(format, path))
			records, err := loadRecords(path, format)
			if err != nil {
				logger.Warn("skipping library", "library", key, "err", err)
				metrics.LibraryFailures.WithLabelValues(key).Inc()
				continue
			}
			records = validRecords(key, records)
			lib := library.New(key, records)
			annotators[key] = annotation.NewLibraryAnnotator(key, sourceOf(format), lib)
			logger.Info("library loaded", "library", key, "records", lib.Len())
		}
	}
	add(formatMSP, mspFiles)
	add(formatSQLite, sqliteFiles)
	add(formatTextDB, textDBFiles)
	add(formatPeptides, peptideFiles)
	return annotators
}

// uniqueKey returns key, or key with the first free "#n" suffix when another
// library already uses it.
func uniqueKey(taken map[string]annotation.Annotator, key string) string {
	if _, ok := taken[key]; !ok {
		return key
	}
	for n := 2; ; n++ {
		alt := fmt.Sprintf("%s#%d", key, n)
		if _, ok := taken[alt]; !ok {
			logger.Warn("library key already in use, renamed", "key", key, "library", alt)
			return alt
		}
	}
}

// validRecords drops records that cannot be searched.
func validRecords(key string, records []core.ReferenceRecord) []core.ReferenceRecord {
	out := records[:0]
	for _, r := range records {
		if err := r.Validate(); err != nil {
			logger.Debug("skipping record", "library", key, "err", err)
			continue
		}
		out = append(out, r)
	}
	if dropped := len(records) - len(out); dropped > 0 {
		logger.Warn("invalid records skipped", "library", key, "count", dropped)
	}
	return out
}
