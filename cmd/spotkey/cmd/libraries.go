package cmd

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ChrisMcGann/spotkey/pkg/core"
	"github.com/ChrisMcGann/spotkey/pkg/generator"
	"github.com/ChrisMcGann/spotkey/pkg/logger"
	"github.com/ChrisMcGann/spotkey/pkg/reader/msp"
	"github.com/ChrisMcGann/spotkey/pkg/reader/sqlite"
	"github.com/ChrisMcGann/spotkey/pkg/reader/textdb"
)

// Library formats.
const (
	formatMSP      = "msp"
	formatSQLite   = "sqlite"
	formatTextDB   = "textdb"
	formatPeptides = "peptides"
)

// detectFormat picks a reader from the file extension.
func detectFormat(path, format string) (string, error) {
	if format != "" {
		format = strings.ToLower(format)
		switch format {
		case formatMSP, formatSQLite, formatTextDB, formatPeptides:
			return format, nil
		}
		return "", fmt.Errorf("invalid input format '%s', must be msp, sqlite, textdb or peptides", format)
	}

	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".msp":
		return formatMSP, nil
	case ".db", ".sqlite":
		return formatSQLite, nil
	case ".txt", ".tsv":
		return formatTextDB, nil
	case ".pep":
		return formatPeptides, nil
	}
	return "", fmt.Errorf("cannot auto-detect format from extension '%s', please specify --from", ext)
}

// sourceOf is the annotation source of records read in a format.
func sourceOf(format string) core.Source {
	switch format {
	case formatTextDB:
		return core.SourceFreeText
	case formatPeptides:
		return core.SourceCustom
	}
	return core.SourceCurated
}

// loadRecords reads every reference record of a library file.
func loadRecords(path, format string) ([]core.ReferenceRecord, error) {
	if format == formatSQLite {
		return sqlite.Load(path)
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open input file: %w", err)
	}
	defer file.Close()

	switch format {
	case formatMSP:
		return msp.ReadAll(file)
	case formatTextDB:
		return textdb.ReadAll(file)
	case formatPeptides:
		peptides, err := generator.ReadPeptides(file)
		if err != nil {
			return nil, err
		}
		db, err := loadModDatabase(modsCSV)
		if err != nil {
			return nil, err
		}
		return generator.Generate(peptides, db, cfg.Generator)
	}
	return nil, fmt.Errorf("unsupported format: %s", format)
}

// loadModDatabase returns the built-in modifications, extended from a CSV
// file (mod,massshift) when one is given.
func loadModDatabase(path string) (*core.ModDatabase, error) {
	db := core.DefaultModDatabase()
	if path == "" {
		return db, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open modification file: %w", err)
	}
	defer f.Close()
	if err := db.LoadFromCSV(f); err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", path, err)
	}
	logger.Debug("modifications loaded", "path", path, "names", db.Names())
	return db, nil
}

// loadCompoundClassCSV reads a "Name,CompoundClass" mapping with a header line.
func loadCompoundClassCSV(path string) (map[string]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	result := make(map[string]string)
	scanner := bufio.NewScanner(file)
	scanner.Scan() // header

	lineNum := 1
	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		name, class, ok := strings.Cut(line, ",")
		if !ok {
			return nil, fmt.Errorf("line %d: expected 2 fields (Name,CompoundClass)", lineNum)
		}
		result[strings.TrimSpace(name)] = strings.TrimSpace(class)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading CSV: %w", err)
	}
	return result, nil
}

// libraryKey names a library after its format and file.
func libraryKey(format, path string) string {
	return format + ":" + strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
}
