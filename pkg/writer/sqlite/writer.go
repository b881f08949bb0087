// Package sqlite writes reference libraries and annotation results to SQLite
// database files. The library layout is compatible with mzVault.
package sqlite

import (
	"database/sql"
	"encoding/binary"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/ChrisMcGann/spotkey/pkg/core"
)

const (
	// Date format for HeaderTable (ISO 8601)
	headerDateFormat = "2006-01-02"
	// Date format for MaintenanceTable
	maintenanceDateFormat = "2006 01 02"

	// IsotopeTagPrefix marks the isotope pattern stored in CompoundTable.Tag.
	IsotopeTagPrefix = "isotopes:"
)

// Options are the acquisition settings stamped on every written spectrum.
type Options struct {
	FragmentationMode string
	MassAnalyzer      string
	IonizationMode    string
	Description       string
}

// DefaultOptions returns HCD on an FT analyzer with ESI ionization.
func DefaultOptions() Options {
	return Options{FragmentationMode: "HCD", MassAnalyzer: "FT", IonizationMode: "ESI"}
}

// Writer handles writing reference records to SQLite database files
type Writer struct {
	db           *sql.DB
	outputPath   string
	opts         Options
	compoundStmt *sql.Stmt
	spectrumStmt *sql.Stmt
	compoundID   int
	written      int
	closed       bool
}

// NewWriter creates a new SQLite library writer
func NewWriter(outputPath string, opts Options) (*Writer, error) {
	db, err := sql.Open("sqlite3", outputPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	w := &Writer{
		db:         db,
		outputPath: outputPath,
		opts:       opts,
		compoundID: 1,
	}

	if err := w.createTables(); err != nil {
		db.Close()
		return nil, err
	}

	if err := w.db.QueryRow(`SELECT COALESCE(MAX(CompoundId), 0) + 1 FROM CompoundTable`).Scan(&w.compoundID); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to read compound ids: %w", err)
	}

	if err := w.prepareStatements(); err != nil {
		db.Close()
		return nil, err
	}

	return w, nil
}

// createTables creates the required database schema
func (w *Writer) createTables() error {
	schema := `
	CREATE TABLE IF NOT EXISTS CompoundTable (
		CompoundId INTEGER PRIMARY KEY,
		Formula TEXT,
		Name TEXT,
		Synonyms BLOB_TEXT,
		Tag TEXT,
		Sequence TEXT,
		CASId TEXT,
		ChemSpiderId TEXT,
		HMDBId TEXT,
		KEGGId TEXT,
		PubChemId TEXT,
		Structure BLOB_TEXT,
		mzCloudId INTEGER,
		CompoundClass TEXT,
		SmilesDescription TEXT,
		InChiKey TEXT
	);

	CREATE TABLE IF NOT EXISTS SpectrumTable (
		SpectrumId INTEGER PRIMARY KEY,
		CompoundId INTEGER REFERENCES CompoundTable(CompoundId),
		mzCloudURL TEXT,
		ScanFilter TEXT,
		RetentionTime DOUBLE,
		ScanNumber INTEGER,
		PrecursorMass DOUBLE,
		NeutralMass DOUBLE,
		CollisionEnergy DOUBLE,
		Polarity TEXT,
		FragmentationMode TEXT,
		IonizationMode TEXT,
		MassAnalyzer TEXT,
		InstrumentName TEXT,
		InstrumentOperator TEXT,
		RawFileURL TEXT,
		blobMass BLOB,
		blobIntensity BLOB,
		blobAccuracy BLOB,
		blobResolution BLOB,
		blobNoises BLOB,
		blobFlags BLOB,
		blobTopPeaks BLOB,
		Version INTEGER,
		CreationDate TEXT,
		Curator TEXT,
		CurationType TEXT,
		PrecursorIonType TEXT,
		Accession TEXT
	);

	CREATE TABLE IF NOT EXISTS HeaderTable (
		version INTEGER NOT NULL DEFAULT 0,
		CreationDate TEXT,
		LastModifiedDate TEXT,
		Description TEXT,
		Company TEXT,
		ReadOnly BOOL,
		UserAccess TEXT,
		PartialEdits BOOL
	);

	CREATE TABLE IF NOT EXISTS MaintenanceTable (
		CreationDate TEXT,
		NoofCompoundsModified INTEGER,
		Description TEXT
	);
	`

	if _, err := w.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create tables: %w", err)
	}
	return nil
}

// prepareStatements prepares SQL statements for batch insertion
func (w *Writer) prepareStatements() error {
	var err error

	w.compoundStmt, err = w.db.Prepare(`
		INSERT INTO CompoundTable (
			CompoundId, Formula, Name, Synonyms, Tag, Sequence,
			CASId, ChemSpiderId, HMDBId, KEGGId, PubChemId,
			Structure, mzCloudId, CompoundClass, SmilesDescription, InChiKey
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare compound statement: %w", err)
	}

	w.spectrumStmt, err = w.db.Prepare(`
		INSERT INTO SpectrumTable (
			SpectrumId, CompoundId, RetentionTime, PrecursorMass, NeutralMass,
			CollisionEnergy, Polarity, FragmentationMode, IonizationMode,
			MassAnalyzer, blobMass, blobIntensity, CreationDate, PrecursorIonType
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare spectrum statement: %w", err)
	}

	return nil
}

// WriteRecord writes a single reference record to the database
func (w *Writer) WriteRecord(rec *core.ReferenceRecord) error {
	if !rec.Spectrum.ArePeaksSorted() {
		rec.Spectrum.SortPeaks()
	}

	_, err := w.compoundStmt.Exec(
		w.compoundID,             // CompoundId
		rec.Formula,              // Formula
		rec.Name,                 // Name
		rec.Comment,              // Synonyms
		isotopeTag(rec.Isotopes), // Tag
		"",                       // Sequence
		"",                       // CASId
		"",                       // ChemSpiderId
		"",                       // HMDBId
		"",                       // KEGGId
		"",                       // PubChemId
		"",                       // Structure
		nil,                      // mzCloudId
		rec.Ontology,             // CompoundClass
		rec.SMILES,               // SmilesDescription
		rec.InChIKey,             // InChiKey
	)
	if err != nil {
		return fmt.Errorf("failed to insert compound: %w", err)
	}

	var neutral interface{}
	if a, ok := core.LookupAdduct(rec.AdductType); ok {
		neutral = a.NeutralMass(rec.PrecursorMZ)
	}
	mzBlob := EncodeFloat64s(peakValues(rec.Spectrum.Peaks, true))
	intBlob := EncodeFloat64s(peakValues(rec.Spectrum.Peaks, false))

	_, err = w.spectrumStmt.Exec(
		w.compoundID,                        // SpectrumId (1:1 with CompoundId)
		w.compoundID,                        // CompoundId
		optional(rec.RetentionTime),         // RetentionTime
		rec.PrecursorMZ,                     // PrecursorMass
		neutral,                             // NeutralMass
		optional(rec.CollisionEnergy),       // CollisionEnergy
		rec.Polarity.String(),               // Polarity
		w.opts.FragmentationMode,            // FragmentationMode
		w.opts.IonizationMode,               // IonizationMode
		w.opts.MassAnalyzer,                 // MassAnalyzer
		mzBlob,                              // blobMass
		intBlob,                             // blobIntensity
		time.Now().Format(headerDateFormat), // CreationDate
		rec.AdductType,                      // PrecursorIonType
	)
	if err != nil {
		return fmt.Errorf("failed to insert spectrum: %w", err)
	}

	w.compoundID++
	w.written++
	return nil
}

// Written returns the number of records written by this writer.
func (w *Writer) Written() int {
	return w.written
}

func optional(v *float64) interface{} {
	if v == nil {
		return nil
	}
	return *v
}

func peakValues(peaks []core.Peak, useMZ bool) []float64 {
	out := make([]float64, len(peaks))
	for i, p := range peaks {
		if useMZ {
			out[i] = p.MZ
		} else {
			out[i] = p.Intensity
		}
	}
	return out
}

// isotopeTag encodes an isotope pattern as "isotopes:0=100,1=20.5".
func isotopeTag(iso []core.IsotopePeak) string {
	if len(iso) == 0 {
		return ""
	}
	parts := make([]string, len(iso))
	for i, p := range iso {
		parts[i] = strconv.Itoa(p.Offset) + "=" + strconv.FormatFloat(p.Abundance, 'g', -1, 64)
	}
	return IsotopeTagPrefix + strings.Join(parts, ",")
}

// EncodeFloat64s encodes values as a little-endian float64 blob
func EncodeFloat64s(values []float64) []byte {
	buf := make([]byte, len(values)*8)
	for i, v := range values {
		binary.LittleEndian.PutUint64(buf[i*8:], math.Float64bits(v))
	}
	return buf
}

// Finalize writes the header and maintenance tables and closes the database
func (w *Writer) Finalize() error {
	if w.closed {
		return nil
	}
	w.closed = true

	now := time.Now()
	_, err := w.db.Exec(`
		INSERT INTO HeaderTable (version, CreationDate, LastModifiedDate, Description, Company, ReadOnly, UserAccess, PartialEdits)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, 5, now.Format(headerDateFormat), now.Format(headerDateFormat), w.opts.Description, "", false, "", false)
	if err != nil {
		w.db.Close()
		return fmt.Errorf("failed to insert header: %w", err)
	}

	_, err = w.db.Exec(`
		INSERT INTO MaintenanceTable (CreationDate, NoofCompoundsModified, Description)
		VALUES (?, ?, ?)
	`, now.Format(maintenanceDateFormat), w.Written(), w.opts.Description)
	if err != nil {
		w.db.Close()
		return fmt.Errorf("failed to insert maintenance: %w", err)
	}

	if w.compoundStmt != nil {
		w.compoundStmt.Close()
	}
	if w.spectrumStmt != nil {
		w.spectrumStmt.Close()
	}

	if err := w.db.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}
	return nil
}

// Close finalizes the database unless Finalize already ran.
func (w *Writer) Close() error {
	return w.Finalize()
}
