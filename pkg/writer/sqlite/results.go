package sqlite

import (
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ChrisMcGann/spotkey/pkg/core"
)

// Run kinds recorded in RunTable.
const (
	RunAnnotation = "annotation"
	RunAlignment  = "alignment"
)

// ResultWriter stores annotated features and refined alignment spots. Every
// row carries the RunId of the writer, so one database can collect many runs.
type ResultWriter struct {
	db    *sql.DB
	runID string
}

// NewResultWriter opens or creates a result database and registers a new run.
func NewResultWriter(outputPath, kind, description string) (*ResultWriter, error) {
	db, err := sql.Open("sqlite3", outputPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	w := &ResultWriter{db: db, runID: uuid.NewString()}
	if err := w.createTables(); err != nil {
		db.Close()
		return nil, err
	}

	_, err = db.Exec(`INSERT INTO RunTable (RunId, CreationDate, Kind, Description) VALUES (?, ?, ?, ?)`,
		w.runID, time.Now().Format(time.RFC3339), kind, description)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to insert run: %w", err)
	}
	return w, nil
}

// RunID returns the identifier stamped on every row of this run.
func (w *ResultWriter) RunID() string {
	return w.runID
}

func (w *ResultWriter) createTables() error {
	schema := `
	CREATE TABLE IF NOT EXISTS RunTable (
		RunId TEXT PRIMARY KEY,
		CreationDate TEXT,
		Kind TEXT,
		Description TEXT
	);

	CREATE TABLE IF NOT EXISTS FeatureTable (
		RunId TEXT REFERENCES RunTable(RunId),
		FileName TEXT,
		PeakId INTEGER,
		PrecursorMass DOUBLE,
		RetentionTime DOUBLE,
		Mobility DOUBLE,
		IsotopeWeight INTEGER,
		Polarity TEXT,
		Confidence TEXT,
		Name TEXT,
		Formula TEXT,
		InChiKey TEXT,
		SmilesDescription TEXT,
		CompoundClass TEXT,
		PrecursorIonType TEXT,
		Source TEXT,
		LibraryKey TEXT,
		RecordIndex INTEGER,
		TotalScore DOUBLE,
		DotProduct DOUBLE,
		ReverseDotProduct DOUBLE,
		MatchedPeaks INTEGER,
		Candidates INTEGER
	);

	CREATE TABLE IF NOT EXISTS AlignmentSpotTable (
		RunId TEXT REFERENCES RunTable(RunId),
		GlobalId INTEGER,
		SpotId INTEGER,
		GroupId INTEGER,
		RepresentativeId INTEGER,
		Mz DOUBLE,
		RetentionTime DOUBLE,
		IsotopeWeight INTEGER,
		Polarity TEXT,
		Confidence TEXT,
		Name TEXT,
		Formula TEXT,
		InChiKey TEXT,
		PrecursorIonType TEXT,
		Source TEXT,
		TotalScore DOUBLE,
		MergedIds TEXT,
		blobIntensity BLOB
	);

	CREATE TABLE IF NOT EXISTS AlignmentLinkTable (
		RunId TEXT REFERENCES RunTable(RunId),
		GlobalId INTEGER,
		PartnerId INTEGER,
		Kind TEXT
	);
	`
	if _, err := w.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create tables: %w", err)
	}
	return nil
}

// WriteFeatures stores one row per feature in a single transaction. Nil
// features are skipped.
func (w *ResultWriter) WriteFeatures(features []*core.PeakFeature) (err error) {
	tx, err := w.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	stmt, err := tx.Prepare(`
		INSERT INTO FeatureTable (
			RunId, FileName, PeakId, PrecursorMass, RetentionTime, Mobility,
			IsotopeWeight, Polarity, Confidence, Name, Formula, InChiKey,
			SmilesDescription, CompoundClass, PrecursorIonType, Source, LibraryKey,
			RecordIndex, TotalScore, DotProduct, ReverseDotProduct, MatchedPeaks,
			Candidates
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare feature statement: %w", err)
	}
	defer stmt.Close()

	for _, f := range features {
		if f == nil {
			continue
		}
		ref := f.Reference
		if ref == nil {
			ref = &core.Annotation{RecordIndex: -1}
		}
		hit, _ := matchFor(f)

		_, err = stmt.Exec(
			w.runID, f.FileName, f.ID, f.PrecursorMZ, f.RetentionTime, f.Mobility,
			f.IsotopeWeight, f.Polarity.String(), f.Confidence.String(), ref.Name, ref.Formula, ref.InChIKey,
			ref.SMILES, ref.Ontology, ref.AdductType, sourceName(ref.Source), ref.LibraryKey,
			ref.RecordIndex, ref.TotalScore, hit.DotProduct, hit.ReverseDotProduct, hit.MatchedPeaksCount,
			len(f.Matches),
		)
		if err != nil {
			return fmt.Errorf("failed to insert feature %d: %w", f.ID, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit features: %w", err)
	}
	return nil
}

// matchFor returns the stored match that produced the feature's annotation.
func matchFor(f *core.PeakFeature) (core.MatchResult, bool) {
	if f.Reference == nil {
		return core.MatchResult{}, false
	}
	for _, m := range f.Matches {
		if m.LibraryKey == f.Reference.LibraryKey && m.RecordIndex == f.Reference.RecordIndex {
			return m, true
		}
	}
	return core.MatchResult{}, false
}

func sourceName(s core.Source) string {
	if s == 0 {
		return ""
	}
	return s.String()
}

// WriteSpots stores refined spots and their links in a single transaction and
// advances every spot to the exported stage. All spots must be linked.
func (w *ResultWriter) WriteSpots(spots []*core.AlignmentSpot) (err error) {
	for _, s := range spots {
		if s.State != core.SpotLinked {
			return fmt.Errorf("%w: spot %d is %s, want %s", core.ErrStateTransition, s.ID, s.State, core.SpotLinked)
		}
	}

	tx, err := w.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	spotStmt, err := tx.Prepare(`
		INSERT INTO AlignmentSpotTable (
			RunId, GlobalId, SpotId, GroupId, RepresentativeId, Mz, RetentionTime,
			IsotopeWeight, Polarity, Confidence, Name, Formula, InChiKey,
			PrecursorIonType, Source, TotalScore, MergedIds, blobIntensity
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare spot statement: %w", err)
	}
	defer spotStmt.Close()

	linkStmt, err := tx.Prepare(`INSERT INTO AlignmentLinkTable (RunId, GlobalId, PartnerId, Kind) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare link statement: %w", err)
	}
	defer linkStmt.Close()

	for _, s := range spots {
		ref := s.Reference
		if ref == nil {
			ref = &core.Annotation{}
		}
		_, err = spotStmt.Exec(
			w.runID, s.GlobalID, s.ID, s.GroupID, s.RepresentativeID, s.MZ, s.RetentionTime,
			s.IsotopeWeight, s.Polarity.String(), s.Confidence.String(), ref.Name, ref.Formula, ref.InChIKey,
			ref.AdductType, sourceName(ref.Source), ref.TotalScore, joinIDs(s.MergedIDs), EncodeFloat64s(s.Intensities),
		)
		if err != nil {
			return fmt.Errorf("failed to insert spot %d: %w", s.GlobalID, err)
		}
		for _, l := range s.Links {
			if _, err = linkStmt.Exec(w.runID, s.GlobalID, l.Partner, l.Kind.String()); err != nil {
				return fmt.Errorf("failed to insert link %d-%d: %w", s.GlobalID, l.Partner, err)
			}
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit spots: %w", err)
	}

	for _, s := range spots {
		if err := s.Advance(core.SpotExported); err != nil {
			return err
		}
	}
	return nil
}

func joinIDs(ids []int) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.Itoa(id)
	}
	return strings.Join(parts, ",")
}

// Close closes the database connection
func (w *ResultWriter) Close() error {
	if err := w.db.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}
	return nil
}
