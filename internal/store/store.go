// Package store is the SQLite persistence layer. One document and
// everything hanging off it (sections, targets, appendices) is written
// in a single transaction; reprocessing a document replaces the prior
// parse through the foreign-key cascade.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/quangtrung-dev/planparse/internal/doctree"
	"github.com/quangtrung-dev/planparse/internal/pipeline"
)

// ErrNotFound is returned when the requested document does not exist.
var ErrNotFound = errors.New("document not found")

type Store struct {
	db   *sql.DB
	path string
	log  *slog.Logger
}

var _ pipeline.Store = (*Store)(nil)

const schema = `
CREATE TABLE IF NOT EXISTS documents (
	id                TEXT PRIMARY KEY,
	filename          TEXT NOT NULL,
	title             TEXT NOT NULL DEFAULT '',
	content_hash      TEXT NOT NULL,
	source_type       TEXT NOT NULL DEFAULT '',
	method            TEXT NOT NULL DEFAULT '',
	status            TEXT NOT NULL,
	meaningful_length INTEGER NOT NULL DEFAULT 0,
	preamble          TEXT NOT NULL DEFAULT '',
	signature_block   TEXT NOT NULL DEFAULT '',
	errors            TEXT NOT NULL DEFAULT '[]',
	created_at        DATETIME NOT NULL,
	updated_at        DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_documents_content_hash ON documents(content_hash);

CREATE TABLE IF NOT EXISTS sections (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	document_id TEXT NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
	parent_id   INTEGER REFERENCES sections(id) ON DELETE CASCADE,
	level       TEXT NOT NULL,
	number      TEXT NOT NULL DEFAULT '',
	title       TEXT NOT NULL DEFAULT '',
	content     TEXT NOT NULL DEFAULT '',
	sort_order  INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_sections_doc ON sections(document_id, sort_order);

CREATE TABLE IF NOT EXISTS targets (
	id             INTEGER PRIMARY KEY AUTOINCREMENT,
	document_id    TEXT NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
	section_id     INTEGER REFERENCES sections(id) ON DELETE SET NULL,
	target_type    TEXT NOT NULL,
	name_vi        TEXT NOT NULL,
	name_en        TEXT NOT NULL DEFAULT '',
	unit           TEXT NOT NULL DEFAULT '',
	target_value   REAL,
	target_min     REAL,
	target_max     REAL,
	target_year    INTEGER,
	baseline_value REAL,
	baseline_year  INTEGER,
	raw_text_vi    TEXT NOT NULL DEFAULT '',
	metadata       TEXT NOT NULL DEFAULT '{}'
);

CREATE INDEX IF NOT EXISTS idx_targets_doc ON targets(document_id);

CREATE TABLE IF NOT EXISTS appendices (
	id              INTEGER PRIMARY KEY AUTOINCREMENT,
	document_id     TEXT NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
	appendix_number INTEGER NOT NULL,
	title_vi        TEXT NOT NULL DEFAULT '',
	appendix_type   TEXT NOT NULL DEFAULT '',
	columns         TEXT NOT NULL DEFAULT '[]'
);

CREATE INDEX IF NOT EXISTS idx_appendices_doc ON appendices(document_id);

CREATE TABLE IF NOT EXISTS appendix_rows (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	appendix_id INTEGER NOT NULL REFERENCES appendices(id) ON DELETE CASCADE,
	row_number  INTEGER NOT NULL,
	sort_order  INTEGER NOT NULL,
	data        TEXT NOT NULL DEFAULT '{}'
);
`

// Open opens (creating if necessary) the database at path with WAL
// journaling and foreign keys on.
func Open(path string, log *slog.Logger) (*Store, error) {
	if log == nil {
		log = slog.Default()
	}
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating data directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	log.Info("sqlite store ready", "path", path)
	return &Store{db: db, path: path, log: log}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// SaveResult writes one parse atomically. Any earlier parse stored
// under the same document id is deleted first, so the newest run wins.
func (s *Store) SaveResult(ctx context.Context, res *pipeline.Result) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM documents WHERE id = ?", res.DocID); err != nil {
		return fmt.Errorf("clearing previous parse: %w", err)
	}
	if err := insertDocument(ctx, tx, res); err != nil {
		return err
	}
	sectionIDs, err := insertSectionTree(ctx, tx, res)
	if err != nil {
		return err
	}
	if err := insertTargets(ctx, tx, res, sectionIDs); err != nil {
		return err
	}
	if err := insertAppendices(ctx, tx, res); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing parse: %w", err)
	}

	s.log.Debug("saved parse",
		"doc_id", res.DocID,
		"sections", len(sectionIDs),
		"targets", res.TargetCount(),
		"appendices", len(res.Appendices))
	return nil
}

func insertDocument(ctx context.Context, tx *sql.Tx, res *pipeline.Result) error {
	errsJSON := "[]"
	if len(res.Errors) > 0 {
		b, err := json.Marshal(res.Errors)
		if err != nil {
			return fmt.Errorf("marshalling errors: %w", err)
		}
		errsJSON = string(b)
	}

	var preamble, signature string
	if res.Document != nil {
		preamble = res.Document.Preamble
		signature = res.Document.SignatureBlock
	}

	created := res.CreatedAt
	if created.IsZero() {
		created = time.Now().UTC()
	}

	_, err := tx.ExecContext(ctx, `
		INSERT INTO documents (id, filename, title, content_hash, source_type, method,
			status, meaningful_length, preamble, signature_block, errors, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, res.DocID, res.Filename, res.Title, res.ContentHash, res.SourceType, res.Method,
		string(res.Status), res.MeaningfulLength, preamble, signature, errsJSON,
		created, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("inserting document: %w", err)
	}
	return nil
}

// insertSectionTree walks the tree depth-first and returns the row id
// of every section keyed by its sort order, for target attribution.
func insertSectionTree(ctx context.Context, tx *sql.Tx, res *pipeline.Result) (map[int]int64, error) {
	ids := map[int]int64{}
	if res.Document == nil || len(res.Document.Sections) == 0 {
		return ids, nil
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO sections (document_id, parent_id, level, number, title, content, sort_order)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return nil, fmt.Errorf("preparing section insert: %w", err)
	}
	defer stmt.Close()

	if err := insertSections(ctx, stmt, res.DocID, sql.NullInt64{}, res.Document.Sections, ids); err != nil {
		return nil, err
	}
	return ids, nil
}

func insertSections(ctx context.Context, stmt *sql.Stmt, docID string, parent sql.NullInt64, secs []*doctree.Section, ids map[int]int64) error {
	for _, sec := range secs {
		r, err := stmt.ExecContext(ctx, docID, parent, sec.Level.String(), sec.Number, sec.Title, sec.Content, sec.SortOrder)
		if err != nil {
			return fmt.Errorf("inserting section %d: %w", sec.SortOrder, err)
		}
		id, err := r.LastInsertId()
		if err != nil {
			return fmt.Errorf("section insert id: %w", err)
		}
		ids[sec.SortOrder] = id
		if err := insertSections(ctx, stmt, docID, sql.NullInt64{Int64: id, Valid: true}, sec.Children, ids); err != nil {
			return err
		}
	}
	return nil
}

func insertTargets(ctx context.Context, tx *sql.Tx, res *pipeline.Result, sectionIDs map[int]int64) error {
	if res.TargetCount() == 0 {
		return nil
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO targets (document_id, section_id, target_type, name_vi, name_en, unit,
			target_value, target_min, target_max, target_year, baseline_value, baseline_year,
			raw_text_vi, metadata)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("preparing target insert: %w", err)
	}
	defer stmt.Close()

	for _, group := range res.SectionTargets {
		var sectionID sql.NullInt64
		if id, ok := sectionIDs[group.SortOrder]; ok {
			sectionID = sql.NullInt64{Int64: id, Valid: true}
		}
		for _, t := range group.Targets {
			metaJSON := "{}"
			if len(t.Metadata) > 0 {
				b, err := json.Marshal(t.Metadata)
				if err != nil {
					return fmt.Errorf("marshalling target metadata: %w", err)
				}
				metaJSON = string(b)
			}
			_, err := stmt.ExecContext(ctx, res.DocID, sectionID, string(t.Type), t.NameVi, t.NameEn, t.Unit,
				nullFloat(t.Value), nullFloat(t.Min), nullFloat(t.Max), nullInt(t.Year),
				nullFloat(t.BaselineValue), nullInt(t.BaselineYear), t.RawTextVi, metaJSON)
			if err != nil {
				return fmt.Errorf("inserting target %q: %w", t.NameVi, err)
			}
		}
	}
	return nil
}

func insertAppendices(ctx context.Context, tx *sql.Tx, res *pipeline.Result) error {
	if len(res.Appendices) == 0 {
		return nil
	}

	appStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO appendices (document_id, appendix_number, title_vi, appendix_type, columns)
		VALUES (?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("preparing appendix insert: %w", err)
	}
	defer appStmt.Close()

	rowStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO appendix_rows (appendix_id, row_number, sort_order, data)
		VALUES (?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("preparing appendix row insert: %w", err)
	}
	defer rowStmt.Close()

	for _, app := range res.Appendices {
		colsJSON := "[]"
		if len(app.Columns) > 0 {
			b, err := json.Marshal(app.Columns)
			if err != nil {
				return fmt.Errorf("marshalling appendix columns: %w", err)
			}
			colsJSON = string(b)
		}
		r, err := appStmt.ExecContext(ctx, res.DocID, app.Number, app.TitleVi, string(app.Type), colsJSON)
		if err != nil {
			return fmt.Errorf("inserting appendix %d: %w", app.Number, err)
		}
		appID, err := r.LastInsertId()
		if err != nil {
			return fmt.Errorf("appendix insert id: %w", err)
		}
		for _, row := range app.Rows {
			dataJSON := "{}"
			if len(row.Data) > 0 {
				b, err := json.Marshal(row.Data)
				if err != nil {
					return fmt.Errorf("marshalling appendix row: %w", err)
				}
				dataJSON = string(b)
			}
			if _, err := rowStmt.ExecContext(ctx, appID, row.RowNumber, row.SortOrder, dataJSON); err != nil {
				return fmt.Errorf("inserting appendix row %d: %w", row.RowNumber, err)
			}
		}
	}
	return nil
}

// FindByContentHash returns the id of the most recently updated
// document holding this content, or "" when none does.
func (s *Store) FindByContentHash(ctx context.Context, hash string) (string, error) {
	var id string
	err := s.db.QueryRowContext(ctx,
		"SELECT id FROM documents WHERE content_hash = ? ORDER BY updated_at DESC LIMIT 1", hash).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("querying content hash: %w", err)
	}
	return id, nil
}

// DeleteDocument removes a document and, through the cascade, its
// sections, targets, and appendices. Returns ErrNotFound when no such
// document exists.
func (s *Store) DeleteDocument(ctx context.Context, docID string) error {
	r, err := s.db.ExecContext(ctx, "DELETE FROM documents WHERE id = ?", docID)
	if err != nil {
		return fmt.Errorf("deleting document: %w", err)
	}
	n, err := r.RowsAffected()
	if err != nil {
		return fmt.Errorf("deleting document: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func nullFloat(p *float64) sql.NullFloat64 {
	if p == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *p, Valid: true}
}

func nullInt(p *int) sql.NullInt64 {
	if p == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*p), Valid: true}
}

func floatPtr(n sql.NullFloat64) *float64 {
	if !n.Valid {
		return nil
	}
	f := n.Float64
	return &f
}

func intPtr(n sql.NullInt64) *int {
	if !n.Valid {
		return nil
	}
	i := int(n.Int64)
	return &i
}
