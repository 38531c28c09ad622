package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/quangtrung-dev/planparse/internal/appendix"
	"github.com/quangtrung-dev/planparse/internal/doctree"
	"github.com/quangtrung-dev/planparse/internal/pipeline"
	"github.com/quangtrung-dev/planparse/internal/target"
)

// DocumentSummary is the list-view projection of a stored document.
type DocumentSummary struct {
	ID               string    `json:"doc_id"`
	Filename         string    `json:"filename"`
	Title            string    `json:"title,omitempty"`
	ContentHash      string    `json:"content_hash"`
	SourceType       string    `json:"source_type"`
	Method           string    `json:"method"`
	Status           string    `json:"status"`
	MeaningfulLength int       `json:"meaningful_length"`
	TargetCount      int       `json:"target_count"`
	AppendixCount    int       `json:"appendix_count"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

const summaryColumns = `
	d.id, d.filename, d.title, d.content_hash, d.source_type, d.method, d.status, d.meaningful_length,
	d.created_at, d.updated_at,
	(SELECT COUNT(*) FROM targets t WHERE t.document_id = d.id) AS target_count,
	(SELECT COUNT(*) FROM appendices a WHERE a.document_id = d.id) AS appendix_count`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSummary(row rowScanner) (DocumentSummary, error) {
	var d DocumentSummary
	var createdAt, updatedAt sql.NullTime
	err := row.Scan(&d.ID, &d.Filename, &d.Title, &d.ContentHash, &d.SourceType, &d.Method,
		&d.Status, &d.MeaningfulLength, &createdAt, &updatedAt, &d.TargetCount, &d.AppendixCount)
	if err != nil {
		return DocumentSummary{}, err
	}
	if createdAt.Valid {
		d.CreatedAt = createdAt.Time
	}
	if updatedAt.Valid {
		d.UpdatedAt = updatedAt.Time
	}
	return d, nil
}

// GetDocument returns one document's summary.
func (s *Store) GetDocument(ctx context.Context, docID string) (*DocumentSummary, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+summaryColumns+" FROM documents d WHERE d.id = ?", docID)
	d, err := scanSummary(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scanning document: %w", err)
	}
	return &d, nil
}

// ListDocuments returns summaries newest first. A non-positive limit
// defaults to 50.
func (s *Store) ListDocuments(ctx context.Context, limit, offset int) ([]DocumentSummary, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	rows, err := s.db.QueryContext(ctx,
		"SELECT "+summaryColumns+" FROM documents d ORDER BY d.created_at DESC, d.id LIMIT ? OFFSET ?",
		limit, offset)
	if err != nil {
		return nil, fmt.Errorf("querying documents: %w", err)
	}
	defer rows.Close()

	out := []DocumentSummary{}
	for rows.Next() {
		d, err := scanSummary(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning document: %w", err)
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating documents: %w", err)
	}
	return out, nil
}

// LoadResult reassembles the full parse for one document: section tree,
// per-section targets, and appendices with their rows.
func (s *Store) LoadResult(ctx context.Context, docID string) (*pipeline.Result, error) {
	res := &pipeline.Result{DocID: docID}

	var status, preamble, signature, errsJSON string
	var createdAt sql.NullTime
	err := s.db.QueryRowContext(ctx, `
		SELECT filename, title, content_hash, source_type, method, status,
			meaningful_length, preamble, signature_block, errors, created_at
		FROM documents WHERE id = ?
	`, docID).Scan(&res.Filename, &res.Title, &res.ContentHash, &res.SourceType, &res.Method,
		&status, &res.MeaningfulLength, &preamble, &signature, &errsJSON, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scanning document: %w", err)
	}

	res.Status = pipeline.JobStatus(status)
	if createdAt.Valid {
		res.CreatedAt = createdAt.Time
	}
	if errsJSON != "" && errsJSON != "[]" {
		if err := json.Unmarshal([]byte(errsJSON), &res.Errors); err != nil {
			return nil, fmt.Errorf("unmarshaling errors: %w", err)
		}
	}

	doc := &doctree.ParsedDocument{Preamble: preamble, SignatureBlock: signature}
	if err := s.loadSections(ctx, docID, doc); err != nil {
		return nil, err
	}
	res.Document = doc

	if res.SectionTargets, err = s.loadTargets(ctx, docID); err != nil {
		return nil, err
	}
	if res.Appendices, err = s.loadAppendices(ctx, docID); err != nil {
		return nil, err
	}
	return res, nil
}

// loadSections rebuilds the tree from flat rows. Parents are inserted
// before their children, so a single ordered pass reattaches everyone.
func (s *Store) loadSections(ctx context.Context, docID string, doc *doctree.ParsedDocument) error {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, parent_id, level, number, title, content, sort_order
		FROM sections WHERE document_id = ? ORDER BY sort_order
	`, docID)
	if err != nil {
		return fmt.Errorf("querying sections: %w", err)
	}
	defer rows.Close()

	byID := map[int64]*doctree.Section{}
	for rows.Next() {
		var id int64
		var parentID sql.NullInt64
		var levelName string
		sec := &doctree.Section{}
		if err := rows.Scan(&id, &parentID, &levelName, &sec.Number, &sec.Title, &sec.Content, &sec.SortOrder); err != nil {
			return fmt.Errorf("scanning section: %w", err)
		}
		lvl, ok := doctree.ParseLevel(levelName)
		if !ok {
			return fmt.Errorf("unknown section level %q", levelName)
		}
		sec.Level = lvl
		byID[id] = sec

		if parentID.Valid {
			parent, ok := byID[parentID.Int64]
			if !ok {
				return fmt.Errorf("section %d references missing parent %d", id, parentID.Int64)
			}
			parent.Children = append(parent.Children, sec)
		} else {
			doc.Sections = append(doc.Sections, sec)
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterating sections: %w", err)
	}
	return nil
}

// loadTargets groups stored targets back under their leaf sections,
// preserving insertion order.
func (s *Store) loadTargets(ctx context.Context, docID string) ([]pipeline.SectionTargets, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT sec.sort_order, sec.number, sec.title,
			t.target_type, t.name_vi, t.name_en, t.unit,
			t.target_value, t.target_min, t.target_max, t.target_year,
			t.baseline_value, t.baseline_year, t.raw_text_vi, t.metadata
		FROM targets t
		LEFT JOIN sections sec ON sec.id = t.section_id
		WHERE t.document_id = ?
		ORDER BY t.id
	`, docID)
	if err != nil {
		return nil, fmt.Errorf("querying targets: %w", err)
	}
	defer rows.Close()

	groups := []pipeline.SectionTargets{}
	idx := map[int]int{}
	for rows.Next() {
		var sortOrder sql.NullInt64
		var number, title sql.NullString
		var typ, metaJSON string
		var value, min, max, baseVal sql.NullFloat64
		var year, baseYear sql.NullInt64
		var t target.Target
		err := rows.Scan(&sortOrder, &number, &title,
			&typ, &t.NameVi, &t.NameEn, &t.Unit,
			&value, &min, &max, &year,
			&baseVal, &baseYear, &t.RawTextVi, &metaJSON)
		if err != nil {
			return nil, fmt.Errorf("scanning target: %w", err)
		}
		t.Type = target.Type(typ)
		t.Value = floatPtr(value)
		t.Min = floatPtr(min)
		t.Max = floatPtr(max)
		t.Year = intPtr(year)
		t.BaselineValue = floatPtr(baseVal)
		t.BaselineYear = intPtr(baseYear)
		if metaJSON != "" && metaJSON != "{}" {
			if err := json.Unmarshal([]byte(metaJSON), &t.Metadata); err != nil {
				return nil, fmt.Errorf("unmarshaling target metadata: %w", err)
			}
		}

		key := int(sortOrder.Int64)
		i, ok := idx[key]
		if !ok {
			groups = append(groups, pipeline.SectionTargets{
				SortOrder: key,
				Number:    number.String,
				Title:     title.String,
			})
			i = len(groups) - 1
			idx[key] = i
		}
		groups[i].Targets = append(groups[i].Targets, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating targets: %w", err)
	}
	return groups, nil
}

func (s *Store) loadAppendices(ctx context.Context, docID string) ([]appendix.Appendix, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, appendix_number, title_vi, appendix_type, columns
		FROM appendices WHERE document_id = ? ORDER BY id
	`, docID)
	if err != nil {
		return nil, fmt.Errorf("querying appendices: %w", err)
	}

	type stored struct {
		id  int64
		app appendix.Appendix
	}
	var apps []stored
	for rows.Next() {
		var st stored
		var typ, colsJSON string
		if err := rows.Scan(&st.id, &st.app.Number, &st.app.TitleVi, &typ, &colsJSON); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scanning appendix: %w", err)
		}
		st.app.Type = appendix.Type(typ)
		if colsJSON != "" && colsJSON != "[]" {
			if err := json.Unmarshal([]byte(colsJSON), &st.app.Columns); err != nil {
				rows.Close()
				return nil, fmt.Errorf("unmarshaling appendix columns: %w", err)
			}
		}
		apps = append(apps, st)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("iterating appendices: %w", err)
	}
	rows.Close()

	out := make([]appendix.Appendix, 0, len(apps))
	for _, st := range apps {
		if st.app.Rows, err = s.loadAppendixRows(ctx, st.id); err != nil {
			return nil, err
		}
		out = append(out, st.app)
	}
	return out, nil
}

func (s *Store) loadAppendixRows(ctx context.Context, appendixID int64) ([]appendix.Row, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT row_number, sort_order, data
		FROM appendix_rows WHERE appendix_id = ? ORDER BY sort_order
	`, appendixID)
	if err != nil {
		return nil, fmt.Errorf("querying appendix rows: %w", err)
	}
	defer rows.Close()

	var out []appendix.Row
	for rows.Next() {
		var r appendix.Row
		var dataJSON string
		if err := rows.Scan(&r.RowNumber, &r.SortOrder, &dataJSON); err != nil {
			return nil, fmt.Errorf("scanning appendix row: %w", err)
		}
		if dataJSON != "" && dataJSON != "{}" {
			if err := json.Unmarshal([]byte(dataJSON), &r.Data); err != nil {
				return nil, fmt.Errorf("unmarshaling appendix row: %w", err)
			}
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating appendix rows: %w", err)
	}
	return out, nil
}
