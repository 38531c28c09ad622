package pipeline

import (
	"context"
	"time"

	"github.com/quangtrung-dev/planparse/internal/appendix"
	"github.com/quangtrung-dev/planparse/internal/doctree"
	"github.com/quangtrung-dev/planparse/internal/target"
)

// SectionTargets pairs one leaf section with the targets extracted
// from it. The slice on Result is ordered by SortOrder, so the merged
// view follows document order regardless of extraction concurrency.
type SectionTargets struct {
	SortOrder int             `json:"sort_order"`
	Number    string          `json:"number"`
	Title     string          `json:"title,omitempty"`
	Targets   []target.Target `json:"targets"`
}

// Result is the aggregate of one processed document: the parsed
// structure, the targets grouped per leaf section, the appendices, and
// every stage-local error that did not abort the run.
type Result struct {
	DocID       string `json:"doc_id"`
	Filename    string `json:"filename"`
	Title       string `json:"title,omitempty"`
	ContentHash string `json:"content_hash"`
	SourceType  string `json:"source_type"`
	Method      string `json:"method"`

	Status     JobStatus `json:"status"`
	SkipReason string    `json:"skip_reason,omitempty"`

	MeaningfulLength int `json:"meaningful_length"`

	Document       *doctree.ParsedDocument `json:"document,omitempty"`
	SectionTargets []SectionTargets        `json:"section_targets"`
	Appendices     []appendix.Appendix     `json:"appendices"`

	Errors    []string  `json:"errors,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// TargetCount sums targets across all sections.
func (r *Result) TargetCount() int {
	n := 0
	for _, st := range r.SectionTargets {
		n += len(st.Targets)
	}
	return n
}

// Store is what the worker needs from persistence. The SQLite
// implementation lives in internal/store; its query surface for the
// API is wider than this.
type Store interface {
	// SaveResult replaces any prior rows for the same document
	// identity and inserts the new parse in one transaction.
	SaveResult(ctx context.Context, res *Result) error
	// FindByContentHash returns the doc ID already holding this
	// content, or "" when none does.
	FindByContentHash(ctx context.Context, hash string) (string, error)
	// DeleteDocument removes a document and everything under it.
	DeleteDocument(ctx context.Context, docID string) error
}
