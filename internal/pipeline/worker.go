package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/quangtrung-dev/planparse/internal/appendix"
	"github.com/quangtrung-dev/planparse/internal/doctree"
	"github.com/quangtrung-dev/planparse/internal/extract"
	"github.com/quangtrung-dev/planparse/internal/structure"
	"github.com/quangtrung-dev/planparse/internal/target"
	"github.com/quangtrung-dev/planparse/internal/textextract"
)

// Worker processes a single document job end to end.
type Worker struct {
	texts  *textextract.Extractor
	caps   textextract.Capabilities
	llm    extract.Extractor
	store  Store
	log    *slog.Logger

	minMeaningful       int
	maxConcurrentLeaves int
}

// NewWorker wires a worker. store may be nil for one-shot CLI runs,
// in which case dedup and persistence are skipped.
func NewWorker(texts *textextract.Extractor, caps textextract.Capabilities, llm extract.Extractor, store Store, log *slog.Logger, minMeaningful, maxConcurrentLeaves int) *Worker {
	if maxConcurrentLeaves < 1 {
		maxConcurrentLeaves = 1
	}
	return &Worker{
		texts:               texts,
		caps:                caps,
		llm:                 llm,
		store:               store,
		log:                 log,
		minMeaningful:       minMeaningful,
		maxConcurrentLeaves: maxConcurrentLeaves,
	}
}

// Process runs the full pipeline for a job.
func (w *Worker) Process(ctx context.Context, job *Job) {
	log := w.log.With("job_id", job.ID, "doc_id", job.DocID)

	// Phase 1: acquire text.
	job.SetStatus(StatusExtractingText, "extracting text")
	path, cleanup, err := w.materialize(job)
	if err != nil {
		log.Error("cannot stage source file", "error", err)
		job.AddError(err.Error())
		job.SetStatus(StatusFailed, "extracting text")
		return
	}
	defer cleanup()

	res, err := w.texts.Extract(ctx, path)
	if err != nil {
		log.Error("text extraction failed", "error", err)
		job.AddError(fmt.Sprintf("extract text: %s", err))
		job.SetStatus(StatusFailed, "extracting text")
		return
	}
	for _, warn := range res.Warnings {
		log.Warn("extraction warning", "warning", warn)
	}

	text := res.Text
	meaningful := MeaningfulLength(text)

	// Phase 1.5: a thin text layer on a PDF usually means a scan.
	// Retry through OCR when the binaries are present.
	if meaningful < w.minMeaningful && res.SourceType == "pdf" && w.caps.OCRAvailable() {
		log.Info("text layer too thin, retrying with ocr", "meaningful_length", meaningful)
		ocrRes, ocrErr := w.texts.ExtractOCR(ctx, path)
		if ocrErr != nil {
			log.Warn("ocr retry failed", "error", ocrErr)
			job.AddError(fmt.Sprintf("ocr: %s", ocrErr))
		} else if ml := MeaningfulLength(ocrRes.Text); ml > meaningful {
			text = ocrRes.Text
			meaningful = ml
			res.Method = ocrRes.Method
			for _, warn := range ocrRes.Warnings {
				log.Warn("ocr warning", "warning", warn)
			}
		}
	}

	result := &Result{
		DocID:            job.DocID,
		Filename:         job.Filename,
		ContentHash:      ContentHashHex([]byte(text)),
		SourceType:       res.SourceType,
		Method:           res.Method,
		MeaningfulLength: meaningful,
		CreatedAt:        job.CreatedAt,
	}
	job.SetContentHash(result.ContentHash)

	// Phase 1.75: dedup. Reprocessing the same doc ID is allowed,
	// that is the delete-and-reparse path.
	if w.store != nil {
		existing, err := w.store.FindByContentHash(ctx, result.ContentHash)
		if err != nil {
			log.Warn("dedup check failed, proceeding", "error", err)
		} else if existing != "" && existing != job.DocID {
			log.Info("duplicate document, skipping", "existing_doc_id", existing)
			job.SetStatus(StatusDupSkipped, "dedup")
			return
		}
	}

	// Still too thin after the OCR attempt: a structured skip, not a
	// failure.
	if meaningful < w.minMeaningful {
		result.Status = StatusSkipped
		result.SkipReason = fmt.Sprintf("insufficient content: %d meaningful characters, need %d", meaningful, w.minMeaningful)
		log.Info("skipping document", "reason", result.SkipReason)
		job.SetResult(result)
		job.SetStatus(StatusSkipped, "insufficient content")
		return
	}

	// Phase 2: structure.
	job.SetStatus(StatusParsingStructure, "parsing structure")
	parsed := structure.NewParser().Parse(text)
	result.Document = parsed
	result.Title = job.Title
	if result.Title == "" {
		result.Title = deriveTitle(parsed.Preamble)
		job.SetTitle(result.Title)
	}
	var leaves []*doctree.Section
	for _, leaf := range parsed.Leaves() {
		if strings.TrimSpace(leaf.Text()) != "" {
			leaves = append(leaves, leaf)
		}
	}
	job.SetTotalLeaves(len(leaves))
	log.Info("parsed structure", "sections", len(parsed.Flatten()), "leaves", len(leaves))

	// Phase 3: per-leaf target extraction with bounded concurrency.
	job.SetStatus(StatusExtractingTargets, "extracting targets")
	extractor := w.pickExtractor(job)
	type leafResult struct {
		idx     int
		targets []target.Target
		err     error
	}
	results := make(chan leafResult, len(leaves))
	sem := make(chan struct{}, w.maxConcurrentLeaves)

	for i, leaf := range leaves {
		sem <- struct{}{}
		go func(i int, leaf *doctree.Section) {
			defer func() { <-sem }()
			targets, err := extractor.Extract(ctx, leaf.Text())
			results <- leafResult{idx: i, targets: targets, err: err}
		}(i, leaf)
	}

	perLeaf := make([][]target.Target, len(leaves))
	hadErrors := false
	for range leaves {
		r := <-results
		job.IncrLeavesProcessed()
		if r.err != nil {
			log.Error("target extraction failed", "leaf", r.idx, "error", r.err)
			msg := fmt.Sprintf("leaf %d: %s", r.idx, r.err)
			job.AddError(msg)
			result.Errors = append(result.Errors, msg)
			hadErrors = true
			continue
		}
		perLeaf[r.idx] = r.targets
	}

	// Merge in document order so the output is reproducible no matter
	// how the goroutines interleaved.
	for i, leaf := range leaves {
		if len(perLeaf[i]) == 0 {
			continue
		}
		result.SectionTargets = append(result.SectionTargets, SectionTargets{
			SortOrder: leaf.SortOrder,
			Number:    leaf.Number,
			Title:     leaf.Title,
			Targets:   perLeaf[i],
		})
	}
	job.AddTargets(result.TargetCount())
	log.Info("extraction complete", "targets", result.TargetCount(), "errors", hadErrors)

	// Phase 4: appendices. HTML is the richer source when present.
	job.SetStatus(StatusParsingAppendices, "parsing appendices")
	if res.HTML != "" {
		aps, err := appendix.FromHTML(strings.NewReader(res.HTML))
		if err != nil {
			log.Warn("html appendix parse failed, using text", "error", err)
			msg := fmt.Sprintf("appendix html: %s", err)
			job.AddError(msg)
			result.Errors = append(result.Errors, msg)
			result.Appendices = appendix.FromText(text)
		} else {
			result.Appendices = aps
		}
	} else {
		result.Appendices = appendix.FromText(text)
	}
	job.SetAppendices(len(result.Appendices))

	// Phase 5: persist.
	job.SetStatus(StatusStoring, "storing")
	if hadErrors {
		result.Status = StatusPartial
	} else {
		result.Status = StatusCompleted
	}
	if w.store != nil {
		if err := w.store.SaveResult(ctx, result); err != nil {
			log.Error("store failed", "error", err)
			job.AddError(fmt.Sprintf("store: %s", err))
			job.SetResult(result)
			job.SetStatus(StatusFailed, "storing")
			return
		}
	}

	job.SetResult(result)
	if hadErrors {
		job.SetStatus(StatusPartial, "done")
	} else {
		job.SetStatus(StatusCompleted, "done")
	}
}

// pickExtractor honors the per-job LLM flag. When the service carries
// no credentials the LLM strategy is already rule-based, so this can
// only ever degrade.
func (w *Worker) pickExtractor(job *Job) extract.Extractor {
	if job.UseLLM && w.llm != nil {
		return w.llm
	}
	return extract.RuleBased{}
}

// materialize returns an on-disk path for the job's source, staging
// uploaded bytes into a temp file that keeps the original extension
// (the extractor and the OCR binaries both dispatch on it).
func (w *Worker) materialize(job *Job) (string, func(), error) {
	if p := job.SourcePath(); p != "" {
		return p, func() {}, nil
	}
	ext := strings.ToLower(filepath.Ext(job.Filename))
	f, err := os.CreateTemp("", "planparse-*"+ext)
	if err != nil {
		return "", nil, fmt.Errorf("stage upload: %w", err)
	}
	if _, err := f.Write(job.FileData()); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", nil, fmt.Errorf("stage upload: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return "", nil, fmt.Errorf("stage upload: %w", err)
	}
	return f.Name(), func() { os.Remove(f.Name()) }, nil
}

// deriveTitle picks a display title out of the preamble. Resolutions
// put the subject on a "Về ..." line under the document kind; failing
// that, the first long line serves.
func deriveTitle(preamble string) string {
	lines := strings.Split(preamble, "\n")
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "Về ") && len([]rune(line)) >= 10 {
			return line
		}
	}
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if len([]rune(line)) >= 20 {
			return line
		}
	}
	for _, line := range lines {
		if line = strings.TrimSpace(line); line != "" {
			return line
		}
	}
	return ""
}
