package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/quangtrung-dev/planparse/internal/config"
	"github.com/quangtrung-dev/planparse/internal/extract"
	"github.com/quangtrung-dev/planparse/internal/textextract"
)

// Orchestrator manages the document processing pipeline.
type Orchestrator struct {
	jobs  *JobStore
	queue chan *Job
	texts *textextract.Extractor
	caps  textextract.Capabilities
	llm   extract.Extractor
	store Store
	log   *slog.Logger
	cfg   config.Config

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewOrchestrator creates the pipeline. The external-binary probe
// runs once here and its result is handed to every worker.
func NewOrchestrator(cfg config.Config, texts *textextract.Extractor, llm extract.Extractor, store Store, log *slog.Logger) *Orchestrator {
	return &Orchestrator{
		jobs:  NewJobStore(cfg.JobTTL),
		queue: make(chan *Job, cfg.MaxQueueSize),
		texts: texts,
		caps:  texts.ProbeCapabilities(),
		llm:   llm,
		store: store,
		log:   log,
		cfg:   cfg,
	}
}

// Start launches worker goroutines.
func (o *Orchestrator) Start(ctx context.Context) {
	workerCtx, cancel := context.WithCancel(ctx)
	o.cancel = cancel

	if !o.caps.OCRAvailable() {
		o.log.Warn("ocr binaries missing, scanned pdfs will be skipped",
			"pdftoppm", o.caps.Pdftoppm, "tesseract", o.caps.Tesseract)
	}

	for range o.cfg.WorkerCount {
		o.wg.Add(1)
		go func() {
			defer o.wg.Done()
			w := NewWorker(o.texts, o.caps, o.llm, o.store, o.log,
				o.cfg.MinMeaningfulLength, o.cfg.MaxConcurrentLeaves)
			for {
				select {
				case <-workerCtx.Done():
					return
				case job, ok := <-o.queue:
					if !ok {
						return
					}
					w.Process(workerCtx, job)
				}
			}
		}()
	}

	// Start job store cleanup.
	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		ticker := time.NewTicker(5 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-workerCtx.Done():
				return
			case <-ticker.C:
				o.jobs.Cleanup()
			}
		}
	}()
}

// Stop gracefully shuts down the pipeline.
func (o *Orchestrator) Stop() {
	if o.cancel != nil {
		o.cancel()
	}
	close(o.queue)
	o.wg.Wait()
}

// Submit queues a new job for processing.
func (o *Orchestrator) Submit(job *Job) error {
	o.jobs.Put(job)
	select {
	case o.queue <- job:
		return nil
	default:
		job.SetStatus(StatusFailed, "queue_full")
		return fmt.Errorf("job queue is full (%d)", o.cfg.MaxQueueSize)
	}
}

// GetJob returns a job by ID.
func (o *Orchestrator) GetJob(id string) *Job {
	return o.jobs.Get(id)
}

// QueueDepth returns current queue depth.
func (o *Orchestrator) QueueDepth() int {
	return len(o.queue)
}

// Capabilities reports which external binaries the probe found.
func (o *Orchestrator) Capabilities() textextract.Capabilities {
	return o.caps
}

// LLMStats returns call latencies for the Claude client, nil when the
// service runs rule-based only.
func (o *Orchestrator) LLMStats() *extract.LLMStats {
	la, ok := o.llm.(*extract.LlmAssisted)
	if !ok || la.Client() == nil {
		return nil
	}
	return la.Client().Stats
}
