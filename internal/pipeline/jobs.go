package pipeline

import (
	"crypto/sha256"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// JobStatus represents the state of a document processing job.
type JobStatus string

const (
	StatusQueued            JobStatus = "queued"
	StatusExtractingText    JobStatus = "extracting_text"
	StatusParsingStructure  JobStatus = "parsing_structure"
	StatusExtractingTargets JobStatus = "extracting_targets"
	StatusParsingAppendices JobStatus = "parsing_appendices"
	StatusStoring           JobStatus = "storing"
	StatusCompleted         JobStatus = "completed"
	StatusPartial           JobStatus = "partial"
	StatusFailed            JobStatus = "failed"
	StatusSkipped           JobStatus = "skipped"
	StatusDupSkipped        JobStatus = "duplicate_skipped"
)

// Done reports whether the status is terminal.
func (s JobStatus) Done() bool {
	switch s {
	case StatusCompleted, StatusPartial, StatusFailed, StatusSkipped, StatusDupSkipped:
		return true
	}
	return false
}

// Job tracks the state of a single document run.
type Job struct {
	mu sync.Mutex

	ID    string `json:"job_id"`
	DocID string `json:"doc_id"`

	Status   JobStatus `json:"status"`
	Phase    string    `json:"phase"`
	Filename string    `json:"filename"`
	Title    string    `json:"title"`
	UseLLM   bool      `json:"use_llm"`

	Progress Progress `json:"progress"`

	ContentHash string    `json:"content_hash,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`

	// Internal: not serialized.
	fileData   []byte
	sourcePath string
	result     *Result
	errors     []string
}

// NewJob builds a queued job with a fresh ID. An empty docID gets a
// generated one, so every upload has a document identity.
func NewJob(docID, filename string, useLLM bool) *Job {
	if docID == "" {
		docID = uuid.NewString()
	}
	now := time.Now()
	return &Job{
		ID:        uuid.NewString(),
		DocID:     docID,
		Filename:  filename,
		UseLLM:    useLLM,
		Status:    StatusQueued,
		Phase:     "queued",
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Progress tracks processing progress.
type Progress struct {
	TotalLeaves     int      `json:"total_leaves"`
	LeavesProcessed int      `json:"leaves_processed"`
	TargetsFound    int      `json:"targets_found"`
	AppendicesFound int      `json:"appendices_found"`
	Errors          []string `json:"errors"`
}

// JobStore is a thread-safe in-memory job registry with TTL eviction.
type JobStore struct {
	mu   sync.Mutex
	jobs map[string]*Job
	ttl  time.Duration
}

func NewJobStore(ttl time.Duration) *JobStore {
	return &JobStore{
		jobs: make(map[string]*Job),
		ttl:  ttl,
	}
}

func (s *JobStore) Put(job *Job) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[job.ID] = job
}

func (s *JobStore) Get(id string) *Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.jobs[id]
}

// Cleanup removes expired jobs.
func (s *JobStore) Cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	for id, job := range s.jobs {
		if now.Sub(job.UpdatedAt) > s.ttl {
			delete(s.jobs, id)
		}
	}
}

// SetStatus updates job status atomically.
func (j *Job) SetStatus(status JobStatus, phase string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Status = status
	j.Phase = phase
	j.UpdatedAt = time.Now()
}

// AddError records an error.
func (j *Job) AddError(err string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.errors = append(j.errors, err)
	j.Progress.Errors = j.errors
	j.UpdatedAt = time.Now()
}

// IncrLeavesProcessed atomically bumps the processed-leaf counter.
func (j *Job) IncrLeavesProcessed() {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Progress.LeavesProcessed++
	j.UpdatedAt = time.Now()
}

// SetTotalLeaves records how many leaf sections the fan-out covers.
func (j *Job) SetTotalLeaves(n int) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Progress.TotalLeaves = n
	j.UpdatedAt = time.Now()
}

// AddTargets adds to the extracted-target count.
func (j *Job) AddTargets(n int) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Progress.TargetsFound += n
	j.UpdatedAt = time.Now()
}

// SetAppendices records the parsed appendix count.
func (j *Job) SetAppendices(n int) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Progress.AppendicesFound = n
	j.UpdatedAt = time.Now()
}

// SetTitle fills the document title once known.
func (j *Job) SetTitle(title string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Title = title
	j.UpdatedAt = time.Now()
}

// SetContentHash records the content hash once computed.
func (j *Job) SetContentHash(hash string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.ContentHash = hash
}

// SetFileData sets the raw file bytes for processing.
func (j *Job) SetFileData(data []byte) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.fileData = data
}

// FileData returns the raw file bytes.
func (j *Job) FileData() []byte {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.fileData
}

// SetSourcePath points the job at a file already on disk, as watch
// mode and the CLI do, so no temp copy is needed.
func (j *Job) SetSourcePath(path string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.sourcePath = path
}

// SourcePath returns the on-disk source, "" for uploaded bytes.
func (j *Job) SourcePath() string {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.sourcePath
}

// SetResult attaches the aggregate result.
func (j *Job) SetResult(res *Result) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.result = res
}

// Result returns the aggregate result, nil until the run finishes.
func (j *Job) Result() *Result {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.result
}

// JobSnapshot is a read-only, JSON-safe copy of job state.
type JobSnapshot struct {
	ID          string    `json:"job_id"`
	DocID       string    `json:"doc_id"`
	Status      JobStatus `json:"status"`
	Phase       string    `json:"phase"`
	Filename    string    `json:"filename"`
	Title       string    `json:"title"`
	UseLLM      bool      `json:"use_llm"`
	Progress    Progress  `json:"progress"`
	ContentHash string    `json:"content_hash,omitempty"`
}

// Snapshot returns a JSON-safe copy of the job state.
func (j *Job) Snapshot() JobSnapshot {
	j.mu.Lock()
	defer j.mu.Unlock()
	errs := j.Progress.Errors
	if errs == nil {
		errs = []string{}
	}
	return JobSnapshot{
		ID:          j.ID,
		DocID:       j.DocID,
		Status:      j.Status,
		Phase:       j.Phase,
		Filename:    j.Filename,
		Title:       j.Title,
		UseLLM:      j.UseLLM,
		ContentHash: j.ContentHash,
		Progress: Progress{
			TotalLeaves:     j.Progress.TotalLeaves,
			LeavesProcessed: j.Progress.LeavesProcessed,
			TargetsFound:    j.Progress.TargetsFound,
			AppendicesFound: j.Progress.AppendicesFound,
			Errors:          errs,
		},
	}
}

// ContentHashHex computes SHA-256 of content and returns hex string.
func ContentHashHex(data []byte) string {
	h := sha256.Sum256(data)
	return fmt.Sprintf("%x", h[:])
}
