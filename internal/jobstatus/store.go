package jobstatus

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/gofrs/flock"

	"grimoire/internal/logging"
	"grimoire/internal/progress"
)

const (
	activeDocument    = "active_jobs.json"
	completedDocument = "completed_jobs.json"
	lockFile          = "jobstatus.lock"

	// DefaultRetention is the number of completed records kept on disk.
	DefaultRetention = 100
)

// Store is the single-process job status repository. One mutex serializes
// every read-modify-write sequence including its paired document rewrite; the
// flock keeps a second process from sharing the documents.
type Store struct {
	mu        sync.Mutex
	dir       string
	retention int
	lock      *flock.Flock
	logger    *slog.Logger

	active    map[string]*Record
	completed map[string]*Record
}

// Option configures optional Store behavior.
type Option func(*Store)

// WithRetention overrides the completed-record retention cap.
func WithRetention(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.retention = n
		}
	}
}

// WithLogger sets the store's logging destination.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		s.logger = logging.NewComponentLogger(logger, "jobstatus")
	}
}

// Open loads (or initializes) the job status documents under dir and acquires
// the single-instance lock. Unreadable or corrupt documents start the store
// empty rather than failing.
func Open(dir string, opts ...Option) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("ensure status directory: %w", err)
	}

	store := &Store{
		dir:       dir,
		retention: DefaultRetention,
		logger:    logging.NewNop(),
		active:    make(map[string]*Record),
		completed: make(map[string]*Record),
	}
	for _, opt := range opts {
		opt(store)
	}

	store.lock = flock.New(filepath.Join(dir, lockFile))
	ok, err := store.lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire status store lock: %w", err)
	}
	if !ok {
		return nil, errors.New("job status store is locked by another process")
	}

	store.active = store.loadDocument(filepath.Join(dir, activeDocument))
	store.completed = store.loadDocument(filepath.Join(dir, completedDocument))
	return store, nil
}

// Close releases the single-instance lock.
func (s *Store) Close() error {
	if s == nil || s.lock == nil {
		return nil
	}
	return s.lock.Unlock()
}

// CreateJob inserts a queued record for a job about to run.
func (s *Store) CreateJob(jobID, sourcePath, environment string) (*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.active[jobID]; exists {
		return nil, fmt.Errorf("job %s already active", jobID)
	}

	now := time.Now().UTC()
	record := &Record{
		JobID:       jobID,
		SourcePath:  sourcePath,
		Environment: environment,
		State:       StateQueued,
		QueuedAt:    now,
		UpdatedAt:   now,
		CreatedAt:   now,
	}
	s.active[jobID] = record
	if err := s.persistLocked(); err != nil {
		return nil, err
	}
	return record.clone(), nil
}

// UpdateFromProgress replaces an active record's fields from a live progress
// snapshot, preserving the original queue timestamps. Unknown jobs are
// inserted as a fresh projection.
func (s *Store) UpdateFromProgress(job *progress.JobProgress) error {
	if job == nil {
		return errors.New("job progress is nil")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	projected := projectProgress(job)
	projected.UpdatedAt = time.Now().UTC()
	if existing, ok := s.active[job.JobID]; ok {
		projected.QueuedAt = existing.QueuedAt
		projected.CreatedAt = existing.CreatedAt
	}
	s.active[job.JobID] = projected
	return s.persistLocked()
}

// CompleteJob applies terminal fields and moves the record from active to
// completed, then enforces retention. Completing an unknown job is a warned
// no-op so a late result cannot crash the daemon.
func (s *Store) CompleteJob(jobID string, result Result) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.active[jobID]
	if !ok {
		s.logger.Warn("complete for unknown job ignored",
			logging.String(logging.FieldJobID, jobID),
			logging.String(logging.FieldEventType, "jobstatus_unknown_complete"),
		)
		return nil
	}

	endedAt := result.EndedAt
	if endedAt.IsZero() {
		endedAt = time.Now().UTC()
	}
	record.State = result.Status
	record.EndedAt = &endedAt
	record.UpdatedAt = endedAt
	record.ProcessingTime = result.ProcessingTime
	record.ErrorMessage = result.ErrorMessage
	record.ArtifactsPath = result.ArtifactsPath
	record.Worker = result.Worker
	if record.StartedAt != nil {
		record.WaitTime = record.StartedAt.Sub(record.QueuedAt).Seconds()
	}

	delete(s.active, jobID)
	s.completed[jobID] = record
	s.enforceRetentionLocked()
	return s.persistLocked()
}

// JobStatus returns the record for a job, checking active then completed.
func (s *Store) JobStatus(jobID string) (*Record, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if record, ok := s.active[jobID]; ok {
		return record.clone(), true
	}
	if record, ok := s.completed[jobID]; ok {
		return record.clone(), true
	}
	return nil, false
}

// ActiveJobs returns all active records ordered by queue time.
func (s *Store) ActiveJobs() []*Record {
	s.mu.Lock()
	defer s.mu.Unlock()

	records := make([]*Record, 0, len(s.active))
	for _, record := range s.active {
		records = append(records, record.clone())
	}
	sort.Slice(records, func(i, j int) bool {
		return records[i].QueuedAt.Before(records[j].QueuedAt)
	})
	return records
}

// History returns completed records sorted most-recent-first, optionally
// filtered by environment. A non-positive limit returns everything retained.
func (s *Store) History(limit int, environment string) []*Record {
	s.mu.Lock()
	defer s.mu.Unlock()

	records := make([]*Record, 0, len(s.completed))
	for _, record := range s.completed {
		if environment != "" && record.Environment != environment {
			continue
		}
		records = append(records, record.clone())
	}
	sort.Slice(records, func(i, j int) bool {
		return endedAfter(records[i], records[j])
	})
	if limit > 0 && len(records) > limit {
		records = records[:limit]
	}
	return records
}

// Statistics aggregates counts and averages, optionally per environment.
// It never fails on partial or empty data.
func (s *Store) Statistics(environment string) Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	var stats Stats
	for _, record := range s.active {
		if environment != "" && record.Environment != environment {
			continue
		}
		stats.ActiveJobs++
	}

	var processingTotal float64
	for _, record := range s.completed {
		if environment != "" && record.Environment != environment {
			continue
		}
		stats.TotalCompleted++
		if record.State == StateCompleted {
			stats.Successful++
			processingTotal += record.ProcessingTime
		} else {
			stats.Failed++
		}
	}
	if stats.TotalCompleted > 0 {
		stats.SuccessRate = float64(stats.Successful) / float64(stats.TotalCompleted) * 100
	}
	if stats.Successful > 0 {
		stats.AverageProcessingTime = processingTotal / float64(stats.Successful)
	}
	return stats
}

// MarkStaleRunning flags running records last updated before the cutoff as
// failed without touching whatever goroutine may still be executing them.
// Returns the number of records swept.
func (s *Store) MarkStaleRunning(before time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	swept := 0
	for _, record := range s.active {
		if record.State != StateRunning || !record.UpdatedAt.Before(before) {
			continue
		}
		record.State = StateFailed
		record.ErrorMessage = "marked stale by operator sweep"
		record.UpdatedAt = time.Now().UTC()
		swept++
	}
	if swept == 0 {
		return 0, nil
	}
	return swept, s.persistLocked()
}

func (s *Store) enforceRetentionLocked() {
	if len(s.completed) <= s.retention {
		return
	}
	records := make([]*Record, 0, len(s.completed))
	for _, record := range s.completed {
		records = append(records, record)
	}
	sort.Slice(records, func(i, j int) bool {
		return endedAfter(records[i], records[j])
	})
	for _, record := range records[s.retention:] {
		delete(s.completed, record.JobID)
	}
}

// endedAfter orders records newest-end-time first; records without an end time
// sort last.
func endedAfter(a, b *Record) bool {
	switch {
	case a.EndedAt == nil:
		return false
	case b.EndedAt == nil:
		return true
	default:
		return a.EndedAt.After(*b.EndedAt)
	}
}

func (s *Store) loadDocument(path string) map[string]*Record {
	records := make(map[string]*Record)
	data, err := os.ReadFile(path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			s.logger.Warn("status document unreadable; starting empty",
				logging.String("path", path),
				logging.Error(err),
				logging.String(logging.FieldEventType, "jobstatus_document_unreadable"),
			)
		}
		return records
	}
	if err := json.Unmarshal(data, &records); err != nil {
		s.logger.Warn("status document corrupt; starting empty",
			logging.String("path", path),
			logging.Error(err),
			logging.String(logging.FieldEventType, "jobstatus_document_corrupt"),
		)
		return make(map[string]*Record)
	}
	return records
}

// persistLocked rewrites both documents wholesale. Callers must hold s.mu.
func (s *Store) persistLocked() error {
	if err := writeDocument(filepath.Join(s.dir, activeDocument), s.active); err != nil {
		return fmt.Errorf("persist active jobs: %w", err)
	}
	if err := writeDocument(filepath.Join(s.dir, completedDocument), s.completed); err != nil {
		return fmt.Errorf("persist completed jobs: %w", err)
	}
	return nil
}

func writeDocument(path string, records map[string]*Record) error {
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
