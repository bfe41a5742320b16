package jobregistry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
)

var (
	// ErrJobNotFound indicates no record exists for the job id.
	ErrJobNotFound = errors.New("job not found")

	// ErrStatusTransitionDenied is returned when an update would replace a
	// terminal status with a different one.
	ErrStatusTransitionDenied = errors.New("status transition denied: job already in terminal state")
)

// Store persists and loads job records and job requests from an on-disk
// directory.
//
// Directory layout:
//
//	<root>/<job_id>/job.json
//	<root>/<job_id>/request.json
//
// Store is safe for concurrent use. Updates to a single job are serialized.
type Store struct {
	root string
	mu   sync.Mutex
	now  func() time.Time
}

func NewStore(root string) *Store {
	return &Store{root: strings.TrimSpace(root), now: func() time.Time { return time.Now().UTC() }}
}

func (s *Store) RootDir() string {
	return s.root
}

func (s *Store) JobDir(jobID string) string {
	return filepath.Join(s.root, jobID)
}

func (s *Store) JobPath(jobID string) string {
	return filepath.Join(s.JobDir(jobID), "job.json")
}

func (s *Store) RequestPath(jobID string) string {
	return filepath.Join(s.JobDir(jobID), "request.json")
}

func (s *Store) ensureRoot() error {
	if strings.TrimSpace(s.root) == "" {
		return fmt.Errorf("job registry root dir is empty")
	}
	return os.MkdirAll(s.root, 0755)
}

func (s *Store) Write(record *JobRecord) error {
	if record == nil {
		return fmt.Errorf("job record is nil")
	}
	jobID := strings.TrimSpace(record.JobID)
	if jobID == "" {
		return fmt.Errorf("job_id is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writeJSON(jobID, s.JobPath(jobID), record)
}

// PutJobRequest stores the request for a job. An existing request is never
// overwritten.
func (s *Store) PutJobRequest(request *JobRequest) error {
	if request == nil {
		return fmt.Errorf("job request is nil")
	}
	jobID := strings.TrimSpace(request.JobID)
	if jobID == "" {
		return fmt.Errorf("job_id is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := os.Stat(s.RequestPath(jobID)); err == nil {
		return fmt.Errorf("job request already exists: %s", jobID)
	}
	return s.writeJSON(jobID, s.RequestPath(jobID), request)
}

func (s *Store) writeJSON(jobID, finalPath string, v any) error {
	if err := s.ensureRoot(); err != nil {
		return err
	}

	jobDir := s.JobDir(jobID)
	if err := os.MkdirAll(jobDir, 0755); err != nil {
		return fmt.Errorf("create job dir: %w", err)
	}

	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", filepath.Base(finalPath), err)
	}
	b = append(b, '\n')

	tmp, err := os.CreateTemp(jobDir, filepath.Base(finalPath)+".tmp.*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if _, err := tmp.Write(b); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}

	if err := os.Rename(tmpName, finalPath); err != nil {
		return fmt.Errorf("rename %s: %w", filepath.Base(finalPath), err)
	}
	return nil
}

func (s *Store) readJSON(path string, v any) error {
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return ErrJobNotFound
		}
		return err
	}

	trimmed := strings.TrimSpace(string(b))
	if trimmed == "" {
		return fmt.Errorf("%s is empty", filepath.Base(path))
	}
	if err := json.Unmarshal([]byte(trimmed), v); err != nil {
		return fmt.Errorf("parse %s: %w", filepath.Base(path), err)
	}
	return nil
}

func (s *Store) Get(jobID string) (*JobRecord, error) {
	jobID = strings.TrimSpace(jobID)
	if jobID == "" {
		return nil, fmt.Errorf("job_id is required")
	}
	var record JobRecord
	if err := s.readJSON(s.JobPath(jobID), &record); err != nil {
		return nil, err
	}
	return &record, nil
}

// GetJob returns the job record for jobID.
func (s *Store) GetJob(ctx context.Context, jobID string) (*JobRecord, error) {
	_ = ctx
	return s.Get(jobID)
}

// GetJobRequest returns the stored request for jobID.
func (s *Store) GetJobRequest(ctx context.Context, jobID string) (*JobRequest, error) {
	_ = ctx
	jobID = strings.TrimSpace(jobID)
	if jobID == "" {
		return nil, fmt.Errorf("job_id is required")
	}
	var request JobRequest
	if err := s.readJSON(s.RequestPath(jobID), &request); err != nil {
		return nil, err
	}
	return &request, nil
}

// SetExitCode records the exit code of a finished job and derives its status.
//
// A job that is already terminal keeps its status; only a missing exit code is
// filled in. Calling SetExitCode twice with the same code is a no-op.
func (s *Store) SetExitCode(ctx context.Context, jobID string, exitCode int) error {
	_ = ctx
	return s.update(jobID, func(rec *JobRecord) (bool, error) {
		if rec.Status.IsTerminal() {
			if rec.ExitCode != nil {
				return false, nil
			}
			code := exitCode
			rec.ExitCode = &code
			return true, nil
		}
		code := exitCode
		rec.ExitCode = &code
		rec.Status = StatusForExitCode(exitCode)
		rec.StatusMessage = fmt.Sprintf("Job finished with exit code %d", exitCode)
		return true, nil
	})
}

// UpdateJobStatus sets the job status and reason.
//
// Writing the terminal status a job already has is a no-op. Replacing a
// terminal status with a different one returns ErrStatusTransitionDenied.
func (s *Store) UpdateJobStatus(ctx context.Context, jobID string, status JobStatus, reason string) error {
	_ = ctx
	return s.update(jobID, func(rec *JobRecord) (bool, error) {
		if rec.Status.IsTerminal() {
			if rec.Status == status {
				return false, nil
			}
			return false, fmt.Errorf("%w: %s -> %s", ErrStatusTransitionDenied, rec.Status, status)
		}
		rec.Status = status
		rec.StatusMessage = reason
		return true, nil
	})
}

func (s *Store) update(jobID string, fn func(rec *JobRecord) (bool, error)) error {
	jobID = strings.TrimSpace(jobID)
	if jobID == "" {
		return fmt.Errorf("job_id is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var rec JobRecord
	if err := s.readJSON(s.JobPath(jobID), &rec); err != nil {
		return err
	}
	changed, err := fn(&rec)
	if err != nil || !changed {
		return err
	}

	now := s.now()
	rec.UpdatedAt = &now
	if rec.Status.IsTerminal() && rec.FinishedAt == nil {
		rec.FinishedAt = &now
	}
	return s.writeJSON(jobID, s.JobPath(jobID), &rec)
}

func (s *Store) List() ([]JobRecord, error) {
	if err := s.ensureRoot(); err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(s.root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read jobs root: %w", err)
	}

	out := make([]JobRecord, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		r, err := s.Get(entry.Name())
		if err != nil {
			continue
		}
		out = append(out, *r)
	}

	sort.Slice(out, func(i, j int) bool {
		return jobSortTime(out[i]).After(jobSortTime(out[j]))
	})

	return out, nil
}

func jobSortTime(r JobRecord) time.Time {
	if r.StartedAt != nil {
		return r.StartedAt.UTC()
	}
	return r.CreatedAt.UTC()
}
