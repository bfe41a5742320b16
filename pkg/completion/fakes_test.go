package completion

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/3leaps/gogenie/pkg/donefile"
	"github.com/3leaps/gogenie/pkg/jobregistry"
)

var errInjected = errors.New("injected failure")

type fakeStore struct {
	mu       sync.Mutex
	jobs     map[string]*jobregistry.JobRecord
	requests map[string]*jobregistry.JobRequest

	setExitErr    error
	updateErr     error
	getJobErr     error
	getRequestErr error

	setExitCalls []int
	updateCalls  []jobregistry.JobStatus
	reasons      []string
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		jobs:     map[string]*jobregistry.JobRecord{},
		requests: map[string]*jobregistry.JobRequest{},
	}
}

func (s *fakeStore) addJob(id, archiveLocation, email string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[id] = &jobregistry.JobRecord{JobID: id, Status: jobregistry.JobStatusRunning, ArchiveLocation: archiveLocation}
	s.requests[id] = &jobregistry.JobRequest{JobID: id, Email: email}
}

func (s *fakeStore) SetExitCode(ctx context.Context, jobID string, exitCode int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.setExitCalls = append(s.setExitCalls, exitCode)
	if s.setExitErr != nil {
		return s.setExitErr
	}
	job, ok := s.jobs[jobID]
	if !ok {
		return jobregistry.ErrJobNotFound
	}
	if !job.Status.IsTerminal() {
		job.Status = jobregistry.StatusForExitCode(exitCode)
	}
	return nil
}

func (s *fakeStore) UpdateJobStatus(ctx context.Context, jobID string, status jobregistry.JobStatus, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.updateCalls = append(s.updateCalls, status)
	s.reasons = append(s.reasons, reason)
	if s.updateErr != nil {
		return s.updateErr
	}
	job, ok := s.jobs[jobID]
	if !ok {
		return jobregistry.ErrJobNotFound
	}
	job.Status = status
	job.StatusMessage = reason
	return nil
}

func (s *fakeStore) GetJob(ctx context.Context, jobID string) (*jobregistry.JobRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.getJobErr != nil {
		return nil, s.getJobErr
	}
	job, ok := s.jobs[jobID]
	if !ok {
		return nil, jobregistry.ErrJobNotFound
	}
	cp := *job
	return &cp, nil
}

func (s *fakeStore) GetJobRequest(ctx context.Context, jobID string) (*jobregistry.JobRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.getRequestErr != nil {
		return nil, s.getRequestErr
	}
	req, ok := s.requests[jobID]
	if !ok {
		return nil, jobregistry.ErrJobNotFound
	}
	cp := *req
	return &cp, nil
}

func (s *fakeStore) status(id string) jobregistry.JobStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.jobs[id].Status
}

type putCall struct {
	localPath string
	remoteURI string
	content   []byte
}

type fakeTransfer struct {
	mu    sync.Mutex
	err   error
	calls []putCall
}

func (f *fakeTransfer) PutFile(ctx context.Context, localPath, remoteURI string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, _ := os.ReadFile(localPath)
	f.calls = append(f.calls, putCall{localPath: localPath, remoteURI: remoteURI, content: data})
	return f.err
}

type sentMail struct {
	to, subject, body string
}

type fakeMailer struct {
	mu   sync.Mutex
	err  error
	sent []sentMail
}

func (m *fakeMailer) SendEmail(ctx context.Context, to, subject, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, sentMail{to: to, subject: subject, body: body})
	return m.err
}

type fakeSignaler struct {
	mu      sync.Mutex
	outcome SignalOutcome
	err     error
	pids    []int
	panics  bool
}

func (s *fakeSignaler) KillGroup(pid int) (SignalOutcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pids = append(s.pids, pid)
	if s.panics {
		panic("signal blew up")
	}
	return s.outcome, s.err
}

type fakeMetrics struct {
	mu        sync.Mutex
	email     int
	archival  int
	doneFile  int
	final     int
	cleanup   int
	durations map[Stage]int
}

func newFakeMetrics() *fakeMetrics {
	return &fakeMetrics{durations: map[Stage]int{}}
}

func (m *fakeMetrics) EmailFailure()              { m.mu.Lock(); m.email++; m.mu.Unlock() }
func (m *fakeMetrics) ArchivalFailure()           { m.mu.Lock(); m.archival++; m.mu.Unlock() }
func (m *fakeMetrics) DoneFileProcessingFailure() { m.mu.Lock(); m.doneFile++; m.mu.Unlock() }
func (m *fakeMetrics) FinalStatusUpdateFailure()  { m.mu.Lock(); m.final++; m.mu.Unlock() }
func (m *fakeMetrics) ProcessGroupCleanupFailure() {
	m.mu.Lock()
	m.cleanup++
	m.mu.Unlock()
}
func (m *fakeMetrics) StageDuration(stage Stage, d time.Duration) {
	m.mu.Lock()
	m.durations[stage]++
	m.mu.Unlock()
}

// counts returns email, archival, done-file, final-status and cleanup counts.
func (m *fakeMetrics) counts() [5]int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return [5]int{m.email, m.archival, m.doneFile, m.final, m.cleanup}
}

// writeJobDir creates <base>/<id> with a done file, the run script and some
// output.
func writeJobDir(t *testing.T, base, id string, exitCode *int) string {
	t.Helper()
	dir := donefile.JobDir(base, id)
	require.NoError(t, os.MkdirAll(dir+"/genie/logs", 0o755))
	require.NoError(t, os.MkdirAll(dir+"/output", 0o755))
	require.NoError(t, os.WriteFile(dir+"/run.sh", []byte("#!/bin/sh\n"), 0o755))
	require.NoError(t, os.WriteFile(dir+"/stdout", []byte("hello\n"), 0o644))
	require.NoError(t, os.WriteFile(dir+"/output/result.csv", []byte("a,b\n1,2\n"), 0o644))
	require.NoError(t, os.WriteFile(dir+"/genie/logs/env.log", []byte("PATH=/bin\n"), 0o644))
	if exitCode != nil {
		require.NoError(t, donefile.Write(donefile.Path(base, id), donefile.DoneFile{ExitCode: *exitCode}))
	}
	return dir
}

func intPtr(v int) *int { return &v }
