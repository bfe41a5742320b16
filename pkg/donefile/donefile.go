// Package donefile reads and writes the sentinel file a job's run script
// leaves behind when the job process exits.
//
// Layout inside a job's working directory:
//
//	<base>/<job_id>/genie/genie.done   done file (JSON, {"exitCode": N})
//	<base>/<job_id>/genie/logs/        job logs and the archive artifact
//
// The done file is written exactly once by the run script. Its absence is a
// meaningful signal (abnormal termination) that callers are expected to map
// to a failed job.
package donefile

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

const (
	// ControlDir is the job-internal directory holding Genie control files.
	ControlDir = "genie"

	// FileName is the done file name inside ControlDir.
	FileName = "genie.done"

	// LogsDir is the logs directory, relative to the job working directory.
	LogsDir = ControlDir + "/logs"

	// RunScript is the job entrypoint script in the job working directory.
	RunScript = "run.sh"
)

// DoneFile is the content of the sentinel file.
type DoneFile struct {
	ExitCode int `json:"exitCode"`
}

// ParseError indicates the done file is missing or could not be decoded.
type ParseError struct {
	Path string
	Err  error
}

// Error implements the error interface.
func (e *ParseError) Error() string {
	return fmt.Sprintf("done file %s: %v", e.Path, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *ParseError) Unwrap() error {
	return e.Err
}

// JobDir returns the working directory of a job under baseDir.
func JobDir(baseDir, jobID string) string {
	return filepath.Join(baseDir, jobID)
}

// Path returns the done file location for a job under baseDir.
func Path(baseDir, jobID string) string {
	return filepath.Join(JobDir(baseDir, jobID), ControlDir, FileName)
}

// Read loads and decodes the done file at path.
//
// Any failure, including a missing file, is returned as *ParseError.
func Read(path string) (DoneFile, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return DoneFile{}, &ParseError{Path: path, Err: err}
	}

	var raw struct {
		ExitCode *int `json:"exitCode"`
	}
	dec := json.NewDecoder(bytes.NewReader(b))
	if err := dec.Decode(&raw); err != nil {
		return DoneFile{}, &ParseError{Path: path, Err: err}
	}
	if raw.ExitCode == nil {
		return DoneFile{}, &ParseError{Path: path, Err: fmt.Errorf("missing exitCode")}
	}
	return DoneFile{ExitCode: *raw.ExitCode}, nil
}

// Write stores d at path, creating parent directories as needed.
//
// The file is written to a temp name and renamed into place so readers never
// observe a partial file.
func Write(path string, d DoneFile) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create done file dir: %w", err)
	}
	b, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("marshal done file: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), FileName+".tmp.*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if _, err := tmp.Write(append(b, '\n')); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write done file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close done file: %w", err)
	}
	return os.Rename(tmpName, path)
}
