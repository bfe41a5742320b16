package completion

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"go.uber.org/zap"

	"github.com/3leaps/gogenie/pkg/donefile"
)

// defaultExcludes are never archived: the control directory (which also holds
// the archive itself) and the entrypoint script.
var defaultExcludes = []string{
	donefile.ControlDir,
	donefile.ControlDir + "/**",
	donefile.RunScript,
}

// ArchivePath returns where the archive of a job is written locally.
func ArchivePath(baseDir, jobID string) string {
	return filepath.Join(donefile.JobDir(baseDir, jobID), filepath.FromSlash(donefile.LogsDir), jobID+".tar.gz")
}

// Archiver packages a job's working directory and uploads it to the job's
// archive location.
type Archiver struct {
	baseDir  string
	search   Search
	transfer FileTransfer
	excludes []string
	metrics  Metrics
	logger   *zap.Logger
}

// NewArchiver returns an archiver for jobs under baseDir.
//
// extraExcludes are doublestar patterns relative to the job directory, added
// to the built-in exclusions. Invalid patterns are rejected.
func NewArchiver(baseDir string, search Search, transfer FileTransfer, extraExcludes []string, metrics Metrics, logger *zap.Logger) (*Archiver, error) {
	excludes := append([]string{}, defaultExcludes...)
	for _, p := range extraExcludes {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if !doublestar.ValidatePattern(p) {
			return nil, fmt.Errorf("invalid archive exclude pattern %q", p)
		}
		excludes = append(excludes, p)
	}
	if metrics == nil {
		metrics = nopMetrics{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Archiver{
		baseDir:  baseDir,
		search:   search,
		transfer: transfer,
		excludes: excludes,
		metrics:  metrics,
		logger:   logger,
	}, nil
}

// Archive uploads the job directory if the job has an archive location.
//
// Any failure increments the archival counter. Job status is never touched.
func (a *Archiver) Archive(ctx context.Context, jobID string) Outcome {
	log := a.logger.With(zap.String("job_id", jobID))
	log.Debug("Archiving job directory if enabled")

	job, err := a.search.GetJob(ctx, jobID)
	if err != nil {
		a.metrics.ArchivalFailure()
		log.Error("Could not archive directory for job", zap.Error(err))
		return OutcomeFailed
	}
	location := strings.TrimSpace(job.ArchiveLocation)
	if location == "" {
		log.Debug("No archive location; skipping archival")
		return OutcomeSkipped
	}

	jobDir := donefile.JobDir(a.baseDir, jobID)
	archivePath := ArchivePath(a.baseDir, jobID)
	if err := a.writeArchive(jobDir, archivePath); err != nil {
		a.metrics.ArchivalFailure()
		log.Error("Could not archive directory for job", zap.String("archive", archivePath), zap.Error(err))
		return OutcomeFailed
	}

	if err := a.transfer.PutFile(ctx, archivePath, location); err != nil {
		a.metrics.ArchivalFailure()
		log.Error("Could not upload archive for job", zap.String("archive_location", location), zap.Error(err))
		return OutcomeFailed
	}

	log.Info("Job directory archived", zap.String("archive_location", location))
	return OutcomeOK
}

// writeArchive writes a gzipped tarball of jobDir to dest, replacing any
// previous archive atomically.
func (a *Archiver) writeArchive(jobDir, dest string) error {
	st, err := os.Stat(jobDir)
	if err != nil {
		return fmt.Errorf("stat job dir: %w", err)
	}
	if !st.IsDir() {
		return fmt.Errorf("job dir %s is not a directory", jobDir)
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return fmt.Errorf("create logs dir: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(dest), filepath.Base(dest)+".tmp.*")
	if err != nil {
		return fmt.Errorf("create temp archive: %w", err)
	}
	tmpName := tmp.Name()
	defer func() {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
	}()

	gz := gzip.NewWriter(tmp)
	tw := tar.NewWriter(gz)
	if err := a.addTree(tw, jobDir); err != nil {
		return err
	}
	if err := tw.Close(); err != nil {
		return fmt.Errorf("close tar: %w", err)
	}
	if err := gz.Close(); err != nil {
		return fmt.Errorf("close gzip: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp archive: %w", err)
	}
	if err := os.Rename(tmpName, dest); err != nil {
		return fmt.Errorf("rename archive: %w", err)
	}
	return nil
}

func (a *Archiver) addTree(tw *tar.Writer, root string) error {
	return filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		if rel == "." {
			return nil
		}
		rel = filepath.ToSlash(rel)

		if a.excluded(rel) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return err
		}

		var link string
		switch {
		case info.Mode()&fs.ModeSymlink != 0:
			if link, err = os.Readlink(p); err != nil {
				return err
			}
		case info.Mode().IsRegular(), info.IsDir():
		default:
			// Sockets, devices and pipes are not archived.
			return nil
		}

		hdr, err := tar.FileInfoHeader(info, link)
		if err != nil {
			return err
		}
		hdr.Name = "./" + rel
		if info.IsDir() {
			hdr.Name += "/"
		}
		if err := tw.WriteHeader(hdr); err != nil {
			return fmt.Errorf("write header %s: %w", rel, err)
		}
		if !info.Mode().IsRegular() {
			return nil
		}
		return copyFile(tw, p)
	})
}

func (a *Archiver) excluded(rel string) bool {
	for _, pattern := range a.excludes {
		if ok, _ := doublestar.Match(pattern, rel); ok {
			return true
		}
		// A pattern naming a directory also covers its contents.
		if ok, _ := doublestar.Match(path.Join(pattern, "**"), rel); ok {
			return true
		}
	}
	return false
}

func copyFile(w io.Writer, p string) error {
	f, err := os.Open(p)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()
	if _, err := io.Copy(w, f); err != nil {
		return fmt.Errorf("archive %s: %w", p, err)
	}
	return nil
}
