package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/3leaps/gogenie/pkg/donefile"
	"github.com/3leaps/gogenie/pkg/jobregistry"
)

func zapNop() *zap.Logger { return zap.NewNop() }

func TestRunFinalize(t *testing.T) {
	cfg := testConfig(t)
	withAppConfig(t, cfg)

	origID, origPID := finalizeJobID, finalizePID
	defer func() { finalizeJobID, finalizePID = origID, origPID }()

	require.NoError(t, os.MkdirAll(donefile.JobDir(cfg.Jobs.Dir, "job-7"), 0o755))
	require.NoError(t, donefile.Write(donefile.Path(cfg.Jobs.Dir, "job-7"), donefile.DoneFile{ExitCode: 0}))

	store := jobregistry.NewStore(cfg.Jobs.RegistryDir)
	now := time.Now().UTC()
	require.NoError(t, store.Write(&jobregistry.JobRecord{JobID: "job-7", Status: jobregistry.JobStatusRunning, CreatedAt: now}))
	require.NoError(t, store.PutJobRequest(&jobregistry.JobRequest{JobID: "job-7", User: "alice", CreatedAt: now}))

	finalizeJobID = "job-7"
	finalizePID = 0

	c := newTestCommand()
	var out bytes.Buffer
	c.SetOut(&out)
	require.NoError(t, runFinalize(c, nil))

	rec, err := store.Get("job-7")
	require.NoError(t, err)
	assert.Equal(t, jobregistry.JobStatusSucceeded, rec.Status)

	text := out.String()
	assert.Contains(t, text, "job job-7: done")
	assert.Contains(t, text, "status")
	assert.Contains(t, text, "archive  skipped")
	assert.Contains(t, text, "notify   skipped")
}

func TestRunFinalize_BlankJobID(t *testing.T) {
	withAppConfig(t, testConfig(t))
	origID := finalizeJobID
	defer func() { finalizeJobID = origID }()

	finalizeJobID = "  "
	assert.Error(t, runFinalize(newTestCommand(), nil))
}

func TestConfigCommandMasksPassword(t *testing.T) {
	cfg := testConfig(t, map[string]any{"mail": map[string]any{"password": "hunter2"}})
	withAppConfig(t, cfg)

	c := newTestCommand()
	var out bytes.Buffer
	c.SetOut(&out)
	require.NoError(t, configCmd.RunE(c, nil))

	assert.Contains(t, out.String(), "registry_dir: "+filepath.Clean(cfg.Jobs.RegistryDir))
	assert.Contains(t, out.String(), "********")
	assert.NotContains(t, out.String(), "hunter2")
}
