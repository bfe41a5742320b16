//go:build unix

package completion

import (
	"os/exec"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

func TestUnixSignaler_KillsLiveGroupThenReportsAbsent(t *testing.T) {
	if _, err := exec.LookPath("sleep"); err != nil {
		t.Skip("sleep not available")
	}
	cmd := exec.Command("sleep", "60")
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	require.NoError(t, cmd.Start())
	pid := cmd.Process.Pid

	got, err := UnixSignaler{}.KillGroup(pid)
	require.NoError(t, err)
	assert.Equal(t, SignalTerminated, got)

	_ = cmd.Wait()

	got, err = UnixSignaler{}.KillGroup(pid)
	require.NoError(t, err)
	assert.Equal(t, SignalAlreadyAbsent, got)
}

func TestUnixSignaler_RefusesUnsafeTargets(t *testing.T) {
	for _, pid := range []int{0, 1, unix.Getpgrp()} {
		got, err := UnixSignaler{}.KillGroup(pid)
		assert.Error(t, err, "pid %d", pid)
		assert.Equal(t, SignalError, got, "pid %d", pid)
	}
}
