//go:build unix

package completion

import (
	"errors"
	"fmt"

	"golang.org/x/sys/unix"
)

// UnixSignaler delivers a signal to a whole process group.
type UnixSignaler struct {
	// Signal is sent to the group. Zero means SIGKILL.
	Signal unix.Signal
}

// KillGroup signals the process group whose id is pid.
//
// ESRCH maps to SignalAlreadyAbsent. The caller's own process group is never
// signalled.
func (s UnixSignaler) KillGroup(pid int) (SignalOutcome, error) {
	if pid <= 1 {
		return SignalError, fmt.Errorf("invalid process group id %d", pid)
	}
	if pid == unix.Getpgrp() {
		return SignalError, fmt.Errorf("refusing to signal own process group %d", pid)
	}

	sig := s.Signal
	if sig == 0 {
		sig = unix.SIGKILL
	}

	err := unix.Kill(-pid, sig)
	switch {
	case err == nil:
		return SignalTerminated, nil
	case errors.Is(err, unix.ESRCH):
		return SignalAlreadyAbsent, nil
	default:
		return SignalError, err
	}
}
