//go:build !unix

package completion

import "errors"

// UnixSignaler is unavailable on this platform; every call reports
// SignalError.
type UnixSignaler struct{}

// KillGroup always fails on platforms without process groups.
func (UnixSignaler) KillGroup(pid int) (SignalOutcome, error) {
	_ = pid
	return SignalError, errors.New("process groups are not supported on this platform")
}
