package transfer

import "fmt"

// TransferError reports a failed file transfer.
type TransferError struct {
	// Op is the step that failed: "parse", "open", "stat" or "put".
	Op string

	// LocalPath is the file being transferred.
	LocalPath string

	// URI is the destination as given by the caller.
	URI string

	// Err is the underlying error.
	Err error
}

// Error implements the error interface.
func (e *TransferError) Error() string {
	return fmt.Sprintf("transfer %s %s -> %s: %v", e.Op, e.LocalPath, e.URI, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *TransferError) Unwrap() error {
	return e.Err
}
