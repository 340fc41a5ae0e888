package channel

import (
	"context"
	"strings"
)

// Channel is the remote file channel capability contract.
//
// Implementations must be safe to use from a single goroutine; callers
// never overlap operations. Every method blocks until the operation
// completes, fails, or the context is done.
type Channel interface {
	// Pull reads the file at remotePath and returns its contents.
	Pull(ctx context.Context, remotePath string) ([]byte, error)

	// Push writes data to remotePath, creating or truncating the file.
	Push(ctx context.Context, data []byte, remotePath string) error

	// Exec runs command on the remote shell and returns its output and
	// exit status. A non-zero exit status is reported in the result,
	// not as an error; errors are reserved for transport failures.
	Exec(ctx context.Context, command string) (*ExecResult, error)

	// Close releases the underlying connection.
	Close() error
}

// ExecResult holds the outcome of a remote command.
type ExecResult struct {
	// Stdout is the captured standard output
	Stdout string
	// Stderr is the captured standard error
	Stderr string
	// ExitCode is the remote exit status
	ExitCode int
}

// Ok reports whether the command exited zero.
func (r *ExecResult) Ok() bool {
	return r.ExitCode == 0
}

// shellQuote wraps s in single quotes for the hub's busybox shell,
// escaping embedded single quotes.
func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
