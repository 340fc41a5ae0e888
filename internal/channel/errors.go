package channel

import "fmt"

// ConnectError represents a failure to establish the remote session.
type ConnectError struct {
	// Addr is the host:port that could not be reached
	Addr string
	// Transport names the transport that failed ("ssh" or "ws")
	Transport string
	// Underlying error
	Err error
}

func (e *ConnectError) Error() string {
	return fmt.Sprintf("failed to connect to hub at %s over %s: %v\n"+
		"Hint: Check that the hub is powered on and reachable, and that the\n"+
		"chosen transport is enabled on it (dropbear for ssh, setup mode for ws).",
		e.Addr, e.Transport, e.Err)
}

func (e *ConnectError) Unwrap() error {
	return e.Err
}

// PullError represents a failed remote file read.
type PullError struct {
	// Path is the remote path that could not be read
	Path string
	// Stderr is any remote error output (may be empty)
	Stderr string
	// Underlying error
	Err error
}

func (e *PullError) Error() string {
	if e.Stderr != "" {
		return fmt.Sprintf("failed to pull %s: %v (remote: %s)", e.Path, e.Err, e.Stderr)
	}
	return fmt.Sprintf("failed to pull %s: %v", e.Path, e.Err)
}

func (e *PullError) Unwrap() error {
	return e.Err
}

// PushError represents a failed remote file write.
type PushError struct {
	// Path is the remote path that could not be written
	Path string
	// Stderr is any remote error output (may be empty)
	Stderr string
	// Underlying error
	Err error
}

func (e *PushError) Error() string {
	if e.Stderr != "" {
		return fmt.Sprintf("failed to push %s: %v (remote: %s)", e.Path, e.Err, e.Stderr)
	}
	return fmt.Sprintf("failed to push %s: %v", e.Path, e.Err)
}

func (e *PushError) Unwrap() error {
	return e.Err
}

// ExecError represents a transport failure while running a remote
// command. A command that runs and exits non-zero is not an ExecError.
type ExecError struct {
	// Command is the remote command that failed to run
	Command string
	// Underlying error
	Err error
}

func (e *ExecError) Error() string {
	return fmt.Sprintf("failed to execute %q on hub: %v", e.Command, e.Err)
}

func (e *ExecError) Unwrap() error {
	return e.Err
}
