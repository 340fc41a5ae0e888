package patcher

import (
	"errors"
	"fmt"
)

// FailureKind classifies why a run failed. Every kind maps to a
// distinct process exit code so scripted invocations can branch on the
// outcome without parsing output.
type FailureKind int

const (
	// FailureFetch: the installed binary could not be pulled from the hub
	FailureFetch FailureKind = iota
	// FailureVersionMismatch: the installed binary is not the version the payload was built for
	FailureVersionMismatch
	// FailurePatchApply: the delta payload was malformed or did not fit the input
	FailurePatchApply
	// FailurePatchIntegrity: the patched buffer did not match the expected digest
	FailurePatchIntegrity
	// FailureTransfer: the push or the remote rename failed
	FailureTransfer
	// FailureCorruptedTransfer: the binary on the hub does not match what was sent
	FailureCorruptedTransfer
	// FailureBackup: the backup file could not be written, read or validated
	FailureBackup
	// FailureServiceControl: stopping or restarting the service failed
	FailureServiceControl
)

// Exit codes for scripted use. Zero is success, one is any error that
// is not a classified stage failure (bad flags, no such target, ...).
const (
	ExitOK                = 0
	ExitGenericError      = 1
	ExitFetch             = 10
	ExitVersionMismatch   = 11
	ExitPatchApply        = 12
	ExitPatchIntegrity    = 13
	ExitTransfer          = 14
	ExitCorruptedTransfer = 15
	ExitBackup            = 16
	ExitServiceControl    = 17
)

// String returns the kind name used in logs and error text.
func (k FailureKind) String() string {
	switch k {
	case FailureFetch:
		return "fetch"
	case FailureVersionMismatch:
		return "version-mismatch"
	case FailurePatchApply:
		return "patch-apply"
	case FailurePatchIntegrity:
		return "patch-integrity"
	case FailureTransfer:
		return "transfer"
	case FailureCorruptedTransfer:
		return "corrupted-transfer"
	case FailureBackup:
		return "backup"
	case FailureServiceControl:
		return "service-control"
	default:
		return "unknown"
	}
}

func (k FailureKind) exitCode() int {
	switch k {
	case FailureFetch:
		return ExitFetch
	case FailureVersionMismatch:
		return ExitVersionMismatch
	case FailurePatchApply:
		return ExitPatchApply
	case FailurePatchIntegrity:
		return ExitPatchIntegrity
	case FailureTransfer:
		return ExitTransfer
	case FailureCorruptedTransfer:
		return ExitCorruptedTransfer
	case FailureBackup:
		return ExitBackup
	case FailureServiceControl:
		return ExitServiceControl
	default:
		return ExitGenericError
	}
}

// StageError is the terminal error of a failed run. It records which
// stage failed, whether the hub's installed binary may differ from its
// pre-run state, and the underlying cause.
type StageError struct {
	// Kind classifies the failure
	Kind FailureKind

	// State is the last state the run reached before failing
	State State

	// RemoteModified is true when the installed binary on the hub was
	// replaced (or may have been) before the failure. When false the
	// hub is untouched and the run is safe to repeat.
	RemoteModified bool

	// ServiceStopped is true when the dependent service was stopped and
	// has not been confirmed running again.
	ServiceStopped bool

	// Err is the underlying cause
	Err error
}

// Error implements the error interface.
func (e *StageError) Error() string {
	return fmt.Sprintf("%s failed (after %s): %v", e.Kind, e.State, e.Err)
}

// Unwrap returns the underlying error.
func (e *StageError) Unwrap() error {
	return e.Err
}

// Remediation returns operator guidance for this failure. Post-write
// failures always point at the undo path; pre-write failures are safe
// to retry by re-running the command.
func (e *StageError) Remediation() string {
	switch {
	case e.Kind == FailureCorruptedTransfer:
		return "The binary on the hub could not be confirmed good. Do not reboot the hub.\n" +
			"Restore the original binary with:  smartap-hubfix undo --backup <backup file>"
	case e.RemoteModified:
		return "The installed binary on the hub was replaced before this failure.\n" +
			"If the service does not come up, restore the original binary with:\n" +
			"  smartap-hubfix undo --backup <backup file>"
	case e.ServiceStopped:
		return "The installed binary is unchanged but the service was stopped.\n" +
			"Start it again on the hub:  /etc/init.d/<service> start"
	case e.Kind == FailureVersionMismatch:
		return "The installed binary is not the version this payload was built for.\n" +
			"Check `smartap-hubfix check` output against `smartap-hubfix targets`."
	case e.Kind == FailureBackup:
		return "Fix the backup file problem and re-run. The hub was not touched."
	default:
		return "The hub was not modified. Fix the underlying problem and re-run."
	}
}

// ExitCode maps an error to the process exit code for it. A nil error
// is success; a *StageError maps to its kind's code; anything else is
// the generic error code.
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}
	var se *StageError
	if errors.As(err, &se) {
		return se.Kind.exitCode()
	}
	return ExitGenericError
}
