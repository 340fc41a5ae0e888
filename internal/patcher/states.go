package patcher

// State identifies a position in the orchestration state machine.
// States mark completed stages; StateFailed is terminal and reachable
// from any non-terminal state.
type State int

const (
	// StateIdle is the initial state of every run
	StateIdle State = iota
	// StateFetchedSource: the installed binary has been pulled from the hub
	StateFetchedSource
	// StateVerifiedSource: its digest matches the catalog source digest
	StateVerifiedSource
	// StateBackedUp: the local backup file has been written
	StateBackedUp
	// StatePatched: the delta payload has been applied in memory
	StatePatched
	// StateVerifiedPatched: the patched buffer matches the catalog patched digest
	StateVerifiedPatched
	// StateValidatedBackup: (undo path) the backup file digest matches the source digest
	StateValidatedBackup
	// StateServiceStopped: the dependent service has been stopped on the hub
	StateServiceStopped
	// StateTransferred: the new binary has been pushed and renamed into place
	StateTransferred
	// StateVerifiedRemote: the installed binary's remote digest matches expectations
	StateVerifiedRemote
	// StateRestarted: the dependent service is running again
	StateRestarted
	// StateDone is the terminal success state
	StateDone
	// StateFailed is the terminal failure state
	StateFailed
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "Idle"
	case StateFetchedSource:
		return "FetchedSource"
	case StateVerifiedSource:
		return "VerifiedSource"
	case StateBackedUp:
		return "BackedUp"
	case StatePatched:
		return "Patched"
	case StateVerifiedPatched:
		return "VerifiedPatched"
	case StateValidatedBackup:
		return "ValidatedBackup"
	case StateServiceStopped:
		return "ServiceStopped"
	case StateTransferred:
		return "Transferred"
	case StateVerifiedRemote:
		return "VerifiedRemote"
	case StateRestarted:
		return "Restarted"
	case StateDone:
		return "Done"
	case StateFailed:
		return "Failed"
	default:
		return "Unknown"
	}
}

// PatchStepNames are the operator-facing stage names of the patch path,
// in execution order. Used by the CLI progress display.
var PatchStepNames = []string{
	"Fetching installed binary",
	"Verifying source version",
	"Writing local backup",
	"Applying delta payload",
	"Verifying patched binary",
	"Stopping service",
	"Transferring patched binary",
	"Verifying remote binary",
	"Restarting service",
}

// UndoStepNames are the operator-facing stage names of the undo path.
var UndoStepNames = []string{
	"Validating backup file",
	"Stopping service",
	"Transferring original binary",
	"Verifying remote binary",
	"Restarting service",
}
