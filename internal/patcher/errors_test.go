package patcher

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestExitCode(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{nil, ExitOK},
		{errors.New("unclassified"), ExitGenericError},
		{&StageError{Kind: FailureFetch}, ExitFetch},
		{&StageError{Kind: FailureVersionMismatch}, ExitVersionMismatch},
		{&StageError{Kind: FailurePatchApply}, ExitPatchApply},
		{&StageError{Kind: FailurePatchIntegrity}, ExitPatchIntegrity},
		{&StageError{Kind: FailureTransfer}, ExitTransfer},
		{&StageError{Kind: FailureCorruptedTransfer}, ExitCorruptedTransfer},
		{&StageError{Kind: FailureBackup}, ExitBackup},
		{&StageError{Kind: FailureServiceControl}, ExitServiceControl},
		// Wrapped StageErrors still classify
		{fmt.Errorf("while patching: %w", &StageError{Kind: FailureTransfer}), ExitTransfer},
	}
	for _, tt := range tests {
		if got := ExitCode(tt.err); got != tt.want {
			t.Errorf("ExitCode(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}

func TestStageErrorUnwrap(t *testing.T) {
	cause := errors.New("connection reset")
	se := &StageError{Kind: FailureTransfer, State: StateServiceStopped, Err: cause}
	if !errors.Is(se, cause) {
		t.Error("StageError does not unwrap to its cause")
	}
	if !strings.Contains(se.Error(), "transfer") {
		t.Errorf("error text missing kind: %q", se.Error())
	}
}

func TestRemediation(t *testing.T) {
	corrupted := &StageError{Kind: FailureCorruptedTransfer, RemoteModified: true}
	if !strings.Contains(corrupted.Remediation(), "undo") {
		t.Errorf("corrupted-transfer remediation: %q", corrupted.Remediation())
	}

	stopped := &StageError{Kind: FailureTransfer, ServiceStopped: true}
	if !strings.Contains(stopped.Remediation(), "start") {
		t.Errorf("stopped-service remediation: %q", stopped.Remediation())
	}

	pristine := &StageError{Kind: FailureFetch}
	if !strings.Contains(pristine.Remediation(), "not modified") {
		t.Errorf("pre-write remediation: %q", pristine.Remediation())
	}
}
