package patcher

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestUndoSuccess(t *testing.T) {
	target, source, patched := makeTarget(t)
	hub := newFakeChannel()
	hub.files[testRemotePath] = patched

	backup := filepath.Join(t.TempDir(), "cloudd.orig")
	if err := os.WriteFile(backup, source, 0600); err != nil {
		t.Fatal(err)
	}

	o := New(hub, target, Options{}, nil)
	report, err := o.Undo(context.Background(), backup)
	if err != nil {
		t.Fatalf("Undo failed: %v", err)
	}

	if !bytes.Equal(hub.files[testRemotePath], source) {
		t.Error("installed binary was not restored to the original")
	}
	if report.RemoteDigest != target.SourceDigest {
		t.Errorf("remote digest = %s", report.RemoteDigest)
	}
	if o.State() != StateDone {
		t.Errorf("final state = %s", o.State())
	}

	want := []State{
		StateIdle, StateValidatedBackup, StateServiceStopped,
		StateTransferred, StateVerifiedRemote, StateRestarted, StateDone,
	}
	got := o.Trace()
	if len(got) != len(want) {
		t.Fatalf("trace = %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("trace[%d] = %s, want %s", i, got[i], want[i])
		}
	}
}

func TestUndoMissingBackupIsFatal(t *testing.T) {
	target, _, patched := makeTarget(t)
	hub := newFakeChannel()
	hub.files[testRemotePath] = patched

	o := New(hub, target, Options{}, nil)
	_, err := o.Undo(context.Background(), filepath.Join(t.TempDir(), "nope.orig"))
	assertKind(t, err, FailureBackup)

	if len(hub.ops) != 0 {
		t.Errorf("hub was contacted despite missing backup: %v", hub.ops)
	}
}

func TestUndoRejectsCorruptBackup(t *testing.T) {
	target, source, patched := makeTarget(t)
	hub := newFakeChannel()
	hub.files[testRemotePath] = patched

	bad := append([]byte(nil), source...)
	bad[10] ^= 0xFF
	backup := filepath.Join(t.TempDir(), "cloudd.orig")
	if err := os.WriteFile(backup, bad, 0600); err != nil {
		t.Fatal(err)
	}

	o := New(hub, target, Options{}, nil)
	_, err := o.Undo(context.Background(), backup)
	assertKind(t, err, FailureBackup)

	// The bad file must never reach the hub
	if len(hub.ops) != 0 {
		t.Errorf("hub was contacted despite invalid backup: %v", hub.ops)
	}
	if !bytes.Equal(hub.files[testRemotePath], patched) {
		t.Error("installed binary changed")
	}
}
