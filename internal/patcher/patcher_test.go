package patcher

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/muurk/smartap-hubfix/internal/catalog"
	"github.com/muurk/smartap-hubfix/internal/channel"
	"github.com/muurk/smartap-hubfix/internal/checksum"
)

// fakeChannel is an in-memory hub: a file map plus a shell that
// understands the handful of commands the orchestrator issues. It logs
// every operation so tests can assert ordering.
type fakeChannel struct {
	files map[string][]byte
	ops   []string

	pullErr        map[string]error
	pushErr        map[string]error
	serviceExit    map[string]int // init.d action -> exit code
	mvExit         int            // non-zero makes mv fail with this code
	noMD5          bool           // md5sum not installed on this hub
	corruptAfterMv bool           // flip a byte after the rename lands
}

func newFakeChannel() *fakeChannel {
	return &fakeChannel{
		files:       make(map[string][]byte),
		pullErr:     make(map[string]error),
		pushErr:     make(map[string]error),
		serviceExit: make(map[string]int),
	}
}

func (f *fakeChannel) Pull(ctx context.Context, path string) ([]byte, error) {
	f.ops = append(f.ops, "pull "+path)
	if err := f.pullErr[path]; err != nil {
		return nil, err
	}
	data, ok := f.files[path]
	if !ok {
		return nil, &channel.PullError{Path: path, Err: errors.New("no such file")}
	}
	return append([]byte(nil), data...), nil
}

func (f *fakeChannel) Push(ctx context.Context, data []byte, path string) error {
	f.ops = append(f.ops, "push "+path)
	if err := f.pushErr[path]; err != nil {
		return err
	}
	f.files[path] = append([]byte(nil), data...)
	return nil
}

func (f *fakeChannel) Exec(ctx context.Context, command string) (*channel.ExecResult, error) {
	f.ops = append(f.ops, "exec "+command)
	fields := strings.Fields(command)

	switch {
	case strings.HasPrefix(command, "mv "):
		if f.mvExit != 0 {
			return &channel.ExecResult{ExitCode: f.mvExit, Stderr: "mv: can't rename: Read-only file system\n"}, nil
		}
		src, dst := unquote(fields[1]), unquote(fields[2])
		data, ok := f.files[src]
		if !ok {
			return &channel.ExecResult{ExitCode: 1, Stderr: "mv: can't rename: No such file\n"}, nil
		}
		delete(f.files, src)
		f.files[dst] = data
		if f.corruptAfterMv {
			f.files[dst] = append([]byte(nil), data...)
			f.files[dst][0] ^= 0xFF
		}
		return &channel.ExecResult{ExitCode: 0}, nil

	case strings.HasPrefix(command, "md5sum "):
		if f.noMD5 {
			return &channel.ExecResult{ExitCode: 127, Stderr: "sh: md5sum: not found\n"}, nil
		}
		path := unquote(fields[1])
		data, ok := f.files[path]
		if !ok {
			return &channel.ExecResult{ExitCode: 1, Stderr: "md5sum: No such file\n"}, nil
		}
		return &channel.ExecResult{Stdout: fmt.Sprintf("%s  %s\n", checksum.Sum(data), path)}, nil

	case strings.HasPrefix(command, "rm "):
		delete(f.files, unquote(fields[len(fields)-1]))
		return &channel.ExecResult{ExitCode: 0}, nil

	case strings.HasPrefix(command, "/etc/init.d/"):
		action := fields[1]
		return &channel.ExecResult{ExitCode: f.serviceExit[action]}, nil

	default:
		return &channel.ExecResult{ExitCode: 127, Stderr: "sh: not found\n"}, nil
	}
}

func (f *fakeChannel) Close() error {
	return nil
}

func unquote(s string) string {
	return strings.Trim(s, "'")
}

// countOps counts logged operations starting with prefix.
func (f *fakeChannel) countOps(prefix string) int {
	n := 0
	for _, op := range f.ops {
		if strings.HasPrefix(op, prefix) {
			n++
		}
	}
	return n
}

// opIndex returns the index of the first logged operation starting with
// prefix, or -1.
func (f *fakeChannel) opIndex(prefix string) int {
	for i, op := range f.ops {
		if strings.HasPrefix(op, prefix) {
			return i
		}
	}
	return -1
}

// buildPayload assembles a delta payload in the wire format.
func buildPayload(inLen, outLen uint32, offset uint32, data []byte) []byte {
	var buf bytes.Buffer
	buf.WriteString("SMTDELTA")
	binary.Write(&buf, binary.BigEndian, uint16(1)) // version
	binary.Write(&buf, binary.BigEndian, uint16(1)) // overwrite
	binary.Write(&buf, binary.BigEndian, inLen)
	binary.Write(&buf, binary.BigEndian, outLen)
	binary.Write(&buf, binary.BigEndian, uint32(1)) // record count
	binary.Write(&buf, binary.BigEndian, offset)
	binary.Write(&buf, binary.BigEndian, uint16(len(data)))
	buf.Write(data)
	return buf.Bytes()
}

const testRemotePath = "/opt/smartap/bin/cloudd"

// makeTarget builds a synthetic target: a 1 KiB source binary whose
// payload overwrites two bytes at offset 0x80, with digests computed
// from the actual buffers. Returns the target, the source bytes and the
// expected patched bytes.
func makeTarget(t *testing.T) (*catalog.Target, []byte, []byte) {
	t.Helper()

	source := make([]byte, 1024)
	for i := range source {
		source[i] = byte(i % 251)
	}
	patched := append([]byte(nil), source...)
	patched[0x80] = 0x04
	patched[0x81] = 0xE0

	target := &catalog.Target{
		Version:       "9.99.999",
		Name:          "synthetic test target",
		Verified:      true,
		RemotePath:    testRemotePath,
		Service:       "cloudd",
		SourceDigest:  checksum.Sum(source),
		PatchedDigest: checksum.Sum(patched),
		PayloadBytes:  buildPayload(1024, 1024, 0x80, []byte{0x04, 0xE0}),
	}
	return target, source, patched
}

func backupPath(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "cloudd.orig")
}

func TestRunSuccess(t *testing.T) {
	target, source, patched := makeTarget(t)
	hub := newFakeChannel()
	hub.files[testRemotePath] = source

	backup := backupPath(t)
	o := New(hub, target, Options{BackupPath: backup}, nil)
	report, err := o.Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if !bytes.Equal(hub.files[testRemotePath], patched) {
		t.Error("installed binary on the hub is not the patched binary")
	}
	saved, err := os.ReadFile(backup)
	if err != nil {
		t.Fatalf("backup not written: %v", err)
	}
	if !bytes.Equal(saved, source) {
		t.Error("backup does not contain the original binary")
	}

	if report.BytesFetched != len(source) || report.BytesPushed != len(patched) {
		t.Errorf("report sizes: fetched %d pushed %d", report.BytesFetched, report.BytesPushed)
	}
	if report.RemoteDigest != target.PatchedDigest {
		t.Errorf("report remote digest = %s", report.RemoteDigest)
	}
	if o.State() != StateDone {
		t.Errorf("final state = %s", o.State())
	}

	want := []State{
		StateIdle, StateFetchedSource, StateVerifiedSource, StateBackedUp,
		StatePatched, StateVerifiedPatched, StateServiceStopped,
		StateTransferred, StateVerifiedRemote, StateRestarted, StateDone,
	}
	got := o.Trace()
	if len(got) != len(want) {
		t.Fatalf("trace = %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("trace[%d] = %s, want %s (full: %v)", i, got[i], want[i], got)
		}
	}
}

func TestRunStopsServiceBeforePush(t *testing.T) {
	target, source, _ := makeTarget(t)
	hub := newFakeChannel()
	hub.files[testRemotePath] = source

	o := New(hub, target, Options{BackupPath: backupPath(t)}, nil)
	if _, err := o.Run(context.Background()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	stop := hub.opIndex("exec /etc/init.d/cloudd stop")
	push := hub.opIndex("push " + testRemotePath + ".new")
	mv := hub.opIndex("exec mv ")
	if stop == -1 || push == -1 || mv == -1 {
		t.Fatalf("missing operations: %v", hub.ops)
	}
	if !(stop < push && push < mv) {
		t.Errorf("bad ordering: stop=%d push=%d mv=%d", stop, push, mv)
	}
}

func TestRunVersionMismatch(t *testing.T) {
	target, source, _ := makeTarget(t)
	other := append([]byte(nil), source...)
	other[0] ^= 0x01

	hub := newFakeChannel()
	hub.files[testRemotePath] = other

	o := New(hub, target, Options{BackupPath: backupPath(t)}, nil)
	_, err := o.Run(context.Background())
	assertKind(t, err, FailureVersionMismatch)

	if n := hub.countOps("push"); n != 0 {
		t.Errorf("%d pushes on a mismatched binary", n)
	}
	if n := hub.countOps("exec"); n != 0 {
		t.Errorf("%d remote commands on a mismatched binary", n)
	}
}

func TestRunAlreadyPatched(t *testing.T) {
	target, _, patched := makeTarget(t)
	hub := newFakeChannel()
	hub.files[testRemotePath] = patched

	o := New(hub, target, Options{BackupPath: backupPath(t)}, nil)
	_, err := o.Run(context.Background())
	assertKind(t, err, FailureVersionMismatch)
	if !strings.Contains(err.Error(), "already patched") {
		t.Errorf("error does not identify the already-patched case: %v", err)
	}
}

func TestRunFetchFailure(t *testing.T) {
	target, _, _ := makeTarget(t)
	hub := newFakeChannel()

	o := New(hub, target, Options{BackupPath: backupPath(t)}, nil)
	_, err := o.Run(context.Background())
	assertKind(t, err, FailureFetch)
}

func TestRunPatchIntegrityHaltsBeforeTransfer(t *testing.T) {
	target, source, _ := makeTarget(t)
	// Expected-patched digest that no payload application can produce
	target.PatchedDigest = strings.Repeat("0", 32)

	hub := newFakeChannel()
	hub.files[testRemotePath] = source

	o := New(hub, target, Options{BackupPath: backupPath(t)}, nil)
	_, err := o.Run(context.Background())
	assertKind(t, err, FailurePatchIntegrity)

	if n := hub.countOps("push"); n != 0 {
		t.Errorf("%d pushes after a failed integrity check", n)
	}
	if !bytes.Equal(hub.files[testRemotePath], source) {
		t.Error("installed binary changed despite failed integrity check")
	}
}

func TestRunBackupNeverOverwritten(t *testing.T) {
	target, source, _ := makeTarget(t)
	hub := newFakeChannel()
	hub.files[testRemotePath] = source

	backup := backupPath(t)
	if err := os.WriteFile(backup, []byte("precious earlier backup"), 0600); err != nil {
		t.Fatal(err)
	}

	o := New(hub, target, Options{BackupPath: backup}, nil)
	_, err := o.Run(context.Background())
	assertKind(t, err, FailureBackup)

	data, _ := os.ReadFile(backup)
	if string(data) != "precious earlier backup" {
		t.Error("existing backup file was overwritten")
	}
	if n := hub.countOps("push") + hub.countOps("exec"); n != 0 {
		t.Errorf("%d remote modifications after backup failure", n)
	}
}

func TestRunServiceStopFailure(t *testing.T) {
	target, source, _ := makeTarget(t)
	hub := newFakeChannel()
	hub.files[testRemotePath] = source
	hub.serviceExit["stop"] = 1

	o := New(hub, target, Options{BackupPath: backupPath(t)}, nil)
	_, err := o.Run(context.Background())
	se := assertKind(t, err, FailureServiceControl)
	if se.RemoteModified {
		t.Error("stop failure reported RemoteModified")
	}
	if n := hub.countOps("push"); n != 0 {
		t.Errorf("%d pushes after stop failure", n)
	}
}

func TestRunRestartFailure(t *testing.T) {
	target, source, _ := makeTarget(t)
	hub := newFakeChannel()
	hub.files[testRemotePath] = source
	hub.serviceExit["restart"] = 1

	o := New(hub, target, Options{BackupPath: backupPath(t)}, nil)
	_, err := o.Run(context.Background())
	se := assertKind(t, err, FailureServiceControl)
	if !se.RemoteModified {
		t.Error("restart failure did not report RemoteModified")
	}
	if !strings.Contains(se.Remediation(), "undo") {
		t.Errorf("remediation does not mention undo: %q", se.Remediation())
	}
}

func TestRunPushFailureLeavesBinaryUntouched(t *testing.T) {
	target, source, _ := makeTarget(t)
	hub := newFakeChannel()
	hub.files[testRemotePath] = source
	staging := testRemotePath + ".new"
	hub.pushErr[staging] = &channel.PushError{Path: staging, Err: errors.New("connection reset by peer")}

	o := New(hub, target, Options{BackupPath: backupPath(t)}, nil)
	_, err := o.Run(context.Background())
	se := assertKind(t, err, FailureTransfer)
	if se.RemoteModified {
		t.Error("push failure reported RemoteModified")
	}
	if !se.ServiceStopped {
		t.Error("push failure did not report ServiceStopped")
	}
	if !bytes.Equal(hub.files[testRemotePath], source) {
		t.Error("installed binary changed despite failed push")
	}
}

func TestRunRenameFailureCleansStagingFile(t *testing.T) {
	target, source, _ := makeTarget(t)
	hub := newFakeChannel()
	hub.files[testRemotePath] = source
	hub.mvExit = 1

	o := New(hub, target, Options{BackupPath: backupPath(t)}, nil)
	_, err := o.Run(context.Background())
	se := assertKind(t, err, FailureTransfer)
	if se.RemoteModified {
		t.Error("rename failure reported RemoteModified")
	}
	if !se.ServiceStopped {
		t.Error("rename failure did not report ServiceStopped")
	}
	if !bytes.Equal(hub.files[testRemotePath], source) {
		t.Error("installed binary changed despite failed rename")
	}
	if _, ok := hub.files[testRemotePath+".new"]; ok {
		t.Error("staging file left on the hub after failed rename")
	}
}

func TestRunCorruptedTransfer(t *testing.T) {
	target, source, _ := makeTarget(t)
	hub := newFakeChannel()
	hub.files[testRemotePath] = source
	hub.corruptAfterMv = true

	o := New(hub, target, Options{BackupPath: backupPath(t)}, nil)
	_, err := o.Run(context.Background())
	se := assertKind(t, err, FailureCorruptedTransfer)
	if !se.RemoteModified {
		t.Error("corrupted transfer did not report RemoteModified")
	}
	if !strings.Contains(se.Remediation(), "undo") {
		t.Errorf("remediation does not mention undo: %q", se.Remediation())
	}

	// No second push: corruption is never silently retried
	if n := hub.countOps("push"); n != 1 {
		t.Errorf("%d pushes, want exactly 1", n)
	}
}

func TestRunRemoteVerifyFallsBackToPull(t *testing.T) {
	target, source, patched := makeTarget(t)
	hub := newFakeChannel()
	hub.files[testRemotePath] = source
	hub.noMD5 = true

	o := New(hub, target, Options{BackupPath: backupPath(t)}, nil)
	report, err := o.Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if report.RemoteDigest != checksum.Sum(patched) {
		t.Errorf("remote digest = %s", report.RemoteDigest)
	}
	// Initial fetch plus verification re-pull
	if n := hub.countOps("pull"); n != 2 {
		t.Errorf("%d pulls, want 2", n)
	}
}

func TestRunObserverSeesEveryTransition(t *testing.T) {
	target, source, _ := makeTarget(t)
	hub := newFakeChannel()
	hub.files[testRemotePath] = source

	var seen []State
	o := New(hub, target, Options{
		BackupPath: backupPath(t),
		Observer:   func(s State, _ string) { seen = append(seen, s) },
	}, nil)
	if _, err := o.Run(context.Background()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	// Observer sees everything after Idle
	if len(seen) != len(o.Trace())-1 {
		t.Errorf("observer saw %d transitions, trace has %d states", len(seen), len(o.Trace()))
	}
	if seen[len(seen)-1] != StateDone {
		t.Errorf("last observed state = %s", seen[len(seen)-1])
	}
}

// assertKind fails the test unless err is a *StageError of the given
// kind, and returns it.
func assertKind(t *testing.T, err error, kind FailureKind) *StageError {
	t.Helper()
	if err == nil {
		t.Fatal("expected an error")
	}
	var se *StageError
	if !errors.As(err, &se) {
		t.Fatalf("expected *StageError, got %T (%v)", err, err)
	}
	if se.Kind != kind {
		t.Fatalf("failure kind = %s, want %s (%v)", se.Kind, kind, err)
	}
	return se
}
