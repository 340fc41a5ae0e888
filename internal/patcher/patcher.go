package patcher

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/muurk/smartap-hubfix/internal/catalog"
	"github.com/muurk/smartap-hubfix/internal/channel"
	"github.com/muurk/smartap-hubfix/internal/checksum"
	"github.com/muurk/smartap-hubfix/internal/delta"
)

// Options configures a run.
type Options struct {
	// BackupPath is the local file to back up the fetched binary to.
	// Empty means a default name derived from the target, in the
	// current directory.
	BackupPath string

	// Observer, when set, is called after every state transition with
	// the new state and a short human-readable detail. Called from the
	// goroutine running the orchestrator.
	Observer func(state State, detail string)
}

// Report summarizes a completed run.
type Report struct {
	// Target is the catalog entry the run was executed against
	Target *catalog.Target

	// BackupPath is where the pre-patch binary was saved (patch runs only)
	BackupPath string

	// BytesFetched is the size of the binary pulled from the hub
	BytesFetched int

	// BytesPushed is the size of the binary written back to the hub
	BytesPushed int

	// RemoteDigest is the verified digest of the installed binary after the run
	RemoteDigest string

	// Duration is the wall-clock time of the run
	Duration time.Duration
}

// Orchestrator drives one patch or undo run against one hub. It is not
// safe for concurrent use; create one per run.
type Orchestrator struct {
	ch     channel.Channel
	target *catalog.Target
	opts   Options
	logger *zap.Logger

	state State
	trace []State
}

// New creates an orchestrator for the given channel and target. A nil
// logger disables logging.
func New(ch channel.Channel, target *catalog.Target, opts Options, logger *zap.Logger) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{
		ch:     ch,
		target: target,
		opts:   opts,
		logger: logger,
		state:  StateIdle,
		trace:  []State{StateIdle},
	}
}

// State returns the current state.
func (o *Orchestrator) State() State {
	return o.state
}

// Trace returns every state the run has passed through, in order.
func (o *Orchestrator) Trace() []State {
	return append([]State(nil), o.trace...)
}

// Run executes the full patch sequence. On failure the returned error
// is a *StageError; the hub is only ever modified after the patched
// binary has been verified locally.
func (o *Orchestrator) Run(ctx context.Context) (*Report, error) {
	start := time.Now()
	t := o.target

	o.logger.Info("starting patch run",
		zap.String("version", t.Version),
		zap.String("remote_path", t.RemotePath),
		zap.String("service", t.Service),
	)

	// Fetch the installed binary
	source, err := o.ch.Pull(ctx, t.RemotePath)
	if err != nil {
		return nil, o.fail(FailureFetch, err)
	}
	o.transition(StateFetchedSource, fmt.Sprintf("%d bytes", len(source)))

	// Verify it is exactly the version the payload was built for
	digest := checksum.Sum(source)
	if !checksum.Verify(source, t.SourceDigest) {
		if checksum.Verify(source, t.PatchedDigest) {
			return nil, o.fail(FailureVersionMismatch,
				fmt.Errorf("binary at %s is already patched (digest %s)", t.RemotePath, digest))
		}
		return nil, o.fail(FailureVersionMismatch,
			fmt.Errorf("binary at %s has digest %s, expected %s", t.RemotePath, digest, t.SourceDigest))
	}
	o.transition(StateVerifiedSource, digest)

	// Back up the verified original before anything else happens to it
	backupPath := o.opts.BackupPath
	if backupPath == "" {
		backupPath = fmt.Sprintf("%s-%s.orig", t.Service, t.Version)
	}
	if err := writeBackup(backupPath, source); err != nil {
		return nil, o.fail(FailureBackup, err)
	}
	o.transition(StateBackedUp, backupPath)

	// Apply the delta in memory
	payload, err := t.Payload()
	if err != nil {
		return nil, o.fail(FailurePatchApply, err)
	}
	patched, err := delta.Apply(source, payload)
	if err != nil {
		return nil, o.fail(FailurePatchApply, err)
	}
	o.transition(StatePatched, fmt.Sprintf("%d bytes", len(patched)))

	// The gate: nothing is sent to the hub unless the patched binary
	// hashes to exactly the expected digest.
	if !checksum.Verify(patched, t.PatchedDigest) {
		return nil, o.fail(FailurePatchIntegrity,
			fmt.Errorf("patched binary has digest %s, expected %s",
				checksum.Sum(patched), t.PatchedDigest))
	}
	o.transition(StateVerifiedPatched, t.PatchedDigest)

	remoteDigest, err := o.install(ctx, patched, t.PatchedDigest)
	if err != nil {
		return nil, err
	}

	report := &Report{
		Target:       t,
		BackupPath:   backupPath,
		BytesFetched: len(source),
		BytesPushed:  len(patched),
		RemoteDigest: remoteDigest,
		Duration:     time.Since(start),
	}
	o.logger.Info("patch run complete",
		zap.String("version", t.Version),
		zap.String("remote_digest", remoteDigest),
		zap.Duration("duration", report.Duration),
	)
	return report, nil
}

// install stops the service, replaces the installed binary atomically,
// verifies it on the hub, and restarts the service. Shared by the patch
// and undo paths; data must already be verified against wantDigest.
func (o *Orchestrator) install(ctx context.Context, data []byte, wantDigest string) (string, error) {
	t := o.target

	if err := o.service(ctx, "stop"); err != nil {
		return "", o.fail(FailureServiceControl, err)
	}
	o.transition(StateServiceStopped, t.Service)

	// Push to a sibling path and rename into place so the installed
	// binary is never observable in a half-written state.
	stagingPath := t.RemotePath + ".new"
	if err := o.ch.Push(ctx, data, stagingPath); err != nil {
		o.removeStaging(ctx, stagingPath)
		return "", o.failStopped(FailureTransfer, err)
	}
	mv := fmt.Sprintf("mv %s %s", shellQuote(stagingPath), shellQuote(t.RemotePath))
	result, err := o.ch.Exec(ctx, mv)
	if err != nil {
		o.removeStaging(ctx, stagingPath)
		return "", o.failStopped(FailureTransfer, err)
	}
	if !result.Ok() {
		o.removeStaging(ctx, stagingPath)
		return "", o.failStopped(FailureTransfer,
			fmt.Errorf("rename failed (exit %d): %s", result.ExitCode, strings.TrimSpace(result.Stderr)))
	}
	o.transition(StateTransferred, t.RemotePath)

	// The hub now runs whatever landed there, so from here on every
	// failure reports RemoteModified.
	remoteDigest, err := o.remoteDigest(ctx, t.RemotePath)
	if err != nil {
		return "", o.failModified(FailureCorruptedTransfer,
			fmt.Errorf("could not verify installed binary: %w", err))
	}
	if !strings.EqualFold(remoteDigest, wantDigest) {
		return "", o.failModified(FailureCorruptedTransfer,
			fmt.Errorf("installed binary has digest %s, expected %s", remoteDigest, wantDigest))
	}
	o.transition(StateVerifiedRemote, remoteDigest)

	if err := o.service(ctx, "restart"); err != nil {
		return "", o.failModified(FailureServiceControl, err)
	}
	o.transition(StateRestarted, t.Service)

	o.transition(StateDone, "")
	return remoteDigest, nil
}

// removeStaging deletes a leftover staging file after a failed
// transfer. Best effort: the installed binary is untouched either way,
// so a failed cleanup is only logged.
func (o *Orchestrator) removeStaging(ctx context.Context, stagingPath string) {
	if _, err := o.ch.Exec(ctx, "rm -f "+shellQuote(stagingPath)); err != nil {
		o.logger.Warn("failed to remove staging file",
			zap.String("path", stagingPath),
			zap.Error(err),
		)
	}
}

// service runs the init script action for the target's service.
func (o *Orchestrator) service(ctx context.Context, action string) error {
	command := fmt.Sprintf("/etc/init.d/%s %s", o.target.Service, action)
	result, err := o.ch.Exec(ctx, command)
	if err != nil {
		return err
	}
	if !result.Ok() {
		return fmt.Errorf("%s exited %d: %s", command, result.ExitCode, strings.TrimSpace(result.Stderr))
	}
	o.logger.Debug("service control",
		zap.String("service", o.target.Service),
		zap.String("action", action),
	)
	return nil
}

// remoteDigest computes the digest of a remote file, preferring the
// hub's own md5sum and falling back to pulling the file and hashing it
// locally when md5sum is unavailable (some hub builds strip it).
func (o *Orchestrator) remoteDigest(ctx context.Context, remotePath string) (string, error) {
	result, err := o.ch.Exec(ctx, fmt.Sprintf("md5sum %s", shellQuote(remotePath)))
	if err == nil && result.Ok() {
		fields := strings.Fields(result.Stdout)
		if len(fields) > 0 && checksum.IsDigest(fields[0]) {
			return strings.ToLower(fields[0]), nil
		}
	}

	o.logger.Debug("md5sum unavailable, pulling file for local hash",
		zap.String("path", remotePath),
	)
	data, pullErr := o.ch.Pull(ctx, remotePath)
	if pullErr != nil {
		return "", fmt.Errorf("md5sum failed and re-pull failed: %w", pullErr)
	}
	return checksum.Sum(data), nil
}

func (o *Orchestrator) transition(next State, detail string) {
	o.state = next
	o.trace = append(o.trace, next)
	o.logger.Info("stage complete",
		zap.String("state", next.String()),
		zap.String("detail", detail),
	)
	if o.opts.Observer != nil {
		o.opts.Observer(next, detail)
	}
}

// fail marks the run failed before any remote modification.
func (o *Orchestrator) fail(kind FailureKind, err error) error {
	return o.failWith(kind, false, false, err)
}

// failStopped marks the run failed with the service stopped but the
// installed binary untouched.
func (o *Orchestrator) failStopped(kind FailureKind, err error) error {
	return o.failWith(kind, false, true, err)
}

// failModified marks the run failed after the installed binary was
// replaced.
func (o *Orchestrator) failModified(kind FailureKind, err error) error {
	return o.failWith(kind, true, true, err)
}

func (o *Orchestrator) failWith(kind FailureKind, remoteModified, serviceStopped bool, err error) error {
	stageErr := &StageError{
		Kind:           kind,
		State:          o.state,
		RemoteModified: remoteModified,
		ServiceStopped: serviceStopped,
		Err:            err,
	}
	o.state = StateFailed
	o.trace = append(o.trace, StateFailed)
	o.logger.Error("run failed",
		zap.String("kind", kind.String()),
		zap.Bool("remote_modified", remoteModified),
		zap.Error(err),
	)
	if o.opts.Observer != nil {
		o.opts.Observer(StateFailed, kind.String())
	}
	return stageErr
}

// writeBackup writes data to path, refusing to overwrite. A backup is
// the only way back once the hub has been modified, so an existing file
// is never clobbered.
func writeBackup(path string, data []byte) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0600)
	if err != nil {
		if os.IsExist(err) {
			return fmt.Errorf("backup file %s already exists, refusing to overwrite (pass --backup to choose another path)", path)
		}
		return fmt.Errorf("failed to create backup file %s: %w", path, err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return fmt.Errorf("failed to write backup file %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close backup file %s: %w", path, err)
	}
	return nil
}

// shellQuote single-quotes s for the hub's busybox shell.
func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
