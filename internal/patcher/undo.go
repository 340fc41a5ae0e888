package patcher

import (
	"context"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/muurk/smartap-hubfix/internal/checksum"
)

// Undo restores the original binary on the hub from a local backup
// file. The backup must exist, be readable, and hash to the target's
// source digest; anything else is fatal before the hub is touched,
// because pushing an unverified file is exactly the failure mode this
// tool exists to prevent.
func (o *Orchestrator) Undo(ctx context.Context, backupPath string) (*Report, error) {
	start := time.Now()
	t := o.target

	o.logger.Info("starting undo run",
		zap.String("version", t.Version),
		zap.String("backup", backupPath),
	)

	data, err := os.ReadFile(backupPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, o.fail(FailureBackup,
				fmt.Errorf("backup file %s does not exist; without it the original binary cannot be restored", backupPath))
		}
		return nil, o.fail(FailureBackup,
			fmt.Errorf("failed to read backup file %s: %w", backupPath, err))
	}
	if !checksum.Verify(data, t.SourceDigest) {
		return nil, o.fail(FailureBackup,
			fmt.Errorf("backup file %s has digest %s, expected the original binary's %s",
				backupPath, checksum.Sum(data), t.SourceDigest))
	}
	o.transition(StateValidatedBackup, backupPath)

	remoteDigest, err := o.install(ctx, data, t.SourceDigest)
	if err != nil {
		return nil, err
	}

	report := &Report{
		Target:       t,
		BackupPath:   backupPath,
		BytesPushed:  len(data),
		RemoteDigest: remoteDigest,
		Duration:     time.Since(start),
	}
	o.logger.Info("undo run complete",
		zap.String("version", t.Version),
		zap.String("remote_digest", remoteDigest),
		zap.Duration("duration", report.Duration),
	)
	return report, nil
}
