package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/muurk/smartap-hubfix/internal/catalog"
	"github.com/muurk/smartap-hubfix/internal/channel"
	"github.com/muurk/smartap-hubfix/internal/checksum"
	"github.com/muurk/smartap-hubfix/internal/config"
	"github.com/muurk/smartap-hubfix/internal/logging"
	"github.com/muurk/smartap-hubfix/internal/patcher"
	"github.com/muurk/smartap-hubfix/internal/ui"
)

// Command flags
var (
	deviceAddr    string
	devicePort    int
	sshUser       string
	sshKeyFile    string
	transportFlag string
	timeoutSec    int
	verbose       bool

	backupFlag        string
	targetVersionFlag string
	yesFlag           bool
)

func init() {
	// Common flags for hub commands (persistent on root)
	rootCmd.PersistentFlags().StringVar(&deviceAddr, "device", "", "Hub IP address or hostname")
	rootCmd.PersistentFlags().IntVar(&devicePort, "port", 0, "Hub port (default: 22 for ssh, 80 for ws)")
	rootCmd.PersistentFlags().StringVar(&sshUser, "user", "root", "SSH username (ssh transport only)")
	rootCmd.PersistentFlags().StringVar(&sshKeyFile, "key", "", "SSH private key file (ssh transport only; password prompt if unset)")
	rootCmd.PersistentFlags().StringVar(&transportFlag, "transport", "ssh", "Transport to the hub (ssh or ws)")
	rootCmd.PersistentFlags().IntVar(&timeoutSec, "timeout", 30, "Per-operation timeout in seconds")
	rootCmd.PersistentFlags().BoolVar(&verbose, "verbose", false, "Show remote command output")

	// Add subcommands directly to root
	rootCmd.AddCommand(patchCmd)
	rootCmd.AddCommand(undoCmd)
	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(targetsCmd)
}

// patchCmd applies the embedded delta to the hub's installed binary
var patchCmd = &cobra.Command{
	Use:   "patch",
	Short: "Patch the cloudd binary on a hub",
	Long: `Fetch the installed cloudd binary from the hub, verify it is an exact
known version, apply the embedded delta, verify the result, and transfer
it back atomically. The cloudd service is stopped for the transfer and
restarted afterwards.

A local backup of the original binary is written before anything is
changed and is never overwritten. Keep it: it is the only way to undo.`,
	Example: `  # Patch a hub over SSH (password prompt)
  smartap-hubfix patch --device 192.168.1.50

  # Patch over the setup-mode WebSocket channel
  smartap-hubfix patch --device 192.168.1.50 --transport ws

  # Choose the backup location and skip the confirmation box
  smartap-hubfix patch --device 192.168.1.50 --backup /backups/cloudd.orig --yes`,
	RunE: runPatch,
}

func init() {
	patchCmd.Flags().StringVar(&backupFlag, "backup", "", "Local backup file path (default: <service>-<version>.orig)")
	patchCmd.Flags().StringVar(&targetVersionFlag, "target-version", "", "Catalog target version (default: the single verified target)")
	patchCmd.Flags().BoolVar(&yesFlag, "yes", false, "Skip the confirmation prompt")
}

func runPatch(cmd *cobra.Command, args []string) error {
	if err := logging.InitializeFromEnv(); err != nil {
		return err
	}
	defer logging.Sync()

	target, err := resolveTarget()
	if err != nil {
		return err
	}

	if !yesFlag && !ui.RemotePatchConfirmation(deviceAddr, target.Version, target.Service) {
		return nil
	}

	ch, err := dialHub(cmd.Context())
	if err != nil {
		return err
	}
	defer func() { _ = ch.Close() }()

	runner := ui.NewStageRunner(ui.StageRunnerConfig{
		Title:   "Cloudd Patch",
		Command: "smartap-hubfix patch",
		Params: map[string]string{
			"Device":    deviceAddr,
			"Transport": transportFlag,
			"Target":    target.String(),
			"Path":      target.RemotePath,
		},
		TotalSteps: len(patcher.PatchStepNames),
		StepNames:  patcher.PatchStepNames,
		Verbose:    verbose,
	})

	var report *patcher.Report
	_, err = runner.Run(cmd.Context(), func(onStep ui.StepCallback) (map[string]string, error) {
		o := patcher.New(ch, target, patcher.Options{
			BackupPath: backupFlag,
			Observer:   stageObserver(onStep, patchStates),
		}, logging.GetLogger())

		onStep(1, "", ui.StepRunning, "")
		var runErr error
		report, runErr = o.Run(cmd.Context())
		if runErr != nil {
			return nil, runErr
		}
		return map[string]string{
			"Target":        report.Target.Version,
			"Backup":        report.BackupPath,
			"Remote digest": report.RemoteDigest,
			"Transferred":   fmt.Sprintf("%d bytes", report.BytesPushed),
		}, nil
	})
	if err != nil {
		printRemediation(err)
		return err
	}

	recordRun(func(reg *config.Registry) {
		reg.RecordPatch(deviceAddr, target.Version, report.BackupPath, report.RemoteDigest, transportFlag)
	})
	return nil
}

// undoCmd restores the original binary from a local backup
var undoCmd = &cobra.Command{
	Use:   "undo",
	Short: "Restore the original cloudd binary from a backup",
	Long: `Restore the hub's original cloudd binary from the local backup written
by a previous patch run. The backup is verified against the original
binary's digest before anything touches the hub; a missing or corrupt
backup aborts the run with the hub untouched.

If --backup is not given, the backup recorded for this hub in the local
registry is used.`,
	Example: `  # Undo using the recorded backup for this hub
  smartap-hubfix undo --device 192.168.1.50

  # Undo from an explicit backup file
  smartap-hubfix undo --device 192.168.1.50 --backup /backups/cloudd.orig`,
	RunE: runUndo,
}

func init() {
	undoCmd.Flags().StringVar(&backupFlag, "backup", "", "Backup file written by a previous patch run")
	undoCmd.Flags().StringVar(&targetVersionFlag, "target-version", "", "Catalog target version (default: the single verified target)")
	undoCmd.Flags().BoolVar(&yesFlag, "yes", false, "Skip the confirmation prompt")
}

func runUndo(cmd *cobra.Command, args []string) error {
	if err := logging.InitializeFromEnv(); err != nil {
		return err
	}
	defer logging.Sync()

	target, err := resolveTarget()
	if err != nil {
		return err
	}

	backupPath := backupFlag
	if backupPath == "" {
		reg, regErr := config.LoadRegistry()
		if regErr != nil {
			return regErr
		}
		recorded, ok := reg.LookupBackup(deviceAddr)
		if !ok {
			return fmt.Errorf("no backup recorded for %s; pass --backup <file>", deviceAddr)
		}
		backupPath = recorded
	}

	if !yesFlag && !ui.ConfirmDangerousOperation(
		"REMOTE BINARY RESTORE",
		[]string{
			fmt.Sprintf("This operation will replace the %s binary on hub %s", target.Service, deviceAddr),
			fmt.Sprintf("The original binary will be restored from %s", backupPath),
			fmt.Sprintf("The %s service will be stopped and restarted during the operation", target.Service),
			"Do not power off the hub once the operation has started",
		},
		"",
	) {
		return nil
	}

	ch, err := dialHub(cmd.Context())
	if err != nil {
		return err
	}
	defer func() { _ = ch.Close() }()

	runner := ui.NewStageRunner(ui.StageRunnerConfig{
		Title:   "Cloudd Restore",
		Command: "smartap-hubfix undo",
		Params: map[string]string{
			"Device":    deviceAddr,
			"Transport": transportFlag,
			"Backup":    backupPath,
			"Path":      target.RemotePath,
		},
		TotalSteps: len(patcher.UndoStepNames),
		StepNames:  patcher.UndoStepNames,
		Verbose:    verbose,
	})

	var report *patcher.Report
	_, err = runner.Run(cmd.Context(), func(onStep ui.StepCallback) (map[string]string, error) {
		o := patcher.New(ch, target, patcher.Options{
			Observer: stageObserver(onStep, undoStates),
		}, logging.GetLogger())

		onStep(1, "", ui.StepRunning, "")
		var runErr error
		report, runErr = o.Undo(cmd.Context(), backupPath)
		if runErr != nil {
			return nil, runErr
		}
		return map[string]string{
			"Target":        report.Target.Version,
			"Remote digest": report.RemoteDigest,
			"Transferred":   fmt.Sprintf("%d bytes", report.BytesPushed),
		}, nil
	})
	if err != nil {
		printRemediation(err)
		return err
	}

	recordRun(func(reg *config.Registry) {
		reg.RecordUndo(deviceAddr, target.Version, report.RemoteDigest, transportFlag)
	})
	return nil
}

// checkCmd reports the state of the hub's installed binary
var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Check which binary version a hub is running",
	Long: `Fetch the installed binary from the hub and classify its digest against
the embedded target catalog: original, patched, or unknown. The hub is
not modified.`,
	Example: `  # Check a hub over SSH
  smartap-hubfix check --device 192.168.1.50

  # Check over the setup-mode WebSocket channel
  smartap-hubfix check --device 192.168.1.50 --transport ws`,
	RunE: runCheck,
}

func runCheck(cmd *cobra.Command, args []string) error {
	if err := logging.InitializeFromEnv(); err != nil {
		return err
	}
	defer logging.Sync()

	cat, err := catalog.Load()
	if err != nil {
		return err
	}
	target, err := resolveTarget()
	if err != nil {
		return err
	}

	ch, err := dialHub(cmd.Context())
	if err != nil {
		return err
	}
	defer func() { _ = ch.Close() }()

	ui.PrintCommandHeader("Hub Check", "smartap-hubfix check", map[string]string{
		"Device":    deviceAddr,
		"Transport": transportFlag,
		"Path":      target.RemotePath,
	})

	data, err := ch.Pull(cmd.Context(), target.RemotePath)
	if err != nil {
		return err
	}
	digest := checksum.Sum(data)

	details := map[string]string{
		"Path":   target.RemotePath,
		"Size":   fmt.Sprintf("%d bytes", len(data)),
		"Digest": digest,
	}

	matched, patched, ok := cat.ByDigest(digest)
	switch {
	case ok && patched:
		details["Status"] = fmt.Sprintf("patched (%s)", matched.Version)
		ui.PrintSuccess("Hub is running the patched binary", details)
	case ok:
		details["Status"] = fmt.Sprintf("original (%s)", matched.Version)
		ui.PrintSuccess("Hub is running the original binary", details)
	default:
		details["Status"] = "unknown"
		ui.PrintWarning("Installed binary does not match any catalog entry", details)
	}
	return nil
}

// targetsCmd lists the embedded patch targets
var targetsCmd = &cobra.Command{
	Use:   "targets",
	Short: "List the embedded patch targets",
	Long: `List every binary version the embedded catalog can patch, with the
digests the patch run verifies against.`,
	RunE: runTargets,
}

func runTargets(cmd *cobra.Command, args []string) error {
	cat, err := catalog.Load()
	if err != nil {
		return err
	}

	fmt.Printf("Embedded patch targets (%d):\n\n", len(cat.Targets))
	for i, t := range cat.Targets {
		fmt.Printf("%d. %s\n", i+1, t.String())
		fmt.Printf("   Remote path: %s\n", t.RemotePath)
		fmt.Printf("   Service:     %s\n", t.Service)
		fmt.Printf("   Source MD5:  %s\n", t.SourceDigest)
		fmt.Printf("   Patched MD5: %s\n", t.PatchedDigest)
		if t.Notes != "" {
			fmt.Printf("   Notes:       %s\n", t.Notes)
		}
		fmt.Println()
	}

	fmt.Println("Use 'smartap-hubfix check --device <ip>' to see what a hub is running")
	fmt.Println("Use 'smartap-hubfix patch --device <ip>' to apply a patch")
	return nil
}

// Ordered completion states of the patch and undo paths, aligned with
// the step name lists.
var patchStates = []patcher.State{
	patcher.StateFetchedSource,
	patcher.StateVerifiedSource,
	patcher.StateBackedUp,
	patcher.StatePatched,
	patcher.StateVerifiedPatched,
	patcher.StateServiceStopped,
	patcher.StateTransferred,
	patcher.StateVerifiedRemote,
	patcher.StateRestarted,
}

var undoStates = []patcher.State{
	patcher.StateValidatedBackup,
	patcher.StateServiceStopped,
	patcher.StateTransferred,
	patcher.StateVerifiedRemote,
	patcher.StateRestarted,
}

// stageObserver adapts orchestrator state transitions to UI step
// updates: each completion state marks its step done and starts the
// next, and a failure marks the in-flight step failed.
func stageObserver(onStep ui.StepCallback, states []patcher.State) func(patcher.State, string) {
	index := make(map[patcher.State]int, len(states))
	for i, s := range states {
		index[s] = i + 1
	}
	completed := 0

	return func(s patcher.State, detail string) {
		switch {
		case s == patcher.StateFailed:
			if completed < len(states) {
				onStep(completed+1, "", ui.StepFailed, detail)
			}
		case index[s] != 0:
			step := index[s]
			completed = step
			onStep(step, "", ui.StepComplete, detail)
			if step < len(states) {
				onStep(step+1, "", ui.StepRunning, "")
			}
		}
	}
}

// dialHub connects to the hub using the selected transport.
func dialHub(ctx context.Context) (channel.Channel, error) {
	if deviceAddr == "" {
		return nil, fmt.Errorf("no device specified; use --device <ip>")
	}
	timeout := time.Duration(timeoutSec) * time.Second
	logger := logging.GetLogger()

	switch transportFlag {
	case "ssh":
		password := ""
		if sshKeyFile == "" {
			var err error
			password, err = promptPassword(sshUser, deviceAddr)
			if err != nil {
				return nil, err
			}
		}
		return channel.DialSSH(channel.SSHOptions{
			Host:     deviceAddr,
			Port:     devicePort,
			User:     sshUser,
			Password: password,
			KeyFile:  sshKeyFile,
			Timeout:  timeout,
		}, logger)

	case "ws":
		return channel.DialWS(ctx, channel.WSOptions{
			Host:    deviceAddr,
			Port:    devicePort,
			Timeout: timeout,
		}, logger)

	default:
		return nil, fmt.Errorf("unknown transport %q (use ssh or ws)", transportFlag)
	}
}

// promptPassword reads a password from the terminal without echo.
func promptPassword(user, host string) (string, error) {
	fmt.Printf("Password for %s@%s: ", user, host)
	raw, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Println()
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	return string(raw), nil
}

// resolveTarget picks the catalog target to run against.
func resolveTarget() (*catalog.Target, error) {
	cat, err := catalog.Load()
	if err != nil {
		return nil, err
	}
	if targetVersionFlag != "" {
		t, ok := cat.Get(targetVersionFlag)
		if !ok {
			return nil, fmt.Errorf("unknown target version %q; known versions: %v", targetVersionFlag, cat.Versions())
		}
		return t, nil
	}
	return cat.Default()
}

// printRemediation prints operator guidance for a failed run.
func printRemediation(err error) {
	var se *patcher.StageError
	if !errors.As(err, &se) {
		return
	}
	fmt.Fprintln(os.Stderr)
	fmt.Fprintln(os.Stderr, se.Remediation())
}

// recordRun updates the local registry after a successful run. Registry
// problems never fail the command; the hub work is already done.
func recordRun(update func(*config.Registry)) {
	reg, err := config.LoadRegistry()
	if err != nil {
		logging.Warn("could not load registry", zap.Error(err))
		return
	}
	update(reg)
	if err := reg.Save(); err != nil {
		logging.Warn("could not save registry", zap.Error(err))
	}
}
