package ui

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/charmbracelet/lipgloss"
)

// StageRunnerConfig holds configuration for a staged remote operation
type StageRunnerConfig struct {
	Title      string            // Command title (e.g., "Cloudd Patch")
	Command    string            // Full command (e.g., "smartap-hubfix patch")
	Params     map[string]string // Parameters to display in header
	TotalSteps int               // Total number of steps (for progress)
	StepNames  []string          // Names for each step
	Verbose    bool              // Whether to show remote command output
	Output     io.Writer         // Output writer (default: os.Stdout)
}

// StageRunner orchestrates the UI for a staged remote operation.
// It manages the header → progress → result flow and provides
// callbacks for reporting progress.
type StageRunner struct {
	config       StageRunnerConfig
	header       *Header
	progress     *Progress
	output       io.Writer
	remoteOutput string
	startTime    time.Time
	width        int
}

// NewStageRunner creates a new runner for a staged remote operation
func NewStageRunner(config StageRunnerConfig) *StageRunner {
	// Set defaults
	if config.Output == nil {
		config.Output = os.Stdout
	}

	width := GetTerminalWidth()

	// Create header
	header := NewHeader(config.Title, config.Command, config.Params)
	header.SetWidth(width)

	// Create progress tracker
	var progress *Progress
	if config.TotalSteps > 0 {
		progress = NewProgress("", config.TotalSteps)
		progress.SetWidth(width)
		if len(config.StepNames) > 0 {
			progress.SetStepNames(config.StepNames)
		}
	}

	return &StageRunner{
		config:   config,
		header:   header,
		progress: progress,
		output:   config.Output,
		width:    width,
	}
}

// StagedOperation is the function signature for the actual operation.
// The operation receives a StepCallback to report progress.
type StagedOperation func(onStep StepCallback) (map[string]string, error)

// Run executes the operation with UI updates. It displays the header,
// tracks progress, and shows a result box built from the details the
// operation returns.
func (r *StageRunner) Run(ctx context.Context, operation StagedOperation) (map[string]string, error) {
	r.startTime = time.Now()

	// Print header
	_, _ = fmt.Fprintln(r.output, r.header.Render())
	_, _ = fmt.Fprintln(r.output)

	// Create step callback
	stepCallback := r.createStepCallback()

	// Execute the operation
	details, err := operation(stepCallback)
	duration := time.Since(r.startTime)

	// Print final result
	if err != nil {
		r.printFailure(err, duration)
	} else {
		r.printSuccess(details, duration)
	}

	return details, err
}

// SetRemoteOutput stores remote command output for verbose display
func (r *StageRunner) SetRemoteOutput(output string) {
	r.remoteOutput = output
}

// createStepCallback creates the step callback function
func (r *StageRunner) createStepCallback() StepCallback {
	return func(stepNumber int, name string, status StepStatus, message string) {
		if r.progress == nil {
			return
		}

		// Update step name if provided
		if name != "" && stepNumber > 0 && stepNumber <= len(r.progress.Steps) {
			r.progress.Steps[stepNumber-1].Name = name
		}

		// Update step status
		r.progress.UpdateStep(stepNumber, status, message)

		// Print progress line
		if status == StepComplete || status == StepFailed || status == StepSkipped {
			// Print completed step
			step := r.progress.Steps[stepNumber-1]
			_, _ = fmt.Fprintln(r.output, r.progress.renderStepLine(step))
		} else if status == StepRunning {
			// Print running step (will be overwritten when complete)
			step := r.progress.Steps[stepNumber-1]
			_, _ = fmt.Fprint(r.output, r.progress.renderStepLine(step)+"\r")
		}
	}
}

// printSuccess prints a success result with the operation's details
func (r *StageRunner) printSuccess(details map[string]string, duration time.Duration) {
	_, _ = fmt.Fprintln(r.output)

	// Add duration to details
	if details == nil {
		details = make(map[string]string)
	}
	details["Duration"] = duration.Round(time.Millisecond).String()

	result := NewSuccessResult(r.config.Title+" complete", details)
	result.SetWidth(r.width)
	_, _ = fmt.Fprintln(r.output, result.Render())

	// Show remote output in verbose mode
	if r.config.Verbose && r.remoteOutput != "" {
		_, _ = fmt.Fprintln(r.output)
		remote := NewRemoteOutput(r.remoteOutput)
		remote.SetWidth(r.width)
		_, _ = fmt.Fprintln(r.output, remote.Render())
	}
}

// printFailure prints a failure result with troubleshooting
func (r *StageRunner) printFailure(err error, duration time.Duration) {
	_, _ = fmt.Fprintln(r.output)

	// Default troubleshooting tips
	troubleshooting := []string{
		"Verify the hub is reachable and powered",
		"Check the transport: --transport ssh needs dropbear, --transport ws needs setup mode",
		"Try: smartap-hubfix check",
		"Run with HUBFIX_LOG_LEVEL=debug for full detail",
	}

	result := NewFailureResult(r.config.Title+" failed", err, troubleshooting)
	result.SetWidth(r.width)
	_, _ = fmt.Fprintln(r.output, result.Render())

	// Always show remote output on failure in verbose mode
	if r.config.Verbose && r.remoteOutput != "" {
		_, _ = fmt.Fprintln(r.output)
		remote := NewRemoteOutput(r.remoteOutput)
		remote.SetWidth(r.width)
		_, _ = fmt.Fprintln(r.output, remote.Render())
	}
}

// --- Simple helper functions for commands that don't need full StageRunner ---

// PrintCommandHeader prints a styled command header
func PrintCommandHeader(title, command string, params map[string]string) {
	width := GetTerminalWidth()
	header := NewHeader(title, command, params)
	header.SetWidth(width)
	fmt.Println(header.Render())
	fmt.Println()
}

// PrintSuccess prints a styled success result
func PrintSuccess(title string, details map[string]string) {
	width := GetTerminalWidth()
	result := NewSuccessResult(title, details)
	result.SetWidth(width)
	fmt.Println()
	fmt.Println(result.Render())
}

// PrintFailure prints a styled failure result
func PrintFailure(title string, err error, troubleshooting []string) {
	width := GetTerminalWidth()
	result := NewFailureResult(title, err, troubleshooting)
	result.SetWidth(width)
	fmt.Println()
	fmt.Println(result.Render())
}

// PrintWarning prints a styled warning result
func PrintWarning(title string, details map[string]string) {
	width := GetTerminalWidth()
	result := NewWarningResult(title, details)
	result.SetWidth(width)
	fmt.Println()
	fmt.Println(result.Render())
}

// PrintRemoteOutput prints a styled remote output box (for verbose mode)
func PrintRemoteOutput(output string) {
	width := GetTerminalWidth()
	remote := NewRemoteOutput(output)
	remote.SetWidth(width)
	fmt.Println()
	fmt.Println(remote.Render())
}

// PrintPleaseWait prints a styled "please wait" message for long-running operations.
// The message parameter should describe what's happening, e.g., "Transferring binary".
// The duration hint helps set user expectations, e.g., "up to 60 seconds".
func PrintPleaseWait(message string, durationHint string) {
	// Use primary/purple color - stands out but doesn't cause alarm
	style := lipgloss.NewStyle().
		Foreground(PrimaryColor).
		Bold(true).
		PaddingLeft(2)

	hintStyle := lipgloss.NewStyle().
		Foreground(MutedColor).
		Italic(true)

	line := style.Render("⏳ " + message)
	if durationHint != "" {
		line += " " + hintStyle.Render("("+durationHint+")")
	}
	line += style.Render("...")

	fmt.Println()
	fmt.Println(line)
	fmt.Println()
}
