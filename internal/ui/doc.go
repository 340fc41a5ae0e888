// Package ui provides terminal UI components for the smartap-hubfix CLI.
//
// This package uses Bubble Tea and Lipgloss to render polished terminal output
// for remote patch operations. The components follow a "run once and exit"
// pattern - they render output compellingly but don't require user interaction
// beyond the initial confirmation.
//
// # Architecture
//
// The UI package provides four main component types:
//
//   - Header: Command banner showing operation name and parameters
//   - Progress: Progress bar with step list showing real-time status
//   - Result: Success/failure boxes with styled information
//   - RemoteOutput: Raw hub command output box for verbose mode
//
// These components are orchestrated by the StageRunner, which manages the
// header → progress → result flow for a staged remote operation.
//
// # Usage Pattern
//
// Commands use this package by:
//
//  1. Creating a StageRunner with command metadata
//  2. Calling Run() with their operation function
//  3. The operation reports progress via a step callback
//  4. StageRunner handles all UI rendering automatically
//
// Example:
//
//	runner := ui.NewStageRunner(ui.StageRunnerConfig{
//	    Title:      "Cloudd Patch",
//	    Command:    "smartap-hubfix patch",
//	    Params:     map[string]string{"Device": "192.168.1.50"},
//	    TotalSteps: 9,
//	    StepNames:  stepNames,
//	})
//
//	_, err := runner.Run(ctx, func(onStep ui.StepCallback) (map[string]string, error) {
//	    onStep(1, "Fetching installed binary", ui.StepRunning, "")
//	    // ... do work ...
//	    onStep(1, "Fetching installed binary", ui.StepComplete, "241 KiB")
//	    return details, nil
//	})
//
// # Logging Integration
//
// This package expects logging to be controlled via the HUBFIX_LOG_LEVEL
// environment variable. When unset or empty, zap logging is silent, allowing
// the curated UI output to be displayed cleanly. Set HUBFIX_LOG_LEVEL to
// "debug", "info", "warn", or "error" to enable logging output (to stderr).
//
// # Verbose Mode
//
// When --verbose is passed, the RemoteOutput component displays raw output
// from commands executed on the hub in a styled box after the result. This is
// useful for debugging and seeing exactly what the hub's shell reported.
package ui
