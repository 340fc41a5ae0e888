// Package config provides the local hub registry for the Smartap hubfix tool.
//
// This package manages a YAML-based registry file that records which hubs have
// been patched, when, with which target version, and where the local backup of
// the original binary was written. The undo command uses it to find the backup
// for a hub without the operator having to remember the path.
//
// # Registry File Location
//
// The registry file is stored in platform-appropriate locations:
//   - Linux: $XDG_CONFIG_HOME/smartap-hubfix/registry.yaml or $HOME/.config/smartap-hubfix/registry.yaml
//   - macOS: $HOME/.config/smartap-hubfix/registry.yaml
//   - Windows: %LOCALAPPDATA%\smartap-hubfix\registry.yaml
//
// # Security
//
// IMPORTANT: This package NEVER stores hub credentials. SSH passwords are
// always prompted when needed.
//
// # Thread Safety
//
// The global registry uses sync.Once for safe initialization across goroutines.
// File operations are protected by a mutex and writes are atomic (temp file
// plus rename) so a crash never leaves a half-written registry.
package config
