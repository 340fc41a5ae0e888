// Package patcher sequences the checksum-gated patch-apply-transfer
// state machine against one hub.
//
// A run is strictly sequential: fetch the installed binary, verify it
// is the exact version the payload was built for, write the local
// backup, apply the delta, verify the result, stop the service, push
// and atomically rename, re-verify on the hub, restart the service.
// Every stage either completes or fails the whole run; nothing is
// retried automatically, because blindly re-writing a remote executable
// without re-verification can compound corruption.
//
// Failures before the first remote write leave the hub untouched and
// are safe to retry by re-running the command. Failures after a remote
// write are reported with explicit remediation (usually the undo path)
// and never papered over.
//
// The orchestrator owns no transport and no constants: the remote
// channel and the catalog target are injected, which is what makes the
// state machine testable against an in-memory hub.
package patcher
