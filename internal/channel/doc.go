// Package channel provides the remote file channel to a Smartap Hub.
//
// The orchestrator only depends on the Channel capability contract:
// pull a file, push a file, execute a command. Two concrete transports
// implement it:
//
//   - SSH (ssh.go): the hub's dropbear server. Files stream through
//     cat on the remote side, so arbitrary binaries work without an
//     sftp subsystem. This is the normal transport.
//   - WebSocket (ws.go): the /debug/fs endpoint the hub exposes in
//     setup mode, for units where dropbear is disabled. Requests and
//     responses are small JSON envelopes.
//
// Both transports are strictly sequential; one operation completes
// before the next starts. Timeouts are enforced here, not by callers.
package channel
