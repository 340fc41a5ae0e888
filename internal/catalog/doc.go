// Package catalog holds the embedded patch target catalog.
//
// A patch target binds together everything the orchestrator needs to
// treat as versioned configuration rather than code: the remote path of
// the binary on the hub, the service it belongs to, the known-good MD5
// digest of the unpatched binary, the known-good digest of the patched
// binary, and the delta payload that transforms one into the other.
//
// The catalog ships inside the executable (go:embed) so a release is
// self-contained: supporting a new hub firmware version is a new
// targets.yaml entry plus a payload file, with no orchestrator changes.
package catalog
