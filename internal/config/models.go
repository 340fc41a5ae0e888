package config

import "time"

// Registry represents the entire local registry file.
// It records per-hub patch state so later invocations (most importantly
// undo) know what happened and where the backups are.
type Registry struct {
	Version int             `yaml:"version"`
	Hubs    map[string]*Hub `yaml:"hubs,omitempty"` // Keyed by hub address
}

// Hub represents the recorded state of a single hub.
// This is keyed by the hub's address in the Registry.
type Hub struct {
	Patched       bool      `yaml:"patched"`                  // Whether the hub currently runs a patched binary
	TargetVersion string    `yaml:"target_version,omitempty"` // Catalog version last applied or undone
	BackupPath    string    `yaml:"backup_path,omitempty"`    // Local path of the pre-patch backup
	RemoteDigest  string    `yaml:"remote_digest,omitempty"`  // Verified digest of the installed binary after the last run
	Transport     string    `yaml:"transport,omitempty"`      // Transport used for the last run ("ssh" or "ws")
	LastRun       time.Time `yaml:"last_run,omitempty"`       // Time of the last successful patch or undo
}

// NewRegistry creates a new Registry with default values.
func NewRegistry() *Registry {
	return &Registry{
		Version: 1,
		Hubs:    make(map[string]*Hub),
	}
}

// GetHub retrieves the recorded state for a hub by address.
// Returns nil if the hub has never been recorded.
func (r *Registry) GetHub(address string) *Hub {
	return r.Hubs[address]
}

// EnsureHub ensures a hub entry exists in the registry.
// If the hub doesn't exist, creates a new empty entry.
// Returns the hub entry (existing or newly created).
func (r *Registry) EnsureHub(address string) *Hub {
	if r.Hubs == nil {
		r.Hubs = make(map[string]*Hub)
	}

	if hub, exists := r.Hubs[address]; exists {
		return hub
	}

	hub := &Hub{}
	r.Hubs[address] = hub
	return hub
}

// RecordPatch records a successful patch run against a hub.
func (r *Registry) RecordPatch(address, targetVersion, backupPath, remoteDigest, transport string) {
	hub := r.EnsureHub(address)
	hub.Patched = true
	hub.TargetVersion = targetVersion
	hub.BackupPath = backupPath
	hub.RemoteDigest = remoteDigest
	hub.Transport = transport
	hub.LastRun = time.Now()
}

// RecordUndo records a successful undo run against a hub. The backup
// path is kept: the file still exists and may be needed again.
func (r *Registry) RecordUndo(address, targetVersion, remoteDigest, transport string) {
	hub := r.EnsureHub(address)
	hub.Patched = false
	hub.TargetVersion = targetVersion
	hub.RemoteDigest = remoteDigest
	hub.Transport = transport
	hub.LastRun = time.Now()
}

// LookupBackup returns the recorded backup path for a hub, if any.
// Used by the undo command when the operator does not pass --backup.
func (r *Registry) LookupBackup(address string) (string, bool) {
	hub := r.GetHub(address)
	if hub == nil || hub.BackupPath == "" {
		return "", false
	}
	return hub.BackupPath, true
}
