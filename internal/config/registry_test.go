package config

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"
)

func TestGetConfigDir(t *testing.T) {
	configDir, err := GetConfigDir()
	if err != nil {
		t.Fatalf("GetConfigDir() error = %v", err)
	}

	if configDir == "" {
		t.Error("GetConfigDir() returned empty string")
	}

	if !strings.Contains(configDir, "smartap-hubfix") {
		t.Errorf("GetConfigDir() = %v, should contain 'smartap-hubfix'", configDir)
	}

	// Platform-specific checks
	switch runtime.GOOS {
	case "windows":
		if !strings.Contains(configDir, "AppData") && !strings.Contains(configDir, "Local") {
			t.Errorf("Windows config dir should contain 'AppData' or 'Local', got: %v", configDir)
		}
	case "darwin", "linux":
		if !strings.Contains(configDir, ".config") {
			t.Errorf("Unix config dir should contain '.config', got: %v", configDir)
		}
	}
}

func TestGetConfigDirHonorsXDG(t *testing.T) {
	if runtime.GOOS == "windows" || runtime.GOOS == "darwin" {
		t.Skip("XDG_CONFIG_HOME only applies on Linux")
	}

	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)

	configDir, err := GetConfigDir()
	if err != nil {
		t.Fatalf("GetConfigDir() error = %v", err)
	}
	if configDir != filepath.Join(dir, "smartap-hubfix") {
		t.Errorf("GetConfigDir() = %v, want %v", configDir, filepath.Join(dir, "smartap-hubfix"))
	}
}

func TestGetRegistryPath(t *testing.T) {
	registryPath, err := GetRegistryPath()
	if err != nil {
		t.Fatalf("GetRegistryPath() error = %v", err)
	}

	if filepath.Base(registryPath) != "registry.yaml" {
		t.Errorf("GetRegistryPath() should end with 'registry.yaml', got: %v", registryPath)
	}
}

func TestNewRegistry(t *testing.T) {
	reg := NewRegistry()

	if reg.Version != 1 {
		t.Errorf("NewRegistry().Version = %v, want 1", reg.Version)
	}

	if reg.Hubs == nil {
		t.Error("NewRegistry().Hubs should not be nil")
	}
}

func TestRegistryEnsureHub(t *testing.T) {
	reg := NewRegistry()

	// First call should create the hub
	hub1 := reg.EnsureHub("192.168.1.50")
	if hub1 == nil {
		t.Fatal("EnsureHub() returned nil")
	}

	// Second call should return the same hub
	hub2 := reg.EnsureHub("192.168.1.50")
	if hub1 != hub2 {
		t.Error("EnsureHub() should return same instance for same address")
	}

	// Different address should create a new hub
	hub3 := reg.EnsureHub("192.168.1.51")
	if hub1 == hub3 {
		t.Error("EnsureHub() should create new instance for different address")
	}
}

func TestRegistryRecordPatch(t *testing.T) {
	reg := NewRegistry()

	before := time.Now()
	reg.RecordPatch("192.168.1.50", "1.04.022", "/backups/cloudd-1.04.022.orig",
		"b289b3e371f083c7d317108d8efde2de", "ssh")
	after := time.Now()

	hub := reg.GetHub("192.168.1.50")
	if hub == nil {
		t.Fatal("Hub should exist after RecordPatch()")
	}
	if !hub.Patched {
		t.Error("Hub should be marked patched")
	}
	if hub.TargetVersion != "1.04.022" {
		t.Errorf("TargetVersion = %v, want 1.04.022", hub.TargetVersion)
	}
	if hub.BackupPath != "/backups/cloudd-1.04.022.orig" {
		t.Errorf("BackupPath = %v", hub.BackupPath)
	}
	if hub.Transport != "ssh" {
		t.Errorf("Transport = %v, want ssh", hub.Transport)
	}
	if hub.LastRun.Before(before) || hub.LastRun.After(after) {
		t.Errorf("LastRun = %v, should be between %v and %v", hub.LastRun, before, after)
	}
}

func TestRegistryRecordUndoKeepsBackupPath(t *testing.T) {
	reg := NewRegistry()
	reg.RecordPatch("192.168.1.50", "1.04.022", "/backups/cloudd.orig", "b2", "ssh")
	reg.RecordUndo("192.168.1.50", "1.04.022", "acf9f41d63b47a94b22daea47d50777b", "ws")

	hub := reg.GetHub("192.168.1.50")
	if hub.Patched {
		t.Error("Hub should not be marked patched after undo")
	}
	// The backup file still exists on disk; keep pointing at it
	if hub.BackupPath != "/backups/cloudd.orig" {
		t.Errorf("BackupPath = %v, should survive undo", hub.BackupPath)
	}
	if hub.Transport != "ws" {
		t.Errorf("Transport = %v, want ws", hub.Transport)
	}
}

func TestRegistryLookupBackup(t *testing.T) {
	reg := NewRegistry()

	if _, ok := reg.LookupBackup("192.168.1.50"); ok {
		t.Error("LookupBackup() should report no backup for an unknown hub")
	}

	reg.RecordPatch("192.168.1.50", "1.04.022", "/backups/cloudd.orig", "b2", "ssh")

	path, ok := reg.LookupBackup("192.168.1.50")
	if !ok {
		t.Fatal("LookupBackup() should find the recorded backup")
	}
	if path != "/backups/cloudd.orig" {
		t.Errorf("LookupBackup() = %v", path)
	}
}

func TestRegistrySaveAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "registry.yaml")

	reg := NewRegistry()
	reg.RecordPatch("192.168.1.50", "1.04.022", "/backups/cloudd.orig",
		"b289b3e371f083c7d317108d8efde2de", "ssh")

	if err := reg.saveToFile(path); err != nil {
		t.Fatalf("saveToFile() error = %v", err)
	}

	loaded, err := loadRegistryFromFile(path)
	if err != nil {
		t.Fatalf("loadRegistryFromFile() error = %v", err)
	}

	hub := loaded.GetHub("192.168.1.50")
	if hub == nil {
		t.Fatal("Hub should exist in loaded registry")
	}
	if !hub.Patched {
		t.Error("Loaded hub should be marked patched")
	}
	if hub.BackupPath != "/backups/cloudd.orig" {
		t.Errorf("Loaded backup path = %v", hub.BackupPath)
	}
	if hub.RemoteDigest != "b289b3e371f083c7d317108d8efde2de" {
		t.Errorf("Loaded remote digest = %v", hub.RemoteDigest)
	}
}

func TestLoadRegistryMissingFile(t *testing.T) {
	reg, err := loadRegistryFromFile(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	if err != nil {
		t.Fatalf("loading a missing registry should not error, got %v", err)
	}
	if reg.Version != 1 || reg.Hubs == nil {
		t.Error("missing file should yield a fresh default registry")
	}
}

func TestLoadRegistryRejectsUnknownVersion(t *testing.T) {
	path := filepath.Join(t.TempDir(), "registry.yaml")
	if err := os.WriteFile(path, []byte("version: 99\n"), 0600); err != nil {
		t.Fatal(err)
	}

	if _, err := loadRegistryFromFile(path); err == nil {
		t.Error("loading an unsupported registry version should error")
	}
}
