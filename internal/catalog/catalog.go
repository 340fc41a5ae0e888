package catalog

import (
	"embed"
	"fmt"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/muurk/smartap-hubfix/internal/checksum"
	"github.com/muurk/smartap-hubfix/internal/delta"
)

//go:embed targets.yaml payloads
var catalogFS embed.FS

// Target describes one patchable binary version on the hub.
type Target struct {
	// Version is the hub firmware version identifier (e.g., "1.04.022")
	Version string `yaml:"version"`

	// Name is the human-readable target name
	Name string `yaml:"name"`

	// Verified indicates whether this target has been patched on real hardware
	Verified bool `yaml:"verified"`

	// RemotePath is the absolute path of the binary on the hub
	RemotePath string `yaml:"remote_path"`

	// Service is the init.d service name that runs the binary
	Service string `yaml:"service"`

	// SourceDigest is the MD5 of the unpatched binary. The payload must
	// never be applied to a binary with any other digest.
	SourceDigest string `yaml:"source_md5"`

	// PatchedDigest is the MD5 a correct patch application produces
	PatchedDigest string `yaml:"patched_md5"`

	// PayloadFile is the embedded payload path relative to this package
	PayloadFile string `yaml:"payload"`

	// Notes contains additional information about this target
	Notes string `yaml:"notes"`

	// PayloadBytes, when non-nil, overrides the embedded payload file.
	// Set for targets constructed from a local payload rather than the
	// catalog.
	PayloadBytes []byte `yaml:"-"`
}

// Payload returns the delta payload bytes for this target.
func (t *Target) Payload() ([]byte, error) {
	if t.PayloadBytes != nil {
		return t.PayloadBytes, nil
	}
	data, err := catalogFS.ReadFile(t.PayloadFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read payload %s: %w", t.PayloadFile, err)
	}
	return data, nil
}

// String returns a human-readable representation of the target.
func (t *Target) String() string {
	verifiedStr := ""
	if t.Verified {
		verifiedStr = " (verified)"
	}
	return fmt.Sprintf("%s - %s%s", t.Version, t.Name, verifiedStr)
}

// Catalog holds all known patch targets.
type Catalog struct {
	// Targets is a slice of all known patch targets
	Targets []*Target

	// index maps version strings to targets for fast lookup
	index map[string]*Target
}

// catalogContainer is for YAML unmarshaling
type catalogContainer struct {
	Targets []*Target `yaml:"targets"`
}

var (
	globalCatalog     *Catalog
	globalCatalogOnce sync.Once
	globalCatalogErr  error
)

// Load loads the embedded target catalog. Safe to call multiple times;
// the catalog is parsed and validated only once.
func Load() (*Catalog, error) {
	globalCatalogOnce.Do(func() {
		globalCatalog, globalCatalogErr = loadInternal()
	})
	return globalCatalog, globalCatalogErr
}

func loadInternal() (*Catalog, error) {
	raw, err := catalogFS.ReadFile("targets.yaml")
	if err != nil {
		return nil, fmt.Errorf("failed to read embedded catalog: %w", err)
	}

	var container catalogContainer
	if err := yaml.Unmarshal(raw, &container); err != nil {
		return nil, fmt.Errorf("failed to parse targets.yaml: %w", err)
	}

	c := &Catalog{
		Targets: container.Targets,
		index:   make(map[string]*Target),
	}
	for _, t := range c.Targets {
		if err := validateTarget(t); err != nil {
			return nil, fmt.Errorf("invalid catalog entry %q: %w", t.Version, err)
		}
		c.index[t.Version] = t
	}
	return c, nil
}

// validateTarget rejects catalog entries that could send the
// orchestrator into a run with unusable constants.
func validateTarget(t *Target) error {
	if t.Version == "" {
		return fmt.Errorf("missing version")
	}
	if t.RemotePath == "" {
		return fmt.Errorf("missing remote_path")
	}
	if t.Service == "" {
		return fmt.Errorf("missing service")
	}
	if !checksum.IsDigest(t.SourceDigest) {
		return fmt.Errorf("source_md5 %q is not a valid digest", t.SourceDigest)
	}
	if !checksum.IsDigest(t.PatchedDigest) {
		return fmt.Errorf("patched_md5 %q is not a valid digest", t.PatchedDigest)
	}
	if t.SourceDigest == t.PatchedDigest {
		return fmt.Errorf("source and patched digests are identical")
	}

	payload, err := t.Payload()
	if err != nil {
		return err
	}
	if _, err := delta.ParseHeader(payload); err != nil {
		return fmt.Errorf("payload %s: %w", t.PayloadFile, err)
	}
	return nil
}

// Get retrieves a target by version string.
func (c *Catalog) Get(version string) (*Target, bool) {
	t, ok := c.index[version]
	return t, ok
}

// Versions returns all version strings in the catalog.
func (c *Catalog) Versions() []string {
	versions := make([]string, 0, len(c.Targets))
	for _, t := range c.Targets {
		versions = append(versions, t.Version)
	}
	return versions
}

// Default returns the target to use when the operator does not name
// one. That is only unambiguous while the catalog has exactly one
// verified entry; otherwise the caller must pick explicitly.
func (c *Catalog) Default() (*Target, error) {
	var verified []*Target
	for _, t := range c.Targets {
		if t.Verified {
			verified = append(verified, t)
		}
	}
	if len(verified) == 1 {
		return verified[0], nil
	}
	return nil, fmt.Errorf("catalog has %d verified targets, use --target-version to pick one of: %v",
		len(verified), c.Versions())
}

// ByDigest returns the target whose source or patched digest matches
// the given digest, along with which side matched. Used by the check
// command to classify a fetched binary.
func (c *Catalog) ByDigest(digest string) (t *Target, patched bool, ok bool) {
	for _, candidate := range c.Targets {
		if strings.EqualFold(candidate.SourceDigest, digest) {
			return candidate, false, true
		}
		if strings.EqualFold(candidate.PatchedDigest, digest) {
			return candidate, true, true
		}
	}
	return nil, false, false
}
