package volren

import (
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/volren/volren/internal/gpucompute"
)

// Surface is a display target owned by the host application. The
// Coordinator toggles visibility between the compute-path surface and
// the host-engine surface when switching backends; downstream display
// code renders whichever handle is active without knowing which backend
// produced it.
type Surface interface {
	// Handle returns an opaque, backend-specific display handle.
	Handle() any

	// SetVisible shows or hides the surface.
	SetVisible(visible bool)
}

// capabilityCache is the persisted result of the last GPU capability
// probe. Advisory only: it lets a subsequent startup skip straight to
// the expected backend, but a fresh probe always wins on disagreement.
type capabilityCache struct {
	Checked time.Time `yaml:"checked"`
	Present bool      `yaml:"present"`
	Adapter string    `yaml:"adapter"`
}

func capabilityCachePath() (string, error) {
	dir, err := os.UserCacheDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "volren", "capability.yaml"), nil
}

func loadCapabilityCache() (capabilityCache, bool) {
	var c capabilityCache
	path, err := capabilityCachePath()
	if err != nil {
		return c, false
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return c, false
	}
	if err := yaml.Unmarshal(data, &c); err != nil {
		Logger().Warn("volren: discarding malformed capability cache", "path", path, "error", err)
		return c, false
	}
	return c, true
}

func storeCapabilityCache(c capabilityCache) {
	path, err := capabilityCachePath()
	if err != nil {
		return
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		Logger().Warn("volren: failed to persist capability cache", "path", path, "error", err)
	}
}

// IsAccelerationAvailable reports whether a GPU compute device can be
// opened. The probe result is cached on disk for fast subsequent
// startups; the cache is advisory and refreshed whenever the live probe
// disagrees with it.
func IsAccelerationAvailable() bool {
	adapter, err := gpucompute.Probe()
	present := err == nil
	cached, ok := loadCapabilityCache()
	if !ok || cached.Present != present || cached.Adapter != adapter {
		storeCapabilityCache(capabilityCache{
			Checked: time.Now(),
			Present: present,
			Adapter: adapter,
		})
	}
	return present
}
