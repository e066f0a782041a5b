package workflow

import (
	"fmt"

	"ingestor/internal/preflight"
	"ingestor/internal/services"
)

// ensureStorageSpace fails fast when the knowledge store's filesystem is below
// the configured free-space floor.
func (m *Manager) ensureStorageSpace() error {
	minMiB := int64(m.cfg.Storage.MinFreeMiB)
	if minMiB <= 0 {
		return nil
	}
	result := preflight.CheckFreeSpace("Knowledge store space", m.cfg.Paths.DataDir, minMiB)
	if result.Passed {
		return nil
	}
	err := services.Wrap(services.ErrStorage, "workflow", "preflight", fmt.Sprintf("insufficient disk space: %s", result.Detail), nil)
	return services.WithHint(err, "free space under "+m.cfg.Paths.DataDir+" or lower storage.min_free_mib")
}
