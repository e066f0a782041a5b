package testsupport

import (
	"testing"

	"ingestor/internal/config"
	"ingestor/internal/knowledge"
)

// MustOpenStore opens the knowledge store for cfg and closes it when the
// test ends.
func MustOpenStore(t testing.TB, cfg *config.Config, opts ...knowledge.Option) *knowledge.Store {
	t.Helper()
	store, err := knowledge.Open(cfg, opts...)
	if err != nil {
		t.Fatalf("open knowledge store: %v", err)
	}
	t.Cleanup(func() {
		_ = store.Close()
	})
	return store
}
