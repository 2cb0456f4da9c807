package control

import (
	"context"
	"testing"

	"github.com/gmcoin/mintworker/internal/core/config"
	"github.com/gmcoin/mintworker/internal/infra/storage/memory"
)

func TestOpenStoreMemoryBackend(t *testing.T) {
	cfg := &config.AppConfig{}
	cfg.Storage.Backend = "memory"

	store, closer, err := OpenStore(context.Background(), cfg)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := store.(*memory.MemoryStore); !ok {
		t.Fatalf("store = %T, want *memory.MemoryStore", store)
	}
	if closer != nil {
		t.Error("memory backend returned a connection closer")
	}
}
