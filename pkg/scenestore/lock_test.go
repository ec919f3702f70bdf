package scenestore

import (
	"context"
	"fmt"
	"testing"

	"github.com/aretw0/resscene/pkg/adapters/memory"
	"github.com/aretw0/resscene/pkg/domain"
)

func TestStore_LockLifecycle(t *testing.T) {
	store := New(memory.NewStore())
	ctx := context.Background()
	count := 1000

	for i := 0; i < count; i++ {
		id := fmt.Sprintf("scene_%d", i)
		_, _ = store.Put(ctx, id, nil, domain.SceneOptions{})
		_ = store.Delete(ctx, domain.SceneEntityID(id))
	}

	if n := store.activeLocks(); n != 0 {
		t.Errorf("Memory Leak Detected: %d locks remaining in memory after Delete", n)
	}
}
