package ports

import (
	"context"

	"github.com/aretw0/resscene/pkg/domain"
)

// SceneRepository defines the durable backend of the scene store.
// Each scene is one record keyed by scene id; Save must be atomic per record
// so that a crash leaves either the old or the new record, never a mixture.
type SceneRepository interface {
	// Save persists (creates or replaces) the scene record.
	Save(ctx context.Context, scene *domain.Scene) error

	// Load retrieves the scene record for a scene id.
	// Returns domain.ErrSceneNotFound if no record exists.
	Load(ctx context.Context, sceneID string) (*domain.Scene, error)

	// Delete removes the scene record.
	// Returns domain.ErrSceneNotFound if no record exists.
	Delete(ctx context.Context, sceneID string) error

	// List returns the ids of every persisted scene.
	List(ctx context.Context) ([]string, error)
}
