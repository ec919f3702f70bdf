package ports

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/aretw0/resscene/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunSceneRepositoryContract runs a suite of tests to verify that a SceneRepository
// implementation adheres to the defined interface contract.
func RunSceneRepositoryContract(t *testing.T, repo SceneRepository) {
	ctx := context.Background()
	sceneID := "contract_" + time.Now().Format("20060102150405")

	newScene := func(t *testing.T, id string, states map[string]string) *domain.Scene {
		t.Helper()
		scene := &domain.Scene{
			ID:        id,
			CreatedAt: time.Now().UTC().Truncate(time.Millisecond),
			UpdatedAt: time.Now().UTC().Truncate(time.Millisecond),
			Options:   domain.SceneOptions{RestoreLightAttributes: domain.Bool(true)},
		}
		for _, eid := range []string{"light.living_room", "switch.aircon"} {
			st, ok := states[eid]
			if !ok {
				continue
			}
			snap, err := domain.NewEntitySnapshot(eid, st, map[string]any{"brightness": 80, "friendly_name": eid})
			require.NoError(t, err)
			scene.Snapshots = append(scene.Snapshots, snap)
		}
		return scene
	}

	t.Run("Save and Load", func(t *testing.T) {
		scene := newScene(t, sceneID, map[string]string{"light.living_room": "on", "switch.aircon": "off"})

		err := repo.Save(ctx, scene)
		require.NoError(t, err, "Save should not return error")

		loaded, err := repo.Load(ctx, sceneID)
		require.NoError(t, err, "Load should not return error")
		assert.Equal(t, scene.ID, loaded.ID)
		assert.Equal(t, scene.EntityIDs(), loaded.EntityIDs(), "snapshot order must be preserved")
		snap, ok := loaded.Snapshot("light.living_room")
		require.True(t, ok)
		assert.Equal(t, "on", snap.State())
		v, _ := snap.Attribute("brightness")
		assert.Equal(t, json.Number("80"), v, "numbers must round-trip as json.Number")
		assert.True(t, loaded.Options.RestoreLights())
		assert.True(t, scene.CreatedAt.Equal(loaded.CreatedAt))
	})

	t.Run("Overwrite Replaces", func(t *testing.T) {
		err := repo.Save(ctx, newScene(t, sceneID, map[string]string{"switch.aircon": "on"}))
		require.NoError(t, err)

		loaded, err := repo.Load(ctx, sceneID)
		require.NoError(t, err)
		assert.Equal(t, []string{"switch.aircon"}, loaded.EntityIDs())
	})

	t.Run("Load Non-Existent", func(t *testing.T) {
		_, err := repo.Load(ctx, "missing_"+sceneID)
		assert.ErrorIs(t, err, domain.ErrSceneNotFound)
	})

	t.Run("Delete", func(t *testing.T) {
		err := repo.Save(ctx, newScene(t, sceneID, map[string]string{"light.living_room": "on"}))
		require.NoError(t, err)

		err = repo.Delete(ctx, sceneID)
		require.NoError(t, err, "Delete should not return error")

		_, err = repo.Load(ctx, sceneID)
		assert.ErrorIs(t, err, domain.ErrSceneNotFound, "Load after Delete should return ErrSceneNotFound")

		err = repo.Delete(ctx, sceneID)
		assert.ErrorIs(t, err, domain.ErrSceneNotFound, "Delete of an absent scene should return ErrSceneNotFound")
	})

	t.Run("List", func(t *testing.T) {
		id1 := sceneID + "_1"
		id2 := sceneID + "_2"
		require.NoError(t, repo.Save(ctx, newScene(t, id1, map[string]string{"switch.aircon": "on"})))
		require.NoError(t, repo.Save(ctx, newScene(t, id2, map[string]string{"switch.aircon": "off"})))

		defer func() {
			_ = repo.Delete(ctx, id1)
			_ = repo.Delete(ctx, id2)
		}()

		ids, err := repo.List(ctx)
		require.NoError(t, err)
		assert.Contains(t, ids, id1)
		assert.Contains(t, ids, id2)
	})
}
