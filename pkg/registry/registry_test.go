package registry_test

import (
	"context"
	"errors"
	"testing"

	"github.com/aretw0/resscene/pkg/adapters/memory"
	"github.com/aretw0/resscene/pkg/domain"
	"github.com/aretw0/resscene/pkg/registry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scene(t *testing.T, id string, entities ...string) *domain.Scene {
	t.Helper()
	s := &domain.Scene{ID: id}
	for _, e := range entities {
		snap, err := domain.NewEntitySnapshot(e, "on", nil)
		require.NoError(t, err)
		s.Snapshots = append(s.Snapshots, snap)
	}
	return s
}

func TestRegistry_RegisterActivate(t *testing.T) {
	r := registry.NewRegistry()
	ctx := context.Background()
	calls := 0

	err := r.Register(ctx, scene(t, "evening_mode", "light.a"), func(ctx context.Context) (*domain.ActivationReport, error) {
		calls++
		return &domain.ActivationReport{SceneID: "evening_mode"}, nil
	})
	require.NoError(t, err)

	report, err := r.Activate(ctx, "scene.evening_mode")
	require.NoError(t, err)
	assert.Equal(t, "evening_mode", report.SceneID)
	assert.Equal(t, 1, calls)

	entry, ok := r.Lookup("scene.evening_mode")
	require.True(t, ok)
	assert.False(t, entry.LastActivated.IsZero())

	_, err = r.Activate(ctx, "scene.unknown")
	assert.ErrorIs(t, err, domain.ErrSceneNotFound)
}

func TestRegistry_HandlerError(t *testing.T) {
	r := registry.NewRegistry()
	ctx := context.Background()
	boom := errors.New("boom")
	require.NoError(t, r.Register(ctx, scene(t, "x"), func(context.Context) (*domain.ActivationReport, error) {
		return nil, boom
	}))

	_, err := r.Activate(ctx, "scene.x")
	assert.ErrorIs(t, err, boom)
	entry, _ := r.Lookup("scene.x")
	assert.True(t, entry.LastActivated.IsZero())
}

func TestRegistry_PublishesToHost(t *testing.T) {
	host := memory.NewHost()
	r := registry.NewRegistry(registry.WithPublisher(host))
	ctx := context.Background()
	noop := func(context.Context) (*domain.ActivationReport, error) { return &domain.ActivationReport{}, nil }

	require.NoError(t, r.Register(ctx, scene(t, "movie", "light.tv", "cover.blinds"), noop))

	s, err := host.GetState(ctx, "scene.movie")
	require.NoError(t, err)
	assert.Equal(t, "unknown", s.State)
	assert.Equal(t, "Res: movie", s.Attributes["friendly_name"])
	assert.Equal(t, []any{"light.tv", "cover.blinds"}, s.Attributes["entity_id"])

	_, err = r.Activate(ctx, "scene.movie")
	require.NoError(t, err)
	s, _ = host.GetState(ctx, "scene.movie")
	assert.NotEqual(t, "unknown", s.State, "state becomes the activation time")

	require.NoError(t, r.Unregister(ctx, "scene.movie"))
	_, err = host.GetState(ctx, "scene.movie")
	assert.ErrorIs(t, err, domain.ErrEntityNotFound)
	assert.Empty(t, r.List())

	assert.NoError(t, r.Unregister(ctx, "scene.movie"), "unregister is idempotent")
}

func TestRegistry_ListSorted(t *testing.T) {
	r := registry.NewRegistry()
	ctx := context.Background()
	noop := func(context.Context) (*domain.ActivationReport, error) { return nil, nil }
	for _, id := range []string{"c", "a", "b"} {
		require.NoError(t, r.Register(ctx, scene(t, id), noop))
	}

	var ids []string
	for _, e := range r.List() {
		ids = append(ids, e.SceneID)
	}
	assert.Equal(t, []string{"a", "b", "c"}, ids)
}
