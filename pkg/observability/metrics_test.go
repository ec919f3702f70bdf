package observability_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/aretw0/resscene/internal/logging"
	"github.com/aretw0/resscene/pkg/domain"
	"github.com/aretw0/resscene/pkg/observability"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Hooks(t *testing.T) {
	m := observability.NewMetrics(func() int { return 3 })
	hooks := m.Hooks()
	ctx := context.Background()

	hooks.OnSceneSaved(ctx, &domain.SceneEvent{EventBase: domain.NewEventBase(domain.EventSceneSaved, "a")})
	hooks.OnSceneSaved(ctx, &domain.SceneEvent{EventBase: domain.NewEventBase(domain.EventSceneSaved, "a"), Err: errors.New("disk full")})
	hooks.OnEntityRestored(ctx, &domain.RestoreEvent{Outcome: domain.EntityOutcome{EntityID: "light.a", Status: domain.OutcomeApplied}})

	start := time.Now()
	hooks.OnSceneActivated(ctx, &domain.ActivationEvent{Report: &domain.ActivationReport{
		SceneID:    "a",
		Outcomes:   []domain.EntityOutcome{{EntityID: "light.a", Status: domain.OutcomeFailed}},
		StartedAt:  start,
		FinishedAt: start.Add(200 * time.Millisecond),
	}})

	expected := `
# HELP resscene_scene_operations_total Scene store and activation operations by outcome
# TYPE resscene_scene_operations_total counter
resscene_scene_operations_total{op="activate",result="error"} 1
resscene_scene_operations_total{op="save",result="error"} 1
resscene_scene_operations_total{op="save",result="ok"} 1
`
	require.NoError(t, testutil.GatherAndCompare(m.Registry(), strings.NewReader(expected), "resscene_scene_operations_total"))

	expected = `
# HELP resscene_entity_restores_total Per-entity restore outcomes
# TYPE resscene_entity_restores_total counter
resscene_entity_restores_total{domain="light",status="applied"} 1
`
	require.NoError(t, testutil.GatherAndCompare(m.Registry(), strings.NewReader(expected), "resscene_entity_restores_total"))

	expected = `
# HELP resscene_scenes Scenes currently held by the store
# TYPE resscene_scenes gauge
resscene_scenes 3
`
	require.NoError(t, testutil.GatherAndCompare(m.Registry(), strings.NewReader(expected), "resscene_scenes"))
}

func TestMetrics_Handler(t *testing.T) {
	m := observability.NewMetrics(nil)
	m.Hooks().OnSceneDeleted(context.Background(), &domain.SceneEvent{})

	srv := httptest.NewServer(m.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `resscene_scene_operations_total{op="delete",result="ok"} 1`)
	assert.NotContains(t, string(body), "resscene_scenes ")
}

func TestCombine(t *testing.T) {
	var calls []string
	first := domain.LifecycleHooks{
		OnSceneSaved: func(context.Context, *domain.SceneEvent) { calls = append(calls, "first") },
	}
	second := domain.LifecycleHooks{
		OnSceneSaved:   func(context.Context, *domain.SceneEvent) { calls = append(calls, "second") },
		OnSceneDeleted: func(context.Context, *domain.SceneEvent) { calls = append(calls, "deleted") },
	}

	hooks := observability.Combine(first, second)
	ctx := context.Background()
	hooks.OnSceneSaved(ctx, &domain.SceneEvent{})
	hooks.OnSceneDeleted(ctx, &domain.SceneEvent{})
	hooks.OnEntityRestored(ctx, &domain.RestoreEvent{})

	assert.Equal(t, []string{"first", "second", "deleted"}, calls)
}

func TestLogHooks(t *testing.T) {
	var buf bytes.Buffer
	hooks := observability.LogHooks(logging.NewWithWriter(&buf, slog.LevelDebug, logging.FormatJSON))
	ctx := context.Background()

	hooks.OnSceneSaved(ctx, &domain.SceneEvent{EventBase: domain.NewEventBase(domain.EventSceneSaved, "movie"), Entities: 2})
	hooks.OnSceneDeleted(ctx, &domain.SceneEvent{EventBase: domain.NewEventBase(domain.EventSceneDeleted, "movie"), Err: errors.New("boom")})

	out := buf.String()
	assert.Contains(t, out, `"msg":"scene_saved"`)
	assert.Contains(t, out, `"scene_id":"movie"`)
	assert.Contains(t, out, `"msg":"scene_delete_failed"`)
	assert.Contains(t, out, `"err":"boom"`)
}
