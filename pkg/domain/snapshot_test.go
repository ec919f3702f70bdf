package domain_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/aretw0/resscene/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEntitySnapshot_Immutable(t *testing.T) {
	attrs := map[string]any{
		"brightness": 80,
		"rgb_color":  []int{255, 0, 0},
		"nested":     map[string]any{"a": 1},
	}
	snap, err := domain.NewEntitySnapshot("light.living_room", "on", attrs)
	require.NoError(t, err)

	// Mutating the input must not leak into the snapshot.
	attrs["brightness"] = 10
	attrs["nested"].(map[string]any)["a"] = 2

	got := snap.Attributes()
	assert.Equal(t, json.Number("80"), got["brightness"])
	assert.Equal(t, []any{json.Number("255"), json.Number("0"), json.Number("0")}, got["rgb_color"])

	// Mutating the returned copy must not leak either.
	got["brightness"] = "x"
	got["nested"].(map[string]any)["a"] = "y"
	again := snap.Attributes()
	assert.Equal(t, json.Number("80"), again["brightness"])
	assert.Equal(t, map[string]any{"a": json.Number("1")}, again["nested"])
}

func TestEntitySnapshot_Normalize(t *testing.T) {
	ts := time.Date(2026, 10, 14, 20, 0, 0, 0, time.UTC)
	snap, err := domain.NewEntitySnapshot("climate.den", "heat", map[string]any{
		"temperature": 21.5,
		"last_seen":   ts,
		"modes":       [2]string{"heat", "cool"},
		"raw":         []byte("abc"),
		"missing":     nil,
	})
	require.NoError(t, err)

	attrs := snap.Attributes()
	assert.Equal(t, json.Number("21.5"), attrs["temperature"])
	assert.Equal(t, "2026-10-14T20:00:00Z", attrs["last_seen"])
	assert.Equal(t, []any{"heat", "cool"}, attrs["modes"])
	assert.Equal(t, "abc", attrs["raw"])
	assert.Nil(t, attrs["missing"])
	assert.Equal(t, "climate", snap.Domain())
}

func TestEntitySnapshot_JSONRoundTrip(t *testing.T) {
	snap, err := domain.NewEntitySnapshot("light.a", "on", map[string]any{"brightness": 80, "effect": "none"})
	require.NoError(t, err)

	data, err := json.Marshal(snap)
	require.NoError(t, err)

	var back domain.EntitySnapshot
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, snap, back)
}

func TestScene_EntityIDHelpers(t *testing.T) {
	s := &domain.Scene{ID: "evening_mode"}
	assert.Equal(t, "scene.evening_mode", s.EntityID())

	id, ok := domain.SceneIDFromEntityID("scene.evening_mode")
	assert.True(t, ok)
	assert.Equal(t, "evening_mode", id)

	_, ok = domain.SceneIDFromEntityID("light.evening_mode")
	assert.False(t, ok)
	_, ok = domain.SceneIDFromEntityID("scene.")
	assert.False(t, ok)
}

func TestSceneOptions_MergeAndJSON(t *testing.T) {
	defaults := domain.SceneOptions{
		RestoreLightAttributes: domain.Bool(false),
		ActionTimeout:          domain.Duration(5 * time.Second),
	}
	scene := domain.SceneOptions{RestoreLightAttributes: domain.Bool(true)}

	merged := scene.Merge(defaults)
	assert.True(t, merged.RestoreLights())
	assert.Equal(t, 5*time.Second, merged.Timeout())
	assert.Equal(t, domain.DefaultActionTimeout, domain.SceneOptions{}.Timeout())

	data, err := json.Marshal(merged)
	require.NoError(t, err)
	assert.JSONEq(t, `{"restore_light_attributes":true,"action_timeout":5}`, string(data))

	var back domain.SceneOptions
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, merged, back)
}

func TestActivationReport_Failures(t *testing.T) {
	r := &domain.ActivationReport{Outcomes: []domain.EntityOutcome{
		{EntityID: "light.a", Status: domain.OutcomeApplied},
		{EntityID: "light.b", Status: domain.OutcomeFailed, Reason: "offline"},
		{EntityID: "sensor.c", Status: domain.OutcomeSkipped},
	}}
	assert.Equal(t, []domain.ActivationFailure{{EntityID: "light.b", Reason: "offline"}}, r.Failures())
	assert.Equal(t, []string{"light.a"}, r.Applied())
	assert.False(t, r.OK())
}
