package capture_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/aretw0/resscene/pkg/adapters/memory"
	"github.com/aretw0/resscene/pkg/capture"
	"github.com/aretw0/resscene/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCapture_AllEntities(t *testing.T) {
	host := memory.NewHost(
		domain.EntityState{EntityID: "light.living_room", State: "on", Attributes: map[string]any{"brightness": 80}},
		domain.EntityState{EntityID: "switch.aircon", State: "off"},
	)
	c := capture.New(host)

	res, err := c.Capture(context.Background(), []string{"light.living_room", "switch.aircon"}, nil)
	require.NoError(t, err)
	require.Len(t, res.Snapshots, 2)
	assert.Equal(t, "light.living_room", res.Snapshots[0].EntityID())
	assert.Equal(t, "on", res.Snapshots[0].State())
	v, _ := res.Snapshots[0].Attribute("brightness")
	assert.Equal(t, json.Number("80"), v)
	assert.Equal(t, "off", res.Snapshots[1].State())
	assert.Empty(t, host.Calls(), "capture must not call services")
}

func TestCapture_PartialFailure(t *testing.T) {
	host := memory.NewHost(domain.EntityState{EntityID: "light.a", State: "on"})
	c := capture.New(host)

	res, err := c.Capture(context.Background(), []string{"light.a", "light.missing", "sensor.temp", "bogus"}, nil)
	require.Error(t, err)

	var partial *domain.PartialCaptureError
	require.ErrorAs(t, err, &partial)
	assert.Equal(t, []string{"light.missing", "sensor.temp", "bogus"}, partial.EntityIDs())
	assert.Equal(t, capture.ReasonEntityNotFound, partial.Failures[0].Reason)
	assert.Equal(t, capture.ReasonNotRestorable, partial.Failures[1].Reason)
	assert.Equal(t, capture.ReasonMalformedID, partial.Failures[2].Reason)

	require.Len(t, res.Snapshots, 1)
	assert.Equal(t, "light.a", res.Snapshots[0].EntityID())
}

func TestCapture_DuplicatesAndOrder(t *testing.T) {
	host := memory.NewHost(
		domain.EntityState{EntityID: "switch.a", State: "on"},
		domain.EntityState{EntityID: "switch.b", State: "off"},
		domain.EntityState{EntityID: "switch.c", State: "on"},
	)
	c := capture.New(host, capture.WithConcurrency(2))

	res, err := c.Capture(context.Background(), []string{"switch.c", "switch.a", "switch.c", "switch.b", "switch.a"}, nil)
	require.NoError(t, err)

	ids := make([]string, len(res.Snapshots))
	for i, s := range res.Snapshots {
		ids[i] = s.EntityID()
	}
	assert.Equal(t, []string{"switch.c", "switch.a", "switch.b"}, ids)
}

func TestCapture_FallsBackToPreviousSnapshot(t *testing.T) {
	host := memory.NewHost(
		domain.EntityState{EntityID: "light.porch", State: "unavailable"},
		domain.EntityState{EntityID: "light.hall", State: "unavailable"},
	)
	prevPorch, err := domain.NewEntitySnapshot("light.porch", "on", map[string]any{"brightness": 120})
	require.NoError(t, err)
	prevGarage, err := domain.NewEntitySnapshot("switch.garage", "off", nil)
	require.NoError(t, err)
	previous := &domain.Scene{ID: "night", Snapshots: []domain.EntitySnapshot{prevPorch, prevGarage}}

	c := capture.New(host)
	res, err := c.Capture(context.Background(), []string{"light.porch", "switch.garage", "light.hall"}, previous)
	require.NoError(t, err)

	assert.Equal(t, []string{"light.porch", "switch.garage"}, res.Fallbacks)
	require.Len(t, res.Snapshots, 3)
	assert.Equal(t, "on", res.Snapshots[0].State())
	assert.Equal(t, "off", res.Snapshots[1].State())
	// No valid fallback: captured as-is.
	assert.Equal(t, "unavailable", res.Snapshots[2].State())
}

func TestCapture_ContextCanceled(t *testing.T) {
	host := memory.NewHost(domain.EntityState{EntityID: "switch.a", State: "on"})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := capture.New(host).Capture(ctx, []string{"switch.a"}, nil)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestValidEntityID(t *testing.T) {
	assert.True(t, capture.ValidEntityID("light.living_room"))
	assert.False(t, capture.ValidEntityID("light"))
	assert.False(t, capture.ValidEntityID("light.a.b"))
	assert.False(t, capture.ValidEntityID("Light.A"))
	assert.True(t, capture.Restorable("cover"))
	assert.False(t, capture.Restorable("sensor"))
}
