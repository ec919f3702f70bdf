package service

import (
	"encoding/json"
	"testing"

	"github.com/aretw0/resscene/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFilter_Match(t *testing.T) {
	on := domain.EntityState{
		EntityID:   "light.kitchen",
		State:      "on",
		Attributes: map[string]any{"brightness": json.Number("180"), "friendly_name": "Kitchen"},
	}
	off := domain.EntityState{EntityID: "switch.fan", State: "off"}

	tests := []struct {
		source string
		state  domain.EntityState
		want   bool
	}{
		{`domain == "light"`, on, true},
		{`domain == "light"`, off, false},
		{`state == "on" && attributes.brightness > 100`, on, true},
		{`attributes.brightness >= 200`, on, false},
		{`entity_id startsWith "switch."`, off, true},
		{`attributes.friendly_name contains "Kit"`, on, true},
	}
	for _, tt := range tests {
		t.Run(tt.source, func(t *testing.T) {
			f, err := CompileFilter(tt.source)
			require.NoError(t, err)
			got, err := f.Match(tt.state)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.source, f.String())
		})
	}
}

func TestCompileFilter_Errors(t *testing.T) {
	_, err := CompileFilter("")
	assert.Error(t, err)

	_, err = CompileFilter(`state ==`)
	assert.Error(t, err)

	_, err = CompileFilter(`"not a bool"`)
	assert.Error(t, err, "non-boolean expressions are rejected at compile time")
}

func TestDecode_HostData(t *testing.T) {
	var req CreateRequest
	err := decode(map[string]any{
		"scene_id":          "movie",
		"snapshot_entities": []any{"light.tv", "media_player.tv"},
		"action_timeout":    json.Number("5"),
	}, &req)
	require.NoError(t, err)
	assert.Equal(t, []string{"light.tv", "media_player.tv"}, req.SnapshotEntities)
	require.NotNil(t, req.ActionTimeout)
	assert.InDelta(t, 5.0, *req.ActionTimeout, 0.0001)

	err = decode(map[string]any{"scene_id": map[string]any{"nested": true}}, &req)
	assert.True(t, domain.IsValidation(err))
}
