package activate_test

import (
	"encoding/json"
	"testing"

	"github.com/aretw0/resscene/pkg/activate"
	"github.com/aretw0/resscene/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func services(p activate.Plan) []string {
	out := make([]string, len(p.Steps))
	for i, s := range p.Steps {
		out[i] = s.Domain + "." + s.Service
	}
	return out
}

func TestLightAttributes(t *testing.T) {
	tests := []struct {
		name  string
		attrs map[string]any
		want  []string
		note  bool
	}{
		{
			name:  "color_temp prefers kelvin and brightness",
			attrs: map[string]any{"color_mode": "color_temp", "color_temp": 300, "color_temp_kelvin": 3300, "brightness": 100, "brightness_pct": 40, "hs_color": []any{1, 2}, "friendly_name": "Desk"},
			want:  []string{"brightness", "color_temp_kelvin"},
		},
		{
			name:  "rgb keeps rgb_color and common effect",
			attrs: map[string]any{"color_mode": "rgb", "rgb_color": []any{255, 0, 0}, "xy_color": []any{0.1, 0.2}, "effect": "colorloop"},
			want:  []string{"effect", "rgb_color"},
		},
		{
			name:  "onoff drops brightness",
			attrs: map[string]any{"color_mode": "onoff", "brightness": 255},
			want:  []string{},
		},
		{
			name:  "profile overrides color mode",
			attrs: map[string]any{"color_mode": "hs", "profile": "relax", "hs_color": []any{1, 2}, "brightness_pct": 30},
			want:  []string{"brightness_pct", "profile"},
		},
		{
			name:  "missing color mode defaults to color_temp",
			attrs: map[string]any{"color_temp_kelvin": 2700, "rgb_color": []any{1, 2, 3}},
			want:  []string{"color_temp_kelvin"},
		},
		{
			name:  "unknown color mode only common",
			attrs: map[string]any{"color_mode": "laser", "brightness": 10, "flash": "short"},
			want:  []string{"flash"},
			note:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, note := activate.LightAttributes(tt.attrs)
			keys := []string{}
			for k := range got {
				keys = append(keys, k)
			}
			assert.ElementsMatch(t, tt.want, keys)
			assert.Equal(t, tt.note, note != "")
		})
	}
}

func TestPlanFor(t *testing.T) {
	mk := func(id, state string, attrs map[string]any) domain.EntitySnapshot {
		s, err := domain.NewEntitySnapshot(id, state, attrs)
		require.NoError(t, err)
		return s
	}
	none := domain.SceneOptions{}

	assert.Equal(t, []string{"light.turn_on"}, services(activate.PlanFor(mk("light.a", "on", nil), none)))
	assert.Equal(t, []string{"light.turn_off"}, services(activate.PlanFor(mk("light.a", "off", nil), none)))
	assert.Equal(t, []string{"light.turn_on", "light.turn_off"},
		services(activate.PlanFor(mk("light.a", "off", nil), domain.SceneOptions{RestoreLightAttributes: domain.Bool(true)})))

	assert.Equal(t, []string{"cover.set_cover_position", "cover.set_cover_tilt_position"},
		services(activate.PlanFor(mk("cover.a", "open", map[string]any{"current_position": 40, "current_tilt_position": 10}), none)))
	assert.Equal(t, []string{"cover.close_cover"}, services(activate.PlanFor(mk("cover.a", "closed", nil), none)))

	heatCool := activate.PlanFor(mk("climate.a", "heat_cool", map[string]any{"target_temp_low": 19, "target_temp_high": 24, "temperature": nil}), none)
	require.Len(t, heatCool.Steps, 1)
	assert.Equal(t, json.Number("19"), heatCool.Steps[0].Data["target_temp_low"])
	assert.Equal(t, []string{"climate.set_hvac_mode"}, services(activate.PlanFor(mk("climate.a", "off", nil), none)))

	assert.Equal(t, []string{"media_player.media_play", "media_player.volume_set", "media_player.select_source"},
		services(activate.PlanFor(mk("media_player.tv", "playing", map[string]any{"volume_level": 0.3, "source": "HDMI 1"}), none)))
	assert.NotEmpty(t, activate.PlanFor(mk("media_player.tv", "buffering", nil), none).Skip)

	assert.Equal(t, []string{"lock.lock"}, services(activate.PlanFor(mk("lock.door", "locked", nil), none)))
	assert.NotEmpty(t, activate.PlanFor(mk("lock.door", "jammed", nil), none).Skip)

	assert.Equal(t, []string{"fan.turn_on"}, services(activate.PlanFor(mk("fan.a", "on", nil), none)))
	assert.Equal(t, []string{"input_boolean.turn_off"}, services(activate.PlanFor(mk("input_boolean.a", "off", nil), none)))

	num := activate.PlanFor(mk("input_number.level", "42.5", nil), none)
	require.Len(t, num.Steps, 1)
	assert.Equal(t, 42.5, num.Steps[0].Data["value"])
	assert.NotEmpty(t, activate.PlanFor(mk("input_number.level", "abc", nil), none).Skip)

	assert.Equal(t, "b", activate.PlanFor(mk("input_select.mode", "b", nil), none).Steps[0].Data["option"])
	assert.Equal(t, "hi", activate.PlanFor(mk("input_text.msg", "hi", nil), none).Steps[0].Data["value"])

	assert.NotEmpty(t, activate.PlanFor(mk("water_heater.a", "eco", nil), none).Skip)
	assert.NotEmpty(t, activate.PlanFor(mk("switch.a", "", nil), none).Skip)
}
