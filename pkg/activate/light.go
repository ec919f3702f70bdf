package activate

import (
	"fmt"

	"github.com/aretw0/resscene/pkg/domain"
)

var brightnessAttrs = []string{"brightness", "brightness_pct"}

// Attributes light.turn_on accepts for each color mode.
var colorModeAttrs = map[string][]string{
	"onoff":      {},
	"brightness": brightnessAttrs,
	"hs":         append([]string{"hs_color"}, brightnessAttrs...),
	"rgb":        append([]string{"rgb_color"}, brightnessAttrs...),
	"rgbw":       append([]string{"rgbw_color"}, brightnessAttrs...),
	"rgbww":      append([]string{"rgbww_color"}, brightnessAttrs...),
	"xy":         append([]string{"xy_color"}, brightnessAttrs...),
	"color_temp": append([]string{"color_temp", "color_temp_kelvin"}, brightnessAttrs...),
}

// profile and white replace the color mode; checked in this order.
var overrideAttrs = []string{"profile", "white"}

var commonLightAttrs = []string{"effect", "flash", "white", "profile"}

const defaultColorMode = "color_temp"

// LightAttributes filters captured light attributes down to those valid for
// light.turn_on. The second value is a note when the color mode was unknown.
func LightAttributes(attrs map[string]any) (map[string]any, string) {
	var allowed []string
	var note string
	for _, attr := range overrideAttrs {
		if _, ok := attrs[attr]; ok {
			allowed = brightnessAttrs
			break
		}
	}
	if allowed == nil {
		mode := defaultColorMode
		if m, ok := attrs["color_mode"].(string); ok && m != "" {
			mode = m
		}
		var known bool
		allowed, known = colorModeAttrs[mode]
		if !known {
			note = fmt.Sprintf("unknown color_mode %q, restoring common attributes only", mode)
		}
	}

	out := make(map[string]any)
	for _, keys := range [][]string{allowed, commonLightAttrs} {
		for _, k := range keys {
			if v, ok := attrs[k]; ok {
				out[k] = v
			}
		}
	}
	if _, ok := out["color_temp_kelvin"]; ok {
		delete(out, "color_temp")
	}
	if _, ok := out["brightness"]; ok {
		delete(out, "brightness_pct")
	}
	return out, note
}

func planLight(state string, attrs map[string]any, opts domain.SceneOptions) Plan {
	const d = "light"
	var plan Plan

	if state == domain.StateOn || opts.RestoreLights() {
		data, note := LightAttributes(attrs)
		data["transition"] = 0
		plan.Note = note
		plan.Steps = append(plan.Steps, Step{Domain: d, Service: "turn_on", Data: data, Expect: domain.StateOn})
	}
	if state == domain.StateOff {
		plan.Steps = append(plan.Steps, Step{Domain: d, Service: "turn_off", Data: map[string]any{"transition": 0}, Expect: domain.StateOff})
	}
	if len(plan.Steps) == 0 {
		return skip("no restore action for light state %q", state)
	}
	return plan
}
