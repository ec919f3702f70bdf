package activate

import (
	"fmt"
	"strconv"

	"github.com/aretw0/resscene/pkg/domain"
)

// Step is one service call against the entity being restored.
type Step struct {
	Domain  string
	Service string
	Data    map[string]any
	// Expect, when set, is the state to wait for after the call.
	Expect string
}

// Plan is the ordered list of calls that restores one snapshot.
// A non-empty Skip means nothing is called.
type Plan struct {
	Steps []Step
	Skip  string
	// Note is logged when the plan had to drop information.
	Note string
}

func skip(format string, args ...any) Plan {
	return Plan{Skip: fmt.Sprintf(format, args...)}
}

var onOffDomains = map[string]bool{
	"fan":           true,
	"humidifier":    true,
	"remote":        true,
	"siren":         true,
	"switch":        true,
	"input_boolean": true,
}

var notRestorable = map[string]bool{
	"sensor":         true,
	"binary_sensor":  true,
	"device_tracker": true,
	"camera":         true,
	"vacuum":         true,
	"scene":          true,
	"script":         true,
}

// PlanFor builds the restore plan for a snapshot.
func PlanFor(snap domain.EntitySnapshot, opts domain.SceneOptions) Plan {
	state := snap.State()
	d := snap.Domain()
	attrs := nonNil(snap.Attributes())

	if state == "" {
		return skip("saved state is empty")
	}
	if notRestorable[d] {
		return skip("domain %s is not restorable", d)
	}

	switch {
	case d == "light":
		return planLight(state, attrs, opts)
	case d == "cover":
		return planCover(state, attrs)
	case d == "climate":
		return planClimate(state, attrs)
	case d == "media_player":
		return planMediaPlayer(state, attrs)
	case d == "lock":
		return planLock(state)
	case onOffDomains[d]:
		service := "turn_off"
		if state == domain.StateOn {
			service = "turn_on"
		}
		return Plan{Steps: []Step{{Domain: d, Service: service}}}
	case d == "input_number":
		value, err := strconv.ParseFloat(state, 64)
		if err != nil {
			return skip("invalid input_number state %q", state)
		}
		return Plan{Steps: []Step{{Domain: d, Service: "set_value", Data: map[string]any{"value": value}}}}
	case d == "input_select":
		return Plan{Steps: []Step{{Domain: d, Service: "select_option", Data: map[string]any{"option": state}}}}
	case d == "input_text":
		return Plan{Steps: []Step{{Domain: d, Service: "set_value", Data: map[string]any{"value": state}}}}
	default:
		return skip("domain %s not handled", d)
	}
}

func planCover(state string, attrs map[string]any) Plan {
	const d = "cover"
	var steps []Step
	if pos, ok := first(attrs, "current_position", "position"); ok {
		steps = append(steps, Step{Domain: d, Service: "set_cover_position", Data: map[string]any{"position": pos}})
	}
	if tilt, ok := first(attrs, "current_tilt_position", "tilt_position"); ok {
		steps = append(steps, Step{Domain: d, Service: "set_cover_tilt_position", Data: map[string]any{"tilt_position": tilt}})
	}
	if len(steps) > 0 {
		return Plan{Steps: steps}
	}

	service := "close_cover"
	if state == domain.StateOpen || state == domain.StateOn {
		service = "open_cover"
	}
	return Plan{Steps: []Step{{Domain: d, Service: service}}}
}

func planClimate(hvacMode string, attrs map[string]any) Plan {
	const d = "climate"
	var steps []Step

	low, hasLow := attrs["target_temp_low"]
	high, hasHigh := attrs["target_temp_high"]
	temp, hasTemp := attrs["temperature"]
	switch {
	case hvacMode == "heat_cool" && hasLow && hasHigh:
		steps = append(steps, Step{Domain: d, Service: "set_temperature", Data: map[string]any{
			"hvac_mode":        hvacMode,
			"target_temp_low":  low,
			"target_temp_high": high,
		}})
	case hasTemp:
		steps = append(steps, Step{Domain: d, Service: "set_temperature", Data: map[string]any{
			"hvac_mode":   hvacMode,
			"temperature": temp,
		}})
	default:
		steps = append(steps, Step{Domain: d, Service: "set_hvac_mode", Data: map[string]any{"hvac_mode": hvacMode}})
	}

	for _, key := range []string{"fan_mode", "swing_mode", "preset_mode", "humidity"} {
		if v, ok := attrs[key]; ok {
			steps = append(steps, Step{Domain: d, Service: "set_" + key, Data: map[string]any{key: v}})
		}
	}
	return Plan{Steps: steps}
}

var mediaServices = map[string]string{
	domain.StateOn:      "turn_on",
	domain.StateOff:     "turn_off",
	domain.StatePlaying: "media_play",
	domain.StatePaused:  "media_pause",
	domain.StateIdle:    "media_stop",
}

func planMediaPlayer(state string, attrs map[string]any) Plan {
	const d = "media_player"
	service, ok := mediaServices[state]
	if !ok {
		return skip("unknown media_player state %q", state)
	}
	steps := []Step{{Domain: d, Service: service}}
	if v, ok := attrs["volume_level"]; ok {
		steps = append(steps, Step{Domain: d, Service: "volume_set", Data: map[string]any{"volume_level": v}})
	}
	if v, ok := attrs["source"]; ok {
		steps = append(steps, Step{Domain: d, Service: "select_source", Data: map[string]any{"source": v}})
	}
	return Plan{Steps: steps}
}

func planLock(state string) Plan {
	switch state {
	case domain.StateLocked:
		return Plan{Steps: []Step{{Domain: "lock", Service: "lock"}}}
	case domain.StateUnlocked:
		return Plan{Steps: []Step{{Domain: "lock", Service: "unlock"}}}
	default:
		return skip("lock state %q is not restorable", state)
	}
}

func first(attrs map[string]any, keys ...string) (any, bool) {
	for _, k := range keys {
		if v, ok := attrs[k]; ok {
			return v, true
		}
	}
	return nil, false
}

func nonNil(attrs map[string]any) map[string]any {
	for k, v := range attrs {
		if v == nil {
			delete(attrs, k)
		}
	}
	return attrs
}
