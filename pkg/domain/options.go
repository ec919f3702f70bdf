package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// DefaultActionTimeout bounds how long activation waits for an entity to
// report the state it was asked to take.
const DefaultActionTimeout = 10 * time.Second

// SceneOptions tune how a scene is restored.
// Nil fields fall back to the configured defaults.
type SceneOptions struct {
	RestoreLightAttributes *bool          `json:"restore_light_attributes,omitempty" yaml:"restore_light_attributes,omitempty"`
	ActionTimeout          *time.Duration `json:"-" yaml:"action_timeout,omitempty"`
}

// Merge returns o with unset fields taken from defaults.
func (o SceneOptions) Merge(defaults SceneOptions) SceneOptions {
	out := o
	if out.RestoreLightAttributes == nil {
		out.RestoreLightAttributes = defaults.RestoreLightAttributes
	}
	if out.ActionTimeout == nil {
		out.ActionTimeout = defaults.ActionTimeout
	}
	return out
}

// RestoreLights reports whether light attributes are restored for lights saved as off.
func (o SceneOptions) RestoreLights() bool {
	return o.RestoreLightAttributes != nil && *o.RestoreLightAttributes
}

// Timeout returns the action timeout, or DefaultActionTimeout when unset.
func (o SceneOptions) Timeout() time.Duration {
	if o.ActionTimeout == nil || *o.ActionTimeout <= 0 {
		return DefaultActionTimeout
	}
	return *o.ActionTimeout
}

// IsZero reports whether no option is set.
func (o SceneOptions) IsZero() bool {
	return o.RestoreLightAttributes == nil && o.ActionTimeout == nil
}

// optionsJSON stores the timeout as seconds, matching service call data.
type optionsJSON struct {
	RestoreLightAttributes *bool    `json:"restore_light_attributes,omitempty"`
	ActionTimeout          *float64 `json:"action_timeout,omitempty"`
}

// MarshalJSON implements json.Marshaler.
func (o SceneOptions) MarshalJSON() ([]byte, error) {
	raw := optionsJSON{RestoreLightAttributes: o.RestoreLightAttributes}
	if o.ActionTimeout != nil {
		secs := o.ActionTimeout.Seconds()
		raw.ActionTimeout = &secs
	}
	return json.Marshal(raw)
}

// UnmarshalJSON implements json.Unmarshaler.
func (o *SceneOptions) UnmarshalJSON(data []byte) error {
	var raw optionsJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("scene options: %w", err)
	}
	o.RestoreLightAttributes = raw.RestoreLightAttributes
	o.ActionTimeout = nil
	if raw.ActionTimeout != nil {
		d := time.Duration(*raw.ActionTimeout * float64(time.Second))
		o.ActionTimeout = &d
	}
	return nil
}

// Bool returns a pointer to b.
func Bool(b bool) *bool { return &b }

// Duration returns a pointer to d.
func Duration(d time.Duration) *time.Duration { return &d }
