package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Common host state values.
const (
	StateOn          = "on"
	StateOff         = "off"
	StateOpen        = "open"
	StateClosed      = "closed"
	StatePlaying     = "playing"
	StatePaused      = "paused"
	StateIdle        = "idle"
	StateLocked      = "locked"
	StateUnlocked    = "unlocked"
	StateUnavailable = "unavailable"
	StateUnknown     = "unknown"
)

// EntityState is the live observable state of an entity as reported by the host.
type EntityState struct {
	EntityID   string         `json:"entity_id"`
	State      string         `json:"state"`
	Attributes map[string]any `json:"attributes,omitempty"`
}

// Usable reports whether the entity is in a state that can be read or restored.
func (s EntityState) Usable() bool {
	return s.State != StateUnavailable && s.State != StateUnknown
}

// EntitySnapshot is the captured state and attributes of one entity.
// It is immutable: fields are unexported and accessors return copies.
type EntitySnapshot struct {
	entityID   string
	state      string
	attributes map[string]any
}

// NewEntitySnapshot creates a snapshot, normalizing attributes to JSON-safe values.
func NewEntitySnapshot(entityID, state string, attributes map[string]any) (EntitySnapshot, error) {
	normalized, err := NormalizeAttributes(attributes)
	if err != nil {
		return EntitySnapshot{}, fmt.Errorf("snapshot %s: %w", entityID, err)
	}
	return EntitySnapshot{
		entityID:   entityID,
		state:      state,
		attributes: normalized,
	}, nil
}

// EntityID returns the identifier of the captured entity.
func (s EntitySnapshot) EntityID() string { return s.entityID }

// State returns the captured primary state value.
func (s EntitySnapshot) State() string { return s.state }

// Domain returns the entity domain (the part before the dot).
func (s EntitySnapshot) Domain() string { return EntityDomain(s.entityID) }

// Attributes returns a deep copy of the captured attributes.
func (s EntitySnapshot) Attributes() map[string]any {
	return deepCopyMap(s.attributes)
}

// Attribute returns a single attribute value.
func (s EntitySnapshot) Attribute(key string) (any, bool) {
	v, ok := s.attributes[key]
	if !ok {
		return nil, false
	}
	return deepCopyValue(v), true
}

// Restorable reports whether the snapshot carries a state that can be used
// as a fallback for a later capture.
func (s EntitySnapshot) Restorable() bool {
	return s.state != "" && s.state != StateUnavailable && s.state != StateUnknown
}

type snapshotJSON struct {
	EntityID   string         `json:"entity_id"`
	State      string         `json:"state"`
	Attributes map[string]any `json:"attributes"`
}

// MarshalJSON implements json.Marshaler.
func (s EntitySnapshot) MarshalJSON() ([]byte, error) {
	attrs := s.attributes
	if attrs == nil {
		attrs = map[string]any{}
	}
	return json.Marshal(snapshotJSON{EntityID: s.entityID, State: s.state, Attributes: attrs})
}

// UnmarshalJSON implements json.Unmarshaler. Numbers are kept as json.Number.
func (s *EntitySnapshot) UnmarshalJSON(data []byte) error {
	var raw snapshotJSON
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil {
		return err
	}
	if raw.Attributes == nil {
		raw.Attributes = map[string]any{}
	}
	s.entityID = raw.EntityID
	s.state = raw.State
	s.attributes = raw.Attributes
	return nil
}

// SceneEntityDomain is the domain under which scenes are published.
const SceneEntityDomain = "scene"

// Scene is a named, persisted collection of entity snapshots.
type Scene struct {
	ID        string           `json:"scene_id"`
	Snapshots []EntitySnapshot `json:"snapshots"`
	Options   SceneOptions     `json:"options"`
	CreatedAt time.Time        `json:"created_at"`
	UpdatedAt time.Time        `json:"updated_at"`
}

// EntityID returns the externally visible identifier, scene.<scene_id>.
func (s *Scene) EntityID() string {
	return SceneEntityID(s.ID)
}

// Snapshot returns the snapshot for an entity.
func (s *Scene) Snapshot(entityID string) (EntitySnapshot, bool) {
	for _, snap := range s.Snapshots {
		if snap.EntityID() == entityID {
			return snap, true
		}
	}
	return EntitySnapshot{}, false
}

// EntityIDs returns the captured entity identifiers in order.
func (s *Scene) EntityIDs() []string {
	ids := make([]string, len(s.Snapshots))
	for i, snap := range s.Snapshots {
		ids[i] = snap.EntityID()
	}
	return ids
}

// Clone returns a copy of the scene. Snapshots are immutable and shared.
func (s *Scene) Clone() *Scene {
	if s == nil {
		return nil
	}
	c := *s
	c.Snapshots = append([]EntitySnapshot(nil), s.Snapshots...)
	return &c
}

// SceneEntityID derives the entity identifier for a scene id.
func SceneEntityID(sceneID string) string {
	return SceneEntityDomain + "." + sceneID
}

// SceneIDFromEntityID resolves scene.<scene_id> back to the scene id.
func SceneIDFromEntityID(entityID string) (string, bool) {
	id, ok := strings.CutPrefix(entityID, SceneEntityDomain+".")
	if !ok || id == "" {
		return "", false
	}
	return id, true
}

// EntityDomain returns the domain part of an entity id ("light" for "light.kitchen").
func EntityDomain(entityID string) string {
	domain, _, _ := strings.Cut(entityID, ".")
	return domain
}
