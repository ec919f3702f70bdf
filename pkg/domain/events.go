package domain

import (
	"context"
	"time"
)

// EventType defines the category of the event.
type EventType string

const (
	EventSceneSaved     EventType = "scene_saved"
	EventSceneDeleted   EventType = "scene_deleted"
	EventSceneActivated EventType = "scene_activated"
	EventEntityRestored EventType = "entity_restored"
)

// EventBase contains common fields for all events.
type EventBase struct {
	Timestamp time.Time `json:"timestamp"`
	Type      EventType `json:"type"`
	SceneID   string    `json:"scene_id"`
}

// SceneEvent represents a change to the scene store.
type SceneEvent struct {
	EventBase
	Entities int   `json:"entities"`
	Err      error `json:"-"`
}

// ActivationEvent represents a finished activation run.
type ActivationEvent struct {
	EventBase
	Report *ActivationReport `json:"report"`
}

// RestoreEvent represents a single entity restore inside an activation.
type RestoreEvent struct {
	EventBase
	Outcome EntityOutcome `json:"outcome"`
	Elapsed time.Duration `json:"elapsed"`
}

// LifecycleHooks defines callbacks for observability.
// Any field may be nil.
type LifecycleHooks struct {
	OnSceneSaved     func(context.Context, *SceneEvent)
	OnSceneDeleted   func(context.Context, *SceneEvent)
	OnSceneActivated func(context.Context, *ActivationEvent)
	OnEntityRestored func(context.Context, *RestoreEvent)
}

// NewEventBase stamps an event header.
func NewEventBase(t EventType, sceneID string) EventBase {
	return EventBase{Timestamp: time.Now(), Type: t, SceneID: sceneID}
}
