package service

import (
	"regexp"
	"time"

	"github.com/aretw0/resscene/pkg/capture"
	"github.com/aretw0/resscene/pkg/domain"
	"github.com/mitchellh/mapstructure"
)

var sceneIDPattern = regexp.MustCompile(`^[a-z0-9_]+$`)

// Service names accepted by Call.
const (
	ServiceCreate   = "create"
	ServiceDelete   = "delete"
	ServiceActivate = "activate"
	ServiceRename   = "rename"
)

// CreateRequest is the data of a create call.
type CreateRequest struct {
	SceneID          string   `mapstructure:"scene_id" json:"scene_id"`
	SnapshotEntities []string `mapstructure:"snapshot_entities" json:"snapshot_entities"`
	SnapshotAreas    []string `mapstructure:"snapshot_areas" json:"snapshot_areas,omitempty"`
	SnapshotLabels   []string `mapstructure:"snapshot_labels" json:"snapshot_labels,omitempty"`
	SnapshotFilter   string   `mapstructure:"snapshot_filter" json:"snapshot_filter,omitempty"`

	RestoreLightAttributes *bool `mapstructure:"restore_light_attributes" json:"restore_light_attributes,omitempty"`
	// ActionTimeout is in seconds.
	ActionTimeout *float64 `mapstructure:"action_timeout" json:"action_timeout,omitempty"`
}

// Options returns the per-scene options carried by the request.
func (r CreateRequest) Options() domain.SceneOptions {
	opts := domain.SceneOptions{RestoreLightAttributes: r.RestoreLightAttributes}
	if r.ActionTimeout != nil {
		opts.ActionTimeout = domain.Duration(time.Duration(*r.ActionTimeout * float64(time.Second)))
	}
	return opts
}

// Validate checks the required fields.
func (r CreateRequest) Validate() error {
	if err := validateSceneID("scene_id", r.SceneID); err != nil {
		return err
	}
	if len(r.SnapshotEntities) == 0 {
		return domain.NewValidationError("snapshot_entities", "is required")
	}
	for _, id := range r.SnapshotEntities {
		if !capture.ValidEntityID(id) {
			return domain.NewValidationError("snapshot_entities", "%q is not an entity id", id)
		}
	}
	if r.ActionTimeout != nil && *r.ActionTimeout <= 0 {
		return domain.NewValidationError("action_timeout", "must be positive")
	}
	return nil
}

// DeleteRequest is the data of a delete call.
type DeleteRequest struct {
	EntityID string `mapstructure:"entity_id" json:"entity_id"`
}

// Validate checks the entity id has the scene.<scene_id> form.
func (r DeleteRequest) Validate() error {
	_, err := sceneIDOf(r.EntityID)
	return err
}

// ActivateRequest is the data of an activate call.
type ActivateRequest struct {
	EntityID string `mapstructure:"entity_id" json:"entity_id"`
}

// RenameRequest is the data of a rename call.
type RenameRequest struct {
	EntityID   string `mapstructure:"entity_id" json:"entity_id"`
	NewSceneID string `mapstructure:"new_scene_id" json:"new_scene_id"`
}

// Validate checks both identifiers.
func (r RenameRequest) Validate() error {
	if _, err := sceneIDOf(r.EntityID); err != nil {
		return err
	}
	return validateSceneID("new_scene_id", r.NewSceneID)
}

func validateSceneID(field, id string) error {
	if id == "" {
		return domain.NewValidationError(field, "is required")
	}
	if !sceneIDPattern.MatchString(id) {
		return domain.NewValidationError(field, "%q must contain only lowercase letters, digits and underscores", id)
	}
	return nil
}

func sceneIDOf(entityID string) (string, error) {
	if entityID == "" {
		return "", domain.NewValidationError("entity_id", "is required")
	}
	sceneID, ok := domain.SceneIDFromEntityID(entityID)
	if !ok || !sceneIDPattern.MatchString(sceneID) {
		return "", domain.NewValidationError("entity_id", "%q is not a scene entity id", entityID)
	}
	return sceneID, nil
}

// decode maps loosely typed call data onto a request. A single string is
// accepted where a list is expected.
func decode(data map[string]any, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		TagName:          "mapstructure",
		WeaklyTypedInput: true,
	})
	if err != nil {
		return err
	}
	if err := dec.Decode(data); err != nil {
		return domain.NewValidationError("", "%v", err)
	}
	return nil
}
