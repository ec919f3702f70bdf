package domain

import (
	"reflect"
)

// SceneDiff describes how a replacement scene differs from the one it overwrote.
// It is reported by create and streamed to HTTP clients.
type SceneDiff struct {
	// SceneID is always present to identify the target.
	SceneID string `json:"scene_id"`

	// Added lists entities captured now that the old scene did not hold.
	Added []string `json:"added,omitempty"`

	// Removed lists entities the old scene held and the new one dropped.
	Removed []string `json:"removed,omitempty"`

	// Changed lists entities present in both whose state or attributes differ.
	Changed []string `json:"changed,omitempty"`
}

// Diff calculates the difference between oldScene and newScene.
// If oldScene is nil, every entity of newScene is reported as added.
// It returns nil when nothing changed.
func Diff(oldScene, newScene *Scene) *SceneDiff {
	if newScene == nil {
		return nil
	}

	diff := &SceneDiff{SceneID: newScene.ID}

	if oldScene == nil {
		diff.Added = newScene.EntityIDs()
		if diff.IsEmpty() {
			return nil
		}
		return diff
	}

	// Added or modified, in new order
	for _, snap := range newScene.Snapshots {
		prev, ok := oldScene.Snapshot(snap.EntityID())
		if !ok {
			diff.Added = append(diff.Added, snap.EntityID())
			continue
		}
		if prev.State() != snap.State() || !reflect.DeepEqual(prev.attributes, snap.attributes) {
			diff.Changed = append(diff.Changed, snap.EntityID())
		}
	}

	// Deletions, in old order
	for _, snap := range oldScene.Snapshots {
		if _, ok := newScene.Snapshot(snap.EntityID()); !ok {
			diff.Removed = append(diff.Removed, snap.EntityID())
		}
	}

	if diff.IsEmpty() {
		return nil
	}
	return diff
}

// IsEmpty checks if the diff contains any changes.
func (d *SceneDiff) IsEmpty() bool {
	return len(d.Added) == 0 && len(d.Removed) == 0 && len(d.Changed) == 0
}
