// Package persistence holds the on-disk record format shared by every scene backend.
package persistence

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aretw0/resscene/pkg/domain"
)

// RecordVersion is the current scene record format.
const RecordVersion = 1

// Record is the persisted form of a scene.
type Record struct {
	Version   int                     `json:"version"`
	SceneID   string                  `json:"scene_id"`
	Snapshots []domain.EntitySnapshot `json:"snapshots"`
	Options   domain.SceneOptions     `json:"options"`
	CreatedAt time.Time               `json:"created_at"`
	UpdatedAt time.Time               `json:"updated_at"`
}

// Encode serializes a scene into a record document.
func Encode(scene *domain.Scene) ([]byte, error) {
	return encode(scene, json.Marshal)
}

// EncodeIndent is Encode with indentation, for human-readable files.
func EncodeIndent(scene *domain.Scene) ([]byte, error) {
	return encode(scene, func(v any) ([]byte, error) {
		return json.MarshalIndent(v, "", "  ")
	})
}

func encode(scene *domain.Scene, marshal func(any) ([]byte, error)) ([]byte, error) {
	if scene == nil || scene.ID == "" {
		return nil, fmt.Errorf("scene id cannot be empty")
	}
	snaps := scene.Snapshots
	if snaps == nil {
		snaps = []domain.EntitySnapshot{}
	}
	data, err := marshal(Record{
		Version:   RecordVersion,
		SceneID:   scene.ID,
		Snapshots: snaps,
		Options:   scene.Options,
		CreatedAt: scene.CreatedAt,
		UpdatedAt: scene.UpdatedAt,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal scene: %w", err)
	}
	return data, nil
}

// Decode parses a record document. Numbers are kept as json.Number.
func Decode(data []byte) (*domain.Scene, error) {
	var rec Record
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&rec); err != nil {
		return nil, fmt.Errorf("failed to unmarshal scene: %w", err)
	}
	if rec.Version > RecordVersion {
		return nil, fmt.Errorf("unsupported scene record version %d", rec.Version)
	}
	if rec.SceneID == "" {
		return nil, fmt.Errorf("scene record has no scene_id")
	}
	if rec.Snapshots == nil {
		rec.Snapshots = []domain.EntitySnapshot{}
	}
	return &domain.Scene{
		ID:        rec.SceneID,
		Snapshots: rec.Snapshots,
		Options:   rec.Options,
		CreatedAt: rec.CreatedAt,
		UpdatedAt: rec.UpdatedAt,
	}, nil
}
