/*
Package resscene snapshots the live state of home-automation entities into
named scenes and restores them on demand.

A scene is created by capturing a set of entities (lights, covers, climate,
media players, switches, ...) from the host. It is persisted so it survives
restarts, and published as a scene.<scene_id> entity so the host's own scene
activation routes back to ResScene, which replays each entity through the
host's service calls.

# Architecture

The package follows a hexagonal layout. The core lives under pkg/:

  - pkg/domain: snapshots, scenes, options, errors and lifecycle events.
  - pkg/capture: reads entity states concurrently into snapshots.
  - pkg/scenestore: the in-memory index with per-scene locking over a ports.SceneRepository.
  - pkg/activate: plans and dispatches the service calls restoring each entity.
  - pkg/service: create, delete, activate and rename with request validation.

Adapters provide storage (file, Redis, SQLite, memory), the Home Assistant
REST host, and the HTTP and MCP surfaces.

# Usage

	host := homeassistant.New("http://homeassistant.local:8123", token)
	eng, err := resscene.New(host, resscene.WithRepository(file.New(".resscene/scenes")))
	if err != nil {
		log.Fatal(err)
	}
	if err := eng.Start(ctx); err != nil {
		log.Fatal(err)
	}

	_, err = eng.Service.Create(ctx, service.CreateRequest{
		SceneID:          "evening_mode",
		SnapshotEntities: []string{"light.living_room", "switch.aircon"},
	})
	...
	report, err := eng.Service.Activate(ctx, "scene.evening_mode")
*/
package resscene
