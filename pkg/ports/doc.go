/*
Package ports defines the driven ports (interfaces) of the ResScene engine.

These interfaces decouple the core from the host platform and from storage,
so the same engine runs against Home Assistant, an in-memory fake, or any
other host that can report entity state and dispatch service calls.

# Key Interfaces

  - SceneRepository: durable backend for scene records (memory, file, Redis, SQLite).
  - DistributedLocker: cross-replica mutual exclusion per scene id.
  - StateProvider / StateLister / EntityDirectory: read access to live entities.
  - ServiceCaller: the host's generic service call surface used to restore state.
  - Registrar / EntityPublisher: publishing scene.<scene_id> entities to the host.
*/
package ports
