/*
Package scenestore owns the set of saved scenes.

A Store wraps a ports.SceneRepository with an in-memory view, per-scene
locking and lifecycle hooks. Every mutation is flushed to the repository
before it becomes visible; when the flush fails the previous scene stays
in place and a *domain.PersistenceError is returned.

Load must run once at start, before scenes are published to the host.
*/
package scenestore
