/*
Package domain defines the data model shared by every ResScene component.

  - EntitySnapshot: the immutable captured state and attributes of one entity.
  - Scene: a named, ordered collection of snapshots, published as scene.<scene_id>.
  - SceneOptions: per-scene restore tuning (light attributes, action timeout).
  - ActivationReport: per-entity outcomes of one activation run.

It also holds the error taxonomy (ValidationError, PartialCaptureError,
PersistenceError, ErrSceneNotFound) and the LifecycleHooks used for metrics.
*/
package domain
