// Package registry keeps the table of published scene entities and routes
// host activations (scene.turn_on) to their handlers.
package registry
