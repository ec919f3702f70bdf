package ports

import (
	"context"

	"github.com/aretw0/resscene/pkg/domain"
)

// StateProvider resolves the live state of an entity.
type StateProvider interface {
	// GetState returns the current state of an entity.
	// Returns domain.ErrEntityNotFound if the id does not resolve.
	GetState(ctx context.Context, entityID string) (*domain.EntityState, error)
}

// StateLister enumerates every entity the host knows about.
// It is optional; it backs expression-based entity selection.
type StateLister interface {
	ListStates(ctx context.Context) ([]domain.EntityState, error)
}

// EntityDirectory resolves groupings of entities kept by the host registry.
// It is optional; it backs area and label selection.
type EntityDirectory interface {
	EntitiesForArea(ctx context.Context, areaID string) ([]string, error)
	EntitiesForLabel(ctx context.Context, labelID string) ([]string, error)
}

// ServiceCall is a request to the host's generic service surface,
// e.g. light.turn_on with {"brightness": 80} targeting light.kitchen.
type ServiceCall struct {
	Domain   string         `json:"domain"`
	Service  string         `json:"service"`
	EntityID string         `json:"entity_id"`
	Data     map[string]any `json:"data,omitempty"`
}

// ServiceCaller dispatches service calls to the host.
type ServiceCaller interface {
	CallService(ctx context.Context, call ServiceCall) error
}

// ActivationHandler restores a scene when the host activates its entity.
type ActivationHandler func(ctx context.Context) (*domain.ActivationReport, error)

// Registrar publishes scene entities so the host's generic activation routes to them.
// Activate runs the handler registered for entityID and returns
// domain.ErrSceneNotFound when nothing is registered under it.
type Registrar interface {
	Register(ctx context.Context, scene *domain.Scene, handler ActivationHandler) error
	Unregister(ctx context.Context, entityID string) error
	Activate(ctx context.Context, entityID string) (*domain.ActivationReport, error)
}

// EntityPublisher mirrors an entity's state onto the host's state machine.
type EntityPublisher interface {
	PublishState(ctx context.Context, state domain.EntityState) error
	RemoveState(ctx context.Context, entityID string) error
}
