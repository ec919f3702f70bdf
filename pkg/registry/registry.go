package registry

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/aretw0/resscene/internal/logging"
	"github.com/aretw0/resscene/pkg/domain"
	"github.com/aretw0/resscene/pkg/ports"
)

// Entry describes a registered scene entity.
type Entry struct {
	EntityID      string    `json:"entity_id"`
	SceneID       string    `json:"scene_id"`
	Entities      []string  `json:"entities"`
	LastActivated time.Time `json:"last_activated,omitzero"`
}

type registration struct {
	entry   Entry
	handler ports.ActivationHandler
}

// Registry maps scene entity ids to their activation handlers.
// It implements ports.Registrar and, when a publisher is set, mirrors every
// scene entity onto the host's state machine.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]*registration

	publisher ports.EntityPublisher
	logger    *slog.Logger
	now       func() time.Time
}

var _ ports.Registrar = (*Registry)(nil)

// Option configures the Registry.
type Option func(*Registry)

// WithPublisher mirrors scene entities to the host.
func WithPublisher(p ports.EntityPublisher) Option {
	return func(r *Registry) {
		r.publisher = p
	}
}

// WithLogger configures a logger for the Registry.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Registry) {
		r.logger = logger
	}
}

// NewRegistry creates a new empty registry.
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		entries: make(map[string]*registration),
		logger:  logging.NewNop(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register adds a scene entity to the registry.
// If the entity is already registered, it is overwritten.
func (r *Registry) Register(ctx context.Context, scene *domain.Scene, handler ports.ActivationHandler) error {
	if handler == nil {
		return fmt.Errorf("register %s: handler cannot be nil", scene.EntityID())
	}
	entry := Entry{
		EntityID: scene.EntityID(),
		SceneID:  scene.ID,
		Entities: scene.EntityIDs(),
	}

	r.mu.Lock()
	if prev, ok := r.entries[entry.EntityID]; ok {
		entry.LastActivated = prev.entry.LastActivated
	}
	r.entries[entry.EntityID] = &registration{entry: entry, handler: handler}
	r.mu.Unlock()

	r.publish(ctx, entry)
	r.logger.Debug("Scene registered", "entity_id", entry.EntityID)
	return nil
}

// Unregister removes a scene entity. Unknown ids are ignored.
func (r *Registry) Unregister(ctx context.Context, entityID string) error {
	r.mu.Lock()
	_, ok := r.entries[entityID]
	delete(r.entries, entityID)
	r.mu.Unlock()

	if !ok {
		return nil
	}
	if r.publisher != nil {
		if err := r.publisher.RemoveState(ctx, entityID); err != nil {
			r.logger.Warn("Failed to remove scene entity from host", "entity_id", entityID, "err", err)
		}
	}
	r.logger.Debug("Scene unregistered", "entity_id", entityID)
	return nil
}

// Activate looks up a scene entity by id and runs its handler.
// Returns domain.ErrSceneNotFound if the entity is not registered.
func (r *Registry) Activate(ctx context.Context, entityID string) (*domain.ActivationReport, error) {
	r.mu.RLock()
	reg, ok := r.entries[entityID]
	r.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%s: %w", entityID, domain.ErrSceneNotFound)
	}

	report, err := reg.handler(ctx)
	if err != nil {
		return report, err
	}

	r.mu.Lock()
	var entry Entry
	if cur, ok := r.entries[entityID]; ok {
		cur.entry.LastActivated = r.now().UTC()
		entry = cur.entry
	}
	r.mu.Unlock()

	if entry.EntityID != "" {
		r.publish(ctx, entry)
	}
	return report, nil
}

// Lookup returns the entry for a scene entity.
func (r *Registry) Lookup(entityID string) (Entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	reg, ok := r.entries[entityID]
	if !ok {
		return Entry{}, false
	}
	return reg.entry, true
}

// List returns every registered entry sorted by entity id.
func (r *Registry) List() []Entry {
	r.mu.RLock()
	out := make([]Entry, 0, len(r.entries))
	for _, reg := range r.entries {
		out = append(out, reg.entry)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].EntityID < out[j].EntityID })
	return out
}

// StateOf renders an entry the way the host shows a scene entity: the state is
// the last activation time, or "unknown" when never activated.
func StateOf(entry Entry) domain.EntityState {
	state := domain.StateUnknown
	if !entry.LastActivated.IsZero() {
		state = entry.LastActivated.Format(time.RFC3339Nano)
	}
	ids := make([]any, len(entry.Entities))
	for i, id := range entry.Entities {
		ids[i] = id
	}
	return domain.EntityState{
		EntityID: entry.EntityID,
		State:    state,
		Attributes: map[string]any{
			"friendly_name": "Res: " + entry.SceneID,
			"icon":          "mdi:palette",
			"entity_id":     ids,
		},
	}
}

func (r *Registry) publish(ctx context.Context, entry Entry) {
	if r.publisher == nil {
		return
	}
	if err := r.publisher.PublishState(ctx, StateOf(entry)); err != nil {
		r.logger.Warn("Failed to publish scene entity to host", "entity_id", entry.EntityID, "err", err)
	}
}
