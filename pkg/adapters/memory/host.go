package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/aretw0/resscene/pkg/domain"
	"github.com/aretw0/resscene/pkg/ports"
)

// Host is an in-memory host platform: a state machine of entities plus a
// service surface that applies common services to it. Safe for concurrent use.
type Host struct {
	mu       sync.RWMutex
	states   map[string]domain.EntityState
	areas    map[string][]string
	labels   map[string][]string
	failures map[string]error
	frozen   map[string]bool
	calls    []ports.ServiceCall
}

// NewHost creates a host seeded with the given entity states.
func NewHost(states ...domain.EntityState) *Host {
	h := &Host{
		states:   make(map[string]domain.EntityState),
		areas:    make(map[string][]string),
		labels:   make(map[string][]string),
		failures: make(map[string]error),
		frozen:   make(map[string]bool),
	}
	for _, s := range states {
		h.SetState(s)
	}
	return h
}

// SetState creates or replaces an entity state.
func (h *Host) SetState(s domain.EntityState) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.states[s.EntityID] = copyState(s)
}

// RemoveEntity deletes an entity from the state machine.
func (h *Host) RemoveEntity(entityID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.states, entityID)
}

// AssignArea places entities in an area.
func (h *Host) AssignArea(areaID string, entityIDs ...string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.areas[areaID] = append(h.areas[areaID], entityIDs...)
}

// AssignLabel tags entities with a label.
func (h *Host) AssignLabel(labelID string, entityIDs ...string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.labels[labelID] = append(h.labels[labelID], entityIDs...)
}

// FailCalls makes every service call targeting entityID return err.
// A nil err clears the failure.
func (h *Host) FailCalls(entityID string, err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if err == nil {
		delete(h.failures, entityID)
		return
	}
	h.failures[entityID] = err
}

// Freeze makes service calls targeting entityID succeed without changing its state,
// like a device that accepts commands but never reports back.
func (h *Host) Freeze(entityID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.frozen[entityID] = true
}

// Calls returns every service call received, in order.
func (h *Host) Calls() []ports.ServiceCall {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return append([]ports.ServiceCall(nil), h.calls...)
}

// CallsFor returns the service calls that targeted one entity.
func (h *Host) CallsFor(entityID string) []ports.ServiceCall {
	var out []ports.ServiceCall
	for _, c := range h.Calls() {
		if c.EntityID == entityID {
			out = append(out, c)
		}
	}
	return out
}

// GetState implements ports.StateProvider.
func (h *Host) GetState(ctx context.Context, entityID string) (*domain.EntityState, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	s, ok := h.states[entityID]
	if !ok {
		return nil, fmt.Errorf("%s: %w", entityID, domain.ErrEntityNotFound)
	}
	c := copyState(s)
	return &c, nil
}

// ListStates implements ports.StateLister.
func (h *Host) ListStates(ctx context.Context) ([]domain.EntityState, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]domain.EntityState, 0, len(h.states))
	for _, s := range h.states {
		out = append(out, copyState(s))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EntityID < out[j].EntityID })
	return out, nil
}

// EntitiesForArea implements ports.EntityDirectory.
func (h *Host) EntitiesForArea(ctx context.Context, areaID string) ([]string, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return append([]string(nil), h.areas[areaID]...), nil
}

// EntitiesForLabel implements ports.EntityDirectory.
func (h *Host) EntitiesForLabel(ctx context.Context, labelID string) ([]string, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return append([]string(nil), h.labels[labelID]...), nil
}

// CallService implements ports.ServiceCaller.
// Known services update the targeted entity; unknown ones are only recorded.
func (h *Host) CallService(ctx context.Context, call ports.ServiceCall) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	h.mu.Lock()
	defer h.mu.Unlock()

	c := call
	c.Data = copyMap(call.Data)
	h.calls = append(h.calls, c)

	if err, ok := h.failures[call.EntityID]; ok {
		return err
	}
	s, ok := h.states[call.EntityID]
	if !ok {
		return fmt.Errorf("%s: %w", call.EntityID, domain.ErrEntityNotFound)
	}
	if h.frozen[call.EntityID] {
		return nil
	}
	h.states[call.EntityID] = apply(s, call)
	return nil
}

var serviceStates = map[string]string{
	"turn_on":     domain.StateOn,
	"turn_off":    domain.StateOff,
	"open_cover":  domain.StateOpen,
	"close_cover": domain.StateClosed,
	"lock":        domain.StateLocked,
	"unlock":      domain.StateUnlocked,
	"media_play":  domain.StatePlaying,
	"media_pause": domain.StatePaused,
	"media_stop":  domain.StateIdle,
}

func apply(s domain.EntityState, call ports.ServiceCall) domain.EntityState {
	out := copyState(s)
	if out.Attributes == nil {
		out.Attributes = map[string]any{}
	}
	if st, ok := serviceStates[call.Service]; ok {
		out.State = st
	}
	for k, v := range call.Data {
		switch k {
		case "entity_id", "transition":
		case "hvac_mode":
			out.State = fmt.Sprint(v)
		case "value", "option":
			out.State = fmt.Sprint(v)
		default:
			out.Attributes[k] = v
		}
	}
	if call.Service == "set_cover_position" {
		if strings.TrimSpace(fmt.Sprint(call.Data["position"])) == "0" {
			out.State = domain.StateClosed
		} else {
			out.State = domain.StateOpen
		}
	}
	return out
}

func copyState(s domain.EntityState) domain.EntityState {
	s.Attributes = copyMap(s.Attributes)
	return s
}

func copyMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// PublishState implements ports.EntityPublisher.
func (h *Host) PublishState(ctx context.Context, s domain.EntityState) error {
	h.SetState(s)
	return nil
}

// RemoveState implements ports.EntityPublisher.
func (h *Host) RemoveState(ctx context.Context, entityID string) error {
	h.RemoveEntity(entityID)
	return nil
}
