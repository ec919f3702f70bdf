package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/aretw0/resscene/internal/logging"
	"github.com/aretw0/resscene/pkg/domain"
)

// allScenes is the subscription key that receives every event.
const allScenes = ""

// StreamManager fans lifecycle events out to SSE subscribers.
type StreamManager struct {
	mu          sync.RWMutex
	subscribers map[string]map[chan<- string]struct{} // SceneID -> Set of Channels
	logger      *slog.Logger
}

func NewStreamManager(logger *slog.Logger) *StreamManager {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &StreamManager{
		subscribers: make(map[string]map[chan<- string]struct{}),
		logger:      logger,
	}
}

// Subscribe registers a channel for one scene, or for every scene when sceneID is empty.
// The returned func unsubscribes and closes the channel.
func (sm *StreamManager) Subscribe(sceneID string) (chan string, func()) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	ch := make(chan string, 10)
	if _, ok := sm.subscribers[sceneID]; !ok {
		sm.subscribers[sceneID] = make(map[chan<- string]struct{})
	}
	sm.subscribers[sceneID][ch] = struct{}{}

	return ch, func() {
		sm.mu.Lock()
		defer sm.mu.Unlock()
		if subs, ok := sm.subscribers[sceneID]; ok {
			if _, present := subs[ch]; !present {
				return
			}
			delete(subs, ch)
			close(ch)
			if len(subs) == 0 {
				delete(sm.subscribers, sceneID)
			}
		}
	}
}

// Broadcast delivers msg to the scene's subscribers and to the global ones.
func (sm *StreamManager) Broadcast(sceneID string, msg string) {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	sm.logger.Debug("StreamManager: Broadcasting", "scene_id", sceneID, "payload_size", len(msg))

	keys := []string{allScenes}
	if sceneID != allScenes {
		keys = append(keys, sceneID)
	}
	for _, key := range keys {
		for ch := range sm.subscribers[key] {
			select {
			case ch <- msg:
			default:
				// Drop message if channel is full (slow client)
				sm.logger.Warn("SSE: Client buffer full, dropping message", "scene_id", sceneID)
			}
		}
	}
}

// Hooks returns lifecycle hooks that broadcast each event as JSON.
func (sm *StreamManager) Hooks() domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnSceneSaved: func(_ context.Context, e *domain.SceneEvent) {
			if e.Err == nil {
				sm.publish(e.SceneID, e)
			}
		},
		OnSceneDeleted: func(_ context.Context, e *domain.SceneEvent) {
			if e.Err == nil {
				sm.publish(e.SceneID, e)
			}
		},
		OnSceneActivated: func(_ context.Context, e *domain.ActivationEvent) {
			sm.publish(e.SceneID, e)
		},
	}
}

func (sm *StreamManager) publish(sceneID string, event any) {
	data, err := json.Marshal(event)
	if err != nil {
		sm.logger.Error("SSE: encode event", "scene_id", sceneID, "err", err)
		return
	}
	sm.Broadcast(sceneID, string(data))
}
