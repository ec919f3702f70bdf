package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/aretw0/resscene/pkg/domain"
	"github.com/aretw0/resscene/pkg/persistence"
)

// Store implements ports.SceneRepository in memory.
// Safe for concurrent use.
type Store struct {
	data map[string][]byte
	mu   sync.RWMutex
}

// NewStore creates a new in-memory store.
func NewStore() *Store {
	return &Store{
		data: make(map[string][]byte),
	}
}

// Save persists the scene in memory.
// Scenes are kept encoded so callers can't mutate stored records by pointer.
func (s *Store) Save(ctx context.Context, scene *domain.Scene) error {
	data, err := persistence.Encode(scene)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[scene.ID] = data
	return nil
}

// Load retrieves the scene from memory.
func (s *Store) Load(ctx context.Context, sceneID string) (*domain.Scene, error) {
	s.mu.RLock()
	data, ok := s.data[sceneID]
	s.mu.RUnlock()

	if !ok {
		return nil, domain.ErrSceneNotFound
	}
	return persistence.Decode(data)
}

// Delete removes the scene.
func (s *Store) Delete(ctx context.Context, sceneID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.data[sceneID]; !ok {
		return domain.ErrSceneNotFound
	}
	delete(s.data, sceneID)
	return nil
}

// List returns stored scene ids in sorted order.
func (s *Store) List(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.data))
	for id := range s.data {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}
