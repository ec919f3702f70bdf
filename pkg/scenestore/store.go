package scenestore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/aretw0/resscene/internal/logging"
	"github.com/aretw0/resscene/pkg/domain"
	"github.com/aretw0/resscene/pkg/ports"
)

// DefaultLockTTL bounds how long a distributed scene lock survives a crashed holder.
const DefaultLockTTL = 30 * time.Second

// lockEntry holds the mutex and the reference count.
type lockEntry struct {
	mu   sync.Mutex
	refs int
}

// Store is the keyed collection of scenes, backed by a SceneRepository.
// Writes for one scene id are serialized; distinct ids proceed in parallel.
// The in-memory view only changes after the repository accepted the write.
type Store struct {
	repo ports.SceneRepository

	mu    sync.Mutex            // guards locks
	locks map[string]*lockEntry // per scene id, garbage collected by refcount

	cacheMu sync.RWMutex
	scenes  map[string]*domain.Scene

	locker  ports.DistributedLocker
	lockTTL time.Duration
	logger  *slog.Logger
	hooks   domain.LifecycleHooks
	now     func() time.Time
}

// Option configures the Store.
type Option func(*Store)

// WithLocker enables distributed locking.
func WithLocker(locker ports.DistributedLocker) Option {
	return func(s *Store) {
		s.locker = locker
	}
}

// WithLockTTL overrides DefaultLockTTL.
func WithLockTTL(ttl time.Duration) Option {
	return func(s *Store) {
		if ttl > 0 {
			s.lockTTL = ttl
		}
	}
}

// WithLogger configures a logger for the Store.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

// WithHooks registers lifecycle callbacks.
func WithHooks(hooks domain.LifecycleHooks) Option {
	return func(s *Store) {
		s.hooks = hooks
	}
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// New creates a Store over the given repository. Call Load before serving.
func New(repo ports.SceneRepository, opts ...Option) *Store {
	s := &Store{
		repo:    repo,
		locks:   make(map[string]*lockEntry),
		scenes:  make(map[string]*domain.Scene),
		lockTTL: DefaultLockTTL,
		logger:  logging.NewNop(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Repository returns the underlying repository.
func (s *Store) Repository() ports.SceneRepository {
	return s.repo
}

// Load reads every persisted scene into memory, replacing the current view.
// Records that fail to decode are logged and skipped.
func (s *Store) Load(ctx context.Context) error {
	ids, err := s.repo.List(ctx)
	if err != nil {
		return &domain.PersistenceError{Op: "list", Err: err}
	}

	loaded := make(map[string]*domain.Scene, len(ids))
	for _, id := range ids {
		scene, err := s.repo.Load(ctx, id)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			s.logger.Warn("Skipping unreadable scene record", "scene_id", id, "err", err)
			continue
		}
		loaded[scene.ID] = scene
	}

	s.cacheMu.Lock()
	s.scenes = loaded
	s.cacheMu.Unlock()

	s.logger.Info("Scenes loaded", "count", len(loaded))
	return nil
}

// Put creates or replaces the scene. A replaced scene keeps its created_at.
func (s *Store) Put(ctx context.Context, sceneID string, snapshots []domain.EntitySnapshot, opts domain.SceneOptions) (*domain.Scene, error) {
	if sceneID == "" {
		return nil, domain.NewValidationError("scene_id", "is required")
	}

	var saved *domain.Scene
	err := s.withLock(ctx, []string{sceneID}, func(ctx context.Context) error {
		now := s.now().UTC()
		scene := &domain.Scene{
			ID:        sceneID,
			Snapshots: append([]domain.EntitySnapshot(nil), snapshots...),
			Options:   opts,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if prev, ok := s.cached(sceneID); ok {
			scene.CreatedAt = prev.CreatedAt
		}

		if err := s.repo.Save(ctx, scene); err != nil {
			return &domain.PersistenceError{Op: "save", SceneID: sceneID, Err: err}
		}
		s.store(scene)
		saved = scene.Clone()
		return nil
	})

	s.emitSaved(ctx, sceneID, len(snapshots), err)
	if err != nil {
		s.logger.Error("Failed to save scene", "scene_id", sceneID, "err", err)
		return nil, err
	}
	return saved, nil
}

// Get resolves a scene by its entity id (scene.<scene_id>).
func (s *Store) Get(ctx context.Context, entityID string) (*domain.Scene, error) {
	sceneID, ok := domain.SceneIDFromEntityID(entityID)
	if !ok {
		return nil, fmt.Errorf("%s: %w", entityID, domain.ErrSceneNotFound)
	}
	return s.GetByID(ctx, sceneID)
}

// GetByID resolves a scene by scene id.
func (s *Store) GetByID(ctx context.Context, sceneID string) (*domain.Scene, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	scene, ok := s.cached(sceneID)
	if !ok {
		return nil, fmt.Errorf("%s: %w", domain.SceneEntityID(sceneID), domain.ErrSceneNotFound)
	}
	return scene.Clone(), nil
}

// Delete removes the scene addressed by its entity id.
func (s *Store) Delete(ctx context.Context, entityID string) error {
	sceneID, ok := domain.SceneIDFromEntityID(entityID)
	if !ok {
		return fmt.Errorf("%s: %w", entityID, domain.ErrSceneNotFound)
	}

	var entities int
	err := s.withLock(ctx, []string{sceneID}, func(ctx context.Context) error {
		prev, known := s.cached(sceneID)
		if known {
			entities = len(prev.Snapshots)
		}
		if err := s.repo.Delete(ctx, sceneID); err != nil {
			// A record removed behind our back still counts as deleted if we knew it.
			if !errors.Is(err, domain.ErrSceneNotFound) {
				return &domain.PersistenceError{Op: "delete", SceneID: sceneID, Err: err}
			}
			if !known {
				return fmt.Errorf("%s: %w", entityID, domain.ErrSceneNotFound)
			}
		}
		s.evict(sceneID)
		return nil
	})

	if errors.Is(err, domain.ErrSceneNotFound) {
		return err
	}
	s.emitDeleted(ctx, sceneID, entities, err)
	if err != nil {
		s.logger.Error("Failed to delete scene", "scene_id", sceneID, "err", err)
	}
	return err
}

// ListAll returns every scene sorted by scene id.
func (s *Store) ListAll(ctx context.Context) ([]*domain.Scene, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.cacheMu.RLock()
	out := make([]*domain.Scene, 0, len(s.scenes))
	for _, scene := range s.scenes {
		out = append(out, scene.Clone())
	}
	s.cacheMu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Rename moves a scene to a new id. The target must not exist.
// The new record is written before the old one is removed.
func (s *Store) Rename(ctx context.Context, fromID, toID string) (*domain.Scene, error) {
	if toID == "" {
		return nil, domain.NewValidationError("new_scene_id", "is required")
	}
	if fromID == toID {
		return nil, domain.NewValidationError("new_scene_id", "must differ from scene_id")
	}

	var renamed *domain.Scene
	err := s.withLock(ctx, []string{fromID, toID}, func(ctx context.Context) error {
		src, ok := s.cached(fromID)
		if !ok {
			return fmt.Errorf("%s: %w", domain.SceneEntityID(fromID), domain.ErrSceneNotFound)
		}
		if _, exists := s.cached(toID); exists {
			return domain.NewValidationError("new_scene_id", "scene %q already exists", toID)
		}

		next := src.Clone()
		next.ID = toID
		next.UpdatedAt = s.now().UTC()
		if err := s.repo.Save(ctx, next); err != nil {
			return &domain.PersistenceError{Op: "save", SceneID: toID, Err: err}
		}
		if err := s.repo.Delete(ctx, fromID); err != nil && !errors.Is(err, domain.ErrSceneNotFound) {
			if rbErr := s.repo.Delete(ctx, toID); rbErr != nil {
				s.logger.Error("Failed to roll back renamed scene", "scene_id", toID, "err", rbErr)
			}
			return &domain.PersistenceError{Op: "delete", SceneID: fromID, Err: err}
		}

		s.evict(fromID)
		s.store(next)
		renamed = next.Clone()
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.emitDeleted(ctx, fromID, len(renamed.Snapshots), nil)
	s.emitSaved(ctx, toID, len(renamed.Snapshots), nil)
	s.logger.Info("Scene renamed", "scene_id", fromID, "new_scene_id", toID)
	return renamed, nil
}

// Len returns the number of scenes currently visible.
func (s *Store) Len() int {
	s.cacheMu.RLock()
	defer s.cacheMu.RUnlock()
	return len(s.scenes)
}

func (s *Store) cached(sceneID string) (*domain.Scene, bool) {
	s.cacheMu.RLock()
	defer s.cacheMu.RUnlock()
	scene, ok := s.scenes[sceneID]
	return scene, ok
}

func (s *Store) store(scene *domain.Scene) {
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()
	s.scenes[scene.ID] = scene.Clone()
}

func (s *Store) evict(sceneID string) {
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()
	delete(s.scenes, sceneID)
}

// acquire gets or creates a lock entry and increments its reference count.
// The caller MUST Lock the entry.mu, and then call release(sceneID) after unlocking.
func (s *Store) acquire(sceneID string) *lockEntry {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, exists := s.locks[sceneID]
	if !exists {
		entry = &lockEntry{}
		s.locks[sceneID] = entry
	}
	entry.refs++
	return entry
}

// release decrements the reference count and deletes the entry if it reaches zero.
func (s *Store) release(sceneID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, exists := s.locks[sceneID]
	if !exists {
		return
	}

	entry.refs--
	if entry.refs <= 0 {
		delete(s.locks, sceneID)
	}
}

// activeLocks reports how many lock entries are alive.
func (s *Store) activeLocks() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.locks)
}

// withLock runs fn holding the locks of every key.
// Keys are locked in sorted order so concurrent multi-key calls cannot deadlock.
func (s *Store) withLock(ctx context.Context, keys []string, fn func(context.Context) error) error {
	keys = append([]string(nil), keys...)
	sort.Strings(keys)

	for i, key := range keys {
		if i > 0 && keys[i-1] == key {
			continue
		}
		entry := s.acquire(key)
		entry.mu.Lock()
		defer func(key string) {
			entry.mu.Unlock()
			s.release(key)
		}(key)

		if s.locker != nil {
			unlock, err := s.locker.Lock(ctx, key, s.lockTTL)
			if err != nil {
				return fmt.Errorf("failed to acquire distributed lock: %w", err)
			}
			defer func(key string) {
				if err := unlock(context.WithoutCancel(ctx)); err != nil {
					s.logger.Warn("Failed to release distributed lock (will expire via TTL)",
						"scene_id", key,
						"err", err,
					)
				}
			}(key)
		}
	}

	return fn(ctx)
}

func (s *Store) emitSaved(ctx context.Context, sceneID string, entities int, err error) {
	if s.hooks.OnSceneSaved == nil {
		return
	}
	s.hooks.OnSceneSaved(ctx, &domain.SceneEvent{
		EventBase: domain.NewEventBase(domain.EventSceneSaved, sceneID),
		Entities:  entities,
		Err:       err,
	})
}

func (s *Store) emitDeleted(ctx context.Context, sceneID string, entities int, err error) {
	if s.hooks.OnSceneDeleted == nil {
		return
	}
	s.hooks.OnSceneDeleted(ctx, &domain.SceneEvent{
		EventBase: domain.NewEventBase(domain.EventSceneDeleted, sceneID),
		Entities:  entities,
		Err:       err,
	})
}
