package redis

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/aretw0/resscene/pkg/domain"
	"github.com/aretw0/resscene/pkg/persistence"
	backend "github.com/redis/go-redis/v9"
)

// DefaultPrefix namespaces every key written by the store.
const DefaultPrefix = "resscene:scene:"

// Store implements ports.SceneRepository using Redis.
// Each scene is one string key holding its JSON record; a set indexes the ids.
type Store struct {
	client *backend.Client
	prefix string
}

type Option func(*Store)

// WithPrefix sets the key prefix for scenes.
func WithPrefix(prefix string) Option {
	return func(s *Store) {
		s.prefix = prefix
	}
}

// New creates a new Redis store with options.
func New(address, password string, db int, opts ...Option) *Store {
	rdb := backend.NewClient(&backend.Options{
		Addr:     address,
		Password: password,
		DB:       db,
	})
	return NewFromClient(rdb, opts...)
}

// NewFromClient creates a new Redis store from an existing client.
func NewFromClient(client *backend.Client, opts ...Option) *Store {
	store := &Store{
		client: client,
		prefix: DefaultPrefix,
	}

	for _, opt := range opts {
		opt(store)
	}

	return store
}

// Client returns the underlying client, e.g. to share it with a Locker.
func (s *Store) Client() *backend.Client {
	return s.client
}

func (s *Store) key(sceneID string) string {
	return s.prefix + sceneID
}

// indexKey uses a character scene ids cannot contain, so no scene key collides with it.
func (s *Store) indexKey() string {
	return s.prefix + "@index"
}

// Save persists the scene to Redis.
// The record and its index entry are written in one MULTI/EXEC transaction.
func (s *Store) Save(ctx context.Context, scene *domain.Scene) error {
	data, err := persistence.Encode(scene)
	if err != nil {
		return err
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, s.key(scene.ID), data, 0)
	pipe.SAdd(ctx, s.indexKey(), scene.ID)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to save to redis: %w", err)
	}
	return nil
}

// Load retrieves the scene from Redis.
func (s *Store) Load(ctx context.Context, sceneID string) (*domain.Scene, error) {
	val, err := s.client.Get(ctx, s.key(sceneID)).Bytes()
	if err != nil {
		if errors.Is(err, backend.Nil) {
			return nil, domain.ErrSceneNotFound
		}
		return nil, fmt.Errorf("failed to get from redis: %w", err)
	}
	return persistence.Decode(val)
}

// Delete removes the scene and its index entry.
func (s *Store) Delete(ctx context.Context, sceneID string) error {
	pipe := s.client.TxPipeline()
	del := pipe.Del(ctx, s.key(sceneID))
	pipe.SRem(ctx, s.indexKey(), sceneID)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to delete from redis: %w", err)
	}
	if del.Val() == 0 {
		return domain.ErrSceneNotFound
	}
	return nil
}

// List returns the indexed scene ids in sorted order.
func (s *Store) List(ctx context.Context) ([]string, error) {
	ids, err := s.client.SMembers(ctx, s.indexKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list scenes: %w", err)
	}
	sort.Strings(ids)
	return ids, nil
}

// Close closes the redis client.
func (s *Store) Close() error {
	return s.client.Close()
}
