// Package service is the externally callable surface of ResScene: create and
// delete scenes, plus activation, rename and start-up restore.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/aretw0/resscene/internal/logging"
	"github.com/aretw0/resscene/pkg/activate"
	"github.com/aretw0/resscene/pkg/capture"
	"github.com/aretw0/resscene/pkg/domain"
	"github.com/aretw0/resscene/pkg/ports"
	"github.com/aretw0/resscene/pkg/scenestore"
)

// CreateResult describes a created scene.
type CreateResult struct {
	Scene *domain.Scene `json:"scene"`
	// Warning lists entities that could not be captured. The scene was still created.
	Warning *domain.PartialCaptureError `json:"-"`
	// Fallbacks lists entities restored from the replaced scene's snapshot.
	Fallbacks []string `json:"fallbacks,omitempty"`
	// Diff compares the new scene with the one it replaced; nil when identical.
	Diff *domain.SceneDiff `json:"diff,omitempty"`
}

// Service maps requests onto the capturer, the store, the activator and the registrar.
type Service struct {
	store     *scenestore.Store
	capturer  *capture.Capturer
	activator *activate.Activator
	registrar ports.Registrar

	directory ports.EntityDirectory
	lister    ports.StateLister
	defaults  domain.SceneOptions
	logger    *slog.Logger
}

// Option configures the Service.
type Option func(*Service)

// WithDirectory enables snapshot_areas and snapshot_labels.
func WithDirectory(d ports.EntityDirectory) Option {
	return func(s *Service) {
		s.directory = d
	}
}

// WithStateLister enables snapshot_filter.
func WithStateLister(l ports.StateLister) Option {
	return func(s *Service) {
		s.lister = l
	}
}

// WithDefaults sets the options used when neither the request nor the scene sets them.
func WithDefaults(opts domain.SceneOptions) Option {
	return func(s *Service) {
		s.defaults = opts
	}
}

// WithLogger configures a logger for the Service.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// New creates a Service. All four collaborators are required.
func New(store *scenestore.Store, capturer *capture.Capturer, activator *activate.Activator, registrar ports.Registrar, opts ...Option) *Service {
	s := &Service{
		store:     store,
		capturer:  capturer,
		activator: activator,
		registrar: registrar,
		logger:    logging.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Store returns the scene store.
func (s *Service) Store() *scenestore.Store {
	return s.store
}

// Create captures the requested entities and saves them as a scene,
// replacing any scene with the same id.
func (s *Service) Create(ctx context.Context, req CreateRequest) (*CreateResult, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	ids, err := s.expand(ctx, req)
	if err != nil {
		return nil, err
	}

	previous, err := s.store.GetByID(ctx, req.SceneID)
	if err != nil && !errors.Is(err, domain.ErrSceneNotFound) {
		return nil, err
	}

	res, err := s.capturer.Capture(ctx, ids, previous)
	var partial *domain.PartialCaptureError
	if err != nil && !errors.As(err, &partial) {
		return nil, err
	}
	if len(res.Snapshots) == 0 {
		return nil, domain.NewValidationError("snapshot_entities", "%s", domain.ErrNoValidEntities)
	}

	scene, err := s.store.Put(ctx, req.SceneID, res.Snapshots, req.Options())
	if err != nil {
		return nil, err
	}
	if err := s.register(ctx, scene); err != nil {
		return nil, err
	}

	logger := s.logger.With("scene_id", scene.ID)
	if partial != nil {
		logger.Warn("Scene created with missing entities", "missing", partial.EntityIDs())
	}
	logger.Info("Scene saved", "entities", len(scene.Snapshots), "fallbacks", len(res.Fallbacks))

	return &CreateResult{
		Scene:     scene,
		Warning:   partial,
		Fallbacks: res.Fallbacks,
		Diff:      domain.Diff(previous, scene),
	}, nil
}

// Delete removes a scene and its published entity.
func (s *Service) Delete(ctx context.Context, req DeleteRequest) error {
	if err := req.Validate(); err != nil {
		return err
	}
	if err := s.store.Delete(ctx, req.EntityID); err != nil {
		return err
	}
	if err := s.registrar.Unregister(ctx, req.EntityID); err != nil {
		return fmt.Errorf("unregister %s: %w", req.EntityID, err)
	}
	s.logger.Info("Scene deleted", "entity_id", req.EntityID)
	return nil
}

// Activate restores the scene behind a scene entity id through the handler
// the registrar holds for it. Only registered entities can be activated.
func (s *Service) Activate(ctx context.Context, entityID string) (*domain.ActivationReport, error) {
	if _, err := sceneIDOf(entityID); err != nil {
		return nil, err
	}
	return s.registrar.Activate(ctx, entityID)
}

// Rename moves a scene to a new id and republishes it.
func (s *Service) Rename(ctx context.Context, req RenameRequest) (*domain.Scene, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	fromID, _ := sceneIDOf(req.EntityID)

	scene, err := s.store.Rename(ctx, fromID, req.NewSceneID)
	if err != nil {
		return nil, err
	}
	if err := s.registrar.Unregister(ctx, req.EntityID); err != nil {
		return nil, fmt.Errorf("unregister %s: %w", req.EntityID, err)
	}
	if err := s.register(ctx, scene); err != nil {
		return nil, err
	}
	return scene, nil
}

// Restore loads every persisted scene and publishes it. It runs once at start.
func (s *Service) Restore(ctx context.Context) (int, error) {
	if err := s.store.Load(ctx); err != nil {
		return 0, err
	}
	scenes, err := s.store.ListAll(ctx)
	if err != nil {
		return 0, err
	}
	for _, scene := range scenes {
		if err := s.register(ctx, scene); err != nil {
			return 0, err
		}
	}
	s.logger.Info("Restored scenes", "count", len(scenes))
	return len(scenes), nil
}

// List returns every scene sorted by id.
func (s *Service) List(ctx context.Context) ([]*domain.Scene, error) {
	return s.store.ListAll(ctx)
}

// Get returns the scene behind a scene entity id.
func (s *Service) Get(ctx context.Context, entityID string) (*domain.Scene, error) {
	return s.store.Get(ctx, entityID)
}

// Call dispatches a service call by name with loosely typed data, the way
// the host delivers res_scene.<service> calls.
func (s *Service) Call(ctx context.Context, service string, data map[string]any) (any, error) {
	switch service {
	case ServiceCreate:
		var req CreateRequest
		if err := decode(data, &req); err != nil {
			return nil, err
		}
		return s.Create(ctx, req)
	case ServiceDelete:
		var req DeleteRequest
		if err := decode(data, &req); err != nil {
			return nil, err
		}
		return nil, s.Delete(ctx, req)
	case ServiceActivate:
		var req ActivateRequest
		if err := decode(data, &req); err != nil {
			return nil, err
		}
		return s.Activate(ctx, req.EntityID)
	case ServiceRename:
		var req RenameRequest
		if err := decode(data, &req); err != nil {
			return nil, err
		}
		return s.Rename(ctx, req)
	default:
		return nil, domain.NewValidationError("service", "unknown service %q", service)
	}
}

func (s *Service) register(ctx context.Context, scene *domain.Scene) error {
	sceneID := scene.ID
	handler := func(ctx context.Context) (*domain.ActivationReport, error) {
		return s.activateScene(ctx, sceneID)
	}
	if err := s.registrar.Register(ctx, scene, handler); err != nil {
		return fmt.Errorf("register %s: %w", scene.EntityID(), err)
	}
	return nil
}

func (s *Service) activateScene(ctx context.Context, sceneID string) (*domain.ActivationReport, error) {
	scene, err := s.store.GetByID(ctx, sceneID)
	if err != nil {
		return nil, err
	}
	return s.activator.Activate(ctx, scene, s.defaults), nil
}

// expand resolves areas, labels and the filter into entity ids appended after
// the explicit ones. Duplicates are removed by the capturer.
func (s *Service) expand(ctx context.Context, req CreateRequest) ([]string, error) {
	ids := append([]string(nil), req.SnapshotEntities...)

	if len(req.SnapshotAreas) > 0 || len(req.SnapshotLabels) > 0 {
		if s.directory == nil {
			return nil, domain.NewValidationError("snapshot_areas", "the host does not expose areas or labels")
		}
		for _, area := range req.SnapshotAreas {
			found, err := s.directory.EntitiesForArea(ctx, area)
			if err != nil {
				return nil, fmt.Errorf("resolve area %q: %w", area, err)
			}
			ids = append(ids, found...)
		}
		for _, label := range req.SnapshotLabels {
			found, err := s.directory.EntitiesForLabel(ctx, label)
			if err != nil {
				return nil, fmt.Errorf("resolve label %q: %w", label, err)
			}
			ids = append(ids, found...)
		}
	}

	if req.SnapshotFilter != "" {
		if s.lister == nil {
			return nil, domain.NewValidationError("snapshot_filter", "the host does not expose entity listing")
		}
		filter, err := CompileFilter(req.SnapshotFilter)
		if err != nil {
			return nil, domain.NewValidationError("snapshot_filter", "%v", err)
		}
		states, err := s.lister.ListStates(ctx)
		if err != nil {
			return nil, fmt.Errorf("list states: %w", err)
		}
		for _, st := range states {
			ok, err := filter.Match(st)
			if err != nil {
				// Entities lacking an attribute the expression compares are not matches.
				s.logger.Debug("Filter skipped entity", "entity_id", st.EntityID, "err", err)
				continue
			}
			if ok {
				ids = append(ids, st.EntityID)
			}
		}
	}
	return ids, nil
}
