package resscene

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"time"

	"github.com/aretw0/resscene/internal/logging"
	"github.com/aretw0/resscene/pkg/activate"
	"github.com/aretw0/resscene/pkg/adapters/memory"
	"github.com/aretw0/resscene/pkg/capture"
	"github.com/aretw0/resscene/pkg/domain"
	"github.com/aretw0/resscene/pkg/observability"
	"github.com/aretw0/resscene/pkg/persistence/middleware"
	"github.com/aretw0/resscene/pkg/ports"
	"github.com/aretw0/resscene/pkg/registry"
	"github.com/aretw0/resscene/pkg/scenestore"
	"github.com/aretw0/resscene/pkg/service"
)

// Host is the minimum a home-automation host must provide.
// If it also implements ports.StateLister, ports.EntityDirectory or
// ports.EntityPublisher, the matching features are enabled.
type Host interface {
	ports.StateProvider
	ports.ServiceCaller
}

// Engine wires the capturer, store, activator and registry behind the Service.
type Engine struct {
	Service  *service.Service
	Store    *scenestore.Store
	Registry *registry.Registry
	Metrics  *observability.Metrics

	repo        ports.SceneRepository
	middlewares []middleware.Middleware
	locker      ports.DistributedLocker
	hooks       domain.LifecycleHooks
	defaults    domain.SceneOptions
	callDelay   *time.Duration
	concurrency int
	closers     []io.Closer
	logger      *slog.Logger
}

// Option defines a functional option for configuring the Engine.
type Option func(*Engine)

// WithRepository sets the persistence backend. Defaults to an in-memory store.
func WithRepository(repo ports.SceneRepository) Option {
	return func(e *Engine) {
		e.repo = repo
	}
}

// WithMiddleware wraps the repository; the first middleware is outermost.
func WithMiddleware(mws ...middleware.Middleware) Option {
	return func(e *Engine) {
		e.middlewares = append(e.middlewares, mws...)
	}
}

// WithLocker serializes writes across processes sharing the repository.
func WithLocker(l ports.DistributedLocker) Option {
	return func(e *Engine) {
		e.locker = l
	}
}

// WithLifecycleHooks registers observability hooks, called after the built-in
// metric and log hooks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(e *Engine) {
		e.hooks = hooks
	}
}

// WithDefaults sets the scene options used when a scene leaves them unset.
func WithDefaults(opts domain.SceneOptions) Option {
	return func(e *Engine) {
		e.defaults = opts
	}
}

// WithCallDelay sets the pause after service calls that have no state to await.
func WithCallDelay(d time.Duration) Option {
	return func(e *Engine) {
		e.callDelay = &d
	}
}

// WithConcurrency bounds how many entities are captured or restored at once.
func WithConcurrency(n int) Option {
	return func(e *Engine) {
		e.concurrency = n
	}
}

// WithCloser registers a resource released by Close, such as a database handle.
func WithCloser(c io.Closer) Option {
	return func(e *Engine) {
		e.closers = append(e.closers, c)
	}
}

// WithLogger sets a custom logger for the engine.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// New creates an Engine on top of host.
func New(host Host, opts ...Option) (*Engine, error) {
	if host == nil {
		return nil, errors.New("resscene: host is required")
	}
	eng := &Engine{logger: logging.NewNop()}
	for _, opt := range opts {
		opt(eng)
	}
	if eng.repo == nil {
		eng.repo = memory.NewStore()
	}
	repo := middleware.Chain(eng.repo, eng.middlewares...)

	var store *scenestore.Store
	eng.Metrics = observability.NewMetrics(func() int { return store.Len() })
	hooks := observability.Combine(eng.Metrics.Hooks(), observability.LogHooks(eng.logger), eng.hooks)

	storeOpts := []scenestore.Option{scenestore.WithLogger(eng.logger), scenestore.WithHooks(hooks)}
	if eng.locker != nil {
		storeOpts = append(storeOpts, scenestore.WithLocker(eng.locker))
	}
	store = scenestore.New(repo, storeOpts...)
	eng.Store = store

	captureOpts := []capture.Option{capture.WithLogger(eng.logger)}
	activateOpts := []activate.Option{activate.WithLogger(eng.logger), activate.WithHooks(hooks)}
	if eng.concurrency > 0 {
		captureOpts = append(captureOpts, capture.WithConcurrency(eng.concurrency))
		activateOpts = append(activateOpts, activate.WithConcurrency(eng.concurrency))
	}
	if eng.callDelay != nil {
		activateOpts = append(activateOpts, activate.WithCallDelay(*eng.callDelay))
	}

	regOpts := []registry.Option{registry.WithLogger(eng.logger)}
	if p, ok := host.(ports.EntityPublisher); ok {
		regOpts = append(regOpts, registry.WithPublisher(p))
	}
	eng.Registry = registry.NewRegistry(regOpts...)

	svcOpts := []service.Option{service.WithLogger(eng.logger), service.WithDefaults(eng.defaults)}
	if d, ok := host.(ports.EntityDirectory); ok {
		svcOpts = append(svcOpts, service.WithDirectory(d))
	}
	if l, ok := host.(ports.StateLister); ok {
		svcOpts = append(svcOpts, service.WithStateLister(l))
	}

	eng.Service = service.New(
		store,
		capture.New(host, captureOpts...),
		activate.New(host, host, activateOpts...),
		eng.Registry,
		svcOpts...,
	)
	return eng, nil
}

// Start restores persisted scenes and publishes their entities.
// It must run once before the engine serves requests.
func (e *Engine) Start(ctx context.Context) error {
	n, err := e.Service.Restore(ctx)
	if err != nil {
		return err
	}
	e.logger.Info("Engine started", "scenes", n, "version", Version)
	return nil
}

// Close releases registered resources.
func (e *Engine) Close() error {
	var errs []error
	for _, c := range e.closers {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
