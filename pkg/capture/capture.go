// Package capture reads live entity state from the host and turns it into snapshots.
package capture

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"

	"github.com/aretw0/resscene/internal/logging"
	"github.com/aretw0/resscene/pkg/domain"
	"github.com/aretw0/resscene/pkg/ports"
	"golang.org/x/sync/errgroup"
)

// DefaultConcurrency bounds simultaneous state reads.
const DefaultConcurrency = 8

// Failure reasons reported in domain.CaptureFailure.
const (
	ReasonMalformedID    = "malformed entity id"
	ReasonNotRestorable  = "domain not restorable"
	ReasonEntityNotFound = "entity not found"
)

var entityIDPattern = regexp.MustCompile(`^[a-z0-9_]+\.[a-z0-9_]+$`)

// Domains whose state is observed, never commanded.
var unsupportedDomains = map[string]bool{
	"sensor":         true,
	"binary_sensor":  true,
	"device_tracker": true,
	"camera":         true,
	"vacuum":         true,
	"scene":          true,
	"script":         true,
}

// ValidEntityID reports whether id has the domain.object_id form.
func ValidEntityID(id string) bool {
	return entityIDPattern.MatchString(id)
}

// Restorable reports whether entities of the domain can be captured.
func Restorable(entityDomain string) bool {
	return !unsupportedDomains[entityDomain]
}

// Result is the outcome of a capture.
type Result struct {
	// Snapshots in request order, duplicates removed.
	Snapshots []domain.EntitySnapshot
	// Fallbacks lists entities whose previous snapshot was reused.
	Fallbacks []string
}

// Capturer reads entity state. It never calls services on the host.
type Capturer struct {
	states      ports.StateProvider
	logger      *slog.Logger
	concurrency int
}

// Option configures the Capturer.
type Option func(*Capturer)

// WithLogger configures a logger for the Capturer.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Capturer) {
		c.logger = logger
	}
}

// WithConcurrency sets how many entities are read at once.
func WithConcurrency(n int) Option {
	return func(c *Capturer) {
		if n > 0 {
			c.concurrency = n
		}
	}
}

// New creates a Capturer over a state provider.
func New(states ports.StateProvider, opts ...Option) *Capturer {
	c := &Capturer{
		states:      states,
		logger:      logging.NewNop(),
		concurrency: DefaultConcurrency,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type outcome struct {
	snapshot domain.EntitySnapshot
	fallback bool
	failure  *domain.CaptureFailure
}

// Capture snapshots the given entities. previous, when non-nil, is the scene
// being replaced: its snapshots stand in for entities that are missing or
// unavailable right now.
//
// The returned error is a *domain.PartialCaptureError when some entities could
// not be captured, or the context error if ctx ended first.
func (c *Capturer) Capture(ctx context.Context, entityIDs []string, previous *domain.Scene) (Result, error) {
	ids := dedupe(entityIDs)
	outcomes := make([]outcome, len(ids))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.concurrency)
	for i, id := range ids {
		g.Go(func() error {
			o, err := c.captureOne(gctx, id, previous)
			if err != nil {
				return err
			}
			outcomes[i] = o
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Result{}, err
	}

	var res Result
	var failures []domain.CaptureFailure
	for _, o := range outcomes {
		if o.failure != nil {
			failures = append(failures, *o.failure)
			continue
		}
		res.Snapshots = append(res.Snapshots, o.snapshot)
		if o.fallback {
			res.Fallbacks = append(res.Fallbacks, o.snapshot.EntityID())
		}
	}

	if len(failures) > 0 {
		return res, &domain.PartialCaptureError{Failures: failures}
	}
	return res, nil
}

// captureOne returns an error only when the context is done.
func (c *Capturer) captureOne(ctx context.Context, id string, previous *domain.Scene) (outcome, error) {
	fail := func(reason string) (outcome, error) {
		c.logger.Warn("Entity not captured", "entity_id", id, "reason", reason)
		return outcome{failure: &domain.CaptureFailure{EntityID: id, Reason: reason}}, nil
	}

	if !ValidEntityID(id) {
		return fail(ReasonMalformedID)
	}
	if !Restorable(domain.EntityDomain(id)) {
		return fail(ReasonNotRestorable)
	}

	state, err := c.states.GetState(ctx, id)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return outcome{}, ctxErr
		}
		if prev, ok := fallback(previous, id); ok {
			c.logger.Info("Entity missing, reusing previous snapshot", "entity_id", id)
			return outcome{snapshot: prev, fallback: true}, nil
		}
		if errors.Is(err, domain.ErrEntityNotFound) {
			return fail(ReasonEntityNotFound)
		}
		return fail(err.Error())
	}

	if state.State == domain.StateUnavailable {
		if prev, ok := fallback(previous, id); ok {
			c.logger.Info("Entity unavailable, reusing previous snapshot", "entity_id", id)
			return outcome{snapshot: prev, fallback: true}, nil
		}
	}

	snap, err := domain.NewEntitySnapshot(id, state.State, state.Attributes)
	if err != nil {
		return fail(fmt.Sprintf("attributes: %v", err))
	}
	return outcome{snapshot: snap}, nil
}

func fallback(previous *domain.Scene, id string) (domain.EntitySnapshot, bool) {
	if previous == nil {
		return domain.EntitySnapshot{}, false
	}
	snap, ok := previous.Snapshot(id)
	if !ok || !snap.Restorable() {
		return domain.EntitySnapshot{}, false
	}
	return snap, true
}

func dedupe(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
