// Package activate re-applies saved scenes through the host's service surface.
package activate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aretw0/resscene/internal/logging"
	"github.com/aretw0/resscene/pkg/domain"
	"github.com/aretw0/resscene/pkg/ports"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

const (
	// DefaultCallDelay separates consecutive calls to the same entity.
	DefaultCallDelay = time.Second
	// DefaultPollInterval is how often a pending state is checked.
	DefaultPollInterval = 100 * time.Millisecond
)

// Activator restores scenes. Entities are restored concurrently; calls to a
// single entity run in order. A failing entity never stops its siblings.
type Activator struct {
	caller ports.ServiceCaller
	states ports.StateProvider

	logger       *slog.Logger
	hooks        domain.LifecycleHooks
	callDelay    time.Duration
	pollInterval time.Duration
	concurrency  int
}

// Option configures the Activator.
type Option func(*Activator)

// WithLogger configures a logger for the Activator.
func WithLogger(logger *slog.Logger) Option {
	return func(a *Activator) {
		a.logger = logger
	}
}

// WithHooks registers lifecycle callbacks.
func WithHooks(hooks domain.LifecycleHooks) Option {
	return func(a *Activator) {
		a.hooks = hooks
	}
}

// WithCallDelay overrides DefaultCallDelay. Zero disables the delay.
func WithCallDelay(d time.Duration) Option {
	return func(a *Activator) {
		if d >= 0 {
			a.callDelay = d
		}
	}
}

// WithPollInterval overrides DefaultPollInterval.
func WithPollInterval(d time.Duration) Option {
	return func(a *Activator) {
		if d > 0 {
			a.pollInterval = d
		}
	}
}

// WithConcurrency caps how many entities are restored at once. Zero means no cap.
func WithConcurrency(n int) Option {
	return func(a *Activator) {
		a.concurrency = n
	}
}

// New creates an Activator.
func New(caller ports.ServiceCaller, states ports.StateProvider, opts ...Option) *Activator {
	a := &Activator{
		caller:       caller,
		states:       states,
		logger:       logging.NewNop(),
		callDelay:    DefaultCallDelay,
		pollInterval: DefaultPollInterval,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Activate restores every snapshot of the scene. defaults fill the options the
// scene does not set. The report is always returned, even when every entity failed.
func (a *Activator) Activate(ctx context.Context, scene *domain.Scene, defaults domain.SceneOptions) *domain.ActivationReport {
	opts := scene.Options.Merge(defaults)
	report := &domain.ActivationReport{
		RunID:     uuid.NewString(),
		SceneID:   scene.ID,
		Outcomes:  make([]domain.EntityOutcome, len(scene.Snapshots)),
		StartedAt: time.Now(),
	}
	logger := a.logger.With("scene_id", scene.ID, "run_id", report.RunID)
	logger.Info("Activating scene", "entities", len(scene.Snapshots))

	var g errgroup.Group
	if a.concurrency > 0 {
		g.SetLimit(a.concurrency)
	}
	for i, snap := range scene.Snapshots {
		g.Go(func() error {
			start := time.Now()
			outcome := a.restore(ctx, logger, snap, opts)
			report.Outcomes[i] = outcome
			a.emitRestored(ctx, scene.ID, outcome, time.Since(start))
			return nil
		})
	}
	_ = g.Wait()
	report.FinishedAt = time.Now()

	if failures := report.Failures(); len(failures) > 0 {
		logger.Warn("Scene applied with errors", "failed", len(failures), "duration", report.Duration())
	} else {
		logger.Info("Scene applied", "duration", report.Duration())
	}

	if a.hooks.OnSceneActivated != nil {
		a.hooks.OnSceneActivated(ctx, &domain.ActivationEvent{
			EventBase: domain.NewEventBase(domain.EventSceneActivated, scene.ID),
			Report:    report,
		})
	}
	return report
}

func (a *Activator) restore(ctx context.Context, logger *slog.Logger, snap domain.EntitySnapshot, opts domain.SceneOptions) domain.EntityOutcome {
	id := snap.EntityID()
	logger = logger.With("entity_id", id)
	out := domain.EntityOutcome{EntityID: id}

	failed := func(reason string) domain.EntityOutcome {
		out.Status = domain.OutcomeFailed
		out.Reason = reason
		logger.Error("Failed to restore entity", "reason", reason)
		return out
	}

	plan := PlanFor(snap, opts)
	if plan.Skip != "" {
		out.Status = domain.OutcomeSkipped
		out.Reason = plan.Skip
		logger.Debug("Entity skipped", "reason", plan.Skip)
		return out
	}
	if plan.Note != "" {
		logger.Warn(plan.Note)
	}

	target, err := a.states.GetState(ctx, id)
	switch {
	case errors.Is(err, domain.ErrEntityNotFound):
		return failed("entity not found")
	case err != nil:
		return failed(err.Error())
	case !target.Usable():
		return failed("entity is " + target.State)
	}

	var notes []string
	for i, step := range plan.Steps {
		if i > 0 && plan.Steps[i-1].Expect == "" {
			if err := sleep(ctx, a.callDelay); err != nil {
				return failed(err.Error())
			}
		}

		out.Calls++
		err := a.caller.CallService(ctx, ports.ServiceCall{
			Domain:   step.Domain,
			Service:  step.Service,
			EntityID: id,
			Data:     step.Data,
		})
		if err != nil {
			return failed(fmt.Sprintf("%s.%s: %v", step.Domain, step.Service, err))
		}

		if step.Expect != "" {
			ok, err := a.waitFor(ctx, id, step.Expect, opts.Timeout())
			if err != nil {
				return failed(err.Error())
			}
			if !ok {
				note := fmt.Sprintf("timed out waiting for %s after %s", step.Expect, opts.Timeout())
				logger.Warn("Entity did not reach expected state", "expected", step.Expect, "timeout", opts.Timeout())
				notes = append(notes, note)
			}
		}
	}

	out.Status = domain.OutcomeApplied
	if len(notes) > 0 {
		out.Reason = notes[len(notes)-1]
	}
	return out
}

// waitFor polls until the entity reports want or timeout passes.
// It returns an error only when ctx ends.
func (a *Activator) waitFor(ctx context.Context, entityID, want string, timeout time.Duration) (bool, error) {
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	ticker := time.NewTicker(a.pollInterval)
	defer ticker.Stop()

	for {
		if s, err := a.states.GetState(ctx, entityID); err == nil && s.State == want {
			return true, nil
		}
		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case <-deadline.C:
			return false, nil
		case <-ticker.C:
		}
	}
}

func (a *Activator) emitRestored(ctx context.Context, sceneID string, outcome domain.EntityOutcome, elapsed time.Duration) {
	if a.hooks.OnEntityRestored == nil {
		return
	}
	a.hooks.OnEntityRestored(ctx, &domain.RestoreEvent{
		EventBase: domain.NewEventBase(domain.EventEntityRestored, sceneID),
		Outcome:   outcome,
		Elapsed:   elapsed,
	})
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
