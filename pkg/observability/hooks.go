package observability

import (
	"context"
	"log/slog"

	"github.com/aretw0/resscene/pkg/domain"
)

// Combine returns hooks that call each of the given hooks in order.
// Nil callbacks are skipped.
func Combine(all ...domain.LifecycleHooks) domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnSceneSaved: func(ctx context.Context, e *domain.SceneEvent) {
			for _, h := range all {
				if h.OnSceneSaved != nil {
					h.OnSceneSaved(ctx, e)
				}
			}
		},
		OnSceneDeleted: func(ctx context.Context, e *domain.SceneEvent) {
			for _, h := range all {
				if h.OnSceneDeleted != nil {
					h.OnSceneDeleted(ctx, e)
				}
			}
		},
		OnSceneActivated: func(ctx context.Context, e *domain.ActivationEvent) {
			for _, h := range all {
				if h.OnSceneActivated != nil {
					h.OnSceneActivated(ctx, e)
				}
			}
		},
		OnEntityRestored: func(ctx context.Context, e *domain.RestoreEvent) {
			for _, h := range all {
				if h.OnEntityRestored != nil {
					h.OnEntityRestored(ctx, e)
				}
			}
		},
	}
}

// LogHooks writes one log line per lifecycle event.
func LogHooks(logger *slog.Logger) domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnSceneSaved: func(ctx context.Context, e *domain.SceneEvent) {
			if e.Err != nil {
				logger.ErrorContext(ctx, "scene_save_failed", "scene_id", e.SceneID, "err", e.Err)
				return
			}
			logger.InfoContext(ctx, "scene_saved", "scene_id", e.SceneID, "entities", e.Entities)
		},
		OnSceneDeleted: func(ctx context.Context, e *domain.SceneEvent) {
			if e.Err != nil {
				logger.ErrorContext(ctx, "scene_delete_failed", "scene_id", e.SceneID, "err", e.Err)
				return
			}
			logger.InfoContext(ctx, "scene_deleted", "scene_id", e.SceneID)
		},
		OnSceneActivated: func(ctx context.Context, e *domain.ActivationEvent) {
			logger.InfoContext(ctx, "scene_activated",
				"scene_id", e.SceneID,
				"run_id", e.Report.RunID,
				"applied", len(e.Report.Applied()),
				"failed", len(e.Report.Failures()),
				"duration", e.Report.Duration(),
			)
		},
		OnEntityRestored: func(ctx context.Context, e *domain.RestoreEvent) {
			logger.DebugContext(ctx, "entity_restored",
				"scene_id", e.SceneID,
				"entity_id", e.Outcome.EntityID,
				"status", e.Outcome.Status,
				"reason", e.Outcome.Reason,
			)
		},
	}
}
