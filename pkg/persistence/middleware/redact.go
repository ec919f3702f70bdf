package middleware

import (
	"context"
	"regexp"

	"github.com/aretw0/resscene/pkg/domain"
	"github.com/aretw0/resscene/pkg/ports"
)

type redactMiddleware struct {
	next     ports.SceneRepository
	patterns []*regexp.Regexp
}

// NewRedactMiddleware creates a middleware that drops snapshot attributes whose
// key matches one of the patterns before the record reaches the backend.
// Dropped attributes are simply not restored; the in-memory scene is untouched.
func NewRedactMiddleware(patternStrings []string) Middleware {
	patterns := make([]*regexp.Regexp, len(patternStrings))
	for i, p := range patternStrings {
		patterns[i] = regexp.MustCompile(p)
	}
	return func(next ports.SceneRepository) ports.SceneRepository {
		return &redactMiddleware{next: next, patterns: patterns}
	}
}

func (m *redactMiddleware) Save(ctx context.Context, scene *domain.Scene) error {
	cloned := scene.Clone()
	for i, snap := range cloned.Snapshots {
		attrs := snap.Attributes()
		if !m.redact(attrs) {
			continue
		}
		redacted, err := domain.NewEntitySnapshot(snap.EntityID(), snap.State(), attrs)
		if err != nil {
			return err
		}
		cloned.Snapshots[i] = redacted
	}
	return m.next.Save(ctx, cloned)
}

func (m *redactMiddleware) Load(ctx context.Context, sceneID string) (*domain.Scene, error) {
	return m.next.Load(ctx, sceneID)
}

func (m *redactMiddleware) Delete(ctx context.Context, sceneID string) error {
	return m.next.Delete(ctx, sceneID)
}

func (m *redactMiddleware) List(ctx context.Context) ([]string, error) {
	return m.next.List(ctx)
}

// redact removes matching keys, recursing into nested maps. It reports whether anything changed.
func (m *redactMiddleware) redact(attrs map[string]any) bool {
	changed := false
	for k, v := range attrs {
		if m.matches(k) {
			delete(attrs, k)
			changed = true
			continue
		}
		if sub, ok := v.(map[string]any); ok && m.redact(sub) {
			changed = true
		}
	}
	return changed
}

func (m *redactMiddleware) matches(key string) bool {
	for _, p := range m.patterns {
		if p.MatchString(key) {
			return true
		}
	}
	return false
}
