package middleware

import "github.com/aretw0/resscene/pkg/ports"

// Middleware allows wrapping a SceneRepository to add behavior.
type Middleware func(ports.SceneRepository) ports.SceneRepository

// Chain applies middlewares so that the first one is the outermost.
func Chain(repo ports.SceneRepository, mws ...Middleware) ports.SceneRepository {
	for i := len(mws) - 1; i >= 0; i-- {
		repo = mws[i](repo)
	}
	return repo
}
