package file

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"

	"github.com/aretw0/resscene/pkg/domain"
	"github.com/aretw0/resscene/pkg/persistence"
)

const recordExt = ".json"

// Store implements ports.SceneRepository using the local filesystem.
// It stores one JSON record per scene in a configured directory.
type Store struct {
	BasePath string
}

// New creates a new Store with the given base path.
// If basePath is empty, it defaults to ".resscene/scenes".
func New(basePath string) *Store {
	if basePath == "" {
		basePath = filepath.Join(".resscene", "scenes")
	}
	return &Store{BasePath: basePath}
}

func (s *Store) path(sceneID string) (string, error) {
	if sceneID == "" {
		return "", fmt.Errorf("sceneID cannot be empty")
	}
	if strings.ContainsAny(sceneID, `/\`) || sceneID == "." || sceneID == ".." {
		return "", fmt.Errorf("invalid sceneID %q", sceneID)
	}
	return filepath.Join(s.BasePath, sceneID+recordExt), nil
}

// Save persists the scene record to a JSON file atomically.
// It writes to a temporary file first, syncs via fsync, and then renames it to the destination.
func (s *Store) Save(ctx context.Context, scene *domain.Scene) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if scene == nil {
		return fmt.Errorf("scene cannot be nil")
	}
	destPath, err := s.path(scene.ID)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(s.BasePath, 0o755); err != nil {
		return fmt.Errorf("failed to ensure scene directory: %w", err)
	}

	data, err := persistence.EncodeIndent(scene)
	if err != nil {
		return err
	}

	// Same directory as the destination: rename is only atomic within one filesystem.
	// The .tmp suffix keeps partial files out of List.
	tmpFile, err := os.CreateTemp(s.BasePath, scene.ID+"-*"+recordExt+".tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	defer func() {
		_ = tmpFile.Close()
		_ = os.Remove(tmpPath) // no-op once renamed
	}()

	if _, err := tmpFile.Write(data); err != nil {
		return fmt.Errorf("failed to write to temp file: %w", err)
	}

	if err := tmpFile.Sync(); err != nil {
		return fmt.Errorf("failed to fsync temp file: %w", err)
	}

	// Cannot rename an open file on Windows.
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	// os.Rename replaces atomically on POSIX. Windows refuses to overwrite,
	// which leaves a short window with no record there.
	if runtime.GOOS == "windows" {
		if _, err := os.Stat(destPath); err == nil {
			if err := os.Remove(destPath); err != nil {
				return fmt.Errorf("failed to remove existing scene file for overwrite: %w", err)
			}
		}
	}

	if err := os.Rename(tmpPath, destPath); err != nil {
		return fmt.Errorf("failed to rename temp file to scene record: %w", err)
	}

	syncDir(s.BasePath)
	return nil
}

// syncDir flushes the directory entry so the rename survives a power loss.
// Not supported everywhere; errors are ignored.
func syncDir(dir string) {
	d, err := os.Open(dir)
	if err != nil {
		return
	}
	_ = d.Sync()
	_ = d.Close()
}

// Load retrieves the scene record from its JSON file.
func (s *Store) Load(ctx context.Context, sceneID string) (*domain.Scene, error) {
	filePath, err := s.path(sceneID)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, domain.ErrSceneNotFound
		}
		return nil, fmt.Errorf("failed to read scene file: %w", err)
	}

	return persistence.Decode(data)
}

// Delete removes the scene file.
func (s *Store) Delete(ctx context.Context, sceneID string) error {
	filePath, err := s.path(sceneID)
	if err != nil {
		return err
	}

	if err := os.Remove(filePath); err != nil {
		if os.IsNotExist(err) {
			return domain.ErrSceneNotFound
		}
		return fmt.Errorf("failed to delete scene file: %w", err)
	}

	syncDir(s.BasePath)
	return nil
}

// List returns all persisted scene ids.
func (s *Store) List(ctx context.Context) ([]string, error) {
	entries, err := os.ReadDir(s.BasePath)
	if err != nil {
		if os.IsNotExist(err) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("failed to list scenes: %w", err)
	}

	ids := []string{}
	for _, entry := range entries {
		if !entry.IsDir() && filepath.Ext(entry.Name()) == recordExt {
			ids = append(ids, strings.TrimSuffix(entry.Name(), recordExt))
		}
	}
	sort.Strings(ids)
	return ids, nil
}
