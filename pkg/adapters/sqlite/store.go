// Package sqlite provides a SQLite-backed scene repository.
package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/aretw0/resscene/pkg/domain"
	"github.com/aretw0/resscene/pkg/persistence"
	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var schema string

// Store implements ports.SceneRepository on a single SQLite table.
// The record document is stored as-is; timestamps are duplicated as
// columns for inspection with external tools.
type Store struct {
	sqlDB *sql.DB
}

// Open opens a scene SQLite store and applies the schema.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	cleanPath := filepath.Clean(path)
	dsn := cleanPath + "?_journal_mode=WAL&_busy_timeout=5000&_synchronous=FULL"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if _, err := sqlDB.Exec(schema); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Store{sqlDB: sqlDB}, nil
}

// Close releases the SQLite connection.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// Save upserts the scene record inside a transaction.
func (s *Store) Save(ctx context.Context, scene *domain.Scene) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := persistence.Encode(scene)
	if err != nil {
		return err
	}

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin save: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
INSERT INTO scenes (scene_id, data, created_at, updated_at)
VALUES (?, ?, ?, ?)
ON CONFLICT(scene_id) DO UPDATE SET
	data = excluded.data,
	created_at = excluded.created_at,
	updated_at = excluded.updated_at
`,
		scene.ID,
		data,
		scene.CreatedAt.UTC().UnixMilli(),
		scene.UpdatedAt.UTC().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("save scene: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit save: %w", err)
	}
	return nil
}

// Load fetches a scene record by id.
func (s *Store) Load(ctx context.Context, sceneID string) (*domain.Scene, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var data []byte
	err := s.sqlDB.QueryRowContext(ctx, `SELECT data FROM scenes WHERE scene_id = ?`, sceneID).Scan(&data)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrSceneNotFound
		}
		return nil, fmt.Errorf("load scene: %w", err)
	}
	return persistence.Decode(data)
}

// Delete removes a scene record.
func (s *Store) Delete(ctx context.Context, sceneID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	res, err := s.sqlDB.ExecContext(ctx, `DELETE FROM scenes WHERE scene_id = ?`, sceneID)
	if err != nil {
		return fmt.Errorf("delete scene: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete scene: %w", err)
	}
	if n == 0 {
		return domain.ErrSceneNotFound
	}
	return nil
}

// List returns every scene id in ascending order.
func (s *Store) List(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	rows, err := s.sqlDB.QueryContext(ctx, `SELECT scene_id FROM scenes ORDER BY scene_id`)
	if err != nil {
		return nil, fmt.Errorf("list scenes: %w", err)
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan scene id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate scenes: %w", err)
	}
	return ids, nil
}
