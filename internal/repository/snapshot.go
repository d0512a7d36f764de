package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// ErrSnapshotNotFound 快照不存在
var ErrSnapshotNotFound = errors.New("snapshot not found")

// SnapshotRepository 状态快照仓库，保存序列化后的应用状态
type SnapshotRepository struct {
	db *DB
}

// NewSnapshotRepository 创建快照仓库
func NewSnapshotRepository(db *DB) *SnapshotRepository {
	return &SnapshotRepository{db: db}
}

// Save 写入命名快照（整体覆盖）
func (r *SnapshotRepository) Save(ctx context.Context, name string, body []byte) error {
	query := `
		INSERT INTO snapshots (name, body, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET body = excluded.body, updated_at = excluded.updated_at
	`
	if _, err := r.db.Conn.ExecContext(ctx, query, name, string(body), time.Now().UTC()); err != nil {
		return fmt.Errorf("save snapshot %s: %w", name, err)
	}
	return nil
}

// Load 读取命名快照
func (r *SnapshotRepository) Load(ctx context.Context, name string) ([]byte, error) {
	var body string
	err := r.db.Conn.QueryRowContext(ctx, `SELECT body FROM snapshots WHERE name = ?`, name).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrSnapshotNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load snapshot %s: %w", name, err)
	}
	return []byte(body), nil
}

// Delete 删除命名快照
func (r *SnapshotRepository) Delete(ctx context.Context, name string) error {
	if _, err := r.db.Conn.ExecContext(ctx, `DELETE FROM snapshots WHERE name = ?`, name); err != nil {
		return fmt.Errorf("delete snapshot %s: %w", name, err)
	}
	return nil
}
