package repository

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// DB 本地 sqlite 数据库封装（设备端持久化）
type DB struct {
	Conn *sql.DB
}

// New 打开本地数据库
func New(ctx context.Context, path string) (*DB, error) {
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// 设备端单写者
	conn.SetMaxOpenConns(1)

	if err := conn.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &DB{Conn: conn}, nil
}

// Close 关闭数据库
func (db *DB) Close() error {
	return db.Conn.Close()
}

// Migrate 执行数据库迁移
func (db *DB) Migrate(ctx context.Context) error {
	migrations := []string{
		migrationCreateCredentials,
		migrationCreateSnapshots,
	}

	for _, m := range migrations {
		if _, err := db.Conn.ExecContext(ctx, m); err != nil {
			return fmt.Errorf("execute migration: %w", err)
		}
	}

	return nil
}

// 数据库迁移 SQL
const migrationCreateCredentials = `
CREATE TABLE IF NOT EXISTS credentials (
    key   TEXT PRIMARY KEY,
    value TEXT NOT NULL
);
`

const migrationCreateSnapshots = `
CREATE TABLE IF NOT EXISTS snapshots (
    name       TEXT PRIMARY KEY,
    body       TEXT NOT NULL,
    updated_at TIMESTAMP NOT NULL
);
`
