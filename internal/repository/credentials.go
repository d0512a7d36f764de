package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// 令牌存储使用的固定 key
const (
	keyAccessToken  = "access_token"
	keyRefreshToken = "refresh_token"
)

// CredentialRepository 令牌仓库，进程内令牌的唯一可变来源
type CredentialRepository struct {
	db *DB
}

// NewCredentialRepository 创建令牌仓库
func NewCredentialRepository(db *DB) *CredentialRepository {
	return &CredentialRepository{db: db}
}

func (r *CredentialRepository) get(ctx context.Context, key string) (string, error) {
	var value string
	err := r.db.Conn.QueryRowContext(ctx, `SELECT value FROM credentials WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("query credential %s: %w", key, err)
	}
	return value, nil
}

func (r *CredentialRepository) set(ctx context.Context, key, value string) error {
	query := `
		INSERT INTO credentials (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`
	if _, err := r.db.Conn.ExecContext(ctx, query, key, value); err != nil {
		return fmt.Errorf("store credential %s: %w", key, err)
	}
	return nil
}

// AccessToken 读取访问令牌，不存在时返回空串
func (r *CredentialRepository) AccessToken(ctx context.Context) (string, error) {
	return r.get(ctx, keyAccessToken)
}

// RefreshToken 读取刷新令牌，不存在时返回空串
func (r *CredentialRepository) RefreshToken(ctx context.Context) (string, error) {
	return r.get(ctx, keyRefreshToken)
}

// SetTokens 同时写入两个令牌
func (r *CredentialRepository) SetTokens(ctx context.Context, accessToken, refreshToken string) error {
	if err := r.set(ctx, keyAccessToken, accessToken); err != nil {
		return err
	}
	return r.set(ctx, keyRefreshToken, refreshToken)
}

// Clear 清除全部令牌
func (r *CredentialRepository) Clear(ctx context.Context) error {
	if _, err := r.db.Conn.ExecContext(ctx, `DELETE FROM credentials`); err != nil {
		return fmt.Errorf("clear credentials: %w", err)
	}
	return nil
}
