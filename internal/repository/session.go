package repository

import (
	"context"
	"time"

	"ludo-server/internal/domain"
)

// SessionRepository 定义了玩家会话的存储操作，通常由 Redis 实现。
type SessionRepository interface {
	// Save 保存会话并设置过期时间。
	Save(ctx context.Context, session *domain.Session, ttl time.Duration) error

	// Find 根据会话 ID 查找会话，不存在时返回 ErrSessionNotFound。
	Find(ctx context.Context, id string) (*domain.Session, error)

	// Delete 删除会话。会话不存在不视为错误。
	Delete(ctx context.Context, id string) error
}
