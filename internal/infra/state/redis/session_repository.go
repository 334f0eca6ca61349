package redisstate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"ludo-server/internal/domain"
	"ludo-server/internal/repository"
)

// RedisSessionRepository 是 SessionRepository 接口的 Redis 实现。
// 会话以 JSON 存储并带 TTL，玩家长时间不活跃后自然过期。
type RedisSessionRepository struct {
	client    *redis.Client
	keyPrefix string
}

// NewRedisSessionRepository 创建 RedisSessionRepository 实例
func NewRedisSessionRepository(client *redis.Client, keyPrefix string) *RedisSessionRepository {
	if client == nil {
		panic("redis client cannot be nil for RedisSessionRepository")
	}
	if keyPrefix == "" {
		keyPrefix = "ludo:"
	}
	return &RedisSessionRepository{client: client, keyPrefix: keyPrefix}
}

func (r *RedisSessionRepository) sessionKey(id string) string {
	return fmt.Sprintf("%ssession:%s", r.keyPrefix, id)
}

// Save 保存会话并设置过期时间。
func (r *RedisSessionRepository) Save(ctx context.Context, session *domain.Session, ttl time.Duration) error {
	key := r.sessionKey(session.ID)
	payload, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("redis: marshal session %s: %w", session.ID, err)
	}
	if err := r.client.Set(ctx, key, payload, ttl).Err(); err != nil {
		return fmt.Errorf("redis: save session on key %s: %w", key, err)
	}
	return nil
}

// Find 根据会话 ID 查找会话。
func (r *RedisSessionRepository) Find(ctx context.Context, id string) (*domain.Session, error) {
	key := r.sessionKey(id)
	payload, err := r.client.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, repository.ErrSessionNotFound
		}
		return nil, fmt.Errorf("redis: get session from key %s: %w", key, err)
	}
	var session domain.Session
	if err := json.Unmarshal([]byte(payload), &session); err != nil {
		return nil, fmt.Errorf("redis: unmarshal session from key %s: %w", key, err)
	}
	// Redis 里的数据是外部输入，颜色在边界处校验后才进入领域层
	if _, err := domain.ParseColor(string(session.Color)); err != nil {
		return nil, fmt.Errorf("redis: session from key %s: %w", key, err)
	}
	session.ID = id
	return &session, nil
}

// Delete 删除会话。
func (r *RedisSessionRepository) Delete(ctx context.Context, id string) error {
	key := r.sessionKey(id)
	if err := r.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("redis: delete session on key %s: %w", key, err)
	}
	return nil
}
