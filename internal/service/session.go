package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"ludo-server/internal/domain"
	"ludo-server/internal/repository"
)

// 会话的存活时间，玩家长时间不活跃后自动过期。
const sessionTTL = 24 * time.Hour

// SessionService 负责玩家会话的签发、恢复与销毁。
// 会话数据存在 Redis，令牌是只含会话 ID 的签名 JWT，
// 客户端重连时凭令牌恢复房间关联。
type SessionService struct {
	sessionRepo repository.SessionRepository
	jwtSecret   []byte
}

// NewSessionService 创建 SessionService 实例。
func NewSessionService(sessionRepo repository.SessionRepository, jwtSecret string) (*SessionService, error) {
	if sessionRepo == nil {
		return nil, fmt.Errorf("SessionRepository cannot be nil for SessionService")
	}
	if jwtSecret == "" {
		return nil, fmt.Errorf("JWT secret cannot be empty for SessionService")
	}
	return &SessionService{sessionRepo: sessionRepo, jwtSecret: []byte(jwtSecret)}, nil
}

// Issue 为玩家创建会话并签发令牌。
// id 由调用方提供，让房间里的玩家记录和会话存储共用同一个标识；
// 为空时自动生成。
func (s *SessionService) Issue(ctx context.Context, id string, roomID uint, playerID string, color domain.Color) (*domain.Session, string, error) {
	if id == "" {
		id = uuid.NewString()
	}
	session := &domain.Session{
		ID:       id,
		RoomID:   roomID,
		PlayerID: playerID,
		Color:    color,
	}
	if err := s.sessionRepo.Save(ctx, session, sessionTTL); err != nil {
		logrus.WithError(err).WithField("room_id", roomID).Error("SessionService: failed to save session")
		return nil, "", ErrInternalServer
	}

	claims := jwt.MapClaims{
		"sid": session.ID,
		"exp": time.Now().Add(sessionTTL).Unix(),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.jwtSecret)
	if err != nil {
		logrus.WithError(err).Error("SessionService: failed to sign session token")
		return nil, "", ErrInternalServer
	}
	return session, token, nil
}

// Resolve 校验令牌并恢复会话。
func (s *SessionService) Resolve(ctx context.Context, tokenStr string) (*domain.Session, error) {
	token, err := jwt.Parse(tokenStr, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.jwtSecret, nil
	})
	if err != nil || !token.Valid {
		return nil, ErrSessionInvalid
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, ErrSessionInvalid
	}
	sid, ok := claims["sid"].(string)
	if !ok || sid == "" {
		return nil, ErrSessionInvalid
	}

	session, err := s.sessionRepo.Find(ctx, sid)
	if err != nil {
		if errors.Is(err, repository.ErrSessionNotFound) {
			return nil, ErrSessionInvalid
		}
		logrus.WithError(err).WithField("session_id", sid).Error("SessionService: failed to load session")
		return nil, ErrInternalServer
	}
	return session, nil
}

// Destroy 销毁会话 (玩家退出时调用)。
func (s *SessionService) Destroy(ctx context.Context, sessionID string) error {
	if err := s.sessionRepo.Delete(ctx, sessionID); err != nil {
		logrus.WithError(err).WithField("session_id", sessionID).Warn("SessionService: failed to delete session")
		return ErrInternalServer
	}
	return nil
}
