package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"

	"ludo-server/internal/domain"
	"ludo-server/internal/repository"
	"ludo-server/internal/scheduler"
)

// RoomService 处理对局外的房间生命周期：登录匹配、创建、准备、
// 查询，以及玩家掉线后的收尾。对局内操作由 GameService 负责。
type RoomService struct {
	queue       *SaveQueue
	roomRepo    repository.RoomRepository
	sessions    *SessionService
	registry    *scheduler.TimeoutRegistry
	broadcaster Broadcaster
	game        *GameService
}

// NewRoomService 创建 RoomService 实例
func NewRoomService(
	queue *SaveQueue,
	roomRepo repository.RoomRepository,
	sessions *SessionService,
	registry *scheduler.TimeoutRegistry,
	broadcaster Broadcaster,
	game *GameService,
) *RoomService {
	if queue == nil {
		panic("SaveQueue cannot be nil for RoomService")
	}
	if roomRepo == nil {
		panic("RoomRepository cannot be nil for RoomService")
	}
	if sessions == nil {
		panic("SessionService cannot be nil for RoomService")
	}
	if registry == nil {
		panic("TimeoutRegistry cannot be nil for RoomService")
	}
	if broadcaster == nil {
		panic("Broadcaster cannot be nil for RoomService")
	}
	if game == nil {
		panic("GameService cannot be nil for RoomService")
	}
	return &RoomService{
		queue:       queue,
		roomRepo:    roomRepo,
		sessions:    sessions,
		registry:    registry,
		broadcaster: broadcaster,
		game:        game,
	}
}

// LoginResult 是一次成功登录的产物。
type LoginResult struct {
	Room    *domain.Room
	Session *domain.Session
	Token   string
}

// Login 让玩家进入一个房间。
// roomIDStr 非空时加入指定房间 (私密房间需要口令)；
// 为空时自动匹配：优先加入现有的可加入房间，没有就新建一个。
// 加入后房间恰好满员则立即开局。
func (s *RoomService) Login(ctx context.Context, name, roomIDStr, password string) (*LoginResult, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrInvalidInput
	}

	if roomIDStr != "" {
		id, err := strconv.ParseUint(roomIDStr, 10, 64)
		if err != nil {
			return nil, ErrRoomNotFound
		}
		return s.join(ctx, uint(id), name, password, true)
	}

	// 自动匹配：现有房间可能在并发加入中被占满，满了就退回新建
	if candidate, err := s.roomRepo.FindJoinable(ctx); err == nil {
		result, err := s.join(ctx, candidate.ID, name, "", false)
		if err == nil {
			return result, nil
		}
		if !IsValidationError(err) {
			return nil, err
		}
	} else if !errors.Is(err, repository.ErrRoomNotFound) {
		logrus.WithError(err).Error("RoomService: failed to look up joinable room")
		return nil, ErrInternalServer
	}

	room := domain.NewRoom(fmt.Sprintf("room-%s", uuid.NewString()[:8]), false, "")
	if err := s.roomRepo.Create(ctx, room); err != nil {
		logrus.WithError(err).Error("RoomService: failed to create room for auto-match")
		return nil, ErrInternalServer
	}
	logrus.WithFields(logrus.Fields{
		"room_id": room.ID,
		"player":  name,
	}).Info("RoomService: created new room for auto-match")
	return s.join(ctx, room.ID, name, "", false)
}

// join 把玩家加入指定房间并在满员时开局。
// checkPassword 为 false 时跳过口令校验 (自动匹配只挑公开房间)。
func (s *RoomService) join(ctx context.Context, roomID uint, name, password string, checkPassword bool) (*LoginResult, error) {
	// 会话 ID 先于变更生成，玩家记录和会话存储持有同一个标识
	sessionID := uuid.NewString()
	var (
		playerID    string
		playerColor domain.Color
		started     bool
	)
	mutate := func(room *domain.Room) error {
		playerID, playerColor, started = "", "", false

		if room.Started || room.Winner != nil {
			return ErrRoomFull
		}
		if checkPassword && room.Private {
			if err := bcrypt.CompareHashAndPassword([]byte(room.Password), []byte(password)); err != nil {
				return ErrWrongPassword
			}
		}
		if !room.AddPlayer(name, sessionID) {
			return ErrRoomFull
		}
		player := &room.Players[len(room.Players)-1]
		playerID = player.ID
		playerColor = player.Color

		if room.IsFull() {
			room.StartGame(time.Now())
			started = true
		}
		return nil
	}

	room, err := s.queue.Do(ctx, roomID, mutate)
	if err != nil {
		return nil, err
	}

	session, token, err := s.sessions.Issue(ctx, sessionID, room.ID, playerID, playerColor)
	if err != nil {
		return nil, err
	}

	logrus.WithFields(logrus.Fields{
		"room_id":   room.ID,
		"player_id": playerID,
		"color":     playerColor,
		"started":   started,
	}).Info("RoomService: player joined room")

	s.broadcaster.RoomData(room)
	if started {
		s.game.ArmTurnTimer(room.ID)
	}
	return &LoginResult{Room: room, Session: session, Token: token}, nil
}

// Ready 切换玩家的准备状态，满足开局条件时开局。
// 已开局的房间里是 no-op (重连的客户端可能重发)。
func (s *RoomService) Ready(ctx context.Context, sess *domain.Session) error {
	var started bool
	mutate := func(room *domain.Room) error {
		started = false

		if room.Winner != nil {
			return ErrGameEnded
		}
		if room.Started {
			return nil
		}
		player := room.GetPlayer(sess.PlayerID)
		if player == nil {
			return ErrPlayerNotFound
		}
		player.ChangeReadyStatus()

		if player.Ready && room.CanStartGame() {
			room.StartGame(time.Now())
			started = true
		}
		return nil
	}

	room, err := s.queue.Do(ctx, sess.RoomID, mutate)
	if err != nil {
		return err
	}

	logrus.WithFields(logrus.Fields{
		"room_id":   room.ID,
		"player_id": sess.PlayerID,
		"started":   started,
	}).Info("RoomService: player ready status changed")

	s.broadcaster.RoomData(room)
	if started {
		s.game.ArmTurnTimer(room.ID)
	}
	return nil
}

// GetRoomData 返回会话所属房间的完整快照。
// 进程重启会丢掉内存中的定时器：发现回合截止时间已经过去时，
// 先补一次超时自动行动 (顺带重新武装定时器) 再返回最新状态。
func (s *RoomService) GetRoomData(ctx context.Context, sess *domain.Session) (*domain.Room, error) {
	room, err := s.roomRepo.FindByID(ctx, sess.RoomID)
	if err != nil {
		if errors.Is(err, repository.ErrRoomNotFound) {
			return nil, ErrRoomNotFound
		}
		logrus.WithError(err).WithField("room_id", sess.RoomID).Error("RoomService: failed to load room")
		return nil, ErrInternalServer
	}

	if room.Started && room.Winner == nil && room.NextMoveTime != nil &&
		time.Now().UnixMilli() > *room.NextMoveTime {
		logrus.WithField("room_id", room.ID).Warn("RoomService: move deadline already passed, recovering")
		s.game.AutoPlay(room.ID)
		room, err = s.roomRepo.FindByID(ctx, sess.RoomID)
		if err != nil {
			if errors.Is(err, repository.ErrRoomNotFound) {
				return nil, ErrRoomNotFound
			}
			return nil, ErrInternalServer
		}
	}
	return room, nil
}

// ListRooms 返回全部房间，供大厅列表使用。
func (s *RoomService) ListRooms(ctx context.Context) ([]domain.Room, error) {
	rooms, err := s.roomRepo.FindAll(ctx)
	if err != nil {
		logrus.WithError(err).Error("RoomService: failed to list rooms")
		return nil, ErrInternalServer
	}
	return rooms, nil
}

// CreateRoom 创建一个命名房间。私密房间的口令以 bcrypt 哈希存储。
func (s *RoomService) CreateRoom(ctx context.Context, name, password string, private bool) (*domain.Room, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrInvalidInput
	}
	if private && password == "" {
		return nil, ErrInvalidInput
	}

	passwordHash := ""
	if private {
		hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
		if err != nil {
			logrus.WithError(err).Error("RoomService: failed to hash room password")
			return nil, ErrInternalServer
		}
		passwordHash = string(hash)
	}

	room := domain.NewRoom(name, private, passwordHash)
	if err := s.roomRepo.Create(ctx, room); err != nil {
		if errors.Is(err, repository.ErrDuplicateEntry) {
			return nil, ErrInvalidInput
		}
		logrus.WithError(err).Error("RoomService: failed to create room")
		return nil, ErrInternalServer
	}

	logrus.WithFields(logrus.Fields{
		"room_id": room.ID,
		"name":    room.Name,
		"private": room.Private,
	}).Info("RoomService: room created")
	return room, nil
}

// Exit 销毁玩家的会话。离开房间本身由连接断开路径处理。
func (s *RoomService) Exit(ctx context.Context, sess *domain.Session) error {
	return s.sessions.Destroy(ctx, sess.ID)
}

// HandleDisconnect 处理玩家连接断开后的房间收尾。
// remaining 是该房间仍然在线的玩家 ID。
// 未开局：把玩家从房间移除，没人了就删除整个房间；
// 已开局且未分胜负：只剩至多一名在线玩家时，由剩下的玩家获胜。
func (s *RoomService) HandleDisconnect(ctx context.Context, roomID uint, playerID string, remaining []string) error {
	room, err := s.roomRepo.FindByID(ctx, roomID)
	if err != nil {
		if errors.Is(err, repository.ErrRoomNotFound) {
			return nil
		}
		logrus.WithError(err).WithField("room_id", roomID).Error("RoomService: failed to load room on disconnect")
		return ErrInternalServer
	}

	logCtx := logrus.WithFields(logrus.Fields{
		"room_id":   roomID,
		"player_id": playerID,
		"remaining": len(remaining),
	})

	if !room.Started {
		return s.removeFromLobby(ctx, roomID, playerID, logCtx)
	}

	if room.Winner == nil && len(remaining) <= 1 {
		winner := room.Players[0].Color
		if len(remaining) == 1 {
			if p := room.GetPlayer(remaining[0]); p != nil {
				winner = p.Color
			}
		}
		logCtx.WithField("winner", winner).Info("RoomService: opponents disconnected, ending game")
		if err := s.game.ForceEnd(ctx, roomID, winner); err != nil && !IsValidationError(err) {
			return err
		}
	}
	return nil
}

// removeFromLobby 把未开局房间里的玩家移除，腾出他占用的颜色。
func (s *RoomService) removeFromLobby(ctx context.Context, roomID uint, playerID string, logCtx *logrus.Entry) error {
	var empty bool
	mutate := func(room *domain.Room) error {
		empty = false

		if room.Started {
			return ErrStaleTimer
		}
		kept := room.Players[:0]
		for _, p := range room.Players {
			if p.ID != playerID {
				kept = append(kept, p)
			}
		}
		room.Players = kept
		// 颜色按加入顺序重新分配，保持开局时的颜色规则
		for i := range room.Players {
			room.Players[i].Color = domain.Palette[i]
		}
		room.IsFull()
		empty = len(room.Players) == 0
		return nil
	}

	room, err := s.queue.Do(ctx, roomID, mutate)
	if err != nil {
		if IsValidationError(err) {
			return nil
		}
		return err
	}

	if empty {
		s.registry.Clear(roomID)
		s.queue.Forget(roomID)
		if err := s.roomRepo.Delete(ctx, roomID); err != nil {
			logCtx.WithError(err).Error("RoomService: failed to delete empty room")
			return ErrInternalServer
		}
		logCtx.Info("RoomService: empty room deleted")
		return nil
	}

	logCtx.Info("RoomService: player removed from lobby")
	s.broadcaster.RoomData(room)
	return nil
}
