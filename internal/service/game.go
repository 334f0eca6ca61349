package service

import (
	"context"
	"errors"
	"math/rand"
	"time"

	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"

	"ludo-server/internal/domain"
	"ludo-server/internal/scheduler"
	"ludo-server/internal/tasks"
)

// TaskEnqueuer 投递异步任务，由 *asynq.Client 实现。
type TaskEnqueuer interface {
	Enqueue(task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// GameService 处理对局内的全部操作：掷骰、移动、超时自动行动、
// 无子可动时的自动跳过，以及胜负结算后的收尾。
// 所有状态变更都经过 SaveQueue 串行化提交，提交成功后才广播。
type GameService struct {
	queue       *SaveQueue
	registry    *scheduler.TimeoutRegistry
	broadcaster Broadcaster
	enqueuer    TaskEnqueuer
	dice        func() int
}

// NewGameService 创建 GameService 实例
func NewGameService(queue *SaveQueue, registry *scheduler.TimeoutRegistry, broadcaster Broadcaster, enqueuer TaskEnqueuer) *GameService {
	if queue == nil {
		panic("SaveQueue cannot be nil for GameService")
	}
	if registry == nil {
		panic("TimeoutRegistry cannot be nil for GameService")
	}
	if broadcaster == nil {
		panic("Broadcaster cannot be nil for GameService")
	}
	if enqueuer == nil {
		panic("TaskEnqueuer cannot be nil for GameService")
	}
	return &GameService{
		queue:       queue,
		registry:    registry,
		broadcaster: broadcaster,
		enqueuer:    enqueuer,
		dice:        RollDice,
	}
}

// ArmTurnTimer 为房间安排回合超时：到点后服务器代当前玩家行动。
func (s *GameService) ArmTurnTimer(roomID uint) {
	s.registry.Set(roomID, domain.MoveTime, func() {
		s.AutoPlay(roomID)
	})
}

// Roll 处理玩家的掷骰请求。
// 掷出的点数无子可动时不立即换手：先广播点数让玩家看到结果，
// 等一段宽限时间后再自动跳过；宽限期内玩家的其他有效操作
// (实际上不存在合法的) 不会发生，但定时器槽位会被后续操作覆盖。
func (s *GameService) Roll(ctx context.Context, sess *domain.Session) error {
	var (
		rolled   int
		mustSkip bool
	)
	mutate := func(room *domain.Room) error {
		rolled, mustSkip = 0, false

		if room.Winner != nil {
			return ErrGameEnded
		}
		if !room.Started {
			return ErrGameNotStarted
		}
		mover := room.GetCurrentlyMovingPlayer()
		if mover == nil || mover.ID != sess.PlayerID {
			return ErrNotYourTurn
		}
		if room.RolledNumber != nil {
			return ErrMustMoveFirst
		}

		rolled = s.dice()
		room.RolledNumber = &rolled
		mustSkip = !mover.CanMove(room, rolled)
		return nil
	}

	room, err := s.queue.Do(ctx, sess.RoomID, mutate)
	if err != nil {
		return err
	}

	logrus.WithFields(logrus.Fields{
		"room_id":   room.ID,
		"player_id": sess.PlayerID,
		"rolled":    rolled,
		"must_skip": mustSkip,
	}).Info("GameService: dice rolled")

	s.broadcaster.RolledNumber(room.ID, rolled)
	s.broadcaster.RoomData(room)

	if mustSkip {
		expected := rolled
		s.registry.Set(room.ID, domain.NoMoveGraceDelay, func() {
			s.skipTurn(room.ID, expected)
		})
	}
	return nil
}

// skipTurn 在宽限期结束后跳过无法行动的回合。
// 定时器触发时状态可能已经变化 (掷点被消费或换手)，
// 此时放弃本次触发，不做任何修改。
func (s *GameService) skipTurn(roomID uint, expectedRoll int) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	mutate := func(room *domain.Room) error {
		if room.Winner != nil {
			return ErrStaleTimer
		}
		if room.RolledNumber == nil || *room.RolledNumber != expectedRoll {
			return ErrStaleTimer
		}
		room.ChangeMovingPlayer(time.Now())
		return nil
	}

	room, err := s.queue.Do(ctx, roomID, mutate)
	if err != nil {
		if errors.Is(err, ErrStaleTimer) || errors.Is(err, ErrRoomNotFound) {
			logrus.WithField("room_id", roomID).Debug("GameService: skip timer fired against stale state, ignored")
			return
		}
		logrus.WithFields(logrus.Fields{"room_id": roomID}).WithError(err).Error("GameService: failed to skip blocked turn")
		return
	}

	logrus.WithField("room_id", roomID).Info("GameService: turn skipped, no legal move")
	s.broadcaster.RoomData(room)
	s.ArmTurnTimer(roomID)
}

// Move 处理玩家的移动请求：移动棋子、结算吃子，
// 然后判定传统胜利，没有胜者就换手。
func (s *GameService) Move(ctx context.Context, sess *domain.Session, pawnID string) error {
	var winner *domain.Color
	mutate := func(room *domain.Room) error {
		winner = nil

		if room.Winner != nil {
			return ErrGameEnded
		}
		if !room.Started {
			return ErrGameNotStarted
		}
		if room.RolledNumber == nil {
			return ErrMustRollFirst
		}
		pawn := room.GetPawn(pawnID)
		if pawn == nil {
			return ErrPawnNotFound
		}
		mover := room.GetCurrentlyMovingPlayer()
		if mover == nil || mover.ID != sess.PlayerID {
			return ErrNotYourTurn
		}
		if pawn.Color != mover.Color {
			return ErrInvalidMove
		}
		if !pawn.CanMove(*room.RolledNumber) {
			return ErrInvalidMove
		}

		room.MovePawn(pawn)
		if winner = room.GetWinner(); winner != nil {
			room.EndGame(*winner)
		} else {
			room.ChangeMovingPlayer(time.Now())
		}
		return nil
	}

	room, err := s.queue.Do(ctx, sess.RoomID, mutate)
	if err != nil {
		return err
	}

	logCtx := logrus.WithFields(logrus.Fields{
		"room_id":   room.ID,
		"player_id": sess.PlayerID,
		"pawn_id":   pawnID,
	})

	if winner != nil {
		logCtx.WithField("winner", *winner).Info("GameService: game won by finishing all pawns")
		s.finishGame(room)
		return nil
	}

	logCtx.Info("GameService: pawn moved")
	s.broadcaster.Scores(room.ID, room.PlayerScores, room.PlayerCaptures)
	s.broadcaster.RoomData(room)
	s.ArmTurnTimer(room.ID)
	return nil
}

// AutoPlay 是回合超时后由服务器代为行动的入口。
// 对局计时耗尽时按分数结算胜者；否则代掷骰 (需要的话)、
// 随机移动一个可动的棋子，再换手。棋子全部无法行动时直接换手。
func (s *GameService) AutoPlay(roomID uint) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var (
		rolled   *int
		winner   *domain.Color
		timeIsUp bool
	)
	mutate := func(room *domain.Room) error {
		rolled, winner, timeIsUp = nil, nil, false

		if room.Winner != nil {
			return ErrStaleTimer
		}
		if !room.Started {
			return ErrStaleTimer
		}

		now := time.Now()
		if room.IsGameTimeExpired(now) {
			timeIsUp = true
			if w := room.GetWinnerByScore(); w != nil {
				winner = w
				room.EndGame(*w)
			} else if len(room.Players) > 0 {
				c := room.Players[0].Color
				winner = &c
				room.EndGame(c)
			}
			return nil
		}

		if room.RolledNumber == nil {
			n := s.dice()
			room.RolledNumber = &n
			rolled = &n
		}

		movable := room.GetPawnsThatCanMove()
		if len(movable) > 0 {
			pawn := movable[rand.Intn(len(movable))]
			room.MovePawn(pawn)
			if winner = room.GetWinner(); winner != nil {
				room.EndGame(*winner)
				return nil
			}
		}

		room.ChangeMovingPlayer(now)
		return nil
	}

	room, err := s.queue.Do(ctx, roomID, mutate)
	if err != nil {
		if errors.Is(err, ErrStaleTimer) || errors.Is(err, ErrRoomNotFound) {
			return
		}
		logrus.WithField("room_id", roomID).WithError(err).Error("GameService: autoplay failed")
		return
	}

	logCtx := logrus.WithField("room_id", roomID)

	if winner != nil {
		if timeIsUp {
			logCtx.WithField("winner", *winner).Info("GameService: game time expired, winner decided by score")
		} else {
			logCtx.WithField("winner", *winner).Info("GameService: game won during autoplay")
		}
		s.finishGame(room)
		return
	}

	if rolled != nil {
		s.broadcaster.RolledNumber(room.ID, *rolled)
	}
	logCtx.Info("GameService: turn played automatically after timeout")
	s.broadcaster.Scores(room.ID, room.PlayerScores, room.PlayerCaptures)
	s.broadcaster.RoomData(room)
	s.ArmTurnTimer(roomID)
}

// ForceEnd 立即结束对局并指定胜者，供掉线收尾使用。
func (s *GameService) ForceEnd(ctx context.Context, roomID uint, winner domain.Color) error {
	mutate := func(room *domain.Room) error {
		if room.Winner != nil {
			return ErrGameEnded
		}
		if !room.Started {
			return ErrGameNotStarted
		}
		room.EndGame(winner)
		return nil
	}

	room, err := s.queue.Do(ctx, roomID, mutate)
	if err != nil {
		return err
	}

	logrus.WithFields(logrus.Fields{
		"room_id": roomID,
		"winner":  winner,
	}).Info("GameService: game force-ended")
	s.finishGame(room)
	return nil
}

// finishGame 是胜负已定后的统一收尾：取消定时器、广播最终结果、
// 安排延迟删除，让客户端有时间看到终局画面。
func (s *GameService) finishGame(room *domain.Room) {
	s.registry.Clear(room.ID)
	s.broadcaster.Winner(room.ID, *room.Winner, room.PlayerScores, room.PlayerCaptures)
	s.broadcaster.RoomData(room)

	task, err := tasks.NewRoomDeletionTask(room.ID)
	if err != nil {
		logrus.WithField("room_id", room.ID).WithError(err).Error("GameService: failed to build room deletion task")
		return
	}
	if _, err := s.enqueuer.Enqueue(task, asynq.ProcessIn(domain.RoomDeleteDelay), asynq.Queue("low")); err != nil {
		logrus.WithField("room_id", room.ID).WithError(err).Error("GameService: failed to enqueue room deletion")
		return
	}
	logrus.WithFields(logrus.Fields{
		"room_id":  room.ID,
		"delay_ms": domain.RoomDeleteDelay.Milliseconds(),
	}).Info("GameService: room deletion scheduled")
}
