package service

import (
	"context"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"ludo-server/internal/domain"
	"ludo-server/internal/repository/mocks"
	"ludo-server/internal/scheduler"
)

// recordingBroadcaster 记录广播调用，供宽限跳过的测试断言。
type recordingBroadcaster struct {
	rolled   []int
	roomData int
}

func (b *recordingBroadcaster) RoomData(room *domain.Room) { b.roomData++ }
func (b *recordingBroadcaster) RolledNumber(roomID uint, rolledNumber int) {
	b.rolled = append(b.rolled, rolledNumber)
}
func (b *recordingBroadcaster) Scores(roomID uint, scores, captures map[domain.Color]int)   {}
func (b *recordingBroadcaster) Winner(roomID uint, w domain.Color, s, c map[domain.Color]int) {}

type noopEnqueuer struct{}

func (noopEnqueuer) Enqueue(task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	return &asynq.TaskInfo{}, nil
}

// newGraceFixture 组装一个两人对局：所有棋子都还在基地。
func newGraceFixture(t *testing.T) (*GameService, *domain.Room, *recordingBroadcaster) {
	t.Helper()
	room := domain.NewRoom("grace-room", false, "")
	room.ID = 7
	room.AddPlayer("alice", "sess-a")
	room.AddPlayer("bob", "sess-b")
	room.StartGame(time.Now())

	repo := new(mocks.RoomRepository)
	repo.On("FindByID", mock.Anything, uint(7)).Return(room, nil)
	repo.On("Update", mock.Anything, room).Return(nil)

	registry := scheduler.NewTimeoutRegistry()
	t.Cleanup(registry.StopAll)

	broadcaster := &recordingBroadcaster{}
	game := NewGameService(NewSaveQueue(repo), registry, broadcaster, noopEnqueuer{})
	return game, room, broadcaster
}

func TestGameService_BlockedRollKeepsTurnThenSkips(t *testing.T) {
	// Arrange: 棋子全在基地，点数 2 无法让任何棋子离开
	game, room, broadcaster := newGraceFixture(t)
	game.dice = func() int { return 2 }
	sess := &domain.Session{RoomID: 7, PlayerID: room.Players[0].ID}

	// Act: 掷骰
	require.NoError(t, game.Roll(context.Background(), sess))

	// Assert: 宽限期内不立即换手，掷点保留并已广播给玩家
	require.NotNil(t, room.RolledNumber)
	assert.Equal(t, 2, *room.RolledNumber)
	assert.Equal(t, room.Players[0].ID, room.GetCurrentlyMovingPlayer().ID)
	assert.Equal(t, []int{2}, broadcaster.rolled)

	// Act: 宽限期结束，自动跳过本回合
	game.skipTurn(7, 2)

	// Assert: 换手完成，掷点清空
	assert.Nil(t, room.RolledNumber)
	assert.Equal(t, room.Players[1].ID, room.GetCurrentlyMovingPlayer().ID)
}

func TestGameService_SkipIgnoresStaleRolledNumber(t *testing.T) {
	// Arrange: 定时器触发时房间里的掷点已经变了
	game, room, _ := newGraceFixture(t)
	n := 4
	room.RolledNumber = &n

	// Act
	game.skipTurn(7, 2)

	// Assert: 触发作废，状态原样保留
	require.NotNil(t, room.RolledNumber)
	assert.Equal(t, 4, *room.RolledNumber)
	assert.Equal(t, room.Players[0].ID, room.GetCurrentlyMovingPlayer().ID)
}

func TestGameService_SkipIgnoresConsumedRoll(t *testing.T) {
	// Arrange: 掷点已被消费 (玩家行动后换手清空)
	game, room, _ := newGraceFixture(t)
	room.RolledNumber = nil

	// Act
	game.skipTurn(7, 3)

	// Assert: 不做任何修改
	assert.Nil(t, room.RolledNumber)
	assert.Equal(t, room.Players[0].ID, room.GetCurrentlyMovingPlayer().ID)
}
