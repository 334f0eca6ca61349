package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"ludo-server/internal/domain"
	"ludo-server/internal/repository"
	"ludo-server/internal/repository/mocks"
	"ludo-server/internal/scheduler"
	"ludo-server/internal/service"
)

// roomFixture 组装 RoomService 及它的全部依赖。
type roomFixture struct {
	roomRepo    *mocks.RoomRepository
	sessionRepo *mocks.SessionRepository
	broadcaster *fakeBroadcaster
	enqueuer    *fakeEnqueuer
	registry    *scheduler.TimeoutRegistry
	rooms       *service.RoomService
}

func newRoomFixture(t *testing.T) *roomFixture {
	t.Helper()
	roomRepo := new(mocks.RoomRepository)
	sessionRepo := new(mocks.SessionRepository)
	sessionRepo.On("Save", mock.Anything, mock.Anything, mock.Anything).Return(nil).Maybe()
	sessionRepo.On("Delete", mock.Anything, mock.Anything).Return(nil).Maybe()

	broadcaster := &fakeBroadcaster{}
	enqueuer := &fakeEnqueuer{}
	registry := scheduler.NewTimeoutRegistry()
	t.Cleanup(registry.StopAll)

	queue := service.NewSaveQueue(roomRepo)
	sessions, err := service.NewSessionService(sessionRepo, "test-secret")
	require.NoError(t, err)
	game := service.NewGameService(queue, registry, broadcaster, enqueuer)
	rooms := service.NewRoomService(queue, roomRepo, sessions, registry, broadcaster, game)

	return &roomFixture{
		roomRepo:    roomRepo,
		sessionRepo: sessionRepo,
		broadcaster: broadcaster,
		enqueuer:    enqueuer,
		registry:    registry,
		rooms:       rooms,
	}
}

// --- 登录 ---

func TestRoomService_LoginRejectsEmptyName(t *testing.T) {
	f := newRoomFixture(t)

	_, err := f.rooms.Login(context.Background(), "   ", "", "")
	assert.ErrorIs(t, err, service.ErrInvalidInput)
}

func TestRoomService_LoginAutoMatchJoinsExistingRoom(t *testing.T) {
	// Arrange: 有一个可加入的公开房间
	f := newRoomFixture(t)
	room := domain.NewRoom("open-room", false, "")
	room.ID = 7
	room.AddPlayer("alice", "")

	f.roomRepo.On("FindJoinable", mock.Anything).Return(room, nil).Once()
	f.roomRepo.On("FindByID", mock.Anything, uint(7)).Return(room, nil)
	f.roomRepo.On("Update", mock.Anything, room).Return(nil)

	// Act
	result, err := f.rooms.Login(context.Background(), "bob", "", "")

	// Assert
	require.NoError(t, err)
	assert.Equal(t, uint(7), result.Room.ID)
	assert.Len(t, result.Room.Players, 2)
	assert.Equal(t, domain.Blue, result.Session.Color, "第二个加入的玩家拿蓝色")
	assert.NotEmpty(t, result.Token)
	joined := result.Room.GetPlayer(result.Session.PlayerID)
	require.NotNil(t, joined)
	assert.Equal(t, result.Session.ID, joined.SessionID, "玩家记录应持有签发的会话 ID")
	assert.NotNil(t, f.broadcaster.lastRoomData())
	f.roomRepo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestRoomService_LoginAutoMatchCreatesRoomWhenNoneJoinable(t *testing.T) {
	// Arrange: 没有可加入的房间，登录应新建一个
	f := newRoomFixture(t)
	f.roomRepo.On("FindJoinable", mock.Anything).Return(nil, repository.ErrRoomNotFound).Once()

	var created *domain.Room
	f.roomRepo.On("Create", mock.Anything, mock.AnythingOfType("*domain.Room")).
		Run(func(args mock.Arguments) {
			created = args.Get(1).(*domain.Room)
			created.ID = 11
			// 新房间建好后才能注册后续的查找与保存预期
			f.roomRepo.On("FindByID", mock.Anything, uint(11)).Return(created, nil)
			f.roomRepo.On("Update", mock.Anything, created).Return(nil)
		}).
		Return(nil).Once()

	// Act
	result, err := f.rooms.Login(context.Background(), "carol", "", "")

	// Assert
	require.NoError(t, err)
	require.NotNil(t, created)
	assert.Equal(t, uint(11), result.Room.ID)
	assert.Equal(t, domain.Red, result.Session.Color, "第一个玩家拿红色")
}

func TestRoomService_LoginSpecificRoomWrongPassword(t *testing.T) {
	// Arrange: 私密房间，口令不匹配
	f := newRoomFixture(t)
	hash, err := bcrypt.GenerateFromPassword([]byte("correct"), bcrypt.DefaultCost)
	require.NoError(t, err)
	room := domain.NewRoom("secret-room", true, string(hash))
	room.ID = 3
	f.roomRepo.On("FindByID", mock.Anything, uint(3)).Return(room, nil)

	// Act
	_, err = f.rooms.Login(context.Background(), "mallory", "3", "wrong")

	// Assert
	assert.ErrorIs(t, err, service.ErrWrongPassword)
	assert.Empty(t, room.Players)
}

func TestRoomService_LoginSpecificRoomStartedIsRejected(t *testing.T) {
	f := newRoomFixture(t)
	room := domain.NewRoom("busy-room", false, "")
	room.ID = 4
	room.AddPlayer("alice", "")
	room.AddPlayer("bob", "")
	room.StartGame(time.Now())
	f.roomRepo.On("FindByID", mock.Anything, uint(4)).Return(room, nil)

	_, err := f.rooms.Login(context.Background(), "late", "4", "")
	assert.ErrorIs(t, err, service.ErrRoomFull)
}

func TestRoomService_LoginBadRoomID(t *testing.T) {
	f := newRoomFixture(t)

	_, err := f.rooms.Login(context.Background(), "bob", "not-a-number", "")
	assert.ErrorIs(t, err, service.ErrRoomNotFound)
}

func TestRoomService_LoginFourthPlayerStartsGame(t *testing.T) {
	// Arrange: 房间里已有三人，第四人加入立即开局
	f := newRoomFixture(t)
	room := domain.NewRoom("nearly-full", false, "")
	room.ID = 5
	room.AddPlayer("p1", "")
	room.AddPlayer("p2", "")
	room.AddPlayer("p3", "")
	f.roomRepo.On("FindByID", mock.Anything, uint(5)).Return(room, nil)
	f.roomRepo.On("Update", mock.Anything, room).Return(nil)

	// Act
	result, err := f.rooms.Login(context.Background(), "p4", "5", "")

	// Assert
	require.NoError(t, err)
	assert.True(t, result.Room.Started, "满员应立即开局")
	assert.True(t, result.Room.Full)
	assert.Equal(t, domain.Yellow, result.Session.Color)
	require.NotNil(t, result.Room.GetCurrentlyMovingPlayer())
	assert.Equal(t, room.Players[0].ID, result.Room.GetCurrentlyMovingPlayer().ID)
}

// --- 准备 ---

func TestRoomService_ReadyTogglesAndStartsWhenTwoReady(t *testing.T) {
	// Arrange
	f := newRoomFixture(t)
	room := domain.NewRoom("lobby", false, "")
	room.ID = 6
	room.AddPlayer("alice", "")
	room.AddPlayer("bob", "")
	room.Players[0].Ready = true
	f.roomRepo.On("FindByID", mock.Anything, uint(6)).Return(room, nil)
	f.roomRepo.On("Update", mock.Anything, room).Return(nil)

	sess := &domain.Session{RoomID: 6, PlayerID: room.Players[1].ID, Color: domain.Blue}

	// Act
	err := f.rooms.Ready(context.Background(), sess)

	// Assert: 两人就绪触发开局
	require.NoError(t, err)
	assert.True(t, room.Started)
	assert.NotNil(t, room.NextMoveTime)
}

func TestRoomService_ReadyUnknownPlayer(t *testing.T) {
	f := newRoomFixture(t)
	room := domain.NewRoom("lobby", false, "")
	room.ID = 6
	room.AddPlayer("alice", "")
	f.roomRepo.On("FindByID", mock.Anything, uint(6)).Return(room, nil)

	err := f.rooms.Ready(context.Background(), &domain.Session{RoomID: 6, PlayerID: "ghost"})
	assert.ErrorIs(t, err, service.ErrPlayerNotFound)
}

// --- 建房 ---

func TestRoomService_CreateRoomHashesPassword(t *testing.T) {
	f := newRoomFixture(t)
	f.roomRepo.On("Create", mock.Anything, mock.AnythingOfType("*domain.Room")).Return(nil).Once()

	room, err := f.rooms.CreateRoom(context.Background(), "private-room", "hunter2", true)

	require.NoError(t, err)
	assert.True(t, room.Private)
	assert.NotEqual(t, "hunter2", room.Password, "口令必须以哈希存储")
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(room.Password), []byte("hunter2")))
}

func TestRoomService_CreateRoomPrivateNeedsPassword(t *testing.T) {
	f := newRoomFixture(t)

	_, err := f.rooms.CreateRoom(context.Background(), "private-room", "", true)
	assert.ErrorIs(t, err, service.ErrInvalidInput)
}

// --- 掉线收尾 ---

func TestRoomService_DisconnectInLobbyRemovesPlayer(t *testing.T) {
	// Arrange: 未开局，两人在大厅，一人掉线
	f := newRoomFixture(t)
	room := domain.NewRoom("lobby", false, "")
	room.ID = 8
	room.AddPlayer("alice", "")
	room.AddPlayer("bob", "")
	leaving := room.Players[0].ID
	staying := room.Players[1].ID
	f.roomRepo.On("FindByID", mock.Anything, uint(8)).Return(room, nil)
	f.roomRepo.On("Update", mock.Anything, room).Return(nil)

	// Act
	err := f.rooms.HandleDisconnect(context.Background(), 8, leaving, []string{staying})

	// Assert: 掉线玩家被移除，颜色按加入顺序重排
	require.NoError(t, err)
	require.Len(t, room.Players, 1)
	assert.Equal(t, staying, room.Players[0].ID)
	assert.Equal(t, domain.Red, room.Players[0].Color)
	f.roomRepo.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything)
}

func TestRoomService_DisconnectLastLobbyPlayerDeletesRoom(t *testing.T) {
	f := newRoomFixture(t)
	room := domain.NewRoom("lobby", false, "")
	room.ID = 8
	room.AddPlayer("alice", "")
	leaving := room.Players[0].ID
	f.roomRepo.On("FindByID", mock.Anything, uint(8)).Return(room, nil)
	f.roomRepo.On("Update", mock.Anything, room).Return(nil)
	f.roomRepo.On("Delete", mock.Anything, uint(8)).Return(nil).Once()

	err := f.rooms.HandleDisconnect(context.Background(), 8, leaving, nil)

	require.NoError(t, err)
	f.roomRepo.AssertExpectations(t)
}

func TestRoomService_DisconnectMidGameLastPlayerWins(t *testing.T) {
	// Arrange: 对局中，只剩一名在线玩家
	f := newRoomFixture(t)
	room := domain.NewRoom("arena", false, "")
	room.ID = 9
	room.AddPlayer("alice", "")
	room.AddPlayer("bob", "")
	room.StartGame(time.Now())
	f.roomRepo.On("FindByID", mock.Anything, uint(9)).Return(room, nil)
	f.roomRepo.On("Update", mock.Anything, room).Return(nil)

	// Act: alice 掉线，只剩 bob
	err := f.rooms.HandleDisconnect(context.Background(), 9, room.Players[0].ID, []string{room.Players[1].ID})

	// Assert: bob (蓝色) 获胜
	require.NoError(t, err)
	require.NotNil(t, room.Winner)
	assert.Equal(t, domain.Blue, *room.Winner)
	require.NotNil(t, f.broadcaster.winner)
	assert.Equal(t, domain.Blue, *f.broadcaster.winner)
}

func TestRoomService_DisconnectMidGameWithTwoRemainingContinues(t *testing.T) {
	f := newRoomFixture(t)
	room := domain.NewRoom("arena", false, "")
	room.ID = 9
	room.AddPlayer("alice", "")
	room.AddPlayer("bob", "")
	room.AddPlayer("carol", "")
	room.StartGame(time.Now())
	f.roomRepo.On("FindByID", mock.Anything, uint(9)).Return(room, nil)

	err := f.rooms.HandleDisconnect(context.Background(), 9, room.Players[0].ID,
		[]string{room.Players[1].ID, room.Players[2].ID})

	require.NoError(t, err)
	assert.Nil(t, room.Winner, "还有两名在线玩家，游戏继续")
}

func TestRoomService_DisconnectRoomAlreadyGone(t *testing.T) {
	f := newRoomFixture(t)
	f.roomRepo.On("FindByID", mock.Anything, uint(42)).Return(nil, repository.ErrRoomNotFound).Once()

	err := f.rooms.HandleDisconnect(context.Background(), 42, "someone", nil)
	assert.NoError(t, err)
}
