package service_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"ludo-server/internal/domain"
	"ludo-server/internal/repository"
	"ludo-server/internal/repository/mocks"
	"ludo-server/internal/service"
)

func queueTestRoom(id uint) *domain.Room {
	room := domain.NewRoom("queue-room", false, "")
	room.ID = id
	room.AddPlayer("alice", "")
	room.AddPlayer("bob", "")
	return room
}

func TestSaveQueue_DoAppliesMutationAndSaves(t *testing.T) {
	// Arrange
	mockRepo := new(mocks.RoomRepository)
	queue := service.NewSaveQueue(mockRepo)
	room := queueTestRoom(1)

	mockRepo.On("FindByID", mock.Anything, uint(1)).Return(room, nil).Once()
	mockRepo.On("Update", mock.Anything, room).Return(nil).Once()

	// Act
	saved, err := queue.Do(context.Background(), 1, func(r *domain.Room) error {
		r.Name = "renamed"
		return nil
	})

	// Assert
	require.NoError(t, err)
	assert.Equal(t, "renamed", saved.Name)
	mockRepo.AssertExpectations(t)
}

func TestSaveQueue_ValidationErrorSkipsSave(t *testing.T) {
	// Arrange
	mockRepo := new(mocks.RoomRepository)
	queue := service.NewSaveQueue(mockRepo)
	room := queueTestRoom(1)

	mockRepo.On("FindByID", mock.Anything, uint(1)).Return(room, nil).Once()

	// Act: mutator 拒绝本次操作
	_, err := queue.Do(context.Background(), 1, func(r *domain.Room) error {
		return service.ErrNotYourTurn
	})

	// Assert: 校验错误原样返回，不触发 Update
	assert.ErrorIs(t, err, service.ErrNotYourTurn)
	mockRepo.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
}

func TestSaveQueue_RoomNotFound(t *testing.T) {
	mockRepo := new(mocks.RoomRepository)
	queue := service.NewSaveQueue(mockRepo)

	mockRepo.On("FindByID", mock.Anything, uint(9)).Return(nil, repository.ErrRoomNotFound).Once()

	_, err := queue.Do(context.Background(), 9, func(r *domain.Room) error { return nil })
	assert.ErrorIs(t, err, service.ErrRoomNotFound)
}

func TestSaveQueue_VersionConflictRetriesOnceWithFreshData(t *testing.T) {
	// Arrange
	mockRepo := new(mocks.RoomRepository)
	queue := service.NewSaveQueue(mockRepo)
	stale := queueTestRoom(1)
	fresh := queueTestRoom(1)
	fresh.Version = 5

	mockRepo.On("FindByID", mock.Anything, uint(1)).Return(stale, nil).Once()
	mockRepo.On("Update", mock.Anything, stale).Return(repository.ErrVersionConflict).Once()
	// 冲突后重新加载新鲜副本并重放 mutator
	mockRepo.On("FindByID", mock.Anything, uint(1)).Return(fresh, nil).Once()
	mockRepo.On("Update", mock.Anything, fresh).Return(nil).Once()

	mutations := 0
	// Act
	saved, err := queue.Do(context.Background(), 1, func(r *domain.Room) error {
		mutations++
		r.Name = "mutated"
		return nil
	})

	// Assert
	require.NoError(t, err)
	assert.Equal(t, 2, mutations, "冲突重试时 mutator 应在新鲜副本上重放")
	assert.Equal(t, fresh, saved)
	assert.Equal(t, "mutated", saved.Name)
	mockRepo.AssertExpectations(t)
}

func TestSaveQueue_SecondConflictFails(t *testing.T) {
	mockRepo := new(mocks.RoomRepository)
	queue := service.NewSaveQueue(mockRepo)
	room := queueTestRoom(1)

	mockRepo.On("FindByID", mock.Anything, uint(1)).Return(room, nil).Twice()
	mockRepo.On("Update", mock.Anything, room).Return(repository.ErrVersionConflict).Once()
	mockRepo.On("Update", mock.Anything, room).Return(errors.New("still conflicting")).Once()

	_, err := queue.Do(context.Background(), 1, func(r *domain.Room) error { return nil })
	assert.ErrorIs(t, err, service.ErrSaveFailed, "重试一次后仍失败应以 ErrSaveFailed 上报")
}

func TestSaveQueue_FatalErrorAbortsPendingSaves(t *testing.T) {
	// Arrange: 第一个任务在加载时阻塞，期间第二个任务排到它后面
	mockRepo := new(mocks.RoomRepository)
	queue := service.NewSaveQueue(mockRepo)

	release := make(chan struct{})
	mockRepo.On("FindByID", mock.Anything, uint(1)).
		Run(func(args mock.Arguments) { <-release }).
		Return(nil, errors.New("db down")).Once()

	var wg sync.WaitGroup
	errs := make([]error, 2)
	wg.Add(2)
	go func() {
		defer wg.Done()
		_, errs[0] = queue.Do(context.Background(), 1, func(r *domain.Room) error { return nil })
	}()
	time.Sleep(50 * time.Millisecond) // 让第一个任务先进入执行
	go func() {
		defer wg.Done()
		_, errs[1] = queue.Do(context.Background(), 1, func(r *domain.Room) error { return nil })
	}()
	time.Sleep(50 * time.Millisecond) // 让第二个任务完成排队

	// Act: 放行第一个任务，它以致命错误结束
	close(release)
	wg.Wait()

	// Assert: 第一个拿到保存失败，排在后面的被整体放弃
	assert.ErrorIs(t, errs[0], service.ErrSaveFailed)
	assert.ErrorIs(t, errs[1], service.ErrSaveAborted)
}

func TestSaveQueue_ForgetFailsPendingWithRoomNotFound(t *testing.T) {
	// Arrange: 第一个任务阻塞住队列，第二个任务在队列里等待
	mockRepo := new(mocks.RoomRepository)
	queue := service.NewSaveQueue(mockRepo)
	room := queueTestRoom(1)

	release := make(chan struct{})
	mockRepo.On("FindByID", mock.Anything, uint(1)).
		Run(func(args mock.Arguments) { <-release }).
		Return(room, nil).Once()
	mockRepo.On("Update", mock.Anything, room).Return(nil).Maybe()

	var wg sync.WaitGroup
	var pendingErr error
	wg.Add(2)
	go func() {
		defer wg.Done()
		_, _ = queue.Do(context.Background(), 1, func(r *domain.Room) error { return nil })
	}()
	time.Sleep(50 * time.Millisecond)
	go func() {
		defer wg.Done()
		_, pendingErr = queue.Do(context.Background(), 1, func(r *domain.Room) error { return nil })
	}()
	time.Sleep(50 * time.Millisecond)

	// Act: 房间被删除，丢弃队列
	queue.Forget(1)
	close(release)
	wg.Wait()

	// Assert
	assert.ErrorIs(t, pendingErr, service.ErrRoomNotFound)
}
