package service

import (
	"context"
	"errors"
	"sync"

	"github.com/sirupsen/logrus"

	"ludo-server/internal/domain"
	"ludo-server/internal/repository"
)

// RoomMutator 是一次房间变更：在最新持久化状态上做校验并修改。
// 返回校验类错误表示拒绝本次操作，房间保持不变。
// 发生版本冲突重试时 mutator 会在新鲜副本上重新执行，
// 因此它必须可以安全地再次运行。
type RoomMutator func(room *domain.Room) error

type saveResult struct {
	room *domain.Room
	err  error
}

type saveTask struct {
	ctx    context.Context
	mutate RoomMutator
	done   chan saveResult
}

// SaveQueue 保证每个房间同一时刻至多一个保存在途：
// 同房间的后续请求按 FIFO 排队而不是并发下发，
// 避免人类操作与定时器自动操作之间的丢失更新。
// 排空采用显式循环，不用递归，避免高争用下的栈增长。
type SaveQueue struct {
	repo repository.RoomRepository

	mu      sync.Mutex
	queues  map[uint][]*saveTask
	running map[uint]bool
}

// NewSaveQueue 创建 SaveQueue 实例
func NewSaveQueue(repo repository.RoomRepository) *SaveQueue {
	if repo == nil {
		panic("RoomRepository cannot be nil for SaveQueue")
	}
	return &SaveQueue{
		repo:    repo,
		queues:  make(map[uint][]*saveTask),
		running: make(map[uint]bool),
	}
}

// Do 提交一次房间变更并等待它完成，返回保存后的房间。
// 变更总是先加载最新持久化状态再执行校验和修改；
// 保存遇到乐观并发冲突时重新加载并重放一次 mutator；
// 仍失败则以 ErrSaveFailed 上报，并清空该房间剩余的排队请求
// (那些调用方必须基于最新状态重新发起)。
func (q *SaveQueue) Do(ctx context.Context, roomID uint, mutate RoomMutator) (*domain.Room, error) {
	task := &saveTask{ctx: ctx, mutate: mutate, done: make(chan saveResult, 1)}

	q.mu.Lock()
	q.queues[roomID] = append(q.queues[roomID], task)
	if !q.running[roomID] {
		q.running[roomID] = true
		go q.drain(roomID)
	}
	q.mu.Unlock()

	res := <-task.done
	return res.room, res.err
}

// Forget 丢弃某房间的队列状态，供房间删除时清理。
// 仍在排队的请求以 ErrRoomNotFound 结束。
func (q *SaveQueue) Forget(roomID uint) {
	q.mu.Lock()
	pending := q.queues[roomID]
	delete(q.queues, roomID)
	q.mu.Unlock()

	for _, t := range pending {
		t.done <- saveResult{nil, ErrRoomNotFound}
	}
}

// drain 是房间队列的工作循环：逐个取出任务执行，
// 队列空时退出并释放该房间的运行标记。
func (q *SaveQueue) drain(roomID uint) {
	for {
		q.mu.Lock()
		tasks := q.queues[roomID]
		if len(tasks) == 0 {
			q.running[roomID] = false
			delete(q.running, roomID)
			delete(q.queues, roomID)
			q.mu.Unlock()
			return
		}
		task := tasks[0]
		q.queues[roomID] = tasks[1:]
		q.mu.Unlock()

		room, err, fatal := q.execute(task, roomID)
		task.done <- saveResult{room, err}

		if fatal {
			// 失败的保存之后不能继续消费队列：后续请求的前提状态
			// 已经不可信，全部放弃，让调用方重新读取再试
			q.mu.Lock()
			rest := q.queues[roomID]
			delete(q.queues, roomID)
			q.running[roomID] = false
			delete(q.running, roomID)
			q.mu.Unlock()

			for _, t := range rest {
				t.done <- saveResult{nil, ErrSaveAborted}
			}
			logrus.WithFields(logrus.Fields{
				"room_id":   roomID,
				"discarded": len(rest),
			}).Warn("SaveQueue: cleared pending saves after fatal error")
			return
		}
	}
}

// execute 执行单个保存任务。第三个返回值标记是否为致命
// (基础设施) 错误，致命错误会清空该房间剩余的队列。
func (q *SaveQueue) execute(task *saveTask, roomID uint) (*domain.Room, error, bool) {
	logCtx := logrus.WithField("room_id", roomID)

	room, err := q.repo.FindByID(task.ctx, roomID)
	if err != nil {
		if errors.Is(err, repository.ErrRoomNotFound) {
			return nil, ErrRoomNotFound, false
		}
		logCtx.WithError(err).Error("SaveQueue: failed to load room")
		return nil, ErrSaveFailed, true
	}

	// 在最新持久化状态上校验并变更
	if err := task.mutate(room); err != nil {
		return nil, err, false
	}

	err = q.repo.Update(task.ctx, room)
	if err == nil {
		return room, nil, false
	}
	if !errors.Is(err, repository.ErrVersionConflict) {
		logCtx.WithError(err).Error("SaveQueue: failed to save room")
		return nil, ErrSaveFailed, true
	}

	// 版本冲突：加载新鲜副本，把调用方的变更重放一次后重试
	logCtx.Warn("SaveQueue: version conflict detected, retrying with fresh data")
	fresh, err := q.repo.FindByID(task.ctx, roomID)
	if err != nil {
		if errors.Is(err, repository.ErrRoomNotFound) {
			return nil, ErrRoomNotFound, false
		}
		logCtx.WithError(err).Error("SaveQueue: failed to reload room after conflict")
		return nil, ErrSaveFailed, true
	}
	if err := task.mutate(fresh); err != nil {
		return nil, err, false
	}
	if err := q.repo.Update(task.ctx, fresh); err != nil {
		logCtx.WithError(err).Error("SaveQueue: retry after version conflict failed")
		return nil, ErrSaveFailed, true
	}
	return fresh, nil, false
}
