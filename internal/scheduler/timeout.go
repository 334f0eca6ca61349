// Package scheduler 提供回合超时定时器注册表：
// 每个房间一个定时器槽位，进程级共享，按需创建、随房间销毁。
// 作为显式依赖注入到服务层，而不是包级单例。
package scheduler

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// TimeoutRegistry 维护 roomID -> 定时器 的映射。
// 同一房间再次 Set 会先取消旧定时器 (不排队)，因此宽限期内
// 人类玩家完成的操作总能压掉计划中的自动操作。
type TimeoutRegistry struct {
	mu     sync.Mutex
	timers map[uint]*time.Timer
}

// NewTimeoutRegistry 创建 TimeoutRegistry 实例
func NewTimeoutRegistry() *TimeoutRegistry {
	return &TimeoutRegistry{timers: make(map[uint]*time.Timer)}
}

// Set 为房间安排一次超时回调，隐式取消该房间已有的定时器。
// fn 在定时器自己的 goroutine 中执行，必须自行对最新状态重新校验。
func (r *TimeoutRegistry) Set(roomID uint, d time.Duration, fn func()) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if old, ok := r.timers[roomID]; ok {
		old.Stop()
	}
	r.timers[roomID] = time.AfterFunc(d, func() {
		// 触发后移除槽位，避免 Clear 去停一个已经执行过的定时器
		r.mu.Lock()
		delete(r.timers, roomID)
		r.mu.Unlock()
		fn()
	})
	logrus.WithFields(logrus.Fields{
		"room_id":  roomID,
		"delay_ms": d.Milliseconds(),
	}).Debug("TimeoutRegistry: timer armed")
}

// Clear 取消房间的定时器 (游戏结束或房间删除时调用)。
func (r *TimeoutRegistry) Clear(roomID uint) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if t, ok := r.timers[roomID]; ok {
		t.Stop()
		delete(r.timers, roomID)
		logrus.WithField("room_id", roomID).Debug("TimeoutRegistry: timer cleared")
	}
}

// StopAll 取消所有定时器，供进程关停时调用。
func (r *TimeoutRegistry) StopAll() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for id, t := range r.timers {
		t.Stop()
		delete(r.timers, id)
	}
}
