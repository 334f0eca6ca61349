// Package tasks 定义异步任务类型与构造函数
package tasks

import (
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
)

// 任务类型常量
const (
	// TypeRoomDeletion 延迟删除已结束的房间
	TypeRoomDeletion = "room:delete"
	// TypeRoomCleanup 周期性清理残留的已结束房间
	TypeRoomCleanup = "room:cleanup"
)

// RoomDeletionPayload 房间删除任务的载荷
type RoomDeletionPayload struct {
	RoomID uint `json:"room_id"`
}

// NewRoomDeletionTask 创建房间删除任务
func NewRoomDeletionTask(roomID uint) (*asynq.Task, error) {
	payload, err := json.Marshal(RoomDeletionPayload{RoomID: roomID})
	if err != nil {
		return nil, fmt.Errorf("tasks: failed to marshal room deletion payload: %w", err)
	}
	return asynq.NewTask(TypeRoomDeletion, payload), nil
}

// NewRoomCleanupTask 创建房间清理任务 (无载荷，由调度器周期触发)
func NewRoomCleanupTask() *asynq.Task {
	return asynq.NewTask(TypeRoomCleanup, nil)
}
