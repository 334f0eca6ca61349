package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"

	"ludo-server/internal/domain"
	"ludo-server/internal/repository"
	"ludo-server/internal/scheduler"
	"ludo-server/internal/service"
	"ludo-server/internal/tasks"
)

// RoomDeletionHandler 处理游戏结束后的延迟房间删除任务。
// 删除时一并释放该房间在进程内占用的资源 (定时器槽位和保存队列)。
type RoomDeletionHandler struct {
	roomRepo  repository.RoomRepository
	registry  *scheduler.TimeoutRegistry
	saveQueue *service.SaveQueue
}

// NewRoomDeletionHandler 创建 Handler 实例
func NewRoomDeletionHandler(roomRepo repository.RoomRepository, registry *scheduler.TimeoutRegistry, saveQueue *service.SaveQueue) *RoomDeletionHandler {
	return &RoomDeletionHandler{roomRepo: roomRepo, registry: registry, saveQueue: saveQueue}
}

// ProcessTask 实现 asynq.Handler 接口
func (h *RoomDeletionHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var payload tasks.RoomDeletionPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		logrus.WithError(err).Error("RoomDeletionHandler: failed to unmarshal task payload")
		return fmt.Errorf("failed to unmarshal payload: %v: %w", err, asynq.SkipRetry)
	}

	logCtx := logrus.WithFields(logrus.Fields{
		"task_type": t.Type(),
		"room_id":   payload.RoomID,
	})

	h.registry.Clear(payload.RoomID)
	h.saveQueue.Forget(payload.RoomID)
	if err := h.roomRepo.Delete(ctx, payload.RoomID); err != nil {
		logCtx.WithError(err).Error("RoomDeletionHandler: failed to delete room")
		return fmt.Errorf("failed to delete room %d: %w", payload.RoomID, err)
	}

	logCtx.Info("RoomDeletionHandler: finished room deleted")
	return nil
}

// RoomCleanupHandler 周期性清理残留的已结束房间。
// 正常情况下延迟删除任务已经处理过它们；这里兜底删除任务丢失
// (例如 Redis 数据丢失) 时留下的记录。
type RoomCleanupHandler struct {
	roomRepo repository.RoomRepository
}

// NewRoomCleanupHandler 创建 Handler 实例
func NewRoomCleanupHandler(roomRepo repository.RoomRepository) *RoomCleanupHandler {
	return &RoomCleanupHandler{roomRepo: roomRepo}
}

// ProcessTask 实现 asynq.Handler 接口
func (h *RoomCleanupHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	cutoff := time.Now().Add(-domain.RoomDeleteDelay)
	deleted, err := h.roomRepo.DeleteFinishedBefore(ctx, cutoff)
	if err != nil {
		logrus.WithError(err).Error("RoomCleanupHandler: failed to clean up finished rooms")
		return fmt.Errorf("failed to clean up finished rooms: %w", err)
	}

	if deleted > 0 {
		logrus.WithField("deleted", deleted).Info("RoomCleanupHandler: stale finished rooms removed")
	}
	return nil
}
