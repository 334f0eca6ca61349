package repository

import (
	"context"
	"time"

	"ludo-server/internal/domain"
)

// RoomRepository 定义了房间数据的存储和检索操作。
type RoomRepository interface {
	// FindByID 根据房间 ID 查找房间。
	// 房间不存在时返回 ErrRoomNotFound。
	FindByID(ctx context.Context, id uint) (*domain.Room, error)

	// FindAll 返回所有房间，供大厅列表使用。
	FindAll(ctx context.Context) ([]domain.Room, error)

	// FindJoinable 返回一个未满、未开始且公开的房间。
	// 没有可加入的房间时返回 ErrRoomNotFound。
	FindJoinable(ctx context.Context) (*domain.Room, error)

	// Create 创建新房间并回填 ID。
	Create(ctx context.Context, room *domain.Room) error

	// Update 带乐观并发检查地保存房间：只有持有的版本号与数据库
	// 一致时才写入，并把版本号加一。版本不匹配时返回 ErrVersionConflict，
	// 且不修改传入对象的版本号。
	Update(ctx context.Context, room *domain.Room) error

	// Delete 删除房间。房间不存在不视为错误。
	Delete(ctx context.Context, id uint) error

	// DeleteFinishedBefore 删除在 cutoff 之前就已分出胜负的房间，
	// 返回删除数量。供周期清理任务使用。
	DeleteFinishedBefore(ctx context.Context, cutoff time.Time) (int64, error)
}
