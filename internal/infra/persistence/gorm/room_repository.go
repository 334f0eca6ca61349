package gormpersistence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-sql-driver/mysql"
	"gorm.io/gorm"

	"ludo-server/internal/domain"
	"ludo-server/internal/repository"
)

// GormRoomRepository 是 RoomRepository 接口的 GORM 实现
type GormRoomRepository struct {
	db *gorm.DB
}

// NewGormRoomRepository 创建 GormRoomRepository 实例
func NewGormRoomRepository(db *gorm.DB) *GormRoomRepository {
	if db == nil {
		panic("database connection cannot be nil for GormRoomRepository")
	}
	return &GormRoomRepository{db: db}
}

// FindByID 实现根据房间 ID 查找房间
func (r *GormRoomRepository) FindByID(ctx context.Context, id uint) (*domain.Room, error) {
	var room domain.Room
	err := r.db.WithContext(ctx).First(&room, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repository.ErrRoomNotFound
		}
		return nil, fmt.Errorf("gorm: find room by id %d: %w", id, err)
	}
	return &room, nil
}

// FindAll 实现返回所有房间
func (r *GormRoomRepository) FindAll(ctx context.Context) ([]domain.Room, error) {
	var rooms []domain.Room
	err := r.db.WithContext(ctx).Order("created_at").Find(&rooms).Error
	if err != nil {
		return nil, fmt.Errorf("gorm: find all rooms: %w", err)
	}
	return rooms, nil
}

// FindJoinable 实现查找一个未满、未开始、公开的房间
func (r *GormRoomRepository) FindJoinable(ctx context.Context) (*domain.Room, error) {
	var room domain.Room
	err := r.db.WithContext(ctx).
		Where("full = ? AND started = ? AND private = ?", false, false, false).
		Order("created_at").
		First(&room).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repository.ErrRoomNotFound
		}
		return nil, fmt.Errorf("gorm: find joinable room: %w", err)
	}
	return &room, nil
}

// Create 实现创建新房间
func (r *GormRoomRepository) Create(ctx context.Context, room *domain.Room) error {
	if room.Version == 0 {
		room.Version = 1
	}
	err := r.db.WithContext(ctx).Create(room).Error
	if err != nil {
		// 健壮的唯一约束检查 (以 MySQL 为例)
		var mysqlErr *mysql.MySQLError
		if errors.As(err, &mysqlErr) && mysqlErr.Number == 1062 {
			return repository.ErrDuplicateEntry
		}
		return fmt.Errorf("gorm: create room %q: %w", room.Name, err)
	}
	return nil
}

// Update 实现乐观并发保存：WHERE id = ? AND version = ? 条件更新，
// 受影响行数为 0 即版本冲突。
func (r *GormRoomRepository) Update(ctx context.Context, room *domain.Room) error {
	held := room.Version
	room.Version = held + 1

	result := r.db.WithContext(ctx).
		Model(&domain.Room{}).
		Where("id = ? AND version = ?", room.ID, held).
		Select("*").
		Omit("id", "created_at").
		Updates(room)
	if result.Error != nil {
		room.Version = held
		return fmt.Errorf("gorm: update room %d: %w", room.ID, result.Error)
	}
	if result.RowsAffected == 0 {
		room.Version = held
		return repository.ErrVersionConflict
	}
	return nil
}

// Delete 实现删除房间
func (r *GormRoomRepository) Delete(ctx context.Context, id uint) error {
	err := r.db.WithContext(ctx).Delete(&domain.Room{}, id).Error
	if err != nil {
		return fmt.Errorf("gorm: delete room %d: %w", id, err)
	}
	return nil
}

// DeleteFinishedBefore 实现清理早已结束的房间
func (r *GormRoomRepository) DeleteFinishedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("winner IS NOT NULL AND updated_at < ?", cutoff).
		Delete(&domain.Room{})
	if result.Error != nil {
		return 0, fmt.Errorf("gorm: delete finished rooms before %s: %w", cutoff.Format(time.RFC3339), result.Error)
	}
	return result.RowsAffected, nil
}
