package repository

import "errors"

// 通用的存储库错误
var (
	// ErrNotFound 表示请求的记录未找到
	ErrNotFound = errors.New("repository: record not found")
	// ErrDuplicateEntry 表示写入的数据违反了唯一约束
	ErrDuplicateEntry = errors.New("repository: duplicate entry")
	// ErrVersionConflict 表示乐观并发保存时版本号已被他人更新
	ErrVersionConflict = errors.New("repository: version conflict")
)

// 特定资源的错误 (基于通用错误创建)
var (
	ErrRoomNotFound    = ErrNotFound
	ErrSessionNotFound = ErrNotFound
)
