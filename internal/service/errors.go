package service

import "errors"

// 校验类错误：只回报给发起操作的客户端，房间状态不变，也不重试。
// 每种拒绝原因一个独立错误，Hub 据此映射为 error:<kind> 事件。
var (
	ErrNotInRoom      = errors.New("not in a room")
	ErrRoomNotFound   = errors.New("room not found")
	ErrRoomFull       = errors.New("room is full or already started")
	ErrWrongPassword  = errors.New("wrong room password")
	ErrGameNotStarted = errors.New("game not started")
	ErrGameEnded      = errors.New("game has already ended")
	ErrNotYourTurn    = errors.New("not your turn")
	ErrMustRollFirst  = errors.New("must roll dice first")
	ErrMustMoveFirst  = errors.New("must move before rolling again")
	ErrPawnNotFound   = errors.New("pawn not found")
	ErrPlayerNotFound = errors.New("player not found")
	ErrInvalidMove    = errors.New("invalid move")
	ErrInvalidInput   = errors.New("invalid input")
)

// 基础设施类错误：回报给发起方并记录日志。
var (
	// ErrInternalServer 表示未分类的内部错误。
	ErrInternalServer = errors.New("internal server error")
	// ErrSaveFailed 表示持久化失败，版本冲突重试一次后仍未成功。
	ErrSaveFailed = errors.New("failed to save room state")
	// ErrSaveAborted 表示排在失败保存之后的请求被整体放弃，
	// 调用方需要基于最新状态重新发起。
	ErrSaveAborted = errors.New("queued save aborted after earlier failure")
	// ErrSessionInvalid 表示会话令牌无效或已过期。
	ErrSessionInvalid = errors.New("invalid or expired session")
	// ErrStaleTimer 表示定时器触发时状态已经变化，本次触发作废。
	ErrStaleTimer = errors.New("timer fired against stale state")
)

// IsValidationError 区分校验类错误与基础设施类错误：
// 前者不会清空房间的保存队列，后者会。
func IsValidationError(err error) bool {
	switch {
	case errors.Is(err, ErrNotInRoom),
		errors.Is(err, ErrRoomNotFound),
		errors.Is(err, ErrRoomFull),
		errors.Is(err, ErrWrongPassword),
		errors.Is(err, ErrGameNotStarted),
		errors.Is(err, ErrGameEnded),
		errors.Is(err, ErrNotYourTurn),
		errors.Is(err, ErrMustRollFirst),
		errors.Is(err, ErrMustMoveFirst),
		errors.Is(err, ErrPawnNotFound),
		errors.Is(err, ErrPlayerNotFound),
		errors.Is(err, ErrInvalidMove),
		errors.Is(err, ErrInvalidInput),
		errors.Is(err, ErrStaleTimer):
		return true
	}
	return false
}

// ErrorKind 返回错误对应的对外事件种类 (error:<kind>)。
func ErrorKind(err error) string {
	switch {
	case errors.Is(err, ErrNotInRoom):
		return "notInRoom"
	case errors.Is(err, ErrRoomNotFound):
		return "roomNotFound"
	case errors.Is(err, ErrRoomFull):
		return "changeRoom"
	case errors.Is(err, ErrWrongPassword):
		return "wrongPassword"
	case errors.Is(err, ErrGameNotStarted):
		return "gameNotStarted"
	case errors.Is(err, ErrGameEnded):
		return "gameEnded"
	case errors.Is(err, ErrNotYourTurn):
		return "notYourTurn"
	case errors.Is(err, ErrMustRollFirst):
		return "mustRollFirst"
	case errors.Is(err, ErrMustMoveFirst):
		return "mustMoveFirst"
	case errors.Is(err, ErrPawnNotFound):
		return "pawnNotFound"
	case errors.Is(err, ErrPlayerNotFound):
		return "playerNotFound"
	case errors.Is(err, ErrInvalidMove):
		return "invalidMove"
	case errors.Is(err, ErrInvalidInput):
		return "invalidInput"
	case errors.Is(err, ErrSessionInvalid):
		return "sessionError"
	default:
		return "internal"
	}
}
