package domain

import "time"

// 游戏节奏相关的固定时长。
const (
	// MoveTime 是单个回合的最长时间，超时后由服务器代为行动。
	MoveTime = 15 * time.Second

	// GameDuration 是整局游戏的总时长，到期后按分数结算胜者。
	GameDuration = 10 * time.Minute

	// NoMoveGraceDelay 是掷出无法行动的点数后，等待玩家的宽限时间。
	// 宽限期内玩家的任何有效操作都会取消计划中的自动跳过。
	NoMoveGraceDelay = 3 * time.Second

	// RoomDeleteDelay 是游戏结束后到房间被删除的宽限时间，
	// 留给客户端观察最终状态。
	RoomDeleteDelay = 5 * time.Minute

	// MaxPlayers 是一个房间的玩家上限。
	MaxPlayers = 4

	// PawnsPerColor 每种颜色的棋子数量，PawnCount 为房间棋子总数。
	PawnsPerColor = 4
	PawnCount     = 16
)
