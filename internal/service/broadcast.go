package service

import "ludo-server/internal/domain"

// Broadcaster 把已提交的状态变更推送给房间内的所有连接。
// 每次成功保存后都推送完整房间快照；窄事件 (掷点、分数、胜者)
// 是对快照的补充而不是替代，客户端无需用增量更新去对账旧快照。
// 由 hub 包实现。
type Broadcaster interface {
	// RoomData 向房间内所有连接推送完整快照。
	RoomData(room *domain.Room)

	// RolledNumber 广播掷出的点数。
	RolledNumber(roomID uint, rolledNumber int)

	// Scores 广播当前分数与吃子累计。
	Scores(roomID uint, scores, captures map[domain.Color]int)

	// Winner 广播胜者及最终分数。
	Winner(roomID uint, winner domain.Color, finalScores, finalCaptures map[domain.Color]int)
}
