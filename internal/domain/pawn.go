package domain

// 棋盘几何是一张固定的常量表，不在运行时推导：
//   - 0..15 是 16 个基地格 (每个棋子的 basePos，永不改变)
//   - 16..67 是 52 格的共享环形主赛道
//   - 68..91 是四条 6 格的终点直道，每种颜色一条
// 一个棋子从入口格出发到终点格的完整路径长度是 52 + 6 = 58 步。
const (
	trackStart = 16
	trackLen   = 52
	homeLen    = 6
	pathLen    = trackLen + homeLen
)

// entrySquare 是各颜色离开基地后进入主赛道的入口格。
var entrySquare = map[Color]int{
	Red:    16,
	Blue:   29,
	Green:  42,
	Yellow: 55,
}

// homeStretchStart 是各颜色终点直道的第一格。
var homeStretchStart = map[Color]int{
	Red:    68,
	Blue:   74,
	Green:  80,
	Yellow: 86,
}

// FinalSquare 是各颜色的终点格；四子全部到达即传统胜利。
var FinalSquare = map[Color]int{
	Red:    73,
	Blue:   79,
	Green:  85,
	Yellow: 91,
}

// Pawn 表示 16 个可移动棋子之一。
// Color 和 BasePos 在创建后不变；Position 和 Score 只通过移动/吃子算法改变。
type Pawn struct {
	ID       string `json:"_id"`
	Color    Color  `json:"color"`
	BasePos  int    `json:"basePos"`
	Position int    `json:"position"`
	Score    int    `json:"score"`
}

// AtBase 报告棋子是否还在基地格。
func (p *Pawn) AtBase() bool {
	return p.Position == p.BasePos
}

// stepsTraveled 返回棋子从入口格出发已经走过的步数。
// 仅对已离开基地的棋子有意义。
func (p *Pawn) stepsTraveled() int {
	if start, ok := homeStretchStart[p.Color]; ok && p.Position >= start && p.Position < start+homeLen {
		return trackLen + (p.Position - start)
	}
	entry := entrySquare[p.Color]
	return ((p.Position - trackStart) - (entry - trackStart) + trackLen) % trackLen
}

// GetPositionAfterMove 返回掷出 rolledNumber 后棋子的新位置。
// 返回值等于当前位置表示这次掷点无法让该棋子移动：
// 仍在基地且点数不是 1 或 6、已到终点格、或会越过终点格 (不回绕也不截断)。
func (p *Pawn) GetPositionAfterMove(rolledNumber int) int {
	if p.AtBase() {
		if rolledNumber == 1 || rolledNumber == 6 {
			return entrySquare[p.Color]
		}
		return p.Position
	}

	steps := p.stepsTraveled() + rolledNumber
	if steps > pathLen-1 {
		// 越过终点，这步不合法
		return p.Position
	}
	if steps >= trackLen {
		return homeStretchStart[p.Color] + (steps - trackLen)
	}
	entry := entrySquare[p.Color]
	return trackStart + ((entry-trackStart)+steps)%trackLen
}

// CanMove 报告该棋子能否用掷出的点数移动。
func (p *Pawn) CanMove(rolledNumber int) bool {
	return p.GetPositionAfterMove(rolledNumber) != p.Position
}

// AtFinal 报告棋子是否已到达本颜色的终点格。
func (p *Pawn) AtFinal() bool {
	return p.Position == FinalSquare[p.Color]
}
