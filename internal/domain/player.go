package domain

// Player 表示房间内的一名玩家。
// Ready 和 NowMoving 只由 Room 的状态机修改；
// 玩家不会被单独删除，只随房间一起销毁。
type Player struct {
	ID        string `json:"_id"`
	Name      string `json:"name"`
	SessionID string `json:"-"`
	Color     Color  `json:"color"`
	Ready     bool   `json:"ready"`
	NowMoving bool   `json:"nowMoving"`
}

// ChangeReadyStatus 切换玩家的准备状态。
func (p *Player) ChangeReadyStatus() {
	p.Ready = !p.Ready
}

// CanMove 报告玩家是否有任何棋子能用掷出的点数移动。
func (p *Player) CanMove(room *Room, rolledNumber int) bool {
	for i := range room.Pawns {
		pawn := &room.Pawns[i]
		if pawn.Color == p.Color && pawn.CanMove(rolledNumber) {
			return true
		}
	}
	return false
}
