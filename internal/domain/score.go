package domain

// 计分工具函数。棋子分数是唯一的事实来源；
// 玩家总分永远通过全量重算得到，而不是增量记账，
// 因此在棋子状态不变时重复调用结果相同。

// CalculatePlayerScore 返回某颜色所有棋子的分数之和。
func CalculatePlayerScore(pawns []Pawn, color Color) int {
	total := 0
	for i := range pawns {
		if pawns[i].Color == color {
			total += pawns[i].Score
		}
	}
	return total
}

// CalculateAllPlayerScores 为每个已加入的玩家重算总分。
func CalculateAllPlayerScores(pawns []Pawn, players []Player) map[Color]int {
	scores := make(map[Color]int, len(players))
	for i := range players {
		if players[i].Color != "" {
			scores[players[i].Color] = CalculatePlayerScore(pawns, players[i].Color)
		}
	}
	return scores
}
