package domain

import (
	"math/rand"
	"time"

	"github.com/google/uuid"
)

// Room 是游戏状态的聚合根：独占拥有自己的 Players 和 Pawns，
// 所有规则判定和状态变更都通过它的方法进行。
// Players/Pawns/分数映射以 JSON 序列化存储；Version 列用于乐观并发检测，
// 每次成功保存单调递增。
type Room struct {
	ID             uint          `gorm:"primaryKey" json:"_id"`
	Name           string        `gorm:"size:191;not null" json:"name"`
	Private        bool          `gorm:"not null;default:false" json:"private"`
	Password       string        `gorm:"type:text" json:"-"` // bcrypt 哈希，永不下发
	Started        bool          `gorm:"not null;default:false" json:"started"`
	Full           bool          `gorm:"not null;default:false" json:"full"`
	NextMoveTime   *int64        `json:"nextMoveTime"` // 当前回合的绝对截止时间 (毫秒时间戳)
	GameEndTime    *int64        `json:"gameEndTime"`  // 整局游戏的绝对截止时间 (毫秒时间戳)
	RolledNumber   *int          `json:"rolledNumber"` // 仅对当前行动玩家有效，换手时清空
	Winner         *Color        `gorm:"type:varchar(16)" json:"winner"`
	Players        []Player      `gorm:"type:json;serializer:json" json:"players"`
	Pawns          []Pawn        `gorm:"type:json;serializer:json" json:"pawns"`
	PlayerScores   map[Color]int `gorm:"type:json;serializer:json" json:"playerScores"`
	PlayerCaptures map[Color]int `gorm:"type:json;serializer:json" json:"playerCaptures"`
	Version        uint          `gorm:"not null;default:1" json:"-"`
	CreatedAt      time.Time     `gorm:"autoCreateTime" json:"createDate"`
	UpdatedAt      time.Time     `gorm:"autoUpdateTime" json:"-"`
}

// NewRoom 创建一个带 16 个基地棋子的新房间 (每种颜色 4 个)。
// passwordHash 为空表示公开房间。
func NewRoom(name string, private bool, passwordHash string) *Room {
	pawns := make([]Pawn, PawnCount)
	for i := 0; i < PawnCount; i++ {
		pawns[i] = Pawn{
			ID:       uuid.NewString(),
			Color:    Palette[i/PawnsPerColor],
			BasePos:  i,
			Position: i,
			Score:    0,
		}
	}
	return &Room{
		Name:           name,
		Private:        private,
		Password:       passwordHash,
		Players:        []Player{},
		Pawns:          pawns,
		PlayerScores:   map[Color]int{},
		PlayerCaptures: map[Color]int{},
	}
}

// --- 玩家管理 ---

// AddPlayer 按加入顺序分配颜色并加入新玩家。
// 房间已满时静默失败并返回 false。
func (r *Room) AddPlayer(name string, sessionID string) bool {
	if len(r.Players) >= MaxPlayers {
		return false
	}
	r.Players = append(r.Players, Player{
		ID:        uuid.NewString(),
		Name:      name,
		SessionID: sessionID,
		Color:     Palette[len(r.Players)],
		Ready:     false,
	})
	r.IsFull()
	return true
}

// IsFull 重算并返回房间是否已满。
func (r *Room) IsFull() bool {
	r.Full = len(r.Players) >= MaxPlayers
	return r.Full
}

// GetPlayer 按玩家 ID 查找玩家，不存在返回 nil。
func (r *Room) GetPlayer(playerID string) *Player {
	for i := range r.Players {
		if r.Players[i].ID == playerID {
			return &r.Players[i]
		}
	}
	return nil
}

// GetCurrentlyMovingPlayer 返回当前行动玩家，没有则返回 nil。
func (r *Room) GetCurrentlyMovingPlayer() *Player {
	for i := range r.Players {
		if r.Players[i].NowMoving {
			return &r.Players[i]
		}
	}
	return nil
}

// --- 棋子访问 ---

func (r *Room) GetPawn(pawnID string) *Pawn {
	for i := range r.Pawns {
		if r.Pawns[i].ID == pawnID {
			return &r.Pawns[i]
		}
	}
	return nil
}

// GetPlayerPawns 返回某颜色的全部棋子指针。
func (r *Room) GetPlayerPawns(color Color) []*Pawn {
	pawns := make([]*Pawn, 0, PawnsPerColor)
	for i := range r.Pawns {
		if r.Pawns[i].Color == color {
			pawns = append(pawns, &r.Pawns[i])
		}
	}
	return pawns
}

// GetPawnsThatCanMove 返回当前行动玩家本次掷点下所有合法可动的棋子。
// 会越过终点的棋子被排除在外。
func (r *Room) GetPawnsThatCanMove() []*Pawn {
	mover := r.GetCurrentlyMovingPlayer()
	if mover == nil || r.RolledNumber == nil {
		return nil
	}
	movable := make([]*Pawn, 0, PawnsPerColor)
	for _, pawn := range r.GetPlayerPawns(mover.Color) {
		if pawn.CanMove(*r.RolledNumber) {
			movable = append(movable, pawn)
		}
	}
	return movable
}

// --- 对局生命周期 ---

// CanStartGame 报告是否满足开局条件 (至少 2 名玩家已准备)。
func (r *Room) CanStartGame() bool {
	ready := 0
	for i := range r.Players {
		if r.Players[i].Ready {
			ready++
		}
	}
	return ready >= 2
}

// StartGame 开局：盖上回合与整局的截止时间戳，强制所有玩家就绪，
// 第一名玩家开始行动，分数与吃子记录清零。
func (r *Room) StartGame(now time.Time) {
	r.Started = true
	next := now.Add(MoveTime).UnixMilli()
	end := now.Add(GameDuration).UnixMilli()
	r.NextMoveTime = &next
	r.GameEndTime = &end
	for i := range r.Players {
		r.Players[i].Ready = true
		r.Players[i].NowMoving = false
	}
	r.Players[0].NowMoving = true

	r.PlayerScores = map[Color]int{}
	r.PlayerCaptures = map[Color]int{}
	for i := range r.Players {
		if r.Players[i].Color != "" {
			r.PlayerScores[r.Players[i].Color] = 0
			r.PlayerCaptures[r.Players[i].Color] = 0
		}
	}
	r.UpdatePlayerScores()
}

// ChangeMovingPlayer 按加入顺序把行动权交给下一名玩家 (循环)，
// 清空掷点并重盖回合截止时间。已有胜者时是 no-op。
func (r *Room) ChangeMovingPlayer(now time.Time) {
	if r.Winner != nil {
		return
	}

	current := -1
	for i := range r.Players {
		if r.Players[i].NowMoving {
			current = i
			break
		}
	}
	if current == -1 {
		if len(r.Players) > 0 {
			r.Players[0].NowMoving = true
		}
	} else {
		r.Players[current].NowMoving = false
		r.Players[(current+1)%len(r.Players)].NowMoving = true
	}

	next := now.Add(MoveTime).UnixMilli()
	r.NextMoveTime = &next
	r.RolledNumber = nil
}

// EndGame 固定胜者并冻结对局：清空掷点和回合截止时间，
// 清掉所有行动标记。定时器与延迟删除由调用方处理。
func (r *Room) EndGame(winner Color) {
	r.RolledNumber = nil
	r.NextMoveTime = nil
	for i := range r.Players {
		r.Players[i].NowMoving = false
	}
	r.Winner = &winner
}

// IsGameTimeExpired 报告整局时间是否已耗尽。
func (r *Room) IsGameTimeExpired(now time.Time) bool {
	return r.GameEndTime != nil && now.UnixMilli() > *r.GameEndTime
}

// --- 移动、吃子与计分 ---

// MovePawn 用当前掷点移动一个棋子：位置变化时把掷点加进该棋子的分数，
// 然后在落点结算吃子。位置不变 (已到终点或会越过) 时不加分。
func (r *Room) MovePawn(pawn *Pawn) {
	if r.RolledNumber == nil {
		return
	}
	rolled := *r.RolledNumber
	original := pawn.Position
	newPosition := pawn.GetPositionAfterMove(rolled)

	pawn.Position = newPosition
	if newPosition != original {
		pawn.Score += rolled
		r.UpdatePlayerScores()
	}

	r.BeatPawns(newPosition, pawn.Color)
}

// BeatPawns 结算落点上的吃子：所有异色棋子都是受害者，
// 它们的分数总和转给攻击方随机一个棋子 (不一定是刚移动的那个)，
// 每个受害者清零并回到自己的基地格。被吃总分同时计入攻击方的
// 吃子累计，仅用于到时结算的平分决胜。
// 同一落点的多个受害者在同一次结算中全部处理。
func (r *Room) BeatPawns(position int, attacking Color) {
	var victims []*Pawn
	for i := range r.Pawns {
		if r.Pawns[i].Position == position && r.Pawns[i].Color != attacking {
			victims = append(victims, &r.Pawns[i])
		}
	}

	if len(victims) > 0 {
		attackerPawns := r.GetPlayerPawns(attacking)
		if len(attackerPawns) > 0 {
			striker := attackerPawns[rand.Intn(len(attackerPawns))]
			total := 0
			for _, victim := range victims {
				total += victim.Score
				striker.Score += victim.Score
				victim.Score = 0
				victim.Position = victim.BasePos
			}
			if total > 0 {
				if r.PlayerCaptures == nil {
					r.PlayerCaptures = map[Color]int{}
				}
				r.PlayerCaptures[attacking] += total
			}
		}
	}

	r.UpdatePlayerScores()
}

// UpdatePlayerScores 从棋子状态全量重算玩家总分。幂等。
func (r *Room) UpdatePlayerScores() {
	r.PlayerScores = CalculateAllPlayerScores(r.Pawns, r.Players)
}

// --- 胜负判定 ---

// GetWinner 检查传统胜利条件：某颜色 4 个棋子全部到达终点格。
// 没有则返回 nil。
func (r *Room) GetWinner() *Color {
	for _, color := range Palette {
		count := 0
		for i := range r.Pawns {
			if r.Pawns[i].Color == color && r.Pawns[i].AtFinal() {
				count++
			}
		}
		if count == PawnsPerColor {
			c := color
			return &c
		}
	}
	return nil
}

// GetWinnerByScore 按分数结算胜者：最高总分获胜；
// 平分时比较吃子累计；仍相持时取加入顺序最靠前的颜色 (确定性兜底)。
// 没有任何得分记录时返回 nil。
func (r *Room) GetWinnerByScore() *Color {
	highest := -1
	var tied []Color
	// 按玩家加入顺序遍历，保证结果确定
	for i := range r.Players {
		color := r.Players[i].Color
		score, ok := r.PlayerScores[color]
		if !ok {
			continue
		}
		switch {
		case score > highest:
			highest = score
			tied = []Color{color}
		case score == highest:
			tied = append(tied, color)
		}
	}
	if len(tied) == 0 {
		return nil
	}
	if len(tied) == 1 {
		return &tied[0]
	}

	// 平分：比较吃子累计
	highestCaptures := -1
	var capturesTied []Color
	for _, color := range tied {
		captures := r.PlayerCaptures[color]
		switch {
		case captures > highestCaptures:
			highestCaptures = captures
			capturesTied = []Color{color}
		case captures == highestCaptures:
			capturesTied = append(capturesTied, color)
		}
	}
	// capturesTied 保持了加入顺序，第一个就是兜底胜者
	return &capturesTied[0]
}
