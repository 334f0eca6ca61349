// Package dto 定义 WebSocket 线上消息的信封与载荷结构
package dto

import (
	"encoding/json"

	"ludo-server/internal/domain"
)

// Envelope 是所有线上消息的统一信封。
// Event 形如 "domain:action"，Data 的结构由事件决定。
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// 客户端到服务器的事件
const (
	EventPlayerLogin = "player:login"
	EventPlayerReady = "player:ready"
	EventPlayerExit  = "player:exit"
	EventGameRoll    = "game:roll"
	EventGameMove    = "game:move"
	EventRoomData    = "room:data"
	EventRoomList    = "room:rooms"
	EventRoomCreate  = "room:create"
)

// 服务器到客户端的事件 (入站事件名复用的不再重复定义)
const (
	EventGameScores = "game:scores"
	EventGameWinner = "game:winner"
	EventPlayerData = "player:data"
	EventRedirect   = "redirect"
)

// LoginRequest 是 player:login 的载荷。
// RoomID 为空表示自动匹配。
type LoginRequest struct {
	Name     string `json:"name"`
	RoomID   string `json:"roomId"`
	Password string `json:"password"`
}

// MoveRequest 是 game:move 的载荷。
type MoveRequest struct {
	PawnID string `json:"pawnId"`
}

// CreateRoomRequest 是 room:create 的载荷。
type CreateRoomRequest struct {
	Name     string `json:"name"`
	Password string `json:"password"`
	Private  bool   `json:"private"`
}

// PlayerData 在登录成功后下发，客户端凭 Token 重连。
type PlayerData struct {
	RoomID   uint         `json:"roomId"`
	PlayerID string       `json:"playerId"`
	Color    domain.Color `json:"color"`
	Token    string       `json:"token"`
}

// RoomSummary 是大厅列表里的单个房间条目。
type RoomSummary struct {
	ID      uint   `json:"_id"`
	Name    string `json:"name"`
	Private bool   `json:"private"`
	Started bool   `json:"started"`
	Full    bool   `json:"full"`
	Players int    `json:"players"`
}

// NewRoomSummary 从房间聚合生成列表条目。
func NewRoomSummary(room *domain.Room) RoomSummary {
	return RoomSummary{
		ID:      room.ID,
		Name:    room.Name,
		Private: room.Private,
		Started: room.Started,
		Full:    room.Full,
		Players: len(room.Players),
	}
}

// ScoresPayload 是 game:scores 的载荷。
type ScoresPayload struct {
	Scores   map[domain.Color]int `json:"scores"`
	Captures map[domain.Color]int `json:"captures"`
}

// WinnerPayload 是 game:winner 的载荷。
type WinnerPayload struct {
	Winner        domain.Color         `json:"winner"`
	FinalScores   map[domain.Color]int `json:"finalScores"`
	FinalCaptures map[domain.Color]int `json:"finalCaptures"`
}

// RolledPayload 是 game:roll 的出站载荷。
type RolledPayload struct {
	RolledNumber int `json:"rolledNumber"`
}

// RedirectPayload 指示客户端跳转页面。
type RedirectPayload struct {
	Path string `json:"path"`
}
