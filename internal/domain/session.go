package domain

// Session 是玩家与房间的关联凭据。
// 玩家加入房间后由服务器签发，重连时凭它恢复身份。
type Session struct {
	ID       string `json:"-"`
	RoomID   uint   `json:"roomId"`
	PlayerID string `json:"playerId"`
	Color    Color  `json:"color"`
}
