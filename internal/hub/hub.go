package hub

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"ludo-server/internal/domain"
	"ludo-server/internal/dto"
	"ludo-server/internal/service"
)

// 包级别的 WebSocket 常量，供 hub 和 client 包内使用
const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 4096
)

// 服务调用的统一超时，事件处理不绑定任何 HTTP 请求的生命周期。
const eventTimeout = 10 * time.Second

// HubMessage 定义了在 Hub 内部通道传递的消息类型
type HubMessage struct {
	Type    string  // "register", "unregister", "event"
	Client  *Client // 消息来源客户端
	RawData []byte  // 仅用于 event (原始 WebSocket 消息)
}

// Hub 维护活跃客户端集合，按房间组织；负责把入站事件路由到
// 服务层，并把服务层已提交的状态变更广播回房间。
// 它同时实现 service.Broadcaster。
type Hub struct {
	// 内部通道，处理所有来自 Client 的事件
	messageChan chan HubMessage

	// 客户端集合，按 RoomID 组织；未登录的客户端不在其中
	rooms   map[uint]map[*Client]bool
	roomsMu sync.RWMutex

	// 服务在 Hub 创建之后注入 (服务的构造又依赖 Hub 作为广播器)
	roomService *service.RoomService
	gameService *service.GameService
}

// NewHub 创建 Hub 实例。服务依赖通过 Bind 延后注入。
func NewHub() *Hub {
	return &Hub{
		messageChan: make(chan HubMessage, 512),
		rooms:       make(map[uint]map[*Client]bool),
	}
}

// Bind 注入服务依赖，必须在 Run 之前调用。
func (h *Hub) Bind(roomService *service.RoomService, gameService *service.GameService) {
	if roomService == nil {
		panic("RoomService cannot be nil for Hub")
	}
	if gameService == nil {
		panic("GameService cannot be nil for Hub")
	}
	h.roomService = roomService
	h.gameService = gameService
}

// Run 启动 Hub 的主事件处理循环。
// 它应该在一个单独的 goroutine 中运行。
func (h *Hub) Run() {
	log := logrus.WithField("component", "hub")
	log.Info("Hub is running...")

	for msg := range h.messageChan {
		switch msg.Type {
		case "register":
			h.registerClient(msg.Client)
		case "unregister":
			h.unregisterClient(msg.Client)
		case "event":
			// 异步处理客户端事件，避免阻塞 Hub 主循环；
			// 同一房间内操作的串行化由 SaveQueue 保证
			go h.handleClientEvent(msg)
		default:
			log.Warnf("Hub: Received unknown message type: %s", msg.Type)
		}
	}
	log.Info("Hub is shutting down...")
}

// registerClient 处理客户端注册逻辑。
// 带会话重连的客户端直接进房间并补发当前快照。
func (h *Hub) registerClient(client *Client) {
	if client == nil {
		logrus.Error("Hub: Attempted to register a nil client")
		return
	}
	sess := client.Session()
	if sess == nil {
		logrus.Debug("Hub: client connected without session, waiting for login")
		return
	}

	h.addToRoom(client, sess.RoomID)
	logrus.WithFields(logrus.Fields{
		"room_id":   sess.RoomID,
		"player_id": sess.PlayerID,
	}).Info("Hub: client registered with session")

	// 异步补发当前房间快照给重连的客户端
	go h.sendRoomSnapshot(client, sess)
}

// unregisterClient 处理客户端注销逻辑，并触发掉线收尾。
func (h *Hub) unregisterClient(client *Client) {
	if client == nil {
		logrus.Error("Hub: Attempted to unregister a nil client")
		return
	}
	sess := client.Session()

	var remaining []string
	if sess != nil {
		h.removeFromRoom(client, sess.RoomID)
		remaining = h.remainingPlayerIDs(sess.RoomID)
	}

	// 广播可能正拿着这个客户端的快照准备发送，关闭必须经过 Client 的发送锁
	client.closeSend()

	if sess == nil {
		return
	}
	logrus.WithFields(logrus.Fields{
		"room_id":   sess.RoomID,
		"player_id": sess.PlayerID,
	}).Info("Hub: client unregistered")

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), eventTimeout)
		defer cancel()
		if err := h.roomService.HandleDisconnect(ctx, sess.RoomID, sess.PlayerID, remaining); err != nil {
			logrus.WithError(err).WithField("room_id", sess.RoomID).Error("Hub: disconnect handling failed")
		}
	}()
}

// addToRoom 把客户端挂进房间的连接集合。
func (h *Hub) addToRoom(client *Client, roomID uint) {
	h.roomsMu.Lock()
	if _, ok := h.rooms[roomID]; !ok {
		h.rooms[roomID] = make(map[*Client]bool)
	}
	h.rooms[roomID][client] = true
	h.roomsMu.Unlock()
}

// removeFromRoom 把客户端从房间的连接集合摘除。
func (h *Hub) removeFromRoom(client *Client, roomID uint) {
	h.roomsMu.Lock()
	if roomClients, ok := h.rooms[roomID]; ok {
		delete(roomClients, client)
		if len(roomClients) == 0 {
			delete(h.rooms, roomID)
		}
	}
	h.roomsMu.Unlock()
}

// remainingPlayerIDs 返回房间里仍然在线的玩家 ID。
func (h *Hub) remainingPlayerIDs(roomID uint) []string {
	h.roomsMu.RLock()
	defer h.roomsMu.RUnlock()

	var ids []string
	for client := range h.rooms[roomID] {
		if pid := client.PlayerID(); pid != "" {
			ids = append(ids, pid)
		}
	}
	return ids
}

// sendRoomSnapshot 获取并发送当前房间快照给单个客户端。
func (h *Hub) sendRoomSnapshot(client *Client, sess *domain.Session) {
	ctx, cancel := context.WithTimeout(context.Background(), eventTimeout)
	defer cancel()

	room, err := h.roomService.GetRoomData(ctx, sess)
	if err != nil {
		h.sendError(client, err)
		return
	}
	h.sendEvent(client, dto.EventRoomData, room)
}

// handleClientEvent 解析并路由单条入站消息。
func (h *Hub) handleClientEvent(msg HubMessage) {
	ctx, cancel := context.WithTimeout(context.Background(), eventTimeout)
	defer cancel()

	var envelope dto.Envelope
	if err := json.Unmarshal(msg.RawData, &envelope); err != nil {
		h.sendError(msg.Client, service.ErrInvalidInput)
		return
	}

	logCtx := logrus.WithFields(logrus.Fields{
		"event":   envelope.Event,
		"room_id": msg.Client.RoomID(),
	})
	logCtx.Debug("Hub: processing client event")

	var err error
	switch envelope.Event {
	case dto.EventPlayerLogin:
		err = h.handleLogin(ctx, msg.Client, envelope.Data)
	case dto.EventPlayerReady:
		err = h.withSession(msg.Client, func(sess *domain.Session) error {
			return h.roomService.Ready(ctx, sess)
		})
	case dto.EventPlayerExit:
		err = h.handleExit(ctx, msg.Client)
	case dto.EventGameRoll:
		err = h.withSession(msg.Client, func(sess *domain.Session) error {
			return h.gameService.Roll(ctx, sess)
		})
	case dto.EventGameMove:
		err = h.handleMove(ctx, msg.Client, envelope.Data)
	case dto.EventRoomData:
		err = h.withSession(msg.Client, func(sess *domain.Session) error {
			room, err := h.roomService.GetRoomData(ctx, sess)
			if err != nil {
				return err
			}
			h.sendEvent(msg.Client, dto.EventRoomData, room)
			return nil
		})
	case dto.EventRoomList:
		err = h.sendRoomList(ctx, msg.Client)
	case dto.EventRoomCreate:
		err = h.handleCreateRoom(ctx, msg.Client, envelope.Data)
	default:
		logCtx.Warn("Hub: unknown event")
		err = service.ErrInvalidInput
	}

	if err != nil {
		if service.IsValidationError(err) {
			logCtx.WithError(err).Debug("Hub: event rejected")
		} else {
			logCtx.WithError(err).Error("Hub: event processing failed")
		}
		h.sendError(msg.Client, err)
	}
}

// withSession 的回调只在客户端已登录时执行。
func (h *Hub) withSession(client *Client, fn func(sess *domain.Session) error) error {
	sess := client.Session()
	if sess == nil {
		return service.ErrNotInRoom
	}
	return fn(sess)
}

// handleLogin 处理进房请求：登录成功后把连接挂进房间，
// 下发会话令牌和当前快照。已在房间里的连接不允许再次登录。
func (h *Hub) handleLogin(ctx context.Context, client *Client, data json.RawMessage) error {
	if client.Session() != nil {
		return service.ErrRoomFull
	}

	var req dto.LoginRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return service.ErrInvalidInput
	}

	result, err := h.roomService.Login(ctx, req.Name, req.RoomID, req.Password)
	if err != nil {
		return err
	}

	client.SetSession(result.Session)
	h.addToRoom(client, result.Room.ID)

	h.sendEvent(client, dto.EventPlayerData, dto.PlayerData{
		RoomID:   result.Room.ID,
		PlayerID: result.Session.PlayerID,
		Color:    result.Session.Color,
		Token:    result.Token,
	})
	// 登录时服务层的广播发生在本连接入房之前，单独补发快照
	h.sendEvent(client, dto.EventRoomData, result.Room)
	return nil
}

// handleExit 处理玩家主动退出房间。
func (h *Hub) handleExit(ctx context.Context, client *Client) error {
	sess := client.Session()
	if sess == nil {
		return service.ErrNotInRoom
	}

	if err := h.roomService.Exit(ctx, sess); err != nil {
		logrus.WithError(err).WithField("room_id", sess.RoomID).Warn("Hub: session cleanup on exit failed")
	}
	client.ClearSession()
	h.removeFromRoom(client, sess.RoomID)
	remaining := h.remainingPlayerIDs(sess.RoomID)

	h.sendEvent(client, dto.EventRedirect, dto.RedirectPayload{Path: "/"})

	return h.roomService.HandleDisconnect(ctx, sess.RoomID, sess.PlayerID, remaining)
}

// handleMove 处理移动棋子请求。
func (h *Hub) handleMove(ctx context.Context, client *Client, data json.RawMessage) error {
	return h.withSession(client, func(sess *domain.Session) error {
		var req dto.MoveRequest
		if err := json.Unmarshal(data, &req); err != nil || req.PawnID == "" {
			return service.ErrInvalidInput
		}
		return h.gameService.Move(ctx, sess, req.PawnID)
	})
}

// sendRoomList 把大厅列表发给单个客户端。
func (h *Hub) sendRoomList(ctx context.Context, client *Client) error {
	rooms, err := h.roomService.ListRooms(ctx)
	if err != nil {
		return err
	}
	summaries := make([]dto.RoomSummary, 0, len(rooms))
	for i := range rooms {
		summaries = append(summaries, dto.NewRoomSummary(&rooms[i]))
	}
	h.sendEvent(client, dto.EventRoomList, summaries)
	return nil
}

// handleCreateRoom 处理建房请求，成功后回发最新大厅列表。
func (h *Hub) handleCreateRoom(ctx context.Context, client *Client, data json.RawMessage) error {
	var req dto.CreateRoomRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return service.ErrInvalidInput
	}
	if _, err := h.roomService.CreateRoom(ctx, req.Name, req.Password, req.Private); err != nil {
		return err
	}
	return h.sendRoomList(ctx, client)
}

// --- 出站发送 ---

// sendEvent 向单个客户端发送一条事件消息 (非阻塞)。
func (h *Hub) sendEvent(client *Client, event string, payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		logrus.WithError(err).WithField("event", event).Error("Hub: failed to marshal event payload")
		return
	}
	message, err := json.Marshal(dto.Envelope{Event: event, Data: data})
	if err != nil {
		logrus.WithError(err).WithField("event", event).Error("Hub: failed to marshal envelope")
		return
	}
	if !client.trySend(message) {
		logrus.WithField("event", event).Warn("Hub: client send channel full or closed, message dropped")
	}
}

// sendError 把错误映射成 error:<kind> 事件回发给发起方。
func (h *Hub) sendError(client *Client, err error) {
	kind := service.ErrorKind(err)
	h.sendEvent(client, "error:"+kind, map[string]string{"message": err.Error()})
}

// broadcastToRoom 将消息发送给指定房间的所有客户端。
func (h *Hub) broadcastToRoom(roomID uint, message []byte) {
	h.roomsMu.RLock()
	roomClients, ok := h.rooms[roomID]
	// 拷贝接收者列表，避免发送期间持有锁
	clientsToSend := make([]*Client, 0, len(roomClients))
	if ok {
		for client := range roomClients {
			clientsToSend = append(clientsToSend, client)
		}
	}
	h.roomsMu.RUnlock()

	if len(clientsToSend) == 0 {
		return
	}

	for _, client := range clientsToSend {
		// 非阻塞发送，避免单个慢客户端阻塞广播；
		// 快照期间被注销的客户端在这里被安全跳过
		if !client.trySend(message) {
			logrus.WithField("room_id", roomID).Warn("Hub: client unavailable during broadcast, skipping")
		}
	}
}

// broadcastEvent 把事件广播到房间内的所有连接。
func (h *Hub) broadcastEvent(roomID uint, event string, payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		logrus.WithError(err).WithField("event", event).Error("Hub: failed to marshal broadcast payload")
		return
	}
	message, err := json.Marshal(dto.Envelope{Event: event, Data: data})
	if err != nil {
		logrus.WithError(err).WithField("event", event).Error("Hub: failed to marshal broadcast envelope")
		return
	}
	h.broadcastToRoom(roomID, message)
}

// --- service.Broadcaster 实现 ---

// RoomData 向房间内所有连接推送完整快照。
func (h *Hub) RoomData(room *domain.Room) {
	h.broadcastEvent(room.ID, dto.EventRoomData, room)
}

// RolledNumber 广播掷出的点数。
func (h *Hub) RolledNumber(roomID uint, rolledNumber int) {
	h.broadcastEvent(roomID, dto.EventGameRoll, dto.RolledPayload{RolledNumber: rolledNumber})
}

// Scores 广播当前分数与吃子累计。
func (h *Hub) Scores(roomID uint, scores, captures map[domain.Color]int) {
	h.broadcastEvent(roomID, dto.EventGameScores, dto.ScoresPayload{Scores: scores, Captures: captures})
}

// Winner 广播胜者及最终分数。
func (h *Hub) Winner(roomID uint, winner domain.Color, finalScores, finalCaptures map[domain.Color]int) {
	h.broadcastEvent(roomID, dto.EventGameWinner, dto.WinnerPayload{
		Winner:        winner,
		FinalScores:   finalScores,
		FinalCaptures: finalCaptures,
	})
}

// QueueMessage 将消息放入 Hub 的处理队列 (非阻塞)。
// 这是 Client 和 Handler 向 Hub 发送消息的安全方式。
func (h *Hub) QueueMessage(msg HubMessage) bool {
	select {
	case h.messageChan <- msg:
		return true
	default:
		logrus.WithField("message_type", msg.Type).Warn("Hub message channel full, dropping message")
		return false
	}
}

// Close 关闭 Hub 的处理通道，Run 随之退出。
func (h *Hub) Close() {
	close(h.messageChan)
}
