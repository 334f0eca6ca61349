package websocket

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"ludo-server/internal/domain"
	"ludo-server/internal/hub"
	"ludo-server/internal/service"
)

// WebSocketHandler 负责处理 WebSocket 升级请求和客户端注册。
// 连接可以不带凭据建立 (新玩家从大厅开始)；带 token 查询参数的
// 连接会先恢复会话，注册后直接回到原来的房间。
type WebSocketHandler struct {
	upgrader       websocket.Upgrader
	hub            *hub.Hub
	sessionService *service.SessionService
}

// NewWebSocketHandler 创建 WebSocketHandler 实例
func NewWebSocketHandler(hubInstance *hub.Hub, sessionService *service.SessionService) *WebSocketHandler {
	if hubInstance == nil {
		panic("Hub cannot be nil for WebSocketHandler")
	}
	if sessionService == nil {
		panic("SessionService cannot be nil for WebSocketHandler")
	}

	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		// 允许所有来源连接 (生产环境应配置具体的允许来源)
		CheckOrigin: func(r *http.Request) bool {
			return true
		},
	}

	return &WebSocketHandler{
		upgrader:       upgrader,
		hub:            hubInstance,
		sessionService: sessionService,
	}
}

// HandleConnection 处理 WebSocket 连接请求。
// URL 格式: /ws?token=<可选的会话令牌>
func (h *WebSocketHandler) HandleConnection(c *gin.Context) {
	logCtx := logrus.WithField("client_ip", c.ClientIP())

	// 1. 尝试恢复会话 (令牌可选，无效令牌按无会话处理)
	session, err := h.resolveSession(c)
	if err != nil {
		logCtx.WithError(err).Warn("WS Handler: invalid session token, connecting without session")
		session = nil
	}
	if session != nil {
		logCtx = logCtx.WithFields(logrus.Fields{
			"room_id":   session.RoomID,
			"player_id": session.PlayerID,
		})
	}

	// 2. 升级 HTTP 连接到 WebSocket
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade 失败时已经写了 HTTP 错误响应，这里只记录日志
		logCtx.WithError(err).Error("WS Handler: Failed to upgrade connection")
		return
	}
	logCtx.Info("WS Handler: Connection upgraded to WebSocket")

	// 3. 创建 Client 并注册到 Hub
	client := hub.NewClient(h.hub, conn, session)
	registerMsg := hub.HubMessage{Type: "register", Client: client}
	if !h.hub.QueueMessage(registerMsg) {
		logCtx.Error("WS Handler: Hub message channel full, failed to register client")
		client.CloseConn()
		return
	}

	// 4. 启动客户端的读写 goroutine，后续通信全部由它们处理
	client.Run()
}

func (h *WebSocketHandler) resolveSession(c *gin.Context) (*domain.Session, error) {
	token := c.Query("token")
	if token == "" {
		return nil, nil
	}
	return h.sessionService.Resolve(c.Request.Context(), token)
}
