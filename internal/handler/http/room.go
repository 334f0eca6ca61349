package http

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"ludo-server/internal/dto"
	"ludo-server/internal/repository"
	"ludo-server/internal/service"
)

// RoomHandler 封装了房间的只读 HTTP 查询接口。
// 房间的创建与加入走 WebSocket 事件，这里只服务大厅页面的初始加载。
type RoomHandler struct {
	roomService *service.RoomService
	roomRepo    repository.RoomRepository
}

// NewRoomHandler 创建 RoomHandler 实例
func NewRoomHandler(roomService *service.RoomService, roomRepo repository.RoomRepository) *RoomHandler {
	if roomService == nil {
		panic("RoomService cannot be nil for RoomHandler")
	}
	if roomRepo == nil {
		panic("RoomRepository cannot be nil for RoomHandler")
	}
	return &RoomHandler{roomService: roomService, roomRepo: roomRepo}
}

// ListRooms 处理 GET /api/rooms，返回大厅列表。
func (h *RoomHandler) ListRooms(c *gin.Context) {
	rooms, err := h.roomService.ListRooms(c.Request.Context())
	if err != nil {
		logrus.WithError(err).Error("Handler.ListRooms: failed to list rooms")
		ErrorResponse(c, http.StatusInternalServerError, "Failed to list rooms")
		return
	}

	summaries := make([]dto.RoomSummary, 0, len(rooms))
	for i := range rooms {
		summaries = append(summaries, dto.NewRoomSummary(&rooms[i]))
	}
	SuccessResponse(c, http.StatusOK, summaries)
}

// GetRoom 处理 GET /api/rooms/:roomId，返回单个房间的列表条目。
func (h *RoomHandler) GetRoom(c *gin.Context) {
	idStr := c.Param("roomId")
	id, err := strconv.ParseUint(idStr, 10, 32)
	if err != nil {
		ErrorResponse(c, http.StatusBadRequest, "Invalid room ID format")
		return
	}

	room, err := h.roomRepo.FindByID(c.Request.Context(), uint(id))
	if err != nil {
		if errors.Is(err, repository.ErrRoomNotFound) {
			ErrorResponse(c, http.StatusNotFound, "Room not found")
			return
		}
		logrus.WithError(err).WithField("room_id", id).Error("Handler.GetRoom: failed to load room")
		ErrorResponse(c, http.StatusInternalServerError, "Failed to load room")
		return
	}
	SuccessResponse(c, http.StatusOK, dto.NewRoomSummary(room))
}
