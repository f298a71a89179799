package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"peer-rendezvous/internal/domain"
	"peer-rendezvous/internal/service"
)

// PairingHandler 封装持久化配对流程的 HTTP 处理逻辑
type PairingHandler struct {
	pairingService *service.PairingService
}

// NewPairingHandler 创建 PairingHandler 实例
func NewPairingHandler(pairingService *service.PairingService) *PairingHandler {
	if pairingService == nil {
		panic("PairingService cannot be nil for PairingHandler")
	}
	return &PairingHandler{pairingService: pairingService}
}

// CreatePendingRequest 创建邀请的请求体。
// 过期只能以相对秒数表达，绝对时间戳一律不收。
type CreatePendingRequest struct {
	JoinID           string `json:"joinid" binding:"required"`
	Client1          string `json:"client1" binding:"required"`
	ExpiresInSeconds int    `json:"expiresInSeconds" binding:"required"`
	PushToken        string `json:"pushToken"`
	PushPlatform     string `json:"pushPlatform"`
}

// CreatePending 处理 POST /api/pairing/pending
func (h *PairingHandler) CreatePending(c *gin.Context) {
	var req CreatePendingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logrus.WithError(err).Warn("Handler.CreatePending: invalid input")
		ErrorResponse(c, http.StatusBadRequest, "joinid, client1 and expiresInSeconds are required")
		return
	}

	expiresAt, err := h.pairingService.CreatePending(c.Request.Context(), req.JoinID, req.Client1, req.ExpiresInSeconds, pushMeta(req.PushToken, req.PushPlatform))
	if err != nil {
		HandleServiceError(c, err)
		return
	}

	SuccessResponse(c, http.StatusCreated, gin.H{
		"ok":  true,
		"exp": expiresAt.UTC().Format(time.RFC3339),
	})
}

// AcceptPendingRequest 接受邀请的请求体
type AcceptPendingRequest struct {
	JoinID       string `json:"joinid" binding:"required"`
	Client2      string `json:"client2" binding:"required"`
	PushToken    string `json:"pushToken"`
	PushPlatform string `json:"pushPlatform"`
}

// AcceptPending 处理 POST /api/pairing/accept
func (h *PairingHandler) AcceptPending(c *gin.Context) {
	var req AcceptPendingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logrus.WithError(err).Warn("Handler.AcceptPending: invalid input")
		ErrorResponse(c, http.StatusBadRequest, "joinid and client2 are required")
		return
	}

	roomID, err := h.pairingService.AcceptPending(c.Request.Context(), req.JoinID, req.Client2, pushMeta(req.PushToken, req.PushPlatform))
	if err != nil {
		HandleServiceError(c, err)
		return
	}

	SuccessResponse(c, http.StatusOK, gin.H{"roomid": roomID})
}

// CheckPendingRequest 创建者确认读取的请求体
type CheckPendingRequest struct {
	JoinID  string `json:"joinid" binding:"required"`
	Client1 string `json:"client1" binding:"required"`
}

// CheckPending 处理 POST /api/pairing/check。
// 已接受回 200 + roomid；仍在等待回 204；不存在或过期回 404。
func (h *PairingHandler) CheckPending(c *gin.Context) {
	var req CheckPendingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logrus.WithError(err).Warn("Handler.CheckPending: invalid input")
		ErrorResponse(c, http.StatusBadRequest, "joinid and client1 are required")
		return
	}

	roomID, err := h.pairingService.CheckPending(c.Request.Context(), req.JoinID, req.Client1)
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	if roomID == "" {
		c.Status(http.StatusNoContent)
		return
	}
	SuccessResponse(c, http.StatusOK, gin.H{"roomid": roomID})
}

// DeletePendingRequest 删除邀请的请求体
type DeletePendingRequest struct {
	JoinID  string `json:"joinid" binding:"required"`
	Client1 string `json:"client1" binding:"required"`
}

// DeletePending 处理 DELETE /api/pairing/pending，幂等
func (h *PairingHandler) DeletePending(c *gin.Context) {
	var req DeletePendingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logrus.WithError(err).Warn("Handler.DeletePending: invalid input")
		ErrorResponse(c, http.StatusBadRequest, "joinid and client1 are required")
		return
	}

	deleted, err := h.pairingService.DeletePending(c.Request.Context(), req.JoinID, req.Client1)
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, gin.H{"deleted": deleted})
}

// GetRoom 处理 GET /api/pairing/room?roomid=...
func (h *PairingHandler) GetRoom(c *gin.Context) {
	roomID := c.Query("roomid")
	if roomID == "" {
		ErrorResponse(c, http.StatusBadRequest, "roomid is required")
		return
	}

	room, err := h.pairingService.GetRoom(c.Request.Context(), roomID)
	if err != nil {
		HandleServiceError(c, err)
		return
	}

	resp := gin.H{
		"roomid":  room.RoomID,
		"client1": room.Client1,
		"client2": room.Client2,
	}
	if room.PushToken1 != nil {
		resp["pushToken1"] = *room.PushToken1
	}
	if room.PushPlatform1 != nil {
		resp["pushPlatform1"] = *room.PushPlatform1
	}
	if room.PushToken2 != nil {
		resp["pushToken2"] = *room.PushToken2
	}
	if room.PushPlatform2 != nil {
		resp["pushPlatform2"] = *room.PushPlatform2
	}
	SuccessResponse(c, http.StatusOK, resp)
}

// DeleteRoomRequest 删除房间记录的请求体
type DeleteRoomRequest struct {
	RoomID string `json:"roomid" binding:"required"`
}

// DeleteRoom 处理 DELETE /api/pairing/room，幂等
func (h *PairingHandler) DeleteRoom(c *gin.Context) {
	var req DeleteRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logrus.WithError(err).Warn("Handler.DeleteRoom: invalid input")
		ErrorResponse(c, http.StatusBadRequest, "roomid is required")
		return
	}

	if err := h.pairingService.DeleteRoom(c.Request.Context(), req.RoomID); err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, gin.H{"ok": true})
}

// PurgeRequest 隐私清除请求体。
// 首选批量的 deviceIds 数组；兼容旧客户端的单个 deviceId 字段。
type PurgeRequest struct {
	DeviceIDs []string `json:"deviceIds"`
	DeviceID  string   `json:"deviceId"`
}

// PurgeByIdentity 处理 POST /api/pairing/purge
func (h *PairingHandler) PurgeByIdentity(c *gin.Context) {
	var req PurgeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logrus.WithError(err).Warn("Handler.PurgeByIdentity: invalid input")
		ErrorResponse(c, http.StatusBadRequest, "deviceIds array or deviceId is required")
		return
	}

	ids := req.DeviceIDs
	if len(ids) == 0 && req.DeviceID != "" {
		ids = []string{req.DeviceID}
	}
	if len(ids) == 0 {
		ErrorResponse(c, http.StatusBadRequest, "deviceIds array or deviceId is required")
		return
	}

	roomsDeleted, pendingsDeleted, err := h.pairingService.PurgeByIdentity(c.Request.Context(), ids)
	if err != nil {
		HandleServiceError(c, err)
		return
	}

	SuccessResponse(c, http.StatusOK, gin.H{
		"deviceIdCount":   len(ids),
		"roomsDeleted":    roomsDeleted,
		"pendingsDeleted": pendingsDeleted,
	})
}

// pushMeta token 为空时视为未提供
func pushMeta(token, platform string) *domain.PushMeta {
	if token == "" {
		return nil
	}
	return &domain.PushMeta{Token: token, Platform: platform}
}
