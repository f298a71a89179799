package websocket

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"peer-rendezvous/internal/hub"
)

// WebSocketHandler 负责把 HTTP 请求升级为 WebSocket 并向 Hub 注册客户端。
// 对端身份不做认证（payload 对服务端不透明，服务端也看不到媒体），
// 加入哪个房间由客户端随后的 join_room 消息决定。
type WebSocketHandler struct {
	upgrader websocket.Upgrader
	hub      *hub.Hub
}

// NewWebSocketHandler 创建 WebSocketHandler 实例
func NewWebSocketHandler(h *hub.Hub) *WebSocketHandler {
	if h == nil {
		panic("Hub cannot be nil for WebSocketHandler")
	}
	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			// TODO: 生产环境按 WEBSOCKET_ALLOWED_ORIGIN 校验来源
			return true
		},
	}
	return &WebSocketHandler{upgrader: upgrader, hub: h}
}

// HandleConnection 处理 GET /ws
func (h *WebSocketHandler) HandleConnection(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade 失败时已经写了 HTTP 错误响应，记日志即可
		logrus.WithError(err).Error("WS Handler: failed to upgrade connection")
		return
	}

	client := hub.NewClient(h.hub, conn)
	if !h.hub.Register(client) {
		logrus.Error("WS Handler: hub event channel full, closing connection")
		client.CloseConn()
		return
	}
	client.Run()
}
