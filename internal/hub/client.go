package hub

import (
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

// WebSocket 读写参数，hub 包内共用
const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 64 * 1024 // SDP 可以到几十 KB
)

// Client 代表一个连接到 Hub 的 WebSocket 客户端。
// 业务状态（房间、角色）不在这里，而在注册表的 Connection 条目上；
// Client 只承担传输：泵送字节、保活、存活标记。
type Client struct {
	id       string // 注册时由 ConnectionRegistry 分配
	hub      *Hub
	conn     *websocket.Conn
	send     chan []byte
	alive    atomic.Bool
	lastPong atomic.Int64 // unix 纳秒

	// sendClosed 标记发送队列已被 Hub 关闭。只在 Hub 的串行事件
	// 路径上读写（注销时置位、enqueue 时检查），无需原子操作。
	// 注销后 h.events 里可能还排着该客户端的帧，enqueue 靠它
	// 避免向已关闭的通道发送。
	sendClosed bool
}

// NewClient 创建一个新的 Client 实例
func NewClient(hub *Hub, conn *websocket.Conn) *Client {
	c := &Client{
		hub:  hub,
		conn: conn,
		send: make(chan []byte, 256),
	}
	c.alive.Store(true)
	c.lastPong.Store(time.Now().UnixNano())
	return c
}

// Run 启动客户端的读写 goroutine
func (c *Client) Run() {
	go c.WritePump()
	go c.ReadPump()
}

// ID 返回注册表分配的连接标识
func (c *Client) ID() string { return c.id }

// Alive 报告传输是否仍然存活（任一泵退出即视为死亡）
func (c *Client) Alive() bool { return c.alive.Load() }

// SincePong 返回距上次收到 pong 的时长，供清扫器判断僵死连接
func (c *Client) SincePong() time.Duration {
	return time.Since(time.Unix(0, c.lastPong.Load()))
}

// enqueue 非阻塞地把一条出站消息放入发送队列。
// 队列已关闭（客户端已注销）时静默丢弃；
// 队列满说明客户端已经跟不上，丢弃并记警告，由泵或清扫器善后。
func (c *Client) enqueue(message []byte) {
	if message == nil || c.sendClosed {
		return
	}
	select {
	case c.send <- message:
	default:
		logrus.WithField("client_id", c.id).Warn("Client send channel full, dropping message")
	}
}

// ReadPump 把消息从 WebSocket 连接泵送到 Hub 的事件通道。
// 每个连接一个 goroutine；所有状态变更都经由 Hub 的串行路径执行。
func (c *Client) ReadPump() {
	defer func() {
		c.alive.Store(false)
		// 请求 Hub 注销此客户端，带超时防止 Hub 已停止时卡死
		select {
		case c.hub.events <- event{kind: eventUnregister, client: c}:
		case <-time.After(time.Second):
			logrus.WithField("client_id", c.id).Warn("Timeout sending unregister event to hub")
		}
		c.conn.Close()
		logrus.WithField("client_id", c.id).Debug("readPump exited")
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.lastPong.Store(time.Now().UnixNano())
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		messageType, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logrus.WithField("client_id", c.id).WithError(err).Warn("WebSocket read error (unexpected close)")
			} else {
				logrus.WithField("client_id", c.id).Debug("WebSocket connection closed")
			}
			break
		}
		if messageType != websocket.TextMessage {
			continue
		}
		// 阻塞发送：单个房间的事件必须按传输交付顺序被 Hub 观察到
		c.hub.events <- event{kind: eventFrame, client: c, data: message}
	}
}

// WritePump 把消息从发送队列泵送到 WebSocket 连接，并周期性发 ping 保活。
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.alive.Store(false)
		c.conn.Close()
		logrus.WithField("client_id", c.id).Debug("writePump exited")
	}()

	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// Hub 在注销时关闭了发送队列
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				logrus.WithField("client_id", c.id).WithError(err).Warn("Failed to write message to websocket")
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				logrus.WithField("client_id", c.id).WithError(err).Warn("Failed to send ping message")
				return
			}
		}
	}
}

// CloseConn 直接关闭底层连接（注册失败等场景）
func (c *Client) CloseConn() {
	c.alive.Store(false)
	if c.conn != nil {
		c.conn.Close()
	}
}
