package hub

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"peer-rendezvous/internal/domain"
)

type eventKind int

const (
	eventRegister eventKind = iota
	eventUnregister
	eventFrame
)

// event 是 Hub 事件通道里的一条记录：一条入站传输消息，
// 或者一次生命周期触发（注册/断开）。
type event struct {
	kind   eventKind
	client *Client
	data   []byte
}

// Hub 是汇合点服务的核心：单一串行事件循环，
// 独占持有连接注册表和房间注册表。所有变更都在循环内
// 处理完一个事件再取下一个，两张注册表因此无需加锁，
// 也不可能出现 "连接已删、房间未清" 的半更新状态。
type Hub struct {
	events chan event
	done   chan struct{}

	conns *ConnectionRegistry
	rooms *RoomRegistry

	reapInterval time.Duration
	log          *logrus.Entry
}

// NewHub 创建并返回一个新的 Hub 实例
func NewHub(reapInterval time.Duration) *Hub {
	if reapInterval <= 0 {
		reapInterval = 60 * time.Second
	}
	return &Hub{
		events:       make(chan event, 512),
		done:         make(chan struct{}),
		conns:        NewConnectionRegistry(),
		rooms:        NewRoomRegistry(),
		reapInterval: reapInterval,
		log:          logrus.WithField("component", "hub"),
	}
}

// Run 启动 Hub 的主事件循环，应在单独的 goroutine 中运行。
// 事件逐个处理到完成；清扫器也在同一循环内触发，
// 与消息处理天然互斥。
func (h *Hub) Run() {
	h.log.Info("Hub is running...")
	ticker := time.NewTicker(h.reapInterval)
	defer ticker.Stop()

	for {
		select {
		case ev := <-h.events:
			h.handleEvent(ev)
		case <-ticker.C:
			h.reapStale()
		case <-h.done:
			h.log.Info("Hub is shutting down...")
			return
		}
	}
}

// Stop 停止事件循环
func (h *Hub) Stop() {
	close(h.done)
}

// Register 把新客户端排队注册（从 WebSocket handler 调用）
func (h *Hub) Register(client *Client) bool {
	select {
	case h.events <- event{kind: eventRegister, client: client}:
		return true
	default:
		h.log.Warn("Hub event channel full, rejecting registration")
		return false
	}
}

func (h *Hub) handleEvent(ev event) {
	switch ev.kind {
	case eventRegister:
		h.register(ev.client)
	case eventUnregister:
		h.disconnect(ev.client)
	case eventFrame:
		h.handleFrame(ev.client, ev.data)
	}
}

// register 分配连接标识并发送 connected 问候
func (h *Hub) register(client *Client) {
	if client == nil {
		return
	}
	conn := h.conns.Register(client)
	client.id = conn.ID
	h.log.WithField("client_id", conn.ID).Info("Client connected")
	client.enqueue(connectedEvent(conn.ID))
}

// disconnect 处理传输关闭：与显式 leave 相同的清理，
// 但给对端的通知用 peer_disconnected。
func (h *Hub) disconnect(client *Client) {
	if client == nil || client.id == "" {
		return
	}
	conn := h.conns.Lookup(client.id)
	if conn == nil {
		return
	}
	if conn.RoomID != "" {
		h.removeFromRoom(conn, MsgPeerDisconnected, "Peer disconnected")
	}
	h.conns.Remove(conn.ID)
	// 关闭发送队列让 WritePump 退出。先置位 sendClosed：注销后
	// h.events 里可能仍排着该客户端的帧（尤其是清扫器绕过队列直接
	// 注销时），后续 enqueue 看到标记直接丢弃而不是向已关闭的通道发送。
	// 注册表条目已删除，重复 disconnect 在 Lookup 处提前返回，不会重复关闭。
	client.sendClosed = true
	close(client.send)
	h.log.WithField("client_id", conn.ID).Info("Client disconnected")
}

// handleFrame 按消息类型分发一条入站帧。
// 所有失败都只回给请求方，绝不影响其他连接或进程本身。
func (h *Hub) handleFrame(client *Client, raw []byte) {
	var msg map[string]interface{}
	if err := json.Unmarshal(raw, &msg); err != nil {
		client.enqueue(errorEvent("Invalid JSON format"))
		return
	}
	msgType, _ := msg["type"].(string)

	switch msgType {
	case MsgJoinRoom:
		roomID, _ := msg["roomId"].(string)
		h.handleJoin(client, roomID)
	case MsgLeaveRoom:
		h.handleLeave(client)
	case MsgWebRTCOffer, MsgWebRTCAnswer, MsgICECandidate:
		h.relay(client, msg)
	case MsgPing:
		client.enqueue(pongEvent())
	default:
		client.enqueue(errorEvent(fmt.Sprintf("Unknown message type: %s", msgType)))
	}
}

// handleJoin 处理 join_room。
// 已在别的房间时先隐式离开（通知旧房间的对端），
// 这让重连后不发 leave 直接 join 的客户端也是安全的。
func (h *Hub) handleJoin(client *Client, roomID string) {
	conn := h.conns.Lookup(client.id)
	if conn == nil {
		return
	}
	logCtx := h.log.WithFields(logrus.Fields{"client_id": conn.ID, "room_id": roomID})

	if roomID == "" {
		client.enqueue(errorEvent("Room ID is required"))
		return
	}

	if conn.RoomID != "" && conn.RoomID != roomID {
		logCtx.WithField("old_room_id", conn.RoomID).Debug("Implicit leave before join")
		h.removeFromRoom(conn, MsgPeerLeft, "Peer left the room")
	}

	role, occupancy, err := h.rooms.Join(roomID, conn.ID)
	if err != nil {
		logCtx.Debug("Join rejected, room is full")
		client.enqueue(roomFullEvent(roomID))
		return
	}
	conn.RoomID = roomID
	conn.Role = role

	ready := occupancy == domain.MaxRoomSize
	client.enqueue(roomJoinedEvent(roomID, occupancy, role == domain.RoleInitiator, ready))
	logCtx.WithFields(logrus.Fields{"role": role, "occupancy": occupancy}).Info("Client joined room")

	if ready {
		// 双方各收到一份带自己角色的 ready 事件，角色从注册表现读
		for _, memberID := range h.rooms.Members(roomID) {
			member := h.conns.Lookup(memberID)
			if member == nil {
				continue
			}
			memberRole := h.rooms.RoleOf(roomID, memberID)
			member.Role = memberRole
			member.Client.enqueue(roomReadyEvent(roomID, occupancy, memberRole == domain.RoleInitiator))
		}
		logCtx.Info("Room is ready")
	}
}

// handleLeave 处理 leave_room，幂等：未加入任何房间时
// 回一个 roomId 为 null 的确认，不算错误。
func (h *Hub) handleLeave(client *Client) {
	conn := h.conns.Lookup(client.id)
	if conn == nil {
		return
	}
	if conn.RoomID == "" {
		client.enqueue(leftRoomEvent(""))
		return
	}
	roomID := conn.RoomID
	h.removeFromRoom(conn, MsgPeerLeft, "Peer left the room")
	client.enqueue(leftRoomEvent(roomID))
	h.log.WithFields(logrus.Fields{"client_id": conn.ID, "room_id": roomID}).Info("Client left room")
}

// relay 把 offer/answer/ICE 原样转发给房间里的另一名成员。
// payload 是不透明的：除注入 from 和 roomId 外不检查、不改写。
func (h *Hub) relay(client *Client, msg map[string]interface{}) {
	conn := h.conns.Lookup(client.id)
	if conn == nil {
		return
	}
	if conn.RoomID == "" {
		client.enqueue(errorEvent("Not in a room"))
		return
	}
	if h.rooms.Occupancy(conn.RoomID) != domain.MaxRoomSize {
		client.enqueue(errorEvent("Room is not ready"))
		return
	}

	msg["from"] = conn.ID
	msg["roomId"] = conn.RoomID
	data := encode(msg)
	if data == nil {
		return
	}

	// 容量 2 的房间里 "其他成员" 至多一个，但按集合转发，语义更清晰
	for _, peerID := range h.rooms.PeersOf(conn.RoomID, conn.ID) {
		peer := h.conns.Lookup(peerID)
		if peer == nil || !peer.Client.Alive() {
			// 对端刚断开、断开通知还在路上：静默丢弃，不算发送方的错误
			h.log.WithFields(logrus.Fields{"from": conn.ID, "to": peerID}).Debug("Peer transport not live, dropping relayed message")
			continue
		}
		peer.Client.enqueue(data)
	}
}

// removeFromRoom 把连接移出其当前房间并通知留下的对端。
// notifyKind 区分显式离开（peer_left）和传输断开（peer_disconnected），
// 清理语义完全相同。
func (h *Hub) removeFromRoom(conn *Connection, notifyKind, notifyMessage string) {
	roomID := conn.RoomID
	peers := h.rooms.PeersOf(roomID, conn.ID)
	remaining := h.rooms.Leave(roomID, conn.ID)

	for _, peerID := range peers {
		peer := h.conns.Lookup(peerID)
		if peer == nil || !peer.Client.Alive() {
			continue
		}
		peer.Client.enqueue(peerGoneEvent(notifyKind, notifyMessage))
	}
	if remaining == 0 {
		h.log.WithField("room_id", roomID).Debug("Room empty, removed")
	}
	conn.RoomID = ""
	conn.Role = domain.RoleNone
}

// ActiveRooms 返回当前存活房间数（运维观测用）
func (h *Hub) ActiveRooms() int {
	return len(h.rooms.rooms)
}
