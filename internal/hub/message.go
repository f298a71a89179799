package hub

import (
	"encoding/json"

	"github.com/sirupsen/logrus"
)

// 客户端 → 服务端的消息类型
const (
	MsgJoinRoom     = "join_room"
	MsgLeaveRoom    = "leave_room"
	MsgWebRTCOffer  = "webrtc_offer"
	MsgWebRTCAnswer = "webrtc_answer"
	MsgICECandidate = "ice_candidate"
	MsgPing         = "ping"
)

// 服务端 → 客户端的消息类型
const (
	MsgConnected        = "connected"
	MsgRoomJoined       = "room_joined"
	MsgRoomReady        = "room_ready"
	MsgRoomFull         = "room_full"
	MsgPeerLeft         = "peer_left"
	MsgPeerDisconnected = "peer_disconnected"
	MsgLeftRoom         = "left_room"
	MsgError            = "error"
	MsgPong             = "pong"
)

// encode 序列化一条出站消息，失败时记日志并返回 nil（调用方跳过发送）
func encode(v interface{}) []byte {
	data, err := json.Marshal(v)
	if err != nil {
		logrus.WithError(err).Error("Failed to marshal outbound message")
		return nil
	}
	return data
}

func connectedEvent(clientID string) []byte {
	return encode(map[string]interface{}{
		"type":     MsgConnected,
		"clientId": clientID,
	})
}

func roomJoinedEvent(roomID string, userCount int, isInitiator, ready bool) []byte {
	return encode(map[string]interface{}{
		"type":        MsgRoomJoined,
		"roomId":      roomID,
		"userCount":   userCount,
		"isInitiator": isInitiator,
		"ready":       ready,
	})
}

// roomReadyEvent 按成员各自的角色单独构造
func roomReadyEvent(roomID string, userCount int, isInitiator bool) []byte {
	return encode(map[string]interface{}{
		"type":        MsgRoomReady,
		"roomId":      roomID,
		"userCount":   userCount,
		"isInitiator": isInitiator,
	})
}

func roomFullEvent(roomID string) []byte {
	return encode(map[string]interface{}{
		"type":   MsgRoomFull,
		"error":  "Room is full",
		"roomId": roomID,
	})
}

func peerGoneEvent(kind, message string) []byte {
	return encode(map[string]interface{}{
		"type":    kind,
		"message": message,
	})
}

// leftRoomEvent roomID 为空时序列化为 null（重复 leave 的幂等应答）
func leftRoomEvent(roomID string) []byte {
	var v interface{}
	if roomID != "" {
		v = roomID
	}
	return encode(map[string]interface{}{
		"type":   MsgLeftRoom,
		"roomId": v,
	})
}

func errorEvent(message string) []byte {
	return encode(map[string]interface{}{
		"type":  MsgError,
		"error": message,
	})
}

func pongEvent() []byte {
	return encode(map[string]interface{}{"type": MsgPong})
}
