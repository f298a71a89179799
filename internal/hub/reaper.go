package hub

// reapStale 清理传输已死但尚未注销的连接。
// 泵退出时正常会触发 unregister，这里兜底处理那些事件丢失
// 或 pong 长期缺席的僵死连接，走与断开完全相同的清理路径。
// 在事件循环内被周期性调用；负载高时跳过一轮也无妨，下一轮补上。
func (h *Hub) reapStale() {
	staleAfter := 2 * pongWait
	for _, conn := range h.conns.All() {
		client := conn.Client
		if client == nil {
			continue
		}
		if client.Alive() && client.SincePong() < staleAfter {
			continue
		}
		h.log.WithField("client_id", conn.ID).Info("Reaping stale connection")
		client.CloseConn()
		h.disconnect(client)
	}
}
