package repository

import "errors"

// 存储库层错误，供上层用 errors.Is 判断
var (
	// ErrPendingNotFound 邀请不存在或已过期（懒清理把过期行当作不存在）
	ErrPendingNotFound = errors.New("repository: pending not found or expired")
	// ErrAcceptConflict 邀请已被其他客户端抢先接受
	ErrAcceptConflict = errors.New("repository: pending already accepted")
	// ErrDuplicateEntry 唯一约束冲突（如重复且未过期的 join code）
	ErrDuplicateEntry = errors.New("repository: duplicate entry")
	// ErrRoomNotFound 房间记录不存在
	ErrRoomNotFound = errors.New("repository: room not found")
)
