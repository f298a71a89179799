// Package mocks 提供 repository 接口的 testify mock 实现，供 service 层单元测试使用。
package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"peer-rendezvous/internal/domain"
)

// PairingRepository 是 repository.PairingRepository 的 mock 实现
type PairingRepository struct {
	mock.Mock
}

func (m *PairingRepository) CreatePending(ctx context.Context, pending *domain.Pending) error {
	args := m.Called(ctx, pending)
	return args.Error(0)
}

func (m *PairingRepository) AcceptPending(ctx context.Context, joinID, client2, roomID string, push *domain.PushMeta) (*domain.Pending, error) {
	args := m.Called(ctx, joinID, client2, roomID, push)
	var pending *domain.Pending
	if args.Get(0) != nil {
		pending = args.Get(0).(*domain.Pending)
	}
	return pending, args.Error(1)
}

func (m *PairingRepository) FindPending(ctx context.Context, joinID, client1 string) (*domain.Pending, error) {
	args := m.Called(ctx, joinID, client1)
	var pending *domain.Pending
	if args.Get(0) != nil {
		pending = args.Get(0).(*domain.Pending)
	}
	return pending, args.Error(1)
}

func (m *PairingRepository) DeletePending(ctx context.Context, joinID, client1 string) (int64, error) {
	args := m.Called(ctx, joinID, client1)
	return args.Get(0).(int64), args.Error(1)
}

func (m *PairingRepository) FindRoom(ctx context.Context, roomID string) (*domain.PairedRoom, error) {
	args := m.Called(ctx, roomID)
	var room *domain.PairedRoom
	if args.Get(0) != nil {
		room = args.Get(0).(*domain.PairedRoom)
	}
	return room, args.Error(1)
}

func (m *PairingRepository) DeleteRoom(ctx context.Context, roomID string) error {
	args := m.Called(ctx, roomID)
	return args.Error(0)
}

func (m *PairingRepository) PurgeByIdentity(ctx context.Context, ids []string) (int64, int64, error) {
	args := m.Called(ctx, ids)
	return args.Get(0).(int64), args.Get(1).(int64), args.Error(2)
}

func (m *PairingRepository) SweepExpired(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}
