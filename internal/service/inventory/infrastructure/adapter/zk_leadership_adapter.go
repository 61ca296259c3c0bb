// internal/service/inventory/infrastructure/adapter/zk_leadership_adapter.go
package adapter

import (
	"errors"

	"stocknexus/internal/zookeeper"
)

// ZkLeadershipAdapter 用 ZooKeeper 分布式锁实现扫描器的领导者选举。
// 多实例部署时只有持锁实例执行回收；实例崩溃后临时节点被清理，
// 领导权自动转移到下一个尝试的实例。
type ZkLeadershipAdapter struct {
	lock *zookeeper.DistributedLock
}

// NewZkLeadershipAdapter 创建领导者选举适配器。
func NewZkLeadershipAdapter(conn *zookeeper.Conn, resourceID string) (*ZkLeadershipAdapter, error) {
	lock, err := zookeeper.NewDistributedLock(conn, resourceID)
	if err != nil {
		return nil, err
	}
	return &ZkLeadershipAdapter{lock: lock}, nil
}

// TryAcquire 实现 application.Leadership。
// 已持有领导权时直接返回 true，否则非阻塞地竞争一次。
func (a *ZkLeadershipAdapter) TryAcquire() (bool, error) {
	return a.lock.TryLock()
}

// Release 主动让出领导权，优雅关停时调用。从未当选过的实例无事可做。
func (a *ZkLeadershipAdapter) Release() error {
	if err := a.lock.Unlock(); err != nil && !errors.Is(err, zookeeper.ErrNotLocked) {
		return err
	}
	return nil
}
