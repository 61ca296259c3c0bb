// internal/zookeeper/lock.go
package zookeeper

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/go-zookeeper/zk"
)

const (
	lockRoot = "/distributed_locks" // 所有分布式锁的根节点
)

// ErrNotLocked 在未持有锁时调用 Unlock 返回。
var ErrNotLocked = errors.New("no lock to unlock")

// Conn 封装 ZooKeeper 会话。
type Conn struct {
	*zk.Conn
}

// Connect 建立一个 ZooKeeper 会话。
func Connect(addrs []string, sessionTimeout time.Duration) (*Conn, error) {
	conn, _, err := zk.Connect(addrs, sessionTimeout)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to zookeeper: %w", err)
	}
	return &Conn{Conn: conn}, nil
}

// DistributedLock 基于临时顺序节点实现的分布式锁。
// 彼此竞争同一 resourceID 的进程中，只有创建出最小序号节点的那个持有锁；
// 会话断开后临时节点被 ZooKeeper 自动清理，锁随之释放。
type DistributedLock struct {
	conn     *Conn
	path     string // 锁的路径，例如 /distributed_locks/expiry-sweeper
	lockNode string // 成功获取锁后，自己创建的节点路径
}

// NewDistributedLock 创建一个新的分布式锁实例。
func NewDistributedLock(conn *Conn, resourceID string) (*DistributedLock, error) {
	// 确保根节点和锁的父节点存在
	for _, p := range []string{lockRoot, lockRoot + "/" + resourceID} {
		exists, _, err := conn.Exists(p)
		if err != nil {
			return nil, fmt.Errorf("failed to check lock node %s: %w", p, err)
		}
		if !exists {
			if _, err := conn.Create(p, []byte(""), 0, zk.WorldACL(zk.PermAll)); err != nil && err != zk.ErrNodeExists {
				return nil, fmt.Errorf("failed to create lock node %s: %w", p, err)
			}
		}
	}

	return &DistributedLock{
		conn: conn,
		path: lockRoot + "/" + resourceID,
	}, nil
}

// TryLock 非阻塞地尝试获取锁。
// 拿不到锁时立即删除自己的候选节点并返回 false，适合周期性任务的
// 领导者选举: 每个扫描周期尝试一次，失败就跳过本轮。
func (l *DistributedLock) TryLock() (bool, error) {
	if l.lockNode != "" {
		// 已持有锁，校验节点是否还在（会话可能曾经断开）
		exists, _, err := l.conn.Exists(l.lockNode)
		if err != nil {
			return false, fmt.Errorf("failed to check own lock node: %w", err)
		}
		if exists {
			return true, nil
		}
		l.lockNode = ""
	}

	nodePath, err := l.conn.CreateProtectedEphemeralSequential(l.path+"/lock-", []byte(""), zk.WorldACL(zk.PermAll))
	if err != nil {
		return false, fmt.Errorf("failed to create sequential node: %w", err)
	}

	children, _, err := l.conn.Children(l.path)
	if err != nil {
		return false, fmt.Errorf("failed to get children nodes: %w", err)
	}
	sort.Strings(children)

	myNodeName := strings.TrimPrefix(nodePath, l.path+"/")
	if myNodeName == children[0] {
		l.lockNode = nodePath
		return true, nil
	}

	// 没抢到，清理自己的候选节点
	if err := l.conn.Delete(nodePath, -1); err != nil && err != zk.ErrNoNode {
		return false, fmt.Errorf("failed to clean up candidate node: %w", err)
	}
	return false, nil
}

// Lock 阻塞式获取锁，通过 Watch 前一个节点排队等待。
func (l *DistributedLock) Lock() error {
	nodePath, err := l.conn.CreateProtectedEphemeralSequential(l.path+"/lock-", []byte(""), zk.WorldACL(zk.PermAll))
	if err != nil {
		return fmt.Errorf("failed to create sequential node: %w", err)
	}
	l.lockNode = nodePath

	for {
		children, _, err := l.conn.Children(l.path)
		if err != nil {
			return fmt.Errorf("failed to get children nodes: %w", err)
		}
		sort.Strings(children)

		myNodeName := strings.TrimPrefix(l.lockNode, l.path+"/")
		if myNodeName == children[0] {
			return nil
		}

		// 监听前一个节点，它被删除时重新竞争
		prevNodeIndex := -1
		for i, child := range children {
			if child == myNodeName {
				prevNodeIndex = i - 1
				break
			}
		}
		if prevNodeIndex < 0 {
			return errors.New("cannot find previous node, something is wrong")
		}
		prevNodePath := l.path + "/" + children[prevNodeIndex]

		_, _, eventChan, err := l.conn.ExistsW(prevNodePath)
		if err != nil {
			if err == zk.ErrNoNode {
				continue
			}
			return fmt.Errorf("failed to watch previous node: %w", err)
		}

		select {
		case event := <-eventChan:
			if event.Type == zk.EventNodeDeleted {
				continue
			}
		case <-time.After(30 * time.Second):
			return errors.New("timeout waiting for lock")
		}
	}
}

// Unlock 释放锁。
func (l *DistributedLock) Unlock() error {
	if l.lockNode == "" {
		return ErrNotLocked
	}
	err := l.conn.Delete(l.lockNode, -1)
	if err != nil && err != zk.ErrNoNode {
		return fmt.Errorf("failed to delete lock node: %w", err)
	}
	l.lockNode = ""
	return nil
}
