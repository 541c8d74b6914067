package remediation

import (
	"sync"
)

// linkLocks 按链路键做互斥：同一条链路上的工作流串行执行，
// 不同链路互不阻塞。锁对象按需创建后常驻，数量以链路数为上界。
type linkLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newLinkLocks() *linkLocks {
	return &linkLocks{locks: make(map[string]*sync.Mutex)}
}

// acquire 锁住指定链路键，返回解锁函数。
func (l *linkLocks) acquire(key string) func() {
	l.mu.Lock()
	lock, ok := l.locks[key]
	if !ok {
		lock = &sync.Mutex{}
		l.locks[key] = lock
	}
	l.mu.Unlock()

	lock.Lock()
	return lock.Unlock
}
