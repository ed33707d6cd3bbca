package application

import "sync"

// 撮合与资金操作共用的全局锁名，保证整个引擎同一时刻只有一个关键段在执行。
const lockMaster = "master"

// LockSet 命名互斥锁集合
// 每个名字对应一把容量为 1 的通道锁，阻塞的抢锁方按到达顺序获得锁。
type LockSet struct {
	mu    sync.Mutex
	locks map[string]chan struct{}
}

// NewLockSet 创建锁集合
func NewLockSet() *LockSet {
	return &LockSet{locks: make(map[string]chan struct{})}
}

func (s *LockSet) lock(name string) chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	ch, ok := s.locks[name]
	if !ok {
		ch = make(chan struct{}, 1)
		s.locks[name] = ch
	}
	return ch
}

// Acquire 获取命名锁，返回释放函数
func (s *LockSet) Acquire(name string) func() {
	ch := s.lock(name)
	ch <- struct{}{}
	return func() { <-ch }
}
