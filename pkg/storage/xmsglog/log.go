package xmsglog

import "sync"

// Log 并发安全的只追加消息记录。
// 零值可直接使用。
type Log struct {
	mu      sync.RWMutex
	entries []string
}

// New 创建空的 Log
func New() *Log {
	return &Log{}
}

// Append 追加一条记录。锁只覆盖切片追加本身。
func (l *Log) Append(payload string) {
	l.mu.Lock()
	l.entries = append(l.entries, payload)
	l.mu.Unlock()
}

// Snapshot 按追加顺序返回当前全部记录的副本，调用方可随意修改。
// 空 Log 返回非 nil 的空切片。
func (l *Log) Snapshot() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]string, len(l.entries))
	copy(out, l.entries)
	return out
}

// Len 返回记录条数
func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}

// Reset 清空记录
func (l *Log) Reset() {
	l.mu.Lock()
	l.entries = nil
	l.mu.Unlock()
}
