package idgen

import (
	"sync"
	"time"
)

const (
	// 自定义纪元：2025-01-01 00:00:00 UTC（Unix 时间戳：秒）
	// 从这个时间开始计算，可以显著缩短 ID 长度
	customEpoch = 1735689600

	// 序列号位数：6位（每秒最多生成 64 个 ID）
	// 工作流运行频率远低于该上限
	seqBits = 6
	seqMask = (1 << seqBits) - 1
)

// Generator 生成工作流运行 ID：时间戳（秒）左移 6 位 + 秒内序列号。
type Generator struct {
	mu     sync.Mutex // 保护并发访问
	lastTs int64      // 上一次生成 ID 的时间戳（秒）
	seq    int64      // 当前秒内的序列号（0-63）
}

// New 创建 ID 生成器实例。
func New() *Generator {
	return &Generator{}
}

func (g *Generator) NextID() uint64 {
	g.mu.Lock()
	defer g.mu.Unlock()

	ts := time.Now().Unix() - customEpoch

	if ts == g.lastTs {
		// 同一秒内，序列号递增
		g.seq = (g.seq + 1) & seqMask
		if g.seq == 0 {
			// 当前秒的序列号用完了，等待下一秒
			for ts <= g.lastTs {
				time.Sleep(time.Millisecond)
				ts = time.Now().Unix() - customEpoch
			}
		}
	} else {
		// 新的一秒，重置序列号
		g.seq = 0
	}

	g.lastTs = ts

	return uint64(ts)<<seqBits | uint64(g.seq)
}
