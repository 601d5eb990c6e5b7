package site

import (
	"strconv"
	"sync/atomic"

	"github.com/google/uuid"
)

// IDAllocator 分配站点 ID
type IDAllocator interface {
	NextID() string
}

// UUIDAllocator 生产环境使用的随机 ID
type UUIDAllocator struct{}

func (UUIDAllocator) NextID() string {
	return uuid.New().String()
}

// CounterAllocator 单调递增 ID（测试中保证结果可预测）
type CounterAllocator struct {
	Prefix string
	n      atomic.Int64
}

func (c *CounterAllocator) NextID() string {
	prefix := c.Prefix
	if prefix == "" {
		prefix = "site-"
	}
	return prefix + strconv.FormatInt(c.n.Add(1), 10)
}
