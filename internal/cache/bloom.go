package cache

import (
	"sync"

	"github.com/bits-and-blooms/bloom/v3"
)

// CodeFilter 已占用短码的布隆过滤器
//
// MightExist 返回 false 表示短码一定没有被本实例见过，可以跳过存在性查询直接尝试插入；
// 插入本身仍然是原子的，多实例下漏判只会让插入返回冲突。
type CodeFilter struct {
	filter *bloom.BloomFilter
	mu     sync.RWMutex
}

// NewCodeFilter 创建过滤器
// expectedItems: 预期元素数量
// falsePositiveRate: 误判率（建议 0.01）
func NewCodeFilter(expectedItems uint, falsePositiveRate float64) *CodeFilter {
	return &CodeFilter{
		filter: bloom.NewWithEstimates(expectedItems, falsePositiveRate),
	}
}

// Add 记录一个已占用的短码
func (f *CodeFilter) Add(code string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.filter.AddString(code)
}

// MightExist 检查短码是否可能已被占用
func (f *CodeFilter) MightExist(code string) bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.filter.TestString(code)
}

// Count 已添加元素数量（估算）
func (f *CodeFilter) Count() uint32 {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.filter.ApproximatedSize()
}
