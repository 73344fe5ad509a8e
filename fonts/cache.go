package fonts

import (
	"fmt"
	"os"
	"sync"
)

type cacheKey struct {
	face string
	file string
}

// Cache 是进程级的字体对象缓存，以 (字体名, 文件路径) 为键。
// 条目只增不改，并发转换可共享同一个 Cache。
type Cache struct {
	mu      sync.Mutex
	entries map[cacheKey]*Font
}

// NewCache 创建一个空缓存。
func NewCache() *Cache {
	return &Cache{entries: map[cacheKey]*Font{}}
}

// Load 返回 (face, file) 对应的字体，首次访问时读取文件。nil Cache 不做缓存。
func (c *Cache) Load(face, file string, index int) (*Font, error) {
	if f, ok := c.lookup(face, file); ok {
		return f, nil
	}
	data, err := os.ReadFile(file)
	if err != nil {
		return nil, fmt.Errorf("读取字体文件 %s 失败: %w", file, err)
	}
	return c.store(&Font{Name: face, File: file, Index: index, Data: data}), nil
}

// Len 返回缓存条目数。
func (c *Cache) Len() int {
	if c == nil {
		return 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *Cache) lookup(face, file string) (*Font, bool) {
	if c == nil {
		return nil, false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	f, ok := c.entries[cacheKey{face, file}]
	return f, ok
}

// store 插入新条目；并发读取同一文件时先写入者胜出。
func (c *Cache) store(f *Font) *Font {
	if c == nil {
		return f
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.entries == nil {
		c.entries = map[cacheKey]*Font{}
	}
	key := cacheKey{f.Name, f.File}
	if existing, ok := c.entries[key]; ok {
		return existing
	}
	c.entries[key] = f
	return f
}
