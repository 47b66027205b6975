package buffer

import (
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/jobala/rtstore/util"
)

const INVALID_OFFSET int64 = -1

// Page is anything the cache can hold: it is keyed by its page offset and
// can write itself back before being dropped.
type Page interface {
	Offset() int64
	Flush() error
}

func NewNodeCache[P Page](capacity int, logger *zap.Logger) *NodeCache[P] {
	if capacity < 1 {
		capacity = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &NodeCache[P]{
		capacity: capacity,
		nodes:    make(map[int64]*lruNode[P], capacity),
		lru:      newLruList[P](),
		logger:   logger.Named("cache"),
	}
}

// GetOrLoad returns the cached page at offset, marking it most recently used.
// On a miss load is called once and its result is inserted.
func (c *NodeCache[P]) GetOrLoad(offset int64, load func(offset int64) (P, error)) (P, error) {
	if node, ok := c.nodes[offset]; ok {
		c.lru.moveToFront(node)
		return node.page, nil
	}

	page, err := load(offset)
	if err != nil {
		var zero P
		return zero, err
	}

	if err := c.Put(page); err != nil {
		var zero P
		return zero, err
	}

	return page, nil
}

// Put inserts page, or refreshes its recency if it is already cached. A
// different instance at an offset that is already cached is rejected, so
// the cached one keeps its pending changes. When the cache is full the least
// recently used page is flushed and dropped first; if that flush fails
// nothing changes and the error is returned.
func (c *NodeCache[P]) Put(page P) error {
	offset := page.Offset()
	if offset == INVALID_OFFSET {
		return util.NotAllocated("cannot cache a page without an offset")
	}

	if node, ok := c.nodes[offset]; ok {
		if any(node.page) != any(page) {
			return util.Duplicate("offset %d is already cached as another instance", offset)
		}
		c.lru.moveToFront(node)
		return nil
	}

	if len(c.nodes) >= c.capacity {
		if err := c.evict(); err != nil {
			return err
		}
	}

	node := &lruNode[P]{offset: offset, page: page}
	c.lru.pushFront(node)
	c.nodes[offset] = node

	return nil
}

// Peek returns the cached page without touching its recency.
func (c *NodeCache[P]) Peek(offset int64) (P, bool) {
	node, ok := c.nodes[offset]
	if !ok {
		var zero P
		return zero, false
	}
	return node.page, true
}

// Remove drops the page at offset without flushing it.
func (c *NodeCache[P]) Remove(offset int64) bool {
	node, ok := c.nodes[offset]
	if !ok {
		return false
	}

	c.lru.remove(node)
	delete(c.nodes, offset)
	return true
}

// FlushAll writes back every cached page, least recently used first, and
// stops at the first error. Pages stay cached.
func (c *NodeCache[P]) FlushAll() error {
	for node := c.lru.back(); node != nil && node != c.lru.head; node = node.prev {
		if err := node.page.Flush(); err != nil {
			return errors.WithMessagef(err, "flushing page at offset %d", node.offset)
		}
	}
	return nil
}

// Offsets lists cached offsets from least to most recently used.
func (c *NodeCache[P]) Offsets() []int64 {
	res := make([]int64, 0, len(c.nodes))
	for node := c.lru.back(); node != nil && node != c.lru.head; node = node.prev {
		res = append(res, node.offset)
	}
	return res
}

func (c *NodeCache[P]) Len() int {
	return len(c.nodes)
}

func (c *NodeCache[P]) Capacity() int {
	return c.capacity
}

func (c *NodeCache[P]) evict() error {
	victim := c.lru.back()
	if victim == nil {
		return nil
	}

	if err := victim.page.Flush(); err != nil {
		return errors.WithMessagef(err, "evicting page at offset %d", victim.offset)
	}

	c.lru.remove(victim)
	delete(c.nodes, victim.offset)

	c.logger.Debug("evicted page", zap.Int64("offset", victim.offset))
	return nil
}

// NodeCache is a bounded write-back cache keyed by page offset. It does no
// locking of its own; the owning index serializes access.
type NodeCache[P Page] struct {
	capacity int
	nodes    map[int64]*lruNode[P]
	lru      *lruList[P]
	logger   *zap.Logger
}
