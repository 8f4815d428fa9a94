package overlay

import "sync"

// lruCache is a thread-safe least recently used cache
type lruCache[K comparable, V any] struct {
	mutex    sync.Mutex
	capacity int
	items    map[K]*cacheNode[K, V]
	head     *cacheNode[K, V] // Most recently used
	tail     *cacheNode[K, V] // Least recently used
	hits     int64
	misses   int64
}

type cacheNode[K comparable, V any] struct {
	key   K
	value V
	prev  *cacheNode[K, V]
	next  *cacheNode[K, V]
}

func newLRUCache[K comparable, V any](capacity int) *lruCache[K, V] {
	if capacity <= 0 {
		capacity = 16
	}

	c := &lruCache[K, V]{
		capacity: capacity,
		items:    make(map[K]*cacheNode[K, V]),
		head:     &cacheNode[K, V]{},
		tail:     &cacheNode[K, V]{},
	}
	c.head.next = c.tail
	c.tail.prev = c.head
	return c
}

func (c *lruCache[K, V]) Get(key K) (V, bool) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if node, ok := c.items[key]; ok {
		c.moveToFront(node)
		c.hits++
		return node.value, true
	}

	c.misses++
	var zero V
	return zero, false
}

func (c *lruCache[K, V]) Put(key K, value V) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if node, ok := c.items[key]; ok {
		node.value = value
		c.moveToFront(node)
		return
	}

	node := &cacheNode[K, V]{key: key, value: value}
	c.addToFront(node)
	c.items[key] = node

	if len(c.items) > c.capacity {
		lru := c.tail.prev
		c.removeNode(lru)
		delete(c.items, lru.key)
	}
}

func (c *lruCache[K, V]) Remove(key K) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if node, ok := c.items[key]; ok {
		c.removeNode(node)
		delete(c.items, key)
	}
}

func (c *lruCache[K, V]) Clear() {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.items = make(map[K]*cacheNode[K, V])
	c.head.next = c.tail
	c.tail.prev = c.head
}

func (c *lruCache[K, V]) Len() int {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return len(c.items)
}

// CacheStats reports preview cache performance
type CacheStats struct {
	Hits     int64 `json:"hits"`
	Misses   int64 `json:"misses"`
	Size     int   `json:"current_size"`
	Capacity int   `json:"max_capacity"`
}

func (c *lruCache[K, V]) Stats() CacheStats {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return CacheStats{Hits: c.hits, Misses: c.misses, Size: len(c.items), Capacity: c.capacity}
}

func (c *lruCache[K, V]) moveToFront(node *cacheNode[K, V]) {
	c.removeNode(node)
	c.addToFront(node)
}

func (c *lruCache[K, V]) addToFront(node *cacheNode[K, V]) {
	node.prev = c.head
	node.next = c.head.next
	c.head.next.prev = node
	c.head.next = node
}

func (c *lruCache[K, V]) removeNode(node *cacheNode[K, V]) {
	node.prev.next = node.next
	node.next.prev = node.prev
}
