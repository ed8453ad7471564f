package session

// Cache maps cache keys to translations and remembers insertion order so that
// eviction drops the oldest keys first. Not safe for concurrent use; Session
// guards it.
type Cache struct {
	entries map[string]CacheEntry
	order   []string
}

func NewCache() *Cache {
	return &Cache{
		entries: make(map[string]CacheEntry),
	}
}

func (c *Cache) Get(key CacheKey) (CacheEntry, bool) {
	entry, ok := c.entries[key.String()]
	return entry, ok
}

func (c *Cache) Has(key CacheKey) bool {
	_, ok := c.entries[key.String()]
	return ok
}

// Put stores entry under key. Overwriting an existing key keeps its original
// position in the eviction order.
func (c *Cache) Put(key CacheKey, entry CacheEntry) {
	k := key.String()
	if _, ok := c.entries[k]; !ok {
		c.order = append(c.order, k)
	}
	c.entries[k] = entry
}

// PutIfAbsent stores entry only when key has no entry yet.
func (c *Cache) PutIfAbsent(key CacheKey, entry CacheEntry) bool {
	if c.Has(key) {
		return false
	}
	c.Put(key, entry)
	return true
}

func (c *Cache) Len() int {
	return len(c.entries)
}

func (c *Cache) Clear() {
	c.entries = make(map[string]CacheEntry)
	c.order = nil
}

// Keys returns the keys in insertion order.
func (c *Cache) Keys() []string {
	return append([]string(nil), c.order...)
}

// Evict removes the oldest entries until retain remain, but only once the
// cache holds more than limit entries. It returns the number removed.
func (c *Cache) Evict(limit, retain int) int {
	if len(c.entries) <= limit {
		return 0
	}
	if retain < 0 {
		retain = 0
	}

	drop := len(c.order) - retain
	for _, k := range c.order[:drop] {
		delete(c.entries, k)
	}
	c.order = append([]string(nil), c.order[drop:]...)
	return drop
}
