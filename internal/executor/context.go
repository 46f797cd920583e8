package executor

import "sync"

// Context keys. Each holds the last result of that kind within a session.
const (
	KeySearchResults   = "search_results"
	KeyScanResults     = "scan_results"
	KeyClassifyResults = "classify_results"
	KeyTopicResults    = "classify_by_topic_results"
	KeySearchExactly   = "search_exactly"
	KeySearchKeyword   = "search_keyword"
)

// Context is the per-session store that threads intermediate results between
// plan steps. Writes remember insertion order so consumers can ask for the
// most recent of several keys.
type Context struct {
	mu     sync.Mutex
	values map[string]ctxEntry
	seq    int
}

type ctxEntry struct {
	value any
	seq   int
}

// NewContext returns an empty Context.
func NewContext() *Context {
	return &Context{values: make(map[string]ctxEntry)}
}

// Set stores value under key, superseding any earlier write.
func (c *Context) Set(key string, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seq++
	c.values[key] = ctxEntry{value: value, seq: c.seq}
}

// Get returns the value stored under key.
func (c *Context) Get(key string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.values[key]
	return e.value, ok
}

// Has reports whether key holds a value.
func (c *Context) Has(key string) bool {
	_, ok := c.Get(key)
	return ok
}

// Latest returns the most recently written of the given keys.
func (c *Context) Latest(keys ...string) (string, any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	bestSeq := 0
	var bestKey string
	var bestVal any
	for _, key := range keys {
		if e, ok := c.values[key]; ok && e.seq > bestSeq {
			bestSeq = e.seq
			bestKey = key
			bestVal = e.value
		}
	}
	return bestKey, bestVal, bestSeq > 0
}

// Reset drops every stored value.
func (c *Context) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.values = make(map[string]ctxEntry)
	c.seq = 0
}
