package pipeline

import (
	"sync"

	"github.com/steipete/mediascribe/internal/captions"
	"github.com/steipete/mediascribe/internal/resolver"
)

// MemCache is a process-local transcript cache. Entries live for the
// lifetime of the process; there is no eviction.
type MemCache struct {
	mu      sync.RWMutex
	entries map[string]*cachedEntry
}

type cachedEntry struct {
	text     string
	source   string
	segments []captions.Segment
	metadata map[string]any
}

func NewMemCache() *MemCache {
	return &MemCache{entries: make(map[string]*cachedEntry)}
}

// Get returns a copy of the cached result with a "cached" metadata
// marker. Callers may mutate the copy freely.
func (m *MemCache) Get(key string) (*resolver.Result, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.entries[key]
	if !ok {
		return nil, false
	}
	res := &resolver.Result{Text: e.text, Source: e.source}
	res.Segments = append(res.Segments, e.segments...)
	for k, v := range e.metadata {
		res.SetMeta(k, v)
	}
	res.SetMeta("cached", true)
	return res, true
}

func (m *MemCache) Set(key string, res *resolver.Result) {
	m.mu.Lock()
	defer m.mu.Unlock()
	meta := make(map[string]any, len(res.Metadata))
	for k, v := range res.Metadata {
		meta[k] = v
	}
	e := &cachedEntry{text: res.Text, source: res.Source, metadata: meta}
	e.segments = append(e.segments, res.Segments...)
	m.entries[key] = e
}
