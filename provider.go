package satchel

import (
	"sort"
	"sync"
)

// MemoryProvider stores tables keyed by collection path. Tables are created
// on first use and torn down on Close.
type MemoryProvider struct {
	mu     sync.RWMutex
	tables map[string]*Table
	closed bool
}

// NewMemoryProvider creates an empty provider.
func NewMemoryProvider() *MemoryProvider {
	return &MemoryProvider{tables: make(map[string]*Table)}
}

// Table returns the table for a collection path, creating it if needed.
func (p *MemoryProvider) Table(path string) (*Table, error) {
	if err := ValidateCollectionPath(path); err != nil {
		return nil, err
	}

	p.mu.RLock()
	t, ok := p.tables[path]
	closed := p.closed
	p.mu.RUnlock()
	if closed {
		return nil, ErrClosed
	}
	if ok {
		return t, nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil, ErrClosed
	}
	if t, ok := p.tables[path]; ok {
		return t, nil
	}
	t = newTable(path)
	p.tables[path] = t
	return t, nil
}

// Paths returns all collection paths with a table, sorted.
func (p *MemoryProvider) Paths() []string {
	p.mu.RLock()
	paths := make([]string, 0, len(p.tables))
	for path := range p.tables {
		paths = append(paths, path)
	}
	p.mu.RUnlock()
	sort.Strings(paths)
	return paths
}

// Drop removes a collection's table, reporting whether it existed. Pending
// change batches are delivered before the table goes away.
func (p *MemoryProvider) Drop(path string) bool {
	p.mu.Lock()
	t, ok := p.tables[path]
	if ok {
		delete(p.tables, path)
	}
	p.mu.Unlock()
	if ok {
		t.close()
	}
	return ok
}

// Close stops all table dispatchers. Pending batches are flushed first.
func (p *MemoryProvider) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	tables := make([]*Table, 0, len(p.tables))
	for _, t := range p.tables {
		tables = append(tables, t)
	}
	p.mu.Unlock()

	for _, t := range tables {
		t.close()
	}
	return nil
}
