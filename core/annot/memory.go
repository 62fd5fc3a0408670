package annot

import (
	"sort"
	"sync"
)

type annotations struct {
	docs  map[int][]string
	attrs map[int][]Attribute
}

func newAnnotations() *annotations {
	return &annotations{
		docs:  make(map[int][]string),
		attrs: make(map[int][]Attribute),
	}
}

// Memory is an in-memory store, the default when no database is configured.
type Memory struct {
	mu      sync.RWMutex
	layouts map[string]*annotations
	cur     *annotations
}

// NewMemory creates an empty in-memory store scoped to the unnamed layout.
func NewMemory() *Memory {
	cur := newAnnotations()
	return &Memory{
		layouts: map[string]*annotations{"": cur},
		cur:     cur,
	}
}

// Begin scopes the store to layout, starting it afresh.
func (m *Memory) Begin(layout string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cur = newAnnotations()
	m.layouts[layout] = m.cur
	return nil
}

// AddDoc appends doc lines to an item.
func (m *Memory) AddDoc(item int, lines []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cur.docs[item] = append(m.cur.docs[item], lines...)
	return nil
}

// AddAttrs records attributes on an item.
func (m *Memory) AddAttrs(item int, attrs []Attribute) error {
	for _, a := range attrs {
		if _, err := KindOf(a.Value); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cur.attrs[item] = mergeAttrs(m.cur.attrs[item], attrs)
	return nil
}

// Docs returns the doc lines of an item.
func (m *Memory) Docs(item int) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]string(nil), m.cur.docs[item]...), nil
}

// Attrs returns the attributes of an item.
func (m *Memory) Attrs(item int) ([]Attribute, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]Attribute(nil), m.cur.attrs[item]...), nil
}

// Items returns every annotated item id.
func (m *Memory) Items() ([]int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	seen := make(map[int]bool)
	for id := range m.cur.docs {
		seen[id] = true
	}
	for id := range m.cur.attrs {
		seen[id] = true
	}
	ids := make([]int, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids, nil
}

// Close is a no-op for the memory store.
func (m *Memory) Close() error {
	return nil
}
