package corpus

import (
	"sync"
	"sync/atomic"
)

// Manager holds the corpus currently in service for each wiki. Reads
// are lock-free; Swap installs a freshly loaded corpus with copy-on-write
// so in-flight queries keep the corpus they started with.
type Manager struct {
	mu    sync.Mutex
	wikis atomic.Pointer[map[string]*atomic.Pointer[Corpus]]
}

// NewManager creates an empty manager.
func NewManager() *Manager {
	m := &Manager{}
	empty := make(map[string]*atomic.Pointer[Corpus])
	m.wikis.Store(&empty)
	return m
}

// Get returns the corpus in service for wiki, if any.
func (m *Manager) Get(wiki string) (*Corpus, bool) {
	slot, ok := (*m.wikis.Load())[wiki]
	if !ok {
		return nil, false
	}

	c := slot.Load()
	if c == nil {
		return nil, false
	}

	return c, true
}

// Corpus is like Get but returns ErrWikiNotLoaded when no corpus is
// in service.
func (m *Manager) Corpus(wiki string) (*Corpus, error) {
	c, ok := m.Get(wiki)
	if !ok {
		return nil, &ErrWikiNotLoaded{Wiki: wiki}
	}
	return c, nil
}

// Swap installs c as the corpus in service for its wiki and returns the
// corpus it replaced, if any.
func (m *Manager) Swap(c *Corpus) *Corpus {
	m.mu.Lock()
	defer m.mu.Unlock()

	current := *m.wikis.Load()
	if slot, ok := current[c.Wiki()]; ok {
		return slot.Swap(c)
	}

	next := make(map[string]*atomic.Pointer[Corpus], len(current)+1)
	for wiki, slot := range current {
		next[wiki] = slot
	}

	slot := &atomic.Pointer[Corpus]{}
	slot.Store(c)
	next[c.Wiki()] = slot
	m.wikis.Store(&next)

	return nil
}

// Wikis lists the wikis with a corpus in service.
func (m *Manager) Wikis() []string {
	current := *m.wikis.Load()

	wikis := make([]string, 0, len(current))
	for wiki, slot := range current {
		if slot.Load() != nil {
			wikis = append(wikis, wiki)
		}
	}

	return wikis
}
