package pager

import "sort"

// ───────────────────────────────────────────────────────────────────────────
// Pager
// ───────────────────────────────────────────────────────────────────────────
//
// A Pager maps page identifiers to page contents. The BTree drives one
// exclusively through this interface and never assumes anything about how
// (or whether) pages survive past the process's lifetime.

// Pager is the page store a BTree is built on.
type Pager interface {
	// Read returns the page with the given identifier, or ErrPageNotFound
	// if it has never been written.
	Read(id PageID) (*Page, error)

	// Write stores p, replacing any existing page with the same
	// identifier. Write never fails for an in-memory pager; a
	// file-backed pager may report an I/O error.
	Write(p *Page) error

	// Commit makes prior writes durable. It is a no-op for an in-memory
	// pager.
	Commit() error
}

// ───────────────────────────────────────────────────────────────────────────
// MemPager
// ───────────────────────────────────────────────────────────────────────────

// MemPager is a Pager backed by a plain in-memory slice, kept sorted by
// identifier so reads and writes can binary-search it. It never persists
// anything: Commit is a no-op and all state is lost when the process exits.
type MemPager struct {
	pages []*Page // sorted ascending by ID
}

// NewMemPager returns an empty in-memory pager.
func NewMemPager() *MemPager {
	return &MemPager{}
}

func (m *MemPager) search(id PageID) (int, bool) {
	i := sort.Search(len(m.pages), func(i int) bool { return m.pages[i].ID >= id })
	if i < len(m.pages) && m.pages[i].ID == id {
		return i, true
	}
	return i, false
}

// Read implements Pager.
func (m *MemPager) Read(id PageID) (*Page, error) {
	i, ok := m.search(id)
	if !ok {
		return nil, ErrPageNotFound
	}
	return m.pages[i], nil
}

// Write implements Pager. It is an upsert: a page already present under
// p.ID is replaced in place, otherwise p is inserted to keep the slice
// sorted.
func (m *MemPager) Write(p *Page) error {
	i, ok := m.search(p.ID)
	if ok {
		m.pages[i] = p
		return nil
	}
	m.pages = append(m.pages, nil)
	copy(m.pages[i+1:], m.pages[i:])
	m.pages[i] = p
	return nil
}

// Commit implements Pager. MemPager has nothing to flush.
func (m *MemPager) Commit() error { return nil }

// Count returns the number of distinct pages currently stored.
func (m *MemPager) Count() int { return len(m.pages) }
