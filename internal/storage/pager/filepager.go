package pager

import (
	"os"
	"sort"
	"sync"

	"github.com/google/uuid"
)

// ───────────────────────────────────────────────────────────────────────────
// FilePager
// ───────────────────────────────────────────────────────────────────────────
//
// FilePager is a Pager backed by a single append-only file. Pages are never
// rewritten in place: a write lands first in a bounded in-memory buffer, and
// once that buffer overflows every buffered page is appended to the end of
// the file and the identifier→offset index is updated to point at the new
// location. A read checks the write buffer, then a bounded read cache, and
// only then falls back to a seek-and-decode from disk.
//
// Reopening an existing file replays it front to back, newest write
// winning, to rebuild the offset index — there is no superblock and no
// write-ahead log, so a page written but never flushed past a crash is
// simply gone. Crash recovery beyond this replay is a reserved extension
// point, not something FilePager implements.

// FilePagerConfig configures a FilePager.
type FilePagerConfig struct {
	// WriteBufferPages bounds how many dirty pages accumulate before a
	// flush is forced. Must be positive.
	WriteBufferPages int

	// ReadCachePages bounds the read cache's resident page count. Zero
	// disables caching.
	ReadCachePages int
}

// DefaultFilePagerConfig returns reasonable defaults for interactive use.
func DefaultFilePagerConfig() FilePagerConfig {
	return FilePagerConfig{WriteBufferPages: 64, ReadCachePages: 256}
}

// FilePager is a file-backed Pager.
type FilePager struct {
	mu  sync.Mutex
	cfg FilePagerConfig

	file     *os.File
	fileSize int64

	// instanceID tags this open session of the underlying file, surfaced
	// through Stats for operators correlating log lines across restarts.
	instanceID uuid.UUID

	// offsets maps a page identifier to its byte offset in file, kept
	// sorted by identifier for binary search.
	offsets []offsetEntry

	// buffer holds dirty pages not yet appended to file.
	buffer map[PageID]*Page

	cache *readCache
}

type offsetEntry struct {
	id     PageID
	offset int64
}

// OpenFilePager opens (creating if necessary) a file-backed pager at path.
// If the file already has content, it is replayed to rebuild the offset
// index.
func OpenFilePager(path string, cfg FilePagerConfig) (*FilePager, error) {
	if cfg.WriteBufferPages <= 0 {
		cfg.WriteBufferPages = 1
	}
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, err
	}
	fp := &FilePager{
		cfg:        cfg,
		file:       f,
		instanceID: uuid.New(),
		buffer:     make(map[PageID]*Page),
		cache:      newReadCache(cfg.ReadCachePages),
	}
	if err := fp.rebuildIndex(); err != nil {
		f.Close()
		return nil, err
	}
	return fp, nil
}

// rebuildIndex scans the file from the start in PageSize-sized blocks,
// recording each page's latest offset. Later blocks override earlier ones
// for the same identifier, since pages are only ever appended.
func (fp *FilePager) rebuildIndex() error {
	info, err := fp.file.Stat()
	if err != nil {
		return err
	}
	fp.fileSize = info.Size()

	byID := make(map[PageID]int64)
	buf := make([]byte, PageSize)
	var off int64
	for off+PageSize <= fp.fileSize {
		if _, err := fp.file.ReadAt(buf, off); err != nil {
			return err
		}
		p, _, err := Decode(buf)
		if err != nil {
			return err
		}
		byID[p.ID] = off
		off += PageSize
	}

	fp.offsets = fp.offsets[:0]
	for id, o := range byID {
		fp.offsets = append(fp.offsets, offsetEntry{id: id, offset: o})
	}
	sort.Slice(fp.offsets, func(i, j int) bool { return fp.offsets[i].id < fp.offsets[j].id })
	return nil
}

func (fp *FilePager) findOffset(id PageID) (int64, bool) {
	i := sort.Search(len(fp.offsets), func(i int) bool { return fp.offsets[i].id >= id })
	if i < len(fp.offsets) && fp.offsets[i].id == id {
		return fp.offsets[i].offset, true
	}
	return 0, false
}

func (fp *FilePager) setOffset(id PageID, offset int64) {
	i := sort.Search(len(fp.offsets), func(i int) bool { return fp.offsets[i].id >= id })
	if i < len(fp.offsets) && fp.offsets[i].id == id {
		fp.offsets[i].offset = offset
		return
	}
	fp.offsets = append(fp.offsets, offsetEntry{})
	copy(fp.offsets[i+1:], fp.offsets[i:])
	fp.offsets[i] = offsetEntry{id: id, offset: offset}
}

// Read implements Pager: write buffer, then read cache, then disk.
func (fp *FilePager) Read(id PageID) (*Page, error) {
	fp.mu.Lock()
	defer fp.mu.Unlock()

	if p, ok := fp.buffer[id]; ok {
		return p, nil
	}
	if p, ok := fp.cache.get(id); ok {
		return p, nil
	}
	offset, ok := fp.findOffset(id)
	if !ok {
		return nil, ErrPageNotFound
	}
	buf := make([]byte, PageSize)
	if _, err := fp.file.ReadAt(buf, offset); err != nil {
		return nil, err
	}
	p, _, err := Decode(buf)
	if err != nil {
		return nil, err
	}
	fp.cache.put(p)
	return p, nil
}

// Write implements Pager. The page lands in the write buffer, replacing
// any prior buffered write for the same identifier; once the buffer's
// bound is exceeded every buffered page is flushed to file.
func (fp *FilePager) Write(p *Page) error {
	fp.mu.Lock()
	defer fp.mu.Unlock()

	fp.buffer[p.ID] = p
	if len(fp.buffer) > fp.cfg.WriteBufferPages {
		return fp.flushLocked()
	}
	return nil
}

// Commit implements Pager: flush the write buffer and fsync the file.
func (fp *FilePager) Commit() error {
	fp.mu.Lock()
	defer fp.mu.Unlock()

	if err := fp.flushLocked(); err != nil {
		return err
	}
	return fp.file.Sync()
}

// flushLocked appends every buffered page to the end of the file, updates
// the offset index, and empties the buffer. Callers must hold fp.mu.
func (fp *FilePager) flushLocked() error {
	if len(fp.buffer) == 0 {
		return nil
	}
	ids := make([]PageID, 0, len(fp.buffer))
	for id := range fp.buffer {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	for _, id := range ids {
		p := fp.buffer[id]
		enc := p.Encode()
		if _, err := fp.file.WriteAt(enc, fp.fileSize); err != nil {
			return err
		}
		fp.setOffset(id, fp.fileSize)
		fp.fileSize += PageSize
		fp.cache.put(p)
	}
	fp.buffer = make(map[PageID]*Page)
	return nil
}

// Close flushes and closes the underlying file.
func (fp *FilePager) Close() error {
	fp.mu.Lock()
	defer fp.mu.Unlock()

	if err := fp.flushLocked(); err != nil {
		fp.file.Close()
		return err
	}
	return fp.file.Close()
}

// Stats summarizes the pager's current resource usage.
type Stats struct {
	InstanceID    string
	FileBytes     int64
	BufferedPages int
	CachedPages   int
	IndexedPages  int
}

// Stats reports the pager's current buffer, cache, and file state.
func (fp *FilePager) Stats() Stats {
	fp.mu.Lock()
	defer fp.mu.Unlock()
	return Stats{
		InstanceID:    fp.instanceID.String(),
		FileBytes:     fp.fileSize,
		BufferedPages: len(fp.buffer),
		CachedPages:   fp.cache.len(),
		IndexedPages:  len(fp.offsets),
	}
}

// ───────────────────────────────────────────────────────────────────────────
// readCache — bounded LRU of decoded pages
// ───────────────────────────────────────────────────────────────────────────

type cacheNode struct {
	page       *Page
	prev, next *cacheNode
}

// readCache is a small doubly-linked-list LRU, the same shape the rest of
// the pack's buffer pools use, stripped of pinning and dirty tracking since
// it only ever holds clean, already-flushed pages.
type readCache struct {
	bound      int
	nodes      map[PageID]*cacheNode
	head, tail *cacheNode // head = most recently used
}

func newReadCache(bound int) *readCache {
	return &readCache{bound: bound, nodes: make(map[PageID]*cacheNode)}
}

func (c *readCache) len() int { return len(c.nodes) }

func (c *readCache) get(id PageID) (*Page, bool) {
	n, ok := c.nodes[id]
	if !ok {
		return nil, false
	}
	c.moveToFront(n)
	return n.page, true
}

func (c *readCache) put(p *Page) {
	if c.bound <= 0 {
		return
	}
	if n, ok := c.nodes[p.ID]; ok {
		n.page = p
		c.moveToFront(n)
		return
	}
	n := &cacheNode{page: p}
	c.nodes[p.ID] = n
	c.pushFront(n)
	if len(c.nodes) > c.bound {
		c.evictOldest()
	}
}

func (c *readCache) pushFront(n *cacheNode) {
	n.prev, n.next = nil, c.head
	if c.head != nil {
		c.head.prev = n
	}
	c.head = n
	if c.tail == nil {
		c.tail = n
	}
}

func (c *readCache) unlink(n *cacheNode) {
	if n.prev != nil {
		n.prev.next = n.next
	} else {
		c.head = n.next
	}
	if n.next != nil {
		n.next.prev = n.prev
	} else {
		c.tail = n.prev
	}
}

func (c *readCache) moveToFront(n *cacheNode) {
	if c.head == n {
		return
	}
	c.unlink(n)
	c.pushFront(n)
}

func (c *readCache) evictOldest() {
	if c.tail == nil {
		return
	}
	old := c.tail
	c.unlink(old)
	delete(c.nodes, old.page.ID)
}
