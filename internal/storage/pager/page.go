// Package pager implements the on-disk page format, the pluggable page
// store abstraction, and the B+Tree index built on top of them.
//
// Pages are fixed-size, tagged leaf-or-interior nodes. A Pager maps page
// identifiers to page contents; two implementations are provided, an
// in-memory store and a file-backed store with a bounded write buffer and
// an identifier→offset index. The BTree type drives both through the
// Pager interface and never touches a file handle directly.
package pager

import (
	"encoding/binary"
	"fmt"
)

// ───────────────────────────────────────────────────────────────────────────
// Constants & identifiers
// ───────────────────────────────────────────────────────────────────────────

const (
	// PageSize is the fixed on-wire size of every page, in bytes.
	PageSize = 65536

	// pageHeaderSize is the size of the common header shared by every page.
	pageHeaderSize = 13

	// keySize is the on-wire width of a single key. The tree is bound to a
	// 32-bit signed integer key, so every key occupies 4 bytes.
	keySize = 4
)

// PageID identifies a page within a tree. Identifiers are assigned
// monotonically at allocation time and are never reused within a tree's
// lifetime.
type PageID uint32

// NoSibling is the sentinel right-sibling value meaning "no sibling".
const NoSibling PageID = 0xFFFFFFFF

// PageKind tags a page as a leaf or an interior node.
type PageKind uint8

const (
	LeafPage     PageKind = 0
	InteriorPage PageKind = 1
)

func (k PageKind) String() string {
	if k == LeafPage {
		return "leaf"
	}
	return "interior"
}

// ───────────────────────────────────────────────────────────────────────────
// Page
// ───────────────────────────────────────────────────────────────────────────

// Page is the in-memory representation of one B+Tree node.
type Page struct {
	ID   PageID
	Kind PageKind

	// Keys is shared by both page kinds, sorted ascending (strictly
	// ascending on a unique tree, non-decreasing otherwise).
	Keys []int32

	// Leaf-only fields.
	Values     []Row
	Tombstones []bool
	Sibling    PageID // NoSibling when there is no right sibling.

	// Interior-only field. Logically len(Children) == len(Keys)+1.
	Children []PageID
}

// NewLeafPage returns an empty leaf page with the given identifier.
func NewLeafPage(id PageID) *Page {
	return &Page{ID: id, Kind: LeafPage, Sibling: NoSibling}
}

// NewInteriorPage returns an empty interior page with the given identifier.
func NewInteriorPage(id PageID) *Page {
	return &Page{ID: id, Kind: InteriorPage}
}

// IsLeaf reports whether the page is a leaf page.
func (p *Page) IsLeaf() bool { return p.Kind == LeafPage }

// KeyCount returns the number of keys stored in the page.
func (p *Page) KeyCount() int { return len(p.Keys) }

// Search returns the smallest index i such that every key at a position
// less than i is strictly less than key. On a leaf this is the insertion
// point for key; on an interior page it is the index of the child to
// descend into (ties on an interior page resolve to descending at the
// found index).
func (p *Page) Search(key int32) int {
	lo, hi := 0, len(p.Keys)
	for lo < hi {
		mid := (lo + hi) / 2
		if p.Keys[mid] < key {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	return lo
}

// Child returns the child identifier to descend into for key. Must only be
// called on an interior page.
func (p *Page) Child(key int32) PageID {
	i := p.Search(key)
	return p.Children[i]
}

// ───────────────────────────────────────────────────────────────────────────
// Encoding
// ───────────────────────────────────────────────────────────────────────────
//
// Header (identical for both kinds):
//
//	0..4    identifier     (u32 LE)
//	4       kind           (0 leaf, 1 interior)
//	5..9    key size       (u32 LE) — always 4 for the int32 key binding
//	9..13   key count      (u32 LE)
//	13..    keys           (key-count * key-size bytes)
//
// Interior pages then store key-count+1 child identifiers (u32 LE each) —
// the full logical B+Tree fan-out, not the "one fewer child" convention a
// slotted layout would otherwise tempt.
//
// Leaf pages then store: a 4-byte right-sibling identifier (NoSibling
// sentinel when absent), ceil(key-count/8) bytes of packed tombstone bits
// (MSB-first within each byte), then the concatenation of the self-framed
// row encodings.

// Encode serializes the page into a fixed PageSize-byte buffer.
func (p *Page) Encode() []byte {
	buf := make([]byte, PageSize)
	binary.LittleEndian.PutUint32(buf[0:4], uint32(p.ID))
	buf[4] = byte(p.Kind)
	binary.LittleEndian.PutUint32(buf[5:9], uint32(keySize))
	binary.LittleEndian.PutUint32(buf[9:13], uint32(len(p.Keys)))

	off := pageHeaderSize
	for _, k := range p.Keys {
		binary.LittleEndian.PutUint32(buf[off:off+4], uint32(k))
		off += keySize
	}

	if p.Kind == InteriorPage {
		for _, c := range p.Children {
			binary.LittleEndian.PutUint32(buf[off:off+4], uint32(c))
			off += 4
		}
		return buf
	}

	binary.LittleEndian.PutUint32(buf[off:off+4], uint32(p.Sibling))
	off += 4

	tomb := packTombstones(p.Tombstones)
	copy(buf[off:], tomb)
	off += len(tomb)

	for _, row := range p.Values {
		enc := EncodeRow(row)
		copy(buf[off:], enc)
		off += len(enc)
	}
	return buf
}

// Decode parses a page from the front of buf, returning the page and the
// number of bytes consumed.
func Decode(buf []byte) (*Page, int, error) {
	if len(buf) < pageHeaderSize {
		return nil, 0, ErrInvalidByteLen
	}
	p := &Page{
		ID:   PageID(binary.LittleEndian.Uint32(buf[0:4])),
		Kind: PageKind(buf[4]),
	}
	ks := int(binary.LittleEndian.Uint32(buf[5:9]))
	kc := int(binary.LittleEndian.Uint32(buf[9:13]))
	if ks != keySize {
		return nil, 0, fmt.Errorf("pager: unsupported key size %d", ks)
	}

	off := pageHeaderSize
	if len(buf) < off+kc*keySize {
		return nil, 0, ErrInvalidByteLen
	}
	p.Keys = make([]int32, kc)
	for i := 0; i < kc; i++ {
		p.Keys[i] = int32(binary.LittleEndian.Uint32(buf[off : off+4]))
		off += keySize
	}

	if p.Kind == InteriorPage {
		childCount := kc + 1
		if len(buf) < off+childCount*4 {
			return nil, 0, ErrInvalidByteLen
		}
		p.Children = make([]PageID, childCount)
		for i := 0; i < childCount; i++ {
			p.Children[i] = PageID(binary.LittleEndian.Uint32(buf[off : off+4]))
			off += 4
		}
		return p, off, nil
	}

	if len(buf) < off+4 {
		return nil, 0, ErrInvalidByteLen
	}
	p.Sibling = PageID(binary.LittleEndian.Uint32(buf[off : off+4]))
	off += 4

	tombBytes := (kc + 7) / 8
	if len(buf) < off+tombBytes {
		return nil, 0, ErrInvalidByteLen
	}
	p.Tombstones = unpackTombstones(buf[off:off+tombBytes], kc)
	off += tombBytes

	p.Values = make([]Row, kc)
	for i := 0; i < kc; i++ {
		row, sz, err := DecodeRow(buf[off:])
		if err != nil {
			return nil, 0, err
		}
		p.Values[i] = row
		off += sz
	}
	return p, off, nil
}

// ── Tombstone bit packing ───────────────────────────────────────────────

// packTombstones packs a bit sequence MSB-first within each byte: the i-th
// bit lands at bit (7 - i%8) of byte i/8.
func packTombstones(bits []bool) []byte {
	out := make([]byte, (len(bits)+7)/8)
	for i, b := range bits {
		if b {
			out[i/8] |= 1 << uint(7-i%8)
		}
	}
	return out
}

// unpackTombstones is the inverse of packTombstones, truncated to n bits.
func unpackTombstones(b []byte, n int) []bool {
	out := make([]bool, n)
	for i := 0; i < n; i++ {
		out[i] = b[i/8]&(1<<uint(7-i%8)) != 0
	}
	return out
}
