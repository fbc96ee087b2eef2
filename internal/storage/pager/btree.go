package pager

import "fmt"

// ───────────────────────────────────────────────────────────────────────────
// BTree
// ───────────────────────────────────────────────────────────────────────────
//
// BTree is a B+Tree ordered index bound to a 32-bit signed integer key and
// a Row value. Only leaves carry values; leaves are linked left-to-right
// via Page.Sibling so a range scan never has to re-descend. Deletes never
// restructure the tree — they flip a tombstone bit and let an opportunistic
// one-entry-per-insert compaction bound the garbage.

// KV is one (key, value) pair produced by a range scan.
type KV struct {
	Key   int32
	Value Row
}

// BTree owns the root identifier, tree depth, next-identifier counter,
// branching factor, and uniqueness flag, and drives a Pager to realize
// them as pages.
type BTree struct {
	b      int
	unique bool
	depth  int
	root   PageID
	nextID PageID
	pager  Pager
}

// NewBTree constructs an empty tree with a single leaf root at identifier
// 0. b must be odd and at least 3.
func NewBTree(b int, unique bool, p Pager) (*BTree, error) {
	if b < 3 || b%2 == 0 {
		return nil, fmt.Errorf("pager: branching factor must be odd and >= 3, got %d", b)
	}
	root := NewLeafPage(0)
	if err := p.Write(root); err != nil {
		return nil, err
	}
	return &BTree{b: b, unique: unique, depth: 0, root: 0, nextID: 1, pager: p}, nil
}

// B returns the tree's branching factor.
func (t *BTree) B() int { return t.b }

// Unique reports whether the tree rejects duplicate keys.
func (t *BTree) Unique() bool { return t.unique }

// Depth returns the number of interior levels above the leaves.
func (t *BTree) Depth() int { return t.depth }

// descendToLeaf walks from the root to the leaf that would contain key,
// recording every interior page visited along the way.
func (t *BTree) descendToLeaf(key int32) ([]PageID, *Page, error) {
	var path []PageID
	cur, err := t.pager.Read(t.root)
	if err != nil {
		return nil, nil, err
	}
	for cur.Kind == InteriorPage {
		path = append(path, cur.ID)
		cur, err = t.pager.Read(cur.Child(key))
		if err != nil {
			return nil, nil, err
		}
	}
	return path, cur, nil
}

// ── Find ─────────────────────────────────────────────────────────────────

// Find returns the value stored under key, or ok=false if the key is
// absent or tombstoned.
func (t *BTree) Find(key int32) (Row, bool, error) {
	_, leaf, err := t.descendToLeaf(key)
	if err != nil {
		return nil, false, err
	}
	i := leaf.Search(key)
	if i >= len(leaf.Keys) || leaf.Keys[i] != key {
		return nil, false, nil
	}
	if leaf.Tombstones[i] {
		return nil, false, nil
	}
	return leaf.Values[i], true, nil
}

// ── FindRange ────────────────────────────────────────────────────────────

// FindRange returns every live (key, value) pair with min <= key <= max,
// in ascending key order.
func (t *BTree) FindRange(min, max int32) ([]KV, error) {
	_, leaf, err := t.descendToLeaf(min)
	if err != nil {
		return nil, err
	}
	i := leaf.Search(min)
	var out []KV
	for {
		for ; i < len(leaf.Keys); i++ {
			k := leaf.Keys[i]
			if k > max {
				return out, nil
			}
			if !leaf.Tombstones[i] {
				out = append(out, KV{Key: k, Value: leaf.Values[i]})
			}
		}
		if leaf.Sibling == NoSibling {
			return out, nil
		}
		leaf, err = t.pager.Read(leaf.Sibling)
		if err != nil {
			return nil, err
		}
		i = 0
	}
}

// ── Insert ───────────────────────────────────────────────────────────────

// Insert stores value under key. On a unique tree a live existing entry
// under key fails with ErrDuplicateKey; a tombstoned one is overwritten.
func (t *BTree) Insert(key int32, value Row) error {
	path, leaf, err := t.descendToLeaf(key)
	if err != nil {
		return err
	}

	i := leaf.Search(key)
	if present := i < len(leaf.Keys) && leaf.Keys[i] == key; present && t.unique {
		if !leaf.Tombstones[i] {
			return ErrDuplicateKey
		}
		// Overwriting a tombstoned entry neither changes the key count
		// nor needs compaction of a different entry: write and return
		// immediately rather than falling into the split path below.
		leaf.Values[i] = value
		leaf.Tombstones[i] = false
		return t.pager.Write(leaf)
	} else {
		leaf.Keys = insertInt32(leaf.Keys, i, key)
		leaf.Values = insertRow(leaf.Values, i, value)
		leaf.Tombstones = insertBool(leaf.Tombstones, i, false)
	}

	compactOneTombstone(leaf)

	if len(leaf.Keys) < t.b {
		return t.pager.Write(leaf)
	}
	return t.splitAndPropagate(path, leaf)
}

// compactOneTombstone removes at most one tombstoned entry, chosen by
// scanning from the right, bounding tombstone growth at one reclaim per
// successful insert.
func compactOneTombstone(leaf *Page) {
	for i := len(leaf.Tombstones) - 1; i >= 0; i-- {
		if leaf.Tombstones[i] {
			leaf.Keys = append(leaf.Keys[:i], leaf.Keys[i+1:]...)
			leaf.Values = append(leaf.Values[:i], leaf.Values[i+1:]...)
			leaf.Tombstones = append(leaf.Tombstones[:i], leaf.Tombstones[i+1:]...)
			return
		}
	}
}

// splitAndPropagate walks the path stack upward, splitting cur against
// each recorded parent and promoting the split key, until a parent
// absorbs the promotion without overflowing or the root itself splits.
func (t *BTree) splitAndPropagate(path []PageID, cur *Page) error {
	maxIter := t.depth + 1
	for iter := 0; iter < maxIter; iter++ {
		if len(path) == 0 {
			return t.splitRoot(cur)
		}
		parentID := path[len(path)-1]
		path = path[:len(path)-1]

		parent, err := t.pager.Read(parentID)
		if err != nil {
			return err
		}
		sibling, splitKey := t.splitPage(cur)
		promoteIntoParent(parent, cur.ID, sibling.ID, splitKey)

		if err := t.pager.Write(cur); err != nil {
			return err
		}
		if err := t.pager.Write(sibling); err != nil {
			return err
		}
		if len(parent.Keys) >= t.b {
			cur = parent
			continue
		}
		return t.pager.Write(parent)
	}
	return nil
}

// splitRoot splits cur (the current root) and installs a fresh interior
// root above it, increasing the tree's depth by one.
func (t *BTree) splitRoot(cur *Page) error {
	sibling, splitKey := t.splitPage(cur)

	newRoot := NewInteriorPage(t.nextID)
	t.nextID++
	newRoot.Keys = []int32{splitKey}
	newRoot.Children = []PageID{cur.ID, sibling.ID}

	if err := t.pager.Write(cur); err != nil {
		return err
	}
	if err := t.pager.Write(sibling); err != nil {
		return err
	}
	if err := t.pager.Write(newRoot); err != nil {
		return err
	}
	t.depth++
	t.root = newRoot.ID
	return nil
}

// splitPage divides an over-full page in two. The split index is
// floor(b/2); the key at that index is promoted and also remains in the
// source (left) page, the B+Tree convention rather than the B-tree one.
func (t *BTree) splitPage(p *Page) (*Page, int32) {
	s := t.b / 2
	splitKey := p.Keys[s]

	sibling := &Page{ID: t.nextID, Kind: p.Kind}
	t.nextID++

	if p.IsLeaf() {
		sibling.Sibling = p.Sibling
		sibling.Keys = append([]int32{}, p.Keys[s+1:]...)
		sibling.Values = append([]Row{}, p.Values[s+1:]...)
		sibling.Tombstones = append([]bool{}, p.Tombstones[s+1:]...)

		p.Sibling = sibling.ID
		p.Keys = p.Keys[:s+1]
		p.Values = p.Values[:s+1]
		p.Tombstones = p.Tombstones[:s+1]
	} else {
		sibling.Children = append([]PageID{}, p.Children[s+1:]...)
		sibling.Keys = append([]int32{}, p.Keys[s+1:]...)

		p.Keys = p.Keys[:s+1]
		p.Children = p.Children[:s+2]
	}
	return sibling, splitKey
}

// promoteIntoParent inserts splitKey into parent at its search index,
// inserting leftID at the same index in the children and overwriting the
// slot immediately after it with rightID.
func promoteIntoParent(parent *Page, leftID, rightID PageID, splitKey int32) {
	idx := parent.Search(splitKey)
	parent.Keys = insertInt32(parent.Keys, idx, splitKey)
	parent.Children = insertPageID(parent.Children, idx, leftID)
	parent.Children[idx+1] = rightID
}

// ── Delete ───────────────────────────────────────────────────────────────

// Delete tombstones every live entry under key, following the
// right-sibling chain when duplicates straddle a page boundary, and
// returns the number of entries newly tombstoned. ErrKeyNotFound is
// returned if none were found.
func (t *BTree) Delete(key int32) (int, error) {
	_, leaf, err := t.descendToLeaf(key)
	if err != nil {
		return 0, err
	}

	i := leaf.Search(key)
	count := 0
	for {
		touched := false
		for ; i < len(leaf.Keys) && leaf.Keys[i] == key; i++ {
			touched = true
			if !leaf.Tombstones[i] {
				leaf.Tombstones[i] = true
				count++
			}
		}
		if touched {
			if err := t.pager.Write(leaf); err != nil {
				return 0, err
			}
		}
		if i < len(leaf.Keys) || leaf.Sibling == NoSibling {
			break
		}
		next, err := t.pager.Read(leaf.Sibling)
		if err != nil {
			return 0, err
		}
		if len(next.Keys) == 0 || next.Keys[0] != key {
			break
		}
		leaf, i = next, 0
	}

	if count == 0 {
		return 0, ErrKeyNotFound
	}
	return count, nil
}

// ── Rebuild (explicit maintenance, never run implicitly) ────────────────

// Rebuild collects every live entry via a leaf-chain walk and reconstructs
// the tree from scratch by repeated insert, physically discarding
// tombstones. It must only ever be invoked explicitly by a caller; the
// tree never calls it on its own.
func (t *BTree) Rebuild() error {
	entries, err := t.liveEntries()
	if err != nil {
		return err
	}
	fresh, err := NewBTree(t.b, t.unique, t.pager)
	if err != nil {
		return err
	}
	for _, kv := range entries {
		if err := fresh.Insert(kv.Key, kv.Value); err != nil {
			return err
		}
	}
	*t = *fresh
	return nil
}

func (t *BTree) liveEntries() ([]KV, error) {
	leaf, err := t.leftmostLeaf()
	if err != nil {
		return nil, err
	}
	var out []KV
	for {
		for i, k := range leaf.Keys {
			if !leaf.Tombstones[i] {
				out = append(out, KV{Key: k, Value: leaf.Values[i]})
			}
		}
		if leaf.Sibling == NoSibling {
			return out, nil
		}
		leaf, err = t.pager.Read(leaf.Sibling)
		if err != nil {
			return nil, err
		}
	}
}

func (t *BTree) leftmostLeaf() (*Page, error) {
	cur, err := t.pager.Read(t.root)
	if err != nil {
		return nil, err
	}
	for cur.Kind == InteriorPage {
		cur, err = t.pager.Read(cur.Children[0])
		if err != nil {
			return nil, err
		}
	}
	return cur, nil
}

// ── Traverse (debug) ─────────────────────────────────────────────────────

// Traverse performs a level-order walk from the root, returning one
// identifier list per interior level (the leaf level is not included).
func (t *BTree) Traverse() ([][]PageID, error) {
	var levels [][]PageID
	level := []PageID{t.root}
	for {
		first, err := t.pager.Read(level[0])
		if err != nil {
			return nil, err
		}
		if first.IsLeaf() {
			return levels, nil
		}
		levels = append(levels, level)

		var next []PageID
		for _, id := range level {
			p, err := t.pager.Read(id)
			if err != nil {
				return nil, err
			}
			next = append(next, p.Children...)
		}
		level = next
	}
}

// ── slice-insert helpers ─────────────────────────────────────────────────

func insertInt32(s []int32, i int, v int32) []int32 {
	s = append(s, 0)
	copy(s[i+1:], s[i:])
	s[i] = v
	return s
}

func insertPageID(s []PageID, i int, v PageID) []PageID {
	s = append(s, 0)
	copy(s[i+1:], s[i:])
	s[i] = v
	return s
}

func insertRow(s []Row, i int, v Row) []Row {
	s = append(s, nil)
	copy(s[i+1:], s[i:])
	s[i] = v
	return s
}

func insertBool(s []bool, i int, v bool) []bool {
	s = append(s, false)
	copy(s[i+1:], s[i:])
	s[i] = v
	return s
}
