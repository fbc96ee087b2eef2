package pager

import (
	"math/rand"
	"testing"
)

func newTestTree(t *testing.T, b int, unique bool) *BTree {
	t.Helper()
	tree, err := NewBTree(b, unique, NewMemPager())
	if err != nil {
		t.Fatalf("NewBTree(%d, %v): %v", b, unique, err)
	}
	return tree
}

func mustFind(t *testing.T, tree *BTree, key int32) Row {
	t.Helper()
	v, ok, err := tree.Find(key)
	if err != nil {
		t.Fatalf("Find(%d): %v", key, err)
	}
	if !ok {
		t.Fatalf("Find(%d): not found", key)
	}
	return v
}

func TestNewBTree_RejectsEvenOrSmallB(t *testing.T) {
	for _, b := range []int{2, 4, 1, 0, -3} {
		if _, err := NewBTree(b, true, NewMemPager()); err == nil {
			t.Errorf("NewBTree(%d): expected error", b)
		}
	}
}

// S1: b=27, non-unique, no split.
func TestBTree_S1_NoSplit(t *testing.T) {
	tree := newTestTree(t, 27, false)
	inserts := []struct {
		k int32
		v int32
	}{{5, 50}, {6, 60}, {7, -70}, {7, 70}, {8, 80}}
	for _, e := range inserts {
		if err := tree.Insert(e.k, rowOf(e.v)); err != nil {
			t.Fatalf("Insert(%d,%d): %v", e.k, e.v, err)
		}
	}
	if got := mustFind(t, tree, 5); got[0].Int != 50 {
		t.Errorf("find(5) = %v", got)
	}
	if got := mustFind(t, tree, 6); got[0].Int != 60 {
		t.Errorf("find(6) = %v", got)
	}
	if got := mustFind(t, tree, 8); got[0].Int != 80 {
		t.Errorf("find(8) = %v", got)
	}
}

// S2: b=3, unique, split.
func TestBTree_S2_Split(t *testing.T) {
	tree := newTestTree(t, 3, true)
	for k := int32(5); k <= 10; k++ {
		if err := tree.Insert(k, rowOf(k*11)); err != nil {
			t.Fatalf("Insert(%d): %v", k, err)
		}
	}
	for k := int32(5); k <= 10; k++ {
		if got := mustFind(t, tree, k); got[0].Int != k*11 {
			t.Errorf("find(%d) = %v, want %d", k, got, k*11)
		}
	}
	if _, ok, err := tree.Find(666); err != nil || ok {
		t.Errorf("find(666) = ok=%v err=%v, want absent", ok, err)
	}
	if tree.Depth() == 0 {
		t.Error("expected the tree to have split at least once")
	}
}

// S3 (scaled down from 50,000 for test runtime): large random inserts on a
// unique tree, every find returns the exact value inserted.
func TestBTree_S3_LargeRandomUnique(t *testing.T) {
	for _, b := range []int{33, 101, 179, 213, 303} {
		b := b
		t.Run("", func(t *testing.T) {
			tree := newTestTree(t, b, true)
			const n = 4000
			rng := rand.New(rand.NewSource(int64(b)))
			keys := rng.Perm(n)
			want := make(map[int32]int32, n)
			for _, k := range keys {
				key := int32(k)
				val := rng.Int31()
				want[key] = val
				if err := tree.Insert(key, rowOf(val)); err != nil {
					t.Fatalf("Insert(%d): %v", key, err)
				}
			}
			for key, val := range want {
				got := mustFind(t, tree, key)
				if got[0].Int != val {
					t.Fatalf("find(%d) = %d, want %d", key, got[0].Int, val)
				}
			}
		})
	}
}

// S4 (scaled down): delete the upper half of keys, lower half still found,
// upper half absent.
func TestBTree_S4_DeleteHalf(t *testing.T) {
	for _, b := range []int{71, 155, 191, 211, 301} {
		b := b
		t.Run("", func(t *testing.T) {
			tree := newTestTree(t, b, true)
			const n = 4000
			for k := int32(0); k < n; k++ {
				if err := tree.Insert(k, rowOf(k)); err != nil {
					t.Fatalf("Insert(%d): %v", k, err)
				}
			}
			for k := int32(n / 2); k < n; k++ {
				if _, err := tree.Delete(k); err != nil {
					t.Fatalf("Delete(%d): %v", k, err)
				}
			}
			for k := int32(0); k < n/2; k++ {
				if got := mustFind(t, tree, k); got[0].Int != k {
					t.Fatalf("find(%d) = %v, want %d", k, got, k)
				}
			}
			for k := int32(n / 2); k < n; k++ {
				if _, ok, err := tree.Find(k); err != nil || ok {
					t.Fatalf("find(%d) = ok=%v err=%v, want absent", k, ok, err)
				}
			}
		})
	}
}

// S5: b=5, unique, duplicate-key / reinsert-after-delete.
func TestBTree_S5_DuplicateKeyThenReinsert(t *testing.T) {
	tree := newTestTree(t, 5, true)
	if err := tree.Insert(5, rowOf(55)); err != nil {
		t.Fatalf("Insert(5,55): %v", err)
	}
	if err := tree.Insert(5, rowOf(555)); err != ErrDuplicateKey {
		t.Fatalf("Insert(5,555) = %v, want ErrDuplicateKey", err)
	}
	if _, err := tree.Delete(5); err != nil {
		t.Fatalf("Delete(5): %v", err)
	}
	if err := tree.Insert(5, rowOf(555)); err != nil {
		t.Fatalf("Insert(5,555) after delete: %v", err)
	}
	if got := mustFind(t, tree, 5); got[0].Int != 555 {
		t.Fatalf("find(5) = %v, want 555", got)
	}
}

// S6: b=33, unique, step-3 keys, find_range(51,300).
func TestBTree_S6_Range(t *testing.T) {
	tree := newTestTree(t, 33, true)
	for i := int32(0); i < 10000; i += 3 {
		if err := tree.Insert(i, rowOf(3*i)); err != nil {
			t.Fatalf("Insert(%d): %v", i, err)
		}
	}
	got, err := tree.FindRange(51, 300)
	if err != nil {
		t.Fatalf("FindRange: %v", err)
	}
	wantLen := (300-51)/3 + 1
	if len(got) != wantLen {
		t.Fatalf("FindRange len = %d, want %d", len(got), wantLen)
	}
	prev := int32(-1)
	for _, kv := range got {
		if kv.Key <= prev {
			t.Fatalf("FindRange not ascending at key %d", kv.Key)
		}
		if kv.Value[0].Int != 3*kv.Key {
			t.Fatalf("FindRange value for %d = %d, want %d", kv.Key, kv.Value[0].Int, 3*kv.Key)
		}
		prev = kv.Key
	}
}

func TestBTree_DeleteConsistency(t *testing.T) {
	tree := newTestTree(t, 5, true)
	for k := int32(0); k < 20; k++ {
		tree.Insert(k, rowOf(k))
	}
	if _, err := tree.Delete(10); err != nil {
		t.Fatalf("Delete(10): %v", err)
	}
	if _, ok, err := tree.Find(10); err != nil || ok {
		t.Fatalf("find(10) after delete = ok=%v err=%v", ok, err)
	}
	kvs, err := tree.FindRange(5, 15)
	if err != nil {
		t.Fatalf("FindRange: %v", err)
	}
	for _, kv := range kvs {
		if kv.Key == 10 {
			t.Fatal("FindRange emitted a tombstoned key")
		}
	}
}

func TestBTree_DeleteNotFound(t *testing.T) {
	tree := newTestTree(t, 5, true)
	if _, err := tree.Delete(1); err != ErrKeyNotFound {
		t.Fatalf("Delete(1) on empty tree = %v, want ErrKeyNotFound", err)
	}
}

func TestBTree_DeleteNonUniqueDuplicatesAcrossLeaves(t *testing.T) {
	tree := newTestTree(t, 3, false)
	for i := 0; i < 6; i++ {
		if err := tree.Insert(42, rowOf(int32(i))); err != nil {
			t.Fatalf("Insert duplicate #%d: %v", i, err)
		}
	}
	count, err := tree.Delete(42)
	if err != nil {
		t.Fatalf("Delete(42): %v", err)
	}
	if count != 6 {
		t.Fatalf("Delete(42) count = %d, want 6", count)
	}
	if _, ok, _ := tree.Find(42); ok {
		t.Fatal("find(42) after deleting all duplicates should be absent")
	}
}

func TestBTree_StructuralBound(t *testing.T) {
	const b = 5
	tree := newTestTree(t, b, true)
	mp := tree.pager.(*MemPager)
	for k := int32(0); k < 500; k++ {
		if err := tree.Insert(k, rowOf(k)); err != nil {
			t.Fatalf("Insert(%d): %v", k, err)
		}
	}
	for id := PageID(0); id < PageID(mp.Count())+50; id++ {
		p, err := mp.Read(id)
		if err != nil {
			continue
		}
		if len(p.Keys) >= b {
			t.Fatalf("page %d has %d keys, want < %d", id, len(p.Keys), b)
		}
	}
}

func TestBTree_LeafChainOrder(t *testing.T) {
	tree := newTestTree(t, 5, true)
	for _, k := range rand.New(rand.NewSource(1)).Perm(500) {
		if err := tree.Insert(int32(k), rowOf(int32(k))); err != nil {
			t.Fatalf("Insert(%d): %v", k, err)
		}
	}
	leaf, err := tree.leftmostLeaf()
	if err != nil {
		t.Fatalf("leftmostLeaf: %v", err)
	}
	prev := int32(-1)
	count := 0
	for {
		for _, k := range leaf.Keys {
			if k <= prev {
				t.Fatalf("leaf chain not ascending at %d", k)
			}
			prev = k
			count++
		}
		if leaf.Sibling == NoSibling {
			break
		}
		leaf, err = tree.pager.Read(leaf.Sibling)
		if err != nil {
			t.Fatalf("Read sibling: %v", err)
		}
	}
	if count != 500 {
		t.Fatalf("leaf chain visited %d entries, want 500", count)
	}
}

func TestBTree_RebuildPreservesLiveEntries(t *testing.T) {
	tree := newTestTree(t, 5, true)
	for k := int32(0); k < 100; k++ {
		tree.Insert(k, rowOf(k))
	}
	for k := int32(0); k < 50; k++ {
		tree.Delete(k)
	}
	if err := tree.Rebuild(); err != nil {
		t.Fatalf("Rebuild: %v", err)
	}
	for k := int32(0); k < 50; k++ {
		if _, ok, _ := tree.Find(k); ok {
			t.Fatalf("find(%d) after rebuild should stay absent", k)
		}
	}
	for k := int32(50); k < 100; k++ {
		if got := mustFind(t, tree, k); got[0].Int != k {
			t.Fatalf("find(%d) after rebuild = %v", k, got)
		}
	}
}

func TestBTree_FilePagerBacked(t *testing.T) {
	dir := t.TempDir()
	fp, err := OpenFilePager(dir+"/tree.db", DefaultFilePagerConfig())
	if err != nil {
		t.Fatalf("OpenFilePager: %v", err)
	}
	defer fp.Close()

	tree, err := NewBTree(7, true, fp)
	if err != nil {
		t.Fatalf("NewBTree: %v", err)
	}
	for k := int32(0); k < 300; k++ {
		if err := tree.Insert(k, rowOf(k*2)); err != nil {
			t.Fatalf("Insert(%d): %v", k, err)
		}
	}
	if err := fp.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	for k := int32(0); k < 300; k++ {
		if got := mustFind(t, tree, k); got[0].Int != k*2 {
			t.Fatalf("find(%d) = %v, want %d", k, got, k*2)
		}
	}
}
