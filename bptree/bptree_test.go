package bptree

import (
	"errors"
	"path/filepath"
	"testing"
)

func newTestTree(t *testing.T, cap int) *Tree {
	t.Helper()
	dir := t.TempDir()
	tree, err := Open(filepath.Join(dir, "rel"), 0, AttrTypeInteger, cap, nil)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { tree.Close() })
	return tree
}

func collect(t *testing.T, tree *Tree, lowVal Key, lowOp Operator, highVal Key, highOp Operator) []RID {
	t.Helper()
	if err := tree.StartScan(lowVal, lowOp, highVal, highOp); err != nil {
		if errors.Is(err, ErrNoSuchKeyFound) {
			return nil
		}
		t.Fatalf("start scan: %v", err)
	}
	defer tree.EndScan()

	var out []RID
	var rid RID
	for {
		if err := tree.ScanNext(&rid); err != nil {
			if errors.Is(err, ErrIndexScanCompleted) {
				break
			}
			t.Fatalf("scan next: %v", err)
		}
		out = append(out, rid)
	}
	return out
}

// Building a small tree and scanning the whole range back should
// return every inserted entry.
func TestBuildAndScanWholeRange(t *testing.T) {
	tree := newTestTree(t, 32)

	keys := []Key{10, 3, 7, 1, 9, 5, 2, 8, 4, 6}
	for i, k := range keys {
		if err := tree.Insert(k, RID{PageNo: uint32(i) + 1, SlotNo: 0}); err != nil {
			t.Fatalf("insert %d: %v", k, err)
		}
	}

	got := collect(t, tree, -1000, GTE, 1000, LTE)
	if len(got) != len(keys) {
		t.Fatalf("expected %d entries, got %d", len(keys), len(got))
	}
}

// Forces multiple leaf splits and a root promotion by inserting several
// times LeafOccupancy keys, then checks every 137th key is retrievable via
// a point scan (GTE k, LTE k). The root stays far below NodeOccupancy
// children, so no internal split happens here.
func TestManyInsertsTriggerSplitsAndStayFindable(t *testing.T) {
	tree := newTestTree(t, 64)

	const n = 3000
	for i := 0; i < n; i++ {
		k := Key(i)
		if err := tree.Insert(k, RID{PageNo: uint32(i) + 1, SlotNo: uint16(i % 10)}); err != nil {
			t.Fatalf("insert %d: %v", i, err)
		}
	}

	for i := 0; i < n; i += 137 {
		k := Key(i)
		got := collect(t, tree, k, GTE, k, LTE)
		if len(got) != 1 {
			t.Fatalf("key %d: expected 1 match, got %d", k, len(got))
		}
		want := RID{PageNo: uint32(i) + 1, SlotNo: uint16(i % 10)}
		if got[0] != want {
			t.Errorf("key %d: expected rid %+v, got %+v", k, want, got[0])
		}
	}
}

// GT/GTE and LT/LTE must each draw the line in the right place at the
// edges of the key range.
func TestBoundaryOperators(t *testing.T) {
	tree := newTestTree(t, 32)
	for _, k := range []Key{1, 2, 3, 4, 5} {
		if err := tree.Insert(k, RID{PageNo: uint32(k), SlotNo: 0}); err != nil {
			t.Fatalf("insert %d: %v", k, err)
		}
	}

	cases := []struct {
		name              string
		lowVal            Key
		lowOp             Operator
		highVal           Key
		highOp            Operator
		wantFirst, wantLast Key
		wantCount         int
	}{
		{"gte-lte-inclusive", 2, GTE, 4, LTE, 2, 4, 3},
		{"gt-lt-exclusive", 2, GT, 4, LT, 3, 3, 1},
		{"gte-lt", 2, GTE, 4, LT, 2, 3, 2},
		{"gt-lte", 2, GT, 4, LTE, 3, 4, 2},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got := collect(t, tree, c.lowVal, c.lowOp, c.highVal, c.highOp)
			if len(got) != c.wantCount {
				t.Fatalf("expected %d entries, got %d", c.wantCount, len(got))
			}
			if first, last := Key(got[0].PageNo), Key(got[len(got)-1].PageNo); first != c.wantFirst || last != c.wantLast {
				t.Errorf("expected keys %d..%d, got %d..%d", c.wantFirst, c.wantLast, first, last)
			}
		})
	}
}

// An empty range (no keys satisfy the predicate) returns ErrNoSuchKeyFound.
func TestEmptyRangeReturnsNoSuchKey(t *testing.T) {
	tree := newTestTree(t, 32)
	for _, k := range []Key{1, 2, 3} {
		if err := tree.Insert(k, RID{PageNo: uint32(k)}); err != nil {
			t.Fatalf("insert %d: %v", k, err)
		}
	}

	err := tree.StartScan(100, GTE, 200, LTE)
	if !errors.Is(err, ErrNoSuchKeyFound) {
		t.Errorf("expected ErrNoSuchKeyFound, got %v", err)
	}
}

// A reversed range (lowVal > highVal) is rejected before any scan work.
func TestReversedRangeRejected(t *testing.T) {
	tree := newTestTree(t, 32)
	err := tree.StartScan(10, GTE, 5, LTE)
	if !errors.Is(err, ErrBadScanRange) {
		t.Errorf("expected ErrBadScanRange, got %v", err)
	}
}

// Operator misuse (wrong side) is rejected.
func TestBadOperatorCombinationRejected(t *testing.T) {
	tree := newTestTree(t, 32)
	err := tree.StartScan(1, LT, 10, GT)
	if !errors.Is(err, ErrBadOpcodes) {
		t.Errorf("expected ErrBadOpcodes, got %v", err)
	}
}

func TestScanNextWithoutStartScanErrors(t *testing.T) {
	tree := newTestTree(t, 32)
	var rid RID
	if err := tree.ScanNext(&rid); !errors.Is(err, ErrScanNotInitialized) {
		t.Errorf("expected ErrScanNotInitialized, got %v", err)
	}
	if err := tree.EndScan(); !errors.Is(err, ErrScanNotInitialized) {
		t.Errorf("expected ErrScanNotInitialized from EndScan, got %v", err)
	}
}

func TestScanNextAfterCompletionErrors(t *testing.T) {
	tree := newTestTree(t, 32)
	if err := tree.Insert(1, RID{PageNo: 1}); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if err := tree.StartScan(0, GTE, 10, LTE); err != nil {
		t.Fatalf("start scan: %v", err)
	}
	var rid RID
	if err := tree.ScanNext(&rid); err != nil {
		t.Fatalf("first scan next: %v", err)
	}
	if err := tree.ScanNext(&rid); !errors.Is(err, ErrIndexScanCompleted) {
		t.Errorf("expected ErrIndexScanCompleted, got %v", err)
	}
}

// Duplicate keys are preserved in stable insertion order.
func TestDuplicateKeysPreserveInsertionOrder(t *testing.T) {
	tree := newTestTree(t, 32)
	rids := []RID{{PageNo: 1}, {PageNo: 2}, {PageNo: 3}}
	for _, r := range rids {
		if err := tree.Insert(42, r); err != nil {
			t.Fatalf("insert: %v", err)
		}
	}

	got := collect(t, tree, 42, GTE, 42, LTE)
	if len(got) != len(rids) {
		t.Fatalf("expected %d duplicates, got %d", len(rids), len(got))
	}
	for i, r := range rids {
		if got[i] != r {
			t.Errorf("duplicate %d: expected %+v, got %+v", i, r, got[i])
		}
	}
}

// Reopening an index file must recover the same tree via its metadata page.
func TestReopenRoundTrip(t *testing.T) {
	dir := t.TempDir()
	relPath := filepath.Join(dir, "rel")

	tree, err := Open(relPath, 4, AttrTypeInteger, 16, nil)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	for i := 0; i < 200; i++ {
		if err := tree.Insert(Key(i), RID{PageNo: uint32(i) + 1}); err != nil {
			t.Fatalf("insert %d: %v", i, err)
		}
	}
	if err := tree.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	reopened, err := Open(relPath, 4, AttrTypeInteger, 16, nil)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()

	got := collect(t, reopened, Key(0), GTE, Key(199), LTE)
	if len(got) != 200 {
		t.Fatalf("expected 200 entries after reopen, got %d", len(got))
	}
}

func TestOpenRejectsMismatchedAttrInfo(t *testing.T) {
	dir := t.TempDir()
	relPath := filepath.Join(dir, "rel")
	const otherAttrType byte = 2

	tree, err := Open(relPath, 4, AttrTypeInteger, 16, nil)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := tree.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	// Same relation name and attribute offset (so the same index file is
	// reopened), different attribute type.
	_, err = Open(relPath, 4, otherAttrType, 16, nil)
	if !errors.Is(err, ErrBadIndexInfo) {
		t.Errorf("expected ErrBadIndexInfo, got %v", err)
	}
}
