// Tree Mutator: insertion descent, leaf insert, split-leaf,
// split-internal, root promotion.
//
// Parent pointers are not stored on disk (see the design note on cyclic
// structures): ascent after a split is handled by the explicit call
// chain of a recursive descent rather than by walking a stored parent
// link, so insertRec unwinds back up exactly the path it came down.
package bptree

import (
	"fmt"

	"btreeidx/page"
)

// splitResult is the separator an insert propagates up to its caller
// when the node it touched had to split.
type splitResult struct {
	key   Key
	right page.ID
}

// Insert places (key, rid) into the tree, splitting and promoting the
// root as needed. Duplicates are permitted; a later insert with a key
// equal to an existing one is placed immediately after the existing
// run (stable, insertion-order-preserving — an arbitrary but stable
// choice among those the duplicate-key open question permits).
func (t *Tree) Insert(key Key, rid RID) error {
	if t.root == page.NilID {
		return t.initRootLeafInsert(key, rid)
	}

	sr, err := t.insertRec(t.root, key, rid)
	if err != nil {
		return fmt.Errorf("bptree: insert: %w", err)
	}
	if sr != nil {
		return t.promoteRoot(*sr)
	}
	return nil
}

func (t *Tree) initRootLeafInsert(key Key, rid RID) error {
	pg, err := t.pa.alloc()
	if err != nil {
		return fmt.Errorf("bptree: insert: allocate root leaf: %w", err)
	}
	initLeafPage(pg)
	setLeafKeyAt(pg, 0, key)
	setLeafRIDAt(pg, 0, rid)
	if err := t.pa.unpin(pg.ID, true); err != nil {
		return err
	}

	t.root = pg.ID
	return t.writeMetadata()
}

// insertRec descends to the leaf that should hold key, inserts there,
// and propagates a split separator back up through the same recursive
// call chain it descended through.
func (t *Tree) insertRec(id page.ID, key Key, rid RID) (*splitResult, error) {
	pg, err := t.pa.pinRead(id)
	if err != nil {
		return nil, err
	}

	if isLeafPage(pg) {
		return t.insertIntoLeaf(pg, key, rid)
	}

	childIdx := findChildIndex(pg, key)
	childID := internalChildAt(pg, childIdx)
	if err := t.pa.unpin(id, false); err != nil {
		return nil, err
	}

	childSplit, err := t.insertRec(childID, key, rid)
	if err != nil {
		return nil, err
	}
	if childSplit == nil {
		return nil, nil
	}
	return t.insertIntoInternalAt(id, childIdx, *childSplit)
}

// findChildIndex picks the child to descend into for key: the largest
// i such that keyArray[i-1] <= key, computed by scanning from the high
// end of live children and decrementing while keyArray[i-1] > key.
// A key equal to a separator therefore routes to the right child,
// matching the subtree invariant that pageNoArray[i+1] holds keys
// >= keyArray[i].
func findChildIndex(pg *page.Page, key Key) int {
	n := internalCount(pg) - 1
	i := n
	for i > 0 && internalKeyAt(pg, i-1) > key {
		i--
	}
	return i
}

// leafInsertPos returns the position at which key should be inserted
// among the n live entries of a leaf: the first index whose key is
// strictly greater, so ties land after the existing run.
func leafInsertPos(pg *page.Page, n int, key Key) int {
	lo, hi := 0, n
	for lo < hi {
		mid := lo + (hi-lo)/2
		if leafKeyAt(pg, mid) <= key {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	return lo
}

func leafInsertAt(pg *page.Page, count, pos int, key Key, rid RID) {
	for i := count; i > pos; i-- {
		setLeafKeyAt(pg, i, leafKeyAt(pg, i-1))
		setLeafRIDAt(pg, i, leafRIDAt(pg, i-1))
	}
	setLeafKeyAt(pg, pos, key)
	setLeafRIDAt(pg, pos, rid)
}

func (t *Tree) insertIntoLeaf(pg *page.Page, key Key, rid RID) (*splitResult, error) {
	n := leafCount(pg)
	pos := leafInsertPos(pg, n, key)

	if n < LeafOccupancy {
		leafInsertAt(pg, n, pos, key, rid)
		if err := t.pa.unpin(pg.ID, true); err != nil {
			return nil, err
		}
		return nil, nil
	}

	sr, err := t.splitLeaf(pg, key, rid, pos, n)
	if err != nil {
		_ = t.pa.unpin(pg.ID, false)
		return nil, err
	}
	return sr, nil
}

// splitLeaf implements the leaf split rule exactly: midpoint m = n/2,
// bumped to m+1 when n is odd and the incoming key sorts into the
// right half, so the left side never ends up smaller than it should
// when the new key goes right.
func (t *Tree) splitLeaf(pg *page.Page, key Key, rid RID, pos, n int) (*splitResult, error) {
	m := n / 2
	if n%2 == 1 && key > leafKeyAt(pg, m) {
		m++
	}

	right, err := t.pa.alloc()
	if err != nil {
		return nil, fmt.Errorf("bptree: split leaf: allocate right sibling: %w", err)
	}
	initLeafPage(right)

	for i := m; i < n; i++ {
		setLeafKeyAt(right, i-m, leafKeyAt(pg, i))
		setLeafRIDAt(right, i-m, leafRIDAt(pg, i))
		setLeafKeyAt(pg, i, 0)
		setLeafRIDAt(pg, i, RID{})
	}

	setLeafRightSib(right, leafRightSib(pg))
	setLeafRightSib(pg, right.ID)

	if pos < m {
		leafInsertAt(pg, m, pos, key, rid)
	} else {
		leafInsertAt(right, n-m, pos-m, key, rid)
	}

	if err := t.pa.unpin(pg.ID, true); err != nil {
		return nil, err
	}
	if err := t.pa.unpin(right.ID, true); err != nil {
		return nil, err
	}

	return &splitResult{key: leafKeyAt(right, 0), right: right.ID}, nil
}

func internalInsertPos(pg *page.Page, n int, key Key) int {
	lo, hi := 0, n
	for lo < hi {
		mid := lo + (hi-lo)/2
		if internalKeyAt(pg, mid) <= key {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	return lo
}

func internalInsertAt(pg *page.Page, n, pos int, key Key, child page.ID) {
	for i := n; i > pos; i-- {
		setInternalKeyAt(pg, i, internalKeyAt(pg, i-1))
	}
	setInternalKeyAt(pg, pos, key)
	for i := n + 1; i > pos+1; i-- {
		setInternalChildAt(pg, i, internalChildAt(pg, i-1))
	}
	setInternalChildAt(pg, pos+1, child)
}

func (t *Tree) insertIntoInternalAt(id page.ID, childIdx int, sr splitResult) (*splitResult, error) {
	pg, err := t.pa.pinWrite(id)
	if err != nil {
		return nil, err
	}

	n := internalCount(pg) - 1
	if n < NodeOccupancy {
		internalInsertAt(pg, n, childIdx, sr.key, sr.right)
		if err := t.pa.unpin(id, true); err != nil {
			return nil, err
		}
		return nil, nil
	}

	return t.splitInternal(pg, sr)
}

// splitInternal implements the internal split rule exactly: with
// mid = N/2, the promoted key is keyArray[mid-1] when N is even and
// sep < keyArray[mid], otherwise keyArray[mid]. Everything strictly
// right of the promoted slot moves to the new sibling; the new
// (sep, newChildPid) entry is then routed to whichever side it belongs
// based on comparing sep with the new sibling's first key, with ties
// going right.
func (t *Tree) splitInternal(pg *page.Page, sr splitResult) (*splitResult, error) {
	n := NodeOccupancy

	mid := n / 2
	promoteIdx := mid
	if n%2 == 0 && sr.key < internalKeyAt(pg, mid) {
		promoteIdx = mid - 1
	}
	promoteKey := internalKeyAt(pg, promoteIdx)

	right, err := t.pa.alloc()
	if err != nil {
		return nil, fmt.Errorf("bptree: split internal: allocate right sibling: %w", err)
	}
	initInternalPage(right)

	rk := 0
	for i := promoteIdx + 1; i < n; i++ {
		setInternalKeyAt(right, rk, internalKeyAt(pg, i))
		setInternalKeyAt(pg, i, 0)
		rk++
	}
	for i, rc := promoteIdx+1, 0; i <= n; i, rc = i+1, rc+1 {
		setInternalChildAt(right, rc, internalChildAt(pg, i))
		setInternalChildAt(pg, i, 0)
	}
	setInternalKeyAt(pg, promoteIdx, 0)

	leftN := promoteIdx
	rightN := rk
	goesRight := rightN == 0 || sr.key >= internalKeyAt(right, 0)

	if !goesRight {
		pos := internalInsertPos(pg, leftN, sr.key)
		internalInsertAt(pg, leftN, pos, sr.key, sr.right)
	} else {
		pos := internalInsertPos(right, rightN, sr.key)
		internalInsertAt(right, rightN, pos, sr.key, sr.right)
	}

	if err := t.pa.unpin(pg.ID, true); err != nil {
		return nil, err
	}
	if err := t.pa.unpin(right.ID, true); err != nil {
		return nil, err
	}

	return &splitResult{key: promoteKey, right: right.ID}, nil
}

// promoteRoot allocates a new root internal page when a split
// propagates all the way up past the current root.
func (t *Tree) promoteRoot(sr splitResult) error {
	newRoot, err := t.pa.alloc()
	if err != nil {
		return fmt.Errorf("bptree: promote root: %w", err)
	}
	initInternalPage(newRoot)
	setInternalChildAt(newRoot, 0, t.root)
	setInternalKeyAt(newRoot, 0, sr.key)
	setInternalChildAt(newRoot, 1, sr.right)
	if err := t.pa.unpin(newRoot.ID, true); err != nil {
		return err
	}

	t.root = newRoot.ID
	return t.writeMetadata()
}

// descendToLeaf walks from the root to the leaf that should hold key,
// unpinning every internal page it passes through on the way down.
func (t *Tree) descendToLeaf(key Key) (page.ID, error) {
	id := t.root
	for {
		pg, err := t.pa.pinRead(id)
		if err != nil {
			return 0, err
		}
		if isLeafPage(pg) {
			if err := t.pa.unpin(id, false); err != nil {
				return 0, err
			}
			return id, nil
		}
		childIdx := findChildIndex(pg, key)
		childID := internalChildAt(pg, childIdx)
		if err := t.pa.unpin(id, false); err != nil {
			return 0, err
		}
		id = childID
	}
}
