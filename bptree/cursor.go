// Scan Cursor: StartScan/ScanNext/EndScan. A single leaf page stays
// pinned across ScanNext calls for the lifetime of an active scan —
// it is only unpinned when the cursor hops to the right sibling, when
// the scan completes, or when EndScan/Close is called. No other page
// is held pinned across an operation boundary.
package bptree

import "btreeidx/page"

// Cursor holds the state of one in-progress range scan.
type Cursor struct {
	active  bool
	leafPg  *page.Page
	nextIdx int

	lowVal, highVal Key
	lowOp, highOp   Operator
}

// StartScan positions the cursor at the first entry satisfying
// lowVal/lowOp .. highVal/highOp. Any previously active scan on this
// tree is ended first.
func (t *Tree) StartScan(lowVal Key, lowOp Operator, highVal Key, highOp Operator) error {
	if !validScanOps(lowOp, highOp) {
		return ErrBadOpcodes
	}
	if lowVal > highVal {
		return ErrBadScanRange
	}
	if t.cursor.active {
		_ = t.EndScan()
	}

	if t.root == page.NilID {
		return ErrNoSuchKeyFound
	}

	leafID, err := t.descendToLeaf(lowVal)
	if err != nil {
		return err
	}
	pg, err := t.pa.pinRead(leafID)
	if err != nil {
		return err
	}

	n := leafCount(pg)
	if n == 0 {
		_ = t.pa.unpin(leafID, false)
		return ErrNoSuchKeyFound
	}

	i := leafLowerBound(pg, n, lowVal)
	for {
		if i < n {
			key := leafKeyAt(pg, i)
			if keyPastHighBound(key, highVal, highOp) {
				_ = t.pa.unpin(pg.ID, false)
				return ErrNoSuchKeyFound
			}
			if isKeyValid(key, lowVal, lowOp, highVal, highOp) {
				break
			}
			i++
			continue
		}

		next := leafRightSib(pg)
		if next == page.NilID {
			_ = t.pa.unpin(pg.ID, false)
			return ErrNoSuchKeyFound
		}
		if err := t.pa.unpin(pg.ID, false); err != nil {
			return err
		}
		pg, err = t.pa.pinRead(next)
		if err != nil {
			return err
		}
		n = leafCount(pg)
		i = 0
	}

	t.cursor = Cursor{
		active:  true,
		leafPg:  pg,
		nextIdx: i,
		lowVal:  lowVal,
		lowOp:   lowOp,
		highVal: highVal,
		highOp:  highOp,
	}
	return nil
}

// leafLowerBound returns the first index whose key is >= target.
func leafLowerBound(pg *page.Page, n int, target Key) int {
	lo, hi := 0, n
	for lo < hi {
		mid := lo + (hi-lo)/2
		if leafKeyAt(pg, mid) < target {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	return lo
}

// ScanNext yields the next matching RID, or ErrIndexScanCompleted once
// the cursor has passed the last one.
func (t *Tree) ScanNext(out *RID) error {
	c := &t.cursor
	if !c.active {
		return ErrScanNotInitialized
	}

	n := leafCount(c.leafPg)
	if c.nextIdx >= n {
		next := leafRightSib(c.leafPg)
		if next == page.NilID {
			return t.endScanExhausted()
		}
		oldID := c.leafPg.ID
		if err := t.pa.unpin(oldID, false); err != nil {
			return err
		}
		pg, err := t.pa.pinRead(next)
		if err != nil {
			return err
		}
		c.leafPg = pg
		c.nextIdx = 0
		n = leafCount(pg)
		if c.nextIdx >= n {
			return t.endScanExhausted()
		}
	}

	key := leafKeyAt(c.leafPg, c.nextIdx)
	if !isKeyValid(key, c.lowVal, c.lowOp, c.highVal, c.highOp) {
		return t.endScanExhausted()
	}

	*out = leafRIDAt(c.leafPg, c.nextIdx)
	c.nextIdx++
	return nil
}

// EndScan releases the cursor's pinned leaf and deactivates it.
func (t *Tree) EndScan() error {
	if !t.cursor.active {
		return ErrScanNotInitialized
	}
	id := t.cursor.leafPg.ID
	t.clearCursor()
	return t.pa.unpin(id, false)
}

func (t *Tree) clearCursor() {
	t.cursor = Cursor{}
}

// endScanExhausted unpins the cursor's held leaf and reports the scan
// as complete, used whenever ScanNext discovers — rather than being
// told via EndScan — that there is nothing left to yield.
func (t *Tree) endScanExhausted() error {
	id := t.cursor.leafPg.ID
	t.clearCursor()
	if err := t.pa.unpin(id, false); err != nil {
		return err
	}
	return ErrIndexScanCompleted
}
