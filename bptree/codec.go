// Node codec: interprets a raw page as a leaf or internal node.
//
// Leaf layout:
//
//	Header (8 bytes):
//	  tag            byte    (1 byte)  — tagLeaf
//	  level          byte    (1 byte)  — always 1; unused, the tag byte
//	                                     alone decides leaf vs. internal
//	  reserved       (2 bytes)
//	  rightSibPageNo uint32  (4 bytes) — 0 if rightmost leaf
//	Body:
//	  keyArray[LeafOccupancy]  int32, 4 bytes each
//	  ridArray[LeafOccupancy]  {PageNo uint32, SlotNo uint16}, 6 bytes each
//
// Internal layout:
//
//	Header (8 bytes):
//	  tag      byte (1 byte) — tagInternal
//	  level    byte (1 byte) — always 0
//	  reserved (6 bytes)
//	Body:
//	  keyArray[NodeOccupancy]      int32, 4 bytes each
//	  pageNoArray[NodeOccupancy+1] uint32, 4 bytes each
//
// Slot counts are derived from the data, never stored: a slot is free
// iff its rid's page number (leaf) or its child page number (internal)
// is 0, per the capacity-sentinel rule. This means leafCount/internalCount
// scan the array rather than read a counter field.
package bptree

import (
	"encoding/binary"

	"btreeidx/page"
)

const (
	tagLeaf     byte = 0
	tagInternal byte = 1

	headerSize = 8
	keySize    = 4
	ridSize    = 6
	childSize  = 4

	// LeafOccupancy is the largest number of (key, rid) pairs that fit
	// on one leaf page with the header above.
	LeafOccupancy = (page.Size - headerSize) / (keySize + ridSize)

	// NodeOccupancy is the largest number of keys that fit on one
	// internal page; the page therefore holds NodeOccupancy+1 children.
	NodeOccupancy = (page.Size - headerSize - childSize) / (keySize + childSize)
)

func isLeafPage(pg *page.Page) bool { return pg.Data[0] == tagLeaf }

func initLeafPage(pg *page.Page) {
	for i := range pg.Data {
		pg.Data[i] = 0
	}
	pg.Data[0] = tagLeaf
	pg.Data[1] = 1
}

func initInternalPage(pg *page.Page) {
	for i := range pg.Data {
		pg.Data[i] = 0
	}
	pg.Data[0] = tagInternal
	pg.Data[1] = 0
}

// --- leaf accessors ---

func leafKeyAt(pg *page.Page, i int) Key {
	off := headerSize + i*keySize
	return int32(binary.LittleEndian.Uint32(pg.Data[off:]))
}

func setLeafKeyAt(pg *page.Page, i int, k Key) {
	off := headerSize + i*keySize
	binary.LittleEndian.PutUint32(pg.Data[off:], uint32(k))
}

func leafRIDAt(pg *page.Page, i int) RID {
	off := headerSize + LeafOccupancy*keySize + i*ridSize
	return RID{
		PageNo: binary.LittleEndian.Uint32(pg.Data[off:]),
		SlotNo: binary.LittleEndian.Uint16(pg.Data[off+4:]),
	}
}

func setLeafRIDAt(pg *page.Page, i int, r RID) {
	off := headerSize + LeafOccupancy*keySize + i*ridSize
	binary.LittleEndian.PutUint32(pg.Data[off:], r.PageNo)
	binary.LittleEndian.PutUint16(pg.Data[off+4:], r.SlotNo)
}

func leafRightSib(pg *page.Page) page.ID {
	return page.ID(binary.LittleEndian.Uint32(pg.Data[4:]))
}

func setLeafRightSib(pg *page.Page, id page.ID) {
	binary.LittleEndian.PutUint32(pg.Data[4:], uint32(id))
}

// leafCount scans from the high end for the last occupied slot: a slot
// is free iff its rid's page number is 0.
func leafCount(pg *page.Page) int {
	for i := LeafOccupancy - 1; i >= 0; i-- {
		if leafRIDAt(pg, i).PageNo != 0 {
			return i + 1
		}
	}
	return 0
}

// --- internal accessors ---

func internalKeyAt(pg *page.Page, i int) Key {
	off := headerSize + i*keySize
	return int32(binary.LittleEndian.Uint32(pg.Data[off:]))
}

func setInternalKeyAt(pg *page.Page, i int, k Key) {
	off := headerSize + i*keySize
	binary.LittleEndian.PutUint32(pg.Data[off:], uint32(k))
}

func internalChildAt(pg *page.Page, i int) page.ID {
	off := headerSize + NodeOccupancy*keySize + i*childSize
	return page.ID(binary.LittleEndian.Uint32(pg.Data[off:]))
}

func setInternalChildAt(pg *page.Page, i int, id page.ID) {
	off := headerSize + NodeOccupancy*keySize + i*childSize
	binary.LittleEndian.PutUint32(pg.Data[off:], uint32(id))
}

// internalCount is the number of live children: the index of the first
// free pageNoArray slot.
func internalCount(pg *page.Page) int {
	for i := 0; i <= NodeOccupancy; i++ {
		if internalChildAt(pg, i) == 0 {
			return i
		}
	}
	return NodeOccupancy + 1
}
